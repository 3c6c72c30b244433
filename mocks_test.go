package auth

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// memRepos is an in-memory RepositoryManager. It honors the same storage
// contracts as the bun-backed implementation: one-shot activation, idempotent
// role grants, duplicate revocation conflicts, case-insensitive email lookup.
type memRepos struct {
	mu          sync.Mutex
	users       map[uuid.UUID]*User
	roles       map[uuid.UUID]*Role
	memberships map[uuid.UUID]map[uuid.UUID]bool
	companies   map[uuid.UUID]*Company
	revoked     map[string]time.Time
}

func newMemRepos() *memRepos {
	return &memRepos{
		users:       map[uuid.UUID]*User{},
		roles:       map[uuid.UUID]*Role{},
		memberships: map[uuid.UUID]map[uuid.UUID]bool{},
		companies:   map[uuid.UUID]*Company{},
		revoked:     map[string]time.Time{},
	}
}

var _ RepositoryManager = (*memRepos)(nil)

func (m *memRepos) Validate() error { return nil }
func (m *memRepos) MustValidate()   {}

func (m *memRepos) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return f(ctx, bun.Tx{})
	}
}

func (m *memRepos) Users() Users                 { return &memUsers{s: m} }
func (m *memRepos) Roles() Roles                 { return &memRoles{s: m} }
func (m *memRepos) Companies() Companies         { return &memCompanies{s: m} }
func (m *memRepos) RevokedTokens() RevokedTokens { return &memRevokedTokens{s: m} }

// loadUser returns a copy of the record with relations resolved, the way the
// bun repository loads Roles and Company.
func (m *memRepos) loadUser(u *User) *User {
	cp := *u
	cp.Roles = nil
	for roleID := range m.memberships[u.ID] {
		if role, ok := m.roles[roleID]; ok {
			cp.Roles = append(cp.Roles, role)
		}
	}
	sort.Slice(cp.Roles, func(i, j int) bool { return cp.Roles[i].Type < cp.Roles[j].Type })
	if u.CompanyID != nil {
		cp.Company = m.companies[*u.CompanyID]
	}
	return &cp
}

type memUsers struct{ s *memRepos }

var _ Users = (*memUsers)(nil)

func (r *memUsers) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return r.GetByIDTx(ctx, nil, id)
}

func (r *memUsers) GetByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	user, ok := r.s.users[id]
	if !ok {
		return nil, repository.NewRecordNotFound()
	}
	return r.s.loadUser(user), nil
}

func (r *memUsers) GetByEmail(ctx context.Context, email string) (*User, error) {
	return r.GetByEmailTx(ctx, nil, email)
}

func (r *memUsers) GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	normalized := NormalizeEmail(email)
	for _, user := range r.s.users {
		if NormalizeEmail(user.Email) == normalized {
			return r.s.loadUser(user), nil
		}
	}
	return nil, repository.NewRecordNotFound()
}

func (r *memUsers) Register(ctx context.Context, user *User) (*User, error) {
	return r.RegisterTx(ctx, nil, user)
}

func (r *memUsers) RegisterTx(ctx context.Context, tx bun.IDB, user *User) (*User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	normalized := NormalizeEmail(user.Email)
	for _, existing := range r.s.users {
		if NormalizeEmail(existing.Email) == normalized {
			return nil, goerrors.New("UNIQUE constraint failed: users.email", goerrors.CategoryConflict)
		}
	}

	prepareUserDefaults(user)
	cp := *user
	r.s.users[cp.ID] = &cp
	return r.s.loadUser(&cp), nil
}

func (r *memUsers) ActivateTx(ctx context.Context, tx bun.IDB, id uuid.UUID, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	user, ok := r.s.users[id]
	if !ok || user.DeletedAt != nil || user.ActivatedAt != nil {
		return repository.NewRecordNotFound()
	}
	user.ActivatedAt = &at
	return nil
}

func (r *memUsers) DeactivateTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	user, ok := r.s.users[id]
	if !ok {
		return repository.NewRecordNotFound()
	}
	user.ActivatedAt = nil
	return nil
}

func (r *memUsers) AttachCompanyTx(ctx context.Context, tx bun.IDB, id uuid.UUID, companyID *uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	user, ok := r.s.users[id]
	if !ok || user.DeletedAt != nil {
		return repository.NewRecordNotFound()
	}
	user.CompanyID = companyID
	return nil
}

func (r *memUsers) SetRecoveryCodeTx(ctx context.Context, tx bun.IDB, id uuid.UUID, code string, expiresAt time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	user, ok := r.s.users[id]
	if !ok || user.DeletedAt != nil {
		return repository.NewRecordNotFound()
	}
	user.RecoveryCode = &code
	user.RecoveryExpiresAt = &expiresAt
	return nil
}

func (r *memUsers) SetPasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	user, ok := r.s.users[id]
	if !ok || user.DeletedAt != nil {
		return repository.NewRecordNotFound()
	}
	user.PasswordHash = passwordHash
	user.RecoveryCode = nil
	user.RecoveryExpiresAt = nil
	return nil
}

type memRoles struct{ s *memRepos }

var _ Roles = (*memRoles)(nil)

func (r *memRoles) Create(ctx context.Context, role *Role) (*Role, error) {
	return r.CreateTx(ctx, nil, role)
}

func (r *memRoles) CreateTx(ctx context.Context, tx bun.IDB, role *Role) (*Role, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if role.ID == uuid.Nil {
		role.ID = uuid.New()
	}
	role.Type = NormalizeRoleType(role.Type)
	cp := *role
	r.s.roles[cp.ID] = &cp
	return &cp, nil
}

func (r *memRoles) GetByType(ctx context.Context, roleType string) (*Role, error) {
	return r.GetByTypeTx(ctx, nil, roleType)
}

func (r *memRoles) GetByTypeTx(ctx context.Context, tx bun.IDB, roleType string) (*Role, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	normalized := NormalizeRoleType(roleType)
	for _, role := range r.s.roles {
		if role.Type == normalized {
			return role, nil
		}
	}
	return nil, repository.NewRecordNotFound()
}

func (r *memRoles) ListDefaults(ctx context.Context) ([]*Role, error) {
	return r.ListDefaultsTx(ctx, nil)
}

func (r *memRoles) ListDefaultsTx(ctx context.Context, tx bun.IDB) ([]*Role, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var defaults []*Role
	for _, role := range r.s.roles {
		if role.IsDefault {
			defaults = append(defaults, role)
		}
	}
	sort.Slice(defaults, func(i, j int) bool { return defaults[i].Type < defaults[j].Type })
	return defaults, nil
}

func (r *memRoles) Assign(ctx context.Context, userID, roleID uuid.UUID) error {
	return r.AssignTx(ctx, nil, userID, roleID)
}

func (r *memRoles) AssignTx(ctx context.Context, tx bun.IDB, userID, roleID uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if r.s.memberships[userID] == nil {
		r.s.memberships[userID] = map[uuid.UUID]bool{}
	}
	r.s.memberships[userID][roleID] = true
	return nil
}

type memCompanies struct{ s *memRepos }

var _ Companies = (*memCompanies)(nil)

func (r *memCompanies) Create(ctx context.Context, company *Company) (*Company, error) {
	return r.CreateTx(ctx, nil, company)
}

func (r *memCompanies) CreateTx(ctx context.Context, tx bun.IDB, company *Company) (*Company, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, existing := range r.s.companies {
		if existing.CVR == company.CVR {
			return nil, goerrors.New("UNIQUE constraint failed: companies.cvr", goerrors.CategoryConflict)
		}
	}

	if company.ID == uuid.Nil {
		company.ID = uuid.New()
	}
	cp := *company
	r.s.companies[cp.ID] = &cp
	return &cp, nil
}

func (r *memCompanies) GetByID(ctx context.Context, id uuid.UUID) (*Company, error) {
	return r.GetByIDTx(ctx, nil, id)
}

func (r *memCompanies) GetByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*Company, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	company, ok := r.s.companies[id]
	if !ok {
		return nil, repository.NewRecordNotFound()
	}
	return company, nil
}

func (r *memCompanies) Delete(ctx context.Context, id uuid.UUID) error {
	return r.DeleteTx(ctx, nil, id)
}

func (r *memCompanies) DeleteTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	delete(r.s.companies, id)
	return nil
}

type memRevokedTokens struct{ s *memRepos }

var _ RevokedTokens = (*memRevokedTokens)(nil)

func (r *memRevokedTokens) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	return r.RevokeTx(ctx, nil, tokenID, expiresAt)
}

func (r *memRevokedTokens) RevokeTx(ctx context.Context, tx bun.IDB, tokenID string, expiresAt time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if tokenID == "" {
		return ErrNoEmptyString
	}

	if _, exists := r.s.revoked[tokenID]; exists {
		return goerrors.New("token already revoked", goerrors.CategoryConflict).
			WithTextCode(TextCodeTokenAlreadyRevoked).
			WithCode(goerrors.CodeConflict)
	}

	r.s.revoked[tokenID] = expiresAt
	return nil
}

func (r *memRevokedTokens) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	_, exists := r.s.revoked[tokenID]
	return exists, nil
}

// testConfig satisfies Config with the defaults used across the suite.
type testConfig struct {
	signingKey      string
	tokenExpiration int
	issuer          string
}

func (c testConfig) GetSigningKey() string {
	if c.signingKey == "" {
		return "test-signing-key-not-for-production"
	}
	return c.signingKey
}
func (c testConfig) GetSigningMethod() string { return "HS512" }
func (c testConfig) GetContextKey() string    { return "user" }
func (c testConfig) GetTokenExpiration() int {
	if c.tokenExpiration == 0 {
		return DefaultTokenExpiration
	}
	return c.tokenExpiration
}
func (c testConfig) GetTokenLookup() string { return "header:" + HeaderAuthentication }
func (c testConfig) GetAuthScheme() string  { return "" }
func (c testConfig) GetIssuer() string {
	if c.issuer == "" {
		return DefaultIssuer
	}
	return c.issuer
}

// memorySink captures emitted activity events.
type memorySink struct {
	mu     sync.Mutex
	events []ActivityEvent
}

func (s *memorySink) Record(ctx context.Context, event ActivityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *memorySink) Events() []ActivityEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ActivityEvent(nil), s.events...)
}

// memoryNotifier captures notifications instead of delivering them.
type memoryNotifier struct {
	mu   sync.Mutex
	sent []Notification
}

func (n *memoryNotifier) Send(ctx context.Context, notification Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notification)
	return nil
}

func (n *memoryNotifier) Sent() []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Notification(nil), n.sent...)
}

// seedUser registers an account directly in the store.
func seedUser(repo *memRepos, email, password string, activated bool, companyID *uuid.UUID) *User {
	hash, err := HashPassword(password)
	if err != nil {
		panic(err)
	}

	user := &User{
		FirstName:    "Test",
		LastName:     "User",
		Email:        email,
		PasswordHash: hash,
		CompanyID:    companyID,
	}
	prepareUserDefaults(user)

	if activated {
		now := time.Now()
		user.ActivatedAt = &now
	}

	repo.mu.Lock()
	repo.users[user.ID] = user
	repo.mu.Unlock()

	return user
}

// seedCompany inserts a company directly in the store.
func seedCompany(repo *memRepos, name, cvr string) *Company {
	company := &Company{ID: uuid.New(), Name: name, CVR: cvr}
	repo.mu.Lock()
	repo.companies[company.ID] = company
	repo.mu.Unlock()
	return company
}

// seedRole inserts a role directly in the store.
func seedRole(repo *memRepos, roleType string, isDefault bool) *Role {
	role := &Role{ID: uuid.New(), Type: NormalizeRoleType(roleType), IsDefault: isDefault}
	repo.mu.Lock()
	repo.roles[role.ID] = role
	repo.mu.Unlock()
	return role
}

// grantRole links a user to a role directly in the store.
func grantRole(repo *memRepos, userID, roleID uuid.UUID) {
	repo.mu.Lock()
	if repo.memberships[userID] == nil {
		repo.memberships[userID] = map[uuid.UUID]bool{}
	}
	repo.memberships[userID][roleID] = true
	repo.mu.Unlock()
}
