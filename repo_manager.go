package auth

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// RepositoryManager exposes all repositories
type RepositoryManager interface {
	repository.Validator
	repository.TransactionManager
	Users() Users
	Roles() Roles
	Companies() Companies
	RevokedTokens() RevokedTokens
}

type mngr struct {
	db            *bun.DB
	users         Users
	roles         Roles
	companies     Companies
	revokedTokens RevokedTokens
}

func NewRepositoryManager(db *bun.DB) RepositoryManager {
	RegisterModels(db)

	return &mngr{
		db:            db,
		users:         NewUsersRepository(db),
		roles:         NewRolesRepository(db),
		companies:     NewCompaniesRepository(db),
		revokedTokens: NewRevokedTokensRepository(db),
	}
}

// RegisterModels registers the many-to-many membership model with bun so
// relation queries can traverse it.
func RegisterModels(db *bun.DB) {
	db.RegisterModel((*UserRole)(nil))
}

func (m mngr) Validate() error {
	if m.users == nil {
		return errors.New("repository users should be initialized")
	}

	if m.roles == nil {
		return errors.New("repository roles should be initialized")
	}

	if m.companies == nil {
		return errors.New("repository companies should be initialized")
	}

	if m.revokedTokens == nil {
		return errors.New("repository revokedTokens should be initialized")
	}

	return nil
}

func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m mngr) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

func (m mngr) Users() Users {
	return m.users
}

func (m mngr) Roles() Roles {
	return m.roles
}

func (m mngr) Companies() Companies {
	return m.companies
}

func (m mngr) RevokedTokens() RevokedTokens {
	return m.revokedTokens
}
