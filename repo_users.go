package auth

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

var setUserPasswordSQL = `UPDATE "users" AS "usr"
SET
	"password_hash" = ?,
	"recovery_code" = NULL,
	"recovery_expires_at" = NULL
WHERE
	"usr"."deleted_at" IS NULL
AND (
	"usr"."id" = ?
) RETURNING *;`

var setUserRecoveryCodeSQL = `UPDATE "users" AS "usr"
SET
	"recovery_code" = ?,
	"recovery_expires_at" = ?
WHERE
	"usr"."deleted_at" IS NULL
AND (
	"usr"."id" = ?
) RETURNING *;`

var activateUserSQL = `UPDATE "users" AS "usr"
SET
	"activated_at" = ?
WHERE
	"usr"."deleted_at" IS NULL
AND "usr"."activated_at" IS NULL
AND (
	"usr"."id" = ?
) RETURNING *;`

var deactivateUserSQL = `UPDATE "users" AS "usr"
SET
	"activated_at" = NULL
WHERE
	"usr"."id" = ?
RETURNING *;`

var attachUserCompanySQL = `UPDATE "users" AS "usr"
SET
	"company_id" = ?
WHERE
	"usr"."deleted_at" IS NULL
AND (
	"usr"."id" = ?
) RETURNING *;`

// Users is the credential store for accounts. Orchestrator flows only touch
// persistent account state through this interface.
type Users interface {
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*User, error)

	Register(ctx context.Context, user *User) (*User, error)
	RegisterTx(ctx context.Context, tx bun.IDB, user *User) (*User, error)

	ActivateTx(ctx context.Context, tx bun.IDB, id uuid.UUID, at time.Time) error
	DeactivateTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error
	AttachCompanyTx(ctx context.Context, tx bun.IDB, id uuid.UUID, companyID *uuid.UUID) error

	SetRecoveryCodeTx(ctx context.Context, tx bun.IDB, id uuid.UUID, code string, expiresAt time.Time) error
	SetPasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error
}

type users struct {
	repository.Repository[*User]
	db *bun.DB
}

var _ Users = (*users)(nil)

func NewUsersRepository(db *bun.DB) Users {
	repo := repository.NewRepository[*User](db, repository.ModelHandlers[*User]{
		NewRecord: func() *User { return &User{} },
		GetID: func(u *User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *User, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	return &users{
		Repository: repo,
		db:         db,
	}
}

func (a *users) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return a.GetByIDTx(ctx, a.db, id)
}

func (a *users) GetByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*User, error) {
	record := &User{}
	err := tx.NewSelect().
		Model(record).
		Relation("Roles").
		Relation("Company").
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{"id": id.String()})
		}
		return nil, err
	}

	return record, nil
}

func (a *users) GetByEmail(ctx context.Context, email string) (*User, error) {
	return a.GetByEmailTx(ctx, a.db, email)
}

// GetByEmailTx compares the stored address against the canonical upper-cased
// form so lookup is case-insensitive.
func (a *users) GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*User, error) {
	record := &User{}
	err := tx.NewSelect().
		Model(record).
		Relation("Roles").
		Relation("Company").
		Where("UPPER(?TableAlias.email) = ?", NormalizeEmail(email)).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{"email": email})
		}
		return nil, err
	}

	return record, nil
}

func (a *users) Register(ctx context.Context, user *User) (*User, error) {
	return a.RegisterTx(ctx, a.db, user)
}

func (a *users) RegisterTx(ctx context.Context, tx bun.IDB, user *User) (*User, error) {
	prepareUserDefaults(user)
	return a.Repository.CreateTx(ctx, tx, user)
}

// ActivateTx stamps the activation time. The guard on activated_at keeps the
// inactive to active transition one-shot at the storage level.
func (a *users) ActivateTx(ctx context.Context, tx bun.IDB, id uuid.UUID, at time.Time) error {
	return a.execReturning(ctx, tx, activateUserSQL, at, id.String())
}

func (a *users) DeactivateTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error {
	return a.execReturning(ctx, tx, deactivateUserSQL, id.String())
}

func (a *users) AttachCompanyTx(ctx context.Context, tx bun.IDB, id uuid.UUID, companyID *uuid.UUID) error {
	var value any
	if companyID != nil {
		value = companyID.String()
	}
	return a.execReturning(ctx, tx, attachUserCompanySQL, value, id.String())
}

func (a *users) SetRecoveryCodeTx(ctx context.Context, tx bun.IDB, id uuid.UUID, code string, expiresAt time.Time) error {
	return a.execReturning(ctx, tx, setUserRecoveryCodeSQL, code, expiresAt, id.String())
}

func (a *users) SetPasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error {
	return a.execReturning(ctx, tx, setUserPasswordSQL, passwordHash, id.String())
}

func (a *users) execReturning(ctx context.Context, tx bun.IDB, sql string, args ...any) error {
	res, err := a.Repository.RawTx(ctx, tx, sql, args...)
	if err != nil {
		return err
	}

	if len(res) == 0 {
		return repository.NewRecordNotFound()
	}

	return nil
}

func prepareUserDefaults(record *User) {
	if record == nil {
		return
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}

	// The activation code is minted once at creation and never regenerated.
	if record.ActivationCode == "" {
		record.ActivationCode = uuid.NewString()
	}
}
