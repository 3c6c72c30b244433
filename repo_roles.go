package auth

import (
	"context"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Roles looks up role definitions and maintains account membership. Membership
// lives in the explicit user_roles table: one insert updates both sides of the
// relationship.
type Roles interface {
	Create(ctx context.Context, role *Role) (*Role, error)
	CreateTx(ctx context.Context, tx bun.IDB, role *Role) (*Role, error)

	GetByType(ctx context.Context, roleType string) (*Role, error)
	GetByTypeTx(ctx context.Context, tx bun.IDB, roleType string) (*Role, error)

	ListDefaults(ctx context.Context) ([]*Role, error)
	ListDefaultsTx(ctx context.Context, tx bun.IDB) ([]*Role, error)

	Assign(ctx context.Context, userID, roleID uuid.UUID) error
	AssignTx(ctx context.Context, tx bun.IDB, userID, roleID uuid.UUID) error
}

type roles struct {
	repository.Repository[*Role]
	db *bun.DB
}

var _ Roles = (*roles)(nil)

func NewRolesRepository(db *bun.DB) Roles {
	repo := repository.NewRepository[*Role](db, repository.ModelHandlers[*Role]{
		NewRecord: func() *Role { return &Role{} },
		GetID: func(r *Role) uuid.UUID {
			if r == nil {
				return uuid.Nil
			}
			return r.ID
		},
		SetID: func(r *Role, id uuid.UUID) {
			if r != nil {
				r.ID = id
			}
		},
		GetIdentifier: func() string {
			return "type"
		},
	})

	return &roles{
		Repository: repo,
		db:         db,
	}
}

func (a *roles) Create(ctx context.Context, role *Role) (*Role, error) {
	return a.CreateTx(ctx, a.db, role)
}

func (a *roles) CreateTx(ctx context.Context, tx bun.IDB, role *Role) (*Role, error) {
	if role != nil {
		if role.ID == uuid.Nil {
			role.ID = uuid.New()
		}
		role.Type = NormalizeRoleType(role.Type)
	}
	return a.Repository.CreateTx(ctx, tx, role)
}

func (a *roles) GetByType(ctx context.Context, roleType string) (*Role, error) {
	return a.GetByTypeTx(ctx, a.db, roleType)
}

func (a *roles) GetByTypeTx(ctx context.Context, tx bun.IDB, roleType string) (*Role, error) {
	record := &Role{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.type = ?", NormalizeRoleType(roleType)).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{"type": roleType})
		}
		return nil, err
	}

	return record, nil
}

func (a *roles) ListDefaults(ctx context.Context) ([]*Role, error) {
	return a.ListDefaultsTx(ctx, a.db)
}

// ListDefaultsTx returns every role currently flagged as default. More than
// one role may carry the flag.
func (a *roles) ListDefaultsTx(ctx context.Context, tx bun.IDB) ([]*Role, error) {
	var records []*Role
	err := tx.NewSelect().
		Model(&records).
		Where("?TableAlias.is_default = ?", true).
		Order("type ASC").
		Scan(ctx)

	if err != nil {
		return nil, err
	}

	return records, nil
}

func (a *roles) Assign(ctx context.Context, userID, roleID uuid.UUID) error {
	return a.AssignTx(ctx, a.db, userID, roleID)
}

// AssignTx grants a role through the membership table. The conflict clause
// makes repeated grants a no-op, so re-running activation never duplicates
// default roles.
func (a *roles) AssignTx(ctx context.Context, tx bun.IDB, userID, roleID uuid.UUID) error {
	membership := &UserRole{
		UserID: userID,
		RoleID: roleID,
	}

	_, err := tx.NewInsert().
		Model(membership).
		On("CONFLICT DO NOTHING").
		Exec(ctx)

	return err
}
