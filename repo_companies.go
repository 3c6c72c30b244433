package auth

import (
	"context"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Companies persists the organizations accounts activate against. Delete
// exists for the co-activation compensation path.
type Companies interface {
	Create(ctx context.Context, company *Company) (*Company, error)
	CreateTx(ctx context.Context, tx bun.IDB, company *Company) (*Company, error)

	GetByID(ctx context.Context, id uuid.UUID) (*Company, error)
	GetByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*Company, error)

	Delete(ctx context.Context, id uuid.UUID) error
	DeleteTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error
}

type companies struct {
	repository.Repository[*Company]
	db *bun.DB
}

var _ Companies = (*companies)(nil)

func NewCompaniesRepository(db *bun.DB) Companies {
	repo := repository.NewRepository[*Company](db, repository.ModelHandlers[*Company]{
		NewRecord: func() *Company { return &Company{} },
		GetID: func(c *Company) uuid.UUID {
			if c == nil {
				return uuid.Nil
			}
			return c.ID
		},
		SetID: func(c *Company, id uuid.UUID) {
			if c != nil {
				c.ID = id
			}
		},
		GetIdentifier: func() string {
			return "cvr"
		},
	})

	return &companies{
		Repository: repo,
		db:         db,
	}
}

func (a *companies) Create(ctx context.Context, company *Company) (*Company, error) {
	return a.CreateTx(ctx, a.db, company)
}

func (a *companies) CreateTx(ctx context.Context, tx bun.IDB, company *Company) (*Company, error) {
	if company != nil && company.ID == uuid.Nil {
		company.ID = uuid.New()
	}
	return a.Repository.CreateTx(ctx, tx, company)
}

func (a *companies) GetByID(ctx context.Context, id uuid.UUID) (*Company, error) {
	return a.GetByIDTx(ctx, a.db, id)
}

func (a *companies) GetByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*Company, error) {
	record := &Company{}
	err := tx.NewSelect().
		Model(record).
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

func (a *companies) Delete(ctx context.Context, id uuid.UUID) error {
	return a.DeleteTx(ctx, a.db, id)
}

// DeleteTx removes the row outright rather than soft deleting: a company
// created by a failed co-activation never existed as far as callers are
// concerned.
func (a *companies) DeleteTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error {
	_, err := tx.NewDelete().
		Model((*Company)(nil)).
		Where("?TableAlias.id = ?", id).
		ForceDelete().
		Exec(ctx)

	return err
}
