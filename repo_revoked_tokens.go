package auth

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

// RevokedTokens is the revocation ledger: a durable, append-only set of token
// ids keyed by the token_id claim. No update or delete operations exist here;
// purging expired rows is an external housekeeping concern.
type RevokedTokens interface {
	Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error
	RevokeTx(ctx context.Context, tx bun.IDB, tokenID string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

type revokedTokens struct {
	db *bun.DB
}

var _ RevokedTokens = (*revokedTokens)(nil)

func NewRevokedTokensRepository(db *bun.DB) RevokedTokens {
	return &revokedTokens{db: db}
}

func (a *revokedTokens) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	return a.RevokeTx(ctx, a.db, tokenID, expiresAt)
}

// RevokeTx inserts a ledger row. A duplicate insert surfaces as a conflict
// error rather than being silently ignored; renewal treats it as
// already-revoked and carries on.
func (a *revokedTokens) RevokeTx(ctx context.Context, tx bun.IDB, tokenID string, expiresAt time.Time) error {
	if tokenID == "" {
		return ErrNoEmptyString
	}

	record := &RevokedToken{
		TokenID:   tokenID,
		ExpiresAt: expiresAt,
	}

	if _, err := tx.NewInsert().Model(record).Exec(ctx); err != nil {
		if isDuplicateKeyError(err) {
			return goerrors.Wrap(err, goerrors.CategoryConflict, "token already revoked").
				WithTextCode(TextCodeTokenAlreadyRevoked).
				WithCode(goerrors.CodeConflict)
		}
		return WrapDatabaseError(err, "failed to record token revocation")
	}

	return nil
}

func (a *revokedTokens) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	if tokenID == "" {
		return false, nil
	}

	exists, err := a.db.NewSelect().
		Model((*RevokedToken)(nil)).
		Where("?TableAlias.token_id = ?", tokenID).
		Exists(ctx)

	if err != nil {
		return false, WrapDatabaseError(err, "failed to check token revocation")
	}

	return exists, nil
}

// isDuplicateKeyError matches the primary key violation text emitted by the
// sqlite and postgres drivers.
func isDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value")
}
