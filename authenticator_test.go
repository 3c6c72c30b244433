package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAuther(repo *memRepos) (*Auther, *memorySink) {
	sink := &memorySink{}
	auther := NewAuthenticator(repo, testConfig{}).WithActivitySink(sink)
	return auther, sink
}

func TestAuther_Login(t *testing.T) {
	ctx := context.Background()

	t.Run("valid credentials return the account", func(t *testing.T) {
		repo := newMemRepos()
		seeded := seedUser(repo, "worker@test.dk", "correct-horse", true, nil)
		role := seedRole(repo, RoleTypeUser, true)
		grantRole(repo, seeded.ID, role.ID)

		auther, sink := newTestAuther(repo)

		user, err := auther.Login(ctx, "worker@test.dk", "correct-horse")
		require.NoError(t, err)
		assert.Equal(t, seeded.ID, user.ID)
		assert.True(t, user.HasRole(RoleTypeUser))

		events := sink.Events()
		require.Len(t, events, 1)
		assert.Equal(t, ActivityEventLoginSuccess, events[0].EventType)
	})

	t.Run("email lookup is case-insensitive", func(t *testing.T) {
		repo := newMemRepos()
		seedUser(repo, "worker@test.dk", "correct-horse", true, nil)
		auther, _ := newTestAuther(repo)

		_, err := auther.Login(ctx, "WORKER@test.DK", "correct-horse")
		assert.NoError(t, err)
	})

	t.Run("unknown email and wrong password are indistinguishable", func(t *testing.T) {
		repo := newMemRepos()
		seedUser(repo, "worker@test.dk", "correct-horse", true, nil)
		auther, _ := newTestAuther(repo)

		_, unknownErr := auther.Login(ctx, "nobody@test.dk", "correct-horse")
		_, wrongErr := auther.Login(ctx, "worker@test.dk", "wrong-horse")

		require.Error(t, unknownErr)
		require.Error(t, wrongErr)
		assert.Equal(t, unknownErr, wrongErr)
		assert.True(t, IsAuthenticationError(unknownErr))
	})

	t.Run("unknown email pays the same hashing cost as a credential check", func(t *testing.T) {
		repo := newMemRepos()
		seedUser(repo, "worker@test.dk", "correct-horse", true, nil)
		auther, _ := newTestAuther(repo)

		// Warm the dummy hash so its one-time minting does not skew the sample.
		_, _ = auther.Login(ctx, "warmup@test.dk", "wrong-horse")

		start := time.Now()
		_, _ = auther.Login(ctx, "worker@test.dk", "wrong-horse")
		knownTook := time.Since(start)

		start = time.Now()
		_, _ = auther.Login(ctx, "nobody@test.dk", "wrong-horse")
		unknownTook := time.Since(start)

		// Both branches run one bcrypt compare; the miss must not be orders
		// of magnitude cheaper than the hit.
		assert.Greater(t, unknownTook, knownTook/5)
	})

	t.Run("inactive account cannot log in even with valid credentials", func(t *testing.T) {
		repo := newMemRepos()
		seedUser(repo, "pending@test.dk", "correct-horse", false, nil)
		auther, sink := newTestAuther(repo)

		_, err := auther.Login(ctx, "pending@test.dk", "correct-horse")
		require.Error(t, err)
		assert.True(t, IsAuthenticationError(err))

		events := sink.Events()
		require.Len(t, events, 1)
		assert.Equal(t, ActivityEventLoginFailure, events[0].EventType)
	})

	t.Run("sanitization failures propagate, not masked as auth failures", func(t *testing.T) {
		repo := newMemRepos()
		auther, _ := newTestAuther(repo)

		_, err := auther.Login(ctx, "not-an-email", "correct-horse")
		require.Error(t, err)
		assert.True(t, IsSanitizationError(err))
		assert.False(t, IsAuthenticationError(err))

		_, err = auther.Login(ctx, "worker@test.dk", "short")
		require.Error(t, err)
		assert.True(t, IsSanitizationError(err))
	})
}

func TestAuther_LoginToken(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepos()
	seeded := seedUser(repo, "worker@test.dk", "correct-horse", true, nil)
	role := seedRole(repo, RoleTypeHR, false)
	grantRole(repo, seeded.ID, role.ID)

	auther, _ := newTestAuther(repo)

	token, err := auther.LoginToken(ctx, "worker@test.dk", "correct-horse")
	require.NoError(t, err)

	claims, err := auther.TokenService().Validate(token)
	require.NoError(t, err)
	assert.Equal(t, seeded.ID.String(), claims.UserID())
	assert.True(t, claims.HasRole(RoleTypeHR))
}

func TestAuther_Logout(t *testing.T) {
	ctx := context.Background()

	t.Run("revokes the token id", func(t *testing.T) {
		repo := newMemRepos()
		seedUser(repo, "worker@test.dk", "correct-horse", true, nil)
		auther, _ := newTestAuther(repo)

		token, err := auther.LoginToken(ctx, "worker@test.dk", "correct-horse")
		require.NoError(t, err)

		claims, err := auther.TokenService().Parse(token)
		require.NoError(t, err)

		require.NoError(t, auther.Logout(ctx, token))

		revoked, err := repo.RevokedTokens().IsRevoked(ctx, claims.TokenID())
		require.NoError(t, err)
		assert.True(t, revoked)
	})

	t.Run("second logout of the same token is a no-op", func(t *testing.T) {
		repo := newMemRepos()
		seedUser(repo, "worker@test.dk", "correct-horse", true, nil)
		auther, _ := newTestAuther(repo)

		token, err := auther.LoginToken(ctx, "worker@test.dk", "correct-horse")
		require.NoError(t, err)

		require.NoError(t, auther.Logout(ctx, token))
		assert.NoError(t, auther.Logout(ctx, token))
	})

	t.Run("expired tokens can still be logged out", func(t *testing.T) {
		repo := newMemRepos()
		seeded := seedUser(repo, "worker@test.dk", "correct-horse", true, nil)

		issued := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
		minting := NewTokenService([]byte(testConfig{}.GetSigningKey()), 30, DefaultIssuer, nil,
			WithTokenClock(func() time.Time { return issued }))

		token, err := minting.Issue(repo.loadUser(repo.users[seeded.ID]))
		require.NoError(t, err)

		auther, _ := newTestAuther(repo)
		auther.WithTokenService(NewTokenService([]byte(testConfig{}.GetSigningKey()), 30, DefaultIssuer, nil,
			WithTokenClock(func() time.Time { return issued.Add(2 * time.Hour) })))

		assert.NoError(t, auther.Logout(ctx, token))
	})

	t.Run("garbage tokens are rejected", func(t *testing.T) {
		repo := newMemRepos()
		auther, _ := newTestAuther(repo)

		assert.Error(t, auther.Logout(ctx, "not.a.token"))
	})
}

func TestAuther_Renew(t *testing.T) {
	ctx := context.Background()

	t.Run("revokes the old token and issues a fresh one", func(t *testing.T) {
		repo := newMemRepos()
		seedUser(repo, "worker@test.dk", "correct-horse", true, nil)
		auther, _ := newTestAuther(repo)

		oldToken, err := auther.LoginToken(ctx, "worker@test.dk", "correct-horse")
		require.NoError(t, err)
		oldClaims, err := auther.TokenService().Parse(oldToken)
		require.NoError(t, err)

		newToken, err := auther.Renew(ctx, oldToken)
		require.NoError(t, err)
		assert.NotEqual(t, oldToken, newToken)

		revoked, err := repo.RevokedTokens().IsRevoked(ctx, oldClaims.TokenID())
		require.NoError(t, err)
		assert.True(t, revoked)

		newClaims, err := auther.TokenService().Validate(newToken)
		require.NoError(t, err)
		assert.NotEqual(t, oldClaims.TokenID(), newClaims.TokenID())
	})

	t.Run("renewed token carries a fresh role snapshot", func(t *testing.T) {
		repo := newMemRepos()
		seeded := seedUser(repo, "worker@test.dk", "correct-horse", true, nil)
		userRole := seedRole(repo, RoleTypeUser, true)
		grantRole(repo, seeded.ID, userRole.ID)

		auther, _ := newTestAuther(repo)

		oldToken, err := auther.LoginToken(ctx, "worker@test.dk", "correct-horse")
		require.NoError(t, err)

		// Role granted after issuance: invisible to the old token.
		adminRole := seedRole(repo, RoleTypeAdmin, false)
		grantRole(repo, seeded.ID, adminRole.ID)

		oldClaims, err := auther.TokenService().Parse(oldToken)
		require.NoError(t, err)
		assert.False(t, oldClaims.HasRole(RoleTypeAdmin))

		newToken, err := auther.Renew(ctx, oldToken)
		require.NoError(t, err)

		newClaims, err := auther.TokenService().Validate(newToken)
		require.NoError(t, err)
		assert.True(t, newClaims.HasRole(RoleTypeAdmin))
	})

	t.Run("a revoked token cannot be renewed", func(t *testing.T) {
		repo := newMemRepos()
		seedUser(repo, "worker@test.dk", "correct-horse", true, nil)
		auther, _ := newTestAuther(repo)

		token, err := auther.LoginToken(ctx, "worker@test.dk", "correct-horse")
		require.NoError(t, err)

		require.NoError(t, auther.Logout(ctx, token))

		_, err = auther.Renew(ctx, token)
		assert.ErrorIs(t, err, ErrTokenRevoked)
	})

	t.Run("renewing twice only honors the first", func(t *testing.T) {
		repo := newMemRepos()
		seedUser(repo, "worker@test.dk", "correct-horse", true, nil)
		auther, _ := newTestAuther(repo)

		token, err := auther.LoginToken(ctx, "worker@test.dk", "correct-horse")
		require.NoError(t, err)

		_, err = auther.Renew(ctx, token)
		require.NoError(t, err)

		_, err = auther.Renew(ctx, token)
		assert.ErrorIs(t, err, ErrTokenRevoked)
	})

	t.Run("an expired token cannot be renewed", func(t *testing.T) {
		repo := newMemRepos()
		seeded := seedUser(repo, "worker@test.dk", "correct-horse", true, nil)

		issued := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
		minting := NewTokenService([]byte(testConfig{}.GetSigningKey()), 30, DefaultIssuer, nil,
			WithTokenClock(func() time.Time { return issued }))
		token, err := minting.Issue(repo.loadUser(repo.users[seeded.ID]))
		require.NoError(t, err)

		auther, _ := newTestAuther(repo)
		auther.WithTokenService(NewTokenService([]byte(testConfig{}.GetSigningKey()), 30, DefaultIssuer, nil,
			WithTokenClock(func() time.Time { return issued.Add(time.Hour) })))

		_, err = auther.Renew(ctx, token)
		require.Error(t, err)
		assert.True(t, IsTokenExpiredError(err))
	})

	t.Run("a deactivated account cannot renew", func(t *testing.T) {
		repo := newMemRepos()
		seeded := seedUser(repo, "worker@test.dk", "correct-horse", true, nil)
		auther, _ := newTestAuther(repo)

		token, err := auther.LoginToken(ctx, "worker@test.dk", "correct-horse")
		require.NoError(t, err)

		require.NoError(t, repo.Users().DeactivateTx(ctx, nil, seeded.ID))

		_, err = auther.Renew(ctx, token)
		require.Error(t, err)
		assert.True(t, IsAuthenticationError(err))
	})
}
