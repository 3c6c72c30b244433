package auth

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActivateAccountHandler(t *testing.T) {
	ctx := context.Background()

	setup := func() (*memRepos, *User) {
		repo := newMemRepos()
		company := seedCompany(repo, "Acme ApS", "12345678")
		user := seedUser(repo, "worker@test.dk", "correct-horse", false, &company.ID)
		seedRole(repo, RoleTypeUser, true)
		return repo, user
	}

	t.Run("activates with the correct code and grants default roles", func(t *testing.T) {
		repo, user := setup()
		notifier := &memoryNotifier{}
		sink := &memorySink{}

		handler := NewActivateAccountHandler(repo).
			WithNotifier(notifier).
			WithActivitySink(sink)

		var resp *ActivateAccountResponse
		err := handler.Execute(ctx, ActivateAccountMessage{
			UserID:         user.ID,
			ActivationCode: user.ActivationCode,
			OnResponse:     func(r *ActivateAccountResponse) { resp = r },
		})
		require.NoError(t, err)
		require.NotNil(t, resp)
		assert.False(t, resp.AlreadyActive)
		assert.True(t, resp.User.IsActive())
		assert.True(t, resp.User.HasRole(RoleTypeUser))

		sent := notifier.Sent()
		require.Len(t, sent, 1)
		assert.Equal(t, NotificationAccountActivated, sent[0].Kind)

		events := sink.Events()
		require.Len(t, events, 1)
		assert.Equal(t, ActivityEventUserActivated, events[0].EventType)
	})

	t.Run("wrong code leaves the account inactive", func(t *testing.T) {
		repo, user := setup()
		handler := NewActivateAccountHandler(repo)

		err := handler.Execute(ctx, ActivateAccountMessage{
			UserID:         user.ID,
			ActivationCode: "wrong-code",
		})
		require.Error(t, err)
		assert.True(t, IsActivationError(err))

		stored, err := repo.Users().GetByID(ctx, user.ID)
		require.NoError(t, err)
		assert.False(t, stored.IsActivated())
	})

	t.Run("unknown account yields the same error", func(t *testing.T) {
		repo, _ := setup()
		handler := NewActivateAccountHandler(repo)

		err := handler.Execute(ctx, ActivateAccountMessage{
			UserID:         uuid.New(),
			ActivationCode: "whatever",
		})
		require.Error(t, err)
		assert.True(t, IsActivationError(err))
	})

	t.Run("no company attached blocks activation", func(t *testing.T) {
		repo := newMemRepos()
		user := seedUser(repo, "worker@test.dk", "correct-horse", false, nil)
		handler := NewActivateAccountHandler(repo)

		err := handler.Execute(ctx, ActivateAccountMessage{
			UserID:         user.ID,
			ActivationCode: user.ActivationCode,
		})
		require.Error(t, err)
		assert.True(t, IsActivationError(err))
	})

	t.Run("soft deleted account cannot activate", func(t *testing.T) {
		repo, user := setup()
		now := time.Now()
		repo.users[user.ID].DeletedAt = &now

		handler := NewActivateAccountHandler(repo)

		err := handler.Execute(ctx, ActivateAccountMessage{
			UserID:         user.ID,
			ActivationCode: user.ActivationCode,
		})
		require.Error(t, err)
		assert.True(t, IsActivationError(err))
	})

	t.Run("re-presenting the correct code is an idempotent no-op", func(t *testing.T) {
		repo, user := setup()
		notifier := &memoryNotifier{}

		handler := NewActivateAccountHandler(repo).WithNotifier(notifier)

		err := handler.Execute(ctx, ActivateAccountMessage{
			UserID:         user.ID,
			ActivationCode: user.ActivationCode,
		})
		require.NoError(t, err)

		var resp *ActivateAccountResponse
		err = handler.Execute(ctx, ActivateAccountMessage{
			UserID:         user.ID,
			ActivationCode: user.ActivationCode,
			OnResponse:     func(r *ActivateAccountResponse) { resp = r },
		})
		require.NoError(t, err)
		require.NotNil(t, resp)
		assert.True(t, resp.AlreadyActive)

		// No duplicate default role, no second notification.
		assert.Len(t, resp.User.Roles, 1)
		assert.Len(t, notifier.Sent(), 1)
	})

	t.Run("activation timestamp comes from the injected clock", func(t *testing.T) {
		repo, user := setup()
		at := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

		handler := NewActivateAccountHandler(repo).WithClock(func() time.Time { return at })

		var resp *ActivateAccountResponse
		err := handler.Execute(ctx, ActivateAccountMessage{
			UserID:         user.ID,
			ActivationCode: user.ActivationCode,
			OnResponse:     func(r *ActivateAccountResponse) { resp = r },
		})
		require.NoError(t, err)
		require.NotNil(t, resp.User.ActivatedAt)
		assert.Equal(t, at, *resp.User.ActivatedAt)
	})
}
