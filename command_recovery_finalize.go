package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// FinalizeAccountRecoveryMessage completes the recovery flow by swapping in a
// new password. Unknown accounts, wrong codes, and expired codes all collapse
// into the same undifferentiated error.
type FinalizeAccountRecoveryMessage struct {
	UserID       uuid.UUID `json:"user_id"`
	RecoveryCode string    `json:"recovery_code"`
	Password     string    `json:"password"`
	OnResponse   func(user *User)
}

func (e FinalizeAccountRecoveryMessage) Type() string { return "user.recovery_finalize" }

type FinalizeAccountRecoveryHandler struct {
	repo     RepositoryManager
	notifier Notifier
	activity ActivitySink
	logger   Logger
	now      func() time.Time
}

// NewFinalizeAccountRecoveryHandler creates a handler with sane defaults.
func NewFinalizeAccountRecoveryHandler(repo RepositoryManager) *FinalizeAccountRecoveryHandler {
	return &FinalizeAccountRecoveryHandler{
		repo:     repo,
		notifier: noopNotifier{},
		activity: noopActivitySink{},
		logger:   defLogger{},
		now:      time.Now,
	}
}

// WithNotifier sets the delivery channel for the password change confirmation.
func (h *FinalizeAccountRecoveryHandler) WithNotifier(n Notifier) *FinalizeAccountRecoveryHandler {
	h.notifier = normalizeNotifier(n)
	return h
}

// WithActivitySink sets the sink used to emit recovery events.
func (h *FinalizeAccountRecoveryHandler) WithActivitySink(sink ActivitySink) *FinalizeAccountRecoveryHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *FinalizeAccountRecoveryHandler) WithLogger(logger Logger) *FinalizeAccountRecoveryHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

// WithClock injects a custom clock (useful for tests).
func (h *FinalizeAccountRecoveryHandler) WithClock(clock func() time.Time) *FinalizeAccountRecoveryHandler {
	if clock != nil {
		h.now = clock
	}
	return h
}

func (h *FinalizeAccountRecoveryHandler) Execute(ctx context.Context, event FinalizeAccountRecoveryMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during account recovery finalization",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *FinalizeAccountRecoveryHandler) execute(ctx context.Context, event FinalizeAccountRecoveryMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	password, err := SanitizePassword(event.Password)
	if err != nil {
		return err
	}

	user := &User{}

	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		user, err = h.repo.Users().GetByIDTx(ctx, tx, event.UserID)
		if err != nil {
			if repository.IsRecordNotFound(err) {
				return ErrAccountRecovery
			}
			return WrapDatabaseError(err, "failed to retrieve account for recovery")
		}

		if !user.RecoveryCodeMatches(event.RecoveryCode, h.now()) {
			return ErrAccountRecovery
		}

		hash, err := HashPassword(password)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
		}

		// SetPasswordTx also clears the recovery code, so the code is
		// single use.
		if err := h.repo.Users().SetPasswordTx(ctx, tx, user.ID, hash); err != nil {
			return WrapDatabaseError(err, "failed to store new password")
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return WrapDatabaseError(err, "account recovery transaction failed")
	}

	h.notify(ctx, user)
	h.recordActivity(ctx, user)

	if event.OnResponse != nil {
		event.OnResponse(user)
	}

	return nil
}

func (h *FinalizeAccountRecoveryHandler) notify(ctx context.Context, user *User) {
	notification := Notification{
		Kind:   NotificationPasswordChanged,
		Email:  user.Email,
		UserID: user.ID.String(),
	}

	if err := normalizeNotifier(h.notifier).Send(ctx, notification); err != nil {
		h.logger.Warn("password change notification error: %v", err)
	}
}

func (h *FinalizeAccountRecoveryHandler) recordActivity(ctx context.Context, user *User) {
	event := ActivityEvent{
		EventType: ActivityEventRecoveryCompleted,
		Actor: ActorRef{
			ID:   user.ID.String(),
			Type: "user",
		},
		UserID:     user.ID.String(),
		Metadata:   map[string]any{},
		OccurredAt: time.Now(),
	}

	if err := normalizeActivitySink(h.activity).Record(ctx, event); err != nil {
		h.logger.Warn("activity sink error during recovery finalization: %v", err)
	}
}
