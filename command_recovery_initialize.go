package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// RecoveryCodeTTL bounds how long a recovery code stays usable.
const RecoveryCodeTTL = 3 * time.Hour

// InitializeAccountRecoveryMessage starts the password recovery flow. An
// unknown or inactive email is silently ignored so the endpoint cannot be
// used to probe which addresses exist.
type InitializeAccountRecoveryMessage struct {
	Email      string `json:"email"`
	OnResponse func(resp *InitializeAccountRecoveryResponse)
}

func (e InitializeAccountRecoveryMessage) Type() string { return "user.recovery_initialize" }

type InitializeAccountRecoveryResponse struct {
	CodeIssued bool
}

type InitializeAccountRecoveryHandler struct {
	repo     RepositoryManager
	notifier Notifier
	activity ActivitySink
	logger   Logger
	now      func() time.Time
}

// NewInitializeAccountRecoveryHandler creates a handler with sane defaults.
func NewInitializeAccountRecoveryHandler(repo RepositoryManager) *InitializeAccountRecoveryHandler {
	return &InitializeAccountRecoveryHandler{
		repo:     repo,
		notifier: noopNotifier{},
		activity: noopActivitySink{},
		logger:   defLogger{},
		now:      time.Now,
	}
}

// WithNotifier sets the delivery channel for the recovery code.
func (h *InitializeAccountRecoveryHandler) WithNotifier(n Notifier) *InitializeAccountRecoveryHandler {
	h.notifier = normalizeNotifier(n)
	return h
}

// WithActivitySink sets the sink used to emit recovery events.
func (h *InitializeAccountRecoveryHandler) WithActivitySink(sink ActivitySink) *InitializeAccountRecoveryHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *InitializeAccountRecoveryHandler) WithLogger(logger Logger) *InitializeAccountRecoveryHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

// WithClock injects a custom clock (useful for tests).
func (h *InitializeAccountRecoveryHandler) WithClock(clock func() time.Time) *InitializeAccountRecoveryHandler {
	if clock != nil {
		h.now = clock
	}
	return h
}

func (h *InitializeAccountRecoveryHandler) Execute(ctx context.Context, event InitializeAccountRecoveryMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during account recovery initialization",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *InitializeAccountRecoveryHandler) execute(ctx context.Context, event InitializeAccountRecoveryMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	email, err := SanitizeEmail(event.Email)
	if err != nil {
		return err
	}

	resp := &InitializeAccountRecoveryResponse{}
	user := &User{}
	code := uuid.NewString()

	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		user, err = h.repo.Users().GetByEmailTx(ctx, tx, email)
		if err != nil {
			if repository.IsRecordNotFound(err) {
				return nil
			}
			return WrapDatabaseError(err, "failed to retrieve account for recovery")
		}

		if !user.IsActive() {
			return nil
		}

		expiresAt := h.now().Add(RecoveryCodeTTL)
		if err := h.repo.Users().SetRecoveryCodeTx(ctx, tx, user.ID, code, expiresAt); err != nil {
			return WrapDatabaseError(err, "failed to store recovery code")
		}

		resp.CodeIssued = true
		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return WrapDatabaseError(err, "account recovery transaction failed")
	}

	if resp.CodeIssued {
		h.notify(ctx, user, code)
		h.recordActivity(ctx, user)
	}

	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}

func (h *InitializeAccountRecoveryHandler) notify(ctx context.Context, user *User, code string) {
	notification := Notification{
		Kind:   NotificationAccountRecovery,
		Email:  user.Email,
		UserID: user.ID.String(),
		Code:   code,
	}

	if err := normalizeNotifier(h.notifier).Send(ctx, notification); err != nil {
		h.logger.Warn("recovery notification error: %v", err)
	}
}

func (h *InitializeAccountRecoveryHandler) recordActivity(ctx context.Context, user *User) {
	event := ActivityEvent{
		EventType: ActivityEventRecoveryRequested,
		Actor: ActorRef{
			ID:   user.ID.String(),
			Type: "user",
		},
		UserID:     user.ID.String(),
		Metadata:   map[string]any{},
		OccurredAt: time.Now(),
	}

	if err := normalizeActivitySink(h.activity).Record(ctx, event); err != nil {
		h.logger.Warn("activity sink error during recovery initialization: %v", err)
	}
}
