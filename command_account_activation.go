package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ActivateAccountMessage flips an account from inactive to active when the
// presented code matches. The account must already have a company attached;
// the invited-employee flow pre-assigns it at registration.
type ActivateAccountMessage struct {
	UserID         uuid.UUID `json:"user_id"`
	ActivationCode string    `json:"activation_code"`
	OnResponse     func(resp *ActivateAccountResponse)
}

func (e ActivateAccountMessage) Type() string { return "user.activate" }

type ActivateAccountResponse struct {
	User          *User
	AlreadyActive bool
}

type ActivateAccountHandler struct {
	repo     RepositoryManager
	notifier Notifier
	activity ActivitySink
	logger   Logger
	now      func() time.Time
}

// NewActivateAccountHandler creates a handler with sane defaults.
func NewActivateAccountHandler(repo RepositoryManager) *ActivateAccountHandler {
	return &ActivateAccountHandler{
		repo:     repo,
		notifier: noopNotifier{},
		activity: noopActivitySink{},
		logger:   defLogger{},
		now:      time.Now,
	}
}

// WithNotifier sets the delivery channel for the activation confirmation.
func (h *ActivateAccountHandler) WithNotifier(n Notifier) *ActivateAccountHandler {
	h.notifier = normalizeNotifier(n)
	return h
}

// WithActivitySink sets the sink used to emit activation events.
func (h *ActivateAccountHandler) WithActivitySink(sink ActivitySink) *ActivateAccountHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *ActivateAccountHandler) WithLogger(logger Logger) *ActivateAccountHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

// WithClock injects a custom clock (useful for tests).
func (h *ActivateAccountHandler) WithClock(clock func() time.Time) *ActivateAccountHandler {
	if clock != nil {
		h.now = clock
	}
	return h
}

func (h *ActivateAccountHandler) Execute(ctx context.Context, event ActivateAccountMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during account activation",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *ActivateAccountHandler) execute(ctx context.Context, event ActivateAccountMessage) error {
	resp := &ActivateAccountResponse{}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		resp, err = activateAccount(ctx, tx, h.repo, event.UserID, event.ActivationCode, h.now())
		return err
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return WrapDatabaseError(err, "account activation transaction failed")
	}

	if !resp.AlreadyActive {
		h.notify(ctx, resp.User)
		h.recordActivity(ctx, resp.User)
	}

	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}

func (h *ActivateAccountHandler) notify(ctx context.Context, user *User) {
	notification := Notification{
		Kind:   NotificationAccountActivated,
		Email:  user.Email,
		UserID: user.ID.String(),
	}

	if err := normalizeNotifier(h.notifier).Send(ctx, notification); err != nil {
		h.logger.Warn("activation notification error: %v", err)
	}
}

func (h *ActivateAccountHandler) recordActivity(ctx context.Context, user *User) {
	event := ActivityEvent{
		EventType: ActivityEventUserActivated,
		Actor: ActorRef{
			ID:   user.ID.String(),
			Type: "user",
		},
		UserID:     user.ID.String(),
		Metadata:   map[string]any{},
		OccurredAt: time.Now(),
	}

	if err := normalizeActivitySink(h.activity).Record(ctx, event); err != nil {
		h.logger.Warn("activity sink error during activation: %v", err)
	}
}

// activateAccount applies the single-account activation rule. Every invalid
// combination (unknown account, soft deleted, no company, code mismatch)
// yields the same undifferentiated error. Re-presenting the correct code once
// active is a no-op success and grants nothing twice.
func activateAccount(ctx context.Context, tx bun.IDB, repo RepositoryManager, userID uuid.UUID, code string, now time.Time) (*ActivateAccountResponse, error) {
	user, err := repo.Users().GetByIDTx(ctx, tx, userID)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrAccountActivation
		}
		return nil, WrapDatabaseError(err, "failed to retrieve account for activation")
	}

	if user.DeletedAt != nil || !user.HasCompany() {
		return nil, ErrAccountActivation
	}

	if user.ActivationCode != code {
		return nil, ErrAccountActivation
	}

	if user.IsActivated() {
		return &ActivateAccountResponse{User: user, AlreadyActive: true}, nil
	}

	if err := repo.Users().ActivateTx(ctx, tx, user.ID, now); err != nil {
		return nil, WrapDatabaseError(err, "failed to stamp activation")
	}

	defaults, err := repo.Roles().ListDefaultsTx(ctx, tx)
	if err != nil {
		return nil, WrapDatabaseError(err, "failed to list default roles")
	}

	for _, role := range defaults {
		if err := repo.Roles().AssignTx(ctx, tx, user.ID, role.ID); err != nil {
			return nil, WrapDatabaseError(err, "failed to grant default role")
		}
	}

	user, err = repo.Users().GetByIDTx(ctx, tx, user.ID)
	if err != nil {
		return nil, WrapDatabaseError(err, "failed to reload activated account")
	}

	return &ActivateAccountResponse{User: user}, nil
}
