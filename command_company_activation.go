package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ActivateAccountWithCompanyMessage serves the self-service "register and
// create your own company" flow: a new company row is created, attached to
// the account, and the account is activated against it. The three writes do
// not share a transaction, so failures after the company insert are unwound
// by compensating actions rather than a rollback.
type ActivateAccountWithCompanyMessage struct {
	UserID         uuid.UUID `json:"user_id"`
	ActivationCode string    `json:"activation_code"`
	CompanyName    string    `json:"company_name"`
	CompanyCVR     string    `json:"company_cvr"`
	OnResponse     func(resp *ActivateAccountResponse)
}

func (e ActivateAccountWithCompanyMessage) Type() string { return "user.activate_with_company" }

type ActivateAccountWithCompanyHandler struct {
	repo     RepositoryManager
	notifier Notifier
	activity ActivitySink
	logger   Logger
	now      func() time.Time
}

// NewActivateAccountWithCompanyHandler creates a handler with sane defaults.
func NewActivateAccountWithCompanyHandler(repo RepositoryManager) *ActivateAccountWithCompanyHandler {
	return &ActivateAccountWithCompanyHandler{
		repo:     repo,
		notifier: noopNotifier{},
		activity: noopActivitySink{},
		logger:   defLogger{},
		now:      time.Now,
	}
}

// WithNotifier sets the delivery channel for the activation confirmation.
func (h *ActivateAccountWithCompanyHandler) WithNotifier(n Notifier) *ActivateAccountWithCompanyHandler {
	h.notifier = normalizeNotifier(n)
	return h
}

// WithActivitySink sets the sink used to emit activation events.
func (h *ActivateAccountWithCompanyHandler) WithActivitySink(sink ActivitySink) *ActivateAccountWithCompanyHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *ActivateAccountWithCompanyHandler) WithLogger(logger Logger) *ActivateAccountWithCompanyHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

// WithClock injects a custom clock (useful for tests).
func (h *ActivateAccountWithCompanyHandler) WithClock(clock func() time.Time) *ActivateAccountWithCompanyHandler {
	if clock != nil {
		h.now = clock
	}
	return h
}

func (h *ActivateAccountWithCompanyHandler) Execute(ctx context.Context, event ActivateAccountWithCompanyMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during account and company activation",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *ActivateAccountWithCompanyHandler) execute(ctx context.Context, event ActivateAccountWithCompanyMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	name, err := SanitizeCompanyName(event.CompanyName)
	if err != nil {
		return err
	}

	cvr, err := SanitizeCVR(event.CompanyCVR)
	if err != nil {
		return err
	}

	user, err := h.repo.Users().GetByID(ctx, event.UserID)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return ErrAccountActivation
		}
		return WrapDatabaseError(err, "failed to retrieve account for activation")
	}

	// Compensations must put back what was there before, not blank state: an
	// invited employee arrives here with a company already assigned.
	priorCompanyID := user.CompanyID
	wasActive := user.IsActivated()

	sg := NewSaga(h.logger)

	company := &Company{Name: name, CVR: cvr}
	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		company, err = h.repo.Companies().CreateTx(ctx, tx, company)
		return err
	})
	if err != nil {
		return WrapDatabaseError(err, "failed to create company")
	}
	sg.Push("delete company", func(ctx context.Context) error {
		return h.repo.Companies().Delete(ctx, company.ID)
	})

	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return h.repo.Users().AttachCompanyTx(ctx, tx, user.ID, &company.ID)
	})
	if err != nil {
		sg.Compensate(ctx)
		return WrapDatabaseError(err, "failed to attach company to account")
	}
	sg.Push("restore prior company assignment", func(ctx context.Context) error {
		return h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			return h.repo.Users().AttachCompanyTx(ctx, tx, user.ID, priorCompanyID)
		})
	})
	if !wasActive {
		sg.Push("deactivate account", func(ctx context.Context) error {
			return h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
				return h.repo.Users().DeactivateTx(ctx, tx, user.ID)
			})
		})
	}

	resp := &ActivateAccountResponse{}
	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		resp, err = activateAccount(ctx, tx, h.repo, event.UserID, event.ActivationCode, h.now())
		return err
	})

	if err != nil {
		sg.Compensate(ctx)

		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return WrapDatabaseError(err, "account activation transaction failed")
	}

	if !resp.AlreadyActive {
		h.notify(ctx, resp.User)
		h.recordActivity(ctx, resp.User, company)
	}

	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}

func (h *ActivateAccountWithCompanyHandler) notify(ctx context.Context, user *User) {
	notification := Notification{
		Kind:   NotificationAccountActivated,
		Email:  user.Email,
		UserID: user.ID.String(),
	}

	if err := normalizeNotifier(h.notifier).Send(ctx, notification); err != nil {
		h.logger.Warn("activation notification error: %v", err)
	}
}

func (h *ActivateAccountWithCompanyHandler) recordActivity(ctx context.Context, user *User, company *Company) {
	event := ActivityEvent{
		EventType: ActivityEventUserActivated,
		Actor: ActorRef{
			ID:   user.ID.String(),
			Type: "user",
		},
		UserID: user.ID.String(),
		Metadata: map[string]any{
			"company_id": company.ID.String(),
		},
		OccurredAt: time.Now(),
	}

	if err := normalizeActivitySink(h.activity).Record(ctx, event); err != nil {
		h.logger.Warn("activity sink error during activation: %v", err)
	}
}
