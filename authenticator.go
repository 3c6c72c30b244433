package auth

import (
	"context"
	"sync"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

// loginDummyHash is compared against when the email lookup misses, so an
// unknown email pays the same hashing cost as a real credential check.
// Response timing must not reveal whether an account exists.
var loginDummyHash = sync.OnceValue(RandomPasswordHash)

// Auther composes the sanitizer, token codec, revocation ledger, and the
// credential store into the login, logout, and renewal flows. It holds no
// mutable shared state beyond the signing key, which is read-only after
// construction.
type Auther struct {
	repo         RepositoryManager
	signingKey   []byte
	issuer       string
	logger       Logger
	tokenService TokenService
	activitySink ActivitySink
	now          func() time.Time
}

// NewAuthenticator returns a new Authenticator
func NewAuthenticator(repo RepositoryManager, opts Config) *Auther {
	tokenService := NewTokenService(
		[]byte(opts.GetSigningKey()),
		opts.GetTokenExpiration(),
		opts.GetIssuer(),
		defLogger{},
	)

	return &Auther{
		repo:         repo,
		signingKey:   []byte(opts.GetSigningKey()),
		issuer:       opts.GetIssuer(),
		logger:       defLogger{},
		tokenService: tokenService,
		activitySink: noopActivitySink{},
		now:          time.Now,
	}
}

func (s *Auther) WithLogger(logger Logger) *Auther {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// WithActivitySink configures an ActivitySink for emitting auth events.
func (s *Auther) WithActivitySink(sink ActivitySink) *Auther {
	s.activitySink = normalizeActivitySink(sink)
	return s
}

// WithTokenService overrides the token service, e.g. to inject a clock.
func (s *Auther) WithTokenService(ts TokenService) *Auther {
	if ts != nil {
		s.tokenService = ts
	}
	return s
}

// WithClock injects a custom clock (useful for tests).
func (s *Auther) WithClock(clock func() time.Time) *Auther {
	if clock != nil {
		s.now = clock
	}
	return s
}

// TokenService returns the TokenService instance used by this Authenticator
func (s *Auther) TokenService() TokenService {
	return s.tokenService
}

// Login verifies credentials and returns the account. Unknown email, wrong
// password, and inactive accounts are indistinguishable to the caller.
// Sanitization failures propagate as-is; they never mask a security decision.
func (s *Auther) Login(ctx context.Context, email, password string) (*User, error) {
	email, err := SanitizeEmail(email)
	if err != nil {
		return nil, err
	}

	password, err = SanitizePassword(password)
	if err != nil {
		return nil, err
	}

	user, err := s.repo.Users().GetByEmail(ctx, email)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			// Burn a compare against the dummy hash so this branch is as
			// slow as the wrong-password branch.
			_ = ComparePasswordAndHash(password, loginDummyHash())
			s.emitAuthEvent(ctx, ActivityEventLoginFailure, ActorRef{Type: "unknown"}, "", map[string]any{
				"reason": "unknown email",
			})
			return nil, ErrAuthenticationFailed
		}
		return nil, WrapDatabaseError(err, "failed to look up account")
	}

	if err := ComparePasswordAndHash(password, user.PasswordHash); err != nil {
		s.emitAuthEvent(ctx, ActivityEventLoginFailure, s.actorFromUser(user), user.ID.String(), map[string]any{
			"reason": "credential mismatch",
		})
		return nil, ErrAuthenticationFailed
	}

	if !user.IsActive() {
		s.emitAuthEvent(ctx, ActivityEventLoginFailure, s.actorFromUser(user), user.ID.String(), map[string]any{
			"reason": "inactive account",
		})
		return nil, ErrAuthenticationFailed
	}

	s.emitAuthEvent(ctx, ActivityEventLoginSuccess, s.actorFromUser(user), user.ID.String(), nil)

	return user, nil
}

// LoginToken runs Login and mints a bearer token for the account.
func (s *Auther) LoginToken(ctx context.Context, email, password string) (string, error) {
	user, err := s.Login(ctx, email, password)
	if err != nil {
		return "", err
	}

	return s.tokenService.Issue(user)
}

// Logout revokes the presented token by its token_id claim, using the token's
// own expiry for the ledger row. The error return is informational: callers
// are free to ignore it, logout is best effort from their perspective.
func (s *Auther) Logout(ctx context.Context, rawToken string) error {
	claims, err := s.tokenService.Parse(rawToken)
	if err != nil {
		s.logger.Warn("Logout could not parse token: %v", err)
		return err
	}

	if err := s.repo.RevokedTokens().Revoke(ctx, claims.TokenID(), claims.Expires()); err != nil {
		if IsAlreadyRevokedError(err) {
			return nil
		}
		s.logger.Warn("Logout could not record revocation: %v", err)
		return err
	}

	s.emitAuthEvent(ctx, ActivityEventLogout, ActorRef{ID: claims.UserID(), Type: "user"}, claims.UserID(), map[string]any{
		"token_id": claims.TokenID(),
	})

	return nil
}

// Renew revokes a still-valid token and issues a fresh one with a current
// role snapshot. Any failure yields no new token; callers must treat that as
// re-authentication required.
func (s *Auther) Renew(ctx context.Context, rawToken string) (string, error) {
	claims, err := s.tokenService.Validate(rawToken)
	if err != nil {
		return "", err
	}

	revoked, err := s.repo.RevokedTokens().IsRevoked(ctx, claims.TokenID())
	if err != nil {
		return "", err
	}
	if revoked {
		return "", ErrTokenRevoked
	}

	if err := s.repo.RevokedTokens().Revoke(ctx, claims.TokenID(), claims.Expires()); err != nil {
		// Concurrent renewals race on the ledger; losing the insert means the
		// token is revoked either way.
		if !IsAlreadyRevokedError(err) {
			return "", err
		}
	}

	userID, err := uuid.Parse(claims.UserID())
	if err != nil {
		return "", ErrTokenMalformed
	}

	user, err := s.repo.Users().GetByID(ctx, userID)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return "", ErrAuthenticationFailed
		}
		return "", WrapDatabaseError(err, "failed to look up account")
	}

	if !user.IsActive() {
		return "", ErrAuthenticationFailed
	}

	token, err := s.tokenService.Issue(user)
	if err != nil {
		return "", err
	}

	s.emitAuthEvent(ctx, ActivityEventTokenRenewed, s.actorFromUser(user), user.ID.String(), map[string]any{
		"revoked_token_id": claims.TokenID(),
	})

	return token, nil
}

func (s *Auther) emitAuthEvent(ctx context.Context, eventType ActivityEventType, actor ActorRef, userID string, metadata map[string]any) {
	sink := normalizeActivitySink(s.activitySink)
	event := ActivityEvent{
		EventType: eventType,
		Actor:     actor,
		UserID:    userID,
		Metadata:  metadata,
	}

	if event.Metadata == nil {
		event.Metadata = map[string]any{}
	}

	if event.OccurredAt.IsZero() {
		event.OccurredAt = s.now()
	}

	if err := sink.Record(ctx, event); err != nil {
		s.logger.Warn("activity sink record error: %v", err)
	}
}

func (s *Auther) actorFromUser(user *User) ActorRef {
	if user == nil {
		return ActorRef{Type: "unknown"}
	}

	return ActorRef{
		ID:   user.ID.String(),
		Type: "user",
	}
}
