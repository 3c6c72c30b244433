package auth

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"

	"github.com/hireflow/go-auth/middleware/tokenware"
)

// HeaderAuthentication is the custom header carrying the raw bearer token.
// No scheme prefix: the header value is the token itself.
const HeaderAuthentication = "Authentication"

// LoginPayload is the request body for the login endpoint.
type LoginPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RouteAuthenticator wires the Auther and the revocation ledger into HTTP
// routes: login, logout, renewal, and the protected-route middleware.
type RouteAuthenticator struct {
	auth         *Auther
	cfg          Config
	Logger       Logger
	ErrorHandler func(c router.Context, err error) error
}

func NewHTTPAuthenticator(auther *Auther, cfg Config) (*RouteAuthenticator, error) {
	if auther == nil {
		return nil, goerrors.New("authenticator must not be nil", goerrors.CategoryBadInput)
	}

	a := &RouteAuthenticator{
		cfg:    cfg,
		auth:   auther,
		Logger: defLogger{},
	}

	a.ErrorHandler = a.defaultErrHandler

	return a, nil
}

// ProtectedRoute guards a route group. With a non-empty requiredRole a valid
// token without the role is rejected with 403; identity failures stay 401.
// Without a required role the route accepts anonymous requests, but a
// presented token must still be valid.
func (a *RouteAuthenticator) ProtectedRoute(requiredRole string) router.MiddlewareFunc {
	tokenLookup := a.cfg.GetTokenLookup()
	if tokenLookup == "" {
		tokenLookup = "header:" + HeaderAuthentication
	}

	return tokenware.New(tokenware.Config{
		TokenValidator: &tokenValidatorAdapter{service: a.auth.TokenService()},
		Revocations:    a.auth.repo.RevokedTokens(),
		ContextKey:     a.cfg.GetContextKey(),
		TokenLookup:    tokenLookup,
		AuthScheme:     a.cfg.GetAuthScheme(),
		RequiredRole:   requiredRole,
		Optional:       requiredRole == "",
		ErrorHandler:   a.ErrorHandler,
		ContextEnricher: func(c context.Context, claims tokenware.AuthClaims) context.Context {
			if authClaims, ok := claims.(AuthClaims); ok {
				return WithClaimsContext(c, authClaims)
			}
			return c
		},
	})
}

// Login verifies credentials and answers with a fresh token in both the
// response body and the Authentication header.
func (a *RouteAuthenticator) Login(ctx router.Context) error {
	payload := &LoginPayload{}
	if err := ctx.Bind(payload); err != nil {
		return a.ErrorHandler(ctx, goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid login payload").
			WithTextCode(TextCodeInvalidInput).
			WithCode(goerrors.CodeBadRequest))
	}

	token, err := a.auth.LoginToken(ctx.Context(), payload.Email, payload.Password)
	if err != nil {
		a.Logger.Error("Login error: %v", err)
		return a.ErrorHandler(ctx, err)
	}

	ctx.SetHeader(HeaderAuthentication, token)
	return ctx.JSON(router.StatusOK, map[string]string{
		"token": token,
	})
}

// Logout revokes the presented token. The endpoint answers 200 even when
// revocation fails; the token expires on its own either way.
func (a *RouteAuthenticator) Logout(ctx router.Context) error {
	raw := ctx.GetString(HeaderAuthentication, "")
	if raw != "" {
		if err := a.auth.Logout(ctx.Context(), raw); err != nil {
			a.Logger.Warn("Logout error: %v", err)
		}
	}

	return ctx.JSON(router.StatusOK, map[string]string{
		"status": "logged out",
	})
}

// Renew exchanges a still-valid token for a fresh one. Any failure means the
// caller must authenticate again.
func (a *RouteAuthenticator) Renew(ctx router.Context) error {
	raw := ctx.GetString(HeaderAuthentication, "")
	if raw == "" {
		return a.ErrorHandler(ctx, tokenware.ErrTokenMissing)
	}

	token, err := a.auth.Renew(ctx.Context(), raw)
	if err != nil {
		a.Logger.Error("Renew error: %v", err)
		return a.ErrorHandler(ctx, err)
	}

	ctx.SetHeader(HeaderAuthentication, token)
	return ctx.JSON(router.StatusOK, map[string]string{
		"token": token,
	})
}

func (a *RouteAuthenticator) defaultErrHandler(c router.Context, err error) error {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		richErr = goerrors.Wrap(err, goerrors.CategoryInternal, "An unexpected server error occurred").
			WithCode(goerrors.CodeInternal)
	}

	a.Logger.Info(
		"HTTP auth error: %s text_code=%s details=%s",
		richErr.Message,
		richErr.TextCode,
		print.MaybePrettyJSON(richErr.Metadata),
	)

	status := richErr.Code
	if status == 0 {
		status = router.StatusInternalServerError
	}

	return c.JSON(status, map[string]string{
		"error":     richErr.Message,
		"text_code": richErr.TextCode,
	})
}

// tokenValidatorAdapter narrows TokenService to the middleware's validator
// interface.
type tokenValidatorAdapter struct {
	service TokenService
}

func (a *tokenValidatorAdapter) Validate(tokenString string) (tokenware.AuthClaims, error) {
	claims, err := a.service.Validate(tokenString)
	if err != nil {
		return nil, err
	}
	return claims, nil
}
