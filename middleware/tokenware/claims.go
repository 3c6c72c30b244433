package tokenware

import (
	stderrors "errors"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
)

// Claims is the wire shape of the platform token. It mirrors the auth package
// claims so the middleware can run without importing it.
type Claims struct {
	jwt.RegisteredClaims
	UID   string `json:"user_id,omitempty"`
	Roles string `json:"roles,omitempty"`
	TID   string `json:"token_id,omitempty"`
}

func (c *Claims) Subject() string { return c.RegisteredClaims.Subject }
func (c *Claims) UserID() string  { return c.UID }
func (c *Claims) TokenID() string { return c.TID }

func (c *Claims) RoleNames() []string {
	if c.Roles == "" {
		return nil
	}
	parts := strings.Split(c.Roles, ",")
	names := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			names = append(names, part)
		}
	}
	return names
}

func (c *Claims) HasRole(role string) bool {
	role = strings.ToUpper(strings.TrimSpace(role))
	for _, name := range c.RoleNames() {
		if strings.ToUpper(name) == role {
			return true
		}
	}
	return false
}

// keyfuncValidator is the fallback used when no TokenValidator is injected:
// it verifies the signature and registered claims against the configured key
// material, including JWK sets.
type keyfuncValidator struct {
	keyFunc jwt.Keyfunc
}

func (v *keyfuncValidator) Validate(tokenString string) (AuthClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, v.keyFunc)
	if err != nil {
		if stderrors.Is(err, jwt.ErrTokenExpired) {
			return nil, goerrors.Wrap(err, goerrors.CategoryAuth, "token has expired").
				WithTextCode("TOKEN_EXPIRED").
				WithCode(goerrors.CodeUnauthorized)
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryAuth, "token is malformed or has an invalid signature").
			WithTextCode("TOKEN_MALFORMED").
			WithCode(goerrors.CodeUnauthorized)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, goerrors.New("token is malformed or has an invalid signature", goerrors.CategoryAuth).
			WithTextCode("TOKEN_MALFORMED").
			WithCode(goerrors.CodeUnauthorized)
	}

	return claims, nil
}
