package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AuthClaims is the read side of a parsed bearer token.
type AuthClaims interface {
	Subject() string
	UserID() string
	TokenID() string
	RoleNames() []string
	HasRole(roleType string) bool
	Expires() time.Time
	IssuedAt() time.Time
}

// JWTClaims is the concrete claim set carried by issued tokens. Roles are a
// point-in-time snapshot taken at issuance; granting or revoking a role has no
// effect on tokens already in flight.
type JWTClaims struct {
	jwt.RegisteredClaims
	UID   string `json:"user_id,omitempty"`
	Roles string `json:"roles,omitempty"`
	TID   string `json:"token_id,omitempty"`
}

var _ AuthClaims = (*JWTClaims)(nil)

// Subject returns the subject claim
func (c *JWTClaims) Subject() string {
	return c.RegisteredClaims.Subject
}

// UserID returns the account id, falling back to the subject claim.
func (c *JWTClaims) UserID() string {
	if c.UID != "" {
		return c.UID
	}
	return c.Subject()
}

// TokenID returns the random revocation key minted at issuance.
func (c *JWTClaims) TokenID() string {
	return c.TID
}

// RoleNames returns the role snapshot embedded at issuance.
func (c *JWTClaims) RoleNames() []string {
	return SplitRoleNames(c.Roles)
}

// HasRole checks the embedded snapshot, not the database.
func (c *JWTClaims) HasRole(roleType string) bool {
	normalized := NormalizeRoleType(roleType)
	for _, name := range c.RoleNames() {
		if name == normalized {
			return true
		}
	}
	return false
}

// Expires returns the expiration time
func (c *JWTClaims) Expires() time.Time {
	if c.RegisteredClaims.ExpiresAt != nil {
		return c.RegisteredClaims.ExpiresAt.Time
	}
	return time.Time{}
}

// IssuedAt returns the issued at time
func (c *JWTClaims) IssuedAt() time.Time {
	if c.RegisteredClaims.IssuedAt != nil {
		return c.RegisteredClaims.IssuedAt.Time
	}
	return time.Time{}
}
