package auth

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// User is an account on the platform. An account is "active" only when it has
// been activated and not soft deleted.
type User struct {
	bun.BaseModel     `bun:"table:users,alias:usr"`
	ID                uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	FirstName         string     `bun:"first_name" json:"first_name,omitempty"`
	LastName          string     `bun:"last_name" json:"last_name,omitempty"`
	Email             string     `bun:"email,notnull,unique" json:"email,omitempty"`
	Phone             string     `bun:"phone_number" json:"phone_number,omitempty"`
	PasswordHash      string     `bun:"password_hash,notnull" json:"-"`
	ActivationCode    string     `bun:"activation_code,notnull" json:"-"`
	RecoveryCode      *string    `bun:"recovery_code,nullzero" json:"-"`
	RecoveryExpiresAt *time.Time `bun:"recovery_expires_at,nullzero" json:"-"`
	CompanyID         *uuid.UUID `bun:"company_id,nullzero,type:uuid" json:"company_id,omitempty"`
	Company           *Company   `bun:"rel:belongs-to,join:company_id=id" json:"company,omitempty"`
	Roles             []*Role    `bun:"m2m:user_roles,join:User=Role" json:"roles,omitempty"`
	CreatedAt         *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt         *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	ActivatedAt       *time.Time `bun:"activated_at,nullzero" json:"activated_at,omitempty"`
	DeletedAt         *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// IsActivated reports whether the account completed activation.
func (u *User) IsActivated() bool {
	return u != nil && u.ActivatedAt != nil
}

// IsActive reports whether the account is activated and not soft deleted.
func (u *User) IsActive() bool {
	return u.IsActivated() && u.DeletedAt == nil
}

// HasCompany reports whether the account has a company attached.
func (u *User) HasCompany() bool {
	return u != nil && u.CompanyID != nil
}

// RoleNames returns the loaded role type names.
func (u *User) RoleNames() []string {
	if u == nil || len(u.Roles) == 0 {
		return nil
	}
	names := make([]string, 0, len(u.Roles))
	for _, role := range u.Roles {
		if role != nil {
			names = append(names, role.Type)
		}
	}
	return names
}

// HasRole checks the loaded roles for the given type name.
func (u *User) HasRole(roleType string) bool {
	normalized := NormalizeRoleType(roleType)
	for _, name := range u.RoleNames() {
		if name == normalized {
			return true
		}
	}
	return false
}

// RecoveryCodeMatches reports whether the pending recovery code matches and is
// still usable at the given instant. A code is usable strictly before its
// expiry.
func (u *User) RecoveryCodeMatches(code string, now time.Time) bool {
	if u == nil || u.RecoveryCode == nil || u.RecoveryExpiresAt == nil {
		return false
	}
	if !now.Before(*u.RecoveryExpiresAt) {
		return false
	}
	return *u.RecoveryCode == code
}

// Role is a named grant. Roles flagged as default are granted automatically
// when an account activates.
type Role struct {
	bun.BaseModel `bun:"table:roles,alias:rl"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Type          string     `bun:"type,notnull,unique" json:"type,omitempty"`
	IsDefault     bool       `bun:"is_default" json:"is_default,omitempty"`
	Users         []*User    `bun:"m2m:user_roles,join:Role=User" json:"users,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// UserRole is the explicit membership row between users and roles. Both sides
// of the relationship are updated through this single table.
type UserRole struct {
	bun.BaseModel `bun:"table:user_roles,alias:usr_rl"`
	UserID        uuid.UUID `bun:"user_id,pk,type:uuid" json:"user_id,omitempty"`
	User          *User     `bun:"rel:belongs-to,join:user_id=id" json:"user,omitempty"`
	RoleID        uuid.UUID `bun:"role_id,pk,type:uuid" json:"role_id,omitempty"`
	Role          *Role     `bun:"rel:belongs-to,join:role_id=id" json:"role,omitempty"`
}

// Company is the organization an account belongs to once activated.
type Company struct {
	bun.BaseModel `bun:"table:companies,alias:cmp"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Name          string     `bun:"name,notnull" json:"name,omitempty"`
	CVR           string     `bun:"cvr,notnull,unique" json:"cvr,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	DeletedAt     *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// RevokedToken is an append-only ledger row keyed by token_id. Rows are never
// updated; expired rows are eligible for an external sweeper.
type RevokedToken struct {
	bun.BaseModel `bun:"table:revoked_tokens,alias:rvk"`
	TokenID       string     `bun:"token_id,pk" json:"token_id,omitempty"`
	ExpiresAt     time.Time  `bun:"expires_at,notnull" json:"expires_at,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}
