package auth

import "strings"

// Well known role types. Installations may define more; the gate only compares
// normalized names.
const (
	RoleTypeUser    = "USER"
	RoleTypeHR      = "HR"
	RoleTypeManager = "MANAGER"
	RoleTypeAdmin   = "ADMIN"
)

const roleNameSeparator = ","

// NormalizeRoleType upper-cases and trims a role type name. Role comparison is
// case-insensitive everywhere.
func NormalizeRoleType(roleType string) string {
	return strings.ToUpper(strings.TrimSpace(roleType))
}

// JoinRoleNames renders a role name snapshot as the comma-joined claim value.
func JoinRoleNames(names []string) string {
	if len(names) == 0 {
		return ""
	}
	normalized := make([]string, 0, len(names))
	for _, name := range names {
		if n := NormalizeRoleType(name); n != "" {
			normalized = append(normalized, n)
		}
	}
	return strings.Join(normalized, roleNameSeparator)
}

// SplitRoleNames parses the comma-joined claim value back into role names.
func SplitRoleNames(joined string) []string {
	if strings.TrimSpace(joined) == "" {
		return nil
	}
	parts := strings.Split(joined, roleNameSeparator)
	names := make([]string, 0, len(parts))
	for _, part := range parts {
		if n := NormalizeRoleType(part); n != "" {
			names = append(names, n)
		}
	}
	return names
}
