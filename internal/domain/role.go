package domain

// Role is the closed set of portal roles carried inside session tokens.
type Role string

const (
	RoleAdmin   Role = "ADMIN"
	RoleManager Role = "MANAGER"
	RoleUser    Role = "USER"
)

// ParseRole maps a raw string onto the role enumeration.
func ParseRole(raw string) (Role, bool) {
	switch Role(raw) {
	case RoleAdmin, RoleManager, RoleUser:
		return Role(raw), true
	}
	return "", false
}

// RoleSet is a route-level role requirement. An empty set admits any
// authenticated caller.
type RoleSet map[Role]struct{}

// NewRoleSet builds a requirement from the allowed roles.
func NewRoleSet(roles ...Role) RoleSet {
	set := make(RoleSet, len(roles))
	for _, role := range roles {
		set[role] = struct{}{}
	}
	return set
}

// Satisfies reports whether the given role meets the requirement.
func (s RoleSet) Satisfies(role Role) bool {
	if len(s) == 0 {
		return role != ""
	}
	_, ok := s[role]
	return ok
}
