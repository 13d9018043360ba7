package domain

// AuthStatus is the identity service's answer for an identifier that does not
// yet map to a usable session.
type AuthStatus string

const (
	AuthStatusAuthorized   AuthStatus = "authorized"
	AuthStatusPending      AuthStatus = "pending"
	AuthStatusUnauthorized AuthStatus = "unauthorized"
	AuthStatusInactive     AuthStatus = "inactive"
)

// ParseAuthStatus maps a raw string onto the status enumeration.
func ParseAuthStatus(raw string) (AuthStatus, bool) {
	switch AuthStatus(raw) {
	case AuthStatusAuthorized, AuthStatusPending, AuthStatusUnauthorized, AuthStatusInactive:
		return AuthStatus(raw), true
	}
	return "", false
}

// Terminal reports whether the status ends the current login attempt. Terminal
// statuses require administrator action and are never retried automatically.
func (s AuthStatus) Terminal() bool {
	return s == AuthStatusPending || s == AuthStatusUnauthorized || s == AuthStatusInactive
}
