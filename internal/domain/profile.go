package domain

import "time"

// Profile is the decoded identity last known to the portal for the current
// session. It is a hint for rendering decisions, never a security boundary:
// a profile is only meaningful alongside a valid token.
type Profile struct {
	UserID    string
	Name      string
	Email     string
	Role      Role
	IssuedAt  time.Time
	ExpiresAt time.Time
}
