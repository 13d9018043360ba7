package domain

import "time"

// AccountStatus represents lifecycle states for a portal account.
type AccountStatus string

const (
	AccountStatusActive   AccountStatus = "ACTIVE"
	AccountStatusPending  AccountStatus = "PENDING"
	AccountStatusInactive AccountStatus = "INACTIVE"
)

// Account is the identity-service record for an employee. PasswordHash is
// empty for accounts that authenticate with one-time verification codes only.
type Account struct {
	ID           string
	Name         string
	Email        string
	Phone        string
	PasswordHash string
	Role         Role
	Status       AccountStatus
	InviteCode   string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// AuthStatus derives the login-flow status reported for this account.
func (a *Account) AuthStatus() AuthStatus {
	switch a.Status {
	case AccountStatusActive:
		return AuthStatusAuthorized
	case AccountStatusPending:
		return AuthStatusPending
	case AccountStatusInactive:
		return AuthStatusInactive
	}
	return AuthStatusUnauthorized
}
