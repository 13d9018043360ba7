package identity

import (
	"context"
	"fmt"

	"github.com/abz-agency/employee-portal/internal/domain"
)

// Service is the identity-service contract the portal consumes. The portal
// never implements authentication itself; it drives this interface and reacts
// to the reported statuses.
type Service interface {
	// Login covers the whole multi-step flow: called with only an identifier
	// it reports how the flow should continue (password vs verification code),
	// called with a credential it either issues a session or reports the
	// blocking status.
	Login(ctx context.Context, req LoginRequest) (*LoginResult, error)
	// RefreshToken exchanges a stale token for a fresh one.
	RefreshToken(ctx context.Context, staleToken string) (*RefreshResult, error)
	// VerifyToken asks the server whether a token is currently valid and
	// which role it carries right now.
	VerifyToken(ctx context.Context, token string) (*VerifyResult, error)
}

// LoginRequest is the body of POST /login.
type LoginRequest struct {
	Identifier       string `json:"identifier"`
	Email            string `json:"email,omitempty"`
	VerificationCode string `json:"verificationCode,omitempty"`
	Password         string `json:"password,omitempty"`
	InviteCode       string `json:"inviteCode,omitempty"`
	RememberMe       bool   `json:"rememberMe,omitempty"`
}

// User is the profile snapshot embedded in login and refresh responses.
type User struct {
	ID    string      `json:"id"`
	Name  string      `json:"name"`
	Email string      `json:"email"`
	Role  domain.Role `json:"role"`
}

// LoginResult is the response of POST /login.
type LoginResult struct {
	Success     bool              `json:"success"`
	Token       string            `json:"token,omitempty"`
	User        *User             `json:"user,omitempty"`
	HasPassword bool              `json:"hasPassword,omitempty"`
	AuthStatus  domain.AuthStatus `json:"authStatus,omitempty"`
	Error       string            `json:"error,omitempty"`
}

// RefreshResult is the response of POST /token-refresh.
type RefreshResult struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expiresIn"`
	User      *User  `json:"user,omitempty"`
}

// VerifyResult is the response of GET /verify-token.
type VerifyResult struct {
	Success bool        `json:"success"`
	Role    domain.Role `json:"role"`
	UserID  string      `json:"userId"`
}

// StatusError is a non-2xx response from the identity service. It is distinct
// from a transport error: the service was reached and rejected the request.
type StatusError struct {
	StatusCode int
	Message    string
	Expired    bool
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("identity service returned %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("identity service returned %d", e.StatusCode)
}

// Unauthenticated reports whether the response means the presented token is
// not (or no longer) a valid credential.
func (e *StatusError) Unauthenticated() bool {
	return e.StatusCode == 401 || e.StatusCode == 403
}
