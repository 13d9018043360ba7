package login

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/abz-agency/employee-portal/internal/domain"
	"github.com/abz-agency/employee-portal/internal/identity"
	"github.com/abz-agency/employee-portal/internal/session"
)

// State is the explicit position in the multi-step login flow.
type State string

const (
	// StatePhone collects the identifier (phone or email).
	StatePhone State = "phone"
	// StateVerification collects a one-time verification code.
	StateVerification State = "verification"
	// StatePassword collects a password.
	StatePassword State = "password"
	// StateComplete means a session has been issued.
	StateComplete State = "complete"
	// StateUnauthorized and StatePending are terminal: they require
	// administrator action and are only cleared by a fresh InitiateLogin.
	StateUnauthorized State = "unauthorized"
	StatePending      State = "pending"
)

// Machine drives one visitor from unauthenticated to an issued session. A
// network failure during any transition leaves the machine in its prior
// state; the caller may simply retry.
type Machine struct {
	svc           identity.Service
	logger        *zap.Logger
	defaultTTL    time.Duration
	rememberMeTTL time.Duration

	state      State
	identifier string
	status     domain.AuthStatus
	profile    *domain.Profile
}

// NewMachine builds a Machine in the initial phone state.
func NewMachine(svc identity.Service, defaultTTL, rememberMeTTL time.Duration, logger *zap.Logger) *Machine {
	return &Machine{
		svc:           svc,
		logger:        logger,
		defaultTTL:    defaultTTL,
		rememberMeTTL: rememberMeTTL,
		state:         StatePhone,
	}
}

// State returns the current flow position.
func (m *Machine) State() State { return m.state }

// Status returns the last authorization status reported by the identity
// service, meaningful in the terminal states.
func (m *Machine) Status() domain.AuthStatus { return m.status }

// Profile returns the cached profile snapshot once the flow is complete.
func (m *Machine) Profile() *domain.Profile { return m.profile }

// InitiateLogin submits the identifier and decides how the flow continues.
// It is the only transition allowed to leave a terminal state: stale
// unauthorized flags never expire on their own, they are re-evaluated here.
func (m *Machine) InitiateLogin(ctx context.Context, identifier, email, inviteCode string) (State, error) {
	result, err := m.svc.Login(ctx, identity.LoginRequest{
		Identifier: identifier,
		Email:      email,
		InviteCode: inviteCode,
	})
	if err != nil {
		return m.state, err
	}

	m.identifier = identifier
	m.status = ""
	m.profile = nil

	switch {
	case result.HasPassword:
		m.state = StatePassword
	case result.AuthStatus == domain.AuthStatusAuthorized:
		m.state = StateVerification
	default:
		m.toTerminal(result.AuthStatus)
	}
	return m.state, nil
}

// LoginWithPassword submits the password. A deactivated account never
// authenticates, even against the correct password.
func (m *Machine) LoginWithPassword(ctx context.Context, store *session.Store, identifier, password string, rememberMe bool) (State, error) {
	result, err := m.svc.Login(ctx, identity.LoginRequest{
		Identifier: identifier,
		Password:   password,
		RememberMe: rememberMe,
	})
	if err != nil {
		return m.state, err
	}
	return m.completeOrFail(ctx, store, result, rememberMe), nil
}

// VerifyCode submits a one-time verification code.
func (m *Machine) VerifyCode(ctx context.Context, store *session.Store, identifier, code, inviteCode string, rememberMe bool) (State, error) {
	result, err := m.svc.Login(ctx, identity.LoginRequest{
		Identifier:       identifier,
		VerificationCode: code,
		InviteCode:       inviteCode,
		RememberMe:       rememberMe,
	})
	if err != nil {
		return m.state, err
	}
	return m.completeOrFail(ctx, store, result, rememberMe), nil
}

func (m *Machine) completeOrFail(ctx context.Context, store *session.Store, result *identity.LoginResult, rememberMe bool) State {
	if !result.Success {
		m.toTerminal(result.AuthStatus)
		return m.state
	}

	ttl := m.defaultTTL
	if rememberMe {
		ttl = m.rememberMeTTL
	}
	store.Save(ctx, result.Token, ttl)
	if result.User != nil {
		m.profile = &domain.Profile{
			UserID: result.User.ID,
			Name:   result.User.Name,
			Email:  result.User.Email,
			Role:   result.User.Role,
		}
	}
	m.status = domain.AuthStatusAuthorized
	m.state = StateComplete
	return m.state
}

func (m *Machine) toTerminal(status domain.AuthStatus) {
	m.status = status
	switch status {
	case domain.AuthStatusPending:
		m.state = StatePending
	default:
		// unauthorized, inactive and anything unrecognised all land in the
		// unauthorized terminal state; the recorded status keeps the detail.
		m.state = StateUnauthorized
	}
	m.logger.Info("login attempt blocked",
		zap.String("identifier", m.identifier),
		zap.String("status", string(status)),
	)
}
