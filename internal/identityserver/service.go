package identityserver

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/abz-agency/employee-portal/internal/config"
	"github.com/abz-agency/employee-portal/internal/domain"
	"github.com/abz-agency/employee-portal/internal/identity"
	"github.com/abz-agency/employee-portal/internal/repository"
)

// refreshWindow bounds how long after expiry a token can still be exchanged.
const refreshWindow = 30 * 24 * time.Hour

// Sentinel errors mapped onto 401 responses by the handlers.
var (
	ErrInvalidToken    = errors.New("invalid token")
	ErrTokenNotActive  = errors.New("account not active")
	ErrRefreshExpired  = errors.New("refresh window elapsed")
	ErrUnknownAccount  = errors.New("unknown account")
)

// Service implements the identity contract the portal consumes: credential
// checks, one-time codes, token issuance, refresh, and verification.
type Service struct {
	accounts repository.AccountRepository
	codes    CodeStore
	tokens   *TokenManager
	cost     int
	logger   *zap.Logger
}

// Dependencies encapsulates collaborator requirements for the service.
type Dependencies struct {
	Accounts repository.AccountRepository
	Codes    CodeStore
}

// NewService builds the service.
func NewService(cfg config.AuthConfig, deps Dependencies, logger *zap.Logger) *Service {
	return &Service{
		accounts: deps.Accounts,
		codes:    deps.Codes,
		tokens:   NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTLMinutes),
		cost:     cfg.BcryptCost,
		logger:   logger,
	}
}

// Tokens exposes the token manager for wiring.
func (s *Service) Tokens() *TokenManager { return s.tokens }

// Login handles every step of the flow. With only an identifier it reports
// how to continue; with a credential it issues a session or the blocking
// status. It never returns an error for a rejected attempt, only for
// infrastructure failures.
func (s *Service) Login(ctx context.Context, req identity.LoginRequest) (*identity.LoginResult, error) {
	account, err := s.accounts.GetByIdentifier(ctx, req.Identifier)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &identity.LoginResult{AuthStatus: domain.AuthStatusUnauthorized}, nil
		}
		return nil, err
	}

	switch {
	case req.Password != "":
		return s.loginWithPassword(account, req.Password)
	case req.VerificationCode != "":
		return s.loginWithCode(ctx, account, req.VerificationCode)
	default:
		return s.initiate(ctx, account, req.InviteCode)
	}
}

func (s *Service) initiate(ctx context.Context, account *domain.Account, inviteCode string) (*identity.LoginResult, error) {
	if status := account.AuthStatus(); status != domain.AuthStatusAuthorized {
		return &identity.LoginResult{AuthStatus: status}, nil
	}
	if account.InviteCode != "" && account.InviteCode != inviteCode {
		return &identity.LoginResult{
			AuthStatus: domain.AuthStatusUnauthorized,
			Error:      "invite code required",
		}, nil
	}
	if account.PasswordHash != "" {
		return &identity.LoginResult{HasPassword: true}, nil
	}

	code, err := s.codes.Issue(ctx, account.Phone)
	if err != nil {
		return nil, err
	}
	// Delivery (SMS/email) is a separate concern; development builds log it.
	s.logger.Info("verification code issued",
		zap.String("account_id", account.ID),
		zap.String("code", code),
	)
	return &identity.LoginResult{AuthStatus: domain.AuthStatusAuthorized}, nil
}

func (s *Service) loginWithPassword(account *domain.Account, password string) (*identity.LoginResult, error) {
	// A deactivated or pending account never authenticates, regardless of
	// credential correctness.
	if status := account.AuthStatus(); status != domain.AuthStatusAuthorized {
		return &identity.LoginResult{AuthStatus: status}, nil
	}
	if account.PasswordHash == "" || ComparePassword(account.PasswordHash, password) != nil {
		return &identity.LoginResult{
			AuthStatus: domain.AuthStatusUnauthorized,
			Error:      "invalid credentials",
		}, nil
	}
	return s.issue(account)
}

func (s *Service) loginWithCode(ctx context.Context, account *domain.Account, code string) (*identity.LoginResult, error) {
	if status := account.AuthStatus(); status != domain.AuthStatusAuthorized {
		return &identity.LoginResult{AuthStatus: status}, nil
	}
	ok, err := s.codes.Consume(ctx, account.Phone, code)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &identity.LoginResult{
			AuthStatus: domain.AuthStatusUnauthorized,
			Error:      "invalid or expired verification code",
		}, nil
	}
	return s.issue(account)
}

func (s *Service) issue(account *domain.Account) (*identity.LoginResult, error) {
	token, _, err := s.tokens.GenerateToken(account)
	if err != nil {
		return nil, err
	}
	return &identity.LoginResult{
		Success: true,
		Token:   token,
		User:    accountUser(account),
	}, nil
}

// Refresh exchanges a stale token for a fresh one. The signature must still
// verify and the expiry must fall within the refresh window; the account is
// re-read so the new token carries the current role.
func (s *Service) Refresh(ctx context.Context, staleToken string) (*identity.RefreshResult, error) {
	claims, err := s.tokens.ParseExpired(staleToken)
	if err != nil {
		return nil, ErrInvalidToken
	}
	if claims.ExpiresAt != nil && time.Since(claims.ExpiresAt.Time) > refreshWindow {
		return nil, ErrRefreshExpired
	}

	account, err := s.accounts.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUnknownAccount
		}
		return nil, err
	}
	if account.AuthStatus() != domain.AuthStatusAuthorized {
		return nil, ErrTokenNotActive
	}

	token, _, err := s.tokens.GenerateToken(account)
	if err != nil {
		return nil, err
	}
	return &identity.RefreshResult{
		Token:     token,
		ExpiresIn: s.tokens.TTLSeconds(),
		User:      accountUser(account),
	}, nil
}

// Verify reports whether a token is currently valid and which role its
// account carries right now, so the portal can detect stale cached roles.
func (s *Service) Verify(ctx context.Context, token string) (*identity.VerifyResult, error) {
	claims, err := s.tokens.ParseToken(token)
	if err != nil {
		if errors.Is(err, ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}

	account, err := s.accounts.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUnknownAccount
		}
		return nil, err
	}
	if account.AuthStatus() != domain.AuthStatusAuthorized {
		return nil, ErrTokenNotActive
	}

	return &identity.VerifyResult{
		Success: true,
		Role:    account.Role,
		UserID:  account.ID,
	}, nil
}

func accountUser(account *domain.Account) *identity.User {
	return &identity.User{
		ID:    account.ID,
		Name:  account.Name,
		Email: account.Email,
		Role:  account.Role,
	}
}
