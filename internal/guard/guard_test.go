package guard

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/abz-agency/employee-portal/internal/domain"
	"github.com/abz-agency/employee-portal/internal/identity"
	"github.com/abz-agency/employee-portal/internal/observability"
	"github.com/abz-agency/employee-portal/internal/session"
)

type fakeIdentity struct {
	verifyResult *identity.VerifyResult
	verifyErr    error
	verifyCalls  int

	refreshResult *identity.RefreshResult
	refreshErr    error
	refreshCalls  int
}

func (f *fakeIdentity) Login(context.Context, identity.LoginRequest) (*identity.LoginResult, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeIdentity) RefreshToken(context.Context, string) (*identity.RefreshResult, error) {
	f.refreshCalls++
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	return f.refreshResult, nil
}

func (f *fakeIdentity) VerifyToken(context.Context, string) (*identity.VerifyResult, error) {
	f.verifyCalls++
	if f.verifyErr != nil {
		return nil, f.verifyErr
	}
	return f.verifyResult, nil
}

func signToken(t *testing.T, subject string, role domain.Role, expiresAt time.Time) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub":  subject,
		"role": string(role),
		"exp":  expiresAt.Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func newTestGuard(svc identity.Service) (*Guard, *session.Store) {
	logger := zap.NewNop()
	metrics := observability.NewMetrics()
	store := session.NewStore(session.NewMemoryBackend(), session.NewMemoryBackend(), logger, metrics)
	g := New(Config{
		Service:      svc,
		Refresher:    session.NewRefresher(svc, logger, metrics),
		Logger:       logger,
		Metrics:      metrics,
		LoginPath:    "/login",
		FallbackPath: "/dashboard",
	})
	return g, store
}

func TestNoTokenDeniesWithoutNetworkCall(t *testing.T) {
	svc := &fakeIdentity{}
	g, store := newTestGuard(svc)

	decision, err := g.Evaluate(context.Background(), store, domain.NewRoleSet(), "/reports")
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if decision.Granted {
		t.Fatalf("expected denial")
	}
	if decision.Redirect != "/login?redirect=%2Freports" {
		t.Fatalf("expected login redirect with return path, got %q", decision.Redirect)
	}
	if svc.verifyCalls != 0 || svc.refreshCalls != 0 {
		t.Fatalf("expected no network calls, got verify=%d refresh=%d", svc.verifyCalls, svc.refreshCalls)
	}
}

func TestInsufficientRoleConfirmedByServerRedirectsToFallback(t *testing.T) {
	svc := &fakeIdentity{verifyResult: &identity.VerifyResult{Success: true, Role: domain.RoleUser, UserID: "user-1"}}
	g, store := newTestGuard(svc)
	ctx := context.Background()

	store.Save(ctx, signToken(t, "user-1", domain.RoleUser, time.Now().Add(time.Hour)), time.Hour)

	decision, err := g.Evaluate(ctx, store, domain.NewRoleSet(domain.RoleAdmin), "/admin")
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if decision.Granted {
		t.Fatalf("expected denial")
	}
	// Authenticated but under-privileged: fallback, never login.
	if decision.Redirect != "/dashboard" {
		t.Fatalf("expected fallback redirect, got %q", decision.Redirect)
	}
	// The cached role alone never denies; the server confirmed it first.
	if svc.verifyCalls != 1 {
		t.Fatalf("expected one server verification, got %d", svc.verifyCalls)
	}
}

func TestServerConfirmationGrants(t *testing.T) {
	svc := &fakeIdentity{verifyResult: &identity.VerifyResult{Success: true, Role: domain.RoleUser, UserID: "user-1"}}
	g, store := newTestGuard(svc)
	ctx := context.Background()

	store.Save(ctx, signToken(t, "user-1", domain.RoleUser, time.Now().Add(time.Hour)), time.Hour)

	decision, err := g.Evaluate(ctx, store, domain.NewRoleSet(domain.RoleUser), "/dashboard")
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !decision.Granted {
		t.Fatalf("expected grant, got redirect %q", decision.Redirect)
	}
	if svc.verifyCalls != 1 {
		t.Fatalf("expected exactly one verification, got %d", svc.verifyCalls)
	}
}

func TestStaleRoleReconciledFromServer(t *testing.T) {
	// Cached USER, server says MANAGER, route requires MANAGER: the decision
	// must come from the server role.
	svc := &fakeIdentity{verifyResult: &identity.VerifyResult{Success: true, Role: domain.RoleManager, UserID: "user-1"}}
	g, store := newTestGuard(svc)
	ctx := context.Background()

	store.Save(ctx, signToken(t, "user-1", domain.RoleUser, time.Now().Add(time.Hour)), time.Hour)

	decision, err := g.Evaluate(ctx, store, domain.NewRoleSet(domain.RoleManager), "/reports")
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !decision.Granted {
		t.Fatalf("expected grant from reconciled role, got redirect %q", decision.Redirect)
	}
	if decision.Profile.Role != domain.RoleManager {
		t.Fatalf("expected effective role MANAGER, got %s", decision.Profile.Role)
	}
	if svc.verifyCalls != 1 {
		t.Fatalf("expected one server verification, got %d", svc.verifyCalls)
	}
}

func TestStaleRoleDemotionDeniesToFallback(t *testing.T) {
	svc := &fakeIdentity{verifyResult: &identity.VerifyResult{Success: true, Role: domain.RoleUser, UserID: "user-1"}}
	g, store := newTestGuard(svc)
	ctx := context.Background()

	store.Save(ctx, signToken(t, "user-1", domain.RoleManager, time.Now().Add(time.Hour)), time.Hour)

	decision, err := g.Evaluate(ctx, store, domain.NewRoleSet(domain.RoleManager), "/reports")
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if decision.Granted {
		t.Fatalf("expected denial after demotion")
	}
	if decision.Redirect != "/dashboard" {
		t.Fatalf("expected fallback redirect, got %q", decision.Redirect)
	}
}

func TestExpiredTokenRefreshesAndGrants(t *testing.T) {
	fresh := signToken(t, "user-1", domain.RoleUser, time.Now().Add(time.Hour))
	svc := &fakeIdentity{
		verifyErr:     &identity.StatusError{StatusCode: 401, Expired: true},
		refreshResult: &identity.RefreshResult{Token: fresh, ExpiresIn: 3600, User: &identity.User{ID: "user-1", Role: domain.RoleUser}},
	}
	g, store := newTestGuard(svc)
	ctx := context.Background()

	store.Save(ctx, signToken(t, "user-1", domain.RoleUser, time.Now().Add(time.Minute)), time.Hour)

	decision, err := g.Evaluate(ctx, store, domain.NewRoleSet(domain.RoleUser), "/dashboard")
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !decision.Granted {
		t.Fatalf("expected grant after refresh, got redirect %q", decision.Redirect)
	}
	if svc.refreshCalls != 1 {
		t.Fatalf("expected exactly one refresh, got %d", svc.refreshCalls)
	}
	if got := store.Get(ctx); got != fresh {
		t.Fatalf("expected fresh token stored, got %q", got)
	}
}

func TestRefreshFailureClearsAndRedirectsToLoginOnce(t *testing.T) {
	svc := &fakeIdentity{
		verifyErr:  &identity.StatusError{StatusCode: 401},
		refreshErr: &identity.StatusError{StatusCode: 401},
	}
	g, store := newTestGuard(svc)
	ctx := context.Background()

	store.Save(ctx, signToken(t, "user-1", domain.RoleUser, time.Now().Add(time.Hour)), time.Hour)

	decision, err := g.Evaluate(ctx, store, domain.NewRoleSet(), "/reports")
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if decision.Granted {
		t.Fatalf("expected denial")
	}
	if !strings.HasPrefix(decision.Redirect, "/login?redirect=") {
		t.Fatalf("expected login redirect with return path, got %q", decision.Redirect)
	}
	if svc.refreshCalls != 1 {
		t.Fatalf("expected exactly one refresh attempt, got %d", svc.refreshCalls)
	}
	if store.IsValid(ctx) {
		t.Fatalf("expected store cleared after refresh failure")
	}
}

func TestRefreshResponseRoleWinsOverTokenPayload(t *testing.T) {
	// When verify and refresh disagree, the refresh response is the most
	// recent server statement and decides.
	fresh := signToken(t, "user-1", domain.RoleUser, time.Now().Add(time.Hour))
	svc := &fakeIdentity{
		verifyErr:     &identity.StatusError{StatusCode: 401, Expired: true},
		refreshResult: &identity.RefreshResult{Token: fresh, ExpiresIn: 3600, User: &identity.User{ID: "user-1", Role: domain.RoleManager}},
	}
	g, store := newTestGuard(svc)
	ctx := context.Background()

	store.Save(ctx, signToken(t, "user-1", domain.RoleManager, time.Now().Add(time.Hour)), time.Hour)

	decision, err := g.Evaluate(ctx, store, domain.NewRoleSet(domain.RoleManager), "/reports")
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !decision.Granted {
		t.Fatalf("expected grant from refresh response role, got redirect %q", decision.Redirect)
	}
	if decision.Profile.Role != domain.RoleManager {
		t.Fatalf("expected MANAGER from refresh response, got %s", decision.Profile.Role)
	}
}

func TestTransportFailureIsNotADenial(t *testing.T) {
	svc := &fakeIdentity{verifyErr: errors.New("connection refused")}
	g, store := newTestGuard(svc)
	ctx := context.Background()

	token := signToken(t, "user-1", domain.RoleUser, time.Now().Add(time.Hour))
	store.Save(ctx, token, time.Hour)

	_, err := g.Evaluate(ctx, store, domain.NewRoleSet(), "/dashboard")
	if err == nil {
		t.Fatalf("expected transport error to propagate")
	}
	if svc.refreshCalls != 0 {
		t.Fatalf("expected no refresh on transport failure")
	}
	if got := store.Get(ctx); got != token {
		t.Fatalf("expected session untouched, got %q", got)
	}
}
