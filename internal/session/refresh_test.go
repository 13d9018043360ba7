package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/abz-agency/employee-portal/internal/domain"
	"github.com/abz-agency/employee-portal/internal/identity"
	"github.com/abz-agency/employee-portal/internal/observability"
)

type fakeIdentity struct {
	refreshResult *identity.RefreshResult
	refreshErr    error
	refreshCalls  int
}

func (f *fakeIdentity) Login(context.Context, identity.LoginRequest) (*identity.LoginResult, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeIdentity) RefreshToken(_ context.Context, _ string) (*identity.RefreshResult, error) {
	f.refreshCalls++
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	return f.refreshResult, nil
}

func (f *fakeIdentity) VerifyToken(context.Context, string) (*identity.VerifyResult, error) {
	return nil, errors.New("not implemented")
}

func TestRefreshSuccessRewritesStore(t *testing.T) {
	store, _, _ := newTestStore()
	ctx := context.Background()

	stale := signToken(t, "user-1", domain.RoleUser, time.Now().Add(-time.Minute))
	fresh := signToken(t, "user-1", domain.RoleUser, time.Now().Add(time.Hour))
	svc := &fakeIdentity{refreshResult: &identity.RefreshResult{Token: fresh, ExpiresIn: 3600}}

	refresher := NewRefresher(svc, zap.NewNop(), observability.NewMetrics())
	result, err := refresher.Refresh(ctx, store, stale)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if result.Token != fresh {
		t.Fatalf("expected fresh token in result")
	}
	if got := store.Get(ctx); got != fresh {
		t.Fatalf("expected fresh token stored, got %q", got)
	}
}

func TestRefreshFailureClearsStore(t *testing.T) {
	store, _, _ := newTestStore()
	ctx := context.Background()

	valid := signToken(t, "user-1", domain.RoleUser, time.Now().Add(time.Hour))
	store.Save(ctx, valid, time.Hour)

	svc := &fakeIdentity{refreshErr: &identity.StatusError{StatusCode: 401}}
	refresher := NewRefresher(svc, zap.NewNop(), observability.NewMetrics())

	if _, err := refresher.Refresh(ctx, store, valid); err == nil {
		t.Fatalf("expected refresh error")
	}
	if store.IsValid(ctx) {
		t.Fatalf("expected store cleared after refresh failure")
	}
	if svc.refreshCalls != 1 {
		t.Fatalf("expected exactly one refresh attempt, got %d", svc.refreshCalls)
	}
}
