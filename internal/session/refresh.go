package session

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/abz-agency/employee-portal/internal/identity"
	"github.com/abz-agency/employee-portal/internal/observability"
)

// Refresher is the single token-refresh routine shared by every caller that
// detects an invalid or expired token. The budget is exactly one attempt per
// detected failure: a second consecutive failure means an expired refresh
// window or a revoked session, not a transient fault.
type Refresher struct {
	svc     identity.Service
	logger  *zap.Logger
	metrics *observability.Metrics
}

// NewRefresher builds a Refresher over the identity service.
func NewRefresher(svc identity.Service, logger *zap.Logger, metrics *observability.Metrics) *Refresher {
	return &Refresher{svc: svc, logger: logger, metrics: metrics}
}

// Refresh exchanges the stale token once. On success the new token replaces
// the stored one whole-value before the result is returned, so every later
// read observes the fresh session. On any failure all token storage is
// cleared and the error is returned; callers redirect to login.
func (r *Refresher) Refresh(ctx context.Context, store *Store, staleToken string) (*identity.RefreshResult, error) {
	result, err := r.svc.RefreshToken(ctx, staleToken)
	if err != nil {
		r.metrics.RecordRefresh("failure")
		r.logger.Info("token refresh failed, clearing session", zap.Error(err))
		store.Remove(ctx)
		return nil, err
	}

	ttl := DefaultTTL
	if result.ExpiresIn > 0 {
		ttl = time.Duration(result.ExpiresIn) * time.Second
	}
	store.Save(ctx, result.Token, ttl)
	r.metrics.RecordRefresh("success")
	return result, nil
}
