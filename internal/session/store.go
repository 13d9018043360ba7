package session

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/abz-agency/employee-portal/internal/domain"
	"github.com/abz-agency/employee-portal/internal/observability"
)

// Storage keys. "abzToken" is the current key; "token" is a legacy key still
// written by older portal builds and migrated forward on every read.
const (
	KeyToken       = "abzToken"
	KeyLegacyToken = "token"
	KeyExpiry      = "tokenExpiry"
)

// DefaultTTL is the expiry horizon used when Save is called without one.
const DefaultTTL = 24 * time.Hour

// Store holds the session token as one logical value fanned out to two
// backends: a persistent local store and the request/response cookies. All
// writes are whole-value replacements; reads repair drift between the
// backends rather than trusting either alone.
//
// Storage failures never propagate: the store logs them and degrades to
// "no session", since a broken token store must not take navigation down
// with it.
type Store struct {
	local      Backend
	cookies    Backend
	logger     *zap.Logger
	metrics    *observability.Metrics
	defaultTTL time.Duration
	now        func() time.Time
}

// NewStore builds a Store over the two backends.
func NewStore(local, cookies Backend, logger *zap.Logger, metrics *observability.Metrics) *Store {
	return &Store{
		local:      local,
		cookies:    cookies,
		logger:     logger,
		metrics:    metrics,
		defaultTTL: DefaultTTL,
		now:        time.Now,
	}
}

// Save writes the token to both backends with an absolute expiry of now+ttl
// (DefaultTTL when no ttl is given). A malformed token is logged but still
// written; callers decide whether to reject it. Each backend write is
// verified by reading the value back, with one relaxed-attribute retry for
// backends that support it.
func (s *Store) Save(ctx context.Context, token string, ttl ...time.Duration) {
	horizon := s.defaultTTL
	if len(ttl) > 0 {
		horizon = ttl[0]
	}
	expiresAt := s.now().Add(horizon)

	if !wellFormed(token) {
		s.logger.Warn("saving token that is not a three-segment signed value",
			zap.Int("segments", len(strings.Split(token, "."))))
	}

	s.writeVerified(ctx, s.local, "local", token, expiresAt)
	s.writeVerified(ctx, s.cookies, "cookie", token, expiresAt)

	// Expiry metadata lives in the local store and must outlive the token
	// entry itself, so an elapsed horizon is still detectable.
	if err := s.local.Set(ctx, KeyExpiry, expiresAt.Format(time.RFC3339), time.Time{}); err != nil {
		s.logger.Warn("failed to persist token expiry metadata", zap.Error(err))
	}
}

// Get returns the current token, or "" when no valid session exists.
func (s *Store) Get(ctx context.Context) string {
	token, _ := s.GetProfile(ctx)
	return token
}

// GetProfile returns the current token together with its decoded payload, so
// callers that need the cached profile do not parse the token a second time.
// The read tries the primary local key, then the legacy key, then either
// cookie, and migrates whatever it found back into the primary key and both
// cookies. A token that is past its expiry metadata, not three segments,
// missing a subject, or past its own expiry claim is rejected and every
// storage location is cleared.
func (s *Store) GetProfile(ctx context.Context) (string, *domain.Profile) {
	token, source := s.lookup(ctx)
	if token == "" {
		return "", nil
	}

	if expiry, ok := s.expiryMetadata(ctx); ok && !expiry.After(s.now()) {
		s.logger.Info("stored token past its expiry horizon", zap.Time("expired_at", expiry))
		s.Remove(ctx)
		return "", nil
	}

	profile, err := DecodeProfile(token)
	if err != nil {
		s.logger.Warn("stored token is malformed", zap.String("source", source), zap.Error(err))
		s.Remove(ctx)
		return "", nil
	}
	if profile.UserID == "" {
		s.logger.Warn("stored token carries no subject", zap.String("source", source))
		s.Remove(ctx)
		return "", nil
	}
	if !profile.ExpiresAt.IsZero() && !profile.ExpiresAt.After(s.now()) {
		s.logger.Info("stored token expiry claim elapsed", zap.Time("claim", profile.ExpiresAt))
		s.Remove(ctx)
		return "", nil
	}

	s.migrate(ctx, token, source)
	return token, profile
}

// Remove clears every key variant from both backends. Idempotent.
func (s *Store) Remove(ctx context.Context) {
	for _, key := range []string{KeyToken, KeyLegacyToken, KeyExpiry} {
		if err := s.local.Delete(ctx, key); err != nil {
			s.logger.Warn("failed to clear local session key", zap.String("key", key), zap.Error(err))
		}
	}
	for _, key := range []string{KeyToken, KeyLegacyToken} {
		if err := s.cookies.Delete(ctx, key); err != nil {
			s.logger.Warn("failed to clear session cookie", zap.String("key", key), zap.Error(err))
		}
	}
}

// IsValid reports whether a usable session token is currently stored.
func (s *Store) IsValid(ctx context.Context) bool {
	return s.Get(ctx) != ""
}

func (s *Store) lookup(ctx context.Context) (token, source string) {
	candidates := []struct {
		backend Backend
		key     string
		source  string
	}{
		{s.local, KeyToken, "local"},
		{s.local, KeyLegacyToken, "local-legacy"},
		{s.cookies, KeyToken, "cookie"},
		{s.cookies, KeyLegacyToken, "cookie-legacy"},
	}
	for _, c := range candidates {
		value, err := c.backend.Get(ctx, c.key)
		if err != nil {
			if !errors.Is(err, ErrNotFound) {
				s.logger.Warn("session backend read failed",
					zap.String("source", c.source), zap.Error(err))
			}
			continue
		}
		if value != "" {
			return value, c.source
		}
	}
	return "", ""
}

func (s *Store) expiryMetadata(ctx context.Context) (time.Time, bool) {
	raw, err := s.local.Get(ctx, KeyExpiry)
	if err != nil || raw == "" {
		return time.Time{}, false
	}
	expiry, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		s.logger.Warn("unreadable token expiry metadata", zap.String("raw", raw))
		return time.Time{}, false
	}
	return expiry, true
}

// migrate fans the found value back out so both backends and the primary key
// agree. Also heals the legacy cookie so older portal tabs keep working.
func (s *Store) migrate(ctx context.Context, token, source string) {
	expiresAt, ok := s.expiryMetadata(ctx)
	if !ok {
		expiresAt = s.now().Add(s.defaultTTL)
	}

	if source != "local" {
		s.metrics.RecordStoreRepair()
		s.logger.Debug("repairing session storage drift", zap.String("found_in", source))
	}

	if err := s.local.Set(ctx, KeyToken, token, expiresAt); err != nil {
		s.logger.Warn("failed to migrate token to local store", zap.Error(err))
	}
	for _, key := range []string{KeyToken, KeyLegacyToken} {
		if err := s.cookies.Set(ctx, key, token, expiresAt); err != nil {
			s.logger.Warn("failed to migrate token cookie", zap.String("key", key), zap.Error(err))
		}
	}
}

func (s *Store) writeVerified(ctx context.Context, backend Backend, name, token string, expiresAt time.Time) {
	write := func(set func(context.Context, string, string, time.Time) error) bool {
		if err := set(ctx, KeyToken, token, expiresAt); err != nil {
			s.logger.Warn("session write failed", zap.String("backend", name), zap.Error(err))
			return false
		}
		readBack, err := backend.Get(ctx, KeyToken)
		return err == nil && readBack == token
	}

	if write(backend.Set) {
		return
	}
	if relaxed, ok := backend.(RelaxedSetter); ok {
		s.logger.Warn("session write failed verification, retrying relaxed",
			zap.String("backend", name))
		if write(relaxed.SetRelaxed) {
			return
		}
	}
	s.logger.Error("session write could not be verified", zap.String("backend", name))
}

// wellFormed reports whether the token looks like a three-segment signed
// value. It is a shape check only; signature verification is server-side.
func wellFormed(token string) bool {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return false
	}
	for _, part := range parts {
		if part == "" {
			return false
		}
	}
	return true
}
