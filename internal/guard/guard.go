package guard

import (
	"context"
	"errors"
	"net/url"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/abz-agency/employee-portal/internal/domain"
	"github.com/abz-agency/employee-portal/internal/identity"
	"github.com/abz-agency/employee-portal/internal/observability"
	"github.com/abz-agency/employee-portal/internal/session"
)

const profileKey = "guard_profile"

// Decision is the outcome of one guard evaluation. When Granted is false,
// Redirect names where the caller must be sent: the login page for missing
// or unrecoverable sessions, the configured fallback for authenticated but
// under-privileged callers.
type Decision struct {
	Granted  bool
	Redirect string
	Profile  *domain.Profile
}

// Config bundles guard dependencies and redirect targets.
type Config struct {
	Service      identity.Service
	Sessions     *session.Manager
	Refresher    *session.Refresher
	Logger       *zap.Logger
	Metrics      *observability.Metrics
	LoginPath    string
	FallbackPath string
}

// Guard is the route-level gate in front of protected content. Each
// evaluation runs three tiers in order: a no-token fast deny, a local
// profile decode, and one server-side verification that decides from the
// confirmed role and drives the refresh protocol. Role decisions always
// wait for the server so a stale cached role cannot deny a promoted user.
type Guard struct {
	cfg Config
}

// New builds a Guard.
func New(cfg Config) *Guard {
	if cfg.LoginPath == "" {
		cfg.LoginPath = "/login"
	}
	if cfg.FallbackPath == "" {
		cfg.FallbackPath = "/dashboard"
	}
	return &Guard{cfg: cfg}
}

// Protect returns middleware admitting only the given roles (any
// authenticated caller when none are given).
func (g *Guard) Protect(roles ...domain.Role) fiber.Handler {
	required := domain.NewRoleSet(roles...)
	return func(c *fiber.Ctx) error {
		store := g.cfg.Sessions.ForRequest(c)
		decision, err := g.Evaluate(c.UserContext(), store, required, c.Path())
		if err != nil {
			// Transport failure is not a denial: no redirect, the caller
			// retries against unchanged state.
			return err
		}
		if !decision.Granted {
			return c.Redirect(decision.Redirect, fiber.StatusFound)
		}
		c.Locals(profileKey, decision.Profile)
		return c.Next()
	}
}

// Evaluate runs the guard algorithm for one route. It short-circuits on the
// first terminal outcome and returns an error only for transport failures,
// which deliberately produce neither a grant nor a redirect.
func (g *Guard) Evaluate(ctx context.Context, store *session.Store, required domain.RoleSet, path string) (Decision, error) {
	// Tier 1: nothing stored means nothing to validate; deny without a
	// network round-trip. The store hands back the decoded payload it
	// already validated, so the cached profile never needs a second parse.
	token, profile := store.GetProfile(ctx)
	if token == "" {
		g.cfg.Metrics.RecordGuardDecision("denied_login")
		return Decision{Redirect: g.loginRedirect(path)}, nil
	}

	// Tiers 2 and 3: the cached role is only a hint, so an under-privileged
	// cache does not deny here: a stale demotion must not mask a server-side
	// promotion. Confirm with the server and decide from the confirmed role.
	verify, err := g.cfg.Service.VerifyToken(ctx, token)
	if err == nil {
		if verify.Role != profile.Role {
			return g.reconcileDrift(profile, verify, required), nil
		}
		if !required.Satisfies(profile.Role) {
			// Authenticated but under-privileged: never back to login.
			g.cfg.Metrics.RecordGuardDecision("denied_fallback")
			return Decision{Redirect: g.cfg.FallbackPath}, nil
		}
		g.cfg.Metrics.RecordGuardDecision("granted")
		return Decision{Granted: true, Profile: profile}, nil
	}

	var statusErr *identity.StatusError
	if errors.As(err, &statusErr) && statusErr.Unauthenticated() {
		return g.refreshAndRetry(ctx, store, required, token, path)
	}
	return Decision{}, err
}

// ProfileFromContext retrieves the verified profile placed by Protect.
func ProfileFromContext(c *fiber.Ctx) (*domain.Profile, bool) {
	profile, ok := c.Locals(profileKey).(*domain.Profile)
	return profile, ok
}

// reconcileDrift handles a server-reported role that disagrees with the
// cached one: the decision is re-derived from the server role, never from
// the stale cache.
func (g *Guard) reconcileDrift(profile *domain.Profile, verify *identity.VerifyResult, required domain.RoleSet) Decision {
	g.cfg.Logger.Warn("cached role differs from server-verified role",
		zap.String("cached", string(profile.Role)),
		zap.String("server", string(verify.Role)),
	)
	g.cfg.Metrics.RecordGuardDecision("drift_reconciled")

	updated := *profile
	updated.Role = verify.Role
	if !required.Satisfies(updated.Role) {
		g.cfg.Metrics.RecordGuardDecision("denied_fallback")
		return Decision{Redirect: g.cfg.FallbackPath}
	}
	g.cfg.Metrics.RecordGuardDecision("granted")
	return Decision{Granted: true, Profile: &updated}
}

// refreshAndRetry runs the single-attempt refresh protocol and re-derives
// the decision from the fresh session.
func (g *Guard) refreshAndRetry(ctx context.Context, store *session.Store, required domain.RoleSet, staleToken, path string) (Decision, error) {
	result, err := g.cfg.Refresher.Refresh(ctx, store, staleToken)
	if err != nil {
		// Storage is already cleared; back to login with the return path.
		g.cfg.Metrics.RecordGuardDecision("denied_login")
		return Decision{Redirect: g.loginRedirect(path)}, nil
	}

	profile, err := session.DecodeProfile(result.Token)
	if err != nil {
		store.Remove(ctx)
		g.cfg.Metrics.RecordGuardDecision("denied_login")
		return Decision{Redirect: g.loginRedirect(path)}, nil
	}
	// When the refresh response embeds a user, its role is the most recent
	// server statement and wins over the token payload.
	if result.User != nil && result.User.Role != "" {
		if result.User.Role != profile.Role {
			g.cfg.Logger.Warn("refresh response role differs from refreshed token payload",
				zap.String("token", string(profile.Role)),
				zap.String("response", string(result.User.Role)),
			)
		}
		profile.Role = result.User.Role
	}

	if !required.Satisfies(profile.Role) {
		g.cfg.Metrics.RecordGuardDecision("denied_fallback")
		return Decision{Redirect: g.cfg.FallbackPath}, nil
	}
	g.cfg.Metrics.RecordGuardDecision("granted")
	return Decision{Granted: true, Profile: profile}, nil
}

func (g *Guard) loginRedirect(path string) string {
	if path == "" || path == g.cfg.LoginPath {
		return g.cfg.LoginPath
	}
	return g.cfg.LoginPath + "?redirect=" + url.QueryEscape(path)
}
