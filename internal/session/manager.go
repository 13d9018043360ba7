package session

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/abz-agency/employee-portal/internal/observability"
)

// KeySession is the cookie naming the browser session; it namespaces the
// local backend so two browsers never share token storage.
const KeySession = "abzSession"

// Manager builds a per-request Store: the cookie backend is bound to the
// request, the local backend is namespaced by the browser-session id.
type Manager struct {
	localFactory func(sid string) Backend
	logger       *zap.Logger
	metrics      *observability.Metrics
}

// NewManager builds a Manager. localFactory produces the persistent backend
// for one browser session (Redis in production, in-memory in tests).
func NewManager(localFactory func(sid string) Backend, logger *zap.Logger, metrics *observability.Metrics) *Manager {
	return &Manager{localFactory: localFactory, logger: logger, metrics: metrics}
}

const sidLocalKey = "abz_session_id"

// ForRequest returns the Store for the calling browser, assigning a session
// id cookie when none exists yet.
func (m *Manager) ForRequest(c *fiber.Ctx) *Store {
	sid := SessionID(c)
	if sid == "" {
		sid = uuid.NewString()
		c.Cookie(&fiber.Cookie{
			Name:     KeySession,
			Value:    sid,
			Path:     "/",
			Expires:  time.Now().Add(365 * 24 * time.Hour),
			HTTPOnly: true,
			SameSite: fiber.CookieSameSiteLaxMode,
			Secure:   c.Protocol() == "https",
		})
	}
	c.Locals(sidLocalKey, sid)
	return NewStore(m.localFactory(sid), NewCookieBackend(c), m.logger, m.metrics)
}

// SessionID returns the browser-session id for the request, or "".
func SessionID(c *fiber.Ctx) string {
	if sid, ok := c.Locals(sidLocalKey).(string); ok && sid != "" {
		return sid
	}
	return c.Cookies(KeySession)
}
