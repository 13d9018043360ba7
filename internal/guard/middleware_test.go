package guard

import (
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/abz-agency/employee-portal/internal/domain"
	"github.com/abz-agency/employee-portal/internal/identity"
	"github.com/abz-agency/employee-portal/internal/observability"
	"github.com/abz-agency/employee-portal/internal/session"
)

func newTestApp(svc *fakeIdentity) *fiber.App {
	logger := zap.NewNop()
	metrics := observability.NewMetrics()

	var mu sync.Mutex
	backends := make(map[string]session.Backend)
	sessions := session.NewManager(func(sid string) session.Backend {
		mu.Lock()
		defer mu.Unlock()
		if backend, ok := backends[sid]; ok {
			return backend
		}
		backend := session.NewMemoryBackend()
		backends[sid] = backend
		return backend
	}, logger, metrics)

	g := New(Config{
		Service:      svc,
		Sessions:     sessions,
		Refresher:    session.NewRefresher(svc, logger, metrics),
		Logger:       logger,
		Metrics:      metrics,
		LoginPath:    "/login",
		FallbackPath: "/dashboard",
	})

	app := fiber.New()
	app.Get("/reports", g.Protect(domain.RoleManager, domain.RoleAdmin), func(c *fiber.Ctx) error {
		profile, _ := ProfileFromContext(c)
		return c.SendString(string(profile.Role))
	})
	return app
}

func TestMiddlewareRedirectsAnonymousToLogin(t *testing.T) {
	app := newTestApp(&fakeIdentity{})

	resp, err := app.Test(httptest.NewRequest("GET", "/reports", nil))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != fiber.StatusFound {
		t.Fatalf("expected 302, got %d", resp.StatusCode)
	}
	if location := resp.Header.Get("Location"); location != "/login?redirect=%2Freports" {
		t.Fatalf("expected login redirect, got %q", location)
	}
}

func TestMiddlewareAdmitsVerifiedManagerFromCookie(t *testing.T) {
	svc := &fakeIdentity{verifyResult: &identity.VerifyResult{Success: true, Role: domain.RoleManager, UserID: "user-1"}}
	app := newTestApp(svc)

	token := signToken(t, "user-1", domain.RoleManager, time.Now().Add(time.Hour))
	req := httptest.NewRequest("GET", "/reports", nil)
	req.Header.Set("Cookie", session.KeyToken+"="+token)

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body := make([]byte, 16)
	n, _ := resp.Body.Read(body)
	if string(body[:n]) != string(domain.RoleManager) {
		t.Fatalf("expected MANAGER profile in handler, got %q", string(body[:n]))
	}
}
