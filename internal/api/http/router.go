package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/abz-agency/employee-portal/internal/api/http/handlers"
	"github.com/abz-agency/employee-portal/internal/domain"
	"github.com/abz-agency/employee-portal/internal/guard"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health *handlers.HealthHandler
	Auth   *handlers.AuthHandler
	Portal *handlers.PortalHandler
	Guard  *guard.Guard
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	authGroup := app.Group("/auth")
	authGroup.Post("/initiate", cfg.Auth.Initiate)
	authGroup.Post("/password", cfg.Auth.Password)
	authGroup.Post("/verify", cfg.Auth.Verify)
	authGroup.Post("/logout", cfg.Auth.Logout)
	authGroup.Get("/session", cfg.Auth.Session)

	app.Get("/dashboard", cfg.Guard.Protect(), cfg.Portal.Dashboard)
	app.Get("/reports", cfg.Guard.Protect(domain.RoleManager, domain.RoleAdmin), cfg.Portal.Reports)
	app.Get("/admin", cfg.Guard.Protect(domain.RoleAdmin), cfg.Portal.Admin)
}
