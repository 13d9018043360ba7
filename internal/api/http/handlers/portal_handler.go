package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/abz-agency/employee-portal/internal/guard"
)

// PortalHandler serves the protected screens' data endpoints. The screens
// themselves are rendered client-side; these handlers only prove the guard
// admitted the caller and echo the verified profile.
type PortalHandler struct{}

// NewPortalHandler returns a new handler instance.
func NewPortalHandler() *PortalHandler {
	return &PortalHandler{}
}

// Dashboard is open to any authenticated employee.
func (h *PortalHandler) Dashboard(c *fiber.Ctx) error {
	return h.render(c, "dashboard")
}

// Reports is restricted to managers and admins.
func (h *PortalHandler) Reports(c *fiber.Ctx) error {
	return h.render(c, "reports")
}

// Admin is restricted to admins.
func (h *PortalHandler) Admin(c *fiber.Ctx) error {
	return h.render(c, "admin")
}

func (h *PortalHandler) render(c *fiber.Ctx, screen string) error {
	profile, _ := guard.ProfileFromContext(c)
	return c.JSON(fiber.Map{
		"screen": screen,
		"user": fiber.Map{
			"id":   profile.UserID,
			"name": profile.Name,
			"role": profile.Role,
		},
	})
}
