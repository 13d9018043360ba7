package identityserver

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/abz-agency/employee-portal/internal/identity"
	apperrors "github.com/abz-agency/employee-portal/pkg/util"
)

// Handler exposes the identity contract over HTTP.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler constructs the handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// Register wires the contract routes.
func (h *Handler) Register(app *fiber.App) {
	app.Post("/login", h.Login)
	app.Post("/token-refresh", h.Refresh)
	app.Get("/verify-token", h.Verify)
}

// Login handles POST /login.
func (h *Handler) Login(c *fiber.Ctx) error {
	var req identity.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}
	if req.Identifier == "" {
		return apperrors.NewValidationError("identifier is required", map[string]any{"field": "identifier"})
	}

	result, err := h.svc.Login(c.UserContext(), req)
	if err != nil {
		return apperrors.MapError(err)
	}
	return c.JSON(result)
}

// Refresh handles POST /token-refresh. The stale token arrives both as the
// bearer header and in the body; the body wins when both are present.
func (h *Handler) Refresh(c *fiber.Ctx) error {
	var body struct {
		Token string `json:"token"`
	}
	_ = c.BodyParser(&body)
	stale := body.Token
	if stale == "" {
		stale = bearerToken(c)
	}
	if stale == "" {
		return apperrors.NewUnauthorized("missing token")
	}

	result, err := h.svc.Refresh(c.UserContext(), stale)
	if err != nil {
		return h.rejectToken(c, err)
	}
	return c.JSON(result)
}

// Verify handles GET /verify-token.
func (h *Handler) Verify(c *fiber.Ctx) error {
	token := bearerToken(c)
	if token == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}

	result, err := h.svc.Verify(c.UserContext(), token)
	if err != nil {
		return h.rejectToken(c, err)
	}
	return c.JSON(result)
}

// rejectToken maps service sentinels onto the contract's 401 body, flagging
// expiry separately so clients know a refresh is worth attempting.
func (h *Handler) rejectToken(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, ErrTokenExpired):
		return c.Status(http.StatusUnauthorized).JSON(fiber.Map{
			"error":   "token expired",
			"expired": true,
		})
	case errors.Is(err, ErrInvalidToken),
		errors.Is(err, ErrTokenNotActive),
		errors.Is(err, ErrRefreshExpired),
		errors.Is(err, ErrUnknownAccount):
		return c.Status(http.StatusUnauthorized).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	h.logger.Error("token endpoint failed", zap.Error(err))
	return apperrors.MapError(err)
}

func bearerToken(c *fiber.Ctx) string {
	header := c.Get("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}
