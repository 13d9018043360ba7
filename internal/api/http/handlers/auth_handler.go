package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/abz-agency/employee-portal/internal/login"
	"github.com/abz-agency/employee-portal/internal/session"
	apperrors "github.com/abz-agency/employee-portal/pkg/util"
)

// AuthHandler drives the login state machine over HTTP.
type AuthHandler struct {
	flows    *login.Registry
	sessions *session.Manager
	logger   *zap.Logger
}

// NewAuthHandler constructs the handler.
func NewAuthHandler(flows *login.Registry, sessions *session.Manager, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{flows: flows, sessions: sessions, logger: logger}
}

type initiateRequest struct {
	Identifier string `json:"identifier"`
	Email      string `json:"email"`
	InviteCode string `json:"inviteCode"`
}

type credentialRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
	Code       string `json:"code"`
	InviteCode string `json:"inviteCode"`
	RememberMe bool   `json:"rememberMe"`
}

// Initiate handles POST /auth/initiate: submit the identifier, learn the next
// step. This is also the only way out of a terminal unauthorized/pending
// state.
func (h *AuthHandler) Initiate(c *fiber.Ctx) error {
	var req initiateRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}
	if req.Identifier == "" {
		return apperrors.NewValidationError("identifier is required", map[string]any{"field": "identifier"})
	}

	// Touch the store first so the browser-session cookie exists before the
	// flow advances.
	h.sessions.ForRequest(c)
	machine := h.flows.Get(session.SessionID(c))

	state, err := machine.InitiateLogin(c.UserContext(), req.Identifier, req.Email, req.InviteCode)
	if err != nil {
		return apperrors.NewUpstreamUnavailable(err)
	}
	return c.JSON(fiber.Map{
		"step":   state,
		"status": machine.Status(),
	})
}

// Password handles POST /auth/password.
func (h *AuthHandler) Password(c *fiber.Ctx) error {
	var req credentialRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}
	if req.Identifier == "" || req.Password == "" {
		return apperrors.NewValidationError("identifier and password are required", nil)
	}

	store := h.sessions.ForRequest(c)
	machine := h.flows.Get(session.SessionID(c))

	state, err := machine.LoginWithPassword(c.UserContext(), store, req.Identifier, req.Password, req.RememberMe)
	if err != nil {
		return apperrors.NewUpstreamUnavailable(err)
	}
	return h.flowResponse(c, machine, state)
}

// Verify handles POST /auth/verify.
func (h *AuthHandler) Verify(c *fiber.Ctx) error {
	var req credentialRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}
	if req.Identifier == "" || req.Code == "" {
		return apperrors.NewValidationError("identifier and code are required", nil)
	}

	store := h.sessions.ForRequest(c)
	machine := h.flows.Get(session.SessionID(c))

	state, err := machine.VerifyCode(c.UserContext(), store, req.Identifier, req.Code, req.InviteCode, req.RememberMe)
	if err != nil {
		return apperrors.NewUpstreamUnavailable(err)
	}
	return h.flowResponse(c, machine, state)
}

// Logout handles POST /auth/logout: clears both token locations and discards
// any in-progress flow.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	store := h.sessions.ForRequest(c)
	store.Remove(c.UserContext())
	h.flows.Drop(session.SessionID(c))
	return c.JSON(fiber.Map{"success": true})
}

// Session handles GET /auth/session: the current profile hint, if any.
func (h *AuthHandler) Session(c *fiber.Ctx) error {
	store := h.sessions.ForRequest(c)
	token, profile := store.GetProfile(c.UserContext())
	if token == "" {
		return c.JSON(fiber.Map{"authenticated": false})
	}
	return c.JSON(fiber.Map{
		"authenticated": true,
		"user": fiber.Map{
			"id":    profile.UserID,
			"name":  profile.Name,
			"email": profile.Email,
			"role":  profile.Role,
		},
	})
}

func (h *AuthHandler) flowResponse(c *fiber.Ctx, machine *login.Machine, state login.State) error {
	response := fiber.Map{
		"step":   state,
		"status": machine.Status(),
	}
	if state == login.StateComplete {
		// Completed flows are discarded; the session token is the only
		// surviving artifact.
		h.flows.Drop(session.SessionID(c))
		if profile := machine.Profile(); profile != nil {
			response["user"] = fiber.Map{
				"id":    profile.UserID,
				"name":  profile.Name,
				"email": profile.Email,
				"role":  profile.Role,
			}
		}
	}
	return c.JSON(response)
}
