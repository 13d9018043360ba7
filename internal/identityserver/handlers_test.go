package identityserver

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/abz-agency/employee-portal/internal/domain"
)

func newTestApp(t *testing.T, accounts ...*domain.Account) *fiber.App {
	t.Helper()
	svc, _, _ := newTestService(t, accounts...)
	app := fiber.New()
	NewHandler(svc, zap.NewNop()).Register(app)
	return app
}

func TestLoginEndpointPasswordFlow(t *testing.T) {
	app := newTestApp(t, activeAccount(t, "u1", domain.RoleUser, "secret"))

	body, _ := json.Marshal(map[string]any{
		"identifier": "u1@example.com",
		"password":   "secret",
	})
	req := httptest.NewRequest("POST", "/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var result struct {
		Success bool   `json:"success"`
		Token   string `json:"token"`
		User    struct {
			Role string `json:"role"`
		} `json:"user"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !result.Success || result.Token == "" || result.User.Role != "USER" {
		t.Fatalf("unexpected response: %+v", result)
	}
}

func TestVerifyEndpointFlagsExpiry(t *testing.T) {
	app := newTestApp(t, activeAccount(t, "u1", domain.RoleUser, "secret"))

	req := httptest.NewRequest("GET", "/verify-token", nil)
	req.Header.Set("Authorization", "Bearer "+signExpired(t, "u1", -time.Hour))

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}

	var body struct {
		Error   string `json:"error"`
		Expired bool   `json:"expired"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !body.Expired {
		t.Fatalf("expected expired flag, got %+v", body)
	}
}

func TestRefreshEndpointAcceptsBodyToken(t *testing.T) {
	app := newTestApp(t, activeAccount(t, "u1", domain.RoleUser, "secret"))

	payload, _ := json.Marshal(map[string]string{"token": signExpired(t, "u1", -time.Hour)})
	req := httptest.NewRequest("POST", "/token-refresh", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var result struct {
		Token     string `json:"token"`
		ExpiresIn int64  `json:"expiresIn"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result.Token == "" || result.ExpiresIn != 3600 {
		t.Fatalf("unexpected response: %+v", result)
	}
}

func TestVerifyEndpointMissingHeader(t *testing.T) {
	app := newTestApp(t)

	resp, err := app.Test(httptest.NewRequest("GET", "/verify-token", nil))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	// Without the error middleware the DomainError surfaces as a 500 from
	// fiber's default handler; registered behind the portal middlewares it
	// maps to 401. Assert only that it is not a success.
	if resp.StatusCode < 400 {
		t.Fatalf("expected error status, got %d", resp.StatusCode)
	}
}
