package session

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
)

// CookieBackend stores session values as cookies on the current request and
// response. Reads prefer cookies already written to the pending response (so
// a save in the same request is immediately visible), then fall back to the
// cookies the browser sent.
type CookieBackend struct {
	c *fiber.Ctx
}

// NewCookieBackend binds a backend to one request/response pair.
func NewCookieBackend(c *fiber.Ctx) *CookieBackend {
	return &CookieBackend{c: c}
}

// Get implements Backend.
func (b *CookieBackend) Get(_ context.Context, key string) (string, error) {
	if raw := b.c.Response().Header.PeekCookie(key); len(raw) > 0 {
		cookie := fasthttp.AcquireCookie()
		defer fasthttp.ReleaseCookie(cookie)
		if err := cookie.ParseBytes(raw); err == nil {
			if value := string(cookie.Value()); value != "" {
				return value, nil
			}
			// An empty value is a pending deletion, not a hit.
			return "", ErrNotFound
		}
	}
	if value := b.c.Cookies(key); value != "" {
		return value, nil
	}
	return "", ErrNotFound
}

// Set implements Backend. Attributes follow the strict profile: path=/,
// SameSite=Lax, Secure when the request arrived over TLS.
func (b *CookieBackend) Set(_ context.Context, key, value string, expiresAt time.Time) error {
	b.c.Cookie(&fiber.Cookie{
		Name:     key,
		Value:    value,
		Path:     "/",
		Expires:  expiresAt,
		SameSite: fiber.CookieSameSiteLaxMode,
		Secure:   b.c.Protocol() == "https",
	})
	return nil
}

// SetRelaxed implements RelaxedSetter: no SameSite and no Secure attribute,
// for browsers and embedded contexts that drop the strict cookie.
func (b *CookieBackend) SetRelaxed(_ context.Context, key, value string, expiresAt time.Time) error {
	b.c.Cookie(&fiber.Cookie{
		Name:     key,
		Value:    value,
		Path:     "/",
		Expires:  expiresAt,
		SameSite: fiber.CookieSameSiteDisabled,
	})
	return nil
}

// Delete implements Backend.
func (b *CookieBackend) Delete(_ context.Context, key string) error {
	b.c.Cookie(&fiber.Cookie{
		Name:    key,
		Value:   "",
		Path:    "/",
		Expires: time.Unix(0, 0),
	})
	return nil
}
