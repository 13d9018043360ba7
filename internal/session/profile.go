package session

import (
	"fmt"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/abz-agency/employee-portal/internal/domain"
)

type tokenClaims struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// DecodeProfile decodes the payload segment of a session token into the
// cached profile without verifying the signature. The result is a rendering
// hint; only the identity service can vouch for the token itself.
func DecodeProfile(token string) (*domain.Profile, error) {
	if !wellFormed(token) {
		return nil, fmt.Errorf("token is not a three-segment signed value")
	}

	claims := &tokenClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("decode token payload: %w", err)
	}

	profile := &domain.Profile{
		UserID: claims.Subject,
		Name:   claims.Name,
		Email:  claims.Email,
	}
	if role, ok := domain.ParseRole(claims.Role); ok {
		profile.Role = role
	}
	if claims.IssuedAt != nil {
		profile.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		profile.ExpiresAt = claims.ExpiresAt.Time
	}
	return profile, nil
}
