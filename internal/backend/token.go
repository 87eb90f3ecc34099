package backend

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenClaims is the subset of access-token claims the identity core needs:
// who the token is for and when it stops being valid.
type TokenClaims struct {
	Subject   string
	Email     string
	ExpiresAt time.Time
}

// ParseAccessToken extracts claims from a backend access token without
// verifying its signature. The backend is the trust anchor for these tokens;
// locally we only need the subject and expiry to key caches and decide when
// to refresh. Callers that gate access on a token must still present it to
// the backend, which does verify.
func ParseAccessToken(token string) (*TokenClaims, error) {
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("parse access token: %w", err)
	}

	out := &TokenClaims{}
	if sub, err := claims.GetSubject(); err == nil {
		out.Subject = sub
	}
	if email, ok := claims["email"].(string); ok {
		out.Email = email
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		out.ExpiresAt = exp.Time
	}
	if out.Subject == "" {
		return nil, fmt.Errorf("parse access token: no subject claim")
	}
	return out, nil
}
