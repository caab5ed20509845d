package token

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/grantiva/grantiva-go/internal/model"
)

// Info is what can be read from a session token without its signing key.
type Info struct {
	Subject   string
	Issuer    string
	IssuedAt  *time.Time
	ExpiresAt *time.Time
	Claims    map[string]any
}

// Inspect decodes a session token without verifying its signature. The
// server is the only party that can verify it; the SDK reads it for
// display and for an early expiry check.
//
// A token whose exp is at or before now returns the decoded Info together
// with a TokenExpired error.
func Inspect(raw string, now time.Time) (*Info, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return nil, model.InvalidResponse(fmt.Errorf("parse token: %w", err))
	}

	info := &Info{Claims: map[string]any(claims)}
	info.Subject, _ = claims.GetSubject()
	info.Issuer, _ = claims.GetIssuer()
	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		t := iat.Time.UTC()
		info.IssuedAt = &t
	}
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return nil, model.InvalidResponse(fmt.Errorf("token exp: %w", err))
	}
	if exp != nil {
		t := exp.Time.UTC()
		info.ExpiresAt = &t
		if !now.Before(t) {
			return info, model.ErrTokenExpired
		}
	}
	return info, nil
}
