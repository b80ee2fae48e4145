package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// tokenExpiry reads the exp claim without verifying the signature. The
// client never holds the signing key; the server remains the judge of
// authenticity.
func tokenExpiry(raw string) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, false
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// tokenValid reports whether raw carries an expiry strictly after now.
func tokenValid(raw string, now time.Time) bool {
	exp, ok := tokenExpiry(raw)
	return ok && exp.After(now)
}
