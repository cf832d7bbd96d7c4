package credential

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultLifetime applies when neither expires_in nor a JWT exp claim is available.
const DefaultLifetime = time.Hour

// ExpiryFor computes the expiry instant of a freshly issued access token.
// expiresIn (seconds) wins; otherwise the exp claim of a JWT token is used.
func ExpiryFor(now time.Time, token string, expiresIn int64) time.Time {
	if expiresIn > 0 {
		return now.Add(time.Duration(expiresIn) * time.Second)
	}
	if exp, ok := jwtExpiry(token); ok {
		return exp
	}
	return now.Add(DefaultLifetime)
}

// jwtExpiry reads the exp claim without verifying the signature.
// The token is only inspected, never trusted for authorization.
func jwtExpiry(token string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
