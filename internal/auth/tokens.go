package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Tokens is the access/refresh pair persisted under the authTokens key.
type Tokens struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// Empty reports whether no credential is held.
func (t Tokens) Empty() bool {
	return t.Access == "" && t.Refresh == ""
}

// expiry returns the exp claim of a JWT without verifying its signature.
// The backend is the verifier; the client only reads exp to decide whether
// a token is worth presenting. ok is false when the token is not a JWT or
// carries no exp.
func expiry(raw string) (exp time.Time, ok bool) {
	if raw == "" {
		return time.Time{}, false
	}
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

// usable reports whether raw is present and not known to be expired at now.
// Opaque tokens (non-JWT) are assumed usable; the backend decides.
func usable(raw string, now time.Time) bool {
	if raw == "" {
		return false
	}
	exp, ok := expiry(raw)
	if !ok {
		return true
	}
	return now.Before(exp)
}
