// Package tokens inspects portal tokens without verifying them. The client
// never holds the signing key; it only needs to know when to ask for a new one.
package tokens

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNoExpiry is returned for tokens that are not JWTs or carry no exp claim.
var ErrNoExpiry = errors.New("token has no expiry")

// ExpiresAt returns the exp claim of a JWT.
func ExpiresAt(token string) (time.Time, error) {
	if token == "" {
		return time.Time{}, ErrNoExpiry
	}

	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, errors.Join(ErrNoExpiry, err)
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, ErrNoExpiry
	}
	return claims.ExpiresAt.Time, nil
}

// RefreshDue reports whether token should be replaced at now. Tokens whose
// expiry cannot be read are always due; others are due once less than margin
// of their lifetime remains.
func RefreshDue(token string, now time.Time, margin time.Duration) bool {
	exp, err := ExpiresAt(token)
	if err != nil {
		return true
	}
	return !now.Add(margin).Before(exp)
}
