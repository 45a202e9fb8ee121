package session

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrTransitionInProgress is returned by Login and Unlock while another
	// transition holds the session.
	ErrTransitionInProgress = errors.New("session transition in progress")
	// ErrInvalidTransition is returned when an operation is not allowed from
	// the current state.
	ErrInvalidTransition = errors.New("invalid session transition")
	// ErrVaultMismatch wraps the *identity.LockError returned when the remote
	// credentials are accepted but do not open the existing vault.
	ErrVaultMismatch = errors.New("credentials do not match the local vault")
)

type AuthErrorKind int

const (
	InvalidCredentials AuthErrorKind = iota
	RateLimited
	NotEntitled
	Unavailable
)

func (k AuthErrorKind) String() string {
	switch k {
	case InvalidCredentials:
		return "invalid_credentials"
	case RateLimited:
		return "rate_limited"
	case NotEntitled:
		return "not_entitled"
	case Unavailable:
		return "unavailable"
	default:
		return fmt.Sprintf("AuthErrorKind(%d)", int(k))
	}
}

// AuthError is a login failure caused by the identity provider's answer.
// RetryAt is only set for RateLimited.
type AuthError struct {
	Kind    AuthErrorKind
	Message string
	RetryAt string
	Err     error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("login failed (%s): %s", e.Kind, e.Message)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

const rateLimitMarker = "Too many failed login attempts"

// retryTimestamp extracts the retry time embedded in a rate-limit message:
// the eight characters preceding the final one. ok is false when msg is not a
// rate-limit message.
func retryTimestamp(msg string) (ts string, ok bool) {
	if !strings.Contains(msg, rateLimitMarker) {
		return "", false
	}
	if len(msg) < 9 {
		return "", true
	}
	return msg[len(msg)-9 : len(msg)-1], true
}
