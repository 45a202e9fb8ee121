// Package common defines shared sentinel errors used across the DialKeeper
// client layers. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// Remote API errors.
	ErrorUnauthorized = errors.New("unauthorized")
	ErrorUnavailable  = errors.New("service unavailable")

	// Payload validation errors.
	ErrorIncorrectPayload = errors.New("incorrect payload")
)
