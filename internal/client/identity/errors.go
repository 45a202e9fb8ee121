package identity

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidPassword means the derived key does not open the canary.
	ErrInvalidPassword = errors.New("invalid vault password")
	// ErrNoVaultConfigured means no salt has been created yet.
	ErrNoVaultConfigured = errors.New("no vault configured")
)

// LockError reports why an existing vault could not be opened. Reason is
// either ErrInvalidPassword or ErrNoVaultConfigured.
type LockError struct {
	Reason error
}

func (e *LockError) Error() string {
	return "vault locked: " + e.Reason.Error()
}

func (e *LockError) Unwrap() error {
	return e.Reason
}

// IdentityError reports a failure while creating the vault identity. When it
// is returned no salt has been stored.
type IdentityError struct {
	Op  string
	Err error
}

func (e *IdentityError) Error() string {
	return fmt.Sprintf("identity %s: %v", e.Op, e.Err)
}

func (e *IdentityError) Unwrap() error {
	return e.Err
}
