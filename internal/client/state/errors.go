package state

import "errors"

var (
	// ErrVaultLocked is returned by an encrypted flush while no key is
	// installed. It is an integration fault, not a user-facing condition.
	ErrVaultLocked = errors.New("state: vault is locked")
	// ErrVaultCorrupt means the vault layer could not be opened with the
	// supplied key.
	ErrVaultCorrupt = errors.New("state: vault layer cannot be opened")
)
