// Package identity derives the vault key from the user's credentials and the
// persisted salt, and verifies re-derived keys against a sealed canary.
//
// The salt is created once, together with the canary and the vault id, as a
// single write-once record stored next to the state layers, so any device
// sharing the backend can re-derive the key. Nothing in this package deletes
// or replaces it.
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/dialkeeper/internal/common"
	"github.com/dmitrijs2005/dialkeeper/internal/cryptox"
	"github.com/dmitrijs2005/dialkeeper/internal/logging"
	"github.com/dmitrijs2005/dialkeeper/internal/shared"
	"github.com/google/uuid"
)

// RecordKey is the backend key of the vault record.
const RecordKey = "vault.identity"

const saltSize = 32

// randBytes and newVaultID are test seams.
var (
	randBytes  = shared.RandBytes
	newVaultID = uuid.NewString
)

// Store keeps the vault record next to the state layers it protects.
type Store interface {
	// Get returns (nil, nil) when the key is absent.
	Get(ctx context.Context, key string) ([]byte, error)
	// Insert writes key only if it does not exist yet, and returns
	// common.ErrorAlreadyExists otherwise.
	Insert(ctx context.Context, key string, value []byte) error
}

// record is written once, in a single insert, so salt, canary and id are
// either all present or all absent.
type record struct {
	Salt   []byte `json:"salt"`
	Canary []byte `json:"canary"`
	ID     string `json:"id"`
}

// Provider is the crypto identity provider of the vault.
type Provider struct {
	store  Store
	logger logging.Logger
}

func NewProvider(store Store, logger logging.Logger) *Provider {
	return &Provider{store: store, logger: logger}
}

func (p *Provider) load(ctx context.Context) (*record, error) {
	data, err := p.store.Get(ctx, RecordKey)
	if err != nil {
		return nil, fmt.Errorf("read vault record: %w", err)
	}
	if data == nil {
		return nil, nil
	}
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil || len(rec.Salt) == 0 {
		return nil, fmt.Errorf("vault record: %w", common.ErrorIncorrectPayload)
	}
	return &rec, nil
}

// Configured reports whether a salt exists.
func (p *Provider) Configured(ctx context.Context) (bool, error) {
	rec, err := p.load(ctx)
	if err != nil {
		return false, err
	}
	return rec != nil, nil
}

// Salt returns the persisted salt, or nil when no vault exists.
func (p *Provider) Salt(ctx context.Context) ([]byte, error) {
	rec, err := p.load(ctx)
	if err != nil || rec == nil {
		return nil, err
	}
	return rec.Salt, nil
}

// VaultID returns the id assigned at vault creation, or "".
func (p *Provider) VaultID(ctx context.Context) (string, error) {
	rec, err := p.load(ctx)
	if err != nil || rec == nil {
		return "", err
	}
	return rec.ID, nil
}

// LoadIdentity returns the vault key for the credentials. On first use it
// creates the salt, canary and vault id; if a vault already exists the key is
// verified exactly like UnlockVault.
func (p *Provider) LoadIdentity(ctx context.Context, username string, password []byte) ([]byte, error) {
	configured, err := p.Configured(ctx)
	if err != nil {
		return nil, &IdentityError{Op: "read salt", Err: err}
	}
	if configured {
		return p.UnlockVault(ctx, username, password)
	}

	salt, err := randBytes(saltSize)
	if err != nil {
		return nil, &IdentityError{Op: "generate salt", Err: err}
	}

	key := cryptox.DeriveVaultKey(username, password, salt)
	canary, err := cryptox.MakeCanary(key)
	if err != nil {
		shared.WipeByteArray(key)
		return nil, &IdentityError{Op: "seal canary", Err: err}
	}

	rec := record{Salt: salt, Canary: canary, ID: newVaultID()}
	data, err := json.Marshal(rec)
	if err != nil {
		shared.WipeByteArray(key)
		return nil, &IdentityError{Op: "encode vault record", Err: err}
	}

	if err := p.store.Insert(ctx, RecordKey, data); err != nil {
		shared.WipeByteArray(key)
		if errors.Is(err, common.ErrorAlreadyExists) {
			// another device created the vault first; the stored salt wins
			return p.UnlockVault(ctx, username, password)
		}
		return nil, &IdentityError{Op: "store salt", Err: err}
	}

	p.logger.Info(ctx, "vault created", "vault_id", rec.ID)
	return key, nil
}

// UnlockVault re-derives the key from the existing salt and verifies it
// against the canary.
func (p *Provider) UnlockVault(ctx context.Context, username string, password []byte) ([]byte, error) {
	rec, err := p.load(ctx)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, &LockError{Reason: ErrNoVaultConfigured}
	}

	key := cryptox.DeriveVaultKey(username, password, rec.Salt)
	if !cryptox.VerifyCanary(key, rec.Canary) {
		shared.WipeByteArray(key)
		p.logger.Warn(ctx, "vault unlock rejected")
		return nil, &LockError{Reason: ErrInvalidPassword}
	}
	return key, nil
}
