// Package state is the application's mutation-observable key/value tree.
//
// The tree is persisted in two layers. The plain layer is written as JSON and
// is always readable; it carries the authentication flag and the vault
// settings so the lock screen can be decided before any key exists. The vault
// layer is sealed with the key derived by the identity provider and is only
// materialized in memory between Unlock and Lock.
package state

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/dialkeeper/internal/cryptox"
	"github.com/dmitrijs2005/dialkeeper/internal/logging"
	"github.com/dmitrijs2005/dialkeeper/internal/shared"
)

// Backend keys of the two persisted layers.
const (
	PlainKey = "state.plain"
	VaultKey = "state.vault"
)

// Paths of the vault flags in the plain layer.
const (
	PathVaultEncrypted = "settings.vault.encrypted"
	PathVaultUnlocked  = "settings.vault.unlocked"
	PathVaultActive    = "settings.vault.active"
)

// Backend stores opaque blobs by key. Get returns (nil, nil) for a missing key.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// Options control how SetState flushes the partial.
type Options struct {
	Persist bool
	// Encrypt overrides the vault's encrypted flag for this flush.
	Encrypt *bool
}

// Bool is a helper for Options.Encrypt.
func Bool(b bool) *bool { return &b }

// Listener receives a snapshot of the tree after every merge.
type Listener func(snapshot map[string]any)

type Store struct {
	backend Backend
	logger  logging.Logger

	mu    sync.RWMutex
	tree  map[string]any
	plain map[string]any
	vault map[string]any
	key   []byte

	subsMu    sync.RWMutex
	listeners map[int]Listener
	nextSub   int
}

func NewStore(backend Backend, logger logging.Logger) *Store {
	return &Store{
		backend:   backend,
		logger:    logger,
		tree:      make(map[string]any),
		plain:     make(map[string]any),
		listeners: make(map[int]Listener),
	}
}

// Load restores the plain layer. The vault layer stays closed until Unlock.
func (s *Store) Load(ctx context.Context) error {
	data, err := s.backend.Get(ctx, PlainKey)
	if err != nil {
		return fmt.Errorf("load plain state: %w", err)
	}

	plain := make(map[string]any)
	if data != nil {
		if err := json.Unmarshal(data, &plain); err != nil {
			return fmt.Errorf("decode plain state: %w", err)
		}
	}

	s.mu.Lock()
	s.plain = plain
	s.tree = clone(plain)
	s.dropKeyLocked()
	snap := clone(s.tree)
	s.mu.Unlock()

	s.notify(snap)
	return nil
}

// SetState deep-merges partial into the tree. With Persist set the partial is
// also merged into one of the persisted layers and flushed; if the flush fails
// nothing is merged.
func (s *Store) SetState(ctx context.Context, partial map[string]any, opts Options) error {
	s.mu.Lock()

	if opts.Persist {
		encrypt := s.encryptedLocked()
		if opts.Encrypt != nil {
			encrypt = *opts.Encrypt
		}

		var err error
		if encrypt {
			err = s.flushVaultLocked(ctx, partial)
		} else {
			err = s.flushPlainLocked(ctx, partial)
		}
		if err != nil {
			s.mu.Unlock()
			return err
		}
	}

	merge(s.tree, partial)
	snap := clone(s.tree)
	s.mu.Unlock()

	s.notify(snap)
	return nil
}

func (s *Store) flushPlainLocked(ctx context.Context, partial map[string]any) error {
	next := clone(s.plain)
	merge(next, partial)

	data, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("encode plain state: %w", err)
	}
	if err := s.backend.Set(ctx, PlainKey, data); err != nil {
		return fmt.Errorf("persist plain state: %w", err)
	}
	s.plain = next
	return nil
}

func (s *Store) flushVaultLocked(ctx context.Context, partial map[string]any) error {
	if s.key == nil {
		return ErrVaultLocked
	}

	next := clone(s.vault)
	merge(next, partial)

	blob, err := cryptox.SealJSON(next, s.key)
	if err != nil {
		return fmt.Errorf("seal vault state: %w", err)
	}
	if err := s.backend.Set(ctx, VaultKey, blob); err != nil {
		return fmt.Errorf("persist vault state: %w", err)
	}
	s.vault = next
	return nil
}

// Unlock installs key and materializes the vault layer. The store keeps its
// own copy of key.
func (s *Store) Unlock(ctx context.Context, key []byte) error {
	blob, err := s.backend.Get(ctx, VaultKey)
	if err != nil {
		return fmt.Errorf("load vault state: %w", err)
	}

	vault := make(map[string]any)
	if blob != nil {
		if err := cryptox.OpenJSON(blob, key, &vault); err != nil {
			s.logger.Warn(ctx, "vault layer rejected the key")
			return ErrVaultCorrupt
		}
	}

	s.mu.Lock()
	s.dropKeyLocked()
	s.key = shared.CloneBytes(key)
	s.vault = vault
	merge(s.tree, vault)
	s.mu.Unlock()

	return s.SetState(ctx, Patch(map[string]any{
		PathVaultEncrypted: true,
		PathVaultUnlocked:  true,
	}), Options{Persist: true, Encrypt: Bool(false)})
}

// Lock zeroes the key and reverts the tree to the plain layer.
func (s *Store) Lock() {
	s.mu.Lock()
	s.dropKeyLocked()
	s.vault = nil
	s.tree = clone(s.plain)
	snap := clone(s.tree)
	s.mu.Unlock()

	s.notify(snap)
}

func (s *Store) dropKeyLocked() {
	shared.WipeByteArray(s.key)
	s.key = nil
}

func (s *Store) encryptedLocked() bool {
	v, _ := lookup(s.tree, PathVaultEncrypted)
	b, _ := v.(bool)
	return b
}

// Encrypted reports whether persistence defaults to the vault layer.
func (s *Store) Encrypted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.encryptedLocked()
}

// Unlocked reports whether a key is installed.
func (s *Store) Unlocked() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.key != nil
}

// Get reads a dotted path, e.g. "user.username".
func (s *Store) Get(path string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := lookup(s.tree, path)
	if !ok {
		return nil, false
	}
	return cloneValue(v), true
}

func (s *Store) GetString(path string) string {
	v, _ := s.Get(path)
	str, _ := v.(string)
	return str
}

func (s *Store) GetBool(path string) bool {
	v, _ := s.Get(path)
	b, _ := v.(bool)
	return b
}

// GetInt accepts both in-memory ints and numbers decoded from JSON.
func (s *Store) GetInt(path string) int {
	v, _ := s.Get(path)
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	case json.Number:
		i, _ := n.Int64()
		return int(i)
	}
	return 0
}

func (s *Store) Snapshot() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clone(s.tree)
}

// Subscribe registers fn and returns a function removing it. Listeners run
// synchronously on the goroutine that mutated the store.
func (s *Store) Subscribe(fn Listener) func() {
	s.subsMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.listeners[id] = fn
	s.subsMu.Unlock()

	return func() {
		s.subsMu.Lock()
		delete(s.listeners, id)
		s.subsMu.Unlock()
	}
}

func (s *Store) notify(snap map[string]any) {
	s.subsMu.RLock()
	fns := make([]Listener, 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.subsMu.RUnlock()

	for _, fn := range fns {
		fn(snap)
	}
}
