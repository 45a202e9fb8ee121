// Package metadata is the local key/value store of the client. It keeps the
// vault record and the persisted layers of the state tree.
//
// There is no way to delete or clear keys: the salt must outlive every
// logout, and losing it makes the encrypted layer unreadable.
package metadata

import (
	"context"
)

type Repository interface {
	// Get returns (nil, nil) when the key is absent.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set inserts or overwrites key.
	Set(ctx context.Context, key string, value []byte) error
	// Insert writes key only if it does not exist yet; otherwise it returns
	// common.ErrorAlreadyExists and leaves the stored value untouched.
	Insert(ctx context.Context, key string, value []byte) error
	List(ctx context.Context) (map[string][]byte, error)
}
