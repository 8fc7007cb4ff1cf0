// Package keychain persists opaque secrets keyed by name.
//
// [Store] is the capability the rest of the module depends on. [SQLiteStore] keeps sealed blobs in the
// application database, and [MemoryStore] backs tests and ephemeral runs. Neither knows what the bytes mean.
//
// # Errors
//
//   - [shared.ErrItemNotFound] : Load of a key that was never saved (or was deleted)
//   - [shared.ErrUnexpectedData] : stored bytes could not be opened with the current key
package keychain

import "context"

// Store saves, loads and deletes secrets by key.
//
// Save replaces any previous value for the key. Delete of a missing key is not an error.
type Store interface {
	Save(ctx context.Context, key string, data []byte) error
	Load(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}
