package ports

import "context"

// KeyValueStore defines the interface for persisting opaque values under string keys.
// Values are encoded by the caller; the store never interprets them.
type KeyValueStore interface {
	// Get retrieves the value for a key.
	// Returns domain.ErrKeyNotFound if the key does not exist.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores the value for a key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes a key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// List returns the keys starting with prefix, sorted ascending.
	List(ctx context.Context, prefix string) ([]string, error)
}
