package database

import "context"

// DB is the persistent key/value store used by the ledger and the settings.
// Reads and writes are synchronous and there are no transactions.
type DB interface {
	// Get returns the value stored under key. The boolean reports whether the key exists.
	Get(ctx context.Context, key string) (string, bool, error)
	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error
	// Close releases the underlying resources.
	Close() error
}
