package ports

import "context"

// KeyValueStore is the process-wide persistent storage used for the worker
// identity.
type KeyValueStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	// PutIfAbsent stores value under key unless a value already exists, and
	// returns the value held by the store afterwards.
	PutIfAbsent(ctx context.Context, key, value string) (string, error)
	Close() error
}
