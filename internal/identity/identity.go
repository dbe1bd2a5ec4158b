// Package identity manages the per-install worker identifier that can be
// appended to the pool username.
package identity

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/restartfu/grid-miner/internal/domain"
	"github.com/restartfu/grid-miner/internal/ports"
)

// Key is the store key the identity lives under.
const Key = "worker.id"

var errEmptyIdentity = errors.New("store kept an empty worker id")

// GetOrCreate returns the stored identity, creating and persisting a new one
// the first time. Concurrent first calls converge on whatever value the store
// kept.
func GetOrCreate(ctx context.Context, store ports.KeyValueStore) (string, error) {
	if store == nil {
		return "", &domain.IdentityStoreError{Op: "get", Err: errors.New("no store configured")}
	}
	id, ok, err := store.Get(ctx, Key)
	if err != nil {
		return "", &domain.IdentityStoreError{Op: "get", Err: err}
	}
	if ok && id != "" {
		return id, nil
	}

	stored, err := store.PutIfAbsent(ctx, Key, uuid.NewString())
	if err != nil {
		return "", &domain.IdentityStoreError{Op: "put", Err: err}
	}
	if stored == "" {
		return "", &domain.IdentityStoreError{Op: "put", Err: errEmptyIdentity}
	}
	return stored, nil
}

// Ephemeral returns a session scoped identity that is never persisted.
func Ephemeral() string {
	return uuid.NewString()
}
