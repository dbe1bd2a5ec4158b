// Package store provides the persistent key/value backends used for the
// worker identity.
package store

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/restartfu/grid-miner/internal/ports"
)

const (
	DriverFile   = "file"
	DriverSQLite = "sqlite"
)

// Open returns the store for driver rooted in dataDir.
func Open(ctx context.Context, driver, dataDir string) (ports.KeyValueStore, error) {
	switch driver {
	case DriverFile, "":
		return NewFileStore(filepath.Join(dataDir, "store.json"))
	case DriverSQLite:
		return OpenSQLiteStore(ctx, filepath.Join(dataDir, "store.db"))
	default:
		return nil, fmt.Errorf("unsupported store driver: %s", driver)
	}
}
