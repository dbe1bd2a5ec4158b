package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/restartfu/grid-miner/internal/fsutil"
)

const lockRetryDelay = 50 * time.Millisecond

// FileStore keeps string values in a small JSON document. A lock file next to
// the document serializes writers across processes.
type FileStore struct {
	path string
	lock *flock.Flock

	mu sync.Mutex
}

func NewFileStore(path string) (*FileStore, error) {
	if err := fsutil.EnsureDir(path); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}
	return &FileStore{
		path: path,
		lock: flock.New(path + ".lock"),
	}, nil
}

func (s *FileStore) Get(ctx context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	locked, err := s.lock.TryRLockContext(ctx, lockRetryDelay)
	if err != nil {
		return "", false, fmt.Errorf("acquiring read lock: %w", err)
	}
	if !locked {
		return "", false, fmt.Errorf("timeout waiting for store lock")
	}
	defer s.lock.Unlock()

	values, err := readValues(s.path)
	if err != nil {
		return "", false, err
	}
	value, ok := values[key]
	return value, ok, nil
}

func (s *FileStore) PutIfAbsent(ctx context.Context, key, value string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	locked, err := s.lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return "", fmt.Errorf("acquiring lock: %w", err)
	}
	if !locked {
		return "", fmt.Errorf("timeout waiting for store lock")
	}
	defer s.lock.Unlock()

	values, err := readValues(s.path)
	if err != nil {
		return "", err
	}
	if existing, ok := values[key]; ok && existing != "" {
		return existing, nil
	}
	values[key] = value
	if err := fsutil.WriteJSON(s.path, values); err != nil {
		return "", fmt.Errorf("writing store: %w", err)
	}
	return value, nil
}

func (s *FileStore) Close() error {
	return s.lock.Close()
}

func readValues(path string) (map[string]string, error) {
	values := make(map[string]string)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return values, nil
		}
		return nil, fmt.Errorf("reading store: %w", err)
	}
	if len(data) == 0 {
		return values, nil
	}
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("decoding store: %w", err)
	}
	return values, nil
}
