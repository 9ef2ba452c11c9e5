package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// DirLock guards a data directory against concurrent processes. SQLite
// WAL files and the HNSW graph snapshots both corrupt under two
// writers, so the server refuses to start on a locked directory.
type DirLock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

// NewDirLock creates a lock for the given data directory. The lock file
// lives at <dir>/.synapse.lock.
func NewDirLock(dir string) *DirLock {
	path := filepath.Join(dir, ".synapse.lock")
	return &DirLock{
		path:  path,
		flock: flock.New(path),
	}
}

// TryLock attempts to acquire the lock without blocking. It returns an
// error when another process holds the directory.
func (l *DirLock) TryLock() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	acquired, err := l.flock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to acquire data directory lock: %w", err)
	}
	if !acquired {
		return fmt.Errorf("data directory %s is in use by another process", filepath.Dir(l.path))
	}
	l.locked = true
	return nil
}

// Unlock releases the lock. Safe to call on an unlocked DirLock.
func (l *DirLock) Unlock() error {
	if !l.locked {
		return nil
	}
	l.locked = false
	return l.flock.Unlock()
}
