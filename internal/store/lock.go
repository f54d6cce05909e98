package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// lockFileName sits next to the bleve directory, never inside it.
const lockFileName = "write.lock"

// writeLock guards a store location against a second writer process.
type writeLock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

func newWriteLock(location string) *writeLock {
	lockPath := filepath.Join(location, lockFileName)
	return &writeLock{
		path:  lockPath,
		flock: flock.New(lockPath),
	}
}

// tryLock attempts to acquire the lock without blocking.
// Returns false when another process (or another Store in this process) holds it.
func (l *writeLock) tryLock() (bool, error) {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return false, fmt.Errorf("failed to create lock directory: %w", err)
	}

	acquired, err := l.flock.TryLock()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock: %w", err)
	}
	if acquired {
		l.locked = true
	}
	return acquired, nil
}

// unlock is safe to call on an unlocked writeLock.
func (l *writeLock) unlock() error {
	if !l.locked {
		return nil
	}
	l.locked = false
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}
