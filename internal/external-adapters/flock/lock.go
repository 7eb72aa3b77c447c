// Package flock guards a release against concurrent runs with an advisory
// file lock.
package flock

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"

	"github.com/reviewboard/rbrelease/internal/domain/services"
)

// ReleaseLock is an exclusive lock held for the duration of one release
type ReleaseLock struct {
	path string
	lock *flock.Flock
}

// DefaultPath returns the lock file location for a package, under the
// system temp directory
func DefaultPath(packageName string) string {
	name := strings.ToLower(strings.ReplaceAll(packageName, " ", "-"))
	return filepath.Join(os.TempDir(), name+"-release.lock")
}

// New creates a lock at path. Nothing is acquired until Acquire.
func New(path string) *ReleaseLock {
	return &ReleaseLock{path: path, lock: flock.New(path)}
}

// Path returns the lock file path
func (l *ReleaseLock) Path() string {
	return l.path
}

// Acquire takes the lock without blocking. It returns ErrReleaseLocked when
// another process holds it.
func (l *ReleaseLock) Acquire() error {
	if dir := filepath.Dir(l.path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create lock directory: %w", err)
		}
	}

	ok, err := l.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock %s: %w", l.path, err)
	}
	if !ok {
		return fmt.Errorf("%w (lock file %s)", services.ErrReleaseLocked, l.path)
	}
	return nil
}

// Release drops the lock. Releasing an unheld lock is a no-op.
func (l *ReleaseLock) Release() error {
	if !l.lock.Locked() {
		return nil
	}
	if err := l.lock.Unlock(); err != nil {
		return fmt.Errorf("release lock %s: %w", l.path, err)
	}
	return nil
}
