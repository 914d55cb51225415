// Package lockfile implements the lock discipline used for every write
// under .git: create <path>.lock with O_CREAT|O_EXCL, write the new
// content, then rename the lock over the target. Concurrent writers fail
// fast instead of blocking, and readers never observe a partial file
package lockfile

import (
	"errors"
	"os"
	"path/filepath"

	"golang.org/x/xerrors"
)

var (
	// ErrLockDenied is returned when the lock file already exists,
	// meaning another process is (or was) holding the lock
	ErrLockDenied = errors.New("lock denied")

	// ErrStaleLock is returned when acting on a lock that is not
	// currently held
	ErrStaleLock = errors.New("not holding lock")
)

// Lockfile guards updates to a single file
type Lockfile struct {
	path     string
	lockPath string
	f        *os.File
}

// New returns a Lockfile for the given target path. The lock itself
// is not acquired until HoldForUpdate is called
func New(path string) *Lockfile {
	return &Lockfile{
		path:     path,
		lockPath: path + ".lock",
	}
}

// Path returns the path of the guarded file
func (l *Lockfile) Path() string {
	return l.path
}

// IsHeld reports whether the lock is currently held
func (l *Lockfile) IsHeld() bool {
	return l.f != nil
}

// HoldForUpdate acquires the lock. ErrLockDenied is returned if the
// lock file already exists. A missing parent directory is created on
// demand and the acquisition retried once
func (l *Lockfile) HoldForUpdate() error {
	if l.f != nil {
		return nil
	}

	f, err := l.open()
	if os.IsNotExist(err) {
		if err = os.MkdirAll(filepath.Dir(l.lockPath), 0o755); err != nil {
			return xerrors.Errorf("could not create parent directory: %w", err)
		}
		f, err = l.open()
	}
	if err != nil {
		if os.IsExist(err) {
			return xerrors.Errorf("unable to create %q: file exists: %w", l.lockPath, ErrLockDenied)
		}
		return xerrors.Errorf("could not create lock file: %w", err)
	}
	l.f = f
	return nil
}

func (l *Lockfile) open() (*os.File, error) {
	return os.OpenFile(l.lockPath, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
}

// Write appends data to the lock file
func (l *Lockfile) Write(data []byte) error {
	if l.f == nil {
		return ErrStaleLock
	}
	if _, err := l.f.Write(data); err != nil {
		return xerrors.Errorf("could not write to lock file: %w", err)
	}
	return nil
}

// Commit atomically renames the lock file over the target and releases
// the lock
func (l *Lockfile) Commit() error {
	if l.f == nil {
		return ErrStaleLock
	}
	if err := l.f.Close(); err != nil {
		return xerrors.Errorf("could not close lock file: %w", err)
	}
	if err := os.Rename(l.lockPath, l.path); err != nil {
		return xerrors.Errorf("could not rename lock file into place: %w", err)
	}
	l.f = nil
	return nil
}

// Rollback discards the lock file, leaving the target untouched
func (l *Lockfile) Rollback() error {
	if l.f == nil {
		return ErrStaleLock
	}
	if err := l.f.Close(); err != nil {
		return xerrors.Errorf("could not close lock file: %w", err)
	}
	if err := os.Remove(l.lockPath); err != nil {
		return xerrors.Errorf("could not remove lock file: %w", err)
	}
	l.f = nil
	return nil
}
