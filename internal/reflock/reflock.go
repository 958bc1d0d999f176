// Package reflock implements the repo-level advisory lock (spec §5) that
// serializes commit creation, checkout, branch mutation, stash apply, GC,
// and rebuild — readers (log, show, branch list, lock/comment queries)
// proceed without it. Grounded in SPEC_FULL.md's DOMAIN STACK table, which
// pulls github.com/gofrs/flock from the bufbuild-buf pack repo rather than
// the teacher (which has no single-writer local-repo concept at all, since
// its write path is arbitrated by the Postgres server).
package reflock

import (
	"context"
	"errors"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/forester-vcs/forester/internal/foresterr"
)

const lockFileName = "repo.lock"

// Lock wraps a file-backed advisory lock rooted at dfmDir/repo.lock.
type Lock struct {
	fl *flock.Flock
}

// New returns a Lock bound to dfmDir's repo.lock file. It does not acquire
// the lock; call Acquire or TryAcquire.
func New(dfmDir string) *Lock {
	return &Lock{fl: flock.New(pathFor(dfmDir))}
}

func pathFor(dfmDir string) string {
	return filepath.Join(dfmDir, lockFileName)
}

// Acquire blocks (polling at a short interval) until the exclusive lock is
// obtained or timeout elapses.
func (l *Lock) Acquire(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	locked, err := l.fl.TryLockContext(ctx, 25*time.Millisecond)
	if errors.Is(err, context.DeadlineExceeded) {
		return foresterr.New(foresterr.Timeout, "timed out waiting for repo lock")
	}
	if err != nil {
		return foresterr.Wrap(foresterr.IOError, err, "acquiring repo lock")
	}
	if !locked {
		return foresterr.New(foresterr.Timeout, "timed out waiting for repo lock")
	}
	return nil
}

// TryAcquire attempts to acquire the lock without blocking, returning false
// if another process currently holds it.
func (l *Lock) TryAcquire() (bool, error) {
	locked, err := l.fl.TryLock()
	if err != nil {
		return false, foresterr.Wrap(foresterr.IOError, err, "acquiring repo lock")
	}
	return locked, nil
}

// Release unlocks the repo-level lock.
func (l *Lock) Release() error {
	if err := l.fl.Unlock(); err != nil {
		return foresterr.Wrap(foresterr.IOError, err, "releasing repo lock")
	}
	return nil
}

// WithLock runs fn while holding the exclusive repo lock, always releasing
// it afterward even if fn panics or returns an error.
func WithLock(dfmDir string, timeout time.Duration, fn func() error) error {
	l := New(dfmDir)
	if err := l.Acquire(timeout); err != nil {
		return err
	}
	defer l.Release()
	return fn()
}
