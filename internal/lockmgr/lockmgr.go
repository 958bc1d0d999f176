// Package lockmgr is the CLI-facing façade over the lock state machine
// (spec §4.10), threading the current branch and the repo's configured
// default lock TTL so callers never have to resolve either themselves.
// The state machine itself lives in internal/metadata, grounded there on
// the teacher's internal/state/redis_state.go TTL/ownership semantics;
// this package only adds the branch/expiry bookkeeping a caller would
// otherwise duplicate at every call site.
package lockmgr

import (
	"github.com/forester-vcs/forester/internal/branch"
	"github.com/forester-vcs/forester/internal/config"
	"github.com/forester-vcs/forester/internal/metadata"
)

// Manager wires the metadata index to the current-branch resolver and the
// repo's configured lock defaults.
type Manager struct {
	Index    *metadata.Index
	Branches *branch.Manager
	Config   config.RepoConfig
}

// Lock acquires a lock on filePath on the current branch. ttlSeconds, if
// zero, falls back to the repo's configured LockDefaultTTL (zero meaning
// no expiry).
func (m *Manager) Lock(filePath, owner, lockType string, ttlSeconds int64) (bool, error) {
	branchName, err := m.currentBranch()
	if err != nil {
		return false, err
	}

	var expiresAt *int64
	if ttlSeconds == 0 {
		ttlSeconds = int64(m.Config.LockDefaultTTL.Seconds())
	}
	if ttlSeconds > 0 {
		exp := metadata.Now().Unix() + ttlSeconds
		expiresAt = &exp
	}
	return m.Index.AcquireLock(filePath, branchName, owner, lockType, expiresAt)
}

// Unlock releases owner's lock on filePath on the current branch.
func (m *Manager) Unlock(filePath, owner string) (bool, error) {
	branchName, err := m.currentBranch()
	if err != nil {
		return false, err
	}
	return m.Index.ReleaseLock(filePath, branchName, owner)
}

// CheckConflicts reports every active lock on paths not owned by user, on
// the current branch.
func (m *Manager) CheckConflicts(paths []string, user string) ([]metadata.Lock, error) {
	branchName, err := m.currentBranch()
	if err != nil {
		return nil, err
	}
	return m.Index.CheckConflicts(paths, branchName, user)
}

// List returns every active lock on the current branch, used by `forester
// status`.
func (m *Manager) List() ([]metadata.Lock, error) {
	branchName, err := m.currentBranch()
	if err != nil {
		return nil, err
	}
	return m.Index.ListActiveLocksOnBranch(branchName)
}

// PurgeExpired deletes every lock row past its expiry across all branches.
func (m *Manager) PurgeExpired() (int64, error) {
	return m.Index.PurgeExpiredLocks()
}

func (m *Manager) currentBranch() (string, error) {
	branchName, detached, err := m.Branches.Current()
	if err != nil {
		return "", err
	}
	if detached != "" {
		return "@" + detached, nil
	}
	return branchName, nil
}
