package metadata

import (
	"gorm.io/gorm"

	"github.com/forester-vcs/forester/internal/foresterr"
)

const (
	LockExclusive = "exclusive"
	LockShared    = "shared"
)

// activeLocksQuery scopes a query to locks that have not lazily expired,
// per spec §3: "Locks on expired timestamps are treated as absent for all
// queries and may be lazily purged" (and §5: "evaluated lazily").
func activeLocksQuery(tx *gorm.DB, now int64) *gorm.DB {
	return tx.Where("expires_at IS NULL OR expires_at > ?", now)
}

// LocksOn returns the active locks held on filePath/branch.
func (idx *Index) LocksOn(filePath, branch string) ([]Lock, error) {
	var locks []Lock
	q := activeLocksQuery(idx.db, Now().Unix()).
		Where("file_path = ? AND branch = ?", filePath, branch)
	if err := q.Find(&locks).Error; err != nil {
		return nil, foresterr.Wrap(foresterr.IOError, err, "loading locks for %s@%s", filePath, branch)
	}
	return locks, nil
}

// AcquireLock implements the §4.10 state machine transitions for lock().
// It returns false (no error) when the transition is refused by the state
// machine, and an error only for I/O failures.
func (idx *Index) AcquireLock(filePath, branch, owner, lockType string, expiresAt *int64) (bool, error) {
	acquired := false
	err := idx.WithTx(func(tx *gorm.DB) error {
		now := Now().Unix()
		var existing []Lock
		if err := activeLocksQuery(tx, now).
			Where("file_path = ? AND branch = ?", filePath, branch).
			Find(&existing).Error; err != nil {
			return err
		}

		if len(existing) > 0 {
			anyExclusive := false
			for _, l := range existing {
				if l.LockType == LockExclusive {
					anyExclusive = true
				}
			}
			switch {
			case anyExclusive:
				// Free -> ExclusiveHeld is the only entry; any existing
				// exclusive lock refuses both lock(excl) and lock(shr).
				return nil
			case lockType == LockExclusive:
				// SharedHeld -> lock(excl) also fails.
				return nil
			}
			// SharedHeld -> lock(shr) adds to the owner set, unless this
			// owner already holds a shared lock here.
			for _, l := range existing {
				if l.LockedBy == owner {
					acquired = true
					return nil
				}
			}
		}

		if err := tx.Create(&Lock{
			FilePath:  filePath,
			Branch:    branch,
			LockedBy:  owner,
			LockType:  lockType,
			LockedAt:  now,
			ExpiresAt: expiresAt,
		}).Error; err != nil {
			return err
		}
		acquired = true
		return nil
	})
	return acquired, err
}

// ReleaseLock implements unlock(owner): removes owner's active lock rows on
// filePath/branch. Returns false if owner held no active lock there.
func (idx *Index) ReleaseLock(filePath, branch, owner string) (bool, error) {
	released := false
	err := idx.WithTx(func(tx *gorm.DB) error {
		now := Now().Unix()
		res := activeLocksQuery(tx, now).
			Where("file_path = ? AND branch = ? AND locked_by = ?", filePath, branch, owner).
			Delete(&Lock{})
		if res.Error != nil {
			return res.Error
		}
		released = res.RowsAffected > 0
		return nil
	})
	return released, err
}

// CheckConflicts implements check_conflicts: every active lock on any path
// in paths not owned by user, scoped to branch.
func (idx *Index) CheckConflicts(paths []string, branch, user string) ([]Lock, error) {
	if len(paths) == 0 {
		return nil, nil
	}
	var locks []Lock
	q := activeLocksQuery(idx.db, Now().Unix()).
		Where("file_path IN ? AND branch = ? AND locked_by <> ?", paths, branch, user)
	if err := q.Find(&locks).Error; err != nil {
		return nil, foresterr.Wrap(foresterr.IOError, err, "checking lock conflicts")
	}
	return locks, nil
}

// ListActiveLocksOnBranch returns every non-expired lock for a branch, used
// by `forester status`.
func (idx *Index) ListActiveLocksOnBranch(branch string) ([]Lock, error) {
	var locks []Lock
	q := activeLocksQuery(idx.db, Now().Unix()).Where("branch = ?", branch)
	if err := q.Find(&locks).Error; err != nil {
		return nil, foresterr.Wrap(foresterr.IOError, err, "listing locks for branch %s", branch)
	}
	return locks, nil
}

// PurgeExpiredLocks deletes every lock row past its expiry, an optional
// housekeeping step distinct from the lazy-filtering reads above.
func (idx *Index) PurgeExpiredLocks() (int64, error) {
	var affected int64
	err := idx.WithTx(func(tx *gorm.DB) error {
		res := tx.Where("expires_at IS NOT NULL AND expires_at <= ?", Now().Unix()).Delete(&Lock{})
		if res.Error != nil {
			return res.Error
		}
		affected = res.RowsAffected
		return nil
	})
	return affected, err
}

