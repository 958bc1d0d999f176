package metadata

import (
	"errors"

	"gorm.io/gorm"

	"github.com/forester-vcs/forester/internal/foresterr"
)

// CommitRecord bundles everything the commit engine needs to write in one
// transaction (spec §4.6 step 8: "insert commit row, advance branch ref,
// update HEAD, record commit_files and texture_commits").
type CommitRecord struct {
	Commit         Commit
	Files          []CommitFile
	TreeEntries    []TreeEntry
	TextureCommits []TextureCommit
	BranchName     string
}

// InsertCommit performs the full transactional write of a new commit:
// commit row, its flattened files and tree entries, texture linkage, and
// the branch tip advance, matching spec §4.6 step 8 exactly.
func (idx *Index) InsertCommit(rec CommitRecord) error {
	return idx.WithTx(func(tx *gorm.DB) error {
		if err := tx.Create(&rec.Commit).Error; err != nil {
			return err
		}
		if len(rec.Files) > 0 {
			if err := tx.Create(&rec.Files).Error; err != nil {
				return err
			}
		}
		if len(rec.TreeEntries) > 0 {
			if err := tx.Create(&rec.TreeEntries).Error; err != nil {
				return err
			}
		}
		if len(rec.TextureCommits) > 0 {
			if err := tx.Create(&rec.TextureCommits).Error; err != nil {
				return err
			}
		}
		return idx.AdvanceBranch(tx, rec.BranchName, rec.Commit.Hash)
	})
}

// GetCommit loads a commit row by its full hash.
func (idx *Index) GetCommit(hash string) (*Commit, error) {
	var c Commit
	err := idx.db.Where("hash = ?", hash).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, foresterr.New(foresterr.UnknownRef, "commit %s does not exist", hash)
	}
	if err != nil {
		return nil, foresterr.Wrap(foresterr.IOError, err, "loading commit %s", hash)
	}
	return &c, nil
}

// ResolveCommitPrefix finds the unique commit whose hash has the given
// (possibly abbreviated) prefix, for checkout's raw-commit-hash resolution
// (spec §4.7: "otherwise as a (possibly abbreviated) commit hash").
func (idx *Index) ResolveCommitPrefix(prefix string) (*Commit, error) {
	var matches []Commit
	if err := idx.db.Where("hash LIKE ?", prefix+"%").Limit(2).Find(&matches).Error; err != nil {
		return nil, foresterr.Wrap(foresterr.IOError, err, "resolving commit prefix %s", prefix)
	}
	switch len(matches) {
	case 0:
		return nil, foresterr.New(foresterr.UnknownRef, "no commit matches prefix %s", prefix)
	case 1:
		return &matches[0], nil
	default:
		return nil, foresterr.New(foresterr.UnknownRef, "ambiguous commit prefix %s", prefix)
	}
}

// CommitFiles returns the flattened file listing for a commit, used by
// `forester show --full`.
func (idx *Index) CommitFiles(hash string) ([]CommitFile, error) {
	var files []CommitFile
	if err := idx.db.Where("commit_hash = ?", hash).Order("path").Find(&files).Error; err != nil {
		return nil, foresterr.Wrap(foresterr.IOError, err, "loading files for commit %s", hash)
	}
	return files, nil
}

// TreeEntries returns the flattened entries for a tree hash.
func (idx *Index) TreeEntries(treeHash string) ([]TreeEntry, error) {
	var entries []TreeEntry
	if err := idx.db.Where("tree_hash = ?", treeHash).Order("path").Find(&entries).Error; err != nil {
		return nil, foresterr.Wrap(foresterr.IOError, err, "loading tree entries for %s", treeHash)
	}
	return entries, nil
}

// ListCommitsOnBranch walks the first-parent chain starting at a branch's
// tip, grounded in the teacher's GitStyleCommitStore.ListCommits.
func (idx *Index) ListCommitsOnBranch(branchName string, limit int) ([]Commit, error) {
	branch, err := idx.GetBranch(branchName)
	if err != nil {
		return nil, err
	}

	var out []Commit
	cursor := branch.TipHash
	for cursor != "" {
		if limit > 0 && len(out) >= limit {
			break
		}
		c, err := idx.GetCommit(cursor)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
		cursor = c.ParentHash
	}
	return out, nil
}

// SetCommitScreenshot links a stored screenshot blob hash into an existing
// commit row (spec §4.6 step 9).
func (idx *Index) SetCommitScreenshot(commitHash, screenshotHash string) error {
	return idx.WithTx(func(tx *gorm.DB) error {
		return tx.Model(&Commit{}).Where("hash = ?", commitHash).
			Update("screenshot_hash", screenshotHash).Error
	})
}

// DeleteCommits removes the given commit hashes and their commit_files rows
// in one transaction, used by auto-compress (spec §4.6 step 12) and GC
// (spec §4.12 step 4). tree_entries rows, keyed by tree hash, are left in
// place.
func (idx *Index) DeleteCommits(hashes []string) error {
	if len(hashes) == 0 {
		return nil
	}
	return idx.WithTx(func(tx *gorm.DB) error {
		if err := tx.Where("commit_hash IN ?", hashes).Delete(&CommitFile{}).Error; err != nil {
			return err
		}
		if err := tx.Where("hash IN ?", hashes).Delete(&Commit{}).Error; err != nil {
			return err
		}
		return nil
	})
}

// UpsertCommit writes (or overwrites) a single commit row without touching
// branch tips or commit_files, used by rebuild (spec §4.13) to reconstruct
// the commits table directly from stored commit objects.
func (idx *Index) UpsertCommit(c Commit) error {
	return idx.WithTx(func(tx *gorm.DB) error {
		return tx.Save(&c).Error
	})
}

// ReplaceCommitFiles drops and rewrites a commit's flattened file listing,
// used by rebuild once a commit's tree has been walked back into entries.
func (idx *Index) ReplaceCommitFiles(commitHash string, files []CommitFile) error {
	return idx.WithTx(func(tx *gorm.DB) error {
		if err := tx.Where("commit_hash = ?", commitHash).Delete(&CommitFile{}).Error; err != nil {
			return err
		}
		if len(files) == 0 {
			return nil
		}
		return tx.Create(&files).Error
	})
}
