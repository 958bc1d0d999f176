package metadata

import (
	"errors"

	"gorm.io/gorm"

	"github.com/forester-vcs/forester/internal/foresterr"
)

// CreateBranch inserts a new branch row pointing at tipHash. Fails with
// AlreadyExists if the name is taken (spec §4.8 create).
func (idx *Index) CreateBranch(name, tipHash string) error {
	now := Now().Unix()
	return idx.WithTx(func(tx *gorm.DB) error {
		var existing Branch
		err := tx.Where("name = ?", name).First(&existing).Error
		if err == nil {
			return foresterr.New(foresterr.AlreadyExists, "branch %q already exists", name)
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		return tx.Create(&Branch{
			Name:      name,
			TipHash:   tipHash,
			CreatedAt: now,
			UpdatedAt: now,
		}).Error
	})
}

// GetBranch fetches a branch row by name.
func (idx *Index) GetBranch(name string) (*Branch, error) {
	var b Branch
	err := idx.db.Where("name = ?", name).First(&b).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, foresterr.New(foresterr.UnknownRef, "branch %q does not exist", name)
	}
	if err != nil {
		return nil, foresterr.Wrap(foresterr.IOError, err, "loading branch %q", name)
	}
	return &b, nil
}

// ListBranches returns every branch row ordered by name.
func (idx *Index) ListBranches() ([]Branch, error) {
	var bs []Branch
	if err := idx.db.Order("name").Find(&bs).Error; err != nil {
		return nil, foresterr.Wrap(foresterr.IOError, err, "listing branches")
	}
	return bs, nil
}

// AdvanceBranch moves name's tip to newTip inside tx. Used by InsertCommit
// for the commit engine's step 8.
func (idx *Index) AdvanceBranch(tx *gorm.DB, name, newTip string) error {
	res := tx.Model(&Branch{}).Where("name = ?", name).
		Updates(map[string]interface{}{"tip_hash": newTip, "updated_at": Now().Unix()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return foresterr.New(foresterr.UnknownRef, "branch %q does not exist", name)
	}
	return nil
}

// DeleteBranch removes a branch row. Callers enforce the "not current" and
// "not the only branch" invariants (spec §4.8 delete) before calling this.
func (idx *Index) DeleteBranch(name string) error {
	return idx.WithTx(func(tx *gorm.DB) error {
		res := tx.Where("name = ?", name).Delete(&Branch{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return foresterr.New(foresterr.UnknownRef, "branch %q does not exist", name)
		}
		return nil
	})
}

// UpsertBranch creates or overwrites a branch row by name, used by rebuild
// (spec §4.13) to reconstruct the branches table from refs/branches/* files.
// It never touches is_current: rebuild restores tips, not which branch HEAD
// points at.
func (idx *Index) UpsertBranch(name, tipHash string) error {
	now := Now().Unix()
	return idx.WithTx(func(tx *gorm.DB) error {
		var existing Branch
		err := tx.Where("name = ?", name).First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return tx.Create(&Branch{Name: name, TipHash: tipHash, CreatedAt: now, UpdatedAt: now}).Error
		}
		if err != nil {
			return err
		}
		return tx.Model(&Branch{}).Where("name = ?", name).
			Updates(map[string]interface{}{"tip_hash": tipHash, "updated_at": now}).Error
	})
}

// SetCurrentBranch clears is_current on every branch and sets it on name,
// mirroring HEAD's move in one transaction.
func (idx *Index) SetCurrentBranch(name string) error {
	return idx.WithTx(func(tx *gorm.DB) error {
		if err := tx.Model(&Branch{}).Where("is_current = ?", true).
			Update("is_current", false).Error; err != nil {
			return err
		}
		res := tx.Model(&Branch{}).Where("name = ?", name).Update("is_current", true)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return foresterr.New(foresterr.UnknownRef, "branch %q does not exist", name)
		}
		return nil
	})
}
