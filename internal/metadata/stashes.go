package metadata

import (
	"errors"

	"gorm.io/gorm"

	"github.com/forester-vcs/forester/internal/foresterr"
)

// InsertStash records a new stash row (spec §4.9: "the record is stored
// under the stash table and no branch ref is advanced").
func (idx *Index) InsertStash(s Stash) error {
	return idx.WithTx(func(tx *gorm.DB) error {
		return tx.Create(&s).Error
	})
}

// GetStash loads a stash by hash.
func (idx *Index) GetStash(hash string) (*Stash, error) {
	var s Stash
	err := idx.db.Where("hash = ?", hash).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, foresterr.New(foresterr.UnknownRef, "stash %s does not exist", hash)
	}
	if err != nil {
		return nil, foresterr.Wrap(foresterr.IOError, err, "loading stash %s", hash)
	}
	return &s, nil
}

// ListStashes returns every stash, most recent first.
func (idx *Index) ListStashes() ([]Stash, error) {
	var stashes []Stash
	if err := idx.db.Order("timestamp DESC").Find(&stashes).Error; err != nil {
		return nil, foresterr.Wrap(foresterr.IOError, err, "listing stashes")
	}
	return stashes, nil
}

// DeleteStash removes a stash row. The underlying objects become
// GC-eligible on the next sweep (spec §4.9).
func (idx *Index) DeleteStash(hash string) error {
	return idx.WithTx(func(tx *gorm.DB) error {
		res := tx.Where("hash = ?", hash).Delete(&Stash{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return foresterr.New(foresterr.UnknownRef, "stash %s does not exist", hash)
		}
		return nil
	})
}
