package metadata

import (
	"errors"

	"gorm.io/gorm"

	"github.com/forester-vcs/forester/internal/foresterr"
)

// CreateTag inserts a new tag row (supplemented feature, spec §9 Open
// Question, exposed through `forester tag`).
func (idx *Index) CreateTag(name, commitHash string) error {
	return idx.WithTx(func(tx *gorm.DB) error {
		var existing Tag
		err := tx.Where("name = ?", name).First(&existing).Error
		if err == nil {
			return foresterr.New(foresterr.AlreadyExists, "tag %q already exists", name)
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		return tx.Create(&Tag{Name: name, CommitHash: commitHash, CreatedAt: Now().Unix()}).Error
	})
}

// GetTag loads a tag by name.
func (idx *Index) GetTag(name string) (*Tag, error) {
	var t Tag
	err := idx.db.Where("name = ?", name).First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, foresterr.New(foresterr.UnknownRef, "tag %q does not exist", name)
	}
	if err != nil {
		return nil, foresterr.Wrap(foresterr.IOError, err, "loading tag %q", name)
	}
	return &t, nil
}

// ListTags returns every tag ordered by name.
func (idx *Index) ListTags() ([]Tag, error) {
	var tags []Tag
	if err := idx.db.Order("name").Find(&tags).Error; err != nil {
		return nil, foresterr.Wrap(foresterr.IOError, err, "listing tags")
	}
	return tags, nil
}

// DeleteTag removes a tag row.
func (idx *Index) DeleteTag(name string) error {
	return idx.WithTx(func(tx *gorm.DB) error {
		res := tx.Where("name = ?", name).Delete(&Tag{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return foresterr.New(foresterr.UnknownRef, "tag %q does not exist", name)
		}
		return nil
	})
}
