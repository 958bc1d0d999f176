package metadata

import (
	"errors"

	"gorm.io/gorm"
)

// GetMeta reads a repo_meta value; ok is false when the key is unset.
func (idx *Index) GetMeta(key string) (string, bool, error) {
	var row RepoMeta
	err := idx.db.Where("key = ?", key).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return row.Value, true, nil
}

// SetMeta upserts a repo_meta key/value pair.
func (idx *Index) SetMeta(key, value string) error {
	return idx.WithTx(func(tx *gorm.DB) error {
		return tx.Save(&RepoMeta{Key: key, Value: value}).Error
	})
}

// UpsertMesh records (or updates) a mesh's relational metadata. Content
// addressing means the same hash is written at most once meaningfully; a
// repeat upsert with the same hash is a no-op in practice.
func (idx *Index) UpsertMesh(m Mesh) error {
	return idx.WithTx(func(tx *gorm.DB) error {
		return tx.Save(&m).Error
	})
}

// UpsertTexture records (or updates) a texture's relational metadata.
func (idx *Index) UpsertTexture(t Texture) error {
	return idx.WithTx(func(tx *gorm.DB) error {
		return tx.Save(&t).Error
	})
}

// MeshByHash loads a mesh's relational record.
func (idx *Index) MeshByHash(hash string) (*Mesh, error) {
	var m Mesh
	err := idx.db.Where("hash = ?", hash).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &m, err
}

// TextureByHash loads a texture's relational record.
func (idx *Index) TextureByHash(hash string) (*Texture, error) {
	var t Texture
	err := idx.db.Where("hash = ?", hash).First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &t, err
}

// AllMeshHashes returns the hash of every row in the meshes table. GC's
// sweep walks the object store rather than this table.
func (idx *Index) AllMeshHashes() ([]string, error) {
	var hashes []string
	err := idx.db.Model(&Mesh{}).Pluck("hash", &hashes).Error
	return hashes, err
}

// AllTextureHashes returns every stored texture hash.
func (idx *Index) AllTextureHashes() ([]string, error) {
	var hashes []string
	err := idx.db.Model(&Texture{}).Pluck("hash", &hashes).Error
	return hashes, err
}

// TexturesForCommit returns the texture hashes linked to a commit via
// texture_commits.
func (idx *Index) TexturesForCommit(commitHash string) ([]string, error) {
	var hashes []string
	err := idx.db.Model(&TextureCommit{}).
		Where("commit_hash = ?", commitHash).
		Pluck("texture_hash", &hashes).Error
	return hashes, err
}

// DeleteMeshes removes mesh rows swept by GC (spec §4.12 step 4).
func (idx *Index) DeleteMeshes(hashes []string) error {
	if len(hashes) == 0 {
		return nil
	}
	return idx.WithTx(func(tx *gorm.DB) error {
		return tx.Where("hash IN ?", hashes).Delete(&Mesh{}).Error
	})
}

// DeleteTextures removes texture rows swept by GC, along with their
// texture_commits linkage rows (spec §4.12 step 4).
func (idx *Index) DeleteTextures(hashes []string) error {
	if len(hashes) == 0 {
		return nil
	}
	return idx.WithTx(func(tx *gorm.DB) error {
		if err := tx.Where("texture_hash IN ?", hashes).Delete(&TextureCommit{}).Error; err != nil {
			return err
		}
		return tx.Where("hash IN ?", hashes).Delete(&Texture{}).Error
	})
}
