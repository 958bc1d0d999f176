package metadata

import "gorm.io/gorm"

const (
	ApprovalPending  = "pending"
	ApprovalApproved = "approved"
	ApprovalRejected = "rejected"
)

// CommentOnAsset inserts a new comment row and returns its id (spec §4.11).
func (idx *Index) CommentOnAsset(c Comment) (uint, error) {
	err := idx.WithTx(func(tx *gorm.DB) error {
		return tx.Create(&c).Error
	})
	return c.ID, err
}

// ResolveComment flips a comment's resolved flag to true.
func (idx *Index) ResolveComment(id uint) error {
	return idx.WithTx(func(tx *gorm.DB) error {
		return tx.Model(&Comment{}).Where("id = ?", id).Update("resolved", true).Error
	})
}

// DeleteComment removes a comment row outright.
func (idx *Index) DeleteComment(id uint) error {
	return idx.WithTx(func(tx *gorm.DB) error {
		return tx.Where("id = ?", id).Delete(&Comment{}).Error
	})
}

// CommentsOn returns every comment against an asset hash, oldest first.
// Asset hashes are never validated to exist (spec §4.11: "comments may
// outlive their assets, GC leaves them").
func (idx *Index) CommentsOn(assetHash string) ([]Comment, error) {
	var comments []Comment
	err := idx.db.Where("asset_hash = ?", assetHash).Order("created_at").Find(&comments).Error
	return comments, err
}

// ApproveAsset inserts a new approval row. The asset's current status is
// whatever ApprovalStatus later returns for this (asset, approver) pair.
func (idx *Index) ApproveAsset(a Approval) error {
	return idx.WithTx(func(tx *gorm.DB) error {
		return tx.Create(&a).Error
	})
}

// ApprovalStatus returns the most recent approval row per (asset,
// approver), implementing spec §4.11's "latest row wins" rule.
func (idx *Index) ApprovalStatus(assetHash, approver string) (*Approval, error) {
	var a Approval
	err := idx.db.
		Where("asset_hash = ? AND approver = ?", assetHash, approver).
		Order("created_at DESC, id DESC").
		First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// LatestApprovalsFor returns the most recent approval per approver for an
// asset, with the same ordering as ApprovalStatus.
func (idx *Index) LatestApprovalsFor(assetHash string) ([]Approval, error) {
	var rows []Approval
	err := idx.db.Raw(`
		SELECT a.* FROM approvals a
		WHERE a.asset_hash = ? AND a.id = (
			SELECT b.id FROM approvals b
			WHERE b.asset_hash = a.asset_hash AND b.approver = a.approver
			ORDER BY b.created_at DESC, b.id DESC
			LIMIT 1
		)
	`, assetHash).Scan(&rows).Error
	return rows, err
}
