// Package review is the CLI-facing façade over the append-mostly comment
// and approval store (spec §4.11). The store itself lives in
// internal/metadata; this package exists only so `cmd/forester` has
// domain-named entry points (Comment, Approve) instead of reaching into
// metadata row types directly.
package review

import "github.com/forester-vcs/forester/internal/metadata"

// Store wraps the metadata index for review operations.
type Store struct {
	Index *metadata.Index
}

// Comment inserts a new review annotation against an asset hash and
// returns its id (spec §4.11 comment_on_asset). Asset hashes are never
// validated to exist: comments may outlive their assets once GC reclaims
// them.
func (s *Store) Comment(assetHash, assetType, author, text string, x, y *float64) (uint, error) {
	return s.Index.CommentOnAsset(metadata.Comment{
		AssetHash: assetHash,
		AssetType: assetType,
		Author:    author,
		Text:      text,
		X:         x,
		Y:         y,
		CreatedAt: metadata.Now().Unix(),
	})
}

// Resolve flips a comment's resolved flag.
func (s *Store) Resolve(id uint) error {
	return s.Index.ResolveComment(id)
}

// DeleteComment removes a comment row outright.
func (s *Store) DeleteComment(id uint) error {
	return s.Index.DeleteComment(id)
}

// CommentsOn returns every comment against an asset hash, oldest first.
func (s *Store) CommentsOn(assetHash string) ([]metadata.Comment, error) {
	return s.Index.CommentsOn(assetHash)
}

// Approve records a new approval decision for (asset, approver) (spec
// §4.11 approve_asset). The current status is whatever StatusFor later
// returns — the most recent row wins.
func (s *Store) Approve(assetHash, assetType, approver, status, comment string) error {
	return s.Index.ApproveAsset(metadata.Approval{
		AssetHash: assetHash,
		AssetType: assetType,
		Approver:  approver,
		Status:    status,
		Comment:   comment,
		CreatedAt: metadata.Now().Unix(),
	})
}

// StatusFor returns the most recent approval row for (asset, approver).
func (s *Store) StatusFor(assetHash, approver string) (*metadata.Approval, error) {
	return s.Index.ApprovalStatus(assetHash, approver)
}

// AllApprovalsFor returns the most recent approval per approver for an
// asset.
func (s *Store) AllApprovalsFor(assetHash string) ([]metadata.Approval, error) {
	return s.Index.LatestApprovalsFor(assetHash)
}
