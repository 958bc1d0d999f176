package review

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/forester-vcs/forester/internal/metadata"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	idx, err := metadata.Open(filepath.Join(dir, "forester.db"), zap.NewNop().Sugar())
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })
	return &Store{Index: idx}
}

func TestCommentLifecycle(t *testing.T) {
	s := newTestStore(t)

	id, err := s.Comment("mesh-hash", "mesh", "alice", "looks off-model", nil, nil)
	require.NoError(t, err)
	require.NotZero(t, id)

	comments, err := s.CommentsOn("mesh-hash")
	require.NoError(t, err)
	require.Len(t, comments, 1)
	require.False(t, comments[0].Resolved)

	require.NoError(t, s.Resolve(id))
	comments, err = s.CommentsOn("mesh-hash")
	require.NoError(t, err)
	require.True(t, comments[0].Resolved)

	require.NoError(t, s.DeleteComment(id))
	comments, err = s.CommentsOn("mesh-hash")
	require.NoError(t, err)
	require.Empty(t, comments)
}

func TestApprovalLatestRowWins(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.Approve("mesh-hash", "mesh", "alice", metadata.ApprovalPending, ""))
	require.NoError(t, s.Approve("mesh-hash", "mesh", "alice", metadata.ApprovalApproved, "looks good"))

	status, err := s.StatusFor("mesh-hash", "alice")
	require.NoError(t, err)
	require.Equal(t, metadata.ApprovalApproved, status.Status)
}

func TestCommentsSurviveWithoutAssetValidation(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Comment("nonexistent-hash", "blob", "bob", "orphaned comment", nil, nil)
	require.NoError(t, err)
}
