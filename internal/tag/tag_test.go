package tag

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/forester-vcs/forester/internal/metadata"
)

func newTestManager(t *testing.T) (*Manager, string) {
	t.Helper()
	dfmDir := t.TempDir()
	idx, err := metadata.Open(filepath.Join(dfmDir, "forester.db"), zap.NewNop().Sugar())
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })
	return New(dfmDir, idx), dfmDir
}

func TestCreateWritesRefFileAndIndexRow(t *testing.T) {
	m, dfmDir := newTestManager(t)
	require.NoError(t, m.Create("v1", "deadbeef"))

	data, err := os.ReadFile(filepath.Join(dfmDir, "refs", "tags", "v1"))
	require.NoError(t, err)
	require.Equal(t, "deadbeef\n", string(data))

	tag, err := m.Get("v1")
	require.NoError(t, err)
	require.Equal(t, "deadbeef", tag.CommitHash)
}

func TestCreateRejectsDuplicateName(t *testing.T) {
	m, _ := newTestManager(t)
	require.NoError(t, m.Create("v1", "deadbeef"))
	err := m.Create("v1", "cafef00d")
	require.Error(t, err)
}

func TestDeleteRemovesRefFileAndRow(t *testing.T) {
	m, dfmDir := newTestManager(t)
	require.NoError(t, m.Create("v1", "deadbeef"))

	require.NoError(t, m.Delete("v1"))
	_, err := m.Get("v1")
	require.Error(t, err)

	_, statErr := os.Stat(filepath.Join(dfmDir, "refs", "tags", "v1"))
	require.True(t, os.IsNotExist(statErr))
}

func TestListReturnsTagsOrderedByName(t *testing.T) {
	m, _ := newTestManager(t)
	require.NoError(t, m.Create("v2", "bbb"))
	require.NoError(t, m.Create("v1", "aaa"))

	tags, err := m.List()
	require.NoError(t, err)
	require.Len(t, tags, 2)
	require.Equal(t, "v1", tags[0].Name)
	require.Equal(t, "v2", tags[1].Name)
}
