package lockmgr

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/forester-vcs/forester/internal/branch"
	"github.com/forester-vcs/forester/internal/config"
	"github.com/forester-vcs/forester/internal/metadata"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	dfmDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dfmDir, "refs", "branches"), 0755))

	idx, err := metadata.Open(filepath.Join(dfmDir, "forester.db"), zap.NewNop().Sugar())
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })

	require.NoError(t, idx.CreateBranch("main", ""))
	require.NoError(t, os.WriteFile(filepath.Join(dfmDir, "refs", "branches", "main"), []byte("\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dfmDir, "HEAD"), []byte("main\n"), 0644))

	return &Manager{
		Index:    idx,
		Branches: branch.New(dfmDir, idx),
		Config:   config.Default(),
	}
}

func TestLockThenConflictThenUnlock(t *testing.T) {
	m := newTestManager(t)

	ok, err := m.Lock("mesh.obj", "alice", metadata.LockExclusive, 0)
	require.NoError(t, err)
	require.True(t, ok)

	conflicts, err := m.CheckConflicts([]string{"mesh.obj"}, "bob")
	require.NoError(t, err)
	require.Len(t, conflicts, 1)

	conflicts, err = m.CheckConflicts([]string{"mesh.obj"}, "alice")
	require.NoError(t, err)
	require.Empty(t, conflicts)

	released, err := m.Unlock("mesh.obj", "alice")
	require.NoError(t, err)
	require.True(t, released)
}

func TestListReturnsActiveLocksOnCurrentBranch(t *testing.T) {
	m := newTestManager(t)
	_, err := m.Lock("tex.png", "alice", metadata.LockShared, 0)
	require.NoError(t, err)

	locks, err := m.List()
	require.NoError(t, err)
	require.Len(t, locks, 1)
	require.Equal(t, "tex.png", locks[0].FilePath)
}
