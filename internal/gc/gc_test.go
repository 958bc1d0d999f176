package gc

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/forester-vcs/forester/internal/branch"
	"github.com/forester-vcs/forester/internal/commitengine"
	"github.com/forester-vcs/forester/internal/config"
	"github.com/forester-vcs/forester/internal/metadata"
	"github.com/forester-vcs/forester/internal/objstore"
)

type testRepo struct {
	root   string
	dfmDir string
	store  *objstore.Store
	idx    *metadata.Index
	ce     *commitengine.Engine
	gc     *Engine
}

func newTestRepo(t *testing.T) *testRepo {
	t.Helper()
	root := t.TempDir()
	dfmDir := filepath.Join(root, ".DFM")
	require.NoError(t, os.MkdirAll(filepath.Join(dfmDir, "refs", "branches"), 0755))

	store, err := objstore.Open(filepath.Join(dfmDir, "objects"))
	require.NoError(t, err)
	idx, err := metadata.Open(filepath.Join(dfmDir, "forester.db"), zap.NewNop().Sugar())
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })

	require.NoError(t, idx.CreateBranch("main", ""))
	require.NoError(t, idx.SetCurrentBranch("main"))
	require.NoError(t, os.WriteFile(filepath.Join(dfmDir, "refs", "branches", "main"), []byte("\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dfmDir, "HEAD"), []byte("main\n"), 0644))

	branches := branch.New(dfmDir, idx)
	ce := &commitengine.Engine{
		RepoRoot: root,
		DFMDir:   dfmDir,
		Store:    store,
		Index:    idx,
		Branches: branches,
		Config:   config.Default(),
	}

	return &testRepo{
		root: root, dfmDir: dfmDir, store: store, idx: idx, ce: ce,
		gc: &Engine{DFMDir: dfmDir, Store: store, Index: idx},
	}
}

func (r *testRepo) writeAndCommit(t *testing.T, name, content, message string) string {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(r.root, name), []byte(content), 0644))
	res, err := r.ce.Commit(commitengine.Options{Message: message, Author: "alice", NoVerify: true})
	require.NoError(t, err)
	return res.CommitHash
}

func TestGCSweepsUnreachableBlobButKeepsHistory(t *testing.T) {
	r := newTestRepo(t)
	first := r.writeAndCommit(t, "scene.txt", "v1", "first")
	second := r.writeAndCommit(t, "scene.txt", "v2", "second")
	require.NotEqual(t, first, second)

	orphan, err := r.store.Put(objstore.KindBlob, []byte("nobody references me"))
	require.NoError(t, err)
	require.True(t, r.store.Exists(objstore.KindBlob, orphan))

	result, err := r.gc.Run(false, time.Second)
	require.NoError(t, err)
	require.False(t, result.DryRun)
	require.Equal(t, 1, result.Deleted[objstore.KindBlob])

	require.False(t, r.store.Exists(objstore.KindBlob, orphan))

	_, err = r.idx.GetCommit(first)
	require.NoError(t, err)
	_, err = r.idx.GetCommit(second)
	require.NoError(t, err)
}

func TestGCDryRunReportsWithoutDeleting(t *testing.T) {
	r := newTestRepo(t)
	r.writeAndCommit(t, "scene.txt", "v1", "first")

	orphan, err := r.store.Put(objstore.KindBlob, []byte("orphaned"))
	require.NoError(t, err)

	result, err := r.gc.Run(true, time.Second)
	require.NoError(t, err)
	require.True(t, result.DryRun)
	require.Equal(t, 1, result.Deleted[objstore.KindBlob])
	require.True(t, r.store.Exists(objstore.KindBlob, orphan))
}

func TestRebuildReconstructsCommitsAndBranches(t *testing.T) {
	r := newTestRepo(t)
	tip := r.writeAndCommit(t, "scene.txt", "v1", "first")
	tip = r.writeAndCommit(t, "scene.txt", "v2", "second")

	require.NoError(t, r.idx.DeleteCommits([]string{tip}))

	require.NoError(t, r.gc.Rebuild())

	rebuilt, err := r.idx.GetCommit(tip)
	require.NoError(t, err)
	require.Equal(t, "second", rebuilt.Message)

	files, err := r.idx.CommitFiles(tip)
	require.NoError(t, err)
	require.Len(t, files, 1)
	require.Equal(t, "scene.txt", files[0].Path)

	b, err := r.idx.GetBranch("main")
	require.NoError(t, err)
	require.Equal(t, tip, b.TipHash)
}
