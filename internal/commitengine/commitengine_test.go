package commitengine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/forester-vcs/forester/internal/branch"
	"github.com/forester-vcs/forester/internal/config"
	"github.com/forester-vcs/forester/internal/foresterr"
	"github.com/forester-vcs/forester/internal/metadata"
	"github.com/forester-vcs/forester/internal/objstore"
)

func newTestEngine(t *testing.T) *Engine {
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

	return &Engine{
		RepoRoot: root,
		DFMDir:   dfmDir,
		Store:    store,
		Index:    idx,
		Branches: branch.New(dfmDir, idx),
		Config:   config.Default(),
	}
}

func TestCommitCreatesCommitAndAdvancesBranch(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, os.WriteFile(filepath.Join(e.RepoRoot, "scene.txt"), []byte("hello"), 0644))

	res, err := e.Commit(Options{Message: "first", Author: "alice", NoVerify: true})
	require.NoError(t, err)
	require.NotEmpty(t, res.CommitHash)
	require.Equal(t, "project", res.CommitType)

	b, err := e.Index.GetBranch("main")
	require.NoError(t, err)
	require.Equal(t, res.CommitHash, b.TipHash)

	files, err := e.Index.CommitFiles(res.CommitHash)
	require.NoError(t, err)
	require.Len(t, files, 1)
	require.Equal(t, "scene.txt", files[0].Path)
}

func TestCommitWithNoChangesReturnsError(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, os.WriteFile(filepath.Join(e.RepoRoot, "scene.txt"), []byte("hello"), 0644))

	_, err := e.Commit(Options{Message: "first", Author: "alice", NoVerify: true})
	require.NoError(t, err)

	_, err = e.Commit(Options{Message: "again", Author: "alice", NoVerify: true})
	require.Error(t, err)
	require.Equal(t, foresterr.NoChanges, foresterr.KindOf(err))
}

func TestCommitRejectsLockedFileHeldByAnotherUser(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, os.WriteFile(filepath.Join(e.RepoRoot, "scene.txt"), []byte("hello"), 0644))

	acquired, err := e.Index.AcquireLock("scene.txt", "main", "bob", metadata.LockExclusive, nil)
	require.NoError(t, err)
	require.True(t, acquired)

	_, err = e.Commit(Options{Message: "first", Author: "alice", CheckLocks: true, NoVerify: true})
	require.Error(t, err)
	require.Equal(t, foresterr.LockedFiles, foresterr.KindOf(err))
}

func TestCommitIgnoresLocksWhenCheckLocksFalse(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, os.WriteFile(filepath.Join(e.RepoRoot, "scene.txt"), []byte("hello"), 0644))

	acquired, err := e.Index.AcquireLock("scene.txt", "main", "bob", metadata.LockExclusive, nil)
	require.NoError(t, err)
	require.True(t, acquired)

	res, err := e.Commit(Options{Message: "first", Author: "alice", CheckLocks: false, NoVerify: true})
	require.NoError(t, err)
	require.NotEmpty(t, res.CommitHash)
}

func TestCommitParentLinkageAcrossSuccessiveCommits(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, os.WriteFile(filepath.Join(e.RepoRoot, "scene.txt"), []byte("v1"), 0644))
	first, err := e.Commit(Options{Message: "v1", Author: "alice", NoVerify: true})
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(e.RepoRoot, "scene.txt"), []byte("v2"), 0644))
	second, err := e.Commit(Options{Message: "v2", Author: "alice", NoVerify: true})
	require.NoError(t, err)

	commit, err := e.Index.GetCommit(second.CommitHash)
	require.NoError(t, err)
	require.Equal(t, first.CommitHash, commit.ParentHash)
}

func TestAutoCompressRemovesOldMeshOnlyCommitsBeyondRetention(t *testing.T) {
	e := newTestEngine(t)
	e.Config.AutoCompress = true
	e.Config.AutoCompressRetain = 1

	var hashes []string
	for i := 0; i < 3; i++ {
		name := "model_" + string(rune('a'+i)) + ".mesh"
		require.NoError(t, os.WriteFile(filepath.Join(e.RepoRoot, name), []byte("v"), 0644))
		res, err := e.Commit(Options{Message: "mesh update", Author: "alice", NoVerify: true})
		require.NoError(t, err)
		hashes = append(hashes, res.CommitHash)
		require.Equal(t, "mesh_only", res.CommitType)
	}

	_, err := e.Index.GetCommit(hashes[0])
	require.Error(t, err, "oldest mesh_only commit should have been compressed away")

	_, err = e.Index.GetCommit(hashes[len(hashes)-1])
	require.NoError(t, err)
}
