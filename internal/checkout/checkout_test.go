package checkout

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/forester-vcs/forester/internal/branch"
	"github.com/forester-vcs/forester/internal/config"
	"github.com/forester-vcs/forester/internal/metadata"
	"github.com/forester-vcs/forester/internal/objstore"
	"github.com/forester-vcs/forester/internal/treebuilder"
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

	mgr := branch.New(dfmDir, idx)

	return &Engine{
		RepoRoot: root,
		DFMDir:   dfmDir,
		Store:    store,
		Index:    idx,
		Branches: mgr,
		Config:   config.Default(),
	}
}

// seedCommit builds a tree from leaves, wraps it in a commit row, points
// branch "main" at it (file ref + index row + HEAD), and returns the
// commit hash.
func seedCommit(t *testing.T, e *Engine, leaves []treebuilder.Leaf) string {
	t.Helper()
	rootHash, _, _, err := treebuilder.Build(e.Store, leaves)
	require.NoError(t, err)

	commitHash := "commit-" + rootHash
	require.NoError(t, e.Index.DB().Create(&metadata.Commit{
		Hash: commitHash, TreeHash: rootHash, Message: "seed", Timestamp: 1,
	}).Error)

	require.NoError(t, e.Index.CreateBranch("main", commitHash))
	require.NoError(t, os.WriteFile(filepath.Join(e.DFMDir, "refs", "branches", "main"), []byte(commitHash+"\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(e.DFMDir, "HEAD"), []byte("main\n"), 0644))
	return commitHash
}

func TestCheckoutMaterializesTrackedFile(t *testing.T) {
	e := newTestEngine(t)
	blobHash, err := e.Store.Put(objstore.KindBlob, []byte("hello world"))
	require.NoError(t, err)
	seedCommit(t, e, []treebuilder.Leaf{{Path: "hello.txt", Kind: treebuilder.KindBlob, Hash: blobHash}})

	require.NoError(t, e.Checkout(Options{Target: "main", Force: true, NoVerify: true}))

	data, err := os.ReadFile(filepath.Join(e.RepoRoot, "hello.txt"))
	require.NoError(t, err)
	require.Equal(t, "hello world", string(data))
}

func TestCheckoutSelectivePatternSkipsUnmatchedFiles(t *testing.T) {
	e := newTestEngine(t)
	blobHashA, err := e.Store.Put(objstore.KindBlob, []byte("A"))
	require.NoError(t, err)
	blobHashB, err := e.Store.Put(objstore.KindBlob, []byte("B"))
	require.NoError(t, err)

	seedCommit(t, e, []treebuilder.Leaf{
		{Path: "keep.txt", Kind: treebuilder.KindBlob, Hash: blobHashA},
		{Path: "skip.txt", Kind: treebuilder.KindBlob, Hash: blobHashB},
	})

	require.NoError(t, e.Checkout(Options{
		Target: "main", Force: true, NoVerify: true, FilePatterns: []string{"keep.txt"},
	}))

	_, err = os.Stat(filepath.Join(e.RepoRoot, "keep.txt"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(e.RepoRoot, "skip.txt"))
	require.True(t, os.IsNotExist(err))
}

func TestCheckoutRefusesWithUncommittedChangesUnlessForced(t *testing.T) {
	e := newTestEngine(t)
	blobHash, err := e.Store.Put(objstore.KindBlob, []byte("hello world"))
	require.NoError(t, err)
	seedCommit(t, e, []treebuilder.Leaf{{Path: "hello.txt", Kind: treebuilder.KindBlob, Hash: blobHash}})
	require.NoError(t, e.Checkout(Options{Target: "main", Force: true, NoVerify: true}))

	require.NoError(t, os.WriteFile(filepath.Join(e.RepoRoot, "hello.txt"), []byte("dirtied"), 0644))

	err = e.Checkout(Options{Target: "main", NoVerify: true})
	require.Error(t, err)

	require.NoError(t, e.Checkout(Options{Target: "main", Force: true, NoVerify: true}))
	data, err := os.ReadFile(filepath.Join(e.RepoRoot, "hello.txt"))
	require.NoError(t, err)
	require.Equal(t, "hello world", string(data))
}
