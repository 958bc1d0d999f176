package repo

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/forester-vcs/forester/internal/commitengine"
)

func TestInitCreatesLayoutAndDefaultBranch(t *testing.T) {
	root := t.TempDir()
	r, err := Init(root, false)
	require.NoError(t, err)
	defer r.Close()

	for _, dir := range []string{
		filepath.Join(root, ".DFM", "objects", "blobs"),
		filepath.Join(root, ".DFM", "objects", "trees"),
		filepath.Join(root, ".DFM", "objects", "commits"),
		filepath.Join(root, ".DFM", "objects", "meshes"),
		filepath.Join(root, ".DFM", "objects", "textures"),
		filepath.Join(root, ".DFM", "refs", "branches"),
		filepath.Join(root, ".DFM", "refs", "tags"),
		filepath.Join(root, ".DFM", "hooks"),
	} {
		info, statErr := os.Stat(dir)
		require.NoError(t, statErr, dir)
		require.True(t, info.IsDir())
	}

	head, err := os.ReadFile(filepath.Join(root, ".DFM", "HEAD"))
	require.NoError(t, err)
	require.Equal(t, "main\n", string(head))

	b, err := r.Index.GetBranch("main")
	require.NoError(t, err)
	require.Empty(t, b.TipHash)
}

func TestInitRefusesExistingRepoWithoutForce(t *testing.T) {
	root := t.TempDir()
	r, err := Init(root, false)
	require.NoError(t, err)
	r.Close()

	_, err = Init(root, false)
	require.Error(t, err)
}

func TestOpenFindsRepoFromNestedSubdirectory(t *testing.T) {
	root := t.TempDir()
	r, err := Init(root, false)
	require.NoError(t, err)
	r.Close()

	nested := filepath.Join(root, "assets", "meshes")
	require.NoError(t, os.MkdirAll(nested, 0755))

	opened, err := Open(nested)
	require.NoError(t, err)
	defer opened.Close()
	require.Equal(t, root, opened.RepoRoot)
}

func TestOpenFailsOutsideAnyRepo(t *testing.T) {
	_, err := Open(t.TempDir())
	require.Error(t, err)
}

func TestWiredCommitEngineProducesRetrievableCommit(t *testing.T) {
	root := t.TempDir()
	r, err := Init(root, false)
	require.NoError(t, err)
	defer r.Close()

	require.NoError(t, os.WriteFile(filepath.Join(root, "scene.txt"), []byte("hello"), 0644))

	res, err := r.Commits.Commit(commitengine.Options{Message: "first", Author: "alice", NoVerify: true})
	require.NoError(t, err)
	require.NotEmpty(t, res.CommitHash)

	b, err := r.Index.GetBranch("main")
	require.NoError(t, err)
	require.Equal(t, res.CommitHash, b.TipHash)
}
