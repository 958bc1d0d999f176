package scanner

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/forester-vcs/forester/internal/ignorefilter"
	"github.com/forester-vcs/forester/internal/objhash"
)

func TestScanProducesSortedHashedEntries(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "meshes"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "meshes", "cube.json"), []byte("cube data"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "readme.txt"), []byte("hi"), 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".DFM", "objects"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".DFM", "objects", "junk"), []byte("ignore me"), 0644))

	entries, err := Scan(root, &ignorefilter.Filter{})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "meshes/cube.json", entries[0].Path)
	require.Equal(t, "readme.txt", entries[1].Path)
	require.Equal(t, objhash.SumBytes([]byte("cube data")), entries[0].Hash)
}

func TestScanHonorsIgnoreFilter(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "temp.bak"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "keep.obj"), []byte("y"), 0644))

	ignorePath := filepath.Join(root, ".dfmignore")
	require.NoError(t, os.WriteFile(ignorePath, []byte("*.bak\n"), 0644))
	filter, err := ignorefilter.Load(ignorePath)
	require.NoError(t, err)

	entries, err := Scan(root, filter)
	require.NoError(t, err)
	require.Len(t, entries, 2) // keep.obj and the .dfmignore file itself
	var paths []string
	for _, e := range entries {
		paths = append(paths, e.Path)
	}
	require.NotContains(t, paths, "temp.bak")
	require.Contains(t, paths, "keep.obj")
}
