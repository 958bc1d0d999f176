package ignorefilter

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeIgnore(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, ".dfmignore")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0644))
	return path
}

func TestSimpleGlob(t *testing.T) {
	f, err := Load(writeIgnore(t, "*.tmp\n"))
	require.NoError(t, err)
	require.True(t, f.Ignored("scratch.tmp", false))
	require.True(t, f.Ignored("nested/scratch.tmp", false))
	require.False(t, f.Ignored("scratch.obj", false))
}

func TestAnchoredPattern(t *testing.T) {
	f, err := Load(writeIgnore(t, "/build\n"))
	require.NoError(t, err)
	require.True(t, f.Ignored("build", true))
	require.False(t, f.Ignored("nested/build", true))
}

func TestDirOnlyPattern(t *testing.T) {
	f, err := Load(writeIgnore(t, "cache/\n"))
	require.NoError(t, err)
	require.True(t, f.Ignored("cache", true))
	require.False(t, f.Ignored("cache", false))
}

func TestNegation(t *testing.T) {
	f, err := Load(writeIgnore(t, "*.tex\n!important.tex\n"))
	require.NoError(t, err)
	require.True(t, f.Ignored("ignore.tex", false))
	require.False(t, f.Ignored("important.tex", false))
}

func TestDoubleStar(t *testing.T) {
	f, err := Load(writeIgnore(t, "**/cache/**\n"))
	require.NoError(t, err)
	require.True(t, f.Ignored("a/b/cache/x.bin", false))
	require.True(t, f.Ignored("cache/x.bin", false))
}

func TestMissingFileAlwaysPermits(t *testing.T) {
	f, err := Load(filepath.Join(t.TempDir(), ".dfmignore"))
	require.NoError(t, err)
	require.False(t, f.Ignored("anything.bin", false))
}
