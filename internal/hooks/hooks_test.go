package hooks

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/forester-vcs/forester/internal/foresterr"
)

func writeHook(t *testing.T, dfmDir string, name Name, script string) {
	t.Helper()
	hooksDir := filepath.Join(dfmDir, "hooks")
	require.NoError(t, os.MkdirAll(hooksDir, 0755))
	path := filepath.Join(hooksDir, string(name))
	require.NoError(t, os.WriteFile(path, []byte(script), 0755))
}

func TestMissingHookIsNoop(t *testing.T) {
	dfmDir := t.TempDir()
	err := Run(dfmDir, PreCommit, Env{RepoRoot: t.TempDir()}, time.Second)
	require.NoError(t, err)
}

func TestHookRejectionSurfacesKind(t *testing.T) {
	dfmDir := t.TempDir()
	writeHook(t, dfmDir, PreCommit, "#!/bin/sh\necho denied 1>&2\nexit 1\n")

	err := Run(dfmDir, PreCommit, Env{RepoRoot: t.TempDir()}, time.Second)
	require.Error(t, err)
	require.Equal(t, foresterr.HookRejected, foresterr.KindOf(err))
}

func TestHookTimeout(t *testing.T) {
	dfmDir := t.TempDir()
	writeHook(t, dfmDir, PreCommit, "#!/bin/sh\nsleep 5\n")

	err := Run(dfmDir, PreCommit, Env{RepoRoot: t.TempDir()}, 50*time.Millisecond)
	require.Error(t, err)
	require.Equal(t, foresterr.Timeout, foresterr.KindOf(err))
}

func TestSuccessfulHookPassesEnv(t *testing.T) {
	dfmDir := t.TempDir()
	marker := filepath.Join(dfmDir, "marker")
	writeHook(t, dfmDir, PostCommit, "#!/bin/sh\necho \"$DFM_COMMIT_HASH\" > \""+marker+"\"\n")

	err := Run(dfmDir, PostCommit, Env{RepoRoot: t.TempDir(), CommitHash: "deadbeef"}, time.Second)
	require.NoError(t, err)

	data, err := os.ReadFile(marker)
	require.NoError(t, err)
	require.Contains(t, string(data), "deadbeef")
}
