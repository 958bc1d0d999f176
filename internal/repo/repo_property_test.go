package repo

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/forester-vcs/forester/internal/checkout"
	"github.com/forester-vcs/forester/internal/commitengine"
	"github.com/forester-vcs/forester/internal/ignorefilter"
	"github.com/forester-vcs/forester/internal/scanner"
)

func scanHashSet(t *testing.T, root, dfmDir string) map[string]string {
	t.Helper()
	filter, err := ignorefilter.Load(filepath.Join(dfmDir, ".dfmignore"))
	require.NoError(t, err)
	entries, err := scanner.Scan(root, filter)
	require.NoError(t, err)

	set := make(map[string]string, len(entries))
	for _, e := range entries {
		set[e.Path] = e.Hash
	}
	return set
}

// TestPropertyCommitCheckoutRoundTrip checks spec §8's round-trip invariant:
// commit(scan(W)) followed by checkout(tip, force=true) reproduces a working
// directory whose scan hash-set equals the one before the commit.
func TestPropertyCommitCheckoutRoundTrip(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		root := t.TempDir()
		r, err := Init(root, false)
		require.NoError(t, err)
		defer r.Close()

		fileCount := rapid.IntRange(1, 5).Draw(rt, "file_count")
		for i := 0; i < fileCount; i++ {
			name := fmt.Sprintf("asset_%d.txt", i)
			content := rapid.SliceOfN(rapid.Byte(), 0, 256).Draw(rt, fmt.Sprintf("content_%d", i))
			require.NoError(t, os.WriteFile(filepath.Join(root, name), content, 0644))
		}

		before := scanHashSet(t, root, r.DFMDir)

		_, err = r.Commits.Commit(commitengine.Options{Message: "snapshot", Author: "alice", NoVerify: true})
		require.NoError(t, err)

		require.NoError(t, r.Checkout.Checkout(checkout.Options{Target: "main", Force: true, NoVerify: true}))

		after := scanHashSet(t, root, r.DFMDir)
		require.Equal(t, before, after)
	})
}
