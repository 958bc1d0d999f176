package gc

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/forester-vcs/forester/internal/objstore"
)

// TestPropertyGCConvergesAndPreservesHistory checks spec §8's GC invariants
// together: every commit reachable from a branch tip survives a sweep, and a
// second run after convergence deletes nothing further.
func TestPropertyGCConvergesAndPreservesHistory(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		r := newTestRepo(t)

		commitCount := rapid.IntRange(1, 6).Draw(rt, "commit_count")
		var tips []string
		for i := 0; i < commitCount; i++ {
			content := rapid.StringN(1, 20, -1).Draw(rt, fmt.Sprintf("content_%d", i))
			// Suffix with the index so two draws of the same random string
			// in successive iterations still produce a real file change.
			tip := r.writeAndCommit(t, "scene.txt", fmt.Sprintf("%s-%d", content, i), fmt.Sprintf("commit %d", i))
			tips = append(tips, tip)
		}

		orphanCount := rapid.IntRange(0, 4).Draw(rt, "orphan_count")
		for i := 0; i < orphanCount; i++ {
			data := rapid.SliceOfN(rapid.Byte(), 1, 64).Draw(rt, fmt.Sprintf("orphan_%d", i))
			_, err := r.store.Put(objstore.KindBlob, data)
			require.NoError(t, err)
		}

		_, err := r.gc.Run(false, time.Second)
		require.NoError(t, err)

		for _, tip := range tips {
			_, err := r.idx.GetCommit(tip)
			require.NoErrorf(t, err, "commit %s lost to GC despite being reachable from a branch tip", tip)
		}

		second, err := r.gc.Run(false, time.Second)
		require.NoError(t, err)
		for kind, n := range second.Deleted {
			require.Zerof(t, n, "second GC run deleted %d objects of kind %s; GC should have converged", n, kind)
		}
	})
}
