package objstore

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPutGetRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(dir)
	require.NoError(t, err)

	data := []byte("vertex data for a cube mesh")
	hash, err := store.Put(KindBlob, data)
	require.NoError(t, err)
	require.True(t, store.Exists(KindBlob, hash))

	got, err := store.Get(KindBlob, hash)
	require.NoError(t, err)
	require.Equal(t, data, got)
}

func TestPutIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(dir)
	require.NoError(t, err)

	data := []byte("duplicate content")
	h1, err := store.Put(KindBlob, data)
	require.NoError(t, err)
	h2, err := store.Put(KindBlob, data)
	require.NoError(t, err)
	require.Equal(t, h1, h2)
}

func TestGetMissingObject(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(dir)
	require.NoError(t, err)

	_, err = store.Get(KindBlob, "0000000000000000000000000000000000000000000000000000000000000")
	require.Error(t, err)
}

func TestDeleteReportsPresence(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(dir)
	require.NoError(t, err)

	hash, err := store.Put(KindTree, []byte("tree bytes"))
	require.NoError(t, err)

	deleted, err := store.Delete(KindTree, hash)
	require.NoError(t, err)
	require.True(t, deleted)

	deletedAgain, err := store.Delete(KindTree, hash)
	require.NoError(t, err)
	require.False(t, deletedAgain)
}

func TestBatchExists(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(dir)
	require.NoError(t, err)

	h1, err := store.Put(KindBlob, []byte("a"))
	require.NoError(t, err)

	result := store.BatchExists(KindBlob, []string{h1, "deadbeef00000000000000000000000000000000000000000000000000000"})
	require.True(t, result[h1])
}

func TestStatsCountsObjects(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(dir)
	require.NoError(t, err)

	_, err = store.Put(KindBlob, []byte("one"))
	require.NoError(t, err)
	_, err = store.Put(KindBlob, []byte("two"))
	require.NoError(t, err)

	stats, err := store.Stats()
	require.NoError(t, err)
	require.Equal(t, 2, stats.Counts[KindBlob])
}
