package reflock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTryAcquireExcludesSecondHolder(t *testing.T) {
	dir := t.TempDir()
	first := New(dir)
	ok, err := first.TryAcquire()
	require.NoError(t, err)
	require.True(t, ok)
	defer first.Release()

	second := New(dir)
	ok, err = second.TryAcquire()
	require.NoError(t, err)
	require.False(t, ok)
}

func TestWithLockReleasesAfterward(t *testing.T) {
	dir := t.TempDir()
	ran := false
	err := WithLock(dir, time.Second, func() error {
		ran = true
		return nil
	})
	require.NoError(t, err)
	require.True(t, ran)

	l := New(dir)
	ok, err := l.TryAcquire()
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, l.Release())
}
