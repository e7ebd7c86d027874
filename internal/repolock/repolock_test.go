package repolock

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/gitrepo-server/internal/repopath"
)

func TestLock_Serializes(t *testing.T) {
	t.Parallel()

	for _, dir := range []string{"", "files"} {
		t.Run("dir="+dir, func(t *testing.T) {
			t.Parallel()

			locksDir := dir
			if dir != "" {
				locksDir = filepath.Join(t.TempDir(), dir)
			}
			locker, err := New(locksDir, WithRetryDelay(time.Millisecond))
			require.NoError(t, err)

			var (
				inside  atomic.Int32
				maxSeen atomic.Int32
				wg      sync.WaitGroup
			)
			for i := 0; i < 16; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()

					unlock, err := locker.Lock(t.Context(), "owner", "repo")
					if !assert.NoError(t, err) {
						return
					}
					defer unlock()

					n := inside.Add(1)
					if n > maxSeen.Load() {
						maxSeen.Store(n)
					}
					time.Sleep(time.Millisecond)
					inside.Add(-1)
				}()
			}
			wg.Wait()

			assert.Equal(t, int32(1), maxSeen.Load())
			assert.Equal(t, 0, locker.size())
		})
	}
}

func TestLock_DistinctKeysDoNotBlock(t *testing.T) {
	t.Parallel()

	locker, err := New(t.TempDir())
	require.NoError(t, err)

	unlockA, err := locker.Lock(t.Context(), "owner", "a")
	require.NoError(t, err)
	defer unlockA()

	ctx, cancel := context.WithTimeout(t.Context(), time.Second)
	defer cancel()
	unlockB, err := locker.Lock(ctx, "owner", "b")
	require.NoError(t, err)
	unlockB()

	unlockOther, err := locker.Lock(ctx, "other", "a")
	require.NoError(t, err)
	unlockOther()
}

func TestLock_ContextCancelled(t *testing.T) {
	t.Parallel()

	locker, err := New("")
	require.NoError(t, err)

	unlock, err := locker.Lock(t.Context(), "owner", "repo")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()
	_, err = locker.Lock(ctx, "owner", "repo")
	require.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	unlock()
	assert.Equal(t, 0, locker.size())

	unlock, err = locker.Lock(t.Context(), "owner", "repo")
	require.NoError(t, err)
	unlock()
}

func TestLock_FileLockAcrossLockers(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	first, err := New(dir)
	require.NoError(t, err)
	second, err := New(dir, WithRetryDelay(5*time.Millisecond))
	require.NoError(t, err)

	unlock, err := first.Lock(t.Context(), "owner", "repo")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(t.Context(), 50*time.Millisecond)
	defer cancel()
	_, err = second.Lock(ctx, "owner", "repo")
	require.Error(t, err)
	assert.Equal(t, 0, second.size())

	unlock()
	unlock, err = second.Lock(t.Context(), "owner", "repo")
	require.NoError(t, err)
	unlock()

	assert.FileExists(t, filepath.Join(dir, "owner", "repo.lock"))
}

func TestLock_InvalidNames(t *testing.T) {
	t.Parallel()

	locker, err := New(t.TempDir())
	require.NoError(t, err)

	_, err = locker.Lock(t.Context(), "../owner", "repo")
	require.ErrorIs(t, err, repopath.ErrInvalidName)
	_, err = locker.Lock(t.Context(), "owner", "")
	require.ErrorIs(t, err, repopath.ErrInvalidName)
}

func TestLockPair(t *testing.T) {
	t.Parallel()

	locker, err := New("")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			unlock, err := locker.LockPair(t.Context(), "owner", "a", "b")
			if assert.NoError(t, err) {
				unlock()
			}
		}()
		go func() {
			defer wg.Done()
			unlock, err := locker.LockPair(t.Context(), "owner", "b", "a")
			if assert.NoError(t, err) {
				unlock()
			}
		}()
	}
	wg.Wait()

	unlock, err := locker.LockPair(t.Context(), "owner", "same", "same")
	require.NoError(t, err)
	unlock()
	assert.Equal(t, 0, locker.size())
}
