package checkpoint

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	s := miniredis.RunT(t)
	store, err := NewRedisStore("redis://" + s.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store, s
}

func TestNewRedisStore(t *testing.T) {
	store, _ := setupTestRedis(t)
	assert.NoError(t, store.Ping(context.Background()))
}

func TestNewRedisStoreRejectsBadURL(t *testing.T) {
	_, err := NewRedisStore("not a url")
	assert.Error(t, err)
}

func TestCheckpointRoundTrip(t *testing.T) {
	store, s := setupTestRedis(t)
	ctx := context.Background()

	last, err := store.Load(ctx, "propagate")
	require.NoError(t, err)
	assert.Empty(t, last)

	require.NoError(t, store.Save(ctx, "propagate", "crm_d042"))
	got, err := s.Get("dealops:checkpoint:propagate")
	require.NoError(t, err)
	assert.Equal(t, "crm_d042", got)

	last, err = store.Load(ctx, "propagate")
	require.NoError(t, err)
	assert.Equal(t, "crm_d042", last)

	require.NoError(t, store.Clear(ctx, "propagate"))
	assert.False(t, s.Exists("dealops:checkpoint:propagate"))
}

func TestLockExcludesSecondRun(t *testing.T) {
	store, s := setupTestRedis(t)
	ctx := context.Background()

	release, err := store.Acquire(ctx, "propagate", time.Minute)
	require.NoError(t, err)
	assert.True(t, s.Exists("dealops:lock:propagate"))

	_, err = store.Acquire(ctx, "propagate", time.Minute)
	assert.True(t, errors.Is(err, ErrLocked))

	// Other jobs are independent.
	releaseAssign, err := store.Acquire(ctx, "assign", time.Minute)
	require.NoError(t, err)
	require.NoError(t, releaseAssign(ctx))

	require.NoError(t, release(ctx))
	assert.False(t, s.Exists("dealops:lock:propagate"))

	release, err = store.Acquire(ctx, "propagate", time.Minute)
	require.NoError(t, err)
	require.NoError(t, release(ctx))
}

func TestLockExpires(t *testing.T) {
	store, s := setupTestRedis(t)
	ctx := context.Background()

	stale, err := store.Acquire(ctx, "propagate", time.Second)
	require.NoError(t, err)

	s.FastForward(2 * time.Second)

	release, err := store.Acquire(ctx, "propagate", time.Minute)
	require.NoError(t, err)

	// The expired holder must not drop the new lock.
	require.NoError(t, stale(ctx))
	assert.True(t, s.Exists("dealops:lock:propagate"))

	require.NoError(t, release(ctx))
	assert.False(t, s.Exists("dealops:lock:propagate"))
}
