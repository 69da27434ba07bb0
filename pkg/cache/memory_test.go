package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type snapshotPayload struct {
	Alpha float64 `json:"alpha"`
	Games int     `json:"games"`
}

func TestMemoryCacheSetGet(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	require.NoError(t, mc.Set(ctx, "k1", "hello", time.Minute))
	var s string
	require.NoError(t, mc.Get(ctx, "k1", &s))
	assert.Equal(t, "hello", s)

	assert.ErrorIs(t, mc.Get(ctx, "missing", &s), ErrCacheMiss)
}

func TestMemoryCacheStructRoundTrip(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	in := snapshotPayload{Alpha: 0.22, Games: 17}
	require.NoError(t, mc.Set(ctx, "snap", in, time.Minute))

	var out snapshotPayload
	require.NoError(t, mc.Get(ctx, "snap", &out))
	assert.Equal(t, in, out)
}

func TestMemoryCacheExpiration(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	require.NoError(t, mc.Set(ctx, "k1", "v", time.Millisecond))
	time.Sleep(5 * time.Millisecond)

	var s string
	assert.ErrorIs(t, mc.Get(ctx, "k1", &s), ErrCacheMiss)
}

func TestMemoryCacheLRUEviction(t *testing.T) {
	mc := NewMemoryCache(WithMemoryMaxSize(2))
	defer mc.Close()
	ctx := context.Background()

	require.NoError(t, mc.Set(ctx, "a", "1", time.Minute))
	time.Sleep(time.Millisecond)
	require.NoError(t, mc.Set(ctx, "b", "2", time.Minute))
	time.Sleep(time.Millisecond)
	require.NoError(t, mc.Set(ctx, "c", "3", time.Minute))

	var s string
	assert.ErrorIs(t, mc.Get(ctx, "a", &s), ErrCacheMiss, "oldest entry evicted")
	assert.NoError(t, mc.Get(ctx, "c", &s))
}

func TestMemoryCacheIncrement(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	n, err := mc.Increment(ctx, "ctr")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	n, err = mc.Increment(ctx, "ctr")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}

func TestMemoryCacheTryLock(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	ok, err := mc.TryLock(ctx, "lock", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = mc.TryLock(ctx, "lock", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, mc.Unlock(ctx, "lock"))
	ok, err = mc.TryLock(ctx, "lock", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}
