package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMemoryCache(t *testing.T) (*MemoryCache, *time.Time) {
	t.Helper()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewMemoryCacheWithConfig(Config{DefaultTTL: time.Minute, Prefix: "test:"})
	c.now = func() time.Time { return now }
	t.Cleanup(func() { c.Close() })
	return c, &now
}

func TestMemoryCache_SetAndGet(t *testing.T) {
	c, _ := newTestMemoryCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "components", []byte("[]"), 0))
	value, err := c.Get(ctx, "components")
	require.NoError(t, err)
	assert.Equal(t, []byte("[]"), value)

	_, err = c.Get(ctx, "missing")
	assert.True(t, IsCacheMiss(err))
}

func TestMemoryCache_ReturnsCopies(t *testing.T) {
	c, _ := newTestMemoryCache(t)
	ctx := context.Background()

	original := []byte("abc")
	require.NoError(t, c.Set(ctx, "k", original, 0))
	original[0] = 'x'

	value, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(value))
	value[0] = 'y'

	again, _ := c.Get(ctx, "k")
	assert.Equal(t, "abc", string(again))
}

func TestMemoryCache_TTL(t *testing.T) {
	c, now := newTestMemoryCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "short", []byte("1"), 10*time.Second))
	require.NoError(t, c.Set(ctx, "default", []byte("2"), 0))
	require.NoError(t, c.Set(ctx, "forever", []byte("3"), -1))

	*now = now.Add(30 * time.Second)
	_, err := c.Get(ctx, "short")
	assert.True(t, IsCacheMiss(err))
	exists, err := c.Exists(ctx, "default")
	require.NoError(t, err)
	assert.True(t, exists)

	*now = now.Add(time.Hour)
	exists, _ = c.Exists(ctx, "default")
	assert.False(t, exists)
	exists, _ = c.Exists(ctx, "forever")
	assert.True(t, exists)
}

func TestMemoryCache_EvictExpired(t *testing.T) {
	c, now := newTestMemoryCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "a", []byte("1"), time.Second))
	require.NoError(t, c.Set(ctx, "b", []byte("2"), -1))
	*now = now.Add(time.Minute)

	c.evictExpired()
	assert.Equal(t, 1, c.Len())
}

func TestMemoryCache_DeleteAndClear(t *testing.T) {
	c, _ := newTestMemoryCache(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, c.Set(ctx, fmt.Sprintf("k%d", i), []byte("v"), 0))
	}
	require.NoError(t, c.Delete(ctx, "k0"))
	exists, _ := c.Exists(ctx, "k0")
	assert.False(t, exists)

	require.NoError(t, c.Clear(ctx))
	assert.Equal(t, 0, c.Len())
}

func TestMemoryCache_ContextCanceled(t *testing.T) {
	c, _ := newTestMemoryCache(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, c.Set(ctx, "k", []byte("v"), 0), context.Canceled)
	_, err := c.Get(ctx, "k")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMemoryCache_ConcurrentAccess(t *testing.T) {
	c := NewMemoryCache()
	defer c.Close()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("key-%d", i%5)
			for j := 0; j < 100; j++ {
				c.Set(ctx, key, []byte("v"), 0)
				c.Get(ctx, key)
				if j%10 == 0 {
					c.Clear(ctx)
				}
			}
		}(i)
	}
	wg.Wait()
}

func TestMemoryCache_CloseTwice(t *testing.T) {
	c := NewMemoryCache()
	assert.NoError(t, c.Close())
	assert.NoError(t, c.Close())
}
