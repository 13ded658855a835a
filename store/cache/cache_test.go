package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCacheSetGet(t *testing.T) {
	ctx := context.Background()
	c := New(Config{})
	defer c.Close()

	_, ok := c.Get(ctx, "missing")
	require.False(t, ok)

	c.Set(ctx, "a", 1)
	v, ok := c.Get(ctx, "a")
	require.True(t, ok)
	require.Equal(t, 1, v)

	// Last write wins.
	c.Set(ctx, "a", 2)
	v, ok = c.Get(ctx, "a")
	require.True(t, ok)
	require.Equal(t, 2, v)
}

func TestCacheTTLExpiry(t *testing.T) {
	ctx := context.Background()
	c := New(Config{})
	defer c.Close()

	c.SetWithTTL(ctx, "short", "v", 10*time.Millisecond)
	_, ok := c.Get(ctx, "short")
	require.True(t, ok)

	time.Sleep(20 * time.Millisecond)
	_, ok = c.Get(ctx, "short")
	require.False(t, ok, "expired entry must be a miss even before the sweeper runs")
}

func TestCacheZeroTTLNeverExpires(t *testing.T) {
	ctx := context.Background()
	c := New(Config{DefaultTTL: 0})
	defer c.Close()

	c.Set(ctx, "forever", "v")
	time.Sleep(15 * time.Millisecond)
	_, ok := c.Get(ctx, "forever")
	require.True(t, ok)
}

func TestCacheMaxItemsEvictsOldest(t *testing.T) {
	ctx := context.Background()
	var evictedKeys []string
	c := New(Config{
		MaxItems: 2,
		OnEviction: func(key string, _ any) {
			evictedKeys = append(evictedKeys, key)
		},
	})
	defer c.Close()

	c.Set(ctx, "first", 1)
	time.Sleep(time.Millisecond)
	c.Set(ctx, "second", 2)
	time.Sleep(time.Millisecond)
	c.Set(ctx, "third", 3)

	require.Equal(t, 2, c.Len())
	require.Equal(t, []string{"first"}, evictedKeys)

	_, ok := c.Get(ctx, "first")
	require.False(t, ok)
	_, ok = c.Get(ctx, "third")
	require.True(t, ok)
}

func TestCacheOverwriteDoesNotEvict(t *testing.T) {
	ctx := context.Background()
	c := New(Config{MaxItems: 2})
	defer c.Close()

	c.Set(ctx, "a", 1)
	c.Set(ctx, "b", 2)
	c.Set(ctx, "a", 3)

	require.Equal(t, 2, c.Len())
	v, ok := c.Get(ctx, "b")
	require.True(t, ok)
	require.Equal(t, 2, v)
}

func TestCacheSweeperRemovesExpired(t *testing.T) {
	ctx := context.Background()
	c := New(Config{CleanupInterval: 10 * time.Millisecond})
	defer c.Close()

	c.SetWithTTL(ctx, "short", "v", 5*time.Millisecond)
	require.Eventually(t, func() bool {
		return c.Len() == 0
	}, time.Second, 10*time.Millisecond)
}

func TestCacheClear(t *testing.T) {
	ctx := context.Background()
	c := New(Config{})
	defer c.Close()

	c.Set(ctx, "a", 1)
	c.Set(ctx, "b", 2)
	c.Clear(ctx)
	require.Equal(t, 0, c.Len())
}

func TestCacheConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	c := New(Config{})
	defer c.Close()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			key := fmt.Sprintf("key-%d", n%4)
			for j := 0; j < 200; j++ {
				c.Set(ctx, key, j)
				c.Get(ctx, key)
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < 4; i++ {
		_, ok := c.Get(ctx, fmt.Sprintf("key-%d", i))
		require.True(t, ok)
	}
}

func TestCacheCloseIsIdempotent(t *testing.T) {
	c := New(Config{CleanupInterval: time.Minute})
	c.Close()
	c.Close()
}
