package cachemanager

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type taskKey string

type summary struct {
	Seconds int64
	Label   string
}

func newTestManager() *InMemoryCacheManager[taskKey, summary] {
	return NewInMemoryCacheManager[taskKey, summary]("test", DefaultExpiration, DefaultCleanupInterval)
}

func TestInMemoryCacheManager_SetAndGet(t *testing.T) {
	cache := newTestManager()
	cache.Set(context.Background(), "t1", summary{Seconds: 90, Label: "00:01:30"}, time.Minute)

	got, ok := cache.Get(context.Background(), "t1")
	require.True(t, ok)
	require.Equal(t, summary{Seconds: 90, Label: "00:01:30"}, got)
	require.Equal(t, 1, cache.Len())
}

func TestInMemoryCacheManager_Miss(t *testing.T) {
	got, ok := newTestManager().Get(context.Background(), "missing")
	require.False(t, ok)
	require.Zero(t, got)
}

func TestInMemoryCacheManager_WrongTypeIsMiss(t *testing.T) {
	cache := newTestManager()
	cache.cache.Set("t1", 123, time.Minute)

	_, ok := cache.Get(context.Background(), "t1")
	require.False(t, ok)
}

func TestInMemoryCacheManager_Expires(t *testing.T) {
	cache := newTestManager()
	cache.Set(context.Background(), "t1", summary{Seconds: 1}, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		_, ok := cache.Get(context.Background(), "t1")
		return !ok
	}, time.Second, 5*time.Millisecond)
}

func TestInMemoryCacheManager_Delete(t *testing.T) {
	cache := newTestManager()
	ctx := context.Background()
	cache.Set(ctx, "a", summary{}, time.Minute)
	cache.Set(ctx, "b", summary{}, time.Minute)
	cache.Set(ctx, "c", summary{}, time.Minute)

	require.NoError(t, cache.Delete(ctx))
	require.NoError(t, cache.Delete(ctx, "a", "missing"))
	_, ok := cache.Get(ctx, "a")
	require.False(t, ok)
	require.Equal(t, 2, cache.Len())
}
