package cachemanager

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type loadCounter struct {
	calls int
	err   error
}

func (l *loadCounter) load(_ context.Context, id string) (summary, error) {
	l.calls++
	if l.err != nil {
		return summary{}, l.err
	}
	return summary{Label: id}, nil
}

func TestReadThroughCache_LoadsOnceThenHits(t *testing.T) {
	loader := &loadCounter{}
	rt := NewReadThroughCache[taskKey, summary, string](newTestManager(), loader.load, false)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		got, err := rt.Get(ctx, "t1", "t1", time.Minute)
		require.NoError(t, err)
		require.Equal(t, "t1", got.Label)
	}
	require.Equal(t, 1, loader.calls)
}

func TestReadThroughCache_ErrorsAreNotStored(t *testing.T) {
	loader := &loadCounter{err: errors.New("offline")}
	cache := newTestManager()
	rt := NewReadThroughCache[taskKey, summary, string](cache, loader.load, false)

	_, err := rt.Get(context.Background(), "t1", "t1", time.Minute)
	require.Error(t, err)
	require.Equal(t, 0, cache.Len())
}

func TestReadThroughCache_SkipCache(t *testing.T) {
	loader := &loadCounter{}
	cache := newTestManager()
	rt := NewReadThroughCache[taskKey, summary, string](cache, loader.load, true)

	_, err := rt.Get(context.Background(), "t1", "t1", time.Minute)
	require.NoError(t, err)
	_, err = rt.Get(context.Background(), "t1", "t1", time.Minute)
	require.NoError(t, err)
	require.Equal(t, 2, loader.calls)
	require.Equal(t, 0, cache.Len())
}

func TestReadThroughCache_Forget(t *testing.T) {
	loader := &loadCounter{}
	rt := NewReadThroughCache[taskKey, summary, string](newTestManager(), loader.load, false)
	ctx := context.Background()

	_, err := rt.Get(ctx, "t1", "t1", time.Minute)
	require.NoError(t, err)
	rt.Forget(ctx, "t1")
	_, err = rt.Get(ctx, "t1", "t1", time.Minute)
	require.NoError(t, err)
	require.Equal(t, 2, loader.calls)
}
