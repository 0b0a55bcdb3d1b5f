package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreTakeExhaustion(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()
	ctx := context.Background()

	base := time.Now().UnixMilli()
	windowStart := base - 10_000

	for i := 0; i < 5; i++ {
		res, err := store.Take(ctx, "burst:user_1", windowStart, base+int64(i), 5, time.Minute)
		require.NoError(t, err)
		assert.True(t, res.Admitted, "request %d should be admitted", i)
		assert.Equal(t, int64(i), res.Count)
	}

	res, err := store.Take(ctx, "burst:user_1", windowStart, base+5, 5, time.Minute)
	require.NoError(t, err)
	assert.False(t, res.Admitted, "6th request within the window should be denied")
	assert.Equal(t, int64(5), res.Count)
	assert.Equal(t, base, res.OldestMs, "oldest entry should be the first admitted timestamp")
}

func TestMemoryStoreWindowSlides(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()
	ctx := context.Background()

	base := time.Now().UnixMilli()

	for i := 0; i < 3; i++ {
		_, err := store.Take(ctx, "user:u2", base-10_000, base+int64(i), 3, time.Minute)
		require.NoError(t, err)
	}

	// Exhausted inside the original window.
	res, err := store.Take(ctx, "user:u2", base-10_000, base+3, 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, res.Admitted)

	// Slide the window past every recorded entry.
	later := base + 11_000
	res, err = store.Take(ctx, "user:u2", later-10_000, later, 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, res.Admitted, "key should admit again after the window elapses")
	assert.Equal(t, int64(0), res.Count)
}

func TestMemoryStorePrimitives(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()
	ctx := context.Background()

	require.NoError(t, store.AddEntry(ctx, "k", 100))
	require.NoError(t, store.AddEntry(ctx, "k", 200))
	require.NoError(t, store.AddEntry(ctx, "k", 300))

	count, err := store.PruneAndCount(ctx, "k", 100)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count, "prune is inclusive of the window start")

	oldest, ok, err := store.OldestEntry(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(200), oldest)

	require.NoError(t, store.Reset(ctx, "k"))

	_, ok, err = store.OldestEntry(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryStoreSweepDropsStaleKeys(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()
	ctx := context.Background()

	now := time.Now().UnixMilli()
	stale := now - (2 * time.Hour).Milliseconds()

	require.NoError(t, store.AddEntry(ctx, "stale", stale))
	require.NoError(t, store.AddEntry(ctx, "fresh", now))

	store.sweep(now)

	_, ok, err := store.OldestEntry(ctx, "stale")
	require.NoError(t, err)
	assert.False(t, ok, "stale key should be swept")

	_, ok, err = store.OldestEntry(ctx, "fresh")
	require.NoError(t, err)
	assert.True(t, ok, "fresh key should survive the sweep")
}

func TestMemoryStoreConcurrentTake(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()
	ctx := context.Background()

	const (
		workers = 100
		limit   = 10
	)

	base := time.Now().UnixMilli()
	var admitted int64
	var mu sync.Mutex
	var wg sync.WaitGroup

	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(i int) {
			defer wg.Done()
			res, err := store.Take(ctx, "ip:10.0.0.1", base-60_000, base+int64(i), limit, time.Minute)
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			if res.Admitted {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int64(limit), admitted, "exactly the limit should be admitted under any interleaving")
}

func BenchmarkMemoryStoreTake(b *testing.B) {
	store := NewMemoryStore()
	defer store.Close()
	ctx := context.Background()

	base := time.Now().UnixMilli()

	for i := 0; b.Loop(); i++ {
		store.Take(ctx, "bench", base+int64(i)-60_000, base+int64(i), 1_000_000, time.Minute)
	}
}
