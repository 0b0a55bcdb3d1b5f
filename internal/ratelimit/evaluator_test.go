package ratelimit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock lets tests advance time without sleeping.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Unix(1_700_000_000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// failingStore simulates an unreachable remote backend.
type failingStore struct{}

var errBackendDown = errors.New("connection refused")

func (failingStore) Take(ctx context.Context, key string, windowStartMs, nowMs int64, limit int, ttl time.Duration) (TakeResult, error) {
	return TakeResult{}, errBackendDown
}
func (failingStore) PruneAndCount(ctx context.Context, key string, windowStartMs int64) (int64, error) {
	return 0, errBackendDown
}
func (failingStore) AddEntry(ctx context.Context, key string, tsMs int64) error {
	return errBackendDown
}
func (failingStore) OldestEntry(ctx context.Context, key string) (int64, bool, error) {
	return 0, false, errBackendDown
}
func (failingStore) SetExpiry(ctx context.Context, key string, ttl time.Duration) error {
	return errBackendDown
}
func (failingStore) Reset(ctx context.Context, key string) error { return errBackendDown }

func newTestEvaluator(t *testing.T, store WindowStore, fallback WindowStore) (*Evaluator, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	e := NewEvaluator(store, fallback, nil)
	e.now = clock.Now
	return e, clock
}

func TestEvaluatorAllowAndExhaust(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()
	e, _ := newTestEvaluator(t, store, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		st := e.Evaluate(ctx, "user:alice", 3, time.Minute)
		assert.True(t, st.Allowed)
		assert.Equal(t, 3, st.Limit)
		assert.Equal(t, 3-i-1, st.Remaining)
	}

	st := e.Evaluate(ctx, "user:alice", 3, time.Minute)
	assert.False(t, st.Allowed)
	assert.Equal(t, 0, st.Remaining)
	assert.Greater(t, st.RetryAfter, time.Duration(0))
	assert.False(t, st.ResetAt.IsZero())
}

func TestEvaluatorResetAfterWindow(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()
	e, clock := newTestEvaluator(t, store, nil)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		require.True(t, e.Evaluate(ctx, "user:bob", 2, 10*time.Second).Allowed)
	}
	require.False(t, e.Evaluate(ctx, "user:bob", 2, 10*time.Second).Allowed)

	clock.Advance(10*time.Second + time.Millisecond)

	st := e.Evaluate(ctx, "user:bob", 2, 10*time.Second)
	assert.True(t, st.Allowed, "exhausted key should admit again after the window elapses")
	assert.Equal(t, 1, st.Remaining)
}

func TestEvaluatorDenialTiming(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()
	e, clock := newTestEvaluator(t, store, nil)
	ctx := context.Background()

	start := clock.Now()
	require.True(t, e.Evaluate(ctx, "user:carol", 1, time.Minute).Allowed)

	clock.Advance(20 * time.Second)

	st := e.Evaluate(ctx, "user:carol", 1, time.Minute)
	require.False(t, st.Allowed)

	// The window frees up when the oldest entry ages out.
	assert.Equal(t, start.Add(time.Minute).UnixMilli(), st.ResetAt.UnixMilli())
	assert.Equal(t, 40*time.Second, st.RetryAfter)
}

func TestEvaluatorZeroLimitAlwaysDenies(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()
	e, _ := newTestEvaluator(t, store, nil)
	ctx := context.Background()

	st := e.Evaluate(ctx, "user:dan", 0, time.Minute)
	assert.False(t, st.Allowed)
	assert.Equal(t, 0, st.Remaining)

	// No entry may be written for a closed dimension.
	_, ok, err := store.OldestEntry(ctx, "user:dan")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEvaluatorFailsOverToMemory(t *testing.T) {
	fallback := NewMemoryStore()
	defer fallback.Close()
	e, _ := newTestEvaluator(t, failingStore{}, fallback)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		st := e.Evaluate(ctx, "user:eve", 2, time.Minute)
		assert.True(t, st.Allowed, "backend failure must not surface as a denial")
	}

	// The fallback store carries the state, so the limit still holds.
	st := e.Evaluate(ctx, "user:eve", 2, time.Minute)
	assert.False(t, st.Allowed)

	_, ok, err := fallback.OldestEntry(ctx, "user:eve")
	require.NoError(t, err)
	assert.True(t, ok, "entries should have been recorded in the fallback")
}

func TestEvaluatorFailsOpenWithoutFallback(t *testing.T) {
	e, _ := newTestEvaluator(t, failingStore{}, nil)

	st := e.Evaluate(context.Background(), "user:frank", 1, time.Minute)
	assert.True(t, st.Allowed, "with no working backend the evaluator fails open")
}

func TestEvaluatorResetClearsBothStores(t *testing.T) {
	primary := NewMemoryStore()
	defer primary.Close()
	fallback := NewMemoryStore()
	defer fallback.Close()

	e, clock := newTestEvaluator(t, primary, fallback)
	ctx := context.Background()

	require.True(t, e.Evaluate(ctx, "user:heidi", 5, time.Minute).Allowed)

	// Entries recorded in the fallback during an outage must not outlive an
	// admin reset.
	require.NoError(t, fallback.AddEntry(ctx, "user:heidi", clock.Now().UnixMilli()))

	require.NoError(t, e.Reset(ctx, "user:heidi"))

	for _, store := range []*MemoryStore{primary, fallback} {
		_, ok, err := store.OldestEntry(ctx, "user:heidi")
		require.NoError(t, err)
		assert.False(t, ok)
	}
}

func TestEvaluatorFailoverIsCounted(t *testing.T) {
	fallback := NewMemoryStore()
	defer fallback.Close()

	rec := &captureRecorder{}
	e := NewEvaluator(failingStore{}, fallback, rec)
	e.now = newFakeClock().Now

	e.Evaluate(context.Background(), "user:grace", 5, time.Minute)

	assert.Equal(t, 1, rec.count(MetricFailover))
}

// captureRecorder collects metric increments for assertions.
type captureRecorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *captureRecorder) Add(name string, value float64, tags map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, name)
}

func (r *captureRecorder) count(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.calls {
		if c == name {
			n++
		}
	}
	return n
}
