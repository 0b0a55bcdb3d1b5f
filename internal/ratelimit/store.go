package ratelimit

import (
	"context"
	"time"
)

// TakeResult reports the outcome of an atomic Take against one key.
type TakeResult struct {
	Admitted bool
	Count    int64 // entries inside the window before any write
	OldestMs int64 // oldest surviving entry in ms, 0 when the window is empty
}

// WindowStore records one timestamped entry per admitted request and answers
// how many entries fall inside a sliding window. Two implementations exist:
// MemoryStore (process-local) and RedisStore (shared across gateway instances).
//
// Take is the operation the evaluator uses on the hot path. It must perform
// prune, count and the conditional write as a single atomic unit against the
// backend, otherwise two concurrent requests can both observe count < limit
// and both write, exceeding the limit.
type WindowStore interface {
	// Take discards entries scored at or before windowStartMs, counts what
	// remains, and when count < limit records one entry at nowMs. The key's
	// expiry is refreshed to ttl on every call.
	Take(ctx context.Context, key string, windowStartMs, nowMs int64, limit int, ttl time.Duration) (TakeResult, error)

	// PruneAndCount discards entries at or before windowStartMs and returns
	// the remaining count.
	PruneAndCount(ctx context.Context, key string, windowStartMs int64) (int64, error)

	// AddEntry records one entry for key at the given timestamp.
	AddEntry(ctx context.Context, key string, tsMs int64) error

	// OldestEntry returns the timestamp of the oldest entry for key, if any.
	OldestEntry(ctx context.Context, key string) (int64, bool, error)

	// SetExpiry refreshes the key's time-to-live.
	SetExpiry(ctx context.Context, key string, ttl time.Duration) error

	// Reset drops all entries for key.
	Reset(ctx context.Context, key string) error
}
