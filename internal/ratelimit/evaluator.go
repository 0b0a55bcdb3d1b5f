package ratelimit

import (
	"context"
	"log"
	"time"
)

// Evaluator runs the exact sliding-window algorithm against a window store:
// prune entries older than the window, count the rest, admit and record one
// entry when the count is under the limit.
//
// When the primary store fails (redis timeout, connection refused) a single
// call fails over to a process-local memory store. Availability wins over
// strict enforcement here: a backend outage must never turn into a denial
// storm. Failovers are logged and counted so a degraded backend is visible
// to operators.
type Evaluator struct {
	store    WindowStore
	fallback WindowStore
	recorder MetricsRecorder
	now      func() time.Time
}

func NewEvaluator(store WindowStore, fallback WindowStore, recorder MetricsRecorder) *Evaluator {
	if recorder == nil {
		recorder = NoOpMetricsRecorder{}
	}
	return &Evaluator{
		store:    store,
		fallback: fallback,
		recorder: recorder,
		now:      time.Now,
	}
}

// Evaluate decides one dimension. The returned Status carries the window
// limit and timing; the caller tags it with the dimension's LimitType.
func (e *Evaluator) Evaluate(ctx context.Context, key string, limit int, window time.Duration) Status {
	now := e.now()

	// A non-positive limit means the dimension is closed: always deny,
	// never write.
	if limit <= 0 {
		return Status{
			Allowed:    false,
			Limit:      0,
			Remaining:  0,
			ResetAt:    now.Add(window),
			RetryAfter: window,
		}
	}

	nowMs := now.UnixMilli()
	windowStartMs := nowMs - window.Milliseconds()
	ttl := window + expiryGrace

	res, err := e.store.Take(ctx, key, windowStartMs, nowMs, limit, ttl)
	if err != nil && e.fallback != nil {
		log.Printf("rate limit backend unavailable for key %s, failing over to memory: %v", key, err)
		e.recorder.Add(MetricFailover, 1, map[string]string{"key": key})
		res, err = e.fallback.Take(ctx, key, windowStartMs, nowMs, limit, ttl)
	}
	if err != nil {
		// Both backends failed. Fail open: an admission decision must not
		// become a request failure.
		log.Printf("rate limit check skipped for key %s: %v", key, err)
		return Status{
			Allowed:   true,
			Limit:     limit,
			Remaining: limit - 1,
			ResetAt:   now.Add(window),
		}
	}

	if res.Admitted {
		remaining := limit - int(res.Count) - 1
		if remaining < 0 {
			remaining = 0
		}
		return Status{
			Allowed:   true,
			Limit:     limit,
			Remaining: remaining,
			ResetAt:   now.Add(window),
		}
	}

	resetAt := now.Add(window)
	if res.OldestMs > 0 {
		resetAt = time.UnixMilli(res.OldestMs).Add(window)
	}
	retryAfter := resetAt.Sub(now)
	if retryAfter < 0 {
		retryAfter = 0
	}

	return Status{
		Allowed:    false,
		Limit:      limit,
		Remaining:  0,
		ResetAt:    resetAt,
		RetryAfter: retryAfter,
	}
}

// Reset clears a key in the primary store and in the fallback. Entries can
// land in the fallback during a backend outage; skipping it would let them
// survive an admin reset.
func (e *Evaluator) Reset(ctx context.Context, key string) error {
	err := e.store.Reset(ctx, key)

	if e.fallback != nil && e.fallback != e.store {
		if ferr := e.fallback.Reset(ctx, key); err == nil {
			err = ferr
		}
	}

	return err
}
