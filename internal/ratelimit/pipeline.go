package ratelimit

import (
	"context"
	"time"
)

const eventBufferSize = 256

// Engine is the admission pipeline. For every inbound request it runs, in
// order: blacklist, whitelist, then each quota dimension the resolver plans
// (burst, endpoint override, user-minute, user-hour, global per-IP). The
// first denial short-circuits the rest.
//
// Entries written for dimensions that passed before a later denial are not
// rolled back: a request denied at the user-minute stage has still spent
// burst quota. That is deliberate - the spent entry records real pressure
// from the caller, and refunding it would need a second backend round-trip
// on every denial.
type Engine struct {
	evaluator *Evaluator
	resolver  *Resolver
	lists     *IPLists
	recorder  MetricsRecorder
	events    chan Event
	now       func() time.Time
}

func NewEngine(evaluator *Evaluator, resolver *Resolver, lists *IPLists, recorder MetricsRecorder) *Engine {
	if recorder == nil {
		recorder = NoOpMetricsRecorder{}
	}
	return &Engine{
		evaluator: evaluator,
		resolver:  resolver,
		lists:     lists,
		recorder:  recorder,
		events:    make(chan Event, eventBufferSize),
		now:       time.Now,
	}
}

// Events exposes the notification stream. Exactly one consumer should drain
// it; events are dropped when nobody keeps up.
func (e *Engine) Events() <-chan Event {
	return e.events
}

// Lists exposes the IP reputation lists for the admin surface.
func (e *Engine) Lists() *IPLists {
	return e.lists
}

// CheckRateLimit makes the admission decision for one request. It always
// returns a Status and never an error: backend trouble is handled inside the
// evaluator, and an admission decision must not crash the serving path.
//
// A blacklisted or whitelisted request consumes no quota in any dimension.
func (e *Engine) CheckRateLimit(ctx context.Context, req Request) Status {
	if blocked, entry := e.lists.IsBlacklisted(req.IP); blocked {
		e.publish(Event{
			Type:      EventIPBlacklisted,
			UserID:    req.UserID,
			IP:        req.IP,
			Endpoint:  req.Endpoint,
			LimitType: LimitIP,
			Reason:    entry.Reason,
			At:        e.now(),
		})
		st := Status{
			Allowed:   false,
			Remaining: 0,
			LimitType: LimitIP,
		}
		if !entry.ExpiresAt.IsZero() {
			st.ResetAt = entry.ExpiresAt
			if retry := entry.ExpiresAt.Sub(e.now()); retry > 0 {
				st.RetryAfter = retry
			}
		}
		return st
	}

	if e.lists.IsWhitelisted(req.IP) {
		return Status{Allowed: true, Remaining: Unlimited}
	}

	checks := e.resolver.Checks(req)
	if len(checks) == 0 {
		// Internal tier: quota-exempt.
		return Status{Allowed: true, Remaining: Unlimited}
	}

	// Report the tightest dimension back to the caller so response headers
	// reflect the limit the client is actually closest to.
	tightest := Status{Allowed: true, Remaining: Unlimited}

	for _, check := range checks {
		st := e.evaluator.Evaluate(ctx, check.Key, check.Limit, check.Window)
		st.LimitType = check.Type

		if !st.Allowed {
			e.denied(req, check, st)
			return st
		}

		if tightest.Remaining == Unlimited || st.Remaining < tightest.Remaining {
			tightest = st
		}
	}

	return tightest
}

// ResetUserLimits clears the user-scoped windows for a user id. Endpoint
// override windows are keyed by pattern and cannot be enumerated here; they
// drain naturally as their windows slide.
func (e *Engine) ResetUserLimits(ctx context.Context, userID string) error {
	for _, key := range []string{
		"burst:" + userID,
		"user:" + userID,
		"user:" + userID + ":hourly",
	} {
		if err := e.evaluator.Reset(ctx, key); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) denied(req Request, check Check, st Status) {
	e.recorder.Add(MetricDenied, 1, map[string]string{"limit_type": string(check.Type)})

	e.publish(Event{
		Type:      EventRateLimitExceeded,
		UserID:    req.UserID,
		IP:        req.IP,
		Endpoint:  req.Endpoint,
		LimitType: check.Type,
		Count:     int64(st.Limit),
		At:        e.now(),
	})

	if check.Type == LimitBurst {
		e.publish(Event{
			Type:      EventBurstDetected,
			UserID:    req.UserID,
			IP:        req.IP,
			Endpoint:  req.Endpoint,
			LimitType: check.Type,
			Count:     int64(st.Limit),
			At:        e.now(),
		})
	}
}

func (e *Engine) publish(ev Event) {
	select {
	case e.events <- ev:
	default:
		// Buffer full: drop rather than block the admission path.
	}
}
