package ratelimit

import "sync"

// ConcurrencyGate enforces the per-tier cap on in-flight requests for one
// identity. It is a plain counter per identity rather than a semaphore pool:
// callers never queue, they are rejected immediately when the cap is hit.
type ConcurrencyGate struct {
	mu     sync.Mutex
	active map[string]int
}

func NewConcurrencyGate() *ConcurrencyGate {
	return &ConcurrencyGate{active: make(map[string]int)}
}

// Acquire claims a slot for identity. max <= 0 means unbounded. The caller
// must Release exactly once for every successful Acquire.
func (g *ConcurrencyGate) Acquire(identity string, max int) bool {
	if max <= 0 {
		return true
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.active[identity] >= max {
		return false
	}
	g.active[identity]++
	return true
}

func (g *ConcurrencyGate) Release(identity string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if n := g.active[identity]; n <= 1 {
		delete(g.active, identity)
	} else {
		g.active[identity] = n - 1
	}
}

// Active reports the in-flight count for an identity.
func (g *ConcurrencyGate) Active(identity string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.active[identity]
}
