package ratelimit

import (
	"context"
	"hash/fnv"
	"sync"
	"time"
)

const (
	memoryShards    = 64
	sweepInterval   = time.Minute
	memoryRetention = time.Hour
)

type memoryShard struct {
	mu      sync.Mutex
	entries map[string][]int64 // ascending timestamps per key
}

// MemoryStore is the in-process window store. State is local to the process,
// so limits enforced through it are per-instance, not global. It doubles as
// the failover target when the redis store is unreachable.
//
// Keys are hashed across a fixed set of shards so unrelated keys never
// contend on the same lock.
type MemoryStore struct {
	shards    [memoryShards]*memoryShard
	retention time.Duration
	stop      chan struct{}
	stopOnce  sync.Once
}

func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{
		retention: memoryRetention,
		stop:      make(chan struct{}),
	}
	for i := range s.shards {
		s.shards[i] = &memoryShard{entries: make(map[string][]int64)}
	}

	go s.sweepLoop()

	return s
}

// Close stops the background sweep. Safe to call more than once.
func (s *MemoryStore) Close() error {
	s.stopOnce.Do(func() { close(s.stop) })
	return nil
}

func (s *MemoryStore) shard(key string) *memoryShard {
	h := fnv.New32a()
	h.Write([]byte(key))
	return s.shards[h.Sum32()%memoryShards]
}

func (s *MemoryStore) Take(ctx context.Context, key string, windowStartMs, nowMs int64, limit int, ttl time.Duration) (TakeResult, error) {
	sh := s.shard(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	entries := pruneOldest(sh.entries[key], windowStartMs)
	res := TakeResult{Count: int64(len(entries))}

	if res.Count < int64(limit) {
		entries = append(entries, nowMs)
		res.Admitted = true
	}

	if len(entries) > 0 {
		res.OldestMs = entries[0]
		sh.entries[key] = entries
	} else {
		delete(sh.entries, key)
	}

	return res, nil
}

func (s *MemoryStore) PruneAndCount(ctx context.Context, key string, windowStartMs int64) (int64, error) {
	sh := s.shard(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	entries := pruneOldest(sh.entries[key], windowStartMs)
	if len(entries) > 0 {
		sh.entries[key] = entries
	} else {
		delete(sh.entries, key)
	}
	return int64(len(entries)), nil
}

func (s *MemoryStore) AddEntry(ctx context.Context, key string, tsMs int64) error {
	sh := s.shard(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	sh.entries[key] = append(sh.entries[key], tsMs)
	return nil
}

func (s *MemoryStore) OldestEntry(ctx context.Context, key string) (int64, bool, error) {
	sh := s.shard(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	entries := sh.entries[key]
	if len(entries) == 0 {
		return 0, false, nil
	}
	return entries[0], true, nil
}

// SetExpiry is a no-op for the memory store; the retention sweep bounds
// memory growth instead.
func (s *MemoryStore) SetExpiry(ctx context.Context, key string, ttl time.Duration) error {
	return nil
}

func (s *MemoryStore) Reset(ctx context.Context, key string) error {
	sh := s.shard(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	delete(sh.entries, key)
	return nil
}

// pruneOldest drops timestamps at or before windowStartMs. Entries are
// appended with monotonically increasing timestamps, so the slice stays
// sorted and a single scan from the front suffices.
func pruneOldest(entries []int64, windowStartMs int64) []int64 {
	i := 0
	for i < len(entries) && entries[i] <= windowStartMs {
		i++
	}
	return entries[i:]
}

func (s *MemoryStore) sweepLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep(time.Now().UnixMilli())
		case <-s.stop:
			return
		}
	}
}

// sweep drops keys whose newest entry is older than the retention horizon,
// so one-off callers do not accumulate forever.
func (s *MemoryStore) sweep(nowMs int64) {
	horizon := nowMs - s.retention.Milliseconds()

	for _, sh := range s.shards {
		sh.mu.Lock()
		for key, entries := range sh.entries {
			if len(entries) == 0 || entries[len(entries)-1] < horizon {
				delete(sh.entries, key)
			}
		}
		sh.mu.Unlock()
	}
}
