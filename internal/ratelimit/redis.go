package ratelimit

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/averos/gatekeeper/internal/storage"
)

//go:embed window.lua
var windowScript string

const (
	defaultRedisPrefix  = "ratelimit:window:"
	defaultRedisTimeout = 50 * time.Millisecond

	// expiryGrace is added to the window length when refreshing a key's TTL
	// so abandoned keys self-clean without expiring live windows early.
	expiryGrace = 30 * time.Second
)

// RedisStore keeps one sorted set per key, scored by ms timestamp. Multiple
// gateway instances sharing the same redis see a single consumption view.
// Take runs as one Lua round-trip, so prune, count and the conditional write
// cannot interleave with another instance's call for the same key.
type RedisStore struct {
	client    *storage.RedisClient
	prefix    string
	timeout   time.Duration
	scriptSHA string
}

type RedisOption func(*RedisStore)

// WithPrefix overrides the key prefix (default "ratelimit:window:").
func WithPrefix(prefix string) RedisOption {
	return func(s *RedisStore) { s.prefix = prefix }
}

// WithTimeout bounds every redis call. The evaluator fails over to memory
// when the deadline is hit, so this should stay in the low tens of
// milliseconds (default 50ms).
func WithTimeout(timeout time.Duration) RedisOption {
	return func(s *RedisStore) { s.timeout = timeout }
}

func NewRedisStore(client *storage.RedisClient, opts ...RedisOption) (*RedisStore, error) {
	s := &RedisStore{
		client:  client,
		prefix:  defaultRedisPrefix,
		timeout: defaultRedisTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sha, err := client.ScriptLoad(ctx, windowScript)
	if err != nil {
		return nil, fmt.Errorf("failed to load window script: %w", err)
	}
	s.scriptSHA = sha

	return s, nil
}

func (s *RedisStore) key(key string) string {
	return s.prefix + key
}

func (s *RedisStore) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

func (s *RedisStore) Take(ctx context.Context, key string, windowStartMs, nowMs int64, limit int, ttl time.Duration) (TakeResult, error) {
	cctx, cancel := s.callCtx(ctx)
	defer cancel()

	// The script scores against the server clock; only the window length
	// travels from here. Members share a millisecond when concurrent
	// requests land together, so each carries a uuid fragment to stay
	// unique in the set.
	member := fmt.Sprintf("%d-%s", nowMs, uuid.NewString()[:8])
	args := []interface{}{nowMs - windowStartMs, limit, ttl.Milliseconds(), member}

	result, err := s.client.EvalSha(cctx, s.scriptSHA, []string{s.key(key)}, args...)
	if err != nil && isNoScript(err) {
		// Script cache was flushed (redis restart); fall back to a plain
		// EVAL which also re-caches it server-side.
		result, err = s.client.Eval(cctx, windowScript, []string{s.key(key)}, args...)
	}
	if err != nil {
		return TakeResult{}, err
	}

	values, ok := result.([]interface{})
	if !ok || len(values) != 3 {
		return TakeResult{}, errors.New("unexpected window script reply")
	}

	admitted, _ := values[0].(int64)
	count, _ := values[1].(int64)

	return TakeResult{
		Admitted: admitted == 1,
		Count:    count,
		OldestMs: toInt64(values[2]),
	}, nil
}

func (s *RedisStore) PruneAndCount(ctx context.Context, key string, windowStartMs int64) (int64, error) {
	cctx, cancel := s.callCtx(ctx)
	defer cancel()

	max := fmt.Sprintf("%d", windowStartMs)
	if _, err := s.client.ZRemRangeByScore(cctx, s.key(key), "-inf", max); err != nil {
		return 0, err
	}
	return s.client.ZCard(cctx, s.key(key))
}

func (s *RedisStore) AddEntry(ctx context.Context, key string, tsMs int64) error {
	cctx, cancel := s.callCtx(ctx)
	defer cancel()

	member := fmt.Sprintf("%d-%s", tsMs, uuid.NewString()[:8])
	return s.client.ZAdd(cctx, s.key(key), float64(tsMs), member)
}

func (s *RedisStore) OldestEntry(ctx context.Context, key string) (int64, bool, error) {
	cctx, cancel := s.callCtx(ctx)
	defer cancel()

	members, err := s.client.ZRangeWithScores(cctx, s.key(key), 0, 0)
	if err != nil {
		return 0, false, err
	}
	if len(members) == 0 {
		return 0, false, nil
	}
	return int64(members[0].Score), true, nil
}

func (s *RedisStore) SetExpiry(ctx context.Context, key string, ttl time.Duration) error {
	cctx, cancel := s.callCtx(ctx)
	defer cancel()

	return s.client.PExpire(cctx, s.key(key), ttl)
}

func (s *RedisStore) Reset(ctx context.Context, key string) error {
	cctx, cancel := s.callCtx(ctx)
	defer cancel()

	return s.client.Del(cctx, s.key(key))
}

func isNoScript(err error) bool {
	return err != nil && strings.HasPrefix(err.Error(), "NOSCRIPT")
}

// Lua numbers come back as int64, but scores travel as strings in some
// replies depending on server version.
func toInt64(val interface{}) int64 {
	switch v := val.(type) {
	case int64:
		return v
	case string:
		var n int64
		fmt.Sscanf(v, "%d", &n)
		return n
	case float64:
		return int64(v)
	default:
		return 0
	}
}
