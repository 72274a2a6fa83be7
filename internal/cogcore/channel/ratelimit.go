package channel

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// defaultWindow and defaultLimit set the per-user inbound-frame budget: 30
// messages per 60 second sliding window.
const (
	defaultLimit  = 30
	defaultWindow = 60 * time.Second
)

// limiterBackend is satisfied by both the Redis-backed and in-memory rate
// limiter implementations.
type limiterBackend interface {
	allow(key string, limit int, window time.Duration) bool
}

// RateLimiter enforces a sliding-window cap per user id, backed by Redis
// when available (so limits are shared across multiple server instances)
// and falling back to an in-process limiter otherwise.
type RateLimiter struct {
	backend limiterBackend
	limit   int
	window  time.Duration
}

func NewRedisRateLimiter(client *redis.Client) *RateLimiter {
	return &RateLimiter{backend: &redisBackend{client: client}, limit: defaultLimit, window: defaultWindow}
}

func NewInMemoryRateLimiter() *RateLimiter {
	return &RateLimiter{backend: newMemoryBackend(), limit: defaultLimit, window: defaultWindow}
}

// Allow reports whether key (a user id) may send another message under
// the current window.
func (r *RateLimiter) Allow(key string) bool {
	return r.backend.allow(key, r.limit, r.window)
}

// redisBackend implements a sliding-window counter using a sorted set per
// key: each call adds the current timestamp as a member, trims anything
// older than the window, and counts what remains.
type redisBackend struct {
	client *redis.Client
}

func (b *redisBackend) allow(key string, limit int, window time.Duration) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	now := time.Now()
	member := now.UnixNano()
	zkey := "cogcore:ratelimit:" + key

	cutoff := strconvInt64(now.Add(-window).UnixNano())

	pipe := b.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, zkey, "0", cutoff)
	pipe.ZAdd(ctx, zkey, redis.Z{Score: float64(member), Member: member})
	count := pipe.ZCard(ctx, zkey)
	pipe.Expire(ctx, zkey, window)
	if _, err := pipe.Exec(ctx); err != nil {
		// Fail open: a Redis outage should not block legitimate traffic.
		return true
	}
	return count.Val() <= int64(limit)
}

func strconvInt64(v int64) string {
	return strconv.FormatInt(v, 10)
}

// memoryBackend is a simple per-key sliding-window counter for single-
// instance deployments or tests, guarded by a mutex.
type memoryBackend struct {
	mu   sync.Mutex
	hits map[string][]time.Time
}

func newMemoryBackend() *memoryBackend {
	return &memoryBackend{hits: make(map[string][]time.Time)}
}

func (b *memoryBackend) allow(key string, limit int, window time.Duration) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-window)
	times := b.hits[key]
	kept := times[:0]
	for _, t := range times {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	if len(kept) >= limit {
		b.hits[key] = kept
		return false
	}
	kept = append(kept, now)
	b.hits[key] = kept
	return true
}
