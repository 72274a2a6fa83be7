package learn

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// BestProviderCache fronts ProviderTracker.GetBestProvider with a short-
// lived Redis cache so a busy cogcored instance doesn't recompute the
// percentile/optimization-score walk over every known provider on every
// request; a cache miss (including any Redis error) falls straight
// through to the tracker, so Redis being unavailable degrades latency,
// never correctness.
type BestProviderCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewBestProviderCache wraps client with the given entry lifetime. A zero
// ttl defaults to 10 seconds, long enough to absorb a request burst
// without serving stale routing decisions for long.
func NewBestProviderCache(client *redis.Client, ttl time.Duration) *BestProviderCache {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &BestProviderCache{client: client, ttl: ttl}
}

type cachedBestProvider struct {
	Key   string         `json:"key"`
	Score *ProviderScore `json:"score"`
}

// GetBestProvider returns the cached winner for optimizeFor if present,
// otherwise computes it via tracker.GetBestProvider and caches the result.
func (c *BestProviderCache) GetBestProvider(ctx context.Context, tracker *ProviderTracker, optimizeFor string) (string, *ProviderScore) {
	rkey := "cogcore:bestprovider:" + optimizeFor

	if b, err := c.client.Get(ctx, rkey).Bytes(); err == nil {
		var cached cachedBestProvider
		if json.Unmarshal(b, &cached) == nil && cached.Key != "" {
			return cached.Key, cached.Score
		}
	}

	key, score := tracker.GetBestProvider(optimizeFor)
	if key != "" {
		if b, err := json.Marshal(cachedBestProvider{Key: key, Score: score}); err == nil {
			_ = c.client.Set(ctx, rkey, b, c.ttl).Err()
		}
	}
	return key, score
}
