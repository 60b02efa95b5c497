package matching

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
)

const scoreKeyPrefix = "matching:score:"

// RedisScoreCache is the shared ScoreProvider backed by Redis, for
// deployments with more than one service instance. Redis failures degrade to
// a plain recomputation; the cache is never load-bearing for correctness.
type RedisScoreCache struct {
	client *redis.Client
	scorer MatchScorer
	ttl    time.Duration
	clock  Clock
}

func NewRedisScoreCache(client *redis.Client, scorer MatchScorer, ttl time.Duration, clock Clock) *RedisScoreCache {
	if clock == nil {
		clock = SystemClock{}
	}
	return &RedisScoreCache{
		client: client,
		scorer: scorer,
		ttl:    ttl,
		clock:  clock,
	}
}

func (c *RedisScoreCache) GetOrCompute(ctx context.Context, a, b *ProfileSnapshot, sctx *ScoreContext) (*ScoreResult, error) {
	key := scoreKeyPrefix + PairKey(a.UserID, b.UserID)

	data, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var cached ScoreResult
		if err := json.Unmarshal(data, &cached); err == nil {
			RecordCacheHit()
			return &cached, nil
		}
	}

	RecordCacheMiss()
	result := scoreCanonical(c.scorer, a, b, sctx)
	result.GeneratedAt = c.clock.Now()

	if payload, err := json.Marshal(result); err == nil {
		// Best effort; expiry enforces the TTL.
		c.client.Set(ctx, key, payload, c.ttl)
	}

	return result, nil
}
