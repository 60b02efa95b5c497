package matching

import (
	"context"
	"sync"
	"time"
)

// Clock is injected into the caches so TTL behavior is testable.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// ScoreProvider memoizes MatchScorer output per unordered user pair. Entries
// are advisory: losing one never breaks correctness, only forces a
// recomputation.
type ScoreProvider interface {
	GetOrCompute(ctx context.Context, a, b *ProfileSnapshot, sctx *ScoreContext) (*ScoreResult, error)
}

// MemoryScoreCache is the in-process ScoreProvider. Safe for concurrent use;
// a stampede on the same key recomputes the same deterministic value, so last
// writer wins without corruption.
type MemoryScoreCache struct {
	mu      sync.RWMutex
	entries map[string]*ScoreResult
	scorer  MatchScorer
	ttl     time.Duration
	clock   Clock
}

func NewMemoryScoreCache(scorer MatchScorer, ttl time.Duration, clock Clock) *MemoryScoreCache {
	if clock == nil {
		clock = SystemClock{}
	}
	return &MemoryScoreCache{
		entries: make(map[string]*ScoreResult),
		scorer:  scorer,
		ttl:     ttl,
		clock:   clock,
	}
}

func (c *MemoryScoreCache) GetOrCompute(ctx context.Context, a, b *ProfileSnapshot, sctx *ScoreContext) (*ScoreResult, error) {
	key := PairKey(a.UserID, b.UserID)
	now := c.clock.Now()

	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if ok && now.Sub(entry.GeneratedAt) < c.ttl {
		RecordCacheHit()
		return entry, nil
	}

	RecordCacheMiss()
	result := scoreCanonical(c.scorer, a, b, sctx)
	result.GeneratedAt = now

	c.mu.Lock()
	c.entries[key] = result
	c.mu.Unlock()

	return result, nil
}

// scoreCanonical evaluates the scorer with the lower user id as the first
// argument so (A,B) and (B,A) always produce the same cached value.
func scoreCanonical(scorer MatchScorer, a, b *ProfileSnapshot, sctx *ScoreContext) *ScoreResult {
	if a.UserID > b.UserID {
		a, b = b, a
		if sctx != nil {
			swapped := *sctx
			swapped.EmbeddingA, swapped.EmbeddingB = sctx.EmbeddingB, sctx.EmbeddingA
			sctx = &swapped
		}
	}
	result := scorer.Score(a, b, sctx)
	RecordCompatibilityScore(result.Score)
	return result
}
