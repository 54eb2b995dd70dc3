package gateway

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"sync"
	"time"

	"go.uber.org/zap"
)

// CacheStats counts cache effectiveness since process start.
type CacheStats struct {
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
	Entries int   `json:"entries"`
}

type cacheEntry struct {
	result    *GenerateResult
	expiresAt time.Time
}

// CachingGenerator wraps a TextGenerator with an in-memory TTL cache keyed
// on the prompt. Identical prompts within the TTL reuse the prior result
// and cost nothing. Errors are never cached.
type CachingGenerator struct {
	inner TextGenerator
	ttl   time.Duration

	mu      sync.Mutex
	entries map[string]cacheEntry
	hits    int64
	misses  int64
}

// NewCachingGenerator wraps inner with a TTL cache. A non-positive ttl
// disables caching and passes every call through.
func NewCachingGenerator(inner TextGenerator, ttl time.Duration) *CachingGenerator {
	return &CachingGenerator{
		inner:   inner,
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
	}
}

// Generate serves from cache when a fresh entry exists, otherwise delegates
// and stores the result.
func (c *CachingGenerator) Generate(ctx context.Context, prompt string, opts GenerateOptions) (*GenerateResult, error) {
	if c.ttl <= 0 {
		return c.inner.Generate(ctx, prompt, opts)
	}

	key := cacheKey(prompt, opts)

	c.mu.Lock()
	if entry, ok := c.entries[key]; ok && time.Now().Before(entry.expiresAt) {
		c.hits++
		c.mu.Unlock()
		zap.L().Debug("generator cache hit", zap.String("key", key))
		return entry.result, nil
	}
	c.misses++
	c.mu.Unlock()

	result, err := c.inner.Generate(ctx, prompt, opts)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.entries[key] = cacheEntry{result: result, expiresAt: time.Now().Add(c.ttl)}
	c.evictExpiredLocked()
	c.mu.Unlock()

	return result, nil
}

// Stats returns a snapshot of cache counters.
func (c *CachingGenerator) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CacheStats{Hits: c.hits, Misses: c.misses, Entries: len(c.entries)}
}

// evictExpiredLocked drops stale entries. Caller holds mu.
func (c *CachingGenerator) evictExpiredLocked() {
	now := time.Now()
	for k, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, k)
		}
	}
}

func cacheKey(prompt string, opts GenerateOptions) string {
	h := md5.New()
	h.Write([]byte(prompt))
	if opts.Temperature != nil {
		h.Write([]byte{byte(*opts.Temperature * 100)})
	}
	return hex.EncodeToString(h.Sum(nil))
}
