// Package cache stores query responses in Redis. Keys include the index
// fingerprint, so a newly published index never serves results computed
// against the previous one.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/summary-search/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/summary-search/pkg/redis"
)

const keyPrefix = "search:"

// Backend is the subset of the Redis client the cache uses.
type Backend interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
	CountByPattern(ctx context.Context, pattern string) (int64, error)
}

// QueryCache caches values of type T as JSON.
type QueryCache[T any] struct {
	backend Backend
	ttl     time.Duration
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

// New creates a cache over backend. m may be nil.
func New[T any](backend Backend, ttl time.Duration, m *metrics.Metrics) *QueryCache[T] {
	return &QueryCache[T]{
		backend: backend,
		ttl:     ttl,
		metrics: m,
		logger:  slog.Default().With("component", "query-cache"),
	}
}

// Key identifies one query against one index version.
type Key struct {
	Fingerprint string
	Query       string
	K           int
}

func (k Key) String() string {
	h := sha256.New()
	h.Write([]byte(k.Fingerprint))
	h.Write([]byte{0})
	h.Write([]byte(k.Query))
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(k.K)))
	return fmt.Sprintf("%s%x", keyPrefix, h.Sum(nil)[:16])
}

func (c *QueryCache[T]) Get(ctx context.Context, key Key) (T, bool) {
	var zero T
	k := key.String()
	data, err := c.backend.Get(ctx, k)
	if err != nil {
		if !pkgredis.IsNilError(err) {
			c.logger.Error("cache get failed", "key", k, "error", err)
		}
		c.miss()
		return zero, false
	}
	var result T
	if err := json.Unmarshal([]byte(data), &result); err != nil {
		c.logger.Error("cache unmarshal failed", "key", k, "error", err)
		c.miss()
		return zero, false
	}
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
	c.logger.Debug("cache hit", "query", key.Query, "key", k)
	return result, true
}

func (c *QueryCache[T]) miss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}

func (c *QueryCache[T]) Set(ctx context.Context, key Key, value T) {
	k := key.String()
	data, err := json.Marshal(value)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", k, "error", err)
		return
	}
	if err := c.backend.Set(ctx, k, data, c.ttl); err != nil {
		c.logger.Error("cache set failed", "key", k, "error", err)
	}
}

// GetOrCompute returns the cached value for key or computes, stores and
// returns it. Concurrent misses for the same key share one computation.
// Cache failures degrade to computing; compute errors are never cached.
func (c *QueryCache[T]) GetOrCompute(ctx context.Context, key Key, compute func() (T, error)) (T, bool, error) {
	if result, ok := c.Get(ctx, key); ok {
		return result, true, nil
	}
	val, err, _ := c.group.Do(key.String(), func() (interface{}, error) {
		result, err := compute()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, key, result)
		return result, nil
	})
	if err != nil {
		var zero T
		return zero, false, err
	}
	return val.(T), false, nil
}

// Invalidate drops every cached response and returns how many were removed.
func (c *QueryCache[T]) Invalidate(ctx context.Context) (int64, error) {
	deleted, err := c.backend.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return deleted, fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return deleted, nil
}

// Stats reports process-local hit and miss counts plus the number of keys
// currently stored.
type Stats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Keys   int64 `json:"keys"`
}

func (c *QueryCache[T]) Stats(ctx context.Context) (Stats, error) {
	keys, err := c.backend.CountByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return Stats{}, fmt.Errorf("counting cache keys: %w", err)
	}
	return Stats{Hits: c.hits.Load(), Misses: c.misses.Load(), Keys: keys}, nil
}
