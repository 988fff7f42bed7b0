// Package cache memoizes query results in an external key-value backend.
// Keys carry the store version, so a result is never served for contents
// other than the ones it was computed on.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/bloom-search/internal/searcher/query"
	"golang.org/x/sync/singleflight"
)

const keyPrefix = "bloomsearch:"

// Backend is the storage the cache writes through. *redis.Client satisfies
// it.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

// QueryCache deduplicates concurrent identical queries and stores results
// in a Backend. Backend failures degrade to recomputation.
type QueryCache struct {
	backend Backend
	ttl     time.Duration
	group   singleflight.Group
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

func New(backend Backend, ttl time.Duration) *QueryCache {
	return &QueryCache{
		backend: backend,
		ttl:     ttl,
		logger:  slog.Default().With("component", "query-cache"),
	}
}

// GetOrCompute returns the cached result for (version, strategy, text) or
// runs compute. The computed result is stored under the version it reports,
// which may be newer than the one the caller looked up.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	version uint64,
	strategy query.Strategy,
	text string,
	compute func() (*query.Result, error),
) (*query.Result, bool, error) {
	key := buildKey(version, strategy, text)
	if res, ok := c.lookup(ctx, key); ok {
		c.hits.Add(1)
		return res, true, nil
	}
	c.misses.Add(1)
	val, err, _ := c.group.Do(key, func() (interface{}, error) {
		// A caller that just left the group may have stored the result.
		if res, ok := c.lookup(ctx, key); ok {
			return res, nil
		}
		res, err := compute()
		if err != nil {
			return nil, err
		}
		c.set(ctx, buildKey(res.Version, strategy, text), res)
		return res, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.(*query.Result), false, nil
}

// Invalidate drops every cached result.
func (c *QueryCache) Invalidate(ctx context.Context) error {
	deleted, err := c.backend.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return nil
}

// Stats returns lookup counters: one hit or one miss per GetOrCompute call.
func (c *QueryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *QueryCache) lookup(ctx context.Context, key string) (*query.Result, bool) {
	data, ok, err := c.backend.Get(ctx, key)
	if err != nil {
		c.logger.Error("cache get failed", "key", key, "error", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var res query.Result
	if err := json.Unmarshal(data, &res); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		return nil, false
	}
	return &res, true
}

func (c *QueryCache) set(ctx context.Context, key string, res *query.Result) {
	data, err := json.Marshal(res)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.backend.Set(ctx, key, data, c.ttl); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

func buildKey(version uint64, strategy query.Strategy, text string) string {
	hash := sha256.Sum256([]byte(text))
	return fmt.Sprintf("%sv%d:%s:%x", keyPrefix, version, strategy, hash[:16])
}
