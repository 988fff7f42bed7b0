package cache

import (
	"context"
	"time"

	"github.com/Adithya-Monish-Kumar-K/bloom-search/pkg/resilience"
)

type guarded struct {
	next    Backend
	breaker *resilience.CircuitBreaker
	timeout time.Duration
}

// Guard bounds every call to next by timeout and stops calling it while the
// breaker is open. Open-circuit errors surface as ordinary backend errors,
// which the cache treats as misses.
func Guard(next Backend, breaker *resilience.CircuitBreaker, timeout time.Duration) Backend {
	return &guarded{next: next, breaker: breaker, timeout: timeout}
}

type getResult struct {
	value []byte
	ok    bool
}

func (g *guarded) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var res getResult
	err := g.breaker.Execute(func() error {
		var err error
		res, err = resilience.Bounded(ctx, g.timeout, "cache get", func(ctx context.Context) (getResult, error) {
			v, ok, err := g.next.Get(ctx, key)
			return getResult{value: v, ok: ok}, err
		})
		return err
	})
	return res.value, res.ok, err
}

func (g *guarded) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return g.breaker.Execute(func() error {
		_, err := resilience.Bounded(ctx, g.timeout, "cache set", func(ctx context.Context) (struct{}, error) {
			return struct{}{}, g.next.Set(ctx, key, value, ttl)
		})
		return err
	})
}

// FlushByPattern bypasses the breaker: invalidation is rare and must be
// attempted even while reads are being shed.
func (g *guarded) FlushByPattern(ctx context.Context, pattern string) (int64, error) {
	return g.next.FlushByPattern(ctx, pattern)
}
