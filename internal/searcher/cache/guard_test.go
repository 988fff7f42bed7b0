package cache

import (
	"context"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/bloom-search/pkg/resilience"
	"github.com/stretchr/testify/require"
)

type countingBackend struct {
	*memBackend
	gets int
}

func (c *countingBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	c.gets++
	return c.memBackend.Get(ctx, key)
}

func TestGuardOpensOnFailures(t *testing.T) {
	inner := &countingBackend{memBackend: newMemBackend()}
	inner.failGet = true
	cb := resilience.NewCircuitBreaker("cache", resilience.CircuitBreakerConfig{FailureThreshold: 2, ResetTimeout: time.Hour})
	g := Guard(inner, cb, time.Second)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, ok, err := g.Get(ctx, "k")
		require.Error(t, err)
		require.False(t, ok)
	}
	require.Equal(t, 2, inner.gets)
	require.ErrorIs(t, func() error { _, _, err := g.Get(ctx, "k"); return err }(), resilience.ErrCircuitOpen)
}

func TestGuardPassesThrough(t *testing.T) {
	inner := newMemBackend()
	cb := resilience.NewCircuitBreaker("cache", resilience.CircuitBreakerConfig{})
	g := Guard(inner, cb, time.Second)
	ctx := context.Background()

	_, ok, err := g.Get(ctx, "k")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, g.Set(ctx, "bloomsearch:k", []byte("v"), time.Minute))
	v, ok, err := g.Get(ctx, "bloomsearch:k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("v"), v)

	n, err := g.FlushByPattern(ctx, "bloomsearch:*")
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
	require.Equal(t, resilience.StateClosed, cb.State())
}

func TestQueryCacheOverOpenGuardRecomputes(t *testing.T) {
	inner := newMemBackend()
	inner.failGet = true
	cb := resilience.NewCircuitBreaker("cache", resilience.CircuitBreakerConfig{FailureThreshold: 1, ResetTimeout: time.Hour})
	c := New(Guard(inner, cb, time.Second), time.Minute)
	calls := 0
	for i := 0; i < 3; i++ {
		_, hit, err := c.GetOrCompute(context.Background(), 1, "indexed", "q", computeFor(1, &calls, "a"))
		require.NoError(t, err)
		require.False(t, hit)
	}
	require.Equal(t, 3, calls)
}
