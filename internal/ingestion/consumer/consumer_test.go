package consumer

import (
	"context"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/bloom-search/internal/indexer/store"
	"github.com/Adithya-Monish-Kumar-K/bloom-search/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/bloom-search/internal/ingestion/validator"
	"github.com/Adithya-Monish-Kumar-K/bloom-search/pkg/config"
	"github.com/stretchr/testify/require"
)

func newConsumer(t *testing.T) (*Consumer, *store.Store) {
	t.Helper()
	s, err := store.New(config.BloomConfig{Capacity: 500, FalsePositiveRate: 0.01, NGramSize: 3})
	require.NoError(t, err)
	return New(ingestion.NewIndexer(s, validator.Limits{MaxBatchSize: 10}, nil)), s
}

func TestHandleAddsBatch(t *testing.T) {
	c, s := newConsumer(t)
	msg := []byte(`{"batch_id":"b1","documents":[{"id":"a","text":"hello"},{"id":"b","text":"world"}]}`)
	require.NoError(t, c.Handle(context.Background(), []byte("b1"), msg))
	require.Equal(t, 2, s.Stats().Documents)
}

func TestHandleDropsBadMessages(t *testing.T) {
	c, s := newConsumer(t)
	ctx := context.Background()
	require.NoError(t, c.Handle(ctx, nil, []byte(`not json`)))
	require.NoError(t, c.Handle(ctx, nil, []byte(`{"documents":[]}`)))
	require.NoError(t, c.Handle(ctx, nil, []byte(`{"documents":[{"id":"","text":"x"}]}`)))
	require.Zero(t, s.Stats().Documents)
	require.False(t, s.Stats().Pinned)
}
