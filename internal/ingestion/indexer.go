package ingestion

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/bloom-search/internal/indexer/store"
	"github.com/Adithya-Monish-Kumar-K/bloom-search/internal/ingestion/validator"
	"github.com/Adithya-Monish-Kumar-K/bloom-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/bloom-search/pkg/metrics"
)

// Source labels where a batch came from.
type Source string

const (
	SourceHTTP     Source = "http"
	SourceKafka    Source = "kafka"
	SourcePostgres Source = "postgres"
)

// Indexer is the single entry point through which every source feeds the
// store. It validates the batch, adds it and keeps the collection gauges
// current.
type Indexer struct {
	store   *store.Store
	limits  validator.Limits
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewIndexer creates an Indexer. m may be nil.
func NewIndexer(s *store.Store, limits validator.Limits, m *metrics.Metrics) *Indexer {
	return &Indexer{
		store:   s,
		limits:  limits,
		metrics: m,
		logger:  slog.Default().With("component", "ingestion"),
	}
}

// Add validates docs and appends them to the store. Validation failures are
// returned as *validator.ValidationError and leave the store untouched.
func (ix *Indexer) Add(ctx context.Context, source Source, docs []store.Document) (*AddResponse, error) {
	if err := validator.ValidateDocuments(docs, ix.limits); err != nil {
		return nil, err
	}
	if err := ix.store.Add(docs); err != nil {
		return nil, fmt.Errorf("adding %d documents from %s: %w", len(docs), source, err)
	}
	st := ix.store.Stats()
	if ix.metrics != nil {
		ix.metrics.DocsIndexedTotal.WithLabelValues(string(source)).Add(float64(len(docs)))
		ix.metrics.CollectionDocuments.Set(float64(st.Documents))
		ix.metrics.CollectionFillRatio.Set(st.FillRatio)
	}
	logger.FromContext(ctx).Debug("batch indexed",
		"source", source,
		"added", len(docs),
		"documents", st.Documents,
	)
	return &AddResponse{Added: len(docs), Documents: st.Documents}, nil
}

// Reset starts a new generation.
func (ix *Indexer) Reset(ctx context.Context) {
	ix.store.Reset()
	st := ix.store.Stats()
	if ix.metrics != nil {
		ix.metrics.ResetsTotal.Inc()
		ix.metrics.CollectionDocuments.Set(0)
		ix.metrics.CollectionFillRatio.Set(0)
		ix.metrics.CollectionGeneration.Set(float64(st.Generation))
	}
	logger.FromContext(ctx).Info("collection reset requested", "generation", st.Generation)
}
