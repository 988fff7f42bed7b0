// Package consumer turns DocumentBatch messages from Kafka into store adds.
package consumer

import (
	"context"
	"errors"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/bloom-search/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/bloom-search/internal/ingestion/validator"
	"github.com/Adithya-Monish-Kumar-K/bloom-search/pkg/kafka"
)

// Consumer adapts an Indexer to the kafka MessageHandler signature.
type Consumer struct {
	indexer *ingestion.Indexer
	logger  *slog.Logger
}

func New(ix *ingestion.Indexer) *Consumer {
	return &Consumer{
		indexer: ix,
		logger:  slog.Default().With("component", "document-consumer"),
	}
}

// Handle indexes one batch. Undecodable or invalid batches are logged and
// acknowledged so they do not block the partition. Store failures are
// returned, so the message is retried and never committed past.
func (c *Consumer) Handle(ctx context.Context, key []byte, value []byte) error {
	batch, err := kafka.DecodeJSON[ingestion.DocumentBatch](value)
	if err != nil {
		c.logger.Warn("dropping undecodable batch", "key", string(key), "error", err)
		return nil
	}
	if len(batch.Documents) == 0 {
		return nil
	}
	resp, err := c.indexer.Add(ctx, ingestion.SourceKafka, batch.Documents)
	if err != nil {
		var verr *validator.ValidationError
		if errors.As(err, &verr) {
			c.logger.Warn("dropping invalid batch",
				"batch_id", batch.BatchID,
				"fields", verr.Fields,
			)
			return nil
		}
		return err
	}
	c.logger.Info("batch consumed",
		"batch_id", batch.BatchID,
		"added", resp.Added,
		"documents", resp.Documents,
	)
	return nil
}
