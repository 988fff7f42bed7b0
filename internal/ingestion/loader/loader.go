// Package loader seeds the store from PostgreSQL at startup.
package loader

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/bloom-search/internal/indexer/store"
	"github.com/Adithya-Monish-Kumar-K/bloom-search/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/bloom-search/pkg/postgres"
)

// Rows is the subset of *sql.Rows the loader reads.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

type Loader struct {
	client    *postgres.Client
	indexer   *ingestion.Indexer
	query     string
	batchSize int
	logger    *slog.Logger
}

func New(client *postgres.Client, ix *ingestion.Indexer, query string, batchSize int) *Loader {
	if batchSize <= 0 {
		batchSize = 500
	}
	return &Loader{
		client:    client,
		indexer:   ix,
		query:     query,
		batchSize: batchSize,
		logger:    slog.Default().With("component", "postgres-loader"),
	}
}

// Load streams (id, text) rows from one read-only snapshot into the store in
// query order. Batches added before a failure stay in the store.
func (l *Loader) Load(ctx context.Context) (int, error) {
	start := time.Now()
	var loaded int
	opts := &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}
	err := l.client.InTx(ctx, opts, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, l.query)
		if err != nil {
			return fmt.Errorf("running load query: %w", err)
		}
		defer rows.Close()
		loaded, err = l.consume(ctx, rows)
		return err
	})
	if err != nil {
		return loaded, err
	}
	l.logger.Info("documents loaded from postgres",
		"documents", loaded,
		"duration", time.Since(start),
	)
	return loaded, nil
}

func (l *Loader) consume(ctx context.Context, rows Rows) (int, error) {
	loaded := 0
	batch := make([]store.Document, 0, l.batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if _, err := l.indexer.Add(ctx, ingestion.SourcePostgres, batch); err != nil {
			return fmt.Errorf("indexing rows %d-%d: %w", loaded+1, loaded+len(batch), err)
		}
		loaded += len(batch)
		batch = make([]store.Document, 0, l.batchSize)
		return nil
	}
	for rows.Next() {
		var doc store.Document
		var text sql.NullString
		if err := rows.Scan(&doc.ID, &text); err != nil {
			return loaded, fmt.Errorf("scanning row %d: %w", loaded+len(batch)+1, err)
		}
		doc.Text = text.String
		batch = append(batch, doc)
		if len(batch) == l.batchSize {
			if err := flush(); err != nil {
				return loaded, err
			}
		}
	}
	if err := rows.Err(); err != nil {
		return loaded, fmt.Errorf("reading rows: %w", err)
	}
	err := flush()
	return loaded, err
}
