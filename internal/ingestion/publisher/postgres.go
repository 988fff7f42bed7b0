package publisher

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/bloom-search/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/bloom-search/pkg/postgres"
)

// PostgresPublisher appends batches to the documents table the searcher's
// startup loader reads. Each batch is one transaction.
type PostgresPublisher struct {
	client *postgres.Client
}

func NewPostgres(client *postgres.Client) *PostgresPublisher {
	return &PostgresPublisher{client: client}
}

func (p *PostgresPublisher) Publish(ctx context.Context, batch ingestion.DocumentBatch) error {
	return p.client.InTx(ctx, nil, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO documents (id, text) VALUES ($1, $2)`)
		if err != nil {
			return fmt.Errorf("preparing insert: %w", err)
		}
		defer stmt.Close()
		for _, doc := range batch.Documents {
			if _, err := stmt.ExecContext(ctx, doc.ID, doc.Text); err != nil {
				return fmt.Errorf("inserting document %q: %w", doc.ID, err)
			}
		}
		return nil
	})
}
