// Package postgres opens the optional document source database through
// lib/pq and provides transaction helpers.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Adithya-Monish-Kumar-K/bloom-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/bloom-search/pkg/resilience"
	"github.com/lib/pq"
)

// Schema creates the documents table read by the startup loader. seq keeps
// insertion order, which becomes the store ordinal order.
const Schema = `CREATE TABLE IF NOT EXISTS documents (
	seq  BIGSERIAL PRIMARY KEY,
	id   TEXT NOT NULL,
	text TEXT NOT NULL DEFAULT ''
)`

type Client struct {
	DB *sql.DB
}

// New opens the pool and pings it, retrying with backoff so the service can
// start before the database does.
func New(ctx context.Context, cfg config.PostgresConfig, retry resilience.RetryConfig) (*Client, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("opening postgres connection: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	_, err = resilience.Retry(ctx, "postgres ping", retry, func(ctx context.Context) (struct{}, error) {
		return resilience.Bounded(ctx, 5*time.Second, "postgres ping", func(ctx context.Context) (struct{}, error) {
			return struct{}{}, classifyPingError(db.PingContext(ctx))
		})
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	return &Client{DB: db}, nil
}

// fatalClasses are server answers that waiting will not change: bad
// credentials and a missing database.
var fatalClasses = map[pq.ErrorClass]bool{
	"28": true, // invalid_authorization_specification
	"3D": true, // invalid_catalog_name
}

func classifyPingError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && fatalClasses[pqErr.Code.Class()] {
		return resilience.Permanent(err)
	}
	return err
}

func (c *Client) Close() error {
	return c.DB.Close()
}

// EnsureSchema creates the documents table if it does not exist.
func (c *Client) EnsureSchema(ctx context.Context) error {
	if _, err := c.DB.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

// InTx runs fn in a transaction, committing on success and rolling back on
// error. opts may be nil.
func (c *Client) InTx(ctx context.Context, opts *sql.TxOptions, fn func(tx *sql.Tx) error) error {
	tx, err := c.DB.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rolling back transaction after error %v: %w", rbErr, err)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}
