// Package publisher ships document batches to a running searcher, either
// directly over HTTP or through the Kafka documents topic.
package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/bloom-search/internal/indexer/store"
	"github.com/Adithya-Monish-Kumar-K/bloom-search/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/bloom-search/pkg/kafka"
)

// Publisher delivers one batch.
type Publisher interface {
	Publish(ctx context.Context, batch ingestion.DocumentBatch) error
}

// Send splits docs into batches of at most size documents and publishes
// them in order. It returns the number of documents delivered.
func Send(ctx context.Context, p Publisher, docs []store.Document, size int, prefix string) (int, error) {
	if size <= 0 {
		size = len(docs)
	}
	sent := 0
	for i, chunk := range Chunk(docs, size) {
		batch := ingestion.DocumentBatch{
			BatchID:   fmt.Sprintf("%s-%d", prefix, i),
			Documents: chunk,
			SentAt:    time.Now().UTC(),
		}
		if err := p.Publish(ctx, batch); err != nil {
			return sent, fmt.Errorf("publishing batch %s: %w", batch.BatchID, err)
		}
		sent += len(chunk)
	}
	return sent, nil
}

// Chunk splits docs into consecutive slices of at most size elements.
func Chunk(docs []store.Document, size int) [][]store.Document {
	if size <= 0 || len(docs) == 0 {
		return nil
	}
	chunks := make([][]store.Document, 0, (len(docs)+size-1)/size)
	for start := 0; start < len(docs); start += size {
		end := min(start+size, len(docs))
		chunks = append(chunks, docs[start:end])
	}
	return chunks
}

// KafkaPublisher writes each batch as one message. All batches share a key
// so they land on one partition and are consumed in order.
type KafkaPublisher struct {
	producer *kafka.Producer
	key      string
}

func NewKafka(producer *kafka.Producer, key string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, key: key}
}

func (p *KafkaPublisher) Publish(ctx context.Context, batch ingestion.DocumentBatch) error {
	return p.producer.Publish(ctx, kafka.Event{
		Key:     p.key,
		Value:   batch,
		Headers: map[string]string{"batch-id": batch.BatchID},
	})
}

// HTTPPublisher posts batches to the searcher's documents endpoint.
type HTTPPublisher struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

func NewHTTP(baseURL string, client *http.Client) *HTTPPublisher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPPublisher{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		logger:  slog.Default().With("component", "http-publisher"),
	}
}

func (p *HTTPPublisher) Publish(ctx context.Context, batch ingestion.DocumentBatch) error {
	body, err := json.Marshal(ingestion.AddRequest{Documents: batch.Documents})
	if err != nil {
		return fmt.Errorf("encoding batch: %w", err)
	}
	var resp ingestion.AddResponse
	if err := p.do(ctx, http.MethodPost, "/api/v1/documents", body, http.StatusAccepted, &resp); err != nil {
		return err
	}
	p.logger.Debug("batch posted", "batch_id", batch.BatchID, "added", resp.Added, "documents", resp.Documents)
	return nil
}

// Reset asks the searcher to start a new generation.
func (p *HTTPPublisher) Reset(ctx context.Context) error {
	return p.do(ctx, http.MethodPost, "/api/v1/reset", nil, http.StatusNoContent, nil)
}

func (p *HTTPPublisher) do(ctx context.Context, method, path string, body []byte, want int, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != want {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", path, err)
	}
	return nil
}
