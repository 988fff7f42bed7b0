// Package ingestion defines the request/response bodies and the Kafka event
// schema through which documents reach the store.
package ingestion

import (
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/bloom-search/internal/indexer/store"
)

// AddRequest is the JSON body accepted by the documents endpoint.
type AddRequest struct {
	Documents []store.Document `json:"documents"`
}

// AddResponse is returned once a batch has been indexed.
type AddResponse struct {
	Added     int `json:"added"`
	Documents int `json:"documents"`
}

// DocumentBatch is the Kafka message payload carrying documents to index.
type DocumentBatch struct {
	BatchID   string           `json:"batch_id"`
	Documents []store.Document `json:"documents"`
	SentAt    time.Time        `json:"sent_at"`
}

// VideoRecord is the video metadata shape accepted by the feeder.
type VideoRecord struct {
	VideoID     string   `json:"video_id"`
	Title       string   `json:"title"`
	Tags        []string `json:"tags"`
	Description string   `json:"description"`
}

// Document flattens the record into searchable text: title, tags and
// description separated by spaces.
func (v VideoRecord) Document() store.Document {
	parts := make([]string, 0, len(v.Tags)+2)
	parts = append(parts, v.Title)
	parts = append(parts, v.Tags...)
	parts = append(parts, v.Description)
	return store.Document{ID: v.VideoID, Text: strings.Join(parts, " ")}
}
