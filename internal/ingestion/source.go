package ingestion

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/Adithya-Monish-Kumar-K/bloom-search/internal/indexer/store"
)

type record struct {
	ID   string `json:"id"`
	Text string `json:"text"`
	VideoRecord
}

// ReadDocuments decodes a JSON array whose elements are either documents
// ({"id","text"}) or video records ({"video_id","title","tags",
// "description"}). The two shapes may be mixed. An {"documents":[...]}
// wrapper is accepted as well.
func ReadDocuments(r io.Reader) ([]store.Document, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading documents: %w", err)
	}
	var records []record
	if err := json.Unmarshal(raw, &records); err != nil {
		var wrapped struct {
			Documents []record `json:"documents"`
		}
		if err2 := json.Unmarshal(raw, &wrapped); err2 != nil || wrapped.Documents == nil {
			return nil, fmt.Errorf("decoding documents: %w", err)
		}
		records = wrapped.Documents
	}
	docs := make([]store.Document, 0, len(records))
	for i, rec := range records {
		switch {
		case rec.ID != "":
			docs = append(docs, store.Document{ID: rec.ID, Text: rec.Text})
		case rec.VideoID != "":
			docs = append(docs, rec.VideoRecord.Document())
		default:
			return nil, fmt.Errorf("element %d has neither id nor video_id", i)
		}
	}
	return docs, nil
}
