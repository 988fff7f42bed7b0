package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/bloom-search/internal/indexer/store"
	"github.com/Adithya-Monish-Kumar-K/bloom-search/internal/ingestion"
	"github.com/stretchr/testify/require"
)

func docs(n int) []store.Document {
	out := make([]store.Document, n)
	for i := range out {
		out[i] = store.Document{ID: fmt.Sprintf("d%d", i), Text: "text"}
	}
	return out
}

func TestChunk(t *testing.T) {
	require.Nil(t, Chunk(nil, 3))
	chunks := Chunk(docs(7), 3)
	require.Len(t, chunks, 3)
	require.Len(t, chunks[0], 3)
	require.Len(t, chunks[2], 1)
	require.Equal(t, "d6", chunks[2][0].ID)
}

type recorder struct {
	batches []ingestion.DocumentBatch
	failAt  int
}

func (r *recorder) Publish(_ context.Context, b ingestion.DocumentBatch) error {
	if r.failAt > 0 && len(r.batches)+1 == r.failAt {
		return errors.New("down")
	}
	r.batches = append(r.batches, b)
	return nil
}

func TestSend(t *testing.T) {
	r := &recorder{}
	n, err := Send(context.Background(), r, docs(5), 2, "run")
	require.NoError(t, err)
	require.Equal(t, 5, n)
	require.Len(t, r.batches, 3)
	require.Equal(t, "run-0", r.batches[0].BatchID)
	require.Equal(t, "run-2", r.batches[2].BatchID)

	r = &recorder{failAt: 2}
	n, err = Send(context.Background(), r, docs(5), 2, "run")
	require.Error(t, err)
	require.Equal(t, 2, n)
}

func TestHTTPPublisher(t *testing.T) {
	var got ingestion.AddRequest
	resets := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/documents":
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			w.WriteHeader(http.StatusAccepted)
			_ = json.NewEncoder(w).Encode(ingestion.AddResponse{Added: len(got.Documents), Documents: len(got.Documents)})
		case "/api/v1/reset":
			resets++
			w.WriteHeader(http.StatusNoContent)
		default:
			http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
		}
	}))
	defer srv.Close()

	p := NewHTTP(srv.URL+"/", srv.Client())
	require.NoError(t, p.Reset(context.Background()))
	require.NoError(t, p.Publish(context.Background(), ingestion.DocumentBatch{Documents: docs(2)}))
	require.Equal(t, 1, resets)
	require.Len(t, got.Documents, 2)

	bad := NewHTTP(srv.URL+"/nope", srv.Client())
	err := bad.Reset(context.Background())
	require.ErrorContains(t, err, "status 404")
}
