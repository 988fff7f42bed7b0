//go:build e2e

// End-to-end checks against a running searcher.
//
// Run with:
//
//	E2E_SEARCHER_URL=http://localhost:8080 go test -v -tags=e2e ./cmd/searcher/...
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/bloom-search/internal/indexer/store"
	"github.com/Adithya-Monish-Kumar-K/bloom-search/internal/ingestion/publisher"
	"github.com/stretchr/testify/require"
)

func searcherURL() string {
	if v := os.Getenv("E2E_SEARCHER_URL"); v != "" {
		return v
	}
	return "http://localhost:8080"
}

func getJSON(t *testing.T, client *http.Client, rawURL string, out any) int {
	t.Helper()
	resp, err := client.Get(rawURL)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil && resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestSearcherHealth(t *testing.T) {
	client := &http.Client{Timeout: 5 * time.Second}
	for _, path := range []string{"/health/live", "/health/ready"} {
		t.Run(path, func(t *testing.T) {
			resp, err := client.Get(searcherURL() + path)
			if err != nil {
				t.Skipf("searcher unavailable: %v", err)
			}
			defer resp.Body.Close()
			require.Equal(t, http.StatusOK, resp.StatusCode)
		})
	}
}

func TestResetAddSearch(t *testing.T) {
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(searcherURL() + "/health/live")
	if err != nil {
		t.Skipf("searcher unavailable: %v", err)
	}
	resp.Body.Close()
	ctx := context.Background()
	pub := publisher.NewHTTP(searcherURL(), client)
	require.NoError(t, pub.Reset(ctx))

	var search struct {
		IDs []string `json:"ids"`
	}
	status := getJSON(t, client, searcherURL()+"/api/v1/search?q=anything", nil)
	require.Equal(t, http.StatusConflict, status)

	docs := make([]store.Document, 0, 200)
	for i := 0; i < 200; i++ {
		docs = append(docs, store.Document{ID: fmt.Sprintf("e2e-%d", i), Text: fmt.Sprintf("document number %d about topic%d", i, i%7)})
	}
	docs = append(docs, store.Document{ID: "needle", Text: "a very distinctive haystack needle"})
	sent, err := publisher.Send(ctx, pub, docs, 50, "e2e")
	require.NoError(t, err)
	require.Equal(t, len(docs), sent)

	q := url.QueryEscape("distinctive haystack")
	require.Equal(t, http.StatusOK, getJSON(t, client, searcherURL()+"/api/v1/search?q="+q, &search))
	require.Contains(t, search.IDs, "needle")
	indexed := search.IDs

	require.Equal(t, http.StatusOK, getJSON(t, client, searcherURL()+"/api/v1/search/linear?q="+q, &search))
	require.Equal(t, indexed, search.IDs)

	var stats struct {
		Store store.Stats `json:"store"`
	}
	require.Equal(t, http.StatusOK, getJSON(t, client, searcherURL()+"/api/v1/stats", &stats))
	require.Equal(t, len(docs), stats.Store.Documents)

}
