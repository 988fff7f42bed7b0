// Package handler exposes the store and query engine over HTTP.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/bloom-search/internal/indexer/store"
	"github.com/Adithya-Monish-Kumar-K/bloom-search/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/bloom-search/internal/ingestion/validator"
	"github.com/Adithya-Monish-Kumar-K/bloom-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/bloom-search/internal/searcher/query"
	apperrors "github.com/Adithya-Monish-Kumar-K/bloom-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/bloom-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/bloom-search/pkg/metrics"
)

// defaultMaxBody caps a document batch request body.
const defaultMaxBody = 64 << 20

// SearchResponse is the body of a successful search.
type SearchResponse struct {
	Query      string         `json:"query"`
	Strategy   query.Strategy `json:"strategy"`
	IDs        []string       `json:"ids"`
	Total      int            `json:"total"`
	Grams      int            `json:"grams"`
	Verified   int            `json:"verified"`
	Generation uint64         `json:"generation"`
	CacheHit   bool           `json:"cache_hit"`
	TookMs     float64        `json:"took_ms"`
}

type Handler struct {
	store          *store.Store
	engine         *query.Engine
	indexer        *ingestion.Indexer
	cache          *cache.QueryCache
	metrics        *metrics.Metrics
	maxQueryLength int
	maxBody        int64
	logger         *slog.Logger
}

// New creates a Handler. queryCache may be nil.
func New(s *store.Store, engine *query.Engine, ix *ingestion.Indexer, queryCache *cache.QueryCache, m *metrics.Metrics, maxQueryLength int) *Handler {
	return &Handler{
		store:          s,
		engine:         engine,
		indexer:        ix,
		cache:          queryCache,
		metrics:        m,
		maxQueryLength: maxQueryLength,
		maxBody:        defaultMaxBody,
		logger:         slog.Default().With("component", "search-handler"),
	}
}

// Register mounts the API routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/reset", h.Reset)
	mux.HandleFunc("POST /api/v1/documents", h.AddDocuments)
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/search/linear", h.SearchLinear)
	mux.HandleFunc("GET /api/v1/stats", h.Stats)
}

func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	h.indexer.Reset(ctx)
	if h.cache != nil {
		if err := h.cache.Invalidate(ctx); err != nil {
			logger.FromContext(ctx).Warn("cache flush after reset failed", "error", err)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddDocuments indexes a batch. Indexing does not observe the request
// context, so a 504 from the timeout middleware does not mean the batch was
// dropped: it may still be committed after the client gave up, and a blind
// retry can add the documents twice.
func (h *Handler) AddDocuments(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req ingestion.AddRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, h.maxBody)).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeError(w, apperrors.HTTPStatusCode(apperrors.ErrTooLarge), "request body too large")
			return
		}
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	resp, err := h.indexer.Add(ctx, ingestion.SourceHTTP, req.Documents)
	if err != nil {
		var verr *validator.ValidationError
		if errors.As(err, &verr) {
			h.writeJSON(w, http.StatusBadRequest, map[string]any{
				"error":  "validation failed",
				"fields": verr.Fields,
			})
			return
		}
		status := apperrors.HTTPStatusCode(err)
		logger.FromContext(ctx).Error("adding documents failed", "error", err, "status_code", status)
		h.writeError(w, status, "adding documents failed")
		return
	}
	h.writeJSON(w, http.StatusAccepted, resp)
}

// Search runs the indexed strategy unless ?strategy= names another one.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	strategy, err := query.ParseStrategy(r.URL.Query().Get("strategy"))
	if err != nil {
		h.writeError(w, apperrors.HTTPStatusCode(err), err.Error())
		return
	}
	h.search(w, r, strategy)
}

func (h *Handler) SearchLinear(w http.ResponseWriter, r *http.Request) {
	h.search(w, r, query.StrategyLinear)
}

func (h *Handler) search(w http.ResponseWriter, r *http.Request, strategy query.Strategy) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	params := r.URL.Query()
	if !params.Has("q") {
		h.writeError(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}
	text := params.Get("q")
	if err := validator.ValidateQuery(text, h.maxQueryLength); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var res *query.Result
	var err error
	cacheHit := false
	if h.cache != nil {
		res, cacheHit, err = h.cache.GetOrCompute(ctx, h.store.Version(), strategy, text, func() (*query.Result, error) {
			return h.engine.Run(strategy, text)
		})
	} else {
		res, err = h.engine.Run(strategy, text)
	}
	label := string(strategy)
	if err != nil {
		status := apperrors.HTTPStatusCode(err)
		if errors.Is(err, apperrors.ErrEmptyCollection) {
			h.metrics.SearchQueriesTotal.WithLabelValues(label, "empty_collection").Inc()
			h.writeError(w, status, "collection is empty")
			return
		}
		h.metrics.SearchQueriesTotal.WithLabelValues(label, "error").Inc()
		log.Error("search failed", "strategy", strategy, "error", err)
		h.writeError(w, status, "search failed")
		return
	}

	took := time.Since(start)
	cacheStatus := "miss"
	if h.cache == nil {
		cacheStatus = "disabled"
	} else if cacheHit {
		cacheStatus = "hit"
		h.metrics.CacheHitsTotal.Inc()
	} else {
		h.metrics.CacheMissesTotal.Inc()
	}
	resultType := "hit"
	if len(res.IDs) == 0 {
		resultType = "zero_result"
	}
	h.metrics.SearchQueriesTotal.WithLabelValues(label, resultType).Inc()
	h.metrics.SearchLatency.WithLabelValues(label, cacheStatus).Observe(took.Seconds())
	h.metrics.SearchResultsCount.WithLabelValues(label).Observe(float64(len(res.IDs)))
	if !cacheHit {
		h.metrics.SearchVerified.WithLabelValues(label).Observe(float64(res.Verified))
	}

	log.Debug("search completed",
		"strategy", strategy,
		"total", len(res.IDs),
		"verified", res.Verified,
		"cache", cacheStatus,
		"took", took,
	)
	h.writeJSON(w, http.StatusOK, SearchResponse{
		Query:      text,
		Strategy:   strategy,
		IDs:        res.IDs,
		Total:      len(res.IDs),
		Grams:      res.Grams,
		Verified:   res.Verified,
		Generation: res.Generation,
		CacheHit:   cacheHit,
		TookMs:     float64(took.Microseconds()) / 1000,
	})
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{"store": h.store.Stats()}
	if h.cache != nil {
		hits, misses := h.cache.Stats()
		body["cache"] = map[string]int64{"hits": hits, "misses": misses}
	}
	h.writeJSON(w, http.StatusOK, body)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
