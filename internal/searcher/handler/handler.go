package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/wikisearch/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/wikisearch/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/wikisearch/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/wikisearch/internal/searcher/titles"
	apperrors "github.com/Adithya-Monish-Kumar-K/wikisearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/wikisearch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/wikisearch/pkg/metrics"
)

// maxQueryBytes bounds the q parameter.
const maxQueryBytes = 1024

type SearchExecutor interface {
	Terms(query string) []string
	Search(ctx context.Context, query string) (*executor.SearchResult, error)
}

type Handler struct {
	executor  SearchExecutor
	cache     *cache.QueryCache
	collector *analytics.Collector
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// New creates the HTTP handler. queryCache, collector and m may each be nil.
func New(exec SearchExecutor, queryCache *cache.QueryCache, collector *analytics.Collector, m *metrics.Metrics) *Handler {
	return &Handler{
		executor:  exec,
		cache:     queryCache,
		collector: collector,
		metrics:   m,
		logger:    slog.Default().With("component", "search-handler"),
	}
}

// Search answers GET /api/v1/search?q=. A missing q is a bad request; a q
// that tokenizes to nothing yields an empty result list.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	values := r.URL.Query()
	if !values.Has("q") {
		h.writeError(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}
	query := values.Get("q")
	if len(query) > maxQueryBytes {
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("query exceeds %d bytes", maxQueryBytes))
		return
	}

	terms := h.executor.Terms(query)
	if len(terms) == 0 {
		h.writeJSON(w, http.StatusOK, &executor.SearchResult{
			Query:   query,
			Terms:   terms,
			Results: []titles.Result{},
		})
		return
	}

	var result *executor.SearchResult
	var err error
	cacheHit := false
	cacheStatus := "disabled"

	if h.cache != nil {
		result, cacheHit, err = h.cache.GetOrCompute(ctx, terms, func(ctx context.Context) (*executor.SearchResult, error) {
			return h.executor.Search(ctx, query)
		})
		cacheStatus = "miss"
		if cacheHit {
			cacheStatus = "hit"
		}
	} else {
		result, err = h.executor.Search(ctx, query)
	}

	latency := time.Since(start)
	if h.metrics != nil {
		h.metrics.SearchLatency.WithLabelValues(cacheStatus).Observe(latency.Seconds())
	}

	if err != nil {
		status := apperrors.HTTPStatusCode(err)
		log.Error("search execution failed", "query", query, "status", status, "error", err)
		h.track(ctx, analytics.EventError, query, terms, 0, latency, false, status)
		h.writeError(w, status, errorMessage(status))
		return
	}

	// Results may be shared with concurrent callers; never write through the pointer.
	response := *result
	response.Query = query
	response.LatencyMs = latency.Milliseconds()
	result = &response

	log.Info("search completed",
		"query", query,
		"returned", len(result.Results),
		"cache_hit", cacheHit,
		"latency_ms", result.LatencyMs,
	)
	eventType := analytics.EventSearch
	if len(result.Results) == 0 {
		eventType = analytics.EventZeroResult
	}
	h.track(ctx, eventType, query, terms, len(result.Results), latency, cacheHit, http.StatusOK)

	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}

	hits, misses := h.cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}

	if err := h.cache.Invalidate(r.Context()); err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

func (h *Handler) track(ctx context.Context, eventType analytics.EventType, query string, terms []string, returned int, latency time.Duration, cacheHit bool, status int) {
	if h.collector == nil {
		return
	}
	h.collector.Track(analytics.SearchEvent{
		Type:      eventType,
		Query:     query,
		Terms:     terms,
		Returned:  returned,
		LatencyMs: latency.Milliseconds(),
		CacheHit:  cacheHit,
		Status:    status,
		Timestamp: time.Now().UTC(),
		RequestID: logger.RequestID(ctx),
	})
}

func errorMessage(status int) string {
	switch status {
	case http.StatusServiceUnavailable:
		return "search index unavailable"
	case http.StatusGatewayTimeout:
		return "search timed out"
	case http.StatusBadRequest:
		return "invalid query"
	default:
		return "search failed"
	}
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
