package handler

import (
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/wikisearch/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/wikisearch/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/wikisearch/pkg/middleware"
)

// Routes builds the service mux. stats and checker may be nil. A positive
// timeout bounds every API request.
func (h *Handler) Routes(stats *analytics.Handler, checker *health.Checker, timeout time.Duration) http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("GET /api/v1/search", h.Search)
	api.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	api.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
	if stats != nil {
		api.HandleFunc("GET /api/v1/analytics/stats", stats.Stats)
	}
	var apiHandler http.Handler = api
	if timeout > 0 {
		apiHandler = middleware.Timeout(timeout)(apiHandler)
	}

	mux := http.NewServeMux()
	mux.Handle("/api/", apiHandler)
	if checker != nil {
		mux.HandleFunc("GET /health/live", checker.LiveHandler())
		mux.HandleFunc("GET /health/ready", checker.ReadyHandler())
	}

	var root http.Handler = mux
	if h.metrics != nil {
		mux.Handle("GET /metrics", h.metrics.Handler())
		root = middleware.Metrics(h.metrics)(root)
	}
	return middleware.RequestID(root)
}
