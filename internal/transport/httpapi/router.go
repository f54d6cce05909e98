package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/shopfront/catalogsearch/internal/metrics"
)

// NewRouter registers every route on a chi router. m may be nil.
func NewRouter(h *Handler, m *metrics.Metrics, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(Recovery(logger))
	r.Use(RequestLogging(logger))
	if m != nil {
		r.Use(m.Middleware())
		r.Method(http.MethodGet, "/metrics", m.Handler())
	}

	r.Get("/health", h.Health)

	r.Route("/api/items", func(r chi.Router) {
		r.Get("/search", h.Search)
		r.Get("/reindex", h.Reindex)
		r.Post("/reindex", h.Reindex)
		r.Get("/{id}", h.GetItem)
	})

	r.Route("/api/index", func(r chi.Router) {
		r.Get("/stats", h.IndexStats)
		r.Put("/items/{id}", h.SyncItem)
		r.Delete("/items/{id}", h.UnindexItem)
		r.Post("/categories/{id}/purge", h.PurgeCategory)
	})

	r.Get("/api/search/insights", h.Insights)

	return r
}
