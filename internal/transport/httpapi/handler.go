// Package httpapi exposes catalog search and index sync over HTTP.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/shopfront/catalogsearch/internal/catalog"
	"github.com/shopfront/catalogsearch/internal/document"
	"github.com/shopfront/catalogsearch/internal/errors"
	"github.com/shopfront/catalogsearch/internal/search"
	"github.com/shopfront/catalogsearch/internal/telemetry"
)

// SearchService is the subset of search.Service the API needs.
type SearchService interface {
	Search(ctx context.Context, req search.Request) (*search.Response, error)
	IndexItem(ctx context.Context, doc document.Document) error
	DeleteItem(ctx context.Context, id int64) error
	DeleteItems(ctx context.Context, ids []int64) error
	ReindexAll(ctx context.Context, docs []document.Document) error
	Stats() (search.Stats, error)
	Insights() *telemetry.Snapshot
}

// Catalog is the read side of the primary store.
type Catalog interface {
	Item(ctx context.Context, id int64) (catalog.Record, error)
	ItemsInCategory(ctx context.Context, categoryID int64) ([]catalog.Record, error)
	Documents(ctx context.Context) ([]document.Document, error)
}

// Handler serves the search and index sync endpoints.
type Handler struct {
	search  SearchService
	catalog Catalog
	retry   errors.RetryConfig
	logger  *slog.Logger
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithRetry sets the retry policy for index writes.
func WithRetry(cfg errors.RetryConfig) HandlerOption {
	return func(h *Handler) {
		h.retry = cfg
	}
}

// WithHandlerLogger sets the logger. Defaults to slog.Default().
func WithHandlerLogger(l *slog.Logger) HandlerOption {
	return func(h *Handler) {
		h.logger = l
	}
}

// NewHandler creates a Handler.
func NewHandler(svc SearchService, cat Catalog, opts ...HandlerOption) *Handler {
	h := &Handler{
		search:  svc,
		catalog: cat,
		retry:   errors.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	return h
}

// searchResponse is the wire form of a search page.
type searchResponse struct {
	Data       []document.Document `json:"data"`
	Total      int                 `json:"total"`
	Skip       int                 `json:"skip"`
	Limit      int                 `json:"limit"`
	NextLink   *string             `json:"nextLink"`
	Degraded   bool                `json:"degraded"`
	Truncated  bool                `json:"truncated,omitempty"`
	StoreError string              `json:"storeError,omitempty"`
}

// Search handles GET /api/items/search.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := search.Request{
		Query:    q.Get("q"),
		Skip:     intParam(q, "skip"),
		Limit:    intParam(q, "limit"),
		Category: q.Get("category"),
		Country:  q.Get("country"),
	}

	resp, err := h.search.Search(r.Context(), req)
	if err != nil {
		// Only a cancelled or expired request context gets here.
		h.logger.Debug("search_cancelled", slog.String("error", err.Error()))
		writeError(w, err, "search cancelled")
		return
	}

	out := searchResponse{
		Data:       resp.Items,
		Total:      resp.Total,
		Skip:       resp.Skip,
		Limit:      resp.Limit,
		Degraded:   resp.Degraded,
		Truncated:  resp.Truncated,
		StoreError: resp.StoreError,
	}
	if resp.HasNext() {
		link := nextLink(r, req, resp)
		out.NextLink = &link
	}
	writeJSON(w, http.StatusOK, out)
}

// nextLink builds the absolute URL of the following page.
func nextLink(r *http.Request, req search.Request, resp *search.Response) string {
	v := url.Values{}
	v.Set("q", req.Query)
	v.Set("skip", strconv.Itoa(resp.Skip+resp.Limit))
	v.Set("limit", strconv.Itoa(resp.Limit))
	if req.Category != "" {
		v.Set("category", req.Category)
	}
	if req.Country != "" {
		v.Set("country", req.Country)
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	u := url.URL{Scheme: scheme, Host: r.Host, Path: r.URL.Path, RawQuery: v.Encode()}
	return u.String()
}

// intParam parses a query integer. Missing or malformed values are zero,
// which the service normalizes to its defaults.
func intParam(q url.Values, key string) int {
	n, err := strconv.Atoi(q.Get(key))
	if err != nil {
		return 0
	}
	return n
}

// GetItem handles GET /api/items/{id}, read straight from the catalog.
func (h *Handler) GetItem(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	rec, err := h.catalog.Item(r.Context(), id)
	if err != nil {
		writeError(w, err, "item not found")
		return
	}
	doc, err := rec.Document()
	if err != nil {
		writeError(w, err, "")
		return
	}
	writeJSON(w, http.StatusOK, struct {
		document.Document
		ImagePath string `json:"imagePath,omitempty"`
	}{doc, rec.Item.ImagePath})
}

// Reindex handles GET and POST /api/items/reindex.
func (h *Handler) Reindex(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	docs, err := h.catalog.Documents(ctx)
	if err != nil {
		h.logger.Error("reindex_catalog_failed", errors.LogAttrs(err)...)
		writeError(w, err, "catalog unavailable")
		return
	}

	if err := h.write(ctx, "reindex", func() error { return h.search.ReindexAll(ctx, docs) }); err != nil {
		writeStale(w, err)
		return
	}
	writeJSON(w, http.StatusOK, okCount(len(docs)))
}

// SyncItem handles PUT /api/index/items/{id}: the catalog row is copied
// into the index.
func (h *Handler) SyncItem(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	rec, err := h.catalog.Item(ctx, id)
	if err != nil {
		writeError(w, err, "item not found in catalog")
		return
	}
	doc, err := rec.Document()
	if err != nil {
		writeError(w, err, "")
		return
	}

	if err := h.write(ctx, "index", func() error { return h.search.IndexItem(ctx, doc) }); err != nil {
		writeStale(w, err)
		return
	}
	writeJSON(w, http.StatusOK, okStatus())
}

// UnindexItem handles DELETE /api/index/items/{id}.
func (h *Handler) UnindexItem(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	if err := h.write(ctx, "delete", func() error { return h.search.DeleteItem(ctx, id) }); err != nil {
		writeStale(w, err)
		return
	}
	writeJSON(w, http.StatusOK, okStatus())
}

// PurgeCategory handles POST /api/index/categories/{id}/purge, removing
// every item of the category from the index.
func (h *Handler) PurgeCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	recs, err := h.catalog.ItemsInCategory(ctx, id)
	if err != nil {
		writeError(w, err, "catalog unavailable")
		return
	}
	ids := make([]int64, len(recs))
	for i, rec := range recs {
		ids[i] = rec.Item.ID
	}

	if err := h.write(ctx, "purge", func() error { return h.search.DeleteItems(ctx, ids) }); err != nil {
		writeStale(w, err)
		return
	}
	writeJSON(w, http.StatusOK, okCount(len(ids)))
}

// IndexStats handles GET /api/index/stats.
func (h *Handler) IndexStats(w http.ResponseWriter, r *http.Request) {
	st, err := h.search.Stats()
	if err != nil {
		writeError(w, err, "")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// Insights handles GET /api/search/insights.
func (h *Handler) Insights(w http.ResponseWriter, r *http.Request) {
	snap := h.search.Insights()
	if snap == nil {
		writeError(w, errors.New(errors.ErrCodeNotFound, "query insights are disabled", nil), "")
		return
	}
	writeJSON(w, http.StatusOK, struct {
		*telemetry.Snapshot
		ZeroResultPercentage float64 `json:"zero_result_percentage"`
	}{snap, snap.ZeroResultPercentage()})
}

// Health handles GET /health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	st, err := h.search.Stats()
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unavailable",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"documents": st.DocumentCount,
		"version":   st.Version,
	})
}

// write runs an index mutation under the retry policy.
func (h *Handler) write(ctx context.Context, op string, fn func() error) error {
	err := errors.Retry(ctx, h.retry, fn)
	if err != nil {
		attrs := append([]any{slog.String("op", op)}, errors.LogAttrs(err)...)
		h.logger.Error("index_sync_failed", attrs...)
	}
	return err
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		writeError(w, errors.ValidationError("invalid id "+strconv.Quote(raw), err), "")
		return 0, false
	}
	return id, true
}
