package search

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/shopfront/catalogsearch/internal/cache"
	"github.com/shopfront/catalogsearch/internal/document"
	"github.com/shopfront/catalogsearch/internal/metrics"
	"github.com/shopfront/catalogsearch/internal/query"
	"github.com/shopfront/catalogsearch/internal/telemetry"
	"github.com/shopfront/catalogsearch/pkg/indexer"
	"github.com/shopfront/catalogsearch/pkg/searcher"
)

// ErrNilDependency is returned when a required dependency is nil.
var ErrNilDependency = stderrors.New("nil dependency")

// Service answers catalog searches and applies index mutations.
// Safe for concurrent use.
type Service struct {
	writer   indexer.Indexer
	searcher searcher.Searcher
	cfg      Config
	fields   []string

	version  *cache.Version
	cacheCfg *cache.Config
	results  *cache.Cache[*Response]

	metrics  *metrics.Metrics
	insights *telemetry.Insights
	logger   *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithCache enables the read-through result cache.
func WithCache(cfg cache.Config) Option {
	return func(s *Service) {
		s.cacheCfg = &cfg
	}
}

// WithVersion shares a version token holder. Defaults to a new one.
func WithVersion(v *cache.Version) Option {
	return func(s *Service) {
		s.version = v
	}
}

// WithMetrics records Prometheus metrics. It also observes the cache unless
// the cache config names its own observer.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithInsights records query telemetry.
func WithInsights(in *telemetry.Insights) Option {
	return func(s *Service) {
		s.insights = in
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

// WithFields overrides the default query field list.
func WithFields(fields ...string) Option {
	return func(s *Service) {
		s.fields = fields
	}
}

// NewService creates a Service over a writer and a searcher sharing one store.
func NewService(w indexer.Indexer, r searcher.Searcher, cfg Config, opts ...Option) (*Service, error) {
	if w == nil {
		return nil, fmt.Errorf("%w: index writer is required", ErrNilDependency)
	}
	if r == nil {
		return nil, fmt.Errorf("%w: index searcher is required", ErrNilDependency)
	}

	def := DefaultConfig()
	if cfg.Slack < 0 {
		cfg.Slack = def.Slack
	}
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = def.DefaultLimit
	}
	if cfg.MaxLimit <= 0 {
		cfg.MaxLimit = def.MaxLimit
	}
	if cfg.DefaultLimit > cfg.MaxLimit {
		cfg.DefaultLimit = cfg.MaxLimit
	}

	s := &Service{
		writer:   w,
		searcher: r,
		cfg:      cfg,
		fields:   document.SearchableFields,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.version == nil {
		s.version = cache.NewVersion()
	}

	if s.cacheCfg != nil {
		cc := *s.cacheCfg
		if cc.Observer == nil && s.metrics != nil {
			cc.Observer = s.metrics
		}
		results, err := cache.New[*Response](s.version, cc)
		if err != nil {
			return nil, err
		}
		s.results = results
	}
	return s, nil
}

// Normalize applies the paging rules: a limit of zero or less becomes the
// default, a limit above the maximum becomes the maximum, and a negative
// skip becomes zero.
func (s *Service) Normalize(req Request) Request {
	switch {
	case req.Limit <= 0:
		req.Limit = s.cfg.DefaultLimit
	case req.Limit > s.cfg.MaxLimit:
		req.Limit = s.cfg.MaxLimit
	}
	if req.Skip < 0 {
		req.Skip = 0
	}
	return req
}

// Search returns one page of ranked, filtered results.
//
// Index read failures do not fail the call: the response carries an empty
// page with StoreError set. Only a cancelled or expired context is returned
// as an error.
func (s *Service) Search(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	req = s.Normalize(req)

	var (
		resp  *Response
		hit   bool
		err   error
		label = "off"
	)
	if s.results != nil {
		resp, hit, err = s.results.GetOrCompute(ctx, req.cacheKey(), func(ctx context.Context) (*Response, error) {
			return s.execute(ctx, req)
		})
		label = "miss"
		if hit {
			label = "hit"
		}
	} else {
		resp, err = s.execute(ctx, req)
	}

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		s.logger.Warn("search_store_error",
			slog.String("query", req.Query),
			slog.String("error", err.Error()))
		s.countDegraded("store_error")
		resp = &Response{
			Items:      []document.Document{},
			Skip:       req.Skip,
			Limit:      req.Limit,
			StoreError: err.Error(),
		}
	}

	if resp.Degraded {
		s.countDegraded("query_syntax")
	}
	elapsed := time.Since(start)
	if s.metrics != nil {
		s.metrics.ObserveSearch(elapsed, label)
	}
	if s.insights != nil {
		s.insights.Record(telemetry.QueryEvent{
			Query:    req.Query,
			Kind:     telemetry.Classify(req.Query, resp.Degraded),
			Total:    resp.Total,
			Latency:  elapsed,
			CacheHit: hit,
		})
	}

	out := *resp
	return &out, nil
}

// execute runs the uncached search pipeline for a normalized request.
func (s *Service) execute(ctx context.Context, req Request) (*Response, error) {
	q, degraded := query.Parse(req.Query, s.fields)
	if degraded {
		s.logger.Warn("search_degraded",
			slog.String("query", req.Query),
			slog.String("reason", "query syntax"))
	}

	fetch := fetchCount(req.Skip, req.Limit, s.cfg.Slack)
	res, err := s.searcher.Search(ctx, q, fetch)
	if err != nil {
		return nil, err
	}

	docs := make([]document.Document, len(res.Hits))
	for i, h := range res.Hits {
		docs[i] = h.Doc
	}
	filtered := ApplyFilters(docs, req)

	total := len(filtered)
	from := min(req.Skip, total)
	to := min(req.Skip+req.Limit, total)

	page := make([]document.Document, to-from)
	copy(page, filtered[from:to])

	s.logger.Debug("search_executed",
		slog.String("query", q.String()),
		slog.Int("fetched", len(res.Hits)),
		slog.Int("total", total),
		slog.Int("skip", req.Skip),
		slog.Int("limit", req.Limit))

	return &Response{
		Items:     page,
		Total:     total,
		Skip:      req.Skip,
		Limit:     req.Limit,
		Degraded:  degraded,
		Truncated: len(res.Hits) >= fetch,
	}, nil
}

// fetchCount is skip+limit+slack, saturating instead of overflowing.
func fetchCount(skip, limit, slack int) int {
	n := int64(skip) + int64(limit) + int64(slack)
	if n > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(n)
}

// IndexItem adds or replaces doc. On success the cache version is bumped
// before returning; on failure the error is returned and nothing changes.
func (s *Service) IndexItem(ctx context.Context, doc document.Document) error {
	return s.afterWrite("index", s.writer.IndexDocument(ctx, doc))
}

// DeleteItem removes id from the index. Removing an absent id succeeds.
func (s *Service) DeleteItem(ctx context.Context, id int64) error {
	return s.afterWrite("delete", s.writer.DeleteDocument(ctx, id))
}

// DeleteItems removes every id in one commit.
func (s *Service) DeleteItems(ctx context.Context, ids []int64) error {
	return s.afterWrite("delete", s.writer.DeleteDocuments(ctx, ids))
}

// ReindexAll replaces the whole index with docs in one commit.
func (s *Service) ReindexAll(ctx context.Context, docs []document.Document) error {
	start := time.Now()
	if err := s.afterWrite("reindex", s.writer.ReindexAll(ctx, docs)); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.SetIndexedDocuments(len(docs))
	}
	s.logger.Info("reindex_complete",
		slog.Int("documents", len(docs)),
		slog.Duration("duration", time.Since(start)))
	return nil
}

func (s *Service) afterWrite(op string, err error) error {
	if s.metrics != nil {
		s.metrics.IndexCommit(op, err)
	}
	if err != nil {
		return err
	}

	tok := s.version.Bump()
	if s.metrics != nil {
		s.metrics.VersionBumped()
	}
	s.logger.Debug("version_bumped",
		slog.String("op", op),
		slog.Uint64("generation", tok.Generation))
	return nil
}

// Version returns the current cache version token.
func (s *Service) Version() cache.Token {
	return s.version.Current()
}

// Stats returns index and cache state.
func (s *Service) Stats() (Stats, error) {
	is, err := s.writer.Stats()
	if err != nil {
		return Stats{}, err
	}
	tok := s.version.Current()
	st := Stats{
		DocumentCount: is.DocumentCount,
		Location:      is.Location,
		Version:       tok.String(),
		Generation:    tok.Generation,
		CacheEnabled:  s.results != nil,
	}
	if s.results != nil {
		st.CacheEntries = s.results.Len()
	}
	return st, nil
}

// Insights returns the query telemetry snapshot, or nil when disabled.
func (s *Service) Insights() *telemetry.Snapshot {
	if s.insights == nil {
		return nil
	}
	return s.insights.Snapshot()
}

func (s *Service) countDegraded(reason string) {
	if s.metrics != nil {
		s.metrics.SearchDegraded(reason)
	}
}
