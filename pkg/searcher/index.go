package searcher

import (
	"context"
	"log/slog"

	"github.com/shopfront/catalogsearch/internal/errors"
	"github.com/shopfront/catalogsearch/internal/query"
)

// IndexSearcher searches the catalog index through fresh snapshots.
type IndexSearcher struct {
	store  Snapshotter
	logger *slog.Logger
}

// Option configures an IndexSearcher.
type Option func(*IndexSearcher)

// WithStore sets the snapshot source. Required.
func WithStore(s Snapshotter) Option {
	return func(is *IndexSearcher) {
		is.store = s
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(is *IndexSearcher) {
		is.logger = l
	}
}

// New creates an IndexSearcher.
//
// Returns ErrNilStore if WithStore was not provided.
func New(opts ...Option) (*IndexSearcher, error) {
	is := &IndexSearcher{}
	for _, opt := range opts {
		opt(is)
	}
	if is.store == nil {
		return nil, ErrNilStore
	}
	if is.logger == nil {
		is.logger = slog.Default()
	}
	return is, nil
}

// Search returns the top fetchCount hits for q from one snapshot.
//
// Snapshot failures are returned as ERR_207_STORE_UNAVAILABLE and query
// execution failures as ERR_503_SEARCH_FAILED.
func (is *IndexSearcher) Search(ctx context.Context, q query.Query, fetchCount int) (Result, error) {
	if fetchCount <= 0 {
		return Result{Hits: []Hit{}}, nil
	}
	if q == nil {
		q = query.MatchAll{}
	}

	compiled, err := Compile(q)
	if err != nil {
		return Result{}, errors.New(errors.ErrCodeSearchFailed, "cannot compile query", err)
	}

	snap, err := is.store.OpenSnapshot()
	if err != nil {
		return Result{}, err
	}
	defer func() { _ = snap.Close() }()

	indexed, err := snap.DocCount()
	if err != nil {
		return Result{}, errors.New(errors.ErrCodeSearchFailed, "cannot count documents", err)
	}
	if indexed == 0 {
		return Result{Hits: []Hit{}}, nil
	}

	found, err := snap.Search(ctx, compiled, fetchCount)
	if err != nil {
		is.logger.Warn("index_search_failed",
			slog.String("query", q.String()),
			slog.String("error", err.Error()))
		return Result{}, errors.New(errors.ErrCodeSearchFailed, "search failed", err)
	}

	hits := make([]Hit, len(found))
	for i, h := range found {
		hits[i] = Hit{ID: h.ID, Score: h.Score, Doc: h.Doc}
	}
	return Result{Hits: hits, Indexed: indexed}, nil
}

// Ensure IndexSearcher implements Searcher at compile time.
var _ Searcher = (*IndexSearcher)(nil)
