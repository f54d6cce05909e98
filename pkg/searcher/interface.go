package searcher

import (
	"context"
	"errors"

	"github.com/shopfront/catalogsearch/internal/document"
	"github.com/shopfront/catalogsearch/internal/query"
	"github.com/shopfront/catalogsearch/internal/store"
)

// ErrNilStore is returned when an IndexSearcher is constructed without a store.
var ErrNilStore = errors.New("index store is required")

// Snapshotter opens point-in-time views of the index.
type Snapshotter interface {
	OpenSnapshot() (*store.Snapshot, error)
}

// Searcher performs ranked retrieval over the index.
//
// Implementations must be thread-safe for concurrent use.
type Searcher interface {
	// Search returns up to fetchCount hits for q.
	//
	// An index with no committed documents yields an empty Result and no error.
	// fetchCount <= 0 yields an empty Result.
	Search(ctx context.Context, q query.Query, fetchCount int) (Result, error)
}

// Result is one ranked retrieval.
type Result struct {
	// Hits in rank order.
	Hits []Hit

	// Indexed is the number of live documents in the snapshot searched.
	Indexed uint64
}

// Hit is one matched document.
type Hit struct {
	ID    int64
	Score float64
	Doc   document.Document
}

// Ensure *store.Store satisfies Snapshotter at compile time.
var _ Snapshotter = (*store.Store)(nil)
