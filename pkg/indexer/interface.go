package indexer

import (
	"context"
	"errors"

	"github.com/shopfront/catalogsearch/internal/document"
	"github.com/shopfront/catalogsearch/internal/store"
)

// ErrNilStore is returned when a Writer is constructed without a store.
var ErrNilStore = errors.New("index store is required")

// Store is the subset of *store.Store the writer depends on.
type Store interface {
	Commit(ctx context.Context, ops []store.Op) error
	OpenSnapshot() (*store.Snapshot, error)
	Stats() (store.Stats, error)
}

// Indexer defines the index mutation contract.
//
// Every method that returns nil has made its effect visible to snapshots
// opened afterwards. Failures are ERR_505_INDEX_FAILED and leave the
// previously committed state intact.
type Indexer interface {
	// IndexDocument stores doc, replacing any document with the same id.
	IndexDocument(ctx context.Context, doc document.Document) error

	// DeleteDocument removes id. Deleting an absent id succeeds.
	DeleteDocument(ctx context.Context, id int64) error

	// DeleteDocuments removes every id in ids in one commit.
	DeleteDocuments(ctx context.Context, ids []int64) error

	// ReindexAll makes docs the complete index content in one commit.
	ReindexAll(ctx context.Context, docs []document.Document) error

	// Stats returns current index statistics.
	Stats() (IndexStats, error)

	// Close stops accepting mutations. Safe to call multiple times.
	Close() error
}

// IndexStats holds statistics about an index.
type IndexStats struct {
	// DocumentCount is the number of live documents.
	DocumentCount uint64

	// Location is the store directory, empty for in-memory stores.
	Location string
}

// Ensure *store.Store satisfies Store at compile time.
var _ Store = (*store.Store)(nil)
