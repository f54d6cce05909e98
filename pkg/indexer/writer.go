package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopfront/catalogsearch/internal/document"
	"github.com/shopfront/catalogsearch/internal/errors"
	"github.com/shopfront/catalogsearch/internal/store"
)

// errWriterClosed is the cause reported for mutations after Close.
var errWriterClosed = fmt.Errorf("index writer is closed")

// Writer applies document mutations to a store, one commit per operation.
//
// Writer is safe for concurrent use; mutations are serialized.
// It does not own the store and never closes it.
type Writer struct {
	store  Store
	logger *slog.Logger
	mu     sync.Mutex
	closed bool
}

// Option configures a Writer.
type Option func(*Writer)

// WithStore sets the index store. Required.
func WithStore(s Store) Option {
	return func(w *Writer) {
		w.store = s
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(w *Writer) {
		w.logger = l
	}
}

// NewWriter creates a Writer.
//
// Returns ErrNilStore if WithStore was not provided.
func NewWriter(opts ...Option) (*Writer, error) {
	w := &Writer{}
	for _, opt := range opts {
		opt(w)
	}
	if w.store == nil {
		return nil, ErrNilStore
	}
	if w.logger == nil {
		w.logger = slog.Default()
	}
	return w, nil
}

// IndexDocument deletes any document with doc.ID and adds doc in the same commit.
func (w *Writer) IndexDocument(ctx context.Context, doc document.Document) error {
	return w.commit(ctx, "index", []store.Op{store.Delete(doc.ID), store.Add(doc)})
}

// DeleteDocument removes id. An absent id is a successful no-op.
func (w *Writer) DeleteDocument(ctx context.Context, id int64) error {
	return w.commit(ctx, "delete", []store.Op{store.Delete(id)})
}

// DeleteDocuments removes ids in one commit. An empty slice is a no-op.
func (w *Writer) DeleteDocuments(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	ops := make([]store.Op, len(ids))
	for i, id := range ids {
		ops[i] = store.Delete(id)
	}
	return w.commit(ctx, "delete", ops)
}

// ReindexAll replaces the entire index content with docs in one commit.
// Live ids absent from docs are deleted; when docs repeats an id the last
// occurrence wins. Readers see either the old content or the new, never a mix.
func (w *Writer) ReindexAll(ctx context.Context, docs []document.Document) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return errors.IndexWriteFailedError("reindex", errWriterClosed)
	}

	live, err := w.liveIDs()
	if err != nil {
		return errors.IndexWriteFailedError("reindex", err)
	}

	incoming := make(map[int64]struct{}, len(docs))
	for _, d := range docs {
		incoming[d.ID] = struct{}{}
	}

	ops := make([]store.Op, 0, len(live)+len(docs))
	for _, id := range live {
		if _, ok := incoming[id]; !ok {
			ops = append(ops, store.Delete(id))
		}
	}
	for _, d := range docs {
		ops = append(ops, store.Delete(d.ID), store.Add(d))
	}

	return w.apply(ctx, "reindex", ops)
}

func (w *Writer) liveIDs() ([]int64, error) {
	snap, err := w.store.OpenSnapshot()
	if err != nil {
		return nil, err
	}
	defer func() { _ = snap.Close() }()
	return snap.AllIDs()
}

func (w *Writer) commit(ctx context.Context, op string, ops []store.Op) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return errors.IndexWriteFailedError(op, errWriterClosed)
	}
	return w.apply(ctx, op, ops)
}

// apply must be called with w.mu held.
func (w *Writer) apply(ctx context.Context, op string, ops []store.Op) error {
	start := time.Now()
	if err := w.store.Commit(ctx, ops); err != nil {
		w.logger.Error("index_write_failed",
			slog.String("op", op),
			slog.Int("ops", len(ops)),
			slog.String("error", err.Error()))
		if errors.GetCode(err) == errors.ErrCodeIndexFailed {
			return err
		}
		return errors.IndexWriteFailedError(op, err)
	}

	w.logger.Debug("index_commit",
		slog.String("op", op),
		slog.Int("ops", len(ops)),
		slog.Duration("duration", time.Since(start)))
	return nil
}

// Stats returns current index statistics.
func (w *Writer) Stats() (IndexStats, error) {
	st, err := w.store.Stats()
	if err != nil {
		return IndexStats{}, err
	}
	return IndexStats{DocumentCount: st.DocCount, Location: st.Location}, nil
}

// Close stops accepting mutations. The store stays open.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

// Ensure Writer implements Indexer at compile time.
var _ Indexer = (*Writer)(nil)
