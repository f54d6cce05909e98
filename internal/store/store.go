package store

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"

	"github.com/shopfront/catalogsearch/internal/document"
	"github.com/shopfront/catalogsearch/internal/errors"
)

// indexDirName is the bleve directory inside a store location.
const indexDirName = "index"

// ErrClosed is returned by operations on a closed Store.
var ErrClosed = stderrors.New("store is closed")

// Store is a bleve-backed index of catalog documents.
// An empty location yields an in-memory store that needs no lock.
type Store struct {
	mu       sync.RWMutex
	index    bleve.Index
	lock     *writeLock
	location string
	logger   *slog.Logger
	closed   bool
}

// Open opens the store at location, creating it on first use.
// It never blocks: a location held by another writer, an unreadable
// directory, or a corrupt index all yield ERR_207_STORE_UNAVAILABLE.
func Open(location string, opts Options) (*Store, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if location == "" {
		idx, err := bleve.NewMemOnly(newIndexMapping())
		if err != nil {
			return nil, errors.StoreUnavailableError("memory", err)
		}
		return &Store{index: idx, logger: logger}, nil
	}

	if err := os.MkdirAll(location, 0o755); err != nil {
		return nil, errors.StoreUnavailableError(location, err)
	}

	lock := newWriteLock(location)
	acquired, err := lock.tryLock()
	if err != nil {
		return nil, errors.StoreUnavailableError(location, err)
	}
	if !acquired {
		return nil, errors.StoreUnavailableError(location, fmt.Errorf("index locked by another writer: %s", lock.path)).
			WithSuggestion("Stop the other catalogsearch process using this index path")
	}

	idx, err := openIndex(filepath.Join(location, indexDirName), opts.RecoverCorrupt, logger)
	if err != nil {
		_ = lock.unlock()
		return nil, errors.StoreUnavailableError(location, err)
	}

	logger.Debug("index_store_opened", slog.String("location", location))
	return &Store{index: idx, lock: lock, location: location, logger: logger}, nil
}

// openIndex opens or creates the bleve index at path.
// A corrupt index is cleared only when recoverCorrupt is set.
func openIndex(path string, recoverCorrupt bool, logger *slog.Logger) (bleve.Index, error) {
	if err := validateIndexIntegrity(path); err != nil {
		logger.Warn("index_store_corrupted",
			slog.String("path", path),
			slog.String("error", err.Error()))
		if !recoverCorrupt {
			return nil, err
		}
		if err := clearIndex(path, logger); err != nil {
			return nil, err
		}
	}

	idx, err := bleve.Open(path)
	switch {
	case err == nil:
		return idx, nil
	case stderrors.Is(err, bleve.ErrorIndexPathDoesNotExist):
		return bleve.New(path, newIndexMapping())
	case recoverCorrupt && isCorruptionError(err):
		logger.Warn("index_store_open_failed",
			slog.String("path", path),
			slog.String("error", err.Error()))
		if err := clearIndex(path, logger); err != nil {
			return nil, err
		}
		return bleve.New(path, newIndexMapping())
	default:
		return nil, fmt.Errorf("failed to open index: %w", err)
	}
}

func clearIndex(path string, logger *slog.Logger) error {
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("index corrupted at %s and cannot remove: %w", path, err)
	}
	logger.Warn("index_store_cleared",
		slog.String("path", path),
		slog.String("reason", "corruption detected, reindex required"))
	return nil
}

// validateIndexIntegrity returns nil for a missing or well-formed index directory.
func validateIndexIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	metaPath := filepath.Join(path, "index_meta.json")
	info, err := os.Stat(metaPath)
	if os.IsNotExist(err) {
		return fmt.Errorf("index_meta.json missing (corrupted index)")
	}
	if err != nil {
		return fmt.Errorf("cannot stat index_meta.json: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("index_meta.json is empty (corrupted)")
	}

	data, err := os.ReadFile(metaPath)
	if err != nil {
		return fmt.Errorf("cannot read index_meta.json: %w", err)
	}
	var meta map[string]interface{}
	if err := json.Unmarshal(data, &meta); err != nil {
		return fmt.Errorf("index_meta.json is corrupt: %w", err)
	}
	return nil
}

func isCorruptionError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "unexpected end of JSON") ||
		strings.Contains(msg, "error parsing mapping JSON") ||
		strings.Contains(msg, "failed to load segment") ||
		strings.Contains(msg, "error opening bolt") ||
		stderrors.Is(err, bleve.ErrorIndexMetaCorrupt)
}

// Commit applies ops as one atomic batch. Readers observe all of them or none.
// An empty ops slice is a no-op.
func (s *Store) Commit(ctx context.Context, ops []Op) error {
	if len(ops) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return errors.IndexWriteFailedError("commit", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return errors.IndexWriteFailedError("commit", ErrClosed)
	}

	batch := s.index.NewBatch()
	for _, op := range ops {
		switch op.Kind {
		case OpDelete:
			batch.Delete(document.Key(op.ID))
		case OpAdd:
			if err := batch.Index(op.Doc.Key(), indexable(op.Doc)); err != nil {
				return errors.IndexWriteFailedError("commit", fmt.Errorf("document %d: %w", op.ID, err))
			}
		default:
			return errors.IndexWriteFailedError("commit", fmt.Errorf("unknown op kind %d", op.Kind))
		}
	}

	if err := s.index.Batch(batch); err != nil {
		s.logger.Error("index_commit_failed",
			slog.Int("ops", len(ops)),
			slog.String("error", err.Error()))
		return errors.IndexWriteFailedError("commit", err)
	}
	return nil
}

// OpenSnapshot returns a reader fixed at the last completed commit.
// The caller must Close it.
func (s *Store) OpenSnapshot() (*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, errors.StoreUnavailableError(s.displayLocation(), ErrClosed)
	}

	adv, err := s.index.Advanced()
	if err != nil {
		return nil, errors.StoreUnavailableError(s.displayLocation(), err)
	}
	reader, err := adv.Reader()
	if err != nil {
		return nil, errors.StoreUnavailableError(s.displayLocation(), err)
	}
	return &Snapshot{reader: reader, mapping: s.index.Mapping()}, nil
}

// Stats returns the live document count and location.
func (s *Store) Stats() (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return Stats{}, errors.StoreUnavailableError(s.displayLocation(), ErrClosed)
	}

	count, err := s.index.DocCount()
	if err != nil {
		return Stats{}, errors.StoreUnavailableError(s.displayLocation(), err)
	}
	return Stats{DocCount: count, Location: s.location, InMemory: s.location == ""}, nil
}

// Location returns the directory passed to Open, empty for in-memory stores.
func (s *Store) Location() string {
	return s.location
}

// Close releases the index and the write lock. Safe to call more than once.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	err := s.index.Close()
	if s.lock != nil {
		if unlockErr := s.lock.unlock(); unlockErr != nil && err == nil {
			err = unlockErr
		}
	}
	return err
}

func (s *Store) displayLocation() string {
	if s.location == "" {
		return "memory"
	}
	return s.location
}
