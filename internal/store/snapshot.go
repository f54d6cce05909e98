package store

import (
	"context"
	"fmt"
	"sort"

	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search"
	"github.com/blevesearch/bleve/v2/search/collector"
	"github.com/blevesearch/bleve/v2/search/query"
	index "github.com/blevesearch/bleve_index_api"

	"github.com/shopfront/catalogsearch/internal/document"
)

// Hit is a ranked match loaded from a snapshot.
type Hit struct {
	ID    int64
	Score float64
	Doc   document.Document
}

// Snapshot is a point-in-time view of the store. Commits made after it was
// opened are never visible through it. Safe for concurrent use.
type Snapshot struct {
	reader  index.IndexReader
	mapping mapping.IndexMapping
}

// rankOrder sorts by descending score, then ascending key. Keys encode ids
// order-preservingly, so ties resolve by ascending id.
func rankOrder() search.SortOrder {
	return search.SortOrder{
		&search.SortScore{Desc: true},
		&search.SortDocID{Desc: false},
	}
}

// Search runs q against the snapshot and returns at most size hits with
// their stored documents.
func (s *Snapshot) Search(ctx context.Context, q query.Query, size int) ([]Hit, error) {
	if size <= 0 {
		return nil, nil
	}

	searcher, err := q.Searcher(ctx, s.reader, s.mapping, search.SearcherOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to build searcher: %w", err)
	}
	defer func() { _ = searcher.Close() }()

	coll := collector.NewTopNCollector(size, 0, rankOrder())
	if err := coll.Collect(ctx, searcher, s.reader); err != nil {
		return nil, fmt.Errorf("failed to collect hits: %w", err)
	}

	matches := coll.Results()
	hits := make([]Hit, 0, len(matches))
	for _, m := range matches {
		doc, ok, err := s.load(m.ID)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		hits = append(hits, Hit{ID: doc.ID, Score: m.Score, Doc: doc})
	}
	return hits, nil
}

// Document returns the stored document for id.
func (s *Snapshot) Document(id int64) (document.Document, bool, error) {
	return s.load(document.Key(id))
}

func (s *Snapshot) load(key string) (document.Document, bool, error) {
	stored, err := s.reader.Document(key)
	if err != nil {
		return document.Document{}, false, fmt.Errorf("failed to load document %s: %w", key, err)
	}
	if stored == nil {
		return document.Document{}, false, nil
	}

	fields := make(map[string]string)
	stored.VisitFields(func(f index.Field) {
		fields[f.Name()] = string(f.Value())
	})
	doc, err := document.FromFields(fields)
	if err != nil {
		return document.Document{}, false, err
	}
	return doc, true, nil
}

// AllIDs returns every live id in ascending order.
func (s *Snapshot) AllIDs() ([]int64, error) {
	r, err := s.reader.DocIDReaderAll()
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer func() { _ = r.Close() }()

	var ids []int64
	for {
		internal, err := r.Next()
		if err != nil {
			return nil, fmt.Errorf("failed to list documents: %w", err)
		}
		if internal == nil {
			break
		}
		key, err := s.reader.ExternalID(internal)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve document id: %w", err)
		}
		id, err := document.ParseKey(key)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// DocCount returns the number of live documents in the snapshot.
func (s *Snapshot) DocCount() (uint64, error) {
	return s.reader.DocCount()
}

// Close releases the snapshot.
func (s *Snapshot) Close() error {
	return s.reader.Close()
}
