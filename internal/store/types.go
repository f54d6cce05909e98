// Package store provides the durable inverted index that mirrors catalog items.
// The Store owns all documents; it is mutated only through Commit and read
// through immutable snapshots.
package store

import (
	"log/slog"

	"github.com/shopfront/catalogsearch/internal/document"
)

// OpKind identifies a mutation inside one commit.
type OpKind int

const (
	// OpDelete removes the document with Op.ID if present.
	OpDelete OpKind = iota
	// OpAdd stores Op.Doc, superseding any earlier document with the same id.
	OpAdd
)

func (k OpKind) String() string {
	switch k {
	case OpDelete:
		return "delete"
	case OpAdd:
		return "add"
	default:
		return "unknown"
	}
}

// Op is a single mutation. Within one commit the last Op for an id wins.
type Op struct {
	Kind OpKind
	ID   int64
	Doc  document.Document
}

// Delete returns an Op removing id.
func Delete(id int64) Op {
	return Op{Kind: OpDelete, ID: id}
}

// Add returns an Op storing doc.
func Add(doc document.Document) Op {
	return Op{Kind: OpAdd, ID: doc.ID, Doc: doc}
}

// Options configures Open.
type Options struct {
	// RecoverCorrupt clears and recreates an index directory that fails the
	// integrity check instead of reporting it as unavailable.
	RecoverCorrupt bool

	// Logger receives store events. Defaults to slog.Default().
	Logger *slog.Logger
}

// Stats describes an open store.
type Stats struct {
	DocCount uint64 `json:"doc_count"`
	Location string `json:"location"`
	InMemory bool   `json:"in_memory"`
}
