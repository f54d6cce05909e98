// Package catalog reads catalog items from the primary SQLite store.
//
// The search index is a derived view of this data. The catalog is only read
// here, except for schema setup and seeding used in development and tests.
package catalog

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	// Pure Go SQLite driver, registered as "sqlite".
	_ "modernc.org/sqlite"

	"github.com/shopfront/catalogsearch/internal/document"
	"github.com/shopfront/catalogsearch/internal/errors"
)

// ErrClosed is returned by operations on a closed catalog.
var ErrClosed = stderrors.New("catalog is closed")

// Category is a catalog category row.
type Category struct {
	ID          int64
	Name        string
	Description string
}

// Country is an origin country row.
type Country struct {
	ID   int64
	Name string
}

// Record is an item joined with its category and country names.
type Record struct {
	Item         document.Item
	CategoryName string
	CountryName  string
}

// Document converts the record to its indexable form.
func (r Record) Document() (document.Document, error) {
	return document.FromItem(r.Item, r.CategoryName, r.CountryName)
}

// Catalog is a read-mostly handle on the primary store.
type Catalog struct {
	db     *sql.DB
	path   string
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool
}

const selectRecord = `
	SELECT i.id, i.name, COALESCE(i.description, ''), i.price,
	       i.category_id, i.country_id, COALESCE(i.image_path, ''),
	       COALESCE(c.name, ''), COALESCE(o.name, '')
	FROM items i
	LEFT JOIN categories c ON c.id = i.category_id
	LEFT JOIN origin_countries o ON o.id = i.country_id`

// Open opens the catalog database at path. A nil logger uses slog.Default().
func Open(path string, logger *slog.Logger) (*Catalog, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if path == "" {
		return nil, errors.New(errors.ErrCodeCatalogUnavailable, "catalog path is empty", nil)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, catalogUnavailable(path, err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, catalogUnavailable(path, err)
	}

	// Single connection: SQLite serializes writers anyway.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// modernc.org/sqlite may ignore DSN params, so set pragmas explicitly.
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, catalogUnavailable(path, fmt.Errorf("set pragma: %w", err))
		}
	}

	return &Catalog{db: db, path: path, logger: logger}, nil
}

func catalogUnavailable(path string, cause error) *errors.Error {
	return errors.New(errors.ErrCodeCatalogUnavailable, "catalog unavailable at "+path, cause).
		WithDetail("path", path)
}

// EnsureSchema creates the catalog tables if they do not exist.
func (c *Catalog) EnsureSchema(ctx context.Context) error {
	if err := c.check(); err != nil {
		return err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	schema := `
	CREATE TABLE IF NOT EXISTS categories (
		id          INTEGER PRIMARY KEY,
		name        TEXT NOT NULL,
		description TEXT
	);

	CREATE TABLE IF NOT EXISTS origin_countries (
		id   INTEGER PRIMARY KEY,
		name TEXT NOT NULL
	);

	-- price is kept as a decimal literal to avoid float rounding
	CREATE TABLE IF NOT EXISTS items (
		id          INTEGER PRIMARY KEY,
		name        TEXT NOT NULL,
		description TEXT,
		price       TEXT NOT NULL DEFAULT '0',
		category_id INTEGER NOT NULL REFERENCES categories(id),
		country_id  INTEGER NOT NULL REFERENCES origin_countries(id),
		image_path  TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_items_category ON items(category_id);
	`
	if _, err := c.db.ExecContext(ctx, schema); err != nil {
		return catalogUnavailable(c.path, fmt.Errorf("create schema: %w", err))
	}
	return nil
}

// Item returns the record for id. It returns an error matching
// errors.NotFound when the item does not exist.
func (c *Catalog) Item(ctx context.Context, id int64) (Record, error) {
	if err := c.check(); err != nil {
		return Record{}, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	row := c.db.QueryRowContext(ctx, selectRecord+` WHERE i.id = ?`, id)
	rec, err := scanRecord(row)
	if stderrors.Is(err, sql.ErrNoRows) {
		return Record{}, errors.New(errors.ErrCodeNotFound, fmt.Sprintf("item %d not found", id), nil).
			WithDetail("item_id", strconv.FormatInt(id, 10))
	}
	if err != nil {
		return Record{}, catalogUnavailable(c.path, err)
	}
	return rec, nil
}

// AllItems returns every item ordered by id.
func (c *Catalog) AllItems(ctx context.Context) ([]Record, error) {
	return c.query(ctx, selectRecord+` ORDER BY i.id`)
}

// ItemsInCategory returns the items of one category ordered by id.
func (c *Catalog) ItemsInCategory(ctx context.Context, categoryID int64) ([]Record, error) {
	return c.query(ctx, selectRecord+` WHERE i.category_id = ? ORDER BY i.id`, categoryID)
}

// Documents converts every catalog item to a document. Items with an
// unparseable price are skipped and logged.
func (c *Catalog) Documents(ctx context.Context) ([]document.Document, error) {
	recs, err := c.AllItems(ctx)
	if err != nil {
		return nil, err
	}
	docs := make([]document.Document, 0, len(recs))
	for _, rec := range recs {
		doc, err := rec.Document()
		if err != nil {
			c.logger.Warn("catalog_item_skipped",
				slog.Int64("item_id", rec.Item.ID),
				slog.String("error", err.Error()))
			continue
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (c *Catalog) query(ctx context.Context, q string, args ...any) ([]Record, error) {
	if err := c.check(); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	rows, err := c.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, catalogUnavailable(c.path, err)
	}
	defer func() { _ = rows.Close() }()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, catalogUnavailable(c.path, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, catalogUnavailable(c.path, err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (Record, error) {
	var rec Record
	err := s.Scan(
		&rec.Item.ID, &rec.Item.Name, &rec.Item.Description, &rec.Item.Price,
		&rec.Item.CategoryID, &rec.Item.CountryID, &rec.Item.ImagePath,
		&rec.CategoryName, &rec.CountryName,
	)
	return rec, err
}

// Path returns the database path.
func (c *Catalog) Path() string {
	return c.path
}

// Close closes the database. Safe to call more than once.
func (c *Catalog) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.db.Close()
}

func (c *Catalog) check() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClosed
	}
	return nil
}
