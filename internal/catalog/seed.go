package catalog

import (
	"context"
	"fmt"
)

// Fixture is a set of rows to load with Seed.
type Fixture struct {
	Categories []Category
	Countries  []Country
	Items      []Seeded
}

// Seeded is an item row to insert.
type Seeded struct {
	ID          int64
	Name        string
	Description string
	Price       string
	CategoryID  int64
	CountryID   int64
	ImagePath   string
}

// Seed upserts the fixture rows in one transaction. It is meant for
// development databases and tests.
func (c *Catalog) Seed(ctx context.Context, f Fixture) error {
	if err := c.check(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return catalogUnavailable(c.path, fmt.Errorf("begin: %w", err))
	}
	defer func() { _ = tx.Rollback() }()

	for _, cat := range f.Categories {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO categories (id, name, description) VALUES (?, ?, ?)`,
			cat.ID, cat.Name, nullable(cat.Description)); err != nil {
			return catalogUnavailable(c.path, fmt.Errorf("seed category %d: %w", cat.ID, err))
		}
	}
	for _, country := range f.Countries {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO origin_countries (id, name) VALUES (?, ?)`,
			country.ID, country.Name); err != nil {
			return catalogUnavailable(c.path, fmt.Errorf("seed country %d: %w", country.ID, err))
		}
	}
	for _, it := range f.Items {
		price := it.Price
		if price == "" {
			price = "0"
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO items (id, name, description, price, category_id, country_id, image_path)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			it.ID, it.Name, nullable(it.Description), price, it.CategoryID, it.CountryID, nullable(it.ImagePath)); err != nil {
			return catalogUnavailable(c.path, fmt.Errorf("seed item %d: %w", it.ID, err))
		}
	}

	if err := tx.Commit(); err != nil {
		return catalogUnavailable(c.path, fmt.Errorf("commit: %w", err))
	}
	return nil
}

// DeleteItem removes one item row. Used by tests simulating a catalog
// delete followed by an index sync.
func (c *Catalog) DeleteItem(ctx context.Context, id int64) error {
	if err := c.check(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.db.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, id); err != nil {
		return catalogUnavailable(c.path, err)
	}
	return nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// DemoFixture is a small storefront used by the --seed development flag.
func DemoFixture() Fixture {
	return Fixture{
		Categories: []Category{
			{ID: 1, Name: "Electronics", Description: "Devices and gadgets"},
			{ID: 2, Name: "Tea", Description: "Loose leaf and bagged"},
			{ID: 3, Name: "Home", Description: "Furniture and decor"},
		},
		Countries: []Country{
			{ID: 1, Name: "China"},
			{ID: 2, Name: "India"},
			{ID: 3, Name: "Italy"},
			{ID: 4, Name: "Ukraine"},
		},
		Items: []Seeded{
			{ID: 1, Name: "Laptop", Description: "14 inch ultrabook", Price: "899.99", CategoryID: 1, CountryID: 1},
			{ID: 2, Name: "Phone", Description: "Android smartphone", Price: "349.50", CategoryID: 1, CountryID: 1},
			{ID: 3, Name: "Darjeeling", Description: "First flush black tea", Price: "12.5", CategoryID: 2, CountryID: 2},
			{ID: 4, Name: "Assam", Description: "Strong breakfast tea", Price: "9.90", CategoryID: 2, CountryID: 2},
			{ID: 5, Name: "Desk Lamp", Description: "Brass reading lamp", Price: "45", CategoryID: 3, CountryID: 3},
			{ID: 6, Name: "Linen Towel", Description: "Handwoven kitchen towel", Price: "7.25", CategoryID: 3, CountryID: 4},
		},
	}
}
