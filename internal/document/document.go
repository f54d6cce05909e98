// Package document defines the searchable projection of a catalog item.
package document

import (
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/shopfront/catalogsearch/internal/errors"
)

// Field names as they appear in the index.
const (
	FieldID           = "id"
	FieldName         = "name"
	FieldDescription  = "description"
	FieldCategoryID   = "categoryId"
	FieldCategoryName = "categoryName"
	FieldCountryID    = "countryId"
	FieldCountryName  = "countryName"
	FieldPrice        = "price"
)

// SearchableFields is the fixed, ordered field list free-text queries run against.
var SearchableFields = []string{FieldName, FieldDescription, FieldCategoryName, FieldCountryName}

// Item is a primary-store catalog record.
type Item struct {
	ID          int64
	Name        string
	Description string
	Price       string // decimal literal, e.g. "12.50"
	CategoryID  int64
	CountryID   int64
	ImagePath   string
}

// Document is the denormalized, indexable form of an Item.
type Document struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	CategoryID   int64  `json:"categoryId"`
	CategoryName string `json:"categoryName"`
	CountryID    int64  `json:"countryId"`
	CountryName  string `json:"countryName"`
	Price        string `json:"price"`
}

// FromItem builds a Document from an item and its category and country names.
// It fails only when the price is not a decimal number.
func FromItem(item Item, categoryName, countryName string) (Document, error) {
	price, err := FormatPrice(item.Price)
	if err != nil {
		return Document{}, errors.ValidationError(fmt.Sprintf("item %d: invalid price %q", item.ID, item.Price), err).
			WithDetail("item_id", strconv.FormatInt(item.ID, 10))
	}

	return Document{
		ID:           item.ID,
		Name:         item.Name,
		Description:  item.Description,
		CategoryID:   item.CategoryID,
		CategoryName: categoryName,
		CountryID:    item.CountryID,
		CountryName:  countryName,
		Price:        price,
	}, nil
}

// FormatPrice normalizes a decimal literal to its invariant string form.
// Empty input is treated as zero.
func FormatPrice(raw string) (string, error) {
	if raw == "" {
		return decimal.Zero.String(), nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return "", err
	}
	return d.String(), nil
}

// Key returns the store key for the document's id.
func (d Document) Key() string {
	return Key(d.ID)
}

// Key encodes id so that lexical key order equals numeric id order.
// The sign bit is flipped and the result zero-padded to 20 digits.
func Key(id int64) string {
	return fmt.Sprintf("%020d", uint64(id)^(1<<63))
}

// ParseKey is the inverse of Key.
func ParseKey(key string) (int64, error) {
	u, err := strconv.ParseUint(key, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid document key %q: %w", key, err)
	}
	return int64(u ^ (1 << 63)), nil
}

// Fields returns the stored representation, keyed by index field name.
func (d Document) Fields() map[string]string {
	return map[string]string{
		FieldID:           strconv.FormatInt(d.ID, 10),
		FieldName:         d.Name,
		FieldDescription:  d.Description,
		FieldCategoryID:   strconv.FormatInt(d.CategoryID, 10),
		FieldCategoryName: d.CategoryName,
		FieldCountryID:    strconv.FormatInt(d.CountryID, 10),
		FieldCountryName:  d.CountryName,
		FieldPrice:        d.Price,
	}
}

// FromFields rebuilds a Document from stored field values.
func FromFields(fields map[string]string) (Document, error) {
	id, err := strconv.ParseInt(fields[FieldID], 10, 64)
	if err != nil {
		return Document{}, fmt.Errorf("stored field %s: %w", FieldID, err)
	}
	categoryID, err := parseOptionalInt(fields[FieldCategoryID])
	if err != nil {
		return Document{}, fmt.Errorf("stored field %s: %w", FieldCategoryID, err)
	}
	countryID, err := parseOptionalInt(fields[FieldCountryID])
	if err != nil {
		return Document{}, fmt.Errorf("stored field %s: %w", FieldCountryID, err)
	}

	return Document{
		ID:           id,
		Name:         fields[FieldName],
		Description:  fields[FieldDescription],
		CategoryID:   categoryID,
		CategoryName: fields[FieldCategoryName],
		CountryID:    countryID,
		CountryName:  fields[FieldCountryName],
		Price:        fields[FieldPrice],
	}, nil
}

func parseOptionalInt(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseInt(s, 10, 64)
}
