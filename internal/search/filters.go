package search

import (
	"strings"

	"github.com/shopfront/catalogsearch/internal/document"
)

// FilterFunc reports whether a document passes a filter.
type FilterFunc func(doc document.Document) bool

// ApplyFilters keeps documents that pass every filter the request sets,
// preserving rank order. Category is applied before country.
func ApplyFilters(docs []document.Document, req Request) []document.Document {
	filters := buildFilters(req)
	if len(filters) == 0 {
		return docs
	}

	filtered := make([]document.Document, 0, len(docs))
	for _, d := range docs {
		if matchesAllFilters(d, filters) {
			filtered = append(filtered, d)
		}
	}
	return filtered
}

func buildFilters(req Request) []FilterFunc {
	var filters []FilterFunc
	if strings.TrimSpace(req.Category) != "" {
		filters = append(filters, containsFold(req.Category, func(d document.Document) string { return d.CategoryName }))
	}
	if strings.TrimSpace(req.Country) != "" {
		filters = append(filters, containsFold(req.Country, func(d document.Document) string { return d.CountryName }))
	}
	return filters
}

func matchesAllFilters(doc document.Document, filters []FilterFunc) bool {
	for _, f := range filters {
		if !f(doc) {
			return false
		}
	}
	return true
}

// containsFold matches when field(doc) contains needle, ignoring case.
func containsFold(needle string, field func(document.Document) string) FilterFunc {
	needle = strings.ToLower(needle)
	return func(doc document.Document) bool {
		return strings.Contains(strings.ToLower(field(doc)), needle)
	}
}
