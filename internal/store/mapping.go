package store

import (
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/shopfront/catalogsearch/internal/document"
)

// newIndexMapping builds the static item mapping.
// Identifiers are exact-match keywords, price is stored only,
// and the four free-text fields use the standard analyzer.
func newIndexMapping() *mapping.IndexMappingImpl {
	exact := func(indexed bool) *mapping.FieldMapping {
		fm := bleve.NewKeywordFieldMapping()
		fm.Analyzer = keyword.Name
		fm.Store = true
		fm.Index = indexed
		fm.IncludeInAll = false
		fm.DocValues = false
		return fm
	}
	text := func() *mapping.FieldMapping {
		fm := bleve.NewTextFieldMapping()
		fm.Analyzer = standard.Name
		fm.Store = true
		fm.IncludeTermVectors = true
		fm.IncludeInAll = false
		return fm
	}

	item := bleve.NewDocumentStaticMapping()
	item.AddFieldMappingsAt(document.FieldID, exact(true))
	item.AddFieldMappingsAt(document.FieldCategoryID, exact(true))
	item.AddFieldMappingsAt(document.FieldCountryID, exact(true))
	item.AddFieldMappingsAt(document.FieldPrice, exact(false))
	for _, field := range document.SearchableFields {
		item.AddFieldMappingsAt(field, text())
	}

	im := bleve.NewIndexMapping()
	im.DefaultMapping = item
	im.DefaultAnalyzer = standard.Name
	im.IndexDynamic = false
	im.StoreDynamic = false
	im.DocValuesDynamic = false
	return im
}

// indexable converts a document into the value handed to bleve.
func indexable(doc document.Document) map[string]interface{} {
	fields := doc.Fields()
	out := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}
