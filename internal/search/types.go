// Package search is the storefront search service. It answers paged,
// filtered catalog searches from the index through a version-scoped cache,
// and applies item mutations to the index, invalidating the cache after
// each successful write.
package search

import (
	"fmt"
	"strings"

	"github.com/shopfront/catalogsearch/internal/document"
)

// Paging and over-fetch defaults.
const (
	DefaultLimit = 10
	MaxLimit     = 50
	DefaultSlack = 100
)

// Config controls paging and over-fetch.
type Config struct {
	// Slack is the number of extra candidates fetched beyond skip+limit so
	// post-retrieval filters still have enough hits to fill a page.
	Slack int

	// DefaultLimit replaces a limit of zero or less.
	DefaultLimit int

	// MaxLimit caps the page size.
	MaxLimit int
}

// DefaultConfig returns the standard paging settings.
func DefaultConfig() Config {
	return Config{
		Slack:        DefaultSlack,
		DefaultLimit: DefaultLimit,
		MaxLimit:     MaxLimit,
	}
}

// Request is one search.
type Request struct {
	// Query is free text in the storefront query syntax. Blank matches all.
	Query string

	// Skip is the number of filtered hits to pass over. Negative becomes 0.
	Skip int

	// Limit is the page size, normalized into [1, MaxLimit].
	Limit int

	// Category keeps hits whose category name contains it, ignoring case.
	Category string

	// Country keeps hits whose country name contains it, ignoring case.
	Country string
}

// cacheKey renders the normalized request as cache parameters.
func (r Request) cacheKey() string {
	return fmt.Sprintf("q=%q&skip=%d&limit=%d&category=%q&country=%q",
		strings.TrimSpace(r.Query), r.Skip, r.Limit,
		strings.ToLower(r.Category), strings.ToLower(r.Country))
}

// Response is one page of results.
//
// Responses may be shared between callers through the cache; treat Items
// as read-only.
type Response struct {
	Items []document.Document `json:"data"`

	// Total is the number of filtered candidates. When Truncated is set more
	// matches exist beyond the over-fetch window and Total is a lower bound.
	Total int `json:"total"`

	Skip  int `json:"skip"`
	Limit int `json:"limit"`

	// Degraded reports that the query text could not be parsed and was
	// answered as match-all.
	Degraded bool `json:"degraded"`

	// Truncated reports that the candidate window was full.
	Truncated bool `json:"truncated"`

	// StoreError is set when the index could not be read; Items is then empty.
	StoreError string `json:"storeError,omitempty"`
}

// HasNext reports whether a page follows this one.
func (r *Response) HasNext() bool {
	return r.Skip+r.Limit < r.Total
}

// Stats describes the service state.
type Stats struct {
	DocumentCount uint64 `json:"document_count"`
	Location      string `json:"location"`
	Version       string `json:"version"`
	Generation    uint64 `json:"generation"`
	CacheEnabled  bool   `json:"cache_enabled"`
	CacheEntries  int    `json:"cache_entries"`
}
