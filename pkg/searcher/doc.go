// Package searcher runs parsed catalog queries against index snapshots.
//
// # Usage
//
//	s, err := searcher.New(searcher.WithStore(st))
//	if err != nil {
//	    return err
//	}
//	q, _ := query.Parse("laptop AND name:pro*", document.SearchableFields)
//	res, err := s.Search(ctx, q, 110)
//
// Hits are ordered by descending score, ties by ascending item id. Each
// Search opens its own snapshot, so one result never mixes two commits.
//
// # Thread Safety
//
// IndexSearcher is safe for concurrent use.
package searcher
