package searcher

import (
	"fmt"

	"github.com/blevesearch/bleve/v2"
	bq "github.com/blevesearch/bleve/v2/search/query"

	"github.com/shopfront/catalogsearch/internal/query"
)

// Compile translates a parsed query tree into a bleve query.
func Compile(q query.Query) (bq.Query, error) {
	switch v := q.(type) {
	case nil:
		return bleve.NewMatchAllQuery(), nil
	case query.MatchAll:
		return bleve.NewMatchAllQuery(), nil
	case query.Term:
		m := bleve.NewMatchQuery(v.Text)
		m.SetField(v.Field)
		setBoost(m, v.Boost)
		return m, nil
	case query.Phrase:
		if v.Slop > 0 {
			// bleve phrases have no positional slop, so a sloppy phrase
			// requires every term in the field at any distance.
			m := bleve.NewMatchQuery(v.Text)
			m.SetField(v.Field)
			m.SetOperator(bq.MatchQueryOperatorAnd)
			setBoost(m, v.Boost)
			return m, nil
		}
		m := bleve.NewMatchPhraseQuery(v.Text)
		m.SetField(v.Field)
		setBoost(m, v.Boost)
		return m, nil
	case query.Prefix:
		m := bleve.NewPrefixQuery(v.Prefix)
		m.SetField(v.Field)
		setBoost(m, v.Boost)
		return m, nil
	case query.Wildcard:
		m := bleve.NewWildcardQuery(v.Pattern)
		m.SetField(v.Field)
		setBoost(m, v.Boost)
		return m, nil
	case query.Fuzzy:
		m := bleve.NewFuzzyQuery(v.Text)
		m.SetField(v.Field)
		m.SetFuzziness(v.Distance)
		setBoost(m, v.Boost)
		return m, nil
	case query.Boolean:
		return compileBoolean(v)
	default:
		return nil, fmt.Errorf("unsupported query node %T", q)
	}
}

func compileBoolean(v query.Boolean) (bq.Query, error) {
	if len(v.Must)+len(v.Should)+len(v.MustNot) == 0 {
		return bleve.NewMatchNoneQuery(), nil
	}

	b := bleve.NewBooleanQuery()
	for _, c := range v.Must {
		cq, err := Compile(c)
		if err != nil {
			return nil, err
		}
		b.AddMust(cq)
	}
	for _, c := range v.Should {
		cq, err := Compile(c)
		if err != nil {
			return nil, err
		}
		b.AddShould(cq)
	}
	for _, c := range v.MustNot {
		cq, err := Compile(c)
		if err != nil {
			return nil, err
		}
		b.AddMustNot(cq)
	}
	setBoost(b, v.Boost)
	return b, nil
}

func setBoost(q bq.BoostableQuery, boost float64) {
	if boost > 0 {
		q.SetBoost(boost)
	}
}
