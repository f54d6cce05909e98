// Package query parses storefront search text into a field-explicit query tree.
//
// The accepted syntax is a subset of the Lucene classic query language:
// bare terms, "phrases", field:value, boolean operators (AND, OR, NOT,
// &&, ||, !), required and prohibited prefixes (+, -), parentheses,
// trailing-* prefix terms, ? and * wildcards, ~ fuzzy terms, ^ boosts,
// and *:* for everything. Unfielded clauses expand to a disjunction over
// the caller's default field list.
package query

import (
	"strconv"
	"strings"
)

// Query is a node of the parsed query tree.
type Query interface {
	String() string
	query()
}

// MatchAll matches every document.
type MatchAll struct{}

// Term matches documents whose Field contains Text after analysis.
type Term struct {
	Field string
	Text  string
	Boost float64
}

// Phrase matches Text as an ordered token sequence in Field.
// Slop zero requires exact adjacency. A positive Slop relaxes the phrase to
// all of its terms in Field at any distance.
type Phrase struct {
	Field string
	Text  string
	Slop  int
	Boost float64
}

// Prefix matches terms in Field starting with Prefix.
type Prefix struct {
	Field  string
	Prefix string
	Boost  float64
}

// Wildcard matches terms in Field against a pattern using * and ?.
type Wildcard struct {
	Field   string
	Pattern string
	Boost   float64
}

// Fuzzy matches terms in Field within Distance edits of Text.
type Fuzzy struct {
	Field    string
	Text     string
	Distance int
	Boost    float64
}

// Boolean combines clauses. A document must match every Must clause, no
// MustNot clause, and, when there are no Must clauses, at least one Should.
type Boolean struct {
	Must    []Query
	Should  []Query
	MustNot []Query
	Boost   float64
}

func (MatchAll) query() {}
func (Term) query()     {}
func (Phrase) query()   {}
func (Prefix) query()   {}
func (Wildcard) query() {}
func (Fuzzy) query()    {}
func (Boolean) query()  {}

func (MatchAll) String() string { return "*:*" }

func (q Term) String() string {
	return fielded(q.Field, escape(q.Text)) + boost(q.Boost)
}

func (q Phrase) String() string {
	s := fielded(q.Field, strconv.Quote(q.Text))
	if q.Slop > 0 {
		s += "~" + strconv.Itoa(q.Slop)
	}
	return s + boost(q.Boost)
}

func (q Prefix) String() string {
	return fielded(q.Field, escape(q.Prefix)+"*") + boost(q.Boost)
}

func (q Wildcard) String() string {
	return fielded(q.Field, q.Pattern) + boost(q.Boost)
}

func (q Fuzzy) String() string {
	return fielded(q.Field, escape(q.Text)+"~"+strconv.Itoa(q.Distance)) + boost(q.Boost)
}

func (q Boolean) String() string {
	parts := make([]string, 0, len(q.Must)+len(q.Should)+len(q.MustNot))
	for _, c := range q.Must {
		parts = append(parts, "+"+c.String())
	}
	for _, c := range q.Should {
		parts = append(parts, c.String())
	}
	for _, c := range q.MustNot {
		parts = append(parts, "-"+c.String())
	}
	return "(" + strings.Join(parts, " ") + ")" + boost(q.Boost)
}

func fielded(field, value string) string {
	if field == "" {
		return value
	}
	return field + ":" + value
}

func boost(b float64) string {
	if b == 0 || b == 1 {
		return ""
	}
	return "^" + strconv.FormatFloat(b, 'g', -1, 64)
}

const specialChars = `\+-!():^[]"{}~*?|&/ `

func escape(s string) string {
	var b strings.Builder
	for _, r := range s {
		if strings.ContainsRune(specialChars, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
