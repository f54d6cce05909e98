package query

import (
	"fmt"
	"strconv"
	"strings"
)

// maxFuzzyDistance is the largest edit distance a fuzzy term may request.
const maxFuzzyDistance = 2

// defaultFuzzyDistance applies to a bare trailing ~.
const defaultFuzzyDistance = 2

// maxDepth bounds parenthesis nesting.
const maxDepth = 32

// Parse parses text against the default field list. It never fails:
// blank text yields MatchAll, and text that is not valid syntax yields
// MatchAll with degraded set.
func Parse(text string, fields []string) (q Query, degraded bool) {
	q, err := ParseStrict(text, fields)
	if err != nil {
		return MatchAll{}, true
	}
	return q, false
}

// ParseStrict parses text and reports syntax errors. Blank text is not an error.
func ParseStrict(text string, fields []string) (Query, error) {
	if strings.TrimSpace(text) == "" {
		return MatchAll{}, nil
	}
	toks, err := lex(text)
	if err != nil {
		return nil, err
	}

	p := &parser{toks: toks}
	q, err := p.parseQuery(fields, 0)
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.kind != tokEOF {
		return nil, p.errorf(tok, "unexpected %s", tok.kind)
	}
	return q, nil
}

type occur int

const (
	occurShould occur = iota
	occurMust
	occurMustNot
)

type clause struct {
	occur occur
	q     Query
}

type parser struct {
	toks []token
	pos  int
}

func (p *parser) peek() token {
	return p.toks[p.pos]
}

func (p *parser) advance() token {
	tok := p.toks[p.pos]
	if tok.kind != tokEOF {
		p.pos++
	}
	return tok
}

func (p *parser) errorf(tok token, format string, args ...any) error {
	return &SyntaxError{Pos: tok.pos, Msg: fmt.Sprintf(format, args...)}
}

// parseQuery reads clauses until ')' or end of input, combining them with
// the classic rules: AND makes both neighbours required, NOT and - prohibit,
// + requires, and everything else is optional.
func (p *parser) parseQuery(fields []string, depth int) (Query, error) {
	if depth > maxDepth {
		return nil, p.errorf(p.peek(), "nesting deeper than %d", maxDepth)
	}

	var clauses []clause
	for {
		tok := p.peek()
		if tok.kind == tokEOF || tok.kind == tokRParen {
			break
		}

		conj := tokEOF
		if tok.kind == tokAnd || tok.kind == tokOr {
			if len(clauses) == 0 {
				return nil, p.errorf(tok, "%s without a left operand", tok.kind)
			}
			conj = tok.kind
			p.advance()
		}

		mod := occurShould
		switch p.peek().kind {
		case tokPlus:
			mod = occurMust
			p.advance()
		case tokMinus, tokNot:
			mod = occurMustNot
			p.advance()
		}

		next := p.peek()
		if next.kind == tokEOF || next.kind == tokRParen || next.kind == tokAnd || next.kind == tokOr {
			return nil, p.errorf(next, "expected a clause, found %s", next.kind)
		}

		q, err := p.parseClause(fields, depth)
		if err != nil {
			return nil, err
		}

		if conj == tokAnd {
			last := &clauses[len(clauses)-1]
			if last.occur != occurMustNot {
				last.occur = occurMust
			}
			if mod == occurShould {
				mod = occurMust
			}
		}
		clauses = append(clauses, clause{occur: mod, q: q})
	}

	if len(clauses) == 0 {
		return nil, p.errorf(p.peek(), "empty query")
	}
	return combine(clauses), nil
}

func combine(clauses []clause) Query {
	if len(clauses) == 1 && clauses[0].occur != occurMustNot {
		return clauses[0].q
	}
	var b Boolean
	for _, c := range clauses {
		switch c.occur {
		case occurMust:
			b.Must = append(b.Must, c.q)
		case occurMustNot:
			b.MustNot = append(b.MustNot, c.q)
		default:
			b.Should = append(b.Should, c.q)
		}
	}
	return b
}

func (p *parser) parseClause(fields []string, depth int) (Query, error) {
	tok := p.peek()
	if tok.kind == tokField {
		p.advance()
		return p.parseFielded(tok, depth)
	}
	return p.parseAtom(fields, depth)
}

func (p *parser) parseFielded(field token, depth int) (Query, error) {
	next := p.peek()
	if field.text == "*" && next.kind == tokWord && next.text == "*" {
		p.advance()
		return p.withBoost(MatchAll{})
	}
	switch next.kind {
	case tokWord, tokPhrase, tokLParen:
		return p.parseAtom([]string{field.text}, depth)
	default:
		return nil, p.errorf(next, "field %q has no value", field.text)
	}
}

func (p *parser) parseAtom(fields []string, depth int) (Query, error) {
	tok := p.advance()
	switch tok.kind {
	case tokLParen:
		q, err := p.parseQuery(fields, depth+1)
		if err != nil {
			return nil, err
		}
		if closing := p.advance(); closing.kind != tokRParen {
			return nil, p.errorf(closing, "unbalanced parenthesis")
		}
		return p.withBoost(q)
	case tokPhrase:
		slop := 0
		if p.peek().kind == tokTilde {
			n, err := p.intArg(p.advance(), 0)
			if err != nil {
				return nil, err
			}
			slop = n
		}
		return p.expand(fields, func(f string) Query { return Phrase{Field: f, Text: tok.text, Slop: slop} })
	case tokWord:
		return p.parseWord(tok, fields)
	default:
		return nil, p.errorf(tok, "unexpected %s", tok.kind)
	}
}

func (p *parser) parseWord(tok token, fields []string) (Query, error) {
	if tok.text == "*" && tok.wildcard {
		return p.withBoost(MatchAll{})
	}

	if p.peek().kind == tokTilde {
		tilde := p.advance()
		dist, err := fuzzyDistance(tilde, tok.text)
		if err != nil {
			return nil, err
		}
		text := strings.ToLower(tok.text)
		return p.expand(fields, func(f string) Query { return Fuzzy{Field: f, Text: text, Distance: dist} })
	}

	switch {
	case tok.prefix:
		prefix := strings.ToLower(strings.TrimSuffix(tok.text, "*"))
		return p.expand(fields, func(f string) Query { return Prefix{Field: f, Prefix: prefix} })
	case tok.wildcard:
		pattern := strings.ToLower(tok.text)
		return p.expand(fields, func(f string) Query { return Wildcard{Field: f, Pattern: pattern} })
	default:
		return p.expand(fields, func(f string) Query { return Term{Field: f, Text: tok.text} })
	}
}

// expand builds one leaf per field, joined as alternatives, then applies
// any trailing boost to the result.
func (p *parser) expand(fields []string, leaf func(field string) Query) (Query, error) {
	var q Query
	switch len(fields) {
	case 0:
		q = leaf("")
	case 1:
		q = leaf(fields[0])
	default:
		alts := make([]Query, len(fields))
		for i, f := range fields {
			alts[i] = leaf(f)
		}
		q = Boolean{Should: alts}
	}
	return p.withBoost(q)
}

func (p *parser) withBoost(q Query) (Query, error) {
	if p.peek().kind != tokCaret {
		return q, nil
	}
	tok := p.advance()
	b, err := strconv.ParseFloat(tok.text, 64)
	if err != nil || b < 0 {
		return nil, p.errorf(tok, "invalid boost %q", tok.text)
	}
	return applyBoost(q, b), nil
}

func applyBoost(q Query, b float64) Query {
	switch v := q.(type) {
	case Term:
		v.Boost = b
		return v
	case Phrase:
		v.Boost = b
		return v
	case Prefix:
		v.Boost = b
		return v
	case Wildcard:
		v.Boost = b
		return v
	case Fuzzy:
		v.Boost = b
		return v
	case Boolean:
		v.Boost = b
		return v
	default:
		return q
	}
}

func (p *parser) intArg(tok token, def int) (int, error) {
	if tok.text == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(tok.text, 64)
	if err != nil || f < 0 {
		return 0, p.errorf(tok, "invalid number %q", tok.text)
	}
	return int(f), nil
}

// fuzzyDistance maps the ~ argument to an edit distance. Values of 1 or more
// are edit counts; the legacy similarity form (0 < s < 1) scales by term length.
func fuzzyDistance(tok token, term string) (int, error) {
	if tok.text == "" {
		return defaultFuzzyDistance, nil
	}
	f, err := strconv.ParseFloat(tok.text, 64)
	if err != nil || f < 0 {
		return 0, &SyntaxError{Pos: tok.pos, Msg: fmt.Sprintf("invalid fuzzy distance %q", tok.text)}
	}
	var d int
	switch {
	case f >= 1:
		d = int(f)
	case f == 0:
		d = 0
	default:
		d = int((1 - f) * float64(len([]rune(term))))
	}
	return min(d, maxFuzzyDistance), nil
}
