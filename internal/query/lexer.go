package query

import (
	"fmt"
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokWord
	tokPhrase
	tokField
	tokLParen
	tokRParen
	tokPlus
	tokMinus
	tokNot
	tokAnd
	tokOr
	tokTilde
	tokCaret
)

func (k tokenKind) String() string {
	switch k {
	case tokEOF:
		return "end of input"
	case tokWord:
		return "term"
	case tokPhrase:
		return "phrase"
	case tokField:
		return "field"
	case tokLParen:
		return "'('"
	case tokRParen:
		return "')'"
	case tokPlus:
		return "'+'"
	case tokMinus:
		return "'-'"
	case tokNot:
		return "NOT"
	case tokAnd:
		return "AND"
	case tokOr:
		return "OR"
	case tokTilde:
		return "'~'"
	case tokCaret:
		return "'^'"
	default:
		return "unknown"
	}
}

type token struct {
	kind tokenKind
	pos  int
	// text is the unescaped value for words, phrases and fields, and the
	// numeric argument (possibly empty) for ~ and ^.
	text string
	// wildcard reports an unescaped * or ? inside a word.
	wildcard bool
	// prefix reports that the only unescaped wildcard is a trailing *.
	prefix bool
}

// SyntaxError describes why text could not be parsed.
type SyntaxError struct {
	Pos int
	Msg string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("query syntax error at %d: %s", e.Pos, e.Msg)
}

// wordBreak runes end a bare word unless escaped.
const wordBreak = `()"~^:`

type lexer struct {
	src  []rune
	pos  int
	toks []token
}

func lex(text string) ([]token, error) {
	l := &lexer{src: []rune(text)}
	for {
		tok, err := l.next()
		if err != nil {
			return nil, err
		}
		l.toks = append(l.toks, tok)
		if tok.kind == tokEOF {
			return l.toks, nil
		}
	}
}

func (l *lexer) peek(off int) rune {
	if l.pos+off >= len(l.src) {
		return 0
	}
	return l.src[l.pos+off]
}

func (l *lexer) next() (token, error) {
	for l.pos < len(l.src) && unicode.IsSpace(l.src[l.pos]) {
		l.pos++
	}
	start := l.pos
	if l.pos >= len(l.src) {
		return token{kind: tokEOF, pos: start}, nil
	}

	r := l.src[l.pos]
	switch {
	case r == '(':
		l.pos++
		return token{kind: tokLParen, pos: start}, nil
	case r == ')':
		l.pos++
		return token{kind: tokRParen, pos: start}, nil
	case r == '+':
		l.pos++
		return token{kind: tokPlus, pos: start}, nil
	case r == '-':
		l.pos++
		return token{kind: tokMinus, pos: start}, nil
	case r == '!':
		l.pos++
		return token{kind: tokNot, pos: start}, nil
	case r == '&' && l.peek(1) == '&':
		l.pos += 2
		return token{kind: tokAnd, pos: start}, nil
	case r == '|' && l.peek(1) == '|':
		l.pos += 2
		return token{kind: tokOr, pos: start}, nil
	case r == '"':
		return l.phrase()
	case r == '~':
		l.pos++
		return token{kind: tokTilde, pos: start, text: l.number()}, nil
	case r == '^':
		l.pos++
		num := l.number()
		if num == "" {
			return token{}, &SyntaxError{Pos: start, Msg: "boost requires a number"}
		}
		return token{kind: tokCaret, pos: start, text: num}, nil
	case r == ':':
		return token{}, &SyntaxError{Pos: start, Msg: "missing field name before ':'"}
	}
	return l.word()
}

func (l *lexer) number() string {
	start := l.pos
	for l.pos < len(l.src) && (unicode.IsDigit(l.src[l.pos]) || l.src[l.pos] == '.') {
		l.pos++
	}
	return string(l.src[start:l.pos])
}

func (l *lexer) phrase() (token, error) {
	start := l.pos
	l.pos++ // opening quote
	var b strings.Builder
	for l.pos < len(l.src) {
		r := l.src[l.pos]
		switch r {
		case '\\':
			if l.pos+1 >= len(l.src) {
				return token{}, &SyntaxError{Pos: l.pos, Msg: "dangling escape"}
			}
			b.WriteRune(l.src[l.pos+1])
			l.pos += 2
		case '"':
			l.pos++
			return token{kind: tokPhrase, pos: start, text: b.String()}, nil
		default:
			b.WriteRune(r)
			l.pos++
		}
	}
	return token{}, &SyntaxError{Pos: start, Msg: "unterminated phrase"}
}

func (l *lexer) word() (token, error) {
	start := l.pos
	var b strings.Builder
	var stars, questions int
	trailingStar := false
	escapedAny := false

	for l.pos < len(l.src) {
		r := l.src[l.pos]
		if unicode.IsSpace(r) || strings.ContainsRune(wordBreak, r) {
			break
		}
		trailingStar = false
		switch r {
		case '\\':
			if l.pos+1 >= len(l.src) {
				return token{}, &SyntaxError{Pos: l.pos, Msg: "dangling escape"}
			}
			b.WriteRune(l.src[l.pos+1])
			escapedAny = true
			l.pos += 2
			continue
		case '*':
			stars++
			trailingStar = true
		case '?':
			questions++
		}
		b.WriteRune(r)
		l.pos++
	}

	text := b.String()
	if l.pos < len(l.src) && l.src[l.pos] == ':' {
		l.pos++
		return token{kind: tokField, pos: start, text: text}, nil
	}

	switch text {
	case "AND":
		if !escapedAny {
			return token{kind: tokAnd, pos: start}, nil
		}
	case "OR":
		if !escapedAny {
			return token{kind: tokOr, pos: start}, nil
		}
	case "NOT":
		if !escapedAny {
			return token{kind: tokNot, pos: start}, nil
		}
	}

	tok := token{kind: tokWord, pos: start, text: text}
	tok.wildcard = stars+questions > 0
	tok.prefix = stars == 1 && questions == 0 && trailingStar
	return tok, nil
}
