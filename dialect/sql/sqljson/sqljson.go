// Package sqljson classifies JSON-path expressions before they are
// embedded in generated SQL. A path string is either a dialect-native
// JSON access expression that passes through verbatim, or a plain dotted
// accessor the generator expands into a path-extraction call. The
// classifier is a small lexer with a defined token grammar, so the trust
// boundary between the two is auditable rather than regex-shaped.
package sqljson

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// Kind is the classification of a path string.
type Kind uint8

const (
	// KindAccessor is a plain dotted accessor, e.g. "meta.labels[0].name".
	KindAccessor Kind = iota
	// KindNative is a dialect-native JSON expression, e.g.
	// "json_extract(`meta`, '$.labels')" or "data->>'name'".
	KindNative
)

// ErrTerminator is returned when a statement terminator appears inside a
// native JSON expression. Truncating would mask an injection attempt, so
// classification fails closed instead.
var ErrTerminator = errors.New("sqljson: statement terminator inside json expression")

// jsonFuncs is the set of function names that mark an expression as a
// native JSON access.
var jsonFuncs = map[string]bool{
	"json_extract":       true,
	"json_unquote":       true,
	"json_value":         true,
	"json_query":         true,
	"json_contains":      true,
	"json_type":          true,
	"json_length":        true,
	"json_each":          true,
	"json_set":           true,
	"jsonb_extract_path": true,
	"jsonb_path_query":   true,
}

type tokenKind uint8

const (
	tokenIdent tokenKind = iota
	tokenNumber
	tokenString
	tokenLParen
	tokenRParen
	tokenComma
	tokenDot
	tokenLBracket
	tokenRBracket
	tokenArrow // ->, ->>, #>, #>>
	tokenTerminator
	tokenOther
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

func lex(s string) ([]token, error) {
	var tokens []token
	i := 0
	for i < len(s) {
		c := s[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '(':
			tokens = append(tokens, token{tokenLParen, "(", i})
			i++
		case c == ')':
			tokens = append(tokens, token{tokenRParen, ")", i})
			i++
		case c == ',':
			tokens = append(tokens, token{tokenComma, ",", i})
			i++
		case c == '.':
			tokens = append(tokens, token{tokenDot, ".", i})
			i++
		case c == '[':
			tokens = append(tokens, token{tokenLBracket, "[", i})
			i++
		case c == ']':
			tokens = append(tokens, token{tokenRBracket, "]", i})
			i++
		case c == ';':
			tokens = append(tokens, token{tokenTerminator, ";", i})
			i++
		case c == '-' && i+1 < len(s) && s[i+1] == '>':
			j := i + 2
			if j < len(s) && s[j] == '>' {
				j++
			}
			tokens = append(tokens, token{tokenArrow, s[i:j], i})
			i = j
		case c == '#' && i+1 < len(s) && s[i+1] == '>':
			j := i + 2
			if j < len(s) && s[j] == '>' {
				j++
			}
			tokens = append(tokens, token{tokenArrow, s[i:j], i})
			i = j
		case c == '\'':
			j := i + 1
			for j < len(s) {
				if s[j] == '\'' {
					if j+1 < len(s) && s[j+1] == '\'' {
						j += 2
						continue
					}
					break
				}
				j++
			}
			if j >= len(s) {
				return nil, fmt.Errorf("sqljson: unterminated string literal at offset %d", i)
			}
			tokens = append(tokens, token{tokenString, s[i : j+1], i})
			i = j + 1
		case isIdentStart(rune(c)):
			j := i + 1
			for j < len(s) && isIdentPart(rune(s[j])) {
				j++
			}
			tokens = append(tokens, token{tokenIdent, s[i:j], i})
			i = j
		case c >= '0' && c <= '9':
			j := i + 1
			for j < len(s) && s[j] >= '0' && s[j] <= '9' {
				j++
			}
			tokens = append(tokens, token{tokenNumber, s[i:j], i})
			i = j
		default:
			tokens = append(tokens, token{tokenOther, string(c), i})
			i++
		}
	}
	return tokens, nil
}

func isIdentStart(r rune) bool {
	return unicode.IsLetter(r) || r == '_' || r == '`' || r == '"' || r == '$' || r == '@'
}

func isIdentPart(r rune) bool {
	return isIdentStart(r) || unicode.IsDigit(r)
}

// Classify lexes the given path string and reports whether it is a
// native JSON expression or a plain accessor. Native expressions must
// have balanced parentheses; a statement terminator following a
// recognized JSON function call (or anywhere inside a native expression)
// is a hard error.
func Classify(s string) (Kind, error) {
	tokens, err := lex(s)
	if err != nil {
		return KindAccessor, err
	}
	if len(tokens) == 0 {
		return KindAccessor, errors.New("sqljson: empty path")
	}
	native := false
	if len(tokens) >= 2 && tokens[0].kind == tokenIdent && tokens[1].kind == tokenLParen {
		if jsonFuncs[strings.ToLower(tokens[0].text)] {
			native = true
		}
	}
	depth := 0
	for _, t := range tokens {
		switch t.kind {
		case tokenArrow:
			native = true
		case tokenLParen:
			depth++
		case tokenRParen:
			depth--
			if depth < 0 {
				return KindAccessor, fmt.Errorf("sqljson: unbalanced parentheses at offset %d", t.pos)
			}
		case tokenTerminator:
			// Fail closed in both classifications. Accessors have no
			// business carrying a terminator either.
			return KindAccessor, fmt.Errorf("%w (offset %d)", ErrTerminator, t.pos)
		}
	}
	if depth != 0 {
		return KindAccessor, errors.New("sqljson: unbalanced parentheses")
	}
	if native {
		return KindNative, nil
	}
	for _, t := range tokens {
		switch t.kind {
		case tokenIdent, tokenNumber, tokenDot, tokenLBracket, tokenRBracket:
		default:
			return KindAccessor, fmt.Errorf("sqljson: unexpected token %q at offset %d", t.text, t.pos)
		}
	}
	return KindAccessor, nil
}

// Segments splits a dotted accessor into its ordered path segments.
// Array subscripts become their own segments: "a.b[2].c" yields
// ["a", "b", "2", "c"].
func Segments(path string) []string {
	var segs []string
	for _, part := range strings.Split(path, ".") {
		for {
			open := strings.IndexByte(part, '[')
			if open < 0 {
				if part != "" {
					segs = append(segs, part)
				}
				break
			}
			if open > 0 {
				segs = append(segs, part[:open])
			}
			closing := strings.IndexByte(part, ']')
			if closing < 0 {
				segs = append(segs, part[open+1:])
				break
			}
			segs = append(segs, part[open+1:closing])
			part = part[closing+1:]
		}
	}
	return segs
}
