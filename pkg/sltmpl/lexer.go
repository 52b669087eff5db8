package sltmpl

import (
	"regexp"
	"strings"
)

// The lexer splits template source into text, `::tag::` and `$$macro(...)` tokens.
// Tag bodies and macro arguments are kept raw; the parser interprets them.

var (
	// tagSplitter finds the next `::body::` span or `$$name(` macro opener.
	tagSplitter = regexp.MustCompile(`(::[A-Za-z0-9_ ()&|!+=/><*."-]+::|\$\$([A-Za-z0-9_-]+)\()`)

	// exprSplitter extracts atomic tokens from an expression body: numbers with a
	// fraction or exponent, parentheses, quoted strings and operator runs.
	exprSplitter = regexp.MustCompile(`(\b[0-9]+(?:\.[0-9]+)?[eE][+-]?[0-9]+\b|\b[0-9]+\.[0-9]+\b|\(|\)|[ \r\n\t]*"[^"]*"[ \r\n\t]*|[!+=/><*.&|-]+)`)

	intPattern   = regexp.MustCompile(`^[0-9]+$`)
	floatPattern = regexp.MustCompile(`^[+-]?([0-9]+\.?[0-9]*|\.[0-9]+)([eE][+-]?[0-9]+)?$`)
)

type tokenKind int

const (
	tokText  tokenKind = iota
	tokTag             // ::body::
	tokMacro           // $$name(args)
)

func (k tokenKind) String() string {
	switch k {
	case tokText:
		return "text"
	case tokTag:
		return "tag"
	case tokMacro:
		return "macro"
	default:
		return "unknown"
	}
}

type token struct {
	kind tokenKind
	val  string   // text, tag body or macro name
	args []string // raw macro arguments
	pos  int      // byte offset in source
}

// tokenize scans src into a flat token list.
func tokenize(src string) ([]token, error) {
	var toks []token
	data := src
	base := 0
	for {
		loc := tagSplitter.FindStringSubmatchIndex(data)
		if loc == nil {
			break
		}
		start, end := loc[0], loc[1]
		if start > 0 {
			toks = append(toks, token{kind: tokText, val: data[:start], pos: base})
		}
		if data[start] == ':' {
			toks = append(toks, token{kind: tokTag, val: data[start+2 : end-2], pos: base + start})
			data, base = data[end:], base+end
			continue
		}

		// Macro call: balance parentheses starting after the opener.
		name := data[loc[4]:loc[5]]
		depth := 1
		i := end
		for depth > 0 {
			if i >= len(data) {
				return nil, &Error{
					Kind:    ErrMalformedMacro,
					Message: "unclosed macro parenthesis in $$" + name + "(",
					Pos:     base + start,
				}
			}
			switch data[i] {
			case '(':
				depth++
			case ')':
				depth--
			}
			i++
		}
		toks = append(toks, token{
			kind: tokMacro,
			val:  name,
			args: strings.Split(data[end:i-1], ","),
			pos:  base + start,
		})
		data, base = data[i:], base+i
	}
	if len(data) > 0 {
		toks = append(toks, token{kind: tokText, val: data, pos: base})
	}
	return toks, nil
}

// exprToken is one lexeme of an expression body. atom is true for names,
// numbers and strings; false for parentheses and operators.
type exprToken struct {
	val  string
	atom bool
}

func tokenizeExpr(src string) []exprToken {
	var toks []exprToken
	data := src
	for {
		loc := exprSplitter.FindStringIndex(data)
		if loc == nil {
			break
		}
		if loc[0] > 0 {
			toks = appendAtom(toks, data[:loc[0]])
		}
		m := data[loc[0]:loc[1]]
		if afterDot(toks) && m[0] >= '0' && m[0] <= '9' {
			// A number after "." is a path segment, so "a.1.2" indexes twice.
			if n := strings.IndexFunc(m, func(r rune) bool { return r < '0' || r > '9' }); n > 0 {
				loc[1] = loc[0] + n
				m = m[:n]
			}
		}
		switch {
		case strings.Contains(m, `"`):
			toks = append(toks, exprToken{val: m, atom: true})
		case m[0] >= '0' && m[0] <= '9':
			toks = append(toks, exprToken{val: m, atom: true})
		default:
			toks = append(toks, exprToken{val: m})
		}
		data = data[loc[1]:]
	}
	if len(data) > 0 {
		toks = appendAtom(toks, data)
	}
	return toks
}

func afterDot(toks []exprToken) bool {
	return len(toks) > 0 && !toks[len(toks)-1].atom && toks[len(toks)-1].val == "."
}

// appendAtom drops whitespace-only segments between operators.
func appendAtom(toks []exprToken, s string) []exprToken {
	if strings.TrimSpace(s) == "" {
		return toks
	}
	return append(toks, exprToken{val: s, atom: true})
}
