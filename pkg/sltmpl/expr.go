package sltmpl

import (
	"fmt"
	"strconv"
	"strings"
)

// Expr is an expression compiled once at parse time and evaluated against the
// render state on every use.
//
// Grammar (no precedence; binary operators need their own parentheses):
//
//	expr := atom | "(" expr ")" | "(" expr OP expr ")" | "!" expr | "-" expr | expr "." NAME
//	atom := STRING | INT | FLOAT | NAME
type Expr struct {
	Source string
	fn     evalFunc
	// names are the context names the expression resolves, in source order.
	names []string
}

type evalFunc func(s *state) (any, error)

func (e *Expr) String() string { return e.Source }

// eval runs the compiled closure and attributes any failure, including a
// panic from reflection on user values, to the expression source.
func (e *Expr) eval(s *state) (v any, err error) {
	defer func() {
		if r := recover(); r != nil {
			v, err = nil, &Error{Kind: ErrExpressionRuntime, Source: e.Source, Err: fmt.Errorf("%v", r)}
		}
	}()
	v, err = e.fn(s)
	if err != nil {
		return nil, &Error{Kind: ErrExpressionRuntime, Source: e.Source, Err: err}
	}
	return v, nil
}

type exprParser struct {
	src   string
	toks  []exprToken
	i     int
	names []string
}

func compileExpr(src string) (*Expr, error) {
	p := &exprParser{src: src, toks: tokenizeExpr(src)}
	fn, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if t, ok := p.peek(); ok {
		return nil, p.unexpected(t.val)
	}
	return &Expr{Source: src, fn: fn, names: p.names}, nil
}

func (p *exprParser) peek() (exprToken, bool) {
	if p.i >= len(p.toks) {
		return exprToken{}, false
	}
	return p.toks[p.i], true
}

func (p *exprParser) pop() (exprToken, bool) {
	t, ok := p.peek()
	if ok {
		p.i++
	}
	return t, ok
}

func (p *exprParser) unexpected(tok string) *Error {
	return syntaxError(fmt.Sprintf("unexpected '%s'", tok), p.src)
}

func (p *exprParser) parseExpr() (evalFunc, error) {
	fn, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	return p.parsePath(fn)
}

// parsePath wraps fn in one field lookup per trailing ".NAME".
func (p *exprParser) parsePath(fn evalFunc) (evalFunc, error) {
	for {
		t, ok := p.peek()
		if !ok || t.atom || t.val != "." {
			return fn, nil
		}
		p.pop()
		field, ok := p.pop()
		if !ok {
			return nil, p.unexpected("<eof>")
		}
		name := strings.TrimSpace(field.val)
		if !field.atom || name == "" || strings.ContainsAny(name, "\" \t\r\n") {
			return nil, p.unexpected(field.val)
		}
		inner := fn
		fn = func(s *state) (any, error) {
			v, err := inner(s)
			if err != nil {
				return nil, err
			}
			f, _ := lookupField(v, name)
			return f, nil
		}
	}
}

func (p *exprParser) parseOperand() (evalFunc, error) {
	t, ok := p.pop()
	if !ok {
		return nil, p.unexpected("<eof>")
	}
	if t.atom {
		return p.makeConst(t.val)
	}
	switch t.val {
	case "(":
		return p.parseGroup()
	case "!":
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		return func(s *state) (any, error) {
			v, err := e(s)
			if err != nil {
				return nil, err
			}
			return isFalsy(v), nil
		}, nil
	case "-":
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		return func(s *state) (any, error) {
			v, err := e(s)
			if err != nil {
				return nil, err
			}
			return negate(v)
		}, nil
	}
	return nil, p.unexpected(t.val)
}

// parseGroup parses the rest of "(" expr ")" or "(" expr OP expr ")".
func (p *exprParser) parseGroup() (evalFunc, error) {
	left, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	op, ok := p.pop()
	if !ok {
		return nil, p.unexpected("<eof>")
	}
	if op.atom {
		return nil, p.unexpected(op.val)
	}
	if op.val == ")" {
		return left, nil
	}
	binop, known := binaryOps[op.val]
	if !known {
		return nil, syntaxError(fmt.Sprintf("unknown operation '%s'", op.val), p.src)
	}
	right, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	closing, ok := p.pop()
	if !ok {
		return nil, p.unexpected("<eof>")
	}
	if closing.atom || closing.val != ")" {
		return nil, p.unexpected(closing.val)
	}
	return func(s *state) (any, error) {
		// Both sides are always evaluated.
		a, err := left(s)
		if err != nil {
			return nil, err
		}
		b, err := right(s)
		if err != nil {
			return nil, err
		}
		return binop(a, b)
	}, nil
}

func (p *exprParser) makeConst(raw string) (evalFunc, error) {
	v := strings.TrimSpace(raw)
	if strings.HasPrefix(v, `"`) {
		if len(v) < 2 || !strings.HasSuffix(v, `"`) {
			return nil, p.unexpected(raw)
		}
		str := v[1 : len(v)-1]
		return func(*state) (any, error) { return str, nil }, nil
	}
	if v == "" || strings.ContainsAny(v, " \t\r\n") {
		return nil, p.unexpected(raw)
	}
	if intPattern.MatchString(v) {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return func(*state) (any, error) { return i, nil }, nil
		}
	}
	if floatPattern.MatchString(v) {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, p.unexpected(raw)
		}
		return func(*state) (any, error) { return f, nil }, nil
	}
	name := v
	p.names = append(p.names, name)
	return func(s *state) (any, error) { return s.resolve(name), nil }, nil
}
