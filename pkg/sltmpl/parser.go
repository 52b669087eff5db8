package sltmpl

import (
	"fmt"
	"strings"
)

// Parse parses template source into a reusable Template. It recognizes text,
// ::var:: and ::expr:: tags, if/elseif/else/end, foreach/end and $$macro(...)
// calls. Expressions are compiled here, so a Template never re-parses at
// render time.
func Parse(src string) (*Template, error) {
	toks, err := tokenize(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	root, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	if err := p.expectDrained(); err != nil {
		return nil, err
	}
	return &Template{src: src, root: root}, nil
}

// MustParse is like Parse but panics on error. It is meant for templates
// that are constants in the embedding program.
func MustParse(src string) *Template {
	t, err := Parse(src)
	if err != nil {
		panic(fmt.Sprintf("sltmpl: Parse(%q): %v", src, err))
	}
	return t
}

// parser consumes tokens as a queue.
type parser struct {
	toks []token
	i    int
}

func (p *parser) peek() (*token, bool) {
	if p.i >= len(p.toks) {
		return nil, false
	}
	return &p.toks[p.i], true
}

func (p *parser) pop() (*token, bool) {
	t, ok := p.peek()
	if ok {
		p.i++
	}
	return t, ok
}

func (p *parser) expectDrained() error {
	if t, ok := p.peek(); ok {
		return &Error{Kind: ErrSyntax, Message: fmt.Sprintf("unexpected '%s'", t.val), Pos: t.pos}
	}
	return nil
}

func isTerminator(t *token) bool {
	if t.kind != tokTag {
		return false
	}
	return t.val == "end" || t.val == "else" || strings.HasPrefix(t.val, "elseif ")
}

func isEnd(t *token) bool {
	return t.kind == tokTag && t.val == "end"
}

// parseBlock parses constructs until a terminator tag or the end of input.
// The terminator itself is left in the queue.
func (p *parser) parseBlock() (Node, error) {
	var nodes []Node
	for {
		t, ok := p.peek()
		if !ok || isTerminator(t) {
			break
		}
		n, err := p.parse()
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	if len(nodes) == 1 {
		return nodes[0], nil
	}
	return &BlockNode{Nodes: nodes}, nil
}

// parse parses exactly one construct.
func (p *parser) parse() (Node, error) {
	t, _ := p.pop()
	switch t.kind {
	case tokText:
		return &TextNode{Text: t.val}, nil
	case tokMacro:
		return p.parseMacro(t)
	}

	body := t.val
	switch {
	case strings.HasPrefix(body, "if "):
		return p.parseIf(t, body[3:])
	case strings.HasPrefix(body, "foreach "):
		return p.parseForeach(t, body[8:])
	case exprSplitter.MatchString(body):
		e, err := compileExpr(body)
		if err != nil {
			return nil, withPos(err, t.pos)
		}
		return &ExprNode{Expr: e}, nil
	default:
		return &VarNode{Name: body}, nil
	}
}

// parseMacro parses every raw argument as a template of its own, so
// arguments may contain tags and nested macro calls.
func (p *parser) parseMacro(t *token) (Node, error) {
	n := &MacroNode{Name: t.val}
	for _, raw := range t.args {
		toks, err := tokenize(raw)
		if err != nil {
			return nil, reposition(err, t.pos)
		}
		sub := &parser{toks: toks}
		arg, err := sub.parseBlock()
		if err != nil {
			return nil, reposition(err, t.pos)
		}
		if err := sub.expectDrained(); err != nil {
			return nil, reposition(err, t.pos)
		}
		n.Args = append(n.Args, arg)
	}
	return n, nil
}

func (p *parser) parseIf(t *token, cond string) (Node, error) {
	e, err := compileExpr(cond)
	if err != nil {
		return nil, withPos(err, t.pos)
	}
	n := &IfNode{Cond: e}
	if n.Then, err = p.parseBlock(); err != nil {
		return nil, err
	}

	next, ok := p.peek()
	switch {
	case !ok:
		return nil, unclosed("if", t.pos)
	case isEnd(next):
		p.pop()
	case next.val == "else":
		p.pop()
		if n.Else, err = p.parseBlock(); err != nil {
			return nil, err
		}
		end, ok := p.pop()
		if !ok || !isEnd(end) {
			return nil, unclosed("else", next.pos)
		}
	default:
		// elseif: drop the "else" prefix and parse the tag as a nested if
		// that consumes the shared end.
		next.val = next.val[4:]
		if n.Else, err = p.parse(); err != nil {
			return nil, err
		}
	}
	return n, nil
}

func (p *parser) parseForeach(t *token, source string) (Node, error) {
	e, err := compileExpr(source)
	if err != nil {
		return nil, withPos(err, t.pos)
	}
	n := &ForeachNode{Source: e}
	if n.Body, err = p.parseBlock(); err != nil {
		return nil, err
	}
	end, ok := p.pop()
	if !ok || !isEnd(end) {
		return nil, unclosed("foreach", t.pos)
	}
	return n, nil
}

func unclosed(construct string, pos int) *Error {
	return &Error{Kind: ErrUnclosedBlock, Message: fmt.Sprintf("unclosed '%s'", construct), Pos: pos}
}

// withPos attaches a template offset to errors raised without one.
func withPos(err error, pos int) error {
	if e, ok := err.(*Error); ok && e.Pos == 0 {
		e.Pos = pos
	}
	return err
}

// reposition reports errors from a macro argument at the macro call, since
// argument offsets are relative to the argument text.
func reposition(err error, pos int) error {
	if e, ok := err.(*Error); ok {
		e.Pos = pos
	}
	return err
}
