package sltmpl

import (
	"fmt"
	"strings"
)

// state is the mutable part of one render: output buffer, current context
// and the stack of outer contexts saved by foreach.
type state struct {
	buf     *strings.Builder
	current any
	stack   []any
	globals *Globals
	macros  Macros
}

// resolve looks name up in the current context, then in saved outer
// contexts from innermost to outermost, then in globals. "__current__"
// names the current context itself when nothing shadows it.
func (s *state) resolve(name string) any {
	if v, ok := lookupField(s.current, name); ok {
		return v
	}
	for i := len(s.stack) - 1; i >= 0; i-- {
		if v, ok := lookupField(s.stack[i], name); ok {
			return v
		}
	}
	if name == "__current__" {
		return s.current
	}
	v, _ := s.globals.Lookup(name)
	return v
}

func (s *state) run(n Node) error {
	switch t := n.(type) {
	case *TextNode:
		s.buf.WriteString(t.Text)
	case *VarNode:
		s.buf.WriteString(toString(s.resolve(t.Name)))
	case *ExprNode:
		v, err := t.Expr.eval(s)
		if err != nil {
			return err
		}
		s.buf.WriteString(toString(v))
	case *IfNode:
		v, err := t.Cond.eval(s)
		if err != nil {
			return err
		}
		if isFalsy(v) {
			if t.Else != nil {
				return s.run(t.Else)
			}
			return nil
		}
		return s.run(t.Then)
	case *BlockNode:
		for _, c := range t.Nodes {
			if err := s.run(c); err != nil {
				return err
			}
		}
	case *ForeachNode:
		return s.runForeach(t)
	case *MacroNode:
		return s.runMacro(t)
	default:
		return fmt.Errorf("unhandled node type: %T", n)
	}
	return nil
}

func (s *state) runForeach(n *ForeachNode) error {
	v, err := n.Source.eval(s)
	if err != nil {
		return err
	}
	seq, ok := iterate(v)
	if !ok {
		return &Error{
			Kind:    ErrNotIterable,
			Message: "cannot iterate on " + describe(v),
			Source:  n.Source.Source,
		}
	}

	prev := s.current
	s.stack = append(s.stack, prev)
	defer func() {
		s.stack = s.stack[:len(s.stack)-1]
		s.current = prev
	}()

	var bodyErr error
	seq(func(el any) bool {
		s.current = el
		bodyErr = s.run(n.Body)
		return bodyErr == nil
	})
	return bodyErr
}

func (s *state) runMacro(n *MacroNode) error {
	args := make([]any, 0, len(n.Args))
	for _, a := range n.Args {
		if v, ok := a.(*VarNode); ok {
			args = append(args, s.resolve(v.Name))
			continue
		}
		out, err := s.capture(a)
		if err != nil {
			return err
		}
		args = append(args, out)
	}

	res, err := s.call(n.Name, args)
	if err != nil {
		return &Error{Kind: ErrMacroCall, Macro: n.Name, Args: joinArgs(args), Err: err}
	}
	s.buf.WriteString(toString(res))
	return nil
}

// capture renders n into a fresh buffer and returns the text.
func (s *state) capture(n Node) (string, error) {
	old := s.buf
	s.buf = &strings.Builder{}
	defer func() { s.buf = old }()
	if err := s.run(n); err != nil {
		return "", err
	}
	return s.buf.String(), nil
}

func (s *state) call(name string, args []any) (res any, err error) {
	fn, ok := s.macros[name]
	if !ok || fn == nil {
		return nil, ErrMacroNotFound
	}
	defer func() {
		if r := recover(); r != nil {
			res, err = nil, fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(s.resolve, args...)
}

// joinArgs renders macro arguments for error messages.
func joinArgs(args []any) (out string) {
	defer func() {
		if recover() != nil {
			out = "???"
		}
	}()
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = toString(a)
	}
	return strings.Join(parts, ",")
}
