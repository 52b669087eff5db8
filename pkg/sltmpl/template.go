package sltmpl

import (
	"io"
	"strings"
)

// Template is a parsed template. It holds no render state and may be
// rendered any number of times, concurrently.
type Template struct {
	src  string
	root Node
}

// Source returns the text the template was parsed from.
func (t *Template) Source() string { return t.src }

// Root returns the top-level AST node.
func (t *Template) Root() Node { return t.root }

// Render renders the template against ctx using DefaultGlobals and the given
// macro table, which may be nil.
func (t *Template) Render(ctx any, macros Macros) (string, error) {
	return t.RenderEnv(ctx, &Env{Macros: macros})
}

// RenderEnv renders the template against ctx with explicit globals and
// macros. On error the partial output is discarded.
func (t *Template) RenderEnv(ctx any, env *Env) (string, error) {
	var buf strings.Builder
	s := &state{
		buf:     &buf,
		current: ctx,
		globals: env.globals(),
		macros:  env.macros(),
	}
	if err := s.run(t.root); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Execute renders the template and writes the result to w. Nothing is
// written if rendering fails.
func (t *Template) Execute(w io.Writer, ctx any, env *Env) error {
	out, err := t.RenderEnv(ctx, env)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, out)
	return err
}
