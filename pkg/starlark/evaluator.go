package starlark

import (
	"fmt"
	"maps"
	"slices"

	"github.com/slplayer/sltemplate/pkg/sltmpl"
	"go.starlark.net/starlark"
)

// Script holds a Starlark module whose top-level functions are exposed to
// templates as macros.
type Script struct {
	thread   *starlark.Thread
	builtins starlark.StringDict
	globals  starlark.StringDict
}

// NewScript creates an empty script environment.
func NewScript() *Script {
	return &Script{
		thread:   &starlark.Thread{Name: "sltmpl"},
		builtins: CreateBuiltins(),
		globals:  make(starlark.StringDict),
	}
}

// SetGlobal makes a Go value visible to the script under name.
func (s *Script) SetGlobal(name string, value any) {
	s.globals[name] = ToStarlark(value)
}

// SetGlobals loads every entry of a render context into the script.
func (s *Script) SetGlobals(ctx map[string]any) {
	for key, value := range ctx {
		s.SetGlobal(key, value)
	}
}

func (s *Script) predeclared() starlark.StringDict {
	predeclared := make(starlark.StringDict, len(s.builtins)+len(s.globals))
	maps.Copy(predeclared, s.builtins)
	maps.Copy(predeclared, s.globals)
	return predeclared
}

// Eval evaluates a Starlark expression and returns the result as a Go value.
func (s *Script) Eval(expr string) (any, error) {
	val, err := starlark.Eval(s.thread, "<eval>", expr, s.predeclared())
	if err != nil {
		return nil, fmt.Errorf("starlark evaluation error: %w", err)
	}
	return FromStarlark(val), nil
}

// ExecFile executes a Starlark file and merges its globals into the script.
// src may be nil, in which case filename is read from disk.
func (s *Script) ExecFile(filename string, src any) (starlark.StringDict, error) {
	globals, err := starlark.ExecFile(s.thread, filename, src, s.predeclared())
	if err != nil {
		return nil, fmt.Errorf("starlark execution error: %w", err)
	}
	globals.Freeze()
	for k, v := range globals {
		s.globals[k] = v
	}
	return globals, nil
}

// ExecString executes a Starlark script from a string.
func (s *Script) ExecString(script string) (starlark.StringDict, error) {
	return s.ExecFile("<script>", script)
}

// GetGlobal retrieves a script global as a Go value.
func (s *Script) GetGlobal(name string) (any, bool) {
	if val, ok := s.globals[name]; ok {
		return FromStarlark(val), true
	}
	return nil, false
}

// MacroNames lists the script globals that Macros exposes, sorted.
func (s *Script) MacroNames() []string {
	var names []string
	for _, k := range slices.Sorted(maps.Keys(s.globals)) {
		if _, ok := s.globals[k].(starlark.Callable); ok && isExportableKey(k) {
			names = append(names, k)
		}
	}
	return names
}

// Macros exposes every callable script global as a template macro. Each call
// runs on its own thread, so the table is safe to share between renders.
func (s *Script) Macros() sltmpl.Macros {
	out := sltmpl.Macros{}
	for _, name := range s.MacroNames() {
		fn := s.globals[name].(starlark.Callable)
		out[name] = func(resolve sltmpl.Resolver, args ...any) (any, error) {
			thread := &starlark.Thread{Name: "macro " + name}
			thread.SetLocal(resolverKey, resolve)
			sargs := make(starlark.Tuple, len(args))
			for i, a := range args {
				sargs[i] = ToStarlark(a)
			}
			v, err := starlark.Call(thread, fn, sargs, nil)
			if err != nil {
				return nil, err
			}
			return FromStarlark(v), nil
		}
	}
	return out
}

// LoadMacros executes the Starlark file at filename and returns its
// functions as macros.
func LoadMacros(filename string) (sltmpl.Macros, error) {
	s := NewScript()
	if _, err := s.ExecFile(filename, nil); err != nil {
		return nil, err
	}
	return s.Macros(), nil
}
