package sltmpl

import (
	"maps"
	"slices"
	"sync"
)

// Resolvable is implemented by context values that answer name lookups
// themselves instead of going through reflection.
type Resolvable interface {
	Lookup(key string) (any, bool)
}

// Context is the usual render context: a string-keyed map of values.
type Context map[string]any

func (c Context) Lookup(key string) (any, bool) {
	v, ok := c[key]
	return v, ok
}

// Resolver looks a name up through the render's context chain. Macros
// receive one as their first argument.
type Resolver func(name string) any

// Macro is a function callable from a template as $$name(args).
type Macro func(resolve Resolver, args ...any) (any, error)

// Macros maps macro names to implementations. A table is supplied per
// render and never stored on the Template.
type Macros map[string]Macro

// Globals is the last place names are resolved. Populate it before
// rendering starts; renders only read from it.
type Globals struct {
	mu   sync.RWMutex
	vals map[string]any
}

// DefaultGlobals is the process-wide table used when Env.Globals is nil.
var DefaultGlobals = NewGlobals()

func NewGlobals() *Globals {
	return &Globals{vals: map[string]any{}}
}

func (g *Globals) Set(key string, val any) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.vals[key] = val
}

// SetAll copies every entry of m into g.
func (g *Globals) SetAll(m map[string]any) {
	g.mu.Lock()
	defer g.mu.Unlock()
	maps.Copy(g.vals, m)
}

func (g *Globals) Delete(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.vals, key)
}

func (g *Globals) Lookup(key string) (any, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	v, ok := g.vals[key]
	return v, ok
}

// Keys returns the global names in sorted order.
func (g *Globals) Keys() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return slices.Sorted(maps.Keys(g.vals))
}

// Env carries the per-render configuration.
type Env struct {
	Globals *Globals
	Macros  Macros
}

func (e *Env) globals() *Globals {
	if e == nil || e.Globals == nil {
		return DefaultGlobals
	}
	return e.Globals
}

func (e *Env) macros() Macros {
	if e == nil {
		return nil
	}
	return e.Macros
}
