package bundle

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/slplayer/sltemplate/pkg/outcheck"
	"github.com/slplayer/sltemplate/pkg/sltmpl"
	"github.com/slplayer/sltemplate/pkg/starlark"
	"gopkg.in/yaml.v3"
)

// Result is the rendered text of one entry.
type Result struct {
	Name   string
	Output string
	Format Format
	Text   string
}

// Env builds the globals and macro table shared by every entry.
func (b *Bundle) Env(ctx context.Context) (*sltmpl.Env, error) {
	env := &sltmpl.Env{Globals: sltmpl.NewGlobals()}
	env.Globals.SetAll(b.Globals)
	if b.Macros == "" {
		return env, nil
	}
	src, err := b.read(ctx, b.Macros)
	if err != nil {
		return nil, fmt.Errorf("reading macros: %w", err)
	}
	script := starlark.NewScript()
	script.SetGlobals(b.Globals)
	if _, err := script.ExecFile(b.Macros, src); err != nil {
		return nil, fmt.Errorf("loading macros: %w", err)
	}
	env.Macros = script.Macros()
	slog.Debug("loaded macros", "file", b.Macros, "names", script.MacroNames())
	return env, nil
}

// Render renders the named entry against data merged over the entry's own
// data file. data may be nil.
func (b *Bundle) Render(ctx context.Context, name string, data map[string]any) (*Result, error) {
	e, ok := b.Entry(name)
	if !ok {
		return nil, sltmpl.ErrTemplateNotFound{Name: name}
	}
	env, err := b.Env(ctx)
	if err != nil {
		return nil, err
	}
	return b.render(ctx, env, e, data)
}

// RenderAll renders every entry with one shared environment. It stops at the
// first failure.
func (b *Bundle) RenderAll(ctx context.Context) ([]Result, error) {
	env, err := b.Env(ctx)
	if err != nil {
		return nil, err
	}
	results := make([]Result, 0, len(b.Templates))
	for _, e := range b.Templates {
		r, err := b.render(ctx, env, e, nil)
		if err != nil {
			return nil, err
		}
		results = append(results, *r)
	}
	return results, nil
}

func (b *Bundle) render(ctx context.Context, env *sltmpl.Env, e Entry, extra map[string]any) (*Result, error) {
	src := string(e.Inline)
	if e.Source != "" {
		raw, err := b.read(ctx, e.Source)
		if err != nil {
			return nil, fmt.Errorf("template %s: reading source: %w", e.Name, err)
		}
		src = string(raw)
	}
	tpl, err := sltmpl.Parse(src)
	if err != nil {
		return nil, fmt.Errorf("template %s: %w", e.Name, err)
	}

	data := sltmpl.Context{}
	if e.Data != "" {
		raw, err := b.read(ctx, e.Data)
		if err != nil {
			return nil, fmt.Errorf("template %s: reading data: %w", e.Name, err)
		}
		if err := yaml.Unmarshal(raw, &data); err != nil {
			return nil, fmt.Errorf("template %s: decoding data: %w", e.Name, err)
		}
		// A null document decodes to a nil map.
		if data == nil {
			data = sltmpl.Context{}
		}
	}
	for k, val := range extra {
		data[k] = val
	}

	text, err := tpl.RenderEnv(data, env)
	if err != nil {
		return nil, fmt.Errorf("template %s: %w", e.Name, err)
	}
	if err := outcheck.Check(string(e.Format), text); err != nil {
		return nil, fmt.Errorf("template %s: %w", e.Name, err)
	}
	slog.Debug("rendered", "template", e.Name, "bytes", len(text))
	return &Result{Name: e.Name, Output: e.Output, Format: e.Format, Text: text}, nil
}

// Write stores results that name an output file, relative to the bundle
// directory or to dir when it is not empty. It returns the paths written.
func (b *Bundle) Write(results []Result, dir string) ([]string, error) {
	if dir == "" {
		dir = b.Dir
	}
	var written []string
	for _, r := range results {
		if r.Output == "" {
			continue
		}
		path := r.Output
		if !filepath.IsAbs(path) {
			path = filepath.Join(dir, path)
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return written, fmt.Errorf("creating output directory: %w", err)
		}
		if err := os.WriteFile(path, []byte(r.Text), 0o644); err != nil {
			return written, fmt.Errorf("writing %s: %w", r.Name, err)
		}
		written = append(written, path)
	}
	return written, nil
}
