// Package templates holds the built-in starter templates. Each is a YAML
// file embedded in the binary declaring its arguments, output format and
// body; a directory set with SetTemplateDir can override them by name.
package templates

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/slplayer/sltemplate/pkg/outcheck"
	"github.com/slplayer/sltemplate/pkg/sltmpl"
	v "github.com/slplayer/sltemplate/pkg/validator"
	"gopkg.in/yaml.v3"
)

type Arguments struct {
	// Optional maps argument names to default values, which are themselves
	// templates rendered against the other arguments.
	Optional map[string]sltmpl.TemplateString `yaml:"optional,omitempty"`
	Required []string                         `yaml:"required,omitempty"`
}

func (a *Arguments) Validate() error {
	return v.All(
		v.MapDict(a.Optional, func(key string, value sltmpl.TemplateString) error {
			return v.All(
				v.Identifier(key, "optional argument"),
				value.Validate(),
			)
		}),
		v.NoDuplicates(a.Required, "required arguments"),
		func() error {
			for _, r := range a.Required {
				if err := v.Identifier(r, "required argument"); err != nil {
					return err
				}
				if _, ok := a.Optional[r]; ok {
					return fmt.Errorf("argument %q is both required and optional", r)
				}
			}
			return nil
		}(),
	)
}

type Template struct {
	Name        string                `yaml:"name"`
	Description string                `yaml:"description,omitempty"`
	Format      string                `yaml:"format,omitempty"`
	Arguments   Arguments             `yaml:"arguments,omitempty"`
	Body        sltmpl.TemplateString `yaml:"body"`
}

func (t Template) Validate() error {
	return v.All(
		v.NotEmpty(t.Name, "name"),
		v.NotEmpty(string(t.Body), "body"),
		v.MatchesAllowed(t.Format, append([]string{""}, outcheck.Formats()...), "format"),
		t.Arguments.Validate(),
		t.Body.Validate(),
	)
}

// Execute renders the body with params. Missing optional arguments take
// their defaults; a missing required argument is an error.
func (t Template) Execute(params map[string]any, env *sltmpl.Env) (string, error) {
	for _, r := range t.Arguments.Required {
		if _, ok := params[r]; !ok {
			return "", fmt.Errorf("template %q: missing required argument %q", t.Name, r)
		}
	}
	args := &arguments{params: params, template: &t, env: env, resolving: map[string]bool{}}
	out, err := t.Body.RenderEnv(args, env)
	if err == nil {
		err = args.err
	}
	if err != nil {
		return "", fmt.Errorf("template %q: %w", t.Name, err)
	}
	if err := outcheck.Check(t.Format, out); err != nil {
		return "", fmt.Errorf("template %q: %w", t.Name, err)
	}
	return out, nil
}

// arguments is the render context of a starter template. Defaults are
// rendered on first lookup, so they may refer to each other.
type arguments struct {
	params    map[string]any
	template  *Template
	env       *sltmpl.Env
	resolving map[string]bool
	cache     map[string]any
	err       error
}

func (a *arguments) Lookup(key string) (any, bool) {
	if val, ok := a.params[key]; ok {
		return val, true
	}
	if val, ok := a.cache[key]; ok {
		return val, true
	}
	def, ok := a.template.Arguments.Optional[key]
	if !ok {
		return nil, false
	}
	if a.resolving[key] {
		if a.err == nil {
			a.err = fmt.Errorf("default of %q refers to itself", key)
		}
		return nil, true
	}
	a.resolving[key] = true
	defer delete(a.resolving, key)

	val, err := def.RenderEnv(a, a.env)
	if err != nil {
		if a.err == nil {
			a.err = fmt.Errorf("rendering default of %q: %w", key, err)
		}
		return nil, true
	}
	if a.cache == nil {
		a.cache = map[string]any{}
	}
	a.cache[key] = val
	return val, true
}

//go:embed *.yaml
var Files embed.FS

var (
	mu          sync.RWMutex
	builtins    = map[string]Template{}
	templateDir string
)

// SetTemplateDir makes Get look for NAME.yaml in dir before the built-in
// set. An empty dir disables overrides.
func SetTemplateDir(dir string) {
	mu.Lock()
	defer mu.Unlock()
	templateDir = dir
}

func Get(name string) (Template, error) {
	mu.RLock()
	dir := templateDir
	mu.RUnlock()

	if dir != "" {
		tpl, err := loadFile(os.DirFS(dir), name+".yaml")
		if err == nil {
			slog.Debug("using template override", "name", name, "dir", dir)
			return tpl, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return Template{}, err
		}
	}

	if tpl, ok := builtins[name]; ok {
		return tpl, nil
	}
	return Template{}, sltmpl.ErrTemplateNotFound{Name: name}
}

// Names lists the built-in templates and, when set, those in the override
// directory.
func Names() []string {
	names := map[string]struct{}{}
	for name := range builtins {
		names[name] = struct{}{}
	}
	mu.RLock()
	dir := templateDir
	mu.RUnlock()
	if dir != "" {
		matches, _ := filepath.Glob(filepath.Join(dir, "*.yaml"))
		for _, m := range matches {
			names[strings.TrimSuffix(filepath.Base(m), ".yaml")] = struct{}{}
		}
	}
	return slices.Sorted(maps.Keys(names))
}

func loadFile(fsys fs.FS, file string) (Template, error) {
	content, err := fs.ReadFile(fsys, file)
	if err != nil {
		return Template{}, err
	}
	var tpl Template
	dec := yaml.NewDecoder(strings.NewReader(string(content)))
	dec.KnownFields(true)
	if err := dec.Decode(&tpl); err != nil {
		return Template{}, fmt.Errorf("failed to decode template %q: %w", file, err)
	}
	if err := tpl.Validate(); err != nil {
		return Template{}, fmt.Errorf("invalid template %q: %w", file, err)
	}
	return tpl, nil
}

func init() {
	entries, err := Files.ReadDir(".")
	if err != nil {
		panic(err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		tpl, err := loadFile(Files, entry.Name())
		if err != nil {
			panic(err)
		}
		builtins[strings.TrimSuffix(entry.Name(), ".yaml")] = tpl
	}
}
