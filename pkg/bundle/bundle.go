// Package bundle describes a set of templates, their data and outputs in a
// single YAML file and renders them together.
package bundle

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/slplayer/sltemplate/pkg/netcache"
	"github.com/slplayer/sltemplate/pkg/sltmpl"
	v "github.com/slplayer/sltemplate/pkg/validator"
	"gopkg.in/yaml.v3"
)

type Format string

const (
	FormatText       Format = ""
	FormatJSON       Format = "json"
	FormatYAML       Format = "yaml"
	FormatDockerfile Format = "dockerfile"
)

// Entry is one template of a bundle.
type Entry struct {
	Name string `yaml:"name"`
	// Source is a path relative to the bundle file, or an http(s) URL.
	Source string                `yaml:"source,omitempty"`
	Inline sltmpl.TemplateString `yaml:"inline,omitempty"`
	// Data is a YAML or JSON file used as the render context.
	Data   string `yaml:"data,omitempty"`
	Output string `yaml:"output,omitempty"`
	Format Format `yaml:"format,omitempty"`
}

func (e Entry) Validate() error {
	return v.All(
		v.NotEmpty(e.Name, "template.name"),
		v.HasNoTags(e.Name, "template.name"),
		v.ExactlyOne("template "+e.Name, map[string]string{
			"source": e.Source,
			"inline": string(e.Inline),
		}),
		v.MatchesAllowed(e.Format, []Format{FormatText, FormatJSON, FormatYAML, FormatDockerfile}, "template.format"),
		v.HasNoTags(e.Output, "template.output"),
		e.Inline.Validate(),
	)
}

type Bundle struct {
	Name      string         `yaml:"name"`
	Globals   map[string]any `yaml:"globals,omitempty"`
	Macros    string         `yaml:"macros,omitempty"`
	Templates []Entry        `yaml:"templates"`

	// Dir is the directory relative paths are resolved against.
	Dir string `yaml:"-"`
	// Cache serves http(s) sources. A cache under the user cache directory
	// is created on first use when nil.
	Cache *netcache.Cache `yaml:"-"`

	cacheMu sync.Mutex
}

func (b *Bundle) Validate() error {
	names := make([]string, len(b.Templates))
	for i, e := range b.Templates {
		names[i] = e.Name
	}
	return v.All(
		v.NotEmpty(b.Name, "name"),
		v.MapDict(b.Globals, func(key string, _ any) error {
			return v.Identifier(key, "globals key")
		}),
		v.NoDuplicates(names, "templates"),
		v.Each(b.Templates),
	)
}

// Load reads and validates the bundle file at path.
func Load(path string) (*Bundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading bundle: %w", err)
	}
	b, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	b.Dir = filepath.Dir(path)
	return b, nil
}

// Parse decodes and validates a bundle document. Unknown keys are errors.
func Parse(data []byte) (*Bundle, error) {
	var b Bundle
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&b); err != nil {
		return nil, fmt.Errorf("decoding bundle: %w", err)
	}
	if err := b.Validate(); err != nil {
		return nil, fmt.Errorf("invalid bundle: %w", err)
	}
	return &b, nil
}

// Names returns the template names in file order.
func (b *Bundle) Names() []string {
	names := make([]string, len(b.Templates))
	for i, e := range b.Templates {
		names[i] = e.Name
	}
	return names
}

// Entry returns the named template entry.
func (b *Bundle) Entry(name string) (Entry, bool) {
	for _, e := range b.Templates {
		if e.Name == name {
			return e, true
		}
	}
	return Entry{}, false
}

func (b *Bundle) cache() (*netcache.Cache, error) {
	b.cacheMu.Lock()
	defer b.cacheMu.Unlock()
	if b.Cache != nil {
		return b.Cache, nil
	}
	dir, err := os.UserCacheDir()
	if err != nil {
		return nil, fmt.Errorf("locating cache directory: %w", err)
	}
	b.Cache = netcache.New(filepath.Join(dir, "sltmpl"))
	return b.Cache, nil
}

// read returns the contents of a bundle-relative path or URL.
func (b *Bundle) read(ctx context.Context, ref string) ([]byte, error) {
	if netcache.IsURL(ref) {
		c, err := b.cache()
		if err != nil {
			return nil, err
		}
		return c.ReadAll(ctx, ref)
	}
	if !filepath.IsAbs(ref) {
		ref = filepath.Join(b.Dir, ref)
	}
	return os.ReadFile(ref)
}
