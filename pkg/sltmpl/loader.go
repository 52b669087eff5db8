package sltmpl

import (
	"errors"
	"fmt"
	"io/fs"
)

// Loader resolves a template name to its source text.
type Loader interface {
	Load(name string) (string, error)
}

type MemoryLoader map[string]string

func (m MemoryLoader) Load(name string) (string, error) {
	if s, ok := m[name]; ok {
		return s, nil
	}
	return "", ErrTemplateNotFound{name}
}

// DirLoader loads templates from a file system, usually os.DirFS.
type DirLoader struct {
	FS fs.FS
}

func (d DirLoader) Load(name string) (string, error) {
	b, err := fs.ReadFile(d.FS, name)
	if errors.Is(err, fs.ErrNotExist) {
		return "", ErrTemplateNotFound{name}
	}
	if err != nil {
		return "", fmt.Errorf("reading template %q: %w", name, err)
	}
	return string(b), nil
}

// ParseFrom loads and parses the named template.
func ParseFrom(l Loader, name string) (*Template, error) {
	src, err := l.Load(name)
	if err != nil {
		return nil, err
	}
	t, err := Parse(src)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return t, nil
}

type ErrTemplateNotFound struct{ Name string }

func (e ErrTemplateNotFound) Error() string { return "template not found: " + e.Name }
