// Package outcheck verifies that rendered text is well formed for the format
// it is meant to be, before it is written anywhere.
package outcheck

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/moby/buildkit/frontend/dockerfile/parser"
	"gopkg.in/yaml.v3"
)

type checker func(text string) error

var checkers = map[string]checker{
	"json":       checkJSON,
	"yaml":       checkYAML,
	"dockerfile": checkDockerfile,
}

// Formats returns the names accepted by Check, sorted.
func Formats() []string {
	return slices.Sorted(maps.Keys(checkers))
}

// Check validates text as format. An empty format accepts anything.
func Check(format, text string) error {
	if format == "" {
		return nil
	}
	check, ok := checkers[strings.ToLower(format)]
	if !ok {
		return fmt.Errorf("unknown output format %q (known: %s)", format, strings.Join(Formats(), ", "))
	}
	if err := check(text); err != nil {
		return fmt.Errorf("output is not valid %s: %w", format, err)
	}
	return nil
}

func checkJSON(text string) error {
	dec := json.NewDecoder(strings.NewReader(text))
	var v any
	if err := dec.Decode(&v); err != nil {
		return err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return errors.New("trailing data after JSON value")
	}
	return nil
}

// checkYAML accepts multi-document streams.
func checkYAML(text string) error {
	dec := yaml.NewDecoder(strings.NewReader(text))
	for {
		var doc yaml.Node
		err := dec.Decode(&doc)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func checkDockerfile(text string) error {
	res, err := parser.Parse(strings.NewReader(text))
	if err != nil {
		return err
	}
	if len(res.AST.Children) == 0 {
		return errors.New("no instructions")
	}
	first := strings.ToLower(res.AST.Children[0].Value)
	if first != "from" && first != "arg" {
		return fmt.Errorf("first instruction must be FROM or ARG, got %s", strings.ToUpper(first))
	}
	return nil
}
