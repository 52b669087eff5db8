// Package validator holds small combinators for validating decoded
// configuration. Each returns the first problem found, or nil.
package validator

import (
	"fmt"
	"maps"
	"regexp"
	"slices"
	"strings"
)

func All(errors ...error) error {
	for _, err := range errors {
		if err != nil {
			return err
		}
	}
	return nil
}

type Validatable interface {
	Validate() error
}

func Each[T Validatable](items []T) error {
	for i, item := range items {
		if err := item.Validate(); err != nil {
			return fmt.Errorf("item %d: %w", i, err)
		}
	}
	return nil
}

// MapDict applies f to every entry of items in key order.
func MapDict[T any](items map[string]T, f func(string, T) error) error {
	for _, key := range slices.Sorted(maps.Keys(items)) {
		if err := f(key, items[key]); err != nil {
			return err
		}
	}
	return nil
}

func NotEmpty(field, description string) error {
	if field == "" {
		return fmt.Errorf("%s must not be empty", description)
	}
	return nil
}

func NoDuplicates[T comparable](slice []T, description string) error {
	seen := make(map[T]struct{})
	for _, v := range slice {
		if _, ok := seen[v]; ok {
			return fmt.Errorf("%s contains duplicate value: %v", description, v)
		}
		seen[v] = struct{}{}
	}
	return nil
}

func MatchesAllowed[T comparable](field T, allowed []T, description string) error {
	if !slices.Contains(allowed, field) {
		return fmt.Errorf("%s must be one of %v, got %v", description, allowed, field)
	}
	return nil
}

// ExactlyOne requires exactly one of the named string fields to be set.
func ExactlyOne(description string, fields map[string]string) error {
	var set []string
	for _, name := range slices.Sorted(maps.Keys(fields)) {
		if fields[name] != "" {
			set = append(set, name)
		}
	}
	if len(set) != 1 {
		names := slices.Sorted(maps.Keys(fields))
		return fmt.Errorf("%s must set exactly one of %s, got %d", description, strings.Join(names, ", "), len(set))
	}
	return nil
}

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Identifier requires a name a template can reference in a ::name:: tag.
func Identifier(field, description string) error {
	if !identifier.MatchString(field) {
		return fmt.Errorf("%s %q is not a valid identifier", description, field)
	}
	return nil
}

// HasNoTags rejects fields that contain template markup, for values that are
// used verbatim and never rendered.
func HasNoTags(field string, description string) error {
	if field != "" && (strings.Contains(field, "::") || strings.Contains(field, "$$")) {
		return fmt.Errorf("%s must not contain template tags", description)
	}
	return nil
}
