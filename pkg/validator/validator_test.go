package validator

import (
	"errors"
	"strings"
	"testing"
)

type item struct{ name string }

func (i item) Validate() error { return NotEmpty(i.name, "name") }

func TestAllReturnsFirst(t *testing.T) {
	first := errors.New("first")
	if err := All(nil, first, errors.New("second")); err != first {
		t.Fatalf("got %v", err)
	}
	if err := All(nil, nil); err != nil {
		t.Fatalf("got %v", err)
	}
}

func TestEach(t *testing.T) {
	err := Each([]item{{"a"}, {""}})
	if err == nil || !strings.Contains(err.Error(), "item 1") {
		t.Fatalf("got %v", err)
	}
}

func TestMapDictOrder(t *testing.T) {
	var seen []string
	_ = MapDict(map[string]int{"b": 2, "a": 1, "c": 3}, func(k string, _ int) error {
		seen = append(seen, k)
		return nil
	})
	if strings.Join(seen, "") != "abc" {
		t.Fatalf("got %v", seen)
	}
}

func TestCombinators(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantErr bool
	}{
		{"duplicates", NoDuplicates([]string{"a", "b", "a"}, "names"), true},
		{"no duplicates", NoDuplicates([]string{"a", "b"}, "names"), false},
		{"allowed", MatchesAllowed("json", []string{"json", "yaml"}, "format"), false},
		{"not allowed", MatchesAllowed("xml", []string{"json", "yaml"}, "format"), true},
		{"exactly one", ExactlyOne("template", map[string]string{"source": "a", "inline": ""}), false},
		{"none set", ExactlyOne("template", map[string]string{"source": "", "inline": ""}), true},
		{"both set", ExactlyOne("template", map[string]string{"source": "a", "inline": "b"}), true},
		{"identifier", Identifier("site_name", "global"), false},
		{"bad identifier", Identifier("site-name", "global"), true},
		{"plain", HasNoTags("out/index.html", "output"), false},
		{"tag", HasNoTags("out/::name::.html", "output"), true},
		{"macro", HasNoTags("$$f()", "output"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if (tt.err != nil) != tt.wantErr {
				t.Errorf("err = %v, wantErr %v", tt.err, tt.wantErr)
			}
		})
	}
}
