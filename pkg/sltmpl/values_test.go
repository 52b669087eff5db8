package sltmpl

import (
	"iter"
	"math"
	"testing"
)

func TestIsFalsy(t *testing.T) {
	var nilMap map[string]any
	cases := []struct {
		v    any
		want bool
	}{
		{nil, true},
		{false, true},
		{nilMap, true},
		{(*int)(nil), true},
		{true, false},
		{0, false},
		{"", false},
		{[]int{}, false},
	}
	for _, tc := range cases {
		if got := isFalsy(tc.v); got != tc.want {
			t.Fatalf("isFalsy(%#v) = %v, want %v", tc.v, got, tc.want)
		}
	}
}

func TestFormatFloat(t *testing.T) {
	cases := map[float64]string{
		3:            "3",
		0.25:         "0.25",
		-1.5:         "-1.5",
		1e21:         "1e+21",
		1e-7:         "1e-07",
		math.Inf(1):  "Infinity",
		math.Inf(-1): "-Infinity",
	}
	for f, want := range cases {
		if got := formatFloat(f); got != want {
			t.Fatalf("formatFloat(%v) = %q, want %q", f, got, want)
		}
	}
	if got := formatFloat(math.NaN()); got != "NaN" {
		t.Fatalf("NaN: got %q", got)
	}
}

func TestBinaryOps(t *testing.T) {
	cases := []struct {
		op   string
		a, b any
		want any
	}{
		{"+", 1, 2, int64(3)},
		{"+", "1", 2, "12"},
		{"+", nil, "x", "nullx"},
		{"-", "10", 4, int64(6)},
		{"*", 1.5, 2, 3.0},
		{"/", 1, 4, 0.25},
		{"<", 2, 10, true},
		{"<", "2", "10", false},
		{">=", 2.0, 2, true},
		{"==", int64(2), 2.0, true},
		{"==", "a", "a", true},
		{"==", nil, nil, true},
		{"==", nil, false, false},
		{"==", []int{1}, []int{1}, true},
		{"!=", "a", "b", true},
		{"&&", false, "x", false},
		{"&&", 0, "x", "x"},
		{"||", nil, 5, 5},
		{"||", "a", 5, "a"},
	}
	for _, tc := range cases {
		got, err := binaryOps[tc.op](tc.a, tc.b)
		if err != nil {
			t.Fatalf("%v %s %v: %v", tc.a, tc.op, tc.b, err)
		}
		if !equal(got, tc.want) {
			t.Fatalf("%v %s %v = %#v, want %#v", tc.a, tc.op, tc.b, got, tc.want)
		}
	}
}

func TestBinaryOpErrors(t *testing.T) {
	cases := []struct {
		op   string
		a, b any
	}{
		{"-", "x", 1},
		{"*", nil, 2},
		{"/", true, 1},
		{">", 1, "a"},
		{"<", nil, 1},
	}
	for _, tc := range cases {
		if _, err := binaryOps[tc.op](tc.a, tc.b); err == nil {
			t.Fatalf("%v %s %v: expected error", tc.a, tc.op, tc.b)
		}
	}
}

func TestIntegerOverflowPromotesToFloat(t *testing.T) {
	cases := []struct {
		op   string
		a, b int64
		want any
	}{
		{"+", math.MaxInt64, 1, float64(math.MaxInt64) + 1},
		{"-", math.MinInt64, 1, float64(math.MinInt64) - 1},
		{"*", math.MaxInt64, 2, float64(math.MaxInt64) * 2},
		{"*", -1, math.MinInt64, -float64(math.MinInt64)},
		{"+", math.MaxInt64 - 1, 1, int64(math.MaxInt64)},
		{"-", -5, math.MaxInt64 - 10, int64(math.MinInt64 + 6)},
		{"*", -3, 4, int64(-12)},
	}
	for _, tc := range cases {
		got, err := binaryOps[tc.op](tc.a, tc.b)
		if err != nil {
			t.Fatalf("%d %s %d: %v", tc.a, tc.op, tc.b, err)
		}
		if got != tc.want {
			t.Fatalf("%d %s %d = %#v, want %#v", tc.a, tc.op, tc.b, got, tc.want)
		}
	}

	if got, _ := negate(int64(math.MinInt64)); got != -float64(math.MinInt64) {
		t.Fatalf("negate(MinInt64) = %#v", got)
	}

	out, err := MustParse("::(9223372036854775807 + 1)::").Render(nil, nil)
	if err != nil || out != "9223372036854776000" {
		t.Fatalf("got %q, %v", out, err)
	}
}

type countdown int

func (c countdown) Iterate() iter.Seq[any] {
	return func(yield func(any) bool) {
		for i := int(c); i > 0; i-- {
			if !yield(i) {
				return
			}
		}
	}
}

func TestIterateIterable(t *testing.T) {
	tpl := MustParse("::foreach c::::__current__::::end::")
	out, err := tpl.Render(Context{"c": countdown(3)}, nil)
	if err != nil {
		t.Fatalf("render error: %v", err)
	}
	if out != "321" {
		t.Fatalf("got %q", out)
	}
}

func TestLookupFieldMaps(t *testing.T) {
	type key string
	m := map[key]int{"a": 1}
	if v, ok := lookupField(m, "a"); !ok || v != 1 {
		t.Fatalf("named string key: %v %v", v, ok)
	}
	if _, ok := lookupField(map[int]int{1: 1}, "1"); ok {
		t.Fatalf("non-string keys should not resolve")
	}
	if _, ok := lookupField([]int{1}, "5"); ok {
		t.Fatalf("out of range index should not resolve")
	}
}
