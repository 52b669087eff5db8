package sltmpl

import (
	"fmt"
	"iter"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

// Values are plain Go values: nil, bool, numbers, strings, slices, maps,
// structs and pointers to them. Types implementing Resolvable control their
// own field lookup and types implementing Iterable their own iteration.

// Iterable can be implemented by values used as a foreach source.
type Iterable interface {
	Iterate() iter.Seq[any]
}

// isNil treats nil interfaces and nil pointers, maps and slices as absent.
func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}

// isFalsy is the truth rule of if, ! && and ||: only absent values and
// false are falsy.
func isFalsy(v any) bool {
	if isNil(v) {
		return true
	}
	b, ok := v.(bool)
	return ok && !b
}

// lookupField returns the named field of v, or false if v has no such field.
func lookupField(v any, name string) (any, bool) {
	if isNil(v) {
		return nil, false
	}
	switch t := v.(type) {
	case Resolvable:
		return t.Lookup(name)
	case map[string]any:
		f, ok := t[name]
		return f, ok
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, false
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, false
		}
		mv := rv.MapIndex(reflect.ValueOf(name).Convert(rv.Type().Key()))
		if !mv.IsValid() {
			return nil, false
		}
		return mv.Interface(), true
	case reflect.Struct:
		return structField(rv, name)
	case reflect.Slice, reflect.Array:
		i, err := strconv.Atoi(name)
		if err != nil || i < 0 || i >= rv.Len() {
			return nil, false
		}
		return rv.Index(i).Interface(), true
	}
	return nil, false
}

// structField matches exported fields by name, then by yaml or json tag,
// then case-insensitively.
func structField(rv reflect.Value, name string) (any, bool) {
	rt := rv.Type()
	if f, ok := rt.FieldByName(name); ok && f.IsExported() {
		return rv.FieldByIndex(f.Index).Interface(), true
	}
	for i := 0; i < rt.NumField(); i++ {
		f := rt.Field(i)
		if !f.IsExported() {
			continue
		}
		for _, key := range []string{"yaml", "json"} {
			tag, _, _ := strings.Cut(f.Tag.Get(key), ",")
			if tag == name {
				return rv.Field(i).Interface(), true
			}
		}
	}
	for i := 0; i < rt.NumField(); i++ {
		f := rt.Field(i)
		if f.IsExported() && strings.EqualFold(f.Name, name) {
			return rv.Field(i).Interface(), true
		}
	}
	return nil, false
}

// toString renders a value the way templates print it.
func toString(v any) string {
	var b strings.Builder
	writeValue(&b, v)
	return b.String()
}

func writeValue(b *strings.Builder, v any) {
	if isNil(v) {
		b.WriteString("null")
		return
	}
	switch t := v.(type) {
	case string:
		b.WriteString(t)
		return
	case bool:
		b.WriteString(strconv.FormatBool(t))
		return
	case float64:
		b.WriteString(formatFloat(t))
		return
	case float32:
		b.WriteString(formatFloat(float64(t)))
		return
	case fmt.Stringer:
		b.WriteString(t.String())
		return
	case error:
		b.WriteString(t.Error())
		return
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		b.WriteString(strconv.FormatInt(rv.Int(), 10))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		b.WriteString(strconv.FormatUint(rv.Uint(), 10))
	case reflect.Slice, reflect.Array:
		b.WriteByte('[')
		for i := 0; i < rv.Len(); i++ {
			if i > 0 {
				b.WriteByte(',')
			}
			writeValue(b, rv.Index(i).Interface())
		}
		b.WriteByte(']')
	case reflect.Map:
		keys := rv.MapKeys()
		sort.Slice(keys, func(i, j int) bool {
			return toString(keys[i].Interface()) < toString(keys[j].Interface())
		})
		b.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				b.WriteString(", ")
			}
			writeValue(b, k.Interface())
			b.WriteString(": ")
			writeValue(b, rv.MapIndex(k).Interface())
		}
		b.WriteByte('}')
	case reflect.Pointer:
		writeValue(b, rv.Elem().Interface())
	default:
		fmt.Fprintf(b, "%v", v)
	}
}

func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	if a := math.Abs(f); a != 0 && (a < 1e-6 || a >= 1e21) {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// number is an int64 or float64 operand.
type number struct {
	i     int64
	f     float64
	float bool
}

func (n number) value() any {
	if n.float {
		return n.f
	}
	return n.i
}

func (n number) asFloat() float64 {
	if n.float {
		return n.f
	}
	return float64(n.i)
}

// toNumber coerces numeric values and numeric strings.
func toNumber(v any) (number, bool) {
	switch t := v.(type) {
	case int:
		return number{i: int64(t)}, true
	case int64:
		return number{i: t}, true
	case float64:
		return number{f: t, float: true}, true
	case string:
		s := strings.TrimSpace(t)
		if intPattern.MatchString(s) {
			if i, err := strconv.ParseInt(s, 10, 64); err == nil {
				return number{i: i}, true
			}
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return number{f: f, float: true}, true
		}
		return number{}, false
	}
	if isNil(v) {
		return number{}, false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return number{i: rv.Int()}, true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return number{f: float64(u), float: true}, true
		}
		return number{i: int64(u)}, true
	case reflect.Float32, reflect.Float64:
		return number{f: rv.Float(), float: true}, true
	}
	return number{}, false
}

func isNumeric(v any) bool {
	if _, ok := v.(string); ok {
		return false
	}
	_, ok := toNumber(v)
	return ok
}

func negate(v any) (any, error) {
	n, ok := toNumber(v)
	if !ok {
		return nil, fmt.Errorf("cannot negate %s", describe(v))
	}
	if n.float {
		return -n.f, nil
	}
	if n.i == math.MinInt64 {
		return -float64(n.i), nil
	}
	return -n.i, nil
}

type binaryFunc func(a, b any) (any, error)

var binaryOps = map[string]binaryFunc{
	"+":  add,
	"-":  arith("-", subInt, func(a, b float64) float64 { return a - b }),
	"*":  arith("*", mulInt, func(a, b float64) float64 { return a * b }),
	"/":  divide,
	">":  ordered(">", func(c int) bool { return c > 0 }),
	"<":  ordered("<", func(c int) bool { return c < 0 }),
	">=": ordered(">=", func(c int) bool { return c >= 0 }),
	"<=": ordered("<=", func(c int) bool { return c <= 0 }),
	"==": func(a, b any) (any, error) { return equal(a, b), nil },
	"!=": func(a, b any) (any, error) { return !equal(a, b), nil },
	"&&": func(a, b any) (any, error) {
		if isFalsy(a) {
			return a, nil
		}
		return b, nil
	},
	"||": func(a, b any) (any, error) {
		if !isFalsy(a) {
			return a, nil
		}
		return b, nil
	},
}

// add sums numbers and concatenates when either side is a string.
func add(a, b any) (any, error) {
	_, as := a.(string)
	_, bs := b.(string)
	if as || bs {
		return toString(a) + toString(b), nil
	}
	return arith("+", addInt, func(x, y float64) float64 { return x + y })(a, b)
}

// The checked integer operations report false on overflow, in which case
// arith falls back to float arithmetic.

func addInt(a, b int64) (int64, bool) {
	r := a + b
	return r, (a >= 0) != (b >= 0) || (r >= 0) == (a >= 0)
}

func subInt(a, b int64) (int64, bool) {
	r := a - b
	return r, (a >= 0) == (b >= 0) || (r >= 0) == (a >= 0)
}

func mulInt(a, b int64) (int64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	r := a * b
	if (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) || r/b != a {
		return r, false
	}
	return r, true
}

func arith(op string, fi func(a, b int64) (int64, bool), ff func(a, b float64) float64) binaryFunc {
	return func(a, b any) (any, error) {
		x, ok1 := toNumber(a)
		y, ok2 := toNumber(b)
		if !ok1 || !ok2 {
			return nil, fmt.Errorf("invalid operands for %s: %s and %s", op, describe(a), describe(b))
		}
		if !x.float && !y.float {
			if r, ok := fi(x.i, y.i); ok {
				return r, nil
			}
		}
		return ff(x.asFloat(), y.asFloat()), nil
	}
}

// divide always yields a float; whole results print without a fraction.
func divide(a, b any) (any, error) {
	x, ok1 := toNumber(a)
	y, ok2 := toNumber(b)
	if !ok1 || !ok2 {
		return nil, fmt.Errorf("invalid operands for /: %s and %s", describe(a), describe(b))
	}
	return x.asFloat() / y.asFloat(), nil
}

func ordered(op string, test func(c int) bool) binaryFunc {
	return func(a, b any) (any, error) {
		c, err := compare(a, b)
		if err != nil {
			return nil, fmt.Errorf("invalid operands for %s: %w", op, err)
		}
		return test(c), nil
	}
}

func compare(a, b any) (int, error) {
	if isNumeric(a) && isNumeric(b) {
		x, _ := toNumber(a)
		y, _ := toNumber(b)
		if !x.float && !y.float {
			return cmpInt(x.i, y.i), nil
		}
		fx, fy := x.asFloat(), y.asFloat()
		switch {
		case fx < fy:
			return -1, nil
		case fx > fy:
			return 1, nil
		}
		return 0, nil
	}
	sa, ok1 := a.(string)
	sb, ok2 := b.(string)
	if ok1 && ok2 {
		return strings.Compare(sa, sb), nil
	}
	return 0, fmt.Errorf("cannot compare %s with %s", describe(a), describe(b))
}

func cmpInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func equal(a, b any) bool {
	if isNil(a) || isNil(b) {
		return isNil(a) && isNil(b)
	}
	if isNumeric(a) && isNumeric(b) {
		c, _ := compare(a, b)
		return c == 0
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta == tb && ta.Comparable() {
		return a == b
	}
	return reflect.DeepEqual(a, b)
}

// iterate returns the elements of a foreach source.
func iterate(v any) (iter.Seq[any], bool) {
	switch t := v.(type) {
	case Iterable:
		return t.Iterate(), true
	case iter.Seq[any]:
		return t, true
	case func(func(any) bool):
		return t, true
	case []any:
		return func(yield func(any) bool) {
			for _, e := range t {
				if !yield(e) {
					return
				}
			}
		}, true
	}
	if isNil(v) {
		return nil, false
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		return func(yield func(any) bool) {
			for i := 0; i < rv.Len(); i++ {
				if !yield(rv.Index(i).Interface()) {
					return
				}
			}
		}, true
	}
	return nil, false
}

func describe(v any) string {
	if isNil(v) {
		return "null"
	}
	return fmt.Sprintf("%T(%s)", v, toString(v))
}
