package starlark

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/slplayer/sltemplate/pkg/sltmpl"
	"go.starlark.net/starlark"
)

// ToStarlark converts a Go value from a render context to a Starlark value.
// Unknown types are passed as their string form.
func ToStarlark(val any) starlark.Value {
	switch v := val.(type) {
	case nil:
		return starlark.None
	case starlark.Value:
		return v
	case string:
		return starlark.String(v)
	case bool:
		return starlark.Bool(v)
	case int:
		return starlark.MakeInt(v)
	case int64:
		return starlark.MakeInt64(v)
	case float64:
		return starlark.Float(v)
	case []any:
		items := make([]starlark.Value, len(v))
		for i, item := range v {
			items[i] = ToStarlark(item)
		}
		return starlark.NewList(items)
	case sltmpl.Context:
		return dictFrom(v)
	case map[string]any:
		return dictFrom(v)
	}

	rv := reflect.ValueOf(val)
	switch rv.Kind() {
	case reflect.Pointer:
		if rv.IsNil() {
			return starlark.None
		}
		return ToStarlark(rv.Elem().Interface())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return starlark.MakeInt64(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return starlark.MakeUint64(rv.Uint())
	case reflect.Float32:
		return starlark.Float(rv.Float())
	case reflect.String:
		return starlark.String(rv.String())
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return starlark.None
		}
		items := make([]starlark.Value, rv.Len())
		for i := range items {
			items[i] = ToStarlark(rv.Index(i).Interface())
		}
		return starlark.NewList(items)
	case reflect.Map:
		if rv.IsNil() {
			return starlark.None
		}
		dict := starlark.NewDict(rv.Len())
		for _, k := range rv.MapKeys() {
			dict.SetKey(ToStarlark(k.Interface()), ToStarlark(rv.MapIndex(k).Interface()))
		}
		return dict
	}
	return starlark.String(fmt.Sprint(val))
}

func dictFrom(m map[string]any) *starlark.Dict {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	dict := starlark.NewDict(len(m))
	for _, k := range keys {
		dict.SetKey(starlark.String(k), ToStarlark(m[k]))
	}
	return dict
}

// FromStarlark converts a Starlark value back to a plain Go value that the
// template engine can print, compare and iterate.
func FromStarlark(val starlark.Value) any {
	if val == nil || val == starlark.None {
		return nil
	}

	switch v := val.(type) {
	case starlark.String:
		return string(v)
	case starlark.Int:
		if i, ok := v.Int64(); ok {
			return i
		}
		// For very large integers, convert to string
		return v.String()
	case starlark.Float:
		return float64(v)
	case starlark.Bool:
		return bool(v)
	case *starlark.List:
		items := make([]any, v.Len())
		for i := 0; i < v.Len(); i++ {
			items[i] = FromStarlark(v.Index(i))
		}
		return items
	case starlark.Tuple:
		items := make([]any, len(v))
		for i, item := range v {
			items[i] = FromStarlark(item)
		}
		return items
	case *starlark.Dict:
		dict := make(map[string]any, v.Len())
		for _, item := range v.Items() {
			if keyStr, ok := item[0].(starlark.String); ok {
				dict[string(keyStr)] = FromStarlark(item[1])
			} else {
				dict[item[0].String()] = FromStarlark(item[1])
			}
		}
		return dict
	default:
		return val.String()
	}
}
