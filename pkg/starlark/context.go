package starlark

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/slplayer/sltemplate/pkg/sltmpl"
	"go.starlark.net/starlark"
)

// resolverKey is the thread-local slot holding the resolver of the render
// that invoked a macro.
const resolverKey = "sltmpl.resolver"

var errNoResolver = errors.New("resolve is only available while a template macro runs")

// CreateBuiltins creates the functions every script sees in addition to the
// Starlark universe.
func CreateBuiltins() starlark.StringDict {
	return starlark.StringDict{
		"print": starlark.NewBuiltin("print", func(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var buf []string
			for i := 0; i < len(args); i++ {
				if s, ok := args[i].(starlark.String); ok {
					buf = append(buf, string(s))
				} else {
					buf = append(buf, args[i].String())
				}
			}
			slog.Info("starlark", "thread", thread.Name, "msg", strings.Join(buf, " "))
			return starlark.None, nil
		}),

		// resolve(name) looks a name up in the calling template's context
		// chain: current context, enclosing loop contexts, then globals.
		"resolve": starlark.NewBuiltin("resolve", func(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var name string
			if err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 1, &name); err != nil {
				return starlark.None, err
			}
			resolve, ok := thread.Local(resolverKey).(sltmpl.Resolver)
			if !ok || resolve == nil {
				return starlark.None, fmt.Errorf("%s: %w", fn.Name(), errNoResolver)
			}
			return ToStarlark(resolve(name)), nil
		}),
	}
}

// isExportableKey determines if a script global should become a macro.
func isExportableKey(key string) bool {
	switch key {
	case "print", "resolve":
		return false
	}
	return key != "" && key[0] != '_'
}
