package sltmpl

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind describes the type of error.
type ErrorKind int

const (
	// ErrMalformedMacro is returned when a macro call's parentheses never balance.
	ErrMalformedMacro ErrorKind = iota
	// ErrUnclosedBlock is returned when an if, else or foreach lacks its end tag.
	ErrUnclosedBlock
	// ErrSyntax is returned for unexpected tokens in a template or expression.
	ErrSyntax
	// ErrNotIterable is returned when a foreach source cannot be iterated.
	ErrNotIterable
	// ErrExpressionRuntime wraps a failure raised while evaluating an expression.
	ErrExpressionRuntime
	// ErrMacroCall wraps a missing or failing macro.
	ErrMacroCall
)

func (k ErrorKind) String() string {
	switch k {
	case ErrMalformedMacro:
		return "malformed macro"
	case ErrUnclosedBlock:
		return "unclosed block"
	case ErrSyntax:
		return "syntax error"
	case ErrNotIterable:
		return "not iterable"
	case ErrExpressionRuntime:
		return "expression error"
	case ErrMacroCall:
		return "macro call failed"
	default:
		return "error"
	}
}

// Error is returned by Parse and Render.
type Error struct {
	Kind    ErrorKind
	Message string
	// Source is the expression source for syntax and runtime expression errors.
	Source string
	// Macro and Args are set for ErrMacroCall.
	Macro string
	Args  string
	// Pos is the byte offset in the template. Zero is not reported.
	Pos int
	Err error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	switch e.Kind {
	case ErrMacroCall:
		fmt.Fprintf(&b, ": $$%s(%s)", e.Macro, e.Args)
	case ErrExpressionRuntime:
		fmt.Fprintf(&b, " in %q", e.Source)
	default:
		if e.Message != "" {
			b.WriteString(": ")
			b.WriteString(e.Message)
		}
		if e.Source != "" {
			fmt.Fprintf(&b, " in %q", e.Source)
		}
	}
	if e.Pos > 0 {
		fmt.Fprintf(&b, " (at offset %d)", e.Pos)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// IsKind reports whether err or any error it wraps is an *Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.Kind == kind {
			return true
		}
		err = e.Err
	}
	return false
}

func syntaxError(msg, source string) *Error {
	return &Error{Kind: ErrSyntax, Message: msg, Source: source}
}

// ErrMacroNotFound is the cause wrapped by ErrMacroCall when the macro table
// has no entry for the called name.
var ErrMacroNotFound = errors.New("macro not registered")
