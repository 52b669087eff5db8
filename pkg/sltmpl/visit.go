package sltmpl

import (
	"bytes"
	"fmt"
	"slices"
	"strings"
)

type Visitor interface {
	Visit(n Node) error
}

// VisitorFunc adapts a function to Visitor.
type VisitorFunc func(n Node) error

func (f VisitorFunc) Visit(n Node) error { return f(n) }

// Walk visits n and its descendants depth-first.
func Walk(v Visitor, n Node) error {
	if n == nil {
		return nil
	}
	if err := v.Visit(n); err != nil {
		return err
	}
	switch t := n.(type) {
	case *BlockNode:
		for _, c := range t.Nodes {
			if err := Walk(v, c); err != nil {
				return err
			}
		}
	case *IfNode:
		if err := Walk(v, t.Then); err != nil {
			return err
		}
		return Walk(v, t.Else)
	case *ForeachNode:
		return Walk(v, t.Body)
	case *MacroNode:
		for _, c := range t.Args {
			if err := Walk(v, c); err != nil {
				return err
			}
		}
	}
	return nil
}

// Names returns the sorted, de-duplicated context names the template reads,
// from ::name:: tags as well as if, foreach and expression tags, and the
// macros it calls. Only the first segment of a field path is a name.
func (t *Template) Names() (vars, macros []string) {
	_ = Walk(VisitorFunc(func(n Node) error {
		switch n := n.(type) {
		case *VarNode:
			vars = append(vars, n.Name)
		case *ExprNode:
			vars = append(vars, n.Expr.names...)
		case *IfNode:
			vars = append(vars, n.Cond.names...)
		case *ForeachNode:
			vars = append(vars, n.Source.names...)
		case *MacroNode:
			macros = append(macros, n.Name)
		}
		return nil
	}), t.root)
	slices.Sort(vars)
	slices.Sort(macros)
	return slices.Compact(vars), slices.Compact(macros)
}

// Pretty returns a line-oriented string representation of the AST.
func Pretty(t *Template) string {
	var buf bytes.Buffer
	ppNode(&buf, 0, t.root)
	return buf.String()
}

func ppNode(buf *bytes.Buffer, indent int, n Node) {
	ind := strings.Repeat(" ", indent)
	switch t := n.(type) {
	case *TextNode:
		fmt.Fprintf(buf, "%sText(%q)\n", ind, t.Text)
	case *VarNode:
		fmt.Fprintf(buf, "%sVar(%s)\n", ind, t.Name)
	case *ExprNode:
		fmt.Fprintf(buf, "%sExpr(%q)\n", ind, t.Expr.Source)
	case *IfNode:
		fmt.Fprintf(buf, "%sIf(%q)\n", ind, t.Cond.Source)
		ppNode(buf, indent+2, t.Then)
		if t.Else != nil {
			fmt.Fprintf(buf, "%sElse\n", ind)
			ppNode(buf, indent+2, t.Else)
		}
	case *BlockNode:
		fmt.Fprintf(buf, "%sBlock\n", ind)
		for _, c := range t.Nodes {
			ppNode(buf, indent+2, c)
		}
	case *ForeachNode:
		fmt.Fprintf(buf, "%sForeach(%q)\n", ind, t.Source.Source)
		ppNode(buf, indent+2, t.Body)
	case *MacroNode:
		fmt.Fprintf(buf, "%sMacro(%s)\n", ind, t.Name)
		for _, c := range t.Args {
			ppNode(buf, indent+2, c)
		}
	}
}
