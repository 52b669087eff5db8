package sltmpl

// Node is any AST node in a parsed template. The tree is immutable once
// Parse returns, so one Template can serve concurrent renders.
type Node interface {
	node()
}

// TextNode represents literal text between tags.
type TextNode struct {
	Text string
}

func (*TextNode) node() {}

// VarNode prints a named value: ::name::
type VarNode struct {
	Name string
}

func (*VarNode) node() {}

// ExprNode prints the result of a compiled expression: ::(a + b)::
type ExprNode struct {
	Expr *Expr
}

func (*ExprNode) node() {}

// IfNode is a conditional. Else is nil when there is no else branch; an
// elseif chain is represented as a nested IfNode in Else.
type IfNode struct {
	Cond *Expr
	Then Node
	Else Node
}

func (*IfNode) node() {}

// BlockNode runs its children in order.
type BlockNode struct {
	Nodes []Node
}

func (*BlockNode) node() {}

// ForeachNode runs Body once per element of Source, with the element as the
// current context.
type ForeachNode struct {
	Source *Expr
	Body   Node
}

func (*ForeachNode) node() {}

// MacroNode calls a registered macro: $$name(arg1,arg2)
type MacroNode struct {
	Name string
	Args []Node
}

func (*MacroNode) node() {}
