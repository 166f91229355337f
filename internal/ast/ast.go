// Package ast defines the abstract syntax tree for ink.
package ast

import (
	"github.com/MoonMountain2k/inkparse/internal/span"
	"github.com/MoonMountain2k/inkparse/internal/token"
)

// ============================================================
// Node interfaces
// ============================================================

// Node is the interface implemented by all AST nodes.
type Node interface {
	nodeNode()
	GetSpan() span.Span
}

// Expr is the interface for expression nodes.
type Expr interface {
	Node
	exprNode()
}

// Stmt is the interface for statement nodes.
type Stmt interface {
	Node
	stmtNode()
}

// Pattern is the interface for pattern nodes, matched against runtime
// values by the pattern matcher.
type Pattern interface {
	Node
	patternNode()
}

// ============================================================
// Base types (embedded to provide common fields)
// ============================================================

// NodeBase provides the common Span field for all AST nodes.
type NodeBase struct {
	Span span.Span
}

func (n NodeBase) nodeNode()          {}
func (n NodeBase) GetSpan() span.Span { return n.Span }

// ExprBase is embedded by all expression nodes.
type ExprBase struct{ NodeBase }

func (ExprBase) exprNode() {}

// StmtBase is embedded by all statement nodes.
type StmtBase struct{ NodeBase }

func (StmtBase) stmtNode() {}

// PatternBase is embedded by all pattern nodes.
type PatternBase struct{ NodeBase }

func (PatternBase) patternNode() {}

// ============================================================
// File (top-level AST root)
// ============================================================

// File represents the entire source file.
type File struct {
	NodeBase
	Body []Node // top-level statements
}

// ============================================================
// Expressions
// ============================================================

// IdentExpr represents an identifier reference.
type IdentExpr struct {
	ExprBase
	Name string
}

// IntLiteral represents an integer literal.
type IntLiteral struct {
	ExprBase
	Value int64
}

// FloatLiteral represents a floating-point literal.
type FloatLiteral struct {
	ExprBase
	Value float64
}

// StringLiteral represents a string literal.
type StringLiteral struct {
	ExprBase
	Value string
}

// BoolLiteral represents true or false.
type BoolLiteral struct {
	ExprBase
	Value bool
}

// NullLiteral represents null.
type NullLiteral struct {
	ExprBase
}

// UnsetLiteral represents the unset literal.
type UnsetLiteral struct {
	ExprBase
}

// ListLiteral represents a list literal: [a, b, c].
type ListLiteral struct {
	ExprBase
	Elements []Expr
}

// DictEntryExpr is one key/value pair in a dict literal.
type DictEntryExpr struct {
	Span  span.Span
	Key   Expr
	Value Expr
}

// DictLiteral represents a dict literal: {k: v, ...}. Entry order is
// preserved and becomes the dict's iteration order.
type DictLiteral struct {
	ExprBase
	Entries []DictEntryExpr
}

// UnaryExpr represents a unary operation: not x, -x.
type UnaryExpr struct {
	ExprBase
	Op      token.Kind
	Operand Expr
}

// BinaryExpr represents a binary operation: a + b, x ?? y, a in b.
// Negated marks the "is not" / "not in" forms.
type BinaryExpr struct {
	ExprBase
	Op      token.Kind
	Negated bool
	Left    Expr
	Right   Expr
}

// CompareChain represents a chained comparison: a < b <= c == d.
// Operands has len(Ops)+1 elements; Ops[i] relates Operands[i] and
// Operands[i+1]. Never represented as nested binary nodes.
type CompareChain struct {
	ExprBase
	Operands []Expr
	Ops      []token.Kind
}

// CascadeCall is one member call in a cascade chain.
type CascadeCall struct {
	Span   span.Span
	Member string
	Args   []Expr
}

// CascadeExpr represents receiver..m1(args)..m2(args). The receiver is
// evaluated once; each call's own result is discarded and the receiver
// is the value of the whole expression.
type CascadeExpr struct {
	ExprBase
	Receiver Expr
	Calls    []CascadeCall
}

// CallExpr represents a function call: f(a, b).
type CallExpr struct {
	ExprBase
	Callee Expr
	Args   []Expr
}

// IndexExpr represents indexing: a[i].
type IndexExpr struct {
	ExprBase
	Object Expr
	Index  Expr
}

// MemberExpr represents member access: a.b.
type MemberExpr struct {
	ExprBase
	Object   Expr
	Property string
}

// FuncLit represents a function literal: fn(params) { body }.
// Parameters are patterns, matched against the call arguments.
type FuncLit struct {
	ExprBase
	Name   string // may be empty for anonymous functions
	Params []Pattern
	Body   *Block
}

// ElifClause represents a single "elif" branch.
type ElifClause struct {
	Span      span.Span
	Condition Expr
	Body      *Block
}

// IfExpr represents an if/elif/else chain. Yields unset when no branch
// matches and there is no else.
type IfExpr struct {
	ExprBase
	Condition Expr
	Body      *Block
	Elifs     []ElifClause
	ElseBody  *Block // may be nil
}

// AssignExpr represents pattern assignment: pat = expr, or a compound
// assignment (x += expr) when Op is not ASSIGN. Evaluates to null.
type AssignExpr struct {
	ExprBase
	Op     token.Kind // ASSIGN or a compound-assign kind
	Target Pattern
	Value  Expr
}

// MoveExpr represents the move operator: pat <- name. The source
// binding is deleted only after the target match has fully succeeded.
type MoveExpr struct {
	ExprBase
	Target Pattern
	Source *IdentExpr
}

// ListComp represents a list comprehension: [body for pat in src if guard].
type ListComp struct {
	ExprBase
	Body   Node // expression or signal statement
	Pat    Pattern
	Source Expr
	Guard  Expr // may be nil
}

// DictComp represents a dict comprehension: {k: v for pat in src if guard}.
type DictComp struct {
	ExprBase
	Key    Expr
	Value  Expr
	Pat    Pattern
	Source Expr
	Guard  Expr // may be nil
}

// ============================================================
// Statements and constructs
// ============================================================

// ExprStmt wraps an expression used as a statement.
type ExprStmt struct {
	StmtBase
	Expr Expr
}

// Block represents a brace-delimited statement sequence. Its value is
// the value of the last statement, or unset when the block is empty or
// ends with a trailing separator. Blocks are the construct that owns
// leave signals.
type Block struct {
	StmtBase
	Label       string // optional, from "name: { ... }"
	Stmts       []Node
	TrailingSep bool // a separator followed the last statement
}

// SignalStmt represents leave/break/continue/return with an optional
// label and an optional payload value.
type SignalStmt struct {
	StmtBase
	Kind  token.Kind // KW_LEAVE, KW_BREAK, KW_CONTINUE, KW_RETURN
	Label string     // optional
	Value Expr       // optional, may be nil
}

// DelStmt represents binding deletion: del name.
type DelStmt struct {
	StmtBase
	Name string
}

// ForStmt represents: for pat in src { body }. The pattern is matched
// once per source element; a failed match is a hard error.
type ForStmt struct {
	StmtBase
	Label  string
	Pat    Pattern
	Source Expr
	Body   *Block
}

// WhileStmt represents: while cond { body }.
type WhileStmt struct {
	StmtBase
	Label     string
	Condition Expr
	Body      *Block
}

// LoopStmt represents: loop { body } or loop n { body }.
type LoopStmt struct {
	StmtBase
	Label string
	Count Expr // may be nil (infinite)
	Body  *Block
}

// ============================================================
// Patterns
// ============================================================

// BindPattern binds a name to the candidate value. Always succeeds.
type BindPattern struct {
	PatternBase
	Name string
}

// DiscardPattern matches anything and binds nothing: _.
type DiscardPattern struct {
	PatternBase
}

// LiteralPattern matches by equality against a literal value.
type LiteralPattern struct {
	PatternBase
	Value Expr // IntLiteral, FloatLiteral, StringLiteral, BoolLiteral, NullLiteral
}

// AlternationPattern tries each alternative in order; the first success
// wins and bindings from failed attempts are discarded entirely.
type AlternationPattern struct {
	PatternBase
	Alts []Pattern
}

// GuardedPattern evaluates Condition with `it` bound to the candidate
// before delegating to Inner: pat if (cond).
type GuardedPattern struct {
	PatternBase
	Inner     Pattern
	Condition Expr
}

// RestCountVariable marks a *name rest capture of variable length.
const RestCountVariable = -1

// ListPattern destructures a list: [prefix..., rest, suffix...].
//
// HasRest distinguishes the exact-length form from the rest forms.
// RestName is empty for the "..." skip form. RestCount is
// RestCountVariable for *name, or the exact middle length N for name*N.
type ListPattern struct {
	PatternBase
	Prefix    []Pattern
	HasRest   bool
	RestName  string
	RestCount int
	Suffix    []Pattern
}

// DictPatternEntry is one declared entry of a dict pattern.
//
// RestKey marks *k: v (collect keys of entries whose value matches v);
// RestValue marks k: *v (collect values of entries whose key matches k).
// Both set marks *k: *v (consume all remaining entries into two lists).
// In the rest forms the capturing side holds a BindPattern with the
// capture name, and the opposite side is the non-binding filter.
type DictPatternEntry struct {
	Span      span.Span
	Key       Pattern
	Value     Pattern
	RestKey   bool
	RestValue bool
}

// DictPattern destructures a dict entry by entry, in declaration order,
// against the candidate's remaining (unconsumed) entries.
type DictPattern struct {
	PatternBase
	Entries     []DictPatternEntry
	HasRestDict bool
	RestName    string // "" or "_" binds nothing
}
