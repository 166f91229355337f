package ast

import (
	"github.com/MoonMountain2k/inkparse/internal/span"
	"github.com/MoonMountain2k/inkparse/internal/token"
)

// NodeToMap converts an AST node to a map suitable for JSON serialization.
// This produces a tagged-union structure: every node has a "kind" field.
func NodeToMap(node Node) map[string]interface{} {
	if node == nil {
		return nil
	}

	switch n := node.(type) {
	case *File:
		return m("File", n.Span, "body", nodeSlice(n.Body))

	// ---- Expressions ----
	case *IdentExpr:
		return m("IdentExpr", n.Span, "name", n.Name)
	case *IntLiteral:
		return m("IntLiteral", n.Span, "value", n.Value)
	case *FloatLiteral:
		return m("FloatLiteral", n.Span, "value", n.Value)
	case *StringLiteral:
		return m("StringLiteral", n.Span, "value", n.Value)
	case *BoolLiteral:
		return m("BoolLiteral", n.Span, "value", n.Value)
	case *NullLiteral:
		return m("NullLiteral", n.Span)
	case *UnsetLiteral:
		return m("UnsetLiteral", n.Span)
	case *ListLiteral:
		return m("ListLiteral", n.Span, "elements", exprSlice(n.Elements))
	case *DictLiteral:
		entries := make([]interface{}, len(n.Entries))
		for i, e := range n.Entries {
			entries[i] = map[string]interface{}{
				"kind":  "DictEntry",
				"span":  spanToMap(e.Span),
				"key":   NodeToMap(e.Key),
				"value": NodeToMap(e.Value),
			}
		}
		return m("DictLiteral", n.Span, "entries", entries)
	case *UnaryExpr:
		return m("UnaryExpr", n.Span, "op", opStr(n.Op), "operand", NodeToMap(n.Operand))
	case *BinaryExpr:
		return m("BinaryExpr", n.Span,
			"op", opStr(n.Op),
			"negated", n.Negated,
			"left", NodeToMap(n.Left),
			"right", NodeToMap(n.Right))
	case *CompareChain:
		ops := make([]interface{}, len(n.Ops))
		for i, op := range n.Ops {
			ops[i] = opStr(op)
		}
		return m("CompareChain", n.Span,
			"operands", exprSlice(n.Operands),
			"ops", ops)
	case *CascadeExpr:
		calls := make([]interface{}, len(n.Calls))
		for i, c := range n.Calls {
			calls[i] = map[string]interface{}{
				"kind":   "CascadeCall",
				"span":   spanToMap(c.Span),
				"member": c.Member,
				"args":   exprSlice(c.Args),
			}
		}
		return m("CascadeExpr", n.Span, "receiver", NodeToMap(n.Receiver), "calls", calls)
	case *CallExpr:
		return m("CallExpr", n.Span,
			"callee", NodeToMap(n.Callee),
			"args", exprSlice(n.Args))
	case *IndexExpr:
		return m("IndexExpr", n.Span,
			"object", NodeToMap(n.Object),
			"index", NodeToMap(n.Index))
	case *MemberExpr:
		return m("MemberExpr", n.Span,
			"object", NodeToMap(n.Object),
			"property", n.Property)
	case *FuncLit:
		return m("FuncLit", n.Span,
			"name", n.Name,
			"params", patternSlice(n.Params),
			"body", NodeToMap(n.Body))
	case *IfExpr:
		result := m("IfExpr", n.Span,
			"condition", NodeToMap(n.Condition),
			"body", NodeToMap(n.Body))
		if len(n.Elifs) > 0 {
			elifs := make([]interface{}, len(n.Elifs))
			for i, e := range n.Elifs {
				elifs[i] = map[string]interface{}{
					"kind":      "ElifClause",
					"span":      spanToMap(e.Span),
					"condition": NodeToMap(e.Condition),
					"body":      NodeToMap(e.Body),
				}
			}
			result["elifs"] = elifs
		}
		if n.ElseBody != nil {
			result["elseBody"] = NodeToMap(n.ElseBody)
		}
		return result
	case *AssignExpr:
		return m("AssignExpr", n.Span,
			"op", opStr(n.Op),
			"target", NodeToMap(n.Target),
			"value", NodeToMap(n.Value))
	case *MoveExpr:
		return m("MoveExpr", n.Span,
			"target", NodeToMap(n.Target),
			"source", NodeToMap(n.Source))
	case *ListComp:
		result := m("ListComp", n.Span,
			"body", NodeToMap(n.Body),
			"pattern", NodeToMap(n.Pat),
			"source", NodeToMap(n.Source))
		if n.Guard != nil {
			result["guard"] = NodeToMap(n.Guard)
		}
		return result
	case *DictComp:
		result := m("DictComp", n.Span,
			"key", NodeToMap(n.Key),
			"value", NodeToMap(n.Value),
			"pattern", NodeToMap(n.Pat),
			"source", NodeToMap(n.Source))
		if n.Guard != nil {
			result["guard"] = NodeToMap(n.Guard)
		}
		return result

	// ---- Statements ----
	case *ExprStmt:
		return m("ExprStmt", n.Span, "expr", NodeToMap(n.Expr))
	case *Block:
		result := m("Block", n.Span, "stmts", nodeSlice(n.Stmts), "trailingSep", n.TrailingSep)
		if n.Label != "" {
			result["label"] = n.Label
		}
		return result
	case *SignalStmt:
		result := m("SignalStmt", n.Span, "signal", n.Kind.String())
		if n.Label != "" {
			result["label"] = n.Label
		}
		if n.Value != nil {
			result["value"] = NodeToMap(n.Value)
		}
		return result
	case *DelStmt:
		return m("DelStmt", n.Span, "name", n.Name)
	case *ForStmt:
		result := m("ForStmt", n.Span,
			"pattern", NodeToMap(n.Pat),
			"source", NodeToMap(n.Source),
			"body", NodeToMap(n.Body))
		if n.Label != "" {
			result["label"] = n.Label
		}
		return result
	case *WhileStmt:
		result := m("WhileStmt", n.Span,
			"condition", NodeToMap(n.Condition),
			"body", NodeToMap(n.Body))
		if n.Label != "" {
			result["label"] = n.Label
		}
		return result
	case *LoopStmt:
		result := m("LoopStmt", n.Span, "body", NodeToMap(n.Body))
		if n.Count != nil {
			result["count"] = NodeToMap(n.Count)
		}
		if n.Label != "" {
			result["label"] = n.Label
		}
		return result

	// ---- Patterns ----
	case *BindPattern:
		return m("BindPattern", n.Span, "name", n.Name)
	case *DiscardPattern:
		return m("DiscardPattern", n.Span)
	case *LiteralPattern:
		return m("LiteralPattern", n.Span, "value", NodeToMap(n.Value))
	case *AlternationPattern:
		return m("AlternationPattern", n.Span, "alts", patternSlice(n.Alts))
	case *GuardedPattern:
		return m("GuardedPattern", n.Span,
			"inner", NodeToMap(n.Inner),
			"condition", NodeToMap(n.Condition))
	case *ListPattern:
		result := m("ListPattern", n.Span,
			"prefix", patternSlice(n.Prefix),
			"suffix", patternSlice(n.Suffix))
		if n.HasRest {
			result["restName"] = n.RestName
			result["restCount"] = n.RestCount
		}
		return result
	case *DictPattern:
		entries := make([]interface{}, len(n.Entries))
		for i, e := range n.Entries {
			entries[i] = map[string]interface{}{
				"kind":      "DictPatternEntry",
				"span":      spanToMap(e.Span),
				"key":       NodeToMap(e.Key),
				"value":     NodeToMap(e.Value),
				"restKey":   e.RestKey,
				"restValue": e.RestValue,
			}
		}
		result := m("DictPattern", n.Span, "entries", entries)
		if n.HasRestDict {
			result["restDict"] = n.RestName
		}
		return result

	default:
		return map[string]interface{}{"kind": "Unknown"}
	}
}

// ---- helpers ----

// m builds a map with kind, span, and extra key-value pairs.
func m(kind string, s span.Span, kvs ...interface{}) map[string]interface{} {
	result := map[string]interface{}{
		"kind": kind,
		"span": spanToMap(s),
	}
	for i := 0; i+1 < len(kvs); i += 2 {
		key := kvs[i].(string)
		result[key] = kvs[i+1]
	}
	return result
}

func spanToMap(s span.Span) map[string]interface{} {
	return map[string]interface{}{
		"start": map[string]interface{}{
			"offset": s.Start.Offset,
			"line":   s.Start.Line,
			"column": s.Start.Column,
		},
		"end": map[string]interface{}{
			"offset": s.End.Offset,
			"line":   s.End.Line,
			"column": s.End.Column,
		},
	}
}

func nodeSlice(nodes []Node) []interface{} {
	result := make([]interface{}, len(nodes))
	for i, n := range nodes {
		result[i] = NodeToMap(n)
	}
	return result
}

func exprSlice(exprs []Expr) []interface{} {
	result := make([]interface{}, len(exprs))
	for i, e := range exprs {
		result[i] = NodeToMap(e)
	}
	return result
}

func patternSlice(pats []Pattern) []interface{} {
	result := make([]interface{}, len(pats))
	for i, p := range pats {
		result[i] = NodeToMap(p)
	}
	return result
}

func opStr(kind token.Kind) string {
	return kind.String()
}
