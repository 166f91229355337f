package parser

import (
	"testing"

	"github.com/MoonMountain2k/inkparse/internal/ast"
	"github.com/MoonMountain2k/inkparse/internal/lexer"
	"github.com/MoonMountain2k/inkparse/internal/token"
)

// helper: parse source and return AST + check for no errors
func parseOK(t *testing.T, source string) *ast.File {
	t.Helper()
	l := lexer.New(source, "test.ink")
	tokens, lexDiags := l.Tokenize()
	if len(lexDiags) > 0 {
		t.Fatalf("lex errors: %v", lexDiags)
	}
	p := New(tokens)
	file, parseDiags := p.ParseFile()
	if len(parseDiags) > 0 {
		t.Fatalf("parse errors: %v", parseDiags)
	}
	return file
}

// helper: the single statement of source, unwrapped from ExprStmt.
func parseExprStmt(t *testing.T, source string) ast.Expr {
	t.Helper()
	file := parseOK(t, source)
	if len(file.Body) != 1 {
		t.Fatalf("expected 1 node, got %d", len(file.Body))
	}
	stmt, ok := file.Body[0].(*ast.ExprStmt)
	if !ok {
		t.Fatalf("expected ExprStmt, got %T", file.Body[0])
	}
	return stmt.Expr
}

func TestParseAssignment(t *testing.T) {
	expr := parseExprStmt(t, `x = 42`)
	assign, ok := expr.(*ast.AssignExpr)
	if !ok {
		t.Fatalf("expected AssignExpr, got %T", expr)
	}
	bind, ok := assign.Target.(*ast.BindPattern)
	if !ok {
		t.Fatalf("expected BindPattern target, got %T", assign.Target)
	}
	if bind.Name != "x" {
		t.Errorf("expected target 'x', got %q", bind.Name)
	}
	if _, ok := assign.Value.(*ast.IntLiteral); !ok {
		t.Errorf("expected IntLiteral value, got %T", assign.Value)
	}
}

func TestParseCompoundAssign(t *testing.T) {
	expr := parseExprStmt(t, `x += 2`)
	assign, ok := expr.(*ast.AssignExpr)
	if !ok {
		t.Fatalf("expected AssignExpr, got %T", expr)
	}
	if assign.Op != token.PLUS_ASSIGN {
		t.Errorf("expected +=, got %s", assign.Op)
	}
}

func TestParseBinaryPrecedence(t *testing.T) {
	expr := parseExprStmt(t, `1 + 2 * 3`)
	bin, ok := expr.(*ast.BinaryExpr)
	if !ok {
		t.Fatalf("expected BinaryExpr, got %T", expr)
	}
	if bin.Op != token.PLUS {
		t.Errorf("expected '+', got %s", bin.Op)
	}
	right, ok := bin.Right.(*ast.BinaryExpr)
	if !ok {
		t.Fatalf("expected BinaryExpr on right, got %T", bin.Right)
	}
	if right.Op != token.STAR {
		t.Errorf("expected '*', got %s", right.Op)
	}
}

func TestParsePowRightAssoc(t *testing.T) {
	expr := parseExprStmt(t, `2 ** 3 ** 2`)
	bin := expr.(*ast.BinaryExpr)
	if bin.Op != token.POW {
		t.Fatalf("expected '**', got %s", bin.Op)
	}
	// right operand must itself be 3 ** 2
	right, ok := bin.Right.(*ast.BinaryExpr)
	if !ok || right.Op != token.POW {
		t.Errorf("expected right-associative '**', got %T", bin.Right)
	}
}

func TestParseCompareChain(t *testing.T) {
	expr := parseExprStmt(t, `1 < 2 >= 0 == 0 <= 4`)
	chain, ok := expr.(*ast.CompareChain)
	if !ok {
		t.Fatalf("expected CompareChain, got %T", expr)
	}
	if len(chain.Operands) != 5 {
		t.Errorf("expected 5 operands, got %d", len(chain.Operands))
	}
	wantOps := []token.Kind{token.LT, token.GTE, token.EQ, token.LTE}
	if len(chain.Ops) != len(wantOps) {
		t.Fatalf("expected %d ops, got %d", len(wantOps), len(chain.Ops))
	}
	for i, op := range wantOps {
		if chain.Ops[i] != op {
			t.Errorf("op[%d]: expected %s, got %s", i, op, chain.Ops[i])
		}
	}
}

func TestParseChainNotNested(t *testing.T) {
	// a < b < c is one chain, never (a < b) < c
	expr := parseExprStmt(t, `a < b < c`)
	chain, ok := expr.(*ast.CompareChain)
	if !ok {
		t.Fatalf("expected CompareChain, got %T", expr)
	}
	for _, op := range chain.Operands {
		if _, nested := op.(*ast.CompareChain); nested {
			t.Error("chain operand must not be a nested chain")
		}
	}
}

func TestParseInAndIs(t *testing.T) {
	expr := parseExprStmt(t, `x in xs`)
	bin := expr.(*ast.BinaryExpr)
	if bin.Op != token.KW_IN || bin.Negated {
		t.Errorf("expected plain 'in', got %s negated=%v", bin.Op, bin.Negated)
	}

	expr = parseExprStmt(t, `x not in xs`)
	bin = expr.(*ast.BinaryExpr)
	if bin.Op != token.KW_IN || !bin.Negated {
		t.Errorf("expected negated 'in', got %s negated=%v", bin.Op, bin.Negated)
	}

	expr = parseExprStmt(t, `x is not int`)
	bin = expr.(*ast.BinaryExpr)
	if bin.Op != token.KW_IS || !bin.Negated {
		t.Errorf("expected negated 'is', got %s negated=%v", bin.Op, bin.Negated)
	}
}

func TestParseCoalesce(t *testing.T) {
	expr := parseExprStmt(t, `a ?? b ?? c`)
	bin, ok := expr.(*ast.BinaryExpr)
	if !ok || bin.Op != token.COALESCE {
		t.Fatalf("expected '??', got %T", expr)
	}
}

func TestParseCascade(t *testing.T) {
	expr := parseExprStmt(t, `[0, 1]..append(3)..insert(0, 2)`)
	cascade, ok := expr.(*ast.CascadeExpr)
	if !ok {
		t.Fatalf("expected CascadeExpr, got %T", expr)
	}
	if _, ok := cascade.Receiver.(*ast.ListLiteral); !ok {
		t.Errorf("expected ListLiteral receiver, got %T", cascade.Receiver)
	}
	if len(cascade.Calls) != 2 {
		t.Fatalf("expected 2 cascade calls, got %d", len(cascade.Calls))
	}
	if cascade.Calls[0].Member != "append" || cascade.Calls[1].Member != "insert" {
		t.Errorf("unexpected members: %q, %q", cascade.Calls[0].Member, cascade.Calls[1].Member)
	}
	if len(cascade.Calls[1].Args) != 2 {
		t.Errorf("expected 2 args in insert, got %d", len(cascade.Calls[1].Args))
	}
}

func TestParseMove(t *testing.T) {
	expr := parseExprStmt(t, `x <- y`)
	move, ok := expr.(*ast.MoveExpr)
	if !ok {
		t.Fatalf("expected MoveExpr, got %T", expr)
	}
	if move.Source.Name != "y" {
		t.Errorf("expected source 'y', got %q", move.Source.Name)
	}
}

func TestParseIfExpr(t *testing.T) {
	expr := parseExprStmt(t, `if x > 0 { 1 } elif x < 0 { -1 } else { 0 }`)
	ifExpr, ok := expr.(*ast.IfExpr)
	if !ok {
		t.Fatalf("expected IfExpr, got %T", expr)
	}
	if len(ifExpr.Elifs) != 1 {
		t.Errorf("expected 1 elif, got %d", len(ifExpr.Elifs))
	}
	if ifExpr.ElseBody == nil {
		t.Error("expected else body")
	}
}

func TestParseFuncLit(t *testing.T) {
	expr := parseExprStmt(t, `fn add(a, b) { a + b }`)
	fn, ok := expr.(*ast.FuncLit)
	if !ok {
		t.Fatalf("expected FuncLit, got %T", expr)
	}
	if fn.Name != "add" {
		t.Errorf("expected name 'add', got %q", fn.Name)
	}
	if len(fn.Params) != 2 {
		t.Fatalf("expected 2 params, got %d", len(fn.Params))
	}
	if _, ok := fn.Params[0].(*ast.BindPattern); !ok {
		t.Errorf("expected BindPattern param, got %T", fn.Params[0])
	}
}

func TestParseSignalStmts(t *testing.T) {
	file := parseOK(t, "loop {\nbreak :outer x + 1\n}")
	loop := file.Body[0].(*ast.LoopStmt)
	sig, ok := loop.Body.Stmts[0].(*ast.SignalStmt)
	if !ok {
		t.Fatalf("expected SignalStmt, got %T", loop.Body.Stmts[0])
	}
	if sig.Kind != token.KW_BREAK {
		t.Errorf("expected break, got %s", sig.Kind)
	}
	if sig.Label != "outer" {
		t.Errorf("expected label 'outer', got %q", sig.Label)
	}
	if sig.Value == nil {
		t.Error("expected payload expression")
	}
}

func TestParseLabeledLoop(t *testing.T) {
	file := parseOK(t, "outer: for x in xs { break :outer }")
	forStmt, ok := file.Body[0].(*ast.ForStmt)
	if !ok {
		t.Fatalf("expected ForStmt, got %T", file.Body[0])
	}
	if forStmt.Label != "outer" {
		t.Errorf("expected label 'outer', got %q", forStmt.Label)
	}
}

func TestParseLabeledBlock(t *testing.T) {
	file := parseOK(t, "early: {\nleave :early 5\n10\n}")
	block, ok := file.Body[0].(*ast.Block)
	if !ok {
		t.Fatalf("expected Block, got %T", file.Body[0])
	}
	if block.Label != "early" {
		t.Errorf("expected label 'early', got %q", block.Label)
	}
}

func TestParseBlockTrailingSep(t *testing.T) {
	file := parseOK(t, "{ 1; 2; }")
	block := file.Body[0].(*ast.Block)
	if !block.TrailingSep {
		t.Error("expected trailing separator")
	}

	file = parseOK(t, "{\n1\n2\n}")
	block = file.Body[0].(*ast.Block)
	if block.TrailingSep {
		t.Error("newline should not count as a trailing separator")
	}

	file = parseOK(t, "{ 1; 2 }")
	block = file.Body[0].(*ast.Block)
	if block.TrailingSep {
		t.Error("expected no trailing separator")
	}
}

func TestParseDelStmt(t *testing.T) {
	file := parseOK(t, `del x`)
	del, ok := file.Body[0].(*ast.DelStmt)
	if !ok {
		t.Fatalf("expected DelStmt, got %T", file.Body[0])
	}
	if del.Name != "x" {
		t.Errorf("expected 'x', got %q", del.Name)
	}
}

func TestParseListComp(t *testing.T) {
	expr := parseExprStmt(t, `[x * 2 for x in xs if x > 0]`)
	comp, ok := expr.(*ast.ListComp)
	if !ok {
		t.Fatalf("expected ListComp, got %T", expr)
	}
	if comp.Guard == nil {
		t.Error("expected guard")
	}
	if _, ok := comp.Body.(*ast.BinaryExpr); !ok {
		t.Errorf("expected BinaryExpr body, got %T", comp.Body)
	}
}

func TestParseListCompSignalBody(t *testing.T) {
	expr := parseExprStmt(t, `[continue x * 10 for x in xs]`)
	comp, ok := expr.(*ast.ListComp)
	if !ok {
		t.Fatalf("expected ListComp, got %T", expr)
	}
	sig, ok := comp.Body.(*ast.SignalStmt)
	if !ok {
		t.Fatalf("expected SignalStmt body, got %T", comp.Body)
	}
	if sig.Kind != token.KW_CONTINUE || sig.Value == nil {
		t.Error("expected continue with payload")
	}
}

func TestParseDictComp(t *testing.T) {
	expr := parseExprStmt(t, `{k: v * 2 for [k, v] in d}`)
	comp, ok := expr.(*ast.DictComp)
	if !ok {
		t.Fatalf("expected DictComp, got %T", expr)
	}
	if _, ok := comp.Pat.(*ast.ListPattern); !ok {
		t.Errorf("expected ListPattern, got %T", comp.Pat)
	}
}

func TestParseDictLiteral(t *testing.T) {
	expr := parseExprStmt(t, `x = {"a": 1, "b": 2}`)
	assign := expr.(*ast.AssignExpr)
	dict, ok := assign.Value.(*ast.DictLiteral)
	if !ok {
		t.Fatalf("expected DictLiteral, got %T", assign.Value)
	}
	if len(dict.Entries) != 2 {
		t.Errorf("expected 2 entries, got %d", len(dict.Entries))
	}
}

func TestParseListPatternForms(t *testing.T) {
	expr := parseExprStmt(t, `[_, name, ...] = xs`)
	assign := expr.(*ast.AssignExpr)
	pat, ok := assign.Target.(*ast.ListPattern)
	if !ok {
		t.Fatalf("expected ListPattern, got %T", assign.Target)
	}
	if len(pat.Prefix) != 2 {
		t.Errorf("expected 2 prefix elements, got %d", len(pat.Prefix))
	}
	if !pat.HasRest || pat.RestName != "" || pat.RestCount != ast.RestCountVariable {
		t.Errorf("expected anonymous variable rest, got %+v", pat)
	}
	if _, ok := pat.Prefix[0].(*ast.DiscardPattern); !ok {
		t.Errorf("expected DiscardPattern, got %T", pat.Prefix[0])
	}
}

func TestParseListPatternNamedRest(t *testing.T) {
	expr := parseExprStmt(t, `[first, *middle, last] = xs`)
	assign := expr.(*ast.AssignExpr)
	pat := assign.Target.(*ast.ListPattern)
	if pat.RestName != "middle" || pat.RestCount != ast.RestCountVariable {
		t.Errorf("expected *middle rest, got %+v", pat)
	}
	if len(pat.Prefix) != 1 || len(pat.Suffix) != 1 {
		t.Errorf("expected 1 prefix and 1 suffix, got %d/%d", len(pat.Prefix), len(pat.Suffix))
	}
}

func TestParseListPatternCountedRest(t *testing.T) {
	expr := parseExprStmt(t, `[a, pair*2, b] = xs`)
	assign := expr.(*ast.AssignExpr)
	pat := assign.Target.(*ast.ListPattern)
	if pat.RestName != "pair" || pat.RestCount != 2 {
		t.Errorf("expected pair*2 rest, got name=%q count=%d", pat.RestName, pat.RestCount)
	}
}

func TestParseDictPattern(t *testing.T) {
	expr := parseExprStmt(t, `{"name": n, "age": _, **rest} = person`)
	assign := expr.(*ast.AssignExpr)
	pat, ok := assign.Target.(*ast.DictPattern)
	if !ok {
		t.Fatalf("expected DictPattern, got %T", assign.Target)
	}
	if len(pat.Entries) != 2 {
		t.Errorf("expected 2 entries, got %d", len(pat.Entries))
	}
	if !pat.HasRestDict || pat.RestName != "rest" {
		t.Errorf("expected **rest, got %+v", pat)
	}
}

func TestParseDictPatternRestForms(t *testing.T) {
	expr := parseExprStmt(t, `{*keys: 0, "id": *ids} = d`)
	assign := expr.(*ast.AssignExpr)
	pat := assign.Target.(*ast.DictPattern)
	if len(pat.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(pat.Entries))
	}
	if !pat.Entries[0].RestKey || pat.Entries[0].RestValue {
		t.Errorf("entry 0: expected RestKey only, got %+v", pat.Entries[0])
	}
	if pat.Entries[1].RestKey || !pat.Entries[1].RestValue {
		t.Errorf("entry 1: expected RestValue only, got %+v", pat.Entries[1])
	}
}

func TestParseAlternationPattern(t *testing.T) {
	expr := parseExprStmt(t, `0 | 1 | x = v`)
	assign := expr.(*ast.AssignExpr)
	alt, ok := assign.Target.(*ast.AlternationPattern)
	if !ok {
		t.Fatalf("expected AlternationPattern, got %T", assign.Target)
	}
	if len(alt.Alts) != 3 {
		t.Errorf("expected 3 alternatives, got %d", len(alt.Alts))
	}
}

func TestParseGuardedPattern(t *testing.T) {
	expr := parseExprStmt(t, `x if (it > 0) = v`)
	assign := expr.(*ast.AssignExpr)
	guarded, ok := assign.Target.(*ast.GuardedPattern)
	if !ok {
		t.Fatalf("expected GuardedPattern, got %T", assign.Target)
	}
	if _, ok := guarded.Inner.(*ast.BindPattern); !ok {
		t.Errorf("expected BindPattern inner, got %T", guarded.Inner)
	}
}

func TestParseGuardedPatternInFor(t *testing.T) {
	file := parseOK(t, `for x if (x > 0) in xs { x }`)
	forStmt := file.Body[0].(*ast.ForStmt)
	if _, ok := forStmt.Pat.(*ast.GuardedPattern); !ok {
		t.Errorf("expected GuardedPattern, got %T", forStmt.Pat)
	}
}

func TestParseDictDestructureStmt(t *testing.T) {
	// A dict pattern at statement position must not be taken for a block.
	file := parseOK(t, `{"k": v} = d`)
	stmt, ok := file.Body[0].(*ast.ExprStmt)
	if !ok {
		t.Fatalf("expected ExprStmt, got %T", file.Body[0])
	}
	if _, ok := stmt.Expr.(*ast.AssignExpr); !ok {
		t.Errorf("expected AssignExpr, got %T", stmt.Expr)
	}
}

func TestParseNotAssignmentRollback(t *testing.T) {
	// [1, 2] with no '=' is a list literal, not a failed pattern.
	expr := parseExprStmt(t, `[1, 2]`)
	if _, ok := expr.(*ast.ListLiteral); !ok {
		t.Errorf("expected ListLiteral, got %T", expr)
	}

	// a | b with no '=' is bitwise or.
	expr = parseExprStmt(t, `a | b`)
	bin, ok := expr.(*ast.BinaryExpr)
	if !ok || bin.Op != token.PIPE {
		t.Errorf("expected '|' BinaryExpr, got %T", expr)
	}
}

func TestParseAssignToCallIsError(t *testing.T) {
	l := lexer.New(`f(x) = 1`, "test.ink")
	tokens, _ := l.Tokenize()
	p := New(tokens)
	_, diags := p.ParseFile()
	if len(diags) == 0 {
		t.Error("expected a diagnostic for assignment to a call")
	}
}

func TestParseCascadeAfterAssignment(t *testing.T) {
	expr := parseExprStmt(t, `x = [0]..append(1)`)
	assign := expr.(*ast.AssignExpr)
	if _, ok := assign.Value.(*ast.CascadeExpr); !ok {
		t.Errorf("expected CascadeExpr value, got %T", assign.Value)
	}
}

func TestParseUnsetLiteral(t *testing.T) {
	expr := parseExprStmt(t, `x = unset`)
	assign := expr.(*ast.AssignExpr)
	if _, ok := assign.Value.(*ast.UnsetLiteral); !ok {
		t.Errorf("expected UnsetLiteral, got %T", assign.Value)
	}
}
