// Package parser implements the syntax analysis for ink.
// It uses Pratt parsing for expressions and recursive descent for
// statements and patterns.
package parser

import (
	"fmt"
	"strconv"

	"github.com/MoonMountain2k/inkparse/internal/ast"
	"github.com/MoonMountain2k/inkparse/internal/diag"
	"github.com/MoonMountain2k/inkparse/internal/span"
	"github.com/MoonMountain2k/inkparse/internal/token"
)

// ============================================================
// Binding power (precedence) levels
// ============================================================

const (
	bpNone     = 0
	bpCascade  = 10  // ..
	bpOr       = 20  // or
	bpAnd      = 30  // and
	bpNot      = 40  // not (prefix)
	bpCompare  = 50  // == != < <= > >= in is (non-associative chain)
	bpCoalesce = 60  // ??
	bpBitOr    = 70  // |
	bpBitXor   = 80  // ^
	bpBitAnd   = 90  // &
	bpShift    = 100 // << >>
	bpAdditive = 110 // + -
	bpMultiply = 120 // * / %
	bpPrefix   = 130 // unary -
	bpPow      = 140 // ** (right-associative)
	bpPostfix  = 150 // () [] .
)

// infixBP returns the left binding power for an infix/postfix operator.
func infixBP(kind token.Kind) int {
	switch kind {
	case token.CASCADE:
		return bpCascade
	case token.KW_OR:
		return bpOr
	case token.KW_AND:
		return bpAnd
	case token.EQ, token.NEQ, token.LT, token.LTE, token.GT, token.GTE,
		token.KW_IN, token.KW_IS, token.KW_NOT:
		return bpCompare
	case token.COALESCE:
		return bpCoalesce
	case token.PIPE:
		return bpBitOr
	case token.CARET:
		return bpBitXor
	case token.AMP:
		return bpBitAnd
	case token.SHL, token.SHR:
		return bpShift
	case token.PLUS, token.MINUS:
		return bpAdditive
	case token.STAR, token.SLASH, token.PERCENT:
		return bpMultiply
	case token.POW:
		return bpPow
	case token.LPAREN, token.LBRACKET, token.DOT:
		return bpPostfix
	default:
		return bpNone
	}
}

func isCompareOp(kind token.Kind) bool {
	switch kind {
	case token.EQ, token.NEQ, token.LT, token.LTE, token.GT, token.GTE:
		return true
	}
	return false
}

// ============================================================
// Parser
// ============================================================

// Parser performs syntax analysis on a stream of tokens.
type Parser struct {
	tokens []token.Token
	pos    int
	diags  []diag.Diagnostic
}

// New creates a new parser from a token slice.
func New(tokens []token.Token) *Parser {
	return &Parser{tokens: tokens, pos: 0}
}

// ParseFile parses the entire file and returns the AST root and diagnostics.
func (p *Parser) ParseFile() (*ast.File, []diag.Diagnostic) {
	file := &ast.File{}
	startPos := p.peek().Span.Start

	p.skipSep()
	for !p.isAtEnd() {
		before := p.pos
		node := p.parseStmt()
		if node != nil {
			file.Body = append(file.Body, node)
		}
		p.skipSep()
		if p.pos == before {
			// A token no statement can start (e.g. a stray '}') leaves
			// recovery stuck at top level; force progress.
			p.advance()
		}
	}

	endPos := p.peek().Span.End
	file.Span = span.Span{Start: startPos, End: endPos}
	return file, p.diags
}

// ---- navigation helpers ----

func (p *Parser) peek() token.Token {
	if p.pos >= len(p.tokens) {
		return token.Token{Kind: token.EOF}
	}
	return p.tokens[p.pos]
}

func (p *Parser) peekKind() token.Kind {
	return p.peek().Kind
}

func (p *Parser) peekKindAt(n int) token.Kind {
	if p.pos+n >= len(p.tokens) {
		return token.EOF
	}
	return p.tokens[p.pos+n].Kind
}

func (p *Parser) advance() token.Token {
	tok := p.peek()
	if p.pos < len(p.tokens) {
		p.pos++
	}
	return tok
}

func (p *Parser) check(kind token.Kind) bool {
	return p.peekKind() == kind
}

func (p *Parser) match(kinds ...token.Kind) bool {
	for _, k := range kinds {
		if p.check(k) {
			return true
		}
	}
	return false
}

func (p *Parser) expect(kind token.Kind) (token.Token, bool) {
	if p.check(kind) {
		return p.advance(), true
	}
	tok := p.peek()
	p.error("E2001", tok.Span, fmt.Sprintf("expected '%s', got '%s'", kind, tok.Kind))
	return tok, false
}

func (p *Parser) isAtEnd() bool {
	return p.peekKind() == token.EOF
}

// skipSep skips NEWLINE and SEMICOLON tokens (separators).
func (p *Parser) skipSep() {
	for p.match(token.NEWLINE, token.SEMICOLON) {
		p.advance()
	}
}

// skipNewlines skips NEWLINE tokens only.
func (p *Parser) skipNewlines() {
	for p.check(token.NEWLINE) {
		p.advance()
	}
}

func (p *Parser) error(code string, s span.Span, msg string) {
	p.diags = append(p.diags, diag.Errorf(code, s, "%s", msg))
}

// ============================================================
// Error recovery
// ============================================================

// synchronize skips tokens until a likely statement boundary.
func (p *Parser) synchronize() {
	for !p.isAtEnd() {
		if p.match(token.NEWLINE, token.SEMICOLON) {
			p.advance()
			return
		}
		if p.check(token.RBRACE) {
			return
		}
		if p.match(token.KW_IF, token.KW_WHILE, token.KW_FOR, token.KW_LOOP, token.KW_FN,
			token.KW_RETURN, token.KW_BREAK, token.KW_CONTINUE, token.KW_LEAVE, token.KW_DEL) {
			return
		}
		p.advance()
	}
}

// ============================================================
// Statement parsing
// ============================================================

func (p *Parser) parseStmt() ast.Stmt {
	// Label: IDENT ':' followed by a loop or a block
	if p.check(token.IDENT) && p.peekKindAt(1) == token.COLON {
		switch p.peekKindAt(2) {
		case token.KW_FOR, token.KW_WHILE, token.KW_LOOP, token.LBRACE:
			label := p.advance().Lexeme // IDENT
			p.advance()                 // ':'
			return p.parseLabeled(label)
		}
	}

	switch p.peekKind() {
	case token.KW_FOR:
		return p.parseForStmt("")
	case token.KW_WHILE:
		return p.parseWhileStmt("")
	case token.KW_LOOP:
		return p.parseLoopStmt("")
	case token.KW_RETURN, token.KW_BREAK, token.KW_CONTINUE, token.KW_LEAVE:
		return p.parseSignalStmt()
	case token.KW_DEL:
		return p.parseDelStmt()
	case token.LBRACE:
		// A dict pattern on the left of = or <- also starts with '{'.
		if stmt := p.tryAssign(); stmt != nil {
			return stmt
		}
		return p.parseBlock("")
	default:
		return p.parseSimpleStmt()
	}
}

// parseLabeled parses the construct following "name:".
func (p *Parser) parseLabeled(label string) ast.Stmt {
	switch p.peekKind() {
	case token.KW_FOR:
		return p.parseForStmt(label)
	case token.KW_WHILE:
		return p.parseWhileStmt(label)
	case token.KW_LOOP:
		return p.parseLoopStmt(label)
	default:
		return p.parseBlock(label)
	}
}

// parseBlock parses: { stmts }. The trailing-separator flag records
// whether a semicolon followed the last statement, which discards the
// block's value. A newline only ends the statement.
func (p *Parser) parseBlock(label string) *ast.Block {
	start := p.peek()
	block := &ast.Block{Label: label}

	if _, ok := p.expect(token.LBRACE); !ok {
		p.synchronize()
		block.Span = p.makeSpan(start.Span.Start)
		return block
	}

	p.skipSep()
	for !p.check(token.RBRACE) && !p.isAtEnd() {
		node := p.parseStmt()
		if node != nil {
			block.Stmts = append(block.Stmts, node)
		}
		block.TrailingSep = p.match(token.SEMICOLON)
		p.skipSep()
	}

	p.expect(token.RBRACE)
	block.Span = p.makeSpan(start.Span.Start)
	return block
}

// parseSignalStmt parses: (leave|break|continue|return) [:label] [value]
func (p *Parser) parseSignalStmt() *ast.SignalStmt {
	start := p.advance()
	stmt := &ast.SignalStmt{Kind: start.Kind}

	// optional :label
	if p.check(token.COLON) {
		p.advance()
		labelTok, ok := p.expect(token.IDENT)
		if ok {
			stmt.Label = labelTok.Lexeme
		}
	}

	// optional payload on the same line
	if !p.match(token.NEWLINE, token.SEMICOLON, token.RBRACE, token.RBRACKET,
		token.KW_FOR, token.EOF) {
		stmt.Value = p.parseExpr(bpNone)
	}

	stmt.StmtBase = makeStmtBase(start.Span.Start, p.prevEnd())
	return stmt
}

// parseDelStmt parses: del IDENT
func (p *Parser) parseDelStmt() *ast.DelStmt {
	start := p.advance()
	stmt := &ast.DelStmt{}

	nameTok, ok := p.expect(token.IDENT)
	if ok {
		stmt.Name = nameTok.Lexeme
	} else {
		p.synchronize()
	}

	stmt.StmtBase = makeStmtBase(start.Span.Start, p.prevEnd())
	return stmt
}

// parseForStmt parses: for pattern in expr block
func (p *Parser) parseForStmt(label string) *ast.ForStmt {
	start := p.advance() // consume 'for'
	stmt := &ast.ForStmt{Label: label}

	pat, ok := p.parsePattern()
	if !ok {
		p.synchronize()
		stmt.StmtBase = makeStmtBase(start.Span.Start, p.prevEnd())
		return stmt
	}
	stmt.Pat = pat

	if _, ok := p.expect(token.KW_IN); !ok {
		p.synchronize()
		stmt.StmtBase = makeStmtBase(start.Span.Start, p.prevEnd())
		return stmt
	}

	stmt.Source = p.parseExpr(bpNone)
	stmt.Body = p.parseBlock("")
	stmt.StmtBase = makeStmtBase(start.Span.Start, p.prevEnd())
	return stmt
}

// parseWhileStmt parses: while expr block
func (p *Parser) parseWhileStmt(label string) *ast.WhileStmt {
	start := p.advance() // consume 'while'
	stmt := &ast.WhileStmt{Label: label}

	stmt.Condition = p.parseExpr(bpNone)
	stmt.Body = p.parseBlock("")
	stmt.StmtBase = makeStmtBase(start.Span.Start, p.prevEnd())
	return stmt
}

// parseLoopStmt parses: loop [count] block
func (p *Parser) parseLoopStmt(label string) *ast.LoopStmt {
	start := p.advance() // consume 'loop'
	stmt := &ast.LoopStmt{Label: label}

	if !p.check(token.LBRACE) {
		stmt.Count = p.parseExpr(bpNone)
	}
	stmt.Body = p.parseBlock("")
	stmt.StmtBase = makeStmtBase(start.Span.Start, p.prevEnd())
	return stmt
}

// parseSimpleStmt parses an expression statement, an assignment, or a move.
func (p *Parser) parseSimpleStmt() ast.Stmt {
	// Compound assignment targets plain names only: x += expr
	if p.check(token.IDENT) {
		switch p.peekKindAt(1) {
		case token.PLUS_ASSIGN, token.MINUS_ASSIGN, token.STAR_ASSIGN,
			token.SLASH_ASSIGN, token.PERCENT_ASSIGN:
			nameTok := p.advance()
			opTok := p.advance()
			value := p.parseExpr(bpNone)
			assign := &ast.AssignExpr{
				ExprBase: makeExprBase(nameTok.Span.Start, p.prevEnd()),
				Op:       opTok.Kind,
				Target: &ast.BindPattern{
					PatternBase: makePatternBase(nameTok.Span.Start, nameTok.Span.End),
					Name:        nameTok.Lexeme,
				},
				Value: value,
			}
			return &ast.ExprStmt{
				StmtBase: makeStmtBase(nameTok.Span.Start, p.prevEnd()),
				Expr:     assign,
			}
		}
	}

	// Pattern assignment or move: pattern = expr | pattern <- name.
	// Tried with backtracking since the target grammar overlaps
	// expression syntax.
	if stmt := p.tryAssign(); stmt != nil {
		return stmt
	}

	expr := p.parseExpr(bpNone)
	if expr == nil {
		tok := p.peek()
		p.error("E2002", tok.Span, fmt.Sprintf("unexpected token: '%s'", tok.Lexeme))
		p.synchronize()
		return &ast.ExprStmt{
			StmtBase: makeStmtBase(tok.Span.Start, tok.Span.End),
		}
	}

	if p.check(token.ASSIGN) {
		tok := p.advance()
		p.error("E2004", tok.Span, "cannot assign to this expression")
		p.parseExpr(bpNone) // consume the right side for recovery
	}

	return &ast.ExprStmt{
		StmtBase: makeStmtBase(expr.GetSpan().Start, expr.GetSpan().End),
		Expr:     expr,
	}
}

// tryAssign attempts to parse "pattern = expr" or "pattern <- name".
// On failure it rewinds completely and returns nil.
func (p *Parser) tryAssign() ast.Stmt {
	startPos := p.pos
	startDiags := len(p.diags)

	pat, ok := p.parsePattern()
	if !ok || !p.match(token.ASSIGN, token.MOVE) {
		p.pos = startPos
		p.diags = p.diags[:startDiags]
		return nil
	}

	opTok := p.advance()
	start := pat.GetSpan().Start

	if opTok.Kind == token.MOVE {
		srcTok, ok := p.expect(token.IDENT)
		if !ok {
			p.synchronize()
			return &ast.ExprStmt{StmtBase: makeStmtBase(start, p.prevEnd())}
		}
		move := &ast.MoveExpr{
			ExprBase: makeExprBase(start, srcTok.Span.End),
			Target:   pat,
			Source: &ast.IdentExpr{
				ExprBase: makeExprBase(srcTok.Span.Start, srcTok.Span.End),
				Name:     srcTok.Lexeme,
			},
		}
		return &ast.ExprStmt{
			StmtBase: makeStmtBase(start, p.prevEnd()),
			Expr:     move,
		}
	}

	p.skipNewlines()
	value := p.parseExpr(bpNone)
	assign := &ast.AssignExpr{
		ExprBase: makeExprBase(start, p.prevEnd()),
		Op:       token.ASSIGN,
		Target:   pat,
		Value:    value,
	}
	return &ast.ExprStmt{
		StmtBase: makeStmtBase(start, p.prevEnd()),
		Expr:     assign,
	}
}

// ============================================================
// Expression parsing (Pratt / precedence climbing)
// ============================================================

// parseExpr parses an expression with the given minimum binding power.
func (p *Parser) parseExpr(minBP int) ast.Expr {
	left := p.nud()
	if left == nil {
		return nil
	}

	for {
		kind := p.peekKind()
		// Infix 'not' is only the start of 'not in'.
		if kind == token.KW_NOT && p.peekKindAt(1) != token.KW_IN {
			break
		}
		bp := infixBP(kind)
		if bp <= minBP {
			break
		}
		left = p.led(left)
	}

	return left
}

// nud handles prefix (null denotation) parsing.
func (p *Parser) nud() ast.Expr {
	tok := p.peek()

	switch tok.Kind {
	case token.INT:
		p.advance()
		val, err := strconv.ParseInt(tok.Lexeme, 0, 64)
		if err != nil {
			p.error("E2005", tok.Span, fmt.Sprintf("invalid integer literal: %q", tok.Lexeme))
		}
		return &ast.IntLiteral{
			ExprBase: makeExprBase(tok.Span.Start, tok.Span.End),
			Value:    val,
		}

	case token.FLOAT:
		p.advance()
		val, err := strconv.ParseFloat(tok.Lexeme, 64)
		if err != nil {
			p.error("E2005", tok.Span, fmt.Sprintf("invalid float literal: %q", tok.Lexeme))
		}
		return &ast.FloatLiteral{
			ExprBase: makeExprBase(tok.Span.Start, tok.Span.End),
			Value:    val,
		}

	case token.STRING:
		p.advance()
		return &ast.StringLiteral{
			ExprBase: makeExprBase(tok.Span.Start, tok.Span.End),
			Value:    tok.Lexeme,
		}

	case token.KW_TRUE:
		p.advance()
		return &ast.BoolLiteral{
			ExprBase: makeExprBase(tok.Span.Start, tok.Span.End),
			Value:    true,
		}

	case token.KW_FALSE:
		p.advance()
		return &ast.BoolLiteral{
			ExprBase: makeExprBase(tok.Span.Start, tok.Span.End),
			Value:    false,
		}

	case token.KW_NULL:
		p.advance()
		return &ast.NullLiteral{
			ExprBase: makeExprBase(tok.Span.Start, tok.Span.End),
		}

	case token.KW_UNSET:
		p.advance()
		return &ast.UnsetLiteral{
			ExprBase: makeExprBase(tok.Span.Start, tok.Span.End),
		}

	case token.IDENT:
		p.advance()
		return &ast.IdentExpr{
			ExprBase: makeExprBase(tok.Span.Start, tok.Span.End),
			Name:     tok.Lexeme,
		}

	case token.LPAREN:
		// Grouped expression: ( expr )
		p.advance()
		p.skipNewlines()
		expr := p.parseExpr(bpNone)
		p.skipNewlines()
		p.expect(token.RPAREN)
		return expr

	case token.KW_NOT:
		p.advance()
		p.skipNewlines()
		operand := p.parseExpr(bpNot)
		if operand == nil {
			p.error("E2002", tok.Span, "expected expression after 'not'")
			return nil
		}
		return &ast.UnaryExpr{
			ExprBase: makeExprBase(tok.Span.Start, operand.GetSpan().End),
			Op:       token.KW_NOT,
			Operand:  operand,
		}

	case token.MINUS:
		p.advance()
		p.skipNewlines()
		operand := p.parseExpr(bpPrefix)
		if operand == nil {
			p.error("E2002", tok.Span, "expected expression after '-'")
			return nil
		}
		return &ast.UnaryExpr{
			ExprBase: makeExprBase(tok.Span.Start, operand.GetSpan().End),
			Op:       token.MINUS,
			Operand:  operand,
		}

	case token.KW_IF:
		return p.parseIfExpr()

	case token.KW_FN:
		return p.parseFuncLit()

	case token.LBRACKET:
		return p.parseListExpr()

	case token.LBRACE:
		return p.parseDictExpr()

	default:
		return nil
	}
}

// led handles infix/postfix (left denotation) parsing.
func (p *Parser) led(left ast.Expr) ast.Expr {
	tok := p.peek()

	switch {
	case isCompareOp(tok.Kind):
		return p.parseCompareChain(left)

	case tok.Kind == token.KW_IN:
		p.advance()
		p.skipNewlines()
		right := p.parseExpr(bpCompare)
		return &ast.BinaryExpr{
			ExprBase: makeExprBase(left.GetSpan().Start, right.GetSpan().End),
			Op:       token.KW_IN,
			Left:     left,
			Right:    right,
		}

	case tok.Kind == token.KW_NOT:
		// x not in y
		p.advance() // 'not'
		p.advance() // 'in'
		p.skipNewlines()
		right := p.parseExpr(bpCompare)
		return &ast.BinaryExpr{
			ExprBase: makeExprBase(left.GetSpan().Start, right.GetSpan().End),
			Op:       token.KW_IN,
			Negated:  true,
			Left:     left,
			Right:    right,
		}

	case tok.Kind == token.KW_IS:
		p.advance()
		negated := false
		if p.check(token.KW_NOT) {
			p.advance()
			negated = true
		}
		p.skipNewlines()
		right := p.parseExpr(bpCompare)
		return &ast.BinaryExpr{
			ExprBase: makeExprBase(left.GetSpan().Start, right.GetSpan().End),
			Op:       token.KW_IS,
			Negated:  negated,
			Left:     left,
			Right:    right,
		}

	case tok.Kind == token.POW:
		// right-associative
		p.advance()
		p.skipNewlines()
		right := p.parseExpr(bpPow - 1)
		return &ast.BinaryExpr{
			ExprBase: makeExprBase(left.GetSpan().Start, right.GetSpan().End),
			Op:       token.POW,
			Left:     left,
			Right:    right,
		}

	case tok.Kind == token.CASCADE:
		return p.parseCascade(left)

	case tok.Kind == token.LPAREN:
		return p.parseCallExpr(left)

	case tok.Kind == token.LBRACKET:
		p.advance()
		p.skipNewlines()
		index := p.parseExpr(bpNone)
		p.skipNewlines()
		end, _ := p.expect(token.RBRACKET)
		return &ast.IndexExpr{
			ExprBase: makeExprBase(left.GetSpan().Start, end.Span.End),
			Object:   left,
			Index:    index,
		}

	case tok.Kind == token.DOT:
		p.advance()
		p.skipNewlines()
		propTok, _ := p.expect(token.IDENT)
		return &ast.MemberExpr{
			ExprBase: makeExprBase(left.GetSpan().Start, propTok.Span.End),
			Object:   left,
			Property: propTok.Lexeme,
		}

	default:
		// Plain left-associative binary operator
		bp := infixBP(tok.Kind)
		p.advance()
		p.skipNewlines()
		right := p.parseExpr(bp)
		if right == nil {
			p.error("E2002", tok.Span, fmt.Sprintf("expected expression after '%s'", tok.Kind))
			return left
		}
		return &ast.BinaryExpr{
			ExprBase: makeExprBase(left.GetSpan().Start, right.GetSpan().End),
			Op:       tok.Kind,
			Left:     left,
			Right:    right,
		}
	}
}

// parseCompareChain collects a run of comparison operators into a
// single node: a < b <= c is one chain with three operands, evaluated
// pairwise left to right with short-circuit.
func (p *Parser) parseCompareChain(left ast.Expr) ast.Expr {
	chain := &ast.CompareChain{Operands: []ast.Expr{left}}

	for isCompareOp(p.peekKind()) {
		opTok := p.advance()
		p.skipNewlines()
		operand := p.parseExpr(bpCompare)
		if operand == nil {
			p.error("E2002", opTok.Span, fmt.Sprintf("expected expression after '%s'", opTok.Kind))
			break
		}
		chain.Ops = append(chain.Ops, opTok.Kind)
		chain.Operands = append(chain.Operands, operand)
	}

	last := chain.Operands[len(chain.Operands)-1]
	chain.ExprBase = makeExprBase(left.GetSpan().Start, last.GetSpan().End)
	return chain
}

// parseCascade parses: receiver..m1(args)..m2(args)
func (p *Parser) parseCascade(receiver ast.Expr) ast.Expr {
	expr := &ast.CascadeExpr{Receiver: receiver}

	for p.check(token.CASCADE) {
		dotTok := p.advance()
		memberTok, ok := p.expect(token.IDENT)
		if !ok {
			break
		}
		if _, ok := p.expect(token.LPAREN); !ok {
			break
		}
		args := p.parseArgList()
		call := ast.CascadeCall{
			Span:   span.Span{Start: dotTok.Span.Start, End: p.prevEnd()},
			Member: memberTok.Lexeme,
			Args:   args,
		}
		expr.Calls = append(expr.Calls, call)
	}

	expr.ExprBase = makeExprBase(receiver.GetSpan().Start, p.prevEnd())
	return expr
}

// parseCallExpr parses: callee ( args )
func (p *Parser) parseCallExpr(callee ast.Expr) *ast.CallExpr {
	p.advance() // consume '('
	args := p.parseArgList()
	return &ast.CallExpr{
		ExprBase: makeExprBase(callee.GetSpan().Start, p.prevEnd()),
		Callee:   callee,
		Args:     args,
	}
}

// parseArgList parses the arguments after a consumed '(' up to ')'.
func (p *Parser) parseArgList() []ast.Expr {
	var args []ast.Expr

	p.skipNewlines()
	if !p.check(token.RPAREN) {
		args = append(args, p.parseExpr(bpNone))
		for p.check(token.COMMA) {
			p.advance()
			p.skipNewlines()
			if p.check(token.RPAREN) {
				break // trailing comma
			}
			args = append(args, p.parseExpr(bpNone))
		}
	}
	p.skipNewlines()
	p.expect(token.RPAREN)
	return args
}

// parseIfExpr parses: if expr block { elif expr block } [ else block ]
func (p *Parser) parseIfExpr() *ast.IfExpr {
	start := p.advance() // consume 'if'
	expr := &ast.IfExpr{}

	expr.Condition = p.parseExpr(bpNone)
	expr.Body = p.parseBlock("")

	for p.check(token.KW_ELIF) {
		elifStart := p.advance()
		clause := ast.ElifClause{}
		clause.Condition = p.parseExpr(bpNone)
		clause.Body = p.parseBlock("")
		clause.Span = span.Span{Start: elifStart.Span.Start, End: p.prevEnd()}
		expr.Elifs = append(expr.Elifs, clause)
	}

	if p.check(token.KW_ELSE) {
		p.advance()
		expr.ElseBody = p.parseBlock("")
	}

	expr.ExprBase = makeExprBase(start.Span.Start, p.prevEnd())
	return expr
}

// parseFuncLit parses: fn [name] ( params ) block
func (p *Parser) parseFuncLit() *ast.FuncLit {
	start := p.advance() // consume 'fn'
	fn := &ast.FuncLit{}

	if p.check(token.IDENT) {
		fn.Name = p.advance().Lexeme
	}

	if _, ok := p.expect(token.LPAREN); ok {
		p.skipNewlines()
		if !p.check(token.RPAREN) {
			pat, ok := p.parsePattern()
			if ok {
				fn.Params = append(fn.Params, pat)
			}
			for p.check(token.COMMA) {
				p.advance()
				p.skipNewlines()
				pat, ok = p.parsePattern()
				if ok {
					fn.Params = append(fn.Params, pat)
				}
			}
		}
		p.skipNewlines()
		p.expect(token.RPAREN)
	}

	fn.Body = p.parseBlock("")
	fn.ExprBase = makeExprBase(start.Span.Start, p.prevEnd())
	return fn
}

// parseListExpr parses a list literal or a list comprehension.
func (p *Parser) parseListExpr() ast.Expr {
	start := p.advance() // consume '['

	p.skipNewlines()
	if p.check(token.RBRACKET) {
		end := p.advance()
		return &ast.ListLiteral{
			ExprBase: makeExprBase(start.Span.Start, end.Span.End),
		}
	}

	// The first element may itself carry a signal, for comprehension
	// bodies like [continue x*10 for x in xs].
	var body ast.Node
	if p.peek().Kind.IsSignal() {
		body = p.parseSignalStmt()
	} else {
		body = p.parseExpr(bpNone)
		if body == nil {
			p.error("E2002", p.peek().Span, "expected expression in list")
			p.synchronize()
			return &ast.ListLiteral{ExprBase: makeExprBase(start.Span.Start, p.prevEnd())}
		}
	}

	if p.check(token.KW_FOR) {
		return p.parseListComp(start, body)
	}

	first, ok := body.(ast.Expr)
	if !ok {
		p.error("E2006", body.GetSpan(), "signal statement outside comprehension")
		first = &ast.NullLiteral{ExprBase: makeExprBase(body.GetSpan().Start, body.GetSpan().End)}
	}

	elements := []ast.Expr{first}
	for p.check(token.COMMA) {
		p.advance()
		p.skipNewlines()
		if p.check(token.RBRACKET) {
			break // trailing comma
		}
		elements = append(elements, p.parseExpr(bpNone))
	}
	p.skipNewlines()
	end, _ := p.expect(token.RBRACKET)

	return &ast.ListLiteral{
		ExprBase: makeExprBase(start.Span.Start, end.Span.End),
		Elements: elements,
	}
}

// parseListComp parses the rest of: [ body for pattern in expr [if guard] ]
func (p *Parser) parseListComp(start token.Token, body ast.Node) *ast.ListComp {
	comp := &ast.ListComp{Body: body}

	p.advance() // consume 'for'
	pat, ok := p.parsePattern()
	if !ok {
		p.synchronize()
		comp.ExprBase = makeExprBase(start.Span.Start, p.prevEnd())
		return comp
	}
	comp.Pat = pat

	p.expect(token.KW_IN)
	comp.Source = p.parseExpr(bpNone)

	if p.check(token.KW_IF) {
		p.advance()
		comp.Guard = p.parseExpr(bpNone)
	}

	p.skipNewlines()
	p.expect(token.RBRACKET)
	comp.ExprBase = makeExprBase(start.Span.Start, p.prevEnd())
	return comp
}

// parseDictExpr parses a dict literal or a dict comprehension.
func (p *Parser) parseDictExpr() ast.Expr {
	start := p.advance() // consume '{'

	p.skipNewlines()
	if p.check(token.RBRACE) {
		end := p.advance()
		return &ast.DictLiteral{
			ExprBase: makeExprBase(start.Span.Start, end.Span.End),
		}
	}

	key := p.parseExpr(bpNone)
	if key == nil {
		p.error("E2002", p.peek().Span, "expected expression in dict")
		p.synchronize()
		return &ast.DictLiteral{ExprBase: makeExprBase(start.Span.Start, p.prevEnd())}
	}
	p.expect(token.COLON)
	p.skipNewlines()
	value := p.parseExpr(bpNone)

	if p.check(token.KW_FOR) {
		return p.parseDictComp(start, key, value)
	}

	entries := []ast.DictEntryExpr{{
		Span:  span.Span{Start: key.GetSpan().Start, End: p.prevEnd()},
		Key:   key,
		Value: value,
	}}

	for p.check(token.COMMA) {
		p.advance()
		p.skipNewlines()
		if p.check(token.RBRACE) {
			break // trailing comma
		}
		k := p.parseExpr(bpNone)
		p.expect(token.COLON)
		p.skipNewlines()
		v := p.parseExpr(bpNone)
		entries = append(entries, ast.DictEntryExpr{
			Span:  span.Span{Start: k.GetSpan().Start, End: p.prevEnd()},
			Key:   k,
			Value: v,
		})
	}
	p.skipNewlines()
	end, _ := p.expect(token.RBRACE)

	return &ast.DictLiteral{
		ExprBase: makeExprBase(start.Span.Start, end.Span.End),
		Entries:  entries,
	}
}

// parseDictComp parses the rest of: { k: v for pattern in expr [if guard] }
func (p *Parser) parseDictComp(start token.Token, key, value ast.Expr) *ast.DictComp {
	comp := &ast.DictComp{Key: key, Value: value}

	p.advance() // consume 'for'
	pat, ok := p.parsePattern()
	if !ok {
		p.synchronize()
		comp.ExprBase = makeExprBase(start.Span.Start, p.prevEnd())
		return comp
	}
	comp.Pat = pat

	p.expect(token.KW_IN)
	comp.Source = p.parseExpr(bpNone)

	if p.check(token.KW_IF) {
		p.advance()
		comp.Guard = p.parseExpr(bpNone)
	}

	p.skipNewlines()
	p.expect(token.RBRACE)
	comp.ExprBase = makeExprBase(start.Span.Start, p.prevEnd())
	return comp
}

// ============================================================
// Pattern parsing
// ============================================================

// parsePattern parses a full pattern: alternation with an optional
// parenthesized guard. The guard's parens separate it from a
// comprehension's own "if" clause.
func (p *Parser) parsePattern() (ast.Pattern, bool) {
	pat, ok := p.parseAltPattern()
	if !ok {
		return nil, false
	}

	if p.check(token.KW_IF) && p.peekKindAt(1) == token.LPAREN {
		p.advance() // 'if'
		p.advance() // '('
		p.skipNewlines()
		cond := p.parseExpr(bpNone)
		p.skipNewlines()
		p.expect(token.RPAREN)
		guarded := &ast.GuardedPattern{
			Inner:     pat,
			Condition: cond,
		}
		guarded.PatternBase = makePatternBase(pat.GetSpan().Start, p.prevEnd())
		return guarded, true
	}

	return pat, true
}

// parseAltPattern parses: pat { | pat }
func (p *Parser) parseAltPattern() (ast.Pattern, bool) {
	first, ok := p.parsePrimaryPattern()
	if !ok {
		return nil, false
	}

	if !p.check(token.PIPE) {
		return first, true
	}

	alt := &ast.AlternationPattern{Alts: []ast.Pattern{first}}
	for p.check(token.PIPE) {
		p.advance()
		p.skipNewlines()
		next, ok := p.parsePrimaryPattern()
		if !ok {
			return nil, false
		}
		alt.Alts = append(alt.Alts, next)
	}

	last := alt.Alts[len(alt.Alts)-1]
	alt.PatternBase = makePatternBase(first.GetSpan().Start, last.GetSpan().End)
	return alt, true
}

// parsePrimaryPattern parses a single non-alternation pattern.
func (p *Parser) parsePrimaryPattern() (ast.Pattern, bool) {
	tok := p.peek()

	switch tok.Kind {
	case token.IDENT:
		p.advance()
		if tok.Lexeme == "_" {
			return &ast.DiscardPattern{
				PatternBase: makePatternBase(tok.Span.Start, tok.Span.End),
			}, true
		}
		return &ast.BindPattern{
			PatternBase: makePatternBase(tok.Span.Start, tok.Span.End),
			Name:        tok.Lexeme,
		}, true

	case token.INT, token.FLOAT, token.STRING, token.KW_TRUE, token.KW_FALSE, token.KW_NULL:
		lit := p.nud()
		return &ast.LiteralPattern{
			PatternBase: makePatternBase(lit.GetSpan().Start, lit.GetSpan().End),
			Value:       lit,
		}, true

	case token.MINUS:
		// negative numeric literal
		if p.peekKindAt(1) == token.INT || p.peekKindAt(1) == token.FLOAT {
			lit := p.nud() // UnaryExpr over the literal
			return &ast.LiteralPattern{
				PatternBase: makePatternBase(lit.GetSpan().Start, lit.GetSpan().End),
				Value:       lit,
			}, true
		}
		return nil, false

	case token.LBRACKET:
		return p.parseListPattern()

	case token.LBRACE:
		return p.parseDictPattern()

	case token.LPAREN:
		p.advance()
		p.skipNewlines()
		inner, ok := p.parsePattern()
		if !ok {
			return nil, false
		}
		p.skipNewlines()
		if _, ok := p.expect(token.RPAREN); !ok {
			return nil, false
		}
		return inner, true

	default:
		return nil, false
	}
}

// parseListPattern parses: [ elems ] with at most one rest position.
//
// Rest forms: "..." skips, "*name" captures a variable-length slice,
// "name*N" captures exactly N elements.
func (p *Parser) parseListPattern() (ast.Pattern, bool) {
	start := p.advance() // consume '['
	pat := &ast.ListPattern{}

	p.skipNewlines()
	for !p.check(token.RBRACKET) && !p.isAtEnd() {
		switch {
		case p.check(token.ELLIPSIS):
			tok := p.advance()
			if pat.HasRest {
				p.error("E2007", tok.Span, "list pattern has more than one rest element")
				return nil, false
			}
			pat.HasRest = true
			pat.RestName = ""
			pat.RestCount = ast.RestCountVariable

		case p.check(token.STAR) && p.peekKindAt(1) == token.IDENT:
			tok := p.advance() // '*'
			nameTok := p.advance()
			if pat.HasRest {
				p.error("E2007", tok.Span, "list pattern has more than one rest element")
				return nil, false
			}
			pat.HasRest = true
			pat.RestName = nameTok.Lexeme
			pat.RestCount = ast.RestCountVariable

		case p.check(token.IDENT) && p.peekKindAt(1) == token.STAR && p.peekKindAt(2) == token.INT:
			nameTok := p.advance() // name
			p.advance()            // '*'
			countTok := p.advance()
			if pat.HasRest {
				p.error("E2007", nameTok.Span, "list pattern has more than one rest element")
				return nil, false
			}
			n, err := strconv.ParseInt(countTok.Lexeme, 0, 64)
			if err != nil || n < 0 {
				p.error("E2005", countTok.Span, fmt.Sprintf("invalid repeat count: %q", countTok.Lexeme))
				return nil, false
			}
			pat.HasRest = true
			pat.RestName = nameTok.Lexeme
			pat.RestCount = int(n)

		default:
			elem, ok := p.parsePattern()
			if !ok {
				return nil, false
			}
			if pat.HasRest {
				pat.Suffix = append(pat.Suffix, elem)
			} else {
				pat.Prefix = append(pat.Prefix, elem)
			}
		}

		if !p.check(token.COMMA) {
			break
		}
		p.advance()
		p.skipNewlines()
	}

	p.skipNewlines()
	if _, ok := p.expect(token.RBRACKET); !ok {
		return nil, false
	}
	pat.PatternBase = makePatternBase(start.Span.Start, p.prevEnd())
	return pat, true
}

// parseDictPattern parses: { entries } where each entry is one of
// key: value, *k: v, k: *v, *k: *v, or a final **rest.
func (p *Parser) parseDictPattern() (ast.Pattern, bool) {
	start := p.advance() // consume '{'
	pat := &ast.DictPattern{}

	p.skipNewlines()
	for !p.check(token.RBRACE) && !p.isAtEnd() {
		entryStart := p.peek().Span.Start

		// **rest must be last
		if p.check(token.POW) {
			p.advance()
			nameTok, ok := p.expect(token.IDENT)
			if !ok {
				return nil, false
			}
			if pat.HasRestDict {
				p.error("E2008", nameTok.Span, "dict pattern has more than one ** entry")
				return nil, false
			}
			pat.HasRestDict = true
			pat.RestName = nameTok.Lexeme
			if !p.check(token.COMMA) {
				break
			}
			p.advance()
			p.skipNewlines()
			continue
		}

		entry := ast.DictPatternEntry{}

		// key side
		if p.check(token.STAR) && p.peekKindAt(1) == token.IDENT {
			p.advance()
			nameTok := p.advance()
			entry.RestKey = true
			entry.Key = &ast.BindPattern{
				PatternBase: makePatternBase(nameTok.Span.Start, nameTok.Span.End),
				Name:        nameTok.Lexeme,
			}
		} else {
			key, ok := p.parsePrimaryPattern()
			if !ok {
				return nil, false
			}
			entry.Key = key
		}

		if _, ok := p.expect(token.COLON); !ok {
			return nil, false
		}
		p.skipNewlines()

		// value side
		if p.check(token.STAR) && p.peekKindAt(1) == token.IDENT {
			p.advance()
			nameTok := p.advance()
			entry.RestValue = true
			entry.Value = &ast.BindPattern{
				PatternBase: makePatternBase(nameTok.Span.Start, nameTok.Span.End),
				Name:        nameTok.Lexeme,
			}
		} else {
			value, ok := p.parseAltPattern()
			if !ok {
				return nil, false
			}
			entry.Value = value
		}

		entry.Span = span.Span{Start: entryStart, End: p.prevEnd()}
		pat.Entries = append(pat.Entries, entry)

		if !p.check(token.COMMA) {
			break
		}
		p.advance()
		p.skipNewlines()
	}

	p.skipNewlines()
	if _, ok := p.expect(token.RBRACE); !ok {
		return nil, false
	}
	pat.PatternBase = makePatternBase(start.Span.Start, p.prevEnd())
	return pat, true
}

// ============================================================
// Span helpers
// ============================================================

func (p *Parser) prevEnd() span.Position {
	if p.pos > 0 && p.pos-1 < len(p.tokens) {
		return p.tokens[p.pos-1].Span.End
	}
	return p.peek().Span.Start
}

func (p *Parser) makeSpan(start span.Position) span.Span {
	return span.Span{Start: start, End: p.prevEnd()}
}

func makeExprBase(start, end span.Position) ast.ExprBase {
	return ast.ExprBase{NodeBase: ast.NodeBase{Span: span.Span{Start: start, End: end}}}
}

func makeStmtBase(start, end span.Position) ast.StmtBase {
	return ast.StmtBase{NodeBase: ast.NodeBase{Span: span.Span{Start: start, End: end}}}
}

func makePatternBase(start, end span.Position) ast.PatternBase {
	return ast.PatternBase{NodeBase: ast.NodeBase{Span: span.Span{Start: start, End: end}}}
}
