// Package lexer implements the lexical analysis (tokenization) for ink.
package lexer

import (
	"fmt"
	"unicode"
	"unicode/utf8"

	"github.com/MoonMountain2k/inkparse/internal/diag"
	"github.com/MoonMountain2k/inkparse/internal/span"
	"github.com/MoonMountain2k/inkparse/internal/token"
)

// Lexer tokenizes source code into a sequence of tokens.
type Lexer struct {
	source   string
	filename string

	pos  int // current read position in source
	line int // current line (1-based)
	col  int // current column (1-based)

	diags []diag.Diagnostic
}

// New creates a new Lexer for the given source text.
func New(source, filename string) *Lexer {
	return &Lexer{
		source:   source,
		filename: filename,
		pos:      0,
		line:     1,
		col:      1,
	}
}

// Tokenize scans the entire source and returns all tokens and diagnostics.
func (l *Lexer) Tokenize() ([]token.Token, []diag.Diagnostic) {
	var tokens []token.Token
	for {
		tok := l.nextToken()
		tokens = append(tokens, tok)
		if tok.Kind == token.EOF {
			break
		}
	}
	return tokens, l.diags
}

// ---- internal helpers ----

// peek returns the current character without advancing, or 0 if at end.
func (l *Lexer) peek() byte {
	if l.pos >= len(l.source) {
		return 0
	}
	return l.source[l.pos]
}

// peekNext returns the character after current, or 0 if at end.
func (l *Lexer) peekNext() byte {
	if l.pos+1 >= len(l.source) {
		return 0
	}
	return l.source[l.pos+1]
}

// peekAt returns the character n positions ahead, or 0 if at end.
func (l *Lexer) peekAt(n int) byte {
	if l.pos+n >= len(l.source) {
		return 0
	}
	return l.source[l.pos+n]
}

// advance consumes the current character and returns it.
func (l *Lexer) advance() byte {
	ch := l.source[l.pos]
	l.pos++
	if ch == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	return ch
}

// curPos returns the current position as a span.Position.
func (l *Lexer) curPos() span.Position {
	return span.Position{Offset: l.pos, Line: l.line, Column: l.col}
}

// makeSpan returns a span from start to current position.
func (l *Lexer) makeSpan(start span.Position) span.Span {
	return span.Span{Start: start, End: l.curPos()}
}

// skipWhitespace skips spaces and tabs (not newlines).
func (l *Lexer) skipWhitespace() {
	for l.pos < len(l.source) {
		ch := l.source[l.pos]
		if ch == ' ' || ch == '\t' || ch == '\r' {
			l.advance()
		} else {
			break
		}
	}
}

// skipLineComment skips from # to end of line.
func (l *Lexer) skipLineComment() {
	for l.pos < len(l.source) && l.source[l.pos] != '\n' {
		l.advance()
	}
}

// addError records a diagnostic error.
func (l *Lexer) addError(code string, s span.Span, msg string) {
	l.diags = append(l.diags, diag.Errorf(code, s, "%s", msg))
}

// ---- token reading ----

func (l *Lexer) nextToken() token.Token {
	l.skipWhitespace()

	if l.pos >= len(l.source) {
		return token.Token{Kind: token.EOF, Lexeme: "", Span: l.makeSpan(l.curPos())}
	}

	start := l.curPos()
	ch := l.peek()

	// Newline
	if ch == '\n' {
		l.advance()
		return token.Token{Kind: token.NEWLINE, Lexeme: "\\n", Span: l.makeSpan(start)}
	}

	// Line comment: #
	if ch == '#' {
		l.skipLineComment()
		return l.nextToken()
	}

	// Raw string literal: r"..."
	if ch == 'r' && l.peekNext() == '"' {
		return l.readRawString(start)
	}

	// String literal
	if ch == '"' {
		return l.readString(start)
	}

	// Number literal, including leading-dot floats like .5
	if isDigit(ch) || (ch == '.' && isDigit(l.peekNext())) {
		return l.readNumber(start)
	}

	// Identifier or keyword
	if isIdentStart(ch) {
		return l.readIdentifier(start)
	}

	// Operators and delimiters
	return l.readOperator(start)
}

// readString reads a double-quoted string literal with escape sequences.
func (l *Lexer) readString(start span.Position) token.Token {
	l.advance() // skip opening "
	var value []byte

	for l.pos < len(l.source) {
		ch := l.peek()
		if ch == '"' {
			l.advance() // skip closing "
			return token.Token{
				Kind:   token.STRING,
				Lexeme: string(value),
				Span:   l.makeSpan(start),
			}
		}
		if ch == '\n' {
			l.addError("E1001", l.makeSpan(start), "unterminated string literal")
			return token.Token{Kind: token.STRING, Lexeme: string(value), Span: l.makeSpan(start)}
		}
		if ch == '\\' {
			l.advance()
			esc := l.peek()
			switch esc {
			case 'b':
				value = append(value, '\b')
			case 'f':
				value = append(value, '\f')
			case 'n':
				value = append(value, '\n')
			case 'r':
				value = append(value, '\r')
			case 't':
				value = append(value, '\t')
			case '\\':
				value = append(value, '\\')
			case '"':
				value = append(value, '"')
			case 'u':
				l.advance() // consume 'u'
				r, ok := l.readHexRune()
				if !ok {
					l.addError("E1002", l.makeSpan(start), "invalid \\u escape: expected 4 hex digits")
					continue
				}
				value = utf8.AppendRune(value, r)
				continue
			default:
				l.addError("E1002", l.makeSpan(start), fmt.Sprintf("unknown escape sequence: \\%c", esc))
				value = append(value, esc)
			}
			l.advance()
			continue
		}
		value = append(value, ch)
		l.advance()
	}

	l.addError("E1001", l.makeSpan(start), "unterminated string literal")
	return token.Token{Kind: token.STRING, Lexeme: string(value), Span: l.makeSpan(start)}
}

// readHexRune reads exactly 4 hex digits following \u.
func (l *Lexer) readHexRune() (rune, bool) {
	var r rune
	for i := 0; i < 4; i++ {
		ch := l.peek()
		var d rune
		switch {
		case ch >= '0' && ch <= '9':
			d = rune(ch - '0')
		case ch >= 'a' && ch <= 'f':
			d = rune(ch-'a') + 10
		case ch >= 'A' && ch <= 'F':
			d = rune(ch-'A') + 10
		default:
			return 0, false
		}
		r = r<<4 | d
		l.advance()
	}
	return r, true
}

// readRawString reads a raw string literal r"..." with no escape processing.
func (l *Lexer) readRawString(start span.Position) token.Token {
	l.advance() // skip 'r'
	l.advance() // skip opening "
	strStart := l.pos

	for l.pos < len(l.source) {
		ch := l.peek()
		if ch == '"' {
			value := l.source[strStart:l.pos]
			l.advance() // skip closing "
			return token.Token{Kind: token.STRING, Lexeme: value, Span: l.makeSpan(start)}
		}
		if ch == '\n' {
			break
		}
		l.advance()
	}

	l.addError("E1001", l.makeSpan(start), "unterminated string literal")
	return token.Token{Kind: token.STRING, Lexeme: l.source[strStart:l.pos], Span: l.makeSpan(start)}
}

// readNumber reads an integer or float literal. Integers support
// 0x/0o/0b prefixes; floats support a fraction, an exponent, or both,
// and a leading dot (.5).
func (l *Lexer) readNumber(start span.Position) token.Token {
	numStart := l.pos

	// Prefixed integer: 0x, 0o, 0b
	if l.peek() == '0' {
		p := l.peekNext()
		if p == 'x' || p == 'X' || p == 'o' || p == 'O' || p == 'b' || p == 'B' {
			l.advance() // 0
			l.advance() // prefix letter
			digitCount := 0
			for l.pos < len(l.source) && isBaseDigit(l.peek(), p) {
				l.advance()
				digitCount++
			}
			lexeme := l.source[numStart:l.pos]
			if digitCount == 0 {
				l.addError("E1004", l.makeSpan(start), fmt.Sprintf("invalid number literal: %q", lexeme))
				return token.Token{Kind: token.ILLEGAL, Lexeme: lexeme, Span: l.makeSpan(start)}
			}
			return token.Token{Kind: token.INT, Lexeme: lexeme, Span: l.makeSpan(start)}
		}
	}

	isFloat := false

	for l.pos < len(l.source) && isDigit(l.peek()) {
		l.advance()
	}

	// Fraction. A bare dot after the digits is a member access or
	// cascade, so require a following digit.
	if l.peek() == '.' && isDigit(l.peekNext()) {
		isFloat = true
		l.advance() // skip '.'
		for l.pos < len(l.source) && isDigit(l.peek()) {
			l.advance()
		}
	}

	// Exponent
	if l.peek() == 'e' || l.peek() == 'E' {
		next := l.peekNext()
		expDigit := 1
		if next == '+' || next == '-' {
			next = l.peekAt(2)
			expDigit = 2
		}
		if isDigit(next) {
			isFloat = true
			for i := 0; i < expDigit; i++ {
				l.advance()
			}
			for l.pos < len(l.source) && isDigit(l.peek()) {
				l.advance()
			}
		}
	}

	lexeme := l.source[numStart:l.pos]
	kind := token.INT
	if isFloat {
		kind = token.FLOAT
	}
	return token.Token{Kind: kind, Lexeme: lexeme, Span: l.makeSpan(start)}
}

// readIdentifier reads an identifier or keyword.
func (l *Lexer) readIdentifier(start span.Position) token.Token {
	identStart := l.pos

	for l.pos < len(l.source) && isIdentPart(l.peek()) {
		l.advance()
	}

	lexeme := l.source[identStart:l.pos]
	kind := token.LookupIdent(lexeme)
	return token.Token{Kind: kind, Lexeme: lexeme, Span: l.makeSpan(start)}
}

// readOperator reads an operator or delimiter token.
func (l *Lexer) readOperator(start span.Position) token.Token {
	ch := l.advance()

	switch ch {
	case '(':
		return token.Token{Kind: token.LPAREN, Lexeme: "(", Span: l.makeSpan(start)}
	case ')':
		return token.Token{Kind: token.RPAREN, Lexeme: ")", Span: l.makeSpan(start)}
	case '{':
		return token.Token{Kind: token.LBRACE, Lexeme: "{", Span: l.makeSpan(start)}
	case '}':
		return token.Token{Kind: token.RBRACE, Lexeme: "}", Span: l.makeSpan(start)}
	case '[':
		return token.Token{Kind: token.LBRACKET, Lexeme: "[", Span: l.makeSpan(start)}
	case ']':
		return token.Token{Kind: token.RBRACKET, Lexeme: "]", Span: l.makeSpan(start)}
	case ',':
		return token.Token{Kind: token.COMMA, Lexeme: ",", Span: l.makeSpan(start)}
	case ';':
		return token.Token{Kind: token.SEMICOLON, Lexeme: ";", Span: l.makeSpan(start)}
	case ':':
		return token.Token{Kind: token.COLON, Lexeme: ":", Span: l.makeSpan(start)}
	case '.':
		if l.peek() == '.' {
			l.advance()
			if l.peek() == '.' {
				l.advance()
				return token.Token{Kind: token.ELLIPSIS, Lexeme: "...", Span: l.makeSpan(start)}
			}
			return token.Token{Kind: token.CASCADE, Lexeme: "..", Span: l.makeSpan(start)}
		}
		return token.Token{Kind: token.DOT, Lexeme: ".", Span: l.makeSpan(start)}
	case '+':
		if l.peek() == '=' {
			l.advance()
			return token.Token{Kind: token.PLUS_ASSIGN, Lexeme: "+=", Span: l.makeSpan(start)}
		}
		return token.Token{Kind: token.PLUS, Lexeme: "+", Span: l.makeSpan(start)}
	case '-':
		if l.peek() == '=' {
			l.advance()
			return token.Token{Kind: token.MINUS_ASSIGN, Lexeme: "-=", Span: l.makeSpan(start)}
		}
		return token.Token{Kind: token.MINUS, Lexeme: "-", Span: l.makeSpan(start)}
	case '*':
		if l.peek() == '*' {
			l.advance()
			return token.Token{Kind: token.POW, Lexeme: "**", Span: l.makeSpan(start)}
		}
		if l.peek() == '=' {
			l.advance()
			return token.Token{Kind: token.STAR_ASSIGN, Lexeme: "*=", Span: l.makeSpan(start)}
		}
		return token.Token{Kind: token.STAR, Lexeme: "*", Span: l.makeSpan(start)}
	case '/':
		if l.peek() == '=' {
			l.advance()
			return token.Token{Kind: token.SLASH_ASSIGN, Lexeme: "/=", Span: l.makeSpan(start)}
		}
		return token.Token{Kind: token.SLASH, Lexeme: "/", Span: l.makeSpan(start)}
	case '%':
		if l.peek() == '=' {
			l.advance()
			return token.Token{Kind: token.PERCENT_ASSIGN, Lexeme: "%=", Span: l.makeSpan(start)}
		}
		return token.Token{Kind: token.PERCENT, Lexeme: "%", Span: l.makeSpan(start)}
	case '!':
		if l.peek() == '=' {
			l.advance()
			return token.Token{Kind: token.NEQ, Lexeme: "!=", Span: l.makeSpan(start)}
		}
		l.addError("E1003", l.makeSpan(start), "unexpected character: '!', did you mean '!=' or 'not'?")
		return token.Token{Kind: token.ILLEGAL, Lexeme: string(ch), Span: l.makeSpan(start)}
	case '?':
		if l.peek() == '?' {
			l.advance()
			return token.Token{Kind: token.COALESCE, Lexeme: "??", Span: l.makeSpan(start)}
		}
		l.addError("E1003", l.makeSpan(start), "unexpected character: '?', did you mean '??'?")
		return token.Token{Kind: token.ILLEGAL, Lexeme: string(ch), Span: l.makeSpan(start)}
	case '=':
		if l.peek() == '=' {
			l.advance()
			return token.Token{Kind: token.EQ, Lexeme: "==", Span: l.makeSpan(start)}
		}
		return token.Token{Kind: token.ASSIGN, Lexeme: "=", Span: l.makeSpan(start)}
	case '<':
		switch l.peek() {
		case '=':
			l.advance()
			return token.Token{Kind: token.LTE, Lexeme: "<=", Span: l.makeSpan(start)}
		case '-':
			l.advance()
			return token.Token{Kind: token.MOVE, Lexeme: "<-", Span: l.makeSpan(start)}
		case '<':
			l.advance()
			return token.Token{Kind: token.SHL, Lexeme: "<<", Span: l.makeSpan(start)}
		}
		return token.Token{Kind: token.LT, Lexeme: "<", Span: l.makeSpan(start)}
	case '>':
		switch l.peek() {
		case '=':
			l.advance()
			return token.Token{Kind: token.GTE, Lexeme: ">=", Span: l.makeSpan(start)}
		case '>':
			l.advance()
			return token.Token{Kind: token.SHR, Lexeme: ">>", Span: l.makeSpan(start)}
		}
		return token.Token{Kind: token.GT, Lexeme: ">", Span: l.makeSpan(start)}
	case '&':
		return token.Token{Kind: token.AMP, Lexeme: "&", Span: l.makeSpan(start)}
	case '^':
		return token.Token{Kind: token.CARET, Lexeme: "^", Span: l.makeSpan(start)}
	case '|':
		return token.Token{Kind: token.PIPE, Lexeme: "|", Span: l.makeSpan(start)}
	default:
		l.addError("E1003", l.makeSpan(start), fmt.Sprintf("unexpected character: '%c'", ch))
		return token.Token{Kind: token.ILLEGAL, Lexeme: string(ch), Span: l.makeSpan(start)}
	}
}

// ---- character classification ----

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

func isBaseDigit(ch, prefix byte) bool {
	switch prefix {
	case 'x', 'X':
		return isDigit(ch) || (ch >= 'a' && ch <= 'f') || (ch >= 'A' && ch <= 'F')
	case 'o', 'O':
		return ch >= '0' && ch <= '7'
	case 'b', 'B':
		return ch == '0' || ch == '1'
	}
	return false
}

func isIdentStart(ch byte) bool {
	if ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') {
		return true
	}
	if ch >= 0x80 {
		r, _ := utf8.DecodeRuneInString(string(rune(ch)))
		return unicode.IsLetter(r)
	}
	return false
}

func isIdentPart(ch byte) bool {
	return isIdentStart(ch) || isDigit(ch)
}
