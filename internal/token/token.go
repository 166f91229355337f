// Package token defines the token types produced by the lexer.
package token

import (
	"fmt"

	"github.com/MoonMountain2k/inkparse/internal/span"
)

// Kind represents the type of a token.
type Kind int

const (
	// Special tokens
	ILLEGAL Kind = iota
	EOF
	NEWLINE

	// Literals
	IDENT  // identifiers: x, foo, _
	INT    // integer literals: 123, 0xff, 0o17, 0b101
	FLOAT  // float literals: 3.14, .5, 1e9
	STRING // string literals: "hello", r"raw"

	// Operators
	ASSIGN  // =
	PLUS    // +
	MINUS   // -
	STAR    // *
	SLASH   // /
	PERCENT // %
	POW     // **
	SHL     // <<
	SHR     // >>
	AMP     // &
	CARET   // ^
	PIPE    // |
	COALESCE // ??

	EQ  // ==
	NEQ // !=
	LT  // <
	LTE // <=
	GT  // >
	GTE // >=

	CASCADE  // ..
	MOVE     // <-
	ELLIPSIS // ...

	// Compound assignment
	PLUS_ASSIGN    // +=
	MINUS_ASSIGN   // -=
	STAR_ASSIGN    // *=
	SLASH_ASSIGN   // /=
	PERCENT_ASSIGN // %=

	// Delimiters
	LPAREN    // (
	RPAREN    // )
	LBRACE    // {
	RBRACE    // }
	LBRACKET  // [
	RBRACKET  // ]
	COMMA     // ,
	DOT       // .
	SEMICOLON // ;
	COLON     // :

	// Keywords
	KW_IF
	KW_ELIF
	KW_ELSE
	KW_FOR
	KW_WHILE
	KW_LOOP
	KW_IN
	KW_IS
	KW_NOT
	KW_AND
	KW_OR
	KW_FN
	KW_RETURN
	KW_BREAK
	KW_CONTINUE
	KW_LEAVE
	KW_DEL
	KW_TRUE
	KW_FALSE
	KW_NULL
	KW_UNSET
)

var kindNames = map[Kind]string{
	ILLEGAL: "ILLEGAL",
	EOF:     "EOF",
	NEWLINE: "NEWLINE",

	IDENT:  "IDENT",
	INT:    "INT",
	FLOAT:  "FLOAT",
	STRING: "STRING",

	ASSIGN:   "=",
	PLUS:     "+",
	MINUS:    "-",
	STAR:     "*",
	SLASH:    "/",
	PERCENT:  "%",
	POW:      "**",
	SHL:      "<<",
	SHR:      ">>",
	AMP:      "&",
	CARET:    "^",
	PIPE:     "|",
	COALESCE: "??",

	EQ:  "==",
	NEQ: "!=",
	LT:  "<",
	LTE: "<=",
	GT:  ">",
	GTE: ">=",

	CASCADE:  "..",
	MOVE:     "<-",
	ELLIPSIS: "...",

	PLUS_ASSIGN:    "+=",
	MINUS_ASSIGN:   "-=",
	STAR_ASSIGN:    "*=",
	SLASH_ASSIGN:   "/=",
	PERCENT_ASSIGN: "%=",

	LPAREN:    "(",
	RPAREN:    ")",
	LBRACE:    "{",
	RBRACE:    "}",
	LBRACKET:  "[",
	RBRACKET:  "]",
	COMMA:     ",",
	DOT:       ".",
	SEMICOLON: ";",
	COLON:     ":",

	KW_IF:       "if",
	KW_ELIF:     "elif",
	KW_ELSE:     "else",
	KW_FOR:      "for",
	KW_WHILE:    "while",
	KW_LOOP:     "loop",
	KW_IN:       "in",
	KW_IS:       "is",
	KW_NOT:      "not",
	KW_AND:      "and",
	KW_OR:       "or",
	KW_FN:       "fn",
	KW_RETURN:   "return",
	KW_BREAK:    "break",
	KW_CONTINUE: "continue",
	KW_LEAVE:    "leave",
	KW_DEL:      "del",
	KW_TRUE:     "true",
	KW_FALSE:    "false",
	KW_NULL:     "null",
	KW_UNSET:    "unset",
}

// String returns the human-readable name for a token kind.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// IsKeyword returns true if the kind is a keyword.
func (k Kind) IsKeyword() bool {
	return k >= KW_IF && k <= KW_UNSET
}

// IsLiteral returns true if the kind is a literal (ident/int/float/string).
func (k Kind) IsLiteral() bool {
	return k >= IDENT && k <= STRING
}

// IsSignal returns true if the kind starts a control-flow signal statement.
func (k Kind) IsSignal() bool {
	return k == KW_LEAVE || k == KW_BREAK || k == KW_CONTINUE || k == KW_RETURN
}

var keywords = map[string]Kind{
	"if":       KW_IF,
	"elif":     KW_ELIF,
	"else":     KW_ELSE,
	"for":      KW_FOR,
	"while":    KW_WHILE,
	"loop":     KW_LOOP,
	"in":       KW_IN,
	"is":       KW_IS,
	"not":      KW_NOT,
	"and":      KW_AND,
	"or":       KW_OR,
	"fn":       KW_FN,
	"return":   KW_RETURN,
	"break":    KW_BREAK,
	"continue": KW_CONTINUE,
	"leave":    KW_LEAVE,
	"del":      KW_DEL,
	"true":     KW_TRUE,
	"false":    KW_FALSE,
	"null":     KW_NULL,
	"unset":    KW_UNSET,
}

// LookupIdent returns the keyword Kind for ident, or IDENT if it is not a keyword.
func LookupIdent(ident string) Kind {
	if kind, ok := keywords[ident]; ok {
		return kind
	}
	return IDENT
}

// Token represents a lexical token with its kind, text, and source location.
type Token struct {
	Kind   Kind      `json:"kind"`
	Lexeme string    `json:"lexeme"`
	Span   span.Span `json:"span"`
}

// String returns a human-readable representation of the token.
func (t Token) String() string {
	return fmt.Sprintf("%s %q %s", t.Kind, t.Lexeme, t.Span.Start)
}
