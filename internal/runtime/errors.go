package runtime

import (
	"fmt"

	"github.com/MoonMountain2k/inkparse/internal/span"
)

// ErrorKind classifies runtime faults.
type ErrorKind int

const (
	TypeError ErrorKind = iota
	UndefinedVariable
	InvalidAssignment
	PatternMatchFailure
	InvalidPattern
	UnresolvedLabel
	RecursionLimitExceeded
)

var errorKindNames = map[ErrorKind]string{
	TypeError:              "TypeError",
	UndefinedVariable:      "UndefinedVariable",
	InvalidAssignment:      "InvalidAssignment",
	PatternMatchFailure:    "PatternMatchFailure",
	InvalidPattern:         "InvalidPattern",
	UnresolvedLabel:        "UnresolvedLabel",
	RecursionLimitExceeded: "RecursionLimitExceeded",
}

// String returns the taxonomy name for the kind.
func (k ErrorKind) String() string {
	if name, ok := errorKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// Error represents a hard runtime fault. The language defines no
// user-level catch construct, so these are terminal for the evaluation
// that raised them.
type Error struct {
	Kind    ErrorKind
	Message string
	Span    span.Span
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s at %d:%d: %s", e.Kind, e.Span.Start.Line, e.Span.Start.Column, e.Message)
}

func errf(kind ErrorKind, s span.Span, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Span: s}
}

// withSpan fills in the position on errors raised without one, such as
// errors surfaced by builtins.
func withSpan(err error, s span.Span) error {
	if err == nil {
		return nil
	}
	if re, ok := err.(*Error); ok {
		if re.Span.Start.Line == 0 {
			re.Span = s
		}
		return re
	}
	return &Error{Kind: TypeError, Message: err.Error(), Span: s}
}
