package runtime

import (
	"bytes"
	"testing"
)

func TestLiteralPatterns(t *testing.T) {
	expectOutput(t, "42 = 42\nprint(\"ok\")", "ok")
	expectOutput(t, `"a" = "a"`+"\nprint(\"ok\")", "ok")
	expectOutput(t, "-3 = -3\nprint(\"ok\")", "ok")
	expectError(t, "42 = 43", PatternMatchFailure)
	expectError(t, "null = 0", PatternMatchFailure)
}

func TestDiscardPattern(t *testing.T) {
	expectOutput(t, "_ = 99\nprint(\"ok\")", "ok")
	expectError(t, "print(_)", UndefinedVariable)
}

func TestListPatternArithmetic(t *testing.T) {
	// exact length without a rest
	expectError(t, "[a] = [1, 2]", PatternMatchFailure)
	// variable rest takes any middle length, including zero
	expectOutput(t, "[a, *mid, b] = [1, 2]\nprint(mid)", "[]")
	expectError(t, "[a, *mid, b] = [1]", PatternMatchFailure)
	// counted rest demands the exact total
	expectError(t, "[a, pair*2, b] = [1, 2, 3]", PatternMatchFailure)
	// "..." skips without binding
	expectOutput(t, "[first, ...] = [1, 2, 3]\nprint(first)", "1")
}

func TestNestedPatterns(t *testing.T) {
	expectOutput(t, `[[a, b], {"k": c}] = [[1, 2], {"k": 3}]`+"\nprint(a, b, c)", "1 2 3")
}

func TestMatchIsAtomic(t *testing.T) {
	var buf bytes.Buffer
	interp := NewInterpreter(&buf)
	if _, err := interp.Run(parseOK(t, "x = 1")); err != nil {
		t.Fatal(err)
	}
	// The second element fails after the first would have rebound x.
	if _, err := interp.Run(parseOK(t, "[x, 0] = [2, 5]")); err == nil {
		t.Fatal("expected PatternMatchFailure")
	}
	if v, _ := interp.Global().Lookup("x"); v.String() != "1" {
		t.Errorf("failed match must not commit partial bindings, x = %s", v)
	}
}

func TestAlternationIsolation(t *testing.T) {
	// Bindings from a failed alternative never leak into the winner's set.
	expectOutput(t, "[a, 1] | [2, a] = [2, 9]\nprint(a)", "9")
	expectOutput(t, "[x, 0] | whole = [3, 4]\nprint(whole)", "[3, 4]")
	expectError(t, "[x, 0] | whole = [3, 4]\nprint(x)", UndefinedVariable)
}

func TestGuardSeesCandidate(t *testing.T) {
	expectOutput(t, "n if (it % 2 == 0) = 8\nprint(n)", "8")
	// Bindings from earlier sub-patterns are visible in a later guard.
	expectOutput(t, "[lo, hi if (it > lo)] = [1, 5]\nprint(lo, hi)", "1 5")
	expectError(t, "[lo, hi if (it > lo)] = [5, 1]", PatternMatchFailure)
}

func TestGuardRunsBeforeInner(t *testing.T) {
	// A falsy guard fails the match without attempting the inner pattern,
	// so the inner bind must not be consulted at all.
	expectError(t, "x if (false) = 1", PatternMatchFailure)
	var buf bytes.Buffer
	interp := NewInterpreter(&buf)
	if _, err := interp.Run(parseOK(t, "(x if (false)) | _ = 1")); err != nil {
		t.Fatal(err)
	}
	if _, ok := interp.Global().Lookup("x"); ok {
		t.Error("inner pattern must not bind when the guard fails")
	}
}

func TestGuardOnForLoop(t *testing.T) {
	expectOutput(t, "for x if (it > 0) in [1, 2] { print(x) }", "1", "2")
	// A guard rejection makes the loop pattern fail, which is fatal.
	expectError(t, "for x if (it > 0) in [1, -2] {}", PatternMatchFailure)
	// The guard runs before the inner pattern, so its bind is not yet
	// in scope.
	expectError(t, "for x if (x > 0) in [1, 2] {}", UndefinedVariable)
}

func TestDictPatternBasics(t *testing.T) {
	expectOutput(t, `{"name": n, "age": _} = {"name": "ada", "age": 36}`+"\nprint(n)", "ada")
	// Non-exhaustive patterns leave leftovers unmatched without failing.
	expectOutput(t, `{"a": v} = {"a": 1, "b": 2}`+"\nprint(v)", "1")
	expectError(t, `{"zzz": v} = {"a": 1}`, PatternMatchFailure)
	expectError(t, `{"a": v} = [1]`, PatternMatchFailure)
}

func TestDictPatternRestDict(t *testing.T) {
	expectOutput(t, `{"name": n, **rest} = {"name": "ada", "age": 36, "id": 7}`+"\nprint(rest)",
		`{"age": 36, "id": 7}`)
	// restDict matches even when nothing is left.
	expectOutput(t, `{"a": v, **rest} = {"a": 1}`+"\nprint(rest)", "{}")
}

func TestDictPatternRestKey(t *testing.T) {
	expectOutput(t, `{*small: 1 | 2, **rest} = {"a": 1, "b": 2, "c": 30}`+"\nprint(small)\nprint(rest)",
		`["a", "b"]`, `{"c": 30}`)
	// An empty collection is still a successful match.
	expectOutput(t, `{*small: 99} = {"a": 1}`+"\nprint(small)", "[]")
}

func TestDictPatternRestValue(t *testing.T) {
	expectOutput(t, `{"a" | "b": *picked} = {"a": 1, "b": 2, "c": 3}`+"\nprint(picked)", "[1, 2]")
}

func TestDictPatternRestBoth(t *testing.T) {
	expectOutput(t, `{*ks: *vs} = {"a": 1, "b": 2}`+"\nprint(ks)\nprint(vs)", `["a", "b"]`, "[1, 2]")
}

func TestDictPatternOrderedConsumption(t *testing.T) {
	// Each plain entry consumes the first remaining entry that fits, in
	// iteration order; a consumed entry is gone for later entries.
	expectOutput(t, `{a: 1, b: 1} = {"x": 1, "y": 1}`+"\nprint(a, b)", "x y")
	expectError(t, `{a: 1, b: 1} = {"x": 1, "y": 2}`, PatternMatchFailure)
}

func TestRestFilterMustNotBind(t *testing.T) {
	expectError(t, `{*k: v} = {"a": 1}`, InvalidPattern)
	expectError(t, `{v: *picked} = {"a": 1}`, InvalidPattern)
	// The check fires before matching, even against a non-dict value.
	expectError(t, `{*k: v} = 5`, InvalidPattern)
}
