package runtime

import (
	"bytes"
	"strings"
	"testing"

	"github.com/MoonMountain2k/inkparse/internal/ast"
	"github.com/MoonMountain2k/inkparse/internal/lexer"
	"github.com/MoonMountain2k/inkparse/internal/parser"
)

// helper: parse source, failing the test on any diagnostic.
func parseOK(t *testing.T, source string) *ast.File {
	t.Helper()
	tokens, lexDiags := lexer.New(source, "test.ink").Tokenize()
	if len(lexDiags) > 0 {
		t.Fatalf("lex errors: %v", lexDiags)
	}
	file, parseDiags := parser.New(tokens).ParseFile()
	if len(parseDiags) > 0 {
		t.Fatalf("parse errors: %v", parseDiags)
	}
	return file
}

// helper: run source, returning final value, printed output, and error.
func run(t *testing.T, source string) (Value, string, error) {
	t.Helper()
	var buf bytes.Buffer
	interp := NewInterpreter(&buf)
	val, err := interp.Run(parseOK(t, source))
	return val, buf.String(), err
}

// helper: run source and compare printed output line by line.
func expectOutput(t *testing.T, source string, want ...string) {
	t.Helper()
	_, out, err := run(t, source)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if out == "" {
		got = nil
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d output lines, got %d:\n%s", len(want), len(got), out)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d: expected %q, got %q", i+1, want[i], got[i])
		}
	}
}

// helper: run source and compare the program's final value.
func expectValue(t *testing.T, source, want string) {
	t.Helper()
	val, _, err := run(t, source)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if val.String() != want {
		t.Errorf("expected final value %s, got %s", want, val.String())
	}
}

// helper: run source and require a runtime error of the given kind.
func expectError(t *testing.T, source string, kind ErrorKind) {
	t.Helper()
	_, _, err := run(t, source)
	if err == nil {
		t.Fatalf("expected %s, got no error", kind)
	}
	re, ok := err.(*Error)
	if !ok {
		t.Fatalf("expected *Error, got %T: %v", err, err)
	}
	if re.Kind != kind {
		t.Errorf("expected %s, got %s: %v", kind, re.Kind, err)
	}
}

// ---- Literals and operators ----

func TestArithmetic(t *testing.T) {
	expectOutput(t, `print(1 + 2 * 3)`, "7")
	expectOutput(t, `print((1 + 2) * 3)`, "9")
	expectOutput(t, `print(7 / 2)`, "3")
	expectOutput(t, `print(7.0 / 2)`, "3.5")
	expectOutput(t, `print(7 % 3)`, "1")
	expectOutput(t, `print(2 ** 10)`, "1024")
	expectOutput(t, `print(2 ** -1)`, "0.5")
	expectOutput(t, `print(-5 + 1)`, "-4")
	expectOutput(t, `print("ab" + "cd")`, "abcd")
	expectOutput(t, `print([1] + [2, 3])`, "[1, 2, 3]")
}

func TestArithmeticErrors(t *testing.T) {
	expectError(t, `1 + "a"`, TypeError)
	expectError(t, `1 / 0`, TypeError)
	expectError(t, `"a" - "b"`, TypeError)
	expectError(t, `[1] + 1`, TypeError)
}

func TestBitwise(t *testing.T) {
	expectOutput(t, `print(1 << 4)`, "16")
	expectOutput(t, `print(255 >> 4)`, "15")
	expectOutput(t, `print(6 & 3)`, "2")
	expectOutput(t, `print(6 ^ 3)`, "5")
	expectOutput(t, `print(6 | 3)`, "7")
	expectError(t, `1.5 << 1`, TypeError)
}

func TestLogicalOperators(t *testing.T) {
	// and/or yield the deciding operand, not a coerced bool.
	expectOutput(t, `print(1 and 2)`, "2")
	expectOutput(t, `print(0 and 2)`, "0")
	expectOutput(t, `print(0 or 3)`, "3")
	expectOutput(t, `print(1 or 3)`, "1")
	expectOutput(t, `print(not 0)`, "true")
	expectOutput(t, `print(not [])`, "false")
}

func TestShortCircuit(t *testing.T) {
	// The right side must not be evaluated when the left decides.
	expectOutput(t, `
fn boom() { print("boom"); false; }
print(false and boom())
print(true or boom())
`, "false", "true")
}

func TestCoalesce(t *testing.T) {
	expectOutput(t, `print(null ?? 5)`, "5")
	expectOutput(t, `print(false ?? 5)`, "false")
	expectOutput(t, `print(0 ?? 5)`, "0")
	expectOutput(t, `print(unset ?? 5)`, "unset")
}

func TestCompareChain(t *testing.T) {
	expectOutput(t, `print(1 < 2 >= 0 == 0 <= 4)`, "true")
	expectOutput(t, `print(0 <= 5 <= 3)`, "false")
	expectOutput(t, `print(1 == 1.0)`, "true")
	expectOutput(t, `print("a" < "b" < "c")`, "true")
	expectError(t, `1 < "a"`, TypeError)
}

func TestCompareChainShortCircuits(t *testing.T) {
	// Operands past the first false link stay unevaluated.
	expectOutput(t, `
fn boom() { print("boom"); 9; }
print(3 < 2 < boom())
`, "false")
}

func TestMembership(t *testing.T) {
	expectOutput(t, `print(2 in [1, 2, 3])`, "true")
	expectOutput(t, `print(9 not in [1, 2, 3])`, "true")
	expectOutput(t, `print("a" in {"a": 1})`, "true")
	expectOutput(t, `print("bc" in "abcd")`, "true")
	expectError(t, `1 in 2`, TypeError)
}

func TestIsOperator(t *testing.T) {
	expectOutput(t, `print(3 is int)`, "true")
	expectOutput(t, `print(3.0 is int)`, "false")
	expectOutput(t, `print("x" is string)`, "true")
	expectOutput(t, `print(3 is not string)`, "true")
	expectOutput(t, `print(null is null)`, "true")
	expectOutput(t, `print([1] is list)`, "true")
}

// ---- Variables, assignment, move ----

func TestAssignment(t *testing.T) {
	expectOutput(t, "x = 5\nprint(x)", "5")
	expectOutput(t, "x = 5\nx = x + 1\nprint(x)", "6")
	expectOutput(t, "x = 2\nx += 3\nx *= 2\nprint(x)", "10")
	expectError(t, `print(nope)`, UndefinedVariable)
	expectError(t, "x += 1", UndefinedVariable)
}

func TestAssignUnsetFails(t *testing.T) {
	expectError(t, `v = unset`, InvalidAssignment)
	// Any expression whose value is unset is rejected, not just the literal.
	expectError(t, "v = if false { 1 }", InvalidAssignment)
}

func TestAssignmentDestructuring(t *testing.T) {
	expectOutput(t, "[a, b] = [1, 2]\nprint(a, b)", "1 2")
	expectOutput(t, `[_, name, ...] = ["a", "b", "c", "d"]`+"\nprint(name)", "b")
	expectOutput(t, "[first, *mid, last] = [1, 2, 3, 4]\nprint(first, mid, last)", "1 [2, 3] 4")
	expectOutput(t, "[a, pair*2, b] = [1, 2, 3, 4]\nprint(pair)", "[2, 3]")
	expectError(t, "[a, b] = [1, 2, 3]", PatternMatchFailure)
	expectError(t, "[a, b] = 5", PatternMatchFailure)
}

func TestAlternationAssignmentIsConditional(t *testing.T) {
	// A failing top-level alternation is a silent no-op.
	expectOutput(t, "x = 1\n0 | 2 = x\nprint(x)", "1")
	expectOutput(t, "x = 2\n0 | n = x\nprint(n)", "2")
	// Other failing patterns are hard faults.
	expectError(t, "x = 1\n[a] = x", PatternMatchFailure)
}

func TestGuardedAssignment(t *testing.T) {
	expectOutput(t, "x if (it > 0) = 5\nprint(x)", "5")
	expectError(t, "x if (it > 0) = -3", PatternMatchFailure)
}

func TestMove(t *testing.T) {
	expectOutput(t, "y = [1, 2]\n[a, b] <- y\nprint(a, b)", "1 2")
	// The source binding is gone after a successful move.
	expectError(t, "y = 5\nx <- y\nprint(y)", UndefinedVariable)
	expectError(t, "x <- nothing", UndefinedVariable)
}

func TestFailedMoveKeepsSource(t *testing.T) {
	var buf bytes.Buffer
	interp := NewInterpreter(&buf)
	if _, err := interp.Run(parseOK(t, "y = [1, 2, 3]")); err != nil {
		t.Fatal(err)
	}
	_, err := interp.Run(parseOK(t, "[a, b] <- y"))
	if err == nil {
		t.Fatal("expected PatternMatchFailure")
	}
	if v, ok := interp.Global().Lookup("y"); !ok || v.String() != "[1, 2, 3]" {
		t.Errorf("source should survive a failed move, got %v (ok=%t)", v, ok)
	}
	if _, ok := interp.Global().Lookup("a"); ok {
		t.Error("failed move must not leak partial bindings")
	}
}

func TestDel(t *testing.T) {
	expectError(t, "x = 1\ndel x\nprint(x)", UndefinedVariable)
	expectError(t, "del ghost", UndefinedVariable)
}

// ---- Blocks and signals ----

func TestBlockValue(t *testing.T) {
	expectValue(t, "{\n1\n2\n}", "2")
	expectValue(t, "{ 1; 2; }", "unset")
	expectValue(t, "{}", "unset")
}

func TestLeave(t *testing.T) {
	expectValue(t, "{\n1\nleave 42\nprint(\"unreachable\")\n}", "42")
	expectValue(t, "outer: {\n{\nleave :outer 7\n}\nprint(\"unreachable\")\n}", "7")
	// leave with no payload yields unset
	expectValue(t, "{\nleave\n}", "unset")
}

func TestUnresolvedLabel(t *testing.T) {
	expectError(t, "break", UnresolvedLabel)
	expectError(t, "{\nleave :missing 1\n}", UnresolvedLabel)
	expectError(t, "fn f() { break }\nf()", UnresolvedLabel)
	expectError(t, "for x in [1] { leave :missing }", UnresolvedLabel)
}

func TestTopLevelReturn(t *testing.T) {
	expectValue(t, "return 42\nprint(\"no\")", "42")
	_, out, err := run(t, "return\nprint(\"no\")")
	if err != nil {
		t.Fatal(err)
	}
	if out != "" {
		t.Errorf("statements after return must not run, got output %q", out)
	}
}

// ---- Conditionals ----

func TestIfExpr(t *testing.T) {
	expectOutput(t, `x = if 1 < 2 { "yes" } else { "no" }`+"\nprint(x)", "yes")
	expectOutput(t, "x = 7\ny = if x < 5 { \"low\" } elif x < 10 { \"mid\" } else { \"high\" }\nprint(y)", "mid")
	expectValue(t, "if false { 1 }", "unset")
}

// ---- Loops ----

func TestWhileLoop(t *testing.T) {
	expectOutput(t, `
i = 0
total = 0
while i < 5 {
	total += i
	i += 1
}
print(total)
`, "10")
}

func TestForLoop(t *testing.T) {
	expectOutput(t, `
total = 0
for x in [1, 2, 3] {
	total += x
}
print(total)
`, "6")
	expectOutput(t, `
for [k, v] in {"a": 1, "b": 2} {
	print(k, v)
}
`, "a 1", "b 2")
	expectOutput(t, `
out = ""
for c in "abc" {
	out += c
}
print(out)
`, "abc")
	expectError(t, `for x in 5 {}`, TypeError)
}

func TestForPatternMismatchIsFatal(t *testing.T) {
	expectError(t, `for [a, b] in [[1, 2], [3]] {}`, PatternMatchFailure)
}

func TestBreakPayloadIsLoopValue(t *testing.T) {
	expectValue(t, "for x in [1, 2, 3] { if x == 2 { break x * 100 } }", "200")
	expectValue(t, "while true { break 9 }", "9")
	expectValue(t, "for x in [1] {}", "unset")
}

func TestContinue(t *testing.T) {
	expectOutput(t, `
total = 0
for x in [1, 2, 3, 4] {
	if x % 2 == 1 { continue }
	total += x
}
print(total)
`, "6")
}

func TestLoopStmt(t *testing.T) {
	expectOutput(t, `
n = 0
loop 3 {
	n += 1
}
print(n)
`, "3")
	expectValue(t, "n = 0\nloop { n += 1; if n == 10 { break n } }", "10")
	expectError(t, `loop "x" {}`, TypeError)
}

func TestLabeledBreak(t *testing.T) {
	expectValue(t, `
outer: for x in [1, 2, 3] {
	for y in [10, 20] {
		if x == 2 { break :outer x * y }
	}
}
`, "20")
	expectOutput(t, `
outer: for x in [1, 2] {
	for y in [1, 2] {
		if y == 2 { continue :outer }
		print(x, y)
	}
}
`, "1 1", "2 1")
}

// ---- Functions ----

func TestFunctions(t *testing.T) {
	expectOutput(t, "f = fn(x) { x * 2 }\nprint(f(21))", "42")
	expectOutput(t, `
fn greet(name) {
	"hello " + name
}
print(greet("ink"))
`, "hello ink")
	expectError(t, "f = fn(x) { x }\nf(1, 2)", TypeError)
	expectError(t, `3(1)`, TypeError)
}

func TestFunctionReturn(t *testing.T) {
	expectOutput(t, `
fn classify(x) {
	if x > 10 { return "big" }
	"small"
}
print(classify(5))
print(classify(50))
`, "small", "big")
}

func TestFunctionPatternParams(t *testing.T) {
	expectOutput(t, "f = fn([a, b]) { a + b }\nprint(f([3, 4]))", "7")
	expectError(t, "f = fn([a, b]) { a }\nf(5)", PatternMatchFailure)
}

func TestRecursion(t *testing.T) {
	expectOutput(t, `
fn fact(n) {
	if n <= 1 { 1 } else { n * fact(n - 1) }
}
print(fact(10))
`, "3628800")
}

func TestClosures(t *testing.T) {
	expectOutput(t, `
fn counter() {
	n = 0
	fn() {
		n += 1
		n
	}
}
c = counter()
c()
c()
print(c())
`, "3")
}

func TestRecursionLimit(t *testing.T) {
	expectError(t, "fn f(n) { f(n) }\nf(1)", RecursionLimitExceeded)
}

// ---- Collections ----

func TestIndexing(t *testing.T) {
	expectOutput(t, `print([10, 20, 30][1])`, "20")
	expectOutput(t, `print([10, 20, 30][-1])`, "30")
	expectOutput(t, `print("hello"[1])`, "e")
	expectOutput(t, `print({"a": 1}["a"])`, "1")
	expectError(t, `[1][5]`, TypeError)
	expectError(t, `{"a": 1}["b"]`, TypeError)
	expectError(t, `5[0]`, TypeError)
}

func TestDictBasics(t *testing.T) {
	// Insertion order is preserved; numerically equal keys share a slot.
	expectOutput(t, `print({"b": 1, "a": 2})`, `{"b": 1, "a": 2}`)
	expectOutput(t, `print({1: "x", 1.0: "y"})`, `{1: "y"}`)
	expectOutput(t, `print(len({"a": 1, "b": 2}))`, "2")
	expectOutput(t, `print(keys({"a": 1, "b": 2}))`, `["a", "b"]`)
	expectOutput(t, `print(values({"a": 1, "b": 2}))`, "[1, 2]")
	expectError(t, `{[1]: 2}`, TypeError)
}

func TestListMethods(t *testing.T) {
	expectOutput(t, "xs = [1]\nxs.append(2)\nprint(xs)", "[1, 2]")
	expectOutput(t, "xs = [1, 2, 3]\nprint(xs.remove(1))\nprint(xs)", "2", "[1, 3]")
	expectOutput(t, "xs = [1, 2]\nprint(xs.pop())\nprint(xs)", "2", "[1]")
	expectOutput(t, "xs = [1, 2]\nxs.set(0, 9)\nprint(xs)", "[9, 2]")
	expectError(t, "[].pop()", TypeError)
}

func TestDictMethods(t *testing.T) {
	expectOutput(t, `d = {"a": 1}`+"\nprint(d.get(\"a\"))\nprint(d.get(\"z\"))\nprint(d.get(\"z\", 0))", "1", "null", "0")
	expectOutput(t, `d = {"a": 1}`+"\nd.set(\"b\", 2)\nprint(d)", `{"a": 1, "b": 2}`)
	expectOutput(t, `d = {"a": 1, "b": 2}`+"\nprint(d.remove(\"a\"))\nprint(d)", "1", `{"b": 2}`)
	expectError(t, `{"a": 1}.remove("z")`, TypeError)
}

func TestCascade(t *testing.T) {
	expectOutput(t, `
x = [0, 1, 2]
y = x..append(3)..insert(0, 2)
print(x)
print(x == y)
`, "[2, 0, 1, 2, 3]", "true")
	expectOutput(t, `print(1..str())`, "1")
	expectError(t, `[1]..nope()`, TypeError)
}

func TestBoundMethod(t *testing.T) {
	expectOutput(t, "xs = []\npush = xs.append\npush(1)\npush(2)\nprint(xs)", "[1, 2]")
}

func TestStringMethods(t *testing.T) {
	expectOutput(t, `print("aBc".upper())`, "ABC")
	expectOutput(t, `print("  x  ".trim())`, "x")
	expectOutput(t, `print("a,b,c".split(","))`, `["a", "b", "c"]`)
}

// ---- Comprehensions ----

func TestListComp(t *testing.T) {
	expectOutput(t, `print([x * x for x in [1, 2, 3]])`, "[1, 4, 9]")
	expectOutput(t, `print([x for x in range(10) if x % 3 == 0])`, "[0, 3, 6, 9]")
	expectOutput(t, `print([k for [k, _] in {"a": 1, "b": 2}])`, `["a", "b"]`)
}

func TestListCompContinueWithValue(t *testing.T) {
	expectOutput(t, `
print([if x % 2 == 0 { continue x * 10 } else { continue } for x in [1, 2, 3, 4]])
`, "[20, 40]")
}

func TestListCompBreakWithValue(t *testing.T) {
	// break contributes its payload before stopping.
	expectOutput(t, `
print([if x == 3 { break x * 100 } else { x } for x in [1, 2, 3, 4]])
`, "[1, 2, 300]")
	expectOutput(t, `
print([if x == 3 { break } else { x } for x in [1, 2, 3, 4]])
`, "[1, 2]")
}

func TestListCompUnsetContributesNothing(t *testing.T) {
	expectOutput(t, `print([if x > 1 { x } for x in [1, 2, 3]])`, "[2, 3]")
}

func TestDictComp(t *testing.T) {
	expectOutput(t, `print({k: v * 2 for [k, v] in {"a": 1, "b": 2}})`, `{"a": 2, "b": 4}`)
	expectOutput(t, `print({x: x * x for x in [1, 2] if x > 1})`, "{2: 4}")
}

func TestDictCompContinuePair(t *testing.T) {
	expectOutput(t, `
print({k: if v > 1 { continue [k, v * 10] } else { continue } for [k, v] in {"a": 1, "b": 2}})
`, `{"b": 20}`)
	expectError(t, `{k: if true { continue 5 } else { 0 } for k in [1]}`, TypeError)
}

// ---- Builtins ----

func TestBuiltins(t *testing.T) {
	expectOutput(t, `print(len("abc"), len([1, 2]), len({}))`, "3 2 0")
	expectOutput(t, `print(range(4))`, "[0, 1, 2, 3]")
	expectOutput(t, `print(range(1, 4))`, "[1, 2, 3]")
	expectOutput(t, `print(range(10, 0, -3))`, "[10, 7, 4, 1]")
	expectOutput(t, `print(str(42) + "!")`, "42!")
	expectOutput(t, `print(typeof(3), typeof("x"), typeof([]))`, "<type int> <type string> <type list>")
	expectError(t, `len(5)`, TypeError)
	expectError(t, `range(1, 2, 0)`, TypeError)
}

func TestTruthiness(t *testing.T) {
	expectOutput(t, `print(if "" { 1 } else { 0 })`, "0")
	expectOutput(t, `print(if [] { 1 } else { 0 })`, "1")
	expectOutput(t, `print(if {} { 1 } else { 0 })`, "1")
	expectOutput(t, `print(if 0.0 { 1 } else { 0 })`, "0")
	expectOutput(t, `print(if null { 1 } else { 0 })`, "0")
}
