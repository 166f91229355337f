package runtime

import (
	"io"
	"math"
	"strings"

	"github.com/MoonMountain2k/inkparse/internal/ast"
	"github.com/MoonMountain2k/inkparse/internal/span"
	"github.com/MoonMountain2k/inkparse/internal/token"
)

// maxCallDepth bounds function-call nesting.
const maxCallDepth = 10000

// Interpreter walks the AST and evaluates it. All control flow travels
// as explicit Result signals; Go panics are never used for language
// semantics.
type Interpreter struct {
	global *Environment
	output io.Writer
	depth  int
}

// NewInterpreter creates an interpreter whose builtins print to output.
func NewInterpreter(output io.Writer) *Interpreter {
	global := NewEnvironment(nil)
	RegisterBuiltins(global, output)
	return &Interpreter{global: global, output: output}
}

// Global exposes the top-level environment, used by the REPL to keep
// bindings across inputs.
func (i *Interpreter) Global() *Environment { return i.global }

// Run evaluates a parsed file. An unlabeled return at the top level
// ends the program with its payload as the final value; any other
// escaping signal is an unresolved label.
func (i *Interpreter) Run(file *ast.File) (Value, error) {
	var last Value = UnsetVal{}
	for _, node := range file.Body {
		res, err := i.eval(node, i.global)
		if err != nil {
			return nil, err
		}
		switch res.Sig {
		case SigNone:
			last = res.Val
		case SigReturn:
			if res.Label == "" {
				return res.Val, nil
			}
			return nil, errf(UnresolvedLabel, node.GetSpan(),
				"no enclosing construct labeled %q", res.Label)
		default:
			return nil, errf(UnresolvedLabel, node.GetSpan(),
				"%s signal escaped to the top level", res.Sig)
		}
	}
	return last, nil
}

// ============================================================
// Dispatch
// ============================================================

func (i *Interpreter) eval(node ast.Node, env *Environment) (Result, error) {
	switch n := node.(type) {
	case *ast.ExprStmt:
		return i.eval(n.Expr, env)
	case *ast.Block:
		return i.evalBlock(n, env)
	case *ast.SignalStmt:
		return i.evalSignal(n, env)
	case *ast.DelStmt:
		return i.evalDel(n, env)
	case *ast.ForStmt:
		return i.evalFor(n, env)
	case *ast.WhileStmt:
		return i.evalWhile(n, env)
	case *ast.LoopStmt:
		return i.evalLoop(n, env)

	case *ast.IdentExpr:
		v, ok := env.Lookup(n.Name)
		if !ok {
			return Result{}, errf(UndefinedVariable, n.GetSpan(), "undefined variable %q", n.Name)
		}
		return normal(v), nil
	case *ast.IntLiteral:
		return normal(IntVal(n.Value)), nil
	case *ast.FloatLiteral:
		return normal(FloatVal(n.Value)), nil
	case *ast.StringLiteral:
		return normal(StringVal(n.Value)), nil
	case *ast.BoolLiteral:
		return normal(BoolVal(n.Value)), nil
	case *ast.NullLiteral:
		return normal(NullVal{}), nil
	case *ast.UnsetLiteral:
		return normal(UnsetVal{}), nil

	case *ast.ListLiteral:
		return i.evalListLiteral(n, env)
	case *ast.DictLiteral:
		return i.evalDictLiteral(n, env)
	case *ast.UnaryExpr:
		return i.evalUnary(n, env)
	case *ast.BinaryExpr:
		return i.evalBinary(n, env)
	case *ast.CompareChain:
		return i.evalCompareChain(n, env)
	case *ast.CascadeExpr:
		return i.evalCascade(n, env)
	case *ast.CallExpr:
		return i.evalCall(n, env)
	case *ast.IndexExpr:
		return i.evalIndex(n, env)
	case *ast.MemberExpr:
		return i.evalMember(n, env)
	case *ast.FuncLit:
		fn := &FuncVal{Name: n.Name, Params: n.Params, Body: n.Body, Closure: env}
		if n.Name != "" {
			env.Define(n.Name, fn)
		}
		return normal(fn), nil
	case *ast.IfExpr:
		return i.evalIf(n, env)
	case *ast.AssignExpr:
		return i.evalAssign(n, env)
	case *ast.MoveExpr:
		return i.evalMove(n, env)
	case *ast.ListComp:
		return i.evalListComp(n, env)
	case *ast.DictComp:
		return i.evalDictComp(n, env)

	default:
		return Result{}, errf(TypeError, node.GetSpan(), "cannot evaluate node %T", node)
	}
}

// ============================================================
// Blocks and signals
// ============================================================

// evalBlock runs statements in a fresh scope. The block owns unlabeled
// leave signals and leave signals carrying its own label; everything
// else propagates. The block's value is its last statement's value,
// or unset when the block is empty or ends with a separator.
func (i *Interpreter) evalBlock(b *ast.Block, env *Environment) (Result, error) {
	blockEnv := NewEnvironment(env)
	var last Value = UnsetVal{}
	for _, stmt := range b.Stmts {
		res, err := i.eval(stmt, blockEnv)
		if err != nil {
			return Result{}, err
		}
		if res.Sig != SigNone {
			if res.Sig == SigLeave && (res.Label == "" || res.Label == b.Label) {
				return normal(res.Val), nil
			}
			return res, nil
		}
		last = res.Val
	}
	if b.TrailingSep {
		return normal(UnsetVal{}), nil
	}
	return normal(last), nil
}

func (i *Interpreter) evalSignal(n *ast.SignalStmt, env *Environment) (Result, error) {
	var payload Value = UnsetVal{}
	if n.Value != nil {
		res, err := i.eval(n.Value, env)
		if err != nil {
			return Result{}, err
		}
		if res.Sig != SigNone {
			return res, nil
		}
		payload = res.Val
	}
	var sig Signal
	switch n.Kind {
	case token.KW_LEAVE:
		sig = SigLeave
	case token.KW_BREAK:
		sig = SigBreak
	case token.KW_CONTINUE:
		sig = SigContinue
	case token.KW_RETURN:
		sig = SigReturn
	}
	return Result{Sig: sig, Label: n.Label, Val: payload}, nil
}

func (i *Interpreter) evalDel(n *ast.DelStmt, env *Environment) (Result, error) {
	if !env.Delete(n.Name) {
		return Result{}, errf(UndefinedVariable, n.GetSpan(), "cannot delete undefined variable %q", n.Name)
	}
	return normal(NullVal{}), nil
}

// ============================================================
// Loops
// ============================================================

// ownsSignal reports whether a loop with the given label owns a break
// or continue carrying sigLabel.
func ownsSignal(loopLabel, sigLabel string) bool {
	return sigLabel == "" || sigLabel == loopLabel
}

func (i *Interpreter) evalFor(n *ast.ForStmt, env *Environment) (Result, error) {
	src, err := i.evalValue(n.Source, env)
	if err != nil {
		return Result{}, err
	}
	items, err := iterate(src, n.Source.GetSpan())
	if err != nil {
		return Result{}, err
	}
	var loopVal Value = UnsetVal{}
	for _, item := range items {
		iterEnv := NewEnvironment(env)
		bs, ok, err := i.matchBindings(n.Pat, item, iterEnv)
		if err != nil {
			return Result{}, err
		}
		if !ok {
			return Result{}, errf(PatternMatchFailure, n.Pat.GetSpan(),
				"loop pattern did not match element %s", item)
		}
		for _, name := range bs.names {
			iterEnv.Define(name, bs.vals[name])
		}
		res, err := i.evalBlock(n.Body, iterEnv)
		if err != nil {
			return Result{}, err
		}
		if res.Sig == SigContinue && ownsSignal(n.Label, res.Label) {
			continue
		}
		if res.Sig == SigBreak && ownsSignal(n.Label, res.Label) {
			loopVal = res.Val
			return normal(loopVal), nil
		}
		if res.Sig != SigNone {
			return res, nil
		}
	}
	return normal(loopVal), nil
}

func (i *Interpreter) evalWhile(n *ast.WhileStmt, env *Environment) (Result, error) {
	var loopVal Value = UnsetVal{}
	for {
		cond, err := i.evalValue(n.Condition, env)
		if err != nil {
			return Result{}, err
		}
		if !IsTruthy(cond) {
			return normal(loopVal), nil
		}
		res, err := i.evalBlock(n.Body, env)
		if err != nil {
			return Result{}, err
		}
		if res.Sig == SigContinue && ownsSignal(n.Label, res.Label) {
			continue
		}
		if res.Sig == SigBreak && ownsSignal(n.Label, res.Label) {
			return normal(res.Val), nil
		}
		if res.Sig != SigNone {
			return res, nil
		}
	}
}

func (i *Interpreter) evalLoop(n *ast.LoopStmt, env *Environment) (Result, error) {
	count := int64(-1)
	if n.Count != nil {
		v, err := i.evalValue(n.Count, env)
		if err != nil {
			return Result{}, err
		}
		iv, ok := v.(IntVal)
		if !ok {
			return Result{}, errf(TypeError, n.Count.GetSpan(), "loop count must be int, got %s", v.TypeName())
		}
		count = int64(iv)
	}
	var loopVal Value = UnsetVal{}
	for iter := int64(0); count < 0 || iter < count; iter++ {
		res, err := i.evalBlock(n.Body, env)
		if err != nil {
			return Result{}, err
		}
		if res.Sig == SigContinue && ownsSignal(n.Label, res.Label) {
			continue
		}
		if res.Sig == SigBreak && ownsSignal(n.Label, res.Label) {
			return normal(res.Val), nil
		}
		if res.Sig != SigNone {
			return res, nil
		}
	}
	return normal(loopVal), nil
}

// iterate produces the iteration sequence for a source value: list
// elements, dict entries as [key, value] pairs, or the characters of a
// string. Lists are snapshotted so body mutation cannot skew the walk.
func iterate(v Value, s span.Span) ([]Value, error) {
	switch src := v.(type) {
	case *ListVal:
		items := make([]Value, len(src.Elements))
		copy(items, src.Elements)
		return items, nil
	case *DictVal:
		items := make([]Value, 0, src.Len())
		for _, entry := range src.Entries() {
			items = append(items, &ListVal{Elements: []Value{entry.Key, entry.Val}})
		}
		return items, nil
	case StringVal:
		var items []Value
		for _, r := range string(src) {
			items = append(items, StringVal(string(r)))
		}
		return items, nil
	default:
		return nil, errf(TypeError, s, "cannot iterate over %s", v.TypeName())
	}
}

// ============================================================
// Comprehensions
// ============================================================

func (i *Interpreter) evalListComp(n *ast.ListComp, env *Environment) (Result, error) {
	src, err := i.evalValue(n.Source, env)
	if err != nil {
		return Result{}, err
	}
	items, err := iterate(src, n.Source.GetSpan())
	if err != nil {
		return Result{}, err
	}
	out := &ListVal{}
	for _, item := range items {
		compEnv := NewEnvironment(env)
		bs, ok, err := i.matchBindings(n.Pat, item, compEnv)
		if err != nil {
			return Result{}, err
		}
		if !ok {
			return Result{}, errf(PatternMatchFailure, n.Pat.GetSpan(),
				"comprehension pattern did not match element %s", item)
		}
		for _, name := range bs.names {
			compEnv.Define(name, bs.vals[name])
		}
		if n.Guard != nil {
			cond, err := i.evalValue(n.Guard, compEnv)
			if err != nil {
				return Result{}, err
			}
			if !IsTruthy(cond) {
				continue
			}
		}
		res, err := i.eval(n.Body, compEnv)
		if err != nil {
			return Result{}, err
		}
		switch {
		case res.Sig == SigNone:
			if !isUnset(res.Val) {
				out.Elements = append(out.Elements, res.Val)
			}
		case res.Sig == SigContinue && res.Label == "":
			if !isUnset(res.Val) {
				out.Elements = append(out.Elements, res.Val)
			}
		case res.Sig == SigBreak && res.Label == "":
			if !isUnset(res.Val) {
				out.Elements = append(out.Elements, res.Val)
			}
			return normal(out), nil
		default:
			return res, nil
		}
	}
	return normal(out), nil
}

func (i *Interpreter) evalDictComp(n *ast.DictComp, env *Environment) (Result, error) {
	src, err := i.evalValue(n.Source, env)
	if err != nil {
		return Result{}, err
	}
	items, err := iterate(src, n.Source.GetSpan())
	if err != nil {
		return Result{}, err
	}
	out := NewDict()
	for _, item := range items {
		compEnv := NewEnvironment(env)
		bs, ok, err := i.matchBindings(n.Pat, item, compEnv)
		if err != nil {
			return Result{}, err
		}
		if !ok {
			return Result{}, errf(PatternMatchFailure, n.Pat.GetSpan(),
				"comprehension pattern did not match element %s", item)
		}
		for _, name := range bs.names {
			compEnv.Define(name, bs.vals[name])
		}
		if n.Guard != nil {
			cond, err := i.evalValue(n.Guard, compEnv)
			if err != nil {
				return Result{}, err
			}
			if !IsTruthy(cond) {
				continue
			}
		}
		key, res, err := i.evalCompOperand(n.Key, compEnv)
		if err != nil {
			return Result{}, err
		}
		if res != nil {
			if done, r, err := i.contributePair(out, *res, n.Key.GetSpan()); err != nil || r != nil {
				if r != nil {
					return *r, err
				}
				return Result{}, err
			} else if done {
				return normal(out), nil
			}
			continue
		}
		val, res, err := i.evalCompOperand(n.Value, compEnv)
		if err != nil {
			return Result{}, err
		}
		if res != nil {
			if done, r, err := i.contributePair(out, *res, n.Value.GetSpan()); err != nil || r != nil {
				if r != nil {
					return *r, err
				}
				return Result{}, err
			} else if done {
				return normal(out), nil
			}
			continue
		}
		if !out.Set(key, val) {
			return Result{}, errf(TypeError, n.Key.GetSpan(), "unhashable dict key of type %s", key.TypeName())
		}
	}
	return normal(out), nil
}

// evalCompOperand evaluates one side of a dict-comprehension entry.
// A non-normal signal is handed back for contribution handling.
func (i *Interpreter) evalCompOperand(e ast.Expr, env *Environment) (Value, *Result, error) {
	res, err := i.eval(e, env)
	if err != nil {
		return nil, nil, err
	}
	if res.Sig != SigNone {
		return nil, &res, nil
	}
	return res.Val, nil, nil
}

// contributePair applies a break/continue signal inside a dict
// comprehension entry. A non-unset payload must be a two-element
// [key, value] list. done means the comprehension should stop;
// a non-nil Result means the signal was not owned here.
func (i *Interpreter) contributePair(out *DictVal, res Result, s span.Span) (bool, *Result, error) {
	owned := (res.Sig == SigContinue || res.Sig == SigBreak) && res.Label == ""
	if !owned {
		return false, &res, nil
	}
	if !isUnset(res.Val) {
		pair, ok := res.Val.(*ListVal)
		if !ok || len(pair.Elements) != 2 {
			return false, nil, errf(TypeError, s,
				"dict comprehension contribution must be a [key, value] list, got %s", res.Val)
		}
		if !out.Set(pair.Elements[0], pair.Elements[1]) {
			return false, nil, errf(TypeError, s, "unhashable dict key of type %s", pair.Elements[0].TypeName())
		}
	}
	return res.Sig == SigBreak, nil, nil
}

// ============================================================
// Assignment and move
// ============================================================

func (i *Interpreter) evalAssign(n *ast.AssignExpr, env *Environment) (Result, error) {
	if n.Op != token.ASSIGN {
		return i.evalCompoundAssign(n, env)
	}
	val, err := i.evalValue(n.Value, env)
	if err != nil {
		return Result{}, err
	}
	if isUnset(val) {
		return Result{}, errf(InvalidAssignment, n.Value.GetSpan(), "cannot assign unset to a pattern")
	}
	ok, err := i.Match(n.Target, val, env)
	if err != nil {
		return Result{}, err
	}
	if !ok {
		// A top-level alternation makes the assignment conditional;
		// any other failing pattern is a hard fault.
		if _, isAlt := n.Target.(*ast.AlternationPattern); !isAlt {
			return Result{}, errf(PatternMatchFailure, n.Target.GetSpan(),
				"pattern did not match value %s", val)
		}
	}
	return normal(NullVal{}), nil
}

func (i *Interpreter) evalCompoundAssign(n *ast.AssignExpr, env *Environment) (Result, error) {
	bind, ok := n.Target.(*ast.BindPattern)
	if !ok {
		return Result{}, errf(InvalidAssignment, n.Target.GetSpan(),
			"compound assignment requires a plain name")
	}
	cur, found := env.Lookup(bind.Name)
	if !found {
		return Result{}, errf(UndefinedVariable, n.Target.GetSpan(), "undefined variable %q", bind.Name)
	}
	rhs, err := i.evalValue(n.Value, env)
	if err != nil {
		return Result{}, err
	}
	var op token.Kind
	switch n.Op {
	case token.PLUS_ASSIGN:
		op = token.PLUS
	case token.MINUS_ASSIGN:
		op = token.MINUS
	case token.STAR_ASSIGN:
		op = token.STAR
	case token.SLASH_ASSIGN:
		op = token.SLASH
	case token.PERCENT_ASSIGN:
		op = token.PERCENT
	default:
		return Result{}, errf(TypeError, n.GetSpan(), "unsupported compound assignment %s", n.Op)
	}
	val, err := applyBinary(op, cur, rhs, n.GetSpan())
	if err != nil {
		return Result{}, err
	}
	env.Assign(bind.Name, val)
	return normal(NullVal{}), nil
}

// evalMove destructures a binding's value and then unbinds it. The
// deletion happens only after a successful match, so a failing move
// leaves the source intact.
func (i *Interpreter) evalMove(n *ast.MoveExpr, env *Environment) (Result, error) {
	val, found := env.Lookup(n.Source.Name)
	if !found {
		return Result{}, errf(UndefinedVariable, n.Source.GetSpan(), "undefined variable %q", n.Source.Name)
	}
	ok, err := i.Match(n.Target, val, env)
	if err != nil {
		return Result{}, err
	}
	if !ok {
		if _, isAlt := n.Target.(*ast.AlternationPattern); !isAlt {
			return Result{}, errf(PatternMatchFailure, n.Target.GetSpan(),
				"pattern did not match value %s", val)
		}
		return normal(NullVal{}), nil
	}
	env.Delete(n.Source.Name)
	return normal(NullVal{}), nil
}

// ============================================================
// Operators
// ============================================================

func (i *Interpreter) evalListLiteral(n *ast.ListLiteral, env *Environment) (Result, error) {
	out := &ListVal{Elements: make([]Value, 0, len(n.Elements))}
	for _, el := range n.Elements {
		v, err := i.evalValue(el, env)
		if err != nil {
			return Result{}, err
		}
		out.Elements = append(out.Elements, v)
	}
	return normal(out), nil
}

func (i *Interpreter) evalDictLiteral(n *ast.DictLiteral, env *Environment) (Result, error) {
	out := NewDict()
	for _, entry := range n.Entries {
		key, err := i.evalValue(entry.Key, env)
		if err != nil {
			return Result{}, err
		}
		val, err := i.evalValue(entry.Value, env)
		if err != nil {
			return Result{}, err
		}
		if !out.Set(key, val) {
			return Result{}, errf(TypeError, entry.Key.GetSpan(), "unhashable dict key of type %s", key.TypeName())
		}
	}
	return normal(out), nil
}

func (i *Interpreter) evalUnary(n *ast.UnaryExpr, env *Environment) (Result, error) {
	v, err := i.evalValue(n.Operand, env)
	if err != nil {
		return Result{}, err
	}
	switch n.Op {
	case token.KW_NOT:
		return normal(BoolVal(!IsTruthy(v))), nil
	case token.MINUS:
		switch num := v.(type) {
		case IntVal:
			return normal(IntVal(-num)), nil
		case FloatVal:
			return normal(FloatVal(-num)), nil
		}
		return Result{}, errf(TypeError, n.GetSpan(), "cannot negate %s", v.TypeName())
	}
	return Result{}, errf(TypeError, n.GetSpan(), "unsupported unary operator %s", n.Op)
}

func (i *Interpreter) evalBinary(n *ast.BinaryExpr, env *Environment) (Result, error) {
	// Short-circuit forms evaluate the right side conditionally.
	switch n.Op {
	case token.KW_AND:
		left, err := i.evalValue(n.Left, env)
		if err != nil {
			return Result{}, err
		}
		if !IsTruthy(left) {
			return normal(left), nil
		}
		right, err := i.evalValue(n.Right, env)
		if err != nil {
			return Result{}, err
		}
		return normal(right), nil
	case token.KW_OR:
		left, err := i.evalValue(n.Left, env)
		if err != nil {
			return Result{}, err
		}
		if IsTruthy(left) {
			return normal(left), nil
		}
		right, err := i.evalValue(n.Right, env)
		if err != nil {
			return Result{}, err
		}
		return normal(right), nil
	case token.COALESCE:
		left, err := i.evalValue(n.Left, env)
		if err != nil {
			return Result{}, err
		}
		// Only null falls through; unset and falsy values do not.
		if _, isNull := left.(NullVal); !isNull {
			return normal(left), nil
		}
		right, err := i.evalValue(n.Right, env)
		if err != nil {
			return Result{}, err
		}
		return normal(right), nil
	}

	left, err := i.evalValue(n.Left, env)
	if err != nil {
		return Result{}, err
	}
	right, err := i.evalValue(n.Right, env)
	if err != nil {
		return Result{}, err
	}

	switch n.Op {
	case token.KW_IN:
		ok, err := contains(right, left, n.GetSpan())
		if err != nil {
			return Result{}, err
		}
		if n.Negated {
			ok = !ok
		}
		return normal(BoolVal(ok)), nil
	case token.KW_IS:
		ok := isKind(left, right)
		if n.Negated {
			ok = !ok
		}
		return normal(BoolVal(ok)), nil
	}

	v, err := applyBinary(n.Op, left, right, n.GetSpan())
	if err != nil {
		return Result{}, err
	}
	return normal(v), nil
}

// isKind tests whether a value's dynamic kind matches the right
// operand. A type value on the right is compared against typeof(left);
// any other operand compares kinds of both sides.
func isKind(left, right Value) bool {
	if _, ok := right.(TypeVal); ok {
		return Equal(TypeOf(left), right)
	}
	return Equal(TypeOf(left), TypeOf(right))
}

// contains implements the in operator: list membership, dict key
// presence, or substring.
func contains(container, item Value, s span.Span) (bool, error) {
	switch c := container.(type) {
	case *ListVal:
		for _, el := range c.Elements {
			if Equal(el, item) {
				return true, nil
			}
		}
		return false, nil
	case *DictVal:
		_, ok := c.Get(item)
		return ok, nil
	case StringVal:
		sub, ok := item.(StringVal)
		if !ok {
			return false, errf(TypeError, s, "substring test requires a string, got %s", item.TypeName())
		}
		return strings.Contains(string(c), string(sub)), nil
	default:
		return false, errf(TypeError, s, "in requires a list, dict, or string, got %s", container.TypeName())
	}
}

// applyBinary evaluates a strict (non-short-circuit) binary operator.
func applyBinary(op token.Kind, left, right Value, s span.Span) (Value, error) {
	switch op {
	case token.PLUS:
		if ls, ok := left.(StringVal); ok {
			if rs, ok := right.(StringVal); ok {
				return StringVal(ls + rs), nil
			}
			return nil, errf(TypeError, s, "cannot concatenate string and %s", right.TypeName())
		}
		if ll, ok := left.(*ListVal); ok {
			if rl, ok := right.(*ListVal); ok {
				out := make([]Value, 0, len(ll.Elements)+len(rl.Elements))
				out = append(out, ll.Elements...)
				out = append(out, rl.Elements...)
				return &ListVal{Elements: out}, nil
			}
			return nil, errf(TypeError, s, "cannot concatenate list and %s", right.TypeName())
		}
		return numericOp(op, left, right, s)
	case token.MINUS, token.STAR, token.SLASH, token.PERCENT, token.POW:
		return numericOp(op, left, right, s)
	case token.SHL, token.SHR, token.AMP, token.CARET, token.PIPE:
		li, lok := left.(IntVal)
		ri, rok := right.(IntVal)
		if !lok || !rok {
			return nil, errf(TypeError, s, "%s requires int operands, got %s and %s",
				op, left.TypeName(), right.TypeName())
		}
		switch op {
		case token.SHL:
			return IntVal(int64(li) << uint64(ri)), nil
		case token.SHR:
			return IntVal(int64(li) >> uint64(ri)), nil
		case token.AMP:
			return IntVal(int64(li) & int64(ri)), nil
		case token.CARET:
			return IntVal(int64(li) ^ int64(ri)), nil
		case token.PIPE:
			return IntVal(int64(li) | int64(ri)), nil
		}
	}
	return nil, errf(TypeError, s, "unsupported binary operator %s", op)
}

// numericOp applies arithmetic with int/float promotion. Two ints stay
// int, except ** with a negative exponent, which goes to float.
func numericOp(op token.Kind, left, right Value, s span.Span) (Value, error) {
	li, lInt := left.(IntVal)
	ri, rInt := right.(IntVal)
	if lInt && rInt {
		a, b := int64(li), int64(ri)
		switch op {
		case token.PLUS:
			return IntVal(a + b), nil
		case token.MINUS:
			return IntVal(a - b), nil
		case token.STAR:
			return IntVal(a * b), nil
		case token.SLASH:
			if b == 0 {
				return nil, errf(TypeError, s, "division by zero")
			}
			return IntVal(a / b), nil
		case token.PERCENT:
			if b == 0 {
				return nil, errf(TypeError, s, "modulo by zero")
			}
			return IntVal(a % b), nil
		case token.POW:
			if b >= 0 {
				return IntVal(intPow(a, b)), nil
			}
			return FloatVal(math.Pow(float64(a), float64(b))), nil
		}
	}
	lf, lok := ToFloat64(left)
	rf, rok := ToFloat64(right)
	if !lok || !rok {
		return nil, errf(TypeError, s, "%s requires numeric operands, got %s and %s",
			op, left.TypeName(), right.TypeName())
	}
	switch op {
	case token.PLUS:
		return FloatVal(lf + rf), nil
	case token.MINUS:
		return FloatVal(lf - rf), nil
	case token.STAR:
		return FloatVal(lf * rf), nil
	case token.SLASH:
		if rf == 0 {
			return nil, errf(TypeError, s, "division by zero")
		}
		return FloatVal(lf / rf), nil
	case token.PERCENT:
		if rf == 0 {
			return nil, errf(TypeError, s, "modulo by zero")
		}
		return FloatVal(math.Mod(lf, rf)), nil
	case token.POW:
		return FloatVal(math.Pow(lf, rf)), nil
	}
	return nil, errf(TypeError, s, "unsupported numeric operator %s", op)
}

func intPow(base, exp int64) int64 {
	result := int64(1)
	for exp > 0 {
		if exp&1 == 1 {
			result *= base
		}
		base *= base
		exp >>= 1
	}
	return result
}

// evalCompareChain evaluates a comparison chain pairwise, left to
// right, short-circuiting on the first false link. Operands past the
// failing link are never evaluated.
func (i *Interpreter) evalCompareChain(n *ast.CompareChain, env *Environment) (Result, error) {
	prev, err := i.evalValue(n.Operands[0], env)
	if err != nil {
		return Result{}, err
	}
	for idx, op := range n.Ops {
		next, err := i.evalValue(n.Operands[idx+1], env)
		if err != nil {
			return Result{}, err
		}
		ok, err := compareOnce(op, prev, next, n.Operands[idx+1].GetSpan())
		if err != nil {
			return Result{}, err
		}
		if !ok {
			return normal(BoolVal(false)), nil
		}
		prev = next
	}
	return normal(BoolVal(true)), nil
}

func compareOnce(op token.Kind, left, right Value, s span.Span) (bool, error) {
	switch op {
	case token.EQ:
		return Equal(left, right), nil
	case token.NEQ:
		return !Equal(left, right), nil
	}
	cmp, ok := Compare(left, right)
	if !ok {
		return false, errf(TypeError, s, "cannot order %s and %s", left.TypeName(), right.TypeName())
	}
	switch op {
	case token.LT:
		return cmp < 0, nil
	case token.LTE:
		return cmp <= 0, nil
	case token.GT:
		return cmp > 0, nil
	case token.GTE:
		return cmp >= 0, nil
	}
	return false, errf(TypeError, s, "unsupported comparison %s", op)
}

// ============================================================
// Calls, cascades, member access
// ============================================================

// evalCascade sends every call in the chain to the same receiver,
// discards the call results, and yields the receiver.
func (i *Interpreter) evalCascade(n *ast.CascadeExpr, env *Environment) (Result, error) {
	recv, err := i.evalValue(n.Receiver, env)
	if err != nil {
		return Result{}, err
	}
	for _, call := range n.Calls {
		args := make([]Value, 0, len(call.Args))
		for _, arg := range call.Args {
			v, err := i.evalValue(arg, env)
			if err != nil {
				return Result{}, err
			}
			args = append(args, v)
		}
		if _, err := i.callMethod(recv, call.Member, args, call.Span); err != nil {
			return Result{}, err
		}
	}
	return normal(recv), nil
}

func (i *Interpreter) evalCall(n *ast.CallExpr, env *Environment) (Result, error) {
	// A call on a member expression dispatches to the receiver's
	// method table directly.
	if member, ok := n.Callee.(*ast.MemberExpr); ok {
		recv, err := i.evalValue(member.Object, env)
		if err != nil {
			return Result{}, err
		}
		args, err := i.evalArgs(n.Args, env)
		if err != nil {
			return Result{}, err
		}
		v, err := i.callMethod(recv, member.Property, args, n.GetSpan())
		if err != nil {
			return Result{}, err
		}
		return normal(v), nil
	}

	callee, err := i.evalValue(n.Callee, env)
	if err != nil {
		return Result{}, err
	}
	args, err := i.evalArgs(n.Args, env)
	if err != nil {
		return Result{}, err
	}
	v, err := i.callValue(callee, args, n.GetSpan())
	if err != nil {
		return Result{}, err
	}
	return normal(v), nil
}

func (i *Interpreter) evalArgs(exprs []ast.Expr, env *Environment) ([]Value, error) {
	args := make([]Value, 0, len(exprs))
	for _, arg := range exprs {
		v, err := i.evalValue(arg, env)
		if err != nil {
			return nil, err
		}
		args = append(args, v)
	}
	return args, nil
}

// callValue invokes a function or builtin value.
func (i *Interpreter) callValue(callee Value, args []Value, s span.Span) (Value, error) {
	switch fn := callee.(type) {
	case *FuncVal:
		return i.callFunction(fn, args, s)
	case *BuiltinVal:
		v, err := fn.Fn(args)
		if err != nil {
			return nil, withSpan(err, s)
		}
		return v, nil
	default:
		return nil, errf(TypeError, s, "%s is not callable", callee.TypeName())
	}
}

// callFunction matches arguments against parameter patterns and runs
// the body. The function boundary owns every return signal regardless
// of label; a break, continue, or leave escaping the body is an
// unresolved label.
func (i *Interpreter) callFunction(fn *FuncVal, args []Value, s span.Span) (Value, error) {
	if i.depth >= maxCallDepth {
		return nil, errf(RecursionLimitExceeded, s, "call depth exceeded %d", maxCallDepth)
	}
	if len(args) != len(fn.Params) {
		return nil, errf(TypeError, s, "%s expects %d arguments, got %d",
			fn, len(fn.Params), len(args))
	}
	fnEnv := NewEnvironment(fn.Closure)
	for idx, param := range fn.Params {
		bs, ok, err := i.matchBindings(param, args[idx], fnEnv)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, errf(PatternMatchFailure, s,
				"argument %d did not match parameter pattern of %s", idx+1, fn)
		}
		for _, name := range bs.names {
			fnEnv.Define(name, bs.vals[name])
		}
	}

	i.depth++
	res, err := i.evalBlock(fn.Body, fnEnv)
	i.depth--
	if err != nil {
		return nil, err
	}
	switch res.Sig {
	case SigNone, SigReturn:
		return res.Val, nil
	default:
		label := res.Label
		if label == "" {
			return nil, errf(UnresolvedLabel, s, "%s signal escaped function body", res.Sig)
		}
		return nil, errf(UnresolvedLabel, s, "no enclosing construct labeled %q", label)
	}
}

func (i *Interpreter) evalIndex(n *ast.IndexExpr, env *Environment) (Result, error) {
	obj, err := i.evalValue(n.Object, env)
	if err != nil {
		return Result{}, err
	}
	idx, err := i.evalValue(n.Index, env)
	if err != nil {
		return Result{}, err
	}
	switch recv := obj.(type) {
	case *ListVal:
		pos, ok := idx.(IntVal)
		if !ok {
			return Result{}, errf(TypeError, n.Index.GetSpan(), "list index must be int, got %s", idx.TypeName())
		}
		p := int(pos)
		if p < 0 {
			p += len(recv.Elements)
		}
		if p < 0 || p >= len(recv.Elements) {
			return Result{}, errf(TypeError, n.Index.GetSpan(), "list index %d out of range for length %d",
				int64(pos), len(recv.Elements))
		}
		return normal(recv.Elements[p]), nil
	case StringVal:
		pos, ok := idx.(IntVal)
		if !ok {
			return Result{}, errf(TypeError, n.Index.GetSpan(), "string index must be int, got %s", idx.TypeName())
		}
		runes := []rune(string(recv))
		p := int(pos)
		if p < 0 {
			p += len(runes)
		}
		if p < 0 || p >= len(runes) {
			return Result{}, errf(TypeError, n.Index.GetSpan(), "string index %d out of range for length %d",
				int64(pos), len(runes))
		}
		return normal(StringVal(string(runes[p]))), nil
	case *DictVal:
		v, ok := recv.Get(idx)
		if !ok {
			return Result{}, errf(TypeError, n.Index.GetSpan(), "key %s not found", quoted(idx))
		}
		return normal(v), nil
	default:
		return Result{}, errf(TypeError, n.GetSpan(), "cannot index %s", obj.TypeName())
	}
}

// evalMember resolves a bare member access to a bound method, so
// methods can be passed around as values.
func (i *Interpreter) evalMember(n *ast.MemberExpr, env *Environment) (Result, error) {
	recv, err := i.evalValue(n.Object, env)
	if err != nil {
		return Result{}, err
	}
	method, ok := lookupMethod(recv, n.Property)
	if !ok {
		return Result{}, errf(TypeError, n.GetSpan(), "%s has no member %q", recv.TypeName(), n.Property)
	}
	bound := recv
	name := recv.TypeName() + "." + n.Property
	return normal(&BuiltinVal{Name: name, Fn: func(args []Value) (Value, error) {
		return method(bound, args)
	}}), nil
}

// ============================================================
// Conditionals
// ============================================================

func (i *Interpreter) evalIf(n *ast.IfExpr, env *Environment) (Result, error) {
	cond, err := i.evalValue(n.Condition, env)
	if err != nil {
		return Result{}, err
	}
	if IsTruthy(cond) {
		return i.evalBlock(n.Body, env)
	}
	for _, elif := range n.Elifs {
		cond, err := i.evalValue(elif.Condition, env)
		if err != nil {
			return Result{}, err
		}
		if IsTruthy(cond) {
			return i.evalBlock(elif.Body, env)
		}
	}
	if n.ElseBody != nil {
		return i.evalBlock(n.ElseBody, env)
	}
	return normal(UnsetVal{}), nil
}

// ============================================================
// Helpers
// ============================================================

// evalValue evaluates an expression in value position. A control
// signal arising inside value position has nowhere to land and is an
// unresolved label.
func (i *Interpreter) evalValue(e ast.Expr, env *Environment) (Value, error) {
	res, err := i.eval(e, env)
	if err != nil {
		return nil, err
	}
	if res.Sig != SigNone {
		if res.Label != "" {
			return nil, errf(UnresolvedLabel, e.GetSpan(), "no enclosing construct labeled %q", res.Label)
		}
		return nil, errf(UnresolvedLabel, e.GetSpan(), "%s signal in value position", res.Sig)
	}
	return res.Val, nil
}

func isUnset(v Value) bool {
	_, ok := v.(UnsetVal)
	return ok
}
