// Package runtime implements the interpreter and runtime value system for ink.
package runtime

import (
	"fmt"
	"strings"

	"github.com/MoonMountain2k/inkparse/internal/ast"
)

// Value is the interface for all runtime values.
type Value interface {
	TypeName() string
	String() string
}

// ---- Primitive values ----

// UnsetVal represents the unset value. Its dynamic type is itself.
type UnsetVal struct{}

func (v UnsetVal) TypeName() string { return "unset" }
func (v UnsetVal) String() string   { return "unset" }

// NullVal represents null. Its dynamic type is itself.
type NullVal struct{}

func (v NullVal) TypeName() string { return "null" }
func (v NullVal) String() string   { return "null" }

// BoolVal represents a boolean value.
type BoolVal bool

func (v BoolVal) TypeName() string { return "bool" }
func (v BoolVal) String() string   { return fmt.Sprintf("%t", bool(v)) }

// IntVal represents an integer value.
type IntVal int64

func (v IntVal) TypeName() string { return "int" }
func (v IntVal) String() string   { return fmt.Sprintf("%d", int64(v)) }

// FloatVal represents a floating-point value.
type FloatVal float64

func (v FloatVal) TypeName() string { return "float" }
func (v FloatVal) String() string   { return fmt.Sprintf("%g", float64(v)) }

// StringVal represents a string value.
type StringVal string

func (v StringVal) TypeName() string { return "string" }
func (v StringVal) String() string   { return string(v) }

// TypeVal represents a kind as a first-class value, for use with is.
type TypeVal struct {
	Name string
}

func (v TypeVal) TypeName() string { return "type" }
func (v TypeVal) String() string   { return fmt.Sprintf("<type %s>", v.Name) }

// ---- List value ----

// ListVal represents a mutable ordered list. The pointer is the
// identity: a cascade threads one shared *ListVal through its calls.
type ListVal struct {
	Elements []Value
}

func (v *ListVal) TypeName() string { return "list" }
func (v *ListVal) String() string {
	parts := make([]string, len(v.Elements))
	for i, elem := range v.Elements {
		parts[i] = quoted(elem)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// ---- Dict value ----

// DictEntry is one key/value pair of a dict.
type DictEntry struct {
	Key Value
	Val Value
}

// DictVal represents a mutable mapping with insertion order preserved.
// Keys are values of any hashable kind (scalars and types).
type DictVal struct {
	entries []DictEntry
	index   map[string]int // hash key -> position in entries
}

// NewDict creates an empty dict.
func NewDict() *DictVal {
	return &DictVal{index: make(map[string]int)}
}

func (v *DictVal) TypeName() string { return "dict" }
func (v *DictVal) String() string {
	parts := make([]string, len(v.entries))
	for i, e := range v.entries {
		parts[i] = quoted(e.Key) + ": " + quoted(e.Val)
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// Len returns the number of entries.
func (v *DictVal) Len() int { return len(v.entries) }

// Entries returns the entries in insertion order. The slice is shared;
// callers that mutate the dict while holding it must copy first.
func (v *DictVal) Entries() []DictEntry { return v.entries }

// Get looks up a key.
func (v *DictVal) Get(key Value) (Value, bool) {
	h, ok := hashKey(key)
	if !ok {
		return nil, false
	}
	pos, ok := v.index[h]
	if !ok {
		return nil, false
	}
	return v.entries[pos].Val, true
}

// Set inserts or replaces an entry. Replacing keeps the original
// insertion position. Returns false for unhashable keys.
func (v *DictVal) Set(key, val Value) bool {
	h, ok := hashKey(key)
	if !ok {
		return false
	}
	if pos, exists := v.index[h]; exists {
		v.entries[pos].Val = val
		return true
	}
	v.index[h] = len(v.entries)
	v.entries = append(v.entries, DictEntry{Key: key, Val: val})
	return true
}

// Delete removes an entry, preserving the order of the rest.
func (v *DictVal) Delete(key Value) bool {
	h, ok := hashKey(key)
	if !ok {
		return false
	}
	pos, exists := v.index[h]
	if !exists {
		return false
	}
	v.entries = append(v.entries[:pos], v.entries[pos+1:]...)
	delete(v.index, h)
	for k, p := range v.index {
		if p > pos {
			v.index[k] = p - 1
		}
	}
	return true
}

// hashKey produces the canonical map key for a dict key value.
// Numeric keys that compare equal (1 and 1.0) share one slot.
func hashKey(v Value) (string, bool) {
	switch val := v.(type) {
	case IntVal:
		return fmt.Sprintf("n:%d", int64(val)), true
	case FloatVal:
		f := float64(val)
		if f == float64(int64(f)) {
			return fmt.Sprintf("n:%d", int64(f)), true
		}
		return fmt.Sprintf("n:%g", f), true
	case BoolVal:
		return fmt.Sprintf("b:%t", bool(val)), true
	case StringVal:
		return "s:" + string(val), true
	case NullVal:
		return "null", true
	case UnsetVal:
		return "unset", true
	case TypeVal:
		return "t:" + val.Name, true
	default:
		return "", false
	}
}

// ---- Callable values ----

// FuncVal represents a user-defined function (closure). Parameters are
// patterns matched against the call arguments.
type FuncVal struct {
	Name    string
	Params  []ast.Pattern
	Body    *ast.Block
	Closure *Environment
}

func (v *FuncVal) TypeName() string { return "function" }
func (v *FuncVal) String() string {
	if v.Name == "" {
		return "<fn>"
	}
	return fmt.Sprintf("<fn %s>", v.Name)
}

// BuiltinFn is the Go signature for built-in functions.
type BuiltinFn func(args []Value) (Value, error)

// BuiltinVal represents a built-in (native) function.
type BuiltinVal struct {
	Name string
	Fn   BuiltinFn
}

func (v *BuiltinVal) TypeName() string { return "builtin" }
func (v *BuiltinVal) String() string   { return fmt.Sprintf("<builtin %s>", v.Name) }

// ---- Truthiness ----

// IsTruthy returns the truthiness of a value. false, null, unset, 0,
// 0.0 and "" are falsy; lists and dicts are always truthy.
func IsTruthy(v Value) bool {
	switch val := v.(type) {
	case NullVal, UnsetVal:
		return false
	case BoolVal:
		return bool(val)
	case IntVal:
		return int64(val) != 0
	case FloatVal:
		return float64(val) != 0
	case StringVal:
		return string(val) != ""
	default:
		return true
	}
}

// ---- Equality and ordering ----

// Equal reports structural equality. Ints and floats compare
// numerically across kinds; lists and dicts compare element-wise.
func Equal(a, b Value) bool {
	switch av := a.(type) {
	case UnsetVal:
		_, ok := b.(UnsetVal)
		return ok
	case NullVal:
		_, ok := b.(NullVal)
		return ok
	case BoolVal:
		bv, ok := b.(BoolVal)
		return ok && av == bv
	case IntVal:
		switch bv := b.(type) {
		case IntVal:
			return av == bv
		case FloatVal:
			return float64(av) == float64(bv)
		}
		return false
	case FloatVal:
		switch bv := b.(type) {
		case IntVal:
			return float64(av) == float64(bv)
		case FloatVal:
			return av == bv
		}
		return false
	case StringVal:
		bv, ok := b.(StringVal)
		return ok && av == bv
	case TypeVal:
		bv, ok := b.(TypeVal)
		return ok && av.Name == bv.Name
	case *ListVal:
		bv, ok := b.(*ListVal)
		if !ok || len(av.Elements) != len(bv.Elements) {
			return false
		}
		for i := range av.Elements {
			if !Equal(av.Elements[i], bv.Elements[i]) {
				return false
			}
		}
		return true
	case *DictVal:
		bv, ok := b.(*DictVal)
		if !ok || av.Len() != bv.Len() {
			return false
		}
		for _, e := range av.entries {
			other, found := bv.Get(e.Key)
			if !found || !Equal(e.Val, other) {
				return false
			}
		}
		return true
	case *FuncVal:
		return a == b
	case *BuiltinVal:
		return a == b
	default:
		return false
	}
}

// Compare orders two values: -1, 0 or +1. Defined for numeric pairs
// and string pairs only; anything else reports false.
func Compare(a, b Value) (int, bool) {
	if as, ok := a.(StringVal); ok {
		bs, ok := b.(StringVal)
		if !ok {
			return 0, false
		}
		return strings.Compare(string(as), string(bs)), true
	}
	af, aok := ToFloat64(a)
	bf, bok := ToFloat64(b)
	if !aok || !bok {
		return 0, false
	}
	switch {
	case af < bf:
		return -1, true
	case af > bf:
		return 1, true
	default:
		return 0, true
	}
}

// TypeOf returns the dynamic type of a value. The type of unset is the
// unset value itself, and likewise for null.
func TypeOf(v Value) Value {
	switch v.(type) {
	case UnsetVal:
		return UnsetVal{}
	case NullVal:
		return NullVal{}
	default:
		return TypeVal{Name: v.TypeName()}
	}
}

// ---- Helpers ----

// quoted renders a value for embedding in a collection display,
// quoting strings.
func quoted(v Value) string {
	if s, ok := v.(StringVal); ok {
		return fmt.Sprintf("%q", string(s))
	}
	return v.String()
}

// ValuesString formats a slice of values with a separator.
func ValuesString(vals []Value, sep string) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = v.String()
	}
	return strings.Join(parts, sep)
}

// ToFloat64 attempts to convert a numeric value to float64.
func ToFloat64(v Value) (float64, bool) {
	switch val := v.(type) {
	case IntVal:
		return float64(int64(val)), true
	case FloatVal:
		return float64(val), true
	default:
		return 0, false
	}
}

// ToInt64 attempts to convert a numeric value to int64.
func ToInt64(v Value) (int64, bool) {
	switch val := v.(type) {
	case IntVal:
		return int64(val), true
	case FloatVal:
		return int64(float64(val)), true
	default:
		return 0, false
	}
}
