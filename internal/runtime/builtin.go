package runtime

import (
	"fmt"
	"io"
	"strings"

	"github.com/MoonMountain2k/inkparse/internal/span"
)

// berrf builds a builtin error without a position; the interpreter
// fills the call site span in via withSpan.
func berrf(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// RegisterBuiltins installs the builtin functions and the type values
// into an environment. Output from print goes to w.
func RegisterBuiltins(env *Environment, w io.Writer) {
	define := func(name string, fn BuiltinFn) {
		env.Define(name, &BuiltinVal{Name: name, Fn: fn})
	}

	define("print", func(args []Value) (Value, error) {
		parts := make([]string, len(args))
		for i, arg := range args {
			parts[i] = arg.String()
		}
		fmt.Fprintln(w, strings.Join(parts, " "))
		return NullVal{}, nil
	})

	define("len", func(args []Value) (Value, error) {
		if len(args) != 1 {
			return nil, berrf(TypeError, "len expects 1 argument, got %d", len(args))
		}
		switch v := args[0].(type) {
		case StringVal:
			return IntVal(len([]rune(string(v)))), nil
		case *ListVal:
			return IntVal(len(v.Elements)), nil
		case *DictVal:
			return IntVal(v.Len()), nil
		}
		return nil, berrf(TypeError, "len does not apply to %s", args[0].TypeName())
	})

	define("range", func(args []Value) (Value, error) {
		var start, stop, step int64
		step = 1
		ints := make([]int64, len(args))
		for i, arg := range args {
			iv, ok := arg.(IntVal)
			if !ok {
				return nil, berrf(TypeError, "range expects int arguments, got %s", arg.TypeName())
			}
			ints[i] = int64(iv)
		}
		switch len(args) {
		case 1:
			stop = ints[0]
		case 2:
			start, stop = ints[0], ints[1]
		case 3:
			start, stop, step = ints[0], ints[1], ints[2]
			if step == 0 {
				return nil, berrf(TypeError, "range step must not be zero")
			}
		default:
			return nil, berrf(TypeError, "range expects 1 to 3 arguments, got %d", len(args))
		}
		out := &ListVal{}
		if step > 0 {
			for n := start; n < stop; n += step {
				out.Elements = append(out.Elements, IntVal(n))
			}
		} else {
			for n := start; n > stop; n += step {
				out.Elements = append(out.Elements, IntVal(n))
			}
		}
		return out, nil
	})

	define("str", func(args []Value) (Value, error) {
		if len(args) != 1 {
			return nil, berrf(TypeError, "str expects 1 argument, got %d", len(args))
		}
		return StringVal(args[0].String()), nil
	})

	define("typeof", func(args []Value) (Value, error) {
		if len(args) != 1 {
			return nil, berrf(TypeError, "typeof expects 1 argument, got %d", len(args))
		}
		return TypeOf(args[0]), nil
	})

	define("keys", func(args []Value) (Value, error) {
		d, err := oneDict("keys", args)
		if err != nil {
			return nil, err
		}
		out := &ListVal{}
		for _, entry := range d.Entries() {
			out.Elements = append(out.Elements, entry.Key)
		}
		return out, nil
	})

	define("values", func(args []Value) (Value, error) {
		d, err := oneDict("values", args)
		if err != nil {
			return nil, err
		}
		out := &ListVal{}
		for _, entry := range d.Entries() {
			out.Elements = append(out.Elements, entry.Val)
		}
		return out, nil
	})

	for _, name := range []string{"int", "float", "bool", "string", "list", "dict", "function", "type"} {
		env.Define(name, TypeVal{Name: name})
	}
}

func oneDict(name string, args []Value) (*DictVal, error) {
	if len(args) != 1 {
		return nil, berrf(TypeError, "%s expects 1 argument, got %d", name, len(args))
	}
	d, ok := args[0].(*DictVal)
	if !ok {
		return nil, berrf(TypeError, "%s expects a dict, got %s", name, args[0].TypeName())
	}
	return d, nil
}

// ============================================================
// Member methods
// ============================================================

type methodFn func(recv Value, args []Value) (Value, error)

var listMethods = map[string]methodFn{
	"append": func(recv Value, args []Value) (Value, error) {
		list := recv.(*ListVal)
		if len(args) != 1 {
			return nil, berrf(TypeError, "append expects 1 argument, got %d", len(args))
		}
		list.Elements = append(list.Elements, args[0])
		return list, nil
	},
	"insert": func(recv Value, args []Value) (Value, error) {
		list := recv.(*ListVal)
		if len(args) != 2 {
			return nil, berrf(TypeError, "insert expects 2 arguments, got %d", len(args))
		}
		pos, ok := args[0].(IntVal)
		if !ok {
			return nil, berrf(TypeError, "insert index must be int, got %s", args[0].TypeName())
		}
		p := int(pos)
		if p < 0 || p > len(list.Elements) {
			return nil, berrf(TypeError, "insert index %d out of range for length %d", int64(pos), len(list.Elements))
		}
		list.Elements = append(list.Elements, nil)
		copy(list.Elements[p+1:], list.Elements[p:])
		list.Elements[p] = args[1]
		return list, nil
	},
	"remove": func(recv Value, args []Value) (Value, error) {
		list := recv.(*ListVal)
		if len(args) != 1 {
			return nil, berrf(TypeError, "remove expects 1 argument, got %d", len(args))
		}
		pos, ok := args[0].(IntVal)
		if !ok {
			return nil, berrf(TypeError, "remove index must be int, got %s", args[0].TypeName())
		}
		p := int(pos)
		if p < 0 || p >= len(list.Elements) {
			return nil, berrf(TypeError, "remove index %d out of range for length %d", int64(pos), len(list.Elements))
		}
		removed := list.Elements[p]
		list.Elements = append(list.Elements[:p], list.Elements[p+1:]...)
		return removed, nil
	},
	"pop": func(recv Value, args []Value) (Value, error) {
		list := recv.(*ListVal)
		if len(args) != 0 {
			return nil, berrf(TypeError, "pop expects no arguments, got %d", len(args))
		}
		if len(list.Elements) == 0 {
			return nil, berrf(TypeError, "pop from empty list")
		}
		last := list.Elements[len(list.Elements)-1]
		list.Elements = list.Elements[:len(list.Elements)-1]
		return last, nil
	},
	"set": func(recv Value, args []Value) (Value, error) {
		list := recv.(*ListVal)
		if len(args) != 2 {
			return nil, berrf(TypeError, "set expects 2 arguments, got %d", len(args))
		}
		pos, ok := args[0].(IntVal)
		if !ok {
			return nil, berrf(TypeError, "set index must be int, got %s", args[0].TypeName())
		}
		p := int(pos)
		if p < 0 || p >= len(list.Elements) {
			return nil, berrf(TypeError, "set index %d out of range for length %d", int64(pos), len(list.Elements))
		}
		list.Elements[p] = args[1]
		return list, nil
	},
}

var dictMethods = map[string]methodFn{
	"get": func(recv Value, args []Value) (Value, error) {
		dict := recv.(*DictVal)
		if len(args) != 1 && len(args) != 2 {
			return nil, berrf(TypeError, "get expects 1 or 2 arguments, got %d", len(args))
		}
		if v, ok := dict.Get(args[0]); ok {
			return v, nil
		}
		if len(args) == 2 {
			return args[1], nil
		}
		return NullVal{}, nil
	},
	"set": func(recv Value, args []Value) (Value, error) {
		dict := recv.(*DictVal)
		if len(args) != 2 {
			return nil, berrf(TypeError, "set expects 2 arguments, got %d", len(args))
		}
		if !dict.Set(args[0], args[1]) {
			return nil, berrf(TypeError, "unhashable dict key of type %s", args[0].TypeName())
		}
		return dict, nil
	},
	"remove": func(recv Value, args []Value) (Value, error) {
		dict := recv.(*DictVal)
		if len(args) != 1 {
			return nil, berrf(TypeError, "remove expects 1 argument, got %d", len(args))
		}
		v, ok := dict.Get(args[0])
		if !ok {
			return nil, berrf(TypeError, "key %s not found", quoted(args[0]))
		}
		dict.Delete(args[0])
		return v, nil
	},
}

var stringMethods = map[string]methodFn{
	"upper": func(recv Value, args []Value) (Value, error) {
		if len(args) != 0 {
			return nil, berrf(TypeError, "upper expects no arguments, got %d", len(args))
		}
		return StringVal(strings.ToUpper(string(recv.(StringVal)))), nil
	},
	"lower": func(recv Value, args []Value) (Value, error) {
		if len(args) != 0 {
			return nil, berrf(TypeError, "lower expects no arguments, got %d", len(args))
		}
		return StringVal(strings.ToLower(string(recv.(StringVal)))), nil
	},
	"trim": func(recv Value, args []Value) (Value, error) {
		if len(args) != 0 {
			return nil, berrf(TypeError, "trim expects no arguments, got %d", len(args))
		}
		return StringVal(strings.TrimSpace(string(recv.(StringVal)))), nil
	},
	"split": func(recv Value, args []Value) (Value, error) {
		if len(args) != 1 {
			return nil, berrf(TypeError, "split expects 1 argument, got %d", len(args))
		}
		sep, ok := args[0].(StringVal)
		if !ok {
			return nil, berrf(TypeError, "split separator must be string, got %s", args[0].TypeName())
		}
		out := &ListVal{}
		for _, part := range strings.Split(string(recv.(StringVal)), string(sep)) {
			out.Elements = append(out.Elements, StringVal(part))
		}
		return out, nil
	},
	"str": func(recv Value, args []Value) (Value, error) {
		if len(args) != 0 {
			return nil, berrf(TypeError, "str expects no arguments, got %d", len(args))
		}
		return recv, nil
	},
}

// universalMethods apply to every value.
var universalMethods = map[string]methodFn{
	"str": func(recv Value, args []Value) (Value, error) {
		if len(args) != 0 {
			return nil, berrf(TypeError, "str expects no arguments, got %d", len(args))
		}
		return StringVal(recv.String()), nil
	},
	"typeof": func(recv Value, args []Value) (Value, error) {
		if len(args) != 0 {
			return nil, berrf(TypeError, "typeof expects no arguments, got %d", len(args))
		}
		return TypeOf(recv), nil
	},
}

// lookupMethod finds a member method for the receiver's kind.
func lookupMethod(recv Value, name string) (methodFn, bool) {
	var table map[string]methodFn
	switch recv.(type) {
	case *ListVal:
		table = listMethods
	case *DictVal:
		table = dictMethods
	case StringVal:
		table = stringMethods
	}
	if table != nil {
		if fn, ok := table[name]; ok {
			return fn, true
		}
	}
	fn, ok := universalMethods[name]
	return fn, ok
}

// callMethod invokes a member method on a receiver, attaching the call
// site position to any error it reports.
func (i *Interpreter) callMethod(recv Value, name string, args []Value, s span.Span) (Value, error) {
	fn, ok := lookupMethod(recv, name)
	if !ok {
		return nil, errf(TypeError, s, "%s has no method %q", recv.TypeName(), name)
	}
	v, err := fn(recv, args)
	if err != nil {
		return nil, withSpan(err, s)
	}
	return v, nil
}
