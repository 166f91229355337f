package runtime

// Environment represents a variable scope with a parent chain. A
// binding is owned by exactly one frame; deletion removes it from the
// owning frame, which is distinct from the binding holding unset.
type Environment struct {
	values map[string]Value
	parent *Environment
}

// NewEnvironment creates a new environment with an optional parent scope.
func NewEnvironment(parent *Environment) *Environment {
	return &Environment{
		values: make(map[string]Value),
		parent: parent,
	}
}

// Define creates or replaces a binding in the current frame.
func (e *Environment) Define(name string, value Value) {
	e.values[name] = value
}

// Lookup walks the scope chain for a binding.
func (e *Environment) Lookup(name string) (Value, bool) {
	for env := e; env != nil; env = env.parent {
		if val, exists := env.values[name]; exists {
			return val, true
		}
	}
	return nil, false
}

// Assign writes to a binding in whichever frame owns it, or defines a
// new binding in the current frame when the name is unbound anywhere.
func (e *Environment) Assign(name string, value Value) {
	for env := e; env != nil; env = env.parent {
		if _, exists := env.values[name]; exists {
			env.values[name] = value
			return
		}
	}
	e.values[name] = value
}

// Delete removes a binding from the frame that owns it. Reports
// whether a binding was found.
func (e *Environment) Delete(name string) bool {
	for env := e; env != nil; env = env.parent {
		if _, exists := env.values[name]; exists {
			delete(env.values, name)
			return true
		}
	}
	return false
}
