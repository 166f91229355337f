package runtime

import (
	"github.com/MoonMountain2k/inkparse/internal/ast"
)

// ============================================================
// Scratch bindings
// ============================================================

// bindingSet is the isolated scratch space a match builds its bindings
// in. Nothing reaches a real Environment until the whole pattern has
// succeeded, so a failed match can never leave partial bindings.
type bindingSet struct {
	names []string
	vals  map[string]Value
}

func newBindingSet() *bindingSet {
	return &bindingSet{vals: make(map[string]Value)}
}

// set records a binding. A name bound twice keeps its first position
// and the last value written.
func (b *bindingSet) set(name string, v Value) {
	if name == "" || name == "_" {
		return
	}
	if _, exists := b.vals[name]; !exists {
		b.names = append(b.names, name)
	}
	b.vals[name] = v
}

// merge folds a successful sub-match's bindings into this set.
func (b *bindingSet) merge(other *bindingSet) {
	for _, name := range other.names {
		b.set(name, other.vals[name])
	}
}

// ============================================================
// Validation
// ============================================================

// validatePattern rejects ill-formed patterns before any matching is
// attempted. The only ill-formed shape is a dict rest-key/rest-value
// entry whose filter side tries to bind a name.
func validatePattern(p ast.Pattern) error {
	switch pat := p.(type) {
	case *ast.AlternationPattern:
		for _, alt := range pat.Alts {
			if err := validatePattern(alt); err != nil {
				return err
			}
		}
	case *ast.GuardedPattern:
		return validatePattern(pat.Inner)
	case *ast.ListPattern:
		for _, sub := range pat.Prefix {
			if err := validatePattern(sub); err != nil {
				return err
			}
		}
		for _, sub := range pat.Suffix {
			if err := validatePattern(sub); err != nil {
				return err
			}
		}
	case *ast.DictPattern:
		for _, entry := range pat.Entries {
			if entry.RestKey && !entry.RestValue && bindsName(entry.Value) {
				return errf(InvalidPattern, entry.Span,
					"rest-key filter must not bind a name")
			}
			if entry.RestValue && !entry.RestKey && bindsName(entry.Key) {
				return errf(InvalidPattern, entry.Span,
					"rest-value filter must not bind a name")
			}
			if !entry.RestKey {
				if err := validatePattern(entry.Key); err != nil {
					return err
				}
			}
			if !entry.RestValue {
				if err := validatePattern(entry.Value); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// bindsName reports whether a pattern would store any binding.
func bindsName(p ast.Pattern) bool {
	switch pat := p.(type) {
	case *ast.BindPattern:
		return true
	case *ast.AlternationPattern:
		for _, alt := range pat.Alts {
			if bindsName(alt) {
				return true
			}
		}
	case *ast.GuardedPattern:
		return bindsName(pat.Inner)
	case *ast.ListPattern:
		if pat.HasRest && pat.RestName != "" && pat.RestName != "_" {
			return true
		}
		for _, sub := range pat.Prefix {
			if bindsName(sub) {
				return true
			}
		}
		for _, sub := range pat.Suffix {
			if bindsName(sub) {
				return true
			}
		}
	case *ast.DictPattern:
		if pat.HasRestDict && pat.RestName != "" && pat.RestName != "_" {
			return true
		}
		for _, entry := range pat.Entries {
			if bindsName(entry.Key) || bindsName(entry.Value) {
				return true
			}
		}
	}
	return false
}

// ============================================================
// Matching
// ============================================================

// Match runs a pattern against a value and, on success, commits the
// bindings atomically: existing bindings are overwritten in their
// owning frame, new names land in the given frame. A mismatch is the
// ordinary false outcome; only guard evaluation and ill-formed
// patterns raise errors.
func (i *Interpreter) Match(p ast.Pattern, v Value, env *Environment) (bool, error) {
	scratch, ok, err := i.matchBindings(p, v, env)
	if err != nil || !ok {
		return ok, err
	}
	for _, name := range scratch.names {
		env.Assign(name, scratch.vals[name])
	}
	return true, nil
}

// matchBindings validates and matches without committing, handing the
// scratch space to the caller. Loop constructs use this to define
// iteration-local bindings instead of assigning through the chain.
func (i *Interpreter) matchBindings(p ast.Pattern, v Value, env *Environment) (*bindingSet, bool, error) {
	if err := validatePattern(p); err != nil {
		return nil, false, err
	}
	scratch := newBindingSet()
	ok, err := i.matchPattern(p, v, env, scratch)
	if err != nil || !ok {
		return nil, ok, err
	}
	return scratch, true, nil
}

func (i *Interpreter) matchPattern(p ast.Pattern, v Value, env *Environment, scratch *bindingSet) (bool, error) {
	switch pat := p.(type) {
	case *ast.BindPattern:
		scratch.set(pat.Name, v)
		return true, nil

	case *ast.DiscardPattern:
		return true, nil

	case *ast.LiteralPattern:
		res, err := i.eval(pat.Value, env)
		if err != nil {
			return false, err
		}
		return Equal(res.Val, v), nil

	case *ast.AlternationPattern:
		// Each alternative gets an isolated scratch; only the first
		// winner's bindings survive.
		for _, alt := range pat.Alts {
			attempt := newBindingSet()
			ok, err := i.matchPattern(alt, v, env, attempt)
			if err != nil {
				return false, err
			}
			if ok {
				scratch.merge(attempt)
				return true, nil
			}
		}
		return false, nil

	case *ast.GuardedPattern:
		// The guard sees `it` bound to the candidate plus any bindings
		// already made by earlier sub-patterns of the same match.
		guardEnv := NewEnvironment(env)
		for _, name := range scratch.names {
			guardEnv.Define(name, scratch.vals[name])
		}
		guardEnv.Define("it", v)
		res, err := i.eval(pat.Condition, guardEnv)
		if err != nil {
			return false, err
		}
		if res.Sig != SigNone {
			return false, errf(UnresolvedLabel, pat.Condition.GetSpan(),
				"control signal escaped pattern guard")
		}
		if !IsTruthy(res.Val) {
			return false, nil
		}
		return i.matchPattern(pat.Inner, v, env, scratch)

	case *ast.ListPattern:
		return i.matchListPattern(pat, v, env, scratch)

	case *ast.DictPattern:
		return i.matchDictPattern(pat, v, env, scratch)

	default:
		return false, errf(InvalidPattern, p.GetSpan(), "unsupported pattern node %T", p)
	}
}

func (i *Interpreter) matchListPattern(pat *ast.ListPattern, v Value, env *Environment, scratch *bindingSet) (bool, error) {
	list, ok := v.(*ListVal)
	if !ok {
		return false, nil
	}

	l := len(list.Elements)
	p := len(pat.Prefix)
	s := len(pat.Suffix)

	// Length arithmetic per rest form.
	if !pat.HasRest {
		if l != p {
			return false, nil
		}
	} else if pat.RestCount == ast.RestCountVariable {
		if l < p+s {
			return false, nil
		}
	} else {
		if l != p+pat.RestCount+s {
			return false, nil
		}
	}

	for idx, sub := range pat.Prefix {
		ok, err := i.matchPattern(sub, list.Elements[idx], env, scratch)
		if err != nil || !ok {
			return ok, err
		}
	}
	for idx, sub := range pat.Suffix {
		ok, err := i.matchPattern(sub, list.Elements[l-s+idx], env, scratch)
		if err != nil || !ok {
			return ok, err
		}
	}

	if pat.HasRest && pat.RestName != "" && pat.RestName != "_" {
		middle := make([]Value, l-p-s)
		copy(middle, list.Elements[p:l-s])
		scratch.set(pat.RestName, &ListVal{Elements: middle})
	}

	return true, nil
}

func (i *Interpreter) matchDictPattern(pat *ast.DictPattern, v Value, env *Environment, scratch *bindingSet) (bool, error) {
	dict, ok := v.(*DictVal)
	if !ok {
		return false, nil
	}

	// Work on a copy of the remaining-entry set; the candidate dict is
	// never mutated by matching.
	remaining := make([]DictEntry, len(dict.Entries()))
	copy(remaining, dict.Entries())
	consumed := make([]bool, len(remaining))

	for _, entry := range pat.Entries {
		switch {
		case entry.RestKey && entry.RestValue:
			// *k: *v — everything left, as parallel key/value lists.
			var keys, vals []Value
			for idx := range remaining {
				if consumed[idx] {
					continue
				}
				keys = append(keys, remaining[idx].Key)
				vals = append(vals, remaining[idx].Val)
				consumed[idx] = true
			}
			scratch.set(captureName(entry.Key), &ListVal{Elements: keys})
			scratch.set(captureName(entry.Value), &ListVal{Elements: vals})

		case entry.RestKey:
			// *k: filter — keys of every remaining entry whose value
			// passes the filter.
			var keys []Value
			for idx := range remaining {
				if consumed[idx] {
					continue
				}
				ok, err := i.matchPattern(entry.Value, remaining[idx].Val, env, newBindingSet())
				if err != nil {
					return false, err
				}
				if ok {
					keys = append(keys, remaining[idx].Key)
					consumed[idx] = true
				}
			}
			scratch.set(captureName(entry.Key), &ListVal{Elements: keys})

		case entry.RestValue:
			// filter: *v — values of every remaining entry whose key
			// passes the filter.
			var vals []Value
			for idx := range remaining {
				if consumed[idx] {
					continue
				}
				ok, err := i.matchPattern(entry.Key, remaining[idx].Key, env, newBindingSet())
				if err != nil {
					return false, err
				}
				if ok {
					vals = append(vals, remaining[idx].Val)
					consumed[idx] = true
				}
			}
			scratch.set(captureName(entry.Value), &ListVal{Elements: vals})

		default:
			// Plain entry: the first remaining entry, in iteration
			// order, whose key and value both match. Trial bindings
			// from near-misses are discarded.
			found := false
			for idx := range remaining {
				if consumed[idx] {
					continue
				}
				trial := newBindingSet()
				ok, err := i.matchPattern(entry.Key, remaining[idx].Key, env, trial)
				if err != nil {
					return false, err
				}
				if !ok {
					continue
				}
				ok, err = i.matchPattern(entry.Value, remaining[idx].Val, env, trial)
				if err != nil {
					return false, err
				}
				if !ok {
					continue
				}
				scratch.merge(trial)
				consumed[idx] = true
				found = true
				break
			}
			if !found {
				return false, nil
			}
		}
	}

	if pat.HasRestDict {
		rest := NewDict()
		for idx := range remaining {
			if !consumed[idx] {
				rest.Set(remaining[idx].Key, remaining[idx].Val)
			}
		}
		scratch.set(pat.RestName, rest)
	}

	return true, nil
}

// captureName extracts the name of a rest-capture side, which the
// parser stores as a BindPattern.
func captureName(p ast.Pattern) string {
	if bind, ok := p.(*ast.BindPattern); ok {
		return bind.Name
	}
	return ""
}
