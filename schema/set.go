package schema

import "sort"

// Compiled is one user type: its type tree and its constraint tree.
type Compiled struct {
	Type    Type
	Checker *Checker
}

// Module maps type names to compiled types.
type Module map[string]*Compiled

// Set maps module names to modules.
type Set map[string]Module

// Add registers a type, creating its module on first use.
func (s Set) Add(module, name string, t Type, c *Checker) {
	m, ok := s[module]
	if !ok {
		m = make(Module)
		s[module] = m
	}
	m[name] = &Compiled{Type: t, Checker: c}
}

// Lookup resolves a reference.
func (s Set) Lookup(module, name string) (*Compiled, bool) {
	m, ok := s[module]
	if !ok {
		return nil, false
	}
	c, ok := m[name]
	return c, ok
}

// ModuleNames returns the module names in sorted order.
func (s Set) ModuleNames() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// TypeNames returns the type names of m in sorted order.
func (m Module) TypeNames() []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve follows references until it reaches a non-reference type.
// It gives up after visiting every type once, so reference cycles
// return false.
func (s Set) Resolve(t Type) (Type, *Checker, bool) {
	var checker *Checker
	seen := make(map[Ref]bool)
	for {
		ref, ok := t.(*Ref)
		if !ok {
			return t, checker, true
		}
		if seen[*ref] {
			return nil, nil, false
		}
		seen[*ref] = true
		c, ok := s.Lookup(ref.Module, ref.Name)
		if !ok {
			return nil, nil, false
		}
		t, checker = c.Type, c.Checker
	}
}
