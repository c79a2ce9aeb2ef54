// Package order sorts user types so that every type follows the types it
// references.
//
// The order is a depth-first post-order over the types sorted by module and
// name, visiting references in the same sorted order. The result only
// depends on the input set, never on map iteration or insertion order.
package order

import (
	"sort"

	"github.com/wippyai/asn1-oer/errors"
)

// Key identifies a user type.
type Key struct {
	Module string
	Name   string
}

func (k Key) String() string {
	return k.Module + "." + k.Name
}

func (k Key) less(o Key) bool {
	if k.Module != o.Module {
		return k.Module < o.Module
	}
	return k.Name < o.Name
}

// Graph records which types reference which.
type Graph struct {
	refs map[Key]map[Key]bool
}

// New creates an empty graph
func New() *Graph {
	return &Graph{refs: make(map[Key]map[Key]bool)}
}

// Add registers a type and the types it references. Adding a type twice
// merges the references.
func (g *Graph) Add(k Key, refs ...Key) {
	set, ok := g.refs[k]
	if !ok {
		set = make(map[Key]bool)
		g.refs[k] = set
	}
	for _, r := range refs {
		set[r] = true
	}
}

// Refs returns the sorted references of k.
func (g *Graph) Refs(k Key) []Key {
	return sortedKeys(g.refs[k])
}

const (
	unvisited = iota
	visiting
	done
)

// Sort returns every registered type, each after all types it
// references. A reference to an unregistered type fails with
// errors.KindNotFound and a reference cycle with errors.KindCycle.
func (g *Graph) Sort() ([]Key, error) {
	keys := make([]Key, 0, len(g.refs))
	for k := range g.refs {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].less(keys[j]) })

	state := make(map[Key]int, len(keys))
	out := make([]Key, 0, len(keys))
	var stack []Key

	var visit func(k Key) error
	visit = func(k Key) error {
		switch state[k] {
		case done:
			return nil
		case visiting:
			return cycleError(stack, k)
		}
		state[k] = visiting
		stack = append(stack, k)
		for _, r := range g.Refs(k) {
			if _, ok := g.refs[r]; !ok {
				return errors.New(errors.PhaseOrder, errors.KindNotFound).
					Type(k.Module, k.Name).
					Detail("references undefined type %s", r).
					Value(r).
					Build()
			}
			if err := visit(r); err != nil {
				return err
			}
		}
		stack = stack[:len(stack)-1]
		state[k] = done
		out = append(out, k)
		return nil
	}

	for _, k := range keys {
		if err := visit(k); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func cycleError(stack []Key, k Key) error {
	start := 0
	for i, s := range stack {
		if s == k {
			start = i
			break
		}
	}
	names := make([]string, 0, len(stack)-start+1)
	for _, s := range stack[start:] {
		names = append(names, s.String())
	}
	names = append(names, k.String())
	err := errors.Cycle(names)
	err.Module, err.Type = k.Module, k.Name
	return err
}

func sortedKeys(set map[Key]bool) []Key {
	out := make([]Key, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].less(out[j]) })
	return out
}
