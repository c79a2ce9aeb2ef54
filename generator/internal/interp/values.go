package interp

import (
	"math"

	"github.com/wippyai/asn1-oer/errors"
	"github.com/wippyai/asn1-oer/generator/internal/ir"
)

// get returns the value at p and whether it exists.
func (m *machine) get(p ir.Path) (any, bool, error) {
	cur := m.root
	steps := p.Steps()
	for i, s := range steps {
		if cur == nil {
			return nil, false, nil
		}
		switch s.Kind {
		case ir.StepMember, ir.StepAlt:
			fields, ok := cur.(map[string]any)
			if !ok {
				return nil, false, errors.TypeMismatch(m.phase, prefix(steps[:i]), "mapping", cur)
			}
			v, ok := fields[s.Name]
			if !ok {
				return nil, false, nil
			}
			cur = v
		case ir.StepIndex:
			list, ok := cur.([]any)
			if !ok {
				return nil, false, errors.TypeMismatch(m.phase, prefix(steps[:i]), "list", cur)
			}
			idx, _ := m.vars[s.Name].(int)
			if idx >= len(list) {
				return nil, false, nil
			}
			cur = list[idx]
		}
	}
	return cur, true, nil
}

// set stores v at p, creating mappings and growing lists on the way.
func (m *machine) set(p ir.Path, v any) {
	m.root = m.setIn(m.root, p.Steps(), v)
}

// unset removes the member at p from its parent mapping.
func (m *machine) unset(p ir.Path) {
	parent, last := p.Parent()
	v, ok, _ := m.get(parent)
	if fields, isMap := v.(map[string]any); ok && isMap {
		delete(fields, last.Name)
	}
}

func (m *machine) setIn(cur any, steps []ir.Step, v any) any {
	if len(steps) == 0 {
		return v
	}
	s := steps[0]
	switch s.Kind {
	case ir.StepIndex:
		list, _ := cur.([]any)
		idx, _ := m.vars[s.Name].(int)
		for len(list) <= idx {
			list = append(list, nil)
		}
		list[idx] = m.setIn(list[idx], steps[1:], v)
		return list
	default:
		fields, ok := cur.(map[string]any)
		if !ok {
			fields = make(map[string]any)
		}
		fields[s.Name] = m.setIn(fields[s.Name], steps[1:], v)
		return fields
	}
}

func prefix(steps []ir.Step) []string {
	p := ir.Root()
	for _, s := range steps {
		switch s.Kind {
		case ir.StepIndex:
			p = p.Index(s.Name)
		default:
			p = p.Member(s.Name, s.Go)
		}
	}
	return pathOf(p)
}

// normalize converts a caller supplied scalar into the canonical dynamic
// form of its class: uint64, int64, float32, float64, bool, or the
// enumerator number as uint64.
func (m *machine) normalize(v any, s ir.Scalar, p ir.Path) (any, error) {
	mismatch := func(want string) error {
		return errors.TypeMismatch(m.phase, pathOf(p), want, v)
	}
	outOfRange := func() error {
		return errors.New(m.phase, errors.KindTypeMismatch).
			Path(pathOf(p)...).
			Detail("value %v does not fit %s", v, s.Go).
			Value(v).
			Build()
	}

	switch s.Class {
	case ir.ClassUint:
		u, ok := unsigned(v)
		if !ok {
			return nil, mismatch("unsigned integer")
		}
		if s.Bits < 64 && u >= 1<<uint(s.Bits) {
			return nil, outOfRange()
		}
		return u, nil

	case ir.ClassInt:
		i, ok := signed(v)
		if !ok {
			return nil, mismatch("integer")
		}
		if s.Bits < 64 {
			limit := int64(1) << uint(s.Bits-1)
			if i < -limit || i >= limit {
				return nil, outOfRange()
			}
		}
		return i, nil

	case ir.ClassFloat32:
		f, ok := float(v)
		if !ok {
			return nil, mismatch("real")
		}
		return float32(f), nil

	case ir.ClassFloat64:
		f, ok := float(v)
		if !ok {
			return nil, mismatch("real")
		}
		return f, nil

	case ir.ClassBool:
		b, ok := v.(bool)
		if !ok {
			return nil, mismatch("boolean")
		}
		return b, nil

	case ir.ClassEnum:
		if name, ok := v.(string); ok {
			n, found := s.Enum.Lookup(name)
			if !found {
				return nil, errors.New(m.phase, errors.KindTypeMismatch).
					Path(pathOf(p)...).
					Detail("unknown enumerator %q", name).
					Value(v).
					Build()
			}
			return uint64(n), nil
		}
		u, ok := unsigned(v)
		if !ok || u > math.MaxUint8 {
			return nil, mismatch("enumerator")
		}
		return u, nil
	}
	return v, nil
}

// convert mirrors a Go conversion between scalar types.
func convert(v any, to ir.Scalar) any {
	switch to.Class {
	case ir.ClassUint:
		u := asUint(v)
		if to.Bits < 64 {
			u &= 1<<uint(to.Bits) - 1
		}
		return u
	case ir.ClassInt:
		shift := uint(64 - to.Bits)
		return int64(asUint(v)<<shift) >> shift
	case ir.ClassFloat32:
		return float32(asFloat(v))
	case ir.ClassFloat64:
		return asFloat(v)
	case ir.ClassEnum:
		n := asUint(v)
		if to.Enum != nil {
			if name, ok := to.Enum.Name(int64(n)); ok {
				return name
			}
		}
		return int64(n)
	}
	return v
}

func unsigned(v any) (uint64, bool) {
	switch x := v.(type) {
	case uint, uint8, uint16, uint32, uint64:
		return asUint(x), true
	case int, int8, int16, int32, int64:
		i := int64(asUint(x))
		if i < 0 {
			return 0, false
		}
		return uint64(i), true
	case float64:
		if x < 0 || x != math.Trunc(x) || x >= math.MaxUint64 {
			return 0, false
		}
		return uint64(x), true
	}
	return 0, false
}

func signed(v any) (int64, bool) {
	switch x := v.(type) {
	case int, int8, int16, int32, int64:
		return int64(asUint(x)), true
	case uint, uint8, uint16, uint32, uint64:
		u := asUint(x)
		if u > math.MaxInt64 {
			return 0, false
		}
		return int64(u), true
	case float64:
		if x != math.Trunc(x) || x < math.MinInt64 || x >= math.MaxInt64 {
			return 0, false
		}
		return int64(x), true
	}
	return 0, false
}

func float(v any) (float64, bool) {
	switch x := v.(type) {
	case float32:
		return float64(x), true
	case float64:
		return x, true
	}
	if i, ok := signed(v); ok {
		return float64(i), true
	}
	return 0, false
}
