package schema

import "math/big"

// Checker carries the constraints of a type tree in a parallel tree.
// Min and Max bound integer values, or the size of an OCTET STRING or
// SEQUENCE OF. A nil bound is unbounded.
type Checker struct {
	Min     *big.Int
	Max     *big.Int
	Members map[string]*Checker
	Element *Checker
}

// Range returns a checker bounding a value or size to [min, max].
func Range(min, max int64) *Checker {
	return &Checker{Min: big.NewInt(min), Max: big.NewInt(max)}
}

// Fixed returns a checker for a fixed size n.
func Fixed(n int64) *Checker {
	return Range(n, n)
}

// Bounds returns the bounds of c. It is safe to call on a nil checker.
func (c *Checker) Bounds() (min, max *big.Int) {
	if c == nil {
		return nil, nil
	}
	return c.Min, c.Max
}

// Member returns the checker of a named member or alternative, or nil.
func (c *Checker) Member(name string) *Checker {
	if c == nil {
		return nil
	}
	return c.Members[name]
}

// Elem returns the checker of SEQUENCE OF elements, or nil.
func (c *Checker) Elem() *Checker {
	if c == nil {
		return nil
	}
	return c.Element
}

// With returns a copy of c with the named member checker set.
func (c *Checker) With(name string, m *Checker) *Checker {
	out := &Checker{Members: make(map[string]*Checker)}
	if c != nil {
		out.Min, out.Max, out.Element = c.Min, c.Max, c.Element
		for k, v := range c.Members {
			out.Members[k] = v
		}
	}
	out.Members[name] = m
	return out
}

// WithElem returns a copy of c with the element checker set.
func (c *Checker) WithElem(e *Checker) *Checker {
	out := &Checker{}
	if c != nil {
		*out = *c
	}
	out.Element = e
	return out
}
