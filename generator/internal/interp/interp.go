// Package interp executes instruction sequences against the oer runtime
// using dynamic values instead of generated Go types.
//
// Dynamic values mirror the generated layouts:
//
//	SEQUENCE      map[string]any keyed by member name, absent optional = no key
//	CHOICE        map[string]any with exactly one key
//	SEQUENCE OF   []any
//	OCTET STRING  []byte
//	INTEGER       int64 or uint64
//	ENUMERATED    enumerator name, or its number when unknown
//	REAL          float32 or float64
//	BOOLEAN       bool
//	NULL          nil
package interp

import (
	"fmt"
	"math"

	"github.com/wippyai/asn1-oer/errors"
	"github.com/wippyai/asn1-oer/generator/internal/catalog"
	"github.com/wippyai/asn1-oer/generator/internal/ir"
	"github.com/wippyai/asn1-oer/oer"
)

// MaxElements bounds the SEQUENCE OF lengths Decode allocates. Elements
// that take input are also checked against the remaining octets; this
// limit is what stops zero-width elements such as NULL.
const MaxElements = 1 << 24

// Resolver returns the instruction sequences of a user type.
type Resolver func(module, name string) (enc, dec []ir.Stmt, ok bool)

type machine struct {
	root    any
	enc     *oer.Encoder
	dec     *oer.Decoder
	vars    map[string]any
	resolve Resolver
	phase   errors.Phase
}

// Encode runs stmts with v as the root value. Runtime failures are
// latched in e; the returned error reports values that do not fit the
// type.
func Encode(e *oer.Encoder, stmts []ir.Stmt, v any, resolve Resolver) error {
	m := &machine{root: v, enc: e, vars: make(map[string]any), resolve: resolve, phase: errors.PhaseEncode}
	_, err := m.exec(stmts)
	return err
}

// Decode runs stmts and returns the decoded root value. Runtime failures
// are latched in d.
func Decode(d *oer.Decoder, stmts []ir.Stmt, resolve Resolver) (any, error) {
	m := &machine{dec: d, vars: make(map[string]any), resolve: resolve, phase: errors.PhaseDecode}
	if _, err := m.exec(stmts); err != nil {
		return nil, err
	}
	return m.root, nil
}

func (m *machine) exec(stmts []ir.Stmt) (returned bool, err error) {
	for _, s := range stmts {
		if returned, err = m.stmt(s); returned || err != nil {
			return returned, err
		}
	}
	return false, nil
}

func (m *machine) stmt(s ir.Stmt) (bool, error) {
	switch s := s.(type) {
	case ir.Declare:
		v, err := m.eval(s.Value)
		if err != nil {
			return false, err
		}
		m.vars[s.Name] = v

	case ir.Update:
		v, err := m.eval(s.Value)
		if err != nil {
			return false, err
		}
		r, err := arith(s.Op[:len(s.Op)-1], m.vars[s.Name], v)
		if err != nil {
			return false, err
		}
		m.vars[s.Name] = r

	case ir.Assign:
		v, err := m.eval(s.Value)
		if err != nil {
			return false, err
		}
		m.set(s.Target, v)

	case ir.SetPresent:
		v, err := m.eval(s.Value)
		if err != nil {
			return false, err
		}
		_, ok, err := m.get(s.Path)
		if err != nil {
			return false, err
		}
		switch present, _ := v.(bool); {
		case present && !ok:
			m.set(s.Path, nil)
		case !present && ok:
			m.unset(s.Path)
		}

	case ir.SetChoice:
		m.set(s.Path, map[string]any{s.Const.Alt: nil})

	case ir.Do:
		if _, err := m.call(s.Call); err != nil {
			return false, err
		}

	case ir.If:
		c, err := m.eval(s.Cond)
		if err != nil {
			return false, err
		}
		if b, _ := c.(bool); b {
			return m.exec(s.Then)
		}
		return m.exec(s.Else)

	case ir.For:
		return m.loop(s)

	case ir.Switch:
		on, err := m.eval(s.On)
		if err != nil {
			return false, err
		}
		for _, c := range s.Cases {
			match, err := m.eval(c.Match)
			if err != nil {
				return false, err
			}
			if equal(on, match) {
				return m.exec(c.Body)
			}
		}
		return m.exec(s.Default)

	case ir.Abort:
		err := sentinel(s.Err)
		if s.Prim == catalog.DecoderAbort {
			m.dec.Abort(err)
		} else {
			m.enc.Abort(err)
		}

	case ir.Return:
		return true, nil

	case ir.Inner:
		return false, m.inner(s)

	case ir.MakeSlice:
		n, err := m.eval(s.Len)
		if err != nil {
			return false, err
		}
		if !s.Fixed && asUint(n) > MaxElements {
			m.dec.Abort(oer.ErrOutOfMemory)
			return true, nil
		}
		m.set(s.Target, make([]any, asUint(n)))

	case ir.ReadInto:
		buf := make([]byte, s.Size)
		m.dec.ReadBytes(buf)
		m.set(s.Target, buf)

	default:
		return false, fmt.Errorf("interp: unknown statement %T", s)
	}
	return false, nil
}

func (m *machine) loop(s ir.For) (bool, error) {
	v, ok, err := m.get(s.Over)
	if err != nil {
		return false, err
	}
	var n int
	if ok && v != nil {
		list, isList := v.([]any)
		if !isList {
			return false, errors.TypeMismatch(m.phase, pathOf(s.Over), "list", v)
		}
		n = len(list)
	}
	if s.Fixed > 0 && n != s.Fixed {
		return false, errors.New(m.phase, errors.KindTypeMismatch).
			Path(pathOf(s.Over)...).
			Detail("expected %d elements, got %d", s.Fixed, n).
			Value(v).
			Build()
	}
	for i := 0; i < n; i++ {
		m.vars[s.Var] = i
		if returned, err := m.exec(s.Body); returned || err != nil {
			return returned, err
		}
	}
	return false, nil
}

func (m *machine) inner(s ir.Inner) error {
	enc, dec, ok := m.resolve(s.Module, s.Name)
	if !ok {
		return errors.NotFound(m.phase, "type", s.Module+"."+s.Name)
	}
	sub := &machine{enc: m.enc, dec: m.dec, vars: make(map[string]any), resolve: m.resolve, phase: m.phase}

	if s.Encode {
		v, present, err := m.get(s.Target)
		if err != nil {
			return err
		}
		if !present && !s.Target.IsRoot() {
			_, last := s.Target.Parent()
			return errors.FieldMissing(m.phase, pathOf(s.Target), last.Name)
		}
		sub.root = v
		_, err = sub.exec(enc)
		return err
	}

	if _, err := sub.exec(dec); err != nil {
		return err
	}
	m.set(s.Target, sub.root)
	return nil
}

func (m *machine) eval(e ir.Expr) (any, error) {
	switch e := e.(type) {
	case ir.Field:
		v, ok, err := m.get(e.Path)
		if err != nil {
			return nil, err
		}
		if !ok {
			if e.Or != nil {
				return m.eval(e.Or)
			}
			return nil, m.missing(e.Path)
		}
		return m.normalize(v, e.Type, e.Path)

	case ir.Lit:
		return e.Value, nil

	case ir.Var:
		return m.vars[e.Name], nil

	case ir.Len:
		v, ok, err := m.get(e.Path)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, m.missing(e.Path)
		}
		switch x := v.(type) {
		case []byte:
			return uint64(len(x)), nil
		case []any:
			return uint64(len(x)), nil
		case nil:
			return uint64(0), nil
		}
		return nil, errors.TypeMismatch(m.phase, pathOf(e.Path), "octets or list", v)

	case ir.Convert:
		v, err := m.eval(e.X)
		if err != nil {
			return nil, err
		}
		return convert(v, e.To), nil

	case ir.Call:
		return m.call(e)

	case ir.Binary:
		x, err := m.eval(e.X)
		if err != nil {
			return nil, err
		}
		y, err := m.eval(e.Y)
		if err != nil {
			return nil, err
		}
		switch e.Op {
		case "==":
			return equal(x, y), nil
		case "!=":
			return !equal(x, y), nil
		case "<":
			return asUint(x) < asUint(y), nil
		case "<=":
			return asUint(x) <= asUint(y), nil
		case ">":
			return asUint(x) > asUint(y), nil
		case ">=":
			return asUint(x) >= asUint(y), nil
		}
		return arith(e.Op, x, y)

	case ir.Not:
		v, err := m.eval(e.X)
		if err != nil {
			return nil, err
		}
		b, _ := v.(bool)
		return !b, nil

	case ir.Present:
		_, ok, err := m.get(e.Path)
		return ok, err

	case ir.ChoiceOf:
		v, ok, err := m.get(e.Path)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, m.missing(e.Path)
		}
		choice, isMap := v.(map[string]any)
		if !isMap || len(choice) != 1 {
			return nil, errors.New(m.phase, errors.KindTypeMismatch).
				Path(pathOf(e.Path)...).
				Detail("choice value must have exactly one alternative").
				Value(v).
				Build()
		}
		for name := range choice {
			return name, nil
		}

	case ir.ChoiceConst:
		return e.Alt, nil

	case ir.Slice:
		v, ok, err := m.get(e.Path)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, m.missing(e.Path)
		}
		b, isBytes := v.([]byte)
		if !isBytes && v != nil {
			return nil, errors.TypeMismatch(m.phase, pathOf(e.Path), "octets", v)
		}
		if e.Size > 0 && len(b) != e.Size {
			return nil, errors.New(m.phase, errors.KindTypeMismatch).
				Path(pathOf(e.Path)...).
				Detail("expected %d octets, got %d", e.Size, len(b)).
				Value(v).
				Build()
		}
		return b, nil
	}
	return nil, fmt.Errorf("interp: unknown expression %T", e)
}

func (m *machine) call(c ir.Call) (any, error) {
	args := make([]any, len(c.Args))
	for i, a := range c.Args {
		v, err := m.eval(a)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}

	e, d := m.enc, m.dec
	switch c.Prim {
	case catalog.AppendBytes:
		b, _ := args[0].([]byte)
		e.AppendBytes(b)
	case catalog.AppendInteger8:
		e.AppendInteger8(uint8(asUint(args[0])))
	case catalog.AppendInteger16:
		e.AppendInteger16(uint16(asUint(args[0])))
	case catalog.AppendInteger32:
		e.AppendInteger32(uint32(asUint(args[0])))
	case catalog.AppendInteger64:
		e.AppendInteger64(asUint(args[0]))
	case catalog.AppendInteger:
		e.AppendInteger(uint32(asUint(args[0])), uint8(asUint(args[1])))
	case catalog.AppendFloat:
		e.AppendFloat(float32(asFloat(args[0])))
	case catalog.AppendDouble:
		e.AppendDouble(asFloat(args[0]))
	case catalog.AppendBool:
		b, _ := args[0].(bool)
		e.AppendBool(b)
	case catalog.AppendLengthDeterminant:
		e.AppendLengthDeterminant(uint32(asUint(args[0])))

	case catalog.Fits:
		return d.Fits(uint32(asUint(args[0]))), nil
	case catalog.ReadSlice:
		return d.ReadSlice(uint32(asUint(args[0]))), nil
	case catalog.ReadInteger8:
		return uint64(d.ReadInteger8()), nil
	case catalog.ReadInteger16:
		return uint64(d.ReadInteger16()), nil
	case catalog.ReadInteger32:
		return uint64(d.ReadInteger32()), nil
	case catalog.ReadInteger64:
		return d.ReadInteger64(), nil
	case catalog.ReadInteger:
		return uint64(d.ReadInteger(uint8(asUint(args[0])))), nil
	case catalog.ReadFloat:
		return d.ReadFloat(), nil
	case catalog.ReadDouble:
		return d.ReadDouble(), nil
	case catalog.ReadBool:
		return d.ReadBool(), nil
	case catalog.ReadLengthDeterminant:
		return uint64(d.ReadLengthDeterminant()), nil

	default:
		return nil, fmt.Errorf("interp: primitive %s cannot be called", c.Prim)
	}
	return nil, nil
}

func (m *machine) missing(p ir.Path) error {
	if p.IsRoot() {
		return errors.New(m.phase, errors.KindFieldMissing).Detail("no value").Build()
	}
	_, last := p.Parent()
	return errors.FieldMissing(m.phase, pathOf(p), last.Name)
}

func sentinel(name string) error {
	switch name {
	case "ErrBadLength":
		return oer.ErrBadLength
	case "ErrBadChoice":
		return oer.ErrBadChoice
	case "ErrOutOfData":
		return oer.ErrOutOfData
	default:
		return oer.ErrOutOfMemory
	}
}

func pathOf(p ir.Path) []string {
	if p.IsRoot() {
		return nil
	}
	return []string{p.String()}
}

func equal(x, y any) bool {
	if isInteger(x) && isInteger(y) {
		return asUint(x) == asUint(y)
	}
	switch x.(type) {
	case []byte, []any, map[string]any:
		return false
	}
	return x == y
}

func arith(op string, x, y any) (any, error) {
	a, b := asUint(x), asUint(y)
	switch op {
	case "&":
		return a & b, nil
	case "|":
		return a | b, nil
	case "+":
		return a + b, nil
	case "-":
		return a - b, nil
	}
	return nil, fmt.Errorf("interp: unsupported operator %q", op)
}

func isInteger(v any) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	}
	return false
}

// asUint returns the two's complement bits of an integer value.
func asUint(v any) uint64 {
	switch x := v.(type) {
	case int:
		return uint64(x)
	case int8:
		return uint64(x)
	case int16:
		return uint64(x)
	case int32:
		return uint64(x)
	case int64:
		return uint64(x)
	case uint:
		return uint64(x)
	case uint8:
		return uint64(x)
	case uint16:
		return uint64(x)
	case uint32:
		return uint64(x)
	case uint64:
		return x
	case bool:
		if x {
			return 1
		}
	}
	return 0
}

func asFloat(v any) float64 {
	switch x := v.(type) {
	case float32:
		return float64(x)
	case float64:
		return x
	}
	if isInteger(v) {
		return float64(int64(asUint(v)))
	}
	return math.NaN()
}
