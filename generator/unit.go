package generator

import (
	"fmt"
	"math"
	"math/big"
	"math/bits"
	"strconv"
	"strings"

	"github.com/wippyai/asn1-oer/errors"
	"github.com/wippyai/asn1-oer/generator/internal/catalog"
	"github.com/wippyai/asn1-oer/generator/internal/ir"
	"github.com/wippyai/asn1-oer/generator/internal/naming"
	"github.com/wippyai/asn1-oer/generator/internal/order"
	"github.com/wippyai/asn1-oer/generator/internal/render"
	"github.com/wippyai/asn1-oer/schema"
)

// Unit is the generated code of one user type.
type Unit struct {
	typ     schema.Type
	checker *schema.Checker

	// Module and Name identify the ASN.1 type, GoName is its Go type.
	Module string
	Name   string
	GoName string

	// Layout holds the Go type declarations, including hoisted nested
	// types and constants.
	Layout string
	// Declaration asserts the type implements the codec interface.
	Declaration string
	// Inner holds the encode<GoName>Inner and decode<GoName>Inner functions.
	Inner string
	// Public holds the EncodeOER and DecodeOER methods.
	Public string

	// Refs lists the referenced user types, sorted.
	Refs []schema.Ref
	// Primitives lists the runtime primitives the unit calls directly.
	Primitives []string
	// Identifiers lists the top-level Go identifiers the unit declares.
	Identifiers []string

	encode []ir.Stmt
	decode []ir.Stmt
}

func (u *Unit) key() order.Key {
	return order.Key{Module: u.Module, Name: u.Name}
}

// names hands out scratch identifiers unique within one function.
type names map[string]int

func (n names) next(base string) string {
	n[base]++
	if c := n[base]; c > 1 {
		return base + strconv.Itoa(c)
	}
	return base
}

// unitContext accumulates state while one user type is walked.
type unitContext struct {
	set    schema.Set
	module string
	name   string

	// Loop variables appear in paths shared by both directions.
	loops   names
	encVars names
	decVars names

	prims   map[string]bool
	refs    map[order.Key]bool
	layouts []string
	idents  []string
}

// site is the location a type is generated for.
type site struct {
	path  ir.Path
	named string // defined Go type at this location, top level only
	hint  string // prefix for hoisted type names
}

func (s site) goName() string {
	if s.named != "" {
		return s.named
	}
	return s.hint
}

// node is the result of walking one type.
type node struct {
	goType string
	enc    []ir.Stmt
	dec    []ir.Stmt

	// scalar is the location type of scalar kinds, nil otherwise.
	scalar *ir.Scalar
	// enumOwner is the Go type the enumerator constants are named after.
	enumOwner string
}

func buildUnit(set schema.Set, module, name string, c *schema.Compiled) (*Unit, error) {
	goName := naming.TypeName(module, name)
	u := &unitContext{
		set:     set,
		module:  module,
		name:    name,
		loops:   make(names),
		encVars: make(names),
		decVars: make(names),
		prims:   make(map[string]bool),
		refs:    make(map[order.Key]bool),
	}

	n, err := u.walk(c.Type, c.Checker, site{path: ir.Root(), named: goName, hint: goName})
	if err != nil {
		return nil, err
	}
	if n.goType != goName {
		u.declare(goName)
		u.layouts = append([]string{fmt.Sprintf("type %s %s\n", goName, n.goType)}, u.layouts...)
	}

	for _, id := range []string{catalog.Codec, catalog.NewEncoder, catalog.NewDecoder, catalog.EncoderResult, catalog.DecoderResult} {
		u.use(id)
	}
	encFn, decFn := innerFuncs(goName)
	u.declare(encFn, decFn)

	unit := &Unit{
		typ:         c.Type,
		checker:     c.Checker,
		Module:      module,
		Name:        name,
		GoName:      goName,
		Layout:      strings.Join(u.layouts, "\n"),
		Declaration: fmt.Sprintf("var _ codec = (*%s)(nil)\n", goName),
		Identifiers: u.idents,
		encode:      n.enc,
		decode:      n.dec,
	}
	unit.Inner = fmt.Sprintf("func %s(e *encoder, src *%s) {\n%s}\n\nfunc %s(d *decoder, dst *%s) {\n%s}\n",
		encFn, goName, render.Stmts(render.Encode, n.enc, 1),
		decFn, goName, render.Stmts(render.Decode, n.dec, 1))
	unit.Public = fmt.Sprintf(publicTemplate, goName, encFn, goName, decFn)

	for _, p := range catalog.All() {
		if u.prims[p.ID] {
			unit.Primitives = append(unit.Primitives, p.ID)
		}
	}
	for _, k := range sortedKeys(u.refs) {
		unit.Refs = append(unit.Refs, schema.Ref{Module: k.Module, Name: k.Name})
	}
	return unit, nil
}

const publicTemplate = `// EncodeOER writes v to buf and returns the number of bytes written.
func (v *%s) EncodeOER(buf []byte) (int, error) {
	e := newEncoder(buf)
	%s(e, v)
	return e.result()
}

// DecodeOER reads v from buf and returns the number of bytes consumed.
func (v *%s) DecodeOER(buf []byte) (int, error) {
	d := newDecoder(buf)
	%s(d, v)
	return d.result()
}
`

func innerFuncs(goName string) (enc, dec string) {
	return "encode" + goName + "Inner", "decode" + goName + "Inner"
}

func (u *unitContext) declare(idents ...string) {
	u.idents = append(u.idents, idents...)
}

func (u *unitContext) use(id string) {
	u.prims[id] = true
}

func (u *unitContext) call(id string, args ...ir.Expr) ir.Call {
	u.use(id)
	return ir.Call{Prim: id, Args: args}
}

func (u *unitContext) do(id string, args ...ir.Expr) ir.Stmt {
	return ir.Do{Call: u.call(id, args...)}
}

// fail aborts the current function with err.
func (u *unitContext) fail(abort, err string) []ir.Stmt {
	u.use(abort)
	return []ir.Stmt{ir.Abort{Prim: abort, Err: err}, ir.Return{}}
}

func (u *unitContext) errorAt(kind errors.Kind, p ir.Path, format string, args ...any) error {
	return errors.New(errors.PhaseGenerate, kind).
		Type(u.module, u.name).
		Path(pathOf(p)...).
		Detail(format, args...).
		Build()
}

func (u *unitContext) walk(t schema.Type, c *schema.Checker, s site) (node, error) {
	switch t := t.(type) {
	case *schema.Integer, *schema.Boolean, *schema.Real:
		loc, err := u.scalarType(t, c, s.path)
		if err != nil {
			return node{}, err
		}
		return u.scalar(loc, s), nil
	case *schema.Null:
		return node{goType: "struct{}"}, nil
	case *schema.Enumerated:
		return u.enumerated(t, s)
	case *schema.OctetString:
		return u.octetString(c, s), nil
	case *schema.Sequence:
		return u.sequence(t, c, s)
	case *schema.Choice:
		return u.choice(t, c, s)
	case *schema.SequenceOf:
		return u.sequenceOf(t, c, s)
	case *schema.Ref:
		return u.ref(t, s)
	case *schema.Unmapped:
		return node{}, u.errorAt(errors.KindUnsupported, s.path, "%s has no OER mapping", t.Name)
	}
	return node{}, u.errorAt(errors.KindUnsupported, s.path, "unknown type %T", t)
}

var (
	appendInteger = map[int]string{8: catalog.AppendInteger8, 16: catalog.AppendInteger16, 32: catalog.AppendInteger32, 64: catalog.AppendInteger64}
	readInteger   = map[int]string{8: catalog.ReadInteger8, 16: catalog.ReadInteger16, 32: catalog.ReadInteger32, 64: catalog.ReadInteger64}

	boolScalar    = ir.Scalar{Go: "bool", Class: ir.ClassBool}
	float32Scalar = ir.Scalar{Go: "float32", Class: ir.ClassFloat32, Bits: 32}
	float64Scalar = ir.Scalar{Go: "float64", Class: ir.ClassFloat64, Bits: 64}
)

// scalarType returns the Go location type of an INTEGER, BOOLEAN or REAL.
func (u *unitContext) scalarType(t schema.Type, c *schema.Checker, p ir.Path) (ir.Scalar, error) {
	switch t := t.(type) {
	case *schema.Integer:
		return u.integerType(c, p)
	case *schema.Boolean:
		return boolScalar, nil
	case *schema.Real:
		switch t.Format {
		case schema.Binary32:
			return float32Scalar, nil
		case schema.Binary64:
			return float64Scalar, nil
		}
		return ir.Scalar{}, u.errorAt(errors.KindUnsupported, p,
			"REAL must be constrained to IEEE 754 binary32 or binary64, got %s", t.Format)
	}
	return ir.Scalar{}, u.errorAt(errors.KindUnsupported, p, "%s is not a scalar", t.Kind())
}

// integerType picks the narrowest fixed width holding the value range.
// A range open on either side is a 64-bit signed integer.
func (u *unitContext) integerType(c *schema.Checker, p ir.Path) (ir.Scalar, error) {
	min, max := c.Bounds()
	if min == nil || max == nil {
		return ir.Int(64), nil
	}
	if min.Cmp(max) > 0 {
		return ir.Scalar{}, u.errorAt(errors.KindInvalidInput, p, "empty value range %s..%s", min, max)
	}
	if min.Sign() >= 0 {
		for _, n := range []int{8, 16, 32, 64} {
			if max.Cmp(maxUint(n)) <= 0 {
				return ir.Uint(n), nil
			}
		}
	} else {
		for _, n := range []int{8, 16, 32, 64} {
			if min.Cmp(minInt(n)) >= 0 && max.Cmp(maxInt(n)) <= 0 {
				return ir.Int(n), nil
			}
		}
	}
	return ir.Scalar{}, u.errorAt(errors.KindUnsupported, p, "value range %s..%s does not fit 64 bits", min, max)
}

func maxUint(n int) *big.Int {
	v := new(big.Int).Lsh(big.NewInt(1), uint(n))
	return v.Sub(v, big.NewInt(1))
}

func maxInt(n int) *big.Int {
	return maxUint(n - 1)
}

func minInt(n int) *big.Int {
	return new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), uint(n-1)))
}

// scalar codes a fixed-width value through the primitive of its class.
func (u *unitContext) scalar(loc ir.Scalar, s site) node {
	param, appendPrim, readPrim := loc, "", ""
	switch loc.Class {
	case ir.ClassUint, ir.ClassInt:
		param = ir.Uint(loc.Bits)
		appendPrim, readPrim = appendInteger[loc.Bits], readInteger[loc.Bits]
	case ir.ClassBool:
		appendPrim, readPrim = catalog.AppendBool, catalog.ReadBool
	case ir.ClassFloat32:
		appendPrim, readPrim = catalog.AppendFloat, catalog.ReadFloat
	case ir.ClassFloat64:
		appendPrim, readPrim = catalog.AppendDouble, catalog.ReadDouble
	}

	goType := loc.Go
	if s.named != "" {
		loc = loc.Named(s.named)
	}
	return node{
		goType: goType,
		scalar: &loc,
		enc:    []ir.Stmt{u.do(appendPrim, convert(param, loc, ir.Field{Path: s.path, Type: loc}))},
		dec:    []ir.Stmt{ir.Assign{Target: s.path, Value: convert(loc, param, u.call(readPrim))}},
	}
}

// convert wraps x in a conversion unless from and to are the same Go type.
func convert(to, from ir.Scalar, x ir.Expr) ir.Expr {
	if to.Go == from.Go {
		return x
	}
	return ir.Convert{X: x, To: to}
}

func (u *unitContext) enumerated(t *schema.Enumerated, s site) (node, error) {
	name := s.goName()
	u.declare(name)

	var consts strings.Builder
	for _, v := range t.Values {
		if v.Value < 0 || v.Value > math.MaxUint8 {
			return node{}, u.errorAt(errors.KindUnsupported, s.path,
				"enumerator %q has value %d outside 0..255", v.Name, v.Value)
		}
		c := name + naming.Exported(v.Name)
		u.declare(c)
		fmt.Fprintf(&consts, "\t%s %s = %d\n", c, name, v.Value)
	}

	layout := fmt.Sprintf("type %s uint8\n", name)
	if consts.Len() > 0 {
		layout += "\nconst (\n" + consts.String() + ")\n"
	}
	u.layouts = append(u.layouts, layout)

	loc := ir.Scalar{Go: name, Class: ir.ClassEnum, Bits: 8, Enum: t}
	return node{
		goType:    name,
		scalar:    &loc,
		enumOwner: name,
		enc:       []ir.Stmt{u.do(catalog.AppendInteger8, ir.Convert{X: ir.Field{Path: s.path, Type: loc}, To: ir.Uint(8)})},
		dec:       []ir.Stmt{ir.Assign{Target: s.path, Value: ir.Convert{X: u.call(catalog.ReadInteger8), To: loc}}},
	}, nil
}

func (u *unitContext) octetString(c *schema.Checker, s site) node {
	min, max := c.Bounds()
	if max != nil && (max.Sign() < 0 || max.Cmp(maxUint(32)) > 0) {
		max = nil
	}

	if min != nil && max != nil && min.Cmp(max) == 0 {
		size := int(max.Uint64())
		u.use(catalog.ReadBytes)
		return node{
			goType: fmt.Sprintf("[%d]byte", size),
			enc:    []ir.Stmt{u.do(catalog.AppendBytes, ir.Slice{Path: s.path, Size: size})},
			dec:    []ir.Stmt{ir.ReadInto{Prim: catalog.ReadBytes, Target: s.path, Size: size}},
		}
	}

	var enc, dec []ir.Stmt
	length := u.decVars.next("length")
	bounded := max != nil
	var limit ir.Lit
	if bounded {
		limit = uintLit(max.Uint64())
		enc = append(enc, ir.If{
			Cond: ir.Binary{Op: ">", X: lenAbove(s.path, max.Uint64()), Y: limit},
			Then: u.fail(catalog.EncoderAbort, "ErrBadLength"),
		})
	}

	var size ir.Expr = ir.Var{Name: length}
	if bounded && max.Uint64() < 128 {
		enc = append(enc, u.do(catalog.AppendInteger8, ir.Convert{X: ir.Len{Path: s.path}, To: ir.Uint(8)}))
		dec = append(dec, ir.Declare{Name: length, Value: u.call(catalog.ReadInteger8)})
		size = ir.Convert{X: size, To: ir.Uint(32)}
	} else {
		enc = append(enc, u.do(catalog.AppendLengthDeterminant, ir.Convert{X: ir.Len{Path: s.path}, To: ir.Uint(32)}))
		dec = append(dec, ir.Declare{Name: length, Value: u.call(catalog.ReadLengthDeterminant)})
	}
	enc = append(enc, u.do(catalog.AppendBytes, ir.Slice{Path: s.path}))

	if bounded && max.Uint64() < math.MaxUint32 {
		dec = append(dec, ir.If{
			Cond: ir.Binary{Op: ">", X: ir.Var{Name: length}, Y: limit},
			Then: u.fail(catalog.DecoderAbort, "ErrBadLength"),
		})
	}
	dec = append(dec, ir.Assign{Target: s.path, Value: u.call(catalog.ReadSlice, size)})

	return node{goType: "[]byte", enc: enc, dec: dec}
}

type seqMember struct {
	schema.Member
	path ir.Path
	node node
	bit  int // presence bit, -1 for mandatory members
	def  defaultValue
}

// fields collects struct fields and rejects Go name collisions.
type fields struct {
	b     strings.Builder
	names map[string]string
}

func (f *fields) add(u *unitContext, p ir.Path, goName, goType, member string) error {
	if f.names == nil {
		f.names = make(map[string]string)
	}
	if prev, dup := f.names[goName]; dup {
		return u.errorAt(errors.KindDuplicate, p, "%q and %q both map to field %s", prev, member, goName)
	}
	f.names[goName] = member
	fmt.Fprintf(&f.b, "\t%s %s\n", goName, goType)
	return nil
}

func (f *fields) layout(name string) string {
	return fmt.Sprintf("type %s struct {\n%s}\n", name, f.b.String())
}

func (u *unitContext) sequence(t *schema.Sequence, c *schema.Checker, s site) (node, error) {
	name := s.goName()
	u.declare(name)
	slot := len(u.layouts)
	u.layouts = append(u.layouts, "")

	var f fields
	members := make([]seqMember, 0, len(t.Members))
	flagged := 0
	for _, m := range t.Members {
		goName := naming.Exported(m.Name)
		mp := s.path.Member(m.Name, goName)
		if m.Optional && m.Default != nil {
			return node{}, u.errorAt(errors.KindInvalidInput, mp, "member is both OPTIONAL and DEFAULT")
		}

		n, err := u.walk(m.Type, c.Member(m.Name), site{path: mp, hint: name + goName})
		if err != nil {
			return node{}, err
		}
		if _, null := m.Type.(*schema.Null); !null {
			if err := f.add(u, mp, goName, n.goType, m.Name); err != nil {
				return node{}, err
			}
		}
		if m.Optional {
			if err := f.add(u, mp, goName+"Present", "bool", m.Name); err != nil {
				return node{}, err
			}
		}

		sm := seqMember{Member: m, path: mp, node: n, bit: -1}
		if m.Optional || m.Default != nil {
			sm.bit = flagged
			flagged++
		}
		if m.Default != nil {
			if sm.def, err = u.defaultValue(m.Default, n, mp); err != nil {
				return node{}, err
			}
		}
		members = append(members, sm)
	}
	u.layouts[slot] = f.layout(name)

	encMasks := make([]string, (flagged+7)/8)
	decMasks := make([]string, len(encMasks))
	for i := range encMasks {
		encMasks[i] = u.encVars.next("presentMask")
		decMasks[i] = u.decVars.next("presentMask")
	}

	var enc, dec []ir.Stmt
	for _, mask := range encMasks {
		enc = append(enc, ir.Declare{Name: mask, Value: ir.Lit{Text: "uint8(0)", Value: uint64(0)}})
	}
	for _, m := range members {
		if m.bit < 0 {
			continue
		}
		var cond ir.Expr = ir.Present{Path: m.path}
		if m.Default != nil {
			cond = ir.Binary{Op: "!=", X: ir.Field{Path: m.path, Type: *m.node.scalar, Or: m.def.cmp}, Y: m.def.cmp}
		}
		enc = append(enc, ir.If{Cond: cond, Then: []ir.Stmt{
			ir.Update{Name: encMasks[m.bit/8], Op: "|=", Value: maskBit(m.bit)},
		}})
	}
	for _, mask := range encMasks {
		enc = append(enc, u.do(catalog.AppendInteger8, ir.Var{Name: mask}))
	}
	for _, mask := range decMasks {
		dec = append(dec, ir.Declare{Name: mask, Value: u.call(catalog.ReadInteger8)})
	}

	for _, m := range members {
		if m.bit < 0 {
			enc = append(enc, m.node.enc...)
			dec = append(dec, m.node.dec...)
			continue
		}
		if len(m.node.enc) > 0 {
			enc = append(enc, ir.If{Cond: isSet(encMasks[m.bit/8], m.bit), Then: m.node.enc})
		}
		if m.Optional {
			dec = append(dec, ir.SetPresent{Path: m.path, Value: isSet(decMasks[m.bit/8], m.bit)})
			if len(m.node.dec) > 0 {
				dec = append(dec, ir.If{Cond: isSet(decMasks[m.bit/8], m.bit), Then: m.node.dec})
			}
		} else {
			dec = append(dec, ir.If{
				Cond: isSet(decMasks[m.bit/8], m.bit),
				Then: m.node.dec,
				Else: []ir.Stmt{ir.Assign{Target: m.path, Value: m.def.assign}},
			})
		}
	}

	return node{goType: name, enc: enc, dec: dec}, nil
}

// maskBit is the bit of the n-th flagged member within its mask byte,
// most significant first.
func maskBit(n int) ir.Lit {
	b := uint64(0x80) >> uint(n%8)
	return ir.Lit{Text: fmt.Sprintf("0x%02x", b), Value: b}
}

func isSet(mask string, n int) ir.Expr {
	return ir.Binary{
		Op: "!=",
		X:  ir.Binary{Op: "&", X: ir.Var{Name: mask}, Y: maskBit(n)},
		Y:  ir.Lit{Text: "0", Value: uint64(0)},
	}
}

func uintLit(v uint64) ir.Lit {
	return ir.Lit{Text: strconv.FormatUint(v, 10), Value: v}
}

// defaultValue is a DEFAULT literal. cmp holds the comparable form the
// encoder tests against, assign the value stored on decode.
type defaultValue struct {
	cmp    ir.Lit
	assign ir.Lit
}

func (u *unitContext) defaultValue(v any, n node, p ir.Path) (defaultValue, error) {
	if n.scalar == nil {
		return defaultValue{}, u.errorAt(errors.KindUnsupported, p,
			"DEFAULT is only supported on INTEGER, BOOLEAN, REAL and ENUMERATED members")
	}
	sc := *n.scalar
	invalid := func() (defaultValue, error) {
		return defaultValue{}, u.errorAt(errors.KindInvalidInput, p, "default %v does not fit %s", v, sc.Go)
	}

	switch sc.Class {
	case ir.ClassUint, ir.ClassInt:
		i, ok := bigInteger(v)
		if !ok {
			return invalid()
		}
		if sc.Class == ir.ClassUint {
			if i.Sign() < 0 || i.Cmp(maxUint(sc.Bits)) > 0 {
				return invalid()
			}
			l := ir.Lit{Text: i.String(), Value: i.Uint64()}
			return defaultValue{cmp: l, assign: l}, nil
		}
		if i.Cmp(minInt(sc.Bits)) < 0 || i.Cmp(maxInt(sc.Bits)) > 0 {
			return invalid()
		}
		l := ir.Lit{Text: i.String(), Value: i.Int64()}
		return defaultValue{cmp: l, assign: l}, nil

	case ir.ClassFloat32, ir.ClassFloat64:
		var f float64
		switch x := v.(type) {
		case float64:
			f = x
		default:
			i, ok := bigInteger(v)
			if !ok {
				return invalid()
			}
			f, _ = new(big.Float).SetInt(i).Float64()
		}
		if math.IsInf(f, 0) || math.IsNaN(f) {
			return invalid()
		}
		text := strconv.FormatFloat(f, 'g', -1, sc.Bits)
		var value any = f
		if sc.Class == ir.ClassFloat32 {
			if math.Abs(f) > math.MaxFloat32 {
				return invalid()
			}
			value = float32(f)
		}
		l := ir.Lit{Text: text, Value: value}
		return defaultValue{cmp: l, assign: l}, nil

	case ir.ClassBool:
		b, ok := v.(bool)
		if !ok {
			return invalid()
		}
		l := ir.Lit{Text: strconv.FormatBool(b), Value: b}
		return defaultValue{cmp: l, assign: l}, nil

	case ir.ClassEnum:
		name, ok := v.(string)
		if !ok {
			return invalid()
		}
		num, found := sc.Enum.Lookup(name)
		if !found {
			return defaultValue{}, u.errorAt(errors.KindInvalidInput, p, "default %q is not an enumerator", name)
		}
		text := n.enumOwner + naming.Exported(name)
		if sc.Go != n.enumOwner {
			text = sc.Go + "(" + text + ")"
		}
		return defaultValue{
			cmp:    ir.Lit{Text: text, Value: uint64(num)},
			assign: ir.Lit{Text: text, Value: name},
		}, nil
	}
	return invalid()
}

func bigInteger(v any) (*big.Int, bool) {
	switch x := v.(type) {
	case int:
		return big.NewInt(int64(x)), true
	case int64:
		return big.NewInt(x), true
	case uint64:
		return new(big.Int).SetUint64(x), true
	case float64:
		if x != math.Trunc(x) || math.IsInf(x, 0) {
			return nil, false
		}
		i, _ := big.NewFloat(x).Int(nil)
		return i, true
	case *big.Int:
		return x, true
	}
	return nil, false
}

func (u *unitContext) choice(t *schema.Choice, c *schema.Checker, s site) (node, error) {
	name := s.goName()
	selector := name + "Choice"
	u.declare(name, selector)
	slot := len(u.layouts)
	u.layouts = append(u.layouts, "")

	var f fields
	if err := f.add(u, s.path, "Choice", selector, "selector"); err != nil {
		return node{}, err
	}

	var consts strings.Builder
	tags := make(map[byte]string)
	tag := u.decVars.next("tag")
	var encCases, decCases []ir.Case
	for i, a := range t.Alternatives {
		goName := naming.Exported(a.Name)
		ap := s.path.Alt(a.Name, goName)
		if len(a.Tag) != 1 {
			return node{}, u.errorAt(errors.KindUnsupported, ap,
				"alternative %q has a %d-byte tag, only single-byte tags are supported", a.Name, len(a.Tag))
		}
		if prev, dup := tags[a.Tag[0]]; dup {
			return node{}, u.errorAt(errors.KindInvalidInput, ap,
				"alternatives %q and %q share tag 0x%02x", prev, a.Name, a.Tag[0])
		}
		tags[a.Tag[0]] = a.Name

		n, err := u.walk(a.Type, c.Member(a.Name), site{path: ap, hint: name + goName})
		if err != nil {
			return node{}, err
		}
		if _, null := a.Type.(*schema.Null); !null {
			if err := f.add(u, ap, goName, n.goType, a.Name); err != nil {
				return node{}, err
			}
		}

		cc := ir.ChoiceConst{Go: selector + goName, Alt: a.Name}
		u.declare(cc.Go)
		if i == 0 {
			fmt.Fprintf(&consts, "\t%s %s = iota\n", cc.Go, selector)
		} else {
			fmt.Fprintf(&consts, "\t%s\n", cc.Go)
		}

		tagLit := ir.Lit{Text: fmt.Sprintf("0x%02x", a.Tag[0]), Value: uint64(a.Tag[0])}
		encCases = append(encCases, ir.Case{
			Match: cc,
			Body:  append([]ir.Stmt{u.do(catalog.AppendInteger8, tagLit)}, n.enc...),
		})
		decCases = append(decCases, ir.Case{
			Match: tagLit,
			Body:  append([]ir.Stmt{ir.SetChoice{Const: cc, Path: s.path}}, n.dec...),
		})
	}

	layout := fmt.Sprintf("type %s uint8\n", selector)
	if consts.Len() > 0 {
		layout += "\nconst (\n" + consts.String() + ")\n"
	}
	u.layouts[slot] = layout + "\n" + f.layout(name)

	u.use(catalog.EncoderAbort)
	u.use(catalog.DecoderAbort)
	enc := []ir.Stmt{ir.Switch{
		On:      ir.ChoiceOf{Path: s.path},
		Cases:   encCases,
		Default: []ir.Stmt{ir.Abort{Prim: catalog.EncoderAbort, Err: "ErrBadChoice"}},
	}}
	dec := []ir.Stmt{
		ir.Declare{Name: tag, Value: u.call(catalog.ReadInteger8)},
		ir.Switch{
			On:      ir.Var{Name: tag},
			Cases:   decCases,
			Default: []ir.Stmt{ir.Abort{Prim: catalog.DecoderAbort, Err: "ErrBadChoice"}},
		},
	}
	return node{goType: name, enc: enc, dec: dec}, nil
}

func (u *unitContext) sequenceOf(t *schema.SequenceOf, c *schema.Checker, s site) (node, error) {
	min, max := c.Bounds()
	if max == nil {
		return node{}, u.errorAt(errors.KindUnsupported, s.path, "SEQUENCE OF needs an upper size bound")
	}
	if max.Sign() < 0 || max.Cmp(maxUint(32)) > 0 {
		return node{}, u.errorAt(errors.KindUnsupported, s.path, "SEQUENCE OF size bound %s is outside 0..2^32-1", max)
	}
	count := max.Uint64()
	fixed := min != nil && min.Cmp(max) == 0

	loop := u.loops.next("i")
	elem, err := u.walk(t.Element, c.Elem(), site{path: s.path.Index(loop), hint: s.goName() + "Elem"})
	if err != nil {
		return node{}, err
	}

	goType := "[]" + elem.goType
	if fixed {
		goType = fmt.Sprintf("[%d]%s", count, elem.goType)
	}
	sliceType := goType
	if s.named != "" {
		sliceType = s.named
	}

	elemWide := u.consumesInput(t.Element, c.Elem(), make(map[schema.Ref]bool))

	var enc, dec []ir.Stmt
	countLit := uintLit(count)
	if fixed && count < 256 {
		one := uintLit(1)
		enc = append(enc,
			u.do(catalog.AppendInteger8, one),
			u.do(catalog.AppendInteger8, countLit),
		)
		dec = append(dec,
			ir.If{
				Cond: ir.Binary{Op: "!=", X: u.call(catalog.ReadInteger8), Y: one},
				Then: u.fail(catalog.DecoderAbort, "ErrBadLength"),
			},
			ir.If{
				Cond: ir.Binary{Op: "!=", X: u.call(catalog.ReadInteger8), Y: countLit},
				Then: u.fail(catalog.DecoderAbort, "ErrBadLength"),
			},
		)
	} else {
		width := (bits.Len64(count) + 7) / 8
		if width == 0 {
			width = 1
		}
		widthLit := uintLit(uint64(width))
		if !fixed {
			enc = append(enc, ir.If{
				Cond: ir.Binary{Op: ">", X: lenAbove(s.path, count), Y: countLit},
				Then: u.fail(catalog.EncoderAbort, "ErrBadLength"),
			})
		}
		enc = append(enc,
			u.do(catalog.AppendInteger8, widthLit),
			u.do(catalog.AppendInteger, ir.Convert{X: ir.Len{Path: s.path}, To: ir.Uint(32)}, widthLit),
		)

		lengthBytes := u.decVars.next("numberOfLengthBytes")
		length := u.decVars.next("length")
		op := ">"
		if fixed {
			op = "!="
		}
		dec = append(dec,
			ir.Declare{Name: lengthBytes, Value: u.call(catalog.ReadInteger8)},
			ir.Declare{Name: length, Value: u.call(catalog.ReadInteger, ir.Var{Name: lengthBytes})},
		)
		// The length is a uint32; no value exceeds a bound of 2^32-1.
		if fixed || count < math.MaxUint32 {
			dec = append(dec, ir.If{
				Cond: ir.Binary{Op: op, X: ir.Var{Name: length}, Y: countLit},
				Then: u.fail(catalog.DecoderAbort, "ErrBadLength"),
			})
		}
		if !fixed {
			// Every element takes at least one octet, so a length beyond
			// the remaining input is rejected before it is allocated.
			if elemWide {
				dec = append(dec, ir.If{
					Cond: ir.Not{X: u.call(catalog.Fits, ir.Var{Name: length})},
					Then: []ir.Stmt{ir.Return{}},
				})
			}
			dec = append(dec, ir.MakeSlice{Target: s.path, Type: sliceType, Len: ir.Var{Name: length}})
		}
	}
	if fixed {
		dec = append(dec, ir.MakeSlice{Target: s.path, Type: sliceType, Len: countLit, Fixed: true})
	}

	var n int
	if fixed {
		n = int(count)
	}
	if len(elem.enc) > 0 {
		enc = append(enc, ir.For{Var: loop, Over: s.path, Body: elem.enc, Fixed: n})
	}
	// Zero-width elements have nothing to decode; their lists can be
	// 2^32-1 long without any input behind them.
	if len(elem.dec) > 0 && elemWide {
		dec = append(dec, ir.For{Var: loop, Over: s.path, Body: elem.dec, Fixed: n})
	}
	return node{goType: goType, enc: enc, dec: dec}, nil
}

// lenAbove is the length at p for comparison with bound. Bounds beyond
// the int range of 32-bit platforms compare as uint64.
func lenAbove(p ir.Path, bound uint64) ir.Expr {
	if bound > math.MaxInt32 {
		return ir.Convert{X: ir.Len{Path: p}, To: ir.Uint(64)}
	}
	return ir.Len{Path: p}
}

// consumesInput reports whether every encoding of t takes at least one
// octet. Only NULL, OCTET STRING (SIZE(0)) and SEQUENCEs of those
// without OPTIONAL or DEFAULT members take none.
func (u *unitContext) consumesInput(t schema.Type, c *schema.Checker, seen map[schema.Ref]bool) bool {
	switch t := t.(type) {
	case *schema.Null:
		return false
	case *schema.OctetString:
		min, max := c.Bounds()
		return min == nil || max == nil || min.Sign() != 0 || max.Sign() != 0
	case *schema.Sequence:
		for _, m := range t.Members {
			if m.Optional || m.Default != nil || u.consumesInput(m.Type, c.Member(m.Name), seen) {
				return true
			}
		}
		return false
	case *schema.Ref:
		if seen[*t] {
			return true
		}
		target, ok := u.set.Lookup(t.Module, t.Name)
		if !ok {
			return true
		}
		seen[*t] = true
		return u.consumesInput(target.Type, target.Checker, seen)
	}
	return true
}

func (u *unitContext) ref(t *schema.Ref, s site) (node, error) {
	if _, ok := u.set.Lookup(t.Module, t.Name); !ok {
		return node{}, errors.New(errors.PhaseGenerate, errors.KindNotFound).
			Type(u.module, u.name).
			Path(pathOf(s.path)...).
			Detail("reference to undefined type %s.%s", t.Module, t.Name).
			Value(t.Module + "." + t.Name).
			Build()
	}
	u.refs[order.Key{Module: t.Module, Name: t.Name}] = true

	goName := naming.TypeName(t.Module, t.Name)
	encFn, decFn := innerFuncs(goName)
	conv := ""
	if s.named != "" {
		conv = goName
	}
	n := node{
		goType: goName,
		enc:    []ir.Stmt{ir.Inner{Module: t.Module, Name: t.Name, Func: encFn, Convert: conv, Target: s.path, Encode: true}},
		dec:    []ir.Stmt{ir.Inner{Module: t.Module, Name: t.Name, Func: decFn, Convert: conv, Target: s.path}},
	}

	// Scalars behind references still need a location type for DEFAULT.
	if sc, owner, ok := u.resolveScalar(t); ok {
		sc = sc.Named(goName)
		if s.named != "" {
			sc = sc.Named(s.named)
		}
		n.scalar, n.enumOwner = &sc, owner
	}
	return n, nil
}

// resolveScalar follows references to a scalar type. owner is the Go type
// of the last reference, which names enumerator constants.
func (u *unitContext) resolveScalar(t *schema.Ref) (ir.Scalar, string, bool) {
	var (
		cur     schema.Type = t
		checker *schema.Checker
		owner   string
	)
	seen := make(map[schema.Ref]bool)
	for {
		r, ok := cur.(*schema.Ref)
		if !ok {
			break
		}
		if seen[*r] {
			return ir.Scalar{}, "", false
		}
		seen[*r] = true
		c, ok := u.set.Lookup(r.Module, r.Name)
		if !ok {
			return ir.Scalar{}, "", false
		}
		owner = naming.TypeName(r.Module, r.Name)
		cur, checker = c.Type, c.Checker
	}

	if e, ok := cur.(*schema.Enumerated); ok {
		return ir.Scalar{Go: owner, Class: ir.ClassEnum, Bits: 8, Enum: e}, owner, true
	}
	switch cur.(type) {
	case *schema.Integer, *schema.Boolean, *schema.Real:
		sc, err := u.scalarType(cur, checker, ir.Root())
		if err != nil {
			return ir.Scalar{}, "", false
		}
		return sc, owner, true
	}
	return ir.Scalar{}, "", false
}

func pathOf(p ir.Path) []string {
	if p.IsRoot() {
		return nil
	}
	return []string{p.String()}
}
