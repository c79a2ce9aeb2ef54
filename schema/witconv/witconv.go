// Package witconv converts WebAssembly Interface Type definitions into
// ASN.1 schema sets.
//
// Every named type definition becomes one type of a single module. Named
// definitions reached from the converted ones are pulled in as well, and
// references between them become schema.Ref nodes:
//
//	record          SEQUENCE; option<T> fields become OPTIONAL T members
//	tuple           SEQUENCE with members f0, f1, ...
//	variant         CHOICE, one context tag per case; cases without payload are NULL
//	option<T>       CHOICE { none NULL, some T }
//	result<T, E>    CHOICE { ok T, err E }
//	enum            ENUMERATED numbered from 0
//	string          OCTET STRING (SIZE(0..MaxListSize))
//	list<u8>        OCTET STRING (SIZE(0..MaxListSize))
//	list<T>         SEQUENCE OF T (SIZE(0..MaxListSize))
//	u8..u64 s8..s64 INTEGER over the full range of the type
//	f32, f64        REAL binary32, binary64
//	char            INTEGER (0..1114111)
//	own, borrow     INTEGER (0..4294967295), the handle
//	flags           unmapped
package witconv

import (
	"fmt"
	"io"
	"math"
	"math/big"
	"os"
	"strconv"

	"go.bytecodealliance.org/wit"

	"github.com/wippyai/asn1-oer/errors"
	"github.com/wippyai/asn1-oer/schema"
)

// Options controls the conversion.
type Options struct {
	// MaxListSize bounds strings and lists, which WIT leaves unbounded.
	MaxListSize uint64
}

func DefaultOptions() Options {
	return Options{MaxListSize: math.MaxUint16}
}

// Convert adds every named definition of defs, and the named definitions
// they reference, to a new set under module.
func Convert(module string, defs []*wit.TypeDef, opts Options) (schema.Set, error) {
	if module == "" {
		return nil, errors.InvalidInput(errors.PhaseLoad, "empty module name")
	}
	if opts.MaxListSize == 0 {
		return nil, errors.InvalidInput(errors.PhaseLoad, "MaxListSize must be positive")
	}

	c := &converter{
		module: module,
		opts:   opts,
		names:  make(map[string]*wit.TypeDef),
	}
	for _, td := range defs {
		if td == nil || td.Name == nil {
			continue
		}
		if err := c.enqueue(td); err != nil {
			return nil, err
		}
	}

	set := make(schema.Set)
	for len(c.queue) > 0 {
		td := c.queue[0]
		c.queue = c.queue[1:]
		c.name = *td.Name
		t, chk, err := c.kind(td.Kind, nil)
		if err != nil {
			return nil, err
		}
		set.Add(module, c.name, t, chk)
	}
	if len(set) == 0 {
		return nil, errors.InvalidInput(errors.PhaseLoad, "no named type definitions")
	}
	return set, nil
}

// LoadJSON reads a WIT JSON document, as printed by wasm-tools, and
// converts all of its named type definitions.
func LoadJSON(r io.Reader, module string, opts Options) (schema.Set, error) {
	res, err := wit.DecodeJSON(r)
	if err != nil {
		return nil, errors.ParseFailed("WIT JSON", err)
	}
	return Convert(module, res.TypeDefs, opts)
}

// LoadFile is LoadJSON on the file at path.
func LoadFile(path, module string, opts Options) (schema.Set, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseLoad, errors.KindNotFound, err, "read "+path)
	}
	defer f.Close()
	return LoadJSON(f, module, opts)
}

type converter struct {
	names  map[string]*wit.TypeDef
	module string
	name   string
	queue  []*wit.TypeDef
	opts   Options
}

// enqueue schedules a named definition once. Two different definitions
// with the same name cannot share a module.
func (c *converter) enqueue(td *wit.TypeDef) error {
	name := *td.Name
	if prev, ok := c.names[name]; ok {
		if prev == td {
			return nil
		}
		return errors.Duplicate(errors.PhaseLoad, "type", c.module+"."+name)
	}
	c.names[name] = td
	c.queue = append(c.queue, td)
	return nil
}

func (c *converter) typ(t wit.Type, path []string) (schema.Type, *schema.Checker, error) {
	switch t := t.(type) {
	case wit.Bool:
		return &schema.Boolean{}, nil, nil
	case wit.U8:
		return &schema.Integer{}, schema.Range(0, math.MaxUint8), nil
	case wit.S8:
		return &schema.Integer{}, schema.Range(math.MinInt8, math.MaxInt8), nil
	case wit.U16:
		return &schema.Integer{}, schema.Range(0, math.MaxUint16), nil
	case wit.S16:
		return &schema.Integer{}, schema.Range(math.MinInt16, math.MaxInt16), nil
	case wit.U32:
		return &schema.Integer{}, schema.Range(0, math.MaxUint32), nil
	case wit.S32:
		return &schema.Integer{}, schema.Range(math.MinInt32, math.MaxInt32), nil
	case wit.U64:
		max := new(big.Int).SetUint64(math.MaxUint64)
		return &schema.Integer{}, &schema.Checker{Min: big.NewInt(0), Max: max}, nil
	case wit.S64:
		return &schema.Integer{}, schema.Range(math.MinInt64, math.MaxInt64), nil
	case wit.F32:
		return &schema.Real{Format: schema.Binary32}, nil, nil
	case wit.F64:
		return &schema.Real{Format: schema.Binary64}, nil, nil
	case wit.Char:
		return &schema.Integer{}, schema.Range(0, 0x10ffff), nil
	case wit.String:
		return &schema.OctetString{}, c.size(), nil
	case *wit.TypeDef:
		if t.Name != nil {
			if err := c.enqueue(t); err != nil {
				return nil, nil, err
			}
			return &schema.Ref{Module: c.module, Name: *t.Name}, nil, nil
		}
		return c.kind(t.Kind, path)
	case nil:
		return &schema.Null{}, nil, nil
	}
	return nil, nil, c.unsupported(path, fmt.Sprintf("WIT type %T", t))
}

func (c *converter) kind(k wit.TypeDefKind, path []string) (schema.Type, *schema.Checker, error) {
	switch k := k.(type) {
	case *wit.Record:
		return c.record(k, path)

	case *wit.Tuple:
		seq := &schema.Sequence{}
		var chk *schema.Checker
		for i, et := range k.Types {
			name := "f" + strconv.Itoa(i)
			t, mc, err := c.typ(et, with(path, name))
			if err != nil {
				return nil, nil, err
			}
			seq.Members = append(seq.Members, schema.Member{Name: name, Type: t})
			if mc != nil {
				chk = chk.With(name, mc)
			}
		}
		return seq, chk, nil

	case *wit.Variant:
		alts := make([]alt, len(k.Cases))
		for i, vc := range k.Cases {
			alts[i] = alt{name: vc.Name, typ: vc.Type}
		}
		return c.choice(alts, path)

	case *wit.Option:
		return c.choice([]alt{{name: "none"}, {name: "some", typ: k.Type}}, path)

	case *wit.Result:
		return c.choice([]alt{{name: "ok", typ: k.OK}, {name: "err", typ: k.Err}}, path)

	case *wit.Enum:
		e := &schema.Enumerated{Values: make([]schema.EnumValue, len(k.Cases))}
		for i, ec := range k.Cases {
			e.Values[i] = schema.EnumValue{Name: ec.Name, Value: int64(i)}
		}
		return e, nil, nil

	case *wit.List:
		if _, ok := k.Type.(wit.U8); ok {
			return &schema.OctetString{}, c.size(), nil
		}
		elem, ec, err := c.typ(k.Type, with(path, "element"))
		if err != nil {
			return nil, nil, err
		}
		chk := c.size()
		if ec != nil {
			chk = chk.WithElem(ec)
		}
		return &schema.SequenceOf{Element: elem}, chk, nil

	case *wit.Own, *wit.Borrow:
		return &schema.Integer{}, schema.Range(0, math.MaxUint32), nil

	case *wit.Flags:
		return &schema.Unmapped{Name: "flags"}, nil, nil

	case wit.Type:
		// Alias of another type.
		return c.typ(k, path)
	}
	return nil, nil, c.unsupported(path, fmt.Sprintf("WIT definition %T", k))
}

func (c *converter) record(r *wit.Record, path []string) (schema.Type, *schema.Checker, error) {
	seq := &schema.Sequence{}
	var chk *schema.Checker
	for _, f := range r.Fields {
		ft, optional := f.Type, false
		if td, ok := f.Type.(*wit.TypeDef); ok && td.Name == nil {
			if o, ok := td.Kind.(*wit.Option); ok {
				ft, optional = o.Type, true
			}
		}
		t, mc, err := c.typ(ft, with(path, f.Name))
		if err != nil {
			return nil, nil, err
		}
		seq.Members = append(seq.Members, schema.Member{Name: f.Name, Type: t, Optional: optional})
		if mc != nil {
			chk = chk.With(f.Name, mc)
		}
	}
	return seq, chk, nil
}

type alt struct {
	typ  wit.Type
	name string
}

// choice numbers alternatives with context tags in case order.
func (c *converter) choice(alts []alt, path []string) (schema.Type, *schema.Checker, error) {
	ch := &schema.Choice{}
	var chk *schema.Checker
	for i, a := range alts {
		t, ac, err := c.typ(a.typ, with(path, a.name))
		if err != nil {
			return nil, nil, err
		}
		ch.Alternatives = append(ch.Alternatives, schema.Alternative{
			Name: a.name,
			Type: t,
			Tag:  schema.EncodeTag(schema.ClassContext, uint64(i)),
		})
		if ac != nil {
			chk = chk.With(a.name, ac)
		}
	}
	return ch, chk, nil
}

func (c *converter) size() *schema.Checker {
	return &schema.Checker{Min: big.NewInt(0), Max: new(big.Int).SetUint64(c.opts.MaxListSize)}
}

func (c *converter) unsupported(path []string, what string) error {
	e := errors.Unsupported(errors.PhaseLoad, path, what)
	e.Module, e.Type = c.module, c.name
	return e
}

func with(path []string, step string) []string {
	return append(append([]string(nil), path...), step)
}
