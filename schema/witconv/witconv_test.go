package witconv

import (
	"encoding/hex"
	stderrors "errors"
	"math/big"
	"strings"
	"testing"

	"github.com/go-quicktest/qt"
	"go.bytecodealliance.org/wit"

	"github.com/wippyai/asn1-oer/errors"
	"github.com/wippyai/asn1-oer/generator"
	"github.com/wippyai/asn1-oer/schema"
)

func named(name string, kind wit.TypeDefKind) *wit.TypeDef {
	return &wit.TypeDef{Name: &name, Kind: kind}
}

func shapes() (point, shape *wit.TypeDef) {
	point = named("point", &wit.Record{
		Fields: []wit.Field{
			{Name: "x", Type: wit.S16{}},
			{Name: "y", Type: wit.S16{}},
			{Name: "label", Type: &wit.TypeDef{Kind: &wit.Option{Type: wit.String{}}}},
		},
	})
	shape = named("shape", &wit.Variant{
		Cases: []wit.Case{
			{Name: "circle", Type: wit.U32{}},
			{Name: "none"},
			{Name: "poly", Type: &wit.TypeDef{Kind: &wit.List{Type: point}}},
		},
	})
	return point, shape
}

func TestConvertRecord(t *testing.T) {
	point, _ := shapes()
	set, err := Convert("Geo", []*wit.TypeDef{point}, DefaultOptions())
	qt.Assert(t, qt.IsNil(err))

	c, ok := set.Lookup("Geo", "point")
	qt.Assert(t, qt.IsTrue(ok))
	seq, ok := c.Type.(*schema.Sequence)
	qt.Assert(t, qt.IsTrue(ok))
	qt.Assert(t, qt.HasLen(seq.Members, 3))

	qt.Check(t, qt.Equals(seq.Members[0].Name, "x"))
	qt.Check(t, qt.IsFalse(seq.Members[0].Optional))
	qt.Check(t, qt.Equals(seq.Members[2].Name, "label"))
	qt.Check(t, qt.IsTrue(seq.Members[2].Optional))
	_, isOctets := seq.Members[2].Type.(*schema.OctetString)
	qt.Check(t, qt.IsTrue(isOctets))

	min, max := c.Checker.Member("x").Bounds()
	qt.Check(t, qt.Equals(min.Int64(), -32768))
	qt.Check(t, qt.Equals(max.Int64(), 32767))
	_, max = c.Checker.Member("label").Bounds()
	qt.Check(t, qt.Equals(max.Uint64(), DefaultOptions().MaxListSize))
}

func TestConvertPullsReferencedTypes(t *testing.T) {
	_, shape := shapes()
	set, err := Convert("Geo", []*wit.TypeDef{shape}, DefaultOptions())
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.DeepEquals(set["Geo"].TypeNames(), []string{"point", "shape"}))

	c, _ := set.Lookup("Geo", "shape")
	ch, ok := c.Type.(*schema.Choice)
	qt.Assert(t, qt.IsTrue(ok))
	qt.Assert(t, qt.HasLen(ch.Alternatives, 3))

	tags := make([]string, len(ch.Alternatives))
	for i, a := range ch.Alternatives {
		tags[i] = hex.EncodeToString(a.Tag)
	}
	qt.Check(t, qt.DeepEquals(tags, []string{"80", "81", "82"}))

	_, isNull := ch.Alternatives[1].Type.(*schema.Null)
	qt.Check(t, qt.IsTrue(isNull))
	of, ok := ch.Alternatives[2].Type.(*schema.SequenceOf)
	qt.Assert(t, qt.IsTrue(ok))
	qt.Check(t, qt.DeepEquals(of.Element, schema.Type(&schema.Ref{Module: "Geo", Name: "point"})))
}

func TestConvertKinds(t *testing.T) {
	handle := named("handle", &wit.Resource{})
	tests := []struct {
		name  string
		kind  wit.TypeDefKind
		check func(t *testing.T, c *schema.Compiled)
	}{
		{
			name: "u64 range",
			kind: wit.U64{},
			check: func(t *testing.T, c *schema.Compiled) {
				min, max := c.Checker.Bounds()
				qt.Check(t, qt.Equals(min.Sign(), 0))
				qt.Check(t, qt.Equals(max.Cmp(new(big.Int).SetUint64(1<<64-1)), 0))
			},
		},
		{
			name: "char",
			kind: wit.Char{},
			check: func(t *testing.T, c *schema.Compiled) {
				_, max := c.Checker.Bounds()
				qt.Check(t, qt.Equals(max.Int64(), 0x10ffff))
			},
		},
		{
			name: "f32",
			kind: wit.F32{},
			check: func(t *testing.T, c *schema.Compiled) {
				qt.Check(t, qt.DeepEquals(c.Type, schema.Type(&schema.Real{Format: schema.Binary32})))
			},
		},
		{
			name: "list of u8 is octets",
			kind: &wit.List{Type: wit.U8{}},
			check: func(t *testing.T, c *schema.Compiled) {
				_, ok := c.Type.(*schema.OctetString)
				qt.Check(t, qt.IsTrue(ok))
			},
		},
		{
			name: "enum numbered in order",
			kind: &wit.Enum{Cases: []wit.EnumCase{{Name: "low"}, {Name: "high"}}},
			check: func(t *testing.T, c *schema.Compiled) {
				e, ok := c.Type.(*schema.Enumerated)
				qt.Assert(t, qt.IsTrue(ok))
				qt.Check(t, qt.DeepEquals(e.Values, []schema.EnumValue{{Name: "low", Value: 0}, {Name: "high", Value: 1}}))
			},
		},
		{
			name: "tuple",
			kind: &wit.Tuple{Types: []wit.Type{wit.Bool{}, wit.U8{}}},
			check: func(t *testing.T, c *schema.Compiled) {
				seq, ok := c.Type.(*schema.Sequence)
				qt.Assert(t, qt.IsTrue(ok))
				qt.Check(t, qt.Equals(seq.Members[0].Name, "f0"))
				qt.Check(t, qt.Equals(seq.Members[1].Name, "f1"))
				_, max := c.Checker.Member("f1").Bounds()
				qt.Check(t, qt.Equals(max.Int64(), 255))
			},
		},
		{
			name: "result",
			kind: &wit.Result{OK: wit.U8{}},
			check: func(t *testing.T, c *schema.Compiled) {
				ch, ok := c.Type.(*schema.Choice)
				qt.Assert(t, qt.IsTrue(ok))
				qt.Check(t, qt.Equals(ch.Alternatives[0].Name, "ok"))
				_, isNull := ch.Alternatives[1].Type.(*schema.Null)
				qt.Check(t, qt.IsTrue(isNull))
			},
		},
		{
			name: "own handle",
			kind: &wit.Own{Type: handle},
			check: func(t *testing.T, c *schema.Compiled) {
				_, max := c.Checker.Bounds()
				qt.Check(t, qt.Equals(max.Int64(), 1<<32-1))
			},
		},
		{
			name: "flags unmapped",
			kind: &wit.Flags{Flags: []wit.Flag{{Name: "read"}}},
			check: func(t *testing.T, c *schema.Compiled) {
				qt.Check(t, qt.Equals(c.Type.Kind(), schema.KindUnmapped))
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set, err := Convert("M", []*wit.TypeDef{named("t", tt.kind)}, DefaultOptions())
			qt.Assert(t, qt.IsNil(err))
			c, ok := set.Lookup("M", "t")
			qt.Assert(t, qt.IsTrue(ok))
			tt.check(t, c)
		})
	}
}

func TestConvertErrors(t *testing.T) {
	a := named("same", wit.U8{})
	b := named("same", wit.Bool{})

	_, err := Convert("M", []*wit.TypeDef{a, b}, DefaultOptions())
	qt.Check(t, qt.IsTrue(stderrors.Is(err, &errors.Error{Phase: errors.PhaseLoad, Kind: errors.KindDuplicate})))

	_, err = Convert("M", []*wit.TypeDef{a, a}, DefaultOptions())
	qt.Check(t, qt.IsNil(err))

	_, err = Convert("", []*wit.TypeDef{a}, DefaultOptions())
	qt.Check(t, qt.IsTrue(stderrors.Is(err, &errors.Error{Phase: errors.PhaseLoad, Kind: errors.KindInvalidInput})))

	_, err = Convert("M", []*wit.TypeDef{{Kind: wit.U8{}}}, DefaultOptions())
	qt.Check(t, qt.IsTrue(stderrors.Is(err, &errors.Error{Phase: errors.PhaseLoad, Kind: errors.KindInvalidInput})))

	_, err = LoadJSON(strings.NewReader("{"), "M", DefaultOptions())
	qt.Check(t, qt.IsTrue(stderrors.Is(err, &errors.Error{Phase: errors.PhaseParse, Kind: errors.KindInvalidInput})))
}

func TestConvertedSetEncodes(t *testing.T) {
	_, shape := shapes()
	set, err := Convert("Geo", []*wit.TypeDef{shape}, DefaultOptions())
	qt.Assert(t, qt.IsNil(err))

	out, err := generator.Generate(set, generator.DefaultOptions())
	qt.Assert(t, qt.IsNil(err))

	tests := []struct {
		name  string
		typ   string
		value any
		want  string
	}{
		{"point with label", "point", map[string]any{"x": 1, "y": -2, "label": "6869"}, "80" + "0001" + "fffe" + "02" + "6869"},
		{"point without label", "point", map[string]any{"x": 0, "y": 0}, "00" + "0000" + "0000"},
		{"circle", "shape", map[string]any{"circle": 7}, "80" + "00000007"},
		{"none", "shape", map[string]any{"none": nil}, "81"},
		{"poly", "shape", map[string]any{"poly": []any{map[string]any{"x": 0, "y": 0}}}, "82" + "02" + "0001" + "00" + "0000" + "0000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := out.Normalize("Geo", tt.typ, tt.value)
			qt.Assert(t, qt.IsNil(err))
			got, err := out.Encode("Geo", tt.typ, v)
			qt.Assert(t, qt.IsNil(err))
			qt.Check(t, qt.Equals(hex.EncodeToString(got), tt.want))
		})
	}

	src, err := out.File()
	qt.Assert(t, qt.IsNil(err))
	qt.Check(t, qt.StringContains(string(src), "type GeoShape struct"))
}
