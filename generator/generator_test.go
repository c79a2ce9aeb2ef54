package generator

import (
	"bytes"
	"encoding/hex"
	stderrors "errors"
	"go/ast"
	"go/format"
	"go/importer"
	"go/parser"
	"go/token"
	"go/types"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/wippyai/asn1-oer/errors"
	"github.com/wippyai/asn1-oer/schema"
)

func mustGenerate(t *testing.T, set schema.Set) *Output {
	t.Helper()
	out, err := Generate(set, DefaultOptions())
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	return out
}

func members(checkers map[string]*schema.Checker) *schema.Checker {
	c := &schema.Checker{}
	for name, m := range checkers {
		c = c.With(name, m)
	}
	return c
}

func tag(b byte) []byte { return []byte{b} }

// testSet covers every kind once.
func testSet() schema.Set {
	set := make(schema.Set)
	set.Add("M", "Small", &schema.Integer{}, schema.Range(-5, 5))
	set.Add("M", "Port", &schema.Integer{}, schema.Range(0, 65535))
	set.Add("M", "Any", &schema.Integer{}, nil)
	set.Add("M", "Flag", &schema.Boolean{}, nil)
	set.Add("M", "Ratio", &schema.Real{Format: schema.Binary32}, nil)
	set.Add("M", "Precise", &schema.Real{Format: schema.Binary64}, nil)
	set.Add("M", "Nothing", &schema.Null{}, nil)
	set.Add("M", "Color", &schema.Enumerated{Values: []schema.EnumValue{
		{Name: "red", Value: 0}, {Name: "green", Value: 1}, {Name: "blue", Value: 7},
	}}, nil)
	set.Add("M", "Digest", &schema.OctetString{}, schema.Fixed(4))
	set.Add("M", "Short", &schema.OctetString{}, schema.Range(0, 10))
	set.Add("M", "Blob", &schema.OctetString{}, schema.Range(0, 1000))
	set.Add("M", "Open", &schema.OctetString{}, nil)
	set.Add("M", "Pair", &schema.Sequence{Members: []schema.Member{
		{Name: "a", Type: &schema.Integer{}, Optional: true},
		{Name: "b", Type: &schema.Integer{}, Optional: true},
	}}, members(map[string]*schema.Checker{"a": schema.Range(0, 255), "b": schema.Range(0, 255)}))
	set.Add("M", "Settings", &schema.Sequence{Members: []schema.Member{
		{Name: "level", Type: &schema.Integer{}, Default: int64(5)},
		{Name: "color", Type: &schema.Ref{Module: "M", Name: "Color"}, Default: "red"},
		{Name: "name", Type: &schema.OctetString{}},
	}}, members(map[string]*schema.Checker{"level": schema.Range(0, 255), "name": schema.Range(0, 16)}))
	set.Add("M", "Answer", &schema.Choice{Alternatives: []schema.Alternative{
		{Name: "count", Type: &schema.Integer{}, Tag: tag(0x01)},
		{Name: "ok", Type: &schema.Boolean{}, Tag: tag(0x02)},
	}}, members(map[string]*schema.Checker{"count": schema.Range(0, 255)}))
	set.Add("M", "Flags", &schema.SequenceOf{Element: &schema.Boolean{}}, schema.Fixed(3))
	set.Add("M", "Ports", &schema.SequenceOf{Element: &schema.Ref{Module: "M", Name: "Port"}}, schema.Range(0, 300))
	set.Add("M", "Outer", &schema.Sequence{Members: []schema.Member{
		{Name: "inner", Type: &schema.Ref{Module: "M", Name: "Pair"}},
		{Name: "answers", Type: &schema.SequenceOf{Element: &schema.Ref{Module: "M", Name: "Answer"}}},
		{Name: "marker", Type: &schema.Null{}},
	}}, members(map[string]*schema.Checker{"answers": schema.Range(0, 4)}))
	set.Add("M", "Alias", &schema.Ref{Module: "M", Name: "Port"}, nil)
	return set
}

func TestEncodeDecode(t *testing.T) {
	out := mustGenerate(t, testSet())
	long := bytes.Repeat([]byte{0xaa}, 130)

	tests := []struct {
		name    string
		typ     string
		value   any
		want    string
		decoded any
	}{
		{"signed byte", "Small", -3, "fd", int64(-3)},
		{"unsigned short", "Port", 513, "0201", uint64(513)},
		{"open integer", "Any", -1, "ffffffffffffffff", int64(-1)},
		{"boolean true", "Flag", true, "ff", true},
		{"boolean false", "Flag", false, "00", false},
		{"binary32", "Ratio", 1.5, "3fc00000", float32(1.5)},
		{"binary64", "Precise", -2.0, "c000000000000000", float64(-2)},
		{"null", "Nothing", nil, "", nil},
		{"enumerated", "Color", "blue", "07", "blue"},
		{"fixed octets", "Digest", []byte{1, 2, 3, 4}, "01020304", []byte{1, 2, 3, 4}},
		{"short octets", "Short", []byte("abc"), "03616263", []byte("abc")},
		{"long octets", "Blob", long, "8182" + strings.Repeat("aa", 130), long},
		{"open octets", "Open", []byte{}, "00", []byte{}},
		{
			name:    "second optional present",
			typ:     "Pair",
			value:   map[string]any{"b": 7},
			want:    "4007",
			decoded: map[string]any{"b": uint64(7)},
		},
		{
			name:    "both optionals present",
			typ:     "Pair",
			value:   map[string]any{"a": 1, "b": 2},
			want:    "c00102",
			decoded: map[string]any{"a": uint64(1), "b": uint64(2)},
		},
		{
			name:    "defaults omitted",
			typ:     "Settings",
			value:   map[string]any{"level": 5, "name": []byte("x")},
			want:    "000178",
			decoded: map[string]any{"level": uint64(5), "color": "red", "name": []byte("x")},
		},
		{
			name:    "defaults differ",
			typ:     "Settings",
			value:   map[string]any{"level": 6, "color": "green", "name": []byte{}},
			want:    "c0060100",
			decoded: map[string]any{"level": uint64(6), "color": "green", "name": []byte{}},
		},
		{
			name:    "choice boolean",
			typ:     "Answer",
			value:   map[string]any{"ok": true},
			want:    "02ff",
			decoded: map[string]any{"ok": true},
		},
		{
			name:    "choice integer",
			typ:     "Answer",
			value:   map[string]any{"count": 9},
			want:    "0109",
			decoded: map[string]any{"count": uint64(9)},
		},
		{
			name:    "fixed count",
			typ:     "Flags",
			value:   []any{true, false, true},
			want:    "0103ff00ff",
			decoded: []any{true, false, true},
		},
		{
			name:    "bounded count",
			typ:     "Ports",
			value:   []any{1, 2},
			want:    "02000200010002",
			decoded: []any{uint64(1), uint64(2)},
		},
		{
			name: "nested references",
			typ:  "Outer",
			value: map[string]any{
				"inner":   map[string]any{"a": 3},
				"answers": []any{map[string]any{"ok": false}, map[string]any{"count": 4}},
			},
			want: "80" + "03" + "0102" + "0200" + "0104",
			decoded: map[string]any{
				"inner":   map[string]any{"a": uint64(3)},
				"answers": []any{map[string]any{"ok": false}, map[string]any{"count": uint64(4)}},
			},
		},
		{"alias", "Alias", 80, "0050", uint64(80)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := out.Encode("M", tt.typ, tt.value)
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			if hex.EncodeToString(got) != tt.want {
				t.Errorf("Encode() = %x, want %s", got, tt.want)
			}

			v, n, err := out.Decode("M", tt.typ, got)
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if n != len(got) {
				t.Errorf("Decode() consumed %d bytes, want %d", n, len(got))
			}
			if diff := cmp.Diff(tt.decoded, v); diff != "" {
				t.Errorf("Decode() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func isKind(err error, phase errors.Phase, kind errors.Kind) bool {
	return stderrors.Is(err, &errors.Error{Phase: phase, Kind: kind})
}

func TestEncodeErrors(t *testing.T) {
	out := mustGenerate(t, testSet())

	tests := []struct {
		name  string
		typ   string
		value any
		kind  errors.Kind
	}{
		{"octets over bound", "Short", bytes.Repeat([]byte{1}, 11), errors.KindBadLength},
		{"count over bound", "Ports", make([]any, 301), errors.KindBadLength},
		{"missing member", "Settings", map[string]any{"level": 1}, errors.KindFieldMissing},
		{"value out of range", "Small", 200, errors.KindTypeMismatch},
		{"unknown enumerator", "Color", "purple", errors.KindTypeMismatch},
		{"unknown alternative", "Answer", map[string]any{"maybe": true}, errors.KindBadChoice},
		{"two alternatives", "Answer", map[string]any{"ok": true, "count": 1}, errors.KindTypeMismatch},
		{"wrong fixed count", "Flags", []any{true}, errors.KindTypeMismatch},
		{"wrong fixed size", "Digest", []byte{1}, errors.KindTypeMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := out.Encode("M", tt.typ, tt.value)
			if !isKind(err, errors.PhaseEncode, tt.kind) {
				t.Errorf("Encode() error = %v, want kind %s", err, tt.kind)
			}
		})
	}
}

func TestDecodeErrors(t *testing.T) {
	out := mustGenerate(t, testSet())

	tests := []struct {
		name string
		typ  string
		data string
		kind errors.Kind
	}{
		{"short fixed octets", "Digest", "010203", errors.KindOutOfData},
		{"length over bound", "Short", "0b" + strings.Repeat("00", 11), errors.KindBadLength},
		{"unknown tag", "Answer", "03ff", errors.KindBadChoice},
		{"fixed count indicator", "Flags", "0203ffffff", errors.KindBadLength},
		{"fixed count value", "Flags", "0104ff00ff00", errors.KindBadLength},
		{"count over bound", "Ports", "02012d", errors.KindBadLength},
		{"empty input", "Port", "", errors.KindOutOfData},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := hex.DecodeString(tt.data)
			if err != nil {
				t.Fatal(err)
			}
			_, _, err = out.Decode("M", tt.typ, data)
			if !isKind(err, errors.PhaseDecode, tt.kind) {
				t.Errorf("Decode() error = %v, want kind %s", err, tt.kind)
			}
		})
	}
}

func TestUnknownType(t *testing.T) {
	out := mustGenerate(t, testSet())
	if _, err := out.Encode("M", "Missing", nil); !isKind(err, errors.PhaseEncode, errors.KindNotFound) {
		t.Errorf("Encode() error = %v, want not_found", err)
	}
	if _, _, err := out.Decode("X", "Port", nil); !isKind(err, errors.PhaseDecode, errors.KindNotFound) {
		t.Errorf("Decode() error = %v, want not_found", err)
	}
}

func TestOrder(t *testing.T) {
	set := make(schema.Set)
	ref := func(name string) schema.Member {
		return schema.Member{Name: "x", Type: &schema.Ref{Module: "M", Name: name}}
	}
	set.Add("M", "A", &schema.Sequence{Members: []schema.Member{ref("C")}}, nil)
	set.Add("M", "B", &schema.Boolean{}, nil)
	set.Add("M", "C", &schema.Sequence{Members: []schema.Member{ref("B")}}, nil)

	out := mustGenerate(t, set)
	var got []string
	for _, u := range out.Units {
		got = append(got, u.Name)
	}
	if diff := cmp.Diff([]string{"B", "C", "A"}, got); diff != "" {
		t.Errorf("unit order mismatch (-want +got):\n%s", diff)
	}

	// Definitions follow the same order.
	b := strings.Index(out.Layouts, "type MB bool")
	c := strings.Index(out.Layouts, "type MC struct")
	a := strings.Index(out.Layouts, "type MA struct")
	if !(b >= 0 && b < c && c < a) {
		t.Errorf("layouts out of order:\n%s", out.Layouts)
	}
}

func TestCycle(t *testing.T) {
	set := make(schema.Set)
	set.Add("M", "A", &schema.SequenceOf{Element: &schema.Ref{Module: "M", Name: "B"}}, schema.Range(0, 2))
	set.Add("M", "B", &schema.Choice{Alternatives: []schema.Alternative{
		{Name: "a", Type: &schema.Ref{Module: "M", Name: "A"}, Tag: tag(0x80)},
	}}, nil)

	_, err := Generate(set, DefaultOptions())
	if !isKind(err, errors.PhaseOrder, errors.KindCycle) {
		t.Fatalf("Generate() error = %v, want cycle", err)
	}
}

func TestGenerationErrors(t *testing.T) {
	tests := []struct {
		name     string
		typ      schema.Type
		checker  *schema.Checker
		kind     errors.Kind
		path     []string
		contains string
	}{
		{
			name:     "unconstrained real",
			typ:      &schema.Real{Format: schema.Unconstrained},
			kind:     errors.KindUnsupported,
			contains: "binary32 or binary64",
		},
		{
			name: "multi-byte tag",
			typ: &schema.Choice{Alternatives: []schema.Alternative{
				{Name: "big", Type: &schema.Boolean{}, Tag: []byte{0xbf, 0x81, 0x00}},
			}},
			kind:     errors.KindUnsupported,
			path:     []string{"big"},
			contains: "3-byte tag",
		},
		{
			name:     "unmapped kind",
			typ:      &schema.Unmapped{Name: "UTF8String"},
			kind:     errors.KindUnsupported,
			contains: "UTF8String",
		},
		{
			name:     "enumerator out of range",
			typ:      &schema.Enumerated{Values: []schema.EnumValue{{Name: "big", Value: 300}}},
			kind:     errors.KindUnsupported,
			contains: "0..255",
		},
		{
			name:     "unbounded sequence of",
			typ:      &schema.SequenceOf{Element: &schema.Boolean{}},
			kind:     errors.KindUnsupported,
			contains: "upper size bound",
		},
		{
			name:     "dangling reference",
			typ:      &schema.Ref{Module: "M", Name: "Missing"},
			kind:     errors.KindNotFound,
			contains: "M.Missing",
		},
		{
			name: "default on octets",
			typ: &schema.Sequence{Members: []schema.Member{
				{Name: "data", Type: &schema.OctetString{}, Default: "00"},
			}},
			kind: errors.KindUnsupported,
			path: []string{"data"},
		},
		{
			name: "default out of range",
			typ: &schema.Sequence{Members: []schema.Member{
				{Name: "n", Type: &schema.Integer{}, Default: int64(300)},
			}},
			checker: members(map[string]*schema.Checker{"n": schema.Range(0, 255)}),
			kind:    errors.KindInvalidInput,
			path:    []string{"n"},
		},
		{
			name: "colliding field names",
			typ: &schema.Sequence{Members: []schema.Member{
				{Name: "a-b", Type: &schema.Boolean{}},
				{Name: "a_b", Type: &schema.Boolean{}},
			}},
			kind: errors.KindDuplicate,
			path: []string{"a_b"},
		},
		{
			name: "shared tag",
			typ: &schema.Choice{Alternatives: []schema.Alternative{
				{Name: "x", Type: &schema.Boolean{}, Tag: tag(0x80)},
				{Name: "y", Type: &schema.Boolean{}, Tag: tag(0x80)},
			}},
			kind: errors.KindInvalidInput,
			path: []string{"y"},
		},
		{
			name: "nested element failure",
			typ: &schema.SequenceOf{Element: &schema.Sequence{Members: []schema.Member{
				{Name: "r", Type: &schema.Real{}},
			}}},
			checker: schema.Range(0, 3),
			kind:    errors.KindUnsupported,
			path:    []string{"[i].r"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set := make(schema.Set)
			set.Add("M", "T", tt.typ, tt.checker)
			_, err := Generate(set, DefaultOptions())
			if !isKind(err, errors.PhaseGenerate, tt.kind) {
				t.Fatalf("Generate() error = %v, want kind %s", err, tt.kind)
			}
			var e *errors.Error
			if !stderrors.As(err, &e) {
				t.Fatalf("Generate() error %T is not *errors.Error", err)
			}
			if e.Module != "M" || e.Type != "T" {
				t.Errorf("error names %s.%s, want M.T", e.Module, e.Type)
			}
			if diff := cmp.Diff(tt.path, e.Path); diff != "" {
				t.Errorf("error path mismatch (-want +got):\n%s", diff)
			}
			if !strings.Contains(e.Error(), tt.contains) {
				t.Errorf("error %q does not mention %q", e.Error(), tt.contains)
			}
		})
	}
}

func TestErrorsCollected(t *testing.T) {
	set := make(schema.Set)
	set.Add("M", "A", &schema.Unmapped{Name: "BIT STRING"}, nil)
	set.Add("M", "B", &schema.Real{}, nil)
	set.Add("M", "C", &schema.Boolean{}, nil)

	_, err := Generate(set, DefaultOptions())
	if err == nil {
		t.Fatal("Generate() should fail")
	}
	for _, want := range []string{"M.A", "M.B"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestSkipUnsupported(t *testing.T) {
	set := make(schema.Set)
	set.Add("M", "Bad", &schema.Unmapped{Name: "UTF8String"}, nil)
	set.Add("M", "Good", &schema.Boolean{}, nil)
	set.Add("M", "User", &schema.Sequence{Members: []schema.Member{
		{Name: "bad", Type: &schema.Ref{Module: "M", Name: "Bad"}},
	}}, nil)
	set.Add("M", "Indirect", &schema.Ref{Module: "M", Name: "User"}, nil)

	opts := DefaultOptions()
	opts.SkipUnsupported = true
	out, err := Generate(set, opts)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if len(out.Units) != 1 || out.Units[0].Name != "Good" {
		t.Errorf("units = %v, want only Good", out.Units)
	}
	if len(out.Skipped) != 3 {
		t.Errorf("skipped %d types, want 3: %v", len(out.Skipped), out.Skipped)
	}
}

func TestDuplicateIdentifiers(t *testing.T) {
	set := make(schema.Set)
	set.Add("A", "BC", &schema.Boolean{}, nil)
	set.Add("AB", "C", &schema.Boolean{}, nil)

	_, err := Generate(set, DefaultOptions())
	if !isKind(err, errors.PhaseGenerate, errors.KindDuplicate) {
		t.Fatalf("Generate() error = %v, want duplicate", err)
	}
	if !strings.Contains(err.Error(), "ABC") {
		t.Errorf("error %q does not name the identifier", err)
	}
}

func TestInvalidPackage(t *testing.T) {
	_, err := Generate(testSet(), Options{Package: "not-a-package"})
	if !isKind(err, errors.PhaseGenerate, errors.KindInvalidInput) {
		t.Errorf("Generate() error = %v, want invalid_input", err)
	}
}

func TestHelperSelection(t *testing.T) {
	set := make(schema.Set)
	set.Add("M", "Flag", &schema.Boolean{}, nil)
	out := mustGenerate(t, set)

	for _, want := range []string{"func (e *encoder) appendBool(", "func (d *decoder) readBool(", "func (e *encoder) appendInteger8("} {
		if !strings.Contains(out.Helpers, want) {
			t.Errorf("Helpers missing %q", want)
		}
	}
	for _, unwanted := range []string{"appendDouble", "readLengthDeterminant", "readSlice", "appendInteger("} {
		if strings.Contains(out.Helpers, unwanted) {
			t.Errorf("Helpers contain unused %q", unwanted)
		}
	}
	// Each helper appears once however many units use it.
	set.Add("M", "Other", &schema.Boolean{}, nil)
	out = mustGenerate(t, set)
	if n := strings.Count(out.Helpers, "func (e *encoder) appendBool("); n != 1 {
		t.Errorf("appendBool emitted %d times", n)
	}
}

func TestEmptySet(t *testing.T) {
	out := mustGenerate(t, schema.Set{})
	src, err := out.File()
	if err != nil {
		t.Fatalf("File() error = %v", err)
	}
	if !strings.HasPrefix(string(src), Header) || !strings.Contains(string(src), "package oer") {
		t.Errorf("File() = %q", src)
	}
	if out.Helpers != "" {
		t.Errorf("Helpers = %q, want none", out.Helpers)
	}
}

// typeCheck parses and type-checks a generated file on its own.
func typeCheck(t *testing.T, src []byte) *types.Package {
	t.Helper()
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "oer.go", src, parser.ParseComments)
	if err != nil {
		t.Fatalf("generated file does not parse: %v\n%s", err, src)
	}
	conf := types.Config{Importer: importer.ForCompiler(fset, "source", nil)}
	pkg, err := conf.Check("oer", fset, []*ast.File{file}, nil)
	if err != nil {
		t.Fatalf("generated file does not type-check: %v\n%s", err, src)
	}
	return pkg
}

func TestFileCompiles(t *testing.T) {
	out := mustGenerate(t, testSet())
	src, err := out.File()
	if err != nil {
		t.Fatalf("File() error = %v", err)
	}

	formatted, err := format.Source(src)
	if err != nil {
		t.Fatalf("format.Source() error = %v", err)
	}
	if !bytes.Equal(formatted, src) {
		t.Error("File() output is not gofmt-clean")
	}

	pkg := typeCheck(t, src)
	for _, name := range []string{"MPair", "MAnswer", "MAnswerChoice", "MAnswerChoiceOk", "MColorBlue", "MAlias"} {
		if pkg.Scope().Lookup(name) == nil {
			t.Errorf("generated package does not declare %s", name)
		}
	}

	for _, want := range []string{
		"presentMask := uint8(0)",
		"if presentMask&0x40 != 0 {",
		"dst.BPresent = presentMask&0x40 != 0",
		"if !d.fits(length) {",
		"type MDigest [4]byte",
		"type MFlags [3]bool",
		"type MPorts []MPort",
		"Level uint8",
		"dst.Color = MColorRed",
		"decodeMPortInner(d, (*MPort)(dst))",
		"var _ codec = (*MOuter)(nil)",
		"func (v *MOuter) EncodeOER(buf []byte) (int, error) {",
	} {
		if !strings.Contains(string(src), want) {
			t.Errorf("generated file does not contain %q", want)
		}
	}
	if strings.Contains(string(src), "Marker") {
		t.Error("NULL member should not have a field")
	}
}

func TestDeterministic(t *testing.T) {
	first, err := mustGenerate(t, testSet()).File()
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		again, err := mustGenerate(t, testSet()).File()
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(first, again) {
			t.Fatal("generation is not deterministic")
		}
	}
}

func TestSequenceOfLength(t *testing.T) {
	set := make(schema.Set)
	set.Add("M", "Big", &schema.SequenceOf{Element: &schema.Boolean{}}, schema.Range(0, 4294967295))
	set.Add("M", "Nulls", &schema.SequenceOf{Element: &schema.Null{}}, schema.Range(0, 4294967295))
	set.Add("M", "Empty", &schema.Sequence{}, nil)
	set.Add("M", "Empties", &schema.SequenceOf{Element: &schema.Ref{Module: "M", Name: "Empty"}}, schema.Range(0, 1000))
	set.Add("M", "Huge", &schema.OctetString{}, schema.Range(0, 4294967295))
	out := mustGenerate(t, set)

	src, err := out.File()
	if err != nil {
		t.Fatalf("File() error = %v", err)
	}
	typeCheck(t, src)
	if strings.Contains(string(src), "length > 4294967295") {
		t.Error("generated file compares a uint32 length against 2^32-1")
	}
	if !strings.Contains(string(src), "if uint64(len(*src)) > 4294967295 {") {
		t.Error("encoder does not compare large lengths as uint64")
	}
	huge, ok := out.Unit("M", "Huge")
	if !ok {
		t.Fatal("no unit for M.Huge")
	}
	if !strings.Contains(huge.Inner, "uint64(len(*src)) > 4294967295") || strings.Contains(huge.Inner, "length > 4294967295") {
		t.Errorf("OCTET STRING bound checks at 2^32-1:\n%s", huge.Inner)
	}

	for _, tt := range []struct {
		typ       string
		wantFits  bool
		wantLoop  bool
		wantBound bool
	}{
		{"Big", true, true, false},
		{"Nulls", false, false, false},
		{"Empties", false, false, true},
	} {
		u, ok := out.Unit("M", tt.typ)
		if !ok {
			t.Fatalf("no unit for %s", tt.typ)
		}
		if got := strings.Contains(u.Inner, "d.fits(length)"); got != tt.wantFits {
			t.Errorf("%s: remaining input check = %v, want %v", tt.typ, got, tt.wantFits)
		}
		if got := strings.Contains(u.Inner, "for i := range *dst"); got != tt.wantLoop {
			t.Errorf("%s: element loop in decoder = %v, want %v", tt.typ, got, tt.wantLoop)
		}
		if got := strings.Contains(u.Inner, "length > 1000"); got != tt.wantBound {
			t.Errorf("%s: upper bound check = %v, want %v", tt.typ, got, tt.wantBound)
		}
	}

	tests := []struct {
		name    string
		typ     string
		input   string
		want    errors.Kind
		wantLen int
	}{
		{"length beyond input", "Big", "0410000000", errors.KindOutOfData, 0},
		{"length within input", "Big", "0400000002ff00", "", 2},
		{"zero width", "Nulls", "0400000003", "", 3},
		{"zero width beyond decode limit", "Nulls", "04ffffffff", errors.KindOutOfMemory, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, _, err := out.Decode("M", tt.typ, unhex(t, tt.input))
			if tt.want != "" {
				if !isKind(err, errors.PhaseDecode, tt.want) {
					t.Fatalf("Decode() error = %v, want %s", err, tt.want)
				}
				return
			}
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			list, _ := v.([]any)
			if len(list) != tt.wantLen {
				t.Errorf("Decode() = %d elements, want %d", len(list), tt.wantLen)
			}
		})
	}
}

func TestOptionalPresenceAssigned(t *testing.T) {
	out := mustGenerate(t, testSet())
	u, ok := out.Unit("M", "Pair")
	if !ok {
		t.Fatal("no unit for M.Pair")
	}
	// Presence flags are assigned outright so a reused value is cleared.
	for _, want := range []string{
		"dst.APresent = presentMask & 0x80 != 0",
		"dst.BPresent = presentMask & 0x40 != 0",
	} {
		if !strings.Contains(u.Inner, want) {
			t.Errorf("decoder does not contain %q:\n%s", want, u.Inner)
		}
	}
	if strings.Contains(u.Inner, "Present = true") {
		t.Errorf("decoder only ever sets presence:\n%s", u.Inner)
	}
}
