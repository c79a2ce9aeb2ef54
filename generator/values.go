package generator

import (
	"encoding/hex"
	"sort"
	"strconv"
	"strings"

	"github.com/wippyai/asn1-oer/errors"
	"github.com/wippyai/asn1-oer/generator/internal/order"
	"github.com/wippyai/asn1-oer/schema"
)

// Normalize converts a loosely typed value, as produced by YAML or JSON
// decoding, into the value model of Encode and Decode:
//
//	SEQUENCE      map[string]any keyed by member name, absent OPTIONAL = no key
//	CHOICE        map[string]any with exactly one key
//	SEQUENCE OF   []any
//	OCTET STRING  []byte; a hex string or a list of octets is accepted
//	INTEGER       any Go integer
//	ENUMERATED    enumerator name or number
//	REAL          float32, float64 or an integer
//	BOOLEAN       bool
//	NULL          nil
//
// Unknown SEQUENCE members and CHOICE alternatives are rejected.
func (o *Output) Normalize(module, name string, v any) (any, error) {
	u, err := o.lookup(errors.PhaseEncode, module, name)
	if err != nil {
		return nil, err
	}
	n := &normalizer{out: o, module: module, name: name}
	return n.value(u.typ, v, nil)
}

type normalizer struct {
	out    *Output
	module string
	name   string
}

func (n *normalizer) mismatch(path []string, want string, v any) error {
	e := errors.TypeMismatch(errors.PhaseEncode, joinPath(path), want, v)
	e.Module, e.Type = n.module, n.name
	return e
}

func (n *normalizer) value(t schema.Type, v any, path []string) (any, error) {
	switch t := t.(type) {
	case *schema.OctetString:
		return n.octets(v, path)

	case *schema.Real:
		switch x := v.(type) {
		case int:
			return float64(x), nil
		case int64:
			return float64(x), nil
		}
		return v, nil

	case *schema.Sequence:
		if v == nil {
			return map[string]any{}, nil
		}
		fields, ok := v.(map[string]any)
		if !ok {
			return nil, n.mismatch(path, "mapping", v)
		}
		known := make(map[string]bool, len(t.Members))
		out := make(map[string]any, len(fields))
		for _, m := range t.Members {
			known[m.Name] = true
			x, ok := fields[m.Name]
			if !ok {
				continue
			}
			nv, err := n.value(m.Type, x, with(path, m.Name))
			if err != nil {
				return nil, err
			}
			out[m.Name] = nv
		}
		for _, k := range sortedNames(fields) {
			if !known[k] {
				e := errors.New(errors.PhaseEncode, errors.KindTypeMismatch).
					Type(n.module, n.name).
					Path(joinPath(path)...).
					Detail("unknown member %q", k).
					Build()
				return nil, e
			}
		}
		return out, nil

	case *schema.Choice:
		fields, ok := v.(map[string]any)
		if !ok || len(fields) != 1 {
			return nil, n.mismatch(path, "mapping with one alternative", v)
		}
		for k, x := range fields {
			for _, a := range t.Alternatives {
				if a.Name != k {
					continue
				}
				nv, err := n.value(a.Type, x, with(path, k))
				if err != nil {
					return nil, err
				}
				return map[string]any{k: nv}, nil
			}
			return nil, errors.New(errors.PhaseEncode, errors.KindBadChoice).
				Type(n.module, n.name).
				Path(joinPath(path)...).
				Detail("unknown alternative %q", k).
				Build()
		}

	case *schema.SequenceOf:
		if v == nil {
			return []any{}, nil
		}
		list, ok := v.([]any)
		if !ok {
			return nil, n.mismatch(path, "list", v)
		}
		out := make([]any, len(list))
		for i, x := range list {
			nv, err := n.value(t.Element, x, with(path, "["+strconv.Itoa(i)+"]"))
			if err != nil {
				return nil, err
			}
			out[i] = nv
		}
		return out, nil

	case *schema.Ref:
		u, ok := n.out.units[order.Key{Module: t.Module, Name: t.Name}]
		if !ok {
			return nil, errors.NotFound(errors.PhaseEncode, "type", t.Module+"."+t.Name)
		}
		return n.value(u.typ, v, path)
	}
	return v, nil
}

func (n *normalizer) octets(v any, path []string) (any, error) {
	switch x := v.(type) {
	case nil:
		return []byte{}, nil
	case []byte:
		return x, nil
	case string:
		s := strings.TrimPrefix(strings.Join(strings.Fields(x), ""), "0x")
		b, err := hex.DecodeString(s)
		if err != nil {
			return nil, n.mismatch(path, "hex string", v)
		}
		return b, nil
	case []any:
		b := make([]byte, len(x))
		for i, o := range x {
			switch c := o.(type) {
			case int:
				if c < 0 || c > 255 {
					return nil, n.mismatch(path, "list of octets", v)
				}
				b[i] = byte(c)
			default:
				return nil, n.mismatch(path, "list of octets", v)
			}
		}
		return b, nil
	}
	return nil, n.mismatch(path, "octets", v)
}

// Printable replaces octet strings in a decoded value with hex strings.
func Printable(v any) any {
	switch x := v.(type) {
	case []byte:
		return hex.EncodeToString(x)
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = Printable(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = Printable(e)
		}
		return out
	}
	return v
}

func with(path []string, step string) []string {
	return append(append([]string(nil), path...), step)
}

func joinPath(path []string) []string {
	if len(path) == 0 {
		return nil
	}
	return []string{strings.ReplaceAll(strings.Join(path, "."), ".[", "[")}
}

func sortedNames(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
