package schema

import (
	"bytes"
	"fmt"
	"io"
	"maps"
	"math/big"
	"os"
	"regexp"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/wippyai/asn1-oer/errors"
)

// Schema documents are YAML (or JSON) mappings from module name to type
// name to type description:
//
//	Foo:
//	  Question:
//	    type: SEQUENCE
//	    members:
//	      - name: id
//	        type: INTEGER
//	        range: [0, 255]
//	      - name: text
//	        type: OCTET STRING
//	        size: [0, 64]
//	        optional: true

// Type is kept as a node so that NULL is not resolved to a YAML null.
type typeNode struct {
	Type         yaml.Node    `yaml:"type"`
	Format       string       `yaml:"format"`
	Range        *bounds      `yaml:"range"`
	Size         *bounds      `yaml:"size"`
	Element      *typeNode    `yaml:"element"`
	Values       []enumNode   `yaml:"values"`
	Members      []memberNode `yaml:"members"`
	Alternatives []altNode    `yaml:"alternatives"`
}

type memberNode struct {
	Spec     typeNode  `yaml:",inline"`
	Default  yaml.Node `yaml:"default"`
	Name     string    `yaml:"name"`
	Optional bool      `yaml:"optional"`
}

type altNode struct {
	Spec typeNode  `yaml:",inline"`
	Tag  yaml.Node `yaml:"tag"`
	Name string    `yaml:"name"`
}

type enumNode struct {
	Value *int64
	Name  string
}

func (e *enumNode) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind == yaml.ScalarNode {
		e.Name = n.Value
		return nil
	}
	var v struct {
		Value *int64 `yaml:"value"`
		Name  string `yaml:"name"`
	}
	if err := n.Decode(&v); err != nil {
		return err
	}
	e.Name, e.Value = v.Name, v.Value
	return nil
}

// bounds accepts a single number (fixed), a [min, max] pair where either
// side may be MIN or MAX, or a {min, max} mapping.
type bounds struct {
	Min *big.Int
	Max *big.Int
}

func (b *bounds) UnmarshalYAML(n *yaml.Node) error {
	switch n.Kind {
	case yaml.ScalarNode:
		v, err := parseBound(n.Value)
		if err != nil {
			return err
		}
		b.Min, b.Max = v, v
	case yaml.SequenceNode:
		if len(n.Content) != 2 {
			return fmt.Errorf("line %d: bounds need exactly two values", n.Line)
		}
		var err error
		if b.Min, err = parseBound(n.Content[0].Value); err != nil {
			return err
		}
		if b.Max, err = parseBound(n.Content[1].Value); err != nil {
			return err
		}
	case yaml.MappingNode:
		for i := 0; i+1 < len(n.Content); i += 2 {
			v, err := parseBound(n.Content[i+1].Value)
			if err != nil {
				return err
			}
			switch n.Content[i].Value {
			case "min":
				b.Min = v
			case "max":
				b.Max = v
			default:
				return fmt.Errorf("line %d: unknown bound %q", n.Content[i].Line, n.Content[i].Value)
			}
		}
	default:
		return fmt.Errorf("line %d: invalid bounds", n.Line)
	}
	return nil
}

func parseBound(s string) (*big.Int, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "MIN", "MAX":
		return nil, nil
	}
	v, ok := new(big.Int).SetString(strings.ReplaceAll(s, "_", ""), 0)
	if !ok {
		return nil, fmt.Errorf("invalid bound %q", s)
	}
	return v, nil
}

// Builtin ASN.1 types the compiler front-end may hand over that have no
// OER mapping here.
var unmappedBuiltins = map[string]bool{
	"BIT STRING":        true,
	"OBJECT IDENTIFIER": true,
	"UTF8String":        true,
	"IA5String":         true,
	"VisibleString":     true,
	"PrintableString":   true,
	"NumericString":     true,
	"BMPString":         true,
	"UniversalString":   true,
	"UTCTime":           true,
	"GeneralizedTime":   true,
	"SET":               true,
	"SET OF":            true,
	"ANY":               true,
}

var refPattern = regexp.MustCompile(`^(?:([A-Z][A-Za-z0-9-]*)\.)?([A-Z][A-Za-z0-9-]*)$`)

// Parse reads a schema document.
func Parse(data []byte) (Set, error) {
	var doc map[string]map[string]*typeNode
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.ParseFailed("schema", err)
	}

	// Modules and types are converted in name order.
	set := make(Set)
	for _, module := range slices.Sorted(maps.Keys(doc)) {
		types := doc[module]
		if len(types) == 0 {
			return nil, errors.New(errors.PhaseLoad, errors.KindInvalidInput).
				Type(module, "").
				Detail("module has no types").
				Build()
		}
		for _, name := range slices.Sorted(maps.Keys(types)) {
			n := types[name]
			if n == nil {
				return nil, errors.New(errors.PhaseLoad, errors.KindInvalidInput).
					Type(module, name).
					Detail("empty type description").
					Build()
			}
			l := loader{module: module, name: name}
			t, c, err := l.convert(n, nil)
			if err != nil {
				return nil, err
			}
			set.Add(module, name, t, c)
		}
	}
	return set, nil
}

// Load reads a schema document from r.
func Load(r io.Reader) (Set, error) {
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r); err != nil {
		return nil, errors.Wrap(errors.PhaseLoad, errors.KindInvalidInput, err, "read schema")
	}
	return Parse(buf.Bytes())
}

// LoadFile reads a schema document from path.
func LoadFile(path string) (Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseLoad, errors.KindNotFound, err, "read "+path)
	}
	return Parse(data)
}

type loader struct {
	module string
	name   string
}

func (l *loader) fail(path []string, format string, args ...any) error {
	return errors.New(errors.PhaseLoad, errors.KindInvalidInput).
		Type(l.module, l.name).
		Path(path...).
		Detail(format, args...).
		Build()
}

func (l *loader) convert(n *typeNode, path []string) (Type, *Checker, error) {
	kind := strings.Join(strings.Fields(n.Type.Value), " ")
	switch kind {
	case "INTEGER":
		return &Integer{}, boundsChecker(n.Range), nil

	case "BOOLEAN":
		return &Boolean{}, nil, nil

	case "NULL":
		return &Null{}, nil, nil

	case "REAL":
		switch strings.ToLower(n.Format) {
		case "binary32", "float":
			return &Real{Format: Binary32}, nil, nil
		case "binary64", "double":
			return &Real{Format: Binary64}, nil, nil
		case "", "decimal":
			return &Real{Format: Unconstrained}, nil, nil
		default:
			return nil, nil, l.fail(path, "unknown REAL format %q", n.Format)
		}

	case "ENUMERATED":
		e, err := l.enumerated(n.Values, path)
		if err != nil {
			return nil, nil, err
		}
		return e, nil, nil

	case "OCTET STRING":
		return &OctetString{}, boundsChecker(n.Size), nil

	case "SEQUENCE":
		return l.sequence(n, path)

	case "CHOICE":
		return l.choice(n, path)

	case "SEQUENCE OF":
		if n.Element == nil {
			return nil, nil, l.fail(path, "SEQUENCE OF without element")
		}
		elem, ec, err := l.convert(n.Element, append(append([]string{}, path...), "element"))
		if err != nil {
			return nil, nil, err
		}
		c := boundsChecker(n.Size)
		if ec != nil {
			c = c.WithElem(ec)
		}
		return &SequenceOf{Element: elem}, c, nil

	case "":
		return nil, nil, l.fail(path, "missing type")
	}

	if unmappedBuiltins[kind] {
		return &Unmapped{Name: kind}, nil, nil
	}
	m := refPattern.FindStringSubmatch(kind)
	if m == nil {
		return nil, nil, l.fail(path, "unknown type %q", n.Type.Value)
	}
	module := m[1]
	if module == "" {
		module = l.module
	}
	return &Ref{Module: module, Name: m[2]}, nil, nil
}

func (l *loader) enumerated(values []enumNode, path []string) (*Enumerated, error) {
	if len(values) == 0 {
		return nil, l.fail(path, "ENUMERATED without values")
	}

	used := make(map[int64]bool)
	names := make(map[string]bool)
	for _, v := range values {
		if names[v.Name] {
			return nil, l.fail(path, "duplicate enumerator %q", v.Name)
		}
		names[v.Name] = true
		if v.Value != nil {
			if used[*v.Value] {
				return nil, l.fail(path, "duplicate enumerator value %d", *v.Value)
			}
			used[*v.Value] = true
		}
	}

	// Unnumbered enumerators take the smallest unused numbers, in order.
	e := &Enumerated{Values: make([]EnumValue, 0, len(values))}
	next := int64(0)
	for _, v := range values {
		if v.Name == "" {
			return nil, l.fail(path, "enumerator without name")
		}
		if v.Value != nil {
			e.Values = append(e.Values, EnumValue{Name: v.Name, Value: *v.Value})
			continue
		}
		for used[next] {
			next++
		}
		used[next] = true
		e.Values = append(e.Values, EnumValue{Name: v.Name, Value: next})
	}
	return e, nil
}

func (l *loader) sequence(n *typeNode, path []string) (Type, *Checker, error) {
	seq := &Sequence{Members: make([]Member, 0, len(n.Members))}
	var c *Checker
	seen := make(map[string]bool)

	for i := range n.Members {
		m := &n.Members[i]
		if m.Name == "" {
			return nil, nil, l.fail(path, "member %d has no name", i)
		}
		if seen[m.Name] {
			return nil, nil, l.fail(path, "duplicate member %q", m.Name)
		}
		seen[m.Name] = true

		mpath := append(append([]string{}, path...), m.Name)
		t, mc, err := l.convert(&m.Spec, mpath)
		if err != nil {
			return nil, nil, err
		}

		member := Member{Name: m.Name, Type: t, Optional: m.Optional}
		if m.Default.Kind != 0 {
			if m.Optional {
				return nil, nil, l.fail(mpath, "member is both OPTIONAL and DEFAULT")
			}
			if member.Default, err = l.defaultValue(t, &m.Default, mpath); err != nil {
				return nil, nil, err
			}
		}
		seq.Members = append(seq.Members, member)
		if mc != nil {
			c = c.With(m.Name, mc)
		}
	}
	return seq, c, nil
}

func (l *loader) defaultValue(t Type, n *yaml.Node, path []string) (any, error) {
	var v any
	if err := n.Decode(&v); err != nil {
		return nil, l.fail(path, "invalid default: %v", err)
	}
	switch x := v.(type) {
	case int:
		v = int64(x)
	case int64, uint64, float64, bool, string:
	default:
		return nil, l.fail(path, "default must be a scalar, got %T", v)
	}
	if e, ok := t.(*Enumerated); ok {
		name, _ := v.(string)
		if _, found := e.Lookup(name); !found {
			return nil, l.fail(path, "default %v is not an enumerator", v)
		}
	}
	return v, nil
}

func (l *loader) choice(n *typeNode, path []string) (Type, *Checker, error) {
	if len(n.Alternatives) == 0 {
		return nil, nil, l.fail(path, "CHOICE without alternatives")
	}

	ch := &Choice{Alternatives: make([]Alternative, 0, len(n.Alternatives))}
	var c *Checker
	names := make(map[string]bool)
	tags := make(map[string]string)

	for i := range n.Alternatives {
		a := &n.Alternatives[i]
		if a.Name == "" {
			return nil, nil, l.fail(path, "alternative %d has no name", i)
		}
		if names[a.Name] {
			return nil, nil, l.fail(path, "duplicate alternative %q", a.Name)
		}
		names[a.Name] = true

		apath := append(append([]string{}, path...), a.Name)
		tag, err := l.tag(&a.Tag, i, apath)
		if err != nil {
			return nil, nil, err
		}
		if other, dup := tags[string(tag)]; dup {
			return nil, nil, l.fail(apath, "tag % x already used by %q", tag, other)
		}
		tags[string(tag)] = a.Name

		t, ac, err := l.convert(&a.Spec, apath)
		if err != nil {
			return nil, nil, err
		}
		ch.Alternatives = append(ch.Alternatives, Alternative{Name: a.Name, Type: t, Tag: tag})
		if ac != nil {
			c = c.With(a.Name, ac)
		}
	}
	return ch, c, nil
}

// tag resolves an alternative tag. Without one the alternative is tagged
// automatically with its position as a context-specific number.
func (l *loader) tag(n *yaml.Node, index int, path []string) ([]byte, error) {
	if n.Kind == 0 {
		return EncodeTag(ClassContext, uint64(index)), nil
	}
	if n.Kind != yaml.ScalarNode {
		return nil, l.fail(path, "tag must be a number or tag notation")
	}
	if strings.HasPrefix(strings.TrimSpace(n.Value), "[") {
		tag, err := ParseTag(n.Value)
		if err != nil {
			return nil, l.fail(path, "%v", err)
		}
		return tag, nil
	}
	var number uint64
	if err := n.Decode(&number); err != nil {
		return nil, l.fail(path, "invalid tag %q", n.Value)
	}
	return EncodeTag(ClassContext, number), nil
}

func boundsChecker(b *bounds) *Checker {
	if b == nil || (b.Min == nil && b.Max == nil) {
		return nil
	}
	return &Checker{Min: b.Min, Max: b.Max}
}
