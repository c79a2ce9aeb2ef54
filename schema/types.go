package schema

// Type is a node of a compiled ASN.1 type tree. The set of implementations
// is closed; switch on the concrete type.
type Type interface {
	Kind() Kind
	isType()
}

type Integer struct{}

type Boolean struct{}

// RealFormat is the binary representation a REAL is constrained to.
type RealFormat uint8

const (
	Unconstrained RealFormat = iota
	Binary32
	Binary64
)

func (f RealFormat) String() string {
	switch f {
	case Binary32:
		return "binary32"
	case Binary64:
		return "binary64"
	default:
		return "unconstrained"
	}
}

type Real struct {
	Format RealFormat
}

type Null struct{}

type EnumValue struct {
	Name  string
	Value int64
}

type Enumerated struct {
	Values []EnumValue
}

// Lookup returns the number assigned to name.
func (e *Enumerated) Lookup(name string) (int64, bool) {
	for _, v := range e.Values {
		if v.Name == name {
			return v.Value, true
		}
	}
	return 0, false
}

// Name returns the enumerator with number v.
func (e *Enumerated) Name(v int64) (string, bool) {
	for _, ev := range e.Values {
		if ev.Value == v {
			return ev.Name, true
		}
	}
	return "", false
}

type OctetString struct{}

// Member is a SEQUENCE component. Default holds an int64, uint64, bool,
// float64 or enumerator name; nil means no default.
type Member struct {
	Type     Type
	Default  any
	Name     string
	Optional bool
}

type Sequence struct {
	Members []Member
}

// Alternative is a CHOICE component. Tag is the OER encoding of its tag.
type Alternative struct {
	Type Type
	Name string
	Tag  []byte
}

type Choice struct {
	Alternatives []Alternative
}

type SequenceOf struct {
	Element Type
}

// Ref names another user type, possibly in a different module.
type Ref struct {
	Module string
	Name   string
}

// Unmapped is an ASN.1 type without an OER mapping in this package.
type Unmapped struct {
	Name string
}

func (*Integer) Kind() Kind     { return KindInteger }
func (*Boolean) Kind() Kind     { return KindBoolean }
func (*Real) Kind() Kind        { return KindReal }
func (*Null) Kind() Kind        { return KindNull }
func (*Enumerated) Kind() Kind  { return KindEnumerated }
func (*OctetString) Kind() Kind { return KindOctetString }
func (*Sequence) Kind() Kind    { return KindSequence }
func (*Choice) Kind() Kind      { return KindChoice }
func (*SequenceOf) Kind() Kind  { return KindSequenceOf }
func (*Ref) Kind() Kind         { return KindRef }
func (*Unmapped) Kind() Kind    { return KindUnmapped }

func (*Integer) isType()     {}
func (*Boolean) isType()     {}
func (*Real) isType()        {}
func (*Null) isType()        {}
func (*Enumerated) isType()  {}
func (*OctetString) isType() {}
func (*Sequence) isType()    {}
func (*Choice) isType()      {}
func (*SequenceOf) isType()  {}
func (*Ref) isType()         {}
func (*Unmapped) isType()    {}
