package schema

type Kind uint8

const (
	KindInteger Kind = iota
	KindBoolean
	KindReal
	KindNull
	KindEnumerated
	KindOctetString
	KindSequence
	KindChoice
	KindSequenceOf
	KindRef
	KindUnmapped
)

var kindNames = [...]string{
	KindInteger:     "INTEGER",
	KindBoolean:     "BOOLEAN",
	KindReal:        "REAL",
	KindNull:        "NULL",
	KindEnumerated:  "ENUMERATED",
	KindOctetString: "OCTET STRING",
	KindSequence:    "SEQUENCE",
	KindChoice:      "CHOICE",
	KindSequenceOf:  "SEQUENCE OF",
	KindRef:         "reference",
	KindUnmapped:    "unmapped",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// IsScalar reports whether values of the kind fit in a single Go scalar.
func (k Kind) IsScalar() bool {
	switch k {
	case KindInteger, KindBoolean, KindReal, KindEnumerated:
		return true
	default:
		return false
	}
}

// IsComposite reports whether the kind has named or indexed children.
func (k Kind) IsComposite() bool {
	return k == KindSequence || k == KindChoice || k == KindSequenceOf
}
