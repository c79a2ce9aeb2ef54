package schema

import (
	"fmt"
	"strconv"
	"strings"
)

// TagClass is the class of an ASN.1 tag.
type TagClass uint8

const (
	ClassUniversal   TagClass = 0
	ClassApplication TagClass = 1
	ClassContext     TagClass = 2
	ClassPrivate     TagClass = 3
)

// EncodeTag returns the OER encoding of a tag: the class in the two high
// bits of the first octet and the number in the low six bits when it is
// below 63, otherwise 0x3f followed by the number in base 128.
func EncodeTag(class TagClass, number uint64) []byte {
	first := byte(class) << 6
	if number < 63 {
		return []byte{first | byte(number)}
	}
	var groups []byte
	for n := number; ; n >>= 7 {
		groups = append(groups, byte(n&0x7f))
		if n < 0x80 {
			break
		}
	}
	out := []byte{first | 0x3f}
	for i := len(groups) - 1; i >= 0; i-- {
		b := groups[i]
		if i > 0 {
			b |= 0x80
		}
		out = append(out, b)
	}
	return out
}

// ParseTag parses ASN.1 tag notation such as "[3]" or "[APPLICATION 7]".
func ParseTag(s string) ([]byte, error) {
	inner, ok := strings.CutPrefix(strings.TrimSpace(s), "[")
	if !ok {
		return nil, fmt.Errorf("tag %q: missing '['", s)
	}
	inner, ok = strings.CutSuffix(inner, "]")
	if !ok {
		return nil, fmt.Errorf("tag %q: missing ']'", s)
	}

	class := ClassContext
	fields := strings.Fields(inner)
	switch len(fields) {
	case 1:
	case 2:
		switch strings.ToUpper(fields[0]) {
		case "UNIVERSAL":
			class = ClassUniversal
		case "APPLICATION":
			class = ClassApplication
		case "PRIVATE":
			class = ClassPrivate
		default:
			return nil, fmt.Errorf("tag %q: unknown class %q", s, fields[0])
		}
		fields = fields[1:]
	default:
		return nil, fmt.Errorf("tag %q: malformed", s)
	}

	number, err := strconv.ParseUint(fields[0], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("tag %q: %w", s, err)
	}
	return EncodeTag(class, number), nil
}
