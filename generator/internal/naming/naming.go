// Package naming turns ASN.1 identifiers into Go identifiers.
package naming

import (
	"strings"
	"unicode"
)

// Exported converts an ASN.1 name such as "my-type" or "answer_a" into an
// exported Go identifier ("MyType", "AnswerA"). Names starting with a digit
// are prefixed with "X".
func Exported(name string) string {
	var b strings.Builder
	upper := true
	for _, r := range name {
		if r == '-' || r == '_' || r == ' ' || r == '.' {
			upper = true
			continue
		}
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			continue
		}
		if b.Len() == 0 && unicode.IsDigit(r) {
			b.WriteByte('X')
		}
		if upper {
			r = unicode.ToUpper(r)
			upper = false
		}
		b.WriteRune(r)
	}
	if b.Len() == 0 {
		return "X"
	}
	return b.String()
}

// TypeName is the Go name of a user type: module and type name joined.
func TypeName(module, name string) string {
	return Exported(module) + Exported(name)
}
