// Package generator produces Go encoders and decoders for ASN.1 types using
// the Octet Encoding Rules (ITU-T X.696).
//
// Generate walks every type of a schema.Set and emits, per type, a Go type
// layout, an inner encode and decode function and the public EncodeOER and
// DecodeOER methods. Types are ordered so that every type follows the types
// it references, and only the runtime primitives the types actually call
// are copied into the output:
//
//	out, err := generator.Generate(set, generator.DefaultOptions())
//	if err != nil {
//	    return err
//	}
//	src, err := out.File()
//
// The generated file imports the standard library only.
//
// # Generated Go types
//
//	INTEGER (a..b)        narrowest of uint8..uint64 or int8..int64; int64 when open
//	BOOLEAN               bool
//	REAL binary32/64      float32 / float64
//	NULL                  struct{}; NULL members and alternatives have no field
//	ENUMERATED            a uint8 type with one constant per enumerator
//	OCTET STRING (SIZE n) [n]byte, otherwise []byte
//	SEQUENCE              struct; OPTIONAL members add an XPresent bool field
//	CHOICE                struct with a Choice selector field and one field per alternative
//	SEQUENCE OF (SIZE n)  [n]T, otherwise []T
//
// Nested SEQUENCE, CHOICE and ENUMERATED types are hoisted to named types
// prefixed with the enclosing type name, such as FooBarItemsElem.
//
// # Dynamic codec
//
// Output.Encode and Output.Decode interpret the instructions the Go code is
// rendered from against the oer package, so encodings can be produced and
// checked without compiling the generated file.
package generator
