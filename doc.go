// Package asn1oer generates Go encoders and decoders for ASN.1 types using
// the Octet Encoding Rules (ITU-T X.696).
//
// # Architecture Overview
//
// The library is organized into several packages with distinct responsibilities:
//
//	asn1oer/             Root package with one-call generation helpers
//	├── schema/          Compiled ASN.1 type trees, constraints and the YAML loader
//	│   └── witconv/     WIT type definitions to schema sets
//	├── generator/       Per-type code generation, ordering and file assembly
//	├── oer/             Runtime buffer primitives copied into generated files
//	├── errors/          Structured error types for debugging
//	└── cmd/oergen/      Command line front-end
//
// # Quick Start
//
// Generate a codec from a schema file:
//
//	src, err := asn1oer.GenerateFile("foo.yaml", generator.DefaultOptions())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	os.WriteFile("foo_oer.go", src, 0o644)
//
// Every schema type Foo.Question becomes a Go type FooQuestion with
// EncodeOER and DecodeOER methods:
//
//	var q FooQuestion
//	n, err := q.DecodeOER(buf)
//
// # Thread Safety
//
// Generation is stateless. A generator.Output is read-only once Generate
// returns and its Encode and Decode methods are safe for concurrent use.
// Generated encoders and decoders keep their state on the stack.
package asn1oer
