// Package schema defines the compiled ASN.1 type trees consumed by the OER
// generator.
//
// A schema is a Set of modules, each mapping type names to a Compiled pair:
// the Type tree and a parallel Checker tree holding value and size
// constraints. Type is a closed set of node kinds:
//
//	Integer, Boolean, Real, Null, Enumerated, OctetString,
//	Sequence, Choice, SequenceOf, Ref, Unmapped
//
// Ref names another user type, possibly in a different module. Unmapped
// stands for ASN.1 types the front-end produced that have no OER mapping;
// generating code for one fails.
//
// # Loading
//
// Sets are usually built by a front-end. Parse, Load and LoadFile read a
// YAML or JSON description:
//
//	Foo:
//	  Answer:
//	    type: CHOICE
//	    alternatives:
//	      - name: a
//	        type: INTEGER
//	        range: [0, 255]
//	      - name: b
//	        type: BOOLEAN
//	        tag: "[5]"
//
// Alternatives without a tag are numbered by position as context-specific
// tags. Enumerators without a value take the smallest unused number.
package schema
