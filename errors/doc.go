// Package errors provides structured error types for the OER code generator.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type carries the module and type being processed, the member path
// inside that type, and a cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseGenerate, errors.KindUnsupported).
//		Type("Foo", "Question").
//		Path("answer", "b").
//		Detail("choice tag must be exactly one byte").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.NotFound(errors.PhaseGenerate, "type", "Foo.Missing")
//	err := errors.Cycle([]string{"Foo.A", "Foo.B", "Foo.A"})
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
