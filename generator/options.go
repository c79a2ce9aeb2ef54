package generator

// Options configures code generation.
type Options struct {
	// Package is the package clause of the generated file.
	Package string
	// SkipUnsupported drops types that cannot be generated, and the types
	// referencing them, instead of failing.
	SkipUnsupported bool
}

// DefaultOptions returns default generator configuration.
func DefaultOptions() Options {
	return Options{
		Package: "oer",
	}
}
