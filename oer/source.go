package oer

import _ "embed"

// Source is the text of primitives.go. Code generators copy the
// declarations they need from it into generated files.
//
//go:embed primitives.go
var Source []byte
