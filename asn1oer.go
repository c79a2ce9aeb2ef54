package asn1oer

import (
	"io"

	"github.com/wippyai/asn1-oer/generator"
	"github.com/wippyai/asn1-oer/schema"
)

// Generate reads a YAML or JSON schema from r and returns the generated
// Go file.
func Generate(r io.Reader, opts generator.Options) ([]byte, error) {
	set, err := schema.Load(r)
	if err != nil {
		return nil, err
	}
	return GenerateSet(set, opts)
}

// GenerateFile is Generate on the schema file at path.
func GenerateFile(path string, opts generator.Options) ([]byte, error) {
	set, err := schema.LoadFile(path)
	if err != nil {
		return nil, err
	}
	return GenerateSet(set, opts)
}

// GenerateSet returns the generated Go file for set.
func GenerateSet(set schema.Set, opts generator.Options) ([]byte, error) {
	out, err := generator.Generate(set, opts)
	if err != nil {
		return nil, err
	}
	return out.File()
}
