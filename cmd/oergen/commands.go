package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/wippyai/asn1-oer/generator"
)

func newGenerateCmd(in *inputFlags) *cobra.Command {
	opts := generator.DefaultOptions()
	var output string

	cmd := &cobra.Command{
		Use:   "generate <schema>",
		Short: "write the Go codec for every type of a schema",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			set, err := in.load(args[0])
			if err != nil {
				return err
			}
			out, err := generator.Generate(set, opts)
			if err != nil {
				return err
			}
			for _, skipped := range out.Skipped {
				fmt.Fprintf(cmd.ErrOrStderr(), "skipped: %v\n", skipped)
			}
			src, err := out.File()
			if err != nil {
				return err
			}
			if output == "" || output == "-" {
				_, err = cmd.OutOrStdout().Write(src)
				return err
			}
			return os.WriteFile(output, src, 0o644)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	cmd.Flags().StringVar(&opts.Package, "package", opts.Package, "package name of the generated file")
	cmd.Flags().BoolVar(&opts.SkipUnsupported, "skip-unsupported", false, "drop types that cannot be generated instead of failing")
	return cmd
}

func newTypesCmd(in *inputFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "types <schema>",
		Short: "list the types of a schema in dependency order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := in.generate(args[0])
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			for _, u := range out.Units {
				fmt.Fprintf(w, "%s.%s\t%s", u.Module, u.Name, u.GoName)
				if len(u.Refs) > 0 {
					refs := make([]string, len(u.Refs))
					for i, r := range u.Refs {
						refs[i] = r.Module + "." + r.Name
					}
					fmt.Fprintf(w, "\t-> %s", strings.Join(refs, ", "))
				}
				fmt.Fprintln(w)
			}
			for _, skipped := range out.Skipped {
				fmt.Fprintf(cmd.ErrOrStderr(), "skipped: %v\n", skipped)
			}
			return nil
		},
	}
}

func newEncodeCmd(in *inputFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "encode <schema> <Module.Type> <value.yaml|->",
		Short: "encode a YAML value and print the octets in hex",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := in.generate(args[0])
			if err != nil {
				return err
			}
			module, name, err := splitType(args[1])
			if err != nil {
				return err
			}
			data, err := readInput(cmd.InOrStdin(), args[2])
			if err != nil {
				return err
			}
			var v any
			if err := yaml.Unmarshal(data, &v); err != nil {
				return fmt.Errorf("parse value: %w", err)
			}
			b, err := encodeValue(out, module, name, v)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hex.EncodeToString(b))
			return nil
		},
	}
}

func newDecodeCmd(in *inputFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "decode <schema> <Module.Type> <hex>",
		Short: "decode hex octets and print the value as YAML",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := in.generate(args[0])
			if err != nil {
				return err
			}
			module, name, err := splitType(args[1])
			if err != nil {
				return err
			}
			data, err := hex.DecodeString(strings.Join(strings.Fields(args[2]), ""))
			if err != nil {
				return fmt.Errorf("parse hex: %w", err)
			}
			v, n, err := out.Decode(module, name, data)
			if err != nil {
				return err
			}
			if n < len(data) {
				fmt.Fprintf(cmd.ErrOrStderr(), "%d trailing octets ignored\n", len(data)-n)
			}
			text, err := yaml.Marshal(generator.Printable(v))
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(text)
			return err
		},
	}
}

// generate loads a schema and builds the dynamic codec for the types
// that can be generated.
func (f *inputFlags) generate(path string) (*generator.Output, error) {
	set, err := f.load(path)
	if err != nil {
		return nil, err
	}
	opts := generator.DefaultOptions()
	opts.SkipUnsupported = true
	return generator.Generate(set, opts)
}

func encodeValue(out *generator.Output, module, name string, v any) ([]byte, error) {
	v, err := out.Normalize(module, name, v)
	if err != nil {
		return nil, err
	}
	return out.Encode(module, name, v)
}

func splitType(s string) (module, name string, err error) {
	module, name, ok := strings.Cut(s, ".")
	if !ok || module == "" || name == "" {
		return "", "", fmt.Errorf("type %q: want Module.Type", s)
	}
	return module, name, nil
}

func readInput(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(path)
}
