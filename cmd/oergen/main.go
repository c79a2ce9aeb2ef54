// Command oergen generates Go OER codecs from ASN.1 schema descriptions
// and encodes or decodes values with them.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/wippyai/asn1-oer/generator"
	"github.com/wippyai/asn1-oer/schema"
	"github.com/wippyai/asn1-oer/schema/witconv"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// inputFlags select how a schema argument is read.
type inputFlags struct {
	module  string
	maxList uint64
	wit     bool
	verbose bool
}

func (f *inputFlags) register(fs *pflag.FlagSet) {
	fs.BoolVar(&f.wit, "wit", false, "read the schema as a WIT JSON document (wasm-tools component wit --json)")
	fs.StringVar(&f.module, "module", "Wit", "module name for types read from WIT")
	fs.Uint64Var(&f.maxList, "max-list", witconv.DefaultOptions().MaxListSize, "size bound for WIT strings and lists")
	fs.BoolVarP(&f.verbose, "verbose", "v", false, "log generation details to stderr")
}

func (f *inputFlags) load(path string) (schema.Set, error) {
	if !f.wit {
		return schema.LoadFile(path)
	}
	return witconv.LoadFile(path, f.module, witconv.Options{MaxListSize: f.maxList})
}

// setupLogger installs a development logger with -v, otherwise a
// production logger that only reports warnings.
func (f *inputFlags) setupLogger(w io.Writer) {
	level := zapcore.WarnLevel
	encCfg := zap.NewProductionEncoderConfig()
	if f.verbose {
		level = zapcore.DebugLevel
		encCfg = zap.NewDevelopmentEncoderConfig()
	}
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(w), level)
	generator.SetLogger(zap.New(core))
}

func newRootCmd() *cobra.Command {
	in := &inputFlags{}
	cmd := &cobra.Command{
		Use:   "oergen",
		Short: "oergen generates Go codecs for the ASN.1 Octet Encoding Rules",
		Long: `oergen reads a schema of ASN.1 types, given as YAML or as a WIT JSON
document, and emits a self-contained Go file with one type, one encoder
and one decoder per schema type.

The same schema can encode and decode values directly:

	oergen encode foo.yaml Foo.Question value.yaml
	oergen decode foo.yaml Foo.Question 0102ff`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			in.setupLogger(cmd.ErrOrStderr())
		},
	}
	in.register(cmd.PersistentFlags())

	cmd.AddCommand(
		newGenerateCmd(in),
		newTypesCmd(in),
		newEncodeCmd(in),
		newDecodeCmd(in),
		newBrowseCmd(in),
	)
	return cmd
}
