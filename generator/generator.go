package generator

import (
	"bytes"
	"go/format"
	"go/parser"
	"go/token"
	"sort"
	"strings"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/tools/go/ast/astutil"

	"github.com/wippyai/asn1-oer/errors"
	"github.com/wippyai/asn1-oer/generator/internal/catalog"
	"github.com/wippyai/asn1-oer/generator/internal/order"
	"github.com/wippyai/asn1-oer/schema"
)

// Header starts every generated file.
const Header = "// Code generated by oergen. DO NOT EDIT.\n"

// Output is the result of one generation run. The four fragments are
// ready to be concatenated in order; File does that and formats the result.
type Output struct {
	units   map[order.Key]*Unit
	imports []string

	// Package is the package clause of the generated file.
	Package string
	// Units holds the generated types in dependency order.
	Units []*Unit
	// Skipped holds the errors of types dropped by Options.SkipUnsupported.
	Skipped []error

	Layouts      string
	Declarations string
	Helpers      string
	Definitions  string
}

// Generate produces the Go codec for every type in set.
//
// Per-type failures are collected and returned together. With
// Options.SkipUnsupported, types failing with errors.KindUnsupported are
// dropped along with every type that references them.
func Generate(set schema.Set, opts Options) (*Output, error) {
	if opts.Package == "" {
		opts.Package = DefaultOptions().Package
	}
	if !token.IsIdentifier(opts.Package) {
		return nil, errors.InvalidInput(errors.PhaseGenerate, "invalid package name "+opts.Package)
	}
	log := Logger()

	units := make(map[order.Key]*Unit)
	var errs error
	var skipped []error
	for _, module := range set.ModuleNames() {
		types := set[module]
		for _, name := range types.TypeNames() {
			unit, err := buildUnit(set, module, name, types[name])
			if err != nil {
				if opts.SkipUnsupported && isUnsupported(err) {
					log.Warn("skipping type", zap.String("module", module), zap.String("type", name), zap.Error(err))
					skipped = append(skipped, err)
					continue
				}
				errs = multierr.Append(errs, err)
				continue
			}
			log.Debug("generated type",
				zap.String("module", module),
				zap.String("type", name),
				zap.String("go", unit.GoName),
				zap.Strings("primitives", unit.Primitives),
				zap.Int("refs", len(unit.Refs)),
			)
			units[unit.key()] = unit
		}
	}
	if errs != nil {
		return nil, errs
	}
	skipped = append(skipped, pruneDangling(units)...)

	g := order.New()
	for k, u := range units {
		refs := make([]order.Key, len(u.Refs))
		for i, r := range u.Refs {
			refs[i] = order.Key{Module: r.Module, Name: r.Name}
		}
		g.Add(k, refs...)
	}
	keys, err := g.Sort()
	if err != nil {
		return nil, err
	}
	log.Debug("ordered types", zap.Stringers("order", keys))

	out := &Output{
		units:   units,
		Package: opts.Package,
		Skipped: skipped,
	}
	for _, k := range keys {
		out.Units = append(out.Units, units[k])
	}
	if err := checkIdentifiers(out.Units); err != nil {
		return nil, err
	}
	if err := out.assemble(); err != nil {
		return nil, err
	}
	return out, nil
}

func isUnsupported(err error) bool {
	e, ok := err.(*errors.Error)
	return ok && e.Kind == errors.KindUnsupported
}

// pruneDangling drops units referencing a type that was skipped, until
// every remaining reference resolves.
func pruneDangling(units map[order.Key]*Unit) []error {
	var dropped []error
	for changed := true; changed; {
		changed = false
		for _, k := range sortedKeys(unitKeys(units)) {
			u := units[k]
			for _, r := range u.Refs {
				if _, ok := units[order.Key{Module: r.Module, Name: r.Name}]; ok {
					continue
				}
				err := errors.New(errors.PhaseGenerate, errors.KindUnsupported).
					Type(u.Module, u.Name).
					Detail("references skipped type %s.%s", r.Module, r.Name).
					Value(r.Module + "." + r.Name).
					Build()
				Logger().Warn("skipping type", zap.String("module", u.Module), zap.String("type", u.Name), zap.Error(err))
				dropped = append(dropped, err)
				delete(units, k)
				changed = true
				break
			}
		}
	}
	return dropped
}

// Runtime identifiers exported into generated files keep their names.
var reserved = map[string]bool{
	"ErrOutOfMemory": true,
	"ErrOutOfData":   true,
	"ErrBadLength":   true,
	"ErrBadChoice":   true,
}

func checkIdentifiers(units []*Unit) error {
	owner := make(map[string]*Unit)
	var errs error
	for _, u := range units {
		for _, id := range u.Identifiers {
			if reserved[id] {
				err := errors.Duplicate(errors.PhaseGenerate, "identifier", id)
				err.Module, err.Type = u.Module, u.Name
				errs = multierr.Append(errs, err)
				continue
			}
			if prev, ok := owner[id]; ok {
				err := errors.Duplicate(errors.PhaseGenerate, "identifier", id)
				err.Module, err.Type = u.Module, u.Name
				err.Detail += " also declared by " + prev.Module + "." + prev.Name
				errs = multierr.Append(errs, err)
				continue
			}
			owner[id] = u
		}
	}
	return errs
}

func (o *Output) assemble() error {
	if len(o.Units) == 0 {
		return nil
	}

	var layouts, decls, defs []string
	var used []string
	for _, u := range o.Units {
		layouts = append(layouts, u.Layout)
		decls = append(decls, u.Declaration)
		defs = append(defs, u.Inner, u.Public)
		used = append(used, u.Primitives...)
	}

	ids, err := catalog.Closure(used)
	if err != nil {
		return errors.Wrap(errors.PhaseRender, errors.KindNotFound, err, "resolve runtime helpers")
	}
	helpers, imports, err := catalog.Render(ids)
	if err != nil {
		return errors.Wrap(errors.PhaseRender, errors.KindInvalidInput, err, "render runtime helpers")
	}
	Logger().Debug("selected helpers", zap.Strings("helpers", ids))

	o.Layouts = strings.Join(layouts, "\n")
	o.Declarations = strings.Join(decls, "")
	o.Helpers = helpers
	o.Definitions = strings.Join(defs, "\n")
	o.imports = imports
	return nil
}

// Unit returns the generated unit of a type.
func (o *Output) Unit(module, name string) (*Unit, bool) {
	u, ok := o.units[order.Key{Module: module, Name: name}]
	return u, ok
}

// Source returns the unformatted concatenation of the fragments.
func (o *Output) Source() string {
	var b strings.Builder
	b.WriteString(Header)
	b.WriteString("\npackage " + o.Package + "\n")
	for _, frag := range []string{o.Layouts, o.Declarations, o.Helpers, o.Definitions} {
		if frag == "" {
			continue
		}
		b.WriteString("\n")
		b.WriteString(frag)
	}
	return b.String()
}

// File returns the complete generated Go file, with imports added and
// gofmt applied.
func (o *Output) File() ([]byte, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, o.Package+"_oer.go", o.Source(), parser.ParseComments)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseRender, errors.KindInvalidInput, err, "generated source does not parse")
	}
	for _, path := range o.imports {
		astutil.AddImport(fset, file, path)
	}

	var buf bytes.Buffer
	if err := format.Node(&buf, fset, file); err != nil {
		return nil, errors.Wrap(errors.PhaseRender, errors.KindInvalidInput, err, "format generated source")
	}
	return buf.Bytes(), nil
}

func unitKeys(units map[order.Key]*Unit) map[order.Key]bool {
	keys := make(map[order.Key]bool, len(units))
	for k := range units {
		keys[k] = true
	}
	return keys
}

func sortedKeys(set map[order.Key]bool) []order.Key {
	out := make([]order.Key, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Module != out[j].Module {
			return out[i].Module < out[j].Module
		}
		return out[i].Name < out[j].Name
	})
	return out
}
