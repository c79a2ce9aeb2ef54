package catalog

import (
	"bytes"
	"fmt"
	"go/ast"
	"go/format"
	"go/parser"
	"go/token"
	"sort"
	"strconv"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"golang.org/x/tools/go/ast/astutil"

	"github.com/wippyai/asn1-oer/oer"
)

// Primitive identifiers. Methods are keyed Receiver.Method.
const (
	Errors      = "errors"
	Codec       = "Codec"
	EncoderType = "Encoder"
	DecoderType = "Decoder"
	NewEncoder  = "NewEncoder"
	NewDecoder  = "NewDecoder"

	EncoderResult           = "Encoder.Result"
	EncoderAbort            = "Encoder.Abort"
	Alloc                   = "Encoder.Alloc"
	AppendBytes             = "Encoder.AppendBytes"
	AppendInteger8          = "Encoder.AppendInteger8"
	AppendInteger16         = "Encoder.AppendInteger16"
	AppendInteger32         = "Encoder.AppendInteger32"
	AppendInteger64         = "Encoder.AppendInteger64"
	AppendInteger           = "Encoder.AppendInteger"
	AppendFloat             = "Encoder.AppendFloat"
	AppendDouble            = "Encoder.AppendDouble"
	AppendBool              = "Encoder.AppendBool"
	AppendLengthDeterminant = "Encoder.AppendLengthDeterminant"

	DecoderResult         = "Decoder.Result"
	DecoderAbort          = "Decoder.Abort"
	Free                  = "Decoder.Free"
	Fits                  = "Decoder.Fits"
	ReadBytes             = "Decoder.ReadBytes"
	ReadSlice             = "Decoder.ReadSlice"
	ReadInteger8          = "Decoder.ReadInteger8"
	ReadInteger16         = "Decoder.ReadInteger16"
	ReadInteger32         = "Decoder.ReadInteger32"
	ReadInteger64         = "Decoder.ReadInteger64"
	ReadInteger           = "Decoder.ReadInteger"
	ReadFloat             = "Decoder.ReadFloat"
	ReadDouble            = "Decoder.ReadDouble"
	ReadBool              = "Decoder.ReadBool"
	ReadLengthDeterminant = "Decoder.ReadLengthDeterminant"
)

// Primitive is one declaration of the runtime and the primitives it uses.
type Primitive struct {
	ID   string
	Deps []string
}

// table is in emission order.
var table = []Primitive{
	{Errors, nil},
	{Codec, nil},
	{EncoderType, nil},
	{DecoderType, nil},
	{NewEncoder, []string{EncoderType}},
	{NewDecoder, []string{DecoderType}},

	{EncoderResult, []string{EncoderType}},
	{EncoderAbort, []string{EncoderType}},
	{Alloc, []string{EncoderType, Errors}},
	{AppendBytes, []string{EncoderType, Alloc}},
	{AppendInteger8, []string{EncoderType, Alloc}},
	{AppendInteger16, []string{EncoderType, Alloc}},
	{AppendInteger32, []string{EncoderType, Alloc}},
	{AppendInteger64, []string{EncoderType, Alloc}},
	{AppendInteger, []string{EncoderType, AppendInteger8, AppendInteger16, AppendInteger32}},
	{AppendFloat, []string{EncoderType, AppendInteger32}},
	{AppendDouble, []string{EncoderType, AppendInteger64}},
	{AppendBool, []string{EncoderType, AppendInteger8}},
	{AppendLengthDeterminant, []string{EncoderType, AppendInteger8, AppendInteger16, AppendInteger32}},

	{DecoderResult, []string{DecoderType}},
	{DecoderAbort, []string{DecoderType}},
	{Free, []string{DecoderType, Errors}},
	{Fits, []string{DecoderType, Errors}},
	{ReadBytes, []string{DecoderType, Free}},
	{ReadSlice, []string{DecoderType, Errors, Free}},
	{ReadInteger8, []string{DecoderType, Free}},
	{ReadInteger16, []string{DecoderType, Free}},
	{ReadInteger32, []string{DecoderType, Free}},
	{ReadInteger64, []string{DecoderType, Free}},
	{ReadInteger, []string{DecoderType, ReadInteger8, ReadInteger16, ReadInteger32}},
	{ReadFloat, []string{DecoderType, ReadInteger32}},
	{ReadDouble, []string{DecoderType, ReadInteger64}},
	{ReadBool, []string{DecoderType, ReadInteger8}},
	{ReadLengthDeterminant, []string{DecoderType, ReadInteger8, ReadInteger16, ReadInteger32}},
}

var index = func() map[string]int {
	m := make(map[string]int, len(table))
	for i, p := range table {
		m[p.ID] = i
	}
	return m
}()

// All returns the catalog in emission order.
func All() []Primitive {
	return append([]Primitive(nil), table...)
}

// Lookup returns the primitive with the given ID.
func Lookup(id string) (Primitive, bool) {
	i, ok := index[id]
	if !ok {
		return Primitive{}, false
	}
	return table[i], true
}

// Method splits a method ID into the generated receiver variable and the
// generated method name: "Encoder.AppendBool" is ("e", "appendBool").
func Method(id string) (recv, name string) {
	typ, method, ok := strings.Cut(id, ".")
	if !ok {
		return "", Embedded(id)
	}
	if typ == DecoderType {
		recv = "d"
	} else {
		recv = "e"
	}
	return recv, Embedded(method)
}

// Embedded returns the identifier a runtime declaration has inside
// generated code. Error variables keep their exported names.
func Embedded(name string) string {
	if strings.HasPrefix(name, "Err") {
		return name
	}
	r, size := utf8.DecodeRuneInString(name)
	return string(unicode.ToLower(r)) + name[size:]
}

// Closure returns used plus everything it depends on, in emission order.
func Closure(used []string) ([]string, error) {
	seen := make(map[string]bool)
	var visit func(id string) error
	visit = func(id string) error {
		if seen[id] {
			return nil
		}
		p, ok := Lookup(id)
		if !ok {
			return fmt.Errorf("unknown runtime primitive %q", id)
		}
		seen[id] = true
		for _, dep := range p.Deps {
			if err := visit(dep); err != nil {
				return err
			}
		}
		return nil
	}
	for _, id := range used {
		if err := visit(id); err != nil {
			return nil, err
		}
	}

	out := make([]string, 0, len(seen))
	for _, p := range table {
		if seen[p.ID] {
			out = append(out, p.ID)
		}
	}
	return out, nil
}

type declText struct {
	text    string
	imports []string
}

var (
	parseOnce sync.Once
	decls     map[string]declText
	parseErr  error
)

// Render returns the Go source of the given primitives, renamed for
// embedding, and the standard library imports they need.
func Render(ids []string) (string, []string, error) {
	parseOnce.Do(func() {
		decls, parseErr = extract(oer.Source)
	})
	if parseErr != nil {
		return "", nil, parseErr
	}

	var b strings.Builder
	imports := make(map[string]bool)
	for _, id := range ids {
		d, ok := decls[id]
		if !ok {
			return "", nil, fmt.Errorf("runtime primitive %q has no declaration", id)
		}
		b.WriteString(d.text)
		b.WriteString("\n\n")
		for _, imp := range d.imports {
			imports[imp] = true
		}
	}

	paths := make([]string, 0, len(imports))
	for p := range imports {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return b.String(), paths, nil
}

// DeclID returns the catalog ID of a top-level declaration in the runtime
// source, or "" for imports.
func DeclID(decl ast.Decl) string {
	switch d := decl.(type) {
	case *ast.FuncDecl:
		if d.Recv == nil || len(d.Recv.List) == 0 {
			return d.Name.Name
		}
		return receiverType(d.Recv.List[0].Type) + "." + d.Name.Name
	case *ast.GenDecl:
		switch d.Tok {
		case token.VAR:
			return Errors
		case token.TYPE:
			return d.Specs[0].(*ast.TypeSpec).Name.Name
		}
	}
	return ""
}

func receiverType(expr ast.Expr) string {
	if star, ok := expr.(*ast.StarExpr); ok {
		expr = star.X
	}
	if id, ok := expr.(*ast.Ident); ok {
		return id.Name
	}
	return ""
}

func extract(src []byte) (map[string]declText, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "primitives.go", src, parser.SkipObjectResolution)
	if err != nil {
		return nil, fmt.Errorf("parse runtime source: %w", err)
	}

	pkgs := make(map[string]string)
	for _, imp := range file.Imports {
		path, _ := strconv.Unquote(imp.Path.Value)
		name := path[strings.LastIndex(path, "/")+1:]
		if imp.Name != nil {
			name = imp.Name.Name
		}
		pkgs[name] = path
	}

	rename := make(map[string]string)
	for _, decl := range file.Decls {
		id := DeclID(decl)
		if id == "" || id == Errors {
			continue
		}
		_, name, _ := strings.Cut(id, ".")
		if name == "" {
			name = id
		}
		rename[name] = Embedded(name)
	}

	out := make(map[string]declText)
	for _, decl := range file.Decls {
		id := DeclID(decl)
		if id == "" {
			continue
		}
		used := make(map[string]bool)
		astutil.Apply(decl, func(c *astutil.Cursor) bool {
			switch n := c.Node().(type) {
			case *ast.SelectorExpr:
				if x, ok := n.X.(*ast.Ident); ok {
					if path, ok := pkgs[x.Name]; ok {
						used[path] = true
						return false
					}
				}
			case *ast.Ident:
				if to, ok := rename[n.Name]; ok {
					c.Replace(&ast.Ident{NamePos: n.NamePos, Name: to})
				}
			}
			return true
		}, nil)

		var buf bytes.Buffer
		if err := format.Node(&buf, fset, decl); err != nil {
			return nil, fmt.Errorf("print %s: %w", id, err)
		}
		imports := make([]string, 0, len(used))
		for p := range used {
			imports = append(imports, p)
		}
		sort.Strings(imports)
		out[id] = declText{text: buf.String(), imports: imports}
	}
	return out, nil
}
