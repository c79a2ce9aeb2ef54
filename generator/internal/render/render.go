// Package render prints instruction sequences as Go statements.
//
// Output is syntactically valid but not necessarily gofmt-clean; the
// assembler formats the complete file.
package render

import (
	"fmt"
	"strings"

	"github.com/wippyai/asn1-oer/generator/internal/catalog"
	"github.com/wippyai/asn1-oer/generator/internal/ir"
)

// Direction selects the receiver and root variable names.
type Direction uint8

const (
	Encode Direction = iota
	Decode
)

// Root returns the name of the value parameter of inner functions.
func (d Direction) Root() string {
	if d == Decode {
		return "dst"
	}
	return "src"
}

// Coder returns the name of the encoder or decoder parameter.
func (d Direction) Coder() string {
	if d == Decode {
		return "d"
	}
	return "e"
}

type printer struct {
	b     strings.Builder
	dir   Direction
	depth int
}

// Stmts renders stmts at the given indentation depth.
func Stmts(dir Direction, stmts []ir.Stmt, depth int) string {
	p := &printer{dir: dir, depth: depth}
	p.stmts(stmts)
	return p.b.String()
}

// Expr renders a single expression.
func Expr(dir Direction, e ir.Expr) string {
	p := &printer{dir: dir}
	return p.expr(e, 0)
}

func (p *printer) line(format string, args ...any) {
	p.b.WriteString(strings.Repeat("\t", p.depth))
	fmt.Fprintf(&p.b, format, args...)
	p.b.WriteByte('\n')
}

func (p *printer) block(stmts []ir.Stmt) {
	p.depth++
	p.stmts(stmts)
	p.depth--
}

func (p *printer) stmts(stmts []ir.Stmt) {
	for _, s := range stmts {
		p.stmt(s)
	}
}

func (p *printer) stmt(s ir.Stmt) {
	switch s := s.(type) {
	case ir.Declare:
		p.line("%s := %s", s.Name, p.expr(s.Value, 0))
	case ir.Update:
		p.line("%s %s %s", s.Name, s.Op, p.expr(s.Value, 0))
	case ir.Assign:
		p.line("%s = %s", p.path(s.Target), p.expr(s.Value, 0))
	case ir.SetPresent:
		p.line("%s = %s", p.present(s.Path), p.expr(s.Value, 0))
	case ir.SetChoice:
		p.line("%s.Choice = %s", p.base(s.Path), s.Const.Go)
	case ir.Do:
		p.line("%s", p.call(s.Call))
	case ir.If:
		p.line("if %s {", p.expr(s.Cond, 0))
		p.block(s.Then)
		if len(s.Else) > 0 {
			p.line("} else {")
			p.block(s.Else)
		}
		p.line("}")
	case ir.For:
		p.line("for %s := range %s {", s.Var, p.path(s.Over))
		p.block(s.Body)
		p.line("}")
	case ir.Switch:
		p.line("switch %s {", p.expr(s.On, 0))
		for _, c := range s.Cases {
			p.line("case %s:", p.expr(c.Match, 0))
			p.block(c.Body)
		}
		if len(s.Default) > 0 {
			p.line("default:")
			p.block(s.Default)
		}
		p.line("}")
	case ir.Abort:
		recv, method := catalog.Method(s.Prim)
		p.line("%s.%s(%s)", recv, method, s.Err)
	case ir.Return:
		p.line("return")
	case ir.Inner:
		target := p.addr(s.Target)
		if s.Convert != "" {
			target = fmt.Sprintf("(*%s)(%s)", s.Convert, p.dir.Root())
		}
		p.line("%s(%s, %s)", s.Func, p.dir.Coder(), target)
	case ir.MakeSlice:
		if !s.Fixed {
			p.line("%s = make(%s, %s)", p.path(s.Target), s.Type, p.expr(s.Len, 0))
		}
	case ir.ReadInto:
		recv, method := catalog.Method(s.Prim)
		p.line("%s.%s(%s)", recv, method, p.slice(s.Target))
	default:
		panic(fmt.Sprintf("render: unknown statement %T", s))
	}
}

// Binary operator precedence as in the Go specification.
var precedence = map[string]int{
	"||": 1,
	"&&": 2,
	"==": 3, "!=": 3, "<": 3, "<=": 3, ">": 3, ">=": 3,
	"+": 4, "-": 4, "|": 4, "^": 4,
	"*": 5, "/": 5, "%": 5, "<<": 5, ">>": 5, "&": 5, "&^": 5,
}

// unary binds tighter than every binary operator.
const unary = 6

func (p *printer) expr(e ir.Expr, outer int) string {
	switch e := e.(type) {
	case ir.Field:
		return p.path(e.Path)
	case ir.Lit:
		return e.Text
	case ir.Var:
		return e.Name
	case ir.Len:
		return "len(" + p.path(e.Path) + ")"
	case ir.Convert:
		return e.To.Go + "(" + p.expr(e.X, 0) + ")"
	case ir.Call:
		return p.call(e)
	case ir.Binary:
		prec := precedence[e.Op]
		s := p.expr(e.X, prec) + " " + e.Op + " " + p.expr(e.Y, prec+1)
		if prec < outer {
			return "(" + s + ")"
		}
		return s
	case ir.Not:
		return "!" + p.expr(e.X, unary)
	case ir.Present:
		return p.present(e.Path)
	case ir.ChoiceOf:
		return p.base(e.Path) + ".Choice"
	case ir.ChoiceConst:
		return e.Go
	case ir.Slice:
		return p.slice(e.Path)
	default:
		panic(fmt.Sprintf("render: unknown expression %T", e))
	}
}

func (p *printer) call(c ir.Call) string {
	recv, method := catalog.Method(c.Prim)
	args := make([]string, len(c.Args))
	for i, a := range c.Args {
		args[i] = p.expr(a, 0)
	}
	return recv + "." + method + "(" + strings.Join(args, ", ") + ")"
}

// path renders the value at path: *src for the root, src.A.B for members
// and (*src)[i] when the root is indexed.
func (p *printer) path(path ir.Path) string {
	steps := path.Steps()
	root := p.dir.Root()
	if len(steps) == 0 {
		return "*" + root
	}

	var b strings.Builder
	if steps[0].Kind == ir.StepIndex {
		b.WriteString("(*" + root + ")")
	} else {
		b.WriteString(root)
	}
	for _, s := range steps {
		if s.Kind == ir.StepIndex {
			b.WriteString("[" + s.Name + "]")
		} else {
			b.WriteString("." + s.Go)
		}
	}
	return b.String()
}

// base renders path as the operand of a field selector.
func (p *printer) base(path ir.Path) string {
	if path.IsRoot() {
		return p.dir.Root()
	}
	return p.path(path)
}

func (p *printer) addr(path ir.Path) string {
	if path.IsRoot() {
		return p.dir.Root()
	}
	return "&" + p.path(path)
}

func (p *printer) slice(path ir.Path) string {
	if path.IsRoot() {
		return "(*" + p.dir.Root() + ")[:]"
	}
	return p.path(path) + "[:]"
}

func (p *printer) present(path ir.Path) string {
	parent, last := path.Parent()
	return p.base(parent) + "." + last.Go + "Present"
}
