package ir

import (
	"strconv"

	"github.com/wippyai/asn1-oer/schema"
)

// Class selects how a scalar is converted.
type Class uint8

const (
	ClassUint Class = iota
	ClassInt
	ClassFloat32
	ClassFloat64
	ClassBool
	ClassEnum
)

// Scalar is a Go scalar type. Bits is the width of integer classes.
type Scalar struct {
	Enum  *schema.Enumerated
	Go    string
	Class Class
	Bits  int
}

func Uint(bits int) Scalar {
	return Scalar{Go: "uint" + strconv.Itoa(bits), Class: ClassUint, Bits: bits}
}

func Int(bits int) Scalar {
	return Scalar{Go: "int" + strconv.Itoa(bits), Class: ClassInt, Bits: bits}
}

// Named returns s under a defined type name.
func (s Scalar) Named(goName string) Scalar {
	s.Go = goName
	return s
}

type Expr interface{ isExpr() }

// Field reads the value at Path. Or is evaluated instead when a dynamic
// value has no entry at Path; generated Go ignores it.
type Field struct {
	Or   Expr
	Path Path
	Type Scalar
}

// Lit is a constant. Text is its Go spelling, Value its dynamic value.
type Lit struct {
	Value any
	Text  string
}

type Var struct {
	Name string
}

// Len is the number of elements or octets at Path.
type Len struct {
	Path Path
}

type Convert struct {
	X  Expr
	To Scalar
}

// Call invokes a runtime primitive on the encoder or decoder.
type Call struct {
	Prim string
	Args []Expr
}

type Binary struct {
	X  Expr
	Y  Expr
	Op string
}

// Not negates a boolean expression.
type Not struct {
	X Expr
}

// Present reports whether the optional member at Path is present.
type Present struct {
	Path Path
}

// ChoiceOf is the selected alternative of the CHOICE at Path.
type ChoiceOf struct {
	Path Path
}

// ChoiceConst names an alternative: Go is the selector constant.
type ChoiceConst struct {
	Go  string
	Alt string
}

// Slice is the octets at Path. Size is non-zero for fixed sizes.
type Slice struct {
	Path Path
	Size int
}

func (Field) isExpr()       {}
func (Lit) isExpr()         {}
func (Var) isExpr()         {}
func (Len) isExpr()         {}
func (Convert) isExpr()     {}
func (Call) isExpr()        {}
func (Binary) isExpr()      {}
func (Not) isExpr()         {}
func (Present) isExpr()     {}
func (ChoiceOf) isExpr()    {}
func (ChoiceConst) isExpr() {}
func (Slice) isExpr()       {}

type Stmt interface{ isStmt() }

// Declare introduces a scratch variable: Name := Value.
type Declare struct {
	Value Expr
	Name  string
}

// Update applies Op ("|=") to a scratch variable.
type Update struct {
	Value Expr
	Name  string
	Op    string
}

// Assign stores a decoded value at Target.
type Assign struct {
	Value  Expr
	Target Path
}

// SetPresent records whether the optional member at Path is present.
// Value is a boolean expression; it is assigned on every decode so a
// reused destination does not keep an earlier presence flag.
type SetPresent struct {
	Value Expr
	Path  Path
}

// SetChoice selects an alternative of the CHOICE at Path.
type SetChoice struct {
	Const ChoiceConst
	Path  Path
}

type Do struct {
	Call Call
}

type If struct {
	Cond Expr
	Then []Stmt
	Else []Stmt
}

// For runs Body once per element at Over with Var bound to the index.
// Fixed is the required element count, zero when variable.
type For struct {
	Var   string
	Over  Path
	Body  []Stmt
	Fixed int
}

type Case struct {
	Match Expr
	Body  []Stmt
}

type Switch struct {
	On      Expr
	Cases   []Case
	Default []Stmt
}

// Abort latches Err ("ErrBadLength", ...) through the Prim abort method.
type Abort struct {
	Prim string
	Err  string
}

type Return struct{}

// Inner calls the inner coder of another user type on Target. Convert,
// when set, is the Go type the root is converted to before the call.
type Inner struct {
	Module  string
	Name    string
	Func    string
	Convert string
	Target  Path
	Encode  bool
}

// MakeSlice allocates Len elements at Target. Fixed slices are arrays in
// generated Go and render to nothing.
type MakeSlice struct {
	Len    Expr
	Type   string
	Target Path
	Fixed  bool
}

// ReadInto fills the fixed Size octets at Target.
type ReadInto struct {
	Prim   string
	Target Path
	Size   int
}

func (Declare) isStmt()    {}
func (Update) isStmt()     {}
func (Assign) isStmt()     {}
func (SetPresent) isStmt() {}
func (SetChoice) isStmt()  {}
func (Do) isStmt()         {}
func (If) isStmt()         {}
func (For) isStmt()        {}
func (Switch) isStmt()     {}
func (Abort) isStmt()      {}
func (Return) isStmt()     {}
func (Inner) isStmt()      {}
func (MakeSlice) isStmt()  {}
func (ReadInto) isStmt()   {}
