package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseLoad     Phase = "load"     // schema loading
	PhaseParse    Phase = "parse"    // schema/WIT document parsing
	PhaseGenerate Phase = "generate" // per-type code generation
	PhaseOrder    Phase = "order"    // dependency ordering
	PhaseRender   Phase = "render"   // Go source assembly
	PhaseEncode   Phase = "encode"   // value to OER bytes
	PhaseDecode   Phase = "decode"   // OER bytes to value
)

// Kind categorizes the error
type Kind string

const (
	KindUnsupported  Kind = "unsupported"
	KindInvalidInput Kind = "invalid_input"
	KindNotFound     Kind = "not_found"
	KindCycle        Kind = "cycle"
	KindDuplicate    Kind = "duplicate"
	KindTypeMismatch Kind = "type_mismatch"
	KindFieldMissing Kind = "field_missing"
	KindOutOfMemory  Kind = "out_of_memory"
	KindOutOfData    Kind = "out_of_data"
	KindBadLength    Kind = "bad_length"
	KindBadChoice    Kind = "bad_choice"
)

// Error is the structured error type used throughout the generator
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Module string
	Type   string
	Detail string
	Path   []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Module != "" || e.Type != "" {
		b.WriteString(" in ")
		if e.Module != "" {
			b.WriteString(e.Module)
			b.WriteByte('.')
		}
		b.WriteString(e.Type)
	}

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Type sets the module and type the error belongs to
func (b *Builder) Type(module, name string) *Builder {
	b.err.Module = module
	b.err.Type = name
	return b
}

// Path sets the member path inside the type
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// Unsupported creates an unsupported construct error
func Unsupported(phase Phase, path []string, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Path:   path,
		Detail: what,
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// Cycle creates a reference cycle error listing the types involved
func Cycle(types []string) *Error {
	return &Error{
		Phase:  PhaseOrder,
		Kind:   KindCycle,
		Detail: "reference cycle: " + strings.Join(types, " -> "),
		Value:  types,
	}
}

// Duplicate creates a duplicate name error
func Duplicate(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindDuplicate,
		Detail: fmt.Sprintf("duplicate %s %q", what, name),
		Value:  name,
	}
}

// TypeMismatch creates a value shape mismatch error
func TypeMismatch(phase Phase, path []string, want string, got any) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindTypeMismatch,
		Path:   path,
		Detail: fmt.Sprintf("expected %s, got %T", want, got),
		Value:  got,
	}
}

// FieldMissing creates a missing member error
func FieldMissing(phase Phase, path []string, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindFieldMissing,
		Path:   path,
		Detail: fmt.Sprintf("required member %q not found", name),
	}
}

// Runtime creates an error for a latched encoder/decoder failure
func Runtime(phase Phase, kind Kind, cause error) *Error {
	return &Error{
		Phase: phase,
		Kind:  kind,
		Cause: cause,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// ParseFailed creates a parsing error
func ParseFailed(what string, cause error) *Error {
	return &Error{
		Phase:  PhaseParse,
		Kind:   KindInvalidInput,
		Detail: fmt.Sprintf("parse %s", what),
		Cause:  cause,
	}
}
