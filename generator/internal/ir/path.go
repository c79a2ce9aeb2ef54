package ir

import "strings"

type StepKind uint8

const (
	StepMember StepKind = iota // SEQUENCE member
	StepAlt                    // CHOICE alternative payload
	StepIndex                  // SEQUENCE OF element, Name is the loop variable
)

// Step is one hop of a Path. Name is the ASN.1 name, Go the Go field name.
type Step struct {
	Name string
	Go   string
	Kind StepKind
}

// Path locates a value relative to the root of the type being coded.
// Paths are immutable; every extension returns a new Path.
type Path struct {
	steps []Step
}

// Root returns the empty path.
func Root() Path { return Path{} }

func (p Path) with(s Step) Path {
	steps := make([]Step, len(p.steps), len(p.steps)+1)
	copy(steps, p.steps)
	return Path{steps: append(steps, s)}
}

func (p Path) Member(name, goName string) Path {
	return p.with(Step{Kind: StepMember, Name: name, Go: goName})
}

func (p Path) Alt(name, goName string) Path {
	return p.with(Step{Kind: StepAlt, Name: name, Go: goName})
}

func (p Path) Index(loopVar string) Path {
	return p.with(Step{Kind: StepIndex, Name: loopVar})
}

func (p Path) IsRoot() bool { return len(p.steps) == 0 }

// Steps returns a copy of the steps.
func (p Path) Steps() []Step {
	return append([]Step(nil), p.steps...)
}

// Parent splits off the last step. It panics on the root path.
func (p Path) Parent() (Path, Step) {
	n := len(p.steps)
	return Path{steps: p.steps[: n-1 : n-1]}, p.steps[n-1]
}

// String returns the ASN.1 member path, e.g. "items[i].name".
func (p Path) String() string {
	var b strings.Builder
	for _, s := range p.steps {
		switch s.Kind {
		case StepIndex:
			b.WriteString("[" + s.Name + "]")
		default:
			if b.Len() > 0 {
				b.WriteByte('.')
			}
			b.WriteString(s.Name)
		}
	}
	return b.String()
}
