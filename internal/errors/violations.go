package errors

import (
	"fmt"
)

// Level represents the severity of a diagnostic
type Level string

const (
	Error   Level = "error"
	Warning Level = "warning"
	Note    Level = "note"
)

// Site locates a violation inside the IR graph. Fields further down the
// struct may be empty; a package-level violation names no function.
type Site struct {
	Package  string
	Function string
	Block    string
	Expr     string
}

func (s Site) String() string {
	out := s.Package
	if s.Function != "" {
		out += "/@" + s.Function
	}
	if s.Block != "" {
		out += ":" + s.Block
	}
	if s.Expr != "" {
		out += " in " + s.Expr
	}
	return out
}

// Violation represents one structural or typing invariant the verifier found
// broken. A nonempty violation set is fatal to the pipeline.
type Violation struct {
	Level   Level
	Code    string // Violation code like V0040
	Rule    string // Name of the rule subset that found it
	Message string // Primary message
	Site    Site   // Location in the IR graph
	Notes   []string
}

func (v Violation) Error() string {
	return fmt.Sprintf("%s[%s]: %s (%s)", v.Level, v.Code, v.Message, v.Site)
}

// ViolationBuilder provides a fluent interface for creating violations
type ViolationBuilder struct {
	v Violation
}

// NewViolation creates a new violation builder
func NewViolation(code, rule, message string) *ViolationBuilder {
	return &ViolationBuilder{
		v: Violation{
			Level:   Error,
			Code:    code,
			Rule:    rule,
			Message: message,
		},
	}
}

// At sets the violation's IR site
func (b *ViolationBuilder) At(site Site) *ViolationBuilder {
	b.v.Site = site
	return b
}

// WithNote adds a note to the violation
func (b *ViolationBuilder) WithNote(format string, args ...interface{}) *ViolationBuilder {
	b.v.Notes = append(b.v.Notes, fmt.Sprintf(format, args...))
	return b
}

// Build returns the completed violation
func (b *ViolationBuilder) Build() Violation {
	return b.v
}

// Common violation constructors

// EmptyBlock reports a block with no expressions and no terminator.
func EmptyBlock(rule string, site Site) Violation {
	return NewViolation(ViolationEmptyBlock, rule, "block is empty").At(site).Build()
}

// MissingTerminator reports a block without a terminator.
func MissingTerminator(rule string, site Site) Violation {
	return NewViolation(ViolationMissingTerminator, rule, "block has no terminator").At(site).Build()
}

// ForeignSuccessor reports a terminator naming a block outside its function.
func ForeignSuccessor(rule string, site Site, target string) Violation {
	return NewViolation(ViolationForeignSuccessor, rule,
		fmt.Sprintf("terminator targets block '%s' of another function", target)).At(site).Build()
}

// OperandArity reports an operand count outside the kind's contract.
func OperandArity(rule string, site Site, kind string, got, min, max int) Violation {
	b := NewViolation(ViolationOperandArity, rule,
		fmt.Sprintf("%s has %d operands", kind, got)).At(site)
	if max < 0 {
		b.WithNote("%s expects at least %d", kind, min)
	} else {
		b.WithNote("%s expects %d..%d", kind, min, max)
	}
	return b.Build()
}

// NilOperand reports an empty operand slot.
func NilOperand(rule string, site Site, index int) Violation {
	return NewViolation(ViolationNilOperand, rule,
		fmt.Sprintf("operand %d is nil", index)).At(site).Build()
}

// TypeMismatch reports a value flowing into an incompatible destination.
func TypeMismatch(code, rule string, site Site, src, dst string) Violation {
	return NewViolation(code, rule,
		fmt.Sprintf("value of type %s cannot flow into %s", src, dst)).At(site).Build()
}

// NonFunctionCallee reports a direct call of a value that is not
// function-typed.
func NonFunctionCallee(rule string, site Site, ty string) Violation {
	return NewViolation(ViolationCalleeType, rule,
		fmt.Sprintf("direct call of non-function value of type %s", ty)).At(site).Build()
}

// MissingVTableSlot reports a virtual call naming a slot the parent's table
// does not declare.
func MissingVTableSlot(rule string, site Site, parent string, offset int) Violation {
	return NewViolation(ViolationVTableSlot, rule,
		fmt.Sprintf("no vtable slot %d for parent %s", offset, parent)).At(site).Build()
}

// VTableImplMismatch reports a slot whose implementation does not satisfy the
// slot signature.
func VTableImplMismatch(rule string, site Site, slot, impl string) Violation {
	return NewViolation(ViolationVTableImpl, rule,
		fmt.Sprintf("implementation %s does not match slot %s", impl, slot)).At(site).Build()
}

// UnreachableRef reports an operand defined in an unreachable block.
func UnreachableRef(rule string, site Site, value string) Violation {
	return NewViolation(ViolationUnreachableRef, rule,
		fmt.Sprintf("operand %s is defined in an unreachable block", value)).At(site).Build()
}

// DanglingGeneric reports a generic parameter used outside its owner.
func DanglingGeneric(rule string, site Site, param string) Violation {
	return NewViolation(ViolationDanglingGeneric, rule,
		fmt.Sprintf("generic parameter %s is not declared by its owner", param)).At(site).Build()
}

// DuplicateName reports two top-level definitions sharing one name.
func DuplicateName(rule string, site Site, name string) Violation {
	return NewViolation(ViolationDuplicateName, rule,
		fmt.Sprintf("duplicate top-level identifier '%s'", name)).At(site).Build()
}
