package chir

import "fmt"

// Value is anything usable as an expression operand.
type Value interface {
	valueNode()
	Type() Type
	String() string
}

// LocalVar is the single result of one defining expression. The definition
// owns the variable; consuming expressions are tracked as use edges so that
// rewrites can rewire or detach consumers without leaving dangling operands.
type LocalVar struct {
	name string
	ty   Type
	def  Expr
	uses map[Expr]int
}

func (*LocalVar) valueNode() {}

func (v *LocalVar) Type() Type { return v.ty }

// Def returns the expression that produces this variable.
func (v *LocalVar) Def() Expr { return v.def }

// Name returns the printable name assigned by the builder; may be empty for
// detached values.
func (v *LocalVar) Name() string { return v.name }

// SetName assigns the printable name.
func (v *LocalVar) SetName(name string) { v.name = name }

// Users returns every expression currently consuming this variable.
func (v *LocalVar) Users() []Expr {
	users := make([]Expr, 0, len(v.uses))
	for e := range v.uses {
		users = append(users, e)
	}
	return users
}

// NumUses returns the total operand occurrences of this variable.
func (v *LocalVar) NumUses() int {
	n := 0
	for _, count := range v.uses {
		n += count
	}
	return n
}

// SetType changes the static type of v. Only whole-program rewrites that
// change a value's representation (closure conversion) may call this.
func (v *LocalVar) SetType(t Type) { v.ty = t }

// ReplaceWith rewires every consuming expression to use repl instead of v.
// The caller is responsible for having proven that repl dominates all uses.
func (v *LocalVar) ReplaceWith(repl Value) {
	if repl == Value(v) {
		return
	}
	for user := range v.uses {
		b := user.base()
		for i, op := range b.operands {
			if op == Value(v) {
				b.operands[i] = repl
				addUse(repl, user)
			}
		}
	}
	v.uses = make(map[Expr]int)
}

func (v *LocalVar) String() string {
	if v.name != "" {
		return "%" + v.name
	}
	return fmt.Sprintf("%%<%p>", v)
}

// Parameter is a function parameter.
type Parameter struct {
	Name  string
	ty    Type
	Owner *Func
	This  bool
}

func (*Parameter) valueNode() {}

func (p *Parameter) Type() Type     { return p.ty }
func (p *Parameter) String() string { return "%" + p.Name }

// SetType changes the parameter's static type, see LocalVar.SetType.
func (p *Parameter) SetType(t Type) { p.ty = t }

// GlobalVar is a package-owned global. Init carries the literal value the
// constant evaluator resolved for it, when it did; globals whose initializers
// could not be folded keep Init nil and are written by an init function.
type GlobalVar struct {
	Name     string
	ty       Type
	Init     *Literal
	Imported bool
}

func (*GlobalVar) valueNode() {}

func (g *GlobalVar) Type() Type     { return g.ty }
func (g *GlobalVar) String() string { return "@" + g.Name }

// SetType changes the global's static type, see LocalVar.SetType.
func (g *GlobalVar) SetType(t Type) { g.ty = t }

// LiteralKind enumerates literal value forms.
type LiteralKind int

const (
	LitInt LiteralKind = iota
	LitFloat
	LitBool
	LitRune
	LitString
	LitNull
	LitUnit
)

// Literal is an immutable constant value.
type Literal struct {
	Kind  LiteralKind
	ty    Type
	Int   int64
	Float float64
	Bool  bool
	Rune  rune
	Str   string
}

func (*Literal) valueNode() {}

func (l *Literal) Type() Type { return l.ty }

func (l *Literal) String() string {
	switch l.Kind {
	case LitInt:
		return fmt.Sprintf("%d", l.Int)
	case LitFloat:
		return fmt.Sprintf("%g", l.Float)
	case LitBool:
		return fmt.Sprintf("%t", l.Bool)
	case LitRune:
		return fmt.Sprintf("%q", l.Rune)
	case LitString:
		return fmt.Sprintf("%q", l.Str)
	case LitNull:
		return "null"
	case LitUnit:
		return "unit"
	default:
		return "lit?"
	}
}

// NewIntLiteral creates an integer literal of type ty.
func NewIntLiteral(ty Type, v int64) *Literal { return &Literal{Kind: LitInt, ty: ty, Int: v} }

// NewFloatLiteral creates a floating literal of type ty.
func NewFloatLiteral(ty Type, v float64) *Literal { return &Literal{Kind: LitFloat, ty: ty, Float: v} }

// NewBoolLiteral creates a boolean literal.
func NewBoolLiteral(ty Type, v bool) *Literal { return &Literal{Kind: LitBool, ty: ty, Bool: v} }

// NewRuneLiteral creates a rune literal.
func NewRuneLiteral(ty Type, v rune) *Literal { return &Literal{Kind: LitRune, ty: ty, Rune: v} }

// NewStringLiteral creates a string literal.
func NewStringLiteral(ty Type, v string) *Literal { return &Literal{Kind: LitString, ty: ty, Str: v} }

// NewNullLiteral creates the null literal of type ty.
func NewNullLiteral(ty Type) *Literal { return &Literal{Kind: LitNull, ty: ty} }

// NewUnitLiteral creates the unit literal.
func NewUnitLiteral(ty Type) *Literal { return &Literal{Kind: LitUnit, ty: ty} }

// FuncAttr is a bit set of function attributes.
type FuncAttr uint16

const (
	AttrStatic FuncAttr = 1 << iota
	AttrConst
	AttrGeneric
	AttrInstantiated
	AttrGlobalInit
	AttrLifted
	AttrConstructor
)

// Has reports whether all bits of mask are set.
func (a FuncAttr) Has(mask FuncAttr) bool { return a&mask == mask }

// FuncBase is a callable top-level value: a function with a body or an
// imported declaration.
type FuncBase interface {
	Value
	FuncName() string
	Signature() *FuncType
	IsImported() bool
}

// Func is a package-owned function. Body is nil for declared-only functions.
type Func struct {
	Name          string
	Sig           *FuncType
	Params        []*Parameter
	ReturnType    Type
	GenericParams []*GenericType
	Attrs         FuncAttr
	Body          *BlockGroup
}

func (*Func) valueNode() {}

func (f *Func) Type() Type          { return f.Sig }
func (f *Func) FuncName() string    { return f.Name }
func (f *Func) Signature() *FuncType { return f.Sig }
func (f *Func) IsImported() bool    { return false }
func (f *Func) String() string      { return "@" + f.Name }

// NumBlocks returns the block count of the body, zero for declarations.
func (f *Func) NumBlocks() int {
	if f.Body == nil {
		return 0
	}
	return len(f.Body.Blocks)
}

// ImportedFunc is a read-only reference to a function owned by another
// package.
type ImportedFunc struct {
	Name  string
	Sig   *FuncType
	Attrs FuncAttr
}

func (*ImportedFunc) valueNode() {}

func (f *ImportedFunc) Type() Type          { return f.Sig }
func (f *ImportedFunc) FuncName() string    { return f.Name }
func (f *ImportedFunc) Signature() *FuncType { return f.Sig }
func (f *ImportedFunc) IsImported() bool    { return true }
func (f *ImportedFunc) String() string      { return "@" + f.Name }

// addUse records one operand occurrence of v in user. Only LocalVars carry
// use edges; other value kinds are immutable or package-owned and do not need
// them.
func addUse(v Value, user Expr) {
	if lv, ok := v.(*LocalVar); ok {
		lv.uses[user]++
	}
}

// dropUse removes one operand occurrence of v in user.
func dropUse(v Value, user Expr) {
	lv, ok := v.(*LocalVar)
	if !ok {
		return
	}
	if lv.uses[user] > 1 {
		lv.uses[user]--
	} else {
		delete(lv.uses, user)
	}
}
