package chir

import (
	"fmt"
	"strings"
)

// ExprKind tags every expression variant.
type ExprKind int

const (
	KindAllocate ExprKind = iota
	KindLoad
	KindStore
	KindGetElementRef
	KindStoreElementRef
	KindGetField
	KindStoreField
	KindApply
	KindInvoke
	KindInvokeStatic
	KindApplyWithException
	KindInvokeWithException
	KindInvokeStaticWithException
	KindUnary
	KindBinary
	KindTypeCast
	KindInstanceOf
	KindBox
	KindUnBox
	KindTransformToGeneric
	KindTransformToConcrete
	KindGetRTTI
	KindGetRTTIStatic
	KindSpawn
	KindIntrinsic
	KindTuple
	KindVArray
	KindRawArray
	KindLambda
	KindGoTo
	KindBranch
	KindMultiBranch
	KindExit
	KindRaiseException
)

var exprKindNames = map[ExprKind]string{
	KindAllocate:                  "Allocate",
	KindLoad:                      "Load",
	KindStore:                     "Store",
	KindGetElementRef:             "GetElementRef",
	KindStoreElementRef:           "StoreElementRef",
	KindGetField:                  "GetField",
	KindStoreField:                "StoreField",
	KindApply:                     "Apply",
	KindInvoke:                    "Invoke",
	KindInvokeStatic:              "InvokeStatic",
	KindApplyWithException:        "ApplyWithException",
	KindInvokeWithException:       "InvokeWithException",
	KindInvokeStaticWithException: "InvokeStaticWithException",
	KindUnary:                     "Unary",
	KindBinary:                    "Binary",
	KindTypeCast:                  "TypeCast",
	KindInstanceOf:                "InstanceOf",
	KindBox:                       "Box",
	KindUnBox:                     "UnBox",
	KindTransformToGeneric:        "TransformToGeneric",
	KindTransformToConcrete:       "TransformToConcrete",
	KindGetRTTI:                   "GetRTTI",
	KindGetRTTIStatic:             "GetRTTIStatic",
	KindSpawn:                     "Spawn",
	KindIntrinsic:                 "Intrinsic",
	KindTuple:                     "Tuple",
	KindVArray:                    "VArray",
	KindRawArray:                  "RawArray",
	KindLambda:                    "Lambda",
	KindGoTo:                      "GoTo",
	KindBranch:                    "Branch",
	KindMultiBranch:               "MultiBranch",
	KindExit:                      "Exit",
	KindRaiseException:            "RaiseException",
}

func (k ExprKind) String() string {
	if name, ok := exprKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("ExprKind(%d)", int(k))
}

// Arity is the operand-count contract of one expression kind. Max is -1 for
// variadic kinds.
type Arity struct {
	Min, Max int
}

var exprArity = map[ExprKind]Arity{
	KindAllocate:                  {0, 0},
	KindLoad:                      {1, 1},
	KindStore:                     {2, 2},
	KindGetElementRef:             {1, 1},
	KindStoreElementRef:           {2, 2},
	KindGetField:                  {1, 1},
	KindStoreField:                {2, 2},
	KindApply:                     {1, -1},
	KindInvoke:                    {1, -1},
	KindInvokeStatic:              {1, -1},
	KindApplyWithException:        {1, -1},
	KindInvokeWithException:       {1, -1},
	KindInvokeStaticWithException: {1, -1},
	KindUnary:                     {1, 1},
	KindBinary:                    {2, 2},
	KindTypeCast:                  {1, 1},
	KindInstanceOf:                {1, 1},
	KindBox:                       {1, 1},
	KindUnBox:                     {1, 1},
	KindTransformToGeneric:        {1, 1},
	KindTransformToConcrete:       {1, 1},
	KindGetRTTI:                   {1, 1},
	KindGetRTTIStatic:             {0, 0},
	KindSpawn:                     {1, 1},
	KindIntrinsic:                 {0, -1},
	KindTuple:                     {0, -1},
	KindVArray:                    {0, -1},
	KindRawArray:                  {1, 1},
	KindLambda:                    {0, -1},
	KindGoTo:                      {0, 0},
	KindBranch:                    {1, 1},
	KindMultiBranch:               {1, 1},
	KindExit:                      {0, 1},
	KindRaiseException:            {1, 1},
}

// OperandArity returns the operand-count contract for kind.
func OperandArity(kind ExprKind) Arity { return exprArity[kind] }

// Expr is implemented by every expression variant. An expression is owned by
// at most one Block, produces at most one LocalVar and consumes an ordered
// operand list.
type Expr interface {
	Kind() ExprKind
	Result() *LocalVar
	Operands() []Value
	Block() *Block
	String() string
	base() *exprBase
}

// Terminator is an expression that closes a Block and names its successors.
type Terminator interface {
	Expr
	Successors() []*Block
	ReplaceSuccessor(old, repl *Block)
}

type exprBase struct {
	self     Expr
	kind     ExprKind
	ty       Type
	result   *LocalVar
	operands []Value
	block    *Block
}

func (b *exprBase) Kind() ExprKind     { return b.kind }
func (b *exprBase) Result() *LocalVar  { return b.result }
func (b *exprBase) Operands() []Value  { return b.operands }
func (b *exprBase) Block() *Block      { return b.block }
func (b *exprBase) base() *exprBase    { return b }

// SetOperand replaces the operand at index i, maintaining use edges.
func (b *exprBase) SetOperand(i int, v Value) {
	dropUse(b.operands[i], b.self)
	b.operands[i] = v
	addUse(v, b.self)
}

func (b *exprBase) String() string {
	parts := make([]string, len(b.operands))
	for i, op := range b.operands {
		parts[i] = op.String()
	}
	s := fmt.Sprintf("%s(%s)", b.kind, strings.Join(parts, ", "))
	if b.result != nil {
		s = b.result.String() + " = " + s
	}
	return s
}

// initExpr wires a freshly constructed expression: checks the kind's arity,
// creates the result variable when resultTy is non-nil and records use edges
// for every operand.
func initExpr(e Expr, kind ExprKind, resultTy Type, operands ...Value) {
	arity := exprArity[kind]
	if len(operands) < arity.Min || (arity.Max >= 0 && len(operands) > arity.Max) {
		panic(fmt.Sprintf("chir: %s expects %d..%d operands, got %d",
			kind, arity.Min, arity.Max, len(operands)))
	}
	b := e.base()
	b.self = e
	b.kind = kind
	b.ty = resultTy
	b.operands = operands
	if resultTy != nil {
		b.result = &LocalVar{ty: resultTy, def: e, uses: make(map[Expr]int)}
	}
	for _, op := range operands {
		addUse(op, e)
	}
}

// releaseOperands clears the use edges this expression holds on its operands.
func releaseOperands(e Expr) {
	b := e.base()
	for _, op := range b.operands {
		dropUse(op, e)
	}
	b.operands = nil
}

// Memory operations.

// AllocateExpr reserves storage for one value of Allocated type. For class
// types the result is the object itself; for everything else it is an
// addressable Ref cell.
type AllocateExpr struct {
	exprBase
	Allocated Type
}

// NewAllocate creates an allocation of t.
func NewAllocate(c *TypeContext, t Type) *AllocateExpr {
	e := &AllocateExpr{Allocated: t}
	resultTy := Type(t)
	if _, isClass := t.(*ClassType); !isClass {
		resultTy = c.Ref(t)
	}
	initExpr(e, KindAllocate, resultTy)
	return e
}

func (e *AllocateExpr) String() string {
	return fmt.Sprintf("%s = Allocate(%s)", e.result, e.Allocated)
}

// LoadExpr reads the value held by a Ref location.
type LoadExpr struct {
	exprBase
}

// Location returns the Ref operand.
func (e *LoadExpr) Location() Value { return e.operands[0] }

// NewLoad creates a load from loc, which must be Ref typed.
func NewLoad(loc Value) *LoadExpr {
	ref, ok := loc.Type().(*RefType)
	if !ok {
		panic(fmt.Sprintf("chir: Load location must be a Ref, got %s", loc.Type()))
	}
	e := &LoadExpr{}
	initExpr(e, KindLoad, ref.Base, loc)
	return e
}

// StoreExpr writes a value into a Ref location.
type StoreExpr struct {
	exprBase
}

// Stored returns the stored value operand.
func (e *StoreExpr) Stored() Value { return e.operands[0] }

// Location returns the Ref operand.
func (e *StoreExpr) Location() Value { return e.operands[1] }

// NewStore creates a store of v into loc.
func NewStore(v, loc Value) *StoreExpr {
	if _, ok := loc.Type().(*RefType); !ok {
		panic(fmt.Sprintf("chir: Store location must be a Ref, got %s", loc.Type()))
	}
	e := &StoreExpr{}
	initExpr(e, KindStore, nil, v, loc)
	return e
}

// GetElementRefExpr projects an addressable element out of an aggregate
// location by a constant index path.
type GetElementRefExpr struct {
	exprBase
	Path []int
}

// Base returns the aggregate location operand.
func (e *GetElementRefExpr) Base() Value { return e.operands[0] }

// NewGetElementRef creates an element projection; the result is a Ref to the
// element type named by path.
func NewGetElementRef(c *TypeContext, base Value, path ...int) *GetElementRefExpr {
	elem := elementTypeByPath(c, base.Type(), path)
	e := &GetElementRefExpr{Path: path}
	initExpr(e, KindGetElementRef, c.Ref(elem), base)
	return e
}

func (e *GetElementRefExpr) String() string {
	return fmt.Sprintf("%s = GetElementRef(%s, %v)", e.result, e.Base(), e.Path)
}

// StoreElementRefExpr writes a value into an aggregate element named by a
// constant index path.
type StoreElementRefExpr struct {
	exprBase
	Path []int
}

// Stored returns the stored value operand.
func (e *StoreElementRefExpr) Stored() Value { return e.operands[0] }

// Base returns the aggregate location operand.
func (e *StoreElementRefExpr) Base() Value { return e.operands[1] }

// NewStoreElementRef creates an element store.
func NewStoreElementRef(c *TypeContext, v, base Value, path ...int) *StoreElementRefExpr {
	elementTypeByPath(c, base.Type(), path)
	e := &StoreElementRefExpr{Path: path}
	initExpr(e, KindStoreElementRef, nil, v, base)
	return e
}

func (e *StoreElementRefExpr) String() string {
	return fmt.Sprintf("StoreElementRef(%s, %s, %v)", e.Stored(), e.Base(), e.Path)
}

// GetFieldExpr reads a named field of a class or struct object.
type GetFieldExpr struct {
	exprBase
	Field string
}

// Object returns the receiver operand.
func (e *GetFieldExpr) Object() Value { return e.operands[0] }

// NewGetField creates a named field read.
func NewGetField(c *TypeContext, obj Value, field string) *GetFieldExpr {
	ty := fieldTypeByName(c, obj.Type(), field)
	e := &GetFieldExpr{Field: field}
	initExpr(e, KindGetField, ty, obj)
	return e
}

func (e *GetFieldExpr) String() string {
	return fmt.Sprintf("%s = GetField(%s, %q)", e.result, e.Object(), e.Field)
}

// StoreFieldExpr writes a named field of a class or struct object.
type StoreFieldExpr struct {
	exprBase
	Field string
}

// Stored returns the stored value operand.
func (e *StoreFieldExpr) Stored() Value { return e.operands[0] }

// Object returns the receiver operand.
func (e *StoreFieldExpr) Object() Value { return e.operands[1] }

// NewStoreField creates a named field write.
func NewStoreField(c *TypeContext, v, obj Value, field string) *StoreFieldExpr {
	fieldTypeByName(c, obj.Type(), field)
	e := &StoreFieldExpr{Field: field}
	initExpr(e, KindStoreField, nil, v, obj)
	return e
}

func (e *StoreFieldExpr) String() string {
	return fmt.Sprintf("StoreField(%s, %s, %q)", e.Stored(), e.Object(), e.Field)
}

// Calls.

// ApplyExpr is a direct call: the callee operand is a FuncBase or any value
// of function type. ThisType carries the receiver's static type for calls
// through function-typed variables; later lowering resolves dispatch from it.
type ApplyExpr struct {
	exprBase
	ThisType Type
}

// Callee returns the called value.
func (e *ApplyExpr) Callee() Value { return e.operands[0] }

// Args returns the argument operands.
func (e *ApplyExpr) Args() []Value { return e.operands[1:] }

// NewApply creates a direct call of callee with args.
func NewApply(callee Value, args ...Value) *ApplyExpr {
	sig := funcSigOf(callee)
	e := &ApplyExpr{}
	initExpr(e, KindApply, sig.Return, prepend(callee, args)...)
	return e
}

// InvokeExpr is a virtual call through the vtable that the receiver's class
// maintains for Parent, at slot Offset.
type InvokeExpr struct {
	exprBase
	Parent Type
	Offset int
}

// Receiver returns the dispatched-on operand.
func (e *InvokeExpr) Receiver() Value { return e.operands[0] }

// Args returns the argument operands.
func (e *InvokeExpr) Args() []Value { return e.operands[1:] }

// NewInvoke creates a virtual call dispatched through parent's table.
func NewInvoke(c *TypeContext, parent Type, offset int, recv Value, args ...Value) *InvokeExpr {
	e := &InvokeExpr{Parent: parent, Offset: offset}
	initExpr(e, KindInvoke, slotReturnType(c, parent, offset), prepend(recv, args)...)
	return e
}

func (e *InvokeExpr) String() string {
	return fmt.Sprintf("%s = Invoke(%s, %s[%d], %s)",
		e.result, e.Receiver(), e.Parent, e.Offset, joinValues(e.Args()))
}

// InvokeStaticExpr is a static dispatch resolved through a runtime type
// handle, used for calls on still-generic receivers. The first operand is the
// RTTI value.
type InvokeStaticExpr struct {
	exprBase
	Parent Type
	Method string
	Offset int
}

// RTTI returns the runtime type handle operand.
func (e *InvokeStaticExpr) RTTI() Value { return e.operands[0] }

// Args returns the argument operands.
func (e *InvokeStaticExpr) Args() []Value { return e.operands[1:] }

// NewInvokeStatic creates an RTTI-dispatched static call.
func NewInvokeStatic(c *TypeContext, parent Type, method string, offset int, rtti Value, args ...Value) *InvokeStaticExpr {
	e := &InvokeStaticExpr{Parent: parent, Method: method, Offset: offset}
	initExpr(e, KindInvokeStatic, slotReturnType(c, parent, offset), prepend(rtti, args)...)
	return e
}

// Arithmetic.

// UnaryOp enumerates unary arithmetic operators.
type UnaryOp int

const (
	UnaryNeg UnaryOp = iota
	UnaryNot
	UnaryBitNot
)

func (op UnaryOp) String() string {
	switch op {
	case UnaryNeg:
		return "neg"
	case UnaryNot:
		return "not"
	case UnaryBitNot:
		return "bitnot"
	default:
		return "unop?"
	}
}

// BinaryOp enumerates binary arithmetic and comparison operators.
type BinaryOp int

const (
	BinAdd BinaryOp = iota
	BinSub
	BinMul
	BinDiv
	BinMod
	BinAnd
	BinOr
	BinXor
	BinShl
	BinShr
	BinEq
	BinNe
	BinLt
	BinLe
	BinGt
	BinGe
)

var binaryOpNames = map[BinaryOp]string{
	BinAdd: "add", BinSub: "sub", BinMul: "mul", BinDiv: "div", BinMod: "mod",
	BinAnd: "and", BinOr: "or", BinXor: "xor", BinShl: "shl", BinShr: "shr",
	BinEq: "eq", BinNe: "ne", BinLt: "lt", BinLe: "le", BinGt: "gt", BinGe: "ge",
}

func (op BinaryOp) String() string {
	if name, ok := binaryOpNames[op]; ok {
		return name
	}
	return "binop?"
}

// IsComparison reports whether the operator yields Bool.
func (op BinaryOp) IsComparison() bool { return op >= BinEq }

// OverflowStrategy selects the behavior of integer arithmetic at the limits
// of its type. The upstream translator validates the strategy against the
// declared semantics of each operation; CHIR does not re-derive it.
type OverflowStrategy int

const (
	OverflowNone OverflowStrategy = iota
	OverflowChecked
	OverflowWrapping
	OverflowThrowing
	OverflowSaturating
)

func (s OverflowStrategy) String() string {
	switch s {
	case OverflowNone:
		return "none"
	case OverflowChecked:
		return "checked"
	case OverflowWrapping:
		return "wrapping"
	case OverflowThrowing:
		return "throwing"
	case OverflowSaturating:
		return "saturating"
	default:
		return "overflow?"
	}
}

// UnaryExpr is a unary arithmetic operation.
type UnaryExpr struct {
	exprBase
	Op       UnaryOp
	Strategy OverflowStrategy
}

// Operand returns the single operand.
func (e *UnaryExpr) Operand() Value { return e.operands[0] }

// NewUnary creates a unary operation; the result has the operand's type.
func NewUnary(op UnaryOp, strategy OverflowStrategy, v Value) *UnaryExpr {
	e := &UnaryExpr{Op: op, Strategy: strategy}
	initExpr(e, KindUnary, v.Type(), v)
	return e
}

func (e *UnaryExpr) String() string {
	return fmt.Sprintf("%s = Unary[%s,%s](%s)", e.result, e.Op, e.Strategy, e.Operand())
}

// BinaryExpr is a binary arithmetic or comparison operation.
type BinaryExpr struct {
	exprBase
	Op       BinaryOp
	Strategy OverflowStrategy
}

// LHS returns the left operand.
func (e *BinaryExpr) LHS() Value { return e.operands[0] }

// RHS returns the right operand.
func (e *BinaryExpr) RHS() Value { return e.operands[1] }

// NewBinary creates a binary operation. Comparisons produce Bool; everything
// else produces the left operand's type.
func NewBinary(c *TypeContext, op BinaryOp, strategy OverflowStrategy, lhs, rhs Value) *BinaryExpr {
	resultTy := lhs.Type()
	if op.IsComparison() {
		resultTy = c.Bool()
	}
	e := &BinaryExpr{Op: op, Strategy: strategy}
	initExpr(e, KindBinary, resultTy, lhs, rhs)
	return e
}

func (e *BinaryExpr) String() string {
	return fmt.Sprintf("%s = Binary[%s,%s](%s, %s)", e.result, e.Op, e.Strategy, e.LHS(), e.RHS())
}

// Type operations.

// TypeCastExpr converts a value to Target, trapping at runtime when the
// dynamic type does not conform.
type TypeCastExpr struct {
	exprBase
	Target Type
}

// Operand returns the cast value.
func (e *TypeCastExpr) Operand() Value { return e.operands[0] }

// NewTypeCast creates a checked cast to target.
func NewTypeCast(target Type, v Value) *TypeCastExpr {
	e := &TypeCastExpr{Target: target}
	initExpr(e, KindTypeCast, target, v)
	return e
}

func (e *TypeCastExpr) String() string {
	return fmt.Sprintf("%s = TypeCast(%s, %s)", e.result, e.Operand(), e.Target)
}

// InstanceOfExpr tests whether a value's dynamic type conforms to Target.
type InstanceOfExpr struct {
	exprBase
	Target Type
}

// Operand returns the tested value.
func (e *InstanceOfExpr) Operand() Value { return e.operands[0] }

// NewInstanceOf creates a dynamic type test.
func NewInstanceOf(c *TypeContext, target Type, v Value) *InstanceOfExpr {
	e := &InstanceOfExpr{Target: target}
	initExpr(e, KindInstanceOf, c.Bool(), v)
	return e
}

func (e *InstanceOfExpr) String() string {
	return fmt.Sprintf("%s = InstanceOf(%s, %s)", e.result, e.Operand(), e.Target)
}

// BoxValueExpr moves a value into a fresh heap cell.
type BoxValueExpr struct {
	exprBase
}

// Operand returns the boxed value.
func (e *BoxValueExpr) Operand() Value { return e.operands[0] }

// NewBoxValue creates a boxing operation.
func NewBoxValue(c *TypeContext, v Value) *BoxValueExpr {
	e := &BoxValueExpr{}
	initExpr(e, KindBox, c.Box(v.Type()), v)
	return e
}

// UnBoxExpr reads the value out of a heap cell.
type UnBoxExpr struct {
	exprBase
}

// Operand returns the Box operand.
func (e *UnBoxExpr) Operand() Value { return e.operands[0] }

// NewUnBox creates an unboxing operation.
func NewUnBox(v Value) *UnBoxExpr {
	box, ok := v.Type().(*BoxType)
	if !ok {
		panic(fmt.Sprintf("chir: UnBox operand must be a Box, got %s", v.Type()))
	}
	e := &UnBoxExpr{}
	initExpr(e, KindUnBox, box.Base, v)
	return e
}

// TransformToGenericExpr reinterprets a concrete value at a generic type,
// used when passing arguments into still-generic code.
type TransformToGenericExpr struct {
	exprBase
	Target Type
}

// Operand returns the transformed value.
func (e *TransformToGenericExpr) Operand() Value { return e.operands[0] }

// NewTransformToGeneric creates a concrete-to-generic transformation.
func NewTransformToGeneric(target Type, v Value) *TransformToGenericExpr {
	e := &TransformToGenericExpr{Target: target}
	initExpr(e, KindTransformToGeneric, target, v)
	return e
}

// TransformToConcreteExpr reinterprets a generic value at its instantiated
// concrete type.
type TransformToConcreteExpr struct {
	exprBase
	Target Type
}

// Operand returns the transformed value.
func (e *TransformToConcreteExpr) Operand() Value { return e.operands[0] }

// NewTransformToConcrete creates a generic-to-concrete transformation.
func NewTransformToConcrete(target Type, v Value) *TransformToConcreteExpr {
	e := &TransformToConcreteExpr{Target: target}
	initExpr(e, KindTransformToConcrete, target, v)
	return e
}

// RTTI handles are modeled as CPointer<Unit> values.

// GetRTTIExpr reads the runtime type handle of a value.
type GetRTTIExpr struct {
	exprBase
}

// Operand returns the inspected value.
func (e *GetRTTIExpr) Operand() Value { return e.operands[0] }

// NewGetRTTI creates a dynamic type-handle read.
func NewGetRTTI(c *TypeContext, v Value) *GetRTTIExpr {
	e := &GetRTTIExpr{}
	initExpr(e, KindGetRTTI, c.Pointer(c.Unit()), v)
	return e
}

// GetRTTIStaticExpr materializes the type handle of a statically known type.
type GetRTTIStaticExpr struct {
	exprBase
	Of Type
}

// NewGetRTTIStatic creates a static type-handle constant.
func NewGetRTTIStatic(c *TypeContext, of Type) *GetRTTIStaticExpr {
	e := &GetRTTIStaticExpr{Of: of}
	initExpr(e, KindGetRTTIStatic, c.Pointer(c.Unit()))
	return e
}

func (e *GetRTTIStaticExpr) String() string {
	return fmt.Sprintf("%s = GetRTTIStatic(%s)", e.result, e.Of)
}

// SpawnExpr starts a concurrent task running the given closure value.
type SpawnExpr struct {
	exprBase
}

// Task returns the spawned closure operand.
func (e *SpawnExpr) Task() Value { return e.operands[0] }

// NewSpawn creates a task spawn.
func NewSpawn(c *TypeContext, task Value) *SpawnExpr {
	e := &SpawnExpr{}
	initExpr(e, KindSpawn, c.Unit(), task)
	return e
}

// IntrinsicKind enumerates builtin operations that have no surface syntax.
type IntrinsicKind int

const (
	IntrinsicArrayGet IntrinsicKind = iota
	IntrinsicArraySet
	IntrinsicArraySize
	IntrinsicRefEq
)

func (k IntrinsicKind) String() string {
	switch k {
	case IntrinsicArrayGet:
		return "array.get"
	case IntrinsicArraySet:
		return "array.set"
	case IntrinsicArraySize:
		return "array.size"
	case IntrinsicRefEq:
		return "ref.eq"
	default:
		return "intrinsic?"
	}
}

// IntrinsicExpr is a builtin operation.
type IntrinsicExpr struct {
	exprBase
	Op IntrinsicKind
}

// NewIntrinsic creates a builtin operation with an explicit result type;
// resultTy may be nil for effect-only intrinsics.
func NewIntrinsic(op IntrinsicKind, resultTy Type, args ...Value) *IntrinsicExpr {
	e := &IntrinsicExpr{Op: op}
	initExpr(e, KindIntrinsic, resultTy, args...)
	return e
}

func (e *IntrinsicExpr) String() string {
	s := fmt.Sprintf("Intrinsic[%s](%s)", e.Op, joinValues(e.operands))
	if e.result != nil {
		s = e.result.String() + " = " + s
	}
	return s
}

// Aggregate construction.

// TupleValueExpr builds a tuple from element values.
type TupleValueExpr struct {
	exprBase
}

// NewTupleValue creates a tuple construction.
func NewTupleValue(c *TypeContext, elems ...Value) *TupleValueExpr {
	types := make([]Type, len(elems))
	for i, v := range elems {
		types[i] = v.Type()
	}
	e := &TupleValueExpr{}
	initExpr(e, KindTuple, c.Tuple(types...), elems...)
	return e
}

// VArrayValueExpr builds a fixed-length array from element values.
type VArrayValueExpr struct {
	exprBase
	Elem Type
}

// NewVArrayValue creates a fixed-length array construction.
func NewVArrayValue(c *TypeContext, elem Type, elems ...Value) *VArrayValueExpr {
	e := &VArrayValueExpr{Elem: elem}
	initExpr(e, KindVArray, c.VArray(elem, int64(len(elems))), elems...)
	return e
}

// RawArrayValueExpr allocates a heap array of a runtime size.
type RawArrayValueExpr struct {
	exprBase
	Elem Type
}

// Size returns the element-count operand.
func (e *RawArrayValueExpr) Size() Value { return e.operands[0] }

// NewRawArrayValue creates a heap array allocation.
func NewRawArrayValue(c *TypeContext, elem Type, size Value) *RawArrayValueExpr {
	e := &RawArrayValueExpr{Elem: elem}
	initExpr(e, KindRawArray, c.RawArray(elem), size)
	return e
}

// LambdaExpr is a nested function with its body inline, present only before
// closure conversion. The operands are the captured outer values, in
// declaration order; Fn is not registered with the Package.
type LambdaExpr struct {
	exprBase
	Fn *Func
}

// Captured returns the captured outer values.
func (e *LambdaExpr) Captured() []Value { return e.operands }

// NewLambda creates a nested function expression capturing the given values.
func NewLambda(fn *Func, captured ...Value) *LambdaExpr {
	e := &LambdaExpr{Fn: fn}
	initExpr(e, KindLambda, fn.Sig, captured...)
	return e
}

func (e *LambdaExpr) String() string {
	return fmt.Sprintf("%s = Lambda(%s, captures: %s)", e.result, e.Fn.Name, joinValues(e.operands))
}

// Terminators.

// GoToExpr transfers control unconditionally.
type GoToExpr struct {
	exprBase
	target *Block
}

// NewGoTo creates an unconditional jump.
func NewGoTo(target *Block) *GoToExpr {
	e := &GoToExpr{target: target}
	initExpr(e, KindGoTo, nil)
	return e
}

// Target returns the jump destination.
func (e *GoToExpr) Target() *Block { return e.target }

func (e *GoToExpr) Successors() []*Block { return []*Block{e.target} }

func (e *GoToExpr) ReplaceSuccessor(old, repl *Block) {
	if e.target == old {
		e.target = repl
	}
}

func (e *GoToExpr) String() string { return fmt.Sprintf("GoTo(%s)", e.target.Name) }

// BranchExpr transfers control on a Bool condition.
type BranchExpr struct {
	exprBase
	trueBlock  *Block
	falseBlock *Block
}

// NewBranch creates a two-way conditional branch.
func NewBranch(cond Value, trueBlock, falseBlock *Block) *BranchExpr {
	e := &BranchExpr{trueBlock: trueBlock, falseBlock: falseBlock}
	initExpr(e, KindBranch, nil, cond)
	return e
}

// Cond returns the branch condition.
func (e *BranchExpr) Cond() Value { return e.operands[0] }

// True returns the taken-on-true block.
func (e *BranchExpr) True() *Block { return e.trueBlock }

// False returns the taken-on-false block.
func (e *BranchExpr) False() *Block { return e.falseBlock }

func (e *BranchExpr) Successors() []*Block { return []*Block{e.trueBlock, e.falseBlock} }

func (e *BranchExpr) ReplaceSuccessor(old, repl *Block) {
	if e.trueBlock == old {
		e.trueBlock = repl
	}
	if e.falseBlock == old {
		e.falseBlock = repl
	}
}

func (e *BranchExpr) String() string {
	return fmt.Sprintf("Branch(%s, %s, %s)", e.Cond(), e.trueBlock.Name, e.falseBlock.Name)
}

// MultiBranchExpr transfers control by matching an integer selector against
// case values, falling through to Default.
type MultiBranchExpr struct {
	exprBase
	Cases   []int64
	targets []*Block
	deflt   *Block
}

// NewMultiBranch creates a multi-way branch; cases and targets run parallel.
func NewMultiBranch(selector Value, cases []int64, targets []*Block, deflt *Block) *MultiBranchExpr {
	if len(cases) != len(targets) {
		panic(fmt.Sprintf("chir: MultiBranch has %d cases but %d targets", len(cases), len(targets)))
	}
	e := &MultiBranchExpr{Cases: cases, targets: targets, deflt: deflt}
	initExpr(e, KindMultiBranch, nil, selector)
	return e
}

// Selector returns the matched value.
func (e *MultiBranchExpr) Selector() Value { return e.operands[0] }

// Default returns the fallthrough block.
func (e *MultiBranchExpr) Default() *Block { return e.deflt }

// Targets returns the case destination blocks.
func (e *MultiBranchExpr) Targets() []*Block { return e.targets }

func (e *MultiBranchExpr) Successors() []*Block {
	succs := append([]*Block(nil), e.targets...)
	return append(succs, e.deflt)
}

func (e *MultiBranchExpr) ReplaceSuccessor(old, repl *Block) {
	for i, t := range e.targets {
		if t == old {
			e.targets[i] = repl
		}
	}
	if e.deflt == old {
		e.deflt = repl
	}
}

func (e *MultiBranchExpr) String() string {
	return fmt.Sprintf("MultiBranch(%s, %v, default %s)", e.Selector(), e.Cases, e.deflt.Name)
}

// ExitExpr returns from the function, optionally with a value.
type ExitExpr struct {
	exprBase
}

// NewExit creates a function return; at most one value.
func NewExit(values ...Value) *ExitExpr {
	e := &ExitExpr{}
	initExpr(e, KindExit, nil, values...)
	return e
}

// ReturnValue returns the returned value, or nil.
func (e *ExitExpr) ReturnValue() Value {
	if len(e.operands) == 0 {
		return nil
	}
	return e.operands[0]
}

func (e *ExitExpr) Successors() []*Block { return nil }

func (e *ExitExpr) ReplaceSuccessor(old, repl *Block) {}

// RaiseExceptionExpr raises an exception value. Handler names the in-function
// landing block, or nil when the exception unwinds out of the function.
type RaiseExceptionExpr struct {
	exprBase
	handler *Block
}

// NewRaiseException creates a raise; handler may be nil.
func NewRaiseException(exc Value, handler *Block) *RaiseExceptionExpr {
	e := &RaiseExceptionExpr{handler: handler}
	initExpr(e, KindRaiseException, nil, exc)
	return e
}

// Exception returns the raised value.
func (e *RaiseExceptionExpr) Exception() Value { return e.operands[0] }

// Handler returns the landing block, or nil.
func (e *RaiseExceptionExpr) Handler() *Block { return e.handler }

func (e *RaiseExceptionExpr) Successors() []*Block {
	if e.handler == nil {
		return nil
	}
	return []*Block{e.handler}
}

func (e *RaiseExceptionExpr) ReplaceSuccessor(old, repl *Block) {
	if e.handler == old {
		e.handler = repl
	}
}

func (e *RaiseExceptionExpr) String() string {
	if e.handler == nil {
		return fmt.Sprintf("RaiseException(%s)", e.Exception())
	}
	return fmt.Sprintf("RaiseException(%s, handler %s)", e.Exception(), e.handler.Name)
}

// Calls carrying an exception edge. Each is the terminator form of its plain
// sibling: control continues in the normal block with the result, or in the
// exception block when the callee raises.

// ApplyWithExceptionExpr is a direct call with an exception edge.
type ApplyWithExceptionExpr struct {
	exprBase
	ThisType  Type
	normal    *Block
	exception *Block
}

// NewApplyWithException creates a direct call terminator.
func NewApplyWithException(callee Value, args []Value, normal, exception *Block) *ApplyWithExceptionExpr {
	sig := funcSigOf(callee)
	e := &ApplyWithExceptionExpr{normal: normal, exception: exception}
	initExpr(e, KindApplyWithException, sig.Return, prepend(callee, args)...)
	return e
}

// Callee returns the called value.
func (e *ApplyWithExceptionExpr) Callee() Value { return e.operands[0] }

// Args returns the argument operands.
func (e *ApplyWithExceptionExpr) Args() []Value { return e.operands[1:] }

// Normal returns the no-exception successor.
func (e *ApplyWithExceptionExpr) Normal() *Block { return e.normal }

// Exception returns the exception successor.
func (e *ApplyWithExceptionExpr) Exception() *Block { return e.exception }

func (e *ApplyWithExceptionExpr) Successors() []*Block { return []*Block{e.normal, e.exception} }

func (e *ApplyWithExceptionExpr) ReplaceSuccessor(old, repl *Block) {
	if e.normal == old {
		e.normal = repl
	}
	if e.exception == old {
		e.exception = repl
	}
}

// InvokeWithExceptionExpr is a virtual call with an exception edge.
type InvokeWithExceptionExpr struct {
	exprBase
	Parent    Type
	Offset    int
	normal    *Block
	exception *Block
}

// NewInvokeWithException creates a virtual call terminator.
func NewInvokeWithException(c *TypeContext, parent Type, offset int, recv Value, args []Value, normal, exception *Block) *InvokeWithExceptionExpr {
	e := &InvokeWithExceptionExpr{Parent: parent, Offset: offset, normal: normal, exception: exception}
	initExpr(e, KindInvokeWithException, slotReturnType(c, parent, offset), prepend(recv, args)...)
	return e
}

// Receiver returns the dispatched-on operand.
func (e *InvokeWithExceptionExpr) Receiver() Value { return e.operands[0] }

// Args returns the argument operands.
func (e *InvokeWithExceptionExpr) Args() []Value { return e.operands[1:] }

// Normal returns the no-exception successor.
func (e *InvokeWithExceptionExpr) Normal() *Block { return e.normal }

// Exception returns the exception successor.
func (e *InvokeWithExceptionExpr) Exception() *Block { return e.exception }

func (e *InvokeWithExceptionExpr) Successors() []*Block { return []*Block{e.normal, e.exception} }

func (e *InvokeWithExceptionExpr) ReplaceSuccessor(old, repl *Block) {
	if e.normal == old {
		e.normal = repl
	}
	if e.exception == old {
		e.exception = repl
	}
}

// InvokeStaticWithExceptionExpr is an RTTI-dispatched call with an exception
// edge.
type InvokeStaticWithExceptionExpr struct {
	exprBase
	Parent    Type
	Method    string
	Offset    int
	normal    *Block
	exception *Block
}

// NewInvokeStaticWithException creates an RTTI-dispatched call terminator.
func NewInvokeStaticWithException(c *TypeContext, parent Type, method string, offset int, rtti Value, args []Value, normal, exception *Block) *InvokeStaticWithExceptionExpr {
	e := &InvokeStaticWithExceptionExpr{Parent: parent, Method: method, Offset: offset, normal: normal, exception: exception}
	initExpr(e, KindInvokeStaticWithException, slotReturnType(c, parent, offset), prepend(rtti, args)...)
	return e
}

// RTTI returns the runtime type handle operand.
func (e *InvokeStaticWithExceptionExpr) RTTI() Value { return e.operands[0] }

// Args returns the argument operands.
func (e *InvokeStaticWithExceptionExpr) Args() []Value { return e.operands[1:] }

// Normal returns the no-exception successor.
func (e *InvokeStaticWithExceptionExpr) Normal() *Block { return e.normal }

// Exception returns the exception successor.
func (e *InvokeStaticWithExceptionExpr) Exception() *Block { return e.exception }

func (e *InvokeStaticWithExceptionExpr) Successors() []*Block {
	return []*Block{e.normal, e.exception}
}

func (e *InvokeStaticWithExceptionExpr) ReplaceSuccessor(old, repl *Block) {
	if e.normal == old {
		e.normal = repl
	}
	if e.exception == old {
		e.exception = repl
	}
}

// Helpers.

func prepend(first Value, rest []Value) []Value {
	out := make([]Value, 0, len(rest)+1)
	out = append(out, first)
	return append(out, rest...)
}

func joinValues(values []Value) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = v.String()
	}
	return strings.Join(parts, ", ")
}

func funcSigOf(callee Value) *FuncType {
	sig, ok := callee.Type().(*FuncType)
	if !ok {
		panic(fmt.Sprintf("chir: callee must have function type, got %s", callee.Type()))
	}
	return sig
}

// slotReturnType resolves the declared return type of the vtable slot at
// offset in parent's own table. A missing slot leaves the result Unit typed;
// the verifier reports the dangling reference.
func slotReturnType(c *TypeContext, parent Type, offset int) Type {
	def := DefOf(parent)
	if def == nil {
		return c.Unit()
	}
	slot, ok := def.SlotAt(parent, offset)
	if !ok {
		return c.Unit()
	}
	ret := slot.Sig.Return
	if args := TypeArgsOf(parent); len(args) > 0 {
		ret = c.Instantiate(ret, bindings(def, args))
	}
	return ret
}

// elementTypeByPath resolves the type reached by indexing base (a Ref to an
// aggregate, or a class object) with a constant path.
func elementTypeByPath(c *TypeContext, base Type, path []int) Type {
	cur := StripRef(base)
	for _, idx := range path {
		switch t := cur.(type) {
		case *TupleType:
			if idx < 0 || idx >= len(t.Elems) {
				panic(fmt.Sprintf("chir: tuple index %d out of range for %s", idx, t))
			}
			cur = t.Elems[idx]
		case *VArrayType:
			cur = t.Elem
		case *StructType:
			cur = nominalFieldType(c, t.Def, t.TypeArgs, idx)
		case *ClassType:
			cur = nominalFieldType(c, t.Def, t.TypeArgs, idx)
		case *EnumType:
			cur = nominalFieldType(c, t.Def, t.TypeArgs, idx)
		default:
			panic(fmt.Sprintf("chir: cannot index into %s", cur))
		}
	}
	return cur
}

func nominalFieldType(c *TypeContext, def *CustomTypeDef, args []Type, idx int) Type {
	if idx < 0 || idx >= len(def.Fields) {
		panic(fmt.Sprintf("chir: field index %d out of range for %s", idx, def.Name))
	}
	return c.Instantiate(def.Fields[idx].Type, bindings(def, args))
}

// fieldTypeByName resolves a named field on a class (walking the super
// chain) or struct type.
func fieldTypeByName(c *TypeContext, t Type, name string) Type {
	cur := StripRef(t)
	for cur != nil {
		def := DefOf(cur)
		if def == nil {
			break
		}
		if i := def.FieldIndex(name); i >= 0 {
			return nominalFieldType(c, def, TypeArgsOf(cur), i)
		}
		if cls, ok := cur.(*ClassType); ok {
			cur = classOrNil(c.SuperClassOf(cls))
			continue
		}
		break
	}
	panic(fmt.Sprintf("chir: type %s has no field %q", t, name))
}

func classOrNil(t *ClassType) Type {
	if t == nil {
		return nil
	}
	return t
}
