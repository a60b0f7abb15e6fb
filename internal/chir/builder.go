package chir

import "fmt"

// Builder appends expressions at a movable insertion point, naming results as
// it goes. The upstream translator and the transforms both construct IR
// through it.
type Builder struct {
	pkg          *Package
	fn           *Func
	block        *Block
	valueCounter int
}

// NewBuilder creates a builder over pkg.
func NewBuilder(pkg *Package) *Builder {
	return &Builder{pkg: pkg}
}

// Package returns the package under construction.
func (b *Builder) Package() *Package { return b.pkg }

// Types returns the package's type context.
func (b *Builder) Types() *TypeContext { return b.pkg.Types }

// Func returns the function currently being built.
func (b *Builder) Func() *Func { return b.fn }

// Block returns the current insertion block.
func (b *Builder) Block() *Block { return b.block }

// StartFunc creates a function with an entry block and moves the insertion
// point there.
func (b *Builder) StartFunc(name string, params []*Parameter, ret Type, attrs FuncAttr) *Func {
	fn := b.pkg.NewFunc(name, params, ret, attrs)
	fn.Body = NewBlockGroup()
	b.fn = fn
	b.block = fn.Body.NewBlock("entry")
	b.valueCounter = 0
	return fn
}

// EnterFunc moves the insertion point to an existing function's entry block.
func (b *Builder) EnterFunc(fn *Func) {
	b.fn = fn
	b.block = fn.Body.Entry
}

// NewBlock creates a block in the current function without moving the
// insertion point.
func (b *Builder) NewBlock(name string) *Block {
	return b.fn.Body.NewBlock(name)
}

// SetInsertPoint moves the insertion point to the end of blk.
func (b *Builder) SetInsertPoint(blk *Block) {
	b.block = blk
}

func (b *Builder) emit(e Expr) {
	if b.block == nil {
		panic("chir: builder has no insertion block")
	}
	b.block.Append(e)
	b.nameResult(e)
}

func (b *Builder) emitTerm(t Terminator) {
	if b.block == nil {
		panic("chir: builder has no insertion block")
	}
	b.block.SetTerm(t)
	b.nameResult(t)
}

func (b *Builder) nameResult(e Expr) {
	if r := e.Result(); r != nil && r.Name() == "" {
		r.SetName(fmt.Sprintf("%d", b.valueCounter))
		b.valueCounter++
	}
}

// Allocate emits an allocation of t.
func (b *Builder) Allocate(t Type) *AllocateExpr {
	e := NewAllocate(b.Types(), t)
	b.emit(e)
	return e
}

// Load emits a load from loc.
func (b *Builder) Load(loc Value) *LoadExpr {
	e := NewLoad(loc)
	b.emit(e)
	return e
}

// Store emits a store of v into loc.
func (b *Builder) Store(v, loc Value) *StoreExpr {
	e := NewStore(v, loc)
	b.emit(e)
	return e
}

// GetElementRef emits an element projection.
func (b *Builder) GetElementRef(base Value, path ...int) *GetElementRefExpr {
	e := NewGetElementRef(b.Types(), base, path...)
	b.emit(e)
	return e
}

// StoreElementRef emits an element store.
func (b *Builder) StoreElementRef(v, base Value, path ...int) *StoreElementRefExpr {
	e := NewStoreElementRef(b.Types(), v, base, path...)
	b.emit(e)
	return e
}

// GetField emits a named field read.
func (b *Builder) GetField(obj Value, field string) *GetFieldExpr {
	e := NewGetField(b.Types(), obj, field)
	b.emit(e)
	return e
}

// StoreField emits a named field write.
func (b *Builder) StoreField(v, obj Value, field string) *StoreFieldExpr {
	e := NewStoreField(b.Types(), v, obj, field)
	b.emit(e)
	return e
}

// Apply emits a direct call.
func (b *Builder) Apply(callee Value, args ...Value) *ApplyExpr {
	e := NewApply(callee, args...)
	b.emit(e)
	return e
}

// Invoke emits a virtual call.
func (b *Builder) Invoke(parent Type, offset int, recv Value, args ...Value) *InvokeExpr {
	e := NewInvoke(b.Types(), parent, offset, recv, args...)
	b.emit(e)
	return e
}

// InvokeStatic emits an RTTI-dispatched call.
func (b *Builder) InvokeStatic(parent Type, method string, offset int, rtti Value, args ...Value) *InvokeStaticExpr {
	e := NewInvokeStatic(b.Types(), parent, method, offset, rtti, args...)
	b.emit(e)
	return e
}

// Unary emits a unary operation.
func (b *Builder) Unary(op UnaryOp, strategy OverflowStrategy, v Value) *UnaryExpr {
	e := NewUnary(op, strategy, v)
	b.emit(e)
	return e
}

// Binary emits a binary operation.
func (b *Builder) Binary(op BinaryOp, strategy OverflowStrategy, lhs, rhs Value) *BinaryExpr {
	e := NewBinary(b.Types(), op, strategy, lhs, rhs)
	b.emit(e)
	return e
}

// TypeCast emits a checked cast.
func (b *Builder) TypeCast(target Type, v Value) *TypeCastExpr {
	e := NewTypeCast(target, v)
	b.emit(e)
	return e
}

// InstanceOf emits a dynamic type test.
func (b *Builder) InstanceOf(target Type, v Value) *InstanceOfExpr {
	e := NewInstanceOf(b.Types(), target, v)
	b.emit(e)
	return e
}

// BoxValue emits a boxing operation.
func (b *Builder) BoxValue(v Value) *BoxValueExpr {
	e := NewBoxValue(b.Types(), v)
	b.emit(e)
	return e
}

// UnBox emits an unboxing operation.
func (b *Builder) UnBox(v Value) *UnBoxExpr {
	e := NewUnBox(v)
	b.emit(e)
	return e
}

// TransformToGeneric emits a concrete-to-generic transformation.
func (b *Builder) TransformToGeneric(target Type, v Value) *TransformToGenericExpr {
	e := NewTransformToGeneric(target, v)
	b.emit(e)
	return e
}

// TransformToConcrete emits a generic-to-concrete transformation.
func (b *Builder) TransformToConcrete(target Type, v Value) *TransformToConcreteExpr {
	e := NewTransformToConcrete(target, v)
	b.emit(e)
	return e
}

// GetRTTI emits a dynamic type-handle read.
func (b *Builder) GetRTTI(v Value) *GetRTTIExpr {
	e := NewGetRTTI(b.Types(), v)
	b.emit(e)
	return e
}

// GetRTTIStatic emits a static type-handle constant.
func (b *Builder) GetRTTIStatic(of Type) *GetRTTIStaticExpr {
	e := NewGetRTTIStatic(b.Types(), of)
	b.emit(e)
	return e
}

// Spawn emits a task spawn.
func (b *Builder) Spawn(task Value) *SpawnExpr {
	e := NewSpawn(b.Types(), task)
	b.emit(e)
	return e
}

// Intrinsic emits a builtin operation.
func (b *Builder) Intrinsic(op IntrinsicKind, resultTy Type, args ...Value) *IntrinsicExpr {
	e := NewIntrinsic(op, resultTy, args...)
	b.emit(e)
	return e
}

// TupleValue emits a tuple construction.
func (b *Builder) TupleValue(elems ...Value) *TupleValueExpr {
	e := NewTupleValue(b.Types(), elems...)
	b.emit(e)
	return e
}

// VArrayValue emits a fixed-length array construction.
func (b *Builder) VArrayValue(elem Type, elems ...Value) *VArrayValueExpr {
	e := NewVArrayValue(b.Types(), elem, elems...)
	b.emit(e)
	return e
}

// RawArrayValue emits a heap array allocation.
func (b *Builder) RawArrayValue(elem Type, size Value) *RawArrayValueExpr {
	e := NewRawArrayValue(b.Types(), elem, size)
	b.emit(e)
	return e
}

// Lambda emits a nested function expression.
func (b *Builder) Lambda(fn *Func, captured ...Value) *LambdaExpr {
	e := NewLambda(fn, captured...)
	b.emit(e)
	return e
}

// GoTo emits an unconditional jump terminator.
func (b *Builder) GoTo(target *Block) *GoToExpr {
	e := NewGoTo(target)
	b.emitTerm(e)
	return e
}

// Branch emits a conditional branch terminator.
func (b *Builder) Branch(cond Value, trueBlock, falseBlock *Block) *BranchExpr {
	e := NewBranch(cond, trueBlock, falseBlock)
	b.emitTerm(e)
	return e
}

// MultiBranch emits a multi-way branch terminator.
func (b *Builder) MultiBranch(selector Value, cases []int64, targets []*Block, deflt *Block) *MultiBranchExpr {
	e := NewMultiBranch(selector, cases, targets, deflt)
	b.emitTerm(e)
	return e
}

// Exit emits a return terminator.
func (b *Builder) Exit(values ...Value) *ExitExpr {
	e := NewExit(values...)
	b.emitTerm(e)
	return e
}

// RaiseException emits a raise terminator.
func (b *Builder) RaiseException(exc Value, handler *Block) *RaiseExceptionExpr {
	e := NewRaiseException(exc, handler)
	b.emitTerm(e)
	return e
}

// ApplyWithException emits a direct call terminator with an exception edge.
func (b *Builder) ApplyWithException(callee Value, args []Value, normal, exception *Block) *ApplyWithExceptionExpr {
	e := NewApplyWithException(callee, args, normal, exception)
	b.emitTerm(e)
	return e
}

// InvokeWithException emits a virtual call terminator with an exception edge.
func (b *Builder) InvokeWithException(parent Type, offset int, recv Value, args []Value, normal, exception *Block) *InvokeWithExceptionExpr {
	e := NewInvokeWithException(b.Types(), parent, offset, recv, args, normal, exception)
	b.emitTerm(e)
	return e
}

// InvokeStaticWithException emits an RTTI-dispatched call terminator with an
// exception edge.
func (b *Builder) InvokeStaticWithException(parent Type, method string, offset int, rtti Value, args []Value, normal, exception *Block) *InvokeStaticWithExceptionExpr {
	e := NewInvokeStaticWithException(b.Types(), parent, method, offset, rtti, args, normal, exception)
	b.emitTerm(e)
	return e
}
