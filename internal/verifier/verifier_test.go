package verifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chir/internal/chir"
	"chir/internal/errors"
)

func codesOf(violations []errors.Violation) map[string]int {
	out := make(map[string]int)
	for _, v := range violations {
		out[v.Code]++
	}
	return out
}

// brokenPackage builds a package with four independent violations: an empty
// block, a dangling vtable slot, a type-mismatched store and a duplicate
// top-level name.
func brokenPackage(t *testing.T) *chir.Package {
	t.Helper()
	pkg := chir.NewPackage("broken")
	ctx := pkg.Types
	b := chir.NewBuilder(pkg)

	baseDef := pkg.NewDef(chir.DefClass, "Base")
	base := ctx.Class(baseDef)
	baseDef.SetVTable(base, []chir.MethodSlot{
		{Name: "m", Sig: ctx.Func([]chir.Type{base}, ctx.Unit())},
	})

	recv := pkg.NewParameter("r", base)
	b.StartFunc("main", []*chir.Parameter{recv}, ctx.Unit(), 0)
	cell := b.Allocate(ctx.Int64())
	b.Store(chir.NewBoolLiteral(ctx.Bool(), true), cell.Result())
	b.Invoke(base, 5, recv)
	b.Exit()
	b.NewBlock("dead")

	pkg.NewFunc("dup", nil, ctx.Unit(), 0)
	pkg.NewFunc("dup", nil, ctx.Unit(), 0)
	return pkg
}

func TestVerifierReportsEveryViolation(t *testing.T) {
	pkg := brokenPackage(t)

	violations := Default().Run(pkg)
	require.Len(t, violations, 4, "one run must surface all independent violations")

	codes := codesOf(violations)
	assert.Equal(t, 1, codes[errors.ViolationEmptyBlock])
	assert.Equal(t, 1, codes[errors.ViolationVTableSlot])
	assert.Equal(t, 1, codes[errors.ViolationStoreType])
	assert.Equal(t, 1, codes[errors.ViolationDuplicateName])
}

func TestVerifierParallelMatchesSerial(t *testing.T) {
	pkg := brokenPackage(t)

	serial := New(NonEmptyBlocks{}, ExprArity{}, TypeCompat{}, VTableRefs{}, ReachableRefs{}, UniqueIdents{})
	serial.Workers = 1
	parallel := Default()
	parallel.Workers = 8

	assert.Equal(t, codesOf(serial.Run(pkg)), codesOf(parallel.Run(pkg)))
}

func TestVerifierRuleSubset(t *testing.T) {
	pkg := brokenPackage(t)

	only := New(UniqueIdents{}).Run(pkg)
	require.Len(t, only, 1)
	assert.Equal(t, errors.ViolationDuplicateName, only[0].Code)
}

func TestVerifierAcceptsWellFormedPackage(t *testing.T) {
	pkg := chir.NewPackage("clean")
	ctx := pkg.Types
	b := chir.NewBuilder(pkg)

	x := pkg.NewParameter("x", ctx.Int64())
	b.StartFunc("double", []*chir.Parameter{x}, ctx.Int64(), 0)
	sum := b.Binary(chir.BinAdd, chir.OverflowWrapping, x, x)
	b.Exit(sum.Result())

	assert.Empty(t, Default().Run(pkg))
}

func TestTypeCompatAllowsSubclassFlow(t *testing.T) {
	pkg := chir.NewPackage("subs")
	ctx := pkg.Types
	b := chir.NewBuilder(pkg)

	baseDef := pkg.NewDef(chir.DefClass, "Base")
	base := ctx.Class(baseDef)
	derivedDef := pkg.NewDef(chir.DefClass, "Derived")
	derivedDef.Super = base
	derived := ctx.Class(derivedDef)

	b.StartFunc("up", nil, ctx.Unit(), 0)
	obj := b.Allocate(derived)
	cell := b.Allocate(ctx.Ref(base))
	b.Store(obj.Result(), cell.Result())
	b.Exit()

	assert.Empty(t, Default().Run(pkg))
}

func TestTypeCompatFlagsNonFunctionCallee(t *testing.T) {
	pkg := chir.NewPackage("badcall")
	ctx := pkg.Types
	b := chir.NewBuilder(pkg)
	sig := ctx.Func(nil, ctx.Int64())

	f := pkg.NewParameter("f", sig)
	b.StartFunc("caller", []*chir.Parameter{f}, ctx.Int64(), 0)
	call := b.Apply(f)
	b.Exit(call.Result())

	g := pkg.NewParameter("g", sig)
	b.StartFunc("thrower", []*chir.Parameter{g}, ctx.Int64(), 0)
	normal := b.NewBlock("normal")
	handler := b.NewBlock("handler")
	tcall := b.ApplyWithException(g, nil, normal, handler)
	b.SetInsertPoint(normal)
	b.Exit(tcall.Result())
	b.SetInsertPoint(handler)
	b.Exit(chir.NewIntLiteral(ctx.Int64(), 0))

	// A careless retyping can leave a direct call of a non-function value.
	f.SetType(ctx.Int64())
	g.SetType(ctx.Int64())

	violations := New(TypeCompat{}).Run(pkg)
	require.Len(t, violations, 2)
	codes := codesOf(violations)
	assert.Equal(t, 2, codes[errors.ViolationCalleeType])
}

func TestReachableRefsFlagsDanglingOperand(t *testing.T) {
	pkg := chir.NewPackage("dangling")
	ctx := pkg.Types
	b := chir.NewBuilder(pkg)

	b.StartFunc("f", nil, ctx.Int64(), 0)
	entry := b.Block()
	orphan := b.NewBlock("orphan")

	b.SetInsertPoint(orphan)
	val := b.Binary(chir.BinAdd, chir.OverflowWrapping,
		chir.NewIntLiteral(ctx.Int64(), 1), chir.NewIntLiteral(ctx.Int64(), 2))
	b.Exit(val.Result())

	// The entry consumes a value defined only in the unreachable block.
	b.SetInsertPoint(entry)
	b.Exit(val.Result())

	violations := New(ReachableRefs{}).Run(pkg)
	require.Len(t, violations, 1)
	assert.Equal(t, errors.ViolationUnreachableRef, violations[0].Code)
}
