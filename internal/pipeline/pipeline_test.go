package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chir/internal/chir"
)

// samplePackage exercises all default passes: a devirtualizable call, a pair
// of redundant loads and a lambda.
func samplePackage(t *testing.T) *chir.Package {
	t.Helper()
	pkg := chir.NewPackage("sample")
	ctx := pkg.Types
	i64 := ctx.Int64()
	b := chir.NewBuilder(pkg)

	baseDef := pkg.NewDef(chir.DefClass, "Base")
	base := ctx.Class(baseDef)
	derivedDef := pkg.NewDef(chir.DefClass, "Derived")
	derivedDef.Super = base
	derived := ctx.Class(derivedDef)

	sig := ctx.Func([]chir.Type{base}, i64)
	this := pkg.NewThisParameter(base)
	baseM := pkg.NewFunc("Base.m", []*chir.Parameter{this}, i64, 0)
	thisD := pkg.NewThisParameter(base)
	derivedM := pkg.NewFunc("Derived.m", []*chir.Parameter{thisD}, i64, 0)
	baseDef.SetVTable(base, []chir.MethodSlot{{Name: "m", Sig: sig, Impl: baseM}})
	derivedDef.SetVTable(base, []chir.MethodSlot{{Name: "m", Sig: sig, Impl: derivedM}})

	b.StartFunc("main", nil, i64, 0)
	obj := b.Allocate(derived)
	call := b.Invoke(base, 0, obj.Result())
	cell := b.Allocate(i64)
	b.Store(call.Result(), cell.Result())
	first := b.Load(cell.Result())
	second := b.Load(cell.Result())
	sum := b.Binary(chir.BinAdd, chir.OverflowWrapping, first.Result(), second.Result())
	b.Exit(sum.Result())

	inner := b.StartFunc("inner", nil, i64, 0)
	b.Exit(chir.NewIntLiteral(i64, 7))
	pkg.RemoveFunc(inner)

	b.StartFunc("mk", nil, i64, 0)
	lam := b.Lambda(inner)
	res := b.Apply(lam.Result())
	b.Exit(res.Result())

	return pkg
}

func TestPipelineRunsAllPasses(t *testing.T) {
	pkg := samplePackage(t)

	require.NoError(t, New().Run(pkg))

	main := pkg.FuncByName("main")
	require.NotNil(t, main)
	for _, e := range main.Body.Entry.Exprs {
		_, isInvoke := e.(*chir.InvokeExpr)
		assert.False(t, isInvoke, "the exact-receiver call should be direct")
		_, isLoad := e.(*chir.LoadExpr)
		assert.False(t, isLoad, "loads reached by a store should be gone")
	}
	for _, fn := range pkg.Funcs {
		if fn.Body == nil {
			continue
		}
		assert.Empty(t, chir.LambdasIn(fn.Body))
	}
}

func TestPipelineRejectsBrokenInput(t *testing.T) {
	pkg := chir.NewPackage("broken")
	ctx := pkg.Types
	pkg.NewFunc("dup", nil, ctx.Unit(), 0)
	pkg.NewFunc("dup", nil, ctx.Unit(), 0)

	err := New().Run(pkg)
	require.Error(t, err)

	var verr *VerificationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "input", verr.Pass)
	assert.Len(t, verr.Violations, 1)
	assert.Contains(t, verr.Report(), "dup")
}

func TestResolveBuildOrder(t *testing.T) {
	a := chir.NewPackage("a")
	a.Requires = []string{"b"}
	b := chir.NewPackage("b")
	b.Requires = []string{"c", "external"}
	c := chir.NewPackage("c")

	ordered, err := ResolveBuildOrder([]*chir.Package{a, b, c})
	require.NoError(t, err)

	names := make([]string, len(ordered))
	for i, pkg := range ordered {
		names[i] = pkg.Name
	}
	assert.Equal(t, []string{"c", "b", "a"}, names)
}

func TestResolveBuildOrderFlagsCycle(t *testing.T) {
	a := chir.NewPackage("a")
	a.Requires = []string{"b"}
	b := chir.NewPackage("b")
	b.Requires = []string{"a"}

	_, err := ResolveBuildOrder([]*chir.Package{a, b})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle")
}

func TestEmptyPipelineStillVerifiesInput(t *testing.T) {
	pkg := samplePackage(t)
	require.NoError(t, Empty().Run(pkg))

	// No passes means no rewrites.
	main := pkg.FuncByName("main")
	var loads int
	for _, e := range main.Body.Entry.Exprs {
		if _, ok := e.(*chir.LoadExpr); ok {
			loads++
		}
	}
	assert.Equal(t, 2, loads)
}
