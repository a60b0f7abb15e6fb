package analysis

import (
	"testing"

	"chir/internal/chir"
)

// virtualPair builds Base declaring virtual m and Derived overriding it, with
// vtables installed on both defs.
func virtualPair(t *testing.T) (*chir.Package, *chir.ClassType, *chir.ClassType, *chir.Func, *chir.Func) {
	t.Helper()
	pkg := chir.NewPackage("test")
	ctx := pkg.Types

	baseDef := pkg.NewDef(chir.DefClass, "Base")
	base := ctx.Class(baseDef)
	derivedDef := pkg.NewDef(chir.DefClass, "Derived")
	derivedDef.Super = base
	derived := ctx.Class(derivedDef)

	sig := ctx.Func([]chir.Type{base}, ctx.Int64())
	this := pkg.NewThisParameter(base)
	baseM := pkg.NewFunc("Base.m", []*chir.Parameter{this}, ctx.Int64(), 0)
	thisD := pkg.NewThisParameter(base)
	derivedM := pkg.NewFunc("Derived.m", []*chir.Parameter{thisD}, ctx.Int64(), 0)

	baseDef.SetVTable(base, []chir.MethodSlot{{Name: "m", Sig: sig, Impl: baseM}})
	derivedDef.SetVTable(base, []chir.MethodSlot{{Name: "m", Sig: sig, Impl: derivedM}})

	return pkg, base, derived, baseM, derivedM
}

func TestDevirtualizeExactReceiver(t *testing.T) {
	pkg, base, derived, _, derivedM := virtualPair(t)
	b := chir.NewBuilder(pkg)
	ctx := pkg.Types

	b.StartFunc("main", nil, ctx.Unit(), 0)
	obj := b.Allocate(derived)
	b.Invoke(base, 0, obj.Result())
	b.Exit()

	pass := &Devirtualize{}
	if !pass.Apply(pkg) {
		t.Fatal("pass should report a change")
	}

	entry := b.Func().Body.Entry
	var apply *chir.ApplyExpr
	for _, e := range entry.Exprs {
		switch e := e.(type) {
		case *chir.InvokeExpr:
			t.Fatal("virtual call should have been rewritten")
		case *chir.ApplyExpr:
			apply = e
		}
	}
	if apply == nil {
		t.Fatal("rewritten call not found")
	}
	if apply.Callee() != chir.Value(derivedM) {
		t.Errorf("call should target the override, got %s", apply.Callee())
	}
	if apply.ThisType != chir.Type(derived) {
		t.Errorf("receiver type metadata should be the proven class, got %s", apply.ThisType)
	}
	if apply.Args()[0] != chir.Value(obj.Result()) {
		t.Error("the receiver should be passed as the first argument")
	}
}

func TestDevirtualizeLeavesUnknownReceivers(t *testing.T) {
	pkg, base, _, _, _ := virtualPair(t)
	b := chir.NewBuilder(pkg)
	ctx := pkg.Types

	// A parameter is only SubtypeOf its declared class; the call must stay
	// virtual.
	recv := pkg.NewParameter("r", base)
	b.StartFunc("call_it", []*chir.Parameter{recv}, ctx.Int64(), 0)
	call := b.Invoke(base, 0, recv)
	b.Exit(call.Result())

	pass := &Devirtualize{}
	pass.Apply(pkg)

	if _, ok := b.Func().Body.Entry.Exprs[0].(*chir.InvokeExpr); !ok {
		t.Error("call with an unproven receiver should remain virtual")
	}
}

func TestDevirtualizeDropsProvenCasts(t *testing.T) {
	pkg, base, derived, _, _ := virtualPair(t)
	b := chir.NewBuilder(pkg)
	ctx := pkg.Types

	b.StartFunc("casts", nil, ctx.Unit(), 0)
	obj := b.Allocate(derived)
	cast := b.TypeCast(base, obj.Result())
	cell := b.Allocate(ctx.Ref(base))
	b.Store(cast.Result(), cell.Result())
	b.Exit()

	pass := &Devirtualize{}
	if !pass.Apply(pkg) {
		t.Fatal("pass should report a change")
	}

	for _, e := range b.Func().Body.Entry.Exprs {
		if _, ok := e.(*chir.TypeCastExpr); ok {
			t.Fatal("an upcast of an exactly-known value should be removed")
		}
		if st, ok := e.(*chir.StoreExpr); ok && st.Stored() != chir.Value(obj.Result()) {
			t.Error("the cast's consumer should use the original value")
		}
	}
}

func TestDevirtualizeThroughMemory(t *testing.T) {
	pkg, base, derived, _, derivedM := virtualPair(t)
	b := chir.NewBuilder(pkg)
	ctx := pkg.Types

	// The exactly-known object goes through a heap cell before the call.
	b.StartFunc("main", nil, ctx.Unit(), 0)
	obj := b.Allocate(derived)
	cell := b.Allocate(ctx.Ref(base))
	b.Store(obj.Result(), cell.Result())
	loaded := b.Load(cell.Result())
	b.Invoke(base, 0, loaded.Result())
	b.Exit()

	pass := &Devirtualize{}
	if !pass.Apply(pkg) {
		t.Fatal("pass should report a change")
	}

	var apply *chir.ApplyExpr
	for _, e := range b.Func().Body.Entry.Exprs {
		if a, ok := e.(*chir.ApplyExpr); ok {
			apply = a
		}
	}
	if apply == nil || apply.Callee() != chir.Value(derivedM) {
		t.Error("fact flowing through memory should still devirtualize the call")
	}
}
