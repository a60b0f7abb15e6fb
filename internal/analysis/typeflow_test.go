package analysis

import (
	"testing"

	"chir/internal/chir"
)

// hierarchy builds Root with two subclasses MidA and MidB, plus an unrelated
// Lone class.
func hierarchy(t *testing.T) (*chir.Package, *chir.ClassType, *chir.ClassType, *chir.ClassType, *chir.ClassType) {
	t.Helper()
	pkg := chir.NewPackage("test")
	ctx := pkg.Types

	rootDef := pkg.NewDef(chir.DefClass, "Root")
	root := ctx.Class(rootDef)

	aDef := pkg.NewDef(chir.DefClass, "MidA")
	aDef.Super = root
	a := ctx.Class(aDef)

	bDef := pkg.NewDef(chir.DefClass, "MidB")
	bDef.Super = root
	b := ctx.Class(bDef)

	loneDef := pkg.NewDef(chir.DefClass, "Lone")
	lone := ctx.Class(loneDef)

	return pkg, root, a, b, lone
}

func TestJoinFacts(t *testing.T) {
	pkg, root, a, b, lone := hierarchy(t)
	ctx := pkg.Types

	if got := JoinFacts(ctx, Exactly(a), Exactly(a)); got != Exactly(a) {
		t.Errorf("join of identical exact facts should stay exact, got %s", got)
	}
	if got := JoinFacts(ctx, Exactly(a), Exactly(b)); got != Subtype(root) {
		t.Errorf("join of sibling exact facts should widen to the common ancestor, got %s", got)
	}
	if got := JoinFacts(ctx, Exactly(a), Exactly(lone)); !got.IsTop() {
		t.Errorf("join of unrelated facts should be top, got %s", got)
	}
	if got := JoinFacts(ctx, Subtype(a), Exactly(a)); got != Subtype(a) {
		t.Errorf("subtype absorbs an exact fact of the same class, got %s", got)
	}
	if got := JoinFacts(ctx, Subtype(root), Subtype(a)); got != Subtype(root) {
		t.Errorf("join should keep the widest bound, got %s", got)
	}

	samples := []TypeFact{Top(), Exactly(a), Exactly(b), Exactly(root), Subtype(a), Subtype(root), Exactly(lone)}
	for _, x := range samples {
		if got := JoinFacts(ctx, x, x); got != x && !(x.IsTop() && got.IsTop()) {
			t.Errorf("join should be idempotent, Join(%s, %s) = %s", x, x, got)
		}
		for _, y := range samples {
			xy := JoinFacts(ctx, x, y)
			yx := JoinFacts(ctx, y, x)
			if xy != yx {
				t.Errorf("join should be commutative, got %s vs %s for (%s, %s)", xy, yx, x, y)
			}
		}
	}
}

func TestTypeFlowThroughMemory(t *testing.T) {
	pkg, root, a, _, _ := hierarchy(t)
	ctx := pkg.Types
	b := chir.NewBuilder(pkg)

	// Store an exactly-known object into a cell, load it back: the fact must
	// survive the round trip.
	b.StartFunc("f", nil, ctx.Unit(), 0)
	obj := b.Allocate(a)
	cell := b.Allocate(ctx.Ref(root))
	b.Store(obj.Result(), cell.Result())
	loaded := b.Load(cell.Result())
	b.Exit()

	domain := NewTypeAnalysis(pkg)
	s := domain.Entry(b.Func())
	for _, e := range b.Func().Body.Entry.Exprs {
		s = domain.TransferExpr(s, e)
	}

	if got := s.Fact(ctx, obj.Result()); got != Exactly(a) {
		t.Errorf("allocation should be exactly its class, got %s", got)
	}
	if got := s.Fact(ctx, loaded.Result()); got != Exactly(a) {
		t.Errorf("fact should survive a store/load round trip, got %s", got)
	}
}

func TestGlobalFactsJoinAcrossRuns(t *testing.T) {
	pkg, root, a, bCls, _ := hierarchy(t)
	ctx := pkg.Types
	g := pkg.NewGlobal("shared", ctx.Ref(root), nil)

	domain := NewTypeAnalysis(pkg)
	b := chir.NewBuilder(pkg)

	// Two initializers store different subclasses into the same global.
	b.StartFunc("init_a", nil, ctx.Unit(), 0)
	objA := b.Allocate(a)
	b.Store(objA.Result(), g)
	b.Exit()

	b.StartFunc("init_b", nil, ctx.Unit(), 0)
	objB := b.Allocate(bCls)
	b.Store(objB.Result(), g)
	b.Exit()

	engine := NewEngine[*TypeState](domain)
	for _, fn := range pkg.Funcs {
		engine.RunFunc(fn)
	}

	if got := domain.GlobalFact(g); got != Subtype(root) {
		t.Errorf("global written by two initializers should widen to the ancestor, got %s", got)
	}
}
