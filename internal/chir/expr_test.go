package chir

import (
	"testing"
)

func testFunc(t *testing.T) (*Package, *Builder) {
	t.Helper()
	pkg := NewPackage("test")
	b := NewBuilder(pkg)
	b.StartFunc("f", nil, pkg.Types.Unit(), 0)
	return pkg, b
}

func TestArityEnforced(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Exit with two values should panic")
		}
	}()
	ctx := NewTypeContext()
	one := NewIntLiteral(ctx.Int64(), 1)
	NewExit(one, one)
}

func TestLoadRequiresRef(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Load of a non-Ref value should panic")
		}
	}()
	ctx := NewTypeContext()
	NewLoad(NewIntLiteral(ctx.Int64(), 1))
}

func TestUseEdges(t *testing.T) {
	pkg, b := testFunc(t)
	ctx := pkg.Types
	i64 := ctx.Int64()

	cell := b.Allocate(i64)
	lit := NewIntLiteral(i64, 7)
	store := b.Store(lit, cell.Result())
	load := b.Load(cell.Result())

	if cell.Result().NumUses() != 2 {
		t.Errorf("cell should have 2 uses, got %d", cell.Result().NumUses())
	}

	users := cell.Result().Users()
	found := map[Expr]bool{}
	for _, u := range users {
		found[u] = true
	}
	if !found[store] || !found[load] {
		t.Error("both store and load should be users of the cell")
	}
}

func TestRemoveExprDetachesUses(t *testing.T) {
	pkg, b := testFunc(t)
	i64 := pkg.Types.Int64()

	cell := b.Allocate(i64)
	load := b.Load(cell.Result())

	RemoveExpr(load)

	if cell.Result().NumUses() != 0 {
		t.Errorf("removed load should release its use edge, %d left", cell.Result().NumUses())
	}
	if load.Block() != nil {
		t.Error("removed load should be detached from its block")
	}
	if b.Block().IndexOf(load) != -1 {
		t.Error("removed load should not remain in the block's expression list")
	}
}

func TestReplaceWithRewiresAllUsers(t *testing.T) {
	pkg, b := testFunc(t)
	ctx := pkg.Types
	i64 := ctx.Int64()

	cell := b.Allocate(i64)
	load := b.Load(cell.Result())
	sum := b.Binary(BinAdd, OverflowWrapping, load.Result(), load.Result())

	repl := NewIntLiteral(i64, 3)
	load.Result().ReplaceWith(repl)

	if sum.LHS() != Value(repl) || sum.RHS() != Value(repl) {
		t.Error("both operand occurrences should be rewired to the replacement")
	}
	if load.Result().NumUses() != 0 {
		t.Error("replaced value should have no remaining uses")
	}
}

func TestTerminatorMaintainsPreds(t *testing.T) {
	pkg, b := testFunc(t)
	ctx := pkg.Types

	entry := b.Block()
	left := b.NewBlock("left")
	right := b.NewBlock("right")

	cond := NewBoolLiteral(ctx.Bool(), true)
	b.Branch(cond, left, right)

	if !left.HasPred(entry) || !right.HasPred(entry) {
		t.Error("branch successors should record the branching block as predecessor")
	}

	// Replacing the terminator must drop the old edges.
	b.SetInsertPoint(entry)
	b.GoTo(left)
	if right.HasPred(entry) {
		t.Error("replaced terminator should remove stale predecessor edges")
	}
	if !left.HasPred(entry) {
		t.Error("new terminator should keep its predecessor edge")
	}
}

func TestBranchSameTargetCountsEdges(t *testing.T) {
	pkg, b := testFunc(t)
	ctx := pkg.Types

	entry := b.Block()
	next := b.NewBlock("next")
	cond := NewBoolLiteral(ctx.Bool(), false)
	b.Branch(cond, next, next)

	if next.preds[entry] != 2 {
		t.Errorf("two edges from the same branch should be counted, got %d", next.preds[entry])
	}

	b.SetInsertPoint(entry)
	b.Exit()
	if next.HasPred(entry) {
		t.Error("all edges should be released when the terminator changes")
	}
}

func TestReplaceExprWith(t *testing.T) {
	pkg, b := testFunc(t)
	ctx := pkg.Types
	i64 := ctx.Int64()

	lhs := NewIntLiteral(i64, 1)
	rhs := NewIntLiteral(i64, 2)
	op := b.Binary(BinAdd, OverflowWrapping, lhs, rhs)
	use := b.Binary(BinMul, OverflowWrapping, op.Result(), op.Result())

	repl := NewBinary(ctx, BinSub, OverflowWrapping, lhs, rhs)
	ReplaceExprWith(op, repl)

	if use.LHS() != Value(repl.Result()) {
		t.Error("users should consume the replacement's result")
	}
	if got := b.Block().IndexOf(repl); got != 0 {
		t.Errorf("replacement should take the original's position, got index %d", got)
	}
	if op.Block() != nil {
		t.Error("original expression should be detached")
	}
}

func TestReachable(t *testing.T) {
	_, b := testFunc(t)

	entry := b.Block()
	mid := b.NewBlock("mid")
	dead := b.NewBlock("dead")
	b.GoTo(mid)
	b.SetInsertPoint(mid)
	b.Exit()
	b.SetInsertPoint(dead)
	b.Exit()

	reachable := b.Func().Body.Reachable()
	if len(reachable) != 2 || reachable[0] != entry || reachable[1] != mid {
		t.Errorf("expected [entry, mid], got %v", reachable)
	}

	if !b.Func().Body.CompactUnreachable() {
		t.Error("compacting should report a change")
	}
	if len(b.Func().Body.Blocks) != 2 {
		t.Errorf("dead block should be dropped, %d blocks left", len(b.Func().Body.Blocks))
	}
}

func TestAllocateResultTypes(t *testing.T) {
	pkg, b := testFunc(t)
	ctx := pkg.Types

	cell := b.Allocate(ctx.Int64())
	if cell.Result().Type() != Type(ctx.Ref(ctx.Int64())) {
		t.Errorf("scalar allocation should produce a Ref, got %s", cell.Result().Type())
	}

	def := pkg.NewDef(DefClass, "Widget")
	cls := ctx.Class(def)
	obj := b.Allocate(cls)
	if obj.Result().Type() != Type(cls) {
		t.Errorf("class allocation should produce the object type, got %s", obj.Result().Type())
	}
}

func TestFieldAccessThroughSuperChain(t *testing.T) {
	pkg, b := testFunc(t)
	ctx := pkg.Types

	baseDef := pkg.NewDef(DefClass, "Base")
	baseDef.Fields = []Field{{Name: "count", Type: ctx.Int64(), Mutable: true}}
	base := ctx.Class(baseDef)

	derivedDef := pkg.NewDef(DefClass, "Derived")
	derivedDef.Super = base
	derived := ctx.Class(derivedDef)

	obj := b.Allocate(derived)
	get := b.GetField(obj.Result(), "count")
	if get.Result().Type() != Type(ctx.Int64()) {
		t.Errorf("inherited field should resolve through the super chain, got %s", get.Result().Type())
	}
}
