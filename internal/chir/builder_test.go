package chir

import (
	"strings"
	"testing"
)

func TestBuilderNamesResults(t *testing.T) {
	pkg := NewPackage("test")
	b := NewBuilder(pkg)
	ctx := pkg.Types

	b.StartFunc("f", nil, ctx.Int64(), 0)
	cell := b.Allocate(ctx.Int64())
	load := b.Load(cell.Result())

	if cell.Result().Name() != "0" || load.Result().Name() != "1" {
		t.Errorf("results should be numbered in emission order, got %q and %q",
			cell.Result().Name(), load.Result().Name())
	}
}

func TestBuilderFuncSignature(t *testing.T) {
	pkg := NewPackage("test")
	b := NewBuilder(pkg)
	ctx := pkg.Types

	x := pkg.NewParameter("x", ctx.Int64())
	fn := b.StartFunc("double", []*Parameter{x}, ctx.Int64(), 0)

	if fn.Sig != ctx.Func([]Type{ctx.Int64()}, ctx.Int64()) {
		t.Errorf("signature should be built from parameters, got %s", fn.Sig)
	}
	if x.Owner != fn {
		t.Error("parameter should be owned by its function")
	}
	if pkg.FuncByName("double") != fn {
		t.Error("function should be registered with its package")
	}
}

func TestPrintFunc(t *testing.T) {
	pkg := NewPackage("test")
	b := NewBuilder(pkg)
	ctx := pkg.Types

	x := pkg.NewParameter("x", ctx.Int64())
	b.StartFunc("double", []*Parameter{x}, ctx.Int64(), 0)
	sum := b.Binary(BinAdd, OverflowWrapping, x, x)
	b.Exit(sum.Result())

	out := PrintFunc(b.Func())
	for _, want := range []string{
		"func @double(%x: Int64) -> Int64 {",
		"entry:",
		"%0 =",
		"Exit(%0)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("printed function should contain %q, got:\n%s", want, out)
		}
	}
}

func TestPrintPreds(t *testing.T) {
	pkg := NewPackage("test")
	b := NewBuilder(pkg)
	ctx := pkg.Types

	b.StartFunc("f", nil, ctx.Unit(), 0)
	merge := b.NewBlock("merge")
	left := b.NewBlock("left")
	right := b.NewBlock("right")
	b.Branch(NewBoolLiteral(ctx.Bool(), true), left, right)
	b.SetInsertPoint(left)
	b.GoTo(merge)
	b.SetInsertPoint(right)
	b.GoTo(merge)
	b.SetInsertPoint(merge)
	b.Exit()

	out := PrintFunc(b.Func())
	if !strings.Contains(out, "merge: ; preds: left, right") {
		t.Errorf("merge block should list both predecessors, got:\n%s", out)
	}
}
