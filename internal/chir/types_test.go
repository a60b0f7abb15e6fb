package chir

import (
	"testing"
)

func TestPrimitiveInterning(t *testing.T) {
	ctx := NewTypeContext()

	a := ctx.Primitive(PrimInt64)
	b := ctx.Primitive(PrimInt64)
	if a != b {
		t.Error("equal primitive types should be the same instance")
	}

	c := ctx.Primitive(PrimBool)
	if a == c {
		t.Error("distinct primitive kinds should not share an instance")
	}
}

func TestCompositeInterning(t *testing.T) {
	ctx := NewTypeContext()
	i64 := ctx.Int64()
	boolT := ctx.Bool()

	t1 := ctx.Tuple(i64, boolT)
	t2 := ctx.Tuple(i64, boolT)
	if t1 != t2 {
		t.Error("structurally equal tuples should be the same instance")
	}

	f1 := ctx.Func([]Type{i64}, boolT)
	f2 := ctx.Func([]Type{i64}, boolT)
	if f1 != f2 {
		t.Error("structurally equal func types should be the same instance")
	}
	if f1 == ctx.CFunc([]Type{i64}, boolT) {
		t.Error("C and native signatures should not share an instance")
	}

	if ctx.Ref(i64) != ctx.Ref(i64) {
		t.Error("structurally equal refs should be the same instance")
	}
	if ctx.VArray(i64, 4) == ctx.VArray(i64, 8) {
		t.Error("arrays of different size should not share an instance")
	}
}

func TestNominalInterning(t *testing.T) {
	pkg := NewPackage("test")
	ctx := pkg.Types

	box := pkg.NewDef(DefClass, "Container")
	elem := ctx.Generic("Container", "T")
	box.GenericParams = []*GenericType{elem}

	i64 := ctx.Int64()
	if ctx.Class(box, i64) != ctx.Class(box, i64) {
		t.Error("equal instantiations should be the same instance")
	}
	if ctx.Class(box, i64) == ctx.Class(box, ctx.Bool()) {
		t.Error("different instantiations should not share an instance")
	}
}

func TestNominalArgCountChecked(t *testing.T) {
	pkg := NewPackage("test")
	def := pkg.NewDef(DefClass, "Pair")
	def.GenericParams = []*GenericType{pkg.Types.Generic("Pair", "A"), pkg.Types.Generic("Pair", "B")}

	defer func() {
		if recover() == nil {
			t.Error("wrong type-argument count should panic")
		}
	}()
	pkg.Types.Class(def, pkg.Types.Int64())
}

func TestRefNeverWrapsRef(t *testing.T) {
	ctx := NewTypeContext()
	i64 := ctx.Int64()

	ref := ctx.Ref(i64)
	if ctx.Ref(ref) != ref {
		t.Error("Ref(Ref(T)) should collapse to Ref(T)")
	}
	if ctx.Box(ref).Base != Type(i64) {
		t.Error("Box over a Ref should box the base type")
	}
}

func TestInstantiate(t *testing.T) {
	pkg := NewPackage("test")
	ctx := pkg.Types

	container := pkg.NewDef(DefClass, "Container")
	tp := ctx.Generic("Container", "T")
	container.GenericParams = []*GenericType{tp}

	generic := ctx.Class(container, tp)
	i64 := ctx.Int64()

	inst := ctx.Instantiate(generic, map[*GenericType]Type{tp: i64})
	if inst != Type(ctx.Class(container, i64)) {
		t.Errorf("instantiation should yield Container<Int64>, got %s", inst)
	}

	// Substitution must recurse through nested structure.
	nested := ctx.Func([]Type{ctx.Ref(tp)}, ctx.Tuple(tp, ctx.Bool()))
	instNested := ctx.Instantiate(nested, map[*GenericType]Type{tp: i64}).(*FuncType)
	if instNested.Params[0] != Type(ctx.Ref(i64)) {
		t.Errorf("expected Ref<Int64> parameter, got %s", instNested.Params[0])
	}
	if instNested.Return != Type(ctx.Tuple(i64, ctx.Bool())) {
		t.Errorf("expected (Int64, Bool) return, got %s", instNested.Return)
	}
}

func TestInstantiateIsIdentityWithoutMatch(t *testing.T) {
	pkg := NewPackage("test")
	ctx := pkg.Types

	other := ctx.Generic("Other", "U")
	concrete := ctx.Tuple(ctx.Int64(), ctx.Bool())

	if got := ctx.Instantiate(concrete, map[*GenericType]Type{other: ctx.Bool()}); got != Type(concrete) {
		t.Error("instantiating a type without mapped parameters must return the input instance")
	}
}

// classChain builds Root <- Mid <- Leaf plus an unrelated Lone class.
func classChain(t *testing.T) (*Package, *ClassType, *ClassType, *ClassType, *ClassType) {
	t.Helper()
	pkg := NewPackage("test")
	ctx := pkg.Types

	rootDef := pkg.NewDef(DefClass, "Root")
	root := ctx.Class(rootDef)

	midDef := pkg.NewDef(DefClass, "Mid")
	midDef.Super = root
	mid := ctx.Class(midDef)

	leafDef := pkg.NewDef(DefClass, "Leaf")
	leafDef.Super = mid
	leaf := ctx.Class(leafDef)

	loneDef := pkg.NewDef(DefClass, "Lone")
	lone := ctx.Class(loneDef)

	return pkg, root, mid, leaf, lone
}

func TestLeastCommonSuperClass(t *testing.T) {
	pkg, root, mid, leaf, lone := classChain(t)
	ctx := pkg.Types

	if got := ctx.LeastCommonSuperClass(leaf, mid); got != mid {
		t.Errorf("LCS(Leaf, Mid) = %v, expected Mid", got)
	}
	if got := ctx.LeastCommonSuperClass(leaf, root); got != root {
		t.Errorf("LCS(Leaf, Root) = %v, expected Root", got)
	}
	if got := ctx.LeastCommonSuperClass(leaf, leaf); got != leaf {
		t.Errorf("LCS(Leaf, Leaf) = %v, expected Leaf", got)
	}
	if got := ctx.LeastCommonSuperClass(leaf, lone); got != nil {
		t.Errorf("LCS of unrelated classes = %v, expected nil", got)
	}
}

func TestCompatible(t *testing.T) {
	pkg, root, _, leaf, lone := classChain(t)
	ctx := pkg.Types

	if !ctx.Compatible(leaf, root) {
		t.Error("a subclass should flow into its ancestor")
	}
	if ctx.Compatible(root, leaf) {
		t.Error("an ancestor should not flow into a subclass")
	}
	if ctx.Compatible(lone, root) {
		t.Error("unrelated classes should not be compatible")
	}
	if !ctx.Compatible(ctx.Nothing(), root) {
		t.Error("Nothing should flow anywhere")
	}

	ifaceDef := pkg.NewDef(DefInterface, "Printable")
	iface := ctx.Interface(ifaceDef)
	leaf.Def.Interfaces = []Type{iface}
	if !ctx.Compatible(leaf, iface) {
		t.Error("a class should flow into an interface it implements")
	}
	if ctx.Compatible(root, iface) {
		t.Error("a class should not flow into an interface it does not implement")
	}
}

func TestContainsGeneric(t *testing.T) {
	pkg := NewPackage("test")
	ctx := pkg.Types
	tp := ctx.Generic("f", "T")

	if !ContainsGeneric(ctx.Ref(ctx.Tuple(ctx.Int64(), tp))) {
		t.Error("nested generic should be found")
	}
	if ContainsGeneric(ctx.Tuple(ctx.Int64(), ctx.Bool())) {
		t.Error("concrete type should contain no generic")
	}
}
