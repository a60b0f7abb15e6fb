package chirtext

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chir/internal/chir"
	"chir/internal/verifier"
)

const countdownSource = `
package demo

func @countdown(%n: Int64) -> Int64 {
entry:
  %c = alloc Int64
  store %n, %c
  goto head
head:
  %v = load %c
  %done = le %v, 0
  branch %done, finish, body
body:
  %next = sub wrapping %v, 1
  store %next, %c
  goto head
finish:
  exit %v
}
`

func TestParseFunction(t *testing.T) {
	pkg, err := Parse("countdown.chir", countdownSource)
	require.NoError(t, err)

	assert.Equal(t, "demo", pkg.Name)
	fn := pkg.FuncByName("countdown")
	require.NotNil(t, fn)
	assert.Equal(t, "Int64", fn.ReturnType.String())
	require.Len(t, fn.Body.Blocks, 4)
	assert.Equal(t, "entry", fn.Body.Entry.Name)

	head := fn.Body.Blocks[1]
	assert.Equal(t, "head", head.Name)
	// entry and body both jump to head.
	assert.Len(t, head.Preds(), 2)

	if _, ok := head.Exprs[1].(*chir.BinaryExpr); !ok {
		t.Errorf("expected a comparison, got %s", head.Exprs[1])
	}
	if _, ok := head.Term.(*chir.BranchExpr); !ok {
		t.Errorf("expected a branch terminator, got %s", head.Term)
	}

	assert.Empty(t, verifier.Default().Run(pkg))
}

func TestParseClassWithVTable(t *testing.T) {
	source := `
package shapes

class Shape {
  vtable Shape {
    area(Shape) -> Int64 = @Shape.area
  }
}

class Circle <: Shape {
  radius: Int64
  vtable Shape {
    area(Shape) -> Int64 = @Circle.area
  }
}

declare func @Shape.area(%this: Shape) -> Int64
declare func @Circle.area(%this: Circle) -> Int64

func @main() -> Int64 {
entry:
  %s = new Circle
  storefield 2, %s, radius
  %r = getfield %s, radius
  %a = invoke %s, Shape[0]()
  %sum = add wrapping %r, %a
  exit %sum
}
`
	pkg, err := Parse("shapes.chir", source)
	require.NoError(t, err)

	circle := pkg.DefByName("Circle")
	require.NotNil(t, circle)
	require.NotNil(t, circle.Super)
	assert.Equal(t, "Shape", circle.Super.String())

	shape := pkg.Types.Class(pkg.DefByName("Shape"))
	slot, ok := circle.SlotAt(shape, 0)
	require.True(t, ok)
	assert.Equal(t, "Circle.area", slot.Impl.Name)

	assert.Nil(t, pkg.FuncByName("Shape.area").Body)
	assert.Empty(t, verifier.Default().Run(pkg))
}

func TestParseGlobalsAndCalls(t *testing.T) {
	source := `
package g

global @counter: Ref<Int64>

func @bump() -> Int64 {
entry:
  %v = load @counter
  %n = add wrapping %v, 1
  store %n, @counter
  %again = call @bump()
  exit %again
}
`
	pkg, err := Parse("globals.chir", source)
	require.NoError(t, err)

	g := pkg.GlobalByName("counter")
	require.NotNil(t, g)
	assert.Equal(t, "Ref<Int64>", g.Type().String())

	entry := pkg.FuncByName("bump").Body.Entry
	apply, ok := entry.Exprs[3].(*chir.ApplyExpr)
	require.True(t, ok)
	assert.Equal(t, pkg.FuncByName("bump"), apply.Callee())
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   string
	}{
		{
			name:   "unknown type",
			source: "package p\nfunc @f() -> Zorp {\nentry:\n  exit unit\n}",
			want:   "unknown type",
		},
		{
			name:   "undefined value",
			source: "package p\nfunc @f() -> Int64 {\nentry:\n  exit %nope\n}",
			want:   "undefined value",
		},
		{
			name:   "unknown label",
			source: "package p\nfunc @f() -> Unit {\nentry:\n  goto nowhere\n}",
			want:   "unknown block label",
		},
		{
			name:   "duplicate label",
			source: "package p\nfunc @f() -> Unit {\nentry:\n  goto entry\nentry:\n  exit unit\n}",
			want:   "duplicate block label",
		},
		{
			name:   "missing body",
			source: "package p\nfunc @f() -> Unit",
			want:   "no blocks",
		},
		{
			name:   "duplicate result",
			source: "package p\nfunc @f(%x: Int64) -> Int64 {\nentry:\n  %x = alloc Int64\n  exit %x\n}",
			want:   "already defined",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.name, tt.source)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParseSyntaxError(t *testing.T) {
	_, err := Parse("bad", "package p\nfunc @f( {")
	require.Error(t, err)
}
