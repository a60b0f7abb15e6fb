package analysis

import (
	"testing"

	"chir/internal/chir"
)

// traceState collects the names of blocks whose terminators ran, a finite
// union domain that exercises the engine's fixed-point machinery.
type traceState map[string]bool

type traceDomain struct{}

func (traceDomain) Top() traceState                  { return traceState{} }
func (traceDomain) Entry(fn *chir.Func) traceState   { return traceState{} }
func (traceDomain) Equal(a, b traceState) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if !b[k] {
			return false
		}
	}
	return true
}

func (traceDomain) Join(a, b traceState) traceState {
	out := traceState{}
	for k := range a {
		out[k] = true
	}
	for k := range b {
		out[k] = true
	}
	return out
}

func (traceDomain) Clone(s traceState) traceState {
	out := traceState{}
	for k := range s {
		out[k] = true
	}
	return out
}

func (traceDomain) TransferExpr(s traceState, e chir.Expr) traceState { return s }

func (traceDomain) TransferTerm(s traceState, t chir.Terminator, succ *chir.Block) traceState {
	s[t.Block().Name] = true
	return s
}

// loopFunc builds entry -> head; head -> body | exit; body -> head.
func loopFunc(t *testing.T) (*chir.Func, *chir.Block, *chir.Block) {
	t.Helper()
	pkg := chir.NewPackage("test")
	b := chir.NewBuilder(pkg)
	ctx := pkg.Types

	fn := b.StartFunc("loop", nil, ctx.Unit(), 0)
	head := b.NewBlock("head")
	body := b.NewBlock("body")
	exit := b.NewBlock("exit")

	b.GoTo(head)
	b.SetInsertPoint(head)
	b.Branch(chir.NewBoolLiteral(ctx.Bool(), true), body, exit)
	b.SetInsertPoint(body)
	b.GoTo(head)
	b.SetInsertPoint(exit)
	b.Exit()
	return fn, head, exit
}

func TestEngineReachesFixedPointOnLoop(t *testing.T) {
	fn, head, exit := loopFunc(t)

	engine := NewEngine[traceState](traceDomain{})
	res := engine.RunFunc(fn)
	if res.Skipped {
		t.Fatal("function should not be skipped")
	}

	headIn := res.In[head]
	if !headIn["entry"] || !headIn["body"] {
		t.Errorf("loop head should join entry and back edge, got %v", headIn)
	}
	exitIn := res.In[exit]
	if !exitIn["head"] {
		t.Errorf("exit should observe the loop head, got %v", exitIn)
	}

	// Re-running must produce the same states: the result is a fixed point.
	again := engine.RunFunc(fn)
	for blk, s := range res.In {
		if !(traceDomain{}).Equal(s, again.In[blk]) {
			t.Errorf("state for %s changed between runs", blk.Name)
		}
	}
}

func TestEngineBlockLimit(t *testing.T) {
	fn, _, _ := loopFunc(t)

	engine := NewEngine[traceState](traceDomain{})
	engine.BlockLimit = 2
	if res := engine.RunFunc(fn); !res.Skipped {
		t.Error("function over the block limit should be skipped")
	}
}

func TestEngineFilter(t *testing.T) {
	fn, _, _ := loopFunc(t)

	engine := NewEngine[traceState](traceDomain{})
	engine.Filter = func(*chir.Func) bool { return false }
	if res := engine.RunFunc(fn); !res.Skipped {
		t.Error("filtered-out function should be skipped")
	}
}

func TestEngineSkipsDeclarations(t *testing.T) {
	pkg := chir.NewPackage("test")
	fn := pkg.NewFunc("external", nil, pkg.Types.Unit(), 0)

	engine := NewEngine[traceState](traceDomain{})
	if res := engine.RunFunc(fn); !res.Skipped {
		t.Error("a body-less function should be skipped")
	}
}
