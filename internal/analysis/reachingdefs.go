package analysis

import (
	"chir/internal/chir"
)

// ReachingState maps each addressable location to the last Store or Load
// known to reach the current point. The per-location domain is flat: unknown,
// or exactly one reaching access; two different reaching accesses join to
// unknown.
type ReachingState struct {
	reaching map[chir.Value]chir.Expr
}

// NewReachingState creates an empty state.
func NewReachingState() *ReachingState {
	return &ReachingState{reaching: make(map[chir.Value]chir.Expr)}
}

// Reaching returns the access that reaches for loc, or nil.
func (s *ReachingState) Reaching(loc chir.Value) chir.Expr {
	return s.reaching[loc]
}

// ReachingDefs is the reaching store/load domain behind redundant-load
// elimination. It is function-local; globals are never tracked because any
// call may write them.
type ReachingDefs struct{}

func (ReachingDefs) Top() *ReachingState { return NewReachingState() }

func (ReachingDefs) Entry(fn *chir.Func) *ReachingState { return NewReachingState() }

func (ReachingDefs) Join(a, b *ReachingState) *ReachingState {
	out := NewReachingState()
	for loc, def := range a.reaching {
		if b.reaching[loc] == def {
			out.reaching[loc] = def
		}
	}
	return out
}

func (ReachingDefs) Equal(a, b *ReachingState) bool {
	if len(a.reaching) != len(b.reaching) {
		return false
	}
	for loc, def := range a.reaching {
		if b.reaching[loc] != def {
			return false
		}
	}
	return true
}

func (ReachingDefs) Clone(s *ReachingState) *ReachingState {
	out := NewReachingState()
	for loc, def := range s.reaching {
		out.reaching[loc] = def
	}
	return out
}

func (d ReachingDefs) TransferExpr(s *ReachingState, e chir.Expr) *ReachingState {
	switch e := e.(type) {
	case *chir.StoreExpr:
		d.clobberAliases(s, e.Location())
		if trackable(e.Location()) {
			s.reaching[e.Location()] = e
		}

	case *chir.LoadExpr:
		if trackable(e.Location()) && s.reaching[e.Location()] == nil {
			s.reaching[e.Location()] = e
		}

	case *chir.StoreElementRefExpr, *chir.StoreFieldExpr:
		// Writes through projections may alias any tracked cell.
		s.reaching = make(map[chir.Value]chir.Expr)

	case *chir.ApplyExpr, *chir.InvokeExpr, *chir.InvokeStaticExpr,
		*chir.IntrinsicExpr, *chir.SpawnExpr:
		// The callee may write any memory we track.
		s.reaching = make(map[chir.Value]chir.Expr)
	}
	return s
}

func (d ReachingDefs) TransferTerm(s *ReachingState, t chir.Terminator, succ *chir.Block) *ReachingState {
	switch t.Kind() {
	case chir.KindApplyWithException, chir.KindInvokeWithException, chir.KindInvokeStaticWithException:
		s.reaching = make(map[chir.Value]chir.Expr)
	}
	return s
}

// trackable reports whether loc names one unaliased cell: the Ref produced
// by a scalar allocation in this function. Globals and projection-derived
// refs are excluded; their aliasing is not function-local.
func trackable(loc chir.Value) bool {
	lv, ok := loc.(*chir.LocalVar)
	if !ok {
		return false
	}
	_, isAlloc := lv.Def().(*chir.AllocateExpr)
	return isAlloc
}

// clobberAliases drops tracked cells a store to loc may alias. Stores to a
// trackable cell are exact; anything else may write anywhere.
func (ReachingDefs) clobberAliases(s *ReachingState, loc chir.Value) {
	if trackable(loc) {
		delete(s.reaching, loc)
		return
	}
	s.reaching = make(map[chir.Value]chir.Expr)
}

// DefinedValue returns the value a reaching access makes available for the
// location: the stored value for a Store, the loaded result for a Load.
func DefinedValue(def chir.Expr) chir.Value {
	switch def := def.(type) {
	case *chir.StoreExpr:
		return def.Stored()
	case *chir.LoadExpr:
		return def.Result()
	default:
		return nil
	}
}
