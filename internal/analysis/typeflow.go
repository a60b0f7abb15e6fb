package analysis

import (
	"fmt"

	"chir/internal/chir"
)

// TypeFactKind tags what a TypeFact knows about a value's dynamic class.
type TypeFactKind int

const (
	// FactTop knows nothing.
	FactTop TypeFactKind = iota
	// FactSubtypeOf bounds the dynamic class from above.
	FactSubtypeOf
	// FactExactlyOf pins the dynamic class down to one class.
	FactExactlyOf
)

// TypeFact is one point of the devirtualization lattice.
type TypeFact struct {
	Kind  TypeFactKind
	Class *chir.ClassType
}

// Top returns the no-information fact.
func Top() TypeFact { return TypeFact{Kind: FactTop} }

// Exactly returns the fact pinning a value to class c.
func Exactly(c *chir.ClassType) TypeFact { return TypeFact{Kind: FactExactlyOf, Class: c} }

// Subtype returns the fact bounding a value by class c.
func Subtype(c *chir.ClassType) TypeFact { return TypeFact{Kind: FactSubtypeOf, Class: c} }

// IsTop reports whether f carries no information.
func (f TypeFact) IsTop() bool { return f.Kind == FactTop }

func (f TypeFact) String() string {
	switch f.Kind {
	case FactExactlyOf:
		return fmt.Sprintf("exactly(%s)", f.Class)
	case FactSubtypeOf:
		return fmt.Sprintf("subtype(%s)", f.Class)
	default:
		return "top"
	}
}

// JoinFacts combines two facts. Exactly(A) joined with Exactly(A) stays
// exact; any other combination widens to the least common superclass, or Top
// when the classes are unrelated.
func JoinFacts(ctx *chir.TypeContext, a, b TypeFact) TypeFact {
	if a.IsTop() || b.IsTop() {
		return Top()
	}
	if a.Kind == FactExactlyOf && b.Kind == FactExactlyOf && a.Class == b.Class {
		return a
	}
	lcs := ctx.LeastCommonSuperClass(a.Class, b.Class)
	if lcs == nil {
		return Top()
	}
	return Subtype(lcs)
}

// narrower reports whether a is at least as precise as b.
func narrower(ctx *chir.TypeContext, a, b TypeFact) bool {
	if b.IsTop() {
		return true
	}
	if a.IsTop() {
		return false
	}
	if a.Class != b.Class && !ctx.IsSubclassOf(a.Class, b.Class) {
		return false
	}
	return a.Kind == FactExactlyOf || b.Kind == FactSubtypeOf
}

// TypeState is the per-program-point state of the type analysis: a fact per
// SSA value, plus a points-to layer so facts survive a round trip through
// memory. Heap cells are named by their allocation site; all aliasing loads
// of one cell observe the fact the last store put there.
type TypeState struct {
	facts    map[chir.Value]TypeFact
	pointsTo map[chir.Value]*chir.AllocateExpr
	objects  map[*chir.AllocateExpr]TypeFact
}

// NewTypeState creates an empty state.
func NewTypeState() *TypeState {
	return &TypeState{
		facts:    make(map[chir.Value]TypeFact),
		pointsTo: make(map[chir.Value]*chir.AllocateExpr),
		objects:  make(map[*chir.AllocateExpr]TypeFact),
	}
}

// Fact returns what the state knows about v, falling back to the bound given
// by v's static type.
func (s *TypeState) Fact(ctx *chir.TypeContext, v chir.Value) TypeFact {
	if f, ok := s.facts[v]; ok {
		return f
	}
	if c := classOf(v.Type()); c != nil {
		return Subtype(c)
	}
	return Top()
}

func (s *TypeState) setFact(v chir.Value, f TypeFact) {
	if f.IsTop() {
		delete(s.facts, v)
		return
	}
	s.facts[v] = f
}

func classOf(t chir.Type) *chir.ClassType {
	c, _ := chir.StripRef(t).(*chir.ClassType)
	return c
}

// TypeAnalysis is the devirtualization domain. Facts about globals live in a
// package-scoped map shared across per-function runs, joined monotonically
// because several initializer functions may write one global.
type TypeAnalysis struct {
	ctx     *chir.TypeContext
	globals map[*chir.GlobalVar]TypeFact
}

// NewTypeAnalysis creates the domain for pkg.
func NewTypeAnalysis(pkg *chir.Package) *TypeAnalysis {
	return &TypeAnalysis{
		ctx:     pkg.Types,
		globals: make(map[*chir.GlobalVar]TypeFact),
	}
}

// GlobalFact returns the joined fact for a global across all runs so far.
func (a *TypeAnalysis) GlobalFact(g *chir.GlobalVar) TypeFact {
	if f, ok := a.globals[g]; ok {
		return f
	}
	if c := classOf(g.Type()); c != nil {
		return Subtype(c)
	}
	return Top()
}

func (a *TypeAnalysis) Top() *TypeState { return NewTypeState() }

func (a *TypeAnalysis) Entry(fn *chir.Func) *TypeState {
	s := NewTypeState()
	for _, p := range fn.Params {
		if c := classOf(p.Type()); c != nil {
			s.setFact(p, Subtype(c))
		}
	}
	return s
}

func (a *TypeAnalysis) Join(x, y *TypeState) *TypeState {
	out := NewTypeState()
	for v, fx := range x.facts {
		fy, ok := y.facts[v]
		if !ok {
			continue
		}
		if j := JoinFacts(a.ctx, fx, fy); !j.IsTop() {
			out.facts[v] = j
		}
	}
	for v, site := range x.pointsTo {
		if y.pointsTo[v] == site {
			out.pointsTo[v] = site
		}
	}
	for site, fx := range x.objects {
		fy, ok := y.objects[site]
		if !ok {
			continue
		}
		if j := JoinFacts(a.ctx, fx, fy); !j.IsTop() {
			out.objects[site] = j
		}
	}
	return out
}

func (a *TypeAnalysis) Equal(x, y *TypeState) bool {
	if len(x.facts) != len(y.facts) || len(x.pointsTo) != len(y.pointsTo) || len(x.objects) != len(y.objects) {
		return false
	}
	for v, f := range x.facts {
		if y.facts[v] != f {
			return false
		}
	}
	for v, site := range x.pointsTo {
		if y.pointsTo[v] != site {
			return false
		}
	}
	for site, f := range x.objects {
		if y.objects[site] != f {
			return false
		}
	}
	return true
}

func (a *TypeAnalysis) Clone(s *TypeState) *TypeState {
	out := NewTypeState()
	for v, f := range s.facts {
		out.facts[v] = f
	}
	for v, site := range s.pointsTo {
		out.pointsTo[v] = site
	}
	for site, f := range s.objects {
		out.objects[site] = f
	}
	return out
}

func (a *TypeAnalysis) TransferExpr(s *TypeState, e chir.Expr) *TypeState {
	switch e := e.(type) {
	case *chir.AllocateExpr:
		// An object allocation has a class-typed result; a cell allocation
		// has a Ref-typed one.
		if c, ok := e.Result().Type().(*chir.ClassType); ok {
			s.setFact(e.Result(), Exactly(c))
			return s
		}
		s.pointsTo[e.Result()] = e
		s.objects[e] = Top()

	case *chir.StoreExpr:
		a.transferStore(s, e.Stored(), e.Location())

	case *chir.LoadExpr:
		a.transferLoad(s, e.Result(), e.Location())

	case *chir.InvokeExpr:
		if c := classOf(e.Result().Type()); c != nil {
			s.setFact(e.Result(), Subtype(c))
		}

	case *chir.ApplyExpr:
		if fn, ok := e.Callee().(*chir.Func); ok {
			if c := classOf(fn.ReturnType); c != nil {
				s.setFact(e.Result(), Subtype(c))
			}
		}

	case *chir.TypeCastExpr:
		in := s.Fact(a.ctx, e.Operand())
		target := Top()
		if c := classOf(e.Target); c != nil {
			target = Subtype(c)
		}
		if narrower(a.ctx, in, target) {
			s.setFact(e.Result(), in)
			if site, ok := s.pointsTo[e.Operand()]; ok {
				s.pointsTo[e.Result()] = site
			}
		} else {
			s.setFact(e.Result(), target)
		}

	case *chir.BoxValueExpr:
		s.setFact(e.Result(), s.Fact(a.ctx, e.Operand()))

	case *chir.UnBoxExpr:
		s.setFact(e.Result(), s.Fact(a.ctx, e.Operand()))

	case *chir.TransformToGenericExpr:
		s.setFact(e.Result(), s.Fact(a.ctx, e.Operand()))

	case *chir.TransformToConcreteExpr:
		in := s.Fact(a.ctx, e.Operand())
		target := Top()
		if c := classOf(e.Target); c != nil {
			target = Subtype(c)
		}
		if narrower(a.ctx, in, target) {
			s.setFact(e.Result(), in)
		} else {
			s.setFact(e.Result(), target)
		}
	}
	return s
}

func (a *TypeAnalysis) transferStore(s *TypeState, stored, loc chir.Value) {
	fact := s.Fact(a.ctx, stored)
	if g, ok := loc.(*chir.GlobalVar); ok {
		if prev, seen := a.globals[g]; seen {
			fact = JoinFacts(a.ctx, prev, fact)
		}
		a.globals[g] = fact
		return
	}
	if site, ok := s.pointsTo[loc]; ok {
		s.objects[site] = fact
		return
	}
	// Unknown location: the store may alias any cell we track.
	for site := range s.objects {
		s.objects[site] = Top()
	}
}

func (a *TypeAnalysis) transferLoad(s *TypeState, result *chir.LocalVar, loc chir.Value) {
	if g, ok := loc.(*chir.GlobalVar); ok {
		s.setFact(result, a.GlobalFact(g))
		return
	}
	if site, ok := s.pointsTo[loc]; ok {
		if f, ok := s.objects[site]; ok {
			s.setFact(result, f)
		}
		// Loading a Ref-typed cell's content keeps the alias alive.
		if _, isRef := result.Type().(*chir.RefType); isRef {
			s.pointsTo[result] = site
		}
	}
}

// TransferTerm refines the state on branch edges guarded by a dynamic type
// test: the true edge of Branch(InstanceOf(T, v)) learns SubtypeOf(T) for v.
func (a *TypeAnalysis) TransferTerm(s *TypeState, t chir.Terminator, succ *chir.Block) *TypeState {
	br, ok := t.(*chir.BranchExpr)
	if !ok || succ != br.True() {
		return s
	}
	cond, ok := br.Cond().(*chir.LocalVar)
	if !ok {
		return s
	}
	test, ok := cond.Def().(*chir.InstanceOfExpr)
	if !ok {
		return s
	}
	c := classOf(test.Target)
	if c == nil {
		return s
	}
	refined := Subtype(c)
	if prev := s.Fact(a.ctx, test.Operand()); narrower(a.ctx, prev, refined) {
		return s
	}
	s.setFact(test.Operand(), refined)
	return s
}
