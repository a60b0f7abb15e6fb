package analysis

import (
	"chir/internal/chir"
)

// Analysis is the client side of the fixed-point engine: a join-semilattice
// of abstract states plus transfer functions. States flow forward, one per
// control-flow edge, so a client can refine the state differently per
// successor (a type test refines its true edge only).
type Analysis[S any] interface {
	// Top is the no-information state and the absorbing element of Join.
	Top() S

	// Entry is the state on entry to fn.
	Entry(fn *chir.Func) S

	// Join combines the states of two incoming edges. It must be commutative,
	// associative and idempotent, and must only move up the lattice.
	Join(a, b S) S

	// Equal reports whether two states carry the same information. The engine
	// stops propagating along an edge once its state stops changing.
	Equal(a, b S) bool

	// Clone returns an independent copy of s. The engine hands clones to the
	// transfer functions so clients may mutate in place.
	Clone(s S) S

	// TransferExpr applies the effect of one non-terminator expression.
	TransferExpr(s S, e chir.Expr) S

	// TransferTerm applies the effect of the terminator on the edge to succ.
	// Exception edges are presented like any other successor.
	TransferTerm(s S, t chir.Terminator, succ *chir.Block) S
}

// Engine runs an Analysis to fixed point over function bodies with a
// worklist. Termination relies on the client lattice having finite height.
type Engine[S any] struct {
	client Analysis[S]

	// Filter, when set, restricts the engine to functions it accepts.
	Filter func(fn *chir.Func) bool

	// BlockLimit, when positive, skips functions with more reachable blocks.
	// Skipped functions produce a Result with Skipped set, which clients must
	// treat as all-Top.
	BlockLimit int
}

// NewEngine creates an engine for client.
func NewEngine[S any](client Analysis[S]) *Engine[S] {
	return &Engine[S]{client: client}
}

type edgeKey struct {
	from *chir.Block
	to   *chir.Block
}

// Result holds the fixed point for one function: the joined state at each
// reachable block's entry.
type Result[S any] struct {
	In      map[*chir.Block]S
	Skipped bool
}

// EntryState returns the state at b's entry, or Top for unreached blocks.
func (r *Result[S]) EntryState(client Analysis[S], b *chir.Block) S {
	if s, ok := r.In[b]; ok {
		return client.Clone(s)
	}
	return client.Top()
}

// RunFunc computes the fixed point for fn.
func (e *Engine[S]) RunFunc(fn *chir.Func) Result[S] {
	if fn.Body == nil {
		return Result[S]{Skipped: true}
	}
	if e.Filter != nil && !e.Filter(fn) {
		return Result[S]{Skipped: true}
	}
	blocks := fn.Body.Reachable()
	if e.BlockLimit > 0 && len(blocks) > e.BlockLimit {
		return Result[S]{Skipped: true}
	}

	in := make(map[*chir.Block]S, len(blocks))
	edges := make(map[edgeKey]S)

	entry := fn.Body.Entry
	in[entry] = e.client.Entry(fn)

	queued := map[*chir.Block]bool{entry: true}
	worklist := []*chir.Block{entry}

	for len(worklist) > 0 {
		b := worklist[0]
		worklist = worklist[1:]
		queued[b] = false

		s := e.client.Clone(in[b])
		for _, expr := range b.Exprs {
			s = e.client.TransferExpr(s, expr)
		}
		if b.Term == nil {
			continue
		}
		for _, succ := range distinct(b.Term.Successors()) {
			out := e.client.TransferTerm(e.client.Clone(s), b.Term, succ)
			key := edgeKey{from: b, to: succ}
			if prev, ok := edges[key]; ok && e.client.Equal(prev, out) {
				continue
			}
			edges[key] = out

			next := e.joinEdges(fn, succ, edges)
			if prev, ok := in[succ]; ok && e.client.Equal(prev, next) {
				continue
			}
			in[succ] = next
			if !queued[succ] {
				queued[succ] = true
				worklist = append(worklist, succ)
			}
		}
	}
	return Result[S]{In: in}
}

// joinEdges folds the states of every known edge into b, plus the function
// entry state when b is the entry block.
func (e *Engine[S]) joinEdges(fn *chir.Func, b *chir.Block, edges map[edgeKey]S) S {
	var acc S
	have := false
	if b == fn.Body.Entry {
		acc = e.client.Entry(fn)
		have = true
	}
	for _, pred := range b.Preds() {
		s, ok := edges[edgeKey{from: pred, to: b}]
		if !ok {
			continue
		}
		if !have {
			acc = e.client.Clone(s)
			have = true
			continue
		}
		acc = e.client.Join(acc, s)
	}
	if !have {
		return e.client.Top()
	}
	return acc
}

func distinct(blocks []*chir.Block) []*chir.Block {
	out := blocks[:0:0]
	seen := make(map[*chir.Block]bool, len(blocks))
	for _, b := range blocks {
		if !seen[b] {
			seen[b] = true
			out = append(out, b)
		}
	}
	return out
}

// Replay walks one block under the fixed point, calling visit with the state
// holding immediately before each expression. Rewriting passes use it to
// inspect states without the engine retaining per-expression maps.
func Replay[S any](client Analysis[S], res Result[S], b *chir.Block, visit func(s S, e chir.Expr)) {
	s := res.EntryState(client, b)
	for _, expr := range b.Exprs {
		visit(s, expr)
		s = client.TransferExpr(s, expr)
	}
	if b.Term != nil {
		visit(s, b.Term)
	}
}
