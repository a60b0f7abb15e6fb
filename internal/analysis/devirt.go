package analysis

import (
	"chir/internal/chir"
)

// Devirtualize replaces virtual Invokes whose receiver is proven ExactlyOf
// some class with direct Applies of the resolved vtable slot, and removes
// casts that the type analysis proves are identities.
type Devirtualize struct {
	// BlockLimit bounds analysis to functions below a reachable-block count.
	// Zero means no limit.
	BlockLimit int
}

func (d *Devirtualize) Name() string { return "Devirtualization" }

func (d *Devirtualize) Description() string {
	return "Rewrites virtual calls with statically known receivers into direct calls"
}

func (d *Devirtualize) Apply(pkg *chir.Package) bool {
	domain := NewTypeAnalysis(pkg)
	engine := NewEngine[*TypeState](domain)
	engine.Filter = hasVirtualCallOrCast
	engine.BlockLimit = d.BlockLimit

	changed := false
	for _, fn := range pkg.Funcs {
		res := engine.RunFunc(fn)
		if res.Skipped {
			continue
		}
		if d.rewriteFunc(domain, res, fn) {
			changed = true
		}
	}
	return changed
}

func hasVirtualCallOrCast(fn *chir.Func) bool {
	if fn.Body == nil {
		return false
	}
	for _, b := range fn.Body.Blocks {
		for _, e := range b.Exprs {
			switch e.Kind() {
			case chir.KindInvoke, chir.KindTypeCast:
				return true
			}
		}
		if b.Term != nil && b.Term.Kind() == chir.KindInvokeWithException {
			return true
		}
	}
	return false
}

func (d *Devirtualize) rewriteFunc(domain *TypeAnalysis, res Result[*TypeState], fn *chir.Func) bool {
	type rewrite struct {
		old  chir.Expr
		repl chir.Expr
		drop bool
	}
	var rewrites []rewrite

	for _, b := range fn.Body.Reachable() {
		Replay(domain, res, b, func(s *TypeState, e chir.Expr) {
			switch e := e.(type) {
			case *chir.InvokeExpr:
				impl, recvClass := resolveTarget(domain, s, e.Receiver(), e.Parent, e.Offset)
				if impl == nil {
					return
				}
				args := append([]chir.Value{impl, e.Receiver()}, e.Args()...)
				repl := chir.NewApply(args[0], args[1:]...)
				repl.ThisType = recvClass
				rewrites = append(rewrites, rewrite{old: e, repl: repl})

			case *chir.InvokeWithExceptionExpr:
				impl, recvClass := resolveTarget(domain, s, e.Receiver(), e.Parent, e.Offset)
				if impl == nil {
					return
				}
				args := append([]chir.Value{e.Receiver()}, e.Args()...)
				repl := chir.NewApplyWithException(impl, args, e.Normal(), e.Exception())
				repl.ThisType = recvClass
				rewrites = append(rewrites, rewrite{old: e, repl: repl})

			case *chir.TypeCastExpr:
				target := Top()
				if c := classOf(e.Target); c != nil {
					target = Subtype(c)
				}
				if target.IsTop() {
					return
				}
				if narrower(domain.ctx, s.Fact(domain.ctx, e.Operand()), target) {
					rewrites = append(rewrites, rewrite{old: e, drop: true})
				}
			}
		})
	}

	for _, rw := range rewrites {
		if rw.drop {
			cast := rw.old.(*chir.TypeCastExpr)
			cast.Result().ReplaceWith(cast.Operand())
			chir.RemoveExpr(cast)
			continue
		}
		chir.ReplaceExprWith(rw.old, rw.repl)
	}
	return len(rewrites) > 0
}

// resolveTarget returns the concrete implementation behind a virtual call
// whose receiver is proven ExactlyOf some class, or nil when the fact is too
// weak or the slot is abstract.
func resolveTarget(domain *TypeAnalysis, s *TypeState, recv chir.Value, parent chir.Type, offset int) (*chir.Func, *chir.ClassType) {
	fact := s.Fact(domain.ctx, recv)
	if fact.Kind != FactExactlyOf {
		return nil, nil
	}
	slot, ok := fact.Class.Def.SlotAt(parent, offset)
	if !ok || slot.Impl == nil {
		return nil, nil
	}
	return slot.Impl, fact.Class
}
