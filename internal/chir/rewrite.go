package chir

// Rewrite helpers shared by the optimization passes.

// ReplaceUsesIn walks every expression and terminator of g and swaps operand
// occurrences of old for repl. Unlike LocalVar.ReplaceWith this works for any
// value kind, including parameters and globals.
func ReplaceUsesIn(g *BlockGroup, old, repl Value) {
	replaceIn := func(e Expr) {
		b := e.base()
		for i, op := range b.operands {
			if op == old {
				b.SetOperand(i, repl)
			}
		}
	}
	for _, blk := range g.Blocks {
		for _, e := range blk.Exprs {
			replaceIn(e)
		}
		if blk.Term != nil {
			replaceIn(blk.Term)
		}
	}
}

// ReplaceExprWith substitutes repl for old at old's position in its block,
// rewires old's result uses to repl's result and detaches old. repl must be
// freshly constructed and not yet owned by a block.
func ReplaceExprWith(old, repl Expr) {
	blk := old.Block()
	if blk == nil {
		panic("chir: cannot replace a detached expression")
	}
	if oldTerm, ok := old.(Terminator); ok {
		replTerm, ok := repl.(Terminator)
		if !ok {
			panic("chir: terminator must be replaced by a terminator")
		}
		if oldRes, replRes := oldTerm.Result(), replTerm.Result(); oldRes != nil && replRes != nil {
			oldRes.ReplaceWith(replRes)
		}
		blk.SetTerm(replTerm)
		return
	}
	i := blk.IndexOf(old)
	if i < 0 {
		panic("chir: expression not found in its block")
	}
	if oldRes, replRes := old.Result(), repl.Result(); oldRes != nil && replRes != nil {
		oldRes.ReplaceWith(replRes)
	}
	RemoveExpr(old)
	blk.InsertAt(i, repl)
	if r := repl.Result(); r != nil && r.Name() == "" {
		if oldR := old.Result(); oldR != nil {
			r.SetName(oldR.Name())
		}
	}
}

// LambdasIn returns every Lambda expression in g, in block order.
func LambdasIn(g *BlockGroup) []*LambdaExpr {
	var out []*LambdaExpr
	for _, blk := range g.Blocks {
		for _, e := range blk.Exprs {
			if l, ok := e.(*LambdaExpr); ok {
				out = append(out, l)
			}
		}
	}
	return out
}
