package verifier

import (
	"fmt"

	"chir/internal/chir"
	"chir/internal/errors"
)

// NonEmptyBlocks rejects blocks with neither expressions nor a terminator,
// and reachable blocks missing a terminator.
type NonEmptyBlocks struct{}

func (NonEmptyBlocks) Name() string { return "NonEmptyBlocks" }

func (NonEmptyBlocks) CheckPackage(pkg *chir.Package) []errors.Violation { return nil }

func (r NonEmptyBlocks) CheckFunc(pkg *chir.Package, fn *chir.Func) []errors.Violation {
	if fn.Body == nil {
		return nil
	}
	var out []errors.Violation
	reachable := reachableSet(fn)
	for _, b := range fn.Body.Blocks {
		if len(b.Exprs) == 0 && b.Term == nil {
			out = append(out, errors.EmptyBlock(r.Name(), funcSite(pkg, fn, b, nil)))
			continue
		}
		if b.Term == nil && reachable[b] {
			out = append(out, errors.MissingTerminator(r.Name(), funcSite(pkg, fn, b, nil)))
		}
	}
	return out
}

// ExprArity rejects operand lists outside the kind's documented arity and
// nil operand slots, and terminators whose successors belong to another
// function.
type ExprArity struct{}

func (ExprArity) Name() string { return "ExprArity" }

func (ExprArity) CheckPackage(pkg *chir.Package) []errors.Violation { return nil }

func (r ExprArity) CheckFunc(pkg *chir.Package, fn *chir.Func) []errors.Violation {
	var out []errors.Violation
	eachExpr(fn, func(b *chir.Block, e chir.Expr) {
		arity := chir.OperandArity(e.Kind())
		n := len(e.Operands())
		if n < arity.Min || (arity.Max >= 0 && n > arity.Max) {
			out = append(out, errors.OperandArity(r.Name(), funcSite(pkg, fn, b, e),
				e.Kind().String(), n, arity.Min, arity.Max))
		}
		for i, op := range e.Operands() {
			if op == nil {
				out = append(out, errors.NilOperand(r.Name(), funcSite(pkg, fn, b, e), i))
			}
		}
		if t, ok := e.(chir.Terminator); ok {
			for _, succ := range t.Successors() {
				if !fn.Body.Contains(succ) {
					out = append(out, errors.ForeignSuccessor(r.Name(),
						funcSite(pkg, fn, b, e), succ.Name))
				}
			}
		}
	})
	return out
}

// TypeCompat rejects stores, call arguments and returns whose source type
// cannot flow into the destination type.
type TypeCompat struct{}

func (TypeCompat) Name() string { return "TypeCompat" }

func (TypeCompat) CheckPackage(pkg *chir.Package) []errors.Violation { return nil }

func (r TypeCompat) CheckFunc(pkg *chir.Package, fn *chir.Func) []errors.Violation {
	ctx := pkg.Types
	var out []errors.Violation

	flow := func(b *chir.Block, e chir.Expr, code string, src, dst chir.Type) {
		if src == nil || dst == nil {
			return
		}
		if !ctx.Compatible(src, dst) {
			out = append(out, errors.TypeMismatch(code, r.Name(),
				funcSite(pkg, fn, b, e), src.String(), dst.String()))
		}
	}

	badCallee := func(b *chir.Block, e chir.Expr, t chir.Type) {
		out = append(out, errors.NonFunctionCallee(r.Name(), funcSite(pkg, fn, b, e), t.String()))
	}

	eachExpr(fn, func(b *chir.Block, e chir.Expr) {
		switch e := e.(type) {
		case *chir.StoreExpr:
			if ref, ok := e.Location().Type().(*chir.RefType); ok {
				flow(b, e, errors.ViolationStoreType, e.Stored().Type(), ref.Base)
			}
		case *chir.ApplyExpr:
			checkCallArgs(flow, badCallee, b, e, e.Callee(), e.Args())
		case *chir.ApplyWithExceptionExpr:
			checkCallArgs(flow, badCallee, b, e, e.Callee(), e.Args())
		case *chir.ExitExpr:
			if v := e.ReturnValue(); v != nil {
				flow(b, e, errors.ViolationReturnType, v.Type(), fn.ReturnType)
			}
		}
	})
	return out
}

// checkCallArgs rejects a callee that is not function-typed, then flows each
// argument into its parameter type. Calls with a mismatched argument count
// are left to the arity rule.
func checkCallArgs(flow func(*chir.Block, chir.Expr, string, chir.Type, chir.Type), bad func(*chir.Block, chir.Expr, chir.Type), b *chir.Block, e chir.Expr, callee chir.Value, args []chir.Value) {
	sig, ok := callee.Type().(*chir.FuncType)
	if !ok {
		bad(b, e, callee.Type())
		return
	}
	if len(args) != len(sig.Params) {
		return
	}
	for i, arg := range args {
		flow(b, e, errors.ViolationArgumentType, arg.Type(), sig.Params[i])
	}
}

// VTableRefs rejects virtual calls naming slots the receiver's parent table
// does not declare, and vtable slots whose implementation signature cannot
// satisfy the declared slot signature.
type VTableRefs struct{}

func (VTableRefs) Name() string { return "VTableRefs" }

func (r VTableRefs) CheckPackage(pkg *chir.Package) []errors.Violation {
	var out []errors.Violation
	for _, def := range pkg.Defs {
		for _, entry := range def.VTables {
			for i, slot := range entry.Slots {
				if slot.Impl == nil {
					continue
				}
				implSig := slot.Impl.Sig
				if len(implSig.Params) != len(slot.Sig.Params) ||
					!pkg.Types.Compatible(implSig.Return, slot.Sig.Return) {
					site := errors.Site{Package: pkg.Name}
					out = append(out, errors.VTableImplMismatch(r.Name(), site,
						fmt.Sprintf("%s[%d] of %s", entry.Parent, i, def.Name),
						slot.Impl.Name))
				}
			}
		}
	}
	return out
}

func (r VTableRefs) CheckFunc(pkg *chir.Package, fn *chir.Func) []errors.Violation {
	var out []errors.Violation
	report := func(b *chir.Block, e chir.Expr, parent chir.Type, offset int) {
		def := chir.DefOf(parent)
		if def == nil {
			out = append(out, errors.MissingVTableSlot(r.Name(),
				funcSite(pkg, fn, b, e), parent.String(), offset))
			return
		}
		if _, ok := def.SlotAt(parent, offset); !ok {
			out = append(out, errors.MissingVTableSlot(r.Name(),
				funcSite(pkg, fn, b, e), parent.String(), offset))
		}
	}
	eachExpr(fn, func(b *chir.Block, e chir.Expr) {
		switch e := e.(type) {
		case *chir.InvokeExpr:
			report(b, e, e.Parent, e.Offset)
		case *chir.InvokeStaticExpr:
			report(b, e, e.Parent, e.Offset)
		case *chir.InvokeWithExceptionExpr:
			report(b, e, e.Parent, e.Offset)
		case *chir.InvokeStaticWithExceptionExpr:
			report(b, e, e.Parent, e.Offset)
		}
	})
	return out
}

// ReachableRefs rejects operands whose defining expression lives in an
// unreachable block of the same function, a dangling edge left behind by a
// careless rewrite.
type ReachableRefs struct{}

func (ReachableRefs) Name() string { return "ReachableRefs" }

func (ReachableRefs) CheckPackage(pkg *chir.Package) []errors.Violation { return nil }

func (r ReachableRefs) CheckFunc(pkg *chir.Package, fn *chir.Func) []errors.Violation {
	if fn.Body == nil {
		return nil
	}
	reachable := reachableSet(fn)
	var out []errors.Violation
	eachExpr(fn, func(b *chir.Block, e chir.Expr) {
		if !reachable[b] {
			return
		}
		for _, op := range e.Operands() {
			lv, ok := op.(*chir.LocalVar)
			if !ok || lv.Def() == nil {
				continue
			}
			defBlock := lv.Def().Block()
			if defBlock == nil || (fn.Body.Contains(defBlock) && !reachable[defBlock]) {
				out = append(out, errors.UnreachableRef(r.Name(),
					funcSite(pkg, fn, b, e), lv.String()))
			}
		}
	})
	return out
}

// UniqueIdents rejects top-level name collisions across functions, globals
// and type definitions.
type UniqueIdents struct{}

func (UniqueIdents) Name() string { return "UniqueIdents" }

func (r UniqueIdents) CheckPackage(pkg *chir.Package) []errors.Violation {
	var out []errors.Violation
	site := errors.Site{Package: pkg.Name}

	seen := make(map[string]bool)
	collide := func(name string) {
		if seen[name] {
			out = append(out, errors.DuplicateName(r.Name(), site, name))
			return
		}
		seen[name] = true
	}
	for _, fn := range pkg.Funcs {
		collide(fn.Name)
	}
	for _, g := range pkg.GlobalVars {
		collide(g.Name)
	}
	defs := make(map[string]bool)
	for _, def := range pkg.Defs {
		if defs[def.Name] {
			out = append(out, errors.DuplicateName(r.Name(), site, def.Name))
			continue
		}
		defs[def.Name] = true
	}
	return out
}

func (UniqueIdents) CheckFunc(pkg *chir.Package, fn *chir.Func) []errors.Violation { return nil }

// eachExpr visits every expression and terminator of fn in block order.
func eachExpr(fn *chir.Func, visit func(b *chir.Block, e chir.Expr)) {
	if fn.Body == nil {
		return
	}
	for _, b := range fn.Body.Blocks {
		for _, e := range b.Exprs {
			visit(b, e)
		}
		if b.Term != nil {
			visit(b, b.Term)
		}
	}
}

func reachableSet(fn *chir.Func) map[*chir.Block]bool {
	set := make(map[*chir.Block]bool)
	for _, b := range fn.Body.Reachable() {
		set[b] = true
	}
	return set
}
