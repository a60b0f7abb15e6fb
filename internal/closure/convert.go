package closure

import (
	"fmt"

	"chir/internal/chir"
)

// Convert eliminates nested functions from a package. Each Lambda becomes an
// environment object: a generated class holding the captured values, whose
// vtable carries the lifted body. Calls at the definition site go directly to
// the lifted function; a closure that escapes is invoked virtually through
// the environment's base class.
//
// The pass is idempotent: a converted package contains no Lambdas, so a
// second run finds nothing to do.
type Convert struct{}

func (Convert) Name() string { return "Closure Conversion" }

func (Convert) Description() string {
	return "Lifts nested functions into environment classes and top-level functions"
}

func (Convert) Apply(pkg *chir.Package) bool {
	c := &converter{
		pkg:   pkg,
		bases: make(map[string]*envBase),
		boxes: make(map[chir.Type]*chir.CustomTypeDef),
		done:  make(map[*chir.LambdaExpr]bool),
	}
	return c.run()
}

// envBase is one generated abstract environment class, shared by every
// closure with the same captured-call signature shape.
type envBase struct {
	def   *chir.CustomTypeDef
	class *chir.ClassType
	sig   *chir.FuncType
}

type converter struct {
	pkg   *chir.Package
	bases map[string]*envBase
	boxes map[chir.Type]*chir.CustomTypeDef
	done  map[*chir.LambdaExpr]bool

	baseCount int
	implCount int
	liftCount int
}

func (c *converter) run() bool {
	changed := false

	// Lifted bodies are appended to pkg.Funcs while iterating, which is how
	// lambdas nested inside other lambdas get picked up.
	for i := 0; i < len(c.pkg.Funcs); i++ {
		fn := c.pkg.Funcs[i]
		if fn.Body == nil {
			continue
		}
		for _, lambda := range chir.LambdasIn(fn.Body) {
			if c.done[lambda] {
				continue
			}
			c.convertLambda(fn, lambda)
			c.done[lambda] = true
			changed = true
		}
	}

	if changed {
		c.retypeClosureValues()
		c.rewriteEscapedCalls()
	}
	return changed
}

// retypeClosureValues rewrites the static type of every value that carried a
// converted closure: after conversion the runtime representation is an
// environment object, so function-typed parameters, cells, fields and
// globals whose signature shape gained an environment base become values of
// that base class. Direct references to top-level functions keep their
// function type.
func (c *converter) retypeClosureValues() {
	ctx := c.pkg.Types

	var mapType func(t chir.Type) (chir.Type, bool)
	mapType = func(t chir.Type) (chir.Type, bool) {
		switch t := t.(type) {
		case *chir.FuncType:
			if b, ok := c.bases[t.String()]; ok {
				return chir.Type(b.class), true
			}
		case *chir.RefType:
			if inner, ok := mapType(t.Base); ok {
				return chir.Type(ctx.Ref(inner)), true
			}
		}
		return t, false
	}

	for _, def := range c.pkg.Defs {
		for i, f := range def.Fields {
			if nt, ok := mapType(f.Type); ok {
				def.Fields[i].Type = nt
			}
		}
	}
	for _, g := range c.pkg.GlobalVars {
		if nt, ok := mapType(g.Type()); ok {
			g.SetType(nt)
		}
	}
	for _, fn := range c.pkg.Funcs {
		for _, p := range fn.Params {
			if nt, ok := mapType(p.Type()); ok {
				p.SetType(nt)
			}
		}
		if fn.Body == nil {
			continue
		}
		for _, blk := range fn.Body.Blocks {
			for _, e := range blk.Exprs {
				c.retypeExpr(mapType, e)
			}
			if blk.Term != nil {
				c.retypeExpr(mapType, blk.Term)
			}
		}
	}
}

func (c *converter) retypeExpr(mapType func(chir.Type) (chir.Type, bool), e chir.Expr) {
	if alloc, ok := e.(*chir.AllocateExpr); ok {
		if nt, ok := mapType(alloc.Allocated); ok {
			alloc.Allocated = nt
		}
	}
	if r := e.Result(); r != nil {
		if nt, ok := mapType(r.Type()); ok {
			r.SetType(nt)
		}
	}
}

func (c *converter) convertLambda(owner *chir.Func, lambda *chir.LambdaExpr) {
	ctx := c.pkg.Types

	c.classifyCaptures(owner, lambda)
	c.boxMutableCaptures(owner, lambda)

	captured := append([]chir.Value(nil), lambda.Captured()...)
	base := c.baseFor(lambda.Fn.Sig)
	impl, fields := c.implFor(base, captured)
	lifted := c.lift(owner, lambda, impl, fields, captured)

	slots := []chir.MethodSlot{{Name: "invoke", Sig: base.sig, Impl: c.bridgeIfGeneric(lambda, impl, lifted)}}
	impl.Def.SetVTable(chir.Type(base.class), slots)

	// Build the environment object where the Lambda stood.
	blk := lambda.Block()
	at := blk.IndexOf(lambda)
	alloc := chir.NewAllocate(ctx, impl)
	blk.InsertAt(at, alloc)
	alloc.Result().SetName(fmt.Sprintf("env%d", c.implCount))
	for j, cap := range captured {
		store := chir.NewStoreField(ctx, cap, alloc.Result(), fields[j].Name)
		blk.InsertAt(at+1+j, store)
	}

	// Definition-site calls go straight to the lifted function.
	for _, user := range lambda.Result().Users() {
		apply, ok := user.(*chir.ApplyExpr)
		if !ok || apply.Callee() != chir.Value(lambda.Result()) {
			continue
		}
		direct := chir.NewApply(lifted, prepend(alloc.Result(), apply.Args())...)
		direct.ThisType = impl
		chir.ReplaceExprWith(apply, direct)
	}

	// Every remaining use sees the environment object.
	lambda.Result().ReplaceWith(alloc.Result())
	chir.RemoveExpr(lambda)
}

// classifyCaptures rejects the one capture shape the converter has no
// lowering for: a generic receiver captured outside an instance constructor.
func (c *converter) classifyCaptures(owner *chir.Func, lambda *chir.LambdaExpr) {
	for _, cap := range lambda.Captured() {
		p, ok := cap.(*chir.Parameter)
		if !ok || !p.This {
			continue
		}
		if chir.ContainsGeneric(p.Type()) && !owner.Attrs.Has(chir.AttrConstructor) {
			panic(fmt.Sprintf("chir: cannot convert capture of generic receiver in %s", owner.Name))
		}
	}
}

// boxMutableCaptures rewrites captured mutable cells to go through a
// generated one-field box class, so the closure and the enclosing function
// keep observing the same cell. Must run before environment-field synthesis;
// the box object is what ends up captured.
func (c *converter) boxMutableCaptures(owner *chir.Func, lambda *chir.LambdaExpr) {
	ctx := c.pkg.Types
	for _, cap := range lambda.Captured() {
		lv, ok := cap.(*chir.LocalVar)
		if !ok {
			continue
		}
		alloc, ok := lv.Def().(*chir.AllocateExpr)
		if !ok {
			continue
		}
		ref, ok := lv.Type().(*chir.RefType)
		if !ok {
			continue
		}

		boxClass := ctx.Class(c.boxClassFor(ref.Base))
		boxAlloc := chir.NewAllocate(ctx, boxClass)

		// Swap the cell allocation for a box allocation, then turn every
		// load/store of the cell into field access on the box.
		users := append([]chir.Expr(nil), lv.Users()...)
		chir.ReplaceExprWith(alloc, boxAlloc)
		for _, user := range users {
			switch user := user.(type) {
			case *chir.LoadExpr:
				get := chir.NewGetField(ctx, boxAlloc.Result(), "value")
				chir.ReplaceExprWith(user, get)
			case *chir.StoreExpr:
				set := chir.NewStoreField(ctx, user.Stored(), boxAlloc.Result(), "value")
				chir.ReplaceExprWith(user, set)
			}
		}
	}
}

func (c *converter) boxClassFor(elem chir.Type) *chir.CustomTypeDef {
	if def, ok := c.boxes[elem]; ok {
		return def
	}
	def := c.pkg.NewDef(chir.DefClass, fmt.Sprintf("Box$%d", len(c.boxes)))
	def.Fields = []chir.Field{{Name: "value", Type: elem, Mutable: true}}
	c.boxes[elem] = def
	return def
}

// baseFor returns the abstract environment class for one call-signature
// shape, creating it on first use.
func (c *converter) baseFor(lambdaSig *chir.FuncType) *envBase {
	ctx := c.pkg.Types
	key := lambdaSig.String()
	if b, ok := c.bases[key]; ok {
		return b
	}
	def := c.pkg.NewDef(chir.DefClass, fmt.Sprintf("Closure$%d", c.baseCount))
	c.baseCount++
	class := ctx.Class(def)

	sig := ctx.Func(prependType(class, lambdaSig.Params), lambdaSig.Return)
	def.SetVTable(chir.Type(class), []chir.MethodSlot{{Name: "invoke", Sig: sig}})

	b := &envBase{def: def, class: class, sig: sig}
	c.bases[key] = b
	return b
}

// implFor creates the concrete environment class for one lambda, with one
// field per captured value.
func (c *converter) implFor(base *envBase, captured []chir.Value) (*chir.ClassType, []chir.Field) {
	def := c.pkg.NewDef(chir.DefClass, fmt.Sprintf("%s$Env%d", base.def.Name, c.implCount))
	c.implCount++
	def.Super = chir.Type(base.class)

	fields := make([]chir.Field, len(captured))
	for i, cap := range captured {
		fields[i] = chir.Field{Name: fmt.Sprintf("cap%d", i), Type: cap.Type()}
	}
	def.Fields = fields
	return c.pkg.Types.Class(def), fields
}

// lift moves the lambda body into a top-level function taking the
// environment as its first parameter, and reroutes captured references
// through environment fields.
func (c *converter) lift(owner *chir.Func, lambda *chir.LambdaExpr, impl *chir.ClassType, fields []chir.Field, captured []chir.Value) *chir.Func {
	ctx := c.pkg.Types
	name := fmt.Sprintf("%s$lambda%d", owner.Name, c.liftCount)
	c.liftCount++

	envParam := c.pkg.NewParameter("env", impl)
	params := prependParam(envParam, lambda.Fn.Params)
	lifted := c.pkg.NewFunc(name, params, lambda.Fn.ReturnType, lambda.Fn.Attrs|chir.AttrLifted)
	lifted.GenericParams = lambda.Fn.GenericParams
	lifted.Body = lambda.Fn.Body

	// Captured outer values become field loads at the top of the entry.
	entry := lifted.Body.Entry
	for i, cap := range captured {
		get := chir.NewGetField(ctx, envParam, fields[i].Name)
		get.Result().SetName(fmt.Sprintf("cap%d", i))
		entry.InsertAt(i, get)
		chir.ReplaceUsesIn(lifted.Body, cap, get.Result())
	}
	return lifted
}

// bridgeIfGeneric returns the vtable implementation for a lambda: the lifted
// function itself, or a non-generic wrapper thunk when the lifted function
// still carries generic parameters and cannot sit in a vtable slot directly.
func (c *converter) bridgeIfGeneric(lambda *chir.LambdaExpr, impl *chir.ClassType, lifted *chir.Func) *chir.Func {
	if len(lifted.GenericParams) == 0 {
		return lifted
	}
	b := chir.NewBuilder(c.pkg)
	envParam := c.pkg.NewParameter("env", impl)
	params := []*chir.Parameter{envParam}
	for _, p := range lambda.Fn.Params {
		params = append(params, c.pkg.NewParameter(p.Name, p.Type()))
	}
	wrapper := b.StartFunc(lifted.Name+"$bridge", params, lifted.ReturnType, chir.AttrLifted)
	args := make([]chir.Value, len(params))
	for i, p := range params {
		args[i] = p
	}
	call := b.Apply(lifted, args...)
	b.Exit(call.Result())
	return wrapper
}

// rewriteEscapedCalls turns direct calls of environment objects into virtual
// Invokes through the environment base, slot 0. Both call forms are covered:
// plain Applies and ApplyWithException terminators keep their edges.
func (c *converter) rewriteEscapedCalls() {
	ctx := c.pkg.Types
	baseOf := func(t chir.Type) *envBase {
		class, ok := chir.StripRef(t).(*chir.ClassType)
		if !ok {
			return nil
		}
		for _, b := range c.bases {
			if class == b.class || ctx.IsSubclassOf(class, b.class) {
				return b
			}
		}
		return nil
	}

	for _, fn := range c.pkg.Funcs {
		if fn.Body == nil {
			continue
		}
		for _, blk := range fn.Body.Blocks {
			var calls []*chir.ApplyExpr
			for _, e := range blk.Exprs {
				if apply, ok := e.(*chir.ApplyExpr); ok && baseOf(apply.Callee().Type()) != nil {
					calls = append(calls, apply)
				}
			}
			for _, apply := range calls {
				base := baseOf(apply.Callee().Type())
				invoke := chir.NewInvoke(ctx, chir.Type(base.class), 0, apply.Callee(), apply.Args()...)
				chir.ReplaceExprWith(apply, invoke)
			}
			if apply, ok := blk.Term.(*chir.ApplyWithExceptionExpr); ok {
				if base := baseOf(apply.Callee().Type()); base != nil {
					invoke := chir.NewInvokeWithException(ctx, chir.Type(base.class), 0,
						apply.Callee(), apply.Args(), apply.Normal(), apply.Exception())
					chir.ReplaceExprWith(apply, invoke)
				}
			}
		}
	}
}

func prepend(first chir.Value, rest []chir.Value) []chir.Value {
	out := make([]chir.Value, 0, len(rest)+1)
	out = append(out, first)
	return append(out, rest...)
}

func prependType(first chir.Type, rest []chir.Type) []chir.Type {
	out := make([]chir.Type, 0, len(rest)+1)
	out = append(out, first)
	return append(out, rest...)
}

func prependParam(first *chir.Parameter, rest []*chir.Parameter) []*chir.Parameter {
	out := make([]*chir.Parameter, 0, len(rest)+1)
	out = append(out, first)
	return append(out, rest...)
}
