package chirtext

import (
	"fmt"
	"strings"

	"chir/internal/chir"
)

var primitives = map[string]chir.PrimitiveKind{
	"Unit":       chir.PrimUnit,
	"Nothing":    chir.PrimNothing,
	"Bool":       chir.PrimBool,
	"Rune":       chir.PrimRune,
	"Int8":       chir.PrimInt8,
	"Int16":      chir.PrimInt16,
	"Int32":      chir.PrimInt32,
	"Int64":      chir.PrimInt64,
	"IntNative":  chir.PrimIntNative,
	"UInt8":      chir.PrimUInt8,
	"UInt16":     chir.PrimUInt16,
	"UInt32":     chir.PrimUInt32,
	"UInt64":     chir.PrimUInt64,
	"UIntNative": chir.PrimUIntNative,
	"Float16":    chir.PrimFloat16,
	"Float32":    chir.PrimFloat32,
	"Float64":    chir.PrimFloat64,
}

var binaryOps = map[string]chir.BinaryOp{
	"add": chir.BinAdd, "sub": chir.BinSub, "mul": chir.BinMul,
	"div": chir.BinDiv, "mod": chir.BinMod,
	"and": chir.BinAnd, "or": chir.BinOr, "xor": chir.BinXor,
	"shl": chir.BinShl, "shr": chir.BinShr,
	"eq": chir.BinEq, "ne": chir.BinNe,
	"lt": chir.BinLt, "le": chir.BinLe, "gt": chir.BinGt, "ge": chir.BinGe,
}

var overflowStrategies = map[string]chir.OverflowStrategy{
	"none":       chir.OverflowNone,
	"checked":    chir.OverflowChecked,
	"wrapping":   chir.OverflowWrapping,
	"throwing":   chir.OverflowThrowing,
	"saturating": chir.OverflowSaturating,
}

// assembler builds one chir.Package from a parsed file, in phases: type
// definitions first, then signatures, then vtables, then bodies, so that
// forward references between items resolve.
type assembler struct {
	pkg     *chir.Package
	funcs   map[string]*chir.Func
	globals map[string]*chir.GlobalVar
}

func assemble(file *File) (*chir.Package, error) {
	a := &assembler{
		pkg:     chir.NewPackage(file.Package),
		funcs:   make(map[string]*chir.Func),
		globals: make(map[string]*chir.GlobalVar),
	}

	for _, item := range file.Items {
		if item.Class != nil {
			a.pkg.NewDef(chir.DefClass, item.Class.Name)
		}
	}
	for _, item := range file.Items {
		switch {
		case item.Class != nil:
			if err := a.classLayout(item.Class); err != nil {
				return nil, err
			}
		case item.Global != nil:
			ty, err := a.resolveType(item.Global.Type)
			if err != nil {
				return nil, err
			}
			name := strings.TrimPrefix(item.Global.Name, "@")
			a.globals[name] = a.pkg.NewGlobal(name, ty, nil)
		case item.Func != nil:
			if err := a.funcSignature(item.Func); err != nil {
				return nil, err
			}
		}
	}
	for _, item := range file.Items {
		if item.Class != nil {
			if err := a.classVTables(item.Class); err != nil {
				return nil, err
			}
		}
	}
	for _, item := range file.Items {
		if item.Func != nil && !item.Func.Declare {
			if err := a.funcBody(item.Func); err != nil {
				return nil, err
			}
		}
	}
	return a.pkg, nil
}

func (a *assembler) resolveType(t *TypeRef) (chir.Type, error) {
	ctx := a.pkg.Types
	if t.Ref != nil {
		inner, err := a.resolveType(t.Ref)
		if err != nil {
			return nil, err
		}
		return ctx.Ref(inner), nil
	}
	if kind, ok := primitives[t.Name]; ok {
		return ctx.Primitive(kind), nil
	}
	if def := a.pkg.DefByName(t.Name); def != nil {
		return ctx.Class(def), nil
	}
	return nil, fmt.Errorf("unknown type %q", t.Name)
}

func (a *assembler) resolveClass(name string) (*chir.ClassType, error) {
	def := a.pkg.DefByName(name)
	if def == nil {
		return nil, fmt.Errorf("unknown class %q", name)
	}
	return a.pkg.Types.Class(def), nil
}

func (a *assembler) classLayout(decl *ClassDecl) error {
	def := a.pkg.DefByName(decl.Name)
	if decl.Super != nil {
		super, err := a.resolveClass(*decl.Super)
		if err != nil {
			return err
		}
		def.Super = super
	}
	for _, f := range decl.Fields {
		ty, err := a.resolveType(f.Type)
		if err != nil {
			return err
		}
		def.Fields = append(def.Fields, chir.Field{Name: f.Name, Type: ty})
	}
	return nil
}

func (a *assembler) classVTables(decl *ClassDecl) error {
	def := a.pkg.DefByName(decl.Name)
	ctx := a.pkg.Types
	for _, vt := range decl.VTables {
		parent, err := a.resolveClass(vt.Parent)
		if err != nil {
			return err
		}
		slots := make([]chir.MethodSlot, len(vt.Slots))
		for i, s := range vt.Slots {
			params := make([]chir.Type, len(s.Params))
			for j, p := range s.Params {
				if params[j], err = a.resolveType(p); err != nil {
					return err
				}
			}
			ret, err := a.resolveType(s.Return)
			if err != nil {
				return err
			}
			slot := chir.MethodSlot{Name: s.Name, Sig: ctx.Func(params, ret)}
			if s.Impl != nil {
				impl, ok := a.funcs[strings.TrimPrefix(*s.Impl, "@")]
				if !ok {
					return fmt.Errorf("vtable slot %s.%s: unknown function %s", decl.Name, s.Name, *s.Impl)
				}
				slot.Impl = impl
			}
			slots[i] = slot
		}
		def.SetVTable(chir.Type(parent), slots)
	}
	return nil
}

func (a *assembler) funcSignature(decl *FuncDecl) error {
	name := strings.TrimPrefix(decl.Name, "@")
	if _, dup := a.funcs[name]; dup {
		return fmt.Errorf("duplicate function @%s", name)
	}
	if decl.Declare && len(decl.Blocks) > 0 {
		return fmt.Errorf("declared function @%s must not have a body", name)
	}
	if !decl.Declare && len(decl.Blocks) == 0 {
		return fmt.Errorf("function @%s has no blocks", name)
	}

	params := make([]*chir.Parameter, len(decl.Params))
	for i, p := range decl.Params {
		ty, err := a.resolveType(p.Type)
		if err != nil {
			return err
		}
		params[i] = a.pkg.NewParameter(strings.TrimPrefix(p.Name, "%"), ty)
	}
	ret, err := a.resolveType(decl.Return)
	if err != nil {
		return err
	}
	a.funcs[name] = a.pkg.NewFunc(name, params, ret, 0)
	return nil
}

func (a *assembler) funcBody(decl *FuncDecl) error {
	fn := a.funcs[strings.TrimPrefix(decl.Name, "@")]
	fn.Body = chir.NewBlockGroup()

	blocks := make(map[string]*chir.Block, len(decl.Blocks))
	for _, bd := range decl.Blocks {
		if _, dup := blocks[bd.Label]; dup {
			return fmt.Errorf("@%s: duplicate block label %q", fn.Name, bd.Label)
		}
		blocks[bd.Label] = fn.Body.NewBlock(bd.Label)
	}

	locals := make(map[string]chir.Value, len(fn.Params))
	for _, p := range fn.Params {
		locals[p.Name] = p
	}

	b := chir.NewBuilder(a.pkg)
	b.EnterFunc(fn)
	for _, bd := range decl.Blocks {
		b.SetInsertPoint(blocks[bd.Label])
		for _, inst := range bd.Insts {
			if err := a.emit(b, locals, inst); err != nil {
				return fmt.Errorf("@%s/%s: %w", fn.Name, bd.Label, err)
			}
		}
		if err := a.emitTerm(b, locals, blocks, bd.Term); err != nil {
			return fmt.Errorf("@%s/%s: %w", fn.Name, bd.Label, err)
		}
	}
	return nil
}

func (a *assembler) emit(b *chir.Builder, locals map[string]chir.Value, inst *Instruction) error {
	switch {
	case inst.Def != nil:
		return a.emitDef(b, locals, inst.Def)

	case inst.Store != nil:
		v, err := a.operand(locals, inst.Store.Value)
		if err != nil {
			return err
		}
		loc, err := a.operand(locals, inst.Store.Loc)
		if err != nil {
			return err
		}
		b.Store(v, loc)
		return nil

	case inst.StoreField != nil:
		v, err := a.operand(locals, inst.StoreField.Value)
		if err != nil {
			return err
		}
		obj, err := a.operand(locals, inst.StoreField.Obj)
		if err != nil {
			return err
		}
		b.StoreField(v, obj, inst.StoreField.Field)
		return nil
	}
	return fmt.Errorf("empty instruction")
}

func (a *assembler) emitDef(b *chir.Builder, locals map[string]chir.Value, def *DefInst) error {
	name := strings.TrimPrefix(def.Result, "%")
	if _, dup := locals[name]; dup {
		return fmt.Errorf("result %%%s already defined", name)
	}

	var result *chir.LocalVar
	rhs := def.Value
	switch {
	case rhs.Alloc != nil:
		ty, err := a.resolveType(rhs.Alloc.Type)
		if err != nil {
			return err
		}
		result = b.Allocate(ty).Result()

	case rhs.New != nil:
		class, err := a.resolveClass(rhs.New.Class)
		if err != nil {
			return err
		}
		result = b.Allocate(class).Result()

	case rhs.Load != nil:
		loc, err := a.operand(locals, rhs.Load.Loc)
		if err != nil {
			return err
		}
		result = b.Load(loc).Result()

	case rhs.GetField != nil:
		obj, err := a.operand(locals, rhs.GetField.Obj)
		if err != nil {
			return err
		}
		result = b.GetField(obj, rhs.GetField.Field).Result()

	case rhs.Call != nil:
		callee, ok := a.funcs[strings.TrimPrefix(rhs.Call.Callee, "@")]
		if !ok {
			return fmt.Errorf("unknown function %s", rhs.Call.Callee)
		}
		args, err := a.operands(locals, rhs.Call.Args)
		if err != nil {
			return err
		}
		result = b.Apply(callee, args...).Result()

	case rhs.Invoke != nil:
		parent, err := a.resolveClass(rhs.Invoke.Parent)
		if err != nil {
			return err
		}
		recv, err := a.operand(locals, rhs.Invoke.Recv)
		if err != nil {
			return err
		}
		args, err := a.operands(locals, rhs.Invoke.Args)
		if err != nil {
			return err
		}
		result = b.Invoke(parent, int(rhs.Invoke.Offset), recv, args...).Result()

	case rhs.Binary != nil:
		lhs, err := a.operand(locals, rhs.Binary.LHS)
		if err != nil {
			return err
		}
		right, err := a.operand(locals, rhs.Binary.RHS)
		if err != nil {
			return err
		}
		strategy := chir.OverflowNone
		if rhs.Binary.Overflow != nil {
			strategy = overflowStrategies[*rhs.Binary.Overflow]
		}
		result = b.Binary(binaryOps[rhs.Binary.Op], strategy, lhs, right).Result()

	default:
		return fmt.Errorf("empty instruction for %%%s", name)
	}

	result.SetName(name)
	locals[name] = result
	return nil
}

func (a *assembler) emitTerm(b *chir.Builder, locals map[string]chir.Value, blocks map[string]*chir.Block, term *TerminatorInst) error {
	target := func(label string) (*chir.Block, error) {
		blk, ok := blocks[label]
		if !ok {
			return nil, fmt.Errorf("unknown block label %q", label)
		}
		return blk, nil
	}

	switch {
	case term.GoTo != nil:
		blk, err := target(term.GoTo.Target)
		if err != nil {
			return err
		}
		b.GoTo(blk)
		return nil

	case term.Branch != nil:
		cond, err := a.operand(locals, term.Branch.Cond)
		if err != nil {
			return err
		}
		trueBlk, err := target(term.Branch.True)
		if err != nil {
			return err
		}
		falseBlk, err := target(term.Branch.False)
		if err != nil {
			return err
		}
		b.Branch(cond, trueBlk, falseBlk)
		return nil

	case term.Exit != nil:
		if term.Exit.Value == nil {
			b.Exit()
			return nil
		}
		v, err := a.operand(locals, term.Exit.Value)
		if err != nil {
			return err
		}
		b.Exit(v)
		return nil
	}
	return fmt.Errorf("missing terminator")
}

func (a *assembler) operand(locals map[string]chir.Value, op *Operand) (chir.Value, error) {
	ctx := a.pkg.Types
	switch {
	case op.Local != nil:
		name := strings.TrimPrefix(*op.Local, "%")
		v, ok := locals[name]
		if !ok {
			return nil, fmt.Errorf("undefined value %%%s", name)
		}
		return v, nil
	case op.Global != nil:
		name := strings.TrimPrefix(*op.Global, "@")
		if fn, ok := a.funcs[name]; ok {
			return fn, nil
		}
		if g, ok := a.globals[name]; ok {
			return g, nil
		}
		return nil, fmt.Errorf("undefined global @%s", name)
	case op.True:
		return chir.NewBoolLiteral(ctx.Bool(), true), nil
	case op.False:
		return chir.NewBoolLiteral(ctx.Bool(), false), nil
	case op.Unit:
		return chir.NewUnitLiteral(ctx.Unit()), nil
	case op.Int != nil:
		return chir.NewIntLiteral(ctx.Int64(), *op.Int), nil
	}
	return nil, fmt.Errorf("empty operand")
}

func (a *assembler) operands(locals map[string]chir.Value, ops []*Operand) ([]chir.Value, error) {
	out := make([]chir.Value, len(ops))
	for i, op := range ops {
		v, err := a.operand(locals, op)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
