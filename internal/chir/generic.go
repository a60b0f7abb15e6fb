package chir

// Generic substitution and the subtype queries shared by the verifier and the
// devirtualization analysis.

// Instantiate replaces every Generic leaf of t that appears in args and
// propagates the substitution through nominal type arguments. A type that
// contains none of the mapped parameters is returned unchanged, preserving
// identity.
func (c *TypeContext) Instantiate(t Type, args map[*GenericType]Type) Type {
	if len(args) == 0 {
		return t
	}
	switch n := t.(type) {
	case *GenericType:
		if repl, ok := args[n]; ok {
			return repl
		}
		return t
	case *TupleType:
		if elems, changed := c.instantiateList(n.Elems, args); changed {
			return c.Tuple(elems...)
		}
	case *FuncType:
		params, pc := c.instantiateList(n.Params, args)
		ret := c.Instantiate(n.Return, args)
		if pc || ret != n.Return {
			return c.funcType(params, ret, n.IsC)
		}
	case *RawArrayType:
		if elem := c.Instantiate(n.Elem, args); elem != n.Elem {
			return c.RawArray(elem)
		}
	case *VArrayType:
		if elem := c.Instantiate(n.Elem, args); elem != n.Elem {
			return c.VArray(elem, n.Size)
		}
	case *PointerType:
		if p := c.Instantiate(n.Pointee, args); p != n.Pointee {
			return c.Pointer(p)
		}
	case *StructType:
		if targs, changed := c.instantiateList(n.TypeArgs, args); changed {
			return c.Struct(n.Def, targs...)
		}
	case *EnumType:
		if targs, changed := c.instantiateList(n.TypeArgs, args); changed {
			return c.Enum(n.Def, targs...)
		}
	case *ClassType:
		if targs, changed := c.instantiateList(n.TypeArgs, args); changed {
			return c.Class(n.Def, targs...)
		}
	case *InterfaceType:
		if targs, changed := c.instantiateList(n.TypeArgs, args); changed {
			return c.Interface(n.Def, targs...)
		}
	case *RefType:
		if base := c.Instantiate(n.Base, args); base != n.Base {
			return c.Ref(base)
		}
	case *BoxType:
		if base := c.Instantiate(n.Base, args); base != n.Base {
			return c.Box(base)
		}
	case *UnionType:
		if alts, changed := c.instantiateList(n.Alts, args); changed {
			return c.Union(alts...)
		}
	case *IntersectionType:
		if alts, changed := c.instantiateList(n.Alts, args); changed {
			return c.Intersection(alts...)
		}
	}
	return t
}

func (c *TypeContext) instantiateList(types []Type, args map[*GenericType]Type) ([]Type, bool) {
	changed := false
	out := make([]Type, len(types))
	for i, t := range types {
		out[i] = c.Instantiate(t, args)
		if out[i] != t {
			changed = true
		}
	}
	if !changed {
		return types, false
	}
	return out, true
}

// bindings pairs a definition's generic parameters with the type arguments of
// one instantiation.
func bindings(def *CustomTypeDef, args []Type) map[*GenericType]Type {
	if len(def.GenericParams) == 0 {
		return nil
	}
	m := make(map[*GenericType]Type, len(def.GenericParams))
	for i, p := range def.GenericParams {
		m[p] = args[i]
	}
	return m
}

// SuperClassOf returns the instantiated super class of t, or nil for a root
// class.
func (c *TypeContext) SuperClassOf(t *ClassType) *ClassType {
	if t.Def.Super == nil {
		return nil
	}
	sup := c.Instantiate(t.Def.Super, bindings(t.Def, t.TypeArgs))
	if cls, ok := sup.(*ClassType); ok {
		return cls
	}
	return nil
}

// LeastCommonSuperClass walks the single-inheritance chains of a and b and
// returns the nearest class type that appears on both, or nil when the chains
// never meet.
func (c *TypeContext) LeastCommonSuperClass(a, b *ClassType) *ClassType {
	seen := make(map[*ClassType]bool)
	for cur := a; cur != nil; cur = c.SuperClassOf(cur) {
		seen[cur] = true
	}
	for cur := b; cur != nil; cur = c.SuperClassOf(cur) {
		if seen[cur] {
			return cur
		}
	}
	return nil
}

// IsSubclassOf reports whether sub is parent or a transitive subclass of it.
func (c *TypeContext) IsSubclassOf(sub, parent *ClassType) bool {
	for cur := sub; cur != nil; cur = c.SuperClassOf(cur) {
		if cur == parent {
			return true
		}
	}
	return false
}

// Implements reports whether t (a class or interface type) reaches iface
// through its declared interfaces, transitively, including through super
// classes.
func (c *TypeContext) Implements(t Type, iface *InterfaceType) bool {
	def := DefOf(t)
	if def == nil {
		return false
	}
	args := bindings(def, TypeArgsOf(t))
	for _, declared := range def.Interfaces {
		inst := c.Instantiate(declared, args)
		if inst == Type(iface) {
			return true
		}
		if sub, ok := inst.(*InterfaceType); ok && c.Implements(sub, iface) {
			return true
		}
	}
	if cls, ok := t.(*ClassType); ok {
		if sup := c.SuperClassOf(cls); sup != nil {
			return c.Implements(sup, iface)
		}
	}
	return false
}

// Compatible reports whether a value of type src may flow into a destination
// of type dst: the types are identical, src is a legal instantiation of a
// generic dst, or src is a subtype of dst through class or interface
// inheritance. Nothing flows everywhere.
func (c *TypeContext) Compatible(src, dst Type) bool {
	if src == dst {
		return true
	}
	if p, ok := src.(*PrimitiveType); ok && p.Kind == PrimNothing {
		return true
	}
	switch d := dst.(type) {
	case *GenericType:
		for _, upper := range d.Upper {
			if !c.Compatible(src, upper) {
				return false
			}
		}
		return true
	case *ClassType:
		if s, ok := src.(*ClassType); ok {
			return c.IsSubclassOf(s, d)
		}
	case *InterfaceType:
		return c.Implements(src, d)
	case *RefType:
		if s, ok := src.(*RefType); ok {
			return c.Compatible(s.Base, d.Base)
		}
	case *BoxType:
		if s, ok := src.(*BoxType); ok {
			return c.Compatible(s.Base, d.Base)
		}
	case *UnionType:
		for _, alt := range d.Alts {
			if c.Compatible(src, alt) {
				return true
			}
		}
	}
	if g, ok := src.(*GenericType); ok {
		// A type parameter flows wherever one of its upper bounds does.
		for _, upper := range g.Upper {
			if c.Compatible(upper, dst) {
				return true
			}
		}
	}
	return false
}

// ContainsGeneric reports whether t mentions any type parameter.
func ContainsGeneric(t Type) bool {
	switch n := t.(type) {
	case *GenericType:
		return true
	case *TupleType:
		return anyGeneric(n.Elems)
	case *FuncType:
		return anyGeneric(n.Params) || ContainsGeneric(n.Return)
	case *RawArrayType:
		return ContainsGeneric(n.Elem)
	case *VArrayType:
		return ContainsGeneric(n.Elem)
	case *PointerType:
		return ContainsGeneric(n.Pointee)
	case *StructType:
		return anyGeneric(n.TypeArgs)
	case *EnumType:
		return anyGeneric(n.TypeArgs)
	case *ClassType:
		return anyGeneric(n.TypeArgs)
	case *InterfaceType:
		return anyGeneric(n.TypeArgs)
	case *RefType:
		return ContainsGeneric(n.Base)
	case *BoxType:
		return ContainsGeneric(n.Base)
	case *UnionType:
		return anyGeneric(n.Alts)
	case *IntersectionType:
		return anyGeneric(n.Alts)
	}
	return false
}

func anyGeneric(types []Type) bool {
	for _, t := range types {
		if ContainsGeneric(t) {
			return true
		}
	}
	return false
}
