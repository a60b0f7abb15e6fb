package chir

import (
	"fmt"
	"strings"
)

// CHIR types are immutable and structurally interned: constructing the same
// type description twice through one TypeContext yields the same instance, so
// passes compare types with ==.

// Type is implemented by every CHIR type variant.
type Type interface {
	typeNode()
	String() string
}

// PrimitiveKind enumerates the builtin scalar types.
type PrimitiveKind int

const (
	PrimUnit PrimitiveKind = iota
	PrimNothing
	PrimBool
	PrimRune
	PrimInt8
	PrimInt16
	PrimInt32
	PrimInt64
	PrimIntNative
	PrimUInt8
	PrimUInt16
	PrimUInt32
	PrimUInt64
	PrimUIntNative
	PrimFloat16
	PrimFloat32
	PrimFloat64
)

var primitiveNames = map[PrimitiveKind]string{
	PrimUnit:       "Unit",
	PrimNothing:    "Nothing",
	PrimBool:       "Bool",
	PrimRune:       "Rune",
	PrimInt8:       "Int8",
	PrimInt16:      "Int16",
	PrimInt32:      "Int32",
	PrimInt64:      "Int64",
	PrimIntNative:  "IntNative",
	PrimUInt8:      "UInt8",
	PrimUInt16:     "UInt16",
	PrimUInt32:     "UInt32",
	PrimUInt64:     "UInt64",
	PrimUIntNative: "UIntNative",
	PrimFloat16:    "Float16",
	PrimFloat32:    "Float32",
	PrimFloat64:    "Float64",
}

func (k PrimitiveKind) String() string {
	if name, ok := primitiveNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Prim(%d)", int(k))
}

// PrimitiveType is a builtin scalar type.
type PrimitiveType struct {
	Kind PrimitiveKind
}

// TupleType is an anonymous product of element types.
type TupleType struct {
	Elems []Type
}

// FuncType is the type of a function value. IsC marks foreign calling
// convention signatures.
type FuncType struct {
	Params []Type
	Return Type
	IsC    bool
}

// RawArrayType is a heap array without a statically known length.
type RawArrayType struct {
	Elem Type
}

// VArrayType is a fixed-length value array.
type VArrayType struct {
	Elem Type
	Size int64
}

// PointerType is an unmanaged pointer, used only across foreign boundaries.
type PointerType struct {
	Pointee Type
}

// CStringType is a foreign NUL-terminated string.
type CStringType struct{}

// StructType, EnumType, ClassType and InterfaceType are nominal types: they
// reference the one CustomTypeDef created for their declaration and carry the
// type arguments of this particular instantiation. TypeArgs always has the
// same length as the definition's generic parameter list.

type StructType struct {
	Def      *CustomTypeDef
	TypeArgs []Type
}

type EnumType struct {
	Def      *CustomTypeDef
	TypeArgs []Type
}

type ClassType struct {
	Def      *CustomTypeDef
	TypeArgs []Type
}

type InterfaceType struct {
	Def      *CustomTypeDef
	TypeArgs []Type
}

// GenericType is a type parameter occurrence. Owner identifies the declaring
// function or type definition so that equally named parameters of different
// declarations stay distinct.
type GenericType struct {
	Name  string
	Upper []Type
	Owner string
}

// RefType is an addressable location holding a Base value. The base of a Ref
// is never itself a Ref.
type RefType struct {
	Base Type
}

// BoxType is a heap-boxed mutable cell. The base of a Box is never a Ref.
type BoxType struct {
	Base Type
}

// UnionType and IntersectionType are auxiliary types used while reasoning
// about generic upper bounds.

type UnionType struct {
	Alts []Type
}

type IntersectionType struct {
	Alts []Type
}

func (*PrimitiveType) typeNode()    {}
func (*TupleType) typeNode()        {}
func (*FuncType) typeNode()         {}
func (*RawArrayType) typeNode()     {}
func (*VArrayType) typeNode()       {}
func (*PointerType) typeNode()      {}
func (*CStringType) typeNode()      {}
func (*StructType) typeNode()       {}
func (*EnumType) typeNode()         {}
func (*ClassType) typeNode()        {}
func (*InterfaceType) typeNode()    {}
func (*GenericType) typeNode()      {}
func (*RefType) typeNode()          {}
func (*BoxType) typeNode()          {}
func (*UnionType) typeNode()        {}
func (*IntersectionType) typeNode() {}

func (t *PrimitiveType) String() string { return t.Kind.String() }

func (t *TupleType) String() string {
	return "(" + joinTypes(t.Elems, ", ") + ")"
}

func (t *FuncType) String() string {
	prefix := ""
	if t.IsC {
		prefix = "CFunc"
	}
	return fmt.Sprintf("%s(%s) -> %s", prefix, joinTypes(t.Params, ", "), t.Return)
}

func (t *RawArrayType) String() string { return fmt.Sprintf("RawArray<%s>", t.Elem) }
func (t *VArrayType) String() string   { return fmt.Sprintf("VArray<%s, %d>", t.Elem, t.Size) }
func (t *PointerType) String() string  { return fmt.Sprintf("CPointer<%s>", t.Pointee) }
func (t *CStringType) String() string  { return "CString" }

func (t *StructType) String() string    { return nominalString(t.Def, t.TypeArgs) }
func (t *EnumType) String() string      { return nominalString(t.Def, t.TypeArgs) }
func (t *ClassType) String() string     { return nominalString(t.Def, t.TypeArgs) }
func (t *InterfaceType) String() string { return nominalString(t.Def, t.TypeArgs) }

func (t *GenericType) String() string { return t.Name }
func (t *RefType) String() string     { return fmt.Sprintf("Ref<%s>", t.Base) }
func (t *BoxType) String() string     { return fmt.Sprintf("Box<%s>", t.Base) }

func (t *UnionType) String() string        { return joinTypes(t.Alts, " | ") }
func (t *IntersectionType) String() string { return joinTypes(t.Alts, " & ") }

func nominalString(def *CustomTypeDef, args []Type) string {
	if len(args) == 0 {
		return def.Name
	}
	return fmt.Sprintf("%s<%s>", def.Name, joinTypes(args, ", "))
}

func joinTypes(types []Type, sep string) string {
	parts := make([]string, len(types))
	for i, t := range types {
		parts[i] = t.String()
	}
	return strings.Join(parts, sep)
}

// TypeContext interns types and assigns identities to type definitions. One
// context is created per compilation run and threaded through everything that
// constructs types; there is no package-level registry.
type TypeContext struct {
	interned map[string]Type
	ids      map[Type]int
	nextID   int
	nextDef  int
}

// NewTypeContext creates an empty interning context.
func NewTypeContext() *TypeContext {
	return &TypeContext{
		interned: make(map[string]Type),
		ids:      make(map[Type]int),
		nextID:   1,
	}
}

func (c *TypeContext) intern(key string, build func() Type) Type {
	if t, ok := c.interned[key]; ok {
		return t
	}
	t := build()
	c.interned[key] = t
	c.ids[t] = c.nextID
	c.nextID++
	return t
}

// id returns the interning identity of t. Types constructed outside this
// context have no identity and cannot participate in interning keys.
func (c *TypeContext) id(t Type) int {
	id, ok := c.ids[t]
	if !ok {
		panic(fmt.Sprintf("chir: type %s was not created by this TypeContext", t))
	}
	return id
}

func (c *TypeContext) idList(types []Type) string {
	parts := make([]string, len(types))
	for i, t := range types {
		parts[i] = fmt.Sprintf("%d", c.id(t))
	}
	return strings.Join(parts, ",")
}

// registerDef assigns a fresh definition identity, used to key nominal types.
func (c *TypeContext) registerDef(def *CustomTypeDef) {
	c.nextDef++
	def.id = c.nextDef
}

// Primitive returns the interned primitive type for kind.
func (c *TypeContext) Primitive(kind PrimitiveKind) *PrimitiveType {
	key := fmt.Sprintf("prim(%d)", int(kind))
	return c.intern(key, func() Type { return &PrimitiveType{Kind: kind} }).(*PrimitiveType)
}

// Unit is shorthand for the Unit primitive.
func (c *TypeContext) Unit() *PrimitiveType { return c.Primitive(PrimUnit) }

// Nothing is shorthand for the bottom primitive.
func (c *TypeContext) Nothing() *PrimitiveType { return c.Primitive(PrimNothing) }

// Bool is shorthand for the Bool primitive.
func (c *TypeContext) Bool() *PrimitiveType { return c.Primitive(PrimBool) }

// Int64 is shorthand for the Int64 primitive.
func (c *TypeContext) Int64() *PrimitiveType { return c.Primitive(PrimInt64) }

// Tuple returns the interned tuple of elems.
func (c *TypeContext) Tuple(elems ...Type) *TupleType {
	key := fmt.Sprintf("tuple(%s)", c.idList(elems))
	return c.intern(key, func() Type {
		return &TupleType{Elems: append([]Type(nil), elems...)}
	}).(*TupleType)
}

// Func returns the interned function type.
func (c *TypeContext) Func(params []Type, ret Type) *FuncType {
	return c.funcType(params, ret, false)
}

// CFunc returns the interned foreign function type.
func (c *TypeContext) CFunc(params []Type, ret Type) *FuncType {
	return c.funcType(params, ret, true)
}

func (c *TypeContext) funcType(params []Type, ret Type, isC bool) *FuncType {
	key := fmt.Sprintf("func(%s;%d;%t)", c.idList(params), c.id(ret), isC)
	return c.intern(key, func() Type {
		return &FuncType{Params: append([]Type(nil), params...), Return: ret, IsC: isC}
	}).(*FuncType)
}

// RawArray returns the interned unsized array type.
func (c *TypeContext) RawArray(elem Type) *RawArrayType {
	key := fmt.Sprintf("rawarray(%d)", c.id(elem))
	return c.intern(key, func() Type { return &RawArrayType{Elem: elem} }).(*RawArrayType)
}

// VArray returns the interned fixed-length array type.
func (c *TypeContext) VArray(elem Type, size int64) *VArrayType {
	key := fmt.Sprintf("varray(%d,%d)", c.id(elem), size)
	return c.intern(key, func() Type { return &VArrayType{Elem: elem, Size: size} }).(*VArrayType)
}

// Pointer returns the interned unmanaged pointer type.
func (c *TypeContext) Pointer(pointee Type) *PointerType {
	key := fmt.Sprintf("cpointer(%d)", c.id(pointee))
	return c.intern(key, func() Type { return &PointerType{Pointee: pointee} }).(*PointerType)
}

// CString returns the interned foreign string type.
func (c *TypeContext) CString() *CStringType {
	return c.intern("cstring", func() Type { return &CStringType{} }).(*CStringType)
}

// Struct returns the interned nominal struct type for def with args.
func (c *TypeContext) Struct(def *CustomTypeDef, args ...Type) *StructType {
	c.checkArgs(def, args)
	key := fmt.Sprintf("struct(%d;%s)", def.id, c.idList(args))
	return c.intern(key, func() Type {
		return &StructType{Def: def, TypeArgs: append([]Type(nil), args...)}
	}).(*StructType)
}

// Enum returns the interned nominal enum type for def with args.
func (c *TypeContext) Enum(def *CustomTypeDef, args ...Type) *EnumType {
	c.checkArgs(def, args)
	key := fmt.Sprintf("enum(%d;%s)", def.id, c.idList(args))
	return c.intern(key, func() Type {
		return &EnumType{Def: def, TypeArgs: append([]Type(nil), args...)}
	}).(*EnumType)
}

// Class returns the interned nominal class type for def with args.
func (c *TypeContext) Class(def *CustomTypeDef, args ...Type) *ClassType {
	c.checkArgs(def, args)
	key := fmt.Sprintf("class(%d;%s)", def.id, c.idList(args))
	return c.intern(key, func() Type {
		return &ClassType{Def: def, TypeArgs: append([]Type(nil), args...)}
	}).(*ClassType)
}

// Interface returns the interned nominal interface type for def with args.
func (c *TypeContext) Interface(def *CustomTypeDef, args ...Type) *InterfaceType {
	c.checkArgs(def, args)
	key := fmt.Sprintf("iface(%d;%s)", def.id, c.idList(args))
	return c.intern(key, func() Type {
		return &InterfaceType{Def: def, TypeArgs: append([]Type(nil), args...)}
	}).(*InterfaceType)
}

func (c *TypeContext) checkArgs(def *CustomTypeDef, args []Type) {
	if len(args) != len(def.GenericParams) {
		panic(fmt.Sprintf("chir: %s expects %d type arguments, got %d",
			def.Name, len(def.GenericParams), len(args)))
	}
}

// Generic returns the interned type parameter named name declared by owner.
func (c *TypeContext) Generic(owner, name string, upper ...Type) *GenericType {
	key := fmt.Sprintf("generic(%s;%s;%s)", owner, name, c.idList(upper))
	return c.intern(key, func() Type {
		return &GenericType{Name: name, Owner: owner, Upper: append([]Type(nil), upper...)}
	}).(*GenericType)
}

// Ref returns the interned addressable location type. A Ref base is never a
// Ref: Ref(Ref(T)) collapses to Ref(T).
func (c *TypeContext) Ref(base Type) *RefType {
	if r, ok := base.(*RefType); ok {
		base = r.Base
	}
	key := fmt.Sprintf("ref(%d)", c.id(base))
	return c.intern(key, func() Type { return &RefType{Base: base} }).(*RefType)
}

// Box returns the interned boxed-cell type. Like Ref, a Box base is never a
// Ref.
func (c *TypeContext) Box(base Type) *BoxType {
	if r, ok := base.(*RefType); ok {
		base = r.Base
	}
	key := fmt.Sprintf("box(%d)", c.id(base))
	return c.intern(key, func() Type { return &BoxType{Base: base} }).(*BoxType)
}

// Union returns the interned union of alts.
func (c *TypeContext) Union(alts ...Type) *UnionType {
	key := fmt.Sprintf("union(%s)", c.idList(alts))
	return c.intern(key, func() Type {
		return &UnionType{Alts: append([]Type(nil), alts...)}
	}).(*UnionType)
}

// Intersection returns the interned intersection of alts.
func (c *TypeContext) Intersection(alts ...Type) *IntersectionType {
	key := fmt.Sprintf("isect(%s)", c.idList(alts))
	return c.intern(key, func() Type {
		return &IntersectionType{Alts: append([]Type(nil), alts...)}
	}).(*IntersectionType)
}

// StripRef unwraps one Ref layer, if present.
func StripRef(t Type) Type {
	if r, ok := t.(*RefType); ok {
		return r.Base
	}
	return t
}

// DefOf returns the definition behind a nominal type, or nil.
func DefOf(t Type) *CustomTypeDef {
	switch n := t.(type) {
	case *StructType:
		return n.Def
	case *EnumType:
		return n.Def
	case *ClassType:
		return n.Def
	case *InterfaceType:
		return n.Def
	}
	return nil
}

// TypeArgsOf returns the type arguments of a nominal type, or nil.
func TypeArgsOf(t Type) []Type {
	switch n := t.(type) {
	case *StructType:
		return n.TypeArgs
	case *EnumType:
		return n.TypeArgs
	case *ClassType:
		return n.TypeArgs
	case *InterfaceType:
		return n.TypeArgs
	}
	return nil
}
