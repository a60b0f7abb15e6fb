package chir

import "fmt"

// DefKind distinguishes the declaration forms that produce a CustomTypeDef.
type DefKind int

const (
	DefStruct DefKind = iota
	DefEnum
	DefClass
	DefInterface
	DefExtend
)

func (k DefKind) String() string {
	switch k {
	case DefStruct:
		return "struct"
	case DefEnum:
		return "enum"
	case DefClass:
		return "class"
	case DefInterface:
		return "interface"
	case DefExtend:
		return "extend"
	default:
		return "def?"
	}
}

// Field is a declared member of a struct, class or enum payload.
type Field struct {
	Name    string
	Type    Type
	Mutable bool
}

// MethodSlot is one entry of a virtual-method table: the declared name and
// signature, plus the concrete override resolved for the owning definition.
// Impl is nil for abstract slots.
type MethodSlot struct {
	Name string
	Sig  *FuncType
	Impl *Func
}

// VTableEntry maps one parent class or interface type to the ordered method
// slots this definition resolves for it.
type VTableEntry struct {
	Parent Type
	Slots  []MethodSlot
}

// CustomTypeDef is the single definition object created for one nominal type
// declaration (or one generic instantiation of it). Every nominal Type that
// names the declaration references this object; definitions are owned by
// their Package and never duplicated.
type CustomTypeDef struct {
	id   int
	Kind DefKind
	Name string

	GenericParams []*GenericType
	Fields        []Field
	Methods       []*Func
	VTables       []VTableEntry

	// Super is the single super class type; classes only.
	Super      Type
	Interfaces []Type

	Imported     bool
	Instantiated bool
}

// FieldIndex returns the index of the named declared field, or -1.
func (d *CustomTypeDef) FieldIndex(name string) int {
	for i, f := range d.Fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// VTableFor returns the slot list resolved for the given parent type.
func (d *CustomTypeDef) VTableFor(parent Type) ([]MethodSlot, bool) {
	for _, entry := range d.VTables {
		if entry.Parent == parent {
			return entry.Slots, true
		}
	}
	return nil, false
}

// SlotAt returns the method slot at offset in the vtable for parent. The
// second result is false when the table or the offset does not exist; callers
// that require the slot treat that as an invariant violation.
func (d *CustomTypeDef) SlotAt(parent Type, offset int) (MethodSlot, bool) {
	slots, ok := d.VTableFor(parent)
	if !ok || offset < 0 || offset >= len(slots) {
		return MethodSlot{}, false
	}
	return slots[offset], true
}

// SetVTable installs or replaces the slot list for parent.
func (d *CustomTypeDef) SetVTable(parent Type, slots []MethodSlot) {
	for i, entry := range d.VTables {
		if entry.Parent == parent {
			d.VTables[i].Slots = slots
			return
		}
	}
	d.VTables = append(d.VTables, VTableEntry{Parent: parent, Slots: slots})
}

// AddMethod appends a method to the definition.
func (d *CustomTypeDef) AddMethod(fn *Func) {
	d.Methods = append(d.Methods, fn)
}

// MethodByName returns the first declared method with the given name, or nil.
func (d *CustomTypeDef) MethodByName(name string) *Func {
	for _, m := range d.Methods {
		if m.Name == name {
			return m
		}
	}
	return nil
}

func (d *CustomTypeDef) String() string {
	return fmt.Sprintf("%s %s", d.Kind, d.Name)
}
