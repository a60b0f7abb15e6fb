package chir

import "fmt"

// Package owns every function, global variable and type definition of one
// compilation unit, plus read-only references to the imported counterparts it
// links against. All graph mutation is single-threaded per package.
type Package struct {
	Name string

	// Requires lists the package names this unit depends on; the driver
	// resolves them into a build order.
	Requires []string

	Types *TypeContext

	Funcs      []*Func
	GlobalVars []*GlobalVar
	Defs       []*CustomTypeDef

	ImportedFuncs []*ImportedFunc
	ImportedDefs  []*CustomTypeDef
}

// NewPackage creates an empty package with a fresh type context.
func NewPackage(name string) *Package {
	return &Package{Name: name, Types: NewTypeContext()}
}

// NewDef creates a type definition owned by this package.
func (p *Package) NewDef(kind DefKind, name string) *CustomTypeDef {
	def := &CustomTypeDef{Kind: kind, Name: name}
	p.Types.registerDef(def)
	p.Defs = append(p.Defs, def)
	return def
}

// AddImportedDef registers a definition owned by another package.
func (p *Package) AddImportedDef(def *CustomTypeDef) {
	if def.id == 0 {
		p.Types.registerDef(def)
	}
	def.Imported = true
	p.ImportedDefs = append(p.ImportedDefs, def)
}

// NewFunc creates a function owned by this package. Body starts nil; callers
// attach a BlockGroup for functions with a definition.
func (p *Package) NewFunc(name string, params []*Parameter, ret Type, attrs FuncAttr) *Func {
	types := make([]Type, len(params))
	for i, param := range params {
		types[i] = param.ty
	}
	fn := &Func{
		Name:       name,
		Sig:        p.Types.Func(types, ret),
		Params:     params,
		ReturnType: ret,
		Attrs:      attrs,
	}
	for _, param := range params {
		param.Owner = fn
	}
	p.Funcs = append(p.Funcs, fn)
	return fn
}

// NewParameter creates a parameter value; it is bound to its function by
// NewFunc.
func (p *Package) NewParameter(name string, ty Type) *Parameter {
	return &Parameter{Name: name, ty: ty}
}

// NewThisParameter creates the receiver parameter of a method.
func (p *Package) NewThisParameter(ty Type) *Parameter {
	return &Parameter{Name: "this", ty: ty, This: true}
}

// NewGlobal creates a global variable owned by this package.
func (p *Package) NewGlobal(name string, ty Type, init *Literal) *GlobalVar {
	g := &GlobalVar{Name: name, ty: ty, Init: init}
	p.GlobalVars = append(p.GlobalVars, g)
	return g
}

// AddImportedFunc registers a function declaration owned by another package.
func (p *Package) AddImportedFunc(name string, sig *FuncType, attrs FuncAttr) *ImportedFunc {
	f := &ImportedFunc{Name: name, Sig: sig, Attrs: attrs}
	p.ImportedFuncs = append(p.ImportedFuncs, f)
	return f
}

// FuncByName returns the package-owned function with the given name, or nil.
func (p *Package) FuncByName(name string) *Func {
	for _, fn := range p.Funcs {
		if fn.Name == name {
			return fn
		}
	}
	return nil
}

// DefByName returns the package-owned definition with the given name, or nil.
func (p *Package) DefByName(name string) *CustomTypeDef {
	for _, def := range p.Defs {
		if def.Name == name {
			return def
		}
	}
	return nil
}

// GlobalByName returns the package-owned global with the given name, or nil.
func (p *Package) GlobalByName(name string) *GlobalVar {
	for _, g := range p.GlobalVars {
		if g.Name == name {
			return g
		}
	}
	return nil
}

// RemoveFunc detaches a function from the package.
func (p *Package) RemoveFunc(fn *Func) {
	for i, cur := range p.Funcs {
		if cur == fn {
			p.Funcs = append(p.Funcs[:i], p.Funcs[i+1:]...)
			return
		}
	}
}

func (p *Package) String() string {
	return fmt.Sprintf("package %s (%d funcs, %d globals, %d defs)",
		p.Name, len(p.Funcs), len(p.GlobalVars), len(p.Defs))
}
