package chir

import (
	"fmt"
	"strings"
)

// Printer renders a package as deterministic text, used by tests, the CLI
// tool and structural diffing.
type Printer struct {
	indent int
	output strings.Builder
}

// NewPrinter creates a printer.
func NewPrinter() *Printer {
	return &Printer{}
}

// Print returns the textual form of a package.
func Print(pkg *Package) string {
	p := NewPrinter()
	p.printPackage(pkg)
	return p.output.String()
}

// PrintFunc returns the textual form of one function.
func PrintFunc(fn *Func) string {
	p := NewPrinter()
	p.printFunc(fn)
	return p.output.String()
}

func (p *Printer) writeIndent() {
	for i := 0; i < p.indent; i++ {
		p.output.WriteString("  ")
	}
}

func (p *Printer) writeLine(format string, args ...interface{}) {
	p.writeIndent()
	p.output.WriteString(fmt.Sprintf(format, args...))
	p.output.WriteString("\n")
}

func (p *Printer) printPackage(pkg *Package) {
	p.writeLine("package %s", pkg.Name)
	p.writeLine("")

	for _, def := range pkg.Defs {
		p.printDef(def)
	}
	for _, g := range pkg.GlobalVars {
		if g.Init != nil {
			p.writeLine("global @%s: %s = %s", g.Name, g.Type(), g.Init)
		} else {
			p.writeLine("global @%s: %s", g.Name, g.Type())
		}
	}
	if len(pkg.GlobalVars) > 0 {
		p.writeLine("")
	}
	for _, fn := range pkg.Funcs {
		p.printFunc(fn)
		p.writeLine("")
	}
}

func (p *Printer) printDef(def *CustomTypeDef) {
	header := fmt.Sprintf("%s %s", def.Kind, def.Name)
	if len(def.GenericParams) > 0 {
		names := make([]string, len(def.GenericParams))
		for i, g := range def.GenericParams {
			names[i] = g.Name
		}
		header += "<" + strings.Join(names, ", ") + ">"
	}
	if def.Super != nil {
		header += " <: " + def.Super.String()
	}
	p.writeLine("%s {", header)
	p.indent++
	for _, f := range def.Fields {
		p.writeLine("%s: %s", f.Name, f.Type)
	}
	for _, entry := range def.VTables {
		p.writeLine("vtable for %s:", entry.Parent)
		p.indent++
		for i, slot := range entry.Slots {
			impl := "<abstract>"
			if slot.Impl != nil {
				impl = "@" + slot.Impl.Name
			}
			p.writeLine("[%d] %s %s -> %s", i, slot.Name, slot.Sig, impl)
		}
		p.indent--
	}
	p.indent--
	p.writeLine("}")
	p.writeLine("")
}

func (p *Printer) printFunc(fn *Func) {
	params := make([]string, len(fn.Params))
	for i, param := range fn.Params {
		params[i] = fmt.Sprintf("%%%s: %s", param.Name, param.Type())
	}
	header := fmt.Sprintf("func @%s(%s) -> %s", fn.Name, strings.Join(params, ", "), fn.ReturnType)
	if fn.Body == nil {
		p.writeLine("declare %s", header)
		return
	}
	p.writeLine("%s {", header)
	p.indent++
	for _, b := range fn.Body.Blocks {
		p.printBlock(b)
	}
	p.indent--
	p.writeLine("}")
}

func (p *Printer) printBlock(b *Block) {
	preds := b.Preds()
	if len(preds) > 0 {
		names := make([]string, len(preds))
		for i, pred := range preds {
			names[i] = pred.Name
		}
		p.writeLine("%s: ; preds: %s", b.Name, strings.Join(names, ", "))
	} else {
		p.writeLine("%s:", b.Name)
	}
	p.indent++
	for _, e := range b.Exprs {
		p.writeLine("%s", e)
	}
	if b.Term != nil {
		p.writeLine("%s", b.Term)
	} else {
		p.writeLine("<no terminator>")
	}
	p.indent--
}
