// Package chirtext parses a small textual form of CHIR, enough to write test
// fixtures and feed the chir-opt tool: class declarations with vtables,
// globals, and function bodies using the common instruction subset.
package chirtext

import (
	"github.com/alecthomas/participle/v2/lexer"
)

var textLexer = lexer.MustStateful(lexer.Rules{
	"Root": {
		// Comments
		{"Comment", `;[^\n]*`, nil},

		// Value references
		{"Local", `%[a-zA-Z_][a-zA-Z0-9_.$]*`, nil},
		{"Global", `@[a-zA-Z_][a-zA-Z0-9_.$]*`, nil},

		// Keywords and identifiers
		{"Ident", `[a-zA-Z_][a-zA-Z0-9_$]*`, nil},

		// Integer literals
		{"Integer", `-?[0-9]+`, nil},

		// Arrow (must come before punctuation)
		{"Arrow", `->`, nil},

		// Punctuation
		{"Punctuation", `[{}()\[\]<>:,=]`, nil},

		// Whitespace
		{"Whitespace", `[ \t\r\n]+`, nil},
	},
})

type File struct {
	Package string  `"package" @Ident`
	Items   []*Item `@@*`
}

type Item struct {
	Class  *ClassDecl  `  @@`
	Global *GlobalDecl `| @@`
	Func   *FuncDecl   `| @@`
}

type ClassDecl struct {
	Name    string        `"class" @Ident`
	Super   *string       `[ "<" ":" @Ident ]`
	Fields  []*FieldDecl  `"{" @@*`
	VTables []*VTableDecl `@@* "}"`
}

type FieldDecl struct {
	Name string   `@Ident ":"`
	Type *TypeRef `@@`
}

type VTableDecl struct {
	Parent string      `"vtable" @Ident "{"`
	Slots  []*SlotDecl `@@* "}"`
}

type SlotDecl struct {
	Name   string     `@Ident "("`
	Params []*TypeRef `[ @@ { "," @@ } ] ")"`
	Return *TypeRef   `"->" @@`
	Impl   *string    `[ "=" @Global ]`
}

type GlobalDecl struct {
	Name string   `"global" @Global ":"`
	Type *TypeRef `@@`
}

type FuncDecl struct {
	Declare bool         `[ @"declare" ]`
	Name    string       `"func" @Global "("`
	Params  []*ParamDecl `[ @@ { "," @@ } ] ")"`
	Return  *TypeRef     `"->" @@`
	Blocks  []*BlockDecl `[ "{" @@* "}" ]`
}

type ParamDecl struct {
	Name string   `@Local ":"`
	Type *TypeRef `@@`
}

type TypeRef struct {
	Ref  *TypeRef `  "Ref" "<" @@ ">"`
	Name string   `| @Ident`
}

type BlockDecl struct {
	Label string          `@Ident ":"`
	Insts []*Instruction  `@@*`
	Term  *TerminatorInst `@@`
}

type Instruction struct {
	Def        *DefInst        `  @@`
	Store      *StoreInst      `| @@`
	StoreField *StoreFieldInst `| @@`
}

// DefInst is an instruction that names its result.
type DefInst struct {
	Result string   `@Local "="`
	Value  *InstRHS `@@`
}

type InstRHS struct {
	Alloc    *AllocInst    `  @@`
	New      *NewInst      `| @@`
	Load     *LoadInst     `| @@`
	GetField *GetFieldInst `| @@`
	Call     *CallInst     `| @@`
	Invoke   *InvokeInst   `| @@`
	Binary   *BinaryInst   `| @@`
}

type AllocInst struct {
	Type *TypeRef `"alloc" @@`
}

type NewInst struct {
	Class string `"new" @Ident`
}

type LoadInst struct {
	Loc *Operand `"load" @@`
}

type GetFieldInst struct {
	Obj   *Operand `"getfield" @@ ","`
	Field string   `@Ident`
}

type CallInst struct {
	Callee string     `"call" @Global "("`
	Args   []*Operand `[ @@ { "," @@ } ] ")"`
}

type InvokeInst struct {
	Recv   *Operand   `"invoke" @@ ","`
	Parent string     `@Ident "["`
	Offset int64      `@Integer "]" "("`
	Args   []*Operand `[ @@ { "," @@ } ] ")"`
}

type BinaryInst struct {
	Op       string   `@("add" | "sub" | "mul" | "div" | "mod" | "and" | "or" | "xor" | "shl" | "shr" | "eq" | "ne" | "lt" | "le" | "gt" | "ge")`
	Overflow *string  `[ @("none" | "checked" | "wrapping" | "throwing" | "saturating") ]`
	LHS      *Operand `@@ ","`
	RHS      *Operand `@@`
}

type StoreInst struct {
	Value *Operand `"store" @@ ","`
	Loc   *Operand `@@`
}

type StoreFieldInst struct {
	Value *Operand `"storefield" @@ ","`
	Obj   *Operand `@@ ","`
	Field string   `@Ident`
}

type TerminatorInst struct {
	GoTo   *GoToInst   `  @@`
	Branch *BranchInst `| @@`
	Exit   *ExitInst   `| @@`
}

type GoToInst struct {
	Target string `"goto" @Ident`
}

type BranchInst struct {
	Cond  *Operand `"branch" @@ ","`
	True  string   `@Ident ","`
	False string   `@Ident`
}

type ExitInst struct {
	Exit  bool     `@"exit"`
	Value *Operand `[ @@ ]`
}

type Operand struct {
	Local  *string `  @Local`
	Global *string `| @Global`
	True   bool    `| @"true"`
	False  bool    `| @"false"`
	Unit   bool    `| @"unit"`
	Int    *int64  `| @Integer`
}
