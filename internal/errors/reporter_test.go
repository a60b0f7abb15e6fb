package errors

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatViolation(t *testing.T) {
	reporter := NewReporter("demo")

	v := MissingVTableSlot("VTableRefs",
		Site{Function: "main", Block: "entry", Expr: "Invoke(%0, Base[3])"},
		"class Base", 3)
	formatted := reporter.FormatViolation(v)

	assert.Contains(t, formatted, "error["+ViolationVTableSlot+"]")
	assert.Contains(t, formatted, "no vtable slot 3")
	assert.Contains(t, formatted, "demo/@main:entry")
	assert.Contains(t, formatted, "rule: VTableRefs")
}

func TestViolationBuilder(t *testing.T) {
	v := NewViolation(ViolationStoreType, "TypeCompat", "bad store").
		At(Site{Package: "p", Function: "f"}).
		WithNote("stored %s into %s", "Int64", "Bool").
		Build()

	assert.Equal(t, Error, v.Level)
	assert.Equal(t, ViolationStoreType, v.Code)
	assert.Len(t, v.Notes, 1)
	assert.Contains(t, v.Notes[0], "Int64")
	assert.Contains(t, v.Error(), "p/@f")
}

func TestOperandArityNotes(t *testing.T) {
	v := OperandArity("ExprArity", Site{Function: "f"}, "Store", 1, 2, 2)
	assert.Contains(t, v.Notes[0], "expects 2..2")

	variadic := OperandArity("ExprArity", Site{Function: "f"}, "Apply", 0, 1, -1)
	assert.Contains(t, variadic.Notes[0], "at least 1")
}

func TestFormatAllSummary(t *testing.T) {
	reporter := NewReporter("demo")

	none := reporter.FormatAll(nil)
	assert.Contains(t, none, "ok")
	assert.Contains(t, none, "passes all verifier rules")

	two := reporter.FormatAll([]Violation{
		EmptyBlock("NonEmptyBlocks", Site{Function: "zeta", Block: "bb1"}),
		DuplicateName("UniqueIdents", Site{Package: "demo"}, "helper"),
	})
	assert.Contains(t, two, "2 violations")
	assert.Contains(t, two, "'helper'")
	assert.Contains(t, two, "bb1")
}
