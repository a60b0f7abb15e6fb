package errors

// Violation codes for the CHIR verifier. The codes appear in diagnostics and
// in tests; a rule may own several codes.
//
// Code ranges:
// V0001-V0019: CFG shape violations
// V0020-V0039: expression operand violations
// V0040-V0059: type compatibility violations
// V0060-V0079: dispatch/vtable violations
// V0080-V0099: reference and identifier violations

const (
	// V0001: a block carries no expressions and no terminator
	ViolationEmptyBlock = "V0001"

	// V0002: a reachable block has no terminator
	ViolationMissingTerminator = "V0002"

	// V0003: a terminator names a block outside its function
	ViolationForeignSuccessor = "V0003"

	// V0020: an expression's operand count is outside its kind's arity
	ViolationOperandArity = "V0020"

	// V0021: an operand slot holds a nil value
	ViolationNilOperand = "V0021"

	// V0040: a stored value cannot flow into its location's element type
	ViolationStoreType = "V0040"

	// V0041: a call argument cannot flow into the parameter type
	ViolationArgumentType = "V0041"

	// V0042: a returned value cannot flow into the declared return type
	ViolationReturnType = "V0042"

	// V0043: a direct call's callee is not function-typed
	ViolationCalleeType = "V0043"

	// V0060: a virtual call names a vtable slot the parent does not declare
	ViolationVTableSlot = "V0060"

	// V0061: a vtable slot implementation does not match the slot signature
	ViolationVTableImpl = "V0061"

	// V0080: an operand refers to a value defined in an unreachable block
	ViolationUnreachableRef = "V0080"

	// V0081: a type mentions a generic parameter its owner never declared
	ViolationDanglingGeneric = "V0081"

	// V0082: two top-level definitions share one name
	ViolationDuplicateName = "V0082"
)
