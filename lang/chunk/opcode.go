package chunk

import "fmt"

// Opcode identifies a bytecode instruction. Operand widths follow spec.md
// §4.3: most operands are a single byte; OP_CONSTANT_LONG and the promoted
// "_LONG" global forms carry a 24-bit big-endian index; jumps carry a
// 16-bit big-endian offset; OP_CLOSURE carries a one-byte constant index
// followed by one (is_local, index) byte pair per upvalue.
type Opcode byte

const (
	OpConstant Opcode = iota
	OpConstantLong

	OpNil
	OpTrue
	OpFalse
	OpPop

	OpGetLocal
	OpSetLocal

	OpGetGlobal
	OpGetGlobalLong
	OpDefineGlobal
	OpDefineGlobalLong
	OpSetGlobal
	OpSetGlobalLong

	OpGetUpvalue
	OpSetUpvalue
	OpCloseUpvalue

	OpEqual
	OpGreater
	OpLess

	OpAdd
	OpSubtract
	OpMultiply
	OpDivide

	OpNot
	OpNegate

	OpPrint

	OpJump
	OpJumpIfFalse
	OpLoop

	OpCall
	OpClosure

	OpReturn
)

var opcodeNames = [...]string{
	OpConstant:         "OP_CONSTANT",
	OpConstantLong:     "OP_CONSTANT_LONG",
	OpNil:              "OP_NIL",
	OpTrue:             "OP_TRUE",
	OpFalse:            "OP_FALSE",
	OpPop:              "OP_POP",
	OpGetLocal:         "OP_GET_LOCAL",
	OpSetLocal:         "OP_SET_LOCAL",
	OpGetGlobal:        "OP_GET_GLOBAL",
	OpGetGlobalLong:    "OP_GET_GLOBAL_LONG",
	OpDefineGlobal:     "OP_DEFINE_GLOBAL",
	OpDefineGlobalLong: "OP_DEFINE_GLOBAL_LONG",
	OpSetGlobal:        "OP_SET_GLOBAL",
	OpSetGlobalLong:    "OP_SET_GLOBAL_LONG",
	OpGetUpvalue:       "OP_GET_UPVALUE",
	OpSetUpvalue:       "OP_SET_UPVALUE",
	OpCloseUpvalue:     "OP_CLOSE_UPVALUE",
	OpEqual:            "OP_EQUAL",
	OpGreater:          "OP_GREATER",
	OpLess:             "OP_LESS",
	OpAdd:              "OP_ADD",
	OpSubtract:         "OP_SUBTRACT",
	OpMultiply:         "OP_MULTIPLY",
	OpDivide:           "OP_DIVIDE",
	OpNot:              "OP_NOT",
	OpNegate:           "OP_NEGATE",
	OpPrint:            "OP_PRINT",
	OpJump:             "OP_JUMP",
	OpJumpIfFalse:      "OP_JUMP_IF_FALSE",
	OpLoop:             "OP_LOOP",
	OpCall:             "OP_CALL",
	OpClosure:          "OP_CLOSURE",
	OpReturn:           "OP_RETURN",
}

func (op Opcode) String() string {
	if int(op) < len(opcodeNames) && opcodeNames[op] != "" {
		return opcodeNames[op]
	}
	return fmt.Sprintf("OP_UNKNOWN(%d)", byte(op))
}
