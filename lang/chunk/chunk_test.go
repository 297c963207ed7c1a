package chunk_test

import (
	"testing"

	"github.com/loxscript/loxvm/lang/chunk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodeAndLinesStayInLockstep(t *testing.T) {
	var c chunk.Chunk
	c.WriteOp(chunk.OpNil, 1)
	c.WriteConstant(chunk.Number(42), 2)
	c.WriteOp(chunk.OpReturn, 3)
	require.Equal(t, len(c.Code), len(c.Lines))
}

func TestWriteConstantPromotesToLongForm(t *testing.T) {
	var c chunk.Chunk
	for i := 0; i < 300; i++ {
		c.AddConstant(chunk.Number(float64(i)))
	}
	before := len(c.Code)
	c.WriteConstant(chunk.Number(999), 1)
	assert.Equal(t, chunk.OpConstantLong, chunk.Opcode(c.Code[before]))
	idx := c.ReadU24(before + 1)
	assert.Equal(t, chunk.Number(999), c.Constants[idx])
}

func TestPatchJumpRoundTrips(t *testing.T) {
	var c chunk.Chunk
	c.WriteOp(chunk.OpJumpIfFalse, 1)
	patchAt := len(c.Code)
	c.Write(0xff, 1)
	c.Write(0xff, 1)
	c.WriteOp(chunk.OpPop, 1)
	ok := c.PatchJump(patchAt)
	require.True(t, ok)
	assert.Equal(t, 1, c.ReadU16(patchAt))
}

func TestPatchJumpRejectsOverflow(t *testing.T) {
	var c chunk.Chunk
	c.WriteOp(chunk.OpJump, 1)
	patchAt := len(c.Code)
	c.Write(0, 1)
	c.Write(0, 1)
	c.Code = append(c.Code, make([]byte, 0x10000)...)
	c.Lines = append(c.Lines, make([]int, 0x10000)...)
	assert.False(t, c.PatchJump(patchAt))
}

// disassembling every opcode must advance the cursor by exactly
// 1 + operand bytes, per spec.md §8's round-trip property.
func TestDisassembleAdvancesByOperandWidth(t *testing.T) {
	var c chunk.Chunk
	c.WriteConstant(chunk.Number(1), 1)       // OP_CONSTANT: 1 + 1
	c.WriteOp(chunk.OpNil, 1)                 // 1
	c.WriteOp(chunk.OpPop, 1)                 // 1
	c.WriteOp(chunk.OpGetLocal, 1)            // 1 + 1
	c.Write(3, 1)
	c.WriteOp(chunk.OpJump, 1) // 1 + 2
	c.Write(0, 1)
	c.Write(5, 1)
	c.WriteOp(chunk.OpReturn, 1) // 1

	wantOffsets := []int{0, 2, 3, 4, 6, 9, 10}
	offset := 0
	var got []int
	got = append(got, offset)
	for offset < len(c.Code) {
		_, next := chunk.DisassembleInstruction(&c, offset)
		offset = next
		got = append(got, offset)
	}
	assert.Equal(t, wantOffsets, got)
}

func TestValuesEqualComparesStringsByIdentity(t *testing.T) {
	a := chunk.NewString("hi")
	b := chunk.NewString("hi")
	// distinct allocations are not equal unless interned to the same pointer
	assert.False(t, chunk.ValuesEqual(a, b))
	assert.True(t, chunk.ValuesEqual(a, a))
}

func TestIsFalsey(t *testing.T) {
	assert.True(t, chunk.IsFalsey(chunk.NilValue))
	assert.True(t, chunk.IsFalsey(chunk.Bool(false)))
	assert.False(t, chunk.IsFalsey(chunk.Bool(true)))
	assert.False(t, chunk.IsFalsey(chunk.Number(0)))
	assert.False(t, chunk.IsFalsey(chunk.NewString("")))
}
