package chunk

import (
	"fmt"
	"strings"
)

// Disassemble returns a human-readable listing of every instruction in c,
// labelled name. It is debug-only tooling (spec.md §1 lists the disassembler
// as an external collaborator) but lives alongside Chunk because it is the
// simplest way to keep it honest against the opcode table as the latter
// changes, and it is what spec.md §8's round-trip property exercises.
func Disassemble(c *Chunk, name string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "== %s ==\n", name)
	for offset := 0; offset < len(c.Code); {
		line, next := DisassembleInstruction(c, offset)
		b.WriteString(line)
		b.WriteByte('\n')
		offset = next
	}
	return b.String()
}

// DisassembleInstruction formats the instruction at offset and returns it
// along with the offset of the following instruction.
func DisassembleInstruction(c *Chunk, offset int) (string, int) {
	var b strings.Builder
	fmt.Fprintf(&b, "%04d ", offset)
	if offset > 0 && c.Lines[offset] == c.Lines[offset-1] {
		b.WriteString("   | ")
	} else {
		fmt.Fprintf(&b, "%4d ", c.Lines[offset])
	}

	op := Opcode(c.Code[offset])
	switch op {
	case OpConstant:
		return constantInstruction(&b, c, op, offset)
	case OpConstantLong:
		return constantLongInstruction(&b, c, op, offset)
	case OpGetGlobal, OpDefineGlobal, OpSetGlobal:
		return constantInstruction(&b, c, op, offset)
	case OpGetGlobalLong, OpDefineGlobalLong, OpSetGlobalLong:
		return constantLongInstruction(&b, c, op, offset)
	case OpGetLocal, OpSetLocal, OpGetUpvalue, OpSetUpvalue, OpCall:
		return byteInstruction(&b, c, op, offset)
	case OpJump, OpJumpIfFalse:
		return jumpInstruction(&b, c, op, offset, 1)
	case OpLoop:
		return jumpInstruction(&b, c, op, offset, -1)
	case OpClosure:
		return closureInstruction(&b, c, offset)
	default:
		fmt.Fprintf(&b, "%s", op)
		return b.String(), offset + 1
	}
}

func constantInstruction(b *strings.Builder, c *Chunk, op Opcode, offset int) (string, int) {
	idx := int(c.Code[offset+1])
	fmt.Fprintf(b, "%-16s %4d '%s'", op, idx, c.Constants[idx])
	return b.String(), offset + 2
}

func constantLongInstruction(b *strings.Builder, c *Chunk, op Opcode, offset int) (string, int) {
	idx := c.ReadU24(offset + 1)
	fmt.Fprintf(b, "%-16s %4d '%s'", op, idx, c.Constants[idx])
	return b.String(), offset + 4
}

func byteInstruction(b *strings.Builder, c *Chunk, op Opcode, offset int) (string, int) {
	slot := c.Code[offset+1]
	fmt.Fprintf(b, "%-16s %4d", op, slot)
	return b.String(), offset + 2
}

func jumpInstruction(b *strings.Builder, c *Chunk, op Opcode, offset int, sign int) (string, int) {
	dist := c.ReadU16(offset + 1)
	target := offset + 3 + sign*dist
	fmt.Fprintf(b, "%-16s %4d -> %d", op, offset, target)
	return b.String(), offset + 3
}

func closureInstruction(b *strings.Builder, c *Chunk, offset int) (string, int) {
	constIdx := int(c.Code[offset+1])
	fmt.Fprintf(b, "%-16s %4d '%s'", OpClosure, constIdx, c.Constants[constIdx])
	offset += 2

	fn, _ := c.Constants[constIdx].(*Function)
	n := 0
	if fn != nil {
		n = fn.UpvalueCount
	}
	for i := 0; i < n; i++ {
		isLocal := c.Code[offset]
		index := c.Code[offset+1]
		kind := "upvalue"
		if isLocal != 0 {
			kind = "local"
		}
		fmt.Fprintf(b, "\n%04d      |                     %s %d", offset, kind, index)
		offset += 2
	}
	return b.String(), offset
}
