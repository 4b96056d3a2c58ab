package vm

import (
	"fmt"
	"strings"
)

// Disassemble renders a Chunk as human-readable bytecode listing, adapted
// from the teacher's internal/vm/disasm.go disassembler.
func Disassemble(c *Chunk, name string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "== %s ==\n", name)
	offset := 0
	for offset < len(c.Code) {
		offset = disassembleInstruction(&b, c, offset)
	}
	return b.String()
}

func disassembleInstruction(b *strings.Builder, c *Chunk, offset int) int {
	fmt.Fprintf(b, "%04d ", offset)
	if offset > 0 && c.Lines[offset] == c.Lines[offset-1] {
		fmt.Fprint(b, "   | ")
	} else {
		fmt.Fprintf(b, "%4d ", c.Lines[offset])
	}

	op := Opcode(c.Code[offset])
	switch op {
	case OP_CONSTANT, OP_GET_GLOBAL, OP_DEFINE_GLOBAL, OP_SET_GLOBAL,
		OP_GET_PROPERTY, OP_SET_PROPERTY, OP_CLASS, OP_METHOD, OP_DELETE, OP_LOAD_MODULE,
		OP_GET_LOCAL, OP_SET_LOCAL, OP_BUILD_LIST, OP_BUILD_DICT, OP_BUILD_TUPLE, OP_BUILD_SET:
		idx := c.ReadUint16(offset + 1)
		extra := ""
		if idx < len(c.Constants) && (op == OP_CONSTANT) {
			extra = " (" + c.Constants[idx].Inspect() + ")"
		}
		fmt.Fprintf(b, "%-16s %4d%s\n", op, idx, extra)
		return offset + 3
	case OP_JUMP, OP_JUMP_IF_FALSE, OP_JUMP_IF_TRUE, OP_LOOP, OP_TRY_BEGIN, OP_JUMP_IF_EXCEPTION:
		jump := c.ReadUint16(offset + 1)
		fmt.Fprintf(b, "%-16s %4d\n", op, jump)
		return offset + 3
	case OP_CALL, OP_CALL_DECORATOR:
		arg := c.Code[offset+1]
		fmt.Fprintf(b, "%-16s %4d\n", op, arg)
		return offset + 2
	case OP_FOR_ITER_LOCAL:
		v := c.ReadUint16(offset + 1)
		i := c.ReadUint16(offset + 3)
		idx := c.ReadUint16(offset + 5)
		fmt.Fprintf(b, "%-16s var=%d iter=%d idx=%d\n", op, v, i, idx)
		return offset + 7
	default:
		fmt.Fprintf(b, "%s\n", op)
		return offset + 1
	}
}
