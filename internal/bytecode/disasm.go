package bytecode

import (
	"fmt"
	"strings"
)

// Disassemble renders a single chunk as one line per instruction: word
// index, source line (blank when it repeats the previous line), opcode
// name, and the decoded operand, resolving CONSTANT/CONSTANT_STRING
// operands to the constant pool value they address.
func (c *Chunk) Disassemble(name string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "== %s ==\n", name)
	lastLine := -1
	for ip := 0; ip < len(c.Code); {
		op, operand, next := c.Decode(ip)
		line := c.LineForIP(ip)
		lineCol := "   |"
		if line != lastLine {
			lineCol = fmt.Sprintf("%4d", line)
			lastLine = line
		}
		fmt.Fprintf(&b, "%04d %s %-24s", ip, lineCol, op.String())
		switch op {
		case CONSTANT, CONSTANT_STRING:
			if int(operand) < len(c.Constants) {
				fmt.Fprintf(&b, " %d  ; %s", operand, c.Constants[operand].Repr())
			} else {
				fmt.Fprintf(&b, " %d", operand)
			}
		case HALT, POP, PUSH_TRUE, PUSH_FALSE, PUSH_NULL,
			IADD, ISUB, IMUL, IDIV, IMOD, INEG,
			FADD, FSUB, FMUL, FDIV, FMOD, FNEG,
			FLOAT_TO_INT, INT_TO_FLOAT,
			SHIFT_LEFT, SHIFT_RIGHT, BIT_AND, BIT_OR, BIT_NOT, BIT_XOR, NOT,
			EQUAL, GREATER, LESSER, EQUAL_SL,
			DEREF, CALL_NATIVE, RETURN, TRAP_RETURN,
			INDEX_STRING, CHECK_STRING_INDEX, POP_STRING, CONCATENATE,
			MAKE_LIST, COPY_LIST, APPEND_LIST, POP_FROM_LIST, ASSIGN_LIST, INDEX_LIST,
			MAKE_REF_TO_INDEX, CHECK_LIST_INDEX, POP_LIST, SWAP:
			// no operand worth printing
		default:
			fmt.Fprintf(&b, " %d", operand)
		}
		b.WriteByte('\n')
		ip = next
	}
	return b.String()
}

// Disassemble renders every chunk owned by m: its top-level and teardown
// bodies plus every declared function, in that order.
func (m *RuntimeModule) Disassemble() string {
	var b strings.Builder
	fmt.Fprintf(&b, "module %s\n", m.Name)
	b.WriteString(m.TopLevelCode.Disassemble(m.Name + ".init"))
	if m.TeardownCode != nil {
		b.WriteString(m.TeardownCode.Disassemble(m.Name + ".teardown"))
	}
	for _, fn := range m.Functions {
		b.WriteString(fn.Code.Disassemble(m.Name + "." + fn.Name))
	}
	return b.String()
}
