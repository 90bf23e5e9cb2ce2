package bytecode

import (
	"testing"

	"ember/internal/value"
)

func TestEmitAndDecodeSimpleOperand(t *testing.T) {
	c := NewChunk()
	idx := c.Emit(IADD, 0, 1)
	if idx != 0 {
		t.Fatalf("first Emit should return index 0, got %d", idx)
	}
	op, operand, next := c.Decode(0)
	if op != IADD || operand != 0 || next != 1 {
		t.Errorf("Decode(0) = (%v, %v, %v), want (IADD, 0, 1)", op, operand, next)
	}
}

func TestEmitExtendedOperand(t *testing.T) {
	c := NewChunk()
	c.Emit(ACCESS_LOCAL, extendedOperand+500, 1)
	if len(c.Code) != 2 {
		t.Fatalf("an extended operand should emit two words, got %d", len(c.Code))
	}
	op, operand, next := c.Decode(0)
	if op != ACCESS_LOCAL || operand != extendedOperand+500 || next != 2 {
		t.Errorf("Decode(0) = (%v, %v, %v), want (ACCESS_LOCAL, %d, 2)", op, operand, next, extendedOperand+500)
	}
}

func TestPatchRewritesOperandInPlace(t *testing.T) {
	c := NewChunk()
	ip := c.Emit(JUMP_FORWARD, 0, 1)
	c.Patch(ip, 42)
	op, operand, _ := c.Decode(ip)
	if op != JUMP_FORWARD || operand != 42 {
		t.Errorf("after Patch, Decode = (%v, %v), want (JUMP_FORWARD, 42)", op, operand)
	}
}

func TestAddConstant(t *testing.T) {
	c := NewChunk()
	i1 := c.AddConstant(value.Int(1))
	i2 := c.AddConstant(value.Str("x"))
	if i1 != 0 || i2 != 1 {
		t.Errorf("AddConstant indices = (%d, %d), want (0, 1)", i1, i2)
	}
	if len(c.Constants) != 2 {
		t.Errorf("len(Constants) = %d, want 2", len(c.Constants))
	}
}

func TestLineForIP(t *testing.T) {
	c := NewChunk()
	c.Emit(PUSH_NULL, 0, 1)
	c.Emit(POP, 0, 1)
	c.Emit(PUSH_TRUE, 0, 2)
	c.Emit(HALT, 0, 5)

	tests := []struct {
		ip   int
		want int
	}{
		{0, 1},
		{1, 1},
		{2, 2},
		{3, 5},
	}
	for _, tt := range tests {
		if got := c.LineForIP(tt.ip); got != tt.want {
			t.Errorf("LineForIP(%d) = %d, want %d", tt.ip, got, tt.want)
		}
	}
}

func TestLineForIPEmptyChunk(t *testing.T) {
	c := NewChunk()
	if got := c.LineForIP(0); got != 0 {
		t.Errorf("LineForIP on empty chunk = %d, want 0", got)
	}
}

func TestLen(t *testing.T) {
	c := NewChunk()
	c.Emit(POP, 0, 1)
	c.Emit(ACCESS_LOCAL, extendedOperand+1, 1)
	if got := c.Len(); got != 3 {
		t.Errorf("Len() = %d, want 3", got)
	}
}
