package bytecode

import (
	"strings"
	"testing"

	"ember/internal/value"
)

func TestChunkDisassemble(t *testing.T) {
	c := NewChunk()
	idx := c.AddConstant(value.Int(42))
	c.Emit(CONSTANT, uint32(idx), 1)
	c.Emit(POP, 0, 1)
	c.Emit(HALT, 0, 2)

	out := c.Disassemble("main.init")
	if !strings.Contains(out, "== main.init ==") {
		t.Errorf("missing header: %s", out)
	}
	if !strings.Contains(out, "CONSTANT") || !strings.Contains(out, "42") {
		t.Errorf("disassembly should resolve the constant operand: %s", out)
	}
	if !strings.Contains(out, "HALT") {
		t.Errorf("disassembly missing HALT: %s", out)
	}
}

func TestRuntimeModuleDisassembleIncludesFunctions(t *testing.T) {
	fnChunk := NewChunk()
	fnChunk.Emit(RETURN, 0, 1)

	top := NewChunk()
	top.Emit(HALT, 0, 1)

	m := &RuntimeModule{
		Name:         "main",
		TopLevelCode: top,
		Functions: []*RuntimeFunction{
			{Name: "add", Arity: 2, Code: fnChunk},
		},
	}
	out := m.Disassemble()
	if !strings.Contains(out, "module main") {
		t.Errorf("missing module header: %s", out)
	}
	if !strings.Contains(out, "main.init") {
		t.Errorf("missing init section: %s", out)
	}
	if !strings.Contains(out, "main.add") {
		t.Errorf("missing function section: %s", out)
	}
}

func TestFunctionByName(t *testing.T) {
	m := &RuntimeModule{
		Functions: []*RuntimeFunction{
			{Name: "f", Arity: 0, Code: NewChunk()},
		},
	}
	if fn, ok := m.FunctionByName("f"); !ok || fn.Name != "f" {
		t.Errorf("FunctionByName(f) = %v, %v, want a match", fn, ok)
	}
	if _, ok := m.FunctionByName("missing"); ok {
		t.Error("FunctionByName(missing) should not be found")
	}
}
