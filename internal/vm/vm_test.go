package vm

import (
	"testing"

	"ember/internal/bytecode"
	"ember/internal/config"
	"ember/internal/diag"
	"ember/internal/value"
)

func newTestVM(runtime []*bytecode.RuntimeModule) (*VM, *diag.Logger) {
	logger := diag.NewLogger(false)
	return New(runtime, logger, config.New()), logger
}

// singleModule builds a one-module runtime whose init body is built by
// the caller and whose teardown is an empty HALT-only chunk, the
// smallest fixture that exercises Run's full init/teardown cycle.
func singleModule(name string, init *bytecode.Chunk) []*bytecode.RuntimeModule {
	teardown := bytecode.NewChunk()
	teardown.Emit(bytecode.HALT, 0, 1)
	return []*bytecode.RuntimeModule{
		{Name: name, TopLevelCode: init, TeardownCode: teardown},
	}
}

func TestRunExecutesTopLevelCodeThenHalts(t *testing.T) {
	c := bytecode.NewChunk()
	idx := c.AddConstant(value.Int(5))
	c.Emit(bytecode.CONSTANT, uint32(idx), 1)
	c.Emit(bytecode.POP, 0, 1)
	c.Emit(bytecode.HALT, 0, 1)

	runtime := singleModule("main", c)
	m, logger := newTestVM(runtime)
	state := m.Run(0)
	if state != Finished {
		t.Errorf("Run() = %v, want Finished", state)
	}
	if logger.HadError() {
		t.Errorf("unexpected runtime error: %v", logger.Diagnostics())
	}
}

func TestIntegerDivisionByZeroIsARuntimeError(t *testing.T) {
	c := bytecode.NewChunk()
	one := c.AddConstant(value.Int(1))
	zero := c.AddConstant(value.Int(0))
	c.Emit(bytecode.CONSTANT, uint32(one), 1)
	c.Emit(bytecode.CONSTANT, uint32(zero), 1)
	c.Emit(bytecode.IDIV, 0, 1)
	c.Emit(bytecode.HALT, 0, 1)

	runtime := singleModule("main", c)
	m, logger := newTestVM(runtime)
	m.Run(0)
	if !logger.HadError() {
		t.Error("dividing by zero should report a runtime error")
	}
}

func TestGlobalAssignAndAccessRoundtrip(t *testing.T) {
	c := bytecode.NewChunk()
	v := c.AddConstant(value.Int(99))
	c.Emit(bytecode.CONSTANT, uint32(v), 1)
	c.Emit(bytecode.ASSIGN_GLOBAL, 0, 1) // leaves its operand on top, per the assignment-as-expression contract
	c.Emit(bytecode.POP, 0, 1)
	c.Emit(bytecode.ACCESS_GLOBAL, 0, 2)
	c.Emit(bytecode.POP, 0, 2)
	c.Emit(bytecode.HALT, 0, 2)

	runtime := singleModule("main", c)
	runtime[0].GlobalCount = 1
	m, logger := newTestVM(runtime)
	m.Run(0)
	if logger.HadError() {
		t.Fatalf("unexpected runtime error: %v", logger.Diagnostics())
	}
	if m.stackTop != 0 {
		t.Errorf("stackTop = %d, want 0 (every pushed value should have been popped)", m.stackTop)
	}
}

func TestCallFunctionPushesAndReturnsAFrame(t *testing.T) {
	fnChunk := bytecode.NewChunk()
	// add(a, b): return a + b -- slot 0 is the caller-reserved
	// return-value cell, so the two params sit at slots 1 and 2.
	fnChunk.Emit(bytecode.ACCESS_LOCAL, 1, 1)
	fnChunk.Emit(bytecode.ACCESS_LOCAL, 2, 1)
	fnChunk.Emit(bytecode.IADD, 0, 1)
	fnChunk.Emit(bytecode.RETURN, 0, 1)

	top := bytecode.NewChunk()
	a := top.AddConstant(value.Int(3))
	b := top.AddConstant(value.Int(4))
	// LOAD_FUNCTION_SAME_MODULE pops a STRING naming the function, so
	// the name constant must be pushed (via CONSTANT_STRING, to go
	// through the cache) immediately before it, matching the
	// compiler's emission order.
	name := top.AddConstant(value.Str("add"))
	top.Emit(bytecode.PUSH_NULL, 0, 1) // reserved return-value cell (slot 0)
	top.Emit(bytecode.CONSTANT, uint32(a), 1)
	top.Emit(bytecode.CONSTANT, uint32(b), 1)
	top.Emit(bytecode.CONSTANT_STRING, uint32(name), 1)
	top.Emit(bytecode.LOAD_FUNCTION_SAME_MODULE, 0, 1)
	top.Emit(bytecode.CALL_FUNCTION, 0, 1)
	top.Emit(bytecode.POP, 0, 1)
	top.Emit(bytecode.HALT, 0, 1)

	teardown := bytecode.NewChunk()
	teardown.Emit(bytecode.HALT, 0, 1)
	runtime := []*bytecode.RuntimeModule{
		{
			Name:         "main",
			TopLevelCode: top,
			TeardownCode: teardown,
			Functions: []*bytecode.RuntimeFunction{
				{Name: "add", Arity: 2, Code: fnChunk, ModuleIndex: 0, FuncIndex: 0},
			},
		},
	}

	m, logger := newTestVM(runtime)
	m.Run(0)
	if logger.HadError() {
		t.Fatalf("unexpected runtime error: %v", logger.Diagnostics())
	}
	if m.Cache().Len() != 0 {
		t.Errorf("string cache should be empty once the function name string is consumed, Len() = %d", m.Cache().Len())
	}
}

func TestRunInitializesNonMainModulesBeforeMain(t *testing.T) {
	dep := bytecode.NewChunk()
	dep.Emit(bytecode.HALT, 0, 1)
	depTeardown := bytecode.NewChunk()
	depTeardown.Emit(bytecode.HALT, 0, 1)

	main := bytecode.NewChunk()
	main.Emit(bytecode.HALT, 0, 1)
	mainTeardown := bytecode.NewChunk()
	mainTeardown.Emit(bytecode.HALT, 0, 1)

	runtime := []*bytecode.RuntimeModule{
		{Name: "util", TopLevelCode: dep, TeardownCode: depTeardown},
		{Name: "main", TopLevelCode: main, TeardownCode: mainTeardown},
	}
	m, logger := newTestVM(runtime)
	state := m.Run(1)
	if state != Finished {
		t.Errorf("Run() = %v, want Finished", state)
	}
	if logger.HadError() {
		t.Errorf("unexpected runtime error: %v", logger.Diagnostics())
	}
	if m.modules[0].Name != "util" || m.modules[1].Name != "main" {
		t.Errorf("module init order = [%s %s], want [util main]", m.modules[0].Name, m.modules[1].Name)
	}
}

func TestStackExhaustionIsARuntimeError(t *testing.T) {
	c := bytecode.NewChunk()
	idx := c.AddConstant(value.Int(1))
	for i := 0; i <= stackMax; i++ {
		c.Emit(bytecode.CONSTANT, uint32(idx), 1)
	}
	c.Emit(bytecode.HALT, 0, 1)

	runtime := singleModule("main", c)
	m, logger := newTestVM(runtime)
	m.Run(0)
	if !logger.HadError() {
		t.Error("pushing past stackMax should report a runtime error")
	}
}

func TestNativeCallDispatchesIntConversion(t *testing.T) {
	c := bytecode.NewChunk()
	f := c.AddConstant(value.Float(3.9))
	name := c.AddConstant(value.Str("int"))
	c.Emit(bytecode.CONSTANT, uint32(f), 1)
	c.Emit(bytecode.CONSTANT_STRING, uint32(name), 1)
	c.Emit(bytecode.CALL_NATIVE, 0, 1)
	c.Emit(bytecode.POP, 0, 1)
	c.Emit(bytecode.HALT, 0, 1)

	runtime := singleModule("main", c)
	m, logger := newTestVM(runtime)
	m.Run(0)
	if logger.HadError() {
		t.Fatalf("unexpected runtime error: %v", logger.Diagnostics())
	}
}
