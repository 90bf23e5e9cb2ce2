package compiler

import (
	"strings"
	"testing"

	"ember/internal/ast"
	"ember/internal/bytecode"
	"ember/internal/config"
	"ember/internal/diag"
	"ember/internal/lexer"
	"ember/internal/parser"
	"ember/internal/resolver"
)

// compileSource runs the whole front end (scan, parse, resolve) before
// handing the resolved module to the compiler, since codegen assumes
// every node already carries resolver-filled attributes.
func compileSource(t *testing.T, src string) (*bytecode.RuntimeModule, *diag.Logger) {
	t.Helper()
	return compileSourceWithConfig(t, src, config.New())
}

func compileSourceWithConfig(t *testing.T, src string, cfg *config.Config) (*bytecode.RuntimeModule, *diag.Logger) {
	t.Helper()
	logger := diag.NewLogger(false)
	toks := lexer.New("main", src, logger).ScanTokens()
	stmts, functions, classes := parser.New("main", toks, logger, cfg).Program()
	mod := &ast.Module{Name: "main", Statements: stmts, Functions: functions, Classes: classes}
	if !resolver.New("main", logger, cfg).Resolve(mod) {
		t.Fatalf("resolve failed: %v", logger.Diagnostics())
	}
	rm := New("main", logger, cfg).Compile(mod, 0)
	if logger.HadError() {
		t.Fatalf("compile reported errors: %v", logger.Diagnostics())
	}
	return rm, logger
}

func TestCompileGlobalVarDecl(t *testing.T) {
	cfg := config.New()
	cfg.FoldConstants = false
	rm, _ := compileSourceWithConfig(t, "var x: int = 1 + 2;", cfg)
	if rm.GlobalCount != 1 {
		t.Errorf("GlobalCount = %d, want 1", rm.GlobalCount)
	}
	dis := rm.TopLevelCode.Disassemble("main.init")
	if !strings.Contains(dis, "IADD") {
		t.Errorf("with folding off, the addition should reach codegen as IADD, got:\n%s", dis)
	}
	if !strings.Contains(dis, "HALT") {
		t.Errorf("top-level chunk should end in HALT:\n%s", dis)
	}
}

func TestCompileGlobalVarDeclWithFoldingCollapsesToConstant(t *testing.T) {
	rm, _ := compileSource(t, "var x: int = 1 + 2;")
	dis := rm.TopLevelCode.Disassemble("main.init")
	if strings.Contains(dis, "IADD") {
		t.Errorf("with folding on (the default), 1+2 should already be a single constant, got:\n%s", dis)
	}
	if !strings.Contains(dis, "CONSTANT") {
		t.Errorf("expected the folded literal 3 to be pushed via CONSTANT:\n%s", dis)
	}
}

func TestCompileFunctionAppearsInRuntimeModule(t *testing.T) {
	rm, _ := compileSource(t, "fn add(a: int, b: int) -> int { return a + b; }")
	fn, ok := rm.FunctionByName("add")
	if !ok {
		t.Fatal("expected a compiled function named add")
	}
	if fn.Arity != 2 {
		t.Errorf("Arity = %d, want 2", fn.Arity)
	}
	if fn.ModuleIndex != 0 {
		t.Errorf("ModuleIndex = %d, want 0 (single-module compile)", fn.ModuleIndex)
	}
	dis := fn.Code.Disassemble("main.add")
	if !strings.Contains(dis, "TRAP_RETURN") {
		t.Errorf("function body should fall through to TRAP_RETURN if control reaches the end:\n%s", dis)
	}
}

func TestCompileStampsModuleIndex(t *testing.T) {
	rm, _ := compileSource(t, "fn f() -> null { return; }")
	fn, ok := rm.FunctionByName("f")
	if !ok {
		t.Fatal("expected a compiled function named f")
	}
	rm2 := func() *bytecode.RuntimeModule {
		logger := diag.NewLogger(false)
		cfg := config.New()
		src := "fn g() -> null { return; }"
		toks := lexer.New("other", src, logger).ScanTokens()
		stmts, functions, classes := parser.New("other", toks, logger, cfg).Program()
		mod := &ast.Module{Name: "other", Statements: stmts, Functions: functions, Classes: classes}
		resolver.New("other", logger, cfg).Resolve(mod)
		return New("other", logger, cfg).Compile(mod, 3)
	}()
	gfn, _ := rm2.FunctionByName("g")
	if gfn.ModuleIndex != 3 {
		t.Errorf("ModuleIndex = %d, want 3 (the moduleIndex argument passed to Compile)", gfn.ModuleIndex)
	}
	if fn.ModuleIndex != 0 {
		t.Errorf("first module's function should keep ModuleIndex 0, got %d", fn.ModuleIndex)
	}
}

func TestCompileWhileLoopEmitsBackwardJump(t *testing.T) {
	rm, _ := compileSource(t, `
var i: int = 0;
while (i < 3) {
  i = i + 1;
}
`)
	dis := rm.TopLevelCode.Disassemble("main.init")
	if !strings.Contains(dis, "JUMP_BACKWARD") {
		t.Errorf("while loop should emit a backward jump to re-check its condition:\n%s", dis)
	}
}

func TestTupleAssignmentConsumesEachSlotExactlyOnce(t *testing.T) {
	// Regression test: emitAssignVar must pop every slot but the last
	// (bottom) one, or a multi-slot assignment would leave stray values
	// on the stack and repeatedly reassign the same top-of-stack value.
	rm, _ := compileSource(t, `
var t: {int, int} = {1, 2};
t = {3, 4};
`)
	dis := rm.TopLevelCode.Disassemble("main.init")
	lines := strings.Split(dis, "\n")

	var opSeq []string
	for _, line := range lines {
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		op := fields[2]
		if op == "ASSIGN_GLOBAL" || op == "POP" {
			opSeq = append(opSeq, op)
		}
	}
	// One ASSIGN_GLOBAL per slot (top-down), a POP discarding the
	// first-processed (non-bottom) slot's value, and a second POP
	// discarding the whole assignment expression's own net result once
	// it's used as a statement -- never two ASSIGN_GLOBAL back-to-back,
	// which would mean the same stack-top value got stored into both
	// slots instead of one value per slot.
	want := []string{"ASSIGN_GLOBAL", "POP", "ASSIGN_GLOBAL", "POP"}
	if len(opSeq) != len(want) {
		t.Fatalf("ASSIGN_GLOBAL/POP sequence = %v, want %v\nfull disassembly:\n%s", opSeq, want, dis)
	}
	for i := range want {
		if opSeq[i] != want[i] {
			t.Errorf("opSeq[%d] = %s, want %s (sequence %v)", i, opSeq[i], want[i], opSeq)
		}
	}
}
