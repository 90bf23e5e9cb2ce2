package parser

import (
	"testing"

	"ember/internal/ast"
	"ember/internal/config"
	"ember/internal/diag"
	"ember/internal/lexer"
)

func parseProgram(t *testing.T, src string, cfg *config.Config) (stmts []ast.Stmt, functions []*ast.FunctionStmt, classes []*ast.ClassStmt, logger *diag.Logger) {
	t.Helper()
	logger = diag.NewLogger(false)
	if cfg == nil {
		cfg = config.New()
	}
	toks := lexer.New("main", src, logger).ScanTokens()
	p := New("main", toks, logger, cfg)
	stmts, functions, classes = p.Program()
	return stmts, functions, classes, logger
}

func TestParseVarDecl(t *testing.T) {
	// folding is off so the BinaryExpr survives for its operands to be checked
	cfg := config.New()
	cfg.FoldConstants = false
	stmts, _, _, logger := parseProgram(t, "var x: int = 1 + 2;", cfg)
	if logger.HadError() {
		t.Fatalf("unexpected errors: %v", logger.Diagnostics())
	}
	if len(stmts) != 1 {
		t.Fatalf("len(stmts) = %d, want 1", len(stmts))
	}
	decl, ok := stmts[0].(ast.VarDeclStmt)
	if !ok {
		t.Fatalf("stmts[0] = %T, want ast.VarDeclStmt", stmts[0])
	}
	if decl.Name != "x" || decl.Kind != ast.VarKindVar {
		t.Errorf("decl = %+v, want Name=x Kind=VarKindVar", decl)
	}
	bin, ok := decl.Init.(ast.BinaryExpr)
	if !ok {
		t.Fatalf("Init = %T, want ast.BinaryExpr", decl.Init)
	}
	if bin.Left.(ast.LiteralExpr).IntVal != 1 || bin.Right.(ast.LiteralExpr).IntVal != 2 {
		t.Errorf("unexpected binary operands: %+v", bin)
	}
}

func TestParseFunctionGoesToFunctionsTable(t *testing.T) {
	_, functions, _, logger := parseProgram(t, "fn add(a: int, b: int) -> int { return a + b; }", nil)
	if logger.HadError() {
		t.Fatalf("unexpected errors: %v", logger.Diagnostics())
	}
	if len(functions) != 1 {
		t.Fatalf("len(functions) = %d, want 1", len(functions))
	}
	fn := functions[0]
	if fn.Name != "add" || len(fn.Params) != 2 {
		t.Errorf("fn = %+v, want Name=add with 2 params", fn)
	}
}

func TestParseClassGoesToClassesTable(t *testing.T) {
	_, _, classes, logger := parseProgram(t, "class Point { public x: int; public y: int; }", nil)
	if logger.HadError() {
		t.Fatalf("unexpected errors: %v", logger.Diagnostics())
	}
	if len(classes) != 1 || classes[0].Name != "Point" {
		t.Fatalf("classes = %+v, want one class named Point", classes)
	}
}

func TestParseIfElse(t *testing.T) {
	stmts, _, _, logger := parseProgram(t, "if (x < 1) { y = 1; } else { y = 2; }", nil)
	if logger.HadError() {
		t.Fatalf("unexpected errors: %v", logger.Diagnostics())
	}
	ifStmt, ok := stmts[0].(ast.IfStmt)
	if !ok {
		t.Fatalf("stmts[0] = %T, want ast.IfStmt", stmts[0])
	}
	if ifStmt.Then == nil || ifStmt.Else == nil {
		t.Error("expected both Then and Else branches")
	}
}

func TestConstantFoldingCollapsesArithmetic(t *testing.T) {
	cfg := config.New()
	cfg.FoldConstants = true
	stmts, _, _, logger := parseProgram(t, "var x: int = 2 + 3;", cfg)
	if logger.HadError() {
		t.Fatalf("unexpected errors: %v", logger.Diagnostics())
	}
	decl := stmts[0].(ast.VarDeclStmt)
	lit, ok := decl.Init.(ast.LiteralExpr)
	if !ok {
		t.Fatalf("with folding on, Init = %T, want ast.LiteralExpr", decl.Init)
	}
	if lit.IntVal != 5 {
		t.Errorf("folded constant = %d, want 5", lit.IntVal)
	}
}

func TestConstantFoldingDisabledLeavesBinaryExpr(t *testing.T) {
	cfg := config.New()
	cfg.FoldConstants = false
	stmts, _, _, logger := parseProgram(t, "var x: int = 2 + 3;", cfg)
	if logger.HadError() {
		t.Fatalf("unexpected errors: %v", logger.Diagnostics())
	}
	decl := stmts[0].(ast.VarDeclStmt)
	if _, ok := decl.Init.(ast.BinaryExpr); !ok {
		t.Fatalf("with folding off, Init = %T, want ast.BinaryExpr", decl.Init)
	}
}

func TestFeatureGateErrorRejectsTernary(t *testing.T) {
	cfg := config.New()
	cfg.Set(config.TernaryOperator, config.LevelError)
	_, _, _, logger := parseProgram(t, "var x: int = a ? 1 : 2;", cfg)
	if !logger.HadError() {
		t.Error("ternary-operator at LevelError should reject a ternary expression")
	}
}

func TestFeatureGateNoneAllowsTernary(t *testing.T) {
	cfg := config.New()
	cfg.Set(config.TernaryOperator, config.LevelNone)
	_, _, _, logger := parseProgram(t, "var x: int = a ? 1 : 2;", cfg)
	if logger.HadError() {
		t.Errorf("ternary-operator at LevelNone should parse cleanly: %v", logger.Diagnostics())
	}
}

func TestImportStmtParsed(t *testing.T) {
	stmts, _, _, logger := parseProgram(t, `import "util";`, nil)
	if logger.HadError() {
		t.Fatalf("unexpected errors: %v", logger.Diagnostics())
	}
	imp, ok := stmts[0].(ast.ImportStmt)
	if !ok || imp.Path != "util" {
		t.Errorf("stmts[0] = %+v, want ImportStmt{Path: util}", stmts[0])
	}
}

func TestSyntaxErrorRecoversAndReportsBoth(t *testing.T) {
	_, _, _, logger := parseProgram(t, "var x: int = ;\nvar y: int = ;\n", nil)
	if n := len(logger.Diagnostics()); n < 2 {
		t.Errorf("expected at least 2 diagnostics after two malformed statements, got %d", n)
	}
}
