package resolver

import (
	"testing"

	"ember/internal/ast"
	"ember/internal/config"
	"ember/internal/diag"
	"ember/internal/lexer"
	"ember/internal/parser"
)

func resolveSource(t *testing.T, src string, cfg *config.Config) (*ast.Module, *diag.Logger) {
	t.Helper()
	logger := diag.NewLogger(false)
	if cfg == nil {
		cfg = config.New()
	}
	toks := lexer.New("main", src, logger).ScanTokens()
	stmts, functions, classes := parser.New("main", toks, logger, cfg).Program()
	mod := &ast.Module{Name: "main", Statements: stmts, Functions: functions, Classes: classes}
	New("main", logger, cfg).Resolve(mod)
	return mod, logger
}

func TestResolveLiteralAndBinaryTypes(t *testing.T) {
	// folding is off so the BinaryExpr survives parsing for the resolver to type
	cfg := config.New()
	cfg.FoldConstants = false
	mod, logger := resolveSource(t, "var x: int = 1 + 2;", cfg)
	if logger.HadError() {
		t.Fatalf("unexpected errors: %v", logger.Diagnostics())
	}
	decl := mod.Statements[0].(ast.VarDeclStmt)
	bin := decl.Init.(ast.BinaryExpr)
	if bin.Type() != (ast.Primitive{Kind: ast.IntKind}) {
		t.Errorf("binary expr type = %v, want int", bin.Type())
	}
}

func TestUndefinedVariableIsAnError(t *testing.T) {
	_, logger := resolveSource(t, "var x: int = y;", nil)
	if !logger.HadError() {
		t.Error("referencing an undefined variable should be a resolver error")
	}
}

func TestImplicitIntToFloatWarnsByDefault(t *testing.T) {
	_, logger := resolveSource(t, "var x: float = 1;", nil)
	if logger.HadError() {
		t.Fatalf("default implicit-float-int level is warn, should not error: %v", logger.Diagnostics())
	}
	found := false
	for _, d := range logger.Diagnostics() {
		if d.Severity == diag.Warning {
			found = true
		}
	}
	if !found {
		t.Error("expected a warning diagnostic for the implicit int-to-float conversion")
	}
}

func TestImplicitIntToFloatErrorsWhenGated(t *testing.T) {
	cfg := config.New()
	cfg.Set(config.ImplicitFloatInt, config.LevelError)
	_, logger := resolveSource(t, "var x: float = 1;", cfg)
	if !logger.HadError() {
		t.Error("implicit-float-int at LevelError should reject an int initializer for a float var")
	}
}

func TestImplicitIntToFloatNoneIsSilent(t *testing.T) {
	cfg := config.New()
	cfg.Set(config.ImplicitFloatInt, config.LevelNone)
	_, logger := resolveSource(t, "var x: float = 1;", cfg)
	if len(logger.Diagnostics()) != 0 {
		t.Errorf("implicit-float-int at LevelNone should be silent, got %v", logger.Diagnostics())
	}
}

func TestConversionInsertedOnVarDeclInit(t *testing.T) {
	cfg := config.New()
	cfg.FoldConstants = false
	mod, logger := resolveSource(t, "var x: float = 1;", cfg)
	if logger.HadError() {
		t.Fatalf("unexpected errors: %v", logger.Diagnostics())
	}
	decl := mod.Statements[0].(ast.VarDeclStmt)
	lit, ok := decl.Init.(ast.LiteralExpr)
	if !ok {
		t.Fatalf("Init = %T, want ast.LiteralExpr", decl.Init)
	}
	if lit.Conv() != ast.IntToFloat {
		t.Errorf("Init.Conv() = %v, want IntToFloat", lit.Conv())
	}
}

func TestFunctionParamsAndReturnResolved(t *testing.T) {
	mod, logger := resolveSource(t, "fn add(a: int, b: int) -> int { return a + b; }", nil)
	if logger.HadError() {
		t.Fatalf("unexpected errors: %v", logger.Diagnostics())
	}
	if len(mod.Functions) != 1 {
		t.Fatalf("len(Functions) = %d, want 1", len(mod.Functions))
	}
	ret := mod.Functions[0].Body.Stmts[0].(ast.ReturnStmt)
	if exprType(ret.Value) != (ast.Primitive{Kind: ast.IntKind}) {
		t.Errorf("return value type = %v, want int", exprType(ret.Value))
	}
}
