package lexer

import (
	"testing"

	"ember/internal/diag"
	"ember/internal/token"
)

func kinds(toks []token.Token) []token.Kind {
	ks := make([]token.Kind, len(toks))
	for i, t := range toks {
		ks[i] = t.Kind
	}
	return ks
}

func TestScanTokensBasic(t *testing.T) {
	logger := diag.NewLogger(false)
	toks := New("main", "var x: int = 1 + 2;", logger).ScanTokens()
	got := kinds(toks)
	want := []token.Kind{
		token.VAR, token.IDENTIFIER, token.COLON, token.INT_TYPE, token.EQUAL,
		token.INT_VALUE, token.PLUS, token.INT_VALUE, token.SEMICOLON,
		token.END_OF_FILE,
	}
	if len(got) != len(want) {
		t.Fatalf("token kinds = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("token[%d] = %v, want %v", i, got[i], want[i])
		}
	}
	if logger.HadError() {
		t.Errorf("unexpected scanner errors: %v", logger.Diagnostics())
	}
}

func TestImplicitEndOfLineAfterStatementTerminatingToken(t *testing.T) {
	logger := diag.NewLogger(false)
	toks := New("main", "return x\n", logger).ScanTokens()
	got := kinds(toks)
	want := []token.Kind{token.RETURN, token.IDENTIFIER, token.END_OF_LINE, token.END_OF_FILE}
	if len(got) != len(want) {
		t.Fatalf("token kinds = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("token[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestNoImplicitEndOfLineInsideParens(t *testing.T) {
	logger := diag.NewLogger(false)
	toks := New("main", "foo(1,\n2)\n", logger).ScanTokens()
	for _, tk := range toks[:len(toks)-2] {
		if tk.Kind == token.END_OF_LINE {
			t.Fatalf("unexpected END_OF_LINE inside parens: %v", kinds(toks))
		}
	}
}

func TestFloatVsIntLiteral(t *testing.T) {
	logger := diag.NewLogger(false)
	toks := New("main", "1 1.5 1e3 1.5e-2", logger).ScanTokens()
	want := []token.Kind{token.INT_VALUE, token.FLOAT_VALUE, token.FLOAT_VALUE, token.FLOAT_VALUE}
	for i, k := range want {
		if toks[i].Kind != k {
			t.Errorf("token[%d] = %v, want %v", i, toks[i].Kind, k)
		}
	}
}

func TestStringLiteralEscapes(t *testing.T) {
	logger := diag.NewLogger(false)
	toks := New("main", `"a\nb\t\"c\""`, logger).ScanTokens()
	if toks[0].Kind != token.STRING_VALUE {
		t.Fatalf("expected STRING_VALUE, got %v", toks[0].Kind)
	}
	if want := "a\nb\t\"c\""; toks[0].Lexeme != want {
		t.Errorf("Lexeme = %q, want %q", toks[0].Lexeme, want)
	}
}

func TestUnterminatedStringIsAnError(t *testing.T) {
	logger := diag.NewLogger(false)
	New("main", `"never closed`, logger).ScanTokens()
	if !logger.HadError() {
		t.Error("unterminated string literal should report an error")
	}
}

func TestLineCommentsAndBlockComments(t *testing.T) {
	logger := diag.NewLogger(false)
	toks := New("main", "1 // comment\n/* block\ncomment */ 2", logger).ScanTokens()
	got := kinds(toks)
	want := []token.Kind{token.INT_VALUE, token.END_OF_LINE, token.INT_VALUE, token.END_OF_LINE, token.END_OF_FILE}
	if len(got) != len(want) {
		t.Fatalf("token kinds = %v, want %v", got, want)
	}
}

func TestKeywordLookupViaIdentifierScan(t *testing.T) {
	logger := diag.NewLogger(false)
	toks := New("main", "class fn notakeyword", logger).ScanTokens()
	want := []token.Kind{token.CLASS, token.FN, token.IDENTIFIER}
	for i, k := range want {
		if toks[i].Kind != k {
			t.Errorf("token[%d] = %v, want %v", i, toks[i].Kind, k)
		}
	}
}

func TestShebangIsSkipped(t *testing.T) {
	logger := diag.NewLogger(false)
	toks := New("main", "#!/usr/bin/env ember\nvar x = 1;", logger).ScanTokens()
	if toks[0].Kind != token.VAR {
		t.Errorf("first token = %v, want VAR (shebang line should be skipped)", toks[0].Kind)
	}
}
