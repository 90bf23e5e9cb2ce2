package diag

import (
	"strings"
	"testing"

	"ember/internal/token"
)

func TestHadError(t *testing.T) {
	l := NewLogger(false)
	if l.HadError() {
		t.Fatal("fresh logger should not have an error")
	}
	l.Warning(ParseError, "main", token.Position{Line: 1}, "", "just a warning")
	if l.HadError() {
		t.Fatal("a warning should not count as an error")
	}
	l.Error(ParseError, "main", token.Position{Line: 1}, "", "boom")
	if !l.HadError() {
		t.Fatal("an Error diagnostic should set HadError")
	}
}

func TestDiagnosticsOrder(t *testing.T) {
	l := NewLogger(false)
	l.Note(DriverError, "main", token.Position{}, "first")
	l.Warning(ParseError, "main", token.Position{}, "", "second")
	l.Error(RuntimeError, "main", token.Position{}, "", "third")

	got := l.Diagnostics()
	if len(got) != 3 {
		t.Fatalf("len(Diagnostics()) = %d, want 3", len(got))
	}
	if got[0].Message != "first" || got[1].Message != "second" || got[2].Message != "third" {
		t.Errorf("diagnostics not in report order: %+v", got)
	}
}

func TestRenderUncolorizedContainsLocationAndCaret(t *testing.T) {
	l := NewLogger(false)
	l.Error(ParseError, "main", token.Position{Line: 3, StartColumn: 5}, "  x = y + ;", "unexpected token")
	out := l.RenderAll()
	if !strings.Contains(out, "main:3:5") {
		t.Errorf("render missing location: %s", out)
	}
	if !strings.Contains(out, "^") {
		t.Errorf("render missing caret: %s", out)
	}
	if strings.Contains(out, "\x1b[") {
		t.Errorf("uncolorized render should contain no ANSI escapes: %s", out)
	}
}

func TestRenderColorizedContainsAnsiEscapes(t *testing.T) {
	l := NewLogger(true)
	l.Error(ParseError, "main", token.Position{Line: 1, StartColumn: 1}, "", "boom")
	out := l.Render(l.Diagnostics()[0])
	if !strings.Contains(out, "\x1b[") {
		t.Errorf("colorized render should contain ANSI escapes: %s", out)
	}
}
