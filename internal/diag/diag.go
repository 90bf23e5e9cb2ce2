// Package diag collects and renders diagnostics (errors, warnings, notes)
// produced by every phase of the pipeline, the way the scanner, parser,
// resolver, and driver all report back to one place.
package diag

import (
	"fmt"
	"strings"

	"ember/internal/token"
)

// Severity classifies a Diagnostic.
type Severity string

const (
	Error   Severity = "error"
	Warning Severity = "warning"
	Note    Severity = "note"
)

// Kind names the phase or category a Diagnostic came from, mirroring the
// error kinds enumerated for the system (scanner, parse, resolver,
// runtime, driver).
type Kind string

const (
	ScannerError  Kind = "ScannerError"
	ParseError    Kind = "ParseError"
	ResolverError Kind = "ResolverError"
	RuntimeError  Kind = "RuntimeError"
	DriverError   Kind = "DriverError"
	FeatureError  Kind = "FeatureError"
)

// Diagnostic is a single reported message tied to a source location.
type Diagnostic struct {
	Severity Severity
	Kind     Kind
	Module   string
	Pos      token.Position
	Message  string
	Source   string // the offending source line, if known
}

func (d Diagnostic) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: %s: %s\n", d.Severity, d.Kind, d.Message)
	if d.Module != "" {
		fmt.Fprintf(&sb, "  at %s:%d:%d\n", d.Module, d.Pos.Line, d.Pos.StartColumn)
	}
	if d.Source != "" {
		prefix := fmt.Sprintf("  %d | ", d.Pos.Line)
		fmt.Fprintf(&sb, "%s%s\n", prefix, d.Source)
		pad := strings.Repeat(" ", len(prefix))
		if d.Pos.StartColumn > 0 {
			pad += strings.Repeat(" ", d.Pos.StartColumn-1)
		}
		sb.WriteString(pad + "^\n")
	}
	return sb.String()
}

// Logger accumulates diagnostics across scanning, parsing, resolving,
// and running a module graph. A single Logger is shared by every
// FrontendManager-equivalent in the driver so errors from independent
// modules are reported together.
type Logger struct {
	Colorize     bool
	diagnostics  []Diagnostic
	errorCount   int
}

func NewLogger(colorize bool) *Logger {
	return &Logger{Colorize: colorize}
}

func (l *Logger) report(d Diagnostic) {
	l.diagnostics = append(l.diagnostics, d)
	if d.Severity == Error {
		l.errorCount++
	}
}

// Error records a fatal diagnostic for the given phase.
func (l *Logger) Error(kind Kind, module string, pos token.Position, source, format string, args ...interface{}) {
	l.report(Diagnostic{Severity: Error, Kind: kind, Module: module, Pos: pos, Source: source, Message: fmt.Sprintf(format, args...)})
}

// Warning records a non-fatal diagnostic.
func (l *Logger) Warning(kind Kind, module string, pos token.Position, source, format string, args ...interface{}) {
	l.report(Diagnostic{Severity: Warning, Kind: kind, Module: module, Pos: pos, Source: source, Message: fmt.Sprintf(format, args...)})
}

// Note records an informational diagnostic.
func (l *Logger) Note(kind Kind, module string, pos token.Position, format string, args ...interface{}) {
	l.report(Diagnostic{Severity: Note, Kind: kind, Module: module, Pos: pos, Message: fmt.Sprintf(format, args...)})
}

// HadError reports whether any Error-severity diagnostic has been logged.
func (l *Logger) HadError() bool { return l.errorCount > 0 }

// Diagnostics returns every diagnostic recorded so far, in report order.
func (l *Logger) Diagnostics() []Diagnostic { return l.diagnostics }

const (
	ansiRed    = "\x1b[31m"
	ansiYellow = "\x1b[33m"
	ansiCyan   = "\x1b[36m"
	ansiReset  = "\x1b[0m"
	ansiBold   = "\x1b[1m"
)

func colorFor(sev Severity) string {
	switch sev {
	case Error:
		return ansiRed
	case Warning:
		return ansiYellow
	default:
		return ansiCyan
	}
}

// Render formats a single diagnostic for terminal output, colorizing the
// severity label when the logger was constructed with Colorize set.
func (l *Logger) Render(d Diagnostic) string {
	if !l.Colorize {
		return d.String()
	}
	label := fmt.Sprintf("%s%s%s: %s: %s", colorFor(d.Severity), string(d.Severity), ansiReset, d.Kind, d.Message)
	var sb strings.Builder
	sb.WriteString(ansiBold + label + ansiReset + "\n")
	if d.Module != "" {
		fmt.Fprintf(&sb, "  at %s:%d:%d\n", d.Module, d.Pos.Line, d.Pos.StartColumn)
	}
	if d.Source != "" {
		prefix := fmt.Sprintf("  %d | ", d.Pos.Line)
		fmt.Fprintf(&sb, "%s%s\n", prefix, d.Source)
		pad := strings.Repeat(" ", len(prefix))
		if d.Pos.StartColumn > 0 {
			pad += strings.Repeat(" ", d.Pos.StartColumn-1)
		}
		sb.WriteString(pad + ansiRed + "^" + ansiReset + "\n")
	}
	return sb.String()
}

// RenderAll renders every diagnostic in report order.
func (l *Logger) RenderAll() string {
	var sb strings.Builder
	for _, d := range l.diagnostics {
		sb.WriteString(l.Render(d))
	}
	return sb.String()
}
