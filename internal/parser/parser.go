// Package parser is a hand-written Pratt parser: it turns a token
// stream into an AST, folding literal sub-trees into constants as it
// goes and gating a handful of syntactic forms behind feature flags.
package parser

import (
	"ember/internal/ast"
	"ember/internal/config"
	"ember/internal/diag"
	"ember/internal/token"
)

// Expr and Stmt are re-exported so call sites don't need to import
// both parser and ast for the common case.
type Expr = ast.Expr
type Stmt = ast.Stmt

// parseException unwinds the recursive-descent call stack back to
// declaration() on a syntax error, so the parser can synchronize and
// keep reporting later errors in the same pass.
type parseException struct{}

// Parser consumes a pre-scanned token stream for one module.
type Parser struct {
	module string
	tokens []token.Token
	cur    int
	diag   *diag.Logger
	cfg    *config.Config

	inFunction bool
	inLoop     bool
	inSwitch   bool
	inClass    bool

	classNames map[string]bool
	funcNames  map[string]bool

	funcIndex int
}

// New constructs a Parser over an already-scanned token stream.
func New(module string, tokens []token.Token, logger *diag.Logger, cfg *config.Config) *Parser {
	return &Parser{
		module:     module,
		tokens:     tokens,
		diag:       logger,
		cfg:        cfg,
		classNames: make(map[string]bool),
		funcNames:  make(map[string]bool),
	}
}

// Program parses every top-level declaration until END_OF_FILE,
// separating function and class declarations into their own tables
// (what the driver assembles into an ast.Module) from the ordinary
// top-level statements that become the module's init code.
func (p *Parser) Program() (stmts []Stmt, functions []*ast.FunctionStmt, classes []*ast.ClassStmt) {
	for !p.check(token.END_OF_FILE) {
		for p.match(token.END_OF_LINE, token.SEMICOLON) {
		}
		if p.check(token.END_OF_FILE) {
			break
		}
		s := p.declaration()
		switch v := s.(type) {
		case *ast.FunctionStmt:
			functions = append(functions, v)
		case *ast.ClassStmt:
			classes = append(classes, v)
		default:
			stmts = append(stmts, s)
		}
	}
	return stmts, functions, classes
}

// --- cursor helpers ---

func (p *Parser) peek() token.Token     { return p.tokens[p.cur] }
func (p *Parser) peekNext() token.Token {
	if p.cur+1 >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1]
	}
	return p.tokens[p.cur+1]
}
func (p *Parser) previous() token.Token { return p.tokens[p.cur-1] }

func (p *Parser) advance() token.Token {
	if !p.isAtEnd() {
		p.cur++
	}
	return p.previous()
}

func (p *Parser) isAtEnd() bool { return p.peek().Kind == token.END_OF_FILE }

func (p *Parser) check(k token.Kind) bool {
	if p.isAtEnd() {
		return k == token.END_OF_FILE
	}
	return p.peek().Kind == k
}

func (p *Parser) match(kinds ...token.Kind) bool {
	for _, k := range kinds {
		if p.check(k) {
			p.advance()
			return true
		}
	}
	return false
}

func (p *Parser) consume(k token.Kind, msg string) token.Token {
	if p.check(k) {
		return p.advance()
	}
	p.errorAt(p.peek(), "%s", msg)
	panic(parseException{})
}

// skipEOLs consumes any run of implicit line terminators, used between
// statements inside a block where a trailing EOL is optional noise.
func (p *Parser) skipEOLs() {
	for p.match(token.END_OF_LINE, token.SEMICOLON) {
	}
}

func (p *Parser) errorAt(t token.Token, format string, args ...interface{}) {
	p.diag.Error(diag.ParseError, p.module, t.Pos, "", format, args...)
}

func (p *Parser) warnAt(t token.Token, format string, args ...interface{}) {
	p.diag.Warning(diag.ParseError, p.module, t.Pos, "", format, args...)
}

// synchronize advances past the offending token until it finds a
// statement terminator or a statement-starting keyword, so one error
// doesn't cascade into spurious follow-on errors.
func (p *Parser) synchronize() {
	if k := p.previous().Kind; k == token.SEMICOLON || k == token.END_OF_LINE || k == token.RIGHT_BRACE {
		return // the offending token was itself a terminator, already consumed
	}
	p.advance()
	for !p.isAtEnd() {
		if p.previous().Kind == token.SEMICOLON || p.previous().Kind == token.END_OF_LINE || p.previous().Kind == token.RIGHT_BRACE {
			return
		}
		switch p.peek().Kind {
		case token.BREAK, token.CONTINUE, token.CLASS, token.FN, token.FOR, token.IF,
			token.IMPORT, token.PUBLIC, token.PRIVATE, token.PROTECTED, token.RETURN,
			token.TYPE, token.CONST, token.VAR, token.WHILE, token.SWITCH:
			return
		}
		p.advance()
	}
}

// featureGate checks feature f's configured level and reports a
// diagnostic at t if it is not "none"; it returns false ("reject the
// form") only when the level is "error".
func (p *Parser) featureGate(f config.Feature, t token.Token, what string) bool {
	level := p.cfg.Level(f)
	switch level {
	case config.LevelError:
		p.errorAt(t, "%s is disabled by feature flag %q", what, f)
		return false
	case config.LevelWarn:
		p.warnAt(t, "%s is discouraged (feature flag %q)", what, f)
		return true
	default:
		return true
	}
}

func (p *Parser) foldEnabled() bool { return p.cfg.FoldConstants }
