package parser

import (
	"strconv"
	"strings"

	"ember/internal/ast"
	"ember/internal/config"
	"ember/internal/token"
)

// expression parses a full expression, including the comma operator
// when it's enabled — this is the entry point for expression
// statements, not for argument/element lists (those parse at
// precAssignment so a bare comma stays a separator).
func (p *Parser) expression() Expr { return p.parsePrecedence(precComma) }

// assignment parses one expression at assignment precedence, the
// level used for call arguments, list/tuple elements, and anywhere
// else a comma is a grammar separator rather than an operator.
func (p *Parser) assignment() Expr { return p.parsePrecedence(precAssignment) }

// parsePrecedence is the climbing core of the Pratt parser: it parses
// one prefix form, then keeps folding in infix operators whose
// precedence is at least as high as prec.
func (p *Parser) parsePrecedence(prec precedence) Expr {
	t := p.advance()
	r := getRule(t.Kind)
	if r.prefix == nil {
		p.errorAt(t, "expected an expression, found %s", t)
		panic(parseException{})
	}
	canAssign := prec <= precAssignment
	left := r.prefix(p)

	for !p.isAtEnd() {
		next := getRule(p.peek().Kind)
		if next.infix == nil || prec > next.precedence {
			break
		}
		p.advance()
		left = next.infix(p, left)
	}

	if canAssign && p.check(token.EQUAL) {
		p.errorAt(p.peek(), "invalid assignment target")
	}
	return left
}

// --- prefix parslets ---

func grouping(p *Parser) Expr {
	tok := p.previous()
	inner := p.expression()
	p.consume(token.RIGHT_PAREN, "expected ')' after expression")
	return ast.GroupingExpr{Attrs: ast.Attrs{Tok: tok}, Inner: inner}
}

func list(p *Parser) Expr {
	tok := p.previous()
	if p.match(token.RIGHT_INDEX) {
		return ast.ListExpr{Attrs: ast.Attrs{Tok: tok}}
	}
	first := p.assignment()
	if p.match(token.SEMICOLON) {
		count := p.assignment()
		p.consume(token.RIGHT_INDEX, "expected ']' after list-repeat count")
		return ast.ListRepeatExpr{Attrs: ast.Attrs{Tok: tok}, Element: first, Count: count}
	}
	elems := []Expr{first}
	for p.match(token.COMMA) {
		if p.check(token.RIGHT_INDEX) {
			break
		}
		elems = append(elems, p.assignment())
	}
	p.consume(token.RIGHT_INDEX, "expected ']' after list elements")
	return ast.ListExpr{Attrs: ast.Attrs{Tok: tok}, Elements: elems}
}

func tuple(p *Parser) Expr {
	tok := p.previous()
	var elems []Expr
	if !p.check(token.RIGHT_BRACE) {
		for {
			elems = append(elems, p.assignment())
			if !p.match(token.COMMA) {
				break
			}
		}
	}
	p.consume(token.RIGHT_BRACE, "expected '}' after tuple elements")
	return ast.TupleExpr{Attrs: ast.Attrs{Tok: tok}, Elements: elems}
}

func unary(p *Parser) Expr {
	opTok := p.previous()
	right := p.parsePrecedence(precUnary)
	return ast.UnaryExpr{Attrs: ast.Attrs{Tok: opTok}, Op: opTok.Kind, Right: right}
}

func variable(p *Parser) Expr {
	tok := p.previous()
	if p.check(token.EQUAL) || p.check(token.PLUS_EQUAL) || p.check(token.MINUS_EQUAL) ||
		p.check(token.STAR_EQUAL) || p.check(token.SLASH_EQUAL) {
		opTok := p.advance()
		if opTok.Kind == token.EQUAL {
			p.featureGate(config.AssignmentExpr, tok, "assignment used as an expression")
		}
		val := p.assignment()
		target := ast.VariableExpr{Attrs: ast.Attrs{Tok: tok, IsLvalue: true}, Name: tok.Lexeme}
		return ast.AssignExpr{Attrs: ast.Attrs{Tok: opTok}, Target: target, Op: opTok.Kind, Value: val}
	}
	return ast.VariableExpr{Attrs: ast.Attrs{Tok: tok}, Name: tok.Lexeme}
}

func literal(p *Parser) Expr {
	tok := p.previous()
	switch tok.Kind {
	case token.INT_VALUE:
		n, err := strconv.ParseInt(strings.ReplaceAll(tok.Lexeme, "_", ""), 0, 32)
		if err != nil {
			p.errorAt(tok, "integer literal %s out of range", tok.Lexeme)
		}
		return ast.LiteralExpr{Attrs: ast.Attrs{Tok: tok, ResolvedType: ast.Primitive{Kind: ast.IntKind}}, Kind: ast.IntKind, IntVal: int32(n)}
	case token.FLOAT_VALUE:
		f, err := strconv.ParseFloat(strings.ReplaceAll(tok.Lexeme, "_", ""), 64)
		if err != nil {
			p.errorAt(tok, "float literal %s is malformed", tok.Lexeme)
		}
		return ast.LiteralExpr{Attrs: ast.Attrs{Tok: tok, ResolvedType: ast.Primitive{Kind: ast.FloatKind}}, Kind: ast.FloatKind, FloatVal: f}
	case token.STRING_VALUE:
		s := tok.Lexeme
		for p.check(token.STRING_VALUE) {
			s += p.advance().Lexeme
		}
		return ast.LiteralExpr{Attrs: ast.Attrs{Tok: tok, ResolvedType: ast.Primitive{Kind: ast.StringKind}}, Kind: ast.StringKind, StrVal: s}
	case token.TRUE:
		return ast.LiteralExpr{Attrs: ast.Attrs{Tok: tok, ResolvedType: ast.Primitive{Kind: ast.BoolKind}}, Kind: ast.BoolKind, BoolVal: true}
	case token.FALSE:
		return ast.LiteralExpr{Attrs: ast.Attrs{Tok: tok, ResolvedType: ast.Primitive{Kind: ast.BoolKind}}, Kind: ast.BoolKind, BoolVal: false}
	default: // token.NULL
		return ast.LiteralExpr{Attrs: ast.Attrs{Tok: tok, ResolvedType: ast.Primitive{Kind: ast.NullKind}}, Kind: ast.NullKind}
	}
}

func move(p *Parser) Expr {
	tok := p.previous()
	target := p.parsePrecedence(precUnary)
	return ast.MoveExpr{Attrs: ast.Attrs{Tok: tok}, Target: target}
}

func this_(p *Parser) Expr {
	tok := p.previous()
	if !p.inClass || !p.inFunction {
		p.errorAt(tok, "'this' may only be used inside a method body")
	}
	return ast.ThisExpr{Attrs: ast.Attrs{Tok: tok}}
}

func super_(p *Parser) Expr {
	tok := p.previous()
	if !p.inClass || !p.inFunction {
		p.errorAt(tok, "'super' may only be used inside a method body")
	}
	p.consume(token.DOT, "expected '.' after 'super'")
	name := p.consume(token.IDENTIFIER, "expected a method name after 'super.'")
	return ast.SuperExpr{Attrs: ast.Attrs{Tok: tok}, Method: name.Lexeme}
}

func typeofExpr(p *Parser) Expr {
	tok := p.previous()
	p.consume(token.LEFT_PAREN, "expected '(' after 'typeof'")
	inner := p.expression()
	p.consume(token.RIGHT_PAREN, "expected ')' after typeof's operand")
	return ast.TypeOfExpr{Attrs: ast.Attrs{Tok: tok}, Inner: inner}
}

func scopeName(p *Parser) Expr {
	tok := p.previous()
	name := p.consume(token.IDENTIFIER, "expected a name after '::'")
	return ast.ScopeAccessExpr{Attrs: ast.Attrs{Tok: tok}, Name: name.Lexeme}
}

// --- infix parslets ---

func binary(p *Parser, left Expr) Expr {
	opTok := p.previous()
	r := getRule(opTok.Kind)
	right := p.parsePrecedence(r.precedence + 1)
	if p.foldEnabled() {
		if folded, ok := foldBinary(opTok, left, right); ok {
			return folded
		}
	}
	return ast.BinaryExpr{Attrs: ast.Attrs{Tok: opTok}, Left: left, Op: opTok.Kind, Right: right}
}

func and_(p *Parser, left Expr) Expr {
	opTok := p.previous()
	right := p.parsePrecedence(precLogicAnd + 1)
	return ast.LogicalExpr{Attrs: ast.Attrs{Tok: opTok}, Op: token.AND_AND, Left: left, Right: right}
}

func or_(p *Parser, left Expr) Expr {
	opTok := p.previous()
	right := p.parsePrecedence(precLogicOr + 1)
	return ast.LogicalExpr{Attrs: ast.Attrs{Tok: opTok}, Op: token.OR_OR, Left: left, Right: right}
}

func ternary(p *Parser, cond Expr) Expr {
	qTok := p.previous()
	ok := p.featureGate(config.TernaryOperator, qTok, "the ternary operator")
	thenExpr := p.parsePrecedence(precAssignment)
	p.consume(token.COLON, "expected ':' in ternary expression")
	elseExpr := p.parsePrecedence(precTernary)
	if !ok {
		return thenExpr
	}
	if p.foldEnabled() {
		if folded, did := foldTernary(qTok, cond, thenExpr, elseExpr); did {
			return folded
		}
	}
	return ast.TernaryExpr{Attrs: ast.Attrs{Tok: qTok}, Cond: cond, Then: thenExpr, Else: elseExpr}
}

func comma(p *Parser, left Expr) Expr {
	tok := p.previous()
	ok := p.featureGate(config.CommaOperator, tok, "the comma operator")
	right := p.parsePrecedence(precComma + 1)
	if !ok {
		return left
	}
	if ce, isComma := left.(ast.CommaExpr); isComma {
		ce.Exprs = append(ce.Exprs, right)
		return ce
	}
	return ast.CommaExpr{Attrs: ast.Attrs{Tok: tok}, Exprs: []Expr{left, right}}
}

func call(p *Parser, callee Expr) Expr {
	tok := p.previous()
	var args []Expr
	if !p.check(token.RIGHT_PAREN) {
		for {
			args = append(args, p.assignment())
			if !p.match(token.COMMA) {
				break
			}
		}
	}
	p.consume(token.RIGHT_PAREN, "expected ')' after call arguments")
	return ast.CallExpr{Attrs: ast.Attrs{Tok: tok}, Callee: callee, Args: args}
}

func index(p *Parser, list Expr) Expr {
	tok := p.previous()
	idx := p.expression()
	p.consume(token.RIGHT_INDEX, "expected ']' after index expression")
	if p.check(token.EQUAL) || p.check(token.PLUS_EQUAL) || p.check(token.MINUS_EQUAL) ||
		p.check(token.STAR_EQUAL) || p.check(token.SLASH_EQUAL) {
		opTok := p.advance()
		val := p.assignment()
		return ast.ListAssignExpr{Attrs: ast.Attrs{Tok: tok}, List: list, Index: idx, Op: opTok.Kind, Value: val}
	}
	return ast.IndexExpr{Attrs: ast.Attrs{Tok: tok}, List: list, Index: idx}
}

// dot handles plain field access/assignment and the `x.0.1` form that
// splits a scanned float literal into two integer field accesses —
// the scanner has no way to know ahead of time that `0.1` after a dot
// is two tuple indices rather than one float.
func dot(p *Parser, obj Expr) Expr {
	tok := p.previous()
	if p.check(token.FLOAT_VALUE) {
		ft := p.advance()
		first, second, ok := splitFloatLexeme(ft.Lexeme)
		if !ok {
			p.errorAt(ft, "malformed tuple index %q", ft.Lexeme)
			return ast.ErrorExpr{Attrs: ast.Attrs{Tok: ft}}
		}
		inner := ast.GetExpr{Attrs: ast.Attrs{Tok: ft}, Object: obj, Name: first}
		return ast.GetExpr{Attrs: ast.Attrs{Tok: ft}, Object: inner, Name: second}
	}
	name := p.consume(token.IDENTIFIER, "expected a field name after '.'")
	if p.check(token.EQUAL) || p.check(token.PLUS_EQUAL) || p.check(token.MINUS_EQUAL) ||
		p.check(token.STAR_EQUAL) || p.check(token.SLASH_EQUAL) {
		p.advance()
		val := p.assignment()
		return ast.SetExpr{Attrs: ast.Attrs{Tok: tok}, Object: obj, Name: name.Lexeme, Value: val}
	}
	return ast.GetExpr{Attrs: ast.Attrs{Tok: tok}, Object: obj, Name: name.Lexeme}
}

func scopeAccess(p *Parser, left Expr) Expr {
	tok := p.previous()
	name := p.consume(token.IDENTIFIER, "expected a name after '::'")
	module := ""
	if v, ok := left.(ast.VariableExpr); ok {
		module = v.Name
	}
	return ast.ScopeAccessExpr{Attrs: ast.Attrs{Tok: tok}, Module: module, Name: name.Lexeme}
}

func rangeExpr(p *Parser, left Expr) Expr {
	tok := p.previous()
	inclusive := tok.Kind == token.DOT_DOT_EQUAL
	right := p.parsePrecedence(precRange + 1)
	return ast.RangeExpr{Attrs: ast.Attrs{Tok: tok}, Start: left, End: right, Inclusive: inclusive}
}

// splitFloatLexeme splits a scanned "N.M" lexeme back into its two
// integer parts for the `tuple.0.1` tuple-of-tuple access case.
func splitFloatLexeme(lexeme string) (string, string, bool) {
	parts := strings.SplitN(lexeme, ".", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}
