package parser

import (
	"ember/internal/ast"
	"ember/internal/config"
	"ember/internal/token"
)

// foldBinary evaluates opTok on left/right at parse time when both
// sides are literals of a foldable kind, producing a LiteralExpr in
// place of a BinaryExpr. It never folds across a string-to-number or
// null boundary — those stay BinaryExpr nodes so the resolver reports
// them as type errors in the usual way. Division/modulo by a literal
// zero is left unfolded so it still raises a runtime error instead of
// silently vanishing from the diagnostic trail.
func foldBinary(opTok token.Token, left, right Expr) (Expr, bool) {
	l, lok := left.(ast.LiteralExpr)
	r, rok := right.(ast.LiteralExpr)
	if !lok || !rok {
		return nil, false
	}

	switch {
	case l.Kind == ast.IntKind && r.Kind == ast.IntKind:
		return foldIntOp(opTok, l, r)
	case l.Kind == ast.FloatKind && r.Kind == ast.FloatKind:
		return foldFloatOp(opTok, l.FloatVal, r.FloatVal, opTok)
	case l.Kind == ast.FloatKind && r.Kind == ast.IntKind:
		return foldFloatOp(opTok, l.FloatVal, float64(r.IntVal), opTok)
	case l.Kind == ast.IntKind && r.Kind == ast.FloatKind:
		return foldFloatOp(opTok, float64(l.IntVal), r.FloatVal, opTok)
	case l.Kind == ast.StringKind && r.Kind == ast.StringKind && opTok.Kind == token.PLUS:
		return ast.LiteralExpr{Attrs: ast.Attrs{Tok: opTok, ResolvedType: ast.Primitive{Kind: ast.StringKind}}, Kind: ast.StringKind, StrVal: l.StrVal + r.StrVal}, true
	case l.Kind == ast.StringKind && r.Kind == ast.StringKind && (opTok.Kind == token.EQUAL_EQUAL || opTok.Kind == token.BANG_EQUAL):
		eq := l.StrVal == r.StrVal
		if opTok.Kind == token.BANG_EQUAL {
			eq = !eq
		}
		return boolLit(opTok, eq), true
	case l.Kind == ast.BoolKind && r.Kind == ast.BoolKind && (opTok.Kind == token.EQUAL_EQUAL || opTok.Kind == token.BANG_EQUAL):
		// Non-strict ordering extends to equality here too: two bools
		// compare equal only by identical value, same as any other kind.
		eq := l.BoolVal == r.BoolVal
		if opTok.Kind == token.BANG_EQUAL {
			eq = !eq
		}
		return boolLit(opTok, eq), true
	default:
		return nil, false
	}
}

func foldIntOp(opTok token.Token, l, r ast.LiteralExpr) (Expr, bool) {
	a, b := l.IntVal, r.IntVal
	switch opTok.Kind {
	case token.PLUS:
		return intLit(opTok, a+b), true
	case token.MINUS:
		return intLit(opTok, a-b), true
	case token.STAR:
		return intLit(opTok, a*b), true
	case token.SLASH:
		if b == 0 {
			return nil, false
		}
		return intLit(opTok, a/b), true
	case token.PERCENT:
		if b == 0 {
			return nil, false
		}
		return intLit(opTok, a%b), true
	case token.AMP:
		return intLit(opTok, a&b), true
	case token.PIPE:
		return intLit(opTok, a|b), true
	case token.CARET:
		return intLit(opTok, a^b), true
	case token.LSHIFT:
		if b < 0 {
			return nil, false
		}
		return intLit(opTok, a<<uint(b)), true
	case token.RSHIFT:
		if b < 0 {
			return nil, false
		}
		return intLit(opTok, a>>uint(b)), true
	case token.EQUAL_EQUAL:
		return boolLit(opTok, a == b), true
	case token.BANG_EQUAL:
		return boolLit(opTok, a != b), true
	case token.LESS:
		return boolLit(opTok, a < b), true
	case token.LESS_EQUAL:
		return boolLit(opTok, a <= b), true
	case token.GREATER:
		return boolLit(opTok, a > b), true
	case token.GREATER_EQUAL:
		return boolLit(opTok, a >= b), true
	default:
		return nil, false
	}
}

func foldFloatOp(kindTok token.Token, a, b float64, opTok token.Token) (Expr, bool) {
	switch opTok.Kind {
	case token.PLUS:
		return floatLit(opTok, a+b), true
	case token.MINUS:
		return floatLit(opTok, a-b), true
	case token.STAR:
		return floatLit(opTok, a*b), true
	case token.SLASH:
		if b == 0 {
			return nil, false
		}
		return floatLit(opTok, a/b), true
	case token.EQUAL_EQUAL:
		return boolLit(opTok, a == b), true
	case token.BANG_EQUAL:
		return boolLit(opTok, a != b), true
	case token.LESS:
		return boolLit(opTok, a < b), true
	case token.LESS_EQUAL:
		return boolLit(opTok, a <= b), true
	case token.GREATER:
		return boolLit(opTok, a > b), true
	case token.GREATER_EQUAL:
		return boolLit(opTok, a >= b), true
	default:
		return nil, false
	}
}

// foldTernary folds `cond ? then : else` when cond is a boolean
// literal, regardless of whether the branches themselves are literal.
func foldTernary(qTok token.Token, cond, thenExpr, elseExpr Expr) (Expr, bool) {
	c, ok := cond.(ast.LiteralExpr)
	if !ok || c.Kind != ast.BoolKind {
		return nil, false
	}
	if c.BoolVal {
		return thenExpr, true
	}
	return elseExpr, true
}

func intLit(tok token.Token, v int32) ast.LiteralExpr {
	return ast.LiteralExpr{Attrs: ast.Attrs{Tok: tok, ResolvedType: ast.Primitive{Kind: ast.IntKind}}, Kind: ast.IntKind, IntVal: v}
}

func floatLit(tok token.Token, v float64) ast.LiteralExpr {
	return ast.LiteralExpr{Attrs: ast.Attrs{Tok: tok, ResolvedType: ast.Primitive{Kind: ast.FloatKind}}, Kind: ast.FloatKind, FloatVal: v}
}

func boolLit(tok token.Token, v bool) ast.LiteralExpr {
	return ast.LiteralExpr{Attrs: ast.Attrs{Tok: tok, ResolvedType: ast.Primitive{Kind: ast.BoolKind}}, Kind: ast.BoolKind, BoolVal: v}
}

// implicitFloatIntGate returns the implicit-float-int feature's
// configured level in cfg. Nothing calls it: the resolver reads the
// level from its own config when it inserts a conversion.
func implicitFloatIntGate(cfg *config.Config) config.Level {
	return cfg.Level(config.ImplicitFloatInt)
}
