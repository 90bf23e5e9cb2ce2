package parser

import "ember/internal/token"

// precedence is the Pratt table's climbing level, low to high.
type precedence int

const (
	precNone precedence = iota
	precComma
	precAssignment
	precTernary
	precLogicOr
	precLogicAnd
	precBitOr
	precBitXor
	precBitAnd
	precEquality
	precOrdering
	precShift
	precRange
	precSum
	precProduct
	precUnary
	precCall
	precPrimary
)

type prefixFn func(p *Parser) Expr
type infixFn func(p *Parser, left Expr) Expr

type rule struct {
	prefix     prefixFn
	infix      infixFn
	precedence precedence
}

var rules map[token.Kind]rule

func init() {
	rules = map[token.Kind]rule{
		token.LEFT_PAREN:   {prefix: grouping, infix: call, precedence: precCall},
		token.LEFT_INDEX:   {prefix: list, infix: index, precedence: precCall},
		token.LEFT_BRACE:   {prefix: tuple},
		token.DOT:          {infix: dot, precedence: precCall},
		token.COLON_COLON:  {prefix: scopeName, infix: scopeAccess, precedence: precCall},
		token.MINUS:        {prefix: unary, infix: binary, precedence: precSum},
		token.PLUS:         {infix: binary, precedence: precSum},
		token.SLASH:        {infix: binary, precedence: precProduct},
		token.STAR:         {infix: binary, precedence: precProduct},
		token.PERCENT:      {infix: binary, precedence: precProduct},
		token.BANG:         {prefix: unary},
		token.TILDE:        {prefix: unary},
		token.AMP:          {infix: binary, precedence: precBitAnd},
		token.PIPE:         {infix: binary, precedence: precBitOr},
		token.CARET:        {infix: binary, precedence: precBitXor},
		token.LSHIFT:       {infix: binary, precedence: precShift},
		token.RSHIFT:       {infix: binary, precedence: precShift},
		token.DOT_DOT:      {infix: rangeExpr, precedence: precRange},
		token.DOT_DOT_EQUAL: {infix: rangeExpr, precedence: precRange},
		token.BANG_EQUAL:    {infix: binary, precedence: precEquality},
		token.EQUAL_EQUAL:   {infix: binary, precedence: precEquality},
		token.LESS:          {infix: binary, precedence: precOrdering},
		token.LESS_EQUAL:    {infix: binary, precedence: precOrdering},
		token.GREATER:       {infix: binary, precedence: precOrdering},
		token.GREATER_EQUAL: {infix: binary, precedence: precOrdering},
		token.AND_AND:       {infix: and_, precedence: precLogicAnd},
		token.OR_OR:         {infix: or_, precedence: precLogicOr},
		token.QUESTION:      {infix: ternary, precedence: precTernary},
		token.COMMA:         {infix: comma, precedence: precComma},
		token.IDENTIFIER:    {prefix: variable},
		token.INT_VALUE:     {prefix: literal},
		token.FLOAT_VALUE:   {prefix: literal},
		token.STRING_VALUE:  {prefix: literal},
		token.TRUE:          {prefix: literal},
		token.FALSE:         {prefix: literal},
		token.NULL:          {prefix: literal},
		token.MOVE:          {prefix: move},
		token.THIS:          {prefix: this_},
		token.SUPER:         {prefix: super_},
		token.TYPEOF:        {prefix: typeofExpr},
	}
}

func getRule(k token.Kind) rule { return rules[k] }
