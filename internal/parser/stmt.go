package parser

import (
	"ember/internal/ast"
	"ember/internal/config"
	"ember/internal/token"
)

// declaration parses one top-level-or-block declaration, recovering to
// the next statement boundary if a syntax error panics a
// parseException partway through.
func (p *Parser) declaration() (result Stmt) {
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(parseException); ok {
				p.synchronize()
				result = ast.ErrorStmt{}
				return
			}
			panic(r)
		}
	}()

	switch {
	case p.match(token.FN):
		return p.functionDeclaration()
	case p.match(token.CLASS):
		return p.classDeclaration()
	case p.check(token.VAR) || p.check(token.CONST) || p.check(token.REF):
		kindTok := p.advance()
		return p.varOrTupleDeclaration(kindTok)
	case p.match(token.IMPORT):
		return p.importStatement()
	case p.match(token.TYPE):
		return p.typeDeclaration()
	default:
		return p.statement()
	}
}

func varKindFor(k token.Kind) ast.VarKind {
	switch k {
	case token.CONST:
		return ast.VarKindConst
	case token.REF:
		return ast.VarKindRef
	default:
		return ast.VarKindVar
	}
}

// consumeStatementEnd requires the statement to end at a ';', an
// implicit newline, or a closing brace/EOF that the caller's block
// loop will itself consume.
func (p *Parser) consumeStatementEnd() {
	if p.match(token.SEMICOLON, token.END_OF_LINE) {
		return
	}
	if p.check(token.RIGHT_BRACE) || p.check(token.END_OF_FILE) {
		return
	}
	p.errorAt(p.peek(), "expected end of statement, found %s", p.peek())
	panic(parseException{})
}

func (p *Parser) identTuple() []string {
	var names []string
	for {
		n := p.consume(token.IDENTIFIER, "expected an identifier in a tuple pattern")
		names = append(names, n.Lexeme)
		if !p.match(token.COMMA) {
			break
		}
	}
	p.consume(token.RIGHT_BRACE, "expected '}' after tuple pattern")
	return names
}

func (p *Parser) varOrTupleDeclaration(kindTok token.Token) Stmt {
	kind := varKindFor(kindTok.Kind)
	if p.match(token.LEFT_BRACE) {
		names := p.identTuple()
		p.consume(token.EQUAL, "expected '=' after tuple pattern")
		init := p.assignment()
		p.consumeStatementEnd()
		return ast.VarTupleStmt{Kind: kind, Names: names, Init: init, Tok: kindTok}
	}
	name := p.consume(token.IDENTIFIER, "expected a variable name")
	var typeAnn ast.Type
	if p.match(token.COLON) {
		typeAnn = p.parseType()
	}
	p.consume(token.EQUAL, "expected '=' in variable declaration")
	init := p.assignment()
	p.consumeStatementEnd()
	return ast.VarDeclStmt{Kind: kind, Name: name.Lexeme, TypeAnn: typeAnn, Init: init, Tok: name}
}

// variableDeclarationNoTerminator is used by for-loop initializers,
// where the loop header's own ';' ends the declaration rather than the
// usual newline/semicolon/brace set.
func (p *Parser) variableDeclarationNoTerminator(kindTok token.Token) Stmt {
	kind := varKindFor(kindTok.Kind)
	name := p.consume(token.IDENTIFIER, "expected a variable name")
	var typeAnn ast.Type
	if p.match(token.COLON) {
		typeAnn = p.parseType()
	}
	p.consume(token.EQUAL, "expected '=' in variable declaration")
	init := p.assignment()
	return ast.VarDeclStmt{Kind: kind, Name: name.Lexeme, TypeAnn: typeAnn, Init: init, Tok: name}
}

func (p *Parser) importStatement() Stmt {
	tok := p.previous()
	path := p.consume(token.STRING_VALUE, "expected a module path string after 'import'")
	p.consumeStatementEnd()
	return ast.ImportStmt{Path: path.Lexeme, Tok: tok}
}

func (p *Parser) typeDeclaration() Stmt {
	name := p.consume(token.IDENTIFIER, "expected a type name")
	p.consume(token.EQUAL, "expected '=' in type declaration")
	aliased := p.parseType()
	p.consumeStatementEnd()
	return ast.TypeStmt{Name: name.Lexeme, Aliased: aliased}
}

// parseType parses a type annotation: an optional const/ref qualifier
// run, then a primitive, a named (class) type, a list, a tuple, or a
// typeof(expr) type.
func (p *Parser) parseType() ast.Type {
	isConst, isRef := false, false
	for {
		if p.match(token.CONST) {
			isConst = true
			continue
		}
		if p.match(token.REF) {
			isRef = true
			continue
		}
		break
	}
	switch {
	case p.match(token.INT_TYPE):
		return ast.Primitive{Kind: ast.IntKind, IsConst: isConst, IsRef: isRef}
	case p.match(token.FLOAT_TYPE):
		return ast.Primitive{Kind: ast.FloatKind, IsConst: isConst, IsRef: isRef}
	case p.match(token.BOOL_TYPE):
		return ast.Primitive{Kind: ast.BoolKind, IsConst: isConst, IsRef: isRef}
	case p.match(token.STRING_TYPE):
		return ast.Primitive{Kind: ast.StringKind, IsConst: isConst, IsRef: isRef}
	case p.match(token.NULL):
		return ast.Primitive{Kind: ast.NullKind, IsConst: isConst, IsRef: isRef}
	case p.match(token.LEFT_INDEX):
		elem := p.parseType()
		p.consume(token.RIGHT_INDEX, "expected ']' after list element type")
		return ast.List{Element: elem}
	case p.match(token.LEFT_BRACE):
		var elems []ast.Type
		if !p.check(token.RIGHT_BRACE) {
			for {
				elems = append(elems, p.parseType())
				if !p.match(token.COMMA) {
					break
				}
			}
		}
		p.consume(token.RIGHT_BRACE, "expected '}' after tuple type")
		return ast.Tuple{Elements: elems}
	case p.match(token.TYPEOF):
		p.consume(token.LEFT_PAREN, "expected '(' after 'typeof'")
		e := p.assignment()
		p.consume(token.RIGHT_PAREN, "expected ')' after typeof's operand")
		return ast.TypeOf{Expr: e}
	case p.check(token.IDENTIFIER):
		name := p.advance()
		return ast.UserDefined{Name: name.Lexeme}
	default:
		p.errorAt(p.peek(), "expected a type, found %s", p.peek())
		panic(parseException{})
	}
}

func (p *Parser) parseParam() ast.Param {
	if p.match(token.LEFT_BRACE) {
		names := p.identTuple()
		p.consume(token.COLON, "expected ':' after destructured parameter pattern")
		t := p.parseType()
		return ast.Param{Tuple: names, TypeAnn: t}
	}
	name := p.consume(token.IDENTIFIER, "expected a parameter name")
	p.consume(token.COLON, "expected ':' after parameter name")
	t := p.parseType()
	return ast.Param{Name: name.Lexeme, TypeAnn: t}
}

func (p *Parser) functionDeclaration() *ast.FunctionStmt {
	name := p.consume(token.IDENTIFIER, "expected a function name")
	fn := p.methodBodyFrom(name)
	if p.funcNames[fn.Name] {
		p.errorAt(name, "function %q is already declared in this module", fn.Name)
	}
	p.funcNames[fn.Name] = true
	fn.Index = p.funcIndex
	p.funcIndex++
	return fn
}

// methodBodyFrom parses the "(params) -> type { body }" tail shared by
// top-level functions and class methods, given the name token already
// consumed.
func (p *Parser) methodBodyFrom(name token.Token) *ast.FunctionStmt {
	p.consume(token.LEFT_PAREN, "expected '(' after function name")
	var params []ast.Param
	if !p.check(token.RIGHT_PAREN) {
		for {
			params = append(params, p.parseParam())
			if !p.match(token.COMMA) {
				break
			}
		}
	}
	p.consume(token.RIGHT_PAREN, "expected ')' after parameter list")

	var retType ast.Type = ast.Primitive{Kind: ast.NullKind}
	if p.match(token.ARROW) {
		retType = p.parseType()
	}

	wasInFunction := p.inFunction
	p.inFunction = true
	body := p.blockStatement()
	p.inFunction = wasInFunction

	return &ast.FunctionStmt{Name: name.Lexeme, Params: params, ReturnType: retType, Body: body, Tok: name}
}

func (p *Parser) blockStatement() *ast.BlockStmt {
	p.consume(token.LEFT_BRACE, "expected '{' to begin a block")
	p.skipEOLs()
	var stmts []Stmt
	for !p.check(token.RIGHT_BRACE) && !p.isAtEnd() {
		stmts = append(stmts, p.declaration())
		p.skipEOLs()
	}
	p.consume(token.RIGHT_BRACE, "expected '}' to close a block")
	return &ast.BlockStmt{Stmts: stmts}
}

func (p *Parser) classDeclaration() *ast.ClassStmt {
	name := p.consume(token.IDENTIFIER, "expected a class name")
	if p.classNames[name.Lexeme] {
		p.errorAt(name, "class %q is already declared in this module", name.Lexeme)
	}
	p.classNames[name.Lexeme] = true

	cls := &ast.ClassStmt{Name: name.Lexeme}
	wasInClass := p.inClass
	p.inClass = true

	p.consume(token.LEFT_BRACE, "expected '{' to begin class body")
	p.skipEOLs()
	for !p.check(token.RIGHT_BRACE) && !p.isAtEnd() {
		public := true
		if p.match(token.PRIVATE) || p.match(token.PROTECTED) {
			public = false
		} else {
			p.match(token.PUBLIC)
		}

		switch {
		case p.match(token.TILDE):
			dtorName := p.consume(token.IDENTIFIER, "expected destructor name after '~'")
			if dtorName.Lexeme != cls.Name {
				p.errorAt(dtorName, "destructor name must match class name %q", cls.Name)
			}
			p.consume(token.LEFT_PAREN, "expected '(' after destructor name")
			p.consume(token.RIGHT_PAREN, "a destructor takes no parameters")
			wasInFunction := p.inFunction
			p.inFunction = true
			body := p.blockStatement()
			p.inFunction = wasInFunction
			cls.Destructor = &ast.FunctionStmt{Name: "~" + dtorName.Lexeme, ReturnType: ast.Primitive{Kind: ast.NullKind}, Body: body, Tok: dtorName}
		case p.match(token.FN):
			methodName := p.consume(token.IDENTIFIER, "expected a method name")
			m := p.methodBodyFrom(methodName)
			if methodName.Lexeme == cls.Name {
				cls.Constructor = m
			} else {
				cls.Methods = append(cls.Methods, m)
			}
		default:
			fieldName := p.consume(token.IDENTIFIER, "expected a field name")
			p.consume(token.COLON, "expected ':' after field name")
			t := p.parseType()
			p.consumeStatementEnd()
			cls.Fields = append(cls.Fields, ast.FieldDecl{Name: fieldName.Lexeme, TypeAnn: t, Public: public})
		}
		p.skipEOLs()
	}
	p.consume(token.RIGHT_BRACE, "expected '}' to close class body")
	p.inClass = wasInClass
	return cls
}

func (p *Parser) statement() Stmt {
	switch {
	case p.check(token.LEFT_BRACE):
		return p.blockStatement()
	case p.match(token.IF):
		return p.ifStatement()
	case p.match(token.WHILE):
		return p.whileStatement()
	case p.match(token.FOR):
		return p.forStatement()
	case p.match(token.SWITCH):
		return p.switchStatement()
	case p.match(token.BREAK):
		t := p.previous()
		if !p.inLoop && !p.inSwitch {
			p.errorAt(t, "'break' used outside a loop or switch")
		}
		p.consumeStatementEnd()
		return ast.BreakStmt{Tok: t}
	case p.match(token.CONTINUE):
		t := p.previous()
		if !p.inLoop {
			p.errorAt(t, "'continue' used outside a loop")
		}
		p.consumeStatementEnd()
		return ast.ContinueStmt{Tok: t}
	case p.match(token.RETURN):
		t := p.previous()
		if !p.inFunction {
			p.errorAt(t, "'return' used outside a function")
		}
		var val Expr
		if !p.check(token.END_OF_LINE) && !p.check(token.SEMICOLON) && !p.check(token.RIGHT_BRACE) && !p.check(token.END_OF_FILE) {
			val = p.expression()
		}
		p.consumeStatementEnd()
		return ast.ReturnStmt{Value: val, Tok: t}
	default:
		e := p.expression()
		p.consumeStatementEnd()
		return ast.ExpressionStmt{Expr: e}
	}
}

func (p *Parser) ifStatement() Stmt {
	p.consume(token.LEFT_PAREN, "expected '(' after 'if'")
	cond := p.expression()
	p.consume(token.RIGHT_PAREN, "expected ')' after if-condition")
	thenBranch := p.statement()

	var elseBranch Stmt
	save := p.cur
	p.skipEOLs()
	if p.match(token.ELSE) {
		elseBranch = p.statement()
	} else {
		p.cur = save
	}
	return ast.IfStmt{Cond: cond, Then: thenBranch, Else: elseBranch}
}

func (p *Parser) whileStatement() Stmt {
	p.consume(token.LEFT_PAREN, "expected '(' after 'while'")
	cond := p.expression()
	p.consume(token.RIGHT_PAREN, "expected ')' after while-condition")
	wasInLoop := p.inLoop
	p.inLoop = true
	body := p.statement()
	p.inLoop = wasInLoop
	return ast.WhileStmt{Cond: cond, Body: body}
}

// forStatement parses the C-style three-clause for loop. Its header is
// desugared into `{ init; while (cond) { body; incr } }` unless the
// c-style-for feature is configured at "error", in which case the raw
// ForStmt survives for the compiler to lower the same way.
func (p *Parser) forStatement() Stmt {
	tok := p.previous()
	p.consume(token.LEFT_PAREN, "expected '(' after 'for'")

	var initStmt Stmt
	if !p.check(token.SEMICOLON) {
		if p.check(token.VAR) || p.check(token.CONST) || p.check(token.REF) {
			kindTok := p.advance()
			initStmt = p.variableDeclarationNoTerminator(kindTok)
		} else {
			initStmt = ast.ExpressionStmt{Expr: p.expression()}
		}
	}
	p.consume(token.SEMICOLON, "expected ';' after for-loop initializer")

	var cond Expr
	if !p.check(token.SEMICOLON) {
		cond = p.expression()
	}
	p.consume(token.SEMICOLON, "expected ';' after for-loop condition")

	var incr Expr
	if !p.check(token.RIGHT_PAREN) {
		incr = p.expression()
	}
	p.consume(token.RIGHT_PAREN, "expected ')' after for-loop clauses")

	wasInLoop := p.inLoop
	p.inLoop = true
	body := p.statement()
	p.inLoop = wasInLoop

	level := p.cfg.Level(config.CStyleFor)
	if level == config.LevelWarn {
		p.warnAt(tok, "c-style for loops are discouraged (feature flag %q)", config.CStyleFor)
	}
	if level == config.LevelError {
		return ast.ForStmt{Init: initStmt, Cond: cond, Incr: incr, Body: body}
	}

	var stmts []Stmt
	if initStmt != nil {
		stmts = append(stmts, initStmt)
	}
	stmts = append(stmts, ast.WhileStmt{Cond: cond, Body: body, Increment: incr})
	return ast.BlockStmt{Stmts: stmts}
}

func (p *Parser) switchStatement() Stmt {
	p.consume(token.LEFT_PAREN, "expected '(' after 'switch'")
	scrutinee := p.expression()
	p.consume(token.RIGHT_PAREN, "expected ')' after switch scrutinee")
	p.consume(token.LEFT_BRACE, "expected '{' to begin switch body")
	p.skipEOLs()

	wasInSwitch := p.inSwitch
	p.inSwitch = true
	var cases []ast.CaseClause
	var def Stmt
	for !p.check(token.RIGHT_BRACE) && !p.isAtEnd() {
		switch {
		case p.match(token.CASE):
			val := p.expression()
			p.consume(token.ARROW, "expected '->' after case value")
			cases = append(cases, ast.CaseClause{Value: val, Body: p.statement()})
		case p.match(token.DEFAULT):
			p.consume(token.ARROW, "expected '->' after 'default'")
			def = p.statement()
		default:
			p.errorAt(p.peek(), "expected 'case' or 'default' in switch body, found %s", p.peek())
			panic(parseException{})
		}
		p.skipEOLs()
	}
	p.consume(token.RIGHT_BRACE, "expected '}' to close switch body")
	p.inSwitch = wasInSwitch
	return ast.SwitchStmt{Scrutinee: scrutinee, Cases: cases, Default: def}
}
