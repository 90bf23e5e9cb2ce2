// Package resolver is the type resolver: a single recursive-descent walk
// over a parsed module that assigns a resolved type to every expression,
// marks lvalues, and inserts INT_TO_FLOAT/FLOAT_TO_INT conversions at
// operator and assignment boundaries. The code generator assumes every
// reachable node has already been through here.
package resolver

import (
	"ember/internal/ast"
	"ember/internal/config"
	"ember/internal/diag"
	"ember/internal/token"
)

var (
	intType    = ast.Primitive{Kind: ast.IntKind}
	floatType  = ast.Primitive{Kind: ast.FloatKind}
	boolType   = ast.Primitive{Kind: ast.BoolKind}
	stringType = ast.Primitive{Kind: ast.StringKind}
	nullType   = ast.Primitive{Kind: ast.NullKind}
)

// scope is one lexical level of variable bindings; module-level globals
// sit at the root so function bodies can see them without a separate
// capture mechanism.
type scope struct {
	vars   map[string]binding
	parent *scope
}

type binding struct {
	typ      ast.Type
	isConst  bool
}

func newScope(parent *scope) *scope {
	return &scope{vars: make(map[string]binding), parent: parent}
}

func (s *scope) declare(name string, typ ast.Type, isConst bool) {
	s.vars[name] = binding{typ: typ, isConst: isConst}
}

func (s *scope) lookup(name string) (binding, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		if b, ok := cur.vars[name]; ok {
			return b, true
		}
	}
	return binding{}, false
}

// nativeSignature is the minimal shape the resolver needs for a native
// call: an arity and a return type (native argument types are not
// cross-checked beyond count; the native handlers check argument kinds
// at run time).
type nativeSignature struct {
	arity    int
	variadic bool
	ret      ast.Type
}

var natives = map[string]nativeSignature{
	"print":                {arity: 1, ret: nullType},
	"int":                  {arity: 1, ret: intType},
	"float":                {arity: 1, ret: floatType},
	"string":               {arity: 1, ret: stringType},
	"readline":             {arity: 0, ret: stringType},
	"size":                 {arity: 1, ret: intType},
	"fill_trivial":         {arity: 2, ret: nullType},
	"%resize_list_trivial": {arity: 2, ret: ast.List{}},
	"uuid":                 {arity: 0, ret: stringType},
}

// Resolver walks one module's statements and function bodies, resolving
// names against a chain of scopes and function/class tables built from
// that same module (no cross-module symbol resolution: an imported
// module's exports are reached only through ScopeAccessExpr, which is
// resolved structurally rather than through a shared symbol table).
type Resolver struct {
	logger *diag.Logger
	cfg    *config.Config
	module string

	functions map[string]*ast.FunctionStmt
	classes   map[string]*ast.ClassStmt

	global      *scope
	returnType  ast.Type
	inFunction  bool
}

// New constructs a Resolver for one module's pass.
func New(module string, logger *diag.Logger, cfg *config.Config) *Resolver {
	return &Resolver{
		logger:    logger,
		cfg:       cfg,
		module:    module,
		functions: make(map[string]*ast.FunctionStmt),
		classes:   make(map[string]*ast.ClassStmt),
		global:    newScope(nil),
	}
}

// Resolve type-checks every top-level statement and function body in mod,
// mutating its Statements/Functions/Classes slices in place with
// resolved attributes. It returns false if any error was logged.
func (r *Resolver) Resolve(mod *ast.Module) bool {
	for _, fn := range mod.Functions {
		r.functions[fn.Name] = fn
	}
	for _, cls := range mod.Classes {
		r.classes[cls.Name] = cls
	}
	for _, cls := range mod.Classes {
		for i := range cls.Fields {
			cls.Fields[i].TypeAnn = r.resolveType(cls.Fields[i].TypeAnn)
		}
	}

	for i, s := range mod.Statements {
		mod.Statements[i] = r.resolveStmt(s, r.global)
	}
	for _, fn := range mod.Functions {
		r.resolveFunction(fn)
	}
	for _, cls := range mod.Classes {
		if cls.Constructor != nil {
			r.resolveFunction(cls.Constructor)
		}
		if cls.Destructor != nil {
			r.resolveFunction(cls.Destructor)
		}
		for _, m := range cls.Methods {
			r.resolveFunction(m)
		}
	}
	return !r.logger.HadError()
}

func (r *Resolver) errorAt(t token.Token, format string, args ...interface{}) {
	r.logger.Error(diag.ResolverError, r.module, t.Pos, "", format, args...)
}

func (r *Resolver) warnAt(t token.Token, format string, args ...interface{}) {
	r.logger.Warning(diag.ResolverError, r.module, t.Pos, "", format, args...)
}

// resolveType fills in UserDefined.ClassRef by name once the class
// table is known; every other Type variant passes through unchanged.
func (r *Resolver) resolveType(t ast.Type) ast.Type {
	ud, ok := t.(ast.UserDefined)
	if !ok || ud.ClassRef != nil {
		return t
	}
	if cls, ok := r.classes[ud.Name]; ok {
		ud.ClassRef = cls
	}
	return ud
}

func (r *Resolver) resolveFunction(fn *ast.FunctionStmt) {
	prevReturn, prevIn := r.returnType, r.inFunction
	fn.ReturnType = r.resolveType(fn.ReturnType)
	r.returnType, r.inFunction = fn.ReturnType, true

	s := newScope(r.global)
	for i, p := range fn.Params {
		fn.Params[i].TypeAnn = r.resolveType(p.TypeAnn)
		p = fn.Params[i]
		if p.Tuple != nil {
			tup, ok := p.TypeAnn.(ast.Tuple)
			for i, name := range p.Tuple {
				var et ast.Type = nullType
				if ok && i < len(tup.Elements) {
					et = tup.Elements[i]
				}
				s.declare(name, et, false)
			}
			continue
		}
		s.declare(p.Name, p.TypeAnn, false)
	}
	if fn.Body != nil {
		r.resolveBlockInScope(fn.Body, s)
	}

	r.returnType, r.inFunction = prevReturn, prevIn
}

func (r *Resolver) resolveBlockInScope(b *ast.BlockStmt, s *scope) {
	for i, stmt := range b.Stmts {
		b.Stmts[i] = r.resolveStmt(stmt, s)
	}
}

// resolveStmt resolves one statement against sc, returning the
// (possibly rebuilt) statement to store back into its owning slice.
func (r *Resolver) resolveStmt(s ast.Stmt, sc *scope) ast.Stmt {
	switch st := s.(type) {
	case ast.ExpressionStmt:
		st.Expr = r.resolveExpr(st.Expr, sc)
		return st

	case ast.VarDeclStmt:
		var declared ast.Type = r.resolveType(st.TypeAnn)
		if st.Init != nil {
			st.Init = r.resolveExpr(st.Init, sc)
			initType := exprType(st.Init)
			if declared == nil {
				declared = initType
			} else {
				st.Init = r.coerceAssign(st.Tok, declared, st.Init)
			}
		}
		if declared == nil {
			declared = nullType
		}
		sc.declare(st.Name, declared, st.Kind == ast.VarKindConst)
		st.TypeAnn = declared
		return st

	case ast.VarTupleStmt:
		if st.Init != nil {
			st.Init = r.resolveExpr(st.Init, sc)
		}
		tup, ok := exprType(st.Init).(ast.Tuple)
		for i, name := range st.Names {
			var et ast.Type = nullType
			if ok && i < len(tup.Elements) {
				et = tup.Elements[i]
			}
			sc.declare(name, et, st.Kind == ast.VarKindConst)
		}
		return st

	case *ast.BlockStmt:
		r.resolveBlockInScope(st, newScope(sc))
		return st

	case ast.BlockStmt:
		inner := newScope(sc)
		for i, stmt := range st.Stmts {
			st.Stmts[i] = r.resolveStmt(stmt, inner)
		}
		return st

	case ast.IfStmt:
		st.Cond = r.resolveExpr(st.Cond, sc)
		st.Then = r.resolveStmt(st.Then, sc)
		if st.Else != nil {
			st.Else = r.resolveStmt(st.Else, sc)
		}
		return st

	case ast.WhileStmt:
		st.Cond = r.resolveExpr(st.Cond, sc)
		st.Body = r.resolveStmt(st.Body, sc)
		if st.Increment != nil {
			st.Increment = r.resolveExpr(st.Increment, sc)
		}
		return st

	case ast.ForStmt:
		inner := newScope(sc)
		if st.Init != nil {
			st.Init = r.resolveStmt(st.Init, inner)
		}
		if st.Cond != nil {
			st.Cond = r.resolveExpr(st.Cond, inner)
		}
		if st.Incr != nil {
			st.Incr = r.resolveExpr(st.Incr, inner)
		}
		st.Body = r.resolveStmt(st.Body, inner)
		return st

	case ast.SwitchStmt:
		st.Scrutinee = r.resolveExpr(st.Scrutinee, sc)
		for i := range st.Cases {
			st.Cases[i].Value = r.resolveExpr(st.Cases[i].Value, sc)
			st.Cases[i].Body = r.resolveStmt(st.Cases[i].Body, sc)
		}
		if st.Default != nil {
			st.Default = r.resolveStmt(st.Default, sc)
		}
		return st

	case ast.ReturnStmt:
		if st.Value != nil {
			st.Value = r.resolveExpr(st.Value, sc)
			if r.returnType != nil {
				st.Value = r.coerceAssign(st.Tok, r.returnType, st.Value)
			}
		}
		return st

	case ast.ImportStmt, ast.TypeStmt, ast.BreakStmt, ast.ContinueStmt, ast.ErrorStmt:
		return st

	default:
		return s
	}
}

// resolveExpr resolves e against sc and returns the node with its Attrs
// filled in (expression nodes are plain structs embedded by value, so a
// fresh value carrying the updated Attrs replaces the original).
func (r *Resolver) resolveExpr(e ast.Expr, sc *scope) ast.Expr {
	if e == nil {
		return nil
	}
	switch ex := e.(type) {
	case ast.LiteralExpr:
		switch ex.Kind {
		case ast.IntKind:
			ex.ResolvedType = intType
		case ast.FloatKind:
			ex.ResolvedType = floatType
		case ast.BoolKind:
			ex.ResolvedType = boolType
		case ast.StringKind:
			ex.ResolvedType = stringType
		default:
			ex.ResolvedType = nullType
		}
		return ex

	case ast.VariableExpr:
		b, ok := sc.lookup(ex.Name)
		if !ok {
			r.errorAt(ex.Tok, "undefined variable %q", ex.Name)
			ex.ResolvedType = nullType
			return ex
		}
		ex.ResolvedType = b.typ
		ex.IsLvalue = !b.isConst
		return ex

	case ast.AssignExpr:
		ex.Value = r.resolveExpr(ex.Value, sc)
		ex.Target = r.resolveExpr(ex.Target, sc)
		if !exprLvalue(ex.Target) {
			r.errorAt(ex.Tok, "invalid assignment target")
		}
		targetType := exprType(ex.Target)
		ex.Value = r.coerceAssign(ex.Tok, targetType, ex.Value)
		ex.ResolvedType = targetType
		return ex

	case ast.BinaryExpr:
		ex.Left = r.resolveExpr(ex.Left, sc)
		ex.Right = r.resolveExpr(ex.Right, sc)
		ex.ResolvedType = r.resolveBinary(ex.Tok, ex.Op, &ex.Left, &ex.Right)
		return ex

	case ast.UnaryExpr:
		ex.Right = r.resolveExpr(ex.Right, sc)
		ex.ResolvedType = exprType(ex.Right)
		return ex

	case ast.LogicalExpr:
		ex.Left = r.resolveExpr(ex.Left, sc)
		ex.Right = r.resolveExpr(ex.Right, sc)
		ex.ResolvedType = boolType
		return ex

	case ast.TernaryExpr:
		ex.Cond = r.resolveExpr(ex.Cond, sc)
		ex.Then = r.resolveExpr(ex.Then, sc)
		ex.Else = r.resolveExpr(ex.Else, sc)
		ex.ResolvedType = exprType(ex.Then)
		return ex

	case ast.CommaExpr:
		for i := range ex.Exprs {
			ex.Exprs[i] = r.resolveExpr(ex.Exprs[i], sc)
		}
		if n := len(ex.Exprs); n > 0 {
			ex.ResolvedType = exprType(ex.Exprs[n-1])
		}
		return ex

	case ast.CallExpr:
		return r.resolveCall(ex, sc)

	case ast.GetExpr:
		ex.Object = r.resolveExpr(ex.Object, sc)
		ex.ResolvedType = r.resolveMember(ex.Tok, ex.Object, ex.Name)
		ex.IsLvalue = true
		return ex

	case ast.SetExpr:
		ex.Object = r.resolveExpr(ex.Object, sc)
		ex.Value = r.resolveExpr(ex.Value, sc)
		fieldType := r.resolveMember(ex.Tok, ex.Object, ex.Name)
		ex.Value = r.coerceAssign(ex.Tok, fieldType, ex.Value)
		ex.ResolvedType = fieldType
		return ex

	case ast.IndexExpr:
		ex.List = r.resolveExpr(ex.List, sc)
		ex.Index = r.resolveExpr(ex.Index, sc)
		if lt, ok := exprType(ex.List).(ast.List); ok && lt.Element != nil {
			ex.ResolvedType = lt.Element
		} else {
			ex.ResolvedType = nullType
		}
		ex.IsLvalue = true
		return ex

	case ast.ListAssignExpr:
		ex.List = r.resolveExpr(ex.List, sc)
		ex.Index = r.resolveExpr(ex.Index, sc)
		ex.Value = r.resolveExpr(ex.Value, sc)
		var elemType ast.Type = nullType
		if lt, ok := exprType(ex.List).(ast.List); ok && lt.Element != nil {
			elemType = lt.Element
		}
		ex.Value = r.coerceAssign(ex.Tok, elemType, ex.Value)
		ex.ResolvedType = elemType
		return ex

	case ast.GroupingExpr:
		ex.Inner = r.resolveExpr(ex.Inner, sc)
		ex.ResolvedType = exprType(ex.Inner)
		return ex

	case ast.ListExpr:
		var elemType ast.Type
		for i := range ex.Elements {
			ex.Elements[i] = r.resolveExpr(ex.Elements[i], sc)
			if elemType == nil {
				elemType = exprType(ex.Elements[i])
			}
		}
		ex.ResolvedType = ast.List{Element: elemType}
		return ex

	case ast.ListRepeatExpr:
		ex.Element = r.resolveExpr(ex.Element, sc)
		ex.Count = r.resolveExpr(ex.Count, sc)
		ex.ResolvedType = ast.List{Element: exprType(ex.Element)}
		return ex

	case ast.TupleExpr:
		types := make([]ast.Type, len(ex.Elements))
		for i := range ex.Elements {
			ex.Elements[i] = r.resolveExpr(ex.Elements[i], sc)
			types[i] = exprType(ex.Elements[i])
		}
		ex.ResolvedType = ast.Tuple{Elements: types}
		return ex

	case ast.MoveExpr:
		ex.Target = r.resolveExpr(ex.Target, sc)
		if !exprLvalue(ex.Target) {
			r.errorAt(ex.Tok, "move target must be an lvalue")
		}
		ex.ResolvedType = exprType(ex.Target)
		return ex

	case ast.RangeExpr:
		ex.Start = r.resolveExpr(ex.Start, sc)
		ex.End = r.resolveExpr(ex.End, sc)
		ex.ResolvedType = ast.List{Element: intType}
		return ex

	case ast.ScopeAccessExpr:
		ex.ResolvedType = nullType
		return ex

	case ast.ThisExpr:
		ex.ResolvedType = nullType
		return ex

	case ast.SuperExpr:
		r.errorAt(ex.Tok, "method dispatch through super is not supported")
		ex.ResolvedType = nullType
		return ex

	case ast.TypeOfExpr:
		ex.Inner = r.resolveExpr(ex.Inner, sc)
		ex.ResolvedType = stringType
		return ex

	case ast.ErrorExpr:
		ex.ResolvedType = nullType
		return ex

	default:
		return e
	}
}

func (r *Resolver) resolveCall(ex ast.CallExpr, sc *scope) ast.Expr {
	for i := range ex.Args {
		ex.Args[i] = r.resolveExpr(ex.Args[i], sc)
	}

	name, isVar := calleeName(ex.Callee)
	if isVar {
		if sig, ok := natives[name]; ok {
			if !sig.variadic && len(ex.Args) != sig.arity {
				r.errorAt(ex.Tok, "%s() expects %d argument(s), got %d", name, sig.arity, len(ex.Args))
			}
			ex.ResolvedType = sig.ret
			return ex
		}
		if fn, ok := r.functions[name]; ok {
			if len(ex.Args) != len(fn.Params) {
				r.errorAt(ex.Tok, "%s() expects %d argument(s), got %d", name, len(fn.Params), len(ex.Args))
			}
			ex.ResolvedType = fn.ReturnType
			if ex.ResolvedType == nil {
				ex.ResolvedType = nullType
			}
			return ex
		}
	}
	if get, ok := ex.Callee.(ast.GetExpr); ok {
		obj := r.resolveExpr(get.Object, sc)
		if _, isClass := exprType(obj).(ast.UserDefined); isClass {
			r.errorAt(ex.Tok, "method calls are not supported")
		}
		ex.ResolvedType = nullType
		return ex
	}
	ex.Callee = r.resolveExpr(ex.Callee, sc)
	ex.ResolvedType = nullType
	return ex
}

func calleeName(e ast.Expr) (string, bool) {
	v, ok := e.(ast.VariableExpr)
	if !ok {
		return "", false
	}
	return v.Name, true
}

// resolveMember resolves a GetExpr/SetExpr's field access: tuples index
// numerically by field name (".0", ".1", ... set by the parser's
// float-literal-splitting special case), class instances look the
// field up in their declared field table. Classes never actually arise
// from any expression in ember (there is no construction expression),
// so this path exists for completeness of the grammar rather than any
// runtime-reachable class value.
func (r *Resolver) resolveMember(t token.Token, object ast.Expr, name string) ast.Type {
	switch ot := exprType(object).(type) {
	case ast.Tuple:
		idx, ok := tupleFieldIndex(name)
		if !ok || idx < 0 || idx >= len(ot.Elements) {
			r.errorAt(t, "tuple has no field %q", name)
			return nullType
		}
		return ot.Elements[idx]
	case ast.UserDefined:
		if ot.ClassRef == nil {
			return nullType
		}
		for _, f := range ot.ClassRef.Fields {
			if f.Name == name {
				return f.TypeAnn
			}
		}
		r.errorAt(t, "class %q has no field %q", ot.Name, name)
		return nullType
	default:
		r.errorAt(t, "type %s has no member %q", ot, name)
		return nullType
	}
}

func tupleFieldIndex(name string) (int, bool) {
	n := 0
	if len(name) == 0 {
		return 0, false
	}
	for _, c := range name {
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	return n, true
}

// resolveBinary type-checks a binary operator, inserting an
// INT_TO_FLOAT conversion on whichever side is narrower when the two
// operand types straddle int/float, gated by the implicit-float-int
// feature level exactly as the parser gates its own syntactic features.
func (r *Resolver) resolveBinary(t token.Token, op token.Kind, left, right *ast.Expr) ast.Type {
	lt, rt := exprType(*left), exprType(*right)
	lp, lok := lt.(ast.Primitive)
	rp, rok := rt.(ast.Primitive)

	switch op {
	case token.EQUAL_EQUAL, token.BANG_EQUAL, token.GREATER, token.GREATER_EQUAL, token.LESS, token.LESS_EQUAL:
		if lok && rok && lp.Kind != rp.Kind && (lp.Kind == ast.IntKind || lp.Kind == ast.FloatKind) && (rp.Kind == ast.IntKind || rp.Kind == ast.FloatKind) {
			r.unifyNumeric(t, left, right, &lp, &rp)
		}
		return boolType
	}

	if lok && rok && lp.Kind == ast.StringKind && rp.Kind == ast.StringKind {
		return stringType
	}
	if lok && rok && lp.Kind == ast.IntKind && rp.Kind == ast.IntKind {
		return intType
	}
	if lok && rok && (lp.Kind == ast.FloatKind || rp.Kind == ast.FloatKind) &&
		(lp.Kind == ast.IntKind || lp.Kind == ast.FloatKind) && (rp.Kind == ast.IntKind || rp.Kind == ast.FloatKind) {
		r.unifyNumeric(t, left, right, &lp, &rp)
		return floatType
	}
	return lt
}

func (r *Resolver) unifyNumeric(t token.Token, left, right *ast.Expr, lp, rp *ast.Primitive) {
	if lp.Kind == rp.Kind {
		return
	}
	level := r.cfg.Level(config.ImplicitFloatInt)
	if level == config.LevelError {
		r.errorAt(t, "implicit int/float conversion is disabled by feature flag %q", config.ImplicitFloatInt)
		return
	}
	if level == config.LevelWarn {
		r.warnAt(t, "implicit int/float conversion (feature flag %q)", config.ImplicitFloatInt)
	}
	if lp.Kind == ast.IntKind {
		setConversion(left, ast.IntToFloat)
	} else {
		setConversion(right, ast.IntToFloat)
	}
}

// coerceAssign inserts a conversion on value if its type doesn't match
// target but the two are numerically compatible, gated the same way as
// operator-boundary conversions.
func (r *Resolver) coerceAssign(t token.Token, target ast.Type, value ast.Expr) ast.Expr {
	tp, tok := target.(ast.Primitive)
	vp, vok := exprType(value).(ast.Primitive)
	if !tok || !vok || tp.Kind == vp.Kind {
		return value
	}
	if tp.Kind == ast.FloatKind && vp.Kind == ast.IntKind {
		level := r.cfg.Level(config.ImplicitFloatInt)
		if level == config.LevelError {
			r.errorAt(t, "implicit int-to-float conversion is disabled by feature flag %q", config.ImplicitFloatInt)
			return value
		}
		if level == config.LevelWarn {
			r.warnAt(t, "implicit int-to-float conversion (feature flag %q)", config.ImplicitFloatInt)
		}
		setConversion(&value, ast.IntToFloat)
	} else if tp.Kind == ast.IntKind && vp.Kind == ast.FloatKind {
		level := r.cfg.Level(config.ImplicitFloatInt)
		if level == config.LevelError {
			r.errorAt(t, "implicit float-to-int conversion is disabled by feature flag %q", config.ImplicitFloatInt)
			return value
		}
		if level == config.LevelWarn {
			r.warnAt(t, "implicit float-to-int conversion (feature flag %q)", config.ImplicitFloatInt)
		}
		setConversion(&value, ast.FloatToInt)
	}
	return value
}

// setConversion stamps a Conversion tag onto e's Attrs in place. Every
// Expr variant embeds Attrs by value, so this type-switches once to
// reach the concrete struct, mutates its Conversion field, and writes
// the updated value back through the pointer.
func setConversion(e *ast.Expr, conv ast.Conversion) {
	switch ex := (*e).(type) {
	case ast.LiteralExpr:
		ex.Conversion = conv
		*e = ex
	case ast.VariableExpr:
		ex.Conversion = conv
		*e = ex
	case ast.BinaryExpr:
		ex.Conversion = conv
		*e = ex
	case ast.UnaryExpr:
		ex.Conversion = conv
		*e = ex
	case ast.GroupingExpr:
		ex.Conversion = conv
		*e = ex
	case ast.CallExpr:
		ex.Conversion = conv
		*e = ex
	case ast.GetExpr:
		ex.Conversion = conv
		*e = ex
	case ast.IndexExpr:
		ex.Conversion = conv
		*e = ex
	case ast.TernaryExpr:
		ex.Conversion = conv
		*e = ex
	case ast.AssignExpr:
		ex.Conversion = conv
		*e = ex
	}
}

func exprType(e ast.Expr) ast.Type {
	if e == nil {
		return nullType
	}
	if a, ok := e.(interface{ Type() ast.Type }); ok {
		if t := a.Type(); t != nil {
			return t
		}
	}
	return nullType
}

func exprLvalue(e ast.Expr) bool {
	if a, ok := e.(interface{ Lvalue() bool }); ok {
		return a.Lvalue()
	}
	return false
}
