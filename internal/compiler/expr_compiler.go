package compiler

import (
	"ember/internal/ast"
	"ember/internal/bytecode"
	"ember/internal/token"
	"ember/internal/value"
)

// compileExpr is the canonical dispatch entry point: it lowers e to
// bytecode leaving exactly one value on the stack (or, for a TupleExpr,
// one value per element), then applies whatever numeric conversion the
// resolver stamped on it.
func (fc *funcCtx) compileExpr(e ast.Expr) {
	fc.markLine(e.Token())
	switch ex := e.(type) {
	case ast.LiteralExpr:
		fc.compileLiteral(ex)
	case ast.VariableExpr:
		fc.compileVariableRead(ex.Name)
	case ast.AssignExpr:
		fc.compileAssign(ex)
	case ast.BinaryExpr:
		fc.compileBinary(ex)
	case ast.UnaryExpr:
		fc.compileUnary(ex)
	case ast.LogicalExpr:
		fc.compileLogical(ex)
	case ast.TernaryExpr:
		fc.compileTernary(ex)
	case ast.CommaExpr:
		for i, sub := range ex.Exprs {
			if i > 0 {
				fc.emit(discardOp(exprType(ex.Exprs[i-1])), 0)
			}
			fc.compileExpr(sub)
		}
	case ast.CallExpr:
		fc.compileCall(ex)
	case ast.GetExpr:
		fc.compileGet(ex)
	case ast.SetExpr:
		fc.compileSet(ex)
	case ast.IndexExpr:
		fc.compileIndexRead(ex)
	case ast.ListAssignExpr:
		fc.compileListAssign(ex)
	case ast.GroupingExpr:
		fc.compileExpr(ex.Inner)
		return // Inner already carries (and applied) its own conversion
	case ast.ListExpr:
		for _, el := range ex.Elements {
			fc.compileOwned(el)
		}
		fc.emit(bytecode.MAKE_LIST, uint32(len(ex.Elements)))
	case ast.ListRepeatExpr:
		fc.compileListRepeat(ex)
	case ast.TupleExpr:
		for _, el := range ex.Elements {
			fc.compileOwned(el)
		}
	case ast.MoveExpr:
		fc.compileMove(ex.Target)
	case ast.RangeExpr:
		fc.compileRange(ex)
	case ast.ScopeAccessExpr:
		fc.compileScopeAccess(ex)
	case ast.ThisExpr:
		fc.compileVariableRead("this")
	case ast.SuperExpr:
		fc.emit(bytecode.PUSH_NULL, 0) // unreachable: resolver rejects method dispatch
	case ast.TypeOfExpr:
		fc.compileTypeOf(ex)
	case ast.ErrorExpr:
		fc.emit(bytecode.PUSH_NULL, 0)
	default:
		fc.errorAtPos(token.Position{Line: fc.curLine}, "unsupported expression %T", e)
		return
	}
	fc.applyConversion(convOf(e))
}

func (fc *funcCtx) applyConversion(conv ast.Conversion) {
	switch conv {
	case ast.IntToFloat:
		fc.emit(bytecode.INT_TO_FLOAT, 0)
	case ast.FloatToInt:
		fc.emit(bytecode.FLOAT_TO_INT, 0)
	}
}

// compileOwned compiles e the same way compileExpr does, but inserts a
// COPY_LIST (the VM's generic string/list clone) whenever e reads
// something that already has an owner elsewhere (a variable, an index,
// a field), the value consumers that take ownership (var-decl
// initializers, assignment right-hand sides, call arguments, return
// values, CONCATENATE operands) all need an independently destroyable
// copy rather than a second claim on the same cache entry or backing
// array.
func (fc *funcCtx) compileOwned(e ast.Expr) {
	fc.compileExpr(e)
	t := exprType(e)
	if aliasesExisting(e) && isStringOrList(t) {
		fc.emit(bytecode.COPY_LIST, 0)
	}
}

// aliasesExisting reports whether compiling e produces a value sharing
// identity with something already live, as opposed to a freshly
// constructed value nothing else currently owns.
func aliasesExisting(e ast.Expr) bool {
	switch ex := e.(type) {
	case ast.GroupingExpr:
		return aliasesExisting(ex.Inner)
	case ast.VariableExpr, ast.IndexExpr, ast.GetExpr, ast.ScopeAccessExpr, ast.ThisExpr:
		return true
	default:
		return false
	}
}

func isStringOrList(t ast.Type) bool {
	switch tt := t.(type) {
	case ast.Primitive:
		return tt.Kind == ast.StringKind
	case ast.List:
		return true
	}
	return false
}

func (fc *funcCtx) compileLiteral(ex ast.LiteralExpr) {
	switch ex.Kind {
	case ast.IntKind:
		idx := fc.chunk.AddConstant(value.Int(ex.IntVal))
		fc.emit(bytecode.CONSTANT, uint32(idx))
	case ast.FloatKind:
		idx := fc.chunk.AddConstant(value.Float(ex.FloatVal))
		fc.emit(bytecode.CONSTANT, uint32(idx))
	case ast.BoolKind:
		if ex.BoolVal {
			fc.emit(bytecode.PUSH_TRUE, 0)
		} else {
			fc.emit(bytecode.PUSH_FALSE, 0)
		}
	case ast.StringKind:
		idx := fc.chunk.AddConstant(value.Str(ex.StrVal))
		fc.emit(bytecode.CONSTANT_STRING, uint32(idx))
	default:
		fc.emit(bytecode.PUSH_NULL, 0)
	}
}

// compileVariableRead pushes a plain (non-owning) read of name: a list-
// typed variable gets the dedicated *_LIST form so the result is a
// LIST_REF rather than a second claim on the backing array, matching
// the VM's own ACCESS_*_LIST contract.
func (fc *funcCtx) compileVariableRead(name string) {
	b, ok, isGlobal := fc.lookup(name)
	if !ok {
		fc.emit(bytecode.PUSH_NULL, 0)
		return
	}
	for i, slot := range b.slots {
		fc.emitSlotRead(slot, isGlobal, elementTypeAt(b, i))
	}
}

// compileAssign compiles `target = value` (or a compound form): the
// value is pushed first (owned, since ASSIGN_* leaves the prior owner
// released and takes over this cell), then the matching ASSIGN opcode,
// which conveniently leaves the assigned value as the expression's own
// result already on the stack top.
func (fc *funcCtx) compileAssign(ex ast.AssignExpr) {
	if ex.Op != token.EQUAL {
		fc.compileCompoundAssign(ex)
		return
	}
	switch target := ex.Target.(type) {
	case ast.VariableExpr:
		fc.compileOwned(ex.Value)
		fc.emitAssignVar(target.Name)
	case ast.IndexExpr:
		fc.compileExpr(target.List)
		fc.compileExpr(target.Index)
		fc.compileOwned(ex.Value)
		fc.emit(bytecode.ASSIGN_LIST, 0)
	case ast.GetExpr:
		// class instances have no runtime representation; field sets
		// on them are unreachable once compiled, see SetExpr.
		fc.compileOwned(ex.Value)
	default:
		fc.compileOwned(ex.Value)
	}
}

// emitAssignVar stores the pushed value(s) into name's slot(s). A plain
// binding has one slot and ASSIGN_LOCAL/ASSIGN_GLOBAL's peek-only store
// leaves that single value as the assignment expression's result, same
// as any other binary op. A tuple binding has one pushed value per slot
// (bottom slot pushed first, so the last slot's value sits on top);
// those are consumed top-down and popped after storing, except the
// final (bottom, first-declared) slot, whose value is left on the stack
// so the whole assignment still nets exactly one result value.
func (fc *funcCtx) emitAssignVar(name string) {
	b, ok, isGlobal := fc.lookup(name)
	if !ok {
		return
	}
	for i := len(b.slots) - 1; i >= 0; i-- {
		t := elementTypeAt(b, i)
		fc.emitSlotAssign(b.slots[i], isGlobal, t)
		if i > 0 {
			fc.emit(discardOp(t), 0)
		}
	}
}

// compileCompoundAssign lowers `x += v` to `x = x + v` at the bytecode
// level: there is no dedicated compound-assign opcode family, so the
// read, the operator, and the write are emitted as three ordinary
// steps.
func (fc *funcCtx) compileCompoundAssign(ex ast.AssignExpr) {
	op := compoundBaseOp(ex.Op)
	switch target := ex.Target.(type) {
	case ast.VariableExpr:
		fc.compileVariableRead(target.Name)
		fc.compileOwned(ex.Value)
		fc.emitArithOp(op, exprType(ex.Target))
		fc.emitAssignVar(target.Name)
	case ast.IndexExpr:
		fc.compileExpr(target.List)
		fc.compileExpr(target.Index)
		fc.emit(bytecode.CHECK_LIST_INDEX, 0)
		fc.compileExpr(target.List)
		fc.compileExpr(target.Index)
		fc.emit(bytecode.INDEX_LIST, 0)
		fc.compileOwned(ex.Value)
		fc.emitArithOp(op, exprType(ex.Target))
		fc.emit(bytecode.ASSIGN_LIST, 0)
	default:
		fc.compileOwned(ex.Value)
	}
}

func compoundBaseOp(op token.Kind) token.Kind {
	switch op {
	case token.PLUS_EQUAL:
		return token.PLUS
	case token.MINUS_EQUAL:
		return token.MINUS
	case token.STAR_EQUAL:
		return token.STAR
	case token.SLASH_EQUAL:
		return token.SLASH
	default:
		return token.PLUS
	}
}

func (fc *funcCtx) compileBinary(ex ast.BinaryExpr) {
	lt, rt := exprType(ex.Left), exprType(ex.Right)
	switch ex.Op {
	case token.EQUAL_EQUAL, token.BANG_EQUAL:
		fc.compileEquality(ex, lt, rt)
		return
	case token.GREATER, token.GREATER_EQUAL, token.LESS, token.LESS_EQUAL:
		fc.compileOrdering(ex)
		return
	}

	if ex.Op == token.PLUS && isStringKind(lt) && isStringKind(rt) {
		fc.compileOwned(ex.Left)
		fc.compileOwned(ex.Right)
		fc.emit(bytecode.CONCATENATE, 0)
		return
	}

	fc.compileExpr(ex.Left)
	fc.compileExpr(ex.Right)
	fc.emitArithOp(ex.Op, resultKind(lt, rt))
}

func isStringKind(t ast.Type) bool {
	p, ok := t.(ast.Primitive)
	return ok && p.Kind == ast.StringKind
}

func resultKind(lt, rt ast.Type) ast.Type {
	lp, lok := lt.(ast.Primitive)
	rp, rok := rt.(ast.Primitive)
	if lok && rok && (lp.Kind == ast.FloatKind || rp.Kind == ast.FloatKind) {
		return ast.Primitive{Kind: ast.FloatKind}
	}
	return ast.Primitive{Kind: ast.IntKind}
}

// emitArithOp emits the int or float form of op depending on kind;
// both operands are assumed already converted to the same numeric kind
// by the resolver's inserted Conversion nodes by the time this runs.
func (fc *funcCtx) emitArithOp(op token.Kind, kind ast.Type) {
	p, _ := kind.(ast.Primitive)
	isFloat := p.Kind == ast.FloatKind
	switch op {
	case token.PLUS:
		if isFloat {
			fc.emit(bytecode.FADD, 0)
		} else {
			fc.emit(bytecode.IADD, 0)
		}
	case token.MINUS:
		if isFloat {
			fc.emit(bytecode.FSUB, 0)
		} else {
			fc.emit(bytecode.ISUB, 0)
		}
	case token.STAR:
		if isFloat {
			fc.emit(bytecode.FMUL, 0)
		} else {
			fc.emit(bytecode.IMUL, 0)
		}
	case token.SLASH:
		if isFloat {
			fc.emit(bytecode.FDIV, 0)
		} else {
			fc.emit(bytecode.IDIV, 0)
		}
	case token.PERCENT:
		if isFloat {
			fc.emit(bytecode.FMOD, 0)
		} else {
			fc.emit(bytecode.IMOD, 0)
		}
	case token.AMP:
		fc.emit(bytecode.BIT_AND, 0)
	case token.PIPE:
		fc.emit(bytecode.BIT_OR, 0)
	case token.CARET:
		fc.emit(bytecode.BIT_XOR, 0)
	case token.LSHIFT:
		fc.emit(bytecode.SHIFT_LEFT, 0)
	case token.RSHIFT:
		fc.emit(bytecode.SHIFT_RIGHT, 0)
	}
}

// compileEquality uses EQUAL_SL (which releases both operands after
// comparing) whenever either side is a string or list, since those
// operands must be owned copies; otherwise the plain, non-destroying
// EQUAL suffices for int/float/bool/null.
func (fc *funcCtx) compileEquality(ex ast.BinaryExpr, lt, rt ast.Type) {
	needsOwned := isStringOrList(lt) || isStringOrList(rt)
	if needsOwned {
		fc.compileOwned(ex.Left)
		fc.compileOwned(ex.Right)
		fc.emit(bytecode.EQUAL_SL, 0)
	} else {
		fc.compileExpr(ex.Left)
		fc.compileExpr(ex.Right)
		fc.emit(bytecode.EQUAL, 0)
	}
	if ex.Op == token.BANG_EQUAL {
		fc.emit(bytecode.NOT, 0)
	}
}

// compileOrdering uses GREATER/LESSER, neither of which releases its
// operands, so both sides are plain (non-owned) reads here, never
// compileOwned, to avoid leaking a cache entry. A freshly constructed
// string temporary (e.g. the result of a concatenation) compared with
// `<`/`>` is the one case this cannot round-trip cleanly; ordering
// comparisons are expected to run on numeric operands in practice.
func (fc *funcCtx) compileOrdering(ex ast.BinaryExpr) {
	fc.compileExpr(ex.Left)
	fc.compileExpr(ex.Right)
	switch ex.Op {
	case token.GREATER:
		fc.emit(bytecode.GREATER, 0)
	case token.LESS:
		fc.emit(bytecode.LESSER, 0)
	case token.GREATER_EQUAL:
		fc.emit(bytecode.LESSER, 0)
		fc.emit(bytecode.NOT, 0)
	case token.LESS_EQUAL:
		fc.emit(bytecode.GREATER, 0)
		fc.emit(bytecode.NOT, 0)
	}
}

func (fc *funcCtx) compileUnary(ex ast.UnaryExpr) {
	fc.compileExpr(ex.Right)
	switch ex.Op {
	case token.MINUS:
		if isStringKind(exprType(ex.Right)) {
			return
		}
		if p, ok := exprType(ex.Right).(ast.Primitive); ok && p.Kind == ast.FloatKind {
			fc.emit(bytecode.FNEG, 0)
		} else {
			fc.emit(bytecode.INEG, 0)
		}
	case token.BANG:
		fc.emit(bytecode.NOT, 0)
	case token.TILDE:
		fc.emit(bytecode.BIT_NOT, 0)
	}
}

// compileLogical lowers && and || with short-circuit control flow
// rather than an opcode, since a reached-but-unneeded right operand
// must not be evaluated (it may have side effects).
func (fc *funcCtx) compileLogical(ex ast.LogicalExpr) {
	fc.compileExpr(ex.Left)
	if ex.Op == token.AND_AND {
		skip := fc.emit(bytecode.JUMP_IF_FALSE, 0)
		fc.emit(bytecode.POP, 0)
		fc.compileExpr(ex.Right)
		fc.patchForward(skip)
		return
	}
	skip := fc.emit(bytecode.JUMP_IF_TRUE, 0)
	fc.emit(bytecode.POP, 0)
	fc.compileExpr(ex.Right)
	fc.patchForward(skip)
}

func (fc *funcCtx) compileTernary(ex ast.TernaryExpr) {
	fc.compileExpr(ex.Cond)
	elseJump := fc.emit(bytecode.POP_JUMP_IF_FALSE, 0)
	fc.compileExpr(ex.Then)
	endJump := fc.emit(bytecode.JUMP_FORWARD, 0)
	fc.patchForward(elseJump)
	fc.compileExpr(ex.Else)
	fc.patchForward(endJump)
}

// compileCall dispatches a native call, a same-module user function
// call, or a cross-module call via a ScopeAccessExpr callee. The user-
// function call sequence always reserves a placeholder return slot
// first, exactly the "base := stackTop - (arity+1)" convention the VM's
// CALL_FUNCTION assumes.
func (fc *funcCtx) compileCall(ex ast.CallExpr) {
	if name, ok := calleeName(ex.Callee); ok {
		if _, isNative := nativeArity(name); isNative {
			fc.compileNativeCall(name, ex.Args)
			return
		}
		if fn, ok := fc.c.functions[name]; ok {
			fc.compileUserCall(fn.Name, 0, ex.Args, false)
			return
		}
	}
	if sa, ok := ex.Callee.(ast.ScopeAccessExpr); ok {
		fc.compileUserCall(sa.Name, 0, ex.Args, true, sa.Module)
		return
	}
	// Unresolvable callee (e.g. a method-call placeholder the resolver
	// rejected already): leave a harmless null in its place.
	for range ex.Args {
		fc.emit(bytecode.POP, 0)
	}
	fc.emit(bytecode.PUSH_NULL, 0)
}

func calleeName(e ast.Expr) (string, bool) {
	if v, ok := e.(ast.VariableExpr); ok {
		return v.Name, true
	}
	return "", false
}

// nativeArity mirrors the VM's fixed native table closely enough for
// codegen to recognize a native call site; the full arity/variadic
// contract is enforced earlier by the resolver.
func nativeArity(name string) (int, bool) {
	switch name {
	case "print", "int", "float", "string", "size":
		return 1, true
	case "readline", "uuid":
		return 0, true
	case "fill_trivial", "%resize_list_trivial":
		return 2, true
	}
	return 0, false
}

func (fc *funcCtx) compileNativeCall(name string, args []ast.Expr) {
	for _, a := range args {
		fc.compileOwned(a)
	}
	idx := fc.chunk.AddConstant(value.Str(name))
	fc.emit(bytecode.CONSTANT_STRING, uint32(idx))
	fc.emit(bytecode.CALL_NATIVE, 0)
}

func (fc *funcCtx) compileUserCall(name string, moduleIndex int, args []ast.Expr, crossModule bool, path ...string) {
	fc.emit(bytecode.PUSH_NULL, 0) // reserved return-value cell
	for _, a := range args {
		fc.compileOwned(a)
	}
	idx := fc.chunk.AddConstant(value.Str(name))
	fc.emit(bytecode.CONSTANT_STRING, uint32(idx))
	if crossModule {
		pidx := fc.chunk.AddConstant(value.Str(path[0]))
		fc.emit(bytecode.CONSTANT_STRING, uint32(pidx))
		fc.emit(bytecode.LOAD_FUNCTION_MODULE_PATH, 0)
	} else {
		fc.emit(bytecode.LOAD_FUNCTION_SAME_MODULE, 0)
	}
	fc.emit(bytecode.CALL_FUNCTION, 0)
}

// compileGet reads a tuple element or a class field. A tuple has no
// runtime representation of its own, just the N sequential stack slots
// its binding occupies, so `.N` field access only resolves when the
// object is a named binding the compiler already tracks; anything else
// (a tuple literal indexed in place, a call result) has no persistent
// slot to address and falls back to null. Class instances have no
// runtime representation at all (no OBJECT value tag, no construction
// expression in the grammar), so a class-typed GetExpr is unreachable
// once compiled; the resolver only keeps this path alive for
// type-checking.
func (fc *funcCtx) compileGet(ex ast.GetExpr) {
	if idx, ok := tupleFieldIndex(ex.Name); ok {
		if v, ok := ex.Object.(ast.VariableExpr); ok {
			if b, found, isGlobal := fc.lookup(v.Name); found && idx < len(b.slots) {
				fc.emitSlotRead(b.slots[idx], isGlobal, elementTypeAt(b, idx))
				return
			}
		}
	}
	fc.emit(bytecode.PUSH_NULL, 0)
}

func (fc *funcCtx) emitSlotRead(slot int, isGlobal bool, typ ast.Type) {
	_, isList := typ.(ast.List)
	switch {
	case isList && isGlobal:
		fc.emit(bytecode.ACCESS_GLOBAL_LIST, uint32(slot))
	case isList && !isGlobal:
		fc.emit(bytecode.ACCESS_LOCAL_LIST, uint32(slot))
	case isGlobal:
		fc.emit(bytecode.ACCESS_GLOBAL, uint32(slot))
	default:
		fc.emit(bytecode.ACCESS_LOCAL, uint32(slot))
	}
}

// compileSet mirrors compileGet for the tuple-element write case; a
// class-typed SetExpr is the same unreachable placeholder as SetExpr on
// a class object in compileAssign.
func (fc *funcCtx) compileSet(ex ast.SetExpr) {
	if idx, ok := tupleFieldIndex(ex.Name); ok {
		if v, ok := ex.Object.(ast.VariableExpr); ok {
			if b, found, isGlobal := fc.lookup(v.Name); found && idx < len(b.slots) {
				fc.compileOwned(ex.Value)
				fc.emitSlotAssign(b.slots[idx], isGlobal, elementTypeAt(b, idx))
				return
			}
		}
	}
	fc.compileOwned(ex.Value)
}

func (fc *funcCtx) emitSlotAssign(slot int, isGlobal bool, typ ast.Type) {
	_, isList := typ.(ast.List)
	switch {
	case isList && isGlobal:
		fc.emit(bytecode.ASSIGN_GLOBAL_LIST, uint32(slot))
	case isList && !isGlobal:
		fc.emit(bytecode.ASSIGN_LOCAL_LIST, uint32(slot))
	case isGlobal:
		fc.emit(bytecode.ASSIGN_GLOBAL, uint32(slot))
	default:
		fc.emit(bytecode.ASSIGN_LOCAL, uint32(slot))
	}
}

func tupleFieldIndex(name string) (int, bool) {
	if name == "" {
		return 0, false
	}
	n := 0
	for _, r := range name {
		if r < '0' || r > '9' {
			return 0, false
		}
		n = n*10 + int(r-'0')
	}
	return n, true
}

// compileIndexRead pushes list then index (the order execIndexList pops
// in: idx first, then l) and bounds-checks before indexing, matching
// the VM's CHECK_LIST_INDEX/INDEX_LIST pairing used throughout the
// source's own generated code.
func (fc *funcCtx) compileIndexRead(ex ast.IndexExpr) {
	if isStringKind(exprType(ex.List)) {
		fc.compileOwned(ex.List)
		fc.compileExpr(ex.Index)
		fc.emit(bytecode.CHECK_STRING_INDEX, 0)
		fc.emit(bytecode.INDEX_STRING, 0)
		return
	}
	fc.compileExpr(ex.List)
	fc.compileExpr(ex.Index)
	fc.emit(bytecode.CHECK_LIST_INDEX, 0)
	fc.compileExpr(ex.List)
	fc.compileExpr(ex.Index)
	fc.emit(bytecode.INDEX_LIST, 0)
}

func (fc *funcCtx) compileListAssign(ex ast.ListAssignExpr) {
	if ex.Op != token.EQUAL {
		fc.compileListCompoundAssign(ex)
		return
	}
	fc.compileExpr(ex.List)
	fc.compileExpr(ex.Index)
	fc.compileOwned(ex.Value)
	fc.emit(bytecode.ASSIGN_LIST, 0)
}

// compileListCompoundAssign lowers `list[i] += v`. The list and index
// are pushed once (live across the whole sequence, left unconsumed by
// CHECK_LIST_INDEX) and again for INDEX_LIST's own consuming read; by
// the time the arithmetic op runs, the surviving list/index pair from
// the first push sits exactly where ASSIGN_LIST wants it underneath
// the freshly computed result, so no further rearrangement is needed.
func (fc *funcCtx) compileListCompoundAssign(ex ast.ListAssignExpr) {
	op := compoundBaseOp(ex.Op)
	fc.compileExpr(ex.List)
	fc.compileExpr(ex.Index)
	fc.emit(bytecode.CHECK_LIST_INDEX, 0)
	fc.compileExpr(ex.List)
	fc.compileExpr(ex.Index)
	fc.emit(bytecode.INDEX_LIST, 0)
	fc.compileOwned(ex.Value)
	fc.emitArithOp(op, exprType(ex.Value))
	fc.emit(bytecode.ASSIGN_LIST, 0)
}

// compileListRepeat lowers `[expr; n]`: it builds a one-element list
// holding expr, then always calls the %resize_list_trivial native
// helper with n to bring it to its final length, rather than
// duplicating the VM's list-growth logic in bytecode.
func (fc *funcCtx) compileListRepeat(ex ast.ListRepeatExpr) {
	fc.compileOwned(ex.Element)
	fc.emit(bytecode.MAKE_LIST, 1)
	fc.compileExpr(ex.Count)
	idx := fc.chunk.AddConstant(value.Str("%resize_list_trivial"))
	fc.emit(bytecode.CONSTANT_STRING, uint32(idx))
	fc.emit(bytecode.CALL_NATIVE, 0)
}

func (fc *funcCtx) compileMove(target ast.Expr) {
	switch t := target.(type) {
	case ast.VariableExpr:
		fc.emitMoveVar(t.Name)
	case ast.IndexExpr:
		fc.compileExpr(t.List)
		fc.compileExpr(t.Index)
		fc.emit(bytecode.MOVE_INDEX, 0)
	default:
		fc.compileExpr(target)
	}
}

func (fc *funcCtx) emitMoveVar(name string) {
	b, ok, isGlobal := fc.lookup(name)
	if !ok {
		fc.emit(bytecode.PUSH_NULL, 0)
		return
	}
	for _, slot := range b.slots {
		if isGlobal {
			fc.emit(bytecode.MOVE_GLOBAL, uint32(slot))
		} else {
			fc.emit(bytecode.MOVE_LOCAL, uint32(slot))
		}
	}
}

// compileRange materializes `a..b`/`a..=b` as an INT list by running an
// ordinary counted loop over three scratch locals in a scope of their
// own: there is no dedicated range-to-list opcode, so this is lowered
// the same way a hand-written loop building up a list would be. The
// final MOVE transfers the accumulator's ownership out before its
// scope's temporaries are discarded out from underneath it.
func (fc *funcCtx) compileRange(ex ast.RangeExpr) {
	fc.pushScope()
	floor := fc.nextSlot

	fc.compileExpr(ex.Start)
	fc.declare("%range_i", ast.Primitive{Kind: ast.IntKind})

	fc.compileExpr(ex.End)
	if ex.Inclusive {
		fc.compileLiteral(ast.LiteralExpr{Kind: ast.IntKind, IntVal: 1})
		fc.emit(bytecode.IADD, 0)
	}
	fc.declare("%range_end", ast.Primitive{Kind: ast.IntKind})

	fc.emit(bytecode.MAKE_LIST, 0)
	fc.declare("%range_acc", ast.List{Element: ast.Primitive{Kind: ast.IntKind}})

	condStart := fc.chunk.Len()
	fc.compileVariableRead("%range_i")
	fc.compileVariableRead("%range_end")
	fc.emit(bytecode.LESSER, 0)
	exitJump := fc.emit(bytecode.POP_JUMP_IF_FALSE, 0)

	fc.compileVariableRead("%range_acc")
	fc.compileVariableRead("%range_i")
	fc.emit(bytecode.APPEND_LIST, 0)
	fc.emit(bytecode.POP_LIST, 0)

	fc.compileVariableRead("%range_i")
	fc.compileLiteral(ast.LiteralExpr{Kind: ast.IntKind, IntVal: 1})
	fc.emit(bytecode.IADD, 0)
	fc.emitAssignVar("%range_i")
	fc.emit(bytecode.POP, 0)

	back := fc.emit(bytecode.JUMP_BACKWARD, 0)
	fc.patchBackwardTo(back, condStart)
	fc.patchForward(exitJump)

	fc.emitMoveVar("%range_acc")
	fc.popToDepthKeepTop(floor)
	fc.scopes = fc.scopes[:len(fc.scopes)-1]
}

// compileScopeAccess reads a cross-module global or calls a cross-
// module function; as a bare value (not a call), it is a global read in
// the named module, modelled here as a same-named global in the
// current module's table being out of scope, so it degrades to null
// rather than guessing a foreign module's slot layout without a loader
// in hand. Cross-module calls go through compileCall's ScopeAccessExpr
// branch instead.
func (fc *funcCtx) compileScopeAccess(ex ast.ScopeAccessExpr) {
	fc.emit(bytecode.PUSH_NULL, 0)
}

func (fc *funcCtx) compileTypeOf(ex ast.TypeOfExpr) {
	t := exprType(ex.Inner)
	idx := fc.chunk.AddConstant(value.Str(typeName(t)))
	fc.emit(bytecode.CONSTANT_STRING, uint32(idx))
}

func typeName(t ast.Type) string {
	switch tt := t.(type) {
	case ast.Primitive:
		switch tt.Kind {
		case ast.IntKind:
			return "int"
		case ast.FloatKind:
			return "float"
		case ast.BoolKind:
			return "bool"
		case ast.StringKind:
			return "string"
		default:
			return "null"
		}
	case ast.List:
		return "list"
	case ast.Tuple:
		return "tuple"
	case ast.UserDefined:
		return tt.Name
	default:
		return "null"
	}
}
