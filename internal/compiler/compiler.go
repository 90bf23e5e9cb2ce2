// Package compiler is the code generator: it walks a resolved module and
// emits the bytecode.Chunk triples (top-level code, teardown code, and
// one chunk per function) that the virtual machine executes. Every node
// it visits is assumed to already carry a resolved type, lvalue flag,
// and conversion tag from internal/resolver.
package compiler

import (
	"ember/internal/ast"
	"ember/internal/bytecode"
	"ember/internal/config"
	"ember/internal/diag"
	"ember/internal/token"
	"ember/internal/value"
)

// Compiler owns the state shared across a module's top-level code,
// teardown code, and every function body: the module's global-variable
// table (so a function body can resolve a bare name that isn't one of
// its own locals) and the function/class tables resolved names are
// checked against.
type Compiler struct {
	logger *diag.Logger
	cfg    *config.Config
	module string

	globals     map[string]binding
	globalOrder []string

	functions map[string]*ast.FunctionStmt
	classes   map[string]*ast.ClassStmt
}

// binding is a compile-time variable record: the contiguous stack slots
// it occupies (more than one only for a tuple-typed binding) and its
// declared type, used to pick ACCESS_LOCAL vs ACCESS_LOCAL_LIST and the
// right discard opcode when the variable goes out of scope.
type binding struct {
	slots []int
	typ   ast.Type
}

func New(module string, logger *diag.Logger, cfg *config.Config) *Compiler {
	return &Compiler{
		logger:    logger,
		cfg:       cfg,
		module:    module,
		globals:   make(map[string]binding),
		functions: make(map[string]*ast.FunctionStmt),
		classes:   make(map[string]*ast.ClassStmt),
	}
}

// Compile lowers mod into a RuntimeModule. Top-level code must be
// compiled before any function body, since a function may reference a
// module global and the global table is only complete once the
// top-level pass has declared every global in order. moduleIndex is
// this module's position in the driver's topologically-ordered runtime
// list; it is stamped onto every function so CALL_FUNCTION's function
// handles and cross-module lookups resolve against the right
// RuntimeModule regardless of load order.
func (c *Compiler) Compile(mod *ast.Module, moduleIndex int) *bytecode.RuntimeModule {
	for _, fn := range mod.Functions {
		c.functions[fn.Name] = fn
	}
	for _, cls := range mod.Classes {
		c.classes[cls.Name] = cls
	}

	top := newFuncCtx(c, bytecode.NewChunk(), true)
	for _, s := range mod.Statements {
		top.compileStmt(s)
	}
	top.emit(bytecode.HALT, 0)

	teardown := bytecode.NewChunk()
	tdCtx := newFuncCtx(c, teardown, true)
	for i := len(c.globalOrder) - 1; i >= 0; i-- {
		name := c.globalOrder[i]
		b := c.globals[name]
		for j := len(b.slots) - 1; j >= 0; j-- {
			tdCtx.emitGlobalRead(b.slots[j])
			tdCtx.emit(discardOp(elementTypeAt(b, j)), 0)
		}
	}
	tdCtx.emit(bytecode.HALT, 0)

	rm := &bytecode.RuntimeModule{
		Name:         mod.Name,
		TopLevelCode: top.chunk,
		TeardownCode: teardown,
		GlobalCount:  top.maxSlot,
	}

	for i, fn := range mod.Functions {
		fn.Index = i
		fn.ModuleIndex = moduleIndex
	}
	for _, fn := range mod.Functions {
		fc := newFuncCtx(c, bytecode.NewChunk(), false)
		fc.compileFunctionBody(fn)
		rm.Functions = append(rm.Functions, &bytecode.RuntimeFunction{
			Name:        fn.Name,
			Arity:       len(fn.Params),
			Code:        fc.chunk,
			ModuleIndex: fn.ModuleIndex,
			FuncIndex:   fn.Index,
		})
	}
	for _, cls := range mod.Classes {
		for _, m := range []*ast.FunctionStmt{cls.Constructor, cls.Destructor} {
			if m == nil {
				continue
			}
			fc := newFuncCtx(c, bytecode.NewChunk(), false)
			fc.compileFunctionBody(m)
		}
		for _, m := range cls.Methods {
			fc := newFuncCtx(c, bytecode.NewChunk(), false)
			fc.compileFunctionBody(m)
		}
	}
	return rm
}

func elementTypeAt(b binding, i int) ast.Type {
	if tup, ok := b.typ.(ast.Tuple); ok && i < len(tup.Elements) {
		return tup.Elements[i]
	}
	return b.typ
}

// loopCtx tracks the bookkeeping needed to compile break/continue: the
// instruction pointer continue jumps back to, the compile-time stack
// depth the loop entered at (so a break/continue mid-body can pop
// exactly the locals declared since), and the list of break jumps
// still waiting for their target to be known.
type loopCtx struct {
	continueTarget int
	depthAtEntry   int
	breakPatches   []int
}

// funcCtx compiles one chunk: a module's top-level code, its teardown
// code, or a single function's body. `global` selects which opcode
// family (ACCESS_LOCAL vs ACCESS_GLOBAL, and so on) slot access uses,
// the two addressing modes are otherwise handled identically.
type funcCtx struct {
	c      *Compiler
	chunk  *bytecode.Chunk
	global bool

	scopes    []map[string]binding
	slotTypes map[int]ast.Type
	nextSlot  int
	maxSlot   int

	loops   []*loopCtx
	curLine int
}

func newFuncCtx(c *Compiler, chunk *bytecode.Chunk, global bool) *funcCtx {
	fc := &funcCtx{c: c, chunk: chunk, global: global, slotTypes: make(map[int]ast.Type)}
	fc.pushScope()
	return fc
}

func (fc *funcCtx) pushScope() {
	fc.scopes = append(fc.scopes, make(map[string]binding))
}

// popScope releases every local this scope declared, in reverse
// declaration order, emitting the type-appropriate discard opcode for
// each before the scope's slots are returned to the pool.
func (fc *funcCtx) popScope() {
	fc.popToDepth(fc.scopeFloor())
	fc.scopes = fc.scopes[:len(fc.scopes)-1]
}

// scopeFloor returns the slot depth this innermost scope started at.
func (fc *funcCtx) scopeFloor() int {
	lo := fc.nextSlot
	for _, b := range fc.scopes[len(fc.scopes)-1] {
		for _, slot := range b.slots {
			if slot < lo {
				lo = slot
			}
		}
	}
	return lo
}

// popToDepth emits a discard opcode for every live slot from the
// current depth down to target (exclusive), in reverse declaration
// order, and resets nextSlot to target. Because a local's slot is
// simply wherever its initializer's push landed, the runtime stack top
// at a scope's exit is exactly nextSlot, so each discard pops the real
// top of stack directly; there is no separate "shrink the stack"
// opcode. Used for ordinary scope exit and for early exits
// (break/continue) that skip past the normal block-exit code path.
func (fc *funcCtx) popToDepth(target int) {
	for slot := fc.nextSlot - 1; slot >= target; slot-- {
		t, ok := fc.slotTypes[slot]
		if !ok {
			t = ast.Primitive{Kind: ast.NullKind}
		}
		fc.emit(discardOp(t), 0)
	}
	fc.nextSlot = target
}

// popToDepthKeepTop discards every slot from the current depth down to
// target, exactly like popToDepth, but preserves whatever value
// currently sits on top of all of them, a freshly computed result that
// must survive past a scratch scope of its own temporaries, by
// swapping it underneath each discarded slot in turn before popping.
func (fc *funcCtx) popToDepthKeepTop(target int) {
	for slot := fc.nextSlot - 1; slot >= target; slot-- {
		t, ok := fc.slotTypes[slot]
		if !ok {
			t = ast.Primitive{Kind: ast.NullKind}
		}
		fc.emit(bytecode.SWAP, 1)
		fc.emit(discardOp(t), 0)
	}
	fc.nextSlot = target
}

// emitGlobalRead reads a global by slot without touching nextSlot;
// used only by teardown code, which releases every module global's
// resources by value (the real stack top at program shutdown belongs
// to whichever module tore down last, not to this one) rather than by
// popping the live stack.
func (fc *funcCtx) emitGlobalRead(slot int) {
	fc.emit(bytecode.ACCESS_GLOBAL, uint32(slot))
}

func (fc *funcCtx) declare(name string, typ ast.Type) binding {
	n := 1
	if tup, ok := typ.(ast.Tuple); ok {
		n = len(tup.Elements)
		if n == 0 {
			n = 1
		}
	}
	slots := make([]int, n)
	for i := 0; i < n; i++ {
		slots[i] = fc.nextSlot
		if et, ok := typ.(ast.Tuple); ok && i < len(et.Elements) {
			fc.slotTypes[fc.nextSlot] = et.Elements[i]
		} else {
			fc.slotTypes[fc.nextSlot] = typ
		}
		fc.nextSlot++
	}
	if fc.nextSlot > fc.maxSlot {
		fc.maxSlot = fc.nextSlot
	}
	b := binding{slots: slots, typ: typ}
	fc.scopes[len(fc.scopes)-1][name] = b
	if fc.global {
		if _, exists := fc.c.globals[name]; !exists {
			fc.c.globalOrder = append(fc.c.globalOrder, name)
		}
		fc.c.globals[name] = b
	}
	return b
}

func (fc *funcCtx) lookup(name string) (binding, bool, bool) {
	for i := len(fc.scopes) - 1; i >= 0; i-- {
		if b, ok := fc.scopes[i][name]; ok {
			return b, true, fc.global
		}
	}
	if b, ok := fc.c.globals[name]; ok {
		return b, true, true
	}
	return binding{}, false, false
}

func (fc *funcCtx) emit(op bytecode.OpCode, operand uint32) int {
	return fc.chunk.Emit(op, operand, fc.curLine)
}

func (fc *funcCtx) markLine(t token.Token) {
	if t.Pos.Line != 0 {
		fc.curLine = t.Pos.Line
	}
}

func (fc *funcCtx) patchForward(ip int) {
	target := fc.chunk.Len()
	fc.chunk.Patch(ip, uint32(target-(ip+1)))
}

func (fc *funcCtx) patchBackwardTo(ip int, target int) {
	fc.chunk.Patch(ip, uint32((ip+1)-target))
}

// discardOp picks the opcode that ends a statement whose produced value
// owns a heap resource: STRING/LIST get their dedicated release form,
// everything else a plain POP.
func discardOp(t ast.Type) bytecode.OpCode {
	switch tt := t.(type) {
	case ast.Primitive:
		if tt.Kind == ast.StringKind {
			return bytecode.POP_STRING
		}
	case ast.List:
		return bytecode.POP_LIST
	}
	return bytecode.POP
}

func exprType(e ast.Expr) ast.Type {
	if e == nil {
		return ast.Primitive{Kind: ast.NullKind}
	}
	if a, ok := e.(interface{ Type() ast.Type }); ok {
		if t := a.Type(); t != nil {
			return t
		}
	}
	return ast.Primitive{Kind: ast.NullKind}
}

func convOf(e ast.Expr) ast.Conversion {
	if a, ok := e.(interface{ Conv() ast.Conversion }); ok {
		return a.Conv()
	}
	return ast.ConvertNone
}

func (fc *funcCtx) compileFunctionBody(fn *ast.FunctionStmt) {
	fc.nextSlot = 1 // slot 0 is the caller-reserved return-value cell
	fc.maxSlot = 1
	for _, p := range fn.Params {
		if p.Tuple != nil {
			typ := p.TypeAnn
			tup, ok := typ.(ast.Tuple)
			if !ok || len(tup.Elements) != len(p.Tuple) {
				tup = ast.Tuple{Elements: make([]ast.Type, len(p.Tuple))}
				for i := range tup.Elements {
					tup.Elements[i] = ast.Primitive{Kind: ast.NullKind}
				}
			}
			b := fc.declare("", tup)
			for i, name := range p.Tuple {
				fc.scopes[len(fc.scopes)-1][name] = binding{slots: []int{b.slots[i]}, typ: tup.Elements[i]}
			}
			continue
		}
		fc.declare(p.Name, p.TypeAnn)
	}
	if fn.Body != nil {
		for _, s := range fn.Body.Stmts {
			fc.compileStmt(s)
		}
	}
	fc.markLine(fn.Tok)
	fc.emit(bytecode.TRAP_RETURN, 0)
	fc.emit(bytecode.HALT, 0)
}

// --- Statements ---

func (fc *funcCtx) compileStmt(s ast.Stmt) {
	switch st := s.(type) {
	case ast.ExpressionStmt:
		fc.compileExprStatement(st.Expr)

	case ast.VarDeclStmt:
		fc.markLine(st.Tok)
		typ := st.TypeAnn
		if typ == nil {
			typ = ast.Primitive{Kind: ast.NullKind}
		}
		if st.Init != nil {
			fc.compileOwned(st.Init)
		} else {
			fc.emitZeroValue(typ)
		}
		fc.declare(st.Name, typ)

	case ast.VarTupleStmt:
		fc.markLine(st.Tok)
		if elems := tupleExprElements(st.Init); elems != nil {
			for _, e := range elems {
				fc.compileOwned(e)
			}
		} else if st.Init != nil {
			fc.compileOwned(st.Init)
		}
		for _, name := range st.Names {
			fc.declare(name, ast.Primitive{Kind: ast.NullKind})
		}

	case *ast.BlockStmt:
		fc.pushScope()
		for _, inner := range st.Stmts {
			fc.compileStmt(inner)
		}
		fc.popScope()

	case ast.BlockStmt:
		fc.pushScope()
		for _, inner := range st.Stmts {
			fc.compileStmt(inner)
		}
		fc.popScope()

	case ast.IfStmt:
		fc.markLine(st.Cond.Token())
		fc.compileExpr(st.Cond)
		elseJump := fc.emit(bytecode.POP_JUMP_IF_FALSE, 0)
		fc.compileStmt(st.Then)
		if st.Else != nil {
			endJump := fc.emit(bytecode.JUMP_FORWARD, 0)
			fc.patchForward(elseJump)
			fc.compileStmt(st.Else)
			fc.patchForward(endJump)
		} else {
			fc.patchForward(elseJump)
		}

	case ast.WhileStmt:
		fc.compileWhile(st)

	case ast.ForStmt:
		fc.pushScope()
		if st.Init != nil {
			fc.compileStmt(st.Init)
		}
		fc.compileWhile(ast.WhileStmt{Cond: st.Cond, Body: st.Body, Increment: st.Incr})
		fc.popScope()

	case ast.SwitchStmt:
		fc.compileSwitch(st)

	case ast.BreakStmt:
		fc.markLine(st.Tok)
		if len(fc.loops) == 0 {
			fc.errorAt(st.Tok, "break outside a loop")
			return
		}
		lp := fc.loops[len(fc.loops)-1]
		fc.popToDepthKeepScopes(lp.depthAtEntry)
		ip := fc.emit(bytecode.JUMP_FORWARD, 0)
		lp.breakPatches = append(lp.breakPatches, ip)

	case ast.ContinueStmt:
		fc.markLine(st.Tok)
		if len(fc.loops) == 0 {
			fc.errorAt(st.Tok, "continue outside a loop")
			return
		}
		lp := fc.loops[len(fc.loops)-1]
		fc.popToDepthKeepScopes(lp.depthAtEntry)
		back := fc.emit(bytecode.JUMP_BACKWARD, 0)
		fc.patchBackwardTo(back, lp.continueTarget)

	case ast.ReturnStmt:
		fc.markLine(st.Tok)
		if st.Value != nil {
			fc.compileOwned(st.Value)
		} else {
			fc.emit(bytecode.PUSH_NULL, 0)
		}
		fc.emit(bytecode.RETURN, uint32(fc.nextSlot-1))

	case ast.ImportStmt, ast.TypeStmt, ast.ErrorStmt:
		// no code: imports are resolved by the driver, type aliases
		// are erased once the resolver has used them.

	default:
		fc.errorAtPos(token.Position{Line: fc.curLine}, "unsupported statement %T", s)
	}
}

// popToDepthKeepScopes is popToDepth but used for early exits (break,
// continue): it pops the real stack top down to target without
// touching fc.scopes or fc.nextSlot, since code statically following
// the break/continue in the same block (if any, however unreachable)
// still needs its bindings and slot bookkeeping intact.
func (fc *funcCtx) popToDepthKeepScopes(target int) {
	for slot := fc.nextSlot - 1; slot >= target; slot-- {
		t, ok := fc.slotTypes[slot]
		if !ok {
			t = ast.Primitive{Kind: ast.NullKind}
		}
		fc.emit(discardOp(t), 0)
	}
}

func (fc *funcCtx) compileWhile(w ast.WhileStmt) {
	// An increment is laid out ahead of the condition and skipped on
	// first entry, so the back edge and `continue` both run it.
	loopStart := fc.chunk.Len()
	if w.Increment != nil {
		skip := fc.emit(bytecode.JUMP_FORWARD, 0)
		loopStart = fc.chunk.Len()
		fc.compileExprStatement(w.Increment)
		fc.patchForward(skip)
	}
	fc.markLine(w.Cond.Token())
	fc.compileExpr(w.Cond)
	exitJump := fc.emit(bytecode.POP_JUMP_IF_FALSE, 0)

	lp := &loopCtx{continueTarget: loopStart, depthAtEntry: fc.nextSlot}
	fc.loops = append(fc.loops, lp)
	fc.compileStmt(w.Body)
	back := fc.emit(bytecode.JUMP_BACKWARD, 0)
	fc.patchBackwardTo(back, loopStart)
	fc.patchForward(exitJump)
	for _, bp := range lp.breakPatches {
		fc.patchForward(bp)
	}
	fc.loops = fc.loops[:len(fc.loops)-1]
}

// compileSwitch lowers to a POP_JUMP_IF_EQUAL comparison chain against
// a single materialized scrutinee: each case compares, falls through to
// the next comparison on a miss, and jumps into its body on a match;
// bodies are laid out after the whole chain, each ending with a jump to
// the switch's end, with the scrutinee explicitly popped before the
// default (or the end, if there is none) since only a match consumes it.
func (fc *funcCtx) compileSwitch(sw ast.SwitchStmt) {
	fc.markLine(sw.Scrutinee.Token())
	fc.compileExpr(sw.Scrutinee)
	scrutineeType := exprType(sw.Scrutinee)

	matchJumps := make([]int, len(sw.Cases))
	for i, cc := range sw.Cases {
		fc.compileExpr(cc.Value)
		matchJumps[i] = fc.emit(bytecode.POP_JUMP_IF_EQUAL, 0)
	}
	fc.emit(discardOp(scrutineeType), 0)
	var toEnd []int
	if sw.Default != nil {
		fc.compileStmt(sw.Default)
	}
	toEnd = append(toEnd, fc.emit(bytecode.JUMP_FORWARD, 0))

	for i, cc := range sw.Cases {
		fc.patchForward(matchJumps[i])
		fc.compileStmt(cc.Body)
		toEnd = append(toEnd, fc.emit(bytecode.JUMP_FORWARD, 0))
	}
	for _, ip := range toEnd {
		fc.patchForward(ip)
	}
}

// compileExprStatement compiles an expression used as a whole statement
// (including a for-loop's increment clause), discarding its value with
// the opcode matching whether the pushed result is an owned resource or
// merely an alias duplicate left behind by an assignment opcode.
func (fc *funcCtx) compileExprStatement(e ast.Expr) {
	fc.markLine(e.Token())
	fc.compileExpr(e)
	if isAssignment(e) {
		fc.emit(bytecode.POP, 0)
		return
	}
	fc.emit(discardOp(exprType(e)), 0)
}

func isAssignment(e ast.Expr) bool {
	switch e.(type) {
	case ast.AssignExpr, ast.ListAssignExpr, ast.SetExpr:
		return true
	default:
		return false
	}
}

func tupleExprElements(e ast.Expr) []ast.Expr {
	if t, ok := e.(ast.TupleExpr); ok {
		return t.Elements
	}
	return nil
}

func (fc *funcCtx) emitZeroValue(t ast.Type) {
	switch tt := t.(type) {
	case ast.Primitive:
		switch tt.Kind {
		case ast.IntKind:
			idx := fc.chunk.AddConstant(value.Int(0))
			fc.emit(bytecode.CONSTANT, uint32(idx))
		case ast.FloatKind:
			idx := fc.chunk.AddConstant(value.Float(0))
			fc.emit(bytecode.CONSTANT, uint32(idx))
		case ast.BoolKind:
			fc.emit(bytecode.PUSH_FALSE, 0)
		case ast.StringKind:
			idx := fc.chunk.AddConstant(value.Str(""))
			fc.emit(bytecode.CONSTANT_STRING, uint32(idx))
		default:
			fc.emit(bytecode.PUSH_NULL, 0)
		}
	case ast.List:
		fc.emit(bytecode.MAKE_LIST, 0)
	default:
		fc.emit(bytecode.PUSH_NULL, 0)
	}
}

func (fc *funcCtx) errorAt(t token.Token, format string, args ...interface{}) {
	fc.c.logger.Error(diag.ResolverError, fc.c.module, t.Pos, "", format, args...)
}

func (fc *funcCtx) errorAtPos(p token.Position, format string, args ...interface{}) {
	fc.c.logger.Error(diag.ResolverError, fc.c.module, p, "", format, args...)
}
