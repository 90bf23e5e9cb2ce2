// Package vm is the stack-based virtual machine that executes compiled
// chunks: a tight dispatch loop over three preallocated arrays (value
// stack, call frames, module frames), the string cache, and a fixed
// native function table.
package vm

import (
	"fmt"

	"github.com/dustin/go-humanize"

	"ember/internal/bytecode"
	"ember/internal/config"
	"ember/internal/diag"
	"ember/internal/token"
	"ember/internal/value"
)

const (
	stackMax  = 16384
	frameMax  = 1024
	moduleMax = 256
)

// State is the VM's coarse execution state.
type State int

const (
	Running State = iota
	Finished
)

// CallFrame brackets one function invocation on the value stack.
type CallFrame struct {
	Base            int
	ReturnChunk     *bytecode.Chunk
	ReturnIP        int
	ReturnModule    int
	ModuleIndex     int
	FuncIndex       int
	Name            string
}

// ModuleFrame brackets a module's globals on the value stack.
type ModuleFrame struct {
	Base int
	Name string
}

// VM holds all mutable execution state; one VM instance runs one
// program from first module init through final teardown.
type VM struct {
	stack     [stackMax]value.Value
	stackTop  int

	frames    [frameMax]CallFrame
	frameTop  int

	modules   [moduleMax]ModuleFrame
	moduleTop int

	ip            int
	currentChunk  *bytecode.Chunk
	currentModule int

	cache   *value.StringCache
	natives *NativeTable

	runtime []*bytecode.RuntimeModule // indexed by module index, driver-supplied
	logger  *diag.Logger
	cfg     *config.Config

	state State
}

// New constructs a VM over an already-compiled, dependency-ordered list
// of runtime modules. Which entry is the main module is given later, as
// Run's mainIndex argument.
func New(runtime []*bytecode.RuntimeModule, logger *diag.Logger, cfg *config.Config) *VM {
	return &VM{
		cache:   value.NewStringCache(),
		natives: NewNativeTable(),
		runtime: runtime,
		logger:  logger,
		cfg:     cfg,
	}
}

// Cache exposes the string cache for tests asserting the
// empty-after-a-legal-program invariant.
func (vm *VM) Cache() *value.StringCache { return vm.cache }

func (vm *VM) push(v value.Value) {
	if vm.stackTop >= stackMax {
		vm.runtimeError("stack exhausted (%s cells)", humanCount(stackMax))
		return
	}
	vm.stack[vm.stackTop] = v
	vm.stackTop++
}

func (vm *VM) pop() value.Value {
	vm.stackTop--
	v := vm.stack[vm.stackTop]
	vm.stack[vm.stackTop] = value.Value{}
	return v
}

func (vm *VM) peek(back int) value.Value { return vm.stack[vm.stackTop-1-back] }

func (vm *VM) pushFrame(f CallFrame) {
	if vm.frameTop >= frameMax {
		vm.runtimeError("call stack exhausted (%s frames)", humanCount(frameMax))
		return
	}
	vm.frames[vm.frameTop] = f
	vm.frameTop++
}

func (vm *VM) currentFrame() *CallFrame { return &vm.frames[vm.frameTop-1] }

// runtimeError records a fatal diagnostic tagged with the current
// chunk's line for ip, and drives the VM to FINISHED — runtime errors
// never recover, per the VM's stop-the-loop error-handling contract.
func (vm *VM) runtimeError(format string, args ...interface{}) {
	line := 0
	if vm.currentChunk != nil {
		line = vm.currentChunk.LineForIP(vm.ip)
	}
	moduleName := ""
	if vm.currentModule < len(vm.runtime) {
		moduleName = vm.runtime[vm.currentModule].Name
	}
	vm.logger.Error(diag.RuntimeError, moduleName, token.Position{Line: line}, "", format, args...)
	vm.state = Finished
}

func humanCount(n int) string {
	return humanize.Comma(int64(n))
}

// Run executes every non-main module's top-level code, then main's,
// then every module's teardown in reverse init order, per section 4.6's
// module lifecycle. mainIndex must be a valid index into vm.runtime.
func (vm *VM) Run(mainIndex int) State {
	vm.state = Running
	for i, m := range vm.runtime {
		if i == mainIndex {
			continue
		}
		vm.runModuleInit(i, m)
		if vm.state == Finished && vm.logger.HadError() {
			return vm.state
		}
	}
	vm.runModuleInit(mainIndex, vm.runtime[mainIndex])
	if vm.state == Finished && vm.logger.HadError() {
		return vm.state
	}

	vm.runTeardown(mainIndex, vm.runtime[mainIndex])
	for i := len(vm.runtime) - 1; i >= 0; i-- {
		if i == mainIndex {
			continue
		}
		vm.runTeardown(i, vm.runtime[i])
	}
	vm.state = Finished
	return vm.state
}

func (vm *VM) runModuleInit(idx int, m *bytecode.RuntimeModule) {
	vm.modules[vm.moduleTop] = ModuleFrame{Base: vm.stackTop, Name: m.Name}
	vm.moduleTop++
	m.GlobalsBase = vm.modules[vm.moduleTop-1].Base

	vm.currentModule = idx
	vm.currentChunk = m.TopLevelCode
	vm.ip = 0
	vm.execute()
}

func (vm *VM) runTeardown(idx int, m *bytecode.RuntimeModule) {
	if vm.logger.HadError() {
		return
	}
	vm.currentModule = idx
	vm.currentChunk = m.TeardownCode
	vm.ip = 0
	vm.state = Running
	vm.execute()
}

// execute is the dispatch loop: decode one instruction, advance ip,
// act. It returns when the chunk HALTs or a runtime error fires.
func (vm *VM) execute() {
	for vm.state == Running {
		if vm.ip >= vm.currentChunk.Len() {
			return
		}
		op, operand, next := vm.currentChunk.Decode(vm.ip)
		vm.ip = next

		if vm.cfg.Trace.Insn {
			fmt.Printf("[%s] %04d %s %d\n", vm.runtime[vm.currentModule].Name, vm.ip, op, operand)
		}

		switch op {
		case bytecode.HALT:
			return
		case bytecode.POP:
			vm.pop()
		case bytecode.CONSTANT:
			vm.push(vm.currentChunk.Constants[operand])
		case bytecode.CONSTANT_STRING:
			c := vm.currentChunk.Constants[operand]
			vm.push(value.Str(vm.cache.Insert(c.S)))
		case bytecode.PUSH_TRUE:
			vm.push(value.Bool(true))
		case bytecode.PUSH_FALSE:
			vm.push(value.Bool(false))
		case bytecode.PUSH_NULL:
			vm.push(value.Null())

		case bytecode.IADD, bytecode.ISUB, bytecode.IMUL, bytecode.IDIV, bytecode.IMOD:
			vm.execIntArith(op)
		case bytecode.INEG:
			a := vm.pop()
			vm.push(value.Int(-a.I))

		case bytecode.FADD, bytecode.FSUB, bytecode.FMUL, bytecode.FDIV, bytecode.FMOD:
			vm.execFloatArith(op)
		case bytecode.FNEG:
			a := vm.pop()
			vm.push(value.Float(-a.F))

		case bytecode.FLOAT_TO_INT:
			a := vm.pop()
			vm.push(value.Int(int32(a.F)))
		case bytecode.INT_TO_FLOAT:
			a := vm.pop()
			vm.push(value.Float(float64(a.I)))

		case bytecode.SHIFT_LEFT, bytecode.SHIFT_RIGHT, bytecode.BIT_AND, bytecode.BIT_OR, bytecode.BIT_XOR:
			vm.execBitwise(op)
		case bytecode.BIT_NOT:
			a := vm.pop()
			vm.push(value.Int(^a.I))
		case bytecode.NOT:
			a := vm.pop()
			vm.push(value.Bool(!a.Truthy()))
		case bytecode.EQUAL:
			b, a := vm.pop(), vm.pop()
			vm.push(value.Bool(value.Equal(a, b)))
		case bytecode.EQUAL_SL:
			b, a := vm.pop(), vm.pop()
			eq := value.Equal(a, b)
			value.Destroy(vm.cache, a)
			value.Destroy(vm.cache, b)
			vm.push(value.Bool(eq))
		case bytecode.GREATER:
			b, a := vm.pop(), vm.pop()
			vm.push(value.Bool(value.Greater(a, b)))
		case bytecode.LESSER:
			b, a := vm.pop(), vm.pop()
			vm.push(value.Bool(value.Less(a, b)))

		case bytecode.JUMP_FORWARD:
			vm.ip += int(operand)
		case bytecode.JUMP_BACKWARD:
			vm.ip -= int(operand)
		case bytecode.JUMP_IF_TRUE:
			if vm.peek(0).Truthy() {
				vm.ip += int(operand)
			}
		case bytecode.JUMP_IF_FALSE:
			if !vm.peek(0).Truthy() {
				vm.ip += int(operand)
			}
		case bytecode.POP_JUMP_IF_FALSE:
			if !vm.pop().Truthy() {
				vm.ip += int(operand)
			}
		case bytecode.POP_JUMP_IF_EQUAL:
			top := vm.pop()
			scrutinee := vm.peek(0)
			if value.Equal(scrutinee, top) {
				vm.pop()
				vm.ip += int(operand)
			}
		case bytecode.POP_JUMP_BACK_IF_TRUE:
			if vm.pop().Truthy() {
				vm.ip -= int(operand)
			}

		case bytecode.ASSIGN_LOCAL:
			vm.assignSlot(vm.currentFrame().Base+int(operand), vm.peek(0))
		case bytecode.ACCESS_LOCAL:
			vm.push(vm.stack[vm.currentFrame().Base+int(operand)])
		case bytecode.MAKE_REF_TO_LOCAL:
			vm.push(value.RefTo(&vm.stack[vm.currentFrame().Base+int(operand)]))
		case bytecode.ASSIGN_GLOBAL:
			vm.assignSlot(vm.modules[vm.moduleTop-1].Base+int(operand), vm.peek(0))
		case bytecode.ACCESS_GLOBAL:
			vm.push(vm.stack[vm.modules[vm.moduleTop-1].Base+int(operand)])
		case bytecode.MAKE_REF_TO_GLOBAL:
			vm.push(value.RefTo(&vm.stack[vm.modules[vm.moduleTop-1].Base+int(operand)]))
		case bytecode.DEREF:
			vm.push(vm.pop().Deref())
		case bytecode.ACCESS_FROM_TOP:
			vm.push(vm.peek(int(operand)))
		case bytecode.ASSIGN_FROM_TOP:
			idx := vm.stackTop - 1 - int(operand)
			vm.assignSlot(idx, vm.peek(0))

		case bytecode.LOAD_FUNCTION_SAME_MODULE:
			name := vm.pop()
			vm.cache.Remove(name.S)
			vm.loadFunction(vm.currentModule, name.S)
		case bytecode.LOAD_FUNCTION_MODULE_INDEX:
			name := vm.pop()
			vm.cache.Remove(name.S)
			vm.loadFunction(int(operand), name.S)
		case bytecode.LOAD_FUNCTION_MODULE_PATH:
			name := vm.pop()
			path := vm.pop()
			vm.cache.Remove(name.S)
			vm.cache.Remove(path.S)
			vm.loadFunctionByPath(path.S, name.S)
		case bytecode.CALL_FUNCTION:
			vm.callFunction()
		case bytecode.CALL_NATIVE:
			name := vm.pop()
			vm.cache.Remove(name.S)
			vm.callNative(name.S)
		case bytecode.RETURN:
			vm.execReturn(int(operand))
		case bytecode.TRAP_RETURN:
			vm.runtimeError("function fell off its end without returning a value")

		case bytecode.INDEX_STRING:
			vm.execIndexString()
		case bytecode.CHECK_STRING_INDEX:
			vm.execCheckStringIndex()
		case bytecode.POP_STRING:
			s := vm.pop()
			vm.cache.Remove(s.S)
		case bytecode.CONCATENATE:
			b, a := vm.pop(), vm.pop()
			vm.push(value.Str(vm.cache.Concat(a.S, b.S)))
			vm.cache.Remove(a.S)
			vm.cache.Remove(b.S)

		case bytecode.MAKE_LIST:
			elems := make([]value.Value, operand)
			for i := int(operand) - 1; i >= 0; i-- {
				elems[i] = vm.pop()
			}
			vm.push(value.List_(true, &value.List{Elements: elems}))
		case bytecode.COPY_LIST:
			v := vm.pop()
			vm.push(value.Copy(vm.cache, v))
		case bytecode.APPEND_LIST:
			elem := vm.pop()
			l := vm.peek(0)
			l.L.Elements = append(l.L.Elements, elem)
		case bytecode.POP_FROM_LIST:
			l := vm.peek(0)
			n := len(l.L.Elements)
			if n == 0 {
				vm.runtimeError("pop from an empty list")
				break
			}
			value.Destroy(vm.cache, l.L.Elements[n-1])
			l.L.Elements = l.L.Elements[:n-1]
		case bytecode.ASSIGN_LIST:
			vm.execAssignList()
		case bytecode.INDEX_LIST:
			vm.execIndexList()
		case bytecode.MAKE_REF_TO_INDEX:
			vm.execMakeRefToIndex()
		case bytecode.CHECK_LIST_INDEX:
			vm.execCheckListIndex()
		case bytecode.ACCESS_LOCAL_LIST:
			vm.push(value.List_(false, vm.stack[vm.currentFrame().Base+int(operand)].L))
		case bytecode.ACCESS_GLOBAL_LIST:
			vm.push(value.List_(false, vm.stack[vm.modules[vm.moduleTop-1].Base+int(operand)].L))
		case bytecode.ASSIGN_LOCAL_LIST:
			vm.assignSlot(vm.currentFrame().Base+int(operand), vm.peek(0))
		case bytecode.ASSIGN_GLOBAL_LIST:
			vm.assignSlot(vm.modules[vm.moduleTop-1].Base+int(operand), vm.peek(0))
		case bytecode.POP_LIST:
			l := vm.pop()
			if l.Tag == value.LIST {
				value.Destroy(vm.cache, l)
			}

		case bytecode.MOVE_LOCAL:
			idx := vm.currentFrame().Base + int(operand)
			vm.push(vm.stack[idx])
			vm.stack[idx] = value.Null()
		case bytecode.MOVE_GLOBAL:
			idx := vm.modules[vm.moduleTop-1].Base + int(operand)
			vm.push(vm.stack[idx])
			vm.stack[idx] = value.Null()
		case bytecode.MOVE_INDEX:
			vm.execMoveIndex()
		case bytecode.SWAP:
			i, j := vm.stackTop-1, vm.stackTop-1-int(operand)
			vm.stack[i], vm.stack[j] = vm.stack[j], vm.stack[i]

		default:
			vm.runtimeError("unimplemented opcode %s", op)
		}
	}
}

// assignSlot overwrites a stack cell that may already own a heap
// resource, releasing the prior string/list before the new value takes
// over — the ownership rule for ASSIGN_*/ASSIGN_FROM_TOP in section 4.6.
func (vm *VM) assignSlot(idx int, v value.Value) {
	prior := vm.stack[idx]
	switch prior.Tag {
	case value.STRING:
		vm.cache.Remove(prior.S)
	case value.LIST:
		value.Destroy(vm.cache, prior)
	}
	vm.stack[idx] = v
}

func (vm *VM) execIntArith(op bytecode.OpCode) {
	b, a := vm.pop(), vm.pop()
	switch op {
	case bytecode.IADD:
		vm.push(value.Int(a.I + b.I))
	case bytecode.ISUB:
		vm.push(value.Int(a.I - b.I))
	case bytecode.IMUL:
		vm.push(value.Int(a.I * b.I))
	case bytecode.IDIV:
		if b.I == 0 {
			vm.runtimeError("integer division by zero")
			return
		}
		vm.push(value.Int(a.I / b.I))
	case bytecode.IMOD:
		if b.I == 0 {
			vm.runtimeError("integer modulo by zero")
			return
		}
		vm.push(value.Int(a.I % b.I))
	}
}

func (vm *VM) execFloatArith(op bytecode.OpCode) {
	b, a := vm.pop(), vm.pop()
	switch op {
	case bytecode.FADD:
		vm.push(value.Float(a.F + b.F))
	case bytecode.FSUB:
		vm.push(value.Float(a.F - b.F))
	case bytecode.FMUL:
		vm.push(value.Float(a.F * b.F))
	case bytecode.FDIV:
		if b.F == 0 {
			vm.runtimeError("float division by zero")
			return
		}
		vm.push(value.Float(a.F / b.F))
	case bytecode.FMOD:
		if b.F == 0 {
			vm.runtimeError("float modulo by zero")
			return
		}
		r := a.F - b.F*float64(int64(a.F/b.F))
		vm.push(value.Float(r))
	}
}

func (vm *VM) execBitwise(op bytecode.OpCode) {
	b, a := vm.pop(), vm.pop()
	if (op == bytecode.SHIFT_LEFT || op == bytecode.SHIFT_RIGHT) && b.I < 0 {
		vm.runtimeError("shift by a negative count")
		return
	}
	switch op {
	case bytecode.SHIFT_LEFT:
		vm.push(value.Int(a.I << uint(b.I)))
	case bytecode.SHIFT_RIGHT:
		vm.push(value.Int(a.I >> uint(b.I)))
	case bytecode.BIT_AND:
		vm.push(value.Int(a.I & b.I))
	case bytecode.BIT_OR:
		vm.push(value.Int(a.I | b.I))
	case bytecode.BIT_XOR:
		vm.push(value.Int(a.I ^ b.I))
	}
}

func (vm *VM) execIndexString() {
	idx := vm.pop()
	s := vm.pop()
	runes := []rune(s.S)
	if idx.I < 0 || int(idx.I) >= len(runes) {
		vm.runtimeError("string index %d out of range (length %d)", idx.I, len(runes))
		vm.cache.Remove(s.S)
		return
	}
	vm.push(value.Str(vm.cache.Insert(string(runes[idx.I]))))
	vm.cache.Remove(s.S)
}

func (vm *VM) execCheckStringIndex() {
	idx := vm.peek(0)
	s := vm.peek(1)
	if idx.I < 0 || int(idx.I) >= len([]rune(s.S)) {
		vm.runtimeError("string index %d out of range (length %d)", idx.I, len([]rune(s.S)))
	}
}

func (vm *VM) execAssignList() {
	val := vm.pop()
	idx := vm.pop()
	l := vm.pop()
	if l.L == nil || idx.I < 0 || int(idx.I) >= len(l.L.Elements) {
		vm.runtimeError("list index %d out of range", idx.I)
		return
	}
	prior := l.L.Elements[idx.I]
	value.Destroy(vm.cache, prior)
	l.L.Elements[idx.I] = val
	vm.push(val)
}

func (vm *VM) execIndexList() {
	idx := vm.pop()
	l := vm.pop()
	if l.L == nil || idx.I < 0 || int(idx.I) >= len(l.L.Elements) {
		vm.runtimeError("list index %d out of range", idx.I)
		return
	}
	vm.push(l.L.Elements[idx.I])
}

func (vm *VM) execMakeRefToIndex() {
	idx := vm.pop()
	l := vm.pop()
	if l.L == nil || idx.I < 0 || int(idx.I) >= len(l.L.Elements) {
		vm.runtimeError("list index %d out of range", idx.I)
		return
	}
	vm.push(value.RefTo(&l.L.Elements[idx.I]))
}

func (vm *VM) execCheckListIndex() {
	idx := vm.peek(0)
	l := vm.peek(1)
	if l.L == nil || idx.I < 0 || int(idx.I) >= len(l.L.Elements) {
		n := 0
		if l.L != nil {
			n = len(l.L.Elements)
		}
		vm.runtimeError("list index %d out of range (length %d)", idx.I, n)
	}
}

func (vm *VM) execMoveIndex() {
	idx := vm.pop()
	l := vm.pop()
	if l.L == nil || idx.I < 0 || int(idx.I) >= len(l.L.Elements) {
		vm.runtimeError("list index %d out of range", idx.I)
		return
	}
	vm.push(l.L.Elements[idx.I])
	l.L.Elements[idx.I] = value.Null()
}

func (vm *VM) loadFunction(moduleIdx int, name string) {
	if moduleIdx < 0 || moduleIdx >= len(vm.runtime) {
		vm.runtimeError("module index %d out of range", moduleIdx)
		return
	}
	fn, ok := vm.runtime[moduleIdx].FunctionByName(name)
	if !ok {
		vm.runtimeError("function %q is not defined in module %q", name, vm.runtime[moduleIdx].Name)
		return
	}
	vm.push(value.Func(&value.FunctionHandle{ModuleIndex: moduleIdx, FuncIndex: fn.FuncIndex, Name: fn.Name}))
}

func (vm *VM) loadFunctionByPath(path, name string) {
	for i, m := range vm.runtime {
		if m.Name == path {
			vm.loadFunction(i, name)
			return
		}
	}
	vm.runtimeError("module %q is not loaded", path)
}

func (vm *VM) callFunction() {
	handle := vm.pop()
	if handle.Tag != value.FUNCTION || handle.Fn == nil {
		vm.runtimeError("attempt to call a non-function value")
		return
	}
	fn, ok := vm.runtime[handle.Fn.ModuleIndex].FunctionByName(handle.Fn.Name)
	if !ok {
		vm.runtimeError("function %q vanished from module %q", handle.Fn.Name, vm.runtime[handle.Fn.ModuleIndex].Name)
		return
	}
	base := vm.stackTop - (fn.Arity + 1)
	vm.pushFrame(CallFrame{
		Base:         base,
		ReturnChunk:  vm.currentChunk,
		ReturnIP:     vm.ip,
		ReturnModule: vm.currentModule,
		ModuleIndex:  handle.Fn.ModuleIndex,
		FuncIndex:    fn.FuncIndex,
		Name:         fn.Name,
	})
	vm.currentChunk = fn.Code
	vm.currentModule = handle.Fn.ModuleIndex
	vm.ip = 0
}

func (vm *VM) execReturn(localsToPop int) {
	result := vm.pop()
	for i := 0; i < localsToPop; i++ {
		value.Destroy(vm.cache, vm.pop())
	}
	frame := vm.currentFrame()
	vm.currentChunk = frame.ReturnChunk
	vm.ip = frame.ReturnIP
	vm.currentModule = frame.ReturnModule
	vm.frameTop--
	vm.stackTop = frame.Base
	vm.push(result)
}

func (vm *VM) callNative(name string) {
	n, ok := vm.natives.Lookup(name)
	if !ok {
		vm.runtimeError("native function %q is not registered", name)
		return
	}
	argsBase := vm.stackTop - n.Arity
	args := vm.stack[argsBase:vm.stackTop]
	result := n.Handler(vm, args)
	vm.stackTop = argsBase
	vm.push(result)
}
