package vm

import (
	"bufio"
	"fmt"
	"os"
	"strconv"

	"github.com/google/uuid"

	"ember/internal/value"
)

// nativeFunc is the fixed native table's entry shape: a name, its
// arity, and a handler operating directly on the VM's string cache and
// the argument slice the caller already sliced off the value stack.
// The resolver checks only the argument count against CallExpr; each
// handler checks the kinds it needs and reports a runtime error on a
// mismatch.
type nativeFunc struct {
	Name    string
	Arity   int
	Handler func(vm *VM, args []value.Value) value.Value
}

// NativeTable is the VM's fixed, closed set of built-in functions —
// there is no dynamic registration path, matching the "no FFI beyond a
// fixed native table" non-goal.
type NativeTable struct {
	byName map[string]nativeFunc
	stdin  *bufio.Reader
}

func NewNativeTable() *NativeTable {
	t := &NativeTable{byName: make(map[string]nativeFunc), stdin: bufio.NewReader(os.Stdin)}
	for _, n := range []nativeFunc{
		{Name: "print", Arity: 1, Handler: nativePrint},
		{Name: "int", Arity: 1, Handler: nativeInt},
		{Name: "float", Arity: 1, Handler: nativeFloat},
		{Name: "string", Arity: 1, Handler: nativeString},
		{Name: "readline", Arity: 0, Handler: t.nativeReadline},
		{Name: "size", Arity: 1, Handler: nativeSize},
		{Name: "fill_trivial", Arity: 2, Handler: nativeFillTrivial},
		{Name: "%resize_list_trivial", Arity: 2, Handler: nativeResizeListTrivial},
		{Name: "uuid", Arity: 0, Handler: nativeUUID},
	} {
		t.byName[n.Name] = n
	}
	return t
}

func (t *NativeTable) Lookup(name string) (nativeFunc, bool) {
	n, ok := t.byName[name]
	return n, ok
}

func nativePrint(vm *VM, args []value.Value) value.Value {
	fmt.Println(args[0].Repr())
	return value.Null()
}

// nativeInt converts its argument to INT. A REF argument is
// dereferenced and re-dispatched rather than forwarded unconverted —
// the fix for the "native_float forwards to native_int on a REF
// operand" typo documented in SPEC_FULL.md's Open Question resolutions,
// applied symmetrically to native_int for consistency.
func nativeInt(vm *VM, args []value.Value) value.Value {
	a := args[0].Deref()
	switch a.Tag {
	case value.INT:
		return a
	case value.FLOAT:
		return value.Int(int32(a.F))
	case value.BOOL:
		if a.B {
			return value.Int(1)
		}
		return value.Int(0)
	case value.STRING:
		n, err := strconv.ParseInt(a.S, 10, 32)
		if err != nil {
			vm.runtimeError("int(%q): not a valid integer literal", a.S)
			return value.Invalid()
		}
		return value.Int(int32(n))
	default:
		vm.runtimeError("int(): cannot convert a %s", a.Tag)
		return value.Invalid()
	}
}

// nativeFloat is native_float. Per the resolved Open Question, a REF
// argument is dereferenced and re-dispatched as float rather than
// (as in the source this was distilled from) silently forwarded to
// native_int.
func nativeFloat(vm *VM, args []value.Value) value.Value {
	a := args[0].Deref()
	switch a.Tag {
	case value.FLOAT:
		return a
	case value.INT:
		return value.Float(float64(a.I))
	case value.STRING:
		f, err := strconv.ParseFloat(a.S, 64)
		if err != nil {
			vm.runtimeError("float(%q): not a valid float literal", a.S)
			return value.Invalid()
		}
		return value.Float(f)
	default:
		vm.runtimeError("float(): cannot convert a %s", a.Tag)
		return value.Invalid()
	}
}

func nativeString(vm *VM, args []value.Value) value.Value {
	a := args[0].Deref()
	return value.Str(vm.cache.Insert(a.Repr()))
}

func (t *NativeTable) nativeReadline(vm *VM, args []value.Value) value.Value {
	line, err := t.stdin.ReadString('\n')
	if err != nil && line == "" {
		return value.Str(vm.cache.Insert(""))
	}
	for len(line) > 0 && (line[len(line)-1] == '\n' || line[len(line)-1] == '\r') {
		line = line[:len(line)-1]
	}
	return value.Str(vm.cache.Insert(line))
}

func nativeSize(vm *VM, args []value.Value) value.Value {
	a := args[0].Deref()
	switch a.Tag {
	case value.STRING:
		return value.Int(int32(len([]rune(a.S))))
	case value.LIST, value.LIST_REF:
		if a.L == nil {
			return value.Int(0)
		}
		return value.Int(int32(len(a.L.Elements)))
	default:
		vm.runtimeError("size(): argument has no size (%s)", a.Tag)
		return value.Invalid()
	}
}

// nativeFillTrivial fills every cell of a list argument with a copy of
// a trivial (non-owning-resource) value — int/float/bool/null only, the
// same restriction the name signals.
func nativeFillTrivial(vm *VM, args []value.Value) value.Value {
	l := args[0].Deref()
	fillWith := args[1].Deref()
	if l.Tag != value.LIST && l.Tag != value.LIST_REF {
		vm.runtimeError("fill_trivial(): first argument is not a list")
		return value.Invalid()
	}
	if fillWith.Tag == value.STRING || fillWith.Tag == value.LIST || fillWith.Tag == value.LIST_REF {
		vm.runtimeError("fill_trivial(): fill value must be trivial (int/float/bool/null)")
		return value.Invalid()
	}
	for i := range l.L.Elements {
		l.L.Elements[i] = fillWith
	}
	return value.Null()
}

// nativeResizeListTrivial is the internal helper the compiler emits for
// `[expr; n]` growth beyond its initial MAKE_LIST size: it truncates the
// list, or extends it with copies (value.Copy) of its first element.
func nativeResizeListTrivial(vm *VM, args []value.Value) value.Value {
	l := args[0].Deref()
	newSize := args[1].Deref()
	if l.Tag != value.LIST {
		vm.runtimeError("%%resize_list_trivial(): argument is not an owning list")
		return value.Invalid()
	}
	n := int(newSize.I)
	if n < 0 {
		vm.runtimeError("%%resize_list_trivial(): negative size %d", n)
		return value.Invalid()
	}
	cur := l.L.Elements
	if n <= len(cur) {
		l.L.Elements = cur[:n]
	} else {
		grown := make([]value.Value, n)
		copy(grown, cur)
		for i := len(cur); i < n && len(cur) > 0; i++ {
			grown[i] = value.Copy(vm.cache, cur[0])
		}
		l.L.Elements = grown
	}
	return l
}

func nativeUUID(vm *VM, args []value.Value) value.Value {
	return value.Str(vm.cache.Insert(uuid.NewString()))
}
