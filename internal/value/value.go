// Package value implements the VM's tagged-union Value representation,
// its heap-allocated List type, and the refcounted string cache —
// exactly the three moving parts the ownership discipline in the
// virtual machine has to keep consistent without a tracing GC.
package value

import (
	"fmt"
	"strings"
)

// Tag discriminates the Value sum.
type Tag int

const (
	INT Tag = iota
	FLOAT
	BOOL
	NULL
	INVALID
	STRING
	LIST
	LIST_REF
	REF
	FUNCTION
)

func (t Tag) String() string {
	switch t {
	case INT:
		return "int"
	case FLOAT:
		return "float"
	case BOOL:
		return "bool"
	case NULL:
		return "null"
	case STRING:
		return "string"
	case LIST, LIST_REF:
		return "list"
	case REF:
		return "ref"
	case FUNCTION:
		return "function"
	default:
		return "invalid"
	}
}

// List is the heap-allocated backing store a LIST value owns and a
// LIST_REF value aliases without owning.
type List struct {
	Elements []Value
}

// FunctionHandle identifies a compiled function by stable indices; the
// VM resolves it against its loaded modules at call time rather than
// holding a live pointer, so Value never needs to import the bytecode
// or runtime packages.
type FunctionHandle struct {
	ModuleIndex int
	FuncIndex   int
	Name        string
}

// Value is the VM's tagged union. Only the field matching Tag is
// meaningful at any moment — this mirrors a C union in a systems
// target without needing unsafe.
type Value struct {
	Tag Tag

	I   int32
	F   float64
	B   bool
	S   string
	L   *List
	Ref *Value
	Fn  *FunctionHandle
}

func Int(i int32) Value     { return Value{Tag: INT, I: i} }
func Float(f float64) Value { return Value{Tag: FLOAT, F: f} }
func Bool(b bool) Value     { return Value{Tag: BOOL, B: b} }
func Null() Value           { return Value{Tag: NULL} }
func Invalid() Value        { return Value{Tag: INVALID} }
func Str(s string) Value    { return Value{Tag: STRING, S: s} }

func List_(owning bool, l *List) Value {
	if owning {
		return Value{Tag: LIST, L: l}
	}
	return Value{Tag: LIST_REF, L: l}
}

func RefTo(cell *Value) Value { return Value{Tag: REF, Ref: cell} }

func Func(h *FunctionHandle) Value { return Value{Tag: FUNCTION, Fn: h} }

// Deref follows a single level of REF, returning v unchanged otherwise.
// Per the data-model invariant, a REF never targets another REF, so one
// level is always sufficient.
func (v Value) Deref() Value {
	if v.Tag == REF && v.Ref != nil {
		return *v.Ref
	}
	return v
}

// Truthy implements the VM's `operator bool()` contract per tag.
func (v Value) Truthy() bool {
	switch v.Tag {
	case INT:
		return v.I != 0
	case FLOAT:
		return v.F != 0
	case BOOL:
		return v.B
	case STRING:
		return len(v.S) > 0
	case LIST, LIST_REF:
		return v.L != nil && len(v.L.Elements) > 0
	case REF:
		return v.Deref().Truthy()
	case NULL, INVALID:
		return false
	default:
		return false
	}
}

// Repr renders a Value the way the native print function and list
// printing do: strings unquoted, lists recursively joined by ", ",
// functions as "<function NAME>", refs as "ref to ...".
func (v Value) Repr() string {
	switch v.Tag {
	case INT:
		return fmt.Sprintf("%d", v.I)
	case FLOAT:
		return fmt.Sprintf("%g", v.F)
	case BOOL:
		if v.B {
			return "true"
		}
		return "false"
	case NULL:
		return "null"
	case STRING:
		return v.S
	case LIST, LIST_REF:
		var sb strings.Builder
		if v.Tag == LIST_REF {
			sb.WriteString("ref to ")
		}
		sb.WriteString("[")
		if v.L != nil {
			for i, e := range v.L.Elements {
				if i > 0 {
					sb.WriteString(", ")
				}
				sb.WriteString(e.Repr())
			}
		}
		sb.WriteString("]")
		return sb.String()
	case REF:
		if v.Ref == nil {
			return "ref to <nil>"
		}
		return "ref to " + v.Ref.Repr()
	case FUNCTION:
		if v.Fn == nil {
			return "<function>"
		}
		return fmt.Sprintf("<function %s>", v.Fn.Name)
	default:
		return "<invalid>"
	}
}

// Equal implements the VM's structural equality, transparently
// dereferencing a single level of REF on either side, per §4.6.
func Equal(a, b Value) bool {
	a, b = a.Deref(), b.Deref()
	if a.Tag != b.Tag {
		return false
	}
	switch a.Tag {
	case INT:
		return a.I == b.I
	case FLOAT:
		return a.F == b.F
	case BOOL:
		return a.B == b.B
	case NULL:
		return true
	case STRING:
		return a.S == b.S
	case LIST, LIST_REF:
		if a.L == nil || b.L == nil {
			return a.L == b.L
		}
		if len(a.L.Elements) != len(b.L.Elements) {
			return false
		}
		for i := range a.L.Elements {
			if !Equal(a.L.Elements[i], b.L.Elements[i]) {
				return false
			}
		}
		return true
	case FUNCTION:
		return a.Fn == b.Fn
	default:
		return false
	}
}

// Less implements the VM's ordering contract: numeric and lexicographic
// for int/float/string, length-then-elementwise for lists. BOOL is
// deliberately unordered (see SPEC_FULL.md's Open Question resolutions,
// item 2): Less between two bools is always false, whatever their
// values, and so is Greater.
func Less(a, b Value) bool {
	a, b = a.Deref(), b.Deref()
	if a.Tag != b.Tag {
		return false
	}
	switch a.Tag {
	case INT:
		return a.I < b.I
	case FLOAT:
		return a.F < b.F
	case STRING:
		return a.S < b.S
	case BOOL:
		return false
	case LIST, LIST_REF:
		if a.L == nil || b.L == nil {
			return false
		}
		if len(a.L.Elements) != len(b.L.Elements) {
			return len(a.L.Elements) < len(b.L.Elements)
		}
		for i := range a.L.Elements {
			if !Equal(a.L.Elements[i], b.L.Elements[i]) {
				return Less(a.L.Elements[i], b.L.Elements[i])
			}
		}
		return false
	default:
		return false
	}
}

func Greater(a, b Value) bool {
	a, b = a.Deref(), b.Deref()
	if a.Tag == BOOL && b.Tag == BOOL {
		return false
	}
	return Less(b, a)
}

// Copy performs the VM's recursive list/string clone used by COPY_LIST:
// strings are re-interned through the cache, nested lists are cloned
// element by element, everything else is returned unchanged.
func Copy(cache *StringCache, v Value) Value {
	switch v.Tag {
	case STRING:
		return Str(cache.Insert(v.S))
	case LIST, LIST_REF:
		if v.L == nil {
			return List_(true, &List{})
		}
		elems := make([]Value, len(v.L.Elements))
		for i, e := range v.L.Elements {
			elems[i] = Copy(cache, e)
		}
		return List_(true, &List{Elements: elems})
	default:
		return v
	}
}

// Destroy recursively releases a value's owned resources: a STRING is
// removed from the cache, a LIST has every element destroyed (a
// LIST_REF, not owning its buffer, is a no-op).
func Destroy(cache *StringCache, v Value) {
	switch v.Tag {
	case STRING:
		cache.Remove(v.S)
	case LIST:
		if v.L != nil {
			for _, e := range v.L.Elements {
				Destroy(cache, e)
			}
		}
	}
}
