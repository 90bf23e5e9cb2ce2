package ast

import "fmt"

// PrimitiveKind enumerates the built-in scalar kinds.
type PrimitiveKind string

const (
	IntKind    PrimitiveKind = "int"
	FloatKind  PrimitiveKind = "float"
	BoolKind   PrimitiveKind = "bool"
	StringKind PrimitiveKind = "string"
	NullKind   PrimitiveKind = "null"
)

// Type is the resolved-type sum: Primitive, UserDefined, List, Tuple, or
// TypeOf. It is a closed set, represented as an interface with a private
// marker method rather than a class hierarchy.
type Type interface {
	typeNode()
	String() string
}

// Primitive is one of int/float/bool/string/null, optionally qualified.
type Primitive struct {
	Kind    PrimitiveKind
	IsConst bool
	IsRef   bool
}

func (Primitive) typeNode() {}
func (p Primitive) String() string {
	s := string(p.Kind)
	if p.IsRef {
		s = "ref " + s
	}
	if p.IsConst {
		s = "const " + s
	}
	return s
}

// UserDefined names a class type. ClassRef is filled by the resolver
// once the class declaration has been located.
type UserDefined struct {
	Name     string
	ClassRef *ClassStmt
}

func (UserDefined) typeNode()      {}
func (u UserDefined) String() string { return u.Name }

// List is `[T]`.
type List struct {
	Element Type
}

func (List) typeNode() {}
func (l List) String() string {
	if l.Element == nil {
		return "[]"
	}
	return fmt.Sprintf("[%s]", l.Element)
}

// Tuple is `{T, ...}`.
type Tuple struct {
	Elements []Type
}

func (Tuple) typeNode() {}
func (t Tuple) String() string {
	s := "{"
	for i, e := range t.Elements {
		if i > 0 {
			s += ", "
		}
		s += e.String()
	}
	return s + "}"
}

// TypeOf is `typeof expr`, resolved once the resolver has determined
// expr's own type.
type TypeOf struct {
	Expr Expr
}

func (TypeOf) typeNode()        {}
func (TypeOf) String() string { return "typeof(...)" }

// SameKind reports whether two types are structurally equal for the
// purposes of constant folding and assignment compatibility checks.
func SameKind(a, b Type) bool {
	pa, aok := a.(Primitive)
	pb, bok := b.(Primitive)
	if aok && bok {
		return pa.Kind == pb.Kind
	}
	return false
}
