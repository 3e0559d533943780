package gen

import (
	"strconv"
	"strings"
)

// TypeKind discriminates the target-neutral type IR.
type TypeKind int

const (
	Unknown TypeKind = iota
	Void
	Null
	String
	Number
	Boolean
	// Binary is an opaque binary payload (string/binary).
	Binary
	// Time is a temporal value (string/date-time with date parsing on).
	Time
	StringLiteral
	NumberLiteral
	BoolLiteral
	Array
	// Map is a string-keyed map of Elem.
	Map
	OpaqueObject
	Record
	Union
	Intersection
	// Ref names a top-level declaration.
	Ref
)

// Type is a node of the mapped type tree.
type Type struct {
	Kind TypeKind
	// Name is the declaration name for Ref.
	Name string
	// Literal holds a string, float64 or bool for the literal kinds.
	Literal  any
	Elem     *Type
	Fields   []*Field
	Variants []*Type
}

// Field is a Record member in source declaration order.
type Field struct {
	Name        string
	Type        *Type
	Optional    bool
	Description string
}

func Prim(k TypeKind) *Type { return &Type{Kind: k} }

func RefTo(name string) *Type { return &Type{Kind: Ref, Name: name} }

func ArrayOf(elem *Type) *Type { return &Type{Kind: Array, Elem: elem} }

func MapOf(elem *Type) *Type { return &Type{Kind: Map, Elem: elem} }

func UnionOf(variants ...*Type) *Type { return &Type{Kind: Union, Variants: variants} }

func IntersectionOf(variants ...*Type) *Type { return &Type{Kind: Intersection, Variants: variants} }

func StringLit(s string) *Type { return &Type{Kind: StringLiteral, Literal: s} }

func NumberLit(f float64) *Type { return &Type{Kind: NumberLiteral, Literal: f} }

func BoolLit(b bool) *Type { return &Type{Kind: BoolLiteral, Literal: b} }

// IsNullable reports whether t is a union with a null member.
func (t *Type) IsNullable() bool {
	if t == nil || t.Kind != Union {
		return false
	}
	for _, v := range t.Variants {
		if v.Kind == Null {
			return true
		}
	}
	return false
}

// NonNull returns t without its null members. A union left with a single
// member collapses to that member.
func (t *Type) NonNull() *Type {
	if !t.IsNullable() {
		return t
	}
	var rest []*Type
	for _, v := range t.Variants {
		if v.Kind != Null {
			rest = append(rest, v)
		}
	}
	switch len(rest) {
	case 0:
		return Prim(Null)
	case 1:
		return rest[0]
	}
	return UnionOf(rest...)
}

// String renders t in a compact structural notation, e.g.
// `{ a: string; b?: 1 | 2 }` or `(string | number)[]`.
func (t *Type) String() string {
	var b strings.Builder
	t.write(&b)
	return b.String()
}

func (t *Type) write(b *strings.Builder) {
	if t == nil {
		b.WriteString("void")
		return
	}
	switch t.Kind {
	case Unknown:
		b.WriteString("unknown")
	case Void:
		b.WriteString("void")
	case Null:
		b.WriteString("null")
	case String:
		b.WriteString("string")
	case Number:
		b.WriteString("number")
	case Boolean:
		b.WriteString("boolean")
	case Binary:
		b.WriteString("binary")
	case Time:
		b.WriteString("time")
	case StringLiteral:
		b.WriteString(strconv.Quote(t.Literal.(string)))
	case NumberLiteral:
		b.WriteString(strconv.FormatFloat(t.Literal.(float64), 'f', -1, 64))
	case BoolLiteral:
		b.WriteString(strconv.FormatBool(t.Literal.(bool)))
	case Array:
		if k := t.Elem.kind(); k == Union || k == Intersection {
			b.WriteString("(")
			t.Elem.write(b)
			b.WriteString(")")
		} else {
			t.Elem.write(b)
		}
		b.WriteString("[]")
	case Map:
		b.WriteString("map<string, ")
		t.Elem.write(b)
		b.WriteString(">")
	case OpaqueObject:
		b.WriteString("object")
	case Record:
		if len(t.Fields) == 0 {
			b.WriteString("{}")
			return
		}
		b.WriteString("{ ")
		for i, f := range t.Fields {
			if i > 0 {
				b.WriteString("; ")
			}
			b.WriteString(f.Name)
			if f.Optional {
				b.WriteString("?")
			}
			b.WriteString(": ")
			f.Type.write(b)
		}
		b.WriteString(" }")
	case Union, Intersection:
		sep := " | "
		if t.Kind == Intersection {
			sep = " & "
		}
		for i, v := range t.Variants {
			if i > 0 {
				b.WriteString(sep)
			}
			v.write(b)
		}
	case Ref:
		b.WriteString(t.Name)
	}
}

func (t *Type) kind() TypeKind {
	if t == nil {
		return Void
	}
	return t.Kind
}
