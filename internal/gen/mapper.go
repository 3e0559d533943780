package gen

import (
	"fmt"
	"strconv"

	"github.com/spf13/cast"

	"github.com/mark3labs/apigen/internal/spec"
)

// Decl is a top-level type declaration.
type Decl interface {
	DeclName() string
	decl()
}

// EnumDecl is a named closed set of string constants.
type EnumDecl struct {
	Name        string
	Description string
	Members     []EnumMember
}

type EnumMember struct {
	Name  string
	Value string
}

// AliasDecl names a mapped type.
type AliasDecl struct {
	Name        string
	Description string
	Type        *Type
}

func (d *EnumDecl) DeclName() string  { return d.Name }
func (d *AliasDecl) DeclName() string { return d.Name }
func (*EnumDecl) decl()               {}
func (*AliasDecl) decl()              {}

// MapType maps a schema node to a type. A nil schema maps to Void. Shapes
// with no better mapping become Unknown; only an unresolvable non-named
// reference is an error.
func (c *Context) MapType(s *spec.Schema) (*Type, error) {
	if s == nil {
		return Prim(Void), nil
	}
	t, err := c.mapType(s)
	if err != nil {
		return nil, err
	}
	if s.Nullable && t.Kind != Unknown && !t.IsNullable() {
		t = UnionOf(t, Prim(Null))
	}
	return t, nil
}

func (c *Context) mapType(s *spec.Schema) (*Type, error) {
	switch s.Kind {
	case spec.KindRef:
		return c.mapRef(s.Ref)
	case spec.KindOneOf, spec.KindAnyOf:
		vs, err := c.mapAll(s.Variants)
		if err != nil {
			return nil, err
		}
		return UnionOf(vs...), nil
	case spec.KindAllOf:
		vs, err := c.mapAll(s.Variants)
		if err != nil {
			return nil, err
		}
		return IntersectionOf(vs...), nil
	case spec.KindTypeList:
		branches := make([]*spec.Schema, 0, len(s.Types))
		for _, typ := range s.Types {
			if typ == "null" {
				branches = append(branches, &spec.Schema{Kind: spec.KindNull, Type: "null"})
				continue
			}
			b := s.WithType(typ)
			b.Nullable = false
			branches = append(branches, b)
		}
		return c.mapType(&spec.Schema{Kind: spec.KindOneOf, Variants: branches})
	}

	if len(s.Enum) > 0 {
		if t, ok := c.inlineEnum(s); ok {
			return t, nil
		}
	}

	if len(s.Properties) > 0 {
		return c.mapRecord(s)
	}

	switch s.Kind {
	case spec.KindObject:
		if s.AdditionalProperties != nil {
			elem, err := c.MapType(s.AdditionalProperties)
			if err != nil {
				return nil, err
			}
			return MapOf(elem), nil
		}
		return Prim(OpaqueObject), nil
	case spec.KindBoolean:
		return Prim(Boolean), nil
	case spec.KindNumber:
		return Prim(Number), nil
	case spec.KindString:
		switch {
		case s.Format == "binary":
			return Prim(Binary), nil
		case s.Format == "date-time" && c.Opts.ParseDates:
			return Prim(Time), nil
		}
		return Prim(String), nil
	case spec.KindArray:
		elem, err := c.MapType(s.Items)
		if err != nil {
			return nil, err
		}
		return ArrayOf(elem), nil
	case spec.KindNull:
		return Prim(Null), nil
	case spec.KindUnsupported:
		c.log.Warn("unknown schema type", "type", s.Type)
		return Prim(Unknown), nil
	case spec.KindAny:
		return Prim(Unknown), nil
	}
	return Prim(Unknown), nil
}

func (c *Context) mapAll(schemas []*spec.Schema) ([]*Type, error) {
	out := make([]*Type, 0, len(schemas))
	for _, s := range schemas {
		t, err := c.MapType(s)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// mapRef keeps named schemas as references and expands every other pointer.
// A pointer met again while it is still being expanded is hoisted into a
// declaration of its own, and every use of it becomes a reference to that.
func (c *Context) mapRef(ref string) (*Type, error) {
	if name, ok := spec.SchemaName(ref); ok {
		return RefTo(NormalizeIdentifier(name, true)), nil
	}
	if d, ok := c.hoist.byRef[ref]; ok {
		return RefTo(d.Name), nil
	}
	if _, busy := c.expanding[ref]; busy {
		d := c.hoist.declFor(ref)
		c.log.Debug("cyclic reference hoisted", "ref", ref, "name", d.Name)
		return RefTo(d.Name), nil
	}
	target, ok := c.Doc.ResolveSchema(ref)
	if !ok {
		c.log.Warn("ref not found", "ref", ref)
		return nil, fmt.Errorf("%w: %s", ErrUnresolvedRef, ref)
	}
	c.expanding[ref] = struct{}{}
	t, err := c.MapType(target)
	delete(c.expanding, ref)
	if err != nil {
		return nil, err
	}
	if d, ok := c.hoist.byRef[ref]; ok {
		d.Type = t
		return RefTo(d.Name), nil
	}
	return t, nil
}

func (c *Context) mapRecord(s *spec.Schema) (*Type, error) {
	rec := &Type{Kind: Record, Fields: make([]*Field, 0, len(s.Properties))}
	for _, p := range s.Properties {
		ft, err := c.MapType(p.Schema)
		if err != nil {
			return nil, fmt.Errorf("property %q: %w", p.Name, err)
		}
		f := &Field{Name: p.Name, Type: ft, Optional: !s.IsRequired(p.Name)}
		if p.Schema != nil {
			f.Description = p.Schema.Description
		}
		rec.Fields = append(rec.Fields, f)
	}
	return rec, nil
}

// inlineEnum maps an enum constraint to a literal union. Null and empty
// values are dropped; the kind is inferred from the values when the schema
// declares none. ok is false when nothing usable remains.
func (c *Context) inlineEnum(s *spec.Schema) (*Type, bool) {
	var values []any
	for _, v := range s.Enum {
		if v == nil || v == "" {
			continue
		}
		values = append(values, v)
	}
	if len(values) == 0 {
		return nil, false
	}

	typ, isArray := s.Type, s.Kind == spec.KindArray
	if isArray {
		typ = ""
		if s.Items != nil {
			typ = s.Items.Type
		}
	}
	if typ == "" {
		typ = inferEnumType(values)
	}

	var lits []*Type
	switch typ {
	case "string":
		seen := make(map[string]struct{})
		for _, v := range values {
			str := cast.ToString(v)
			if _, dup := seen[str]; dup {
				continue
			}
			seen[str] = struct{}{}
			lits = append(lits, StringLit(str))
		}
	case "number":
		seen := make(map[float64]struct{})
		for _, v := range values {
			f, err := cast.ToFloat64E(v)
			if err != nil {
				c.log.Warn("non-numeric value in numeric enum", "value", v)
				continue
			}
			if _, dup := seen[f]; dup {
				continue
			}
			seen[f] = struct{}{}
			lits = append(lits, NumberLit(f))
		}
	case "boolean":
		var hasTrue, hasFalse bool
		for _, v := range values {
			hasTrue = hasTrue || v == true
			hasFalse = hasFalse || v == false
		}
		if hasTrue {
			lits = append(lits, BoolLit(true))
		}
		if hasFalse {
			lits = append(lits, BoolLit(false))
		}
	default:
		c.log.Warn("enum with unknown type", "type", strconv.Quote(typ))
		return nil, false
	}
	if len(lits) == 0 {
		return nil, false
	}

	t := lits[0]
	if len(lits) > 1 {
		t = UnionOf(lits...)
	}
	if isArray {
		t = ArrayOf(t)
	}
	return t, true
}

func inferEnumType(values []any) string {
	var str, num, boolean int
	for _, v := range values {
		switch v.(type) {
		case string:
			str++
		case float64:
			num++
		case bool:
			boolean++
		}
	}
	switch len(values) {
	case str:
		return "string"
	case num:
		return "number"
	case boolean:
		return "boolean"
	}
	return ""
}

// MapNamed maps a top-level named schema. A schema whose enum values are all
// strings becomes an EnumDecl unless inline enums are requested; anything
// else becomes an AliasDecl.
func (c *Context) MapNamed(name string, s *spec.Schema) (Decl, error) {
	id := NormalizeIdentifier(name, true)
	if values, ok := stringEnum(s); ok && !c.Opts.InlineEnums {
		d := &EnumDecl{Name: id, Description: s.Description}
		seen := make(map[string]struct{})
		names := make(map[string]int)
		dropped := false
		for _, v := range values {
			if v == "" {
				dropped = true
				continue
			}
			if _, dup := seen[v]; dup {
				continue
			}
			seen[v] = struct{}{}
			member := upperFirst(NormalizeIdentifier(v, false))
			if n := names[member]; n > 0 {
				names[member] = n + 1
				member = fmt.Sprintf("%s_%d", member, n+1)
			} else {
				names[member] = 1
			}
			d.Members = append(d.Members, EnumMember{Name: member, Value: v})
		}
		if dropped {
			c.log.Warn("enum has empty values", "schema", name)
		}
		return d, nil
	}

	t, err := c.MapType(s)
	if err != nil {
		return nil, err
	}
	return &AliasDecl{Name: id, Description: s.Description, Type: t}, nil
}

func stringEnum(s *spec.Schema) ([]string, bool) {
	if s == nil || len(s.Enum) == 0 {
		return nil, false
	}
	out := make([]string, 0, len(s.Enum))
	for _, v := range s.Enum {
		str, ok := v.(string)
		if !ok {
			return nil, false
		}
		out = append(out, str)
	}
	return out, true
}
