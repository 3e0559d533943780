package spec

import (
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Document model shared by the pruner, the type mapper and the route assembler.
// Paths, properties and media types keep source declaration order.

type HttpMethod string

const (
	GET     HttpMethod = "get"
	POST    HttpMethod = "post"
	PUT     HttpMethod = "put"
	PATCH   HttpMethod = "patch"
	DELETE  HttpMethod = "delete"
	HEAD    HttpMethod = "head"
	OPTIONS HttpMethod = "options"
	TRACE   HttpMethod = "trace"
)

// Methods lists HTTP methods in the order operations are visited.
var Methods = []HttpMethod{GET, POST, PUT, PATCH, DELETE, HEAD, OPTIONS, TRACE}

// ParseMethod reports the HttpMethod for a lower- or upper-case name.
func ParseMethod(s string) (HttpMethod, bool) {
	for _, m := range Methods {
		if string(m) == strings.ToLower(s) {
			return m, true
		}
	}
	return "", false
}

type Document struct {
	OpenAPI string
	Info    Info
	Servers []Server
	Paths   []*PathItem
	// Schemas holds components.schemas by name.
	Schemas map[string]*Schema

	root *yaml.Node
}

type Info struct {
	Title       string
	Version     string
	Description string
}

type Server struct {
	URL         string
	Description string
}

// SchemaNames returns the named schemas sorted by name.
func (d *Document) SchemaNames() []string {
	names := make([]string, 0, len(d.Schemas))
	for name := range d.Schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Path returns the path item for a URL template, or nil.
func (d *Document) Path(path string) *PathItem {
	for _, p := range d.Paths {
		if p.Path == path {
			return p
		}
	}
	return nil
}

type PathItem struct {
	Path        string
	Ref         string
	Summary     string
	Description string
	Parameters  []*Parameter
	Operations  map[HttpMethod]*Operation
}

// Each calls fn for every operation in method order.
func (p *PathItem) Each(fn func(HttpMethod, *Operation)) {
	for _, m := range Methods {
		if op, ok := p.Operations[m]; ok && op != nil {
			fn(m, op)
		}
	}
}

type Operation struct {
	OperationID string
	Summary     string
	Description string
	Tags        []string
	Deprecated  bool
	Parameters  []*Parameter
	RequestBody *RequestBody
	Responses   []*Response
}

// Parameter is either a reference (Ref set) or an inline parameter.
type Parameter struct {
	Ref         string
	Name        string
	In          string // path|query|header|cookie
	Description string
	Required    bool
	Schema      *Schema
}

type RequestBody struct {
	Ref         string
	Description string
	Required    bool
	Content     []*MediaType
}

type Response struct {
	Ref         string
	Status      string // 200, 4xx, default
	Description string
	Content     []*MediaType
}

type MediaType struct {
	Type   string
	Schema *Schema
}

// SchemaKind discriminates the Schema variants.
type SchemaKind int

const (
	KindAny SchemaKind = iota
	KindRef
	KindOneOf
	KindAnyOf
	KindAllOf
	KindString
	KindNumber
	KindBoolean
	KindNull
	KindObject
	KindArray
	// KindTypeList is a schema whose type is a list of primitive kinds.
	KindTypeList
	// KindUnsupported carries a type name no other kind covers (e.g. "file").
	KindUnsupported
)

var kindNames = map[SchemaKind]string{
	KindAny:         "any",
	KindRef:         "ref",
	KindOneOf:       "oneOf",
	KindAnyOf:       "anyOf",
	KindAllOf:       "allOf",
	KindString:      "string",
	KindNumber:      "number",
	KindBoolean:     "boolean",
	KindNull:        "null",
	KindObject:      "object",
	KindArray:       "array",
	KindTypeList:    "typeList",
	KindUnsupported: "unsupported",
}

func (k SchemaKind) String() string { return kindNames[k] }

// Schema is a decoded schema node. Kind selects which fields are meaningful:
// Ref for KindRef, Variants for the composition kinds, Types for KindTypeList,
// Items for KindArray and Properties/AdditionalProperties for KindObject.
// Enum, Format and Nullable may accompany any typed kind.
type Schema struct {
	Kind SchemaKind
	// Type is the declared type name with integer folded into number.
	Type string

	Ref      string
	Variants []*Schema
	Types    []string

	Format   string
	Enum     []any
	Nullable bool

	Properties           []*Property
	Required             []string
	AdditionalProperties *Schema
	Items                *Schema

	Description string
}

type Property struct {
	Name   string
	Schema *Schema
}

// IsRequired reports whether name is listed in Required.
func (s *Schema) IsRequired(name string) bool {
	for _, r := range s.Required {
		if r == name {
			return true
		}
	}
	return false
}

// WithType returns a shallow copy of s narrowed to a single declared type.
func (s *Schema) WithType(typ string) *Schema {
	c := *s
	c.Types = nil
	c.Type, c.Kind = kindOf(typ)
	return &c
}
