package spec

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Parse decodes an OpenAPI v3 document from YAML or JSON bytes. Declaration
// order of paths, properties, media types and response codes is preserved.
func Parse(data []byte) (*Document, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, &SpecError{Code: ParseError, Message: fmt.Sprintf("parse document: %v", err), Cause: err}
	}
	return fromNode(&root)
}

func fromNode(root *yaml.Node) (*Document, error) {
	n := root
	if n.Kind == yaml.DocumentNode {
		if len(n.Content) == 0 {
			return nil, &SpecError{Code: ParseError, Message: "parse document: empty document"}
		}
		n = n.Content[0]
	}
	n = deref(n)
	if n == nil || n.Kind != yaml.MappingNode {
		return nil, &SpecError{Code: ParseError, Message: "parse document: root is not an object"}
	}

	doc := &Document{
		OpenAPI: text(get(n, "openapi")),
		Schemas: make(map[string]*Schema),
		root:    n,
	}
	if info := get(n, "info"); info != nil {
		doc.Info = Info{
			Title:       strings.TrimSpace(text(get(info, "title"))),
			Version:     strings.TrimSpace(text(get(info, "version"))),
			Description: strings.TrimSpace(text(get(info, "description"))),
		}
	}
	for _, s := range items(get(n, "servers")) {
		doc.Servers = append(doc.Servers, Server{URL: text(get(s, "url")), Description: text(get(s, "description"))})
	}
	pairs(get(n, "paths"), func(path string, v *yaml.Node) {
		if strings.HasPrefix(path, "x-") {
			return
		}
		doc.Paths = append(doc.Paths, decodePathItem(path, v))
	})
	pairs(get(get(n, "components"), "schemas"), func(name string, v *yaml.Node) {
		if s := decodeSchema(v); s != nil {
			doc.Schemas[name] = s
		}
	})
	return doc, nil
}

func decodePathItem(path string, n *yaml.Node) *PathItem {
	item := &PathItem{
		Path:        path,
		Ref:         text(get(n, "$ref")),
		Summary:     text(get(n, "summary")),
		Description: text(get(n, "description")),
		Operations:  make(map[HttpMethod]*Operation),
	}
	for _, p := range items(get(n, "parameters")) {
		item.Parameters = append(item.Parameters, decodeParameter(p))
	}
	pairs(n, func(key string, v *yaml.Node) {
		if m, ok := ParseMethod(key); ok && v.Kind == yaml.MappingNode {
			item.Operations[m] = decodeOperation(v)
		}
	})
	return item
}

func decodeOperation(n *yaml.Node) *Operation {
	op := &Operation{
		OperationID: strings.TrimSpace(text(get(n, "operationId"))),
		Summary:     text(get(n, "summary")),
		Description: text(get(n, "description")),
		Tags:        strs(get(n, "tags")),
		Deprecated:  flag(get(n, "deprecated")),
	}
	for _, p := range items(get(n, "parameters")) {
		op.Parameters = append(op.Parameters, decodeParameter(p))
	}
	if rb := get(n, "requestBody"); rb != nil {
		op.RequestBody = decodeRequestBody(rb)
	}
	pairs(get(n, "responses"), func(code string, v *yaml.Node) {
		if strings.HasPrefix(code, "x-") {
			return
		}
		op.Responses = append(op.Responses, decodeResponse(code, v))
	})
	return op
}

func decodeParameter(n *yaml.Node) *Parameter {
	if ref := get(n, "$ref"); ref != nil {
		return &Parameter{Ref: text(ref)}
	}
	p := &Parameter{
		Name:        text(get(n, "name")),
		In:          strings.ToLower(text(get(n, "in"))),
		Description: text(get(n, "description")),
		Required:    flag(get(n, "required")),
		Schema:      decodeSchema(get(n, "schema")),
	}
	if p.Schema == nil {
		if content := decodeContent(get(n, "content")); len(content) > 0 {
			p.Schema = content[0].Schema
		}
	}
	return p
}

func decodeRequestBody(n *yaml.Node) *RequestBody {
	if ref := get(n, "$ref"); ref != nil {
		return &RequestBody{Ref: text(ref)}
	}
	return &RequestBody{
		Description: text(get(n, "description")),
		Required:    flag(get(n, "required")),
		Content:     decodeContent(get(n, "content")),
	}
}

func decodeResponse(code string, n *yaml.Node) *Response {
	if ref := get(n, "$ref"); ref != nil {
		return &Response{Status: code, Ref: text(ref)}
	}
	return &Response{
		Status:      code,
		Description: text(get(n, "description")),
		Content:     decodeContent(get(n, "content")),
	}
}

func decodeContent(n *yaml.Node) []*MediaType {
	var out []*MediaType
	pairs(n, func(ct string, v *yaml.Node) {
		out = append(out, &MediaType{Type: ct, Schema: decodeSchema(get(v, "schema"))})
	})
	return out
}

func decodeSchema(n *yaml.Node) *Schema {
	n = deref(n)
	if n == nil {
		return nil
	}
	if n.Kind != yaml.MappingNode {
		// boolean schemas (true/false) accept anything as far as typing goes
		return &Schema{Kind: KindAny}
	}
	if ref := get(n, "$ref"); ref != nil {
		return &Schema{Kind: KindRef, Ref: text(ref), Description: text(get(n, "description"))}
	}

	s := &Schema{
		Format:      text(get(n, "format")),
		Nullable:    flag(get(n, "nullable")),
		Required:    strs(get(n, "required")),
		Description: text(get(n, "description")),
	}
	for _, v := range items(get(n, "enum")) {
		s.Enum = append(s.Enum, value(v))
	}
	if c := get(n, "const"); c != nil && s.Enum == nil {
		s.Enum = []any{value(c)}
	}
	pairs(get(n, "properties"), func(name string, v *yaml.Node) {
		s.Properties = append(s.Properties, &Property{Name: name, Schema: decodeSchema(v)})
	})
	if ap := get(n, "additionalProperties"); ap != nil && ap.Kind == yaml.MappingNode {
		s.AdditionalProperties = decodeSchema(ap)
	}
	if it := get(n, "items"); it != nil && it.Kind == yaml.MappingNode {
		s.Items = decodeSchema(it)
	}

	if v := get(n, "oneOf"); v != nil {
		s.Kind, s.Variants = KindOneOf, decodeSchemas(v)
		return s
	}
	if v := get(n, "anyOf"); v != nil {
		s.Kind, s.Variants = KindAnyOf, decodeSchemas(v)
		return s
	}
	if v := get(n, "allOf"); v != nil {
		s.Kind, s.Variants = KindAllOf, decodeSchemas(v)
		return s
	}

	switch t := get(n, "type"); {
	case t != nil && t.Kind == yaml.SequenceNode:
		types := strs(t)
		if len(types) == 1 {
			s.Type, s.Kind = kindOf(types[0])
			break
		}
		s.Kind = KindTypeList
		for _, typ := range types {
			norm, _ := kindOf(typ)
			s.Types = append(s.Types, norm)
		}
	case t != nil:
		s.Type, s.Kind = kindOf(text(t))
	case len(s.Properties) > 0:
		s.Kind = KindObject
	default:
		s.Kind = KindAny
	}
	return s
}

func decodeSchemas(n *yaml.Node) []*Schema {
	var out []*Schema
	for _, v := range items(n) {
		if s := decodeSchema(v); s != nil {
			out = append(out, s)
		}
	}
	return out
}

func kindOf(typ string) (string, SchemaKind) {
	switch typ {
	case "integer", "number":
		return "number", KindNumber
	case "string":
		return typ, KindString
	case "boolean":
		return typ, KindBoolean
	case "null":
		return typ, KindNull
	case "object":
		return typ, KindObject
	case "array":
		return typ, KindArray
	case "":
		return "", KindAny
	default:
		return typ, KindUnsupported
	}
}

func deref(n *yaml.Node) *yaml.Node {
	for n != nil && n.Kind == yaml.AliasNode {
		n = n.Alias
	}
	return n
}

func get(n *yaml.Node, key string) *yaml.Node {
	n = deref(n)
	if n == nil || n.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == key {
			return deref(n.Content[i+1])
		}
	}
	return nil
}

func pairs(n *yaml.Node, fn func(key string, v *yaml.Node)) {
	n = deref(n)
	if n == nil || n.Kind != yaml.MappingNode {
		return
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		fn(n.Content[i].Value, deref(n.Content[i+1]))
	}
}

func items(n *yaml.Node) []*yaml.Node {
	n = deref(n)
	if n == nil || n.Kind != yaml.SequenceNode {
		return nil
	}
	out := make([]*yaml.Node, 0, len(n.Content))
	for _, c := range n.Content {
		out = append(out, deref(c))
	}
	return out
}

func text(n *yaml.Node) string {
	n = deref(n)
	if n == nil || n.Kind != yaml.ScalarNode {
		return ""
	}
	return n.Value
}

func flag(n *yaml.Node) bool {
	var b bool
	if n = deref(n); n == nil || n.Decode(&b) != nil {
		return false
	}
	return b
}

func strs(n *yaml.Node) []string {
	var out []string
	for _, v := range items(n) {
		out = append(out, text(v))
	}
	return out
}

// value decodes a scalar into string, float64, bool or nil. Composite values
// decode into maps and slices with string keys.
func value(n *yaml.Node) any {
	n = deref(n)
	if n == nil {
		return nil
	}
	switch n.Kind {
	case yaml.MappingNode:
		m := make(map[string]any, len(n.Content)/2)
		pairs(n, func(k string, v *yaml.Node) { m[k] = value(v) })
		return m
	case yaml.SequenceNode:
		out := make([]any, 0, len(n.Content))
		for _, v := range items(n) {
			out = append(out, value(v))
		}
		return out
	}
	var v any
	if err := n.Decode(&v); err != nil {
		return n.Value
	}
	switch x := v.(type) {
	case int:
		return float64(x)
	case int64:
		return float64(x)
	case uint64:
		return float64(x)
	}
	return v
}
