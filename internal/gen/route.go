package gen

import (
	"fmt"
	"strings"

	"github.com/mark3labs/apigen/internal/spec"
)

// requestPreference lists accepted request media types, most preferred first.
// Entries are matched as prefixes of the declared media type.
var requestPreference = []string{
	"application/json",
	"text/",
	"multipart/form-data",
	"application/x-www-form-urlencoded",
}

const jsonContentType = "application/json"

// Param is a generated method parameter.
type Param struct {
	// Name is the identifier used in the generated signature.
	Name string
	// Source is the name as declared in the document.
	Source      string
	Type        *Type
	Required    bool
	Description string
}

// Segment is a piece of a URL template: literal text or a parameter
// substitution. Exactly one of the fields is set.
type Segment struct {
	Literal string
	Param   string
}

// URLTemplate is a path split into literal and parameter segments.
type URLTemplate []Segment

// BuildURLTemplate replaces each {name} placeholder of path that has an entry
// in renames with a parameter segment. Unmatched placeholders stay literal.
func BuildURLTemplate(path string, renames map[string]string) URLTemplate {
	var out URLTemplate
	var lit strings.Builder
	flush := func() {
		if lit.Len() > 0 {
			out = append(out, Segment{Literal: lit.String()})
			lit.Reset()
		}
	}
	for i := 0; i < len(path); {
		if path[i] == '{' {
			if end := strings.IndexByte(path[i+1:], '}'); end >= 0 {
				name := path[i+1 : i+1+end]
				if param, ok := renames[name]; ok {
					flush()
					out = append(out, Segment{Param: param})
					i += end + 2
					continue
				}
			}
		}
		lit.WriteByte(path[i])
		i++
	}
	flush()
	return out
}

// String renders the template with ${param} substitutions.
func (u URLTemplate) String() string {
	var b strings.Builder
	for _, s := range u {
		if s.Param != "" {
			b.WriteString("${" + s.Param + "}")
			continue
		}
		b.WriteString(s.Literal)
	}
	return b.String()
}

// Params lists the substituted parameter names in order of appearance.
func (u URLTemplate) Params() []string {
	var out []string
	for _, s := range u {
		if s.Param != "" {
			out = append(out, s.Param)
		}
	}
	return out
}

// Route is one operation ready for emission.
type Route struct {
	Name        OpName
	Method      spec.HttpMethod
	Path        string
	Summary     string
	Description string
	Deprecated  bool

	PathParams []*Param
	// Search is the record of query parameters, nil when there are none.
	Search *Param
	// Body is the request body parameter, nil for bodyless operations.
	Body *Param
	// ContentType is the selected request media type.
	ContentType string
	// Headers are static request headers for this operation.
	Headers map[string]string

	URL URLTemplate

	Response *Type
	// ResponseContentType is the media type the response was mapped from,
	// empty for Void.
	ResponseContentType string
}

// Params returns the signature in order: path parameters, search, body.
func (r *Route) Params() []*Param {
	out := make([]*Param, 0, len(r.PathParams)+2)
	out = append(out, r.PathParams...)
	if r.Search != nil {
		out = append(out, r.Search)
	}
	if r.Body != nil {
		out = append(out, r.Body)
	}
	return out
}

// AssembleRoute builds the route of op under name. c should be scoped with At.
func (c *Context) AssembleRoute(item *spec.PathItem, method spec.HttpMethod, op *spec.Operation, name OpName) (*Route, error) {
	r := &Route{
		Name:        name,
		Method:      method,
		Path:        item.Path,
		Summary:     op.Summary,
		Description: op.Description,
		Deprecated:  op.Deprecated,
	}
	fail := func(err error) (*Route, error) {
		return nil, &Error{Path: item.Path, Method: string(method), Err: err}
	}

	params := c.collectParams(op.Parameters, item.Parameters)

	renames := make(map[string]string)
	var query []*spec.Parameter
	for _, p := range params {
		switch p.In {
		case "path":
			t, err := c.MapType(p.Schema)
			if err != nil {
				return fail(fmt.Errorf("parameter %q: %w", p.Name, err))
			}
			id := NormalizeIdentifier(p.Name, true)
			renames[p.Name] = id
			r.PathParams = append(r.PathParams, &Param{
				Name: id, Source: p.Name, Type: t, Required: true, Description: p.Description,
			})
		case "query":
			query = append(query, p)
		}
	}

	if len(query) > 0 {
		rec := &Type{Kind: Record}
		for _, p := range query {
			t, err := c.MapType(p.Schema)
			if err != nil {
				return fail(fmt.Errorf("parameter %q: %w", p.Name, err))
			}
			rec.Fields = append(rec.Fields, &Field{
				Name: p.Name, Type: t, Optional: !p.Required, Description: p.Description,
			})
		}
		r.Search = &Param{Name: "search", Source: "search", Type: rec, Required: anyRequired(query)}
	}

	ct, schema, required := c.requestSchema(op)
	if ct != "" {
		t, err := c.MapType(schema)
		if err != nil {
			return fail(fmt.Errorf("request body: %w", err))
		}
		r.ContentType = ct
		r.Body = &Param{Name: "body", Source: "body", Type: t, Required: required}
		if ct != jsonContentType {
			r.Headers = map[string]string{"content-type": ct}
		}
	}

	rct, rschema := c.responseSchema(op)
	resp, err := c.MapType(rschema)
	if err != nil {
		return fail(fmt.Errorf("response: %w", err))
	}
	r.Response = resp
	r.ResponseContentType = rct

	r.URL = BuildURLTemplate(item.Path, renames)
	return r, nil
}

// collectParams resolves operation then path-item parameters. The first
// declaration of an (in, name) pair wins, so operation-level parameters
// override path-level ones.
func (c *Context) collectParams(lists ...[]*spec.Parameter) []*spec.Parameter {
	seen := make(map[string]struct{})
	var out []*spec.Parameter
	for _, list := range lists {
		for _, p := range list {
			resolved, ok := c.Doc.ResolveParameter(p)
			if !ok {
				c.log.Warn("ref not found", "ref", p.Ref)
				continue
			}
			key := resolved.In + "\x00" + resolved.Name
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, resolved)
		}
	}
	return out
}

// requestSchema selects the request media type by preference. An operation
// whose bodies are all of unsupported types is treated as bodyless.
func (c *Context) requestSchema(op *spec.Operation) (string, *spec.Schema, bool) {
	if op.RequestBody == nil {
		return "", nil, false
	}
	body, ok := c.Doc.ResolveRequestBody(op.RequestBody)
	if !ok {
		c.log.Warn("ref not found", "ref", op.RequestBody.Ref)
		return "", nil, false
	}
	var declared []string
	for _, want := range requestPreference {
		for _, mt := range body.Content {
			if mt.Schema == nil {
				continue
			}
			ct := mediaType(mt.Type)
			if strings.HasPrefix(ct, want) {
				return ct, mt.Schema, body.Required
			}
		}
	}
	for _, mt := range body.Content {
		declared = append(declared, mt.Type)
	}
	if len(declared) > 0 {
		c.log.Warn("unsupported request content type, body ignored", "types", declared)
	}
	return "", nil, false
}

// responseSchema picks the first 2xx response that declares content. JSON
// content anywhere in it keeps its schema; otherwise text content maps to a
// string and anything else to no value.
func (c *Context) responseSchema(op *spec.Operation) (string, *spec.Schema) {
	var content []*spec.MediaType
	for _, r := range op.Responses {
		if !strings.HasPrefix(r.Status, "2") {
			continue
		}
		resolved, ok := c.Doc.ResolveResponse(r)
		if !ok {
			c.log.Warn("ref not found", "ref", r.Ref)
			continue
		}
		if len(resolved.Content) > 0 {
			content = resolved.Content
			break
		}
	}
	for _, mt := range content {
		if ct := mediaType(mt.Type); mt.Schema != nil && strings.HasPrefix(ct, jsonContentType) {
			return ct, mt.Schema
		}
	}
	for _, mt := range content {
		if ct := mediaType(mt.Type); mt.Schema != nil && strings.HasPrefix(ct, "text/") {
			return ct, &spec.Schema{Kind: spec.KindString, Type: "string"}
		}
	}
	return "", nil
}

func mediaType(v string) string {
	ct, _, _ := strings.Cut(v, ";")
	return strings.TrimSpace(ct)
}

func anyRequired(ps []*spec.Parameter) bool {
	for _, p := range ps {
		if p.Required {
			return true
		}
	}
	return false
}
