package spec

import (
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// FilterOption configures which operations Filter keeps.
type FilterOption func(*filterConfig)

type filterConfig struct {
	includeTags map[string]struct{}
	excludeTags map[string]struct{}
	methods     map[HttpMethod]struct{}
	pathGlobs   []string
}

// WithIncludeTags keeps only operations that have at least one of the given tags.
func WithIncludeTags(tags []string) FilterOption {
	return func(c *filterConfig) { c.includeTags = tagSet(c.includeTags, tags) }
}

// WithExcludeTags removes operations that have any of the given tags.
func WithExcludeTags(tags []string) FilterOption {
	return func(c *filterConfig) { c.excludeTags = tagSet(c.excludeTags, tags) }
}

// WithMethods keeps only operations using one of the provided HTTP methods.
func WithMethods(methods []HttpMethod) FilterOption {
	return func(c *filterConfig) {
		if len(methods) == 0 {
			return
		}
		if c.methods == nil {
			c.methods = make(map[HttpMethod]struct{}, len(methods))
		}
		for _, m := range methods {
			c.methods[m] = struct{}{}
		}
	}
}

// WithPathPatterns keeps only paths matching at least one doublestar glob,
// e.g. "/users/**".
func WithPathPatterns(patterns []string) FilterOption {
	return func(c *filterConfig) {
		for _, p := range patterns {
			if p = strings.TrimSpace(p); p != "" {
				c.pathGlobs = append(c.pathGlobs, p)
			}
		}
	}
}

func tagSet(set map[string]struct{}, tags []string) map[string]struct{} {
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if set == nil {
			set = make(map[string]struct{}, len(tags))
		}
		set[t] = struct{}{}
	}
	return set
}

// Filter returns a copy of doc holding only the selected operations and the
// named schemas transitively reachable from them. References to schema names
// with no body are ignored. doc itself is not modified.
func Filter(doc *Document, opts ...FilterOption) (*Document, error) {
	cfg := &filterConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	for _, p := range cfg.pathGlobs {
		if !doublestar.ValidatePattern(p) {
			return nil, &SpecError{Code: InputError, Message: fmt.Sprintf("invalid path pattern %q", p)}
		}
	}

	out := *doc
	out.Paths = nil
	out.Schemas = make(map[string]*Schema)

	c := newRefCollector(doc)
	for _, item := range doc.Paths {
		if item.Ref != "" || !cfg.allowPath(item.Path) {
			continue
		}
		kept := *item
		kept.Operations = make(map[HttpMethod]*Operation)
		item.Each(func(m HttpMethod, op *Operation) {
			if !cfg.allowMethod(m) || !allowByTags(op.Tags, cfg) {
				return
			}
			kept.Operations[m] = op
			c.operation(op)
		})
		if len(kept.Operations) == 0 {
			continue
		}
		for _, p := range item.Parameters {
			c.parameter(p)
		}
		out.Paths = append(out.Paths, &kept)
	}

	for _, name := range c.closure() {
		out.Schemas[name] = doc.Schemas[name]
	}
	return &out, nil
}

// Reachable returns the names of all schemas reachable from the given roots,
// roots included. Names with no schema body are skipped.
func Reachable(doc *Document, roots ...string) []string {
	c := newRefCollector(doc)
	for _, r := range roots {
		c.add(r)
	}
	return c.closure()
}

func (c *filterConfig) allowPath(path string) bool {
	if len(c.pathGlobs) == 0 {
		return true
	}
	for _, g := range c.pathGlobs {
		if ok, _ := doublestar.Match(g, path); ok {
			return true
		}
	}
	return false
}

func (c *filterConfig) allowMethod(m HttpMethod) bool {
	if len(c.methods) == 0 {
		return true
	}
	_, ok := c.methods[m]
	return ok
}

func allowByTags(tags []string, cfg *filterConfig) bool {
	if len(cfg.includeTags) > 0 {
		ok := false
		for _, t := range tags {
			if _, yes := cfg.includeTags[t]; yes {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	for _, t := range tags {
		if _, blocked := cfg.excludeTags[t]; blocked {
			return false
		}
	}
	return true
}

// refCollector gathers named-schema references. Non-schema references
// (parameters, request bodies, responses, deep schema pointers) are expanded
// once each.
type refCollector struct {
	doc      *Document
	names    map[string]struct{}
	order    []string
	expanded map[string]struct{}
}

func newRefCollector(doc *Document) *refCollector {
	return &refCollector{doc: doc, names: make(map[string]struct{}), expanded: make(map[string]struct{})}
}

func (c *refCollector) add(name string) {
	if _, ok := c.names[name]; ok {
		return
	}
	c.names[name] = struct{}{}
	c.order = append(c.order, name)
}

// closure runs the worklist until no new names appear and returns the names
// that have a schema body.
func (c *refCollector) closure() []string {
	for i := 0; i < len(c.order); i++ {
		if s, ok := c.doc.Schemas[c.order[i]]; ok {
			c.schema(s)
		}
	}
	var out []string
	for _, name := range c.order {
		if _, ok := c.doc.Schemas[name]; ok {
			out = append(out, name)
		}
	}
	return out
}

func (c *refCollector) operation(op *Operation) {
	for _, p := range op.Parameters {
		c.parameter(p)
	}
	if rb := op.RequestBody; rb != nil {
		if rb.Ref != "" {
			c.ref(rb.Ref)
		}
		c.content(rb.Content)
	}
	for _, r := range op.Responses {
		if r.Ref != "" {
			c.ref(r.Ref)
		}
		c.content(r.Content)
	}
}

func (c *refCollector) parameter(p *Parameter) {
	if p == nil {
		return
	}
	if p.Ref != "" {
		c.ref(p.Ref)
		return
	}
	c.schema(p.Schema)
}

func (c *refCollector) content(media []*MediaType) {
	for _, m := range media {
		c.schema(m.Schema)
	}
}

func (c *refCollector) schema(s *Schema) {
	if s == nil {
		return
	}
	switch s.Kind {
	case KindRef:
		c.ref(s.Ref)
		return
	case KindOneOf, KindAnyOf, KindAllOf:
		for _, v := range s.Variants {
			c.schema(v)
		}
		return
	case KindAny, KindString, KindNumber, KindBoolean, KindNull, KindObject, KindArray, KindTypeList, KindUnsupported:
	}
	for _, p := range s.Properties {
		c.schema(p.Schema)
	}
	c.schema(s.AdditionalProperties)
	c.schema(s.Items)
}

func (c *refCollector) ref(ref string) {
	if name, ok := SchemaName(ref); ok {
		c.add(name)
		return
	}
	if strings.HasPrefix(ref, schemaPrefix) {
		// pointer into a named schema keeps the whole schema
		c.add(unescape(strings.SplitN(strings.TrimPrefix(ref, schemaPrefix), "/", 2)[0]))
		return
	}
	if _, seen := c.expanded[ref]; seen {
		return
	}
	c.expanded[ref] = struct{}{}
	n, ok := c.doc.Lookup(ref)
	if !ok {
		return
	}
	switch {
	case strings.HasPrefix(ref, "#/components/parameters/"):
		c.parameter(decodeParameter(n))
	case strings.HasPrefix(ref, "#/components/requestBodies/"):
		rb := decodeRequestBody(n)
		if rb.Ref != "" {
			c.ref(rb.Ref)
		}
		c.content(rb.Content)
	case strings.HasPrefix(ref, "#/components/responses/"):
		r := decodeResponse("", n)
		if r.Ref != "" {
			c.ref(r.Ref)
		}
		c.content(r.Content)
	default:
		c.schema(decodeSchema(n))
	}
}
