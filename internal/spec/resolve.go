package spec

import (
	"net/url"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const schemaPrefix = "#/components/schemas/"

// maxRefHops bounds ref-to-ref chains such as a parameter pointing at another
// parameter reference.
const maxRefHops = 32

// SchemaName returns the schema name when ref points directly at a top-level
// named schema (#/components/schemas/<Name>).
func SchemaName(ref string) (string, bool) {
	parts := strings.Split(strings.TrimPrefix(ref, "#/"), "/")
	if !strings.HasPrefix(ref, "#/") || len(parts) != 3 || parts[0] != "components" || parts[1] != "schemas" {
		return "", false
	}
	return unescape(parts[2]), true
}

// Lookup walks a local JSON pointer (#/a/b/c) through the raw document. Each
// segment is tried as written, then percent-decoded with ~1 and ~0 unescaped.
func (d *Document) Lookup(ref string) (*yaml.Node, bool) {
	if d == nil || d.root == nil || !strings.HasPrefix(ref, "#/") {
		return nil, false
	}
	n := d.root
	for _, part := range strings.Split(strings.TrimPrefix(ref, "#/"), "/") {
		next := child(n, part)
		if next == nil {
			next = child(n, unescape(part))
		}
		if next == nil {
			return nil, false
		}
		n = next
	}
	return n, true
}

// ResolveSchema expands a schema reference. Chained references are followed.
func (d *Document) ResolveSchema(ref string) (*Schema, bool) {
	for i := 0; i < maxRefHops; i++ {
		n, ok := d.Lookup(ref)
		if !ok {
			return nil, false
		}
		s := decodeSchema(n)
		if s == nil || s.Kind != KindRef {
			return s, s != nil
		}
		ref = s.Ref
	}
	return nil, false
}

// ResolveParameter returns p itself or the parameter its reference denotes.
func (d *Document) ResolveParameter(p *Parameter) (*Parameter, bool) {
	for i := 0; p != nil && i < maxRefHops; i++ {
		if p.Ref == "" {
			return p, true
		}
		n, ok := d.Lookup(p.Ref)
		if !ok {
			return nil, false
		}
		p = decodeParameter(n)
	}
	return nil, false
}

// ResolveRequestBody returns rb itself or the request body its reference denotes.
func (d *Document) ResolveRequestBody(rb *RequestBody) (*RequestBody, bool) {
	for i := 0; rb != nil && i < maxRefHops; i++ {
		if rb.Ref == "" {
			return rb, true
		}
		n, ok := d.Lookup(rb.Ref)
		if !ok {
			return nil, false
		}
		rb = decodeRequestBody(n)
	}
	return nil, false
}

// ResolveResponse returns r itself or the response its reference denotes. The
// status code of r is kept.
func (d *Document) ResolveResponse(r *Response) (*Response, bool) {
	status := ""
	if r != nil {
		status = r.Status
	}
	for i := 0; r != nil && i < maxRefHops; i++ {
		if r.Ref == "" {
			return r, true
		}
		n, ok := d.Lookup(r.Ref)
		if !ok {
			return nil, false
		}
		r = decodeResponse(status, n)
	}
	return nil, false
}

func child(n *yaml.Node, key string) *yaml.Node {
	n = deref(n)
	if n == nil {
		return nil
	}
	switch n.Kind {
	case yaml.MappingNode:
		return get(n, key)
	case yaml.SequenceNode:
		i, err := strconv.Atoi(key)
		if err != nil || i < 0 || i >= len(n.Content) {
			return nil
		}
		return deref(n.Content[i])
	}
	return nil
}

func unescape(part string) string {
	if u, err := url.PathUnescape(part); err == nil {
		part = u
	}
	part = strings.ReplaceAll(part, "~1", "/")
	return strings.ReplaceAll(part, "~0", "~")
}
