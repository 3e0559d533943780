package gen

import (
	"github.com/mark3labs/apigen/internal/spec"
)

// Namespace groups routes sharing a namespace, in first-seen order.
type Namespace struct {
	Name   string
	Routes []*Route
}

// Output is the target-neutral result of a run, consumed by a printer.
type Output struct {
	ClassName   string
	Namespacing bool
	ParseDates  bool
	Headers     map[string]string

	Title   string
	Version string
	// BaseURL is the first declared server URL, if any.
	BaseURL string

	Namespaces []*Namespace
	// Types are the named declarations sorted by schema name, followed by
	// declarations hoisted out of cyclic pointers in discovery order.
	Types []Decl
}

// Routes returns every route in emission order.
func (o *Output) Routes() []*Route {
	var out []*Route
	for _, ns := range o.Namespaces {
		out = append(out, ns.Routes...)
	}
	return out
}

// Generate maps doc to an Output. Mapping failures abort the run with an
// *Error; gaps in the document only produce warnings.
func Generate(doc *spec.Document, opts Options) (*Output, error) {
	c := NewContext(doc, opts)

	types, err := c.declarations()
	if err != nil {
		return nil, err
	}
	namespaces, err := c.namespaces()
	if err != nil {
		return nil, err
	}
	types = append(types, c.hoist.Decls()...)

	out := &Output{
		ClassName:   c.Opts.ClassName,
		Namespacing: c.Opts.Namespacing,
		ParseDates:  c.Opts.ParseDates,
		Headers:     c.Opts.Headers,
		Title:       doc.Info.Title,
		Version:     doc.Info.Version,
		Namespaces:  namespaces,
		Types:       types,
	}
	if len(doc.Servers) > 0 {
		out.BaseURL = doc.Servers[0].URL
	}
	c.log.Debug("generated", "types", len(types), "operations", c.Names.Len())
	return out, nil
}

func (c *Context) declarations() ([]Decl, error) {
	names := c.Doc.SchemaNames()
	out := make([]Decl, 0, len(names))
	owner := make(map[string]string, len(names))
	for _, name := range names {
		d, err := c.MapNamed(name, c.Doc.Schemas[name])
		if err != nil {
			return nil, &Error{Schema: name, Err: err}
		}
		if prev, taken := owner[d.DeclName()]; taken {
			c.log.Warn("schema name collides after normalization, skipping",
				"schema", name, "identifier", d.DeclName(), "kept", prev)
			continue
		}
		owner[d.DeclName()] = name
		out = append(out, d)
	}
	return out, nil
}

func (c *Context) namespaces() ([]*Namespace, error) {
	var out []*Namespace
	index := make(map[string]*Namespace)
	for _, item := range c.Doc.Paths {
		if item.Ref != "" {
			c.log.Warn("path item reference is not supported, skipping", "path", item.Path, "ref", item.Ref)
			continue
		}
		for _, m := range spec.Methods {
			op := item.Operations[m]
			if op == nil {
				continue
			}
			lc := c.At(item.Path, m)
			name := lc.namer.Name(OperationRef{Method: m, Path: item.Path, Op: op})
			if !c.Names.Claim(name) {
				lc.log.Debug("duplicate operation name, skipping", "name", name.String())
				continue
			}
			route, err := lc.AssembleRoute(item, m, op, name)
			if err != nil {
				return nil, err
			}
			ns, ok := index[name.Namespace]
			if !ok {
				ns = &Namespace{Name: name.Namespace}
				index[name.Namespace] = ns
				out = append(out, ns)
			}
			ns.Routes = append(ns.Routes, route)
		}
	}
	return out, nil
}
