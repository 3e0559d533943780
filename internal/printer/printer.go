// Package printer renders a generation Output as Go source for a client
// package built on pkg/apiclient.
package printer

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/tools/imports"

	"github.com/mark3labs/apigen/internal/gen"
)

// DefaultClientImport is the import path of the runtime package.
const DefaultClientImport = "github.com/mark3labs/apigen/pkg/apiclient"

// Options controls rendering.
type Options struct {
	// PackageName is the package clause of the generated file.
	PackageName string
	// ClientImport overrides the runtime import path.
	ClientImport string
	// Filename is passed to the import fixer; it only affects diagnostics.
	Filename string
}

type hoisted struct {
	name string
	t    *gen.Type
}

type printer struct {
	out  *gen.Output
	opts Options

	// types maps declaration names to Go identifiers.
	types map[string]string
	decls map[string]gen.Decl
	taken map[string]struct{}
	// cyclic holds struct declarations that contain themselves by value.
	cyclic map[string]bool

	pending []hoisted
}

// Print renders out. On a formatting failure the unformatted source is
// returned with the error.
func Print(out *gen.Output, opts Options) ([]byte, error) {
	if opts.PackageName == "" {
		opts.PackageName = "client"
	}
	if opts.ClientImport == "" {
		opts.ClientImport = DefaultClientImport
	}
	if opts.Filename == "" {
		opts.Filename = "client.go"
	}
	p := &printer{
		out:   out,
		opts:  opts,
		types: make(map[string]string),
		decls: make(map[string]gen.Decl),
		taken: make(map[string]struct{}),
	}
	src := p.render()
	formatted, err := imports.Process(opts.Filename, src, nil)
	if err != nil {
		return src, fmt.Errorf("format generated code: %w", err)
	}
	return formatted, nil
}

func (p *printer) render() []byte {
	className := p.claim(goName(p.out.ClassName))
	p.claim("New" + className)
	if p.out.BaseURL != "" {
		p.claim("DefaultBaseURL")
	}

	nsTypes := make(map[string]string)
	if p.out.Namespacing {
		for _, ns := range p.out.Namespaces {
			nsTypes[ns.Name] = p.claim(className + goName(ns.Name))
		}
	}
	for _, d := range p.out.Types {
		p.decls[d.DeclName()] = d
		p.types[d.DeclName()] = p.claim(goName(d.DeclName()))
	}
	p.cyclic = p.findCycles()

	var methods bytes.Buffer
	if p.out.Namespacing {
		for _, ns := range p.out.Namespaces {
			fmt.Fprintf(&methods, "// %s groups the %s operations.\n", nsTypes[ns.Name], ns.Name)
			fmt.Fprintf(&methods, "type %s struct {\n\tclient *apiclient.Client\n}\n\n", nsTypes[ns.Name])
			used := make(map[string]struct{})
			for _, r := range ns.Routes {
				name := unique(used, goName(r.Name.Function))
				p.writeMethod(&methods, nsTypes[ns.Name], "api.client", name, goName(ns.Name)+name, r)
			}
		}
	} else {
		used := map[string]struct{}{"Client": {}, "Do": {}, "URL": {}, "Config": {}}
		for _, r := range p.out.Routes() {
			name := goName(r.Name.Function)
			if _, clash := used[name]; clash {
				name = goName(r.Name.Namespace) + name
			}
			name = unique(used, name)
			p.writeMethod(&methods, className, "api.Client", name, name, r)
		}
	}

	var types bytes.Buffer
	for _, d := range p.out.Types {
		p.writeDecl(&types, d)
	}
	for len(p.pending) > 0 {
		h := p.pending[0]
		p.pending = p.pending[1:]
		p.writeStruct(&types, h.name, h.t)
	}

	var b bytes.Buffer
	b.WriteString("// Code generated by apigen. DO NOT EDIT.\n")
	if p.out.Title != "" {
		fmt.Fprintf(&b, "// Source: %s", cleanDescription(p.out.Title))
		if p.out.Version != "" {
			fmt.Fprintf(&b, " %s", cleanDescription(p.out.Version))
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "\npackage %s\n\n", p.opts.PackageName)
	fmt.Fprintf(&b, "import (\n\t\"context\"\n\t\"time\"\n\n\tapiclient %q\n)\n\n", p.opts.ClientImport)
	p.writeClient(&b, className, nsTypes)
	b.Write(methods.Bytes())
	b.Write(types.Bytes())
	return b.Bytes()
}

func (p *printer) writeClient(b *bytes.Buffer, className string, nsTypes map[string]string) {
	if p.out.BaseURL != "" {
		b.WriteString("// DefaultBaseURL is the first server of the API description.\n")
		fmt.Fprintf(b, "const DefaultBaseURL = %q\n\n", p.out.BaseURL)
	}

	fmt.Fprintf(b, "// %s is the API client.\n", className)
	fmt.Fprintf(b, "type %s struct {\n\t*apiclient.Client\n", className)
	fields := make(map[string]string)
	if p.out.Namespacing {
		used := map[string]struct{}{"Client": {}}
		b.WriteString("\n")
		for _, ns := range p.out.Namespaces {
			field := unique(used, goName(ns.Name))
			fields[ns.Name] = field
			fmt.Fprintf(b, "\t%s *%s\n", field, nsTypes[ns.Name])
		}
	}
	b.WriteString("}\n\n")

	fmt.Fprintf(b, "// New%s returns a client. Options override the generated defaults.\n", className)
	fmt.Fprintf(b, "func New%s(opts ...apiclient.ClientOption) *%s {\n", className, className)
	b.WriteString("\tdefaults := []apiclient.ClientOption{\n")
	if p.out.BaseURL != "" {
		b.WriteString("\t\tapiclient.WithBaseURL(DefaultBaseURL),\n")
	}
	if len(p.out.Headers) > 0 {
		b.WriteString("\t\tapiclient.WithHeaders(map[string]string{\n")
		keys := make([]string, 0, len(p.out.Headers))
		for k := range p.out.Headers {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(b, "\t\t\t%q: %q,\n", k, p.out.Headers[k])
		}
		b.WriteString("\t\t}),\n")
	}
	if p.out.ParseDates {
		b.WriteString("\t\tapiclient.WithParseDates(true),\n")
	}
	b.WriteString("\t}\n")
	b.WriteString("\tc := apiclient.New(append(defaults, opts...)...)\n")
	fmt.Fprintf(b, "\treturn &%s{\n\t\tClient: c,\n", className)
	for _, ns := range p.out.Namespaces {
		if field, ok := fields[ns.Name]; ok {
			fmt.Fprintf(b, "\t\t%s: &%s{client: c},\n", field, nsTypes[ns.Name])
		}
	}
	b.WriteString("\t}\n}\n\n")
}

// writeMethod renders one operation. hint prefixes the names of hoisted
// parameter and response types.
func (p *printer) writeMethod(b *bytes.Buffer, recv, client, name, hint string, r *gen.Route) {
	method := strings.ToUpper(string(r.Method))
	fmt.Fprintf(b, "// %s calls %s %s.\n", name, method, r.Path)
	doc := r.Summary
	if doc == "" {
		doc = r.Description
	}
	if doc != "" {
		b.WriteString("//\n")
		writeComment(b, "", doc)
	}
	if r.Deprecated {
		b.WriteString("//\n// Deprecated: the operation is marked deprecated by the API.\n")
	}

	args := []string{"ctx context.Context"}
	for _, prm := range r.PathParams {
		args = append(args, prm.Name+" "+p.goType(prm.Type, hint+goName(prm.Source)))
	}
	var fields []string
	if r.Search != nil {
		args = append(args, "search "+p.goType(r.Search.Type, hint+"Search"))
		fields = append(fields, "Search: search")
	}
	if r.Body != nil {
		args = append(args, "body "+p.goType(r.Body.Type, hint+"Body"))
		fields = append(fields, "Body: body")
	}
	if len(r.Headers) > 0 {
		fields = append(fields, "Headers: "+stringMap(r.Headers))
	}
	req := "apiclient.Request{" + strings.Join(fields, ", ") + "}"
	path := pathExpr(r.URL)

	if r.Response.Kind == gen.Void {
		fmt.Fprintf(b, "func (api *%s) %s(%s) error {\n", recv, name, strings.Join(args, ", "))
		fmt.Fprintf(b, "\t_, err := %s.Do(ctx, %q, %s, %s)\n\treturn err\n}\n\n", client, r.Method, path, req)
		return
	}
	resp := p.goType(r.Response, hint+"Response")
	fmt.Fprintf(b, "func (api *%s) %s(%s) (%s, error) {\n", recv, name, strings.Join(args, ", "), resp)
	fmt.Fprintf(b, "\treturn apiclient.Fetch[%s](ctx, %s, %q, %s, %s)\n}\n\n", resp, client, r.Method, path, req)
}

func (p *printer) writeDecl(b *bytes.Buffer, d gen.Decl) {
	name := p.types[d.DeclName()]
	switch d := d.(type) {
	case *gen.EnumDecl:
		writeComment(b, "", d.Description)
		fmt.Fprintf(b, "type %s string\n\n", name)
		if len(d.Members) == 0 {
			return
		}
		b.WriteString("const (\n")
		for _, m := range d.Members {
			fmt.Fprintf(b, "\t%s %s = %q\n", p.claim(name+goName(m.Name)), name, m.Value)
		}
		b.WriteString(")\n\n")
	case *gen.AliasDecl:
		t := d.Type
		if t.IsNullable() {
			t = t.NonNull()
		}
		if t.Kind == gen.Record || (t.Kind == gen.Intersection && p.structural(t, nil)) {
			writeComment(b, "", d.Description)
			p.writeStruct(b, name, t)
			return
		}
		writeComment(b, "", d.Description)
		if t.Kind == gen.Ref {
			fmt.Fprintf(b, "type %s = %s\n\n", name, p.goType(t, name))
			return
		}
		fmt.Fprintf(b, "type %s %s\n\n", name, p.goType(t, name))
	}
}

func (p *printer) writeStruct(b *bytes.Buffer, name string, t *gen.Type) {
	fmt.Fprintf(b, "type %s struct {\n", name)
	var fields []*gen.Field
	if t.Kind == gen.Intersection {
		for _, v := range t.Variants {
			switch v.Kind {
			case gen.Ref:
				fmt.Fprintf(b, "\t%s\n", p.goType(v, name))
			case gen.Record:
				fields = append(fields, v.Fields...)
			}
		}
	} else {
		fields = t.Fields
	}

	used := make(map[string]struct{})
	for _, f := range fields {
		field := unique(used, goName(f.Name))
		typ := p.goType(f.Type, name+field)
		switch {
		case f.Optional:
			typ = nullable(typ)
		case f.Type.Kind == gen.Ref && p.cyclic[f.Type.Name]:
			typ = "*" + typ
		}
		tag := f.Name
		if f.Optional {
			tag += ",omitempty"
		}
		writeComment(b, "\t", f.Description)
		fmt.Fprintf(b, "\t%s %s `json:%s`\n", field, typ, strconv.Quote(tag))
	}
	b.WriteString("}\n\n")
}

// goType returns the Go type expression for t. Inline records are hoisted to
// named types derived from hint.
func (p *printer) goType(t *gen.Type, hint string) string {
	if t == nil {
		return "any"
	}
	switch t.Kind {
	case gen.String, gen.StringLiteral:
		return "string"
	case gen.Number, gen.NumberLiteral:
		return "float64"
	case gen.Boolean, gen.BoolLiteral:
		return "bool"
	case gen.Binary:
		return "[]byte"
	case gen.Time:
		return "time.Time"
	case gen.Array:
		return "[]" + p.goType(t.Elem, hint+"Item")
	case gen.Map:
		return "map[string]" + p.goType(t.Elem, hint+"Value")
	case gen.OpaqueObject:
		return "map[string]any"
	case gen.Record:
		return p.hoist(hint, t)
	case gen.Union:
		if t.IsNullable() {
			rest := t.NonNull()
			if rest.Kind == gen.Null {
				return "any"
			}
			return nullable(p.goType(rest, hint))
		}
		if scalar := scalarOf(t); scalar != "" {
			return scalar
		}
		return "any"
	case gen.Intersection:
		if p.structural(t, nil) {
			return p.hoist(hint, t)
		}
		return "any"
	case gen.Ref:
		if name, ok := p.types[t.Name]; ok {
			return name
		}
		return "any"
	}
	return "any"
}

func (p *printer) hoist(hint string, t *gen.Type) string {
	name := p.claim(hint)
	p.pending = append(p.pending, hoisted{name: name, t: t})
	return name
}

// structural reports whether an intersection can be rendered as a struct:
// every member is a record or a reference to a struct declaration.
func (p *printer) structural(t *gen.Type, seen map[string]bool) bool {
	if seen == nil {
		seen = make(map[string]bool)
	}
	for _, v := range t.Variants {
		switch v.Kind {
		case gen.Record:
		case gen.Ref:
			if seen[v.Name] {
				return false
			}
			seen[v.Name] = true
			alias, ok := p.decls[v.Name].(*gen.AliasDecl)
			if !ok {
				return false
			}
			target := alias.Type.NonNull()
			if target.Kind == gen.Record {
				continue
			}
			if target.Kind != gen.Intersection || !p.structural(target, seen) {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// findCycles reports the declarations reachable from themselves through
// required fields and embeddings, which Go cannot lay out by value.
func (p *printer) findCycles() map[string]bool {
	cyclic := make(map[string]bool)
	for name := range p.decls {
		seen := make(map[string]bool)
		queue := p.valueRefs(p.declType(name))
		for len(queue) > 0 {
			next := queue[0]
			queue = queue[1:]
			if next == name {
				cyclic[name] = true
				break
			}
			if seen[next] {
				continue
			}
			seen[next] = true
			queue = append(queue, p.valueRefs(p.declType(next))...)
		}
	}
	return cyclic
}

func (p *printer) declType(name string) *gen.Type {
	if alias, ok := p.decls[name].(*gen.AliasDecl); ok {
		return alias.Type.NonNull()
	}
	return nil
}

// valueRefs lists the declarations t holds by value.
func (p *printer) valueRefs(t *gen.Type) []string {
	if t == nil {
		return nil
	}
	var out []string
	switch t.Kind {
	case gen.Ref:
		out = append(out, t.Name)
	case gen.Record:
		for _, f := range t.Fields {
			if !f.Optional {
				out = append(out, p.valueRefs(f.Type)...)
			}
		}
	case gen.Intersection:
		for _, v := range t.Variants {
			out = append(out, p.valueRefs(v)...)
		}
	}
	return out
}

func (p *printer) claim(name string) string {
	return unique(p.taken, name)
}

func unique(used map[string]struct{}, name string) string {
	candidate := name
	for i := 2; ; i++ {
		if _, ok := used[candidate]; !ok {
			used[candidate] = struct{}{}
			return candidate
		}
		candidate = name + strconv.Itoa(i)
	}
}

func scalarOf(t *gen.Type) string {
	kind := ""
	for _, v := range t.Variants {
		var k string
		switch v.Kind {
		case gen.String, gen.StringLiteral:
			k = "string"
		case gen.Number, gen.NumberLiteral:
			k = "float64"
		case gen.Boolean, gen.BoolLiteral:
			k = "bool"
		case gen.Union:
			k = scalarOf(v)
		}
		if k == "" || (kind != "" && k != kind) {
			return ""
		}
		kind = k
	}
	return kind
}

func nullable(typ string) string {
	if typ == "any" || strings.HasPrefix(typ, "*") || strings.HasPrefix(typ, "[]") || strings.HasPrefix(typ, "map[") {
		return typ
	}
	return "*" + typ
}

func pathExpr(u gen.URLTemplate) string {
	if len(u) == 0 {
		return `""`
	}
	parts := make([]string, 0, len(u))
	for _, s := range u {
		if s.Param != "" {
			parts = append(parts, "apiclient.PathParam("+s.Param+")")
			continue
		}
		parts = append(parts, strconv.Quote(s.Literal))
	}
	return strings.Join(parts, " + ")
}

func stringMap(m map[string]string) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, strconv.Quote(k)+": "+strconv.Quote(m[k]))
	}
	return "map[string]string{" + strings.Join(pairs, ", ") + "}"
}
