package gen

import (
	"log/slog"

	"github.com/mark3labs/apigen/internal/spec"
)

// Options controls a generation run.
type Options struct {
	// ClassName names the generated client type.
	ClassName string
	// Namespacing groups operations by tag. When false operations are flat.
	Namespacing bool
	// ParseDates maps date-time strings to a temporal type and enables
	// timestamp coercion in the runtime client.
	ParseDates bool
	// InlineEnums maps named string enums to literal unions instead of enum
	// declarations.
	InlineEnums bool
	// Headers are static headers baked into the generated client.
	Headers map[string]string
	// NameResolver overrides proposed operation names.
	NameResolver NameResolver
	Logger       *slog.Logger
}

// DefaultOptions returns recommended defaults.
func DefaultOptions() Options {
	return Options{
		ClassName:   "ApiClient",
		Namespacing: true,
	}
}

// NameRegistry records allocated "namespace.function" names for one run.
type NameRegistry struct {
	used map[string]struct{}
}

func NewNameRegistry() *NameRegistry {
	return &NameRegistry{used: make(map[string]struct{})}
}

// Claim allocates name and reports whether it was free. A taken name stays
// with its first owner.
func (r *NameRegistry) Claim(name OpName) bool {
	key := name.String()
	if _, ok := r.used[key]; ok {
		return false
	}
	r.used[key] = struct{}{}
	return true
}

func (r *NameRegistry) Len() int { return len(r.used) }

// Context is the state of one generation run. It is not safe for concurrent
// use; At derives a copy that shares the registry and carries the current
// location in its logger.
type Context struct {
	Doc   *spec.Document
	Names *NameRegistry
	Opts  Options

	log   *slog.Logger
	namer *Namer
	// expanding holds non-named references currently being expanded.
	expanding map[string]struct{}
	hoist     *hoisted
}

func NewContext(doc *spec.Document, opts Options) *Context {
	if opts.ClassName == "" {
		opts.ClassName = DefaultOptions().ClassName
	}
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	ctx := &Context{
		Doc:       doc,
		Names:     NewNameRegistry(),
		Opts:      opts,
		log:       log,
		expanding: make(map[string]struct{}),
		hoist:     newHoisted(doc),
	}
	ctx.namer = NewNamer(opts.NameResolver, log)
	return ctx
}

// At returns a context whose diagnostics carry path and method.
func (c *Context) At(path string, method spec.HttpMethod) *Context {
	cp := *c
	cp.log = c.log.With("path", path, "method", string(method))
	cp.namer = c.namer.withLogger(cp.log)
	return &cp
}

// Logger returns the location-scoped logger.
func (c *Context) Logger() *slog.Logger { return c.log }
