package gen

import (
	"log/slog"
	"regexp"
	"strings"
	"unicode"

	"github.com/mark3labs/apigen/internal/spec"
)

// DefaultNamespace holds operations without tags.
const DefaultNamespace = "general"

// OpName is the (namespace, function) pair an operation is published under.
type OpName struct {
	Namespace string
	Function  string
}

func (n OpName) String() string { return n.Namespace + "." + n.Function }

// OperationRef identifies the operation being named.
type OperationRef struct {
	Method spec.HttpMethod
	Path   string
	Op     *spec.Operation
}

// NameResolver may replace the proposed name of an operation. Returning false
// keeps the proposal.
type NameResolver func(op OperationRef, proposal OpName) (OpName, bool)

var (
	pathPrefix  = regexp.MustCompile(`^(/api)?(/v?\d\.?\d?)?/(.+)$`)
	slashRun    = regexp.MustCompile(`/+`)
	articleWord = map[string]struct{}{"a": {}, "an": {}, "the": {}}
)

// Namer derives operation names.
type Namer struct {
	resolve NameResolver
	log     *slog.Logger
	nsExpr  map[string]*regexp.Regexp
}

func NewNamer(resolve NameResolver, log *slog.Logger) *Namer {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Namer{resolve: resolve, log: log, nsExpr: make(map[string]*regexp.Regexp)}
}

func (n *Namer) withLogger(log *slog.Logger) *Namer {
	cp := *n
	cp.log = log
	return &cp
}

// Name proposes a name for op and lets the resolver override it. A resolver
// result with an empty part is ignored.
func (n *Namer) Name(op OperationRef) OpName {
	proposal := n.propose(op)
	if n.resolve == nil {
		return proposal
	}
	got, ok := n.resolve(op, proposal)
	if !ok {
		return proposal
	}
	if got.Namespace == "" || got.Function == "" {
		n.log.Warn("name resolver returned an incomplete name, using proposal",
			"namespace", got.Namespace, "function", got.Function, "proposal", proposal.String())
		return proposal
	}
	return got
}

func (n *Namer) propose(op OperationRef) OpName {
	ns := DefaultNamespace
	var tags []string
	var opID string
	if op.Op != nil {
		tags, opID = op.Op.Tags, op.Op.OperationID
	}
	for _, t := range tags {
		if t != "" {
			ns = normalizeOpName(t)
			break
		}
	}
	if ns == "" {
		ns = DefaultNamespace
	}

	fn := opID
	if fn == "" {
		fn = pathPrefix.ReplaceAllString(op.Path, "${3}")
		fn = replaceFirst(slashRun, string(op.Method)+"/"+fn, "/")
	}
	fn = normalizeOpName(fn)
	fn = n.namespaceExpr(ns).ReplaceAllString(fn, "${2}")
	fn = lowerFirst(fn)
	if fn == "" {
		fn = string(op.Method)
	}
	return OpName{Namespace: ns, Function: fn}
}

// namespaceExpr matches a function name that starts with the namespace, in
// any letter case and with an optional plural s, optionally followed by
// Controller or Service.
func (n *Namer) namespaceExpr(ns string) *regexp.Regexp {
	if re, ok := n.nsExpr[ns]; ok {
		return re
	}
	var b strings.Builder
	for _, r := range ns {
		b.WriteString("[")
		b.WriteString(regexp.QuoteMeta(string(unicode.ToUpper(r))))
		b.WriteString(regexp.QuoteMeta(string(unicode.ToLower(r))))
		b.WriteString("]")
	}
	expr := b.String()
	if strings.HasSuffix(expr, "[Ss]") {
		expr += "?"
	}
	re := regexp.MustCompile("^" + expr + "([Cc]ontroller|[Ss]ervice)?([A-Z].*)$")
	n.nsExpr[ns] = re
	return re
}

// normalizeOpName camel-cases val: the first apostrophe is dropped, runs of
// non-alphanumerics split words, and articles are removed. An all-caps first
// word is lower-cased whole.
func normalizeOpName(val string) string {
	val = strings.Replace(val, "'", "", 1)
	var words []string
	for _, w := range strings.Split(nonIdentChars.ReplaceAllString(val, "_"), "_") {
		if w == "" {
			continue
		}
		if _, ok := articleWord[w]; ok {
			continue
		}
		words = append(words, upperFirst(w))
	}
	if len(words) == 0 {
		return ""
	}
	if strings.ToUpper(words[0]) == words[0] {
		words[0] = strings.ToLower(words[0])
	} else {
		words[0] = lowerFirst(words[0])
	}
	return strings.Join(words, "")
}

func replaceFirst(re *regexp.Regexp, s, repl string) string {
	loc := re.FindStringIndex(s)
	if loc == nil {
		return s
	}
	return s[:loc[0]] + repl + s[loc[1]:]
}
