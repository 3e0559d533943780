package gen

import (
	"strconv"
	"strings"

	"github.com/mark3labs/apigen/internal/spec"
)

// pointerKeywords are schema structure keys left out of hoisted names.
var pointerKeywords = map[string]struct{}{
	"paths": {}, "components": {}, "schemas": {}, "parameters": {}, "requestBodies": {}, "responses": {},
	"properties": {}, "items": {}, "additionalProperties": {}, "schema": {}, "content": {},
	"allOf": {}, "oneOf": {}, "anyOf": {},
}

// hoisted collects declarations extracted from non-named pointers that refer
// back to themselves. It is shared by every copy of a Context.
type hoisted struct {
	byRef map[string]*AliasDecl
	decls []*AliasDecl
	taken map[string]struct{}
}

func newHoisted(doc *spec.Document) *hoisted {
	h := &hoisted{
		byRef: make(map[string]*AliasDecl),
		taken: make(map[string]struct{}),
	}
	for _, name := range doc.SchemaNames() {
		h.taken[NormalizeIdentifier(name, true)] = struct{}{}
	}
	return h
}

// declFor returns the declaration standing for ref, creating it on first use.
func (h *hoisted) declFor(ref string) *AliasDecl {
	if d, ok := h.byRef[ref]; ok {
		return d
	}
	base := hoistName(ref)
	name := base
	for i := 2; ; i++ {
		if _, taken := h.taken[name]; !taken {
			break
		}
		name = base + "_" + strconv.Itoa(i)
	}
	h.taken[name] = struct{}{}
	d := &AliasDecl{Name: name}
	h.byRef[ref] = d
	h.decls = append(h.decls, d)
	return d
}

// hoistName derives an identifier from the meaningful segments of a pointer.
func hoistName(ref string) string {
	var words []string
	for _, part := range strings.Split(strings.TrimPrefix(ref, "#/"), "/") {
		if _, skip := pointerKeywords[part]; skip || part == "" {
			continue
		}
		if _, err := strconv.Atoi(part); err == nil {
			continue
		}
		part = strings.NewReplacer("~1", "/", "~0", "~").Replace(part)
		if w := strings.Trim(NormalizeIdentifier(part, false), "_"); w != "" {
			words = append(words, w)
		}
	}
	if len(words) == 0 {
		return "Cyclic"
	}
	return NormalizeIdentifier(strings.Join(words, "_"), true)
}

// Decls returns the hoisted declarations in creation order.
func (h *hoisted) Decls() []Decl {
	out := make([]Decl, 0, len(h.decls))
	for _, d := range h.decls {
		out = append(out, d)
	}
	return out
}
