package spec

import (
	"encoding/json"
	"strings"

	openapi2 "github.com/getkin/kin-openapi/openapi2"
	"github.com/getkin/kin-openapi/openapi2conv"
	"github.com/getkin/kin-openapi/openapi3"
	"gopkg.in/yaml.v3"
)

// v2Tree converts a Swagger 2.0 root node into a JSON-ready tree. Version
// strings written as bare numbers (swagger: 2.0, version: 1.0) stay strings.
func v2Tree(top *yaml.Node) map[string]any {
	tree, _ := value(top).(map[string]any)
	if tree == nil {
		tree = map[string]any{}
	}
	tree["swagger"] = strings.TrimSpace(text(get(top, "swagger")))
	if info, ok := tree["info"].(map[string]any); ok {
		if v := text(get(get(top, "info"), "version")); v != "" {
			info["version"] = v
		}
	}
	return tree
}

func convertV2ToV3(tree map[string]any) (*openapi3.T, error) {
	data, err := json.Marshal(tree)
	if err != nil {
		return nil, err
	}
	var v2 openapi2.T
	if err := json.Unmarshal(data, &v2); err != nil {
		return nil, err
	}
	return openapi2conv.ToV3(&v2)
}

// upgradeCompat rewrites Swagger 2.0 operations that openapi2conv rejects:
// several body parameters are merged into one object body, and body
// parameters mixed with formData become formData fields under a
// multipart/form-data consumes entry. It reports whether tree changed.
func upgradeCompat(tree map[string]any) bool {
	paths, _ := tree["paths"].(map[string]any)
	changed := false
	for _, item := range paths {
		ops, _ := item.(map[string]any)
		for method, raw := range ops {
			if _, ok := ParseMethod(method); !ok {
				continue
			}
			op, _ := raw.(map[string]any)
			if op == nil {
				continue
			}
			params, _ := op["parameters"].([]any)
			bodies, hasForm := countBodyParams(params)
			switch {
			case bodies > 0 && hasForm:
				op["parameters"] = bodyParamsToFormData(params)
				if !hasString(op["consumes"], "multipart/form-data") {
					consumes, _ := op["consumes"].([]any)
					op["consumes"] = append(consumes, "multipart/form-data")
				}
				changed = true
			case bodies > 1:
				op["parameters"] = mergeBodyParams(params)
				changed = true
			}
		}
	}
	return changed
}

func countBodyParams(params []any) (bodies int, hasForm bool) {
	for _, p := range params {
		pm, _ := p.(map[string]any)
		switch strings.ToLower(str(pm["in"])) {
		case "body":
			bodies++
		case "formdata":
			hasForm = true
		}
	}
	return bodies, hasForm
}

func mergeBodyParams(params []any) []any {
	props := map[string]any{}
	var required []any
	rest := make([]any, 0, len(params))
	for _, p := range params {
		pm, _ := p.(map[string]any)
		if !strings.EqualFold(str(pm["in"]), "body") {
			rest = append(rest, p)
			continue
		}
		name := str(pm["name"])
		if name == "" {
			name = "field"
		}
		props[name] = paramSchema(pm)
		if req, _ := pm["required"].(bool); req {
			required = append(required, name)
		}
	}
	body := map[string]any{"type": "object", "properties": props}
	if len(required) > 0 {
		body["required"] = required
	}
	merged := map[string]any{"in": "body", "name": "body", "schema": body}
	return append([]any{merged}, rest...)
}

func bodyParamsToFormData(params []any) []any {
	out := make([]any, 0, len(params))
	for _, p := range params {
		pm, _ := p.(map[string]any)
		if !strings.EqualFold(str(pm["in"]), "body") {
			out = append(out, p)
			continue
		}
		field := map[string]any{"in": "formData", "name": str(pm["name"])}
		if field["name"] == "" {
			field["name"] = "field"
		}
		if d := str(pm["description"]); d != "" {
			field["description"] = d
		}
		if req, ok := pm["required"].(bool); ok {
			field["required"] = req
		}
		schema := paramSchema(pm)
		typ := str(schema["type"])
		if typ == "" || typ == "object" {
			// formData cannot carry referenced or object schemas
			typ = "string"
		}
		field["type"] = typ
		if it, ok := schema["items"]; ok && typ == "array" {
			field["items"] = it
		}
		if f := str(schema["format"]); f != "" {
			field["format"] = f
		}
		out = append(out, field)
	}
	return out
}

// paramSchema returns the schema of a body parameter, synthesizing one from
// type/items/format when absent.
func paramSchema(pm map[string]any) map[string]any {
	if sch, ok := pm["schema"].(map[string]any); ok {
		return sch
	}
	t := str(pm["type"])
	if t == "" {
		return map[string]any{"type": "string"}
	}
	m := map[string]any{"type": t}
	if it, ok := pm["items"]; ok {
		m["items"] = it
	}
	if f := str(pm["format"]); f != "" {
		m["format"] = f
	}
	return m
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

func hasString(list any, want string) bool {
	items, _ := list.([]any)
	for _, v := range items {
		if str(v) == want {
			return true
		}
	}
	return false
}
