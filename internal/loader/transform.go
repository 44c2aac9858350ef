package loader

import (
	"fmt"
	"strings"

	"github.com/kolah/argo-mcp/internal/model"
	"github.com/kolah/argo-mcp/internal/resolver"
	"go.yaml.in/yaml/v4"
)

// operationKeys are the fields whose presence marks a path item entry as an
// operation.
var operationKeys = []string{"operationId", "summary", "description", "parameters", "responses"}

type parser struct {
	doc      *model.Document
	adapter  model.Adapter
	resolver *resolver.Resolver
	result   *Result
}

func (p *parser) warnf(format string, args ...any) {
	p.result.Warnings = append(p.result.Warnings, fmt.Sprintf(format, args...))
}

func (p *parser) parsePaths(node *yaml.Node, raw map[string]any) error {
	for _, path := range mappingKeys(node) {
		item, ok := raw[path].(map[string]any)
		if !ok {
			p.warnf("%s: path item is not a mapping, skipped", path)
			continue
		}
		keys := mappingKeys(mappingValue(node, path))

		if ref, ok := item[model.KeyRef].(string); ok {
			target, err := p.resolver.Lookup(ref)
			if err != nil {
				return fmt.Errorf("path %s: %w", path, err)
			}
			shared, ok := target.(map[string]any)
			if !ok {
				return fmt.Errorf("path %s: %w", path, &resolver.RefError{Ref: ref, Reason: "target is not a path item"})
			}
			item = overlay(shared, item)
			keys = keys[:0]
			for _, m := range model.Methods {
				keys = append(keys, strings.ToLower(string(m)))
			}
		}

		shared, err := p.parseParameters(item["parameters"])
		if err != nil {
			p.warnf("%s: path parameters: %v, path skipped", path, err)
			continue
		}

		pathItem := model.PathItem{Path: path}
		for _, key := range keys {
			method, ok := model.ParseMethod(key)
			if !ok {
				continue
			}
			value, present := item[key]
			if !present {
				continue
			}
			op, ok, err := p.parseOperation(method, path, value, shared)
			if err != nil {
				p.warnf("%s %s: %v, operation skipped", method, path, err)
				continue
			}
			if !ok {
				p.warnf("%s %s: not an operation, skipped", method, path)
				continue
			}
			pathItem.Operations = append(pathItem.Operations, op)
		}
		p.doc.Paths = append(p.doc.Paths, pathItem)
	}
	return nil
}

// overlay returns base with every key of top except `$ref` written over it.
func overlay(base, top map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(top))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range top {
		if k != model.KeyRef {
			out[k] = v
		}
	}
	return out
}

// parseOperation returns ok=false when value does not have the shape of an
// operation object.
func (p *parser) parseOperation(method model.Method, path string, value any, shared []model.Parameter) (model.Operation, bool, error) {
	raw, ok := value.(map[string]any)
	if !ok || !isOperation(raw) {
		return model.Operation{}, false, nil
	}

	op := model.Operation{
		Method:      method,
		Path:        path,
		ID:          text(raw["operationId"]),
		Summary:     text(raw["summary"]),
		Description: text(raw["description"]),
		Tags:        model.StringList(raw["tags"]),
	}
	op.Deprecated, _ = raw["deprecated"].(bool)

	own, err := p.parseParameters(raw["parameters"])
	if err != nil {
		return model.Operation{}, false, fmt.Errorf("parameters: %w", err)
	}
	params := mergeParameters(shared, own)

	if rb, ok := raw["requestBody"].(map[string]any); ok {
		if ref, ok := rb[model.KeyRef].(string); ok {
			target, err := p.resolver.Lookup(ref)
			if err != nil {
				return model.Operation{}, false, fmt.Errorf("requestBody: %w", err)
			}
			body, ok := target.(map[string]any)
			if !ok {
				return model.Operation{}, false, &resolver.RefError{Ref: ref, Reason: "target is not a request body"}
			}
			raw = overlay(raw, map[string]any{"requestBody": body})
		}
	}

	op.Body, op.Parameters = p.adapter.ParseBody(raw, params)
	return op, true, nil
}

func isOperation(raw map[string]any) bool {
	for _, k := range operationKeys {
		if _, ok := raw[k]; ok {
			return true
		}
	}
	return false
}

// mergeParameters applies operation parameters over path-level ones; a
// parameter with the same name and location replaces the shared one.
func mergeParameters(shared, own []model.Parameter) []model.Parameter {
	if len(shared) == 0 {
		return own
	}
	out := make([]model.Parameter, len(shared), len(shared)+len(own))
	copy(out, shared)
	index := make(map[string]int, len(out))
	for i, p := range out {
		index[p.Key()] = i
	}
	for _, p := range own {
		if i, ok := index[p.Key()]; ok {
			out[i] = p
			continue
		}
		index[p.Key()] = len(out)
		out = append(out, p)
	}
	return out
}

func (p *parser) parseParameters(v any) ([]model.Parameter, error) {
	list, ok := v.([]any)
	if !ok {
		return nil, nil
	}
	params := make([]model.Parameter, 0, len(list))
	for i, item := range list {
		raw, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("parameter %d is not a mapping", i)
		}
		if ref, ok := raw[model.KeyRef].(string); ok {
			target, err := p.resolver.Lookup(ref)
			if err != nil {
				return nil, err
			}
			if raw, ok = target.(map[string]any); !ok {
				return nil, &resolver.RefError{Ref: ref, Reason: "target is not a parameter"}
			}
		}
		param := parseParameter(raw)
		if param.Name == "" || param.In == "" {
			return nil, fmt.Errorf("parameter %d has no name or location", i)
		}
		params = append(params, param)
	}
	return params, nil
}

func parseParameter(raw map[string]any) model.Parameter {
	param := model.Parameter{
		Name:        text(raw["name"]),
		In:          model.ParameterLocation(text(raw["in"])),
		Description: text(raw["description"]),
		Type:        text(raw["type"]),
		Format:      text(raw["format"]),
		Pattern:     text(raw["pattern"]),
		Default:     raw["default"],
		Minimum:     number(raw["minimum"]),
		Maximum:     number(raw["maximum"]),
	}
	param.Required, _ = raw["required"].(bool)
	param.Enum, _ = raw["enum"].([]any)
	param.Items, _ = raw["items"].(map[string]any)
	param.Schema, _ = raw["schema"].(map[string]any)

	if param.Schema == nil {
		// Parameters may carry their schema in a single-entry content map.
		if content, ok := raw["content"].(map[string]any); ok {
			for _, media := range content {
				if m, ok := media.(map[string]any); ok {
					param.Schema, _ = m["schema"].(map[string]any)
				}
				break
			}
		}
	}
	return param
}

func text(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}

func number(v any) *float64 {
	var f float64
	switch t := v.(type) {
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case uint64:
		f = float64(t)
	case float64:
		f = t
	default:
		return nil
	}
	return &f
}
