package model

import (
	"sort"
	"strings"
)

// Adapter captures where the two supported dialects disagree: the name of
// the shared-definition store and the shape of parameters and bodies.
type Adapter interface {
	Version() Version
	// RefRoot is the first pointer segment that addresses the definitions store.
	RefRoot() string
	// ParameterSchema returns the schema fragment describing a non-body
	// parameter. The result may still contain references.
	ParameterSchema(p Parameter) Schema
	// ParseBody extracts the request body of a raw operation mapping. It
	// returns the parameters that remain once the body is taken out.
	ParseBody(raw map[string]any, params []Parameter) (*Body, []Parameter)
}

// AdapterFor selects the adapter for a detected version.
func AdapterFor(v Version) Adapter {
	switch v {
	case VersionSwagger2:
		return swagger2Adapter{}
	default:
		return openapi3Adapter{}
	}
}

type openapi3Adapter struct{}

func (openapi3Adapter) Version() Version { return VersionOpenAPI3 }

func (openapi3Adapter) RefRoot() string { return "components" }

func (openapi3Adapter) ParameterSchema(p Parameter) Schema {
	if p.Schema != nil {
		return CopySchema(p.Schema)
	}
	// Tolerate 2.0-style fields in a 3.x document.
	return legacySchema(p)
}

func (openapi3Adapter) ParseBody(raw map[string]any, params []Parameter) (*Body, []Parameter) {
	rb, ok := raw["requestBody"].(map[string]any)
	if !ok {
		return nil, params
	}
	content, _ := rb["content"].(map[string]any)
	media := jsonMedia(content)
	if media == nil {
		return nil, params
	}
	schema, _ := media["schema"].(map[string]any)
	if schema == nil {
		schema = Schema{}
	}
	body := &Body{Schema: schema}
	body.Required, _ = rb["required"].(bool)
	body.Description, _ = rb["description"].(string)
	return body, params
}

// jsonMedia picks `application/json` when present, otherwise the first
// JSON-flavoured media type in key order.
func jsonMedia(content map[string]any) map[string]any {
	if m, ok := content["application/json"].(map[string]any); ok {
		return m
	}
	keys := make([]string, 0, len(content))
	for k := range content {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if strings.Contains(k, "json") {
			if m, ok := content[k].(map[string]any); ok {
				return m
			}
		}
	}
	return nil
}

type swagger2Adapter struct{}

func (swagger2Adapter) Version() Version { return VersionSwagger2 }

func (swagger2Adapter) RefRoot() string { return "definitions" }

func (swagger2Adapter) ParameterSchema(p Parameter) Schema {
	if p.Type == "" && p.Schema != nil {
		return CopySchema(p.Schema)
	}
	return legacySchema(p)
}

func (swagger2Adapter) ParseBody(_ map[string]any, params []Parameter) (*Body, []Parameter) {
	var body *Body
	rest := make([]Parameter, 0, len(params))
	for _, p := range params {
		if p.In != LocationBody {
			rest = append(rest, p)
			continue
		}
		if body != nil {
			continue
		}
		schema := p.Schema
		if schema == nil {
			schema = Schema{}
		}
		body = &Body{Schema: schema, Required: p.Required, Description: p.Description}
	}
	return body, rest
}

// legacySchema translates parameter-level type fields into a schema.
func legacySchema(p Parameter) Schema {
	s := Schema{}
	if p.Type != "" {
		s[KeyType] = p.Type
	}
	if p.Format != "" {
		s[KeyFormat] = p.Format
	}
	if len(p.Enum) > 0 {
		s[KeyEnum] = append([]any(nil), p.Enum...)
	}
	if p.Items != nil {
		s[KeyItems] = CopySchema(p.Items)
	}
	if p.Default != nil {
		s[KeyDefault] = p.Default
	}
	if p.Minimum != nil {
		s["minimum"] = *p.Minimum
	}
	if p.Maximum != nil {
		s["maximum"] = *p.Maximum
	}
	if p.Pattern != "" {
		s["pattern"] = p.Pattern
	}
	if len(s) == 0 {
		s[KeyType] = TypeString
	}
	return s
}
