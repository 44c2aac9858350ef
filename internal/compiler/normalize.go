package compiler

import (
	"strings"

	"github.com/kolah/argo-mcp/internal/model"
)

// openAPIOnly are schema keywords with no JSON Schema meaning.
var openAPIOnly = map[string]bool{
	"discriminator": true,
	"xml":           true,
	"externalDocs":  true,
}

// normalize rewrites OpenAPI schema dialect into plain JSON Schema in place.
func normalize(s model.Schema) model.Schema {
	if s == nil {
		return nil
	}

	for k := range s {
		if strings.HasPrefix(k, "x-") || openAPIOnly[k] {
			delete(s, k)
		}
	}

	if t, ok := s[model.KeyType].(string); ok && t == model.TypeFile {
		s[model.KeyType] = model.TypeString
		s[model.KeyFormat] = "binary"
	}

	if nullable, ok := s["nullable"].(bool); ok {
		delete(s, "nullable")
		if t, ok := s[model.KeyType].(string); nullable && ok {
			s[model.KeyType] = []any{t, model.TypeNull}
		}
	}

	exclusiveBound(s, "exclusiveMinimum", "minimum")
	exclusiveBound(s, "exclusiveMaximum", "maximum")

	if example, ok := s["example"]; ok {
		delete(s, "example")
		if _, exists := s["examples"]; !exists {
			s["examples"] = []any{example}
		}
	}

	for _, key := range []string{model.KeyProperties, model.KeyPatternProperties} {
		if props, ok := s[key].(map[string]any); ok {
			for name, p := range props {
				if sub, ok := p.(map[string]any); ok {
					props[name] = normalize(sub)
				}
			}
		}
	}

	switch items := s[model.KeyItems].(type) {
	case map[string]any:
		s[model.KeyItems] = normalize(items)
	case []any:
		for i, item := range items {
			if sub, ok := item.(map[string]any); ok {
				items[i] = normalize(sub)
			}
		}
	}

	if sub, ok := s[model.KeyAdditionalProperties].(map[string]any); ok {
		s[model.KeyAdditionalProperties] = normalize(sub)
	}

	return s
}

// exclusiveBound converts the boolean form `exclusiveMinimum: true` next to
// `minimum` into the numeric form.
func exclusiveBound(s model.Schema, exclusive, bound string) {
	flag, ok := s[exclusive].(bool)
	if !ok {
		return
	}
	delete(s, exclusive)
	if value, ok := s[bound]; flag && ok {
		s[exclusive] = value
		delete(s, bound)
	}
}
