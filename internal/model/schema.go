package model

// Schema is a JSON-Schema-shaped fragment as it appears in the document. It
// may still hold `$ref` and composition keywords; once passed through the
// resolver it holds neither.
type Schema = map[string]any

// Keywords the resolver and compiler care about.
const (
	KeyRef                  = "$ref"
	KeyAllOf                = "allOf"
	KeyOneOf                = "oneOf"
	KeyAnyOf                = "anyOf"
	KeyType                 = "type"
	KeyProperties           = "properties"
	KeyPatternProperties    = "patternProperties"
	KeyAdditionalProperties = "additionalProperties"
	KeyItems                = "items"
	KeyRequired             = "required"
	KeyDescription          = "description"
	KeyEnum                 = "enum"
	KeyFormat               = "format"
	KeyDefault              = "default"
)

const (
	TypeString  = "string"
	TypeNumber  = "number"
	TypeInteger = "integer"
	TypeBoolean = "boolean"
	TypeArray   = "array"
	TypeObject  = "object"
	TypeNull    = "null"
	TypeFile    = "file"
)

// CopySchema returns a deep copy of s. Maps and slices are copied; scalar
// leaves are shared.
func CopySchema(s Schema) Schema {
	if s == nil {
		return nil
	}
	return CopyValue(s).(map[string]any)
}

// CopyValue deep-copies decoded maps and slices.
func CopyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = CopyValue(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = CopyValue(val)
		}
		return out
	case []string:
		out := make([]string, len(t))
		copy(out, t)
		return out
	default:
		return v
	}
}

// StringList reads a list of strings from a decoded value, skipping
// anything that is not a string.
func StringList(v any) []string {
	switch t := v.(type) {
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
