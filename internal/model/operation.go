package model

import "strings"

type Operation struct {
	ID          string
	Method      Method
	Path        string
	Summary     string
	Description string
	Tags        []string
	Deprecated  bool
	Parameters  []Parameter
	Body        *Body
}

// Body is the JSON request payload of an operation, wherever the dialect
// declares it (`requestBody` in 3.x, an `in: body` parameter in 2.0).
type Body struct {
	Description string
	Required    bool
	Schema      Schema
}

type Method string

const (
	MethodGet     Method = "GET"
	MethodPost    Method = "POST"
	MethodPut     Method = "PUT"
	MethodDelete  Method = "DELETE"
	MethodPatch   Method = "PATCH"
	MethodHead    Method = "HEAD"
	MethodOptions Method = "OPTIONS"
	MethodTrace   Method = "TRACE"
)

// Methods lists the path item keys that may hold an operation, in the order
// the compiler visits them when a document gives no order of its own.
var Methods = []Method{
	MethodGet,
	MethodPut,
	MethodPost,
	MethodDelete,
	MethodOptions,
	MethodHead,
	MethodPatch,
	MethodTrace,
}

// ParseMethod converts a path item key into a Method. ok is false for keys
// that are not HTTP verbs (`parameters`, `summary`, `$ref`, extensions...).
func ParseMethod(key string) (Method, bool) {
	m := Method(strings.ToUpper(key))
	for _, known := range Methods {
		if m == known {
			return m, true
		}
	}
	return "", false
}

type ParameterLocation string

const (
	LocationPath     ParameterLocation = "path"
	LocationQuery    ParameterLocation = "query"
	LocationHeader   ParameterLocation = "header"
	LocationCookie   ParameterLocation = "cookie"
	LocationBody     ParameterLocation = "body"
	LocationFormData ParameterLocation = "formData"
)

type Parameter struct {
	Name        string
	In          ParameterLocation
	Description string
	Required    bool

	// Schema is the nested schema fragment (3.x, or a 2.0 body parameter).
	// It may be a `$ref`.
	Schema Schema

	// Legacy 2.0 fields declared directly on non-body parameters.
	Type    string
	Format  string
	Enum    []any
	Items   Schema
	Default any
	Minimum *float64
	Maximum *float64
	Pattern string
}

// Key identifies a parameter within an operation.
func (p Parameter) Key() string {
	return string(p.In) + ":" + p.Name
}
