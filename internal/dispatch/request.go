package dispatch

import (
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/kolah/argo-mcp/internal/compiler"
	"github.com/kolah/argo-mcp/internal/model"
)

// ReservedPrefix marks argument keys that are never sent to the API.
const ReservedPrefix = "_"

var placeholder = regexp.MustCompile(`\{([^{}]+)\}`)

// Request is one HTTP call assembled from a flat argument map.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   any
}

// Build maps args onto the path template, query string and body of the
// operation behind entry. A placeholder without a matching argument is left
// in the path as-is. Build never modifies args.
func Build(entry compiler.Entry, args map[string]any) (Request, error) {
	method, err := httpMethod(entry.Method)
	if err != nil {
		return Request{}, err
	}

	consumed := make(map[string]bool)
	path := placeholder.ReplaceAllStringFunc(entry.Path, func(match string) string {
		name := match[1 : len(match)-1]
		value, ok := args[name]
		if !ok {
			return match
		}
		consumed[name] = true
		return url.PathEscape(formatScalar(value))
	})

	req := Request{Method: method, Path: path, Query: url.Values{}}
	for key, value := range args {
		switch {
		case consumed[key], strings.HasPrefix(key, ReservedPrefix):
			continue
		case key == compiler.BodyProperty:
			req.Body = value
			continue
		}
		for _, v := range formatQuery(value) {
			req.Query.Add(key, v)
		}
	}
	return req, nil
}

func httpMethod(m model.Method) (string, error) {
	switch m {
	case model.MethodGet, model.MethodPost, model.MethodPut, model.MethodPatch, model.MethodDelete:
		return string(m), nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedMethod, m)
}

// formatQuery renders an argument as query values: arrays repeat the key,
// objects are JSON encoded and nil is omitted.
func formatQuery(v any) []string {
	switch t := v.(type) {
	case nil:
		return nil
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			out = append(out, formatQuery(item)...)
		}
		return out
	case []string:
		return t
	default:
		return []string{formatScalar(v)}
	}
}

func formatScalar(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case json.Number:
		return t.String()
	case map[string]any, []any:
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(data)
	default:
		return fmt.Sprint(t)
	}
}
