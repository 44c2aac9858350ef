// Package compiler turns the operations of a loaded document into tool
// descriptors with flat, self-contained input schemas.
package compiler

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/kolah/argo-mcp/internal/model"
	"github.com/kolah/argo-mcp/internal/naming"
	"github.com/kolah/argo-mcp/internal/resolver"
	"go.uber.org/zap"
)

// BodyProperty is the input property that carries the request payload.
const BodyProperty = "body"

var ErrNoOperations = errors.New("no operations could be compiled")

type Tool struct {
	Name        string
	Description string
	InputSchema model.Schema
	Method      model.Method
	Path        string
	Tags        []string
	Annotations Annotations
}

// Annotations are behavioural hints derived from the HTTP method.
type Annotations struct {
	ReadOnly    bool
	Destructive bool
	Idempotent  bool
}

type DiagnosticKind string

const (
	DiagnosticUnresolvable DiagnosticKind = "unresolvable"
	DiagnosticDuplicate    DiagnosticKind = "duplicate"
	DiagnosticShadowed     DiagnosticKind = "shadowed"
)

// Diagnostic records an operation, or a parameter of one, that was left out
// of the tool set.
type Diagnostic struct {
	Kind   DiagnosticKind
	Name   string
	Method model.Method
	Path   string
	Err    error
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s %s (%s): %s: %v", d.Method, d.Path, d.Name, d.Kind, d.Err)
}

type Options struct {
	IncludeTags []string
	ExcludeTags []string
	Logger      *zap.Logger
}

type Result struct {
	Tools       []Tool
	Index       *Index
	Diagnostics []Diagnostic
}

// Compile builds one tool per uniquely named operation of doc, in document
// order. Operations whose schemas cannot be resolved are dropped and
// reported in Result.Diagnostics. ErrNoOperations is returned when nothing
// could be compiled.
func Compile(doc *model.Document, opts Options) (*Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &compiler{
		adapter:  doc.Adapter(),
		resolver: resolver.New(doc),
	}
	result := &Result{Index: NewIndex()}
	seen := 0

	for pi := range doc.Paths {
		for oi := range doc.Paths[pi].Operations {
			op := &doc.Paths[pi].Operations[oi]
			seen++

			if !selected(op.Tags, opts.IncludeTags, opts.ExcludeTags) {
				logger.Debug("operation filtered by tags",
					zap.String("method", string(op.Method)), zap.String("path", op.Path))
				continue
			}

			name := op.ID
			if name == "" {
				name = naming.OperationName(string(op.Method), op.Path)
			}

			if _, exists := result.Index.Lookup(name); exists {
				d := Diagnostic{Kind: DiagnosticDuplicate, Name: name, Method: op.Method, Path: op.Path,
					Err: errors.New("name already taken, first occurrence kept")}
				result.Diagnostics = append(result.Diagnostics, d)
				logger.Debug("duplicate tool name skipped", zap.String("tool", name),
					zap.String("method", string(op.Method)), zap.String("path", op.Path))
				continue
			}

			tool, shadowed, err := c.compileOperation(name, op)
			if err != nil {
				d := Diagnostic{Kind: DiagnosticUnresolvable, Name: name, Method: op.Method, Path: op.Path, Err: err}
				result.Diagnostics = append(result.Diagnostics, d)
				logger.Warn("dropping operation", zap.String("tool", name),
					zap.String("method", string(op.Method)), zap.String("path", op.Path), zap.Error(err))
				continue
			}

			for _, param := range shadowed {
				d := Diagnostic{Kind: DiagnosticShadowed, Name: name, Method: op.Method, Path: op.Path,
					Err: fmt.Errorf("%s parameter %q dropped, the request body uses that name", param.In, param.Name)}
				result.Diagnostics = append(result.Diagnostics, d)
				logger.Warn("dropping parameter", zap.String("tool", name),
					zap.String("parameter", param.Name), zap.String("in", string(param.In)))
			}

			result.Tools = append(result.Tools, tool)
			result.Index.add(Entry{Name: name, Method: op.Method, Path: op.Path, Operation: op})
		}
	}

	if len(result.Tools) == 0 {
		return nil, fmt.Errorf("%w: %d operations found, %d dropped", ErrNoOperations, seen, len(result.Diagnostics))
	}

	logger.Debug("compiled tools", zap.Int("tools", len(result.Tools)),
		zap.Int("operations", seen), zap.Int("diagnostics", len(result.Diagnostics)))

	return result, nil
}

type compiler struct {
	adapter  model.Adapter
	resolver *resolver.Resolver
}

// compileOperation builds the tool for op. Parameters named like the body
// property are returned as shadowed when op has a body.
func (c *compiler) compileOperation(name string, op *model.Operation) (Tool, []model.Parameter, error) {
	properties := make(map[string]any)
	var required []any
	var shadowed []model.Parameter

	for _, p := range op.Parameters {
		if op.Body != nil && p.Name == BodyProperty {
			shadowed = append(shadowed, p)
			continue
		}
		schema, err := c.resolver.Resolve(c.adapter.ParameterSchema(p))
		if err != nil {
			return Tool{}, nil, fmt.Errorf("parameter %s: %w", p.Name, err)
		}
		if _, ok := schema[model.KeyDescription]; !ok && p.Description != "" {
			schema[model.KeyDescription] = p.Description
		}
		properties[p.Name] = normalize(schema)
		if p.Required && !slices.Contains(required, any(p.Name)) {
			required = append(required, p.Name)
		}
	}

	if op.Body != nil {
		schema, err := c.resolver.Resolve(op.Body.Schema)
		if err != nil {
			return Tool{}, nil, fmt.Errorf("request body: %w", err)
		}
		if _, ok := schema[model.KeyDescription]; !ok && op.Body.Description != "" {
			schema[model.KeyDescription] = op.Body.Description
		}
		properties[BodyProperty] = normalize(schema)
		if op.Body.Required && !slices.Contains(required, any(BodyProperty)) {
			required = append(required, BodyProperty)
		}
	}

	input := model.Schema{
		model.KeyType:                 model.TypeObject,
		model.KeyProperties:           properties,
		model.KeyAdditionalProperties: false,
	}
	if len(required) > 0 {
		input[model.KeyRequired] = required
	}

	return Tool{
		Name:        name,
		Description: Describe(op),
		InputSchema: input,
		Method:      op.Method,
		Path:        op.Path,
		Tags:        op.Tags,
		Annotations: annotate(op.Method),
	}, shadowed, nil
}

// Describe builds the tool description: a headline taken from the summary,
// the first description line or the method and path, followed by the tags
// and, when it adds anything, the full description.
func Describe(op *model.Operation) string {
	summary := strings.TrimSpace(op.Summary)
	description := strings.TrimSpace(op.Description)

	headline := summary
	if headline == "" {
		headline = strings.TrimSpace(firstLine(description))
	}
	if headline == "" {
		headline = string(op.Method) + " " + op.Path
	}

	var b strings.Builder
	if op.Deprecated {
		b.WriteString("DEPRECATED: ")
	}
	b.WriteString(headline)
	if len(op.Tags) > 0 {
		b.WriteString(" [")
		b.WriteString(strings.Join(op.Tags, ", "))
		b.WriteString("]")
	}
	if description != "" && description != headline {
		b.WriteString("\n\n")
		b.WriteString(description)
	}
	return b.String()
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func annotate(method model.Method) Annotations {
	switch method {
	case model.MethodGet, model.MethodHead, model.MethodOptions:
		return Annotations{ReadOnly: true, Idempotent: true}
	case model.MethodDelete:
		return Annotations{Destructive: true, Idempotent: true}
	case model.MethodPut:
		return Annotations{Idempotent: true}
	default:
		return Annotations{}
	}
}

// selected reports whether an operation with the given tags passes the
// include and exclude filters. An empty include list admits everything.
func selected(tags, include, exclude []string) bool {
	for _, t := range tags {
		if slices.Contains(exclude, t) {
			return false
		}
	}
	if len(include) == 0 {
		return true
	}
	for _, t := range tags {
		if slices.Contains(include, t) {
			return true
		}
	}
	return false
}
