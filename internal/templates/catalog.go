package templates

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"text/template"

	"github.com/kolah/argo-mcp/internal/compiler"
	"github.com/kolah/argo-mcp/internal/model"
	"github.com/kolah/argo-mcp/internal/naming"
)

const CatalogTemplate = "catalog.md.tmpl"

// CatalogData is the input of the catalogue template.
type CatalogData struct {
	Title       string
	Version     string
	Dialect     model.Version
	BaseURL     string
	Tools       []compiler.Tool
	Diagnostics []compiler.Diagnostic
}

// Group is a set of tools sharing their first tag.
type Group struct {
	Tag   string
	Tools []compiler.Tool
}

// Groups buckets tools by first tag in order of first appearance. Untagged
// tools go last, under "Other".
func (d CatalogData) Groups() []Group {
	var groups []Group
	index := make(map[string]int)
	var other []compiler.Tool
	for _, t := range d.Tools {
		if len(t.Tags) == 0 {
			other = append(other, t)
			continue
		}
		i, ok := index[t.Tags[0]]
		if !ok {
			i = len(groups)
			index[t.Tags[0]] = i
			groups = append(groups, Group{Tag: t.Tags[0]})
		}
		groups[i].Tools = append(groups[i].Tools, t)
	}
	if len(other) > 0 {
		groups = append(groups, Group{Tag: "Other", Tools: other})
	}
	return groups
}

// Argument is one row of a tool's argument table.
type Argument struct {
	Name        string
	Type        string
	Required    bool
	Description string
}

// Arguments lists the properties of an input schema sorted by name, required
// ones first.
func Arguments(schema model.Schema) []Argument {
	props, _ := schema[model.KeyProperties].(map[string]any)
	required := make(map[string]bool)
	for _, name := range model.StringList(schema[model.KeyRequired]) {
		required[name] = true
	}

	args := make([]Argument, 0, len(props))
	for name, p := range props {
		prop, _ := p.(map[string]any)
		description, _ := prop[model.KeyDescription].(string)
		args = append(args, Argument{
			Name:        name,
			Type:        typeName(prop),
			Required:    required[name],
			Description: description,
		})
	}
	sort.Slice(args, func(i, j int) bool {
		if args[i].Required != args[j].Required {
			return args[i].Required
		}
		return args[i].Name < args[j].Name
	})
	return args
}

func typeName(s map[string]any) string {
	switch t := s[model.KeyType].(type) {
	case string:
		if t == model.TypeArray {
			if items, ok := s[model.KeyItems].(map[string]any); ok {
				return typeName(items) + "[]"
			}
		}
		return t
	case []any:
		parts := make([]string, 0, len(t))
		for _, v := range t {
			parts = append(parts, fmt.Sprint(v))
		}
		return strings.Join(parts, " \\| ")
	}
	if _, ok := s[model.KeyProperties]; ok {
		return model.TypeObject
	}
	return "any"
}

func Funcs() template.FuncMap {
	return template.FuncMap{
		"anchor":    naming.Anchor,
		"arguments": Arguments,
		"firstLine": func(s string) string {
			line, _, _ := strings.Cut(s, "\n")
			return line
		},
		"cell": func(s string) string {
			s = strings.ReplaceAll(s, "\n", " ")
			return strings.ReplaceAll(s, "|", "\\|")
		},
		"json": func(v any) (string, error) {
			data, err := json.MarshalIndent(v, "", "  ")
			return string(data), err
		},
	}
}

// RenderCatalog renders the Markdown tool catalogue.
func RenderCatalog(engine Engine, data CatalogData) (string, error) {
	return engine.Execute(CatalogTemplate, data)
}
