// Package templates renders the Markdown tool catalogue. Built-in templates
// are embedded; a custom directory may replace any of them by file name.
package templates

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"text/template"
)

type Engine interface {
	Execute(name string, data any) (string, error)
}

//go:embed files/*.tmpl
var builtin embed.FS

type TextTemplateEngine struct {
	root *template.Template
}

// Default returns an engine over the built-in templates, overridden by the
// *.tmpl files of customDir when it is set and exists.
func Default(customDir string) (*TextTemplateEngine, error) {
	files, err := fs.Sub(builtin, "files")
	if err != nil {
		return nil, err
	}

	layers := []fs.FS{files}
	if customDir != "" {
		if _, err := os.Stat(customDir); err == nil {
			layers = append(layers, os.DirFS(customDir))
		} else if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("opening custom templates: %w", err)
		}
	}
	return NewEngine(Funcs(), layers...)
}

// NewEngine parses the *.tmpl files of each layer in turn; a later layer
// redefines templates of the same name.
func NewEngine(funcs template.FuncMap, layers ...fs.FS) (*TextTemplateEngine, error) {
	root := template.New("").Funcs(funcs)
	for _, layer := range layers {
		names, err := fs.Glob(layer, "*.tmpl")
		if err != nil {
			return nil, err
		}
		for _, name := range names {
			content, err := fs.ReadFile(layer, name)
			if err != nil {
				return nil, fmt.Errorf("reading template %s: %w", name, err)
			}
			if _, err := root.New(name).Parse(string(content)); err != nil {
				return nil, fmt.Errorf("parsing template %s: %w", name, err)
			}
		}
	}
	return &TextTemplateEngine{root: root}, nil
}

// Names lists the loaded template names.
func (e *TextTemplateEngine) Names() []string {
	var names []string
	for _, t := range e.root.Templates() {
		if t.Name() != "" {
			names = append(names, t.Name())
		}
	}
	sort.Strings(names)
	return names
}

func (e *TextTemplateEngine) Execute(name string, data any) (string, error) {
	tmpl := e.root.Lookup(name)
	if tmpl == nil {
		return "", fmt.Errorf("template not found: %s", name)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("executing template %s: %w", name, err)
	}
	return buf.String(), nil
}
