package model

import "strings"

// Version identifies which API description dialect a document is written in.
type Version string

const (
	VersionOpenAPI3 Version = "openapi3"
	VersionSwagger2 Version = "swagger2"
)

// Document is the normalized in-memory form of a parsed API description.
// It owns the raw parsed tree; everything derived from it (resolved schemas,
// the operation index) refers back into it.
type Document struct {
	Version Version
	// Marker is the raw value of the `openapi` or `swagger` field.
	Marker  string
	Info    Info
	BaseURL string
	Paths   []PathItem

	// Definitions is the shared-definition store: `components` for 3.x,
	// `definitions` for 2.0.
	Definitions map[string]any
	// Root is the whole decoded document, used for references that do not
	// start at the definitions store (e.g. `#/parameters/limit`).
	Root map[string]any
}

type Info struct {
	Title       string
	Description string
	Version     string
}

type PathItem struct {
	Path       string
	Operations []Operation
}

// Adapter returns the version adapter for the document.
func (d *Document) Adapter() Adapter {
	return AdapterFor(d.Version)
}

// OperationCount returns the number of recognized operations across all paths.
func (d *Document) OperationCount() int {
	n := 0
	for _, p := range d.Paths {
		n += len(p.Operations)
	}
	return n
}

// Operation returns a pointer to the operation stored in the document for the
// given method and path template, or nil.
func (d *Document) Operation(method Method, path string) *Operation {
	for i := range d.Paths {
		if d.Paths[i].Path != path {
			continue
		}
		for j := range d.Paths[i].Operations {
			if d.Paths[i].Operations[j].Method == method {
				return &d.Paths[i].Operations[j]
			}
		}
	}
	return nil
}

// Tags returns the distinct operation tags in document order.
func (d *Document) Tags() []string {
	seen := make(map[string]bool)
	var tags []string
	for _, p := range d.Paths {
		for _, op := range p.Operations {
			for _, t := range op.Tags {
				if !seen[t] {
					seen[t] = true
					tags = append(tags, t)
				}
			}
		}
	}
	return tags
}

// ParseVersion maps a version marker pair onto a Version. ok is false when
// the markers do not unambiguously name a supported dialect.
func ParseVersion(openapi, swagger string) (Version, bool) {
	switch {
	case openapi != "" && swagger != "":
		return "", false
	case strings.HasPrefix(openapi, "3."):
		return VersionOpenAPI3, true
	case swagger == "2.0":
		return VersionSwagger2, true
	}
	return "", false
}
