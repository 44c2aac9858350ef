package compiler

import "github.com/kolah/argo-mcp/internal/model"

// Entry maps a tool name back onto the operation it was compiled from.
// Operation points into the document the index was built from.
type Entry struct {
	Name      string
	Method    model.Method
	Path      string
	Operation *model.Operation
}

// Index is the read-only lookup table from tool name to operation. It is
// populated during compilation and safe for concurrent reads afterwards.
type Index struct {
	entries map[string]Entry
	routes  map[string]string
	names   []string
}

// NewIndex builds an index from entries. Later entries with an already
// indexed name are ignored.
func NewIndex(entries ...Entry) *Index {
	idx := &Index{
		entries: make(map[string]Entry),
		routes:  make(map[string]string),
	}
	for _, e := range entries {
		if _, exists := idx.entries[e.Name]; !exists {
			idx.add(e)
		}
	}
	return idx
}

func (i *Index) add(e Entry) {
	i.entries[e.Name] = e
	i.routes[routeKey(e.Method, e.Path)] = e.Name
	i.names = append(i.names, e.Name)
}

func (i *Index) Lookup(name string) (Entry, bool) {
	if i == nil {
		return Entry{}, false
	}
	e, ok := i.entries[name]
	return e, ok
}

// Find returns the entry compiled for a method and path template.
func (i *Index) Find(method model.Method, path string) (Entry, bool) {
	if i == nil {
		return Entry{}, false
	}
	name, ok := i.routes[routeKey(method, path)]
	if !ok {
		return Entry{}, false
	}
	return i.entries[name], true
}

// Names returns tool names in compilation order.
func (i *Index) Names() []string {
	if i == nil {
		return nil
	}
	out := make([]string, len(i.names))
	copy(out, i.names)
	return out
}

func (i *Index) Len() int {
	if i == nil {
		return 0
	}
	return len(i.names)
}

func routeKey(method model.Method, path string) string {
	return string(method) + " " + path
}
