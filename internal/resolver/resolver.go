// Package resolver turns schema fragments that contain references and
// composition keywords into self-contained schemas.
package resolver

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/kolah/argo-mcp/internal/model"
)

var ErrUnresolvableRef = errors.New("unresolvable reference")

// RefError reports a reference that could not be followed.
type RefError struct {
	Ref    string
	Reason string
}

func (e *RefError) Error() string {
	return fmt.Sprintf("unresolvable reference %q: %s", e.Ref, e.Reason)
}

func (e *RefError) Unwrap() error {
	return ErrUnresolvableRef
}

// Resolver follows references within a single document. It never mutates the
// document and holds no state between calls, so one Resolver may be shared.
type Resolver struct {
	root        map[string]any
	definitions map[string]any
	refRoot     string
}

func New(doc *model.Document) *Resolver {
	return &Resolver{
		root:        doc.Root,
		definitions: doc.Definitions,
		refRoot:     doc.Adapter().RefRoot(),
	}
}

// Lookup returns the raw value a local reference points at.
func (r *Resolver) Lookup(ref string) (any, error) {
	if !strings.HasPrefix(ref, "#") {
		return nil, &RefError{Ref: ref, Reason: "only local references are supported"}
	}
	pointer := strings.TrimPrefix(strings.TrimPrefix(ref, "#"), "/")
	if pointer == "" {
		return r.root, nil
	}

	segments := strings.Split(pointer, "/")
	for i, s := range segments {
		segments[i] = unescape(s)
	}

	var current any = r.root
	if segments[0] == r.refRoot && r.definitions != nil {
		current = r.definitions
		segments = segments[1:]
	}

	for _, segment := range segments {
		switch node := current.(type) {
		case map[string]any:
			next, ok := node[segment]
			if !ok {
				return nil, &RefError{Ref: ref, Reason: fmt.Sprintf("segment %q not found", segment)}
			}
			current = next
		case []any:
			idx, err := strconv.Atoi(segment)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, &RefError{Ref: ref, Reason: fmt.Sprintf("index %q out of range", segment)}
			}
			current = node[idx]
		default:
			return nil, &RefError{Ref: ref, Reason: fmt.Sprintf("cannot descend into segment %q", segment)}
		}
	}
	return current, nil
}

func unescape(segment string) string {
	if s, err := url.PathUnescape(segment); err == nil {
		segment = s
	}
	segment = strings.ReplaceAll(segment, "~1", "/")
	return strings.ReplaceAll(segment, "~0", "~")
}

// Resolve returns a copy of fragment with every reference followed and every
// composition keyword collapsed. A reference met again while it is still
// being expanded yields a placeholder object schema.
func (r *Resolver) Resolve(fragment model.Schema) (model.Schema, error) {
	return r.resolve(fragment, make(map[string]bool))
}

// Placeholder is the schema substituted for a circular reference.
func Placeholder(ref string) model.Schema {
	return model.Schema{
		model.KeyType:        model.TypeObject,
		model.KeyDescription: "circular reference to " + ref,
	}
}

func (r *Resolver) resolve(s model.Schema, inflight map[string]bool) (model.Schema, error) {
	if s == nil {
		return model.Schema{}, nil
	}

	if ref, ok := s[model.KeyRef].(string); ok {
		return r.resolveRef(ref, without(s, model.KeyRef), inflight)
	}
	if branches, ok := s[model.KeyAllOf].([]any); ok {
		return r.resolveAllOf(branches, without(s, model.KeyAllOf), inflight)
	}
	if branches, ok := s[model.KeyOneOf].([]any); ok {
		return r.resolveFirst(branches, without(s, model.KeyOneOf), inflight)
	}
	if branches, ok := s[model.KeyAnyOf].([]any); ok {
		return r.resolveFirst(branches, without(s, model.KeyAnyOf), inflight)
	}

	out := make(model.Schema, len(s))
	for k, v := range s {
		switch k {
		case model.KeyProperties, model.KeyPatternProperties:
			props, err := r.resolveProperties(v, inflight)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
			out[k] = props
		case model.KeyItems:
			items, err := r.resolveItems(v, inflight)
			if err != nil {
				return nil, fmt.Errorf("items: %w", err)
			}
			out[k] = items
		case model.KeyAdditionalProperties:
			if sub, ok := v.(map[string]any); ok {
				resolved, err := r.resolve(sub, inflight)
				if err != nil {
					return nil, fmt.Errorf("additionalProperties: %w", err)
				}
				out[k] = resolved
				continue
			}
			out[k] = v
		default:
			out[k] = model.CopyValue(v)
		}
	}
	return out, nil
}

func (r *Resolver) resolveRef(ref string, siblings model.Schema, inflight map[string]bool) (model.Schema, error) {
	if inflight[ref] {
		return Placeholder(ref), nil
	}

	target, err := r.Lookup(ref)
	if err != nil {
		return nil, err
	}
	schema, ok := target.(map[string]any)
	if !ok {
		return nil, &RefError{Ref: ref, Reason: "target is not a schema object"}
	}

	inflight[ref] = true
	resolved, err := r.resolve(schema, inflight)
	if err == nil && len(siblings) > 0 {
		var extra model.Schema
		extra, err = r.resolve(siblings, inflight)
		for k, v := range extra {
			resolved[k] = v
		}
	}
	delete(inflight, ref)
	if err != nil {
		return nil, err
	}
	return resolved, nil
}

// resolveAllOf shallow-merges the resolved branches in order, followed by
// the keys that sit next to allOf in the composing schema.
func (r *Resolver) resolveAllOf(branches []any, siblings model.Schema, inflight map[string]bool) (model.Schema, error) {
	merged := model.Schema{}
	for i, b := range branches {
		branch, _ := b.(map[string]any)
		resolved, err := r.resolve(branch, inflight)
		if err != nil {
			return nil, fmt.Errorf("allOf[%d]: %w", i, err)
		}
		merge(merged, resolved)
	}
	if len(siblings) > 0 {
		resolved, err := r.resolve(siblings, inflight)
		if err != nil {
			return nil, err
		}
		merge(merged, resolved)
	}
	return merged, nil
}

// resolveFirst narrows oneOf/anyOf to the first branch. Keys next to the
// keyword fill in whatever the branch leaves unset.
func (r *Resolver) resolveFirst(branches []any, siblings model.Schema, inflight map[string]bool) (model.Schema, error) {
	var out model.Schema
	if len(branches) > 0 {
		branch, _ := branches[0].(map[string]any)
		resolved, err := r.resolve(branch, inflight)
		if err != nil {
			return nil, err
		}
		out = resolved
	} else {
		out = model.Schema{}
	}

	rest, err := r.resolve(siblings, inflight)
	if err != nil {
		return nil, err
	}
	for k, v := range rest {
		if _, exists := out[k]; !exists {
			out[k] = v
		}
	}
	return out, nil
}

func (r *Resolver) resolveProperties(v any, inflight map[string]bool) (any, error) {
	props, ok := v.(map[string]any)
	if !ok {
		return model.CopyValue(v), nil
	}
	out := make(map[string]any, len(props))
	for name, p := range props {
		sub, ok := p.(map[string]any)
		if !ok {
			out[name] = model.CopyValue(p)
			continue
		}
		resolved, err := r.resolve(sub, inflight)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		out[name] = resolved
	}
	return out, nil
}

func (r *Resolver) resolveItems(v any, inflight map[string]bool) (any, error) {
	switch items := v.(type) {
	case map[string]any:
		return r.resolve(items, inflight)
	case []any:
		out := make([]any, len(items))
		for i, item := range items {
			sub, ok := item.(map[string]any)
			if !ok {
				out[i] = model.CopyValue(item)
				continue
			}
			resolved, err := r.resolve(sub, inflight)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = resolved
		}
		return out, nil
	}
	return model.CopyValue(v), nil
}

// merge folds src into dst: properties are unioned with src winning,
// required lists are concatenated without duplicates, anything else is
// overwritten.
func merge(dst, src model.Schema) {
	for k, v := range src {
		switch k {
		case model.KeyProperties:
			props, _ := dst[k].(map[string]any)
			if props == nil {
				props = make(map[string]any)
			}
			if incoming, ok := v.(map[string]any); ok {
				for name, p := range incoming {
					props[name] = p
				}
			}
			dst[k] = props
		case model.KeyRequired:
			dst[k] = appendUnique(model.StringList(dst[k]), model.StringList(v))
		default:
			dst[k] = v
		}
	}
}

func appendUnique(existing, incoming []string) []any {
	seen := make(map[string]bool, len(existing)+len(incoming))
	out := make([]any, 0, len(existing)+len(incoming))
	for _, list := range [][]string{existing, incoming} {
		for _, name := range list {
			if seen[name] {
				continue
			}
			seen[name] = true
			out = append(out, name)
		}
	}
	return out
}

func without(s model.Schema, key string) model.Schema {
	out := make(model.Schema, len(s))
	for k, v := range s {
		if k != key {
			out[k] = v
		}
	}
	return out
}
