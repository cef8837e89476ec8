package survey

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownModel is matched by UnknownModelError.
var ErrUnknownModel = errors.New("unknown model")

// UnknownModelError names a slug that is not registered.
type UnknownModelError struct {
	Slug      string
	Available []string
}

func (e *UnknownModelError) Error() string {
	return fmt.Sprintf("unknown model %q, available: %s", e.Slug, strings.Join(e.Available, ", "))
}

func (e *UnknownModelError) Is(target error) bool { return target == ErrUnknownModel }

// Registry maps slugs to loaded model specs. It is built once and only read
// afterwards.
type Registry struct {
	specs map[string]*ModelSpec
	order []string
	def   string
}

// NewRegistry builds a registry. The default slug must be one of the specs.
func NewRegistry(defaultSlug string, specs ...*ModelSpec) (*Registry, error) {
	if len(specs) == 0 {
		return nil, errors.New("no models registered")
	}
	r := &Registry{specs: make(map[string]*ModelSpec, len(specs))}
	for _, s := range specs {
		slug := normalizeSlug(s.Slug)
		if _, dup := r.specs[slug]; dup {
			return nil, fmt.Errorf("duplicate model %q", slug)
		}
		r.specs[slug] = s
		r.order = append(r.order, slug)
	}
	r.def = normalizeSlug(defaultSlug)
	if _, ok := r.specs[r.def]; !ok {
		return nil, &UnknownModelError{Slug: defaultSlug, Available: r.Slugs()}
	}
	return r, nil
}

// Lookup returns the spec for a slug; an empty slug selects the default.
func (r *Registry) Lookup(slug string) (*ModelSpec, error) {
	key := normalizeSlug(slug)
	if key == "" {
		key = r.def
	}
	s, ok := r.specs[key]
	if !ok {
		return nil, &UnknownModelError{Slug: slug, Available: r.Slugs()}
	}
	return s, nil
}

// Slugs returns the registered slugs in registration order.
func (r *Registry) Slugs() []string {
	return append([]string(nil), r.order...)
}

// Default returns the default slug.
func (r *Registry) Default() string {
	return r.def
}

// All returns the registered specs in registration order.
func (r *Registry) All() []*ModelSpec {
	out := make([]*ModelSpec, len(r.order))
	for i, slug := range r.order {
		out[i] = r.specs[slug]
	}
	return out
}

func normalizeSlug(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
