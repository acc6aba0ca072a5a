package prompt

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ErrNotFound is returned when no prompt is registered for a content type.
var ErrNotFound = errors.New("prompt not found")

// Registry resolves prompt definitions by content type slug.
type Registry interface {
	Get(slug string) (*Prompt, error)
	List() []*Prompt
}

// InMemoryRegistry holds prompts keyed by lowercase slug.
type InMemoryRegistry struct {
	bySlug map[string]*Prompt
}

func normalizeSlug(slug string) string {
	return strings.ToLower(strings.TrimSpace(slug))
}

// NewRegistry indexes prompts by slug. Slugs compare case-insensitively and
// must be unique.
func NewRegistry(prompts []*Prompt) (*InMemoryRegistry, error) {
	reg := &InMemoryRegistry{bySlug: make(map[string]*Prompt, len(prompts))}
	for _, p := range prompts {
		if p == nil {
			continue
		}
		slug := normalizeSlug(p.Config.Slug)
		if slug == "" {
			return nil, fmt.Errorf("prompt missing slug")
		}
		if _, dup := reg.bySlug[slug]; dup {
			return nil, fmt.Errorf("duplicate prompt slug: %s", slug)
		}
		reg.bySlug[slug] = p
	}
	return reg, nil
}

// Get returns the prompt for slug, or ErrNotFound.
func (r *InMemoryRegistry) Get(slug string) (*Prompt, error) {
	if r == nil {
		return nil, fmt.Errorf("prompt registry not configured")
	}
	key := normalizeSlug(slug)
	if key == "" {
		return nil, fmt.Errorf("prompt slug is required")
	}
	if p, ok := r.bySlug[key]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrNotFound, key)
}

// List returns prompts ordered by slug.
func (r *InMemoryRegistry) List() []*Prompt {
	if r == nil {
		return nil
	}
	slugs := make([]string, 0, len(r.bySlug))
	for slug := range r.bySlug {
		slugs = append(slugs, slug)
	}
	slices.Sort(slugs)
	out := make([]*Prompt, 0, len(slugs))
	for _, slug := range slugs {
		out = append(out, r.bySlug[slug])
	}
	return out
}

// Require reports every slug in want that reg cannot resolve.
func Require(reg Registry, want ...string) error {
	var missing []string
	for _, slug := range want {
		if _, err := reg.Get(slug); err != nil {
			missing = append(missing, normalizeSlug(slug))
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, strings.Join(missing, ", "))
	}
	return nil
}
