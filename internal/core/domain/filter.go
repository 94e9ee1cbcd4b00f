package domain

import "strings"

// EntityFilter constrains documents by their Entity annotation.
type EntityFilter struct {
	Type     string   `json:"type,omitempty"`
	Keywords []string `json:"keywords,omitempty"`
	Title    string   `json:"title,omitempty"`
}

func (f *EntityFilter) isEmpty() bool {
	return f == nil || (f.Type == "" && len(f.Keywords) == 0 && f.Title == "")
}

// Filter is an immutable conjunction of optional predicates. An empty filter
// matches all documents. Callers must never mutate a filter after
// construction; every method here returns a new value.
type Filter struct {
	Sources         []string      `json:"sources,omitempty"`
	Pages           []int         `json:"pages,omitempty"`
	Categories      []Category    `json:"categories,omitempty"`
	CaptionContains string        `json:"caption_contains,omitempty"`
	Entity          *EntityFilter `json:"entity,omitempty"`
}

// IsEmpty reports whether the filter matches every document.
func (f Filter) IsEmpty() bool {
	return len(f.Sources) == 0 && len(f.Pages) == 0 && len(f.Categories) == 0 &&
		f.CaptionContains == "" && f.Entity.isEmpty()
}

// WithoutEntity returns a copy of f with the entity predicate stripped. Used
// by the hybrid retriever's dual-filter broad pass.
func (f Filter) WithoutEntity() Filter {
	clone := f
	clone.Entity = nil
	return clone
}

// ScopedToCategories returns a copy of f restricted to the given categories,
// replacing whatever categories predicate it already carried. Used by the
// hybrid retriever's dual-filter entity-scoped pass.
func (f Filter) ScopedToCategories(categories []Category) Filter {
	clone := f
	clone.Categories = categories
	return clone
}

// MatchesCaption reports whether a document's caption satisfies the filter's
// CaptionContains predicate (case-insensitive substring).
func (f Filter) MatchesCaption(caption string) bool {
	if f.CaptionContains == "" {
		return true
	}
	return strings.Contains(strings.ToLower(caption), strings.ToLower(f.CaptionContains))
}
