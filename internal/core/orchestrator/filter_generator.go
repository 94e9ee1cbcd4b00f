package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kk7453603/ragcore/internal/core/domain"
	"github.com/kk7453603/ragcore/internal/core/ports"
	"github.com/kk7453603/ragcore/internal/infrastructure/keyword"
)

// extractionHint is the structured hint the executor derives from a
// subtask's query before filter generation.
type extractionHint struct {
	Pages       []int    `json:"pages"`
	Categories  []string `json:"categories"`
	EntityTypes []string `json:"entity_types"`
	Keywords    []string `json:"keywords"`
}

type filterDraft struct {
	Sources         []string `json:"sources"`
	Pages           []int    `json:"pages"`
	Categories      []string `json:"categories"`
	CaptionContains string   `json:"caption_contains"`
	EntityType      string   `json:"entity_type"`
	EntityKeywords  []string `json:"entity_keywords"`
	EntityTitle     string   `json:"entity_title"`
}

// documentArtifactCues are the terms accepted as "strong
// textual evidence" before a sources predicate may be set; a product or
// model name alone is explicitly not evidence.
var documentArtifactCues = []string{"manual", "guide", "document", "datasheet", "spec sheet", "handbook", "brochure"}

// structuralCategoryCues map natural-language structural terms to canonical
// categories.
var structuralCategoryCues = map[string]domain.Category{
	"table":    domain.CategoryTable,
	"figure":   domain.CategoryFigure,
	"chart":    domain.CategoryChart,
	"list":     domain.CategoryList,
	"heading":  domain.CategoryHeading1,
	"equation": domain.CategoryEquation,
	"caption":  domain.CategoryCaption,
	"footnote": domain.CategoryFootnote,
	"diagram":  domain.CategoryFigure,
}

// extractSubtaskHint derives the extraction hint with a deterministic,
// dependency-free heuristic: explicit "page N" mentions (only the single
// number after each "page" is read; spans such as "pages 3-5" are not
// expanded), structural-term to
// category mapping, explicit entity-type mentions against the live
// vocabulary, and salient keywords via the keyword package.
func extractSubtaskHint(query string, meta ports.StoreMetadata) extractionHint {
	lower := strings.ToLower(query)
	hint := extractionHint{}

	hint.Pages = extractPageNumbers(lower)

	for cue, category := range structuralCategoryCues {
		if strings.Contains(lower, cue) {
			hint.Categories = append(hint.Categories, string(category))
		}
	}

	for _, entityType := range meta.EntityTypes {
		if entityType != "" && strings.Contains(lower, strings.ToLower(entityType)) {
			hint.EntityTypes = append(hint.EntityTypes, entityType)
		}
	}

	hint.Keywords = keyword.ExtractKeywords(keyword.DetectLanguage(query), query)

	return hint
}

func extractPageNumbers(lowerQuery string) []int {
	var pages []int
	idx := strings.Index(lowerQuery, "page")
	for idx != -1 {
		after := lowerQuery[idx+len("page"):]
		rest := strings.TrimLeft(after, " :#")
		num := 0
		digits := 0
		for _, r := range rest {
			if r < '0' || r > '9' {
				break
			}
			num = num*10 + int(r-'0')
			digits++
		}
		if digits > 0 {
			pages = append(pages, num)
		}
		next := strings.Index(after, "page")
		if next == -1 {
			break
		}
		idx = idx + len("page") + next
	}
	return pages
}

// generateFilter is a schema-constrained model call,
// post-validated against live store metadata (unknown sources/pages/
// categories/entity types dropped), with a deterministic entity override
// when validation empties a filter that clearly named a known entity type.
func generateFilter(ctx context.Context, model ports.Model, query string, hint extractionHint, meta ports.StoreMetadata, aggressiveEntity bool) (domain.Filter, []string) {
	deadline, _ := ctx.Deadline()
	if deadline.IsZero() {
		deadline = time.Now().Add(10 * time.Second)
	}

	var warnings []string
	prompt := buildFilterPrompt(query, hint, meta)
	draft, err := ports.GenerateStructured[filterDraft](ctx, model, prompt, filterDraftSchema, 0, deadline)
	if err != nil {
		warnings = append(warnings, "filter_generation_failed: "+err.Error())
		draft = filterDraft{}
	}

	filter := validateFilter(draft, query, meta)

	if filter.IsEmpty() {
		if override, ok := deterministicEntityOverride(hint, meta, aggressiveEntity); ok {
			filter.Entity = override
		}
	}

	return filter, warnings
}

func validateFilter(draft filterDraft, query string, meta ports.StoreMetadata) domain.Filter {
	var filter domain.Filter

	if hasDocumentArtifactCue(query) {
		for _, s := range draft.Sources {
			if containsString(meta.Sources, s) {
				filter.Sources = append(filter.Sources, s)
			}
		}
	}

	for _, p := range draft.Pages {
		if meta.PageMax == 0 || (p >= meta.PageMin && p <= meta.PageMax) {
			filter.Pages = append(filter.Pages, p)
		}
	}

	for _, c := range draft.Categories {
		cat := domain.Category(c)
		if containsCategory(meta.Categories, cat) {
			filter.Categories = append(filter.Categories, cat)
		}
	}

	if strings.TrimSpace(draft.CaptionContains) != "" {
		filter.CaptionContains = draft.CaptionContains
	}

	if draft.EntityType != "" && containsString(meta.EntityTypes, draft.EntityType) {
		filter.Entity = &domain.EntityFilter{
			Type:     draft.EntityType,
			Keywords: draft.EntityKeywords,
			Title:    draft.EntityTitle,
		}
	}

	return filter
}

// deterministicEntityOverride kicks in when validation leaves the filter
// empty but extraction clearly named a known entity type: the generator
// still emits that entity filter regardless of model output.
func deterministicEntityOverride(hint extractionHint, meta ports.StoreMetadata, aggressive bool) (*domain.EntityFilter, bool) {
	for _, t := range hint.EntityTypes {
		if containsString(meta.EntityTypes, t) {
			return &domain.EntityFilter{Type: t}, true
		}
	}
	if aggressive && len(hint.EntityTypes) > 0 {
		return &domain.EntityFilter{Type: hint.EntityTypes[0]}, true
	}
	return nil, false
}

func hasDocumentArtifactCue(query string) bool {
	lower := strings.ToLower(query)
	for _, cue := range documentArtifactCues {
		if strings.Contains(lower, cue) {
			return true
		}
	}
	return false
}

func containsString(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func containsCategory(list []domain.Category, v domain.Category) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func buildFilterPrompt(query string, hint extractionHint, meta ports.StoreMetadata) string {
	return fmt.Sprintf(`Produce a maximally empty document filter: only add a predicate when the query gives strong, explicit textual evidence for it. A product or model name alone is never evidence for a sources predicate; only an explicit document-artifact mention (manual, guide, document, ...) combined with a matching live source is.

Live sources: %v
Live categories: %v
Live entity types: %v
Page range: %d-%d

Extraction hint: pages=%v categories=%v entity_types=%v keywords=%v

Query: %s`, meta.Sources, meta.Categories, meta.EntityTypes, meta.PageMin, meta.PageMax,
		hint.Pages, hint.Categories, hint.EntityTypes, hint.Keywords, query)
}
