package orchestrator

import (
	"context"
	"strings"
	"testing"

	"github.com/kk7453603/ragcore/internal/core/domain"
	"github.com/kk7453603/ragcore/internal/core/ports"
)

func liveMeta() ports.StoreMetadata {
	return ports.StoreMetadata{
		Sources:     []string{"manual.pdf", "guide.pdf"},
		PageMin:     1,
		PageMax:     120,
		Categories:  []domain.Category{domain.CategoryParagraph, domain.CategoryTable, domain.CategoryFigure},
		EntityTypes: []string{"image", "table", "embedded_doc", "이미지"},
	}
}

func TestGenerateFilterIsEmptyForEmptyIntentQuery(t *testing.T) {
	model := &scriptedModel{}
	model.push(filterDraftSchema, `{}`)

	query := "engine oil change interval"
	hint := extractSubtaskHint(query, liveMeta())
	filter, _ := generateFilter(context.Background(), model, query, hint, liveMeta(), false)

	if !filter.IsEmpty() {
		t.Fatalf("expected empty filter for empty-intent query, got %+v", filter)
	}

	// Idempotence: a second run over the same inputs yields the same filter.
	model.push(filterDraftSchema, `{}`)
	again, _ := generateFilter(context.Background(), model, query, hint, liveMeta(), false)
	if !again.IsEmpty() {
		t.Fatalf("expected second run to stay empty, got %+v", again)
	}
}

func TestGenerateFilterDropsSourcesWithoutDocumentArtifactCue(t *testing.T) {
	model := &scriptedModel{}
	model.push(filterDraftSchema, `{"sources":["manual.pdf"]}`)

	query := "GV80 fuel economy" // product name alone, no document noun
	hint := extractSubtaskHint(query, liveMeta())
	filter, _ := generateFilter(context.Background(), model, query, hint, liveMeta(), false)

	if len(filter.Sources) != 0 {
		t.Fatalf("expected sources dropped without an artifact cue, got %v", filter.Sources)
	}
}

func TestGenerateFilterKeepsSourcesWithArtifactCueAndLiveMatch(t *testing.T) {
	model := &scriptedModel{}
	model.push(filterDraftSchema, `{"sources":["manual.pdf","unknown.pdf"]}`)

	query := "what does the owner's manual say about tire pressure"
	hint := extractSubtaskHint(query, liveMeta())
	filter, _ := generateFilter(context.Background(), model, query, hint, liveMeta(), false)

	if len(filter.Sources) != 1 || filter.Sources[0] != "manual.pdf" {
		t.Fatalf("expected only the live-matching source kept, got %v", filter.Sources)
	}
}

func TestGenerateFilterValidatesPagesAndCategories(t *testing.T) {
	model := &scriptedModel{}
	model.push(filterDraftSchema, `{"pages":[5,999],"categories":["table","banner"]}`)

	query := "show me the safety-feature table on page 5"
	hint := extractSubtaskHint(query, liveMeta())
	filter, _ := generateFilter(context.Background(), model, query, hint, liveMeta(), false)

	if len(filter.Pages) != 1 || filter.Pages[0] != 5 {
		t.Fatalf("expected out-of-range page dropped, got %v", filter.Pages)
	}
	if len(filter.Categories) != 1 || filter.Categories[0] != domain.CategoryTable {
		t.Fatalf("expected unknown category dropped, got %v", filter.Categories)
	}
}

func TestGenerateFilterDeterministicEntityOverride(t *testing.T) {
	model := &scriptedModel{}
	model.push(filterDraftSchema, `{}`)

	query := "summarize the embedded_doc attachments"
	hint := extractSubtaskHint(query, liveMeta())
	filter, _ := generateFilter(context.Background(), model, query, hint, liveMeta(), false)

	if filter.Entity == nil || filter.Entity.Type != "embedded_doc" {
		t.Fatalf("expected deterministic entity override for a clearly named live type, got %+v", filter.Entity)
	}
}

func TestGenerateFilterPreservesNonASCIIEntityLiteral(t *testing.T) {
	model := &scriptedModel{}
	model.push(filterDraftSchema, `{"entity_type":"이미지"}`)

	query := "이미지 자료를 보여줘"
	hint := extractSubtaskHint(query, liveMeta())
	filter, _ := generateFilter(context.Background(), model, query, hint, liveMeta(), false)

	if filter.Entity == nil || filter.Entity.Type != "이미지" {
		t.Fatalf("expected the exact non-ASCII literal from live metadata, got %+v", filter.Entity)
	}
}

func TestExtractSubtaskHintFindsPagesAndCategories(t *testing.T) {
	hint := extractSubtaskHint("show me the safety-feature table on page 5", liveMeta())
	if len(hint.Pages) != 1 || hint.Pages[0] != 5 {
		t.Fatalf("expected page 5 extracted, got %v", hint.Pages)
	}
	found := false
	for _, c := range hint.Categories {
		if c == string(domain.CategoryTable) {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected table category cue, got %v", hint.Categories)
	}
}

func TestBuildSearchJobsAddsEntityScopedPass(t *testing.T) {
	subtask := domain.Subtask{
		Variations:         []string{"v1", "v2"},
		VariationLanguages: []string{"english", "korean"},
		Filter:             domain.Filter{Entity: &domain.EntityFilter{Type: "table"}},
	}

	jobs := buildSearchJobs(subtask)
	// 2 variations x {dense, lexical} x {broad, entity} = 8 jobs.
	if len(jobs) != 8 {
		t.Fatalf("expected 8 jobs, got %d", len(jobs))
	}

	entityJobs := 0
	for _, j := range jobs {
		if j.searchType == "entity" {
			entityJobs++
			if len(j.filter.Categories) == 0 {
				t.Fatal("expected entity pass scoped to entity-bearing categories")
			}
			if j.filter.Entity == nil {
				t.Fatal("expected entity predicate retained on the entity pass")
			}
		} else if j.filter.Entity != nil {
			t.Fatal("expected entity predicate stripped from the broad pass")
		}
	}
	if entityJobs != 4 {
		t.Fatalf("expected 4 entity-scoped jobs, got %d", entityJobs)
	}
}

func TestPrepareDocumentsLabelsEmbeddedDocumentsAndPrioritizesVerified(t *testing.T) {
	docs := []domain.Document{
		{ID: "d1", Content: "plain text"},
		{ID: "d2", Content: "spec sheet scan", Metadata: domain.Metadata{Entity: &domain.Entity{Type: "embedded_doc", Title: "Warranty Annex"}}},
		{ID: "d3", Content: "verified text", Metadata: domain.Metadata{HumanFeedback: "confirmed by support"}},
	}

	sections := prepareDocuments(docs)
	if len(sections) != 3 {
		t.Fatalf("expected 3 sections, got %d", len(sections))
	}
	if !sections[0].humanVerified {
		t.Fatal("expected human-verified document first")
	}
	if !sections[1].hasEntity {
		t.Fatal("expected entity-bearing document second")
	}
	if want := "(Embedded Document)"; !strings.Contains(sections[1].text, want) {
		t.Fatalf("expected embedded-document label in %q", sections[1].text)
	}
}
