package orchestrator

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/kk7453603/ragcore/internal/core/domain"
	"github.com/kk7453603/ragcore/internal/core/ports"
)

// scriptedModel is a deterministic ports.Model fake: each structured call is
// dispatched by schema identity to a FIFO queue of canned responses, so a
// test can script exactly what the planner, filter generator, synthesizer,
// etc. "decide" on each invocation without a live model.
type scriptedModel struct {
	structured map[string][]json.RawMessage
	generate   string
}

func (m *scriptedModel) Generate(ctx context.Context, prompt string, temperature float64, deadline time.Time) (string, error) {
	return m.generate, nil
}

func (m *scriptedModel) GenerateStructured(ctx context.Context, prompt string, schema json.RawMessage, temperature float64, deadline time.Time) (json.RawMessage, error) {
	key := string(schema)
	q := m.structured[key]
	if len(q) == 0 {
		return json.RawMessage(`{}`), nil
	}
	m.structured[key] = q[1:]
	return q[0], nil
}

func (m *scriptedModel) push(schema json.RawMessage, response string) {
	if m.structured == nil {
		m.structured = map[string][]json.RawMessage{}
	}
	key := string(schema)
	m.structured[key] = append(m.structured[key], json.RawMessage(response))
}

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(ctx context.Context, language, text string) ([]float32, error) {
	return []float32{0.1, 0.2, 0.3}, nil
}

type fakeStore struct {
	docs []domain.Document
	meta ports.StoreMetadata
}

func (s *fakeStore) DenseSearch(ctx context.Context, language string, embedding []float32, filter domain.Filter, limit int) ([]ports.RankedDocument, error) {
	return s.ranked(), nil
}

func (s *fakeStore) LexicalSearch(ctx context.Context, language string, expression string, filter domain.Filter, limit int) ([]ports.RankedDocument, error) {
	return s.ranked(), nil
}

func (s *fakeStore) ranked() []ports.RankedDocument {
	out := make([]ports.RankedDocument, len(s.docs))
	for i, d := range s.docs {
		out[i] = ports.RankedDocument{Document: d, Rank: i + 1}
	}
	return out
}

func (s *fakeStore) GetDocument(ctx context.Context, id string) (domain.Document, error) {
	for _, d := range s.docs {
		if d.ID == id {
			return d, nil
		}
	}
	return domain.Document{}, domain.ErrDocumentNotFound
}

func (s *fakeStore) GetMetadata(ctx context.Context) (ports.StoreMetadata, error) {
	return s.meta, nil
}

type emptyStore struct{}

func (emptyStore) DenseSearch(ctx context.Context, language string, embedding []float32, filter domain.Filter, limit int) ([]ports.RankedDocument, error) {
	return nil, nil
}
func (emptyStore) LexicalSearch(ctx context.Context, language string, expression string, filter domain.Filter, limit int) ([]ports.RankedDocument, error) {
	return nil, nil
}
func (emptyStore) GetDocument(ctx context.Context, id string) (domain.Document, error) {
	return domain.Document{}, domain.ErrDocumentNotFound
}
func (emptyStore) GetMetadata(ctx context.Context) (ports.StoreMetadata, error) {
	return ports.StoreMetadata{}, nil
}

type fakeWebTool struct {
	docs []domain.Document
}

func (w fakeWebTool) Search(ctx context.Context, query string, maxResults int) ([]domain.Document, error) {
	return w.docs, nil
}

func baseConfig() Config {
	return Config{
		MaxSubtasks:            5,
		MaxRetries:             3,
		TopK:                   10,
		RRFK:                   60,
		WebFallbackThreshold:   3,
		ThresholdHallucination: 0.7,
		ThresholdGrade:         0.6,
		RoutingEnabled:         true,
		WebEnabled:             false,
		TurnDeadline:           5 * time.Second,
		WorkerPoolSize:         3,
		MetadataCacheTTL:       time.Minute,
	}
}

// TestScenarioSimpleChitchat exercises scenario 1.
func TestScenarioSimpleChitchat(t *testing.T) {
	model := &scriptedModel{generate: "Hello! How can I help you today?"}
	model.push(routerSchema, `{"type":"simple","confidence":0.95,"reasoning":"greeting"}`)

	o := New(emptyStore{}, model, fakeEmbedder{}, nil, baseConfig())

	result, err := o.Run(context.Background(), "hello", Options{})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if result.State.WorkflowStatus != domain.WorkflowCompleted {
		t.Fatalf("expected completed, got %s (error=%s)", result.State.WorkflowStatus, result.State.Error)
	}
	if result.Answer != "Hello! How can I help you today?" {
		t.Fatalf("unexpected answer: %q", result.Answer)
	}
	if len(result.State.Documents) != 0 || len(result.State.Subtasks) != 0 {
		t.Fatalf("expected no documents/subtasks, got %d/%d", len(result.State.Documents), len(result.State.Subtasks))
	}
	if result.State.RetryCount != 0 {
		t.Fatalf("expected retry_count 0, got %d", result.State.RetryCount)
	}
}

// TestScenarioHallucinationRetryThenAccept exercises scenario 6.
func TestScenarioHallucinationRetryThenAccept(t *testing.T) {
	model := &scriptedModel{}
	model.push(plannerSchema, `{"subtasks":[{"query":"engine oil change interval","priority":1,"dependencies":[]}]}`)
	model.push(variationsSchema, `{"variations":["engine oil change interval","how often to change engine oil","oil change schedule"]}`)
	model.push(filterDraftSchema, `{}`)

	model.push(answerSchema, `{"text":"Change the oil every 10000 km, no source needed.","confidence":0.9,"sources_used":["1"]}`)
	model.push(hallucinationSchema, `{"score":0.9,"reasons":["unsupported mileage claim"]}`)

	model.push(answerSchema, `{"text":"[1] Change the oil every 8000 km per the manual.","confidence":0.85,"sources_used":["1"]}`)
	model.push(hallucinationSchema, `{"score":0.1,"reasons":[]}`)

	model.push(gradeSchema, `{"completeness":0.8,"relevance":0.8,"clarity":0.8,"accuracy":0.8,"suggestions":[]}`)

	store := &fakeStore{
		docs: []domain.Document{
			{ID: "doc-1", Content: "Change the oil every 8000 km.", Metadata: domain.Metadata{Source: "manual.pdf", Page: 12, Category: domain.CategoryParagraph}},
		},
		meta: ports.StoreMetadata{Sources: []string{"manual.pdf"}, PageMin: 1, PageMax: 50, Categories: []domain.Category{domain.CategoryParagraph}},
	}

	cfg := baseConfig()
	cfg.RoutingEnabled = false
	o := New(store, model, fakeEmbedder{}, nil, cfg)

	result, err := o.Run(context.Background(), "engine oil change interval", Options{})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if result.State.WorkflowStatus != domain.WorkflowCompleted {
		t.Fatalf("expected completed, got %s (error=%s)", result.State.WorkflowStatus, result.State.Error)
	}
	if result.State.RetryCount != 1 {
		t.Fatalf("expected retry_count 1, got %d", result.State.RetryCount)
	}
	if result.Answer == "" {
		t.Fatal("expected a non-empty final answer")
	}
}

// TestScenarioSparseRetrievalWithWebFallback exercises scenario 5.
func TestScenarioSparseRetrievalWithWebFallback(t *testing.T) {
	model := &scriptedModel{}
	model.push(plannerSchema, `{"subtasks":[{"query":"what is the warranty period","priority":1,"dependencies":[]}]}`)
	model.push(variationsSchema, `{"variations":["what is the warranty period","warranty duration","how long is the warranty"]}`)
	model.push(filterDraftSchema, `{}`)
	model.push(answerSchema, `{"text":"[1] The warranty is 3 years.","confidence":0.8,"sources_used":["1"]}`)
	model.push(hallucinationSchema, `{"score":0.1,"reasons":[]}`)
	model.push(gradeSchema, `{"completeness":0.8,"relevance":0.8,"clarity":0.8,"accuracy":0.8,"suggestions":[]}`)

	cfg := baseConfig()
	cfg.RoutingEnabled = false
	cfg.WebEnabled = true
	o := New(emptyStore{}, model, fakeEmbedder{}, fakeWebTool{docs: []domain.Document{
		{ID: "web-1", Content: "The warranty is 3 years.", Metadata: domain.Metadata{Source: "https://example.com/warranty"}},
		{ID: "web-2", Content: "Extended warranty available.", Metadata: domain.Metadata{Source: "https://example.com/extended"}},
		{ID: "web-3", Content: "Warranty claims process.", Metadata: domain.Metadata{Source: "https://example.com/claims"}},
	}}, cfg)

	result, err := o.Run(context.Background(), "what is the warranty period", Options{})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if result.State.WorkflowStatus != domain.WorkflowCompleted {
		t.Fatalf("expected completed, got %s (error=%s)", result.State.WorkflowStatus, result.State.Error)
	}
	if len(result.State.Documents) != 3 {
		t.Fatalf("expected 3 web-fallback documents, got %d", len(result.State.Documents))
	}
	for _, d := range result.State.Documents {
		if d.Metadata.Category != "web" {
			t.Fatalf("expected web-fallback documents tagged category=web, got %q", d.Metadata.Category)
		}
	}
}

// TestScenarioTopicalQueryWithNoDocumentNounProducesEmptySourcesFilter
// exercises scenario 2 and its companion boundary behavior.
func TestScenarioTopicalQueryWithNoDocumentNounProducesEmptySourcesFilter(t *testing.T) {
	model := &scriptedModel{}
	model.push(plannerSchema, `{"subtasks":[{"query":"engine oil change interval","priority":1,"dependencies":[]}]}`)
	model.push(variationsSchema, `{"variations":["engine oil change interval","oil change frequency","how often change oil"]}`)
	model.push(filterDraftSchema, `{"sources":["manual.pdf"]}`)
	model.push(answerSchema, `{"text":"[1] Every 8000 km.","confidence":0.8,"sources_used":["1"]}`)
	model.push(hallucinationSchema, `{"score":0.1,"reasons":[]}`)
	model.push(gradeSchema, `{"completeness":0.8,"relevance":0.8,"clarity":0.8,"accuracy":0.8,"suggestions":[]}`)

	store := &fakeStore{
		docs: []domain.Document{{ID: "doc-1", Content: "Every 8000 km.", Metadata: domain.Metadata{Source: "manual.pdf", Category: domain.CategoryParagraph}}},
		meta: ports.StoreMetadata{Sources: []string{"manual.pdf"}, Categories: []domain.Category{domain.CategoryParagraph}},
	}

	cfg := baseConfig()
	cfg.RoutingEnabled = false
	o := New(store, model, fakeEmbedder{}, nil, cfg)

	result, err := o.Run(context.Background(), "engine oil change interval", Options{})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	subtask := result.State.Subtasks[0]
	if len(subtask.Filter.Sources) != 0 {
		t.Fatalf("expected empty sources filter (no document-artifact cue in query), got %v", subtask.Filter.Sources)
	}
	if result.State.WorkflowStatus != domain.WorkflowCompleted {
		t.Fatalf("expected completed, got %s", result.State.WorkflowStatus)
	}
}

// TestScenarioStructuralCueProducesPageAndCategoryFilter exercises
// scenario 3: an explicit "table on page 5" ask must scope retrieval to
// page 5 and the table category.
func TestScenarioStructuralCueProducesPageAndCategoryFilter(t *testing.T) {
	model := &scriptedModel{}
	model.push(plannerSchema, `{"subtasks":[{"query":"show me the safety-feature table on page 5","priority":1,"dependencies":[]}]}`)
	model.push(variationsSchema, `{"variations":["show me the safety-feature table on page 5","safety feature table page 5","page 5 safety table"]}`)
	model.push(filterDraftSchema, `{"pages":[5],"categories":["table"]}`)
	model.push(answerSchema, `{"text":"[1] The table on page 5 lists lane assist and emergency braking.","confidence":0.85,"sources_used":["1"]}`)
	model.push(hallucinationSchema, `{"score":0.1,"reasons":[]}`)
	model.push(gradeSchema, `{"completeness":0.8,"relevance":0.8,"clarity":0.8,"accuracy":0.8,"suggestions":[]}`)

	store := &fakeStore{
		docs: []domain.Document{{ID: "doc-5", Content: "Safety feature table.", Metadata: domain.Metadata{Source: "manual.pdf", Page: 5, Category: domain.CategoryTable}}},
		meta: ports.StoreMetadata{Sources: []string{"manual.pdf"}, PageMin: 1, PageMax: 50, Categories: []domain.Category{domain.CategoryParagraph, domain.CategoryTable}},
	}

	cfg := baseConfig()
	cfg.RoutingEnabled = false
	o := New(store, model, fakeEmbedder{}, nil, cfg)

	result, err := o.Run(context.Background(), "show me the safety-feature table on page 5", Options{})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	filter := result.State.Subtasks[0].Filter
	if len(filter.Pages) != 1 || filter.Pages[0] != 5 {
		t.Fatalf("expected pages=[5], got %v", filter.Pages)
	}
	hasTable := false
	for _, c := range filter.Categories {
		if c == domain.CategoryTable {
			hasTable = true
		}
	}
	if !hasTable {
		t.Fatalf("expected table category in filter, got %v", filter.Categories)
	}
	if result.State.WorkflowStatus != domain.WorkflowCompleted {
		t.Fatalf("expected completed, got %s", result.State.WorkflowStatus)
	}
}

// TestScenarioEntityCueTriggersEntityFilterAndDualPass exercises scenario 4:
// a live entity-type literal referenced by the query must surface as the
// filter's exact entity type and tag entity-pass retrieval results.
func TestScenarioEntityCueTriggersEntityFilterAndDualPass(t *testing.T) {
	model := &scriptedModel{}
	model.push(plannerSchema, `{"subtasks":[{"query":"summarize the embedded_doc attachments","priority":1,"dependencies":[]}]}`)
	model.push(variationsSchema, `{"variations":["summarize the embedded_doc attachments","what do the embedded_doc annexes contain","embedded_doc summary"]}`)
	model.push(filterDraftSchema, `{"entity_type":"embedded_doc"}`)
	model.push(answerSchema, `{"text":"[1] The embedded document annex covers warranty terms.","confidence":0.8,"sources_used":["1"],"entity_references":["embedded_doc"]}`)
	model.push(hallucinationSchema, `{"score":0.1,"reasons":[]}`)
	model.push(gradeSchema, `{"completeness":0.8,"relevance":0.8,"clarity":0.8,"accuracy":0.8,"suggestions":[]}`)

	store := &fakeStore{
		docs: []domain.Document{{
			ID:      "doc-9",
			Content: "Warranty annex.",
			Metadata: domain.Metadata{
				Source:   "manual.pdf",
				Page:     80,
				Category: domain.CategoryFigure,
				Entity:   &domain.Entity{Type: "embedded_doc", Title: "Warranty Annex"},
			},
		}},
		meta: ports.StoreMetadata{
			Sources:     []string{"manual.pdf"},
			PageMin:     1,
			PageMax:     120,
			Categories:  []domain.Category{domain.CategoryParagraph, domain.CategoryFigure, domain.CategoryTable},
			EntityTypes: []string{"image", "embedded_doc"},
		},
	}

	cfg := baseConfig()
	cfg.RoutingEnabled = false
	o := New(store, model, fakeEmbedder{}, nil, cfg)

	result, err := o.Run(context.Background(), "summarize the embedded_doc attachments", Options{})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	filter := result.State.Subtasks[0].Filter
	if filter.Entity == nil || filter.Entity.Type != "embedded_doc" {
		t.Fatalf("expected exact live entity literal in filter, got %+v", filter.Entity)
	}
	if len(result.State.Documents) == 0 {
		t.Fatal("expected retrieval to return the entity-bearing document")
	}
	if result.State.Documents[0].SearchType != "entity" {
		t.Fatalf("expected entity-pass tagging on the merged result, got %q", result.State.Documents[0].SearchType)
	}
	if result.State.WorkflowStatus != domain.WorkflowCompleted {
		t.Fatalf("expected completed, got %s", result.State.WorkflowStatus)
	}
}

// TestZeroDocumentsWithoutWebFallbackFailsBeforeSynthesis covers the
// boundary behavior that the synthesizer is never entered with an empty
// document pool.
func TestZeroDocumentsWithoutWebFallbackFailsBeforeSynthesis(t *testing.T) {
	model := &scriptedModel{}
	model.push(plannerSchema, `{"subtasks":[{"query":"unknown topic","priority":1,"dependencies":[]}]}`)
	model.push(variationsSchema, `{"variations":["unknown topic","about the unknown topic","unknown topic details"]}`)
	model.push(filterDraftSchema, `{}`)

	cfg := baseConfig()
	cfg.RoutingEnabled = false
	o := New(emptyStore{}, model, fakeEmbedder{}, nil, cfg)

	result, err := o.Run(context.Background(), "unknown topic", Options{})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if result.State.WorkflowStatus != domain.WorkflowFailed {
		t.Fatalf("expected failed, got %s", result.State.WorkflowStatus)
	}
	if result.Answer != "" {
		t.Fatalf("expected no answer without documents, got %q", result.Answer)
	}
	foundWarning := false
	for _, w := range result.State.Warnings {
		if strings.Contains(w, "zero documents") {
			foundWarning = true
		}
	}
	if !foundWarning {
		t.Fatalf("expected an empty-retrieval warning, got %v", result.State.Warnings)
	}
}

// TestDocumentsAreDedupedAndNeverDecrease covers the documents-merge
// invariants across a multi-subtask turn whose subtasks retrieve the same
// document.
func TestDocumentsAreDedupedAndNeverDecrease(t *testing.T) {
	model := &scriptedModel{}
	model.push(plannerSchema, `{"subtasks":[{"query":"first question","priority":1,"dependencies":[]},{"query":"second question","priority":2,"dependencies":[0]}]}`)
	model.push(variationsSchema, `{"variations":["first question","first question rephrased","first question again"]}`)
	model.push(filterDraftSchema, `{}`)
	model.push(variationsSchema, `{"variations":["second question","second question rephrased","second question again"]}`)
	model.push(filterDraftSchema, `{}`)
	model.push(answerSchema, `{"text":"[1] Combined answer.","confidence":0.8,"sources_used":["1"]}`)
	model.push(hallucinationSchema, `{"score":0.1,"reasons":[]}`)
	model.push(gradeSchema, `{"completeness":0.8,"relevance":0.8,"clarity":0.8,"accuracy":0.8,"suggestions":[]}`)

	store := &fakeStore{
		docs: []domain.Document{{ID: "shared-doc", Content: "Shared content.", Metadata: domain.Metadata{Source: "manual.pdf", Category: domain.CategoryParagraph}}},
		meta: ports.StoreMetadata{Sources: []string{"manual.pdf"}, Categories: []domain.Category{domain.CategoryParagraph}},
	}

	cfg := baseConfig()
	cfg.RoutingEnabled = false
	o := New(store, model, fakeEmbedder{}, nil, cfg)

	result, err := o.Run(context.Background(), "first and second question", Options{})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(result.State.Subtasks) != 2 {
		t.Fatalf("expected 2 subtasks, got %d", len(result.State.Subtasks))
	}
	if len(result.State.Documents) != 1 {
		t.Fatalf("expected the shared document deduplicated to 1, got %d", len(result.State.Documents))
	}
}
