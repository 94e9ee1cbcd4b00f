package orchestrator

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kk7453603/ragcore/internal/core/domain"
	"github.com/kk7453603/ragcore/internal/core/ports"
)

type answerResult struct {
	Text              string   `json:"text"`
	Confidence        float64  `json:"confidence"`
	SourcesUsed       []string `json:"sources_used"`
	KeyPoints         []string `json:"key_points"`
	Warnings          []string `json:"warnings"`
	EntityReferences  []string `json:"entity_references"`
	HumanFeedbackUsed []string `json:"human_feedback_used"`
}

// synthesisMode selects the prompt variant for this synthesis pass.
type synthesisMode int

const (
	synthesisInitial synthesisMode = iota
	synthesisCorrective
	synthesisImproved
)

// promptCharBudget bounds the synthesis prompt. There is no tokenizer on
// the core side of the Model boundary, so the budget is expressed in
// prompt bytes (len of the prompt string) instead of tokens.
const promptCharBudget = 16000

// docContentCap caps each document's content on the truncated retry.
const docContentCap = 500

// runSynthesizer prepares documents by priority, builds a
// schema-constrained prompt (falling back to a truncated variant if it
// would exceed the prompt budget), and emits a structured Answer. The
// retry counter advances exactly once per retry invocation, never on the
// initial synthesis.
func runSynthesizer(ctx context.Context, o *Orchestrator, state domain.TurnState) (domain.StateDelta, error) {
	mode := synthesisModeFor(state)

	deadline, _ := ctx.Deadline()
	if deadline.IsZero() {
		deadline = time.Now().Add(30 * time.Second)
	}

	sections := prepareDocuments(state.Documents)
	prompt := buildSynthesisPrompt(state.EffectiveQuery(), sections, mode, state.GradeReport)

	if len(prompt) > promptCharBudget {
		sections = prepareDocuments(truncateDocuments(state.Documents))
		prompt = buildSynthesisPrompt(state.EffectiveQuery(), sections, mode, state.GradeReport)
	}

	temperature := 0.4
	if mode == synthesisCorrective {
		temperature = 0.1
	}

	result, err := ports.GenerateStructured[answerResult](ctx, o.Model, prompt, answerSchema, temperature, deadline)
	if err != nil {
		return domain.StateDelta{
			WorkflowStatus: workflowStatusPtr(domain.WorkflowFailed),
			Error:          stringPtr("synthesizer: " + err.Error()),
		}, nil
	}

	referencesTable := buildReferencesTable(state.Documents, result.SourcesUsed)

	delta := domain.StateDelta{
		IntermediateAnswer: stringPtr(result.Text),
		FinalAnswer:        stringPtr(result.Text),
		Confidence:         floatPtr(result.Confidence),
		NewWarnings:        result.Warnings,
		MetadataPatch: map[string]any{
			"sources_used":        result.SourcesUsed,
			"key_points":          result.KeyPoints,
			"references_table":    referencesTable,
			"entity_references":   result.EntityReferences,
			"human_feedback_used": result.HumanFeedbackUsed,
		},
	}
	if mode != synthesisInitial {
		delta.RetryCountDelta = 1
	}
	return delta, nil
}

// synthesisModeFor picks the retry mode: an
// outstanding hallucination failure (grader not yet run) asks for a
// corrective answer; an outstanding grade failure asks for an improved one.
func synthesisModeFor(state domain.TurnState) synthesisMode {
	if state.GradeReport != nil && state.GradeReport.NeedsRetry {
		return synthesisImproved
	}
	if state.HallucinationReport != nil && state.HallucinationReport.NeedsRetry {
		return synthesisCorrective
	}
	return synthesisInitial
}

type documentSection struct {
	citationKey   string
	text          string
	humanVerified bool
	hasEntity     bool
}

// prepareDocuments orders and renders the document pool for the prompt:
// human-feedback documents are annotated and prioritized, entity-bearing
// documents are expanded into a compact description, and the remainder is
// included as raw text. Ordering is stable and first-occurrence wins, which
// holds automatically since state.Documents is already unique by id.
func prepareDocuments(docs []domain.Document) []documentSection {
	var verified, entities, rest []documentSection

	for i, d := range docs {
		key := fmt.Sprintf("%d", i+1)
		section := documentSection{citationKey: key}

		switch {
		case d.Metadata.HumanFeedback != "":
			section.humanVerified = true
			section.text = fmt.Sprintf("[%s] (Human Verified) %s\nNote: %s", key, d.Content, d.Metadata.HumanFeedback)
			verified = append(verified, section)
		case d.Metadata.Entity != nil:
			section.hasEntity = true
			section.text = describeEntity(key, d)
			entities = append(entities, section)
		default:
			section.text = fmt.Sprintf("[%s] %s", key, d.Content)
			rest = append(rest, section)
		}
	}

	out := make([]documentSection, 0, len(docs))
	out = append(out, verified...)
	out = append(out, entities...)
	out = append(out, rest...)
	return out
}

func describeEntity(key string, d domain.Document) string {
	e := d.Metadata.Entity
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] ", key)
	if e.Type == "embedded_doc" {
		b.WriteString("(Embedded Document) ")
	}
	if e.Title != "" {
		fmt.Fprintf(&b, "%s: ", e.Title)
	}
	b.WriteString(d.Content)
	if e.Details != "" {
		fmt.Fprintf(&b, "\nDetails: %s", e.Details)
	}
	if len(e.Keywords) > 0 {
		fmt.Fprintf(&b, "\nKeywords: %s", strings.Join(e.Keywords, ", "))
	}
	return b.String()
}

func truncateDocuments(docs []domain.Document) []domain.Document {
	out := make([]domain.Document, len(docs))
	for i, d := range docs {
		truncated := d
		if len(truncated.Content) > docContentCap {
			truncated.Content = truncated.Content[:docContentCap]
		}
		out[i] = truncated
	}
	return out
}

func buildSynthesisPrompt(query string, sections []documentSection, mode synthesisMode, grade *domain.QualityReport) string {
	var b strings.Builder
	b.WriteString("Answer the query using only the documents below. Cite every sentence with its bracketed document number, e.g. [1].\n\n")

	switch mode {
	case synthesisCorrective:
		b.WriteString("This is a corrective retry: a prior answer contained unsupported claims. Stay strictly within the documents and cite every sentence.\n\n")
	case synthesisImproved:
		b.WriteString("This is an improved retry: incorporate the following suggestions.\n")
		if grade != nil {
			for _, s := range grade.Suggestions {
				fmt.Fprintf(&b, "- %s\n", s)
			}
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "Query: %s\n\nDocuments:\n", query)
	for _, s := range sections {
		b.WriteString(s.text)
		b.WriteString("\n\n")
	}
	return b.String()
}

// buildReferencesTable renders the references table: a markdown table with
// one row per citation key the model actually used, in citation order, each
// row carrying a short summary of the cited document.
func buildReferencesTable(docs []domain.Document, sourcesUsed []string) string {
	keys := make([]string, 0, len(sourcesUsed))
	seen := make(map[string]struct{}, len(sourcesUsed))
	for _, s := range sourcesUsed {
		key := strings.TrimSpace(s)
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}
	if len(keys) == 0 {
		for i := range docs {
			keys = append(keys, fmt.Sprintf("%d", i+1))
		}
	}

	var b strings.Builder
	b.WriteString("| # | Source | Page | Summary |\n|---|---|---|---|\n")
	for _, key := range keys {
		idx, err := strconv.Atoi(key)
		if err != nil || idx < 1 || idx > len(docs) {
			continue
		}
		d := docs[idx-1]
		fmt.Fprintf(&b, "| %s | %s | %d | %s |\n", key, tableCell(d.Metadata.Source), d.Metadata.Page, tableCell(documentSummary(d)))
	}
	return b.String()
}

// documentSummary condenses a cited document into one table cell: the
// entity title when the document carries one, else its caption, else the
// leading slice of its content.
func documentSummary(d domain.Document) string {
	if e := d.Metadata.Entity; e != nil && e.Title != "" {
		return e.Title
	}
	if d.Metadata.Caption != "" {
		return d.Metadata.Caption
	}
	const summaryCap = 80
	content := strings.Join(strings.Fields(d.Content), " ")
	runes := []rune(content)
	if len(runes) > summaryCap {
		return string(runes[:summaryCap]) + "..."
	}
	return content
}

func tableCell(s string) string {
	return strings.ReplaceAll(s, "|", "\\|")
}
