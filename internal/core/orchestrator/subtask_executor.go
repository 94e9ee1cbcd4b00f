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

type variationsResult struct {
	Variations []string `json:"variations"`
}

// runSubtaskExecutor processes the subtask at CurrentSubtaskIdx and
// advances the index by exactly one on success. It never re-executes a
// prior subtask; the orchestrator's retry path only re-enters the
// synthesizer.
func runSubtaskExecutor(ctx context.Context, o *Orchestrator, state domain.TurnState) (domain.StateDelta, error) {
	idx := state.CurrentSubtaskIdx
	if idx < 0 || idx >= len(state.Subtasks) {
		return domain.StateDelta{}, nil
	}
	subtask := state.Subtasks[idx]

	deadline, _ := ctx.Deadline()
	if deadline.IsZero() {
		deadline = time.Now().Add(20 * time.Second)
	}

	meta, metaErr := o.metadataCacheFor().Get(ctx, o.Store)
	var warnings []string
	if metaErr != nil {
		warnings = append(warnings, "subtask_executor_metadata_unavailable: "+metaErr.Error())
	}

	variations, varWarnings := generateVariations(ctx, o.Model, subtask.Query, deadline)
	warnings = append(warnings, varWarnings...)

	if len(variations) == 0 {
		failed := subtask
		failed.Status = domain.SubtaskFailed
		subtasks := append([]domain.Subtask{}, state.Subtasks...)
		subtasks[idx] = failed
		return domain.StateDelta{
			Subtasks:          subtasks,
			CurrentSubtaskIdx: intPtr(idx + 1),
			Error:             stringPtr(fmt.Sprintf("subtask %s: zero query variations produced", subtask.ID)),
			NewWarnings:       warnings,
		}, nil
	}

	languages := make([]string, len(variations))
	for i, v := range variations {
		languages[i] = detectVariationLanguage(ctx, o.Model, v, deadline)
	}

	hint := extractSubtaskHint(subtask.Query, meta)
	filter, filterWarnings := generateFilter(ctx, o.Model, subtask.Query, hint, meta, o.Config.FilterEntityAggressive)
	warnings = append(warnings, filterWarnings...)

	updated := subtask
	updated.Status = domain.SubtaskExecuting
	updated.Variations = variations
	updated.VariationLanguages = languages
	updated.Filter = filter
	updated.Language = languages[0]

	subtasks := append([]domain.Subtask{}, state.Subtasks...)
	subtasks[idx] = updated

	return domain.StateDelta{
		Subtasks:          subtasks,
		CurrentSubtaskIdx: intPtr(idx + 1),
		NewWarnings:       warnings,
	}, nil
}

// generateVariations produces 3-5 distinct rewrites of the subtask query,
// always including the original. Falls back to the bare original plus
// mechanical rewrites if the model call fails, so a subtask only truly
// fails when even that degenerates to zero.
func generateVariations(ctx context.Context, model ports.Model, query string, deadline time.Time) ([]string, []string) {
	prompt := buildVariationsPrompt(query)
	result, err := ports.GenerateStructured[variationsResult](ctx, model, prompt, variationsSchema, 0.3, deadline)

	var warnings []string
	variations := []string{query}
	if err != nil {
		warnings = append(warnings, "query_variation_failed: "+err.Error())
	} else {
		for _, v := range result.Variations {
			v = strings.TrimSpace(v)
			if v == "" || containsString(variations, v) {
				continue
			}
			variations = append(variations, v)
		}
	}

	// Mechanical rewrites top the set up to the 3-variation floor when the
	// model under-delivers; they are weaker than real paraphrases but keep
	// retrieval fan-out meaningful.
	for _, candidate := range mechanicalRewrites(query) {
		if len(variations) >= 3 {
			break
		}
		if candidate != "" && !containsString(variations, candidate) {
			variations = append(variations, candidate)
		}
	}

	if len(variations) > 5 {
		variations = variations[:5]
	}
	return variations, warnings
}

func mechanicalRewrites(query string) []string {
	trimmed := strings.TrimSpace(strings.TrimRight(strings.TrimSpace(query), "?.!"))
	return []string{
		trimmed,
		trimmed + " explained",
		"details on " + trimmed,
	}
}

func buildVariationsPrompt(query string) string {
	return fmt.Sprintf(`Produce 3 to 5 distinct rewrites of the query below that preserve its intent but vary phrasing and vocabulary. Always include the original query verbatim as one of the entries.

Query: %s`, query)
}

// detectVariationLanguage labels one variation korean or english: a
// script-ratio heuristic first, falling back to a model call only when the
// ratio is inconclusive.
func detectVariationLanguage(ctx context.Context, model ports.Model, text string, deadline time.Time) string {
	if !keyword.IsInconclusive(text) {
		return keyword.DetectLanguage(text)
	}
	type languageLabel struct {
		Language string `json:"language"`
	}
	schema := []byte(`{"type":"object","required":["language"],"properties":{"language":{"type":"string","enum":["korean","english"]}}}`)
	result, err := ports.GenerateStructured[languageLabel](ctx, model, "What language is this text written in, korean or english? Text: "+text, schema, 0, deadline)
	if err != nil || (result.Language != "korean" && result.Language != "english") {
		return keyword.DetectLanguage(text)
	}
	return result.Language
}
