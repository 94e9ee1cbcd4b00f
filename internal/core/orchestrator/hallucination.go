package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kk7453603/ragcore/internal/core/domain"
	"github.com/kk7453603/ragcore/internal/core/ports"
)

type hallucinationResult struct {
	Score              float64  `json:"score"`
	Reasons            []string `json:"reasons"`
	UnsupportedClaims  []string `json:"unsupported_claims"`
}

// runHallucinationChecker decomposes the final answer into atomic claims
// and checks each against the document set via a single schema-constrained
// model call. An empty document set is treated as
// fatal -- there is no ground truth to check an answer against.
func runHallucinationChecker(ctx context.Context, o *Orchestrator, state domain.TurnState) (domain.StateDelta, error) {
	if len(state.Documents) == 0 {
		return domain.StateDelta{
			HallucinationReport: &domain.QualityReport{IsValid: false, NeedsRetry: false, Score: 1.0, Reasons: []string{"no documents available to check against"}},
		}, nil
	}

	deadline, _ := ctx.Deadline()
	if deadline.IsZero() {
		deadline = time.Now().Add(20 * time.Second)
	}

	prompt := buildHallucinationPrompt(state.FinalAnswer, state.Documents)
	result, err := ports.GenerateStructured[hallucinationResult](ctx, o.Model, prompt, hallucinationSchema, 0, deadline)
	if err != nil {
		return domain.StateDelta{NewWarnings: []string{"hallucination_check_failed: " + err.Error()}}, nil
	}

	threshold := o.Config.ThresholdHallucination
	if threshold <= 0 {
		threshold = 0.7
	}

	report := &domain.QualityReport{
		Score:   result.Score,
		Reasons: append(result.Reasons, result.UnsupportedClaims...),
	}
	report.IsValid = result.Score <= threshold
	report.NeedsRetry = !report.IsValid

	return domain.StateDelta{HallucinationReport: report}, nil
}

func buildHallucinationPrompt(answer string, docs []domain.Document) string {
	var b strings.Builder
	b.WriteString("Decompose the answer below into atomic claims. For each claim, check whether it is supported by the documents. Where a document carries a structured entity annotation, treat its title, details, and keywords as additional ground truth. Return a hallucination score in [0,1] where higher means more unsupported claims.\n\n")
	fmt.Fprintf(&b, "Answer:\n%s\n\nDocuments:\n", answer)
	for i, d := range docs {
		fmt.Fprintf(&b, "[%d] %s\n", i+1, d.Content)
		if d.Metadata.Entity != nil {
			fmt.Fprintf(&b, "  entity: type=%s title=%s details=%s keywords=%s\n",
				d.Metadata.Entity.Type, d.Metadata.Entity.Title, d.Metadata.Entity.Details, strings.Join(d.Metadata.Entity.Keywords, ", "))
		}
	}
	return b.String()
}
