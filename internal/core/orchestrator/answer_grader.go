package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/kk7453603/ragcore/internal/core/domain"
	"github.com/kk7453603/ragcore/internal/core/ports"
)

type gradeResult struct {
	Completeness float64  `json:"completeness"`
	Relevance    float64  `json:"relevance"`
	Clarity      float64  `json:"clarity"`
	Accuracy     float64  `json:"accuracy"`
	Suggestions  []string `json:"suggestions"`
}

// runAnswerGrader scores the answer against the original query on four
// dimensions (completeness, relevance, clarity, accuracy), each in [0,1].
// Validity requires the mean to clear the grade threshold AND every
// dimension to clear the 0.5 floor, so a single badly scored dimension
// cannot be averaged away.
func runAnswerGrader(ctx context.Context, o *Orchestrator, state domain.TurnState) (domain.StateDelta, error) {
	deadline, _ := ctx.Deadline()
	if deadline.IsZero() {
		deadline = time.Now().Add(20 * time.Second)
	}

	prompt := fmt.Sprintf("Grade the answer below against the query on four dimensions (completeness, relevance, clarity, accuracy), each in [0,1].\n\nQuery: %s\n\nAnswer:\n%s", state.EffectiveQuery(), state.FinalAnswer)
	result, err := ports.GenerateStructured[gradeResult](ctx, o.Model, prompt, gradeSchema, 0, deadline)
	if err != nil {
		return domain.StateDelta{NewWarnings: []string{"answer_grade_failed: " + err.Error()}}, nil
	}

	dimensions := map[string]float64{
		"completeness": result.Completeness,
		"relevance":    result.Relevance,
		"clarity":      result.Clarity,
		"accuracy":     result.Accuracy,
	}
	overall := (result.Completeness + result.Relevance + result.Clarity + result.Accuracy) / 4

	threshold := o.Config.ThresholdGrade
	if threshold <= 0 {
		threshold = 0.6
	}

	allAboveFloor := true
	for _, v := range dimensions {
		if v < 0.5 {
			allAboveFloor = false
			break
		}
	}

	report := &domain.QualityReport{
		Score:       overall,
		Dimensions:  dimensions,
		Suggestions: result.Suggestions,
	}
	report.IsValid = overall >= threshold && allAboveFloor
	report.NeedsRetry = !report.IsValid

	delta := domain.StateDelta{GradeReport: report}
	if report.IsValid {
		delta.Confidence = floatPtr(overall)
		delta.WorkflowStatus = workflowStatusPtr(domain.WorkflowCompleted)
		delta.NewMessages = []domain.Message{{Role: "assistant", Content: state.FinalAnswer}}
	}
	return delta, nil
}
