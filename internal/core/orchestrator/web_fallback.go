package orchestrator

import (
	"context"
	"fmt"

	"github.com/kk7453603/ragcore/internal/core/domain"
)

// runWebFallback supplements the current subtask with web results once
// the retriever has come up sparse. Results are tagged
// category "web" with a rank-proportional similarity; a successful fallback
// (>=1 document) clears any lingering error and resumes the running state.
func runWebFallback(ctx context.Context, o *Orchestrator, state domain.TurnState) (domain.StateDelta, error) {
	idx := state.CurrentSubtaskIdx - 1
	if idx < 0 || idx >= len(state.Subtasks) || o.WebTool == nil {
		return domain.StateDelta{}, nil
	}
	subtask := state.Subtasks[idx]

	maxResults := o.Config.TopK
	if maxResults <= 0 {
		maxResults = 10
	}

	results, err := o.WebTool.Search(ctx, subtask.Query, maxResults)
	if err != nil || len(results) == 0 {
		warning := fmt.Sprintf("web_fallback returned no documents for subtask %s", subtask.ID)
		if err != nil {
			warning = "web_fallback_failed: " + err.Error()
		}
		return domain.StateDelta{NewWarnings: []string{warning}}, nil
	}

	docs := make([]domain.Document, len(results))
	for i, d := range results {
		d.Metadata.Category = "web"
		d.Similarity = 1.0 / float64(i+1)
		d.SearchType = "web"
		docs[i] = d
	}

	updated := subtask
	updated.Documents = append(append([]domain.Document{}, subtask.Documents...), docs...)
	subtasks := append([]domain.Subtask{}, state.Subtasks...)
	subtasks[idx] = updated

	delta := domain.StateDelta{
		Subtasks:     subtasks,
		NewDocuments: docs,
		Error:        domain.ClearErrorValue(),
	}
	if state.WorkflowStatus != domain.WorkflowRunning {
		delta.WorkflowStatus = workflowStatusPtr(domain.WorkflowRunning)
	}
	return delta, nil
}
