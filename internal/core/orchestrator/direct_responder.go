package orchestrator

import (
	"context"
	"strings"
	"time"

	"github.com/kk7453603/ragcore/internal/core/domain"
)

const directResponderTemperature = 0.7

var timeSensitiveCues = []string{
	"today", "now", "currently", "latest", "this week", "this year",
	"current time", "right now", "at the moment",
}

// isTimeSensitive is a lightweight heuristic for the "explicitly
// time-sensitive" trigger for the direct responder's optional web-search
// tool use.
func isTimeSensitive(query string) bool {
	lower := strings.ToLower(query)
	for _, cue := range timeSensitiveCues {
		if strings.Contains(lower, cue) {
			return true
		}
	}
	return false
}

// runDirectResponder answers simple queries directly: a single
// moderate-temperature model call for "simple" queries, optionally
// supplemented by a web search when the query is explicitly time-sensitive.
// It always terminates the turn.
func runDirectResponder(ctx context.Context, o *Orchestrator, state domain.TurnState) (domain.StateDelta, error) {
	deadline, _ := ctx.Deadline()
	if deadline.IsZero() {
		deadline = time.Now().Add(10 * time.Second)
	}

	prompt := state.Query
	var newDocs []domain.Document
	var warnings []string

	if isTimeSensitive(state.Query) && o.WebTool != nil {
		docs, err := o.WebTool.Search(ctx, state.Query, 3)
		if err != nil {
			warnings = append(warnings, "direct_responder_web_search_failed: "+err.Error())
		} else if len(docs) > 0 {
			newDocs = docs
			prompt = buildDirectResponderPrompt(state.Query, docs)
		}
	}

	text, err := o.Model.Generate(ctx, prompt, directResponderTemperature, deadline)
	if err != nil {
		return domain.StateDelta{
			WorkflowStatus: workflowStatusPtr(domain.WorkflowFailed),
			Error:          stringPtr("direct_responder: " + err.Error()),
			NewWarnings:    warnings,
		}, nil
	}

	return domain.StateDelta{
		FinalAnswer:    stringPtr(strings.TrimSpace(text)),
		Confidence:     floatPtr(1.0),
		WorkflowStatus: workflowStatusPtr(domain.WorkflowCompleted),
		NewDocuments:   newDocs,
		NewWarnings:    warnings,
		NewMessages:    []domain.Message{{Role: "assistant", Content: strings.TrimSpace(text)}},
	}, nil
}

func buildDirectResponderPrompt(query string, docs []domain.Document) string {
	var sb strings.Builder
	sb.WriteString("Answer the question using the web results below if relevant.\n\nQuestion: ")
	sb.WriteString(query)
	sb.WriteString("\n\nWeb results:\n")
	for i, d := range docs {
		sb.WriteString(strings.TrimSpace(d.Content))
		if i < len(docs)-1 {
			sb.WriteString("\n---\n")
		}
	}
	return sb.String()
}
