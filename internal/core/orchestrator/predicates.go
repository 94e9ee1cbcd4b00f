package orchestrator

import "github.com/kk7453603/ragcore/internal/core/domain"

type advanceDecision int

const (
	advanceContinue advanceDecision = iota
	advanceComplete
	advanceFailed
)

// subtaskAdvance decides whether subtask processing continues, is done,
// or has failed.
func subtaskAdvance(state domain.TurnState) advanceDecision {
	if state.Error != "" {
		return advanceFailed
	}
	if state.CurrentSubtaskIdx >= len(state.Subtasks) || state.WorkflowStatus == domain.WorkflowCompleted {
		return advanceComplete
	}
	return advanceContinue
}

// needsWeb reports whether the web fallback should run: the current
// subtask retrieved fewer documents than the sparsity threshold (or
// metadata.require_web is set), and web fallback is enabled.
func needsWeb(state domain.TurnState, threshold int, webEnabled bool) bool {
	if !webEnabled {
		return false
	}
	if requireWeb, ok := state.Metadata["require_web"].(bool); ok && requireWeb {
		return true
	}

	idx := state.CurrentSubtaskIdx - 1
	if idx < 0 || idx >= len(state.Subtasks) {
		return false
	}
	return len(state.Subtasks[idx].Documents) < threshold
}

type qualityDecision int

const (
	decisionValid qualityDecision = iota
	decisionAccept
	decisionRetry
	decisionFailed
)

// hallucinationDecision routes the hallucination gate: valid, retry the
// synthesizer, or give up.
func hallucinationDecision(state domain.TurnState, maxRetries int) qualityDecision {
	report := state.HallucinationReport
	if report == nil {
		return decisionFailed
	}
	if report.IsValid {
		return decisionValid
	}
	if report.NeedsRetry && state.RetryCount < maxRetries {
		return decisionRetry
	}
	return decisionFailed
}

// gradeDecision routes the grading gate: accept, retry the synthesizer,
// or give up.
func gradeDecision(state domain.TurnState, maxRetries int) qualityDecision {
	report := state.GradeReport
	if report == nil {
		return decisionFailed
	}
	if report.IsValid {
		return decisionAccept
	}
	if report.NeedsRetry && state.RetryCount < maxRetries {
		return decisionRetry
	}
	return decisionFailed
}
