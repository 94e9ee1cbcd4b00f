package httpadapter

import (
	"fmt"
	"strings"
	"time"

	apigen "github.com/kk7453603/ragcore/internal/adapters/http/openapi"
	"github.com/kk7453603/ragcore/internal/core/orchestrator"
)

func newCompletionID() string {
	return fmt.Sprintf("chatcmpl-%d", time.Now().UnixNano())
}

func buildTextChatCompletionResponse(completionID string, created int64, modelID string, promptText string, answerText string, debug *apigen.DebugInfo) apigen.ChatCompletionResponse {
	content := interface{}(answerText)
	finishReason := "stop"
	return apigen.ChatCompletionResponse{
		Id:      completionID,
		Object:  "chat.completion",
		Created: created,
		Model:   modelID,
		Choices: []apigen.ChatCompletionChoice{
			{
				Index: 0,
				Message: apigen.ChatMessage{
					Role:    apigen.Assistant,
					Content: &content,
				},
				FinishReason: &finishReason,
			},
		},
		Usage: estimateUsage(promptText, answerText),
		Debug: debug,
	}
}

// buildDebugInfo surfaces turn diagnostics (terminal status, retries,
// warnings, cited documents) in the response's non-standard debug block.
// A failed turn still returns its latest answer; the debug mode is how a
// caller tells it apart from a validated one.
func buildDebugInfo(result orchestrator.Result) *apigen.DebugInfo {
	mode := string(result.State.WorkflowStatus)
	debug := &apigen.DebugInfo{Mode: &mode}

	if result.State.RetryCount > 0 {
		retries := result.State.RetryCount
		debug.RetryCount = &retries
	}
	if len(result.Warnings) > 0 {
		warnings := append([]string{}, result.Warnings...)
		debug.Warnings = &warnings
	}

	sources := make([]apigen.DebugSource, 0, len(result.State.Documents))
	for _, doc := range result.State.Documents {
		documentID := doc.ID
		source := doc.Metadata.Source
		page := doc.Metadata.Page
		category := string(doc.Metadata.Category)
		score := float32(doc.RRFScore)
		sources = append(sources, apigen.DebugSource{
			DocumentId: &documentID,
			Source:     &source,
			Page:       &page,
			Category:   &category,
			Score:      &score,
		})
	}
	if len(sources) > 0 {
		debug.Sources = &sources
	}
	return debug
}

func estimateUsage(prompt string, completion string) *apigen.Usage {
	promptTokens := len(strings.Fields(prompt))
	completionTokens := len(strings.Fields(completion))
	return &apigen.Usage{
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
		TotalTokens:      promptTokens + completionTokens,
	}
}
