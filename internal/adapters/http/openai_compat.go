package httpadapter

import (
	"context"
	"strings"
	"time"

	apigen "github.com/kk7453603/ragcore/internal/adapters/http/openapi"
)

func (rt *Router) ListModels(_ context.Context, _ apigen.ListModelsRequestObject) (apigen.ListModelsResponseObject, error) {
	created := time.Now().Unix()
	modelID := rt.openAICompatModelID
	if modelID == "" {
		modelID = "ragcore-rag-v1"
	}

	return apigen.ListModels200JSONResponse{
		Object: "list",
		Data: []apigen.ModelObject{
			{
				Id:      modelID,
				Object:  "model",
				OwnedBy: "ragcore",
				Created: &created,
			},
		},
	}, nil
}

// ChatCompletions maps the OpenAI chat shape onto one orchestrator turn:
// the last user message becomes the query, prior messages become the
// conversational log read by the router and context resolver. Intermediate
// model output is never surfaced; a streaming response chunks only the
// turn's final answer (for a failed turn, its latest answer).
func (rt *Router) ChatCompletions(ctx context.Context, request apigen.ChatCompletionsRequestObject) (apigen.ChatCompletionsResponseObject, error) {
	if request.Body == nil {
		return apigen.ChatCompletions400JSONResponse{Error: "request body is required"}, nil
	}
	if len(request.Body.Messages) == 0 {
		return apigen.ChatCompletions400JSONResponse{Error: "messages are required"}, nil
	}

	modelID := strings.TrimSpace(request.Body.Model)
	if modelID == "" {
		modelID = rt.openAICompatModelID
	}
	if modelID == "" {
		modelID = "ragcore-rag-v1"
	}

	completionID := newCompletionID()
	created := time.Now().Unix()
	stream := request.Body.Stream != nil && *request.Body.Stream

	lastUser, ok := latestUserMessageContent(request.Body.Messages)
	if !ok {
		return apigen.ChatCompletions400JSONResponse{Error: "at least one user message with text content is required"}, nil
	}

	opts := rt.turnOptionsFromMessages(request.Body.Messages)
	result, err := rt.runner.Run(ctx, lastUser, opts)
	if err != nil {
		return apigen.ChatCompletions500JSONResponse{Error: err.Error()}, nil
	}

	if rt.metrics != nil {
		rt.metrics.RecordTurn("api", "/v1/chat/completions", string(result.State.WorkflowStatus), len(result.State.Documents), result.State.RetryCount, 0)
	}

	debug := buildDebugInfo(result)
	response := buildTextChatCompletionResponse(completionID, created, modelID, lastUser, result.Answer, debug)
	if stream {
		return chatCompletionsSSEResponse{Chunks: buildTextStreamChunks(completionID, created, modelID, result.Answer, rt.openAICompatStreamChunkChars)}, nil
	}
	return apigen.ChatCompletions200JSONResponse(response), nil
}
