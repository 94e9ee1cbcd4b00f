package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kk7453603/ragcore/internal/config"
	"github.com/kk7453603/ragcore/internal/core/domain"
	"github.com/kk7453603/ragcore/internal/core/orchestrator"
	"github.com/kk7453603/ragcore/internal/core/ports"
)

type fakeRunner struct {
	result orchestrator.Result
	err    error

	gotQuery    string
	gotMessages []domain.Message
	entered     chan struct{}
	block       chan struct{}
}

func (f *fakeRunner) Run(_ context.Context, query string, opts orchestrator.Options) (orchestrator.Result, error) {
	f.gotQuery = query
	f.gotMessages = opts.Messages
	if f.entered != nil {
		close(f.entered)
	}
	if f.block != nil {
		<-f.block
	}
	return f.result, f.err
}

func (f *fakeRunner) Stream(_ context.Context, query string, opts orchestrator.Options) (<-chan ports.Event, error) {
	f.gotQuery = query
	if f.err != nil {
		return nil, f.err
	}
	events := make(chan ports.Event, 4)
	events <- ports.Event{Kind: ports.EventNodeEntered, Node: "planner"}
	events <- ports.Event{Kind: ports.EventNodeCompleted, Node: "planner"}
	events <- ports.Event{Kind: ports.EventTerminal, Payload: map[string]any{"answer": f.result.Answer}}
	close(events)
	return events, nil
}

func completedResult(answer string) orchestrator.Result {
	return orchestrator.Result{
		Answer:     answer,
		Confidence: 0.9,
		State: domain.TurnState{
			TurnID:         "turn-1",
			FinalAnswer:    answer,
			Confidence:     0.9,
			WorkflowStatus: domain.WorkflowCompleted,
			Documents: []domain.Document{
				{ID: "doc-1", Content: "engine oil", Metadata: domain.Metadata{Source: "manual.pdf", Page: 5, Category: domain.CategoryParagraph}, RRFScore: 0.03},
			},
		},
	}
}

func newTestHandler(cfg config.Config) http.Handler {
	return newTestHandlerWithRunner(cfg, &fakeRunner{result: completedResult("the interval is 10,000 km [1]")})
}

func newTestHandlerWithRunner(cfg config.Config, runner TurnRunner) http.Handler {
	return NewRouter(runner, nil, nil, nil, cfg).Handler()
}

func TestListModelsReturnsConfiguredModel(t *testing.T) {
	handler := newTestHandler(config.Config{OpenAICompatServeModelID: "ragcore-rag-v1"})

	req := httptest.NewRequest(http.MethodGet, "/v1/models", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var body struct {
		Object string `json:"object"`
		Data   []struct {
			Id string `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(res.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body.Data) != 1 || body.Data[0].Id != "ragcore-rag-v1" {
		t.Fatalf("unexpected models payload: %s", res.Body.String())
	}
}

func TestChatCompletionsAnswersFromTurn(t *testing.T) {
	runner := &fakeRunner{result: completedResult("the interval is 10,000 km [1]")}
	handler := newTestHandlerWithRunner(config.Config{OpenAICompatServeModelID: "ragcore-rag-v1", OpenAICompatContextMessages: 10}, runner)

	payload := `{"model":"ragcore-rag-v1","messages":[
		{"role":"system","content":"be brief"},
		{"role":"assistant","content":"hello"},
		{"role":"user","content":"engine oil change interval"}]}`
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", bytes.NewBufferString(payload))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if runner.gotQuery != "engine oil change interval" {
		t.Fatalf("expected last user message to become the query, got %q", runner.gotQuery)
	}
	if len(runner.gotMessages) != 2 {
		t.Fatalf("expected 2 prior messages in the conversational log, got %d", len(runner.gotMessages))
	}

	var body struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Debug struct {
			Mode    string `json:"mode"`
			Sources []struct {
				DocumentId string `json:"document_id"`
			} `json:"sources"`
		} `json:"debug"`
	}
	if err := json.Unmarshal(res.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body.Choices) != 1 || !strings.Contains(body.Choices[0].Message.Content, "10,000 km") {
		t.Fatalf("unexpected completion payload: %s", res.Body.String())
	}
	if body.Debug.Mode != "completed" {
		t.Fatalf("expected debug mode completed, got %q", body.Debug.Mode)
	}
	if len(body.Debug.Sources) != 1 || body.Debug.Sources[0].DocumentId != "doc-1" {
		t.Fatalf("expected cited document in debug sources: %s", res.Body.String())
	}
}

func TestChatCompletionsRequiresUserMessage(t *testing.T) {
	handler := newTestHandler(config.Config{})

	payload := `{"model":"m","messages":[{"role":"assistant","content":"hi"}]}`
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", bytes.NewBufferString(payload))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestChatCompletionsRejectsMissingBearer(t *testing.T) {
	handler := newTestHandler(config.Config{OpenAICompatServeAPIKey: "secret"})

	payload := `{"model":"m","messages":[{"role":"user","content":"hi"}]}`
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", bytes.NewBufferString(payload))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", res.Code)
	}

	req2 := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", bytes.NewBufferString(payload))
	req2.Header.Set("Authorization", "Bearer secret")
	res2 := httptest.NewRecorder()
	handler.ServeHTTP(res2, req2)

	if res2.Code != http.StatusOK {
		t.Fatalf("expected 200 with valid bearer, got %d", res2.Code)
	}
}

func TestChatCompletionsStreamChunksFinalAnswerOnly(t *testing.T) {
	handler := newTestHandler(config.Config{OpenAICompatStreamChunkChars: 8})

	payload := `{"model":"m","stream":true,"messages":[{"role":"user","content":"engine oil change interval"}]}`
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", bytes.NewBufferString(payload))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if ct := res.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("expected event stream content type, got %q", ct)
	}

	raw, _ := io.ReadAll(res.Body)
	frames := strings.Split(strings.TrimSpace(string(raw)), "\n\n")
	if len(frames) < 3 {
		t.Fatalf("expected multiple chunks plus [DONE], got %d frames", len(frames))
	}
	if frames[len(frames)-1] != "data: [DONE]" {
		t.Fatalf("expected terminating [DONE] frame, got %q", frames[len(frames)-1])
	}

	var rebuilt strings.Builder
	for _, frame := range frames[:len(frames)-1] {
		var chunk struct {
			Object  string `json:"object"`
			Choices []struct {
				Delta struct {
					Content *string `json:"content"`
				} `json:"delta"`
			} `json:"choices"`
		}
		if err := json.Unmarshal([]byte(strings.TrimPrefix(frame, "data: ")), &chunk); err != nil {
			t.Fatalf("malformed chunk frame %q: %v", frame, err)
		}
		if chunk.Object != "chat.completion.chunk" {
			t.Fatalf("unexpected chunk object %q", chunk.Object)
		}
		if len(chunk.Choices) == 1 && chunk.Choices[0].Delta.Content != nil {
			rebuilt.WriteString(*chunk.Choices[0].Delta.Content)
		}
	}
	if rebuilt.String() != "the interval is 10,000 km [1]" {
		t.Fatalf("reassembled stream diverged from the answer: %q", rebuilt.String())
	}
}

func TestRunTurnReturnsAnswerAndStatus(t *testing.T) {
	handler := newTestHandler(config.Config{})

	payload := `{"query":"engine oil change interval"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/rag/query", bytes.NewBufferString(payload))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	var body turnResponseBody
	if err := json.Unmarshal(res.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Status != "completed" || body.TurnID != "turn-1" {
		t.Fatalf("unexpected turn response: %+v", body)
	}
	if !strings.Contains(body.Answer, "10,000 km") {
		t.Fatalf("unexpected answer: %q", body.Answer)
	}
}

func TestRunTurnRejectsEmptyQuery(t *testing.T) {
	handler := newTestHandler(config.Config{})

	req := httptest.NewRequest(http.MethodPost, "/v1/rag/query", bytes.NewBufferString(`{"query":"  "}`))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestStreamTurnEmitsEventFramesAndDone(t *testing.T) {
	handler := newTestHandler(config.Config{})

	req := httptest.NewRequest(http.MethodPost, "/v1/rag/stream", bytes.NewBufferString(`{"query":"hello"}`))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	raw, _ := io.ReadAll(res.Body)
	frames := strings.Split(strings.TrimSpace(string(raw)), "\n\n")
	if frames[len(frames)-1] != "data: [DONE]" {
		t.Fatalf("expected terminating [DONE] frame, got %q", frames[len(frames)-1])
	}

	var first ports.Event
	if err := json.Unmarshal([]byte(strings.TrimPrefix(frames[0], "data: ")), &first); err != nil {
		t.Fatal(err)
	}
	if first.Kind != ports.EventNodeEntered || first.Node != "planner" {
		t.Fatalf("unexpected first event: %+v", first)
	}
}

type fakeCheckpoints struct {
	state domain.TurnState
	err   error
}

func (f fakeCheckpoints) Save(context.Context, string, domain.TurnState) error { return nil }
func (f fakeCheckpoints) Load(context.Context, string) (domain.TurnState, error) {
	return f.state, f.err
}

func TestGetTurnByIDReadsCheckpoint(t *testing.T) {
	rt := NewRouter(
		&fakeRunner{result: completedResult("x")},
		fakeCheckpoints{state: domain.TurnState{TurnID: "turn-9", WorkflowStatus: domain.WorkflowCompleted}},
		nil,
		nil,
		config.Config{},
	)
	handler := rt.Handler()

	req := httptest.NewRequest(http.MethodGet, "/v1/turns/turn-9", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var state domain.TurnState
	if err := json.Unmarshal(res.Body.Bytes(), &state); err != nil {
		t.Fatal(err)
	}
	if state.TurnID != "turn-9" {
		t.Fatalf("unexpected checkpoint payload: %s", res.Body.String())
	}
}

func TestGetTurnWithoutCheckpointsReturns501(t *testing.T) {
	handler := newTestHandler(config.Config{})

	req := httptest.NewRequest(http.MethodGet, "/v1/turns/turn-9", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusNotImplemented {
		t.Fatalf("expected 501, got %d", res.Code)
	}
}
