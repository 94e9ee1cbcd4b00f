package httpadapter

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	apigen "github.com/kk7453603/ragcore/internal/adapters/http/openapi"
	"github.com/kk7453603/ragcore/internal/config"
	"github.com/kk7453603/ragcore/internal/core/domain"
	"github.com/kk7453603/ragcore/internal/core/orchestrator"
	"github.com/kk7453603/ragcore/internal/core/ports"
	natsq "github.com/kk7453603/ragcore/internal/infrastructure/queue/nats"
	"github.com/kk7453603/ragcore/internal/observability/metrics"
)

// TurnRunner is the slice of the orchestrator the HTTP layer drives.
type TurnRunner interface {
	Run(ctx context.Context, query string, opts orchestrator.Options) (orchestrator.Result, error)
	Stream(ctx context.Context, query string, opts orchestrator.Options) (<-chan ports.Event, error)
}

// TurnEnqueuer publishes an asynchronous turn request for cmd/worker.
type TurnEnqueuer interface {
	PublishTurnRequested(ctx context.Context, req natsq.TurnRequest) error
}

type Router struct {
	runner      TurnRunner
	checkpoints ports.CheckpointStore
	queue       TurnEnqueuer
	metrics     *metrics.HTTPServerMetrics

	openAICompatAPIKey           string
	openAICompatModelID          string
	openAICompatStreamChunkChars int
	openAICompatContextMessages  int

	rateLimitRPS   float64
	rateLimitBurst int
	maxInFlight    int
}

func NewRouter(
	runner TurnRunner,
	checkpoints ports.CheckpointStore,
	queue TurnEnqueuer,
	httpMetrics *metrics.HTTPServerMetrics,
	cfg config.Config,
) *Router {
	return &Router{
		runner:      runner,
		checkpoints: checkpoints,
		queue:       queue,
		metrics:     httpMetrics,

		openAICompatAPIKey:           cfg.OpenAICompatServeAPIKey,
		openAICompatModelID:          cfg.OpenAICompatServeModelID,
		openAICompatStreamChunkChars: cfg.OpenAICompatStreamChunkChars,
		openAICompatContextMessages:  cfg.OpenAICompatContextMessages,

		rateLimitRPS:   cfg.APIRateLimitRPS,
		rateLimitBurst: cfg.APIRateLimitBurst,
		maxInFlight:    cfg.APIMaxInFlight,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/rag/query", rt.runTurn)
	mux.HandleFunc("/v1/rag/stream", rt.streamTurn)
	mux.HandleFunc("/v1/rag/async", rt.enqueueTurn)
	mux.HandleFunc("/v1/turns/", rt.getTurnByID)

	strict := apigen.NewStrictHandler(rt, []apigen.StrictMiddlewareFunc{rt.openAICompatAuthMiddleware})
	apigen.HandlerWithOptions(strict, apigen.StdHTTPServerOptions{BaseRouter: mux})

	var handler http.Handler = mux
	handler = rt.rateLimitMiddleware(rt.backpressureMiddleware(handler))
	if rt.metrics != nil {
		handler = rt.metrics.Middleware("api", handler)
	}
	return requestIDMiddleware(accessLogMiddleware(handler))
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type turnRequestBody struct {
	Query       string           `json:"query"`
	Messages    []domain.Message `json:"messages,omitempty"`
	MaxSubtasks int              `json:"max_subtasks,omitempty"`
	MaxRetries  int              `json:"max_retries,omitempty"`
	RequireWeb  bool             `json:"require_web,omitempty"`
}

type turnResponseBody struct {
	TurnID     string         `json:"turn_id"`
	Answer     string         `json:"answer"`
	Confidence float64        `json:"confidence"`
	Status     string         `json:"status"`
	Error      string         `json:"error,omitempty"`
	Warnings   []string       `json:"warnings,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

func decodeTurnRequest(w http.ResponseWriter, r *http.Request) (turnRequestBody, bool) {
	var req turnRequestBody
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return req, false
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return req, false
	}
	if strings.TrimSpace(req.Query) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query is required"})
		return req, false
	}
	return req, true
}

func (req turnRequestBody) options() orchestrator.Options {
	return orchestrator.Options{
		MaxSubtasks: req.MaxSubtasks,
		MaxRetries:  req.MaxRetries,
		RequireWeb:  req.RequireWeb,
		Messages:    req.Messages,
	}
}

func (rt *Router) runTurn(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeTurnRequest(w, r)
	if !ok {
		return
	}

	start := time.Now()
	result, err := rt.runner.Run(r.Context(), req.Query, req.options())
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}

	if rt.metrics != nil {
		rt.metrics.RecordTurn("api", "/v1/rag/query", string(result.State.WorkflowStatus), len(result.State.Documents), result.State.RetryCount, time.Since(start))
	}

	writeJSON(w, http.StatusOK, turnResponseBody{
		TurnID:     result.State.TurnID,
		Answer:     result.Answer,
		Confidence: result.Confidence,
		Status:     string(result.State.WorkflowStatus),
		Error:      result.State.Error,
		Warnings:   result.Warnings,
		Metadata:   result.Metadata,
	})
}

// streamTurn serves the stream() entry point over Server-Sent Events: one
// data frame per orchestrator event, terminated by a [DONE] frame.
func (rt *Router) streamTurn(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeTurnRequest(w, r)
	if !ok {
		return
	}

	flusher, okFlush := w.(http.Flusher)
	if !okFlush {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "streaming is not supported"})
		return
	}

	events, err := rt.runner.Stream(r.Context(), req.Query, req.options())
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	encoder := json.NewEncoder(w)
	for event := range events {
		if _, err := w.Write([]byte("data: ")); err != nil {
			return
		}
		if err := encoder.Encode(event); err != nil {
			return
		}
		if _, err := w.Write([]byte("\n")); err != nil {
			return
		}
		flusher.Flush()
	}

	_, _ = w.Write([]byte("data: [DONE]\n\n"))
	flusher.Flush()
}

// enqueueTurn hands the turn to cmd/worker over the queue and returns 202
// with the turn id; progress is observable via the event stream and the
// checkpointed state at /v1/turns/{id}.
func (rt *Router) enqueueTurn(w http.ResponseWriter, r *http.Request) {
	if rt.queue == nil {
		writeJSON(w, http.StatusNotImplemented, map[string]string{"error": "async turns are not enabled"})
		return
	}
	req, ok := decodeTurnRequest(w, r)
	if !ok {
		return
	}

	turnReq := natsq.NewTurnRequest(req.Query)
	turnReq.Messages = req.Messages
	turnReq.MaxSubtasks = req.MaxSubtasks
	turnReq.MaxRetries = req.MaxRetries
	turnReq.RequireWeb = req.RequireWeb

	if err := rt.queue.PublishTurnRequested(r.Context(), turnReq); err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"turn_id": turnReq.TurnID})
}

func (rt *Router) getTurnByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	if rt.checkpoints == nil {
		writeJSON(w, http.StatusNotImplemented, map[string]string{"error": "checkpoints are not enabled"})
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/v1/turns/")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "turn id is required"})
		return
	}

	state, err := rt.checkpoints.Load(r.Context(), id)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
