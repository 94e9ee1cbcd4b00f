// Package orchestrator implements the retrieval-and-orchestration state
// machine: a directed graph of nodes that each take a domain.TurnState and
// return a domain.StateDelta, sequenced by an orchestrator that applies the
// merge reducers and enforces a global step budget. Nodes never mutate
// TurnState directly and never throw across the orchestrator boundary;
// failures flow back as StateDelta fields.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kk7453603/ragcore/internal/core/domain"
	"github.com/kk7453603/ragcore/internal/core/ports"
	"github.com/kk7453603/ragcore/internal/infrastructure/resilience"
)

// node names double as the Event.Node field and as the dispatch keys below.
const (
	nodeRouter           = "router"
	nodeContextResolver  = "context_resolver"
	nodeDirectResponder  = "direct_responder"
	nodePlanner          = "planner"
	nodeSubtaskExecutor  = "subtask_executor"
	nodeRetriever        = "retriever"
	nodeWebFallback      = "web_fallback"
	nodeSynthesizer      = "synthesizer"
	nodeHallucination    = "hallucination_checker"
	nodeAnswerGrader     = "answer_grader"
	nodeEnd              = "__end__"
)

// Options configures one turn. Zero values fall back to the orchestrator's
// configured defaults.
type Options struct {
	// TurnID, when set, names the turn instead of a generated id; async
	// callers assign it at enqueue time so the turn is addressable before
	// it runs.
	TurnID string

	MaxSubtasks  int
	MaxRetries   int
	TurnDeadline time.Duration
	RequireWeb   bool
	Messages     []domain.Message
}

// Result is the synchronous run() entry point's return shape.
type Result struct {
	Answer     string
	Confidence float64
	Warnings   []string
	Metadata   map[string]any
	State      domain.TurnState
}

// Node is one state-machine step: a pure function from TurnState to a
// StateDelta, plus an error for catastrophic (non-recoverable) failures.
// Recoverable failures are reported through the delta's Error/NewWarnings
// fields instead.
type Node func(ctx context.Context, o *Orchestrator, state domain.TurnState) (domain.StateDelta, error)

// Orchestrator wires every collaborator the graph's nodes need and drives
// the sequencing loop over them.
type Orchestrator struct {
	Store    ports.Store
	Model    ports.Model
	Embedder ports.Embedder
	WebTool  ports.WebTool

	Checkpoints ports.CheckpointStore
	Events      ports.EventPublisher

	// RetrieverResilience governs store-query retries. The policy belongs
	// to the retriever, not the store adapters, so a store client swap never
	// changes retry behavior. Defaults to resilience.RetrievalConfig().
	RetrieverResilience *resilience.Executor

	Config Config

	nodes    map[string]Node
	metaOnce sync.Once
	metaCch  *metadataCache
}

func (o *Orchestrator) resilienceExecutor() *resilience.Executor {
	if o.RetrieverResilience == nil {
		o.RetrieverResilience = resilience.NewExecutor(resilience.RetrievalConfig())
	}
	return o.RetrieverResilience
}

// metadataCacheFor returns the turn's shared, process-wide store metadata
// cache, lazily constructed on first use.
func (o *Orchestrator) metadataCacheFor() *metadataCache {
	o.metaOnce.Do(func() {
		o.metaCch = newMetadataCache(o.Config.MetadataCacheTTL)
	})
	return o.metaCch
}

// Config mirrors the subset of internal/config.Config the orchestrator's
// nodes read directly.
type Config struct {
	MaxSubtasks            int
	MaxRetries             int
	TopK                   int
	RRFK                   int
	WebFallbackThreshold   int
	ThresholdHallucination float64
	ThresholdGrade         float64
	RoutingEnabled         bool
	WebEnabled             bool
	TurnDeadline           time.Duration
	WorkerPoolSize         int
	MetadataCacheTTL       time.Duration
	FilterEntityAggressive bool
}

// New builds an Orchestrator with its node dispatch table populated.
func New(store ports.Store, model ports.Model, embedder ports.Embedder, webTool ports.WebTool, cfg Config) *Orchestrator {
	o := &Orchestrator{Store: store, Model: model, Embedder: embedder, WebTool: webTool, Config: cfg}
	o.nodes = map[string]Node{
		nodeRouter:          runRouter,
		nodeContextResolver: runContextResolver,
		nodeDirectResponder: runDirectResponder,
		nodePlanner:         runPlanner,
		nodeSubtaskExecutor: runSubtaskExecutor,
		nodeRetriever:       runRetriever,
		nodeWebFallback:     runWebFallback,
		nodeSynthesizer:     runSynthesizer,
		nodeHallucination:   runHallucinationChecker,
		nodeAnswerGrader:    runAnswerGrader,
	}
	return o
}

func (o *Orchestrator) withDefaults(opts Options) Options {
	if opts.MaxSubtasks <= 0 {
		opts.MaxSubtasks = o.Config.MaxSubtasks
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = o.Config.MaxRetries
	}
	if opts.TurnDeadline <= 0 {
		opts.TurnDeadline = o.Config.TurnDeadline
	}
	if opts.TurnID == "" {
		opts.TurnID = uuid.NewString()
	}
	return opts
}

// stepBudget bounds total node transitions per turn:
// (max_subtasks*3) + (max_retries*4) + 30.
func stepBudget(maxSubtasks, maxRetries int) int {
	return maxSubtasks*3 + maxRetries*4 + 30
}

// newTurnState seeds a fresh turn: exactly one user message is appended at
// turn start, on top of whatever conversational log the caller supplied.
func newTurnState(turnID, query string, opts Options) domain.TurnState {
	messages := append([]domain.Message{}, opts.Messages...)
	messages = append(messages, domain.Message{Role: "user", Content: query})

	metadata := map[string]any{}
	if opts.RequireWeb {
		metadata["require_web"] = true
	}

	return domain.TurnState{
		TurnID:         turnID,
		Query:          query,
		MaxRetries:     opts.MaxRetries,
		WorkflowStatus: domain.WorkflowRunning,
		Messages:       messages,
		Metadata:       metadata,
	}
}

// entryNode picks where a turn starts: the router when routing is enabled,
// else straight into planning.
func (o *Orchestrator) entryNode() string {
	if o.Config.RoutingEnabled {
		return nodeRouter
	}
	return nodePlanner
}

// Run executes run(query, options) -> {answer, confidence, warnings,
// metadata} synchronously: it blocks until the turn reaches a terminal
// WorkflowStatus or the step budget is exhausted.
func (o *Orchestrator) Run(ctx context.Context, query string, opts Options) (Result, error) {
	if query == "" {
		return Result{}, domain.WrapError(domain.ErrInvalidInput, "run", fmt.Errorf("query must not be empty"))
	}
	opts = o.withDefaults(opts)

	turnID := opts.TurnID
	state := newTurnState(turnID, query, opts)

	deadline := time.Now().Add(opts.TurnDeadline)
	runCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	final, err := o.drive(runCtx, state, opts, nil)
	if err != nil {
		return Result{}, err
	}
	return resultFromState(final), nil
}

// Stream executes stream(query, options) -> sequence<event>, emitting a
// node_entered/node_completed/state_delta event per node transition and a
// final terminal event. The returned channel is closed once the terminal
// event has been sent.
func (o *Orchestrator) Stream(ctx context.Context, query string, opts Options) (<-chan ports.Event, error) {
	if query == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "stream", fmt.Errorf("query must not be empty"))
	}
	opts = o.withDefaults(opts)

	turnID := opts.TurnID
	state := newTurnState(turnID, query, opts)

	deadline := time.Now().Add(opts.TurnDeadline)
	runCtx, cancel := context.WithDeadline(ctx, deadline)

	events := make(chan ports.Event, 16)
	go func() {
		defer cancel()
		defer close(events)
		final, err := o.drive(runCtx, state, opts, events)
		if err != nil {
			events <- ports.Event{Kind: ports.EventTerminal, Payload: map[string]any{"error": err.Error()}}
			return
		}
		result := resultFromState(final)
		events <- ports.Event{Kind: ports.EventTerminal, Payload: map[string]any{
			"answer":     result.Answer,
			"confidence": result.Confidence,
			"warnings":   result.Warnings,
			"status":     string(final.WorkflowStatus),
		}}
	}()
	return events, nil
}

// drive runs the node-sequencing loop shared by Run and Stream.
func (o *Orchestrator) drive(ctx context.Context, state domain.TurnState, opts Options, events chan<- ports.Event) (domain.TurnState, error) {
	budget := stepBudget(opts.MaxSubtasks, opts.MaxRetries)
	current := o.entryNode()
	steps := 0

	for current != nodeEnd {
		if state.WorkflowStatus == domain.WorkflowCompleted || state.WorkflowStatus == domain.WorkflowFailed {
			break
		}
		if steps >= budget {
			state = domain.Merge(state, domain.StateDelta{
				WorkflowStatus: workflowStatusPtr(domain.WorkflowFailed),
				Error:          stringPtr(domain.ErrStepBudgetExceeded.Error()),
			})
			break
		}
		if err := ctx.Err(); err != nil {
			state = domain.Merge(state, domain.StateDelta{
				WorkflowStatus: workflowStatusPtr(domain.WorkflowFailed),
				Error:          stringPtr(err.Error()),
			})
			break
		}

		fn, ok := o.nodes[current]
		if !ok {
			return state, fmt.Errorf("orchestrator: unknown node %q", current)
		}

		o.emit(ctx, state.TurnID, events, ports.Event{Kind: ports.EventNodeEntered, Node: current})

		delta, err := fn(ctx, o, state)
		if err != nil {
			state = domain.Merge(state, domain.StateDelta{
				WorkflowStatus: workflowStatusPtr(domain.WorkflowFailed),
				Error:          stringPtr(err.Error()),
			})
			o.emit(ctx, state.TurnID, events, ports.Event{Kind: ports.EventNodeCompleted, Node: current, Payload: map[string]any{"error": err.Error()}})
			break
		}

		state = domain.Merge(state, delta)
		steps++

		o.emit(ctx, state.TurnID, events, ports.Event{Kind: ports.EventStateDelta, Node: current, Payload: map[string]any{
			"workflow_status": string(state.WorkflowStatus),
			"documents":       len(state.Documents),
		}})
		o.emit(ctx, state.TurnID, events, ports.Event{Kind: ports.EventNodeCompleted, Node: current})

		o.checkpoint(ctx, state)

		next, err := o.nextNode(current, &state, opts)
		if err != nil {
			return state, err
		}
		current = next
	}

	return finalizeTerminalState(state), nil
}

// finalizeTerminalState guarantees a partial answer is never reported as
// completed. Every genuinely terminating edge (direct responder,
// quality-gate accept/exhaustion, empty-retrieval failure) already sets an
// explicit WorkflowStatus before returning nodeEnd; this is the safety net
// for any path that reaches end while the status is still running.
func finalizeTerminalState(state domain.TurnState) domain.TurnState {
	if state.WorkflowStatus != domain.WorkflowRunning {
		return state
	}
	if state.FinalAnswer != "" {
		return domain.Merge(state, domain.StateDelta{WorkflowStatus: workflowStatusPtr(domain.WorkflowCompleted)})
	}
	delta := domain.StateDelta{WorkflowStatus: workflowStatusPtr(domain.WorkflowFailed)}
	if state.Error == "" {
		delta.Error = stringPtr("turn ended with no final answer and no retrieved documents")
	}
	return domain.Merge(state, delta)
}

// nextNode evaluates the graph's conditional edges. It takes state by
// pointer solely so that edges which terminate a turn outside the normal
// synthesis-accept path (quality-gate exhaustion, empty-retrieval failure)
// can record a definitive WorkflowFailed/Error before returning nodeEnd --
// otherwise a terminated-with-an-answer turn would be indistinguishable
// from one that actually passed validation.
func (o *Orchestrator) nextNode(current string, state *domain.TurnState, opts Options) (string, error) {
	switch current {
	case nodeRouter:
		switch state.QueryType {
		case domain.QuerySimple:
			return nodeDirectResponder, nil
		case domain.QueryHistoryRequired:
			return nodeContextResolver, nil
		default:
			return nodePlanner, nil
		}
	case nodeContextResolver:
		return nodePlanner, nil
	case nodeDirectResponder:
		return nodeEnd, nil
	case nodePlanner:
		return nodeSubtaskExecutor, nil
	case nodeSubtaskExecutor:
		// subtask_executor only ever prepares the subtask at its own
		// CurrentSubtaskIdx and advances the index; whether the turn is
		// "done with subtasks" can only be known once that subtask has
		// actually been retrieved, so completion is decided after
		// retriever/web_fallback, never here. A zero-variations failure is
		// the one case that short-circuits straight to end.
		if state.Error != "" {
			o.failTurn(state, state.Error)
			return nodeEnd, nil
		}
		return nodeRetriever, nil
	case nodeRetriever:
		if needsWeb(*state, o.Config.WebFallbackThreshold, o.Config.WebEnabled) {
			return nodeWebFallback, nil
		}
		return o.afterSubtaskWork(state)
	case nodeWebFallback:
		return o.afterSubtaskWork(state)
	case nodeSynthesizer:
		return nodeHallucination, nil
	case nodeHallucination:
		switch hallucinationDecision(*state, opts.MaxRetries) {
		case decisionValid:
			return nodeAnswerGrader, nil
		case decisionRetry:
			return nodeSynthesizer, nil
		default:
			o.failTurn(state, "hallucination check exhausted retries")
			return nodeEnd, nil
		}
	case nodeAnswerGrader:
		switch gradeDecision(*state, opts.MaxRetries) {
		case decisionAccept:
			return nodeEnd, nil
		case decisionRetry:
			return nodeSynthesizer, nil
		default:
			o.failTurn(state, "answer grading exhausted retries")
			return nodeEnd, nil
		}
	default:
		return "", fmt.Errorf("orchestrator: no outgoing edge for node %q", current)
	}
}

// failTurn marks state WorkflowFailed, preserving whatever error the node
// already set and only supplying fallback when none exists.
func (o *Orchestrator) failTurn(state *domain.TurnState, fallbackError string) {
	delta := domain.StateDelta{WorkflowStatus: workflowStatusPtr(domain.WorkflowFailed)}
	if state.Error == "" {
		delta.Error = stringPtr(fallbackError)
	}
	*state = domain.Merge(*state, delta)
}

// afterSubtaskWork is the subtask-advance edge as it applies once the
// current subtask's retrieval (dense+lexical, optionally plus web fallback)
// has actually run: move to the next subtask, finish into the synthesizer,
// or terminate when no subtask retrieved anything -- the synthesizer is
// never entered with zero documents.
func (o *Orchestrator) afterSubtaskWork(state *domain.TurnState) (string, error) {
	switch subtaskAdvance(*state) {
	case advanceFailed:
		o.failTurn(state, state.Error)
		return nodeEnd, nil
	case advanceComplete:
		if len(state.Documents) == 0 {
			o.failTurn(state, "retrieval produced zero documents across all subtasks")
			return nodeEnd, nil
		}
		return nodeSynthesizer, nil
	default:
		return nodeSubtaskExecutor, nil
	}
}

func (o *Orchestrator) checkpoint(ctx context.Context, state domain.TurnState) {
	if o.Checkpoints == nil {
		return
	}
	_ = o.Checkpoints.Save(ctx, state.TurnID, state)
}

// emit forwards one event to the caller's stream channel (waiting for the
// reader until ctx ends) and, when an EventPublisher is wired, onto the
// event transport. Publish failures never affect the turn.
func (o *Orchestrator) emit(ctx context.Context, turnID string, events chan<- ports.Event, event ports.Event) {
	if o.Events != nil {
		_ = o.Events.Publish(ctx, turnID, event)
	}
	if events == nil {
		return
	}
	select {
	case events <- event:
	case <-ctx.Done():
	}
}

func resultFromState(state domain.TurnState) Result {
	return Result{
		Answer:     state.FinalAnswer,
		Confidence: state.Confidence,
		Warnings:   state.Warnings,
		Metadata:   state.Metadata,
		State:      state,
	}
}

func workflowStatusPtr(v domain.WorkflowStatus) *domain.WorkflowStatus { return &v }
func stringPtr(v string) *string                                      { return &v }
func floatPtr(v float64) *float64                                     { return &v }
func intPtr(v int) *int                                                { return &v }
func queryTypePtr(v domain.QueryType) *domain.QueryType                { return &v }
