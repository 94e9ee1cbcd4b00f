package ports

import (
	"context"

	"github.com/kk7453603/ragcore/internal/core/domain"
)

// CheckpointStore persists the complete TurnState after each node
// transition, keyed by turn id, enabling resume-on-crash. The serialization
// format is opaque to the core.
type CheckpointStore interface {
	Save(ctx context.Context, turnID string, state domain.TurnState) error
	Load(ctx context.Context, turnID string) (domain.TurnState, error)
}

// EventPublisher emits the stream() entry point's node-transition events.
type EventPublisher interface {
	Publish(ctx context.Context, turnID string, event Event) error
}

// EventKind enumerates stream() event kinds.
type EventKind string

const (
	EventNodeEntered   EventKind = "node_entered"
	EventNodeCompleted EventKind = "node_completed"
	EventStateDelta    EventKind = "state_delta"
	EventTerminal      EventKind = "terminal"
)

// Event is one language-agnostic record emitted by stream(). No specific
// transport is mandated by the core; EventPublisher implementations choose
// one (NATS subject publish, SSE frame, etc).
type Event struct {
	Kind    EventKind      `json:"kind"`
	Node    string         `json:"node,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`
}
