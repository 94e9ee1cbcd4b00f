package nats

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kk7453603/ragcore/internal/core/ports"
	"github.com/nats-io/nats.go"
)

// EventPublisher implements ports.EventPublisher by publishing each
// stream() event as a JSON message on "<subject>.<turnID>", so a caller can
// subscribe to exactly the turn it started. Transport choice is an adapter
// decision; the core treats Event as an opaque, language-agnostic record.
type EventPublisher struct {
	conn    *nats.Conn
	subject string
}

func NewEventPublisher(conn *nats.Conn, subject string) *EventPublisher {
	return &EventPublisher{conn: conn, subject: subject}
}

func (p *EventPublisher) Publish(_ context.Context, turnID string, event ports.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := p.conn.Publish(p.subject+"."+turnID, payload); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}
