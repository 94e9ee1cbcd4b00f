package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/kk7453603/ragcore/internal/core/domain"
	"github.com/kk7453603/ragcore/internal/infrastructure/resilience"
	"github.com/nats-io/nats.go"
)

// TurnRequest is the wire shape of one asynchronous turn: everything
// cmd/worker needs to run the orchestrator out-of-band. The turn id is
// assigned by the publisher so the caller can poll /v1/turns/{id} before
// the worker has picked the request up.
type TurnRequest struct {
	TurnID      string           `json:"turn_id"`
	Query       string           `json:"query"`
	Messages    []domain.Message `json:"messages,omitempty"`
	MaxSubtasks int              `json:"max_subtasks,omitempty"`
	MaxRetries  int              `json:"max_retries,omitempty"`
	RequireWeb  bool             `json:"require_web,omitempty"`
	RequestedAt time.Time        `json:"requested_at"`
}

func NewTurnRequest(query string) TurnRequest {
	return TurnRequest{
		TurnID:      uuid.NewString(),
		Query:       query,
		RequestedAt: time.Now().UTC(),
	}
}

// WorkerQueue carries asynchronous turn requests from cmd/api to cmd/worker
// over a queue-subscribed subject, so multiple workers share one stream of
// requests without double-processing.
type WorkerQueue struct {
	conn     *nats.Conn
	subject  string
	executor *resilience.Executor
}

func NewWorkerQueue(conn *nats.Conn, subject string, executor *resilience.Executor) *WorkerQueue {
	return &WorkerQueue{conn: conn, subject: subject, executor: executor}
}

func (q *WorkerQueue) PublishTurnRequested(ctx context.Context, req TurnRequest) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal turn request: %w", err)
	}

	call := func(_ context.Context) error {
		if err := q.conn.Publish(q.subject, payload); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}

	if q.executor != nil {
		err = q.executor.Execute(ctx, "nats.publish_turn", call, classifyNATSError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return wrapTemporaryIfNeeded(err)
	}
	return nil
}

func (q *WorkerQueue) SubscribeTurnRequested(ctx context.Context, handler func(context.Context, TurnRequest) error) error {
	sub, err := q.conn.QueueSubscribe(q.subject, "workers", func(msg *nats.Msg) {
		if errors.Is(ctx.Err(), context.Canceled) {
			return
		}

		var req TurnRequest
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			log.Printf("worker dropped malformed turn request: %v", err)
			return
		}

		handlerCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		if err := handler(handlerCtx, req); err != nil {
			log.Printf("worker handler error for turn=%s: %v", req.TurnID, err)
		}
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}

	if err := q.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := q.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}
