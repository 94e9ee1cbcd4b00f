package nats

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kk7453603/ragcore/internal/core/domain"
	"github.com/nats-io/nats.go"
)

// CheckpointStore persists TurnState into a JetStream key-value bucket,
// keyed by turn id, enabling resume-on-crash. Checkpoint format is JSON,
// opaque to the core.
type CheckpointStore struct {
	kv nats.KeyValue
}

func NewCheckpointStore(conn *nats.Conn, bucket string) (*CheckpointStore, error) {
	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream context: %w", err)
	}
	kv, err := js.KeyValue(bucket)
	if err != nil {
		kv, err = js.CreateKeyValue(&nats.KeyValueConfig{Bucket: bucket})
		if err != nil {
			return nil, fmt.Errorf("create checkpoint bucket: %w", err)
		}
	}
	return &CheckpointStore{kv: kv}, nil
}

func (s *CheckpointStore) Save(_ context.Context, turnID string, state domain.TurnState) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}
	if _, err := s.kv.Put(turnID, payload); err != nil {
		return fmt.Errorf("put checkpoint: %w", err)
	}
	return nil
}

func (s *CheckpointStore) Load(_ context.Context, turnID string) (domain.TurnState, error) {
	entry, err := s.kv.Get(turnID)
	if err != nil {
		if err == nats.ErrKeyNotFound {
			return domain.TurnState{}, domain.WrapError(domain.ErrDocumentNotFound, "load_checkpoint", err)
		}
		return domain.TurnState{}, fmt.Errorf("get checkpoint: %w", err)
	}
	var state domain.TurnState
	if err := json.Unmarshal(entry.Value(), &state); err != nil {
		return domain.TurnState{}, fmt.Errorf("unmarshal checkpoint: %w", err)
	}
	return state, nil
}
