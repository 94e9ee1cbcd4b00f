package ports

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kk7453603/ragcore/internal/core/domain"
)

// Model is the opaque contract with an LLM provider: free-form text
// generation and schema-constrained structured output. The adapter is
// responsible for parse validation of structured calls; unparseable output
// is reported as domain.ErrModelUnparseable so the caller can retry once.
type Model interface {
	Generate(ctx context.Context, prompt string, temperature float64, deadline time.Time) (string, error)
	GenerateStructured(ctx context.Context, prompt string, schema json.RawMessage, temperature float64, deadline time.Time) (json.RawMessage, error)
}

// GenerateStructured calls m.GenerateStructured and unmarshals the result
// into T. Go interface methods cannot carry type parameters, so the
// schema-bound convenience wrapper lives here as a free function instead of
// on the Model interface itself.
func GenerateStructured[T any](ctx context.Context, m Model, prompt string, schema json.RawMessage, temperature float64, deadline time.Time) (T, error) {
	var zero T
	raw, err := m.GenerateStructured(ctx, prompt, schema, temperature, deadline)
	if err != nil {
		return zero, err
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return zero, domain.WrapError(domain.ErrModelUnparseable, "generate_structured", fmt.Errorf("%w: %s", err, string(raw)))
	}
	return out, nil
}
