package orchestrator

import (
	"context"
	"strings"
	"time"

	"github.com/kk7453603/ragcore/internal/core/domain"
	"github.com/kk7453603/ragcore/internal/core/ports"
)

type contextResolution struct {
	RewrittenQuery string `json:"rewritten_query"`
}

// runContextResolver, entered only for history_required queries, rewrites
// the query into a self-contained form by substituting referents with
// their antecedents from the conversation. The rewritten string is stored
// as EnhancedQuery.
func runContextResolver(ctx context.Context, o *Orchestrator, state domain.TurnState) (domain.StateDelta, error) {
	deadline, _ := ctx.Deadline()
	if deadline.IsZero() {
		deadline = time.Now().Add(10 * time.Second)
	}

	prompt := buildContextResolverPrompt(state.Query, recentMessages(state.Messages, 10))
	resolved, err := ports.GenerateStructured[contextResolution](ctx, o.Model, prompt, contextResolverSchema, 0, deadline)
	if err != nil || strings.TrimSpace(resolved.RewrittenQuery) == "" {
		// Safe fallback: use the original query unresolved rather than fail
		// the turn over a rewrite failure.
		return domain.StateDelta{
			EnhancedQuery: stringPtr(state.Query),
			NewWarnings:   []string{"context_resolution_failed"},
		}, nil
	}

	return domain.StateDelta{EnhancedQuery: stringPtr(resolved.RewrittenQuery)}, nil
}

func buildContextResolverPrompt(query string, history []domain.Message) string {
	var sb strings.Builder
	sb.WriteString("Rewrite the final user query into a self-contained question by replacing pronouns and implicit references with their antecedents from the conversation. Preserve intent. Do not answer the question.\n\n")
	for _, m := range history {
		sb.WriteString(m.Role)
		sb.WriteString(": ")
		sb.WriteString(m.Content)
		sb.WriteString("\n")
	}
	sb.WriteString("\nQuery to rewrite: ")
	sb.WriteString(query)
	return sb.String()
}
