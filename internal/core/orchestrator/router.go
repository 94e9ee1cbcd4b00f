package orchestrator

import (
	"context"
	"strings"
	"time"

	"github.com/kk7453603/ragcore/internal/core/domain"
	"github.com/kk7453603/ragcore/internal/core/ports"
)

// routerDecision is the schema-bound record the classifier call
// returns.
type routerDecision struct {
	Type       string  `json:"type"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

// runRouter inspects the query plus the last <=10 conversational entries
// and assigns exactly one query_type. On classifier failure it defaults to
// rag_required, the safe path.
func runRouter(ctx context.Context, o *Orchestrator, state domain.TurnState) (domain.StateDelta, error) {
	deadline, _ := ctx.Deadline()
	if deadline.IsZero() {
		deadline = time.Now().Add(10 * time.Second)
	}

	prompt := buildRouterPrompt(state.Query, recentMessages(state.Messages, 10))
	decision, err := ports.GenerateStructured[routerDecision](ctx, o.Model, prompt, routerSchema, 0, deadline)

	queryType := domain.QueryRAGRequired
	var newWarnings []string
	if err != nil {
		newWarnings = []string{"router_classification_failed: " + err.Error()}
	} else if parsed, ok := parseQueryType(decision.Type); ok {
		queryType = parsed
	} else {
		newWarnings = []string{"router_unknown_type: " + decision.Type}
	}

	return domain.StateDelta{
		QueryType:   queryTypePtr(queryType),
		NewWarnings: newWarnings,
	}, nil
}

func parseQueryType(raw string) (domain.QueryType, bool) {
	switch domain.QueryType(strings.TrimSpace(raw)) {
	case domain.QuerySimple:
		return domain.QuerySimple, true
	case domain.QueryHistoryRequired:
		return domain.QueryHistoryRequired, true
	case domain.QueryRAGRequired:
		return domain.QueryRAGRequired, true
	default:
		return "", false
	}
}

func recentMessages(messages []domain.Message, limit int) []domain.Message {
	if len(messages) <= limit {
		return messages
	}
	return messages[len(messages)-limit:]
}

func buildRouterPrompt(query string, history []domain.Message) string {
	var sb strings.Builder
	sb.WriteString("Classify the user query into exactly one type: simple, history_required, or rag_required.\n")
	sb.WriteString("simple: general-knowledge or social, answerable without document retrieval.\n")
	sb.WriteString("history_required: the query contains unresolved references to prior turns.\n")
	sb.WriteString("rag_required: everything else, requires document retrieval.\n\n")
	if len(history) > 0 {
		sb.WriteString("Conversation so far:\n")
		for _, m := range history {
			sb.WriteString(m.Role)
			sb.WriteString(": ")
			sb.WriteString(m.Content)
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}
	sb.WriteString("Query: ")
	sb.WriteString(query)
	return sb.String()
}
