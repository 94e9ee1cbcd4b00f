package httpadapter

import (
	"encoding/json"
	"strings"

	apigen "github.com/kk7453603/ragcore/internal/adapters/http/openapi"
	"github.com/kk7453603/ragcore/internal/core/domain"
	"github.com/kk7453603/ragcore/internal/core/orchestrator"
)

func latestUserMessageContent(messages []apigen.ChatMessage) (string, bool) {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role != apigen.User {
			continue
		}
		text := extractMessageText(messages[i])
		if text != "" {
			return text, true
		}
	}
	return "", false
}

// turnOptionsFromMessages converts the request's prior messages into the
// turn's conversational log: everything before the final user message,
// excluding tool frames, capped at the configured context window. The final
// user message itself is not included; the orchestrator appends it as the
// turn's user entry.
func (rt *Router) turnOptionsFromMessages(messages []apigen.ChatMessage) orchestrator.Options {
	lastUserIdx := -1
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == apigen.User && extractMessageText(messages[i]) != "" {
			lastUserIdx = i
			break
		}
	}

	var log []domain.Message
	for i, msg := range messages {
		if i == lastUserIdx {
			break
		}
		if msg.Role == apigen.Tool {
			continue
		}
		text := extractMessageText(msg)
		if text == "" {
			continue
		}
		log = append(log, domain.Message{Role: string(msg.Role), Content: text})
	}

	limit := rt.openAICompatContextMessages
	if limit > 0 && len(log) > limit {
		log = log[len(log)-limit:]
	}
	return orchestrator.Options{Messages: log}
}

func extractMessageText(message apigen.ChatMessage) string {
	if message.Content == nil {
		return ""
	}
	if *message.Content == nil {
		return ""
	}

	switch content := (*message.Content).(type) {
	case string:
		return strings.TrimSpace(content)
	case []interface{}:
		parts := make([]string, 0, len(content))
		for _, item := range content {
			switch typed := item.(type) {
			case string:
				if s := strings.TrimSpace(typed); s != "" {
					parts = append(parts, s)
				}
			case map[string]interface{}:
				if text, ok := typed["text"].(string); ok {
					if s := strings.TrimSpace(text); s != "" {
						parts = append(parts, s)
					}
				}
			}
		}
		return strings.TrimSpace(strings.Join(parts, "\n"))
	default:
		payload, err := json.Marshal(content)
		if err != nil {
			return ""
		}
		return strings.TrimSpace(string(payload))
	}
}
