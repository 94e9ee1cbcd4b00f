package orchestrator

import "encoding/json"

// Structured-output schemas bound to the Model interface's
// GenerateStructured operation, one record type per schema: router
// classification, planner, query variations, subtask extraction, dynamic
// filter, synthesized answer, and the two quality reports.
var (
	routerSchema = json.RawMessage(`{
		"type": "object",
		"required": ["type", "confidence", "reasoning"],
		"properties": {
			"type": {"type": "string", "enum": ["simple", "history_required", "rag_required"]},
			"confidence": {"type": "number"},
			"reasoning": {"type": "string"}
		}
	}`)

	plannerSchema = json.RawMessage(`{
		"type": "object",
		"required": ["subtasks"],
		"properties": {
			"subtasks": {
				"type": "array",
				"items": {
					"type": "object",
					"required": ["query", "priority", "dependencies"],
					"properties": {
						"query": {"type": "string"},
						"priority": {"type": "integer", "minimum": 1, "maximum": 5},
						"dependencies": {"type": "array", "items": {"type": "integer"}}
					}
				}
			}
		}
	}`)

	variationsSchema = json.RawMessage(`{
		"type": "object",
		"required": ["variations"],
		"properties": {
			"variations": {"type": "array", "items": {"type": "string"}, "minItems": 3, "maxItems": 5}
		}
	}`)

	extractionSchema = json.RawMessage(`{
		"type": "object",
		"properties": {
			"pages": {"type": "array", "items": {"type": "integer"}},
			"categories": {"type": "array", "items": {"type": "string"}},
			"entity_types": {"type": "array", "items": {"type": "string"}},
			"keywords": {"type": "array", "items": {"type": "string"}}
		}
	}`)

	filterDraftSchema = json.RawMessage(`{
		"type": "object",
		"properties": {
			"sources": {"type": "array", "items": {"type": "string"}},
			"pages": {"type": "array", "items": {"type": "integer"}},
			"categories": {"type": "array", "items": {"type": "string"}},
			"caption_contains": {"type": "string"},
			"entity_type": {"type": "string"},
			"entity_keywords": {"type": "array", "items": {"type": "string"}},
			"entity_title": {"type": "string"}
		}
	}`)

	answerSchema = json.RawMessage(`{
		"type": "object",
		"required": ["text", "confidence"],
		"properties": {
			"text": {"type": "string"},
			"confidence": {"type": "number"},
			"sources_used": {"type": "array", "items": {"type": "string"}},
			"key_points": {"type": "array", "items": {"type": "string"}},
			"warnings": {"type": "array", "items": {"type": "string"}},
			"entity_references": {"type": "array", "items": {"type": "string"}},
			"human_feedback_used": {"type": "array", "items": {"type": "string"}}
		}
	}`)

	hallucinationSchema = json.RawMessage(`{
		"type": "object",
		"required": ["score", "reasons"],
		"properties": {
			"score": {"type": "number"},
			"reasons": {"type": "array", "items": {"type": "string"}},
			"unsupported_claims": {"type": "array", "items": {"type": "string"}}
		}
	}`)

	gradeSchema = json.RawMessage(`{
		"type": "object",
		"required": ["completeness", "relevance", "clarity", "accuracy"],
		"properties": {
			"completeness": {"type": "number"},
			"relevance": {"type": "number"},
			"clarity": {"type": "number"},
			"accuracy": {"type": "number"},
			"suggestions": {"type": "array", "items": {"type": "string"}}
		}
	}`)

	contextResolverSchema = json.RawMessage(`{
		"type": "object",
		"required": ["rewritten_query"],
		"properties": {
			"rewritten_query": {"type": "string"}
		}
	}`)
)
