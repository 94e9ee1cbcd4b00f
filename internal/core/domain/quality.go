package domain

// QualityReport is the common result shape for the hallucination checker and
// the answer grader.
type QualityReport struct {
	IsValid     bool     `json:"is_valid"`
	Score       float64  `json:"score"`
	Reasons     []string `json:"reasons,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
	NeedsRetry  bool     `json:"needs_retry"`

	// Dimensional sub-scores, populated by the answer grader only.
	Dimensions map[string]float64 `json:"dimensions,omitempty"`
}

// Answer is the structured output of the synthesizer.
type Answer struct {
	Text               string   `json:"text"`
	Confidence         float64  `json:"confidence"`
	SourcesUsed        []string `json:"sources_used,omitempty"`
	KeyPoints          []string `json:"key_points,omitempty"`
	ReferencesTable    string   `json:"references_table,omitempty"`
	Warnings           []string `json:"warnings,omitempty"`
	EntityReferences   []string `json:"entity_references,omitempty"`
	HumanFeedbackUsed  []string `json:"human_feedback_used,omitempty"`
}
