package domain

// QueryType is the router's classification of a turn's query.
type QueryType string

const (
	QuerySimple         QueryType = "simple"
	QueryHistoryRequired QueryType = "history_required"
	QueryRAGRequired     QueryType = "rag_required"
)

// WorkflowStatus is TurnState's top-level lifecycle flag.
type WorkflowStatus string

const (
	WorkflowRunning   WorkflowStatus = "running"
	WorkflowCompleted WorkflowStatus = "completed"
	WorkflowFailed    WorkflowStatus = "failed"
)

// Message is one entry in a turn's conversational log.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// TurnState is the single evolving record passed between orchestrator nodes.
// It is created at turn start, mutated only by merging node outputs
// (StateDelta values), and surrendered once the orchestrator reaches a
// terminal WorkflowStatus or the step budget is exhausted.
type TurnState struct {
	TurnID string `json:"turn_id"`

	Query         string    `json:"query"`
	EnhancedQuery string    `json:"enhanced_query,omitempty"`
	QueryType     QueryType `json:"query_type,omitempty"`

	Subtasks          []Subtask `json:"subtasks"`
	CurrentSubtaskIdx int       `json:"current_subtask_idx"`

	Documents []Document `json:"documents"`

	IntermediateAnswer string  `json:"intermediate_answer,omitempty"`
	FinalAnswer        string  `json:"final_answer,omitempty"`
	Confidence         float64 `json:"confidence"`

	HallucinationReport *QualityReport `json:"hallucination_report,omitempty"`
	GradeReport          *QualityReport `json:"grade_report,omitempty"`

	RetryCount     int `json:"retry_count"`
	MaxRetries     int `json:"max_retries"`
	IterationCount int `json:"iteration_count"`

	WorkflowStatus WorkflowStatus `json:"workflow_status"`
	Error          string         `json:"error,omitempty"`
	Warnings       []string       `json:"warnings,omitempty"`

	Messages []Message `json:"messages,omitempty"`

	Metadata map[string]any `json:"metadata,omitempty"`
}

// EffectiveQuery returns EnhancedQuery when set, else Query
func (s TurnState) EffectiveQuery() string {
	if s.EnhancedQuery != "" {
		return s.EnhancedQuery
	}
	return s.Query
}

// StateDelta is the partial record a node returns; the orchestrator merges it
// into TurnState using the reducer semantics below. Pointer-typed or
// slice-typed fields left nil mean "no opinion, leave TurnState unchanged";
// an explicit zero value (e.g. empty string) still requires last-writer-wins
// semantics for scalar fields the node intentionally set.
type StateDelta struct {
	EnhancedQuery *string
	QueryType     *QueryType

	Subtasks          []Subtask
	CurrentSubtaskIdx *int

	// NewDocuments is additive-with-dedup by Document.ID; order of first
	// appearance is preserved.
	NewDocuments []Document

	IntermediateAnswer *string
	FinalAnswer         *string
	Confidence          *float64

	HallucinationReport *QualityReport
	GradeReport          *QualityReport

	RetryCountDelta int // added to TurnState.RetryCount; only the synthesizer sets this non-zero
	IterationCount  *int

	WorkflowStatus *WorkflowStatus
	// Error, when non-nil, sets TurnState.Error to *Error (last-writer-wins).
	// Use ClearErrorValue() to construct a delta that clears it.
	Error *string

	NewWarnings []string

	NewMessages []Message

	MetadataPatch map[string]any
}

// ClearErrorValue returns the sentinel string value that Merge treats as
// "clear the error field." Using a sentinel instead of a second pointer
// level keeps StateDelta.Error a plain *string.
const clearErrorValue = "\x00clear\x00"

func ClearErrorValue() *string {
	v := clearErrorValue
	return &v
}

// Merge applies a node's StateDelta onto a copy of the current TurnState and
// returns the result, applying the per-field reducers:
// documents additive-with-dedup, messages/warnings append-only, all other
// scalars last-writer-wins, error last-writer-wins with explicit clear.
func Merge(state TurnState, delta StateDelta) TurnState {
	next := state

	if delta.EnhancedQuery != nil {
		next.EnhancedQuery = *delta.EnhancedQuery
	}
	if delta.QueryType != nil {
		next.QueryType = *delta.QueryType
	}
	if delta.Subtasks != nil {
		next.Subtasks = delta.Subtasks
	}
	if delta.CurrentSubtaskIdx != nil {
		next.CurrentSubtaskIdx = *delta.CurrentSubtaskIdx
	}

	if len(delta.NewDocuments) > 0 {
		seen := make(map[string]struct{}, len(next.Documents))
		for _, d := range next.Documents {
			seen[d.ID] = struct{}{}
		}
		merged := next.Documents
		for _, d := range delta.NewDocuments {
			if _, dup := seen[d.ID]; dup {
				continue
			}
			seen[d.ID] = struct{}{}
			merged = append(merged, d)
		}
		next.Documents = merged
	}

	if delta.IntermediateAnswer != nil {
		next.IntermediateAnswer = *delta.IntermediateAnswer
	}
	if delta.FinalAnswer != nil {
		next.FinalAnswer = *delta.FinalAnswer
	}
	if delta.Confidence != nil {
		next.Confidence = *delta.Confidence
	}
	if delta.HallucinationReport != nil {
		next.HallucinationReport = delta.HallucinationReport
	}
	if delta.GradeReport != nil {
		next.GradeReport = delta.GradeReport
	}

	next.RetryCount += delta.RetryCountDelta

	if delta.IterationCount != nil {
		next.IterationCount = *delta.IterationCount
	}
	if delta.WorkflowStatus != nil {
		next.WorkflowStatus = *delta.WorkflowStatus
	}

	if delta.Error != nil {
		if *delta.Error == clearErrorValue {
			next.Error = ""
		} else {
			next.Error = *delta.Error
		}
	}

	if len(delta.NewWarnings) > 0 {
		next.Warnings = append(append([]string{}, next.Warnings...), delta.NewWarnings...)
	}
	if len(delta.NewMessages) > 0 {
		next.Messages = append(append([]Message{}, next.Messages...), delta.NewMessages...)
	}
	if len(delta.MetadataPatch) > 0 {
		merged := make(map[string]any, len(next.Metadata)+len(delta.MetadataPatch))
		for k, v := range next.Metadata {
			merged[k] = v
		}
		for k, v := range delta.MetadataPatch {
			merged[k] = v
		}
		next.Metadata = merged
	}

	return next
}
