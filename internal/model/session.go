package model

import "time"

// SessionStatus tracks a processing session's lifecycle.
type SessionStatus string

const (
	SessionProcessing SessionStatus = "processing"
	SessionCompleted  SessionStatus = "completed"
	SessionFailed     SessionStatus = "failed"
)

// SessionMetadata identifies one Pass 1 run over one document. It is created
// before the completion call and threaded through translation and record
// building so every derived row links back to the same session.
type SessionMetadata struct {
	SessionID     string    `json:"session_id"`
	ShellFileID   string    `json:"shell_file_id"`
	PatientID     string    `json:"patient_id"`
	Model         string    `json:"model"`
	VisionEnabled bool      `json:"vision_enabled"`
	OCRProvider   string    `json:"ocr_provider"`
	StartedAt     time.Time `json:"started_at"`
}

// ProcessingSession is the persisted session record. Immutable after
// finalization except for status and completion timestamp.
type ProcessingSession struct {
	ID                string        `json:"id"`
	ShellFileID       string        `json:"shell_file_id"`
	PatientID         string        `json:"patient_id"`
	Model             string        `json:"model"`
	VisionEnabled     bool          `json:"vision_enabled"`
	OCRProvider       string        `json:"ocr_provider"`
	Status            SessionStatus `json:"status"`
	TotalEntities     int           `json:"total_entities"`
	ClinicalCount     int           `json:"clinical_event_count"`
	ContextCount      int           `json:"healthcare_context_count"`
	StructureCount    int           `json:"document_structure_count"`
	OverallConfidence float64       `json:"overall_confidence"`
	CostEstimateUSD   float64       `json:"cost_estimate_usd"`
	StartedAt         time.Time     `json:"started_at"`
	CompletedAt       *time.Time    `json:"completed_at,omitempty"`
}

// TokenUsage tracks token consumption for one completion call. Image/vision
// tokens are already included in InputTokens by the provider and must not be
// added a second time.
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Add accumulates usage from another call.
func (u *TokenUsage) Add(other TokenUsage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
}
