package model

import "time"

// EntityAuditRecord is the flattened, persisted form of one detected entity.
// Created once by the record translator and never mutated by Pass 1; the
// downstream enrichment pass may annotate it later.
type EntityAuditRecord struct {
	ID          string `json:"id"`
	SessionID   string `json:"processing_session_id"`
	ShellFileID string `json:"shell_file_id"`
	PatientID   string `json:"patient_id"`

	EntityID     string         `json:"entity_id"`
	OriginalText string         `json:"original_text"`
	Category     EntityCategory `json:"entity_category"`
	Subtype      EntitySubtype  `json:"entity_subtype"`

	RequiresSchemas    []string             `json:"requires_schemas"`
	ProcessingPriority ProcessingPriority   `json:"processing_priority"`
	Complexity         EnrichmentComplexity `json:"enrichment_complexity"`
	Pass2Status        Pass2Status          `json:"pass2_status"`

	DetectionConfidence      float64 `json:"detection_confidence"`
	ClassificationConfidence float64 `json:"classification_confidence"`
	CrossValidationScore     float64 `json:"cross_validation_score"`

	OCRText        string  `json:"ocr_text,omitempty"`
	OCRConfidence  float64 `json:"ocr_confidence"`
	AIOCRAgreement float64 `json:"ai_ocr_agreement"`

	AIInterpretation  string `json:"ai_interpretation,omitempty"`
	FormattingContext string `json:"formatting_context,omitempty"`

	PageNumber    int          `json:"page_number"`
	BoundingBox   *BoundingBox `json:"bounding_box,omitempty"`
	SpatialSource string       `json:"spatial_source"`

	ManualReviewRequired bool     `json:"manual_review_required"`
	ComplianceFlags      []string `json:"compliance_flags,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// ManualReviewEntry queues an entity for human confirmation.
type ManualReviewEntry struct {
	ID          string             `json:"id"`
	SessionID   string             `json:"processing_session_id"`
	ShellFileID string             `json:"shell_file_id"`
	PatientID   string             `json:"patient_id"`
	EntityID    string             `json:"entity_id"`
	Reason      string             `json:"reason"`
	Priority    ProcessingPriority `json:"priority"`
	CreatedAt   time.Time          `json:"created_at"`
}

// ConfidenceScore is the per-entity confidence breakdown persisted for
// threshold tuning and drift analysis.
type ConfidenceScore struct {
	SessionID                string  `json:"processing_session_id"`
	EntityID                 string  `json:"entity_id"`
	DetectionConfidence      float64 `json:"detection_confidence"`
	ClassificationConfidence float64 `json:"classification_confidence"`
	CrossValidationScore     float64 `json:"cross_validation_score"`
	OCRAgreement             float64 `json:"ai_ocr_agreement"`
}

// EntityMetrics aggregates a session's entity counts and quality signals.
type EntityMetrics struct {
	SessionID          string  `json:"processing_session_id"`
	ShellFileID        string  `json:"shell_file_id"`
	TotalEntities      int     `json:"total_entities"`
	ClinicalCount      int     `json:"clinical_event_count"`
	ContextCount       int     `json:"healthcare_context_count"`
	StructureCount     int     `json:"document_structure_count"`
	AvgConfidence      float64 `json:"avg_confidence"`
	CoveragePercentage float64 `json:"coverage_percentage"`
	ReviewFlaggedCount int     `json:"review_flagged_count"`
}

// ProfileClassificationAudit records the document-level profile-safety
// assessment alongside the session.
type ProfileClassificationAudit struct {
	SessionID                    string   `json:"processing_session_id"`
	ShellFileID                  string   `json:"shell_file_id"`
	PatientID                    string   `json:"patient_id"`
	IdentityConfidence           float64  `json:"patient_identity_confidence"`
	AgeAppropriatenessScore      float64  `json:"age_appropriateness_score"`
	SafetyFlags                  []string `json:"safety_flags,omitempty"`
	RequiresIdentityVerification bool     `json:"requires_identity_verification"`
}

// ShellFileUpdate carries the document status fields updated when Pass 1
// finishes.
type ShellFileUpdate struct {
	ShellFileID       string        `json:"shell_file_id"`
	Status            SessionStatus `json:"status"`
	EntityCount       int           `json:"entity_count"`
	OverallConfidence float64       `json:"overall_confidence"`
	ProcessedAt       time.Time     `json:"processed_at"`
}
