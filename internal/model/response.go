package model

// AIResponse is the strict, fully-typed form of the Pass 1 completion
// response. Any JSON that does not decode into this shape (or fails the
// top-level checks in detect.ParseResponse) is a contract error, never
// accessed optimistically.
type AIResponse struct {
	Entities           []AIEntity         `json:"entities"`
	ProcessingMetadata ProcessingMetadata `json:"processing_metadata"`
	DocumentCoverage   DocumentCoverage   `json:"document_coverage"`
	CrossValidation    CrossValidation    `json:"cross_validation_results"`
	QualityAssessment  QualityAssessment  `json:"quality_assessment"`
	ProfileSafety      ProfileSafety      `json:"profile_safety"`
}

// AIEntity is one entity as returned by the model.
type AIEntity struct {
	EntityID             string               `json:"entity_id"`
	OriginalText         string               `json:"original_text"`
	Classification       AIClassification     `json:"classification"`
	VisualInterpretation VisualInterpretation `json:"visual_interpretation"`
	OCRCrossReference    OCRCrossReference    `json:"ocr_cross_reference"`
	Spatial              SpatialInfo          `json:"spatial_information"`
	Quality              AIQualityIndicators  `json:"quality_indicators"`
}

// AIClassification holds the model's category/subtype decision.
type AIClassification struct {
	Category   string  `json:"category"`
	Subtype    string  `json:"subtype"`
	Confidence float64 `json:"confidence"`
}

// VisualInterpretation is what the model read from the image (or enhanced
// OCR text in OCR-only mode).
type VisualInterpretation struct {
	AISees            string  `json:"ai_sees"`
	AIInterpretation  string  `json:"ai_interpretation,omitempty"`
	FormattingContext string  `json:"formatting_context,omitempty"`
	AIConfidence      float64 `json:"ai_confidence"`
}

// OCRCrossReference compares the model's reading against the OCR text.
type OCRCrossReference struct {
	OCRText          string  `json:"ocr_text,omitempty"`
	OCRConfidence    float64 `json:"ocr_confidence"`
	AIOCRAgreement   float64 `json:"ai_ocr_agreement"`
	DiscrepancyType  string  `json:"discrepancy_type,omitempty"`
	DiscrepancyNotes string  `json:"discrepancy_notes,omitempty"`
}

// AIQualityIndicators are the model's own confidence signals per entity.
type AIQualityIndicators struct {
	DetectionConfidence      float64 `json:"detection_confidence"`
	ClassificationConfidence float64 `json:"classification_confidence"`
	CrossValidationScore     float64 `json:"cross_validation_score"`
	RequiresManualReview     bool    `json:"requires_manual_review"`
}

// ProcessingMetadata describes the completion run itself.
type ProcessingMetadata struct {
	ModelUsed             string  `json:"model_used"`
	VisionProcessing      bool    `json:"vision_processing"`
	ProcessingTimeSeconds float64 `json:"processing_time_seconds"`
	OverallConfidence     float64 `json:"overall_confidence"`
}

// DocumentCoverage reports how much of the document was classified.
type DocumentCoverage struct {
	TotalContentProcessed int      `json:"total_content_processed"`
	ContentClassified     int      `json:"content_classified"`
	CoveragePercentage    float64  `json:"coverage_percentage"`
	UnclassifiedSegments  []string `json:"unclassified_segments,omitempty"`
}

// CrossValidation aggregates AI/OCR agreement across the document.
type CrossValidation struct {
	AIOCRAgreementScore       float64 `json:"ai_ocr_agreement_score"`
	HighDiscrepancyCount      int     `json:"high_discrepancy_count"`
	OCRMissedEntities         int     `json:"ocr_missed_entities"`
	AIMissedOCRText           int     `json:"ai_missed_ocr_text"`
	SpatialMappingSuccessRate float64 `json:"spatial_mapping_success_rate"`
}

// QualityAssessment is the model's document-level quality summary.
type QualityAssessment struct {
	CompletenessScore           float64  `json:"completeness_score"`
	ClassificationConfidenceAvg float64  `json:"classification_confidence_avg"`
	CrossValidationScore        float64  `json:"cross_validation_score"`
	ManualReviewRecommended     bool     `json:"manual_review_recommended"`
	QualityFlags                []string `json:"quality_flags,omitempty"`
}

// ProfileSafety guards against cross-profile contamination (wrong patient,
// age-inappropriate data).
type ProfileSafety struct {
	PatientIdentityConfidence    float64  `json:"patient_identity_confidence"`
	AgeAppropriatenessScore      float64  `json:"age_appropriateness_score"`
	SafetyFlags                  []string `json:"safety_flags,omitempty"`
	RequiresIdentityVerification bool     `json:"requires_identity_verification"`
}
