package model

import "time"

// ProcessingResult is the outcome of one Pass 1 run over one document.
// Failures are carried as data, never thrown past the pipeline boundary.
type ProcessingResult struct {
	Success          bool                `json:"success"`
	Error            string              `json:"error,omitempty"`
	RetryRecommended bool                `json:"retry_recommended,omitempty"`
	Response         *AIResponse         `json:"response,omitempty"`
	Records          []EntityAuditRecord `json:"records,omitempty"`
	Usage            TokenUsage          `json:"usage"`
	CostEstimateUSD  float64             `json:"cost_estimate_usd"`
	Duration         time.Duration       `json:"duration"`
}

// DatabasePayloads bundles the seven outputs the record builder assembles
// from one successful ProcessingResult.
type DatabasePayloads struct {
	Session          ProcessingSession          `json:"session"`
	EntityRecords    []EntityAuditRecord        `json:"entity_records"`
	ShellFileUpdate  ShellFileUpdate            `json:"shell_file_update"`
	ProfileAudit     ProfileClassificationAudit `json:"profile_audit"`
	Metrics          EntityMetrics              `json:"metrics"`
	ConfidenceScores []ConfidenceScore          `json:"confidence_scores"`
	ReviewEntries    []ManualReviewEntry        `json:"review_entries"`
}
