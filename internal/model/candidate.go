package model

import "time"

// CatalogTier distinguishes the two code catalogs.
type CatalogTier string

const (
	TierUniversal CatalogTier = "universal"
	TierRegional  CatalogTier = "regional"
)

// CodeCandidate is one similarity-search hit for an entity against a code
// catalog. Candidates are owned by a single entity's resolution result and
// never shared.
type CodeCandidate struct {
	System     string      `json:"code_system"` // e.g. "rxnorm", "snomed", "loinc", "pbs", "mbs"
	Code       string      `json:"code_value"`
	Display    string      `json:"display_name"`
	Similarity float64     `json:"similarity"` // 0..1
	Tier       CatalogTier `json:"catalog_tier"`

	CountryCode         string `json:"country_code,omitempty"`
	GroupingCode        string `json:"grouping_code,omitempty"`
	ClinicalSpecificity string `json:"clinical_specificity,omitempty"`
}

// CandidateResult is the resolved candidate set for one entity, persisted as
// a code-candidate audit row.
type CandidateResult struct {
	EntityID    string          `json:"entity_id"`
	SessionID   string          `json:"processing_session_id"`
	Subtype     EntitySubtype   `json:"entity_subtype"`
	SearchText  string          `json:"search_text"`
	Candidates  []CodeCandidate `json:"candidates"`
	FailureNote string          `json:"failure_note,omitempty"`
	ResolvedAt  time.Time       `json:"resolved_at"`
}
