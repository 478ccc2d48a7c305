package model

// CatalogEntry is one code-catalog row as exported for bulk import. The
// embedding must be precomputed with the same model the resolver queries
// with.
type CatalogEntry struct {
	CodeSystem  string    `json:"code_system"`
	CodeValue   string    `json:"code_value"`
	DisplayName string    `json:"display_name"`
	EntityType  string    `json:"entity_type,omitempty"`
	Active      bool      `json:"active"`
	Embedding   []float32 `json:"embedding"`

	// Regional-catalog fields; ignored for universal entries.
	CountryCode         string `json:"country_code,omitempty"`
	GroupingCode        string `json:"grouping_code,omitempty"`
	ClinicalSpecificity string `json:"clinical_specificity,omitempty"`
}
