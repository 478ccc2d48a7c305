package model

// EntityCategory is the top-level classification of detected document content.
type EntityCategory string

const (
	CategoryClinicalEvent     EntityCategory = "clinical_event"
	CategoryHealthcareContext EntityCategory = "healthcare_context"
	CategoryDocumentStructure EntityCategory = "document_structure"
)

// EntitySubtype narrows a category to a concrete kind of content. The sets
// below are closed: the schema mapper's self-check fails fast if a subtype
// has no mapping entry.
type EntitySubtype string

// Clinical event subtypes.
const (
	SubtypeVitalSign           EntitySubtype = "vital_sign"
	SubtypeLabResult           EntitySubtype = "lab_result"
	SubtypePhysicalFinding     EntitySubtype = "physical_finding"
	SubtypeSymptom             EntitySubtype = "symptom"
	SubtypeMedication          EntitySubtype = "medication"
	SubtypeProcedure           EntitySubtype = "procedure"
	SubtypeImmunization        EntitySubtype = "immunization"
	SubtypeDiagnosis           EntitySubtype = "diagnosis"
	SubtypeAllergy             EntitySubtype = "allergy"
	SubtypeHealthcareEncounter EntitySubtype = "healthcare_encounter"
	SubtypeClinicalOther       EntitySubtype = "clinical_other"
)

// Healthcare context subtypes.
const (
	SubtypePatientIdentifier  EntitySubtype = "patient_identifier"
	SubtypeProviderIdentifier EntitySubtype = "provider_identifier"
	SubtypeFacilityIdentifier EntitySubtype = "facility_identifier"
	SubtypeAppointment        EntitySubtype = "appointment"
	SubtypeReferral           EntitySubtype = "referral"
	SubtypeInsuranceInfo      EntitySubtype = "insurance_information"
	SubtypeBillingCode        EntitySubtype = "billing_code"
	SubtypeContextOther       EntitySubtype = "healthcare_context_other"
)

// Document structure subtypes. These are observed and logged only; they never
// carry clinical schemas.
const (
	SubtypeHeader        EntitySubtype = "header"
	SubtypeFooter        EntitySubtype = "footer"
	SubtypeLogo          EntitySubtype = "logo"
	SubtypePageMarker    EntitySubtype = "page_marker"
	SubtypeSignatureLine EntitySubtype = "signature_line"
	SubtypeWatermark     EntitySubtype = "watermark"
	SubtypeFormStructure EntitySubtype = "form_structure"
)

// SubtypesByCategory lists every subtype in each category's closed enum.
var SubtypesByCategory = map[EntityCategory][]EntitySubtype{
	CategoryClinicalEvent: {
		SubtypeVitalSign, SubtypeLabResult, SubtypePhysicalFinding,
		SubtypeSymptom, SubtypeMedication, SubtypeProcedure,
		SubtypeImmunization, SubtypeDiagnosis, SubtypeAllergy,
		SubtypeHealthcareEncounter, SubtypeClinicalOther,
	},
	CategoryHealthcareContext: {
		SubtypePatientIdentifier, SubtypeProviderIdentifier,
		SubtypeFacilityIdentifier, SubtypeAppointment, SubtypeReferral,
		SubtypeInsuranceInfo, SubtypeBillingCode, SubtypeContextOther,
	},
	CategoryDocumentStructure: {
		SubtypeHeader, SubtypeFooter, SubtypeLogo, SubtypePageMarker,
		SubtypeSignatureLine, SubtypeWatermark, SubtypeFormStructure,
	},
}

// CategoryOf returns the category a subtype belongs to, or "" if the subtype
// is not part of any closed enum.
func CategoryOf(subtype EntitySubtype) EntityCategory {
	for cat, subs := range SubtypesByCategory {
		for _, s := range subs {
			if s == subtype {
				return cat
			}
		}
	}
	return ""
}

// ProcessingPriority ranks downstream enrichment work.
type ProcessingPriority string

const (
	PriorityHighest     ProcessingPriority = "highest"
	PriorityHigh        ProcessingPriority = "high"
	PriorityMedium      ProcessingPriority = "medium"
	PriorityLow         ProcessingPriority = "low"
	PriorityLoggingOnly ProcessingPriority = "logging_only"
)

// EnrichmentComplexity routes effort for the downstream enrichment pass.
type EnrichmentComplexity string

const (
	ComplexitySimple   EnrichmentComplexity = "simple"
	ComplexityModerate EnrichmentComplexity = "moderate"
	ComplexityComplex  EnrichmentComplexity = "complex"
)

// Pass2Status marks whether an entity is queued for enrichment.
type Pass2Status string

const (
	Pass2Pending Pass2Status = "pending"
	Pass2Skipped Pass2Status = "skipped"
)

// BoundingBox is a page-relative rectangle in pixels.
type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// SpatialInfo locates an entity on the source document.
type SpatialInfo struct {
	PageNumber    int          `json:"page_number"`
	BoundingBox   *BoundingBox `json:"bounding_box,omitempty"`
	UniqueMarker  string       `json:"unique_marker,omitempty"`
	SpatialSource string       `json:"spatial_source"` // "ocr_exact", "ocr_approximate", "ai_estimated", "none"
}
