// Package schema maps detected entity subtypes to the downstream tables
// that enrich them, along with a processing priority and enrichment
// complexity. The mapping is a fixed decision table; MustSelfCheck verifies
// at startup that no enum value is missing an entry.
package schema

import (
	"github.com/rotisserie/eris"

	"github.com/xavierjflanagan/Guardian-sub001/internal/model"
)

// TimelineSchema is the shared master-timeline table every clinical event
// feeds, regardless of subtype.
const TimelineSchema = "patient_clinical_events"

// Mapping is the decision-table row for one entity subtype.
type Mapping struct {
	Schemas    []string
	Priority   model.ProcessingPriority
	Complexity model.EnrichmentComplexity
}

// RequiresEnrichment reports whether entities of this subtype are queued
// for the enrichment pass. Subtypes with no schemas are logged only.
func (m Mapping) RequiresEnrichment() bool {
	return len(m.Schemas) > 0
}

var table = map[model.EntitySubtype]Mapping{
	// Safety-critical clinical events.
	model.SubtypeAllergy: {
		Schemas:    []string{TimelineSchema, "patient_allergies"},
		Priority:   model.PriorityHighest,
		Complexity: model.ComplexityComplex,
	},
	model.SubtypeMedication: {
		Schemas:    []string{TimelineSchema, "patient_medications"},
		Priority:   model.PriorityHighest,
		Complexity: model.ComplexityComplex,
	},
	model.SubtypeDiagnosis: {
		Schemas:    []string{TimelineSchema, "patient_conditions"},
		Priority:   model.PriorityHighest,
		Complexity: model.ComplexityComplex,
	},

	// Timeline-worthy clinical events.
	model.SubtypeImmunization: {
		Schemas:    []string{TimelineSchema, "patient_immunizations"},
		Priority:   model.PriorityHigh,
		Complexity: model.ComplexityModerate,
	},
	model.SubtypeVitalSign: {
		Schemas:    []string{TimelineSchema, "patient_vitals"},
		Priority:   model.PriorityHigh,
		Complexity: model.ComplexitySimple,
	},
	model.SubtypeLabResult: {
		Schemas:    []string{TimelineSchema, "patient_lab_results"},
		Priority:   model.PriorityHigh,
		Complexity: model.ComplexityModerate,
	},
	model.SubtypeProcedure: {
		Schemas:    []string{TimelineSchema, "patient_interventions"},
		Priority:   model.PriorityHigh,
		Complexity: model.ComplexityModerate,
	},
	model.SubtypeHealthcareEncounter: {
		Schemas:    []string{TimelineSchema, "healthcare_encounters"},
		Priority:   model.PriorityHigh,
		Complexity: model.ComplexityModerate,
	},

	// Supporting clinical observations.
	model.SubtypeSymptom: {
		Schemas:    []string{TimelineSchema, "patient_observations"},
		Priority:   model.PriorityMedium,
		Complexity: model.ComplexitySimple,
	},
	model.SubtypePhysicalFinding: {
		Schemas:    []string{TimelineSchema, "patient_observations"},
		Priority:   model.PriorityMedium,
		Complexity: model.ComplexitySimple,
	},
	model.SubtypeClinicalOther: {
		Schemas:    []string{TimelineSchema},
		Priority:   model.PriorityMedium,
		Complexity: model.ComplexitySimple,
	},

	// Healthcare context feeds contextual tables only, never the timeline.
	model.SubtypePatientIdentifier: {
		Schemas:    []string{"patient_demographics"},
		Priority:   model.PriorityLow,
		Complexity: model.ComplexitySimple,
	},
	model.SubtypeProviderIdentifier: {
		Schemas:    []string{"healthcare_providers"},
		Priority:   model.PriorityLow,
		Complexity: model.ComplexitySimple,
	},
	model.SubtypeFacilityIdentifier: {
		Schemas:    []string{"healthcare_providers"},
		Priority:   model.PriorityLow,
		Complexity: model.ComplexitySimple,
	},
	model.SubtypeAppointment: {
		Schemas:    []string{"appointments"},
		Priority:   model.PriorityLow,
		Complexity: model.ComplexitySimple,
	},
	model.SubtypeReferral: {
		Schemas:    []string{"referrals"},
		Priority:   model.PriorityLow,
		Complexity: model.ComplexitySimple,
	},
	model.SubtypeInsuranceInfo: {
		Schemas:    []string{"insurance_details"},
		Priority:   model.PriorityLow,
		Complexity: model.ComplexitySimple,
	},
	model.SubtypeBillingCode: {
		Schemas:    []string{"billing_records"},
		Priority:   model.PriorityLow,
		Complexity: model.ComplexitySimple,
	},
	model.SubtypeContextOther: {
		Schemas:    []string{"patient_context"},
		Priority:   model.PriorityLow,
		Complexity: model.ComplexitySimple,
	},

	// Document structure is observed and logged, never enriched.
	model.SubtypeHeader:        {Schemas: []string{}, Priority: model.PriorityLoggingOnly, Complexity: model.ComplexitySimple},
	model.SubtypeFooter:        {Schemas: []string{}, Priority: model.PriorityLoggingOnly, Complexity: model.ComplexitySimple},
	model.SubtypeLogo:          {Schemas: []string{}, Priority: model.PriorityLoggingOnly, Complexity: model.ComplexitySimple},
	model.SubtypePageMarker:    {Schemas: []string{}, Priority: model.PriorityLoggingOnly, Complexity: model.ComplexitySimple},
	model.SubtypeSignatureLine: {Schemas: []string{}, Priority: model.PriorityLoggingOnly, Complexity: model.ComplexitySimple},
	model.SubtypeWatermark:     {Schemas: []string{}, Priority: model.PriorityLoggingOnly, Complexity: model.ComplexitySimple},
	model.SubtypeFormStructure: {Schemas: []string{}, Priority: model.PriorityLoggingOnly, Complexity: model.ComplexitySimple},
}

// Lookup returns the mapping for subtype, or an error for values outside
// the closed enum.
func Lookup(subtype model.EntitySubtype) (Mapping, error) {
	m, ok := table[subtype]
	if !ok {
		return Mapping{}, eris.Errorf("schema: no mapping for subtype %q", subtype)
	}
	return m, nil
}

// SelfCheck verifies every enum subtype has a table entry and that each
// entry obeys the category rules: clinical events always include the
// timeline schema, context subtypes never do, and structure subtypes map
// to nothing.
func SelfCheck() error {
	for category, subtypes := range model.SubtypesByCategory {
		for _, st := range subtypes {
			m, ok := table[st]
			if !ok {
				return eris.Errorf("schema: subtype %q has no mapping", st)
			}
			switch category {
			case model.CategoryClinicalEvent:
				if len(m.Schemas) == 0 || m.Schemas[0] != TimelineSchema {
					return eris.Errorf("schema: clinical subtype %q missing timeline schema", st)
				}
			case model.CategoryHealthcareContext:
				for _, s := range m.Schemas {
					if s == TimelineSchema {
						return eris.Errorf("schema: context subtype %q must not map to timeline", st)
					}
				}
				if len(m.Schemas) == 0 {
					return eris.Errorf("schema: context subtype %q has no schemas", st)
				}
			case model.CategoryDocumentStructure:
				if m.Schemas == nil {
					return eris.Errorf("schema: subtype %q schema list must be non-nil", st)
				}
				if len(m.Schemas) != 0 {
					return eris.Errorf("schema: structure subtype %q must not map to schemas", st)
				}
				if m.Priority != model.PriorityLoggingOnly {
					return eris.Errorf("schema: structure subtype %q must be logging_only", st)
				}
			}
			if m.Priority == "" {
				return eris.Errorf("schema: subtype %q has no priority", st)
			}
			if m.Complexity == "" {
				return eris.Errorf("schema: subtype %q has no complexity", st)
			}
		}
	}
	return nil
}

// MustSelfCheck panics when the decision table is incomplete. Called once
// at process startup so a missing mapping fails fast rather than at
// translate time.
func MustSelfCheck() {
	if err := SelfCheck(); err != nil {
		panic(err)
	}
}
