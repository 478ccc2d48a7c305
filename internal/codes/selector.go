package codes

import (
	"math"
	"sort"

	"github.com/xavierjflanagan/Guardian-sub001/internal/model"
)

// systemPreferences biases candidate ordering per entity type. Catalog
// similarity is the primary rank; when two candidates land in the same
// similarity band, the preferred code system for that entity type wins. Medication-class
// entities resolve to medication vocabularies before diagnosis ones, and
// vice versa.
var systemPreferences = map[model.EntitySubtype][]string{
	model.SubtypeMedication:   {"rxnorm", "amt", "pbs", "atc"},
	model.SubtypeImmunization: {"amt", "rxnorm", "air"},
	model.SubtypeDiagnosis:    {"snomed", "icd10", "icd10am"},
	model.SubtypeAllergy:      {"snomed", "rxnorm"},
	model.SubtypeSymptom:      {"snomed", "icd10"},
	model.SubtypeLabResult:    {"loinc", "snomed"},
	model.SubtypeVitalSign:    {"loinc", "snomed"},
	model.SubtypeProcedure:    {"snomed", "mbs", "icd10am"},
}

const tieEpsilon = 0.02

// Select merges both catalog sides into one ranked, deduped, bounded
// candidate list. Deduplication key is (code system, code value); the
// higher-similarity instance wins when a code appears in both tiers.
func Select(universal, regional []model.CodeCandidate, subtype model.EntitySubtype, maxCandidates int) []model.CodeCandidate {
	if maxCandidates <= 0 {
		maxCandidates = 10
	}

	type key struct{ system, code string }
	merged := make(map[key]model.CodeCandidate, len(universal)+len(regional))
	for _, c := range append(append([]model.CodeCandidate{}, universal...), regional...) {
		k := key{c.System, c.Code}
		if existing, ok := merged[k]; !ok || c.Similarity > existing.Similarity {
			merged[k] = c
		}
	}

	out := make([]model.CodeCandidate, 0, len(merged))
	for _, c := range merged {
		out = append(out, c)
	}

	// Similarity is bucketed into epsilon-wide bands so near-ties compare
	// equal transitively; pairwise epsilon checks would let a chain of
	// near-ties link candidates whose similarities differ by more than
	// epsilon.
	prefs := systemPreferences[subtype]
	band := func(sim float64) int { return int(math.Round(sim / tieEpsilon)) }
	sort.SliceStable(out, func(i, j int) bool {
		bi, bj := band(out[i].Similarity), band(out[j].Similarity)
		if bi != bj {
			return bi > bj
		}
		pi, pj := prefRank(prefs, out[i].System), prefRank(prefs, out[j].System)
		if pi != pj {
			return pi < pj
		}
		return out[i].Similarity > out[j].Similarity
	})

	if len(out) > maxCandidates {
		out = out[:maxCandidates]
	}
	return out
}

// prefRank returns the index of system in prefs, or len(prefs) when the
// system is not preferred for this entity type.
func prefRank(prefs []string, system string) int {
	for i, p := range prefs {
		if p == system {
			return i
		}
	}
	return len(prefs)
}
