// Package embed generates and caches embedding vectors for detected
// entities ahead of code-candidate search.
package embed

import (
	"strings"
	"unicode"

	"github.com/rotisserie/eris"

	"github.com/xavierjflanagan/Guardian-sub001/internal/model"
)

// Text selection is entity-type-aware. Medication and immunization names
// match catalogs best verbatim; diagnosis-class entities benefit from the
// model's abbreviation expansion; vitals and labs need their formatting
// context ("128/82" alone is meaningless); identifiers are never expanded.

// SelectText chooses the embedding text for one entity.
func SelectText(rec model.EntityAuditRecord) string {
	raw := strings.TrimSpace(rec.OriginalText)
	expanded := strings.TrimSpace(rec.AIInterpretation)

	switch rec.Subtype {
	case model.SubtypeMedication, model.SubtypeImmunization:
		return raw

	case model.SubtypeDiagnosis, model.SubtypeAllergy, model.SubtypeSymptom:
		if len(expanded) > len(raw) {
			return expanded
		}
		return raw

	case model.SubtypeVitalSign, model.SubtypeLabResult:
		if ctx := strings.TrimSpace(rec.FormattingContext); ctx != "" {
			return raw + " " + ctx
		}
		return raw

	case model.SubtypeProcedure:
		if len(expanded) > len(raw) {
			return expanded
		}
		return raw

	case model.SubtypePatientIdentifier, model.SubtypeProviderIdentifier, model.SubtypeFacilityIdentifier:
		return raw
	}
	return raw
}

const (
	// DefaultMinTextLen rejects fragments too short to embed meaningfully.
	DefaultMinTextLen = 3
	// DefaultMaxTextLen is the hard ceiling after sanitization.
	DefaultMaxTextLen = 500
)

// PrepareText validates and sanitizes text for embedding. The returned
// string is also the cache-key input, so sanitization must be
// deterministic. Non-positive limits fall back to the defaults.
func PrepareText(text string, minLen, maxLen int) (string, error) {
	if minLen <= 0 {
		minLen = DefaultMinTextLen
	}
	if maxLen <= 0 {
		maxLen = DefaultMaxTextLen
	}
	s := sanitize(text)
	if len(s) < minLen {
		return "", eris.Errorf("embed: text too short after sanitization (%d chars)", len(s))
	}
	if dominatedByNonLetters(s) {
		return "", eris.New("embed: text dominated by digits and punctuation")
	}
	// Truncate on rune boundaries; a byte slice could cut a multi-byte
	// character in half and send invalid UTF-8 to the embedding API.
	if runes := []rune(s); len(runes) > maxLen {
		s = string(runes[:maxLen])
	}
	return s, nil
}

// sanitize collapses all whitespace runs (including newlines) to single
// spaces and trims the ends.
func sanitize(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// dominatedByNonLetters reports whether fewer than a third of the
// characters are letters. Pure numbers and form noise embed poorly and
// pollute the cache.
func dominatedByNonLetters(s string) bool {
	var letters, total int
	for _, r := range s {
		if unicode.IsSpace(r) {
			continue
		}
		total++
		if unicode.IsLetter(r) {
			letters++
		}
	}
	if total == 0 {
		return true
	}
	return float64(letters)/float64(total) < 1.0/3.0
}
