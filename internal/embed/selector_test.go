package embed

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xavierjflanagan/Guardian-sub001/internal/model"
)

func rec(subtype model.EntitySubtype, raw, interp, formatting string) model.EntityAuditRecord {
	return model.EntityAuditRecord{
		Subtype:           subtype,
		OriginalText:      raw,
		AIInterpretation:  interp,
		FormattingContext: formatting,
	}
}

func TestSelectTextMedicationUsesRawText(t *testing.T) {
	got := SelectText(rec(model.SubtypeMedication, "Lisinopril 10mg", "Lisinopril 10 milligrams, an ACE inhibitor", ""))
	assert.Equal(t, "Lisinopril 10mg", got)
}

func TestSelectTextDiagnosisPrefersLongerExpansion(t *testing.T) {
	got := SelectText(rec(model.SubtypeDiagnosis, "HTN", "Hypertension (high blood pressure)", ""))
	assert.Equal(t, "Hypertension (high blood pressure)", got)

	// Falls back to raw when the expansion is not strictly longer.
	got = SelectText(rec(model.SubtypeDiagnosis, "Type 2 diabetes mellitus", "T2DM", ""))
	assert.Equal(t, "Type 2 diabetes mellitus", got)
}

func TestSelectTextVitalSignConcatenatesContext(t *testing.T) {
	got := SelectText(rec(model.SubtypeVitalSign, "128/82", "", "blood pressure reading"))
	assert.Equal(t, "128/82 blood pressure reading", got)

	got = SelectText(rec(model.SubtypeVitalSign, "128/82", "", ""))
	assert.Equal(t, "128/82", got)
}

func TestSelectTextProcedurePrefersLongerExpansion(t *testing.T) {
	got := SelectText(rec(model.SubtypeProcedure, "Appy", "Appendectomy, laparoscopic", ""))
	assert.Equal(t, "Appendectomy, laparoscopic", got)
}

func TestSelectTextIdentifierAlwaysRaw(t *testing.T) {
	got := SelectText(rec(model.SubtypePatientIdentifier, "MRN 4471923", "Medical record number 4471923 for the patient", ""))
	assert.Equal(t, "MRN 4471923", got)
}

func TestPrepareTextSanitizes(t *testing.T) {
	got, err := PrepareText("  Lisinopril\n\n 10mg \t daily ", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, "Lisinopril 10mg daily", got)
}

func TestPrepareTextRejectsShort(t *testing.T) {
	_, err := PrepareText("  a ", 0, 0)
	assert.Error(t, err)
}

func TestPrepareTextRejectsDigitDominated(t *testing.T) {
	_, err := PrepareText("128/82 12.5 99 4471923", 0, 0)
	assert.Error(t, err)
}

func TestPrepareTextTruncatesAtCeiling(t *testing.T) {
	got, err := PrepareText(strings.Repeat("word ", 200), 0, 100)
	require.NoError(t, err)
	assert.Len(t, got, 100)
}

func TestPrepareTextTruncatesOnRuneBoundary(t *testing.T) {
	got, err := PrepareText("dosage "+strings.Repeat("µg ", 100), 0, 20)
	require.NoError(t, err)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, 20, utf8.RuneCountInString(got))
}
