package translate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xavierjflanagan/Guardian-sub001/internal/model"
)

func testSession() model.SessionMetadata {
	return model.SessionMetadata{
		SessionID:   "sess-1",
		ShellFileID: "shell-1",
		PatientID:   "patient-1",
		Model:       "claude-sonnet-4",
	}
}

func medicationEntity() model.AIEntity {
	return model.AIEntity{
		EntityID:     "ent_001",
		OriginalText: "Lisinopril 10mg",
		Classification: model.AIClassification{
			Category:   "clinical_event",
			Subtype:    "medication",
			Confidence: 0.95,
		},
		VisualInterpretation: model.VisualInterpretation{
			AISees:           "Lisinopril 10mg",
			AIInterpretation: "Lisinopril 10 milligrams, ACE inhibitor",
			AIConfidence:     0.95,
		},
		OCRCrossReference: model.OCRCrossReference{
			OCRText:        "Lisinopril 10mg",
			OCRConfidence:  0.98,
			AIOCRAgreement: 0.99,
		},
		Spatial: model.SpatialInfo{PageNumber: 1, SpatialSource: "ocr_exact"},
		Quality: model.AIQualityIndicators{
			DetectionConfidence:      0.96,
			ClassificationConfidence: 0.95,
			CrossValidationScore:     0.99,
		},
	}
}

func TestTranslateMedication(t *testing.T) {
	tr := New(DefaultOptions())
	resp := &model.AIResponse{Entities: []model.AIEntity{medicationEntity()}}

	records, err := tr.Translate(testSession(), resp)
	require.NoError(t, err)
	require.Len(t, records, 1)

	rec := records[0]
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, "sess-1", rec.SessionID)
	assert.Equal(t, model.CategoryClinicalEvent, rec.Category)
	assert.Equal(t, model.SubtypeMedication, rec.Subtype)
	assert.Equal(t, model.PriorityHighest, rec.ProcessingPriority)
	assert.Equal(t, model.Pass2Pending, rec.Pass2Status)
	assert.Contains(t, rec.RequiresSchemas, "patient_clinical_events")
	assert.Contains(t, rec.RequiresSchemas, "patient_medications")
	assert.False(t, rec.ManualReviewRequired)
	assert.Empty(t, ValidateRecord(rec))
}

func TestTranslateNormalizesCategoryVariants(t *testing.T) {
	tr := New(DefaultOptions())
	for _, raw := range []string{"CLINICAL_EVENTS", "Clinical Event", "clinical-events"} {
		ent := medicationEntity()
		ent.Classification.Category = raw
		records, err := tr.Translate(testSession(), &model.AIResponse{Entities: []model.AIEntity{ent}})
		require.NoError(t, err, raw)
		assert.Equal(t, model.CategoryClinicalEvent, records[0].Category, raw)
	}
}

func TestTranslateRejectsUnknownCategory(t *testing.T) {
	tr := New(DefaultOptions())
	ent := medicationEntity()
	ent.Classification.Category = "billing_stuff"
	_, err := tr.Translate(testSession(), &model.AIResponse{Entities: []model.AIEntity{ent}})
	assert.Error(t, err)
}

func TestTranslateRejectsCategorySubtypeMismatch(t *testing.T) {
	tr := New(DefaultOptions())
	ent := medicationEntity()
	ent.Classification.Category = "document_structure"
	_, err := tr.Translate(testSession(), &model.AIResponse{Entities: []model.AIEntity{ent}})
	assert.Error(t, err)
}

func TestTranslateStructureEntitySkipsPass2(t *testing.T) {
	tr := New(DefaultOptions())
	ent := medicationEntity()
	ent.Classification.Category = "document_structure"
	ent.Classification.Subtype = "header"
	ent.OriginalText = "City Medical Centre"

	records, err := tr.Translate(testSession(), &model.AIResponse{Entities: []model.AIEntity{ent}})
	require.NoError(t, err)
	rec := records[0]
	assert.Equal(t, model.Pass2Skipped, rec.Pass2Status)
	assert.Equal(t, model.PriorityLoggingOnly, rec.ProcessingPriority)
	assert.NotNil(t, rec.RequiresSchemas)
	assert.Empty(t, rec.RequiresSchemas)
}

func TestTranslateFlagsLowConfidenceForReview(t *testing.T) {
	tr := New(DefaultOptions())
	ent := medicationEntity()
	ent.Classification.Confidence = 0.55

	records, err := tr.Translate(testSession(), &model.AIResponse{Entities: []model.AIEntity{ent}})
	require.NoError(t, err)
	assert.True(t, records[0].ManualReviewRequired)
}

func TestTranslateFlagsLowAgreementForReview(t *testing.T) {
	tr := New(DefaultOptions())
	ent := medicationEntity()
	ent.OCRCrossReference.AIOCRAgreement = 0.40

	records, err := tr.Translate(testSession(), &model.AIResponse{Entities: []model.AIEntity{ent}})
	require.NoError(t, err)
	assert.True(t, records[0].ManualReviewRequired)
}

func TestTranslateHonorsModelReviewFlag(t *testing.T) {
	tr := New(DefaultOptions())
	ent := medicationEntity()
	ent.Quality.RequiresManualReview = true

	records, err := tr.Translate(testSession(), &model.AIResponse{Entities: []model.AIEntity{ent}})
	require.NoError(t, err)
	assert.True(t, records[0].ManualReviewRequired)
}

func TestTranslatePreservesEntityOrder(t *testing.T) {
	tr := New(DefaultOptions())
	first := medicationEntity()
	second := medicationEntity()
	second.EntityID = "ent_002"
	second.Classification.Subtype = "allergy"
	second.OriginalText = "Penicillin - severe"

	records, err := tr.Translate(testSession(), &model.AIResponse{Entities: []model.AIEntity{first, second}})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "ent_001", records[0].EntityID)
	assert.Equal(t, "ent_002", records[1].EntityID)
	assert.Equal(t, model.PriorityHighest, records[1].ProcessingPriority)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 120))
	long := Truncate(strings.Repeat("x", 200), 120)
	assert.Len(t, []rune(long), 120)
	assert.Equal(t, "...", long[len(long)-3:])
	assert.Equal(t, "ab", Truncate("abcdef", 2))
}

func TestChunk(t *testing.T) {
	records := make([]model.EntityAuditRecord, 7)
	for i := range records {
		records[i].EntityID = string(rune('a' + i))
	}
	chunks := Chunk(records, 3)
	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0], 3)
	assert.Len(t, chunks[1], 3)
	assert.Len(t, chunks[2], 1)

	assert.Nil(t, Chunk(nil, 3))
	assert.Len(t, Chunk(records, 0), 1)
}

func TestValidateRecordsReportsMissingFields(t *testing.T) {
	bad := model.EntityAuditRecord{EntityID: "ent_bad"}
	got := ValidateRecords([]model.EntityAuditRecord{bad})
	require.Contains(t, got, "ent_bad")
	assert.Contains(t, got["ent_bad"], "processing_session_id")
	assert.Contains(t, got["ent_bad"], "original_text")
}
