// Package translate converts entities from the completion response into
// persisted audit records. Translation is where normalization
// happens: category strings from the model are canonicalized, free text is
// capped, and review flags are recomputed locally rather than trusted.
package translate

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/xavierjflanagan/Guardian-sub001/internal/model"
	"github.com/xavierjflanagan/Guardian-sub001/internal/schema"
)

// Options tune the translator's normalization thresholds.
type Options struct {
	// MaxTextLen caps free-text fields, ellipsis-truncated.
	MaxTextLen int
	// ReviewConfidenceThreshold flags entities whose classification
	// confidence falls below it.
	ReviewConfidenceThreshold float64
	// ReviewAgreementThreshold flags entities whose AI/OCR agreement
	// falls below it.
	ReviewAgreementThreshold float64
}

// DefaultOptions mirrors the production configuration defaults.
func DefaultOptions() Options {
	return Options{
		MaxTextLen:                120,
		ReviewConfidenceThreshold: 0.70,
		ReviewAgreementThreshold:  0.80,
	}
}

// Translator builds audit records from model entities.
type Translator struct {
	opts Options
	now  func() time.Time
}

// New creates a Translator. Zero-valued options fall back to defaults.
func New(opts Options) *Translator {
	def := DefaultOptions()
	if opts.MaxTextLen <= 0 {
		opts.MaxTextLen = def.MaxTextLen
	}
	if opts.ReviewConfidenceThreshold <= 0 {
		opts.ReviewConfidenceThreshold = def.ReviewConfidenceThreshold
	}
	if opts.ReviewAgreementThreshold <= 0 {
		opts.ReviewAgreementThreshold = def.ReviewAgreementThreshold
	}
	return &Translator{opts: opts, now: time.Now}
}

// Translate converts every entity in resp into an audit record linked to
// session. Entity order is preserved. An unrecognized category or subtype
// is an error for the whole translation; the response contract failed and
// nothing should be persisted optimistically.
func (t *Translator) Translate(session model.SessionMetadata, resp *model.AIResponse) ([]model.EntityAuditRecord, error) {
	records := make([]model.EntityAuditRecord, 0, len(resp.Entities))
	for i, ent := range resp.Entities {
		rec, err := t.translateOne(session, ent)
		if err != nil {
			return nil, eris.Wrapf(err, "translate: entity %d (%s)", i, ent.EntityID)
		}
		records = append(records, rec)
	}
	return records, nil
}

func (t *Translator) translateOne(session model.SessionMetadata, ent model.AIEntity) (model.EntityAuditRecord, error) {
	category, err := NormalizeCategory(ent.Classification.Category)
	if err != nil {
		return model.EntityAuditRecord{}, err
	}

	subtype := model.EntitySubtype(strings.ToLower(strings.TrimSpace(ent.Classification.Subtype)))
	if got := model.CategoryOf(subtype); got == "" {
		return model.EntityAuditRecord{}, eris.Errorf("translate: unknown subtype %q", ent.Classification.Subtype)
	} else if got != category {
		return model.EntityAuditRecord{}, eris.Errorf("translate: subtype %q does not belong to category %q", subtype, category)
	}

	mapping, err := schema.Lookup(subtype)
	if err != nil {
		return model.EntityAuditRecord{}, err
	}

	pass2 := model.Pass2Pending
	if !mapping.RequiresEnrichment() {
		pass2 = model.Pass2Skipped
	}

	crossVal := CrossValidationScore(ent.Quality, ent.OCRCrossReference)

	// The model's own review flag and our threshold checks are OR'd; a
	// confident model can still be overridden by low local agreement.
	review := ent.Quality.RequiresManualReview ||
		ent.Classification.Confidence < t.opts.ReviewConfidenceThreshold ||
		(ent.OCRCrossReference.OCRText != "" && ent.OCRCrossReference.AIOCRAgreement < t.opts.ReviewAgreementThreshold)

	return model.EntityAuditRecord{
		ID:          uuid.NewString(),
		SessionID:   session.SessionID,
		ShellFileID: session.ShellFileID,
		PatientID:   session.PatientID,

		EntityID:     ent.EntityID,
		OriginalText: Truncate(ent.OriginalText, t.opts.MaxTextLen),
		Category:     category,
		Subtype:      subtype,

		RequiresSchemas:    mapping.Schemas,
		ProcessingPriority: mapping.Priority,
		Complexity:         mapping.Complexity,
		Pass2Status:        pass2,

		DetectionConfidence:      ent.Quality.DetectionConfidence,
		ClassificationConfidence: ent.Classification.Confidence,
		CrossValidationScore:     crossVal,

		OCRText:        Truncate(ent.OCRCrossReference.OCRText, t.opts.MaxTextLen),
		OCRConfidence:  ent.OCRCrossReference.OCRConfidence,
		AIOCRAgreement: ent.OCRCrossReference.AIOCRAgreement,

		AIInterpretation:  Truncate(ent.VisualInterpretation.AIInterpretation, t.opts.MaxTextLen),
		FormattingContext: Truncate(ent.VisualInterpretation.FormattingContext, t.opts.MaxTextLen),

		PageNumber:    ent.Spatial.PageNumber,
		BoundingBox:   ent.Spatial.BoundingBox,
		SpatialSource: ent.Spatial.SpatialSource,

		ManualReviewRequired: review,

		CreatedAt: t.now().UTC(),
	}, nil
}

// NormalizeCategory canonicalizes the model's category string to one of the
// three lowercase-singular values. The upstream model has been observed
// returning uppercase and pluralized variants; anything that does not
// normalize to a known value is an error, never a silent default.
func NormalizeCategory(raw string) (model.EntityCategory, error) {
	c := strings.ToLower(strings.TrimSpace(raw))
	c = strings.ReplaceAll(c, " ", "_")
	c = strings.ReplaceAll(c, "-", "_")
	c = strings.TrimSuffix(c, "s")

	switch c {
	case "clinical_event":
		return model.CategoryClinicalEvent, nil
	case "healthcare_context":
		return model.CategoryHealthcareContext, nil
	case "document_structure":
		return model.CategoryDocumentStructure, nil
	}
	return "", eris.Errorf("translate: unrecognized category %q", raw)
}

// CrossValidationScore picks the per-entity agreement signal: the model's
// own score when present, else the raw OCR agreement.
func CrossValidationScore(q model.AIQualityIndicators, x model.OCRCrossReference) float64 {
	if q.CrossValidationScore > 0 {
		return q.CrossValidationScore
	}
	return x.AIOCRAgreement
}

// Truncate caps s at max runes, appending an ellipsis marker when cut. A
// defense-in-depth cap independent of prompt instructions.
func Truncate(s string, max int) string {
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}

// Chunk splits records into fixed-size groups for staged insertion. The
// last chunk may be short; size <= 0 yields a single chunk.
func Chunk(records []model.EntityAuditRecord, size int) [][]model.EntityAuditRecord {
	if len(records) == 0 {
		return nil
	}
	if size <= 0 {
		return [][]model.EntityAuditRecord{records}
	}
	chunks := make([][]model.EntityAuditRecord, 0, (len(records)+size-1)/size)
	for start := 0; start < len(records); start += size {
		end := start + size
		if end > len(records) {
			end = len(records)
		}
		chunks = append(chunks, records[start:end])
	}
	return chunks
}
