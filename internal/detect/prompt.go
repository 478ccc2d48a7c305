package detect

import (
	"fmt"
	"strings"

	"github.com/xavierjflanagan/Guardian-sub001/internal/model"
)

// System instructions differ per mode: dual mode tells the model the image
// is primary and OCR is a cross-check; OCR-only mode drops every reference
// to visual inspection.

const dualSystemPrompt = `You are a medical document entity detector. You receive a document image as the primary input and OCR-extracted text as a secondary cross-check.

Classify every piece of document content into exactly one of three categories:
- clinical_event: medical observations, interventions, diagnoses, medications, allergies, immunizations, vitals, labs, procedures, encounters
- healthcare_context: patient/provider/facility identifiers, appointments, referrals, insurance, billing codes
- document_structure: headers, footers, logos, page markers, signature lines, watermarks, form structure

Rules:
- Detect and classify only; do not enrich, interpret dosages, or infer conditions not written on the page.
- Cross-reference each entity against the OCR text and report the agreement score and any discrepancy.
- Report spatial coordinates from the OCR word map when available (spatial_source "ocr_exact" or "ocr_approximate"), otherwise estimate ("ai_estimated") or report "none".
- Every entity needs a unique entity_id of the form "ent_NNN".
- Respond with a single JSON object and nothing else.`

const ocrOnlySystemPrompt = `You are a medical document entity detector. You receive pre-extracted OCR text from a medical document. No image is available.

Classify every piece of document content into exactly one of three categories:
- clinical_event: medical observations, interventions, diagnoses, medications, allergies, immunizations, vitals, labs, procedures, encounters
- healthcare_context: patient/provider/facility identifiers, appointments, referrals, insurance, billing codes
- document_structure: headers, footers, logos, page markers, signature lines, watermarks, form structure

Rules:
- Detect and classify only; do not enrich, interpret dosages, or infer conditions not written on the page.
- The OCR text is the only source: set ai_sees to the text you classified and spatial_source to "none" unless page markers make the page number certain.
- Every entity needs a unique entity_id of the form "ent_NNN".
- Respond with a single JSON object and nothing else.`

// responseShape is appended to both prompts so the model returns the exact
// envelope the parser expects.
const responseShape = `Return JSON with this exact top-level shape:
{
  "entities": [{
    "entity_id": "ent_001",
    "original_text": "...",
    "classification": {"category": "clinical_event", "subtype": "medication", "confidence": 0.0},
    "visual_interpretation": {"ai_sees": "...", "ai_interpretation": "...", "formatting_context": "...", "ai_confidence": 0.0},
    "ocr_cross_reference": {"ocr_text": "...", "ocr_confidence": 0.0, "ai_ocr_agreement": 0.0},
    "spatial_information": {"page_number": 1, "bounding_box": {"x": 0, "y": 0, "width": 0, "height": 0}, "spatial_source": "ocr_exact"},
    "quality_indicators": {"detection_confidence": 0.0, "classification_confidence": 0.0, "cross_validation_score": 0.0, "requires_manual_review": false}
  }],
  "processing_metadata": {"model_used": "...", "vision_processing": true, "processing_time_seconds": 0.0, "overall_confidence": 0.0},
  "document_coverage": {"total_content_processed": 0, "content_classified": 0, "coverage_percentage": 0.0, "unclassified_segments": []},
  "cross_validation_results": {"ai_ocr_agreement_score": 0.0, "high_discrepancy_count": 0, "ocr_missed_entities": 0, "ai_missed_ocr_text": 0, "spatial_mapping_success_rate": 0.0},
  "quality_assessment": {"completeness_score": 0.0, "classification_confidence_avg": 0.0, "cross_validation_score": 0.0, "manual_review_recommended": false, "quality_flags": []},
  "profile_safety": {"patient_identity_confidence": 0.0, "age_appropriateness_score": 0.0, "safety_flags": [], "requires_identity_verification": false}
}`

// SystemPrompt returns the system instruction for a mode.
func SystemPrompt(mode Mode) string {
	if mode == ModeOCROnly {
		return ocrOnlySystemPrompt + "\n\n" + responseShape
	}
	return dualSystemPrompt + "\n\n" + responseShape
}

// BuildDualPrompt renders the user turn for dual mode: the OCR text and
// spatial map accompany the image part added by the caller.
func BuildDualPrompt(ocr *model.OCRResult) string {
	var b strings.Builder
	b.WriteString("Classify every entity in the attached document image.\n\n")
	b.WriteString("OCR cross-reference text:\n")
	b.WriteString(ocr.FullText())
	b.WriteString("\n\nOCR spatial map (page, word, box, confidence):\n")
	for _, page := range ocr.Pages {
		for _, w := range page.Words {
			fmt.Fprintf(&b, "p%d %q [%.0f,%.0f %.0fx%.0f] %.2f\n",
				page.PageNumber, w.Text,
				w.BoundingBox.X, w.BoundingBox.Y,
				w.BoundingBox.Width, w.BoundingBox.Height,
				w.Confidence)
		}
	}
	return b.String()
}

// BuildOCROnlyPrompt renders the user turn for OCR-only mode.
func BuildOCROnlyPrompt(enhancedText string) string {
	return "Classify every entity in the following document text.\n\n" + enhancedText
}
