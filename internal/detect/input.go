package detect

import (
	"strings"

	"github.com/rotisserie/eris"

	"github.com/xavierjflanagan/Guardian-sub001/internal/model"
)

// Mode selects which prompt template and payload shape a run uses.
type Mode string

const (
	// ModeDual sends the document image as the primary input with OCR text
	// as a cross-check.
	ModeDual Mode = "dual"
	// ModeOCROnly sends enhanced OCR text only, no image bytes.
	ModeOCROnly Mode = "ocr_only"
)

// DocumentInput is everything the detector needs for one document.
type DocumentInput struct {
	ShellFileID string
	PatientID   string

	// FileData and MimeType carry the rendered document image for dual
	// mode. Empty FileData selects OCR-only mode.
	FileData []byte
	MimeType string

	// OCR is the full provider output, required in dual mode.
	OCR *model.OCRResult
	// EnhancedText is the pre-formatted OCR text used in OCR-only mode.
	EnhancedText string
}

// Mode reports which operating mode the supplied inputs select.
func (in *DocumentInput) Mode() Mode {
	if len(in.FileData) > 0 {
		return ModeDual
	}
	return ModeOCROnly
}

var supportedMimeTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// ValidationError marks a rejected input. Validation failures are
// non-retryable; the caller must fix the input, not resubmit it.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "detect: invalid input: " + e.Reason
}

func invalid(reason string) error {
	return eris.Wrap(&ValidationError{Reason: reason}, "detect: validate")
}

// Validate rejects inputs the completion call could not produce a usable
// result for. ocrFloor is the minimum acceptable OCR confidence.
func Validate(in *DocumentInput, ocrFloor float64) error {
	if in == nil {
		return invalid("nil input")
	}
	if in.ShellFileID == "" {
		return invalid("missing shell file id")
	}
	if in.PatientID == "" {
		return invalid("missing patient id")
	}

	switch in.Mode() {
	case ModeDual:
		if !supportedMimeTypes[in.MimeType] {
			return invalid("unsupported mime type " + in.MimeType)
		}
		if in.OCR == nil {
			return invalid("missing ocr payload")
		}
		if strings.TrimSpace(in.OCR.FullText()) == "" {
			return invalid("empty extracted text")
		}
		if in.OCR.OverallConfidence < ocrFloor {
			return invalid("ocr confidence below floor")
		}
	case ModeOCROnly:
		if strings.TrimSpace(in.EnhancedText) == "" {
			return invalid("empty enhanced ocr text")
		}
		if in.OCR != nil && in.OCR.OverallConfidence < ocrFloor {
			return invalid("ocr confidence below floor")
		}
	}
	return nil
}

// IsValidationError reports whether err originated from input validation.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return eris.As(err, &ve)
}
