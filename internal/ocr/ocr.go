package ocr

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/xavierjflanagan/Guardian-sub001/internal/config"
	"github.com/xavierjflanagan/Guardian-sub001/internal/model"
)

const defaultPageConfidence = 0.90

// Extractor runs OCR on a raw document and returns the structured result
// that the artifact store persists, plus the untouched provider response
// for the raw archive. Providers without a wire response return nil raw.
type Extractor interface {
	Extract(ctx context.Context, data []byte, mimeType string) (*model.OCRResult, []byte, error)
}

// NewExtractor creates an Extractor based on config.
func NewExtractor(cfg config.OCRConfig) (Extractor, error) {
	switch cfg.Provider {
	case "local":
		return NewPdfToText(cfg.PdfToTextPath, cfg.PageConfidence), nil
	case "mistral", "":
		if cfg.Key == "" {
			return nil, eris.New("ocr: mistral provider requires ocr.key")
		}
		return NewMistral(cfg), nil
	default:
		return nil, eris.Errorf("ocr: unknown provider %q", cfg.Provider)
	}
}
