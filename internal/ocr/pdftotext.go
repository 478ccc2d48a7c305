package ocr

import (
	"bytes"
	"context"
	"os/exec"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/xavierjflanagan/Guardian-sub001/internal/model"
)

// PdfToText extracts text from PDFs using the pdftotext CLI tool. It only
// handles digital PDFs; scanned images need the remote provider.
type PdfToText struct {
	binPath        string
	pageConfidence float64
}

// NewPdfToText creates a PdfToText extractor. If binPath is empty,
// "pdftotext" is used.
func NewPdfToText(binPath string, pageConfidence float64) *PdfToText {
	if binPath == "" {
		binPath = "pdftotext"
	}
	if pageConfidence <= 0 {
		pageConfidence = defaultPageConfidence
	}
	return &PdfToText{binPath: binPath, pageConfidence: pageConfidence}
}

// Extract runs pdftotext -layout over stdin and splits the output on the
// form feeds the tool emits between pages. There is no provider response
// to archive, so raw is always nil.
func (p *PdfToText) Extract(ctx context.Context, data []byte, mimeType string) (*model.OCRResult, []byte, error) {
	if mimeType != "" && mimeType != "application/pdf" {
		return nil, nil, eris.Errorf("ocr: pdftotext cannot handle %s", mimeType)
	}

	cmd := exec.CommandContext(ctx, p.binPath, "-layout", "-", "-")
	cmd.Stdin = bytes.NewReader(data)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, nil, eris.Wrapf(err, "ocr: pdftotext failed: %s", stderr.String())
	}

	pages := splitPages(stdout.String())
	if len(pages) == 0 {
		return nil, nil, eris.New("ocr: pdftotext produced no text")
	}

	result := &model.OCRResult{
		Provider:          "pdftotext",
		OverallConfidence: p.pageConfidence,
	}
	for i, text := range pages {
		result.Pages = append(result.Pages, model.OCRPage{
			PageNumber: i + 1,
			Text:       text,
		})
	}
	return result, nil, nil
}

// splitPages splits pdftotext output on form feeds, dropping a trailing
// empty page left by the final form feed.
func splitPages(out string) []string {
	parts := strings.Split(out, "\f")
	for len(parts) > 0 && strings.TrimSpace(parts[len(parts)-1]) == "" {
		parts = parts[:len(parts)-1]
	}
	pages := make([]string, 0, len(parts))
	for _, p := range parts {
		pages = append(pages, strings.TrimRight(p, "\n"))
	}
	return pages
}
