package ocr

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xavierjflanagan/Guardian-sub001/internal/config"
)

func TestNewExtractor_Local(t *testing.T) {
	ext, err := NewExtractor(config.OCRConfig{Provider: "local", PdfToTextPath: "/usr/bin/pdftotext"})
	require.NoError(t, err)
	assert.IsType(t, &PdfToText{}, ext)
}

func TestNewExtractor_MistralDefault(t *testing.T) {
	ext, err := NewExtractor(config.OCRConfig{Key: "test-key"})
	require.NoError(t, err)
	assert.IsType(t, &Mistral{}, ext)
}

func TestNewExtractor_MistralMissingKey(t *testing.T) {
	_, err := NewExtractor(config.OCRConfig{Provider: "mistral"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires ocr.key")
}

func TestNewExtractor_UnknownProvider(t *testing.T) {
	_, err := NewExtractor(config.OCRConfig{Provider: "tesseract"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown provider "tesseract"`)
}

func TestMistral_Defaults(t *testing.T) {
	m := NewMistral(config.OCRConfig{Key: "key"})
	assert.Equal(t, defaultMistralModel, m.model)
	assert.Equal(t, defaultMistralBaseURL, m.baseURL)
	assert.Equal(t, defaultPageConfidence, m.pageConfidence)
}

func TestMistral_Extract(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ocr", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req mistralRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "mistral-ocr-latest", req.Model)
		assert.Equal(t, "document_url", req.Document.Type)
		assert.True(t, strings.HasPrefix(req.Document.DocumentURL, "data:application/pdf;base64,"))

		json.NewEncoder(w).Encode(mistralResponse{
			Pages: []mistralPage{
				{Index: 0, Markdown: "Discharge summary", Dimensions: mistralDimensions{Width: 1240, Height: 1754}},
				{Index: 1, Markdown: "Medications: Lisinopril 10mg", Dimensions: mistralDimensions{Width: 1240, Height: 1754}},
			},
		})
	}))
	defer srv.Close()

	m := NewMistral(config.OCRConfig{Key: "test-key", BaseURL: srv.URL, PageConfidence: 0.85})
	result, raw, err := m.Extract(context.Background(), []byte("%PDF-1.4"), "application/pdf")
	require.NoError(t, err)
	assert.Contains(t, string(raw), "Discharge summary")

	assert.Equal(t, "mistral", result.Provider)
	assert.InDelta(t, 0.85, result.OverallConfidence, 0.001)
	require.Len(t, result.Pages, 2)
	assert.Equal(t, 1, result.Pages[0].PageNumber)
	assert.Equal(t, "Discharge summary", result.Pages[0].Text)
	assert.Equal(t, 1240, result.Pages[0].WidthPx)
	assert.Equal(t, 2, result.Pages[1].PageNumber)
}

func TestMistral_Extract_ImageRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req mistralRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "image_url", req.Document.Type)
		assert.True(t, strings.HasPrefix(req.Document.ImageURL, "data:image/png;base64,"))
		assert.Empty(t, req.Document.DocumentURL)

		json.NewEncoder(w).Encode(mistralResponse{
			Pages: []mistralPage{{Index: 0, Markdown: "BP 120/80"}},
		})
	}))
	defer srv.Close()

	m := NewMistral(config.OCRConfig{Key: "test-key", BaseURL: srv.URL})
	result, _, err := m.Extract(context.Background(), []byte{0x89, 0x50}, "image/png")
	require.NoError(t, err)
	require.Len(t, result.Pages, 1)
	assert.Equal(t, "BP 120/80", result.Pages[0].Text)
}

func TestMistral_Extract_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"invalid model"}`, http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	m := NewMistral(config.OCRConfig{Key: "test-key", BaseURL: srv.URL})
	_, _, err := m.Extract(context.Background(), []byte("%PDF-1.4"), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "returned 422")
}

func TestMistral_Extract_NoPages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(mistralResponse{})
	}))
	defer srv.Close()

	m := NewMistral(config.OCRConfig{Key: "test-key", BaseURL: srv.URL})
	_, _, err := m.Extract(context.Background(), []byte("%PDF-1.4"), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no pages")
}

func TestPdfToText_RejectsNonPDF(t *testing.T) {
	p := NewPdfToText("", 0)
	_, _, err := p.Extract(context.Background(), []byte{0x89, 0x50}, "image/png")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot handle image/png")
}

func TestPdfToText_Defaults(t *testing.T) {
	p := NewPdfToText("", 0)
	assert.Equal(t, "pdftotext", p.binPath)
	assert.Equal(t, defaultPageConfidence, p.pageConfidence)

	p = NewPdfToText("/custom/pdftotext", 0.75)
	assert.Equal(t, "/custom/pdftotext", p.binPath)
}

func TestSplitPages(t *testing.T) {
	pages := splitPages("page one\n\fpage two\n\f")
	require.Len(t, pages, 2)
	assert.Equal(t, "page one", pages[0])
	assert.Equal(t, "page two", pages[1])

	assert.Empty(t, splitPages(""))
	assert.Len(t, splitPages("single page\n"), 1)
}
