package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/xavierjflanagan/Guardian-sub001/internal/config"
	"github.com/xavierjflanagan/Guardian-sub001/internal/model"
)

const (
	defaultMistralBaseURL = "https://api.mistral.ai/v1"
	defaultMistralModel   = "mistral-ocr-latest"
)

// Mistral extracts page text from documents using the Mistral OCR API.
type Mistral struct {
	apiKey         string
	model          string
	baseURL        string
	pageConfidence float64
	client         *http.Client
}

// NewMistral creates a Mistral extractor, applying defaults for any unset
// config fields.
func NewMistral(cfg config.OCRConfig) *Mistral {
	m := &Mistral{
		apiKey:         cfg.Key,
		model:          cfg.Model,
		baseURL:        cfg.BaseURL,
		pageConfidence: cfg.PageConfidence,
		client:         &http.Client{},
	}
	if m.model == "" {
		m.model = defaultMistralModel
	}
	if m.baseURL == "" {
		m.baseURL = defaultMistralBaseURL
	}
	if m.pageConfidence <= 0 {
		m.pageConfidence = defaultPageConfidence
	}
	return m
}

type mistralRequest struct {
	Model    string          `json:"model"`
	Document mistralDocument `json:"document"`
}

type mistralDocument struct {
	Type        string `json:"type"`
	DocumentURL string `json:"document_url,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
}

type mistralResponse struct {
	Pages []mistralPage `json:"pages"`
}

type mistralPage struct {
	Index      int               `json:"index"`
	Markdown   string            `json:"markdown"`
	Dimensions mistralDimensions `json:"dimensions"`
}

type mistralDimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Extract sends the document to Mistral OCR and maps the response pages to
// an OCRResult. The raw response body is returned alongside so callers can
// archive it. No word geometry is available from this provider.
func (m *Mistral) Extract(ctx context.Context, data []byte, mimeType string) (*model.OCRResult, []byte, error) {
	if mimeType == "" {
		mimeType = "application/pdf"
	}
	dataURL := "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)

	doc := mistralDocument{Type: "document_url", DocumentURL: dataURL}
	if strings.HasPrefix(mimeType, "image/") {
		doc = mistralDocument{Type: "image_url", ImageURL: dataURL}
	}

	bodyBytes, err := json.Marshal(mistralRequest{Model: m.model, Document: doc})
	if err != nil {
		return nil, nil, eris.Wrap(err, "ocr: marshal mistral request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/ocr", bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, nil, eris.Wrap(err, "ocr: create mistral request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+m.apiKey)

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, nil, eris.Wrap(err, "ocr: mistral API call")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, eris.Wrap(err, "ocr: read mistral response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, nil, eris.Errorf("ocr: mistral API returned %d: %s", resp.StatusCode, string(respBody))
	}

	var ocrResp mistralResponse
	if err := json.Unmarshal(respBody, &ocrResp); err != nil {
		return nil, nil, eris.Wrap(err, "ocr: unmarshal mistral response")
	}
	if len(ocrResp.Pages) == 0 {
		return nil, nil, eris.New("ocr: mistral returned no pages")
	}

	result := &model.OCRResult{
		Provider:          "mistral",
		OverallConfidence: m.pageConfidence,
	}
	for _, p := range ocrResp.Pages {
		result.Pages = append(result.Pages, model.OCRPage{
			PageNumber: p.Index + 1,
			Text:       p.Markdown,
			WidthPx:    p.Dimensions.Width,
			HeightPx:   p.Dimensions.Height,
		})
	}

	return result, respBody, nil
}
