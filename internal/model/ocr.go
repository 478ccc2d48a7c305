package model

import "time"

// OCRWord is one recognized word with its page-relative bounding box.
type OCRWord struct {
	Text        string      `json:"text"`
	BoundingBox BoundingBox `json:"bounding_box"`
	Confidence  float64     `json:"confidence"`
}

// OCRPage is one page of OCR output.
type OCRPage struct {
	PageNumber int       `json:"page_number"`
	Text       string    `json:"text"`
	Words      []OCRWord `json:"words,omitempty"`
	WidthPx    int       `json:"width_px"`
	HeightPx   int       `json:"height_px"`
}

// OCRResult is the complete OCR output for one document, as produced by the
// upstream provider and persisted by the artifact store.
type OCRResult struct {
	Provider          string    `json:"provider"`
	Pages             []OCRPage `json:"pages"`
	OverallConfidence float64   `json:"overall_confidence"`
}

// FullText concatenates per-page text in page order.
func (r *OCRResult) FullText() string {
	var out string
	for i, p := range r.Pages {
		if i > 0 {
			out += "\n\n"
		}
		out += p.Text
	}
	return out
}

// ArtifactPage describes one persisted page artifact in a manifest.
type ArtifactPage struct {
	PageNumber int    `json:"page_number"`
	Path       string `json:"path"`
	Bytes      int64  `json:"bytes"`
	WidthPx    int    `json:"width_px"`
	HeightPx   int    `json:"height_px"`
}

// ArtifactManifest summarizes a persisted OCR result. The manifest checksum
// must match the checksum of the reconstructed result; the relational index
// row and the manifest must agree on page count.
type ArtifactManifest struct {
	DocumentID    string         `json:"document_id"`
	PatientID     string         `json:"patient_id"`
	Provider      string         `json:"provider"`
	FormatVersion string         `json:"format_version"`
	Pages         []ArtifactPage `json:"pages"`
	// OverallConfidence is carried here because pages do not store it and
	// the checksum covers the full reconstructed result.
	OverallConfidence float64   `json:"overall_confidence"`
	Checksum          string    `json:"checksum"` // sha256 of the canonical OCR result JSON
	ImagePaths        []string  `json:"downscaled_image_paths,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

// ArtifactIndexRow is the ocr_artifacts row keyed by document id.
type ArtifactIndexRow struct {
	DocumentID   string    `json:"document_id"`
	PatientID    string    `json:"patient_id"`
	ManifestPath string    `json:"manifest_path"`
	Provider     string    `json:"provider"`
	Checksum     string    `json:"checksum"`
	PageCount    int       `json:"page_count"`
	TotalBytes   int64     `json:"total_bytes"`
	CreatedAt    time.Time `json:"created_at"`
}
