// Package artifact persists OCR results to object storage with a
// relational index, so a document's OCR runs once and is reconstructed on
// every later pass.
package artifact

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/xavierjflanagan/Guardian-sub001/internal/model"
	"github.com/xavierjflanagan/Guardian-sub001/internal/resilience"
	"github.com/xavierjflanagan/Guardian-sub001/pkg/bucket"
)

// ErrNoArtifact is reported when no complete artifact exists for a
// document. Callers must re-run OCR; partial data is never returned.
var ErrNoArtifact = eris.New("artifact: no artifact for document")

// Index is the relational side of the artifact store, keyed by document id.
// The upsert converges concurrent writers for the same document.
type Index interface {
	UpsertArtifact(ctx context.Context, row model.ArtifactIndexRow) error
	GetArtifact(ctx context.Context, documentID string) (*model.ArtifactIndexRow, error)
}

// FormatVersion identifies the page/manifest layout in storage.
const FormatVersion = "v1"

// Store persists and reconstructs OCR results.
type Store struct {
	objects bucket.Store
	index   Index
	retry   resilience.RetryConfig
	log     *zap.Logger
	now     func() time.Time
}

// New creates a Store.
func New(objects bucket.Store, index Index) *Store {
	return &Store{
		objects: objects,
		index:   index,
		retry:   resilience.StorageRetryConfig(),
		log:     zap.L(),
		now:     time.Now,
	}
}

// Object path layout, keyed by patient and document so storage-level access
// rules can scope by patient prefix.

func basePath(patientID, documentID string) string {
	return fmt.Sprintf("%s/%s-ocr", patientID, documentID)
}

func pagePath(patientID, documentID string, pageNumber int) string {
	return fmt.Sprintf("%s/page-%03d.json", basePath(patientID, documentID), pageNumber)
}

func manifestPath(patientID, documentID string) string {
	return basePath(patientID, documentID) + "/manifest.json"
}

func enhancedPath(patientID, documentID string) string {
	return basePath(patientID, documentID) + "/enhanced.txt"
}

func rawArchivePath(patientID, documentID string) string {
	return basePath(patientID, documentID) + "/raw-response.json"
}

// Checksum computes the sha256 digest of the canonical OCR result JSON.
func Checksum(result *model.OCRResult) (string, error) {
	data, err := json.Marshal(result)
	if err != nil {
		return "", eris.Wrap(err, "artifact: marshal for checksum")
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Persist writes an OCR result: per-page artifacts first, then the
// manifest, then the index upsert. The ordering guarantees a crash
// mid-write leaves no index row pointing at an incomplete manifest; the
// half-written objects are simply undiscoverable and overwritten on retry.
func (s *Store) Persist(ctx context.Context, patientID, documentID string, result *model.OCRResult) (*model.ArtifactManifest, error) {
	if result == nil || len(result.Pages) == 0 {
		return nil, eris.New("artifact: empty ocr result")
	}

	checksum, err := Checksum(result)
	if err != nil {
		return nil, err
	}

	manifest := &model.ArtifactManifest{
		DocumentID:        documentID,
		PatientID:         patientID,
		Provider:          result.Provider,
		FormatVersion:     FormatVersion,
		OverallConfidence: result.OverallConfidence,
		Checksum:          checksum,
		CreatedAt:         s.now().UTC(),
	}

	var totalBytes int64
	for _, page := range result.Pages {
		data, err := json.Marshal(page)
		if err != nil {
			return nil, eris.Wrapf(err, "artifact: marshal page %d", page.PageNumber)
		}
		path := pagePath(patientID, documentID, page.PageNumber)
		if err := s.upload(ctx, path, data, "application/json"); err != nil {
			return nil, eris.Wrapf(err, "artifact: upload page %d", page.PageNumber)
		}
		totalBytes += int64(len(data))
		manifest.Pages = append(manifest.Pages, model.ArtifactPage{
			PageNumber: page.PageNumber,
			Path:       path,
			Bytes:      int64(len(data)),
			WidthPx:    page.WidthPx,
			HeightPx:   page.HeightPx,
		})
	}

	manifestData, err := json.Marshal(manifest)
	if err != nil {
		return nil, eris.Wrap(err, "artifact: marshal manifest")
	}
	if err := s.upload(ctx, manifestPath(patientID, documentID), manifestData, "application/json"); err != nil {
		return nil, eris.Wrap(err, "artifact: upload manifest")
	}

	row := model.ArtifactIndexRow{
		DocumentID:   documentID,
		PatientID:    patientID,
		ManifestPath: manifestPath(patientID, documentID),
		Provider:     result.Provider,
		Checksum:     checksum,
		PageCount:    len(result.Pages),
		TotalBytes:   totalBytes,
		CreatedAt:    manifest.CreatedAt,
	}
	if err := s.index.UpsertArtifact(ctx, row); err != nil {
		return nil, eris.Wrap(err, "artifact: upsert index")
	}

	s.log.Info("ocr artifact persisted",
		zap.String("document_id", documentID),
		zap.Int("pages", len(result.Pages)),
		zap.Int64("bytes", totalBytes),
	)
	return manifest, nil
}

// Load reconstructs an OCR result. A missing index row, manifest, or page
// reports ErrNoArtifact; a checksum mismatch is corruption and reported as
// its own error.
func (s *Store) Load(ctx context.Context, documentID string) (*model.OCRResult, error) {
	row, err := s.index.GetArtifact(ctx, documentID)
	if err != nil {
		return nil, eris.Wrap(err, "artifact: index lookup")
	}
	if row == nil {
		return nil, ErrNoArtifact
	}

	manifestData, err := s.download(ctx, row.ManifestPath)
	if err != nil {
		if eris.Is(err, bucket.ErrNotFound) {
			return nil, ErrNoArtifact
		}
		return nil, eris.Wrap(err, "artifact: download manifest")
	}
	var manifest model.ArtifactManifest
	if err := json.Unmarshal(manifestData, &manifest); err != nil {
		return nil, eris.Wrap(err, "artifact: decode manifest")
	}
	if len(manifest.Pages) != row.PageCount {
		return nil, ErrNoArtifact
	}

	result := &model.OCRResult{
		Provider:          manifest.Provider,
		OverallConfidence: manifest.OverallConfidence,
	}
	for _, pageRef := range manifest.Pages {
		data, err := s.download(ctx, pageRef.Path)
		if err != nil {
			if eris.Is(err, bucket.ErrNotFound) {
				return nil, ErrNoArtifact
			}
			return nil, eris.Wrapf(err, "artifact: download page %d", pageRef.PageNumber)
		}
		var page model.OCRPage
		if err := json.Unmarshal(data, &page); err != nil {
			return nil, eris.Wrapf(err, "artifact: decode page %d", pageRef.PageNumber)
		}
		result.Pages = append(result.Pages, page)
	}

	got, err := Checksum(result)
	if err != nil {
		return nil, err
	}
	if got != manifest.Checksum {
		return nil, eris.Errorf("artifact: checksum mismatch (stored %s, reconstructed %s)", manifest.Checksum, got)
	}
	return result, nil
}

// PersistEnhanced stores the enhanced OCR text blob for a document.
func (s *Store) PersistEnhanced(ctx context.Context, patientID, documentID, text string) error {
	if text == "" {
		return eris.New("artifact: empty enhanced text")
	}
	return s.upload(ctx, enhancedPath(patientID, documentID), []byte(text), "text/plain; charset=utf-8")
}

// LoadEnhanced fetches the enhanced OCR text. Missing blobs report
// ErrNoArtifact.
func (s *Store) LoadEnhanced(ctx context.Context, patientID, documentID string) (string, error) {
	data, err := s.download(ctx, enhancedPath(patientID, documentID))
	if err != nil {
		if eris.Is(err, bucket.ErrNotFound) {
			return "", ErrNoArtifact
		}
		return "", err
	}
	return string(data), nil
}

// PersistRawArchive stores the raw provider response for debugging.
// Retention is handled out of band by a storage lifecycle rule.
func (s *Store) PersistRawArchive(ctx context.Context, patientID, documentID string, raw []byte) error {
	if len(raw) == 0 {
		return eris.New("artifact: empty raw archive")
	}
	return s.upload(ctx, rawArchivePath(patientID, documentID), raw, "application/json")
}

// LoadRawArchive fetches the raw provider response archive.
func (s *Store) LoadRawArchive(ctx context.Context, patientID, documentID string) ([]byte, error) {
	data, err := s.download(ctx, rawArchivePath(patientID, documentID))
	if err != nil && eris.Is(err, bucket.ErrNotFound) {
		return nil, ErrNoArtifact
	}
	return data, err
}

func (s *Store) upload(ctx context.Context, path string, data []byte, contentType string) error {
	cfg := s.retry
	cfg.OnRetry = resilience.RetryLogger("bucket", "upload")
	return resilience.Do(ctx, cfg, func(ctx context.Context) error {
		return classifyBucketError(s.objects.Upload(ctx, path, data, contentType))
	})
}

func (s *Store) download(ctx context.Context, path string) ([]byte, error) {
	cfg := s.retry
	cfg.OnRetry = resilience.RetryLogger("bucket", "download")
	return resilience.DoVal(ctx, cfg, func(ctx context.Context) ([]byte, error) {
		data, err := s.objects.Download(ctx, path)
		return data, classifyBucketError(err)
	})
}

func classifyBucketError(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *bucket.APIError
	if eris.As(err, &apiErr) && resilience.IsTransientHTTPStatus(apiErr.StatusCode) {
		return resilience.NewTransientErrorWithHint(err, apiErr.StatusCode, apiErr.RetryAfter)
	}
	return err
}
