package artifact

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xavierjflanagan/Guardian-sub001/internal/model"
	"github.com/xavierjflanagan/Guardian-sub001/pkg/bucket"
)

// memIndex is an in-memory Index for tests. It records whether pages and
// manifest existed in the object store at upsert time, to assert write
// ordering.
type memIndex struct {
	rows           map[string]model.ArtifactIndexRow
	objects        *bucket.Memory
	objectsAtWrite int
	failUpsert     error
}

func newMemIndex(objects *bucket.Memory) *memIndex {
	return &memIndex{rows: make(map[string]model.ArtifactIndexRow), objects: objects}
}

func (m *memIndex) UpsertArtifact(_ context.Context, row model.ArtifactIndexRow) error {
	if m.failUpsert != nil {
		return m.failUpsert
	}
	m.objectsAtWrite = m.objects.Len()
	m.rows[row.DocumentID] = row
	return nil
}

func (m *memIndex) GetArtifact(_ context.Context, documentID string) (*model.ArtifactIndexRow, error) {
	row, ok := m.rows[documentID]
	if !ok {
		return nil, nil
	}
	return &row, nil
}

func sampleOCR() *model.OCRResult {
	return &model.OCRResult{
		Provider:          "google_cloud_vision",
		OverallConfidence: 0.94,
		Pages: []model.OCRPage{
			{
				PageNumber: 1,
				Text:       "Lisinopril 10mg daily",
				WidthPx:    1240, HeightPx: 1754,
				Words: []model.OCRWord{{
					Text:        "Lisinopril",
					BoundingBox: model.BoundingBox{X: 80, Y: 120, Width: 140, Height: 22},
					Confidence:  0.98,
				}},
			},
			{PageNumber: 2, Text: "Allergies: Penicillin", WidthPx: 1240, HeightPx: 1754},
		},
	}
}

func newTestStore(t *testing.T) (*Store, *bucket.Memory, *memIndex) {
	t.Helper()
	objects := bucket.NewMemory()
	index := newMemIndex(objects)
	return New(objects, index), objects, index
}

func TestPersistAndLoadRoundTrip(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()
	original := sampleOCR()

	manifest, err := s.Persist(ctx, "patient-1", "doc-1", original)
	require.NoError(t, err)
	assert.Len(t, manifest.Pages, 2)
	assert.NotEmpty(t, manifest.Checksum)

	got, err := s.Load(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, original, got)
}

func TestPersistWritesIndexLast(t *testing.T) {
	s, _, index := newTestStore(t)

	_, err := s.Persist(context.Background(), "patient-1", "doc-1", sampleOCR())
	require.NoError(t, err)

	// Two pages plus the manifest were already in storage when the index
	// row was written.
	assert.Equal(t, 3, index.objectsAtWrite)
}

func TestPersistIsIdempotent(t *testing.T) {
	s, objects, _ := newTestStore(t)
	ctx := context.Background()

	_, err := s.Persist(ctx, "patient-1", "doc-1", sampleOCR())
	require.NoError(t, err)
	before := objects.Len()

	_, err = s.Persist(ctx, "patient-1", "doc-1", sampleOCR())
	require.NoError(t, err)
	assert.Equal(t, before, objects.Len())
}

func TestLoadNoIndexRow(t *testing.T) {
	s, _, _ := newTestStore(t)
	_, err := s.Load(context.Background(), "unknown-doc")
	assert.ErrorIs(t, err, ErrNoArtifact)
}

func TestLoadMissingPageReportsNoArtifact(t *testing.T) {
	s, objects, _ := newTestStore(t)
	ctx := context.Background()

	_, err := s.Persist(ctx, "patient-1", "doc-1", sampleOCR())
	require.NoError(t, err)

	require.NoError(t, objects.Remove(ctx, "patient-1/doc-1-ocr/page-002.json"))
	_, err = s.Load(ctx, "doc-1")
	assert.ErrorIs(t, err, ErrNoArtifact)
}

func TestLoadMissingManifestReportsNoArtifact(t *testing.T) {
	s, objects, _ := newTestStore(t)
	ctx := context.Background()

	_, err := s.Persist(ctx, "patient-1", "doc-1", sampleOCR())
	require.NoError(t, err)

	require.NoError(t, objects.Remove(ctx, "patient-1/doc-1-ocr/manifest.json"))
	_, err = s.Load(ctx, "doc-1")
	assert.ErrorIs(t, err, ErrNoArtifact)
}

func TestLoadChecksumMismatch(t *testing.T) {
	s, objects, _ := newTestStore(t)
	ctx := context.Background()

	_, err := s.Persist(ctx, "patient-1", "doc-1", sampleOCR())
	require.NoError(t, err)

	// Tamper with a page after the manifest was written.
	tampered, _ := json.Marshal(model.OCRPage{PageNumber: 2, Text: "altered"})
	require.NoError(t, objects.Upload(ctx, "patient-1/doc-1-ocr/page-002.json", tampered, "application/json"))

	_, err = s.Load(ctx, "doc-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "checksum mismatch")
}

func TestPersistEmptyResultRejected(t *testing.T) {
	s, _, _ := newTestStore(t)
	_, err := s.Persist(context.Background(), "p", "d", &model.OCRResult{})
	assert.Error(t, err)
}

func TestEnhancedTextRoundTrip(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()

	_, err := s.LoadEnhanced(ctx, "patient-1", "doc-1")
	assert.ErrorIs(t, err, ErrNoArtifact)

	require.NoError(t, s.PersistEnhanced(ctx, "patient-1", "doc-1", "PAGE 1\nLisinopril 10mg"))
	got, err := s.LoadEnhanced(ctx, "patient-1", "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "PAGE 1\nLisinopril 10mg", got)
}

func TestRawArchiveRoundTrip(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()

	_, err := s.LoadRawArchive(ctx, "patient-1", "doc-1")
	assert.ErrorIs(t, err, ErrNoArtifact)

	raw := []byte(`{"responses": []}`)
	require.NoError(t, s.PersistRawArchive(ctx, "patient-1", "doc-1", raw))
	got, err := s.LoadRawArchive(ctx, "patient-1", "doc-1")
	require.NoError(t, err)
	assert.Equal(t, raw, got)
}
