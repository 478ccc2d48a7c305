package codes

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xavierjflanagan/Guardian-sub001/internal/model"
)

type stubEmbedder struct {
	fail map[string]error
}

func (s *stubEmbedder) Generate(_ context.Context, rec model.EntityAuditRecord) ([]float32, error) {
	if err := s.fail[rec.EntityID]; err != nil {
		return nil, err
	}
	return []float32{0.1, 0.2}, nil
}

type stubSearcher struct {
	result SearchResult
}

func (s *stubSearcher) Search(_ context.Context, _ []float32, _ string) SearchResult {
	return s.result
}

func clinicalRec(id string, subtype model.EntitySubtype) model.EntityAuditRecord {
	return model.EntityAuditRecord{
		EntityID:     id,
		Category:     model.CategoryClinicalEvent,
		Subtype:      subtype,
		OriginalText: "Lisinopril 10mg",
	}
}

func TestResolveBatchSkipsNonClinical(t *testing.T) {
	r := NewResolver(&stubEmbedder{}, &stubSearcher{}, DefaultResolverConfig())

	recs := []model.EntityAuditRecord{
		clinicalRec("e1", model.SubtypeMedication),
		{EntityID: "e2", Category: model.CategoryDocumentStructure, Subtype: model.SubtypeHeader},
		{EntityID: "e3", Category: model.CategoryHealthcareContext, Subtype: model.SubtypePatientIdentifier},
	}
	results := r.ResolveBatch(context.Background(), "sess-1", recs)
	require.Len(t, results, 1)
	assert.Equal(t, "e1", results[0].EntityID)
}

func TestResolveBatchIsolatesEmbeddingFailure(t *testing.T) {
	embedder := &stubEmbedder{fail: map[string]error{"e2": eris.New("provider down")}}
	searcher := &stubSearcher{result: SearchResult{
		Universal: []model.CodeCandidate{cand("rxnorm", "314076", 0.9, model.TierUniversal)},
	}}
	r := NewResolver(embedder, searcher, DefaultResolverConfig())

	recs := []model.EntityAuditRecord{
		clinicalRec("e1", model.SubtypeMedication),
		clinicalRec("e2", model.SubtypeMedication),
		clinicalRec("e3", model.SubtypeMedication),
	}
	results := r.ResolveBatch(context.Background(), "sess-1", recs)
	require.Len(t, results, 3)

	assert.NotEmpty(t, results[0].Candidates)
	assert.Empty(t, results[1].Candidates)
	assert.Contains(t, results[1].FailureNote, "embedding failed")
	assert.NotEmpty(t, results[2].Candidates)
}

func TestResolveBothSearchSidesFailed(t *testing.T) {
	searcher := &stubSearcher{result: SearchResult{
		UniversalErr: eris.New("catalog down"),
		RegionalErr:  eris.New("catalog down"),
	}}
	r := NewResolver(&stubEmbedder{}, searcher, DefaultResolverConfig())

	results := r.ResolveBatch(context.Background(), "sess-1", []model.EntityAuditRecord{
		clinicalRec("e1", model.SubtypeMedication),
	})
	require.Len(t, results, 1)
	assert.Empty(t, results[0].Candidates)
	assert.Equal(t, "both catalog searches failed", results[0].FailureNote)
}

func TestResolvePartialSearchFailureStillSelects(t *testing.T) {
	searcher := &stubSearcher{result: SearchResult{
		Universal:   []model.CodeCandidate{cand("snomed", "38341003", 0.85, model.TierUniversal)},
		RegionalErr: eris.New("regional down"),
	}}
	r := NewResolver(&stubEmbedder{}, searcher, DefaultResolverConfig())

	results := r.ResolveBatch(context.Background(), "sess-1", []model.EntityAuditRecord{
		clinicalRec("e1", model.SubtypeDiagnosis),
	})
	require.Len(t, results, 1)
	assert.Empty(t, results[0].FailureNote)
	require.Len(t, results[0].Candidates, 1)
	assert.Equal(t, "snomed", results[0].Candidates[0].System)
}

func TestResolveRecordsSessionAndText(t *testing.T) {
	searcher := &stubSearcher{result: SearchResult{}}
	r := NewResolver(&stubEmbedder{}, searcher, DefaultResolverConfig())

	results := r.ResolveBatch(context.Background(), "sess-9", []model.EntityAuditRecord{
		clinicalRec("e1", model.SubtypeMedication),
	})
	require.Len(t, results, 1)
	assert.Equal(t, "sess-9", results[0].SessionID)
	assert.Equal(t, "Lisinopril 10mg", results[0].SearchText)
	assert.False(t, results[0].ResolvedAt.IsZero())
}
