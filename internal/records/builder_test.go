package records

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xavierjflanagan/Guardian-sub001/internal/model"
)

var buildTime = time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)

func sampleResult() (*model.ProcessingResult, model.SessionMetadata) {
	session := model.SessionMetadata{
		SessionID:     "sess-1",
		ShellFileID:   "shell-1",
		PatientID:     "patient-1",
		Model:         "claude-sonnet-4",
		VisionEnabled: true,
		OCRProvider:   "google_cloud_vision",
		StartedAt:     buildTime.Add(-45 * time.Second),
	}
	result := &model.ProcessingResult{
		Success: true,
		Response: &model.AIResponse{
			ProcessingMetadata: model.ProcessingMetadata{OverallConfidence: 0.92},
			DocumentCoverage:   model.DocumentCoverage{CoveragePercentage: 97.5},
			ProfileSafety: model.ProfileSafety{
				PatientIdentityConfidence: 0.99,
				AgeAppropriatenessScore:   0.95,
			},
		},
		Records: []model.EntityAuditRecord{
			{
				ID: "r1", EntityID: "ent_001",
				Category: model.CategoryClinicalEvent, Subtype: model.SubtypeMedication,
				ProcessingPriority:       model.PriorityHighest,
				ClassificationConfidence: 0.95, DetectionConfidence: 0.96,
				CrossValidationScore: 0.99, AIOCRAgreement: 0.99,
			},
			{
				ID: "r2", EntityID: "ent_002",
				Category: model.CategoryHealthcareContext, Subtype: model.SubtypePatientIdentifier,
				ProcessingPriority:       model.PriorityLow,
				ClassificationConfidence: 0.85,
			},
			{
				ID: "r3", EntityID: "ent_003",
				Category: model.CategoryDocumentStructure, Subtype: model.SubtypeHeader,
				ProcessingPriority:       model.PriorityLoggingOnly,
				ClassificationConfidence: 0.60,
				ManualReviewRequired:     true,
			},
		},
		CostEstimateUSD: 0.0135,
	}
	return result, session
}

func TestBuildAssemblesAllPayloads(t *testing.T) {
	result, session := sampleResult()

	p, err := Build(session, result, buildTime)
	require.NoError(t, err)

	assert.Equal(t, "sess-1", p.Session.ID)
	assert.Equal(t, model.SessionCompleted, p.Session.Status)
	assert.Equal(t, 3, p.Session.TotalEntities)
	assert.Equal(t, 1, p.Session.ClinicalCount)
	assert.Equal(t, 1, p.Session.ContextCount)
	assert.Equal(t, 1, p.Session.StructureCount)
	assert.Equal(t, 0.0135, p.Session.CostEstimateUSD)
	require.NotNil(t, p.Session.CompletedAt)
	assert.Equal(t, buildTime, *p.Session.CompletedAt)

	assert.Len(t, p.EntityRecords, 3)
	assert.Equal(t, 3, p.ShellFileUpdate.EntityCount)
	assert.Equal(t, 0.92, p.ShellFileUpdate.OverallConfidence)

	assert.Equal(t, 0.99, p.ProfileAudit.IdentityConfidence)
	assert.InDelta(t, 0.80, p.Metrics.AvgConfidence, 0.001)
	assert.Equal(t, 97.5, p.Metrics.CoveragePercentage)
	assert.Equal(t, 1, p.Metrics.ReviewFlaggedCount)

	assert.Len(t, p.ConfidenceScores, 3)
	require.Len(t, p.ReviewEntries, 1)
	assert.Equal(t, "ent_003", p.ReviewEntries[0].EntityID)
	assert.Contains(t, p.ReviewEntries[0].Reason, "confidence")
}

func TestBuildIsDeterministic(t *testing.T) {
	result, session := sampleResult()

	p1, err := Build(session, result, buildTime)
	require.NoError(t, err)
	p2, err := Build(session, result, buildTime)
	require.NoError(t, err)
	assert.Equal(t, p1, p2)
}

func TestBuildRejectsFailedResult(t *testing.T) {
	result, session := sampleResult()
	result.Success = false

	_, err := Build(session, result, buildTime)
	assert.Error(t, err)
}

func TestBuildRejectsMissingResponse(t *testing.T) {
	result, session := sampleResult()
	result.Response = nil

	_, err := Build(session, result, buildTime)
	assert.Error(t, err)

	_, err = Build(session, nil, buildTime)
	assert.Error(t, err)
}

func TestBuildEmptyEntityList(t *testing.T) {
	result, session := sampleResult()
	result.Records = nil

	p, err := Build(session, result, buildTime)
	require.NoError(t, err)
	assert.Equal(t, 0, p.Metrics.TotalEntities)
	assert.Zero(t, p.Metrics.AvgConfidence)
	assert.Empty(t, p.ConfidenceScores)
	assert.Empty(t, p.ReviewEntries)
}
