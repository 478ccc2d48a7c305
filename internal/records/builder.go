// Package records assembles the database payloads produced by a completed
// Pass 1 run. The builder is a pure transformation: given the same inputs
// it produces identical output and performs no I/O. Persistence is the
// store's job.
package records

import (
	"fmt"
	"time"

	"github.com/rotisserie/eris"

	"github.com/xavierjflanagan/Guardian-sub001/internal/model"
)

// Build produces the seven output payloads from one successful run. The
// completion timestamp is passed in rather than read from the clock so the
// builder stays deterministic.
func Build(session model.SessionMetadata, result *model.ProcessingResult, completedAt time.Time) (*model.DatabasePayloads, error) {
	if result == nil || result.Response == nil {
		return nil, eris.New("records: result has no response")
	}
	if !result.Success {
		return nil, eris.New("records: cannot build payloads from a failed result")
	}

	resp := result.Response
	recs := result.Records

	var clinical, context, structure, flagged int
	var confidenceSum float64
	scores := make([]model.ConfidenceScore, 0, len(recs))
	var reviews []model.ManualReviewEntry

	for _, rec := range recs {
		switch rec.Category {
		case model.CategoryClinicalEvent:
			clinical++
		case model.CategoryHealthcareContext:
			context++
		case model.CategoryDocumentStructure:
			structure++
		}
		confidenceSum += rec.ClassificationConfidence

		scores = append(scores, model.ConfidenceScore{
			SessionID:                session.SessionID,
			EntityID:                 rec.EntityID,
			DetectionConfidence:      rec.DetectionConfidence,
			ClassificationConfidence: rec.ClassificationConfidence,
			CrossValidationScore:     rec.CrossValidationScore,
			OCRAgreement:             rec.AIOCRAgreement,
		})

		if rec.ManualReviewRequired {
			flagged++
			reviews = append(reviews, model.ManualReviewEntry{
				ID:          rec.ID + "-review",
				SessionID:   session.SessionID,
				ShellFileID: session.ShellFileID,
				PatientID:   session.PatientID,
				EntityID:    rec.EntityID,
				Reason:      reviewReason(rec),
				Priority:    rec.ProcessingPriority,
				CreatedAt:   completedAt,
			})
		}
	}

	avgConfidence := 0.0
	if len(recs) > 0 {
		avgConfidence = confidenceSum / float64(len(recs))
	}

	completed := completedAt
	payloads := &model.DatabasePayloads{
		Session: model.ProcessingSession{
			ID:                session.SessionID,
			ShellFileID:       session.ShellFileID,
			PatientID:         session.PatientID,
			Model:             session.Model,
			VisionEnabled:     session.VisionEnabled,
			OCRProvider:       session.OCRProvider,
			Status:            model.SessionCompleted,
			TotalEntities:     len(recs),
			ClinicalCount:     clinical,
			ContextCount:      context,
			StructureCount:    structure,
			OverallConfidence: resp.ProcessingMetadata.OverallConfidence,
			CostEstimateUSD:   result.CostEstimateUSD,
			StartedAt:         session.StartedAt,
			CompletedAt:       &completed,
		},
		EntityRecords: recs,
		ShellFileUpdate: model.ShellFileUpdate{
			ShellFileID:       session.ShellFileID,
			Status:            model.SessionCompleted,
			EntityCount:       len(recs),
			OverallConfidence: resp.ProcessingMetadata.OverallConfidence,
			ProcessedAt:       completedAt,
		},
		ProfileAudit: model.ProfileClassificationAudit{
			SessionID:                    session.SessionID,
			ShellFileID:                  session.ShellFileID,
			PatientID:                    session.PatientID,
			IdentityConfidence:           resp.ProfileSafety.PatientIdentityConfidence,
			AgeAppropriatenessScore:      resp.ProfileSafety.AgeAppropriatenessScore,
			SafetyFlags:                  resp.ProfileSafety.SafetyFlags,
			RequiresIdentityVerification: resp.ProfileSafety.RequiresIdentityVerification,
		},
		Metrics: model.EntityMetrics{
			SessionID:          session.SessionID,
			ShellFileID:        session.ShellFileID,
			TotalEntities:      len(recs),
			ClinicalCount:      clinical,
			ContextCount:       context,
			StructureCount:     structure,
			AvgConfidence:      avgConfidence,
			CoveragePercentage: resp.DocumentCoverage.CoveragePercentage,
			ReviewFlaggedCount: flagged,
		},
		ConfidenceScores: scores,
		ReviewEntries:    reviews,
	}
	return payloads, nil
}

func reviewReason(rec model.EntityAuditRecord) string {
	switch {
	case rec.OCRText != "" && rec.AIOCRAgreement < rec.ClassificationConfidence && rec.AIOCRAgreement < 0.80:
		return fmt.Sprintf("low ai/ocr agreement (%.2f) for %s", rec.AIOCRAgreement, rec.Subtype)
	case rec.ClassificationConfidence < 0.70:
		return fmt.Sprintf("low classification confidence (%.2f) for %s", rec.ClassificationConfidence, rec.Subtype)
	default:
		return fmt.Sprintf("model flagged %s for review", rec.Subtype)
	}
}
