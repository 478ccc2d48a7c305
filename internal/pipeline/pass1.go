package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xavierjflanagan/Guardian-sub001/internal/artifact"
	"github.com/xavierjflanagan/Guardian-sub001/internal/detect"
	"github.com/xavierjflanagan/Guardian-sub001/internal/model"
	"github.com/xavierjflanagan/Guardian-sub001/internal/records"
	"github.com/xavierjflanagan/Guardian-sub001/internal/resilience"
	"github.com/xavierjflanagan/Guardian-sub001/internal/store"
)

// Detector runs entity detection over one prepared document input.
type Detector interface {
	Detect(ctx context.Context, in *detect.DocumentInput) (*model.ProcessingResult, model.SessionMetadata, error)
}

// ArtifactLoader reconstructs persisted OCR outputs for a document.
type ArtifactLoader interface {
	Load(ctx context.Context, documentID string) (*model.OCRResult, error)
	LoadEnhanced(ctx context.Context, patientID, documentID string) (string, error)
}

// Document identifies one uploaded file to process. FileData is optional;
// without it the document is processed in OCR-only mode from its stored
// artifact.
type Document struct {
	ShellFileID string
	PatientID   string
	FileData    []byte
	MimeType    string
}

// Pass1Config tunes the detection orchestrator.
type Pass1Config struct {
	Concurrency int
	MaxRetries  int
}

// DefaultPass1Config returns production defaults.
func DefaultPass1Config() Pass1Config {
	return Pass1Config{
		Concurrency: 3,
		MaxRetries:  3,
	}
}

// Pass1 orchestrates detection for single documents and bounded batches:
// artifact load, detection, record building, persistence, and durable
// rescheduling of reschedulable failures.
type Pass1 struct {
	detector  Detector
	artifacts ArtifactLoader
	store     store.Store
	cfg       Pass1Config
	log       *zap.Logger
	now       func() time.Time
}

// NewPass1 creates a Pass 1 orchestrator.
func NewPass1(detector Detector, artifacts ArtifactLoader, st store.Store, cfg Pass1Config) *Pass1 {
	if cfg.Concurrency <= 0 {
		cfg = DefaultPass1Config()
	}
	return &Pass1{
		detector:  detector,
		artifacts: artifacts,
		store:     st,
		cfg:       cfg,
		log:       zap.L(),
		now:       time.Now,
	}
}

// DocumentOutcome pairs a document with its processing result. Err is set for
// failures that never produced a result (validation, missing artifact).
type DocumentOutcome struct {
	Document  Document
	SessionID string
	Result    *model.ProcessingResult
	Err       error
}

// Failed reports whether the document needs operator or retry attention.
func (o *DocumentOutcome) Failed() bool {
	return o.Err != nil || o.Result == nil || !o.Result.Success
}

// ProcessDocument runs one document through detection and persistence.
// Reschedulable failures are parked on the retry queue before returning.
func (p *Pass1) ProcessDocument(ctx context.Context, doc Document) DocumentOutcome {
	outcome := p.processOnce(ctx, doc)
	if p.reschedulable(outcome) {
		p.enqueueRetry(ctx, doc, outcome)
	}
	return outcome
}

// processOnce runs detection and persistence without touching the retry
// queue. The retry worker calls this directly so requeued jobs do not
// re-enqueue themselves.
func (p *Pass1) processOnce(ctx context.Context, doc Document) DocumentOutcome {
	outcome := DocumentOutcome{Document: doc}

	in, err := p.buildInput(ctx, doc)
	if err != nil {
		outcome.Err = err
		return outcome
	}

	result, session, err := p.detector.Detect(ctx, in)
	outcome.SessionID = session.SessionID
	if err != nil {
		outcome.Err = err
		return outcome
	}
	outcome.Result = result
	if !result.Success {
		// Terminal failures get a failed session row so the status rollup
		// and failure-rate monitoring see them; reschedulable ones wait for
		// the retry queue's verdict.
		if !result.RetryRecommended {
			if err := p.store.SaveFailedSession(ctx, session, result.Error); err != nil {
				p.log.Error("pass1 failed-session record",
					zap.String("session_id", session.SessionID),
					zap.Error(err),
				)
			}
		}
		return outcome
	}

	payloads, err := records.Build(session, result, p.now().UTC())
	if err != nil {
		outcome.Err = eris.Wrap(err, "pipeline: build payloads")
		return outcome
	}
	if err := p.store.SaveResults(ctx, payloads); err != nil {
		// The detection spend is lost but the document is intact, so
		// persistence failures reschedule like transport failures.
		result.Success = false
		result.Error = err.Error()
		result.RetryRecommended = true
		outcome.Err = eris.Wrap(err, "pipeline: save results")
	}
	return outcome
}

// ProcessBatch runs documents with bounded concurrency. One document's
// failure never aborts the others; outcomes are returned in input order.
func (p *Pass1) ProcessBatch(ctx context.Context, docs []Document) []DocumentOutcome {
	outcomes := make([]DocumentOutcome, len(docs))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Concurrency)
	for i, doc := range docs {
		g.Go(func() error {
			outcomes[i] = p.ProcessDocument(gCtx, doc)
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for i := range outcomes {
		if outcomes[i].Failed() {
			failed++
		}
	}
	p.log.Info("pass1 batch finished",
		zap.Int("documents", len(docs)),
		zap.Int("failed", failed),
	)
	return outcomes
}

// buildInput assembles the detector input. FileData selects dual mode, which
// needs the stored OCR output alongside the image; otherwise the enhanced
// text artifact drives OCR-only mode, falling back to concatenated page text.
func (p *Pass1) buildInput(ctx context.Context, doc Document) (*detect.DocumentInput, error) {
	in := &detect.DocumentInput{
		ShellFileID: doc.ShellFileID,
		PatientID:   doc.PatientID,
		FileData:    doc.FileData,
		MimeType:    doc.MimeType,
	}

	ocr, err := p.artifacts.Load(ctx, doc.ShellFileID)
	switch {
	case err == nil:
		in.OCR = ocr
	case eris.Is(err, artifact.ErrNoArtifact):
		if len(doc.FileData) == 0 {
			return nil, eris.Wrapf(err, "pipeline: document %s has no artifact and no file data", doc.ShellFileID)
		}
	default:
		return nil, eris.Wrapf(err, "pipeline: load artifact for %s", doc.ShellFileID)
	}

	if len(doc.FileData) == 0 {
		enhanced, err := p.artifacts.LoadEnhanced(ctx, doc.PatientID, doc.ShellFileID)
		if err == nil {
			in.EnhancedText = enhanced
		} else if in.OCR != nil {
			in.EnhancedText = in.OCR.FullText()
		} else {
			return nil, eris.Wrapf(err, "pipeline: load enhanced text for %s", doc.ShellFileID)
		}
	}
	return in, nil
}

func (p *Pass1) reschedulable(outcome DocumentOutcome) bool {
	if outcome.Result != nil {
		return !outcome.Result.Success && outcome.Result.RetryRecommended
	}
	return outcome.Err != nil && resilience.IsTransient(outcome.Err)
}

func (p *Pass1) enqueueRetry(ctx context.Context, doc Document, outcome DocumentOutcome) {
	reason := "detection failed"
	if outcome.Err != nil {
		reason = outcome.Err.Error()
	} else if outcome.Result != nil && outcome.Result.Error != "" {
		reason = outcome.Result.Error
	}

	now := p.now().UTC()
	job := resilience.RetryJob{
		ShellFileID:  doc.ShellFileID,
		PatientID:    doc.PatientID,
		SessionID:    outcome.SessionID,
		Stage:        StagePass1,
		Error:        reason,
		ErrorType:    "transient",
		MaxRetries:   p.cfg.MaxRetries,
		NextRetryAt:  now.Add(resilience.NextRetryDelay(0)),
		CreatedAt:    now,
		LastFailedAt: now,
	}
	if err := p.store.EnqueueRetry(ctx, job); err != nil {
		p.log.Error("pass1 retry enqueue failed",
			zap.String("shell_file_id", doc.ShellFileID),
			zap.Error(err),
		)
		return
	}
	p.log.Warn("pass1 document parked for retry",
		zap.String("shell_file_id", doc.ShellFileID),
		zap.String("reason", reason),
		zap.Time("next_retry_at", job.NextRetryAt),
	)
}
