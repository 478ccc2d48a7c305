package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/xavierjflanagan/Guardian-sub001/internal/model"
	"github.com/xavierjflanagan/Guardian-sub001/internal/resilience"
	"github.com/xavierjflanagan/Guardian-sub001/internal/store"
)

// Retry queue stages.
const (
	StagePass1  = "pass1"
	StagePass15 = "pass1_5"
)

// Resolver resolves medical code candidates for a session's entities.
type Resolver interface {
	ResolveBatch(ctx context.Context, sessionID string, recs []model.EntityAuditRecord) []model.CandidateResult
}

// ResolutionSummary reports one session's code-resolution run.
type ResolutionSummary struct {
	SessionID string `json:"session_id"`
	Entities  int    `json:"entities"`
	Resolved  int    `json:"resolved"`
	Failed    int    `json:"failed"`
}

// Pass15 orchestrates code resolution: load a session's pending entities,
// resolve candidates, persist them. Persistence failures park the session on
// the retry queue.
type Pass15 struct {
	resolver   Resolver
	store      store.Store
	maxRetries int
	log        *zap.Logger
	now        func() time.Time
}

// NewPass15 creates a Pass 1.5 orchestrator.
func NewPass15(resolver Resolver, st store.Store, maxRetries int) *Pass15 {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &Pass15{
		resolver:   resolver,
		store:      st,
		maxRetries: maxRetries,
		log:        zap.L(),
		now:        time.Now,
	}
}

// ProcessSession resolves code candidates for every pending entity in a
// session. Per-entity failures are captured in the persisted results; only a
// persistence failure fails the whole run.
func (p *Pass15) ProcessSession(ctx context.Context, sessionID string) (*ResolutionSummary, error) {
	summary, err := p.processOnce(ctx, sessionID)
	if err != nil {
		// Load and persistence failures are infrastructure trouble, not
		// bad input, so the session is always reschedulable.
		p.enqueueRetry(ctx, sessionID, err)
	}
	return summary, err
}

func (p *Pass15) processOnce(ctx context.Context, sessionID string) (*ResolutionSummary, error) {
	recs, err := p.store.PendingEntities(ctx, sessionID)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: load pending entities")
	}

	summary := &ResolutionSummary{SessionID: sessionID}
	if len(recs) == 0 {
		p.log.Info("pass1_5 nothing pending", zap.String("session_id", sessionID))
		return summary, nil
	}

	results := p.resolver.ResolveBatch(ctx, sessionID, recs)
	summary.Entities = len(results)
	for _, r := range results {
		if r.FailureNote == "" {
			summary.Resolved++
		} else {
			summary.Failed++
		}
	}

	if err := p.store.SaveCandidates(ctx, results); err != nil {
		return summary, eris.Wrap(err, "pipeline: save candidates")
	}
	p.log.Info("pass1_5 session resolved",
		zap.String("session_id", sessionID),
		zap.Int("entities", summary.Entities),
		zap.Int("resolved", summary.Resolved),
		zap.Int("failed", summary.Failed),
	)
	return summary, nil
}

// ResolveAdHoc resolves candidates for a single record without persisting
// anything. Operator tooling uses it to probe the catalogs.
func (p *Pass15) ResolveAdHoc(ctx context.Context, rec model.EntityAuditRecord) []model.CandidateResult {
	return p.resolver.ResolveBatch(ctx, rec.SessionID, []model.EntityAuditRecord{rec})
}

func (p *Pass15) enqueueRetry(ctx context.Context, sessionID string, cause error) {
	now := p.now().UTC()
	job := resilience.RetryJob{
		SessionID:    sessionID,
		Stage:        StagePass15,
		Error:        cause.Error(),
		ErrorType:    resilience.ClassifyError(cause),
		MaxRetries:   p.maxRetries,
		NextRetryAt:  now.Add(resilience.NextRetryDelay(0)),
		CreatedAt:    now,
		LastFailedAt: now,
	}
	if err := p.store.EnqueueRetry(ctx, job); err != nil {
		p.log.Error("pass1_5 retry enqueue failed",
			zap.String("session_id", sessionID),
			zap.Error(err),
		)
		return
	}
	p.log.Warn("pass1_5 session parked for retry",
		zap.String("session_id", sessionID),
		zap.Time("next_retry_at", job.NextRetryAt),
	)
}
