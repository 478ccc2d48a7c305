package store

import (
	"context"

	"github.com/xavierjflanagan/Guardian-sub001/internal/model"
	"github.com/xavierjflanagan/Guardian-sub001/internal/resilience"
)

// Store abstracts result persistence so orchestration and tests do not care
// which backend is wired in.
type Store interface {
	// Pass 1 outputs. SaveResults writes every downstream payload for one
	// session in a single transaction.
	SaveResults(ctx context.Context, payloads *model.DatabasePayloads) error
	MarkSessionFailed(ctx context.Context, sessionID, reason string) error
	// SaveFailedSession upserts a failed session row for terminal failures
	// that never reached SaveResults.
	SaveFailedSession(ctx context.Context, session model.SessionMetadata, reason string) error
	GetSession(ctx context.Context, sessionID string) (*model.ProcessingSession, error)
	ListSessions(ctx context.Context, filter SessionFilter) ([]model.ProcessingSession, error)

	// Pass 1.5 inputs and outputs.
	PendingEntities(ctx context.Context, sessionID string) ([]model.EntityAuditRecord, error)
	SaveCandidates(ctx context.Context, results []model.CandidateResult) error

	// Code catalogs. ImportCatalog bulk-upserts exported catalog rows into
	// the universal or regional table.
	ImportCatalog(ctx context.Context, regional bool, entries []model.CatalogEntry) (int64, error)

	// OCR artifact index.
	UpsertArtifact(ctx context.Context, row model.ArtifactIndexRow) error
	GetArtifact(ctx context.Context, documentID string) (*model.ArtifactIndexRow, error)

	// Durable retry queue.
	EnqueueRetry(ctx context.Context, job resilience.RetryJob) error
	DueRetries(ctx context.Context, limit int) ([]resilience.RetryJob, error)
	CompleteRetry(ctx context.Context, jobID string) error
	RescheduleRetry(ctx context.Context, job resilience.RetryJob) error

	// Status reports queue depths and session counts for operators.
	Status(ctx context.Context) (*StatusSummary, error)

	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}

// StatusSummary is a point-in-time snapshot of pipeline state.
type StatusSummary struct {
	SessionsByStatus map[string]int `json:"sessions_by_status"`
	PendingPass2     int            `json:"pending_pass2_entities"`
	ReviewQueueDepth int            `json:"review_queue_depth"`
	RetryQueueDepth  int            `json:"retry_queue_depth"`
}

// SessionFilter narrows ListSessions results.
type SessionFilter struct {
	Status    model.SessionStatus
	PatientID string
	Limit     int
	Offset    int
}
