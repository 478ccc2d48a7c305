package pipeline

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/xavierjflanagan/Guardian-sub001/internal/detect"
	"github.com/xavierjflanagan/Guardian-sub001/internal/model"
	"github.com/xavierjflanagan/Guardian-sub001/internal/resilience"
	"github.com/xavierjflanagan/Guardian-sub001/internal/store"
)

type mockDetector struct{ mock.Mock }

func (m *mockDetector) Detect(ctx context.Context, in *detect.DocumentInput) (*model.ProcessingResult, model.SessionMetadata, error) {
	args := m.Called(ctx, in)
	var result *model.ProcessingResult
	if args.Get(0) != nil {
		result = args.Get(0).(*model.ProcessingResult)
	}
	return result, args.Get(1).(model.SessionMetadata), args.Error(2)
}

type mockArtifacts struct{ mock.Mock }

func (m *mockArtifacts) Load(ctx context.Context, documentID string) (*model.OCRResult, error) {
	args := m.Called(ctx, documentID)
	var result *model.OCRResult
	if args.Get(0) != nil {
		result = args.Get(0).(*model.OCRResult)
	}
	return result, args.Error(1)
}

func (m *mockArtifacts) LoadEnhanced(ctx context.Context, patientID, documentID string) (string, error) {
	args := m.Called(ctx, patientID, documentID)
	return args.String(0), args.Error(1)
}

type mockResolver struct{ mock.Mock }

func (m *mockResolver) ResolveBatch(ctx context.Context, sessionID string, recs []model.EntityAuditRecord) []model.CandidateResult {
	args := m.Called(ctx, sessionID, recs)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]model.CandidateResult)
}

type mockStore struct{ mock.Mock }

func (m *mockStore) SaveResults(ctx context.Context, payloads *model.DatabasePayloads) error {
	return m.Called(ctx, payloads).Error(0)
}

func (m *mockStore) MarkSessionFailed(ctx context.Context, sessionID, reason string) error {
	return m.Called(ctx, sessionID, reason).Error(0)
}

func (m *mockStore) SaveFailedSession(ctx context.Context, session model.SessionMetadata, reason string) error {
	return m.Called(ctx, session, reason).Error(0)
}

func (m *mockStore) GetSession(ctx context.Context, sessionID string) (*model.ProcessingSession, error) {
	args := m.Called(ctx, sessionID)
	var sess *model.ProcessingSession
	if args.Get(0) != nil {
		sess = args.Get(0).(*model.ProcessingSession)
	}
	return sess, args.Error(1)
}

func (m *mockStore) ListSessions(ctx context.Context, filter store.SessionFilter) ([]model.ProcessingSession, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.ProcessingSession), args.Error(1)
}

func (m *mockStore) PendingEntities(ctx context.Context, sessionID string) ([]model.EntityAuditRecord, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.EntityAuditRecord), args.Error(1)
}

func (m *mockStore) SaveCandidates(ctx context.Context, results []model.CandidateResult) error {
	return m.Called(ctx, results).Error(0)
}

func (m *mockStore) ImportCatalog(ctx context.Context, regional bool, entries []model.CatalogEntry) (int64, error) {
	args := m.Called(ctx, regional, entries)
	return int64(args.Int(0)), args.Error(1)
}

func (m *mockStore) UpsertArtifact(ctx context.Context, row model.ArtifactIndexRow) error {
	return m.Called(ctx, row).Error(0)
}

func (m *mockStore) GetArtifact(ctx context.Context, documentID string) (*model.ArtifactIndexRow, error) {
	args := m.Called(ctx, documentID)
	var row *model.ArtifactIndexRow
	if args.Get(0) != nil {
		row = args.Get(0).(*model.ArtifactIndexRow)
	}
	return row, args.Error(1)
}

func (m *mockStore) EnqueueRetry(ctx context.Context, job resilience.RetryJob) error {
	return m.Called(ctx, job).Error(0)
}

func (m *mockStore) DueRetries(ctx context.Context, limit int) ([]resilience.RetryJob, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]resilience.RetryJob), args.Error(1)
}

func (m *mockStore) CompleteRetry(ctx context.Context, jobID string) error {
	return m.Called(ctx, jobID).Error(0)
}

func (m *mockStore) RescheduleRetry(ctx context.Context, job resilience.RetryJob) error {
	return m.Called(ctx, job).Error(0)
}

func (m *mockStore) Status(ctx context.Context) (*store.StatusSummary, error) {
	args := m.Called(ctx)
	var summary *store.StatusSummary
	if args.Get(0) != nil {
		summary = args.Get(0).(*store.StatusSummary)
	}
	return summary, args.Error(1)
}

func (m *mockStore) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockStore) Migrate(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockStore) Close() error {
	return m.Called().Error(0)
}
