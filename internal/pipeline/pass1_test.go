package pipeline

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/xavierjflanagan/Guardian-sub001/internal/artifact"
	"github.com/xavierjflanagan/Guardian-sub001/internal/detect"
	"github.com/xavierjflanagan/Guardian-sub001/internal/model"
	"github.com/xavierjflanagan/Guardian-sub001/internal/resilience"
)

func sampleOCR() *model.OCRResult {
	return &model.OCRResult{
		Provider:          "google_cloud_vision",
		OverallConfidence: 0.92,
		Pages: []model.OCRPage{
			{PageNumber: 1, Text: "Lisinopril 10mg daily", WidthPx: 800, HeightPx: 1100},
		},
	}
}

func successResult(sessionID string) *model.ProcessingResult {
	return &model.ProcessingResult{
		Success:  true,
		Response: &model.AIResponse{},
		Records: []model.EntityAuditRecord{
			{
				ID:           "rec-1",
				SessionID:    sessionID,
				ShellFileID:  "shell-1",
				PatientID:    "patient-1",
				EntityID:     "ent_001",
				OriginalText: "Lisinopril 10mg",
				Category:     model.CategoryClinicalEvent,
				Subtype:      model.SubtypeMedication,
			},
		},
	}
}

func failedResult(reason string) *model.ProcessingResult {
	return &model.ProcessingResult{
		Success:          false,
		Error:            reason,
		RetryRecommended: true,
	}
}

func newTestPass1(det *mockDetector, arts *mockArtifacts, st *mockStore) *Pass1 {
	return NewPass1(det, arts, st, Pass1Config{Concurrency: 2, MaxRetries: 3})
}

func TestPass1_ProcessDocument_Success(t *testing.T) {
	det := new(mockDetector)
	arts := new(mockArtifacts)
	st := new(mockStore)
	p := newTestPass1(det, arts, st)

	doc := Document{ShellFileID: "shell-1", PatientID: "patient-1", FileData: []byte("img"), MimeType: "image/png"}
	session := model.SessionMetadata{SessionID: "sess-1", ShellFileID: "shell-1", PatientID: "patient-1"}

	arts.On("Load", mock.Anything, "shell-1").Return(sampleOCR(), nil)
	det.On("Detect", mock.Anything, mock.MatchedBy(func(in *detect.DocumentInput) bool {
		return in.ShellFileID == "shell-1" && in.OCR != nil && len(in.FileData) > 0
	})).Return(successResult("sess-1"), session, nil)
	st.On("SaveResults", mock.Anything, mock.MatchedBy(func(p *model.DatabasePayloads) bool {
		return p.Session.ID == "sess-1" && len(p.EntityRecords) == 1
	})).Return(nil)

	outcome := p.ProcessDocument(context.Background(), doc)
	require.False(t, outcome.Failed())
	assert.Equal(t, "sess-1", outcome.SessionID)

	det.AssertExpectations(t)
	st.AssertExpectations(t)
	st.AssertNotCalled(t, "EnqueueRetry", mock.Anything, mock.Anything)
}

func TestPass1_ProcessDocument_OCROnlyUsesEnhancedText(t *testing.T) {
	det := new(mockDetector)
	arts := new(mockArtifacts)
	st := new(mockStore)
	p := newTestPass1(det, arts, st)

	doc := Document{ShellFileID: "shell-1", PatientID: "patient-1"}
	session := model.SessionMetadata{SessionID: "sess-1"}

	arts.On("Load", mock.Anything, "shell-1").Return(sampleOCR(), nil)
	arts.On("LoadEnhanced", mock.Anything, "patient-1", "shell-1").Return("Lisinopril 10mg daily", nil)
	det.On("Detect", mock.Anything, mock.MatchedBy(func(in *detect.DocumentInput) bool {
		return in.Mode() == detect.ModeOCROnly && in.EnhancedText != ""
	})).Return(successResult("sess-1"), session, nil)
	st.On("SaveResults", mock.Anything, mock.Anything).Return(nil)

	outcome := p.ProcessDocument(context.Background(), doc)
	require.False(t, outcome.Failed())
	det.AssertExpectations(t)
}

func TestPass1_ProcessDocument_EnhancedTextFallsBackToPages(t *testing.T) {
	det := new(mockDetector)
	arts := new(mockArtifacts)
	st := new(mockStore)
	p := newTestPass1(det, arts, st)

	doc := Document{ShellFileID: "shell-1", PatientID: "patient-1"}
	session := model.SessionMetadata{SessionID: "sess-1"}

	arts.On("Load", mock.Anything, "shell-1").Return(sampleOCR(), nil)
	arts.On("LoadEnhanced", mock.Anything, "patient-1", "shell-1").Return("", eris.New("bucket: object not found"))
	det.On("Detect", mock.Anything, mock.MatchedBy(func(in *detect.DocumentInput) bool {
		return in.EnhancedText == "Lisinopril 10mg daily"
	})).Return(successResult("sess-1"), session, nil)
	st.On("SaveResults", mock.Anything, mock.Anything).Return(nil)

	outcome := p.ProcessDocument(context.Background(), doc)
	require.False(t, outcome.Failed())
	det.AssertExpectations(t)
}

func TestPass1_ProcessDocument_MissingArtifactNoFileData(t *testing.T) {
	det := new(mockDetector)
	arts := new(mockArtifacts)
	st := new(mockStore)
	p := newTestPass1(det, arts, st)

	arts.On("Load", mock.Anything, "shell-1").Return(nil, artifact.ErrNoArtifact)

	outcome := p.ProcessDocument(context.Background(), Document{ShellFileID: "shell-1", PatientID: "patient-1"})
	require.True(t, outcome.Failed())
	require.Error(t, outcome.Err)
	assert.Contains(t, outcome.Err.Error(), "no artifact")

	det.AssertNotCalled(t, "Detect", mock.Anything, mock.Anything)
	st.AssertNotCalled(t, "EnqueueRetry", mock.Anything, mock.Anything)
}

func TestPass1_ProcessDocument_DetectionFailureParksRetry(t *testing.T) {
	det := new(mockDetector)
	arts := new(mockArtifacts)
	st := new(mockStore)
	p := newTestPass1(det, arts, st)

	doc := Document{ShellFileID: "shell-1", PatientID: "patient-1", FileData: []byte("img"), MimeType: "image/png"}
	session := model.SessionMetadata{SessionID: "sess-1"}

	arts.On("Load", mock.Anything, "shell-1").Return(sampleOCR(), nil)
	det.On("Detect", mock.Anything, mock.Anything).Return(failedResult("provider overloaded"), session, nil)
	st.On("EnqueueRetry", mock.Anything, mock.MatchedBy(func(job resilience.RetryJob) bool {
		return job.Stage == StagePass1 && job.ShellFileID == "shell-1" && job.Error == "provider overloaded" && job.MaxRetries == 3
	})).Return(nil)

	outcome := p.ProcessDocument(context.Background(), doc)
	require.True(t, outcome.Failed())

	st.AssertExpectations(t)
	st.AssertNotCalled(t, "SaveResults", mock.Anything, mock.Anything)
}

func TestPass1_ProcessDocument_TerminalFailureRecordsSession(t *testing.T) {
	det := new(mockDetector)
	arts := new(mockArtifacts)
	st := new(mockStore)
	p := newTestPass1(det, arts, st)

	doc := Document{ShellFileID: "shell-1", PatientID: "patient-1", FileData: []byte("img"), MimeType: "image/png"}
	session := model.SessionMetadata{SessionID: "sess-1", ShellFileID: "shell-1", PatientID: "patient-1"}

	terminal := &model.ProcessingResult{Success: false, Error: "provider request: invalid_request_error"}

	arts.On("Load", mock.Anything, "shell-1").Return(sampleOCR(), nil)
	det.On("Detect", mock.Anything, mock.Anything).Return(terminal, session, nil)
	st.On("SaveFailedSession", mock.Anything, session, "provider request: invalid_request_error").Return(nil)

	outcome := p.ProcessDocument(context.Background(), doc)
	require.True(t, outcome.Failed())

	st.AssertExpectations(t)
	st.AssertNotCalled(t, "EnqueueRetry", mock.Anything, mock.Anything)
	st.AssertNotCalled(t, "SaveResults", mock.Anything, mock.Anything)
}

func TestPass1_ProcessDocument_SaveFailureParksRetry(t *testing.T) {
	det := new(mockDetector)
	arts := new(mockArtifacts)
	st := new(mockStore)
	p := newTestPass1(det, arts, st)

	doc := Document{ShellFileID: "shell-1", PatientID: "patient-1", FileData: []byte("img"), MimeType: "image/png"}
	session := model.SessionMetadata{SessionID: "sess-1", ShellFileID: "shell-1", PatientID: "patient-1"}

	arts.On("Load", mock.Anything, "shell-1").Return(sampleOCR(), nil)
	det.On("Detect", mock.Anything, mock.Anything).Return(successResult("sess-1"), session, nil)
	st.On("SaveResults", mock.Anything, mock.Anything).Return(eris.New("postgres: connection refused"))
	st.On("EnqueueRetry", mock.Anything, mock.MatchedBy(func(job resilience.RetryJob) bool {
		return job.Stage == StagePass1 && job.SessionID == "sess-1"
	})).Return(nil)

	outcome := p.ProcessDocument(context.Background(), doc)
	require.True(t, outcome.Failed())
	require.Error(t, outcome.Err)
	assert.Contains(t, outcome.Err.Error(), "save results")
	st.AssertExpectations(t)
}

func TestPass1_ProcessBatch_IsolatesFailures(t *testing.T) {
	det := new(mockDetector)
	arts := new(mockArtifacts)
	st := new(mockStore)
	p := newTestPass1(det, arts, st)

	docs := []Document{
		{ShellFileID: "shell-ok", PatientID: "patient-1", FileData: []byte("img"), MimeType: "image/png"},
		{ShellFileID: "shell-bad", PatientID: "patient-1"},
	}
	session := model.SessionMetadata{SessionID: "sess-ok"}

	arts.On("Load", mock.Anything, "shell-ok").Return(sampleOCR(), nil)
	arts.On("Load", mock.Anything, "shell-bad").Return(nil, artifact.ErrNoArtifact)
	det.On("Detect", mock.Anything, mock.Anything).Return(successResult("sess-ok"), session, nil)
	st.On("SaveResults", mock.Anything, mock.Anything).Return(nil)

	outcomes := p.ProcessBatch(context.Background(), docs)
	require.Len(t, outcomes, 2)
	assert.False(t, outcomes[0].Failed())
	assert.True(t, outcomes[1].Failed())
	assert.Equal(t, "shell-ok", outcomes[0].Document.ShellFileID)
	assert.Equal(t, "shell-bad", outcomes[1].Document.ShellFileID)
}
