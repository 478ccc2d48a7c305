package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/xavierjflanagan/Guardian-sub001/internal/model"
	"github.com/xavierjflanagan/Guardian-sub001/internal/resilience"
	"github.com/xavierjflanagan/Guardian-sub001/internal/store"
)

// WorkerConfig tunes the retry queue worker.
type WorkerConfig struct {
	PollInterval time.Duration
	BatchSize    int
}

// DefaultWorkerConfig returns production defaults.
func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{
		PollInterval: time.Minute,
		BatchSize:    20,
	}
}

// Worker drains the durable retry queue: due jobs are re-run through their
// stage's orchestrator, completed on success, and rescheduled with a longer
// delay on repeat failure. Requeued Pass 1 documents run in OCR-only mode
// from their stored artifacts since the original upload bytes are gone.
type Worker struct {
	store  store.Store
	pass1  *Pass1
	pass15 *Pass15
	cfg    WorkerConfig
	log    *zap.Logger
	now    func() time.Time
}

// NewWorker creates a retry worker.
func NewWorker(st store.Store, pass1 *Pass1, pass15 *Pass15, cfg WorkerConfig) *Worker {
	if cfg.PollInterval <= 0 {
		cfg = DefaultWorkerConfig()
	}
	return &Worker{
		store:  st,
		pass1:  pass1,
		pass15: pass15,
		cfg:    cfg,
		log:    zap.L(),
		now:    time.Now,
	}
}

// Run polls until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if _, err := w.Drain(ctx); err != nil {
			w.log.Warn("retry drain failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Drain processes one batch of due jobs and reports how many succeeded.
func (w *Worker) Drain(ctx context.Context) (int, error) {
	jobs, err := w.store.DueRetries(ctx, w.cfg.BatchSize)
	if err != nil {
		return 0, err
	}
	completed := 0
	for _, job := range jobs {
		if ctx.Err() != nil {
			return completed, ctx.Err()
		}
		if w.runJob(ctx, job) {
			completed++
		}
	}
	if len(jobs) > 0 {
		w.log.Info("retry queue drained",
			zap.Int("due", len(jobs)),
			zap.Int("completed", completed),
		)
	}
	return completed, nil
}

func (w *Worker) runJob(ctx context.Context, job resilience.RetryJob) bool {
	var failure error
	terminal := false
	switch job.Stage {
	case StagePass1:
		outcome := w.pass1.processOnce(ctx, Document{
			ShellFileID: job.ShellFileID,
			PatientID:   job.PatientID,
		})
		if outcome.Failed() {
			failure = outcomeError(outcome)
			terminal = !w.pass1.reschedulable(outcome)
			if outcome.SessionID != "" {
				job.SessionID = outcome.SessionID
			}
		}
	case StagePass15:
		_, failure = w.pass15.processOnce(ctx, job.SessionID)
	default:
		w.log.Error("retry job has unknown stage",
			zap.String("job_id", job.ID),
			zap.String("stage", job.Stage),
		)
		return false
	}

	if failure == nil {
		if err := w.store.CompleteRetry(ctx, job.ID); err != nil {
			w.log.Warn("retry completion failed", zap.String("job_id", job.ID), zap.Error(err))
		}
		return true
	}

	if terminal {
		// Replaying cannot change the outcome; burn the remaining attempts
		// so the job stops spending completion calls.
		job.RetryCount = job.MaxRetries
	}
	job.RetryCount++
	job.Error = failure.Error()
	job.ErrorType = resilience.ClassifyError(failure)
	job.LastFailedAt = w.now().UTC()
	job.NextRetryAt = job.LastFailedAt.Add(resilience.NextRetryDelay(job.RetryCount))
	if err := w.store.RescheduleRetry(ctx, job); err != nil {
		w.log.Error("retry reschedule failed", zap.String("job_id", job.ID), zap.Error(err))
	}
	if !job.CanRetry() {
		w.log.Error("retry job exhausted",
			zap.String("job_id", job.ID),
			zap.String("shell_file_id", job.ShellFileID),
			zap.String("stage", job.Stage),
			zap.String("error", job.Error),
		)
		w.recordFailedSession(ctx, job)
	}
	return false
}

// recordFailedSession marks the exhausted job's session as failed so the
// status rollup and failure-rate monitoring see it. Pass 1 jobs whose
// session row was never inserted get a fresh failed row built from the job.
func (w *Worker) recordFailedSession(ctx context.Context, job resilience.RetryJob) {
	var err error
	switch {
	case job.Stage == StagePass1:
		session := model.SessionMetadata{
			SessionID:   job.SessionID,
			ShellFileID: job.ShellFileID,
			PatientID:   job.PatientID,
			StartedAt:   job.CreatedAt,
		}
		if session.SessionID == "" {
			session.SessionID = uuid.NewString()
		}
		err = w.store.SaveFailedSession(ctx, session, job.Error)
	case job.SessionID != "":
		err = w.store.MarkSessionFailed(ctx, job.SessionID, job.Error)
	}
	if err != nil {
		w.log.Warn("failed-session record",
			zap.String("job_id", job.ID),
			zap.String("session_id", job.SessionID),
			zap.Error(err),
		)
	}
}

func outcomeError(outcome DocumentOutcome) error {
	if outcome.Err != nil {
		return outcome.Err
	}
	if outcome.Result != nil && outcome.Result.Error != "" {
		return eris.New(outcome.Result.Error)
	}
	return eris.New("detection failed")
}
