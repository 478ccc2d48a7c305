package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/xavierjflanagan/Guardian-sub001/internal/model"
	"github.com/xavierjflanagan/Guardian-sub001/internal/store"
)

// HealthSnapshot holds a point-in-time view of pipeline health.
type HealthSnapshot struct {
	SessionsTotal      int     `json:"sessions_total"`
	SessionsCompleted  int     `json:"sessions_completed"`
	SessionsFailed     int     `json:"sessions_failed"`
	SessionsProcessing int     `json:"sessions_processing"`
	SessionFailRate    float64 `json:"session_fail_rate"`

	PendingPass2     int `json:"pending_pass2_entities"`
	ReviewQueueDepth int `json:"review_queue_depth"`
	RetryQueueDepth  int `json:"retry_queue_depth"`

	CollectedAt time.Time `json:"collected_at"`
}

// StatusReader abstracts the store method the collector needs.
type StatusReader interface {
	Status(ctx context.Context) (*store.StatusSummary, error)
}

// Collector gathers health metrics from the store.
type Collector struct {
	store StatusReader
}

// NewCollector creates a new health collector.
func NewCollector(st StatusReader) *Collector {
	return &Collector{store: st}
}

// Collect gathers a snapshot of pipeline health.
func (c *Collector) Collect(ctx context.Context) (*HealthSnapshot, error) {
	summary, err := c.store.Status(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: collect status")
	}

	snap := &HealthSnapshot{
		SessionsCompleted:  summary.SessionsByStatus[string(model.SessionCompleted)],
		SessionsFailed:     summary.SessionsByStatus[string(model.SessionFailed)],
		SessionsProcessing: summary.SessionsByStatus[string(model.SessionProcessing)],
		PendingPass2:       summary.PendingPass2,
		ReviewQueueDepth:   summary.ReviewQueueDepth,
		RetryQueueDepth:    summary.RetryQueueDepth,
		CollectedAt:        time.Now().UTC(),
	}
	for _, n := range summary.SessionsByStatus {
		snap.SessionsTotal += n
	}

	finished := snap.SessionsCompleted + snap.SessionsFailed
	if finished > 0 {
		snap.SessionFailRate = float64(snap.SessionsFailed) / float64(finished)
	}

	return snap, nil
}
