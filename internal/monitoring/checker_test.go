package monitoring

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/xavierjflanagan/Guardian-sub001/internal/config"
	"github.com/xavierjflanagan/Guardian-sub001/internal/store"
)

func TestChecker_Check_SendsAlerts(t *testing.T) {
	var received atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := config.MonitoringConfig{
		WebhookURL:          srv.URL,
		RetryQueueThreshold: 10,
	}
	collector := NewCollector(&stubStatusReader{
		summary: &store.StatusSummary{RetryQueueDepth: 25},
	})
	c := NewChecker(collector, NewAlerter(cfg), cfg)

	c.check(context.Background(), zap.NewNop())
	assert.Equal(t, int32(1), received.Load())
}

func TestChecker_Run_StopsOnCancel(t *testing.T) {
	cfg := config.MonitoringConfig{CheckIntervalSecs: 1}
	collector := NewCollector(&stubStatusReader{summary: &store.StatusSummary{}})
	c := NewChecker(collector, NewAlerter(cfg), cfg)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("checker did not stop on context cancel")
	}
}
