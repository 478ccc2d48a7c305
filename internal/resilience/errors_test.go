package resilience

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestIsTransient_Nil(t *testing.T) {
	if IsTransient(nil) {
		t.Error("nil error should not be transient")
	}
}

func TestIsTransient_TransientError(t *testing.T) {
	err := NewTransientError(errors.New("too many requests"), 429)
	if !IsTransient(err) {
		t.Error("TransientError should be transient")
	}
}

func TestIsTransient_WrappedTransientError(t *testing.T) {
	inner := NewTransientError(errors.New("overloaded"), 529)
	wrapped := fmt.Errorf("completion call: %w", inner)
	if !IsTransient(wrapped) {
		t.Error("wrapped TransientError should be transient")
	}
}

func TestIsTransient_ProviderCodes(t *testing.T) {
	cases := []string{
		"anthropic: overloaded_error: system busy",
		"openai: rate_limit_error",
		"provider returned server_error",
	}
	for _, msg := range cases {
		if !IsTransient(errors.New(msg)) {
			t.Errorf("expected %q to be transient", msg)
		}
	}
}

func TestIsTransient_ValidationErrorIsNot(t *testing.T) {
	if IsTransient(errors.New("missing ocr payload")) {
		t.Error("validation error should not be transient")
	}
}

func TestIsTransient_NetworkPatterns(t *testing.T) {
	if !IsTransient(errors.New("read tcp: connection reset by peer")) {
		t.Error("connection reset should be transient")
	}
	if !IsTransient(errors.New("dial tcp: i/o timeout")) {
		t.Error("i/o timeout should be transient")
	}
}

func TestRetryAfterHint(t *testing.T) {
	err := NewTransientErrorWithHint(errors.New("rate limited"), 429, 12*time.Second)
	if hint := RetryAfterHint(err); hint != 12*time.Second {
		t.Errorf("expected 12s hint, got %v", hint)
	}
	if hint := RetryAfterHint(errors.New("plain")); hint != 0 {
		t.Errorf("expected zero hint, got %v", hint)
	}
}

func TestIsTransientHTTPStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		if !IsTransientHTTPStatus(code) {
			t.Errorf("expected %d to be transient", code)
		}
	}
	for _, code := range []int{200, 400, 401, 403, 404, 422} {
		if IsTransientHTTPStatus(code) {
			t.Errorf("expected %d to be non-transient", code)
		}
	}
}

func TestClassifyError(t *testing.T) {
	if got := ClassifyError(NewTransientError(errors.New("x"), 503)); got != "transient" {
		t.Errorf("expected transient, got %s", got)
	}
	if got := ClassifyError(errors.New("bad mime type")); got != "permanent" {
		t.Errorf("expected permanent, got %s", got)
	}
}

func TestNextRetryDelay(t *testing.T) {
	if d := NextRetryDelay(0); d != 5*time.Minute {
		t.Errorf("expected 5m, got %v", d)
	}
	if d := NextRetryDelay(1); d != 20*time.Minute {
		t.Errorf("expected 20m, got %v", d)
	}
	if d := NextRetryDelay(10); d != 6*time.Hour {
		t.Errorf("expected cap at 6h, got %v", d)
	}
}
