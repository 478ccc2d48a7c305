package resilience

import "time"

// RetryJob represents a document whose processing exhausted its in-process
// retries and was handed off for durable rescheduling. Transient outages park
// work here instead of losing it.
type RetryJob struct {
	ID           string    `json:"id"`
	ShellFileID  string    `json:"shell_file_id"`
	PatientID    string    `json:"patient_id"`
	SessionID    string    `json:"session_id,omitempty"` // set when the failure happened after session creation
	Stage        string    `json:"stage"`                // "pass1" or "pass1_5"
	Error        string    `json:"error"`
	ErrorType    string    `json:"error_type"` // "transient" or "permanent"
	RetryCount   int       `json:"retry_count"`
	MaxRetries   int       `json:"max_retries"`
	NextRetryAt  time.Time `json:"next_retry_at"`
	CreatedAt    time.Time `json:"created_at"`
	LastFailedAt time.Time `json:"last_failed_at"`
}

// CanRetry returns true if this job hasn't exceeded its max retry count.
func (j *RetryJob) CanRetry() bool {
	return j.RetryCount < j.MaxRetries
}

// ClassifyError categorizes an error as "transient" or "permanent".
func ClassifyError(err error) string {
	if IsTransient(err) {
		return "transient"
	}
	return "permanent"
}

// NextRetryDelay returns the durable-queue delay for a job on its n-th
// requeue: a coarse exponential schedule (5m, 20m, 80m, capped at 6h) rather
// than the in-process backoff, since the queue is polled, not slept on.
func NextRetryDelay(retryCount int) time.Duration {
	d := 5 * time.Minute
	for i := 0; i < retryCount; i++ {
		d *= 4
		if d >= 6*time.Hour {
			return 6 * time.Hour
		}
	}
	return d
}
