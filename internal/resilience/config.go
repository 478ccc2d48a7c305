package resilience

import "time"

// Per-service retry profiles. Completion calls tolerate long waits because
// the provider's retry-after hints during rate limiting regularly reach tens
// of seconds; database and storage calls fail over faster.

// CompletionRetryConfig is the profile for vision/text completion calls.
func CompletionRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    4,
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     60 * time.Second,
		Multiplier:     2.0,
	}
}

// EmbeddingRetryConfig is the profile for embedding calls.
func EmbeddingRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     20 * time.Second,
		Multiplier:     2.0,
	}
}

// StorageRetryConfig is the profile for object-storage uploads/downloads.
func StorageRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: 250 * time.Millisecond,
		MaxBackoff:     10 * time.Second,
		Multiplier:     2.0,
	}
}

// DatabaseRetryConfig is the profile for relational reads/writes.
func DatabaseRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
		Multiplier:     2.0,
	}
}
