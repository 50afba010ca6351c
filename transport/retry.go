package transport

import "time"

// RetryConfig bounds the retries performed on connection-level failures.
// HTTP status codes are never retried here: callers decide what a 4xx or 5xx means.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int

	// BackoffBase is the initial backoff duration.
	BackoffBase time.Duration

	// BackoffMultiplier is applied to backoff on each retry.
	BackoffMultiplier float64

	// MaxBackoff caps the maximum backoff duration.
	MaxBackoff time.Duration
}

// DefaultRetryConfig allows three retries after the first attempt.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       4,
		BackoffBase:       250 * time.Millisecond,
		BackoffMultiplier: 2.0,
		MaxBackoff:        5 * time.Second,
	}
}

// SocketRetries returns a config performing n retries after the first attempt.
func SocketRetries(n int) RetryConfig {
	cfg := DefaultRetryConfig()
	if n < 0 {
		n = 0
	}
	cfg.MaxAttempts = n + 1
	return cfg
}
