package adapterclient

import (
	"time"

	"github.com/sethvargo/go-retry"
)

// RetryConfig controls the adapter client's retry wrapper.
type RetryConfig struct {
	MaxAttempts int
	RetryDelay  time.Duration
}

// DefaultRetryConfig matches the documented defaults: up to three
// attempts, one second of base delay.
var DefaultRetryConfig = RetryConfig{
	MaxAttempts: 3,
	RetryDelay:  1 * time.Second,
}

// linearBackoff waits retryDelay * attemptNumber between attempts
// (attempt numbers start at 1), not the constant or exponential curve
// go-retry ships by default.
func linearBackoff(retryDelay time.Duration) retry.Backoff {
	attempt := 0
	return retry.BackoffFunc(func() (time.Duration, bool) {
		attempt++
		return retryDelay * time.Duration(attempt), false
	})
}

// isPermanentStatus reports whether an HTTP status code indicates a
// terminal client error the retry wrapper must not retry.
func isPermanentStatus(statusCode int) bool {
	return statusCode >= 400 && statusCode < 500
}

// isRetryableStatus reports whether an HTTP status code indicates a
// transient server-side failure worth retrying.
func isRetryableStatus(statusCode int) bool {
	return statusCode >= 500
}
