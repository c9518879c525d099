package mcp

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"net"
	"net/http"
	"time"

	"github.com/JNZader/prreviewer/internal/logger"
)

// RetryConfig configures retry behavior
type RetryConfig struct {
	// MaxAttempts is the total number of attempts, including the first
	MaxAttempts int
	// InitialDelay is the delay before the second attempt
	InitialDelay time.Duration
	// MaxDelay is the maximum delay between attempts
	MaxDelay time.Duration
	// Multiplier is the backoff multiplier
	Multiplier float64
}

// DefaultRetryConfig returns default retry configuration
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  3,
		InitialDelay: time.Second,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
	}
}

func (c RetryConfig) delay(attempt int) time.Duration {
	mult := c.Multiplier
	if mult <= 0 {
		mult = 2.0
	}
	d := time.Duration(float64(c.InitialDelay) * math.Pow(mult, float64(attempt-1)))
	if c.MaxDelay > 0 && d > c.MaxDelay {
		d = c.MaxDelay
	}
	return d
}

// jittered returns a random delay in [d/2, d].
func jittered(d time.Duration) time.Duration {
	if d <= 1 {
		return d
	}
	half := d / 2
	return half + time.Duration(rand.Int64N(int64(d-half)+1))
}

// StatusError is returned for a non-200 response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("MCP request failed with status %d: %s", e.StatusCode, e.Body)
}

// IsRetryableStatusCode reports whether a response with this status is
// worth retrying: 408, 429 and every 5xx.
func IsRetryableStatusCode(statusCode int) bool {
	switch {
	case statusCode == http.StatusRequestTimeout, statusCode == http.StatusTooManyRequests:
		return true
	default:
		return statusCode >= 500 && statusCode <= 599
	}
}

// IsRetryableError reports whether a request failing with err may succeed
// when sent again. Context cancellation is never retried.
func IsRetryableError(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return IsRetryableStatusCode(statusErr.StatusCode)
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// withRetry runs fn until it succeeds, fails with a non-retryable error or
// runs out of attempts.
func withRetry[T any](ctx context.Context, cfg RetryConfig, log *logger.Logger, fn func() (T, error)) (T, error) {
	var zero T
	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !IsRetryableError(err) {
			return zero, err
		}
		if attempt == attempts {
			break
		}

		delay := jittered(cfg.delay(attempt))
		log.Debug("attempt %d/%d failed, retrying in %s: %v", attempt, attempts, delay, err)

		select {
		case <-ctx.Done():
			return zero, fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-time.After(delay):
		}
	}

	return zero, fmt.Errorf("max attempts (%d) exceeded: %w", attempts, lastErr)
}
