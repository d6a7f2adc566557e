package infra

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryConfig holds configuration for retry logic
type RetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
	}
}

// StatusError is an unexpected HTTP response from an upstream API.
type StatusError struct {
	Service    string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s API error %d: %s", e.Service, e.StatusCode, e.Body)
}

// Retryable reports whether the request may succeed if sent again.
func (e *StatusError) Retryable() bool {
	return IsRetryableHTTPStatus(e.StatusCode)
}

// WithRetry runs fn with exponential backoff until it succeeds, the attempts
// are used up, or ctx ends. Context errors and non-retryable StatusErrors
// stop immediately.
func WithRetry(ctx context.Context, cfg RetryConfig, fn func() error) error {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = cfg.InitialDelay
	eb.MaxInterval = cfg.MaxDelay
	eb.Multiplier = cfg.Multiplier
	eb.RandomizationFactor = 0
	eb.MaxElapsedTime = 0

	var policy backoff.BackOff = eb
	if cfg.MaxAttempts > 0 {
		policy = backoff.WithMaxRetries(eb, uint64(cfg.MaxAttempts-1))
	}

	op := func() error {
		err := fn()
		if err == nil {
			return nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return backoff.Permanent(err)
		}
		var statusErr *StatusError
		if errors.As(err, &statusErr) && !statusErr.Retryable() {
			return backoff.Permanent(err)
		}
		return err
	}

	return backoff.Retry(op, backoff.WithContext(policy, ctx))
}

// IsRetryableHTTPStatus returns true if the HTTP status code is retryable
func IsRetryableHTTPStatus(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests ||
		statusCode == http.StatusServiceUnavailable ||
		statusCode == http.StatusGatewayTimeout ||
		statusCode >= 500
}
