package infra_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"voice-recorder/internal/infra"
)

func fastRetry() infra.RetryConfig {
	return infra.RetryConfig{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2,
	}
}

func TestWithRetry_SucceedsAfterTransientErrors(t *testing.T) {
	calls := 0
	err := infra.WithRetry(context.Background(), fastRetry(), func() error {
		calls++
		if calls < 3 {
			return errors.New("connection reset")
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestWithRetry_GivesUpAfterMaxAttempts(t *testing.T) {
	calls := 0
	err := infra.WithRetry(context.Background(), fastRetry(), func() error {
		calls++
		return &infra.StatusError{Service: "test", StatusCode: http.StatusServiceUnavailable}
	})

	assert.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestWithRetry_PermanentStatus(t *testing.T) {
	calls := 0
	err := infra.WithRetry(context.Background(), fastRetry(), func() error {
		calls++
		return &infra.StatusError{Service: "test", StatusCode: http.StatusBadRequest, Body: "bad"}
	})

	var statusErr *infra.StatusError
	assert.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusBadRequest, statusErr.StatusCode)
	assert.Equal(t, 1, calls)
}

func TestWithRetry_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := infra.WithRetry(ctx, fastRetry(), func() error {
		calls++
		return context.Canceled
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestIsRetryableHTTPStatus(t *testing.T) {
	tests := []struct {
		code int
		want bool
	}{
		{http.StatusOK, false},
		{http.StatusBadRequest, false},
		{http.StatusUnauthorized, false},
		{http.StatusTooManyRequests, true},
		{http.StatusInternalServerError, true},
		{http.StatusBadGateway, true},
		{http.StatusServiceUnavailable, true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, infra.IsRetryableHTTPStatus(tt.code), "status %d", tt.code)
	}
}
