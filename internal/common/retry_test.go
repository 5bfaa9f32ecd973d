package common

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetryOpts(maxAttempts int) RetryOptions {
	return RetryOptions{
		MaxAttempts:  maxAttempts,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestWithRetrySucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0
	err := WithRetry(context.Background(), func() error {
		attempts++
		if attempts < 3 {
			return &RetryableError{Err: errors.New("transient"), Retryable: true}
		}
		return nil
	}, fastRetryOpts(5))

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestWithRetryStopsOnNonRetryable(t *testing.T) {
	permanent := errors.New("permanent")
	attempts := 0

	err := WithRetry(context.Background(), func() error {
		attempts++
		return &RetryableError{Err: permanent, Retryable: false}
	}, fastRetryOpts(5))

	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, attempts, "non-retryable errors fail immediately")
}

func TestWithRetryExhaustsAttempts(t *testing.T) {
	attempts := 0

	err := WithRetry(context.Background(), func() error {
		attempts++
		return &RetryableError{Err: errors.New("still failing"), Retryable: true}
	}, fastRetryOpts(3))

	assert.ErrorIs(t, err, ErrMaxRetries)
	assert.Equal(t, 3, attempts)
}

func TestWithRetryHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	attempts := 0
	err := WithRetry(ctx, func() error {
		attempts++
		cancel()
		return &RetryableError{Err: errors.New("transient"), Retryable: true}
	}, RetryOptions{MaxAttempts: 5, InitialDelay: time.Minute})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, attempts, "no further attempts after cancellation")
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "rate limit", err: ErrRateLimit, want: true},
		{name: "concurrent update", err: ErrConcurrentUpdate, want: true},
		{name: "deadline exceeded", err: context.DeadlineExceeded, want: true},
		{name: "retryable wrapper", err: &RetryableError{Err: errors.New("x"), Retryable: true}, want: true},
		{name: "non-retryable wrapper", err: &RetryableError{Err: errors.New("x"), Retryable: false}, want: false},
		{name: "plain error", err: errors.New("x"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}
