package runner

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/jdziat/simple-job-runner/pkg/core"
)

// RetryConfig controls how status writes are retried.
type RetryConfig struct {
	// MaxAttempts includes the first attempt.
	// Default: 5
	MaxAttempts int

	// InitialBackoff is the wait after the first failure.
	// Default: 50ms
	InitialBackoff time.Duration

	// MaxBackoff caps the wait between attempts.
	// Default: 2s
	MaxBackoff time.Duration

	// BackoffMultiplier grows the wait after each failure.
	// Default: 2.0
	BackoffMultiplier float64

	// JitterFraction randomizes each wait by up to this fraction.
	// Default: 0.1
	JitterFraction float64
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       5,
		InitialBackoff:    50 * time.Millisecond,
		MaxBackoff:        2 * time.Second,
		BackoffMultiplier: 2.0,
		JitterFraction:    0.1,
	}
}

// retryWithBackoff runs op until it succeeds, fails permanently, or attempts
// run out. It returns the last error.
func retryWithBackoff(ctx context.Context, config RetryConfig, op func() error) error {
	attempts := config.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	backoff := config.InitialBackoff

	var err error
	for attempt := 1; ; attempt++ {
		if err = op(); err == nil || !retryable(err) || attempt >= attempts {
			return err
		}

		wait := backoff + time.Duration(float64(backoff)*config.JitterFraction*(rand.Float64()*2-1))
		if wait < 0 {
			wait = backoff
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}

		backoff = time.Duration(float64(backoff) * config.BackoffMultiplier)
		if backoff > config.MaxBackoff {
			backoff = config.MaxBackoff
		}
	}
}

// retryable reports whether a failed status write is worth repeating.
// A missing job or an ended context will not get better.
func retryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	case errors.Is(err, core.ErrJobNotFound):
		return false
	}
	return true
}
