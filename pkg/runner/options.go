package runner

import (
	"log/slog"
	"time"
)

// Option configures a Runner.
type Option interface {
	ApplyRunner(*Config)
}

type optionFunc func(*Config)

func (f optionFunc) ApplyRunner(c *Config) { f(c) }

// Config holds runner configuration.
type Config struct {
	Logger *slog.Logger
	// SubmitTimeout bounds how long RunJob waits for room in a bounded request
	// queue. Zero waits as long as the caller's context allows.
	SubmitTimeout time.Duration
	Retry         RetryConfig
}

// DefaultConfig returns the default runner configuration.
func DefaultConfig() Config {
	return Config{Retry: DefaultRetryConfig()}
}

// WithLogger sets the runner logger.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *Config) {
		c.Logger = l
	})
}

// SubmitTimeout bounds the wait for queue space in RunJob.
func SubmitTimeout(d time.Duration) Option {
	return optionFunc(func(c *Config) {
		if d >= 0 {
			c.SubmitTimeout = d
		}
	})
}

// WithRetry sets how failed status writes are retried.
func WithRetry(rc RetryConfig) Option {
	return optionFunc(func(c *Config) {
		c.Retry = rc
	})
}
