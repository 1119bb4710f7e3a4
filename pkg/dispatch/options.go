package dispatch

import (
	"log/slog"

	"github.com/jdziat/simple-job-runner/pkg/pool"
)

// Option configures a Dispatcher.
type Option interface {
	ApplyDispatcher(*Config)
}

type optionFunc func(*Config)

func (f optionFunc) ApplyDispatcher(c *Config) { f(c) }

// Config holds dispatcher configuration.
type Config struct {
	Logger *slog.Logger
	// OnFailure handles failed requests that carry no failure callback of
	// their own. Defaults to logging the error and any panic stack.
	OnFailure pool.FailureFunc
}

// WithLogger sets the dispatcher logger.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *Config) {
		c.Logger = l
	})
}

// WithDefaultFailure replaces the fallback failure callback.
func WithDefaultFailure(fn pool.FailureFunc) Option {
	return optionFunc(func(c *Config) {
		c.OnFailure = fn
	})
}
