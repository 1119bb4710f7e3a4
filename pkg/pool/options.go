package pool

import (
	"log/slog"
	"time"

	"github.com/jdziat/simple-job-runner/pkg/security"
)

// Default pool settings.
const (
	DefaultWorkers     = 10
	DefaultPollTimeout = 5 * time.Second
)

// Option configures a Pool.
type Option interface {
	ApplyPool(*Config)
}

type optionFunc func(*Config)

func (f optionFunc) ApplyPool(c *Config) { f(c) }

// Config holds pool configuration. It is fixed once the pool is built.
type Config struct {
	Workers         int
	RequestCapacity int // 0 = unbounded
	ResultCapacity  int // 0 = unbounded
	PollTimeout     time.Duration
	Logger          *slog.Logger
}

// DefaultConfig returns the default pool configuration.
func DefaultConfig() Config {
	return Config{
		Workers:     DefaultWorkers,
		PollTimeout: DefaultPollTimeout,
	}
}

// Workers sets the number of worker goroutines.
// Values are clamped to [1, MaxConcurrency].
func Workers(n int) Option {
	return optionFunc(func(c *Config) {
		c.Workers = security.ClampConcurrency(n)
	})
}

// RequestCapacity bounds the request queue. Zero means unbounded.
func RequestCapacity(n int) Option {
	return optionFunc(func(c *Config) {
		c.RequestCapacity = security.ClampCapacity(n)
	})
}

// ResultCapacity bounds the result queue. Zero means unbounded.
// Workers block on a full result queue until results are drained.
func ResultCapacity(n int) Option {
	return optionFunc(func(c *Config) {
		c.ResultCapacity = security.ClampCapacity(n)
	})
}

// PollTimeout sets how long an idle worker waits before re-checking for
// shutdown.
func PollTimeout(d time.Duration) Option {
	return optionFunc(func(c *Config) {
		if d > 0 {
			c.PollTimeout = d
		}
	})
}

// WithLogger sets the pool logger.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *Config) {
		c.Logger = l
	})
}
