// Package ui provides the HTTP presentation layer for managing and running
// jobs: a JSON API and a server-rendered job list.
package ui

import (
	"log/slog"
	"net/http"
)

// Option configures the UI handler.
type Option interface {
	apply(*config)
}

type optionFunc func(*config)

func (f optionFunc) apply(c *config) { f(c) }

type config struct {
	middleware  func(http.Handler) http.Handler
	corsOrigins []string
	logger      *slog.Logger
}

// WithMiddleware wraps the handler with middleware (auth, etc.).
func WithMiddleware(mw func(http.Handler) http.Handler) Option {
	return optionFunc(func(c *config) {
		c.middleware = mw
	})
}

// WithCORSOrigins enables CORS for the given origins. Use "*" to allow any.
func WithCORSOrigins(origins ...string) Option {
	return optionFunc(func(c *config) {
		c.corsOrigins = append(c.corsOrigins, origins...)
	})
}

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *config) {
		c.logger = l
	})
}
