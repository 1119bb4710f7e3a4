package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Built-in task kinds.
const (
	KindLog   = "log"
	KindSleep = "sleep"
	KindFail  = "fail"
)

// LogParams configures the log task.
type LogParams struct {
	Message string `json:"message"`
	Level   string `json:"level,omitempty"`
}

// SleepParams configures the sleep task. Duration uses time.ParseDuration syntax.
type SleepParams struct {
	Duration string `json:"duration"`
}

// FailParams configures the fail task.
type FailParams struct {
	Message string `json:"message,omitempty"`
}

// RegisterBuiltins adds the log, sleep and fail kinds to r.
func RegisterBuiltins(r *Registry, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}

	r.Register(KindLog, func(ctx context.Context, p LogParams) error {
		var level slog.Level
		if p.Level != "" {
			if err := level.UnmarshalText([]byte(p.Level)); err != nil {
				return fmt.Errorf("log level %q: %w", p.Level, err)
			}
		}
		logger.Log(ctx, level, p.Message, "task", KindLog)
		return nil
	})

	r.Register(KindSleep, func(ctx context.Context, p SleepParams) error {
		d, err := time.ParseDuration(p.Duration)
		if err != nil {
			return fmt.Errorf("sleep duration: %w", err)
		}
		select {
		case <-time.After(d):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	r.Register(KindFail, func(ctx context.Context, p FailParams) error {
		msg := p.Message
		if msg == "" {
			msg = "task failed on purpose"
		}
		return errors.New(msg)
	})
}
