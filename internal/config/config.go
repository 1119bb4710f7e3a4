// Package config loads process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds runtime configuration for the jobrunner binary.
type Config struct {
	DatabaseDriver   string
	DatabaseDSN      string
	DatabaseMaxConns int // 0 = driver default
	HTTPAddr         string
	Workers          int
	RequestQueueSize int // 0 = unbounded
	ResultQueueSize  int // 0 = unbounded
	PollTimeout      time.Duration
	SubmitTimeout    time.Duration
	LogLevel         string
	LogFormat        string
	CORSOrigins      []string
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		DatabaseDriver: "sqlite",
		DatabaseDSN:    "jobs.db",
		HTTPAddr:       ":8080",
		Workers:        10,
		PollTimeout:    5 * time.Second,
		LogLevel:       "info",
		LogFormat:      "text",
	}
}

// Load reads the given dotenv files, or .env when none are named, and then
// the environment. Missing dotenv files are ignored and variables already set
// in the environment win over dotenv values.
func Load(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: load dotenv: %w", err)
	}

	cfg := Default()
	cfg.DatabaseDriver = getEnv("DATABASE_DRIVER", cfg.DatabaseDriver)
	cfg.DatabaseDSN = getEnv("DATABASE_DSN", cfg.DatabaseDSN)
	cfg.HTTPAddr = getEnv("HTTP_ADDR", cfg.HTTPAddr)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getEnv("LOG_FORMAT", cfg.LogFormat)
	cfg.CORSOrigins = splitList(getEnv("CORS_ORIGINS", ""))

	var err error
	if cfg.DatabaseMaxConns, err = getInt("DATABASE_MAX_CONNS", cfg.DatabaseMaxConns); err != nil {
		return nil, err
	}
	if cfg.Workers, err = getInt("WORKERS", cfg.Workers); err != nil {
		return nil, err
	}
	if cfg.RequestQueueSize, err = getInt("REQUEST_QUEUE_SIZE", cfg.RequestQueueSize); err != nil {
		return nil, err
	}
	if cfg.ResultQueueSize, err = getInt("RESULT_QUEUE_SIZE", cfg.ResultQueueSize); err != nil {
		return nil, err
	}
	if cfg.PollTimeout, err = getDuration("POLL_TIMEOUT", cfg.PollTimeout); err != nil {
		return nil, err
	}
	if cfg.SubmitTimeout, err = getDuration("SUBMIT_TIMEOUT", cfg.SubmitTimeout); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the runner cannot use.
func (c *Config) Validate() error {
	switch strings.ToLower(c.DatabaseDriver) {
	case "sqlite", "sqlite3", "postgres", "postgresql":
	default:
		return fmt.Errorf("config: unsupported DATABASE_DRIVER %q", c.DatabaseDriver)
	}
	if c.DatabaseDSN == "" {
		return errors.New("config: DATABASE_DSN is required")
	}
	if c.DatabaseMaxConns < 0 {
		return fmt.Errorf("config: DATABASE_MAX_CONNS must not be negative, got %d", c.DatabaseMaxConns)
	}
	if c.Workers < 1 {
		return fmt.Errorf("config: WORKERS must be at least 1, got %d", c.Workers)
	}
	if c.RequestQueueSize < 0 || c.ResultQueueSize < 0 {
		return errors.New("config: queue sizes must not be negative")
	}
	if c.PollTimeout <= 0 {
		return fmt.Errorf("config: POLL_TIMEOUT must be positive, got %s", c.PollTimeout)
	}
	if c.SubmitTimeout < 0 {
		return fmt.Errorf("config: SUBMIT_TIMEOUT must not be negative, got %s", c.SubmitTimeout)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("config: LOG_FORMAT must be text or json, got %q", c.LogFormat)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return n, nil
}

// getDuration accepts Go durations ("750ms") and plain seconds ("5").
func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
