package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/jdziat/simple-job-runner/internal/config"
	"github.com/jdziat/simple-job-runner/pkg/dispatch"
	"github.com/jdziat/simple-job-runner/pkg/pool"
	"github.com/jdziat/simple-job-runner/pkg/runner"
	"github.com/jdziat/simple-job-runner/pkg/storage"
	"github.com/jdziat/simple-job-runner/pkg/task"
)

// app carries what every subcommand needs once configuration is loaded.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	var envFile string

	root := &cobra.Command{
		Use:           "jobrunner",
		Short:         "Run stored jobs on a pool of background workers",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			var files []string
			if envFile != "" {
				files = append(files, envFile)
			}
			cfg, err := config.Load(files...)
			if err != nil {
				return err
			}
			if err := applyFlags(cmd, cfg); err != nil {
				return err
			}
			a.cfg = cfg

			a.logger, err = newLogger(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)
			if err != nil {
				return err
			}
			slog.SetDefault(a.logger)
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&envFile, "env-file", "", "dotenv file to load (default .env)")
	flags.String("db-driver", "", "database driver: sqlite or postgres (env DATABASE_DRIVER)")
	flags.String("db-dsn", "", "database DSN (env DATABASE_DSN)")
	flags.Int("db-max-conns", 0, "maximum open database connections (env DATABASE_MAX_CONNS)")
	flags.String("log-level", "", "log level: debug, info, warn, error (env LOG_LEVEL)")
	flags.String("log-format", "", "log format: text or json (env LOG_FORMAT)")

	root.AddCommand(serveCmd(a))
	root.AddCommand(createCmd(a))
	root.AddCommand(listCmd(a))
	root.AddCommand(runCmd(a))
	root.AddCommand(deleteCmd(a))
	return root
}

// applyFlags overrides cfg with the flags the user set explicitly.
func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	str := func(name string, dst *string) {
		if flags.Changed(name) {
			*dst, _ = flags.GetString(name)
		}
	}
	str("db-driver", &cfg.DatabaseDriver)
	str("db-dsn", &cfg.DatabaseDSN)
	str("log-level", &cfg.LogLevel)
	str("log-format", &cfg.LogFormat)
	if flags.Changed("db-max-conns") {
		cfg.DatabaseMaxConns, _ = flags.GetInt("db-max-conns")
	}

	// serve-only flags
	if flags.Lookup("addr") != nil {
		str("addr", &cfg.HTTPAddr)
		if flags.Changed("workers") {
			cfg.Workers, _ = flags.GetInt("workers")
		}
		if flags.Changed("request-queue-size") {
			cfg.RequestQueueSize, _ = flags.GetInt("request-queue-size")
		}
		if flags.Changed("result-queue-size") {
			cfg.ResultQueueSize, _ = flags.GetInt("result-queue-size")
		}
		if flags.Changed("poll-timeout") {
			cfg.PollTimeout, _ = flags.GetDuration("poll-timeout")
		}
		if flags.Changed("submit-timeout") {
			cfg.SubmitTimeout, _ = flags.GetDuration("submit-timeout")
		}
		if flags.Changed("cors-origin") {
			cfg.CORSOrigins, _ = flags.GetStringSlice("cors-origin")
		}
	}
	return cfg.Validate()
}

func newLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("log level %q: %w", level, err)
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

// openStore connects to the configured database and migrates it.
func (a *app) openStore(ctx context.Context) (*storage.GormStorage, func(), error) {
	var opts []storage.ConnOption
	if a.cfg.DatabaseMaxConns > 0 {
		opts = append(opts, storage.MaxOpenConns(a.cfg.DatabaseMaxConns))
	}
	db, err := storage.Open(a.cfg.DatabaseDriver, a.cfg.DatabaseDSN, opts...)
	if err != nil {
		return nil, nil, err
	}
	closeDB := func() { closeGorm(db) }

	s := storage.NewGormStorage(db)
	if err := s.Migrate(ctx); err != nil {
		closeDB()
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}
	return s, closeDB, nil
}

func closeGorm(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func (a *app) newTasks() *task.Registry {
	tasks := task.NewRegistry()
	task.RegisterBuiltins(tasks, a.logger)
	return tasks
}

// newRunner builds the pool, dispatcher and runner from configuration.
func (a *app) newRunner(store *storage.GormStorage) *runner.Runner {
	tasks := a.newTasks()
	p := pool.New(
		pool.Workers(a.cfg.Workers),
		pool.RequestCapacity(a.cfg.RequestQueueSize),
		pool.ResultCapacity(a.cfg.ResultQueueSize),
		pool.PollTimeout(a.cfg.PollTimeout),
		pool.WithLogger(a.logger),
	)
	d := dispatch.New(p, dispatch.WithLogger(a.logger))
	return runner.New(store, d, tasks,
		runner.WithLogger(a.logger),
		runner.SubmitTimeout(a.cfg.SubmitTimeout),
	)
}
