package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jdziat/simple-job-runner/pkg/pool"
	"github.com/jdziat/simple-job-runner/ui"
)

const shutdownTimeout = 30 * time.Second

func serveCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the worker pool and the HTTP interface",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}

	flags := cmd.Flags()
	flags.String("addr", "", "HTTP listen address (env HTTP_ADDR)")
	flags.Int("workers", pool.DefaultWorkers, "number of pool workers (env WORKERS)")
	flags.Int("request-queue-size", 0, "request queue capacity, 0 for unbounded (env REQUEST_QUEUE_SIZE)")
	flags.Int("result-queue-size", 0, "result queue capacity, 0 for unbounded (env RESULT_QUEUE_SIZE)")
	flags.Duration("poll-timeout", pool.DefaultPollTimeout, "idle worker poll timeout (env POLL_TIMEOUT)")
	flags.Duration("submit-timeout", 0, "how long a run waits for queue space, 0 to wait (env SUBMIT_TIMEOUT)")
	flags.StringSlice("cors-origin", nil, "allowed CORS origin, repeatable (env CORS_ORIGINS)")
	return cmd
}

func (a *app) serve(ctx context.Context) error {
	store, closeDB, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeDB()

	// no run survives a restart, so anything still marked running is stale
	if n, err := store.RecoverInterrupted(ctx); err != nil {
		return fmt.Errorf("recover interrupted jobs: %w", err)
	} else if n > 0 {
		a.logger.Warn("marked interrupted jobs as failed", "count", n)
	}

	r := a.newRunner(store)
	d := r.Dispatcher()

	gin.SetMode(gin.ReleaseMode)
	httpServer := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           ui.Handler(r, ui.WithLogger(a.logger), ui.WithCORSOrigins(a.cfg.CORSOrigins...)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return d.Run(gCtx)
	})

	g.Go(func() error {
		a.logger.Info("starting http server", "addr", a.cfg.HTTPAddr, "workers", a.cfg.Workers)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		a.logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("http shutdown", "error", err)
		}
		// Run has stopped, so results are delivered here while the workers finish
		return d.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
