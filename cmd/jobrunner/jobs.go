package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/jdziat/simple-job-runner/pkg/core"
	"github.com/jdziat/simple-job-runner/pkg/schedule"
)

func createCmd(a *app) *cobra.Command {
	var description, kind, params, every string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Store a new job",
		RunE: func(cmd *cobra.Command, _ []string) error {
			interval, err := schedule.Parse(every)
			if err != nil {
				return err
			}
			if params != "" && !json.Valid([]byte(params)) {
				return errors.New("--params must be valid JSON")
			}

			ctx := cmd.Context()
			store, closeDB, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer closeDB()

			if err := a.newTasks().Validate(kind, []byte(params)); err != nil {
				return err
			}

			job := &core.Job{
				Description: description,
				Kind:        kind,
				Params:      []byte(params),
				Scheduling:  interval,
			}
			if err := store.Create(ctx, job); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), job.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&description, "description", "", "what the job does")
	cmd.Flags().StringVar(&kind, "kind", "", "registered task kind (log, sleep, fail)")
	cmd.Flags().StringVar(&params, "params", "", "task parameters as JSON")
	cmd.Flags().StringVar(&every, "every", "none", "scheduling interval: none, 1, 2, 6 or 12 hours")
	_ = cmd.MarkFlagRequired("description")
	_ = cmd.MarkFlagRequired("kind")
	return cmd
}

func listCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored jobs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			store, closeDB, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer closeDB()

			jobs, err := store.List(ctx)
			if err != nil {
				return fmt.Errorf("list jobs: %w", err)
			}
			if len(jobs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No jobs.")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSTATUS\tKIND\tSCHEDULE\tLAST EXECUTED\tDESCRIPTION")
			for _, job := range jobs {
				last := "never"
				if job.LastExecuted != nil {
					last = job.LastExecuted.Local().Format(time.RFC3339)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					job.ID, job.Status, job.Kind, job.Scheduling, last, job.Description)
			}
			return w.Flush()
		},
	}
}

func runCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "run <job-id>",
		Short: "Run a job in this process and wait for it to finish",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, closeDB, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer closeDB()

			r := a.newRunner(store)
			d := r.Dispatcher()
			defer d.Pool().Shutdown(context.Background())

			if _, err := r.RunJob(ctx, args[0]); err != nil {
				return err
			}
			if err := d.WaitAll(ctx); err != nil {
				return err
			}

			job, err := store.FetchByID(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", job.ID, job.Status)
			if job.Status == core.StatusFailed {
				return fmt.Errorf("job failed: %s", job.LastError)
			}
			return nil
		},
	}
}

func deleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <job-id>",
		Short: "Delete a job that is not running",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, closeDB, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer closeDB()

			return store.Delete(ctx, args[0])
		},
	}
}
