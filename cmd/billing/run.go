package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	apppayment "github.com/gym/backend/internal/application/payment"
	"github.com/gym/backend/internal/infrastructure/scheduler"
	"github.com/spf13/cobra"
)

const jobAll = "all"

func runCmd(bootstrap bootstrapFunc) *cobra.Command {
	var at string

	cmd := &cobra.Command{
		Use:   "run <recurring|installments|all>",
		Short: "Charge everything that is due",
		Long: `Run a billing batch once and print the result as JSON.

Runs take the same cross-process lock as the server's cron trigger, so a
batch already running elsewhere is reported as locked instead of charged twice.

Examples:
  billing run all
  billing run recurring --at 2026-03-15
  billing run installments --at 2026-03-15T06:00:00Z`,
		ValidArgs: []string{apppayment.JobRecurring, apppayment.JobInstallments, jobAll},
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			now, err := parseInstant(at, time.Now())
			if err != nil {
				return err
			}

			a, err := bootstrap()
			if err != nil {
				return err
			}
			defer a.Close()

			runs, err := runJobs(cmd.Context(), a, args[0], now)
			if err != nil {
				return err
			}
			if err := writeJSON(cmd.OutOrStdout(), runs); err != nil {
				return err
			}
			for _, run := range runs {
				if run.Status == scheduler.JobStatusFailed {
					return fmt.Errorf("billing job %s failed: %s", run.Job, run.Error)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&at, "at", "", "billing instant as RFC3339 or YYYY-MM-DD (default now)")
	return cmd
}

// runJobs goes through the billing scheduler so the CLI and the cron
// trigger share job ordering and run bookkeeping
func runJobs(ctx context.Context, a *app, job string, now time.Time) ([]scheduler.JobRun, error) {
	sched, err := scheduler.NewBillingScheduler(scheduler.BillingSchedulerConfig{
		CronSpec: a.cfg.Billing.CronSpec,
		Location: time.UTC,
		Clock:    func() time.Time { return now },
	}, a.recurring, a.installments, a.log)
	if err != nil {
		return nil, err
	}

	if job == jobAll {
		return sched.RunOnce(ctx), nil
	}
	run, err := sched.RunJob(ctx, job)
	if err != nil {
		return nil, err
	}
	return []scheduler.JobRun{run}, nil
}

// parseInstant accepts RFC3339 or a plain date, read as midnight UTC.
// Empty input yields fallback.
func parseInstant(s string, fallback time.Time) (time.Time, error) {
	if s == "" {
		return fallback, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q: want RFC3339 or YYYY-MM-DD", s)
	}
	return t, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
