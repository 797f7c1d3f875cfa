package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/hnm/search/internal/fetch"
	"github.com/hnm/search/internal/healthcheck"
)

// lastCheckKey is the meta key holding the time of the last completed check.
const lastCheckKey = "last_check"

// newCheckJob wires prober, checker, reconciler and store into a Job. The
// returned function releases the prober's connections.
func newCheckJob(e *env) (*healthcheck.Job, func()) {
	limiter := fetch.NewRateLimiter(e.cfg.Check.HostDelay)
	prober := fetch.NewProber(e.cfg.UserAgent, e.cfg.Check.Timeout, limiter)

	checker := healthcheck.NewChecker(prober,
		healthcheck.WithConcurrency(e.cfg.Check.Concurrency),
		healthcheck.WithCheckerLogger(e.logger),
	)
	reconciler := healthcheck.NewReconciler(e.store,
		healthcheck.WithReconcilerLogger(e.logger),
	)
	job := healthcheck.NewJob(e.store, checker, reconciler,
		healthcheck.WithBatchLimit(e.cfg.Check.BatchLimit),
		healthcheck.WithBatchFraction(e.cfg.Check.BatchFraction),
		healthcheck.WithJobLogger(e.logger),
		healthcheck.WithCompletionHook(func(ctx context.Context, _ healthcheck.Summary) {
			if err := e.store.SetMeta(ctx, lastCheckKey, time.Now().UTC().Format(time.RFC3339)); err != nil {
				e.logger.Warn("failed to record check time", "error", err)
			}
		}),
	)
	return job, prober.Close
}

func (a *app) newCheckCmd() *cobra.Command {
	var loop bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Probe indexed URLs and remove the dead ones",
		Long: `Check sends a HEAD request to the least recently checked entries.
Entries answering 2xx or 3xx are marked as checked; entries that fail, answer
4xx/5xx or have malformed URLs are removed. All changes of one batch are
applied in a single transaction.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := a.setup()
			if err != nil {
				return err
			}
			defer e.Close()

			job, release := newCheckJob(e)
			defer release()

			if loop {
				e.logger.Info("starting check loop", "interval", e.cfg.Check.Interval)
				return job.Run(cmd.Context(), e.cfg.Check.Interval)
			}

			summary, err := job.RunOnce(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Checked entries: %d kept, %d removed\n", summary.Touched, summary.Deleted)
			return nil
		},
	}

	cmd.Flags().BoolVar(&loop, "loop", false, "Keep checking every check.interval until interrupted")
	return cmd
}
