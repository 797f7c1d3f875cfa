package healthcheck

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/hnm/search/internal/metrics"
)

// DefaultBatchLimit caps the number of entries checked per run.
const DefaultBatchLimit = 200

// Store yields entries to check and applies the results.
type Store interface {
	TxRunner
	CountEntries(ctx context.Context) (int, error)
	// EntriesByLastChecked returns up to limit entries, never-checked first,
	// then oldest check first.
	EntriesByLastChecked(ctx context.Context, limit int) ([]Record, error)
}

// Job runs check batches against a store.
type Job struct {
	store      Store
	checker    *Checker
	reconciler *Reconciler
	limit      int
	fraction   float64
	onComplete func(context.Context, Summary)
	logger     *slog.Logger
}

// JobOption configures a Job.
type JobOption func(*Job)

// WithBatchLimit sets the maximum number of entries per run.
func WithBatchLimit(n int) JobOption {
	return func(j *Job) {
		if n > 0 {
			j.limit = n
		}
	}
}

// WithBatchFraction sizes each run as a share of all entries, still capped
// by the batch limit. Zero disables it.
func WithBatchFraction(f float64) JobOption {
	return func(j *Job) {
		if f > 0 && f <= 1 {
			j.fraction = f
		}
	}
}

// WithCompletionHook registers fn to run after every successfully
// reconciled batch, including empty ones.
func WithCompletionHook(fn func(context.Context, Summary)) JobOption {
	return func(j *Job) {
		j.onComplete = fn
	}
}

// WithJobLogger sets a custom logger.
func WithJobLogger(logger *slog.Logger) JobOption {
	return func(j *Job) {
		j.logger = logger
	}
}

// NewJob creates a Job.
func NewJob(store Store, checker *Checker, reconciler *Reconciler, opts ...JobOption) *Job {
	j := &Job{
		store:      store,
		checker:    checker,
		reconciler: reconciler,
		limit:      DefaultBatchLimit,
	}
	for _, opt := range opts {
		opt(j)
	}
	if j.logger == nil {
		j.logger = slog.Default()
	}
	return j
}

// BatchSize returns the number of entries one run checks out of total.
func (j *Job) BatchSize(total int) int {
	if j.fraction <= 0 {
		return j.limit
	}
	size := int(math.Ceil(float64(total) * j.fraction))
	if size > j.limit {
		return j.limit
	}
	return size
}

// RunOnce checks the oldest batch of entries and reconciles the outcomes.
func (j *Job) RunOnce(ctx context.Context) (Summary, error) {
	logger := j.logger.With("run_id", uuid.NewString())
	start := time.Now()

	limit := j.limit
	if j.fraction > 0 {
		total, err := j.store.CountEntries(ctx)
		if err != nil {
			metrics.ObserveCheckBatch("error")
			return Summary{}, fmt.Errorf("count entries: %w", err)
		}
		limit = j.BatchSize(total)
	}
	if limit == 0 {
		j.complete(ctx, Summary{})
		return Summary{}, nil
	}

	records, err := j.store.EntriesByLastChecked(ctx, limit)
	if err != nil {
		metrics.ObserveCheckBatch("error")
		return Summary{}, fmt.Errorf("load entries: %w", err)
	}
	if len(records) == 0 {
		logger.Debug("no entries to check")
		j.complete(ctx, Summary{})
		return Summary{}, nil
	}

	logger.Info("checking entries", "count", len(records))

	outcomes, err := j.checker.Check(ctx, records)
	if err != nil {
		metrics.ObserveCheckBatch("canceled")
		return Summary{}, fmt.Errorf("check entries: %w", err)
	}

	summary, err := j.reconciler.Reconcile(ctx, outcomes)
	if err != nil {
		metrics.ObserveCheckBatch("error")
		return Summary{}, err
	}
	metrics.ObserveCheckBatch("ok")

	logger.Info("check batch complete",
		"healthy", outcomes.Count(StatusHealthy),
		"dead", outcomes.Count(StatusDead),
		"malformed", outcomes.Count(StatusMalformed),
		"touched", summary.Touched,
		"deleted", summary.Deleted,
		"elapsed", time.Since(start),
	)
	j.complete(ctx, summary)
	return summary, nil
}

func (j *Job) complete(ctx context.Context, summary Summary) {
	if j.onComplete != nil {
		j.onComplete(ctx, summary)
	}
}

// Run executes RunOnce immediately and then on every interval tick until
// ctx is done. A failed run is logged and retried on the next tick.
func (j *Job) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := j.RunOnce(ctx); err != nil && ctx.Err() == nil {
			j.logger.Error("check batch failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
