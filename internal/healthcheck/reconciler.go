package healthcheck

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Mutator applies reconciliation changes inside a transaction.
type Mutator interface {
	TouchLastChecked(ctx context.Context, id int64, checkedAt time.Time) error
	Delete(ctx context.Context, id int64) error
}

// TxRunner runs fn inside a single transaction. The transaction commits when
// fn returns nil and rolls back otherwise.
type TxRunner interface {
	InTx(ctx context.Context, fn func(Mutator) error) error
}

// Summary counts the changes of one reconciliation.
type Summary struct {
	Touched int
	Deleted int
}

// Reconciler applies a batch of outcomes to the store atomically.
type Reconciler struct {
	store  TxRunner
	now    func() time.Time
	logger *slog.Logger
}

// ReconcilerOption configures a Reconciler.
type ReconcilerOption func(*Reconciler)

// WithClock overrides the time source used for last-checked timestamps.
func WithClock(now func() time.Time) ReconcilerOption {
	return func(r *Reconciler) {
		r.now = now
	}
}

// WithReconcilerLogger sets a custom logger.
func WithReconcilerLogger(logger *slog.Logger) ReconcilerOption {
	return func(r *Reconciler) {
		r.logger = logger
	}
}

// NewReconciler creates a Reconciler writing to store.
func NewReconciler(store TxRunner, opts ...ReconcilerOption) *Reconciler {
	r := &Reconciler{
		store: store,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

// Reconcile refreshes the last-checked time of healthy records and deletes
// dead and malformed ones. Either every change is applied or none is.
func (r *Reconciler) Reconcile(ctx context.Context, outcomes Outcomes) (Summary, error) {
	if len(outcomes) == 0 {
		return Summary{}, nil
	}

	checkedAt := r.now()
	var summary Summary
	err := r.store.InTx(ctx, func(m Mutator) error {
		summary = Summary{}
		for _, outcome := range outcomes {
			switch outcome.Status {
			case StatusHealthy:
				if err := m.TouchLastChecked(ctx, outcome.ID, checkedAt); err != nil {
					return fmt.Errorf("touch entry %d: %w", outcome.ID, err)
				}
				summary.Touched++
			case StatusDead, StatusMalformed:
				if err := m.Delete(ctx, outcome.ID); err != nil {
					return fmt.Errorf("delete entry %d: %w", outcome.ID, err)
				}
				summary.Deleted++
				r.logger.Debug("removing entry",
					"id", outcome.ID,
					"url", outcome.URL,
					"status", outcome.Status.String(),
					"status_code", outcome.StatusCode,
				)
			default:
				return fmt.Errorf("entry %d: unclassified outcome %s", outcome.ID, outcome.Status)
			}
		}
		return nil
	})
	if err != nil {
		return Summary{}, fmt.Errorf("reconcile batch: %w", err)
	}

	return summary, nil
}
