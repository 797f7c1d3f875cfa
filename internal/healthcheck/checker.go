package healthcheck

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hnm/search/internal/metrics"
)

// DefaultConcurrency is the number of probes in flight at once.
const DefaultConcurrency = 15

// Prober sends a single liveness probe and returns the status code.
type Prober interface {
	Head(ctx context.Context, url string) (int, error)
}

// Checker classifies a batch of records with bounded concurrency.
type Checker struct {
	prober      Prober
	concurrency int
	logger      *slog.Logger
}

// CheckerOption configures a Checker.
type CheckerOption func(*Checker)

// WithConcurrency sets the maximum number of probes in flight.
func WithConcurrency(n int) CheckerOption {
	return func(c *Checker) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// WithCheckerLogger sets a custom logger.
func WithCheckerLogger(logger *slog.Logger) CheckerOption {
	return func(c *Checker) {
		c.logger = logger
	}
}

// NewChecker creates a Checker that probes through prober.
func NewChecker(prober Prober, opts ...CheckerOption) *Checker {
	c := &Checker{
		prober:      prober,
		concurrency: DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// probe is one distinct URL and the input positions sharing it.
type probe struct {
	url     string
	indexes []int
	status  Status
	code    int
	err     error
}

// Check returns one outcome per record, in input order. Malformed URLs are
// classified without a network call and each distinct URL is probed once.
// It blocks until every probe has finished. The only error is a canceled
// context, in which case no outcomes are returned.
func (c *Checker) Check(ctx context.Context, records []Record) (Outcomes, error) {
	outcomes := make(Outcomes, len(records))

	var probes []*probe
	byURL := make(map[string]*probe)
	for i, record := range records {
		outcomes[i].Record = record
		if IsMalformed(record.URL) {
			outcomes[i].Status = StatusMalformed
			metrics.ObserveURLCheck(StatusMalformed.String(), 0)
			continue
		}

		key := strings.TrimSpace(record.URL)
		p, ok := byURL[key]
		if !ok {
			p = &probe{url: key}
			byURL[key] = p
			probes = append(probes, p)
		}
		p.indexes = append(p.indexes, i)
	}

	c.logger.Debug("checking urls",
		"records", len(records),
		"probes", len(probes),
		"concurrency", c.concurrency,
	)

	var g errgroup.Group
	g.SetLimit(c.concurrency)
	for _, p := range probes {
		g.Go(func() error {
			start := time.Now()
			p.code, p.err = c.prober.Head(ctx, p.url)
			p.status = Classify(p.code, p.err)
			metrics.ObserveURLCheck(p.status.String(), time.Since(start))
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for _, p := range probes {
		if p.err != nil {
			c.logger.Debug("probe failed", "url", p.url, "error", p.err)
		}
		for _, i := range p.indexes {
			outcomes[i].Status = p.status
			outcomes[i].StatusCode = p.code
			outcomes[i].Err = p.err
		}
	}

	return outcomes, nil
}
