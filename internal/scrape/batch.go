package scrape

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/webharvest/webharvest/internal/model"
)

// Batch fans the Runner's state machine out over many independent URLs
// under a bounded concurrency pool.
//
// Design decision: Each URL becomes a single-page target driven through
// the same Runner rather than a second orchestration loop, so the sync
// and concurrent modes cannot drift apart. Isolation follows from that:
// one URL's failure lands in its own RunResult and never cancels
// siblings.
type Batch struct {
	// runner executes each URL's state machine.
	runner *Runner

	// concurrency caps simultaneously in-flight URLs.
	concurrency int

	logger *slog.Logger
}

// BatchOption configures a Batch.
type BatchOption func(*Batch)

// WithConcurrency sets the maximum number of URLs in flight at once.
// Default is 10.
func WithConcurrency(n int) BatchOption {
	return func(b *Batch) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// WithBatchLogger sets the structured logger for batch-level events.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *Batch) {
		b.logger = logger
	}
}

// NewBatch creates a Batch around an existing Runner. The Runner's guard
// and limiter are shared by all tasks, so per-origin politeness holds
// across the whole pool.
func NewBatch(runner *Runner, opts ...BatchOption) *Batch {
	b := &Batch{
		runner:      runner,
		concurrency: 10,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = slog.Default()
	}
	return b
}

// Run scrapes every URL as an independent single-page job and returns
// one RunResult per URL in submission order.
//
// proto supplies the shared policy (selector map, timeout, retries, rate
// limit, headers); its BaseURL and pagination are ignored. A spent
// context stops new submissions; tasks already in flight finish
// naturally and URLs never started report a Timeout failure, so the
// caller always gets a slot per URL.
func (b *Batch) Run(ctx context.Context, urls []string, proto model.Target) []model.RunResult {
	b.logger.Info("starting batch",
		"urls", len(urls),
		"concurrency", b.concurrency,
	)
	start := time.Now()

	results := make([]model.RunResult, len(urls))

	g := new(errgroup.Group)
	g.SetLimit(b.concurrency)

	for i, url := range urls {
		g.Go(func() error {
			// Submission stops once the run deadline passes.
			if ctx.Err() != nil {
				results[i] = model.RunResult{
					Target:    url,
					StartedAt: time.Now(),
					Failure: &model.Failure{
						Kind:   model.KindTimeout,
						Detail: ctx.Err().Error(),
						URL:    url,
					},
				}
				return nil
			}

			target := proto
			target.Name = url
			target.BaseURL = url
			target.Pagination = model.PaginationRule{}

			// Failures are recorded in the result, never returned:
			// returning an error would cancel sibling URLs.
			results[i] = *b.runner.Run(ctx, &target)
			return nil
		})
	}

	// Tasks never return errors, so Wait only synchronizes.
	_ = g.Wait()

	b.logger.Info("batch finished",
		"urls", len(urls),
		"elapsed", time.Since(start),
	)
	return results
}
