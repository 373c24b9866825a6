// Package ratelimit enforces minimum spacing between requests to the
// same origin.
//
// Each origin gets its own token bucket, so concurrent work against
// different origins proceeds independently; only same-origin requests
// queue behind one another.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter hands out per-origin request slots. For any origin, the time
// between two consecutive granted slots is at least the configured
// interval, regardless of how many concurrent callers are waiting.
//
// Design decision: The limiter is an explicit process-scoped object
// passed by reference to both orchestrators, like the robots cache, so
// that shared state stays visible at call sites.
type Limiter struct {
	// interval is the minimum spacing between grants per origin.
	interval time.Duration

	// mu guards origins.
	mu sync.Mutex

	// origins maps origin -> token bucket with burst 1.
	origins map[string]*rate.Limiter

	// intervals tracks the interval each bucket currently enforces.
	intervals map[string]time.Duration
}

// New creates a Limiter with the given minimum inter-request interval.
// A non-positive interval disables limiting.
func New(interval time.Duration) *Limiter {
	return &Limiter{
		interval:  interval,
		origins:   make(map[string]*rate.Limiter),
		intervals: make(map[string]time.Duration),
	}
}

// Wait blocks until a slot is available for origin or ctx is done.
// Waits are unbounded by design; cancellation is the caller's run-level
// deadline.
func (l *Limiter) Wait(ctx context.Context, origin string) error {
	return l.WaitInterval(ctx, origin, 0)
}

// WaitInterval is Wait with a per-call interval override. A non-positive
// interval falls back to the limiter's default. When callers disagree
// about an origin's interval, the longest one seen so far wins: shared
// origins stay as polite as their strictest target.
func (l *Limiter) WaitInterval(ctx context.Context, origin string, interval time.Duration) error {
	if interval <= 0 {
		interval = l.interval
	}
	if interval <= 0 {
		return nil
	}
	return l.limiterFor(origin, interval).Wait(ctx)
}

// limiterFor returns the bucket for origin, creating it on first use.
// A burst of 1 makes the first request immediate and every subsequent
// grant wait out the full interval.
func (l *Limiter) limiterFor(origin string, interval time.Duration) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	lim, ok := l.origins[origin]
	if !ok {
		lim = rate.NewLimiter(rate.Every(interval), 1)
		l.origins[origin] = lim
		l.intervals[origin] = interval
		return lim
	}
	if interval > l.intervals[origin] {
		lim.SetLimit(rate.Every(interval))
		l.intervals[origin] = interval
	}
	return lim
}
