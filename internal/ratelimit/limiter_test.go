package ratelimit

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"
)

// TestWaitSameOriginSpacing tests that consecutive grants for one origin
// are never closer than the configured interval, even with randomized
// concurrent callers.
func TestWaitSameOriginSpacing(t *testing.T) {
	t.Parallel()

	const interval = 20 * time.Millisecond
	const callers = 5

	l := New(interval)
	ctx := context.Background()

	var mu sync.Mutex
	grants := make([]time.Time, 0, callers)

	var wg sync.WaitGroup
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := l.Wait(ctx, "https://example.com"); err != nil {
				t.Errorf("Wait: %v", err)
				return
			}
			mu.Lock()
			grants = append(grants, time.Now())
			mu.Unlock()
		}()
	}
	wg.Wait()

	sort.Slice(grants, func(i, j int) bool { return grants[i].Before(grants[j]) })
	for i := 1; i < len(grants); i++ {
		// Allow a small scheduling tolerance: the limiter guarantees the
		// grant time, not the timestamp capture after it.
		if gap := grants[i].Sub(grants[i-1]); gap < interval-5*time.Millisecond {
			t.Errorf("gap %d = %v, want >= %v", i, gap, interval)
		}
	}
}

// TestWaitDifferentOriginsIndependent tests that distinct origins do not
// serialize each other.
func TestWaitDifferentOriginsIndependent(t *testing.T) {
	t.Parallel()

	l := New(200 * time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	origins := []string{"https://a.example", "https://b.example", "https://c.example"}

	var wg sync.WaitGroup
	for _, origin := range origins {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := l.Wait(ctx, origin); err != nil {
				t.Errorf("Wait(%s): %v", origin, err)
			}
		}()
	}
	wg.Wait()

	// First slot per origin is immediate; if origins serialized each
	// other this would take ~400ms.
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("independent origins took %v, expected near-immediate grants", elapsed)
	}
}

// TestWaitZeroInterval tests that a disabled limiter never blocks.
func TestWaitZeroInterval(t *testing.T) {
	t.Parallel()

	l := New(0)
	start := time.Now()
	for range 100 {
		if err := l.Wait(context.Background(), "https://example.com"); err != nil {
			t.Fatalf("Wait: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Errorf("disabled limiter blocked for %v", elapsed)
	}
}

// TestWaitIntervalOverride tests that a per-call interval overrides the
// default and that the strictest interval seen for an origin sticks.
func TestWaitIntervalOverride(t *testing.T) {
	t.Parallel()

	const override = 40 * time.Millisecond

	l := New(5 * time.Millisecond)
	ctx := context.Background()

	// First grant is immediate and pins the origin to the override.
	if err := l.WaitInterval(ctx, "https://slow.example", override); err != nil {
		t.Fatalf("WaitInterval: %v", err)
	}

	// A later caller using the default interval still waits out the
	// stricter spacing.
	start := time.Now()
	if err := l.Wait(ctx, "https://slow.example"); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if gap := time.Since(start); gap < override-5*time.Millisecond {
		t.Errorf("gap = %v, want >= %v", gap, override)
	}

	// Other origins are unaffected by the override.
	start = time.Now()
	if err := l.Wait(ctx, "https://fast.example"); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 20*time.Millisecond {
		t.Errorf("unrelated origin blocked for %v", elapsed)
	}
}

// TestWaitCancelled tests that a cancelled context releases waiters.
func TestWaitCancelled(t *testing.T) {
	t.Parallel()

	l := New(time.Hour)
	ctx := context.Background()

	// Consume the initial burst token.
	if err := l.Wait(ctx, "https://example.com"); err != nil {
		t.Fatalf("Wait: %v", err)
	}

	cancelCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()

	if err := l.Wait(cancelCtx, "https://example.com"); err == nil {
		t.Error("expected error from cancelled wait")
	}
}
