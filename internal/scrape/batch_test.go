package scrape

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/webharvest/webharvest/internal/model"
	"github.com/webharvest/webharvest/internal/ratelimit"
	"github.com/webharvest/webharvest/internal/robots"
)

// batchProto returns the shared policy for batch tests.
func batchProto() model.Target {
	return model.Target{
		Fields: model.SelectorMap{
			{Name: "title", Selector: model.Selector{Expr: "h1"}},
		},
		MaxRetries: 0,
		Timeout:    5 * time.Second,
	}
}

// TestBatchIsolatedFailure tests the spec scenario: 10 URLs, cap 3, one
// permanently failing URL. Expect 9 successes and 1 isolated failure
// marker, all in submission order, no cascading cancellation.
func TestBatchIsolatedFailure(t *testing.T) {
	t.Parallel()

	var inFlight, maxInFlight atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			http.NotFound(w, r)
			return
		}

		cur := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			prev := maxInFlight.Load()
			if cur <= prev || maxInFlight.CompareAndSwap(prev, cur) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)

		if strings.HasPrefix(r.URL.Path, "/broken") {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprintf(w, "<html><body><h1>%s</h1></body></html>", r.URL.Path)
	}))
	defer srv.Close()

	urls := make([]string, 10)
	for i := range urls {
		urls[i] = fmt.Sprintf("%s/item/%d", srv.URL, i)
	}
	urls[4] = srv.URL + "/broken"

	runner := NewRunner(srv.Client(), robots.NewGuard(srv.Client()), ratelimit.New(0))
	batch := NewBatch(runner, WithConcurrency(3))

	results := batch.Run(context.Background(), urls, batchProto())

	if len(results) != 10 {
		t.Fatalf("results = %d, want 10", len(results))
	}

	var successes, failures int
	for i, res := range results {
		// Submission order is preserved.
		if res.Target != urls[i] {
			t.Errorf("result %d is for %q, want %q", i, res.Target, urls[i])
		}
		switch res.Outcome() {
		case model.OutcomeSuccess:
			successes++
		case model.OutcomeFailure:
			failures++
			if i != 4 {
				t.Errorf("unexpected failure at index %d: %+v", i, res.Failure)
			}
			if res.Failure.Kind != model.KindHTTPStatus {
				t.Errorf("failure kind = %q", res.Failure.Kind)
			}
		default:
			t.Errorf("result %d outcome = %q", i, res.Outcome())
		}
	}
	if successes != 9 || failures != 1 {
		t.Errorf("successes = %d, failures = %d, want 9/1", successes, failures)
	}

	if got := maxInFlight.Load(); got > 3 {
		t.Errorf("max in-flight fetches = %d, want <= 3", got)
	}
}

// TestBatchSharesOriginRateLimit tests that the per-origin limiter still
// spaces requests inside the pool.
func TestBatchSharesOriginRateLimit(t *testing.T) {
	t.Parallel()

	var mu atomic.Int64 // previous grant in unix nanos
	var violations atomic.Int32
	const interval = 30 * time.Millisecond

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			http.NotFound(w, r)
			return
		}
		now := time.Now().UnixNano()
		prev := mu.Swap(now)
		if prev != 0 && time.Duration(now-prev) < interval-10*time.Millisecond {
			violations.Add(1)
		}
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, "<html><body><h1>ok</h1></body></html>")
	}))
	defer srv.Close()

	urls := make([]string, 5)
	for i := range urls {
		urls[i] = fmt.Sprintf("%s/item/%d", srv.URL, i)
	}

	runner := NewRunner(srv.Client(), robots.NewGuard(srv.Client()), ratelimit.New(interval))
	batch := NewBatch(runner, WithConcurrency(5))

	results := batch.Run(context.Background(), urls, batchProto())

	for i, res := range results {
		if res.Outcome() != model.OutcomeSuccess {
			t.Errorf("result %d: %+v", i, res.Failure)
		}
	}
	if v := violations.Load(); v > 0 {
		t.Errorf("%d same-origin requests violated the rate interval", v)
	}
}

// TestBatchDeadlineStopsSubmission tests that URLs not yet started when
// the deadline passes report Timeout instead of hanging.
func TestBatchDeadlineStopsSubmission(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			http.NotFound(w, r)
			return
		}
		time.Sleep(60 * time.Millisecond)
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, "<html><body><h1>slow</h1></body></html>")
	}))
	defer srv.Close()

	urls := make([]string, 6)
	for i := range urls {
		urls[i] = fmt.Sprintf("%s/item/%d", srv.URL, i)
	}

	runner := NewRunner(srv.Client(), robots.NewGuard(srv.Client()), ratelimit.New(0))
	batch := NewBatch(runner, WithConcurrency(1))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	results := batch.Run(ctx, urls, batchProto())

	if len(results) != len(urls) {
		t.Fatalf("results = %d, want %d", len(results), len(urls))
	}

	var timeouts int
	for _, res := range results {
		if res.Failure != nil && res.Failure.Kind == model.KindTimeout {
			timeouts++
		}
	}
	if timeouts == 0 {
		t.Error("expected at least one URL to report a timeout after the deadline")
	}
}
