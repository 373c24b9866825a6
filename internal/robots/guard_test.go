package robots

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
)

// newRobotsServer serves a robots.txt that disallows /private for all
// agents and counts robots.txt requests.
func newRobotsServer(t *testing.T, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			hits.Add(1)
			_, _ = w.Write([]byte("User-agent: *\nDisallow: /private\n"))
			return
		}
		_, _ = w.Write([]byte("<html></html>"))
	}))
}

// TestGuardAllowDeny tests allow and deny decisions from parsed rules.
func TestGuardAllowDeny(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := newRobotsServer(t, &hits)
	defer srv.Close()

	g := NewGuard(srv.Client())
	ctx := context.Background()

	if !g.Allowed(ctx, srv.URL+"/public/page") {
		t.Error("expected /public/page to be allowed")
	}
	if g.Allowed(ctx, srv.URL+"/private/data") {
		t.Error("expected /private/data to be denied")
	}
}

// TestGuardSingleFlight tests that concurrent first-time queries for the
// same origin fetch robots.txt exactly once and agree on the decision.
func TestGuardSingleFlight(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := newRobotsServer(t, &hits)
	defer srv.Close()

	g := NewGuard(srv.Client())
	ctx := context.Background()

	const callers = 20
	decisions := make([]bool, callers)

	var wg sync.WaitGroup
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			decisions[i] = g.Allowed(ctx, srv.URL+"/private/x")
		}()
	}
	wg.Wait()

	if got := hits.Load(); got != 1 {
		t.Errorf("robots.txt fetched %d times, want 1", got)
	}
	if got := g.FetchCount(srv.URL + "/anything"); got != 1 {
		t.Errorf("FetchCount = %d, want 1", got)
	}
	for i, d := range decisions {
		if d {
			t.Errorf("caller %d: expected deny for /private/x", i)
		}
	}
}

// TestGuardFailOpen tests that an unreachable robots.txt defaults to allow.
func TestGuardFailOpen(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	g := NewGuard(srv.Client())
	if !g.Allowed(context.Background(), srv.URL+"/anything") {
		t.Error("expected fail-open allow when robots.txt is unreachable")
	}
}

// TestGuardMissingRobots tests that a 404 robots.txt allows everything.
func TestGuardMissingRobots(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	g := NewGuard(srv.Client())
	if !g.Allowed(context.Background(), srv.URL+"/private") {
		t.Error("expected allow when robots.txt is absent")
	}
}

// TestGuardAgentSpecificRules tests that rules for our agent take
// precedence over the wildcard group.
func TestGuardAgentSpecificRules(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			_, _ = w.Write([]byte("User-agent: webharvest\nDisallow: /\n\nUser-agent: *\nDisallow:\n"))
			return
		}
	}))
	defer srv.Close()

	g := NewGuard(srv.Client(), WithUserAgent("webharvest"))
	if g.Allowed(context.Background(), srv.URL+"/page") {
		t.Error("expected deny from agent-specific rule")
	}
}
