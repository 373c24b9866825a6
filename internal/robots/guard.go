// Package robots answers robots.txt allow/deny decisions with a
// process-wide per-origin cache.
//
// The first query for an origin fetches and parses origin/robots.txt;
// concurrent first queries for the same origin are collapsed into a
// single fetch. When robots.txt is unreachable or unparseable the guard
// fails open: scraping is allowed and the degraded decision is logged.
package robots

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
	"golang.org/x/sync/singleflight"

	"github.com/webharvest/webharvest/internal/fetch"
	"github.com/webharvest/webharvest/internal/model"
)

// robotsTimeout bounds the robots.txt fetch itself. Single-flight waiters
// for the same origin are implicitly bounded by this timeout.
const robotsTimeout = 10 * time.Second

// Guard caches parsed robots.txt rule sets keyed by origin.
//
// Design decision: The guard is an explicit object passed by reference to
// both orchestrators rather than package-level state, so tests and
// concurrent runs control exactly which cache they share.
type Guard struct {
	// fetcher retrieves robots.txt documents. It runs with a short
	// timeout, zero retries, and no content-type restriction.
	fetcher *fetch.Fetcher

	// userAgent is the agent string rules are evaluated against.
	userAgent string

	// group collapses concurrent first-queries per origin.
	group singleflight.Group

	// mu guards cache.
	mu sync.RWMutex

	// cache maps origin -> parsed rules. A nil entry means robots.txt
	// was unavailable and the origin is allowed (fail-open).
	cache map[string]*robotstxt.RobotsData

	// fetches counts robots.txt fetches per origin, for observability
	// and the single-flight tests.
	fetches map[string]int

	logger *slog.Logger
}

// Option configures a Guard.
type Option func(*Guard)

// WithLogger sets the structured logger for robots decisions.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Guard) {
		g.logger = logger
	}
}

// WithUserAgent sets the agent string robots rules are matched against.
func WithUserAgent(ua string) Option {
	return func(g *Guard) {
		g.userAgent = ua
	}
}

// NewGuard creates a Guard that fetches robots.txt through the given
// HTTP client.
func NewGuard(client *http.Client, opts ...Option) *Guard {
	g := &Guard{
		userAgent: "webharvest",
		cache:     make(map[string]*robotstxt.RobotsData),
		fetches:   make(map[string]int),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.logger == nil {
		g.logger = slog.Default()
	}
	g.fetcher = fetch.New(client,
		fetch.WithTimeout(robotsTimeout),
		fetch.WithMaxRetries(0),
		fetch.WithHTMLOnly(false),
		fetch.WithUserAgent(g.userAgent),
		fetch.WithLogger(g.logger),
	)
	return g
}

// Allowed reports whether rawURL may be scraped for the guard's agent.
// It is safe for concurrent use; the robots.txt of each origin is fetched
// at most once per process.
func (g *Guard) Allowed(ctx context.Context, rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		// Malformed URLs are rejected by the fetcher; the policy answer
		// here is moot, so allow.
		return true
	}
	origin := model.Origin(rawURL)

	data, cached := g.lookup(origin)
	if !cached {
		data = g.populate(ctx, origin)
	}

	if data == nil {
		// Fail-open: no usable robots.txt for this origin.
		return true
	}

	allowed := data.TestAgent(u.Path, g.userAgent)
	g.logger.Info("robots decision",
		"url", rawURL,
		"origin", origin,
		"allowed", allowed,
	)
	return allowed
}

// FetchCount returns how many robots.txt fetches were performed for the
// origin of rawURL.
func (g *Guard) FetchCount(rawURL string) int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.fetches[model.Origin(rawURL)]
}

// lookup returns the cached rule set for origin.
func (g *Guard) lookup(origin string) (*robotstxt.RobotsData, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	data, ok := g.cache[origin]
	return data, ok
}

// populate fetches and caches robots.txt for origin, collapsing
// concurrent callers into one fetch.
func (g *Guard) populate(ctx context.Context, origin string) *robotstxt.RobotsData {
	v, _, _ := g.group.Do(origin, func() (any, error) {
		g.mu.Lock()
		g.fetches[origin]++
		g.mu.Unlock()

		data := g.fetchRobots(ctx, origin)

		g.mu.Lock()
		g.cache[origin] = data
		g.mu.Unlock()

		return data, nil
	})
	data, _ := v.(*robotstxt.RobotsData)
	return data
}

// fetchRobots retrieves and parses origin/robots.txt. Any failure is a
// degraded, fail-open decision, never fatal.
func (g *Guard) fetchRobots(ctx context.Context, origin string) *robotstxt.RobotsData {
	res, err := g.fetcher.Fetch(ctx, origin+"/robots.txt")
	if err != nil {
		g.logger.Warn("robots.txt unavailable, failing open",
			"origin", origin,
			"error", err,
		)
		return nil
	}

	data, err := robotstxt.FromStatusAndBytes(res.StatusCode, []byte(res.HTML))
	if err != nil {
		g.logger.Warn("robots.txt unparseable, failing open",
			"origin", origin,
			"error", err,
		)
		return nil
	}
	return data
}
