package scrape

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/net/html"

	"github.com/webharvest/webharvest/internal/extract"
	"github.com/webharvest/webharvest/internal/fetch"
	"github.com/webharvest/webharvest/internal/model"
	"github.com/webharvest/webharvest/internal/paginate"
	"github.com/webharvest/webharvest/internal/ratelimit"
	"github.com/webharvest/webharvest/internal/robots"
)

// state is one node of the orchestration state machine.
type state int

const (
	stateInit state = iota
	stateCheckingRobots
	stateRateLimited
	stateFetching
	stateExtracting
	statePaginating
	stateDone
	stateFailed
)

// String returns the state name for logging.
func (s state) String() string {
	switch s {
	case stateInit:
		return "init"
	case stateCheckingRobots:
		return "checking_robots"
	case stateRateLimited:
		return "rate_limited"
	case stateFetching:
		return "fetching"
	case stateExtracting:
		return "extracting"
	case statePaginating:
		return "paginating"
	case stateDone:
		return "done"
	case stateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Runner executes the scrape state machine for one target at a time.
// It owns no per-run state; RunState lives on the stack of each Run call,
// so a single Runner is safe for concurrent Run invocations as long as
// the guard and limiter it shares are (they are).
type Runner struct {
	// client is the HTTP client shared by all fetchers built per run.
	client *http.Client

	// guard is the process-wide robots.txt policy cache.
	guard *robots.Guard

	// limiter is the process-wide per-origin rate limiter.
	limiter *ratelimit.Limiter

	// userAgent is the default User-Agent; targets may override it.
	userAgent string

	// maxBodySize caps fetched response bodies.
	maxBodySize int64

	logger *slog.Logger
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithLogger sets the structured logger for orchestration events.
func WithLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithUserAgent sets the default User-Agent for targets that do not
// override it.
func WithUserAgent(ua string) RunnerOption {
	return func(r *Runner) {
		r.userAgent = ua
	}
}

// WithMaxBodySize caps response body sizes for all runs.
func WithMaxBodySize(n int64) RunnerOption {
	return func(r *Runner) {
		if n > 0 {
			r.maxBodySize = n
		}
	}
}

// NewRunner creates a Runner sharing the given client, robots guard, and
// rate limiter.
func NewRunner(client *http.Client, guard *robots.Guard, limiter *ratelimit.Limiter, opts ...RunnerOption) *Runner {
	r := &Runner{
		client:      client,
		guard:       guard,
		limiter:     limiter,
		userAgent:   "webharvest/1.0 (+https://github.com/webharvest/webharvest)",
		maxBodySize: 5 * 1024 * 1024,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

// runState is the mutable state of one orchestrator invocation. Created
// at Run start, discarded after the RunResult handoff; never shared.
type runState struct {
	current string
	page    int
	visited map[string]bool
	records []model.Record
}

// Run drives the state machine for target until Done or Failed and
// returns the terminal RunResult. Partial records survive every failure
// path; the method never panics and never returns nil.
//
// The target must already be validated; Run revalidates cheaply and
// reports a ConfigError rather than fetching with a malformed target.
func (r *Runner) Run(ctx context.Context, target *model.Target) *model.RunResult {
	started := time.Now()
	result := &model.RunResult{Target: target.Name, StartedAt: started}
	if result.Target == "" {
		result.Target = target.BaseURL
	}

	// ConfigError is fatal before any network activity.
	if err := target.Validate(); err == nil {
		err = extract.CompileCheck(target.Fields)
		if err == nil && target.Pagination.Enabled {
			err = extract.CompileSelector(target.Pagination.NextSelector)
		}
		if err != nil {
			result.Failure = &model.Failure{Kind: model.KindConfigError, Detail: err.Error()}
		}
	} else {
		result.Failure = &model.Failure{Kind: model.KindConfigError, Detail: err.Error()}
	}
	if result.Failure != nil {
		result.Elapsed = time.Since(started)
		return result
	}

	fetcher := r.fetcherFor(target)
	rs := &runState{
		current: target.BaseURL,
		visited: make(map[string]bool),
	}

	st := stateInit
	var (
		pageHTML string
		pageRoot *html.Node
	)

	for {
		r.logger.Debug("orchestrator state",
			"target", result.Target,
			"state", st,
			"url", rs.current,
			"page", rs.page+1,
		)

		// A spent run-level deadline stops the machine wherever it is;
		// accumulated records are preserved as a partial success.
		if ctx.Err() != nil && st != stateDone && st != stateFailed {
			result.Failure = &model.Failure{
				Kind:   model.KindTimeout,
				Detail: ctx.Err().Error(),
				URL:    rs.current,
			}
			st = stateFailed
		}

		switch st {
		case stateInit:
			st = stateCheckingRobots

		case stateCheckingRobots:
			if !r.guard.Allowed(ctx, rs.current) {
				result.Failure = &model.Failure{
					Kind:   model.KindRobotsDisallowed,
					Detail: "robots.txt disallows this URL",
					URL:    rs.current,
				}
				st = stateFailed
				continue
			}
			st = stateRateLimited

		case stateRateLimited:
			if err := r.limiter.WaitInterval(ctx, model.Origin(rs.current), target.RateLimit); err != nil {
				result.Failure = &model.Failure{
					Kind:   model.KindTimeout,
					Detail: err.Error(),
					URL:    rs.current,
				}
				st = stateFailed
				continue
			}
			st = stateFetching

		case stateFetching:
			res, err := fetcher.Fetch(ctx, rs.current)
			rs.page++
			rs.visited[paginate.Normalize(rs.current)] = true
			if err != nil {
				result.Failure = fetchFailure(err, rs.current)
				st = stateFailed
				continue
			}
			pageHTML = res.HTML
			st = stateExtracting

		case stateExtracting:
			root, err := extract.Parse(pageHTML)
			if err != nil {
				result.Failure = &model.Failure{
					Kind:   model.KindParseError,
					Detail: err.Error(),
					URL:    rs.current,
				}
				st = stateFailed
				continue
			}

			now := time.Now()
			for _, rec := range extract.FromNode(root, target.Fields) {
				rec.URL = rs.current
				rec.PageNumber = rs.page
				rec.ScrapedAt = now
				rs.records = append(rs.records, rec)
			}
			pageRoot = root
			st = statePaginating

		case statePaginating:
			// Paginating consumes the parse tree built while extracting.
			action := paginate.Next(pageRoot, target.Pagination, rs.page, rs.current, rs.visited)
			r.logger.Info("pagination decision",
				"target", result.Target,
				"page", rs.page,
				"continue", action.Continue,
				"next", action.URL,
				"reason", action.Reason,
			)
			if action.Continue {
				rs.current = action.URL
				st = stateCheckingRobots
			} else {
				st = stateDone
			}

		case stateDone, stateFailed:
			result.Records = rs.records
			result.PagesVisited = rs.page
			result.Elapsed = time.Since(started)
			r.logger.Info("run finished",
				"target", result.Target,
				"outcome", result.Outcome(),
				"records", len(result.Records),
				"pages", result.PagesVisited,
				"elapsed", result.Elapsed,
			)
			return result
		}
	}
}

// fetcherFor builds the per-target fetcher from the run policy.
func (r *Runner) fetcherFor(target *model.Target) *fetch.Fetcher {
	ua := target.UserAgent
	if ua == "" {
		ua = r.userAgent
	}
	return fetch.New(r.client,
		fetch.WithTimeout(target.Timeout),
		fetch.WithMaxRetries(target.MaxRetries),
		fetch.WithUserAgent(ua),
		fetch.WithHeaders(target.Headers),
		fetch.WithMaxBodySize(r.maxBodySize),
		fetch.WithLogger(r.logger),
	)
}

// fetchFailure converts a fetcher error into a run failure, ending the
// pagination chain for this target while keeping earlier records.
func fetchFailure(err error, url string) *model.Failure {
	var fe *fetch.Error
	if errors.As(err, &fe) {
		return &model.Failure{Kind: fe.Kind, Detail: fe.Detail, URL: url}
	}
	return &model.Failure{Kind: model.KindNetworkError, Detail: err.Error(), URL: url}
}
