package model

import (
	"fmt"
	"net/url"
	"time"
)

// PaginationRule describes how to walk from one result page to the next.
//
// Invariant: when Enabled is false, orchestration always terminates after
// a single page regardless of the other fields.
type PaginationRule struct {
	// Enabled turns pagination on for the target.
	Enabled bool `yaml:"enabled"`

	// NextSelector locates the next-page link. The matched node's href
	// attribute (or the selector's configured attribute) is resolved
	// against the current page URL.
	NextSelector Selector `yaml:"next_selector"`

	// MaxPages bounds the number of pages visited in one run. Must be >= 1
	// when pagination is enabled.
	MaxPages int `yaml:"max_pages"`
}

// Target is a named, pre-configured scrape job. It is constructed from
// configuration before any fetch and is read-only to the orchestration core.
type Target struct {
	// Name is the configuration key identifying the target.
	Name string

	// BaseURL is the absolute HTTP(S) URL of the first page.
	BaseURL string

	// Fields maps field names to selectors, in configuration order.
	Fields SelectorMap

	// Pagination controls multi-page runs.
	Pagination PaginationRule

	// RateLimit is the minimum spacing between requests to the same origin.
	RateLimit time.Duration

	// MaxRetries is the number of additional fetch attempts after the
	// first one fails with a transient error.
	MaxRetries int

	// Timeout is the per-request timeout.
	Timeout time.Duration

	// Headers are extra HTTP headers sent with every request to this
	// target (e.g. cookies or authorization for gated pages).
	Headers map[string]string

	// UserAgent overrides the global User-Agent for this target.
	UserAgent string
}

// Validate checks the target for configuration errors. It is called once
// after loading, before any network activity, so that malformed targets
// fail the whole invocation immediately.
func (t *Target) Validate() error {
	u, err := url.Parse(t.BaseURL)
	if err != nil || u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
		return fmt.Errorf("target %q: base_url %q is not an absolute http(s) URL", t.Name, t.BaseURL)
	}
	if err := t.Fields.Validate(); err != nil {
		return fmt.Errorf("target %q: %w", t.Name, err)
	}
	if t.Pagination.Enabled {
		if t.Pagination.NextSelector.Expr == "" {
			return fmt.Errorf("target %q: pagination enabled without next_selector", t.Name)
		}
		if t.Pagination.MaxPages < 1 {
			return fmt.Errorf("target %q: pagination max_pages must be >= 1, got %d", t.Name, t.Pagination.MaxPages)
		}
	}
	if t.RateLimit < 0 {
		return fmt.Errorf("target %q: negative rate limit", t.Name)
	}
	if t.MaxRetries < 0 {
		return fmt.Errorf("target %q: negative max retries", t.Name)
	}
	if t.Timeout <= 0 {
		return fmt.Errorf("target %q: timeout must be positive", t.Name)
	}
	return nil
}

// Origin returns the scheme://host[:port] part of a URL, the unit of
// robots and rate-limit scoping. The raw URL is returned unchanged when
// it cannot be parsed so that callers still get a stable cache key.
func Origin(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	return u.Scheme + "://" + u.Host
}
