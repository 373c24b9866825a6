package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/net/html/charset"

	"github.com/webharvest/webharvest/internal/model"
)

// Result is a successful fetch: the UTF-8 normalized body plus response
// metadata. It is consumed immediately by the orchestrator, not persisted.
type Result struct {
	// URL is the URL that was fetched.
	URL string

	// StatusCode is the HTTP response status code.
	StatusCode int

	// HTML is the response body, decoded to UTF-8 and capped at the
	// configured maximum body size.
	HTML string

	// Attempts is the number of HTTP attempts made, including the
	// successful one.
	Attempts int
}

// Error is a classified fetch failure.
type Error struct {
	// Kind classifies the failure per the run-level error taxonomy.
	Kind model.FailureKind

	// Detail is a human-readable description of the last attempt's failure.
	Detail string

	// URL is the URL the fetch was for.
	URL string

	// Attempts is the number of HTTP attempts made before giving up.
	Attempts int
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("fetch %s: %s (%s, %d attempts)", e.URL, e.Detail, e.Kind, e.Attempts)
}

// Fetcher performs HTTP GETs with retry and backoff.
//
// Design decision: We take an external *http.Client rather than creating
// one internally because:
//  1. Connection pooling should be shared across components
//  2. Tests can inject a client bound to an httptest server
//  3. Proxy or TLS configuration stays the caller's concern
type Fetcher struct {
	// client is the underlying HTTP client.
	client *http.Client

	// timeout is the per-attempt timeout.
	timeout time.Duration

	// maxRetries is the number of additional attempts after the first
	// transient failure. 0 means a single attempt.
	maxRetries int

	// userAgent is the User-Agent header sent with every request.
	userAgent string

	// headers are extra headers sent with every request.
	headers map[string]string

	// maxBodySize caps how many bytes of the response body are read.
	maxBodySize int64

	// backoffInitial and backoffMax bound the exponential backoff delays
	// (delay = initial * 2^attempt, capped at max).
	backoffInitial time.Duration
	backoffMax     time.Duration

	// requireHTML rejects responses whose Content-Type is not HTML.
	// Disabled for robots.txt fetches, which are text/plain.
	requireHTML bool

	// logger receives one structured event per fetch attempt.
	logger *slog.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithTimeout sets the per-attempt timeout.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		f.timeout = d
	}
}

// WithMaxRetries sets the retry budget. A permanently failing endpoint
// causes exactly maxRetries+1 attempts.
func WithMaxRetries(n int) Option {
	return func(f *Fetcher) {
		if n >= 0 {
			f.maxRetries = n
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) {
		f.userAgent = ua
	}
}

// WithHeaders sets extra headers sent with every request.
func WithHeaders(h map[string]string) Option {
	return func(f *Fetcher) {
		f.headers = h
	}
}

// WithMaxBodySize caps the response body size in bytes.
func WithMaxBodySize(n int64) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.maxBodySize = n
		}
	}
}

// WithBackoff sets the initial and maximum backoff delays.
// Useful for fast tests; defaults are 500ms initial, 10s cap.
func WithBackoff(initial, maxDelay time.Duration) Option {
	return func(f *Fetcher) {
		f.backoffInitial = initial
		f.backoffMax = maxDelay
	}
}

// WithHTMLOnly controls whether non-HTML content types are rejected.
func WithHTMLOnly(require bool) Option {
	return func(f *Fetcher) {
		f.requireHTML = require
	}
}

// WithLogger sets the structured logger for fetch-attempt events.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Fetcher) {
		f.logger = logger
	}
}

// New creates a Fetcher with the given HTTP client and options.
func New(client *http.Client, opts ...Option) *Fetcher {
	f := &Fetcher{
		client:         client,
		timeout:        30 * time.Second,
		maxRetries:     2,
		userAgent:      "webharvest/1.0 (+https://github.com/webharvest/webharvest)",
		maxBodySize:    5 * 1024 * 1024, // 5MB
		backoffInitial: 500 * time.Millisecond,
		backoffMax:     10 * time.Second,
		requireHTML:    true,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.logger == nil {
		f.logger = slog.Default()
	}
	return f
}

// Fetch performs a GET for rawURL, retrying transient failures with
// exponential backoff. The returned error, if any, is always a *Error.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Result, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
		// Malformed URLs fail immediately without consuming retry budget.
		return nil, &Error{
			Kind:     model.KindNetworkError,
			Detail:   fmt.Sprintf("not an absolute http(s) URL: %q", rawURL),
			URL:      rawURL,
			Attempts: 0,
		}
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = f.backoffInitial
	bo.MaxInterval = f.backoffMax
	bo.Multiplier = 2
	bo.RandomizationFactor = 0
	bo.MaxElapsedTime = 0 // bounded by attempt count, not wall clock

	attempts := 0
	var result *Result

	operation := func() error {
		attempts++
		r, err := f.attempt(ctx, rawURL, attempts)
		if err != nil {
			return err
		}
		result = r
		return nil
	}

	err = backoff.Retry(operation,
		backoff.WithContext(backoff.WithMaxRetries(bo, uint64(f.maxRetries)), ctx))
	if err != nil {
		var permanent *backoff.PermanentError
		if errors.As(err, &permanent) {
			err = permanent.Err
		}
		var fe *Error
		if errors.As(err, &fe) {
			fe.Attempts = attempts
			return nil, fe
		}
		// Context cancellation surfaces here when the run deadline
		// expires between attempts.
		return nil, &Error{
			Kind:     model.KindNetworkError,
			Detail:   err.Error(),
			URL:      rawURL,
			Attempts: attempts,
		}
	}

	result.Attempts = attempts
	return result, nil
}

// attempt performs one GET. Transient failures are returned as plain
// *Error values (retryable); non-retryable ones are wrapped in
// backoff.Permanent so the retry loop stops immediately.
func (f *Fetcher) attempt(ctx context.Context, rawURL string, attempt int) (*Result, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, backoff.Permanent(&Error{
			Kind:   model.KindNetworkError,
			Detail: err.Error(),
			URL:    rawURL,
		})
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	for k, v := range f.headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := f.client.Do(req)
	latency := time.Since(start)

	if err != nil {
		f.logger.Warn("fetch attempt failed",
			"url", rawURL,
			"attempt", attempt,
			"latency", latency,
			"error", err,
		)
		// Connection errors and timeouts are transient.
		return nil, &Error{Kind: model.KindNetworkError, Detail: err.Error(), URL: rawURL}
	}
	defer resp.Body.Close()

	f.logger.Info("fetch attempt",
		"url", rawURL,
		"attempt", attempt,
		"status", resp.StatusCode,
		"latency", latency,
	)

	switch {
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return nil, &Error{
			Kind:   model.KindNetworkError,
			Detail: fmt.Sprintf("retryable status %d", resp.StatusCode),
			URL:    rawURL,
		}
	case resp.StatusCode >= 400:
		return nil, backoff.Permanent(&Error{
			Kind:   model.KindHTTPStatus,
			Detail: fmt.Sprintf("status %d", resp.StatusCode),
			URL:    rawURL,
		})
	}

	contentType := resp.Header.Get("Content-Type")
	if f.requireHTML && contentType != "" &&
		!strings.Contains(contentType, "text/html") &&
		!strings.Contains(contentType, "application/xhtml") {
		return nil, backoff.Permanent(&Error{
			Kind:   model.KindParseError,
			Detail: fmt.Sprintf("unsupported content type %q", contentType),
			URL:    rawURL,
		})
	}

	// Decode to UTF-8 based on the declared or sniffed charset so the
	// selector engines always see valid UTF-8.
	reader, err := charset.NewReader(io.LimitReader(resp.Body, f.maxBodySize), contentType)
	if err != nil {
		return nil, backoff.Permanent(&Error{
			Kind:   model.KindParseError,
			Detail: fmt.Sprintf("charset detection: %v", err),
			URL:    rawURL,
		})
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, &Error{Kind: model.KindNetworkError, Detail: err.Error(), URL: rawURL}
	}

	return &Result{
		URL:        rawURL,
		StatusCode: resp.StatusCode,
		HTML:       string(body),
	}, nil
}
