// Package fetch issues single HTTP GET requests with timeout, retry,
// and exponential backoff.
//
// All outcomes surface as a *Result or a typed *Error; the fetcher never
// panics and never mutates shared caches. Transient failures (connection
// errors, timeouts, 5xx, 429) are retried up to the configured budget;
// everything else fails immediately without consuming retries.
package fetch
