package model

import "time"

// FailureKind classifies why a fetch, page, or run failed.
type FailureKind string

// Failure kinds, from most transient to most fatal.
const (
	// KindNetworkError means connection errors or timeouts exhausted the
	// retry budget.
	KindNetworkError FailureKind = "network_error"

	// KindHTTPStatus means a non-retryable HTTP status (4xx other than 429).
	KindHTTPStatus FailureKind = "http_status"

	// KindRobotsDisallowed means robots.txt denies the URL for our agent.
	KindRobotsDisallowed FailureKind = "robots_disallowed"

	// KindSelectorError means a single field's selector could not be
	// evaluated. Contained to that field, never fatal to a record.
	KindSelectorError FailureKind = "selector_error"

	// KindParseError means a whole page could not be parsed.
	KindParseError FailureKind = "parse_error"

	// KindConfigError means the target or selector map is malformed.
	// Detected before any fetch; fails the invocation immediately.
	KindConfigError FailureKind = "config_error"

	// KindTimeout means the run-level wall-clock deadline expired.
	KindTimeout FailureKind = "timeout"
)

// Failure records a classified failure together with where it happened.
type Failure struct {
	Kind   FailureKind `json:"kind"`
	Detail string      `json:"detail"`
	URL    string      `json:"url,omitempty"`
}

// Outcome is the terminal disposition of one orchestrator invocation.
type Outcome string

const (
	// OutcomeSuccess means every visited page produced its records.
	OutcomeSuccess Outcome = "success"

	// OutcomePartial means some records were collected before a failure
	// or timeout stopped the run. Partial data is preserved, not discarded.
	OutcomePartial Outcome = "partial_success"

	// OutcomeFailure means the run produced no records and ended with a
	// fatal failure kind.
	OutcomeFailure Outcome = "failure"
)

// RunResult is the terminal state of one orchestrator invocation: the
// accumulated records plus metadata handed off to storage writers.
type RunResult struct {
	// Target is the target name, URL, or batch label the run was for.
	Target string `json:"target"`

	// Records are the extracted rows in page-then-document order.
	Records []Record `json:"records"`

	// PagesVisited counts pages actually fetched, including the one that
	// failed if the run ended on a failure.
	PagesVisited int `json:"pages_visited"`

	// Failure is the failure that ended the run, nil on full success.
	Failure *Failure `json:"failure,omitempty"`

	// StartedAt is when orchestration began.
	StartedAt time.Time `json:"started_at"`

	// Elapsed is the total wall-clock duration of the run.
	Elapsed time.Duration `json:"elapsed"`
}

// Outcome derives the three-way disposition from records and failure:
// Success(records), PartialSuccess(records, failure), Failure(failure).
func (r *RunResult) Outcome() Outcome {
	switch {
	case r.Failure == nil:
		return OutcomeSuccess
	case len(r.Records) > 0:
		return OutcomePartial
	default:
		return OutcomeFailure
	}
}
