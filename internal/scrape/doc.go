// Package scrape drives the fetch, robots-check, rate-limit, extract,
// paginate cycle for scrape targets.
//
// # Architecture
//
// Runner owns the per-target state machine:
//
//	Init -> CheckingRobots -> RateLimited -> Fetching -> Extracting ->
//	Paginating -> {CheckingRobots | Done}
//
// with Failed as an absorbing state reachable on any non-recoverable
// error. The machine is implemented once; the concurrent Batch variant
// fans the same machine out over many URLs under an errgroup concurrency
// cap, so sync and async execution share all orchestration logic.
//
// # Failure policy
//
// Failures never discard work already done: a page-level failure ends the
// chain with the records of prior pages preserved, and a run-level
// deadline turns into a partial success with whatever was collected.
// Shared state is limited to the robots cache and rate-limiter map,
// both passed in by reference.
package scrape
