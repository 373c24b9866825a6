// Package model defines the core data types shared across webharvest:
// scrape targets, selectors, extracted records, and run results.
//
// Types in this package are plain data with no I/O. Components receive
// them as read-only input; the only mutation happens inside a single
// orchestrator invocation while it accumulates records.
package model
