// Package storage persists scrape run results in multiple formats.
//
// Three stream writers share the Writer interface: CSVWriter for
// spreadsheet import, JSONWriter for tool integration, and
// MarkdownWriter for human-readable run summaries. ResultDB keeps a
// queryable SQLite history of runs and their records. MultiWriter fans
// one result out to several destinations at once.
//
// Column order in tabular formats follows the selector-map order of the
// target configuration, carried through the record field slices.
package storage
