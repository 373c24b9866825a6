package storage

import (
	"fmt"
	"io"
	"strconv"

	"github.com/nao1215/markdown"

	"github.com/webharvest/webharvest/internal/model"
)

// maxPreviewRows caps the records table in the markdown summary. Full
// data belongs in CSV or JSON output; the summary shows a sample.
const maxPreviewRows = 20

// MarkdownWriter outputs run summaries in Markdown format.
// This format is designed for documentation and sharing.
//
// Design decision: We use the nao1215/markdown library for fluent markdown
// generation which provides:
// 1. Type-safe markdown generation
// 2. Support for tables, lists, and code blocks
// 3. GitHub-flavored markdown alerts
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the run summary in Markdown format.
func (w *MarkdownWriter) Write(result *model.RunResult) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, result)
	w.writeOutcome(md, result)
	w.writeRecords(md, result)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the summary header with run information.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, result *model.RunResult) {
	md.H1("Scrape Report")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Target", "`" + result.Target + "`"},
			{"Started", result.StartedAt.Format("2006-01-02 15:04:05 MST")},
			{"Pages Visited", strconv.Itoa(result.PagesVisited)},
			{"Records", strconv.Itoa(len(result.Records))},
			{"Elapsed", result.Elapsed.Round(1e6).String()},
			{"Status", w.statusText(result)},
		},
	})
	md.PlainText("")
}

// statusText returns the status cell based on the run outcome.
func (w *MarkdownWriter) statusText(result *model.RunResult) string {
	switch result.Outcome() {
	case model.OutcomeSuccess:
		return "✅ Complete"
	case model.OutcomePartial:
		return "⚠️ Partial (stopped early)"
	default:
		return "❌ Failed"
	}
}

// writeOutcome writes an alert describing how the run ended.
func (w *MarkdownWriter) writeOutcome(md *markdown.Markdown, result *model.RunResult) {
	switch result.Outcome() {
	case model.OutcomeSuccess:
		md.Tip(fmt.Sprintf("All %d page(s) scraped successfully.", result.PagesVisited))
	case model.OutcomePartial:
		md.Warningf(
			"Run stopped early (%s: %s). %d record(s) collected before the failure are included.",
			result.Failure.Kind, result.Failure.Detail, len(result.Records),
		)
	default:
		md.Cautionf("Run failed (%s): %s", result.Failure.Kind, result.Failure.Detail)
	}
	md.PlainText("")
}

// writeRecords writes a preview table of the extracted records.
func (w *MarkdownWriter) writeRecords(md *markdown.Markdown, result *model.RunResult) {
	md.H2("Records")
	md.PlainText("")

	if len(result.Records) == 0 {
		md.PlainText("No records extracted.")
		md.PlainText("")
		return
	}

	headers := make([]string, 0, len(result.Records[0].Fields)+2)
	for _, f := range result.Records[0].Fields {
		headers = append(headers, f.Name)
	}
	headers = append(headers, "page", "url")

	n := len(result.Records)
	if n > maxPreviewRows {
		n = maxPreviewRows
	}

	rows := make([][]string, n)
	for i := 0; i < n; i++ {
		rec := &result.Records[i]
		row := make([]string, 0, len(headers))
		for _, f := range rec.Fields {
			switch {
			case f.Err != "":
				row = append(row, "*(error)*")
			case f.Missing:
				row = append(row, "-")
			default:
				row = append(row, truncateString(f.Value, 50))
			}
		}
		row = append(row, strconv.Itoa(rec.PageNumber), truncateString(rec.URL, 40))
		rows[i] = row
	}

	md.Table(markdown.TableSet{
		Header: headers,
		Rows:   rows,
	})
	md.PlainText("")

	if len(result.Records) > maxPreviewRows {
		md.PlainTextf("*Showing %d of %d records. Use CSV or JSON output for the full data.*", n, len(result.Records))
		md.PlainText("")
	}
}

// writeFooter writes the summary footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [webharvest](https://github.com/webharvest/webharvest)*")
}

// truncateString truncates a string to maxLen characters with ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
