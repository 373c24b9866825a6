package storage

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/webharvest/webharvest/internal/model"
)

// metaColumns are the provenance columns appended after the extracted
// fields in every CSV row.
var metaColumns = []string{"url", "page_number", "scraped_at"}

// CSVWriter outputs run records in CSV format, one row per record.
// Extracted fields come first in selector-map order, followed by the
// provenance columns url, page_number, and scraped_at.
//
// Design decision: We use standard encoding/csv because RFC 4180
// quoting is all the format needs and the package handles it correctly.
type CSVWriter struct {
	baseWriter

	// columns fixes the field column order. When empty, the order is
	// taken from the first record, which carries selector-map order.
	columns []string

	// counter tracks bytes written through the csv encoder, which does
	// not report them itself.
	counter *countingWriter

	// headerWritten suppresses repeated header rows when one writer
	// receives several results, as in batch mode.
	headerWritten bool
}

// CSVWriterOption configures a CSVWriter.
type CSVWriterOption func(*CSVWriter)

// WithColumns fixes the field columns of the output. Useful when a run
// may produce zero records but the header should still be written.
func WithColumns(names []string) CSVWriterOption {
	return func(w *CSVWriter) {
		w.columns = names
	}
}

// NewCSVWriter creates a CSVWriter that outputs to the given writer.
func NewCSVWriter(output io.Writer, opts ...CSVWriterOption) *CSVWriter {
	counter := &countingWriter{w: output}
	w := &CSVWriter{
		baseWriter: newBaseWriter(counter),
		counter:    counter,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the result's records as a CSV document with a header
// row. Missing and errored fields become empty cells.
func (w *CSVWriter) Write(result *model.RunResult) (int, error) {
	start := w.counter.n

	columns := w.columns
	if len(columns) == 0 && len(result.Records) > 0 {
		for _, f := range result.Records[0].Fields {
			columns = append(columns, f.Name)
		}
	}

	enc := csv.NewWriter(w.output)

	if !w.headerWritten {
		header := make([]string, 0, len(columns)+len(metaColumns))
		header = append(header, columns...)
		header = append(header, metaColumns...)
		if err := enc.Write(header); err != nil {
			return w.counter.n - start, err
		}
		w.headerWritten = true
	}

	for i := range result.Records {
		rec := &result.Records[i]
		row := make([]string, 0, len(columns)+len(metaColumns))
		for _, name := range columns {
			value, ok := rec.Get(name)
			if !ok {
				value = ""
			}
			row = append(row, value)
		}
		row = append(row,
			rec.URL,
			strconv.Itoa(rec.PageNumber),
			rec.ScrapedAt.Format("2006-01-02T15:04:05Z07:00"),
		)
		if err := enc.Write(row); err != nil {
			return w.counter.n - start, err
		}
	}

	enc.Flush()
	return w.counter.n - start, enc.Error()
}

// countingWriter counts bytes passing through to the wrapped writer.
type countingWriter struct {
	w io.Writer
	n int
}

// Write implements io.Writer.
func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += n
	return n, err
}
