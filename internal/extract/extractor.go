// Package extract applies selector maps to parsed HTML and produces
// records.
//
// Both selector kinds evaluate against one lenient parse tree: CSS via
// goquery/cascadia, XPath via htmlquery. Parsing is best-effort tree
// repair, so malformed HTML never aborts extraction; a field whose
// expression cannot be evaluated surfaces as a field-scoped error, not a
// failure of the whole record.
package extract

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/antchfx/htmlquery"
	"github.com/antchfx/xpath"
	"golang.org/x/net/html"

	"github.com/webharvest/webharvest/internal/model"
)

// whitespaceRe collapses runs of whitespace inside extracted text, so
// that multi-line node content becomes a single clean value.
var whitespaceRe = regexp.MustCompile(`\s+`)

// Parse builds the DOM tree for a page. html.Parse repairs malformed
// markup, so an error here means the input could not be read at all.
func Parse(pageHTML string) (*html.Node, error) {
	root, err := html.Parse(strings.NewReader(pageHTML))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return root, nil
}

// CompileCheck validates every selector expression in the map without
// touching the network. It backs fail-fast configuration validation:
// a malformed expression here is a configuration error, detected before
// any fetch.
func CompileCheck(fields model.SelectorMap) error {
	for _, f := range fields {
		if err := CompileSelector(f.Selector); err != nil {
			return fmt.Errorf("field %q: %w", f.Name, err)
		}
	}
	return nil
}

// CompileSelector validates a single selector expression for its kind.
func CompileSelector(sel model.Selector) error {
	switch sel.Kind {
	case model.KindXPath:
		if _, err := xpath.Compile(sel.Expr); err != nil {
			return fmt.Errorf("invalid xpath %q: %w", sel.Expr, err)
		}
	default:
		if _, err := cascadia.Compile(sel.Expr); err != nil {
			return fmt.Errorf("invalid css selector %q: %w", sel.Expr, err)
		}
	}
	return nil
}

// Extract parses pageHTML and applies the selector map. See FromNode for
// the record semantics.
func Extract(pageHTML string, fields model.SelectorMap) ([]model.Record, error) {
	root, err := Parse(pageHTML)
	if err != nil {
		return nil, err
	}
	return FromNode(root, fields), nil
}

// FromNode applies the selector map to a parsed tree and returns the
// page's records.
//
// Record semantics:
//   - Non-repeating fields take the first match in document order; no
//     match yields an explicit missing marker, never an absent key.
//   - Repeating fields contribute one value per matched node. The page
//     yields one record per index up to the longest repeating list;
//     shorter lists pad with the missing marker (positional zip by
//     document order). Non-repeating values are copied into every record.
//   - A field whose expression fails to compile or evaluate carries a
//     field-scoped error in every record; sibling fields are unaffected.
//
// With no repeating fields the page yields exactly one record. An empty
// selector map yields one record with no fields.
func FromNode(root *html.Node, fields model.SelectorMap) []model.Record {
	columns := make([][]model.FieldValue, len(fields))
	rows := 1

	for i, f := range fields {
		columns[i] = evalField(root, f)
		if f.Selector.Repeating && len(columns[i]) > rows {
			rows = len(columns[i])
		}
	}

	records := make([]model.Record, rows)
	for row := range rows {
		rec := model.Record{Fields: make([]model.FieldValue, len(fields))}
		for col, f := range fields {
			rec.Fields[col] = valueAt(f, columns[col], row)
		}
		records[row] = rec
	}
	return records
}

// valueAt picks the value of one field for one record row.
func valueAt(f model.Field, column []model.FieldValue, row int) model.FieldValue {
	if !f.Selector.Repeating {
		return column[0]
	}
	if row < len(column) {
		return column[row]
	}
	// Zipped sibling lists of unequal length pad with the missing marker.
	return model.FieldValue{Name: f.Name, Missing: true}
}

// evalField evaluates one field's selector and returns its value list.
// Non-repeating fields always return exactly one entry.
func evalField(root *html.Node, f model.Field) []model.FieldValue {
	values, err := evalSelector(root, f.Selector)
	if err != nil {
		return []model.FieldValue{{Name: f.Name, Err: err.Error()}}
	}

	if !f.Selector.Repeating {
		if len(values) == 0 {
			return []model.FieldValue{{Name: f.Name, Missing: true}}
		}
		return []model.FieldValue{{Name: f.Name, Value: values[0]}}
	}

	out := make([]model.FieldValue, len(values))
	for i, v := range values {
		out[i] = model.FieldValue{Name: f.Name, Value: v}
	}
	return out
}

// First returns the first match of sel in document order, or ok=false
// when nothing matches. The paginator uses this to locate next-page links.
func First(root *html.Node, sel model.Selector) (string, bool, error) {
	values, err := evalSelector(root, sel)
	if err != nil {
		return "", false, err
	}
	if len(values) == 0 {
		return "", false, nil
	}
	return values[0], true, nil
}

// evalSelector returns the selector's matches in document order, one
// string per matched node.
func evalSelector(root *html.Node, sel model.Selector) ([]string, error) {
	switch sel.Kind {
	case model.KindXPath:
		return evalXPath(root, sel)
	default:
		return evalCSS(root, sel)
	}
}

// evalCSS resolves a CSS selector via goquery. The expression is
// compiled explicitly so invalid selectors become errors rather than
// goquery panics.
func evalCSS(root *html.Node, sel model.Selector) ([]string, error) {
	matcher, err := cascadia.Compile(sel.Expr)
	if err != nil {
		return nil, fmt.Errorf("invalid css selector %q: %w", sel.Expr, err)
	}

	doc := goquery.NewDocumentFromNode(root)
	var values []string
	doc.FindMatcher(matcher).Each(func(_ int, s *goquery.Selection) {
		if sel.Attr != "" {
			if v, ok := s.Attr(sel.Attr); ok {
				values = append(values, cleanText(v))
			} else {
				values = append(values, "")
			}
			return
		}
		values = append(values, cleanText(s.Text()))
	})
	return values, nil
}

// evalXPath resolves an XPath expression via htmlquery.
func evalXPath(root *html.Node, sel model.Selector) ([]string, error) {
	expr, err := xpath.Compile(sel.Expr)
	if err != nil {
		return nil, fmt.Errorf("invalid xpath %q: %w", sel.Expr, err)
	}

	nodes := htmlquery.QuerySelectorAll(root, expr)
	values := make([]string, 0, len(nodes))
	for _, n := range nodes {
		if sel.Attr != "" {
			values = append(values, cleanText(htmlquery.SelectAttr(n, sel.Attr)))
			continue
		}
		values = append(values, cleanText(htmlquery.InnerText(n)))
	}
	return values, nil
}

// cleanText trims and collapses internal whitespace so nested markup
// produces a single-line value.
func cleanText(s string) string {
	return whitespaceRe.ReplaceAllString(strings.TrimSpace(s), " ")
}
