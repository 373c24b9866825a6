package model

import "fmt"

// SelectorKind identifies the query language a selector expression is
// written in.
//
// Design decision: We represent the kind as a small tagged variant with
// one evaluation path per kind rather than an interface hierarchy because:
//  1. There are exactly two kinds and no per-kind state
//  2. The kind must round-trip through YAML configuration
//  3. A string constant is trivially comparable and printable
type SelectorKind string

const (
	// KindCSS is a CSS selector resolved via DOM query.
	KindCSS SelectorKind = "css"

	// KindXPath is an XPath expression resolved via XPath evaluation.
	KindXPath SelectorKind = "xpath"
)

// IsValid reports whether the kind is one of the known selector kinds.
func (k SelectorKind) IsValid() bool {
	return k == KindCSS || k == KindXPath
}

// Selector is one CSS or XPath expression identifying one or more DOM nodes.
type Selector struct {
	// Expr is the selector expression.
	Expr string `yaml:"selector"`

	// Kind is the query language of Expr. Defaults to KindCSS when empty.
	Kind SelectorKind `yaml:"kind,omitempty"`

	// Attr names an attribute to extract instead of the node's text
	// content. Empty means trimmed text content.
	Attr string `yaml:"attr,omitempty"`

	// Repeating marks the field as producing one value per matched node.
	// Repeating fields of the same selector map are zipped positionally
	// into one record per index.
	Repeating bool `yaml:"repeating,omitempty"`
}

// Field pairs a field name with its selector.
type Field struct {
	Name     string
	Selector Selector
}

// SelectorMap is an ordered mapping of field name to selector.
// Order follows the configuration document so that storage writers emit
// columns in a stable, user-controlled order.
//
// Invariant: field names are unique (enforced by Validate).
// An empty map is legal and yields records with no fields.
type SelectorMap []Field

// Validate checks structural invariants of the selector map: unique,
// non-empty field names, non-empty expressions, and known kinds.
// Expression syntax is checked separately by the extractor, which owns
// the selector engines.
func (m SelectorMap) Validate() error {
	seen := make(map[string]bool, len(m))
	for _, f := range m {
		if f.Name == "" {
			return fmt.Errorf("selector map: empty field name")
		}
		if seen[f.Name] {
			return fmt.Errorf("selector map: duplicate field %q", f.Name)
		}
		seen[f.Name] = true

		if f.Selector.Expr == "" {
			return fmt.Errorf("field %q: empty selector expression", f.Name)
		}
		if f.Selector.Kind != "" && !f.Selector.Kind.IsValid() {
			return fmt.Errorf("field %q: unknown selector kind %q", f.Name, f.Selector.Kind)
		}
	}
	return nil
}

// Names returns the field names in map order.
func (m SelectorMap) Names() []string {
	names := make([]string, len(m))
	for i, f := range m {
		names[i] = f.Name
	}
	return names
}
