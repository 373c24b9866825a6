package model

import "time"

// FieldValue is one extracted cell of a record.
//
// A field whose selector matched nothing carries Missing=true and an
// empty value; a field whose selector could not be evaluated at all
// carries Err describing the selector failure. The key is always present
// in the record either way.
type FieldValue struct {
	// Name is the field name from the selector map.
	Name string `json:"name"`

	// Value is the trimmed text (or attribute) content of the first
	// matched node, or the positional match for repeating fields.
	Value string `json:"value"`

	// Missing marks a selector that matched no node.
	Missing bool `json:"missing,omitempty"`

	// Err holds a field-scoped selector evaluation error. It never
	// aborts the record; sibling fields are unaffected.
	Err string `json:"error,omitempty"`
}

// Record is one extracted row of field -> value data, in selector-map
// order, plus provenance metadata stamped by the orchestrator.
type Record struct {
	// Fields are the extracted values in selector-map order.
	Fields []FieldValue `json:"fields"`

	// URL is the page the record was extracted from.
	URL string `json:"url"`

	// PageNumber is the 1-based position of the page within the run.
	PageNumber int `json:"page_number"`

	// ScrapedAt is the extraction timestamp.
	ScrapedAt time.Time `json:"scraped_at"`
}

// Get returns the value of the named field and whether it is present
// and non-missing.
func (r *Record) Get(name string) (string, bool) {
	for _, f := range r.Fields {
		if f.Name == name {
			return f.Value, !f.Missing && f.Err == ""
		}
	}
	return "", false
}
