package mapping

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Entry is the accumulated result for one canonical category. Content
// concatenates every section assigned to the category; the score fields
// hold the scores of the latest assignment only. A never-assigned
// category keeps empty content and nil scores, which is the observable
// "no match found" signal for downstream reporting.
type Entry struct {
	Category      string   `json:"category"`
	Content       string   `json:"content"`
	SemanticScore *float64 `json:"semantic_score"`
	FuzzyScore    *int     `json:"fuzzy_score"`
}

// Assigned reports whether the category received at least one section.
func (e *Entry) Assigned() bool { return e.SemanticScore != nil || e.FuzzyScore != nil }

// ResultSet accumulates mapped content per canonical category for one
// mapping run. Every canonical label is present from construction.
type ResultSet struct {
	order   []string
	entries map[string]*Entry
}

// NewResultSet initializes a result set with all labels present and
// empty.
func NewResultSet(labels []string) *ResultSet {
	rs := &ResultSet{
		order:   append([]string(nil), labels...),
		entries: make(map[string]*Entry, len(labels)),
	}
	for _, l := range labels {
		rs.entries[l] = &Entry{Category: l}
	}
	return rs
}

// Assign records a section's content under a category. When the
// category already holds content, the new content is appended after a
// newline separator; the score fields are always overwritten with the
// latest assignment's scores. The asymmetry is deliberate: content
// accumulates from every contributing section, scores reflect the most
// recent one.
func (rs *ResultSet) Assign(category, content string, semanticScore float64, fuzzyScore int) error {
	e, ok := rs.entries[category]
	if !ok {
		return fmt.Errorf("assigning to %q: unknown category", category)
	}
	if e.Content != "" {
		e.Content += "\n" + content
	} else {
		e.Content = content
	}
	sem, fz := semanticScore, fuzzyScore
	e.SemanticScore = &sem
	e.FuzzyScore = &fz
	return nil
}

// Get returns the entry for a category.
func (rs *ResultSet) Get(category string) (*Entry, bool) {
	e, ok := rs.entries[category]
	return e, ok
}

// Entries returns all entries in canonical label order.
func (rs *ResultSet) Entries() []*Entry {
	out := make([]*Entry, len(rs.order))
	for i, l := range rs.order {
		out[i] = rs.entries[l]
	}
	return out
}

// Labels returns the canonical label set in order.
func (rs *ResultSet) Labels() []string { return rs.order }

// MarshalJSON serializes the result set as a JSON object whose keys
// appear in canonical label order.
func (rs *ResultSet) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, label := range rs.order {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(label)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		e := rs.entries[label]
		val, err := json.Marshal(struct {
			Content       string   `json:"content"`
			SemanticScore *float64 `json:"semantic_score"`
			FuzzyScore    *int     `json:"fuzzy_score"`
		}{e.Content, e.SemanticScore, e.FuzzyScore})
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
