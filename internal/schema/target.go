// Package schema builds the ordered output schema a curation request asks
// for and checks model output against it.
package schema

import (
	"bytes"
	"encoding/json"
)

// Reserved column names shared with the curation spreadsheets.
const (
	ApprovalColumn = "APROVAÇÃO CURADOR (marcar)"
	FeedbackColumn = "FEEDBACK DO CURADOR (escrever)"
	CategoryColumn = "CATEGORIA"
)

// Target is the ordered, duplicate-free key set of a curation result.
type Target struct {
	keys []string
}

// Build derives the target schema from caller headers: order is kept,
// duplicates and the category column are dropped, and both curation
// columns are appended when missing.
func Build(headers []string) Target {
	seen := make(map[string]bool, len(headers)+2)
	keys := make([]string, 0, len(headers)+2)
	for _, h := range headers {
		if h == CategoryColumn || seen[h] {
			continue
		}
		seen[h] = true
		keys = append(keys, h)
	}
	for _, col := range []string{ApprovalColumn, FeedbackColumn} {
		if !seen[col] {
			seen[col] = true
			keys = append(keys, col)
		}
	}
	return Target{keys: keys}
}

// Keys returns a copy of the ordered keys.
func (t Target) Keys() []string {
	return append([]string(nil), t.keys...)
}

// Len returns the number of keys.
func (t Target) Len() int { return len(t.keys) }

// Has reports whether key is part of the schema.
func (t Target) Has(key string) bool {
	for _, k := range t.keys {
		if k == key {
			return true
		}
	}
	return false
}

// HasCurationColumns reports whether both curation columns are present.
func (t Target) HasCurationColumns() bool {
	return t.Has(ApprovalColumn) && t.Has(FeedbackColumn)
}

// Skeleton renders the schema as an indented JSON object mapping every key
// to an empty string, in schema order.
func (t Target) Skeleton() string {
	v := NewValues()
	for _, k := range t.keys {
		v.Set(k, "")
	}
	data, _ := v.MarshalJSON()
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		return string(data)
	}
	return buf.String()
}

// RequestsCuration reports whether the caller asked for either curation
// column.
func RequestsCuration(headers []string) bool {
	for _, h := range headers {
		if h == ApprovalColumn || h == FeedbackColumn {
			return true
		}
	}
	return false
}

// ShortTextRejection is the fixed verdict for documents too short to assess.
func ShortTextRejection() Values {
	v := NewValues()
	v.Set(ApprovalColumn, false)
	v.Set(FeedbackColumn, "Rejeitado: Texto insuficiente para análise científica.")
	return v
}
