package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ErrNonConforming is returned when model output cannot be brought into the
// shape of the target schema.
var ErrNonConforming = errors.New("output does not match schema")

// Report lists the adjustments Conform made.
type Report struct {
	Dropped []string
	Filled  []string
}

// Conform reshapes parsed model output so its key set equals the target:
// unknown keys are dropped, missing keys become "", list and scalar values
// become strings, and the approval column becomes a boolean. The result is
// validated against the target's JSON Schema.
func Conform(t Target, parsed Values) (Values, Report, error) {
	var rep Report
	for _, k := range parsed.Keys() {
		if !t.Has(k) {
			rep.Dropped = append(rep.Dropped, k)
		}
	}

	out := NewValues()
	for _, k := range t.keys {
		raw, ok := parsed.Get(k)
		if !ok {
			rep.Filled = append(rep.Filled, k)
		}
		if k == ApprovalColumn {
			if b, ok := ParseBool(raw); ok {
				out.Set(k, b)
				continue
			}
			out.Set(k, raw)
			continue
		}
		out.Set(k, stringify(raw))
	}

	if err := Validate(t, out); err != nil {
		return Values{}, rep, err
	}
	return out, rep, nil
}

// ParseBool interprets the approval values models and spreadsheets produce.
// The second result is false when v is not recognizably true or false.
func ParseBool(v any) (bool, bool) {
	switch b := v.(type) {
	case bool:
		return b, true
	case nil:
		return false, true
	case json.Number:
		return b.String() == "1", b.String() == "1" || b.String() == "0"
	case float64:
		return b == 1, b == 1 || b == 0
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "true", "sim", "yes", "verdadeiro", "aprovado", "1":
			return true, true
		case "false", "não", "nao", "no", "falso", "rejeitado", "0", "":
			return false, true
		}
	}
	return false, false
}

func stringify(v any) any {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case json.Number:
		return x.String()
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case []any:
		parts := make([]string, 0, len(x))
		for _, item := range x {
			if s, ok := stringify(item).(string); ok && s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	default:
		data, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(data)
	}
}

// JSONSchema returns a JSON Schema document describing a conforming result:
// every key required, no extra keys, string values, boolean approval.
func (t Target) JSONSchema() map[string]any {
	props := make(map[string]any, len(t.keys))
	for _, k := range t.keys {
		typ := "string"
		if k == ApprovalColumn {
			typ = "boolean"
		}
		props[k] = map[string]any{"type": typ}
	}
	return map[string]any{
		"$schema":              "http://json-schema.org/draft-07/schema#",
		"type":                 "object",
		"properties":           props,
		"required":             t.Keys(),
		"additionalProperties": false,
	}
}

// Validate checks v against the target's JSON Schema.
func Validate(t Target, v Values) error {
	b, err := json.Marshal(t.JSONSchema())
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(b)); err != nil {
		return fmt.Errorf("add schema: %w", err)
	}
	compiled, err := compiler.Compile("schema.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}

	data, err := v.MarshalJSON()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNonConforming, err)
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("%w: %v", ErrNonConforming, err)
	}
	if err := compiled.Validate(doc); err != nil {
		return fmt.Errorf("%w: %v", ErrNonConforming, err)
	}
	return nil
}
