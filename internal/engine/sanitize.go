package engine

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/kalambet/curador/internal/schema"
)

const (
	fence        = "```"
	prefixLength = 200
)

var errEmptyOutput = errors.New("empty output")

// ParseModelJSON removes a Markdown code fence around raw, if any, and parses
// the rest as one JSON object, keeping the model's key order.
func ParseModelJSON(raw string) (schema.Values, error) {
	body := StripFence(raw)
	if body == "" {
		return schema.Values{}, Malformed(raw, errEmptyOutput)
	}

	var v schema.Values
	if err := json.Unmarshal([]byte(body), &v); err != nil {
		return schema.Values{}, Malformed(raw, err)
	}
	return v, nil
}

// StripFence drops a leading fence line (with or without a language tag) and
// a trailing fence, then trims.
func StripFence(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, fence) {
		if i := strings.IndexByte(s, '\n'); i >= 0 {
			s = s[i+1:]
		} else {
			s = stripLangTag(strings.TrimPrefix(s, fence))
		}
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, fence)
	return strings.TrimSpace(s)
}

// stripLangTag drops a language tag such as "json" glued to the opening fence
// of a single-line block. The tag must be followed by a space or the JSON.
func stripLangTag(s string) string {
	i := strings.IndexFunc(s, func(r rune) bool {
		return (r < 'a' || r > 'z') && (r < 'A' || r > 'Z')
	})
	if i <= 0 {
		return s
	}
	switch s[i] {
	case ' ', '\t', '{', '[':
		return s[i:]
	}
	return s
}

func prefix(s string) string {
	r := []rune(s)
	if len(r) > prefixLength {
		return string(r[:prefixLength])
	}
	return s
}

// Malformed wraps cause as a MalformedOutputError for raw.
func Malformed(raw string, cause error) *MalformedOutputError {
	return &MalformedOutputError{Prefix: prefix(raw), Cause: cause}
}
