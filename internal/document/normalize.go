package document

import (
	"regexp"
	"strings"
)

// RE2's \s is ASCII-only; \p{Z} adds U+00A0 and the other Unicode spaces
// PDF text extraction produces.
var (
	controlChars = regexp.MustCompile("[\x00-\x08\x0b\x0c\x0e-\x1f\x7f]")
	whitespace   = regexp.MustCompile(`[\s\p{Z}]+`)
	pageMarkers  = regexp.MustCompile(`(?i)(page[\s\p{Z}]+\d+[\s\p{Z}]+of[\s\p{Z}]+\d+|página[\s\p{Z}]+\d+[\s\p{Z}]+de[\s\p{Z}]+\d+)`)
)

// Normalize cleans raw extracted text before it reaches a model: control
// characters are removed, whitespace runs collapse to a single space,
// pagination footers ("Page 3 of 10", "Página 3 de 10") are dropped and the
// result is trimmed.
func Normalize(raw string) string {
	if raw == "" {
		return ""
	}
	s := controlChars.ReplaceAllString(raw, "")
	s = whitespace.ReplaceAllString(s, " ")
	// Removing a marker can splice a new one together; repeat until stable.
	for {
		next := whitespace.ReplaceAllString(pageMarkers.ReplaceAllString(s, ""), " ")
		if next == s {
			break
		}
		s = next
	}
	return strings.TrimSpace(s)
}
