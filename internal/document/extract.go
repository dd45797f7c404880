package document

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// DefaultMaxPages bounds how many leading PDF pages are read. Metadata lives
// near the start of a paper; the rest only costs latency.
const DefaultMaxPages = 10

var (
	// ErrDecode is returned when the payload is not valid base64, plain text
	// is not valid UTF-8, or the declared content kind is unknown.
	ErrDecode = errors.New("invalid document encoding")

	// ErrExtraction is returned when the decoded bytes cannot be read as the
	// declared content kind.
	ErrExtraction = errors.New("unreadable document")
)

// ExtractionError carries the failure class (ErrDecode or ErrExtraction)
// together with the underlying cause.
type ExtractionError struct {
	Kind  error
	Cause error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("%v: %v", e.Kind, e.Cause)
}

func (e *ExtractionError) Unwrap() []error {
	return []error{e.Kind, e.Cause}
}

// Kind is the declared content type of an incoming document.
type Kind string

const (
	KindText Kind = "text"
	KindPDF  Kind = "pdf"
)

// ParseKind maps a wire content type to a Kind.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindText:
		return KindText, nil
	case KindPDF:
		return KindPDF, nil
	default:
		return "", &ExtractionError{Kind: ErrDecode, Cause: fmt.Errorf("unknown content type %q", s)}
	}
}

// Document is the cleaned text of one request's payload.
type Document struct {
	Text   string
	Length int
}

func newDocument(text string) Document {
	return Document{Text: text, Length: utf8.RuneCountInString(text)}
}

// PDFParser opens raw PDF bytes.
type PDFParser interface {
	Parse(data []byte) (PDFDocument, error)
}

// PDFDocument exposes per-page plain text. Pages are numbered from 1.
type PDFDocument interface {
	NumPages() int
	PageText(n int) (string, error)
}

// Extractor turns encoded payloads into normalized text.
type Extractor struct {
	pdf      PDFParser
	maxPages int
}

// NewExtractor creates an Extractor. A nil parser selects the built-in PDF
// reader; maxPages <= 0 selects DefaultMaxPages.
func NewExtractor(parser PDFParser, maxPages int) *Extractor {
	if parser == nil {
		parser = PlainTextPDF{}
	}
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}
	return &Extractor{pdf: parser, maxPages: maxPages}
}

// Extract decodes encoded according to kind and returns its normalized text.
func (e *Extractor) Extract(encoded string, kind Kind) (Document, error) {
	switch kind {
	case KindText:
		raw, err := decodeBase64(encoded)
		if err != nil {
			return Document{}, err
		}
		if !utf8.Valid(raw) {
			return Document{}, &ExtractionError{Kind: ErrDecode, Cause: errors.New("payload is not valid UTF-8")}
		}
		return newDocument(Normalize(string(raw))), nil
	case KindPDF:
		if i := strings.IndexByte(encoded, ','); i >= 0 {
			encoded = encoded[i+1:]
		}
		raw, err := decodeBase64(encoded)
		if err != nil {
			return Document{}, err
		}
		text, err := e.readPDF(raw)
		if err != nil {
			return Document{}, &ExtractionError{Kind: ErrExtraction, Cause: err}
		}
		return newDocument(Normalize(norm.NFC.String(text))), nil
	default:
		return Document{}, &ExtractionError{Kind: ErrDecode, Cause: fmt.Errorf("unknown content type %q", kind)}
	}
}

func decodeBase64(s string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, &ExtractionError{Kind: ErrDecode, Cause: err}
	}
	return raw, nil
}

// readPDF concatenates the non-empty text of the first maxPages pages.
// Malformed files can make the parser panic; that is reported as an error.
func (e *Extractor) readPDF(data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parsing pdf: %v", r)
		}
	}()

	doc, err := e.pdf.Parse(data)
	if err != nil {
		return "", fmt.Errorf("parsing pdf: %w", err)
	}

	n := min(doc.NumPages(), e.maxPages)
	var b strings.Builder
	for i := 1; i <= n; i++ {
		page, err := doc.PageText(i)
		if err != nil {
			return "", fmt.Errorf("reading page %d: %w", i, err)
		}
		if strings.TrimSpace(page) == "" {
			continue
		}
		b.WriteString(page)
		b.WriteByte('\n')
	}
	return b.String(), nil
}
