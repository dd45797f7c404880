package document

import (
	"bytes"

	"github.com/ledongthuc/pdf"
)

// PlainTextPDF reads PDFs with github.com/ledongthuc/pdf.
type PlainTextPDF struct{}

func (PlainTextPDF) Parse(data []byte) (PDFDocument, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}
	return pdfReader{r: r}, nil
}

type pdfReader struct {
	r *pdf.Reader
}

func (p pdfReader) NumPages() int {
	return p.r.NumPage()
}

func (p pdfReader) PageText(n int) (string, error) {
	page := p.r.Page(n)
	if page.V.IsNull() {
		return "", nil
	}
	return page.GetPlainText(nil)
}
