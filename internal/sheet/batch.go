// Package sheet curates the rows of a curation spreadsheet in batch: each
// pending row's document is sent for curation and the verdict is written
// back into the workbook.
package sheet

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/kalambet/curador/internal/document"
	"github.com/kalambet/curador/internal/pipeline"
	"github.com/kalambet/curador/internal/schema"
)

// DefaultSheet is the worksheet holding the article table.
const DefaultSheet = "Tabela completa"

// Column names the batch relies on besides the curation columns.
const (
	DocumentColumn = "URL DO DOCUMENTO"
	RejectedColumn = "ARTIGOS REJEITADOS"
)

// Archive subdirectories, created next to the curated documents.
const (
	ApprovedDir = "aprovados"
	RejectedDir = "reprovados"
)

const maxErrorChars = 500

// MetadataFields are the columns filled by curation, in sheet order.
var MetadataFields = []string{
	"Autor(es)",
	"Titulo",
	"Subtítulo",
	"Ano",
	"Número de citações recebidas (Google Scholar)",
	"Palavras-chave",
	"Resumo",
	"Tipo de documento",
	"Editora",
	"Instituição",
	"Local",
	"Tipo de trabalho",
	"Título do periódico",
	"Quartil do periódico",
	"Volume",
	"Número/fascículo",
	"Páginas",
	"DOI",
	"Numeração",
	"Qualis",
	"Caracteristicas do solo e região (escrever)",
	"ferramentas e técnicas (seleção)",
	"nutrientes (seleção)",
	"estratégias de fornecimento de nutrientes (seleção)",
	"grupos de culturas (seleção)",
	"culturas presentes (seleção)",
	schema.FeedbackColumn,
}

// ErrMissingColumns is returned when the sheet lacks a column the batch
// needs to track row status.
var ErrMissingColumns = errors.New("essential curation columns not found in sheet")

// Curator is the curation service rows are sent to.
type Curator interface {
	Curate(ctx context.Context, req pipeline.Request) (schema.Values, error)
	Categorize(ctx context.Context, req pipeline.Request) (pipeline.CategoryResult, error)
}

// Options tunes a batch run.
type Options struct {
	// Sheet is the worksheet name. Empty means DefaultSheet.
	Sheet string
	// DocumentsDir resolves relative document paths. Empty means the
	// workbook's directory.
	DocumentsDir string
	// Headers are sent as the curation schema. Empty means MetadataFields.
	Headers []string
	// Row selects a single 1-based sheet row (>= 2) and processes it
	// whatever its status. Zero processes every pending row.
	Row int
	// Archive moves curated documents into ApprovedDir or RejectedDir with a
	// metadata sidecar.
	Archive bool
	// FillCategory categorizes rows whose category cell is empty before
	// curating them.
	FillCategory bool
}

// Result counts the rows of a run.
type Result struct {
	Processed int
	Failed    int
	Skipped   int
}

// Batch processes a workbook against a Curator.
type Batch struct {
	curator Curator
	opts    Options
	logger  *slog.Logger
}

// New creates a Batch. A nil logger selects slog.Default().
func New(c Curator, opts Options, logger *slog.Logger) *Batch {
	if opts.Sheet == "" {
		opts.Sheet = DefaultSheet
	}
	if len(opts.Headers) == 0 {
		opts.Headers = MetadataFields
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Batch{curator: c, opts: opts, logger: logger}
}

// columns holds the indexes of the status columns; -1 when absent.
type columns struct {
	approval int
	rejected int
	document int
	feedback int
	category int
	headers  []string
}

func locate(headers []string) columns {
	c := columns{headers: headers}
	c.approval = c.index(schema.ApprovalColumn)
	c.rejected = c.index(RejectedColumn)
	c.document = c.index(DocumentColumn)
	c.feedback = c.index(schema.FeedbackColumn)
	c.category = c.index(schema.CategoryColumn)
	return c
}

func (c columns) index(name string) int {
	for i, h := range c.headers {
		if strings.TrimSpace(h) == name {
			return i
		}
	}
	return -1
}

// Run processes the workbook at path and saves it after every row.
func (b *Batch) Run(ctx context.Context, path string) (Result, error) {
	var res Result

	f, err := excelize.OpenFile(path)
	if err != nil {
		return res, fmt.Errorf("opening workbook: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(b.opts.Sheet)
	if err != nil {
		return res, fmt.Errorf("reading sheet %q: %w", b.opts.Sheet, err)
	}
	if len(rows) == 0 {
		return res, fmt.Errorf("sheet %q has no header row", b.opts.Sheet)
	}

	cols := locate(rows[0])
	if cols.approval < 0 || cols.rejected < 0 || cols.document < 0 || cols.feedback < 0 {
		return res, ErrMissingColumns
	}

	docsDir := b.opts.DocumentsDir
	if docsDir == "" {
		docsDir = filepath.Dir(path)
	}

	if b.opts.Row != 0 {
		if b.opts.Row < 2 || b.opts.Row > len(rows) {
			return res, fmt.Errorf("row %d is outside the data rows 2..%d", b.opts.Row, len(rows))
		}
	}

	for i := 1; i < len(rows); i++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		sheetRow := i + 1
		row := rows[i]

		if b.opts.Row != 0 && sheetRow != b.opts.Row {
			continue
		}
		if b.opts.Row == 0 {
			if truthy(cell(row, cols.approval)) || truthy(cell(row, cols.rejected)) {
				continue
			}
			if strings.TrimSpace(cell(row, cols.document)) == "" {
				res.Skipped++
				continue
			}
		}

		w := &rowWriter{f: f, sheet: b.opts.Sheet, row: sheetRow, values: padRow(row, len(cols.headers))}
		if err := b.processRow(ctx, w, cols, docsDir); err != nil {
			res.Failed++
			b.logger.Warn("sheet.row_failed", "row", sheetRow, "error", err)
			w.set(cols.feedback, errorMessage(err))
		} else {
			res.Processed++
		}
		if w.err != nil {
			return res, fmt.Errorf("writing row %d: %w", sheetRow, w.err)
		}
		if err := f.Save(); err != nil {
			return res, fmt.Errorf("saving workbook: %w", err)
		}
	}

	b.logger.Info("sheet.done", "processed", res.Processed, "failed", res.Failed, "skipped", res.Skipped)
	return res, nil
}

func (b *Batch) processRow(ctx context.Context, w *rowWriter, cols columns, docsDir string) error {
	name := strings.TrimSpace(cell(w.values, cols.document))
	if name == "" {
		return errors.New("row has no document path")
	}
	docPath := name
	if !filepath.IsAbs(docPath) {
		docPath = filepath.Join(docsDir, name)
	}

	data, err := os.ReadFile(docPath)
	if err != nil {
		return fmt.Errorf("document not found locally: %w", err)
	}
	req := pipeline.Request{
		EncodedContent: base64.StdEncoding.EncodeToString(data),
		ContentType:    string(contentKind(docPath)),
		Headers:        b.opts.Headers,
		Category:       strings.TrimSpace(cell(w.values, cols.category)),
	}

	if req.Category == "" && b.opts.FillCategory && cols.category >= 0 {
		cat, err := b.curator.Categorize(ctx, req)
		if err != nil {
			return fmt.Errorf("categorizing: %w", err)
		}
		req.Category = cat.Category
		w.set(cols.category, cat.Category)
	}

	b.logger.Debug("sheet.row", "row", w.row, "document", name, "category", req.Category)
	values, err := b.curator.Curate(ctx, req)
	if err != nil {
		return err
	}

	for _, h := range b.opts.Headers {
		idx := cols.index(h)
		if idx < 0 {
			continue
		}
		v, ok := values.Get(h)
		if !ok {
			w.set(idx, "N/A")
			continue
		}
		w.set(idx, cellText(v))
	}

	approval, _ := values.Get(schema.ApprovalColumn)
	approved, _ := schema.ParseBool(approval)
	w.set(cols.approval, boolCell(approved))
	w.set(cols.rejected, boolCell(!approved))
	feedback := "N/A"
	if v, ok := values.Get(schema.FeedbackColumn); ok && cellText(v) != "" {
		feedback = cellText(v)
	}
	w.set(cols.feedback, feedback)

	if b.opts.Archive {
		if err := archive(docPath, approved, cols.headers, w.values); err != nil {
			b.logger.Warn("sheet.archive_failed", "row", w.row, "document", name, "error", err)
		}
	}
	return nil
}

// rowWriter updates both the in-memory row and the worksheet. The first
// write error is kept.
type rowWriter struct {
	f      *excelize.File
	sheet  string
	row    int
	values []string
	err    error
}

func (w *rowWriter) set(col int, v string) {
	if col < 0 || w.err != nil {
		return
	}
	for len(w.values) <= col {
		w.values = append(w.values, "")
	}
	w.values[col] = v
	name, err := excelize.CoordinatesToCellName(col+1, w.row)
	if err != nil {
		w.err = err
		return
	}
	w.err = w.f.SetCellValue(w.sheet, name, v)
}

// archive moves the document into the approved or rejected directory and
// writes a "header: value" sidecar next to it.
func archive(docPath string, approved bool, headers, row []string) error {
	sub := RejectedDir
	if approved {
		sub = ApprovedDir
	}
	dir := filepath.Join(filepath.Dir(docPath), sub)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	base := filepath.Base(docPath)
	if err := os.Rename(docPath, filepath.Join(dir, base)); err != nil {
		return err
	}

	var sb strings.Builder
	for i, h := range headers {
		fmt.Fprintf(&sb, "%s: %s\n", h, cell(row, i))
	}
	sidecar := strings.TrimSuffix(base, filepath.Ext(base)) + ".txt"
	return os.WriteFile(filepath.Join(dir, sidecar), []byte(sb.String()), 0o644)
}

func contentKind(path string) document.Kind {
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		return document.KindPDF
	}
	return document.KindText
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

func padRow(row []string, n int) []string {
	out := make([]string, max(len(row), n))
	copy(out, row)
	return out
}

// truthy reports whether a sheet cell reads as true.
func truthy(s string) bool {
	b, ok := schema.ParseBool(s)
	return ok && b
}

func boolCell(b bool) string {
	if b {
		return "TRUE"
	}
	return "FALSE"
}

func cellText(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return boolCell(x)
	default:
		return fmt.Sprint(x)
	}
}

func errorMessage(err error) string {
	msg := err.Error()
	if r := []rune(msg); len(r) > maxErrorChars {
		msg = string(r[:maxErrorChars])
	}
	return "ERRO: " + msg
}
