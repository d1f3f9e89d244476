// Package export writes the signed-in account's documents, receipts and
// returns to an XLSX workbook.
package export

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/tax-portal/internal/common"
	"github.com/joseph-ayodele/tax-portal/internal/entity"
)

const (
	SheetDocuments = "Documents"
	SheetReceipts  = "Receipts"
	SheetReturns   = "Returns"

	noteWidth = 140
)

// Source is the read side of the session store.
type Source interface {
	Documents() []entity.Document
	Receipts() []entity.Receipt
	Returns() []entity.TaxReturn
}

// Window limits receipts by date. From without To runs to today (UTC);
// both nil exports everything.
type Window struct {
	From *time.Time
	To   *time.Time
}

type Service struct {
	source Source
	logger *slog.Logger
	now    func() time.Time
}

func NewService(source Source, logger *slog.Logger) *Service {
	return &Service{source: source, logger: common.LoggerOrDefault(logger), now: time.Now}
}

// Stats counts the rows written per sheet.
type Stats struct {
	Documents int
	Receipts  int
	Returns   int
}

// WorkbookXLSX returns the workbook bytes.
func (s *Service) WorkbookXLSX(ctx context.Context, w Window) ([]byte, Stats, error) {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return nil, Stats{}, err
	}
	from, to := s.normalize(w)

	f := excelize.NewFile()
	defer f.Close()

	var stats Stats
	var err error
	if stats.Documents, err = writeDocuments(f, s.source.Documents()); err != nil {
		return nil, Stats{}, err
	}
	if stats.Receipts, err = writeReceipts(f, s.source.Receipts(), from, to); err != nil {
		return nil, Stats{}, err
	}
	if stats.Returns, err = writeReturns(f, s.source.Returns()); err != nil {
		return nil, Stats{}, err
	}

	// excelize starts with Sheet1; every sheet we need now exists.
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, Stats{}, fmt.Errorf("xlsx drop default sheet: %w", err)
	}
	if idx, _ := f.GetSheetIndex(SheetDocuments); idx >= 0 {
		f.SetActiveSheet(idx)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, Stats{}, fmt.Errorf("xlsx write: %w", err)
	}
	s.logger.Info("export.xlsx.ok",
		"documents", stats.Documents,
		"receipts", stats.Receipts,
		"returns", stats.Returns,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), stats, nil
}

func (s *Service) normalize(w Window) (from, to *time.Time) {
	day := func(t time.Time) *time.Time {
		d := entity.DateOf(t).Time
		return &d
	}
	if w.From != nil {
		from = day(*w.From)
	}
	if w.To != nil {
		to = day(*w.To)
	}
	if from != nil && to == nil {
		to = day(s.now())
	}
	return from, to
}

type sheetWriter struct {
	f     *excelize.File
	sheet string
	row   int
}

func newSheet(f *excelize.File, sheet string, headers []string) (*sheetWriter, error) {
	if _, err := f.NewSheet(sheet); err != nil {
		return nil, fmt.Errorf("xlsx sheet %s: %w", sheet, err)
	}
	w := &sheetWriter{f: f, sheet: sheet, row: 1}
	if err := w.write(toAny(headers)...); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *sheetWriter) write(values ...any) error {
	cell, err := excelize.CoordinatesToCellName(1, w.row)
	if err != nil {
		return err
	}
	if err := w.f.SetSheetRow(w.sheet, cell, &values); err != nil {
		return fmt.Errorf("xlsx %s row %d: %w", w.sheet, w.row, err)
	}
	w.row++
	return nil
}

func (w *sheetWriter) widths(widths map[string]float64) {
	for col, width := range widths {
		_ = w.f.SetColWidth(w.sheet, col, col, width)
	}
}

func writeDocuments(f *excelize.File, docs []entity.Document) (int, error) {
	w, err := newSheet(f, SheetDocuments, []string{"ID", "Document Type", "File Path", "Uploaded At", "Extracted Fields", "Raw Text"})
	if err != nil {
		return 0, err
	}
	for _, d := range docs {
		fields, raw := 0, ""
		if d.Extraction != nil {
			if d.Extraction.Fields != nil {
				fields = d.Extraction.Fields.Len()
			}
			if d.Extraction.HasRawText() {
				raw = truncate(strings.TrimSpace(*d.Extraction.RawText), noteWidth)
			}
		}
		if err := w.write(d.ID, d.DocumentType.Label(), d.FilePath, stamp(d.UploadedAt), fields, raw); err != nil {
			return 0, err
		}
	}
	w.widths(map[string]float64{"B": 14, "C": 48, "D": 20, "F": 60})
	return len(docs), nil
}

func writeReceipts(f *excelize.File, recs []entity.Receipt, from, to *time.Time) (int, error) {
	w, err := newSheet(f, SheetReceipts, []string{"Transaction Date", "Expense Category", "Amount", "Receipt/File Path", "Uploaded At"})
	if err != nil {
		return 0, err
	}
	n := 0
	for _, r := range recs {
		if !inWindow(r.Date.Time, from, to) {
			continue
		}
		if err := w.write(r.Date.String(), r.Category, r.Amount.InexactFloat64(), r.FilePath, stamp(r.UploadedAt)); err != nil {
			return 0, err
		}
		n++
	}
	w.widths(map[string]float64{"A": 14, "B": 22, "C": 14, "D": 60, "E": 20})
	return n, nil
}

func writeReturns(f *excelize.File, returns []entity.TaxReturn) (int, error) {
	w, err := newSheet(f, SheetReturns, []string{"Year", "Status", "CPA", "Created At", "Updated At"})
	if err != nil {
		return 0, err
	}
	for _, r := range returns {
		cpa := ""
		if r.CPAID != nil {
			cpa = fmt.Sprint(*r.CPAID)
		}
		if err := w.write(r.Year, string(r.Status), cpa, stamp(r.CreatedAt), stamp(r.UpdatedAt)); err != nil {
			return 0, err
		}
	}
	w.widths(map[string]float64{"B": 12, "D": 20, "E": 20})
	return len(returns), nil
}

// inWindow treats an undated receipt as outside any bounded window.
func inWindow(d time.Time, from, to *time.Time) bool {
	if from == nil && to == nil {
		return true
	}
	if d.IsZero() {
		return false
	}
	if from != nil && d.Before(*from) {
		return false
	}
	if to != nil && d.After(*to) {
		return false
	}
	return true
}

func stamp(t entity.Timestamp) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02 15:04:05")
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	if n == 1 {
		return string(r[:1])
	}
	return string(r[:n-1]) + "…"
}
