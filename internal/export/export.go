// Package export renders report summaries as printable HTML, CSV and XLSX.
package export

import (
	"embed"
	"encoding/csv"
	"fmt"
	"html/template"
	"io"
	"time"

	"estate/internal/core"
	"estate/internal/format"
	"estate/internal/report"

	"github.com/xuri/excelize/v2"
)

//go:embed templates/*.html
var templatesFS embed.FS

const (
	ContentTypeHTML = "text/html; charset=utf-8"
	ContentTypeCSV  = "text/csv; charset=utf-8"
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

type Exporter struct {
	fmt  *format.Formatter
	tmpl *template.Template
	now  func() time.Time
}

type row struct {
	Date        string
	Description string
	Category    string
	Amount      string
}

func New(f *format.Formatter) (*Exporter, error) {
	e := &Exporter{fmt: f, now: time.Now}
	t, err := template.New("report").Funcs(template.FuncMap{
		"currency": f.Currency,
		"percent":  f.Percent,
		"date":     f.Date,
	}).ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse report template: %w", err)
	}
	e.tmpl = t
	return e, nil
}

// PrintHTML writes a self-contained document that opens the print dialog.
func (e *Exporter) PrintHTML(w io.Writer, s report.Summary, categoryNames map[string]string) error {
	title := s.Title
	if title == "" {
		title = "Report"
	}
	rows := make([]row, 0, len(s.Records))
	for _, r := range s.Records {
		rows = append(rows, row{
			Date:        e.fmt.Date(r.Date.Time),
			Description: r.Description,
			Category:    categoryLabel(r, categoryNames),
			Amount:      e.fmt.Currency(r.Amount),
		})
	}
	data := struct {
		Title     string
		Locale    string
		Generated time.Time
		Summary   report.Summary
		Rows      []row
	}{title, e.fmt.Locale(), e.now(), s, rows}

	if err := e.tmpl.ExecuteTemplate(w, "report.html", data); err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	return nil
}

// WriteCSV writes records with a trailing total row. Amounts are plain
// decimals so spreadsheets can parse them.
func (e *Exporter) WriteCSV(w io.Writer, records []core.Record, categoryNames map[string]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"date", "description", "category", "project", "amount", "notes"}); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, r := range records {
		rec := []string{
			r.Date.String(),
			r.Description,
			categoryLabel(r, categoryNames),
			r.ProjectID,
			e.plainAmount(r.Amount),
			r.Notes,
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write csv row %s: %w", r.ID, err)
		}
	}
	total := report.GrandTotal(records)
	if err := cw.Write([]string{"", "Total", "", "", e.plainAmount(total), e.fmt.Currency(total)}); err != nil {
		return fmt.Errorf("write csv total: %w", err)
	}
	cw.Flush()
	return cw.Error()
}

// WriteXLSX writes a workbook with a Records sheet and a Summary sheet.
func (e *Exporter) WriteXLSX(w io.Writer, s report.Summary, categoryNames map[string]string) error {
	f := excelize.NewFile()
	defer f.Close()

	const records = "Records"
	if err := f.SetSheetName("Sheet1", records); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	header := []any{"Date", "Description", "Category", "Project", "Amount", "Notes"}
	if err := f.SetSheetRow(records, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, r := range s.Records {
		amount := r.Amount
		if !core.IsFinite(amount) {
			amount = 0
		}
		values := []any{r.Date.String(), r.Description, categoryLabel(r, categoryNames), r.ProjectID, amount, r.Notes}
		if err := f.SetSheetRow(records, fmt.Sprintf("A%d", i+2), &values); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}
	totalRow := len(s.Records) + 2
	f.SetCellValue(records, fmt.Sprintf("D%d", totalRow), "Total")
	f.SetCellValue(records, fmt.Sprintf("E%d", totalRow), s.GrandTotal)

	const summary = "Summary"
	if _, err := f.NewSheet(summary); err != nil {
		return fmt.Errorf("create summary sheet: %w", err)
	}
	sumHeader := []any{"Project", "Category", "Transactions", "Amount", "Share"}
	if err := f.SetSheetRow(summary, "A1", &sumHeader); err != nil {
		return fmt.Errorf("write summary header: %w", err)
	}
	line := 2
	writeCategories := func(project string, cats []report.CategoryTotal) error {
		for _, c := range cats {
			values := []any{project, c.Name, c.TransactionCount, c.TotalAmount, c.Share}
			if err := f.SetSheetRow(summary, fmt.Sprintf("A%d", line), &values); err != nil {
				return fmt.Errorf("write summary row %d: %w", line, err)
			}
			line++
		}
		return nil
	}
	if len(s.Projects) > 0 {
		for _, p := range s.Projects {
			if err := writeCategories(p.Name, p.Categories); err != nil {
				return err
			}
		}
	} else if err := writeCategories("", s.Categories); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func (e *Exporter) plainAmount(v float64) string {
	return fmt.Sprintf("%.*f", e.fmt.Decimals(), core.RoundAmount(v, int32(e.fmt.Decimals())))
}

func categoryLabel(r core.Record, names map[string]string) string {
	if name, ok := names[r.CategoryID]; ok && r.CategoryID != "" {
		return name
	}
	if r.CategoryID == "" {
		return report.UncategorizedName
	}
	return r.CategoryID
}
