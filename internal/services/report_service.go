package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"estate/internal/core"
	"estate/internal/export"
	"estate/internal/filter"
	"estate/internal/ledger"
	"estate/internal/log"
	"estate/internal/metrics"
	"estate/internal/report"
	"estate/internal/sheets"
	"estate/internal/storage"

	"golang.org/x/sync/errgroup"
)

// Output formats accepted by Render.
const (
	FormatHTML = "html"
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

// Revenue rows that do not come from a typed payment are categorized by
// their ledger entry kind.
const (
	RevenueDeposit = "deposit"
	RevenueExtra   = "extra"
)

var (
	ErrUnknownFormat  = errors.New("unknown report format")
	ErrSheetsDisabled = errors.New("sheets publishing not configured")
)

// Report is a summary plus the category names its records refer to.
type Report struct {
	Summary report.Summary    `json:"summary"`
	Names   map[string]string `json:"category_names"`
}

// ReportService builds expense and revenue summaries and renders them.
type ReportService struct {
	store     storage.Store
	expenses  *ExpenseService
	exporter  *export.Exporter
	publisher sheets.SummaryPublisher
	metrics   *metrics.Metrics
	logger    *log.Logger
}

func NewReportService(d Deps, expenses *ExpenseService, exporter *export.Exporter, publisher sheets.SummaryPublisher) *ReportService {
	return &ReportService{
		store:     d.Store,
		expenses:  expenses,
		exporter:  exporter,
		publisher: publisher,
		metrics:   d.Metrics,
		logger:    newEffects(d, log.ComponentReport).logger,
	}
}

// Expenses summarizes the filtered expenses in the requested view.
func (s *ReportService) Expenses(ctx context.Context, scope core.Scope, c filter.Criteria, view report.View) (Report, error) {
	var (
		records    []core.Record
		names      map[string]string
		projects   []core.Project
		categories []core.ExpenseCategory
	)
	project, err := scope.Resolve(c.ProjectID)
	if err != nil {
		return Report{}, fmt.Errorf("project %s: %w", c.ProjectID, err)
	}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) { records, names, err = s.expenses.Records(gctx, scope, c); return })
	g.Go(func() (err error) { projects, err = s.store.ListProjects(gctx); return })
	g.Go(func() (err error) {
		categories, err = s.store.ListCategories(gctx, storage.Query{ProjectID: project})
		return
	})
	if err := g.Wait(); err != nil {
		return Report{}, fmt.Errorf("load expense report: %w", err)
	}

	sum := report.Summarize(view, records, projects, categories)
	sum.Title = "Expenses"
	s.warnQuality(ctx, sum)
	return Report{Summary: sum, Names: names}, nil
}

// Revenue summarizes money received on non-cancelled bookings. Each booking
// is reconciled first, so a mirrored deposit is never counted twice and a
// legacy deposit shows up as its own row.
func (s *ReportService) Revenue(ctx context.Context, scope core.Scope, c filter.Criteria, view report.View) (Report, error) {
	project, err := scope.Resolve(c.ProjectID)
	if err != nil {
		return Report{}, fmt.Errorf("project %s: %w", c.ProjectID, err)
	}
	q := storage.Query{ProjectID: project}

	var (
		bookings []core.Booking
		payments []core.Payment
		extras   []core.ExtraPayment
		projects []core.Project
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) { bookings, err = s.store.ListBookings(gctx, q); return })
	g.Go(func() (err error) { payments, err = s.store.ListPayments(gctx, q); return })
	g.Go(func() (err error) { extras, err = s.store.ListExtraPayments(gctx, q); return })
	g.Go(func() (err error) { projects, err = s.store.ListProjects(gctx); return })
	if err := g.Wait(); err != nil {
		return Report{}, fmt.Errorf("load revenue report: %w", err)
	}

	all := RevenueRecords(bookings, payments, extras)
	categories := report.PaymentTypeCategories(all)
	names := filter.CategoryNames(categories)
	records, err := filter.Apply(all, scope, c, names)
	if err != nil {
		return Report{}, err
	}
	records = filter.Sort(records)

	sum := report.Summarize(view, records, projects, categories)
	sum.Title = "Revenue"
	s.warnQuality(ctx, sum)
	return Report{Summary: sum, Names: names}, nil
}

// RevenueRecords flattens the reconciled ledger entries of every
// non-cancelled booking into records. Payment rows are categorized by their
// payment type.
func RevenueRecords(bookings []core.Booking, payments []core.Payment, extras []core.ExtraPayment) []core.Record {
	byID := make(map[string]core.Payment, len(payments))
	for _, p := range payments {
		byID[p.ID] = p
	}

	var out []core.Record
	for _, b := range bookings {
		if b.Status == core.BookingCancelled {
			continue
		}
		n := ledger.Normalize(b, payments, extras)
		for _, e := range n.Entries {
			r := core.Record{
				ID:        e.ID,
				Date:      e.Date,
				Amount:    e.Amount,
				ProjectID: b.ProjectID,
			}
			switch e.Kind {
			case ledger.EntryDeposit:
				r.ID = b.ID + "-deposit"
				r.Description = RevenueDeposit
				r.CategoryID = RevenueDeposit
			case ledger.EntryExtra:
				r.Description = RevenueExtra
				r.CategoryID = RevenueExtra
			default:
				// The raw amount is kept so the quality check still sees it.
				r = byID[e.ID].Record(b.ProjectID)
			}
			out = append(out, r)
		}
	}
	return out
}

func (s *ReportService) warnQuality(ctx context.Context, sum report.Summary) {
	if sum.Quality.HasWarnings() {
		s.logger.WarnContext(ctx, "Report contains unusable amounts",
			"report", sum.Title,
			"invalid", sum.Quality.Invalid,
			"negative", sum.Quality.Negative)
	}
}

// ContentType returns the MIME type for an output format.
func ContentType(format string) (string, error) {
	switch strings.ToLower(format) {
	case FormatHTML, "":
		return export.ContentTypeHTML, nil
	case FormatCSV:
		return export.ContentTypeCSV, nil
	case FormatXLSX:
		return export.ContentTypeXLSX, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, format)
}

// Render writes rep in the given format. HTML is the printable document;
// CSV carries the filtered records.
func (s *ReportService) Render(w io.Writer, format string, rep Report) error {
	format = strings.ToLower(format)
	if format == "" {
		format = FormatHTML
	}
	var err error
	switch format {
	case FormatHTML:
		err = s.exporter.PrintHTML(w, rep.Summary, rep.Names)
	case FormatCSV:
		err = s.exporter.WriteCSV(w, rep.Summary.Records, rep.Names)
	case FormatXLSX:
		err = s.exporter.WriteXLSX(w, rep.Summary, rep.Names)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	if err != nil {
		return fmt.Errorf("render %s: %w", format, err)
	}
	if s.metrics != nil {
		s.metrics.ReportsRendered.WithLabelValues(format).Inc()
	}
	return nil
}

// Publish sends the summary to the configured spreadsheet.
func (s *ReportService) Publish(ctx context.Context, rep Report) (string, error) {
	if s.publisher == nil {
		return "", ErrSheetsDisabled
	}
	ref, err := s.publisher.PublishSummary(ctx, rep.Summary.Title, rep.Summary)
	if err != nil {
		return "", fmt.Errorf("publish summary: %w", err)
	}
	if s.metrics != nil {
		s.metrics.ReportsRendered.WithLabelValues("sheets").Inc()
	}
	return ref, nil
}
