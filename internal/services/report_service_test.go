package services

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"estate/internal/core"
	"estate/internal/export"
	"estate/internal/filter"
	"estate/internal/format"
	"estate/internal/metrics"
	"estate/internal/report"
	"estate/internal/sheets"
	"estate/internal/storage/memory"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

type fakePublisher struct {
	title string
	sum   report.Summary
	err   error
}

func (f *fakePublisher) PublishSummary(_ context.Context, title string, s report.Summary) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.title, f.sum = title, s
	return "'Expenses'!A1:E4", nil
}

func newReportService(t *testing.T, fx *fixture, pub *fakePublisher) *ReportService {
	t.Helper()
	exp, err := export.New(format.New(format.Config{Currency: "USD", Decimals: 2, Locale: "en"}))
	if err != nil {
		t.Fatalf("export.New: %v", err)
	}
	var publisher sheets.SummaryPublisher
	if pub != nil {
		publisher = pub
	}
	return NewReportService(fx.deps, NewExpenseService(fx.deps, 20), exp, publisher)
}

func TestReportService_ExpensesByCategory(t *testing.T) {
	fx := newFixture(t)
	fx.mem.Load(memory.Seed{
		Categories: []core.ExpenseCategory{{ID: "catA", Name: "Concrete", ProjectID: "p1"}},
		Expenses: []core.Expense{
			{ID: "e1", Date: core.NewDate(2024, 1, 1), Description: "a", Amount: 500, CategoryID: "catA", ProjectID: "p1"},
			{ID: "e2", Date: core.NewDate(2024, 1, 2), Description: "b", Amount: 300, CategoryID: "catA", ProjectID: "p1"},
			{ID: "e3", Date: core.NewDate(2024, 1, 3), Description: "c", Amount: 200, ProjectID: "p1"},
			{ID: "e4", Date: core.NewDate(2024, 1, 4), Description: "d", Amount: 7000, ProjectID: "p2"},
		},
	})
	svc := newReportService(t, fx, nil)

	rep, err := svc.Expenses(context.Background(), agentP1, filter.Criteria{}, report.ViewCategory)
	if err != nil {
		t.Fatalf("Expenses: %v", err)
	}
	cats := rep.Summary.Categories
	if len(cats) != 2 {
		t.Fatalf("categories = %+v", cats)
	}
	if cats[0].CategoryID != "catA" || cats[0].TotalAmount != 800 || cats[0].TransactionCount != 2 {
		t.Errorf("first group = %+v", cats[0])
	}
	if cats[1].CategoryID != report.UncategorizedID || cats[1].TotalAmount != 200 || cats[1].TransactionCount != 1 {
		t.Errorf("second group = %+v", cats[1])
	}
	if rep.Summary.GrandTotal != 1000 || rep.Summary.Title != "Expenses" {
		t.Errorf("summary = %+v", rep.Summary)
	}

	byProject, err := svc.Expenses(context.Background(), admin, filter.Criteria{}, report.ViewProject)
	if err != nil {
		t.Fatalf("Expenses by project: %v", err)
	}
	if len(byProject.Summary.Projects) != 2 || byProject.Summary.Projects[0].ProjectID != "p2" {
		t.Errorf("projects = %+v", byProject.Summary.Projects)
	}

	if _, err := svc.Expenses(context.Background(), agentP1, filter.Criteria{ProjectID: "p2"}, report.ViewCategory); !errors.Is(err, core.ErrOutOfScope) {
		t.Errorf("foreign project error = %v", err)
	}
}

func TestRevenueRecords_NoDoubleCounting(t *testing.T) {
	bookings := []core.Booking{
		{ID: "b1", ProjectID: "p1", AmountPaid: 20000, Status: core.BookingActive, BookingDate: core.NewDate(2024, 1, 1)},
		{ID: "b2", ProjectID: "p2", AmountPaid: 10000, Status: core.BookingActive, BookingDate: core.NewDate(2022, 5, 1)},
		{ID: "b3", ProjectID: "p1", AmountPaid: 999, Status: core.BookingCancelled},
	}
	payments := []core.Payment{
		{ID: "p-1", BookingID: "b1", Amount: 20000, PaymentType: "deposit"},
		{ID: "p-2", BookingID: "b2", Amount: 15000, PaymentType: "installment"},
		{ID: "p-3", BookingID: "b3", Amount: 5, PaymentType: "installment"},
	}
	extras := []core.ExtraPayment{{ID: "x-1", BookingID: "b1", Amount: 5000}}

	records := RevenueRecords(bookings, payments, extras)
	if got := report.GrandTotal(records); got != 50000 {
		t.Errorf("revenue total = %v, want 50000", got)
	}

	byCategory := map[string]float64{}
	for _, r := range records {
		byCategory[r.CategoryID] += r.Amount
	}
	want := map[string]float64{"deposit": 30000, "installment": 15000, "extra": 5000}
	for k, v := range want {
		if byCategory[k] != v {
			t.Errorf("%s = %v, want %v", k, byCategory[k], v)
		}
	}
}

func TestReportService_RevenueSummary(t *testing.T) {
	fx := newFixture(t)
	fx.mem.Load(memorySeedLegacy())
	svc := newReportService(t, fx, nil)

	rep, err := svc.Revenue(context.Background(), agentP2, filter.Criteria{}, report.ViewCategory)
	if err != nil {
		t.Fatalf("Revenue: %v", err)
	}
	if rep.Summary.GrandTotal != 25000 || rep.Summary.Count != 3 {
		t.Errorf("summary total = %v count = %d", rep.Summary.GrandTotal, rep.Summary.Count)
	}
	if rep.Names["installment"] != "installment" {
		t.Errorf("names = %v", rep.Names)
	}

	empty, err := svc.Revenue(context.Background(), agentP1, filter.Criteria{}, report.ViewCategory)
	if err != nil || empty.Summary.GrandTotal != 0 || len(empty.Summary.Categories) != 0 {
		t.Errorf("p1 revenue = %+v, %v", empty.Summary, err)
	}
}

func TestReportService_Render(t *testing.T) {
	fx := newFixture(t)
	fx.deps.Metrics = metrics.New()
	fx.mem.Load(memorySeedLegacy())
	svc := newReportService(t, fx, nil)

	rep, err := svc.Revenue(context.Background(), admin, filter.Criteria{}, report.ViewCategory)
	if err != nil {
		t.Fatalf("Revenue: %v", err)
	}

	var html bytes.Buffer
	if err := svc.Render(&html, "", rep); err != nil {
		t.Fatalf("Render html: %v", err)
	}
	if !strings.Contains(html.String(), "USD 25,000.00") {
		t.Errorf("html lacks formatted total")
	}

	var csv bytes.Buffer
	if err := svc.Render(&csv, "CSV", rep); err != nil {
		t.Fatalf("Render csv: %v", err)
	}
	if !strings.Contains(csv.String(), "25000.00") {
		t.Errorf("csv = %q", csv.String())
	}

	var xlsx bytes.Buffer
	if err := svc.Render(&xlsx, FormatXLSX, rep); err != nil {
		t.Fatalf("Render xlsx: %v", err)
	}
	if !bytes.HasPrefix(xlsx.Bytes(), []byte("PK")) {
		t.Error("xlsx output is not a zip archive")
	}

	if err := svc.Render(&bytes.Buffer{}, "pdf", rep); !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("pdf error = %v", err)
	}
	if got := testutil.ToFloat64(fx.deps.Metrics.ReportsRendered.WithLabelValues("csv")); got != 1 {
		t.Errorf("csv renders = %v", got)
	}
}

func TestContentType(t *testing.T) {
	tests := []struct {
		in, want string
		wantErr  bool
	}{
		{"", export.ContentTypeHTML, false},
		{"html", export.ContentTypeHTML, false},
		{"csv", export.ContentTypeCSV, false},
		{"XLSX", export.ContentTypeXLSX, false},
		{"pdf", "", true},
	}
	for _, tt := range tests {
		got, err := ContentType(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ContentType(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestReportService_Publish(t *testing.T) {
	fx := newFixture(t)

	if _, err := newReportService(t, fx, nil).Publish(context.Background(), Report{}); !errors.Is(err, ErrSheetsDisabled) {
		t.Errorf("unconfigured publish error = %v", err)
	}

	pub := &fakePublisher{}
	svc := newReportService(t, fx, pub)
	rep := Report{Summary: report.Summary{Title: "Expenses", GrandTotal: 10}}
	ref, err := svc.Publish(context.Background(), rep)
	if err != nil || ref == "" {
		t.Fatalf("Publish = %q, %v", ref, err)
	}
	if pub.title != "Expenses" || pub.sum.GrandTotal != 10 {
		t.Errorf("published %q %+v", pub.title, pub.sum)
	}

	pub.err = errBoom
	if _, err := svc.Publish(context.Background(), rep); !errors.Is(err, errBoom) {
		t.Errorf("failing publish error = %v", err)
	}
}
