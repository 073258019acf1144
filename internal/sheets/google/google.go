package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"estate/internal/log"
	"estate/internal/report"
	ports "estate/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Client publishes report summaries into tabs of one spreadsheet.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	logger        *log.Logger
	now           func() time.Time
}

// Ensure interface conformance
var _ ports.SummaryPublisher = (*Client)(nil)

// NewClient creates a Sheets client from a service account credentials
// file. Extra options are appended after the credentials, so tests can
// point the client at a local endpoint.
func NewClient(ctx context.Context, spreadsheetID, credentialsFile string, logger *log.Logger, opts ...goption.ClientOption) (*Client, error) {
	spreadsheetID = strings.TrimSpace(spreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	if logger == nil {
		logger = log.Default(log.ComponentSheets)
	}

	var base []goption.ClientOption
	if credentialsFile != "" {
		credentialsJSON, err := os.ReadFile(credentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		base = append(base, goption.WithCredentialsJSON(credentialsJSON))
	}
	base = append(base, goption.WithScopes(gsheet.SpreadsheetsScope))

	svc, err := gsheet.NewService(ctx, append(base, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	logger.InfoContext(ctx, "Google Sheets service created", "spreadsheet_id", spreadsheetID)

	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		logger:        logger,
		now:           time.Now,
	}, nil
}

// PublishSummary writes s into a dated tab named after title, creating the
// tab when needed and replacing its previous contents.
func (c *Client) PublishSummary(ctx context.Context, title string, s report.Summary) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}
	sheet := datedName(title, c.now())
	if err := c.ensureSheet(ctx, sheet); err != nil {
		return "", err
	}

	values := summaryValues(s, c.now())
	clearRange := quoteSheet(sheet)
	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, clearRange, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return "", fmt.Errorf("failed to clear sheet %s: %w", sheet, err)
	}

	ref := fmt.Sprintf("%s!A1:%s%d", quoteSheet(sheet), lastColumn, len(values))
	vr := &gsheet.ValueRange{Values: values}
	if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, ref, vr).
		ValueInputOption("RAW").Context(ctx).Do(); err != nil {
		return "", fmt.Errorf("failed to update %s: %w", ref, err)
	}

	c.logger.InfoContext(ctx, "Summary published",
		"sheet", sheet, "rows", len(values), log.FieldAmount, s.GrandTotal)
	return ref, nil
}

func (c *Client) ensureSheet(ctx context.Context, name string) error {
	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read spreadsheet: %w", err)
	}
	for _, sh := range ss.Sheets {
		if sh.Properties != nil && sh.Properties.Title == name {
			return nil
		}
	}
	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			AddSheet: &gsheet.AddSheetRequest{Properties: &gsheet.SheetProperties{Title: name}},
		}},
	}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("add sheet %s: %w", name, err)
	}
	c.logger.InfoContext(ctx, "Created sheet", "sheet", name)
	return nil
}

const lastColumn = "E"

var header = []any{"Project", "Category", "Transactions", "Total", "Share"}

// summaryValues lays a summary out as rows of at most five cells. Amounts
// and shares stay numeric so the sheet can compute with them.
func summaryValues(s report.Summary, generated time.Time) [][]any {
	title := s.Title
	if title == "" {
		title = "Report"
	}
	rows := [][]any{
		{title, "Generated", generated.UTC().Format(time.DateOnly)},
		slices.Clone(header),
	}

	switch s.View {
	case report.ViewProject:
		for _, p := range s.Projects {
			rows = append(rows, []any{p.Name, "", p.TransactionCount, p.TotalAmount, p.Share})
			for _, ct := range p.Categories {
				rows = append(rows, []any{"", ct.Name, ct.TransactionCount, ct.TotalAmount, ct.Share})
			}
		}
	default:
		for _, ct := range s.Categories {
			rows = append(rows, []any{"", ct.Name, ct.TransactionCount, ct.TotalAmount, ct.Share})
		}
	}

	share := 0.0
	if s.GrandTotal != 0 {
		share = 1
	}
	rows = append(rows, []any{"Total", "", s.Count, s.GrandTotal, share})

	if s.Quality.Invalid > 0 {
		rows = append(rows, []any{"Invalid amounts counted as zero", "", s.Quality.Invalid})
	}
	if s.Quality.Negative > 0 {
		rows = append(rows, []any{"Negative amounts", "", s.Quality.Negative})
	}
	return rows
}

// datedName returns "<YYYY-MM-DD> <base>" unless base already starts with
// a date.
func datedName(base string, now time.Time) string {
	base = strings.TrimSpace(base)
	if base == "" {
		base = "Report"
	}
	if len(base) > len(time.DateOnly) && base[len(time.DateOnly)] == ' ' {
		if _, err := time.Parse(time.DateOnly, base[:len(time.DateOnly)]); err == nil {
			return base
		}
	}
	return fmt.Sprintf("%s %s", now.UTC().Format(time.DateOnly), base)
}

// quoteSheet quotes a sheet name for A1 notation.
func quoteSheet(name string) string {
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}
