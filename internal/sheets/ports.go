package sheets

import (
	"context"

	"estate/internal/report"
)

// Ports for outbound adapters.
type (
	// SummaryPublisher writes a report summary to an external spreadsheet and
	// returns a reference to the written range.
	SummaryPublisher interface {
		PublishSummary(ctx context.Context, title string, s report.Summary) (ref string, err error)
	}
)
