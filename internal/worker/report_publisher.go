package worker

import (
	"context"
	"time"

	"estate/internal/core"
	"estate/internal/filter"
	"estate/internal/log"
	"estate/internal/report"
	"estate/internal/services"
)

// ReportSource builds and publishes summaries; *services.ReportService
// satisfies it.
type ReportSource interface {
	Expenses(ctx context.Context, scope core.Scope, c filter.Criteria, view report.View) (services.Report, error)
	Revenue(ctx context.Context, scope core.Scope, c filter.Criteria, view report.View) (services.Report, error)
	Publish(ctx context.Context, rep services.Report) (string, error)
}

// ReportPublisher pushes the month-to-date expense and revenue summaries to
// the spreadsheet on a fixed interval.
type ReportPublisher struct {
	reports  ReportSource
	interval time.Duration
	logger   *log.Logger
	now      func() time.Time
}

func NewReportPublisher(reports ReportSource, interval time.Duration, logger *log.Logger) *ReportPublisher {
	if logger == nil {
		logger = log.Default(log.ComponentSheets)
	}
	if interval <= 0 {
		interval = time.Hour
	}
	return &ReportPublisher{
		reports:  reports,
		interval: interval,
		logger:   logger.WithComponent(log.ComponentSheets),
		now:      time.Now,
	}
}

// PublishOnce publishes both summaries for the current month. Both are
// attempted even if the first fails; the first error is returned.
func (p *ReportPublisher) PublishOnce(ctx context.Context) error {
	now := p.now()
	c := filter.Criteria{
		StartDate: core.NewDate(now.Year(), int(now.Month()), 1),
		EndDate:   core.DateOf(now),
	}
	admin := core.Scope{Username: "notifier", Role: core.RoleAdmin}

	var firstErr error
	for _, build := range []func(context.Context, core.Scope, filter.Criteria, report.View) (services.Report, error){
		p.reports.Expenses,
		p.reports.Revenue,
	} {
		rep, err := build(ctx, admin, c, report.ViewCategory)
		if err == nil {
			var ref string
			ref, err = p.reports.Publish(ctx, rep)
			if err == nil {
				p.logger.InfoContext(ctx, "Summary published",
					"title", rep.Summary.Title,
					"sheets_ref", ref,
					"grand_total", rep.Summary.GrandTotal)
				continue
			}
		}
		p.logger.ErrorContext(ctx, "Failed to publish summary", log.FieldError, err)
		if firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Run publishes at startup and then on every tick until ctx is cancelled.
func (p *ReportPublisher) Run(ctx context.Context) {
	_ = p.PublishOnce(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = p.PublishOnce(ctx)
		}
	}
}
