package main

import (
	"os"
	"sync"
	"time"

	"estate/internal/amqp"
	"estate/internal/cli"
	"estate/internal/export"
	"estate/internal/format"
	"estate/internal/log"
	"estate/internal/metrics"
	"estate/internal/services"
	gsheet "estate/internal/sheets/google"
	"estate/internal/worker"
)

func main() {
	cfg, logger := cli.LoadConfig(log.ComponentWorker)
	logger.Info("Starting estate-notifier")

	if cfg.AMQPURL == "" && cfg.GoogleSpreadsheetID == "" {
		logger.Error("Nothing to do: set AMQP_URL and/or GOOGLE_SPREADSHEET_ID")
		os.Exit(1)
	}

	ctx, cancel := cli.GracefulShutdown(logger)
	defer cancel()

	m := metrics.New()

	store, err := cli.OpenStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to open store", log.FieldError, err)
		os.Exit(1)
	}
	defer store.Cleanup()

	deps := services.Deps{Store: store.Store, Metrics: m, Logger: logger}
	formatter := format.New(format.Config{Currency: cfg.Currency, Decimals: cfg.DecimalPlaces, Locale: cfg.Locale})

	var wg sync.WaitGroup

	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue,
			amqp.WithLogger(logger),
			amqp.WithMetrics(m.EventsPublished, m.EventsFailed))
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err)
			os.Exit(1)
		}
		defer client.Close()

		notifier := worker.NewNotifier(services.NewNotificationService(deps, formatter), m.EventsConsumed, logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := notifier.Run(ctx, client); err != nil {
				logger.Error("Message consumption failed", log.FieldError, err)
				cancel()
			}
		}()
	} else {
		logger.Info("Skipping notifications - no AMQP_URL provided")
	}

	if cfg.GoogleSpreadsheetID != "" {
		sheetsClient, err := gsheet.NewClient(ctx, cfg.GoogleSpreadsheetID, cfg.GoogleCredentials, logger)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
			os.Exit(1)
		}
		exporter, err := export.New(formatter)
		if err != nil {
			logger.Error("Failed to load report templates", log.FieldError, err)
			os.Exit(1)
		}
		expenses := services.NewExpenseService(deps, cfg.PageSize)
		reports := services.NewReportService(deps, expenses, exporter, sheetsClient)

		publisher := worker.NewReportPublisher(reports, cfg.ReportPublishInterval, logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			publisher.Run(ctx)
		}()
		logger.Info("Publishing month-to-date reports", "interval", cfg.ReportPublishInterval)
	} else {
		logger.Info("Skipping report publishing - no GOOGLE_SPREADSHEET_ID provided")
	}

	<-ctx.Done()
	logger.Info("Shutting down notifier...")

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		logger.Info("Notifier shutdown complete")
	case <-time.After(30 * time.Second):
		logger.Warn("Shutdown timeout reached")
	}
}
