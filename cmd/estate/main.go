package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"estate/internal/amqp"
	"estate/internal/attachments"
	"estate/internal/auth"
	"estate/internal/cache"
	"estate/internal/cli"
	"estate/internal/config"
	"estate/internal/export"
	"estate/internal/format"
	apphttp "estate/internal/http"
	"estate/internal/log"
	"estate/internal/metrics"
	"estate/internal/realtime"
	"estate/internal/services"
	"estate/internal/sheets"
	gsheet "estate/internal/sheets/google"
)

func main() {
	cfg, logger := cli.LoadConfig(log.ComponentApp)
	logger.Info("Starting estate server", "backend", cfg.DataBackend, "attachments", cfg.AttachmentBackend)

	ctx, cancel := cli.GracefulShutdown(logger)
	defer cancel()

	m := metrics.New()

	store, err := cli.OpenStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to open store", log.FieldError, err)
		os.Exit(1)
	}
	defer store.Cleanup()

	hub := realtime.NewHub(logger)
	if cfg.RedisURL != "" {
		client, err := realtime.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			logger.Error("Failed to connect to Redis", log.FieldError, err)
			os.Exit(1)
		}
		defer client.Close()
		bridge := realtime.NewRedisBridge(client, hub, logger)
		hub.SetBroadcaster(bridge)
		go func() {
			if err := bridge.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Realtime bridge stopped", log.FieldError, err)
			}
		}()
	} else {
		logger.Info("Realtime updates are process-local - no REDIS_URL provided")
	}

	deps := services.Deps{Store: store.Store, Changes: hub, Metrics: m, Logger: logger}
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue,
			amqp.WithLogger(logger),
			amqp.WithMetrics(m.EventsPublished, m.EventsFailed))
		if err != nil {
			// Events are best effort; the API keeps working without them.
			logger.Warn("Failed to initialize AMQP client, continuing without events", log.FieldError, err)
		} else {
			defer client.Close()
			deps.Publisher = client
		}
	}

	files, filesHandler, err := openAttachments(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize attachments", log.FieldError, err)
		os.Exit(1)
	}
	urls := cache.NewLRUCache[string](1000, cfg.SignedURLTTL)
	caches := cache.NewManager(logger)
	caches.Register(urls)
	caches.StartCleanup(ctx, 5*time.Minute)
	defer caches.Stop()

	var publisher sheets.SummaryPublisher
	if cfg.GoogleSpreadsheetID != "" {
		client, err := gsheet.NewClient(ctx, cfg.GoogleSpreadsheetID, cfg.GoogleCredentials, logger)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
			os.Exit(1)
		}
		publisher = client
		logger.Info("Google Sheets publishing enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	}

	formatter := format.New(format.Config{Currency: cfg.Currency, Decimals: cfg.DecimalPlaces, Locale: cfg.Locale})
	exporter, err := export.New(formatter)
	if err != nil {
		logger.Error("Failed to load report templates", log.FieldError, err)
		os.Exit(1)
	}
	tokens := auth.NewJWTManager(cfg.JWTSecret, cfg.TokenTTL)

	expenses := services.NewExpenseService(deps, cfg.PageSize)
	svc := apphttp.Services{
		Bookings:      services.NewBookingService(deps),
		Ledger:        services.NewLedgerService(deps),
		Catalog:       services.NewCatalogService(deps),
		Expenses:      expenses,
		Reports:       services.NewReportService(deps, expenses, exporter, publisher),
		Documents:     services.NewDocumentService(deps, attachments.NewCachedStore(files, urls), cfg.SignedURLTTL),
		Users:         services.NewUserService(deps, tokens),
		Notifications: services.NewNotificationService(deps, formatter),
	}

	if cfg.BootstrapAdmin != "" {
		created, err := svc.Users.Bootstrap(ctx, cfg.BootstrapAdmin, cfg.BootstrapPassword)
		if err != nil {
			logger.Error("Failed to bootstrap admin", log.FieldError, err)
			os.Exit(1)
		}
		if created {
			logger.Info("Bootstrap admin created", "username", cfg.BootstrapAdmin)
		}
	}

	srv := apphttp.NewServer(apphttp.Config{
		Addr:               ":" + cfg.Port,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		MaxUploadBytes:     cfg.MaxUploadBytes,
	}, apphttp.Deps{
		Store:    store.Store,
		Services: svc,
		Tokens:   tokens,
		Metrics:  m,
		Logger:   logger,
		Hub:      hub,
		Files:    filesHandler,
	})

	// No WriteTimeout: the summary stream is long-lived.
	srv.ReadTimeout = 30 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
	}()

	logger.Info("Listening", "port", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		cancel()
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}

// openAttachments returns the configured file store and, for local disk,
// the handler serving its signed URLs.
func openAttachments(ctx context.Context, cfg *config.Config, logger *log.Logger) (attachments.Store, http.Handler, error) {
	switch cfg.AttachmentBackend {
	case "gcs":
		store, err := attachments.NewGCSStore(ctx, cfg.GCSBucket, "", logger)
		if err != nil {
			return nil, nil, err
		}
		context.AfterFunc(ctx, func() { store.Close() })
		logger.Info("Attachments stored in GCS", "bucket", cfg.GCSBucket)
		return store, nil, nil
	default:
		baseURL := cfg.PublicBaseURL
		if baseURL == "" {
			baseURL = "http://localhost:" + cfg.Port
		}
		store, err := attachments.NewLocalStore(cfg.UploadDir, baseURL, []byte(cfg.JWTSecret), logger)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("Attachments stored on disk", "dir", cfg.UploadDir)
		return store, store.Handler(), nil
	}
}
