package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"estate/internal/auth"
	"estate/internal/core"
	"estate/internal/log"
	"estate/internal/metrics"
	"estate/internal/middleware/ratelimit"
	"estate/internal/middleware/security"
	"estate/internal/middleware/trace"
	"estate/internal/realtime"
	"estate/internal/services"
	"estate/internal/storage"
)

// Services are the application services behind the API.
type Services struct {
	Bookings      *services.BookingService
	Ledger        *services.LedgerService
	Catalog       *services.CatalogService
	Expenses      *services.ExpenseService
	Reports       *services.ReportService
	Documents     *services.DocumentService
	Users         *services.UserService
	Notifications *services.NotificationService
}

// Config holds server settings.
type Config struct {
	Addr               string
	RateLimitPerMinute int
	MaxUploadBytes     int64
}

// Deps are the collaborators the server needs. Hub and Files are optional:
// without a hub the event stream only sends its initial summary, without
// Files no /files/ route is mounted.
type Deps struct {
	Store    storage.Store
	Services Services
	Tokens   *auth.JWTManager
	Metrics  *metrics.Metrics
	Logger   *log.Logger
	Hub      *realtime.Hub
	Files    http.Handler
}

type Server struct {
	http.Server
	svc      Services
	store    storage.Store
	tokens   *auth.JWTManager
	metrics  *metrics.Metrics
	logger   *log.Logger
	validate *validator.Validate

	limiter     *ratelimit.Limiter
	detector    *security.Detector
	expenseFeed *realtime.Feed[core.Expense]

	maxUploadBytes int64
	startedAt      time.Time
	shutdownOnce   sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// server.
func NewServer(cfg Config, d Deps) *Server {
	logger := d.Logger
	if logger == nil {
		logger = log.Default(log.ComponentHTTP)
	}
	m := d.Metrics
	if m == nil {
		m = metrics.New()
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 20 << 20
	}

	s := &Server{
		svc:            d.Services,
		store:          d.Store,
		tokens:         d.Tokens,
		metrics:        m,
		logger:         logger.WithComponent(log.ComponentHTTP),
		validate:       newValidator(),
		detector:       security.NewDetector(logger, m.Suspicious),
		maxUploadBytes: cfg.MaxUploadBytes,
		startedAt:      time.Now(),
	}
	s.limiter = ratelimit.NewLimiter(ratelimit.Config{
		RequestsPerMinute: cfg.RateLimitPerMinute,
		Rejected:          m.RateLimited,
	})

	s.expenseFeed = realtime.NewFeed(string(storage.KindExpenses),
		func(ctx context.Context) ([]core.Expense, error) {
			return d.Store.ListExpenses(ctx, storage.Query{})
		},
		logger,
		m.SubscriberCount.WithLabelValues(string(storage.KindExpenses)))
	if d.Hub != nil {
		d.Hub.Register(s.expenseFeed, string(storage.KindCategories))
	}

	mux := http.NewServeMux()
	s.routes(mux, d.Files)

	tracer := trace.NewMiddleware(logger, s.detector.ExtractClientIP, m.HTTPRequests, m.HTTPDuration)
	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	limit := s.limiter.Middleware(s.detector.ExtractClientIP, ratelimit.WritesOnly, func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(http.StatusTooManyRequests, CodeRateLimited, "rate limit exceeded, try again later").Write(w)
	})

	s.Server = http.Server{
		Addr:              cfg.Addr,
		Handler:           tracer.Middleware(headers.Middleware(s.detector.Middleware(limit(mux)))),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux, files http.Handler) {
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("GET /metrics", s.metrics.Handler())
	if files != nil {
		mux.Handle("GET /files/", security.NoStore(files))
	}

	mux.HandleFunc("POST /api/login", s.handleLogin)

	protected := auth.Middleware(s.tokens, writeAuthError)
	admin := func(h http.HandlerFunc) http.Handler {
		return protected(auth.RequireAdmin(writeAuthError)(h))
	}
	api := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, protected(h))
	}

	api("GET /api/me", s.handleMe)
	mux.Handle("GET /api/users", admin(s.handleListUsers))
	mux.Handle("POST /api/users", admin(s.handleCreateUser))

	api("GET /api/projects", s.handleListProjects)
	mux.Handle("POST /api/projects", admin(s.handleCreateProject))
	api("GET /api/projects/{id}/balances", s.handleProjectBalances)
	api("GET /api/units", s.handleListUnits)
	api("POST /api/units", s.handleSaveUnit)
	api("PUT /api/units/{id}", s.handleSaveUnit)
	api("GET /api/customers", s.handleListCustomers)
	api("POST /api/customers", s.handleCreateCustomer)

	api("GET /api/bookings", s.handleListBookings)
	api("POST /api/bookings", s.handleCreateBooking)
	api("GET /api/bookings/{id}", s.handleGetBooking)
	api("DELETE /api/bookings/{id}", s.handleDeleteBooking)
	api("GET /api/bookings/{id}/statement", s.handleStatement)
	api("POST /api/bookings/{id}/payments", s.handleRecordPayment)
	api("POST /api/bookings/{id}/extra-payments", s.handleRecordExtraPayment)
	api("POST /api/bookings/{id}/cancel", s.handleCancelBooking)

	api("GET /api/expenses", s.handleListExpenses)
	api("POST /api/expenses", s.handleCreateExpense)
	api("DELETE /api/expenses/{id}", s.handleDeleteExpense)
	api("GET /api/expenses/{id}/locate", s.handleLocateExpense)
	api("GET /api/categories", s.handleListCategories)
	api("POST /api/categories", s.handleCreateCategory)

	api("GET /api/reports/{kind}", s.handleReport)
	mux.Handle("POST /api/reports/{kind}/publish", admin(s.handlePublishReport))
	api("GET /api/stream/expenses", s.handleExpenseStream)

	api("GET /api/documents", s.handleListDocuments)
	api("POST /api/documents", s.handleUploadDocument)
	api("GET /api/documents/{id}/url", s.handleDocumentURL)

	api("GET /api/notifications", s.handleListNotifications)
	api("POST /api/notifications/{id}/read", s.handleMarkNotificationRead)
}

// Shutdown stops the rate limiter and gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// scope returns the authenticated caller. Routes reaching a handler have
// passed auth.Middleware, so a missing scope is a wiring bug.
func scope(r *http.Request) core.Scope {
	sc, _ := auth.ScopeFrom(r.Context())
	return sc
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.startedAt).Round(time.Second).String(),
	})
}

// handleReady checks the store and reports rate limiter and stream state.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]any)

	if err := s.store.Ping(ctx); err != nil {
		checks["store"] = "failed: " + err.Error()
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["store"] = "ok"
	}
	checks["rate_limiter"] = map[string]any{"active_clients": s.limiter.ActiveClients()}
	checks["stream"] = map[string]any{"subscribers": s.expenseFeed.Subscribers()}

	writeJSON(w, httpStatus, map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	})
}
