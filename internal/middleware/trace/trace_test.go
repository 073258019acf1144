package trace

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"estate/internal/log"
)

func newTestMiddleware(buf *bytes.Buffer) (*Middleware, *prometheus.CounterVec) {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "requests_total"}, []string{"method", "route", "status"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: "duration_seconds"}, []string{"method", "route"})
	logger := log.New(log.Config{Format: log.FormatJSON, Output: buf})
	return NewMiddleware(logger, func(*http.Request) string { return "10.0.0.1" }, requests, duration), requests
}

func TestMiddleware_AssignsRequestID(t *testing.T) {
	var buf bytes.Buffer
	m, _ := newTestMiddleware(&buf)

	var seen string
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
		if log.FromContext(r.Context()).Component() != log.ComponentHTTP {
			t.Errorf("context logger not installed")
		}
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

	if !strings.HasPrefix(seen, "req_") {
		t.Fatalf("request ID = %q, want req_ prefix", seen)
	}
	if rec.Header().Get(HeaderRequestID) != seen {
		t.Fatalf("response header = %q, want %q", rec.Header().Get(HeaderRequestID), seen)
	}
}

func TestMiddleware_HonorsIncomingRequestID(t *testing.T) {
	tests := []struct {
		name     string
		incoming string
		keep     bool
	}{
		{"valid", "abc-123", true},
		{"invalid characters", "abc 123<script>", false},
		{"too long", strings.Repeat("a", 65), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			m, _ := newTestMiddleware(&buf)
			h := m.Middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

			req := httptest.NewRequest("GET", "/", nil)
			req.Header.Set(HeaderRequestID, tt.incoming)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			got := rec.Header().Get(HeaderRequestID)
			if (got == tt.incoming) != tt.keep {
				t.Fatalf("request ID = %q, keep incoming = %v", got, tt.keep)
			}
		})
	}
}

func TestMiddleware_RecordsStatusAndLevel(t *testing.T) {
	var buf bytes.Buffer
	m, requests := newTestMiddleware(&buf)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /boom", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	h := m.Middleware(mux)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/boom", nil))

	if got := testutil.ToFloat64(requests.WithLabelValues("GET", "GET /boom", "500")); got != 1 {
		t.Fatalf("request counter = %v, want 1", got)
	}
	out := buf.String()
	if !strings.Contains(out, `"level":"ERROR"`) || !strings.Contains(out, `"status_code":500`) {
		t.Fatalf("completion log missing error level or status:\n%s", out)
	}
}

func TestMiddleware_UnmatchedRoute(t *testing.T) {
	var buf bytes.Buffer
	m, requests := newTestMiddleware(&buf)
	h := m.Middleware(http.NewServeMux())

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/nope", nil))

	if got := testutil.ToFloat64(requests.WithLabelValues("GET", "unmatched", "404")); got != 1 {
		t.Fatalf("unmatched counter = %v, want 1", got)
	}
}

func TestResponseWriter_Flush(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := &responseWriter{ResponseWriter: rec, statusCode: http.StatusOK}
	if err := http.NewResponseController(rw).Flush(); err != nil {
		t.Fatalf("Flush through controller: %v", err)
	}
	if !rec.Flushed {
		t.Fatal("underlying recorder not flushed")
	}
}
