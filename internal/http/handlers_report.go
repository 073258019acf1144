package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"estate/internal/core"
	"estate/internal/filter"
	"estate/internal/log"
	"estate/internal/report"
	"estate/internal/services"
)

const streamHeartbeat = 25 * time.Second

type reportBuilder func(ctx context.Context, scope core.Scope, c filter.Criteria, view report.View) (services.Report, error)

func (s *Server) reportFor(kind string) (reportBuilder, error) {
	switch kind {
	case "expenses":
		return s.svc.Reports.Expenses, nil
	case "revenue":
		return s.svc.Reports.Revenue, nil
	}
	return nil, fmt.Errorf("report %q: %w", kind, core.ErrNotFound)
}

func (s *Server) buildReport(r *http.Request) (services.Report, error) {
	build, err := s.reportFor(r.PathValue("kind"))
	if err != nil {
		return services.Report{}, err
	}
	q := r.URL.Query()
	c, err := ParseCriteria(q)
	if err != nil {
		return services.Report{}, err
	}
	return build(r.Context(), scope(r), c, report.ParseView(q.Get("view")))
}

// handleReport answers with the summary as JSON, or as a printable HTML,
// CSV or XLSX document when format is given.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	format := strings.ToLower(r.URL.Query().Get("format"))
	contentType := ""
	if format != "" && format != "json" {
		ct, err := services.ContentType(format)
		if err != nil {
			writeError(w, r, err)
			return
		}
		contentType = ct
	}

	rep, err := s.buildReport(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if contentType == "" {
		writeJSON(w, http.StatusOK, rep)
		return
	}

	// Render into a buffer so a failure can still produce an error status.
	var buf bytes.Buffer
	if err := s.svc.Reports.Render(&buf, format, rep); err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", contentType)
	if format != services.FormatHTML {
		name := fmt.Sprintf("%s-%s.%s", r.PathValue("kind"), time.Now().Format("2006-01-02"), format)
		w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handlePublishReport(w http.ResponseWriter, r *http.Request) {
	rep, err := s.buildReport(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ref, err := s.svc.Reports.Publish(r.Context(), rep)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"range": ref})
}

// handleExpenseStream is a server-sent event stream of the expense summary.
// The summary is recomputed for the caller's scope and filters whenever the
// expense feed delivers a new snapshot.
func (s *Server) handleExpenseStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		ErrorResponse(http.StatusInternalServerError, CodeInternal, "streaming unsupported").Write(w)
		return
	}

	q := r.URL.Query()
	c, err := ParseCriteria(q)
	if err != nil {
		writeError(w, r, err)
		return
	}
	sc := scope(r)
	view := report.ParseView(q.Get("view"))
	ctx := r.Context()
	logger := log.FromContext(ctx)

	// Validate scope and filters before committing to a stream.
	first, err := s.svc.Reports.Expenses(ctx, sc, c, view)
	if err != nil {
		writeError(w, r, err)
		return
	}

	changed := make(chan struct{}, 1)
	unsubscribe := s.expenseFeed.Subscribe(func([]core.Expense) {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	send := func(rep services.Report) error {
		data, err := json.Marshal(rep)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "event: summary\ndata: %s\n\n", data); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}
	if err := send(first); err != nil {
		return
	}

	heartbeat := time.NewTicker(streamHeartbeat)
	defer heartbeat.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case <-changed:
			rep, err := s.svc.Reports.Expenses(ctx, sc, c, view)
			if err != nil {
				logger.WarnContext(ctx, "Stream summary failed", log.FieldError, err)
				continue
			}
			if err := send(rep); err != nil {
				return
			}
		}
	}
}
