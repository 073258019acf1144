package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"estate/internal/auth"
	"estate/internal/core"
	"estate/internal/services"
)

func TestJSONResponseBuilder_Basic(t *testing.T) {
	w := httptest.NewRecorder()

	NewJSONResponse().
		Status(http.StatusCreated).
		Header("X-Custom", "value").
		Body(map[string]int{"n": 1}).
		Write(w)

	if w.Code != http.StatusCreated {
		t.Errorf("Status code = %d, want %d", w.Code, http.StatusCreated)
	}
	if got := w.Header().Get("X-Custom"); got != "value" {
		t.Errorf("X-Custom = %q, want value", got)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Errorf("Content-Type = %q", ct)
	}
	if strings.TrimSpace(w.Body.String()) != `{"n":1}` {
		t.Errorf("Body = %q", w.Body.String())
	}
}

func TestJSONResponseBuilder_NoBody(t *testing.T) {
	w := httptest.NewRecorder()
	NewJSONResponse().Status(http.StatusNoContent).Write(w)

	if w.Code != http.StatusNoContent {
		t.Errorf("Status code = %d", w.Code)
	}
	if w.Body.Len() != 0 {
		t.Errorf("Body = %q, want empty", w.Body.String())
	}
	if w.Header().Get("Content-Type") != "" {
		t.Error("Content-Type set without a body")
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"validation sentinel", fmt.Errorf("payment: %w", core.ErrInvalidAmount), 422, CodeValidation},
		{"missing linkage", core.ErrMissingLinkage, 422, CodeValidation},
		{"malformed body", fmt.Errorf("%w: eof", errBadRequest), 400, CodeBadRequest},
		{"unknown format", services.ErrUnknownFormat, 400, CodeBadRequest},
		{"bad credentials", auth.ErrInvalidCredentials, 401, CodeUnauthorized},
		{"out of scope", fmt.Errorf("booking b1: %w", core.ErrOutOfScope), 403, CodeOutOfScope},
		{"forbidden", core.ErrForbidden, 403, CodeForbidden},
		{"not found", fmt.Errorf("unit u9: %w", core.ErrNotFound), 404, CodeNotFound},
		{"conflict", core.ErrConflict, 409, CodeConflict},
		{"invalid state", core.ErrInvalidState, 409, CodeInvalidState},
		{"sheets disabled", services.ErrSheetsDisabled, 503, CodeUnavailable},
		{"anything else", errors.New("disk on fire"), 500, CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, code := Classify(tt.err)
			if status != tt.wantStatus || code != tt.wantCode {
				t.Errorf("Classify(%v) = %d %q, want %d %q", tt.err, status, code, tt.wantStatus, tt.wantCode)
			}
		})
	}
}

func TestWriteError_Bodies(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantBody    ErrorBody
		wantMessage bool
	}{
		{
			name:     "out of scope hides details",
			err:      fmt.Errorf("booking b9 in p2: %w", core.ErrOutOfScope),
			wantBody: ErrorBody{Error: CodeOutOfScope},
		},
		{
			name:     "internal hides details",
			err:      errors.New("connection refused to 10.0.0.3"),
			wantBody: ErrorBody{Error: CodeInternal},
		},
		{
			name:        "not found keeps message",
			err:         fmt.Errorf("expense e1: %w", core.ErrNotFound),
			wantBody:    ErrorBody{Error: CodeNotFound},
			wantMessage: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodGet, "/api/x", nil)
			writeError(w, r, tt.err)

			var got ErrorBody
			if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if got.Error != tt.wantBody.Error {
				t.Errorf("error = %q, want %q", got.Error, tt.wantBody.Error)
			}
			if (got.Message != "") != tt.wantMessage {
				t.Errorf("message = %q, wantMessage %v", got.Message, tt.wantMessage)
			}
		})
	}
}

func TestWriteError_OutOfScopeExactBody(t *testing.T) {
	w := httptest.NewRecorder()
	writeError(w, httptest.NewRequest(http.MethodGet, "/", nil), core.ErrOutOfScope)

	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}
	if got := strings.TrimSpace(w.Body.String()); got != `{"error":"out_of_scope"}` {
		t.Errorf("body = %s", got)
	}
}
