package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"

	"estate/internal/core"
)

func TestAmount_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    float64
		wantErr error
	}{
		{"number", `1500.5`, 1500.5, nil},
		{"dot string", `"12.34"`, 12.34, nil},
		{"comma string", `"12,34"`, 12.34, nil},
		{"rounds half up", `"10.005"`, 10.01, nil},
		{"empty string", `""`, 0, nil},
		{"negative string", `"-5"`, 0, core.ErrInvalidAmount},
		{"garbage", `"abc"`, 0, core.ErrInvalidAmount},
		{"bool", `true`, 0, core.ErrInvalidAmount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var a Amount
			err := json.Unmarshal([]byte(tt.input), &a)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if float64(a) != tt.want {
				t.Errorf("Amount = %v, want %v", float64(a), tt.want)
			}
		})
	}
}

func TestParseCriteria(t *testing.T) {
	q := url.Values{}
	q.Set("from", "2026-01-01")
	q.Set("to", "2026-01-31")
	q.Set("category", " cat1 ")
	q.Set("project", "p1")
	q.Set("min", "10")
	q.Set("max", "250.5")
	q.Set("q", "cement\x00")

	c, err := ParseCriteria(q)
	if err != nil {
		t.Fatalf("ParseCriteria: %v", err)
	}
	if c.StartDate.String() != "2026-01-01" || c.EndDate.String() != "2026-01-31" {
		t.Errorf("dates = %s..%s", c.StartDate, c.EndDate)
	}
	if c.CategoryID != "cat1" || c.ProjectID != "p1" || c.Query != "cement" {
		t.Errorf("criteria = %+v", c)
	}
	if c.MinAmount == nil || *c.MinAmount != 10 || c.MaxAmount == nil || *c.MaxAmount != 250.5 {
		t.Errorf("amount bounds = %v %v", c.MinAmount, c.MaxAmount)
	}
}

func TestParseCriteria_Empty(t *testing.T) {
	c, err := ParseCriteria(url.Values{})
	if err != nil {
		t.Fatalf("ParseCriteria: %v", err)
	}
	if !c.IsZero() {
		t.Errorf("criteria = %+v, want zero", c)
	}
}

func TestParseCriteria_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   string
		wantErr error
	}{
		{"bad from", "from", "01/02/2026", core.ErrInvalidDate},
		{"bad to", "to", "yesterday", core.ErrInvalidDate},
		{"bad min", "min", "ten", core.ErrInvalidAmount},
		{"infinite max", "max", "Inf", core.ErrInvalidAmount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCriteria(url.Values{tt.key: {tt.value}})
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestParsePage(t *testing.T) {
	tests := []struct {
		value string
		want  int
	}{
		{"", 1},
		{"3", 3},
		{"0", 1},
		{"-2", 1},
		{"x", 1},
	}
	for _, tt := range tests {
		if got := parsePage(url.Values{"page": {tt.value}}); got != tt.want {
			t.Errorf("parsePage(%q) = %d, want %d", tt.value, got, tt.want)
		}
	}
}

func TestSanitizeInput(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"  hello  ", "hello"},
		{"line\nbreak", "line\nbreak"},
		{"bell\x07", "bell"},
		{"tab\there", "tab\there"},
	}
	for _, tt := range tests {
		if got := sanitizeInput(tt.input); got != tt.want {
			t.Errorf("sanitizeInput(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestDecodeJSON(t *testing.T) {
	s := &Server{validate: newValidator()}

	tests := []struct {
		name       string
		body       string
		wantErr    bool
		wantStatus int
		wantField  string
	}{
		{name: "valid", body: `{"unit_id":"u1","customer_id":"c1","amount_paid":"1000"}`},
		{name: "unknown field", body: `{"unit_id":"u1","customer_id":"c1","price":1}`, wantErr: true, wantStatus: 400},
		{name: "trailing data", body: `{"unit_id":"u1","customer_id":"c1"} {}`, wantErr: true, wantStatus: 400},
		{name: "not json", body: `unit=u1`, wantErr: true, wantStatus: 400},
		{name: "missing required", body: `{"customer_id":"c1"}`, wantErr: true, wantStatus: 422, wantField: "unit_id"},
		{name: "bad date", body: `{"unit_id":"u1","customer_id":"c1","booking_date":"31/12/2026"}`, wantErr: true, wantStatus: 422},
		{name: "bad amount", body: `{"unit_id":"u1","customer_id":"c1","amount_paid":"lots"}`, wantErr: true, wantStatus: 422},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/api/bookings", strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			var req createBookingRequest
			err := s.decodeJSON(w, r, &req)
			if (err != nil) != tt.wantErr {
				t.Fatalf("decodeJSON error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr {
				if req.UnitID != "u1" || float64(req.AmountPaid) != 1000 {
					t.Errorf("decoded %+v", req)
				}
				return
			}
			if status, _ := Classify(err); status != tt.wantStatus {
				t.Errorf("status = %d, want %d (err %v)", status, tt.wantStatus, err)
			}
			if tt.wantField != "" {
				var verrs validator.ValidationErrors
				if !errors.As(err, &verrs) || verrs[0].Field() != tt.wantField {
					t.Errorf("field errors = %v, want %s", err, tt.wantField)
				}
			}
		})
	}
}
