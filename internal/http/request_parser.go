// Package http exposes the back-office services as a JSON API.
//
// This file implements utilities for parsing and validating request data:
// JSON bodies checked with struct tags, filter criteria from the query
// string, and input sanitization.

package http

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"estate/internal/core"
	"estate/internal/filter"
)

const maxJSONBody = 1 << 20

// Amount accepts either a JSON number or a decimal string such as "12.34"
// or "12,34". Strings go through core.ParseAmount.
type Amount float64

func (a *Amount) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return core.ErrInvalidAmount
		}
		if s == "" {
			*a = 0
			return nil
		}
		v, err := core.ParseAmount(s)
		if err != nil {
			return err
		}
		*a = Amount(v)
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return core.ErrInvalidAmount
	}
	*a = Amount(f)
	return nil
}

// newValidator reports field errors under their JSON names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// decodeJSON reads a size-limited JSON body into dst and validates it.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, maxJSONBody)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if core.IsValidation(err) {
			return err
		}
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return fmt.Errorf("%w: trailing data after JSON body", errBadRequest)
	}
	return s.validate.Struct(dst)
}

// ParseCriteria builds filter criteria from query parameters. Malformed
// dates and amounts are rejected rather than silently ignored.
func ParseCriteria(q url.Values) (filter.Criteria, error) {
	c := filter.Criteria{
		CategoryID: sanitizeInput(q.Get("category")),
		ProjectID:  sanitizeInput(q.Get("project")),
		Query:      sanitizeInput(q.Get("q")),
	}
	var err error
	if c.StartDate, err = optionalDate(q.Get("from")); err != nil {
		return filter.Criteria{}, fmt.Errorf("from: %w", err)
	}
	if c.EndDate, err = optionalDate(q.Get("to")); err != nil {
		return filter.Criteria{}, fmt.Errorf("to: %w", err)
	}
	if c.MinAmount, err = optionalFloat(q.Get("min")); err != nil {
		return filter.Criteria{}, fmt.Errorf("min: %w", err)
	}
	if c.MaxAmount, err = optionalFloat(q.Get("max")); err != nil {
		return filter.Criteria{}, fmt.Errorf("max: %w", err)
	}
	return c, nil
}

func optionalDate(s string) (core.Date, error) {
	if strings.TrimSpace(s) == "" {
		return core.Date{}, nil
	}
	return core.ParseDate(s)
}

func optionalFloat(s string) (*float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || !core.IsFinite(v) {
		return nil, core.ErrInvalidAmount
	}
	return &v, nil
}

// parsePage reads the 1-based page parameter, defaulting to 1.
func parsePage(q url.Values) int {
	if p, err := strconv.Atoi(strings.TrimSpace(q.Get("page"))); err == nil && p > 0 {
		return p
	}
	return 1
}

// sanitizeInput removes control characters except tab and newlines, and
// trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
