// Package http exposes the back-office services as a JSON API.
//
// This file implements the builder used for every response and the mapping
// from domain errors to status codes.

package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"estate/internal/auth"
	"estate/internal/core"
	"estate/internal/log"
	"estate/internal/services"
)

// Error codes carried in the "error" field of failed responses.
const (
	CodeValidation   = "validation_failed"
	CodeBadRequest   = "bad_request"
	CodeUnauthorized = "unauthorized"
	CodeOutOfScope   = "out_of_scope"
	CodeForbidden    = "forbidden"
	CodeNotFound     = "not_found"
	CodeConflict     = "conflict"
	CodeInvalidState = "invalid_state"
	CodeRateLimited  = "rate_limited"
	CodeUnavailable  = "unavailable"
	CodeInternal     = "internal"
)

var errBadRequest = errors.New("malformed request")

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error   string       `json:"error"`
	Message string       `json:"message,omitempty"`
	Fields  []FieldError `json:"fields,omitempty"`
}

// FieldError names one rejected request field.
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
}

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	headers    map[string]string
	body       any
}

// NewJSONResponse creates a builder with a default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Body sets the value encoded as the response body. A nil body writes no
// content.
func (b *JSONResponseBuilder) Body(v any) *JSONResponseBuilder {
	b.body = v
	return b
}

// Write sends the built response.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if b.body == nil {
		w.WriteHeader(b.statusCode)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)
	_ = json.NewEncoder(w).Encode(b.body)
}

// ErrorResponse creates an error response with the given code.
func ErrorResponse(statusCode int, code, message string) *JSONResponseBuilder {
	return NewJSONResponse().
		Status(statusCode).
		Body(ErrorBody{Error: code, Message: message})
}

// Classify maps an error to its status code and error code.
func Classify(err error) (int, string) {
	var verrs validator.ValidationErrors
	switch {
	case errors.As(err, &verrs), core.IsValidation(err):
		return http.StatusUnprocessableEntity, CodeValidation
	case errors.Is(err, errBadRequest), errors.Is(err, services.ErrUnknownFormat):
		return http.StatusBadRequest, CodeBadRequest
	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrMissingToken):
		return http.StatusUnauthorized, CodeUnauthorized
	case errors.Is(err, core.ErrOutOfScope):
		return http.StatusForbidden, CodeOutOfScope
	case errors.Is(err, core.ErrForbidden):
		return http.StatusForbidden, CodeForbidden
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound, CodeNotFound
	case errors.Is(err, core.ErrConflict):
		return http.StatusConflict, CodeConflict
	case errors.Is(err, core.ErrInvalidState):
		return http.StatusConflict, CodeInvalidState
	case errors.Is(err, services.ErrSheetsDisabled):
		return http.StatusServiceUnavailable, CodeUnavailable
	default:
		return http.StatusInternalServerError, CodeInternal
	}
}

// writeError renders err. Messages are omitted for scope violations, so a
// restricted caller learns nothing about other projects, and for internal
// failures, which are logged instead.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := Classify(err)
	body := ErrorBody{Error: code}

	switch code {
	case CodeOutOfScope:
	case CodeInternal:
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
			log.FieldPath, r.URL.Path,
			log.FieldError, err)
	case CodeValidation:
		body.Message = err.Error()
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			body.Message = "invalid request fields"
			for _, fe := range verrs {
				body.Fields = append(body.Fields, FieldError{Field: fe.Field(), Rule: fe.Tag()})
			}
		}
	default:
		body.Message = err.Error()
	}

	NewJSONResponse().Status(status).Body(body).Write(w)
}

// writeAuthError satisfies auth.ErrorWriter.
func writeAuthError(w http.ResponseWriter, r *http.Request, status int, err error) {
	code := CodeUnauthorized
	if status == http.StatusForbidden {
		code = CodeForbidden
	}
	ErrorResponse(status, code, err.Error()).Write(w)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	NewJSONResponse().Status(status).Body(v).Write(w)
}
