// This file implements a small builder for JSON responses so every handler
// sets the content type, status and headers the same way.

package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"mmms/internal/core"
	"mmms/internal/log"
)

// JSONResponseBuilder provides a fluent API for JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	body       any
	headers    map[string]string
}

// NewJSONResponse creates a response builder with a 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

// Status sets the HTTP status code for the response.
func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

// Header adds a custom header to the response.
func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Body sets the value encoded as the response body.
func (b *JSONResponseBuilder) Body(v any) *JSONResponseBuilder {
	b.body = v
	return b
}

// Write sends the built response.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)
	if b.body != nil {
		_ = json.NewEncoder(w).Encode(b.body)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	NewJSONResponse().Status(status).Body(v).Write(w)
}

// ErrorBody is the body of every error response.
type ErrorBody struct {
	Error string `json:"error"`
}

// classify maps err to a status code, the message shown to the client and
// the error type logged with it. Details stay in the log.
func classify(err error) (int, string, string) {
	var (
		ve  *core.ValidationError
		uce *core.UnsupportedCurrencyError
		pce *core.ProtectedCategoryError
		ae  *core.AuthError
		nfe *core.NotFoundError
		pe  *core.PersistenceError
	)
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, validationMessage(ve), log.ErrorTypeValidation
	case errors.As(err, &uce):
		return http.StatusBadRequest, "Supported currencies are USD and KHR only", log.ErrorTypeValidation
	case errors.As(err, &pce):
		return http.StatusBadRequest, "Cannot modify default categories", log.ErrorTypeValidation
	case errors.As(err, &ae):
		if ae.Missing {
			return http.StatusUnauthorized, "Access token required", log.ErrorTypeAuth
		}
		return http.StatusForbidden, "Invalid or expired token", log.ErrorTypeAuth
	case errors.As(err, &nfe):
		return http.StatusNotFound, nfe.Error(), log.ErrorTypeNotFound
	case errors.As(err, &pe):
		return http.StatusInternalServerError, "Storage is unavailable, please retry", log.ErrorTypeDatabase
	}
	return http.StatusInternalServerError, "Internal server error", log.ErrorTypeInternal
}

// writeError logs err and writes the matching error response.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg, errType := classify(err)
	logger := log.FromContext(r.Context()).WithComponent(log.ComponentHTTP)
	args := []any{
		log.FieldError, err.Error(),
		log.FieldErrorType, errType,
		log.FieldStatusCode, status,
		log.FieldPath, r.URL.Path,
	}
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "Request failed", args...)
	} else {
		logger.WarnContext(r.Context(), "Request rejected", args...)
	}
	writeJSON(w, status, ErrorBody{Error: msg})
}

func validationMessage(ve *core.ValidationError) string {
	if ve.Field == "" {
		return ve.Reason
	}
	return ve.Field + " " + ve.Reason
}
