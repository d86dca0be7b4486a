// Package api provides the HTTP handlers of the induction service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/kmrl/induction/internal/middleware"
)

// Error codes returned in the error envelope.
const (
	// ErrCodeBadRequest indicates a malformed request.
	ErrCodeBadRequest = "bad_request"

	// ErrCodeValidation indicates input validation failure.
	ErrCodeValidation = "validation_error"

	// ErrCodeMethodNotAllowed indicates the route exists but not for this method.
	ErrCodeMethodNotAllowed = "method_not_allowed"

	// ErrCodeNotFound indicates the requested resource was not found.
	ErrCodeNotFound = "not_found"

	// ErrCodeInvalidWeights indicates a weight vector that cannot rank.
	ErrCodeInvalidWeights = "invalid_weights"

	// ErrCodeInvalidSource indicates a missing or malformed source label.
	ErrCodeInvalidSource = "invalid_source"

	// ErrCodeEmptyUpload indicates an upload without a header row.
	ErrCodeEmptyUpload = "empty_upload"

	// ErrCodeUnsupportedFormat indicates an unknown export format.
	ErrCodeUnsupportedFormat = "unsupported_format"

	// ErrCodePayloadTooLarge indicates the request body exceeded the limit.
	ErrCodePayloadTooLarge = "payload_too_large"

	// ErrCodeStorageUnavailable indicates no batch store is configured.
	ErrCodeStorageUnavailable = "storage_unavailable"

	// ErrCodeInternal indicates an internal server error.
	ErrCodeInternal = "internal_error"
)

// ErrorResponse represents the standard error response format.
// All API errors return JSON in this structure: {"error": {"code": "...", "message": "..."}}
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains the error code and human-readable message.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteError writes a JSON error envelope and records code for the
// logging middleware.
//
//	api.WriteError(w, r.Context(), http.StatusNotFound, api.ErrCodeNotFound, "No batch for source")
func WriteError(w http.ResponseWriter, ctx context.Context, status int, code, message string) {
	middleware.SetErrorCode(ctx, code)

	data, err := json.Marshal(ErrorResponse{Error: ErrorDetail{Code: code, Message: message}})
	if err != nil {
		slog.ErrorContext(ctx, "failed to marshal error response", "error", err)
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("Internal server error"))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		slog.ErrorContext(ctx, "failed to write error response", "error", err)
	}
}

// StatusCodeMapping returns the HTTP status used for an error code.
func StatusCodeMapping(code string) int {
	switch code {
	case ErrCodeBadRequest, ErrCodeValidation, ErrCodeInvalidWeights,
		ErrCodeInvalidSource, ErrCodeEmptyUpload, ErrCodeUnsupportedFormat:
		return http.StatusBadRequest
	case ErrCodeMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodePayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	case ErrCodeStorageUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeCodedError writes code with its mapped status.
func writeCodedError(w http.ResponseWriter, r *http.Request, code, message string) {
	WriteError(w, r.Context(), StatusCodeMapping(code), code, message)
}

// writeJSON encodes v with the given status.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode response", "error", err)
	}
}

// allowMethod writes 405 and returns false unless r uses method.
func allowMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method == method {
		return true
	}
	w.Header().Set("Allow", method)
	writeCodedError(w, r, ErrCodeMethodNotAllowed, "Method not allowed")
	return false
}

// decodeBody decodes a JSON request body of at most limit bytes into v.
// It writes the error response itself and reports whether decoding succeeded.
func decodeBody(w http.ResponseWriter, r *http.Request, limit int64, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, limit))
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeCodedError(w, r, ErrCodePayloadTooLarge, "Request body too large")
			return false
		}
		writeCodedError(w, r, ErrCodeBadRequest, "Invalid JSON in request body")
		return false
	}
	return true
}
