package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) ErrorDetail {
	t.Helper()
	var resp ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return resp.Error
}

func TestWriteError(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteError(rr, context.Background(), http.StatusNotFound, ErrCodeNotFound, "No batch stored for source fleet")

	if rr.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("unexpected content type %q", ct)
	}
	detail := decodeError(t, rr)
	if detail.Code != ErrCodeNotFound || detail.Message != "No batch stored for source fleet" {
		t.Errorf("unexpected error detail %+v", detail)
	}
}

func TestStatusCodeMapping(t *testing.T) {
	tests := map[string]int{
		ErrCodeBadRequest:         http.StatusBadRequest,
		ErrCodeValidation:         http.StatusBadRequest,
		ErrCodeInvalidWeights:     http.StatusBadRequest,
		ErrCodeInvalidSource:      http.StatusBadRequest,
		ErrCodeEmptyUpload:        http.StatusBadRequest,
		ErrCodeUnsupportedFormat:  http.StatusBadRequest,
		ErrCodeMethodNotAllowed:   http.StatusMethodNotAllowed,
		ErrCodeNotFound:           http.StatusNotFound,
		ErrCodePayloadTooLarge:    http.StatusRequestEntityTooLarge,
		ErrCodeStorageUnavailable: http.StatusServiceUnavailable,
		ErrCodeInternal:           http.StatusInternalServerError,
		"something_else":          http.StatusInternalServerError,
	}
	for code, want := range tests {
		if got := StatusCodeMapping(code); got != want {
			t.Errorf("StatusCodeMapping(%q) = %d, want %d", code, got, want)
		}
	}
}
