package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/kmrl/induction/internal/ingest"
)

// DefaultMaxUploadBytes bounds the JSON body of POST /api/ingest.
const DefaultMaxUploadBytes = 10 << 20

// IngestHandlers holds dependencies for upload HTTP handlers.
type IngestHandlers struct {
	service  *ingest.Service
	maxBytes int64
}

// NewIngestHandlers creates a new IngestHandlers instance.
// A non-positive maxBytes uses DefaultMaxUploadBytes.
func NewIngestHandlers(service *ingest.Service, maxBytes int64) *IngestHandlers {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	return &IngestHandlers{service: service, maxBytes: maxBytes}
}

// Ingest handles POST /api/ingest.
//
// The response is 201 when the batch was stored and 202 when it was only
// processed locally; the body is the ingest result either way.
func (h *IngestHandlers) Ingest(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}

	var req ingest.Request
	if !decodeBody(w, r, h.maxBytes, &req) {
		return
	}

	result, err := h.service.Ingest(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, ingest.ErrInvalidSource):
			writeCodedError(w, r, ErrCodeInvalidSource, err.Error())
		case errors.Is(err, ingest.ErrEmptyUpload):
			writeCodedError(w, r, ErrCodeEmptyUpload, "Upload contains no header row")
		default:
			slog.ErrorContext(r.Context(), "ingest failed", "error", err)
			writeCodedError(w, r, ErrCodeInternal, "Failed to process upload")
		}
		return
	}

	status := http.StatusCreated
	if result.UploadID == "" {
		status = http.StatusAccepted
	}
	writeJSON(w, r, status, result)
}
