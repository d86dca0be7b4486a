// Package middleware provides HTTP middleware components for the induction API.
package middleware

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"
)

// errorCodeKey is the context key for the error code slot.
type errorCodeKey struct{}

// errorCodeSlot is shared by every context derived from one request, so a
// code set deep inside a handler is visible to the logging middleware.
type errorCodeSlot struct {
	mu   sync.Mutex
	code string
}

func (s *errorCodeSlot) set(code string) {
	s.mu.Lock()
	s.code = code
	s.mu.Unlock()
}

func (s *errorCodeSlot) get() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.code
}

// SetErrorCode records an error code for the current request.
// Handlers call this when writing error responses.
func SetErrorCode(ctx context.Context, code string) context.Context {
	if slot, ok := ctx.Value(errorCodeKey{}).(*errorCodeSlot); ok {
		slot.set(code)
		return ctx
	}
	return context.WithValue(ctx, errorCodeKey{}, &errorCodeSlot{code: code})
}

// GetErrorCode retrieves the error code from context. Returns empty string if not present.
func GetErrorCode(ctx context.Context) string {
	if slot, ok := ctx.Value(errorCodeKey{}).(*errorCodeSlot); ok {
		return slot.get()
	}
	return ""
}

// withErrorCodeSlot returns ctx carrying a slot, reusing an existing one.
func withErrorCodeSlot(ctx context.Context) (context.Context, *errorCodeSlot) {
	if slot, ok := ctx.Value(errorCodeKey{}).(*errorCodeSlot); ok {
		return ctx, slot
	}
	slot := &errorCodeSlot{}
	return context.WithValue(ctx, errorCodeKey{}, slot), slot
}

// responseWriter wraps http.ResponseWriter to capture status code and response size.
type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	size        int
	wroteHeader bool
}

// WriteHeader captures the status code before writing it.
// Only the first call counts, matching net/http.
func (rw *responseWriter) WriteHeader(code int) {
	if rw.wroteHeader {
		return
	}
	rw.statusCode = code
	rw.wroteHeader = true
	rw.ResponseWriter.WriteHeader(code)
}

// Write captures the response size and writes the data.
func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.wroteHeader {
		rw.wroteHeader = true
	}
	n, err := rw.ResponseWriter.Write(b)
	rw.size += n
	return n, err
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// newResponseWriter creates a new responseWriter with default 200 status.
func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
	}
}

// NewLogger creates an slog.Logger based on the environment.
// In production (env == "production"), it returns a JSON handler at info level.
// Otherwise, it returns a text handler at debug level.
func NewLogger(env string) *slog.Logger {
	return newLogger(os.Stdout, env)
}

func newLogger(w io.Writer, env string) *slog.Logger {
	var handler slog.Handler
	if env == "production" {
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	} else {
		handler = slog.NewTextHandler(w, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})
	}
	return slog.New(handler)
}

// Logging is a middleware that logs HTTP requests with structured fields:
// method, path, status, latency (ms), response size, request ID and, for
// error responses, the error code set by the handler.
//
// If a handler panics, the log entry is not written.
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ctx, slot := withErrorCodeSlot(r.Context())
			rw := newResponseWriter(w)

			next.ServeHTTP(rw, r.WithContext(ctx))

			attrs := []slog.Attr{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rw.statusCode),
				slog.Int64("latency_ms", time.Since(start).Milliseconds()),
				slog.Int("size", rw.size),
			}

			if requestID := GetRequestID(ctx); requestID != "" {
				attrs = append(attrs, slog.String("request_id", requestID))
			}

			if rw.statusCode >= 400 {
				if code := slot.get(); code != "" {
					attrs = append(attrs, slog.String("error_code", code))
				}
			}

			level := slog.LevelInfo
			switch {
			case rw.statusCode >= 500:
				level = slog.LevelError
			case rw.statusCode >= 400:
				level = slog.LevelWarn
			}
			logger.LogAttrs(ctx, level, "request completed", attrs...)
		})
	}
}
