package middleware

import (
	"net/http"
	"strconv"
	"time"
)

// knownRoutes are the paths served by the induction API. Anything else is
// reported under a single label so scanners cannot inflate metric cardinality.
var knownRoutes = map[string]bool{
	"/":                true,
	"/api/ingest":      true,
	"/api/rank":        true,
	"/api/rank/latest": true,
	"/api/rules":       true,
	"/health":          true,
	"/ready":           true,
	"/metrics":         true,
}

// unmatchedRoute is the path label for requests outside knownRoutes.
const unmatchedRoute = "/{unmatched}"

// normalizePath maps a request path to a bounded route label.
// A single trailing slash is ignored.
func normalizePath(path string) string {
	if knownRoutes[path] {
		return path
	}
	if n := len(path); n > 1 && path[n-1] == '/' && knownRoutes[path[:n-1]] {
		return path[:n-1]
	}
	return unmatchedRoute
}

// metricsResponseWriter wraps http.ResponseWriter to capture status code and response size.
type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode  int
	size        int64
	wroteHeader bool
}

// WriteHeader captures the status code before writing it.
func (mrw *metricsResponseWriter) WriteHeader(code int) {
	if mrw.wroteHeader {
		return
	}
	mrw.statusCode = code
	mrw.wroteHeader = true
	mrw.ResponseWriter.WriteHeader(code)
}

// Write captures the response size and writes the data.
func (mrw *metricsResponseWriter) Write(b []byte) (int, error) {
	mrw.wroteHeader = true
	n, err := mrw.ResponseWriter.Write(b)
	mrw.size += int64(n)
	return n, err
}

// newMetricsResponseWriter creates a new metricsResponseWriter with default 200 status.
func newMetricsResponseWriter(w http.ResponseWriter) *metricsResponseWriter {
	return &metricsResponseWriter{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
	}
}

// HTTPMetrics is a middleware that records HTTP request metrics.
// It captures duration, request/response sizes, and request counts.
// Health, readiness and scrape endpoints are excluded.
func HTTPMetrics(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/health", "/ready", "/metrics":
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			mrw := newMetricsResponseWriter(w)

			requestSize := r.ContentLength
			if requestSize < 0 {
				requestSize = 0
			}

			next.ServeHTTP(mrw, r)

			metrics.ObserveHTTPRequest(
				r.Method,
				normalizePath(r.URL.Path),
				strconv.Itoa(mrw.statusCode),
				time.Since(start).Seconds(),
				requestSize,
				mrw.size,
			)
		})
	}
}
