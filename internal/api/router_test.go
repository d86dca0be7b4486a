package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kmrl/induction/internal/ingest"
)

func newTestRouter(ingestWrap func(http.Handler) http.Handler) *http.ServeMux {
	store := ingest.NewInMemoryStore()
	return NewRouter(RouterConfig{
		Ingest: NewIngestHandlers(ingest.NewService(store, ingest.ServiceConfig{}, nil, nil), 0),
		Rank:   NewRankHandlers(RankHandlersConfig{Store: store}),
		Health: NewHealthHandlers(nil),
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("# metrics"))
		}),
		IngestMiddleware: ingestWrap,
	})
}

func TestRouter_Routes(t *testing.T) {
	mux := newTestRouter(nil)

	tests := []struct {
		method     string
		path       string
		body       string
		wantStatus int
	}{
		{http.MethodGet, "/", "", http.StatusOK},
		{http.MethodGet, "/health", "", http.StatusOK},
		{http.MethodGet, "/ready", "", http.StatusOK},
		{http.MethodGet, "/metrics", "", http.StatusOK},
		{http.MethodGet, "/api/rules", "", http.StatusOK},
		{http.MethodPost, "/api/rank", `{"rakes":[]}`, http.StatusOK},
		{http.MethodPost, "/api/ingest", `{"source":"fleet","text":"train_id\nKM-001\n"}`, http.StatusCreated},
		{http.MethodGet, "/api/rank/latest?source=fleet", "", http.StatusOK},
		{http.MethodGet, "/api/unknown", "", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			rr := httptest.NewRecorder()
			mux.ServeHTTP(rr, req)
			if rr.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d: %s", tt.wantStatus, rr.Code, rr.Body.String())
			}
		})
	}
}

func TestRouter_IngestMiddleware(t *testing.T) {
	wrapped := false
	mux := newTestRouter(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			wrapped = true
			next.ServeHTTP(w, r)
		})
	})

	mux.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/rules", nil))
	if wrapped {
		t.Fatal("ingest middleware ran for another route")
	}

	mux.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/ingest", strings.NewReader(`{}`)))
	if !wrapped {
		t.Error("ingest middleware did not run for /api/ingest")
	}
}

func TestRouter_NotFoundEnvelope(t *testing.T) {
	rr := httptest.NewRecorder()
	newTestRouter(nil).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/scenes", nil))

	if got := decodeError(t, rr).Code; got != ErrCodeNotFound {
		t.Errorf("expected not_found, got %q", got)
	}
}
