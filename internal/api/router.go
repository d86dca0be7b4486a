package api

import (
	"net/http"
)

// Version is reported by GET / and set at build time.
var Version = "dev"

// RouterConfig lists the handlers mounted by NewRouter.
type RouterConfig struct {
	Ingest  *IngestHandlers
	Rank    *RankHandlers
	Health  *HealthHandlers
	Metrics http.Handler // /metrics; omitted when nil

	// IngestMiddleware wraps POST /api/ingest only, e.g. a rate limiter.
	IngestMiddleware func(http.Handler) http.Handler
}

// NewRouter mounts every API route on a new ServeMux. Unknown paths get
// the JSON not-found envelope.
func NewRouter(cfg RouterConfig) *http.ServeMux {
	mux := http.NewServeMux()

	if cfg.Ingest != nil {
		var ingestHandler http.Handler = http.HandlerFunc(cfg.Ingest.Ingest)
		if cfg.IngestMiddleware != nil {
			ingestHandler = cfg.IngestMiddleware(ingestHandler)
		}
		mux.Handle("/api/ingest", ingestHandler)
	}
	if cfg.Rank != nil {
		mux.HandleFunc("/api/rank", cfg.Rank.Rank)
		mux.HandleFunc("/api/rank/latest", cfg.Rank.Latest)
		mux.HandleFunc("/api/rules", cfg.Rank.Rules)
	}
	if cfg.Health != nil {
		mux.HandleFunc("/health", cfg.Health.Health)
		mux.HandleFunc("/ready", cfg.Health.Ready)
	}
	if cfg.Metrics != nil {
		mux.Handle("/metrics", cfg.Metrics)
	}

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			writeCodedError(w, r, ErrCodeNotFound, "The requested resource was not found")
			return
		}
		writeJSON(w, r, http.StatusOK, map[string]string{"service": "induction-api", "version": Version})
	})

	return mux
}
