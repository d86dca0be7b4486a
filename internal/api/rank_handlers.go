package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/kmrl/induction/internal/fleet"
	"github.com/kmrl/induction/internal/ingest"
	"github.com/kmrl/induction/internal/ranking"
	"github.com/kmrl/induction/internal/report"
	"github.com/kmrl/induction/internal/scoring"
)

// DefaultMaxRankBytes bounds the JSON body of POST /api/rank.
const DefaultMaxRankBytes = 2 << 20

// RakeInput is the wire form of one rake in a ranking request.
// Field names follow the fleet table columns.
type RakeInput struct {
	ID                string  `json:"id"`
	RollingStockFC    bool    `json:"fc_rs"`
	SignallingFC      bool    `json:"fc_sig"`
	TelecomFC         bool    `json:"fc_tel"`
	OpenJobs          int     `json:"open_jobs"`
	BrandingShortfall float64 `json:"branding_shortfall"`
	MileageKm         float64 `json:"mileage_km"`
	CleaningDue       bool    `json:"cleaning_due"`
	StablingPenalty   int     `json:"stabling_penalty"`
}

// toRake validates the input and converts it to a fleet.Rake.
func (in RakeInput) toRake() (fleet.Rake, error) {
	id := strings.TrimSpace(in.ID)
	switch {
	case id == "":
		return fleet.Rake{}, errors.New("id is required")
	case in.OpenJobs < 0:
		return fleet.Rake{}, fmt.Errorf("%s: open_jobs must not be negative", id)
	case in.BrandingShortfall < 0:
		return fleet.Rake{}, fmt.Errorf("%s: branding_shortfall must not be negative", id)
	case in.MileageKm < 0:
		return fleet.Rake{}, fmt.Errorf("%s: mileage_km must not be negative", id)
	case in.StablingPenalty < 0:
		return fleet.Rake{}, fmt.Errorf("%s: stabling_penalty must not be negative", id)
	}

	r := fleet.Rake{
		ID:                     id,
		OpenJobCards:           in.OpenJobs,
		BrandingShortfallHours: in.BrandingShortfall,
		MileageKm:              in.MileageKm,
		CleaningDue:            in.CleaningDue,
		StablingPenalty:        in.StablingPenalty,
	}
	r.Certified[fleet.RollingStock] = in.RollingStockFC
	r.Certified[fleet.Signalling] = in.SignallingFC
	r.Certified[fleet.Telecom] = in.TelecomFC
	return r, nil
}

// RankRequest is the body of POST /api/rank. Weights overlay the
// calibrated weights; omitted criteria keep their calibrated value.
type RankRequest struct {
	Rakes   []RakeInput    `json:"rakes"`
	Weights map[string]int `json:"weights,omitempty"`
}

// RankResponse is the JSON result of a ranking.
type RankResponse struct {
	Ranked    []ranking.ScoredRake `json:"ranked"`
	Summary   ranking.Summary      `json:"summary"`
	Weights   ranking.Weights      `json:"weights"`
	BatchID   string               `json:"batchId,omitempty"`
	Source    string               `json:"source,omitempty"`
	RowErrors []string             `json:"rowErrors,omitempty"`
}

// RulesResponse is the body of GET /api/rules.
type RulesResponse struct {
	Rules   []ranking.Rule  `json:"rules"`
	Weights ranking.Weights `json:"weights"`
}

// RankHandlers serves ranking endpoints.
type RankHandlers struct {
	weights ranking.Weights
	store   ingest.Store
	metrics *ranking.Metrics
	logger  *slog.Logger
}

// RankHandlersConfig configures the ranking handlers.
type RankHandlersConfig struct {
	Weights ranking.Weights  // calibrated weights; nil uses ranking.DefaultWeights
	Store   ingest.Store     // source of stored batches; nil disables /api/rank/latest
	Metrics *ranking.Metrics // optional
	Logger  *slog.Logger     // nil uses slog.Default
}

// NewRankHandlers creates a new RankHandlers instance.
func NewRankHandlers(cfg RankHandlersConfig) *RankHandlers {
	w := cfg.Weights
	if w == nil {
		w = ranking.DefaultWeights()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &RankHandlers{weights: w.Clone(), store: cfg.Store, metrics: cfg.Metrics, logger: logger}
}

// Rank handles POST /api/rank.
func (h *RankHandlers) Rank(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}

	format, ok := h.format(w, r)
	if !ok {
		return
	}

	var req RankRequest
	if !decodeBody(w, r, DefaultMaxRankBytes, &req) {
		return
	}

	rakes := make([]fleet.Rake, 0, len(req.Rakes))
	seen := make(map[string]bool, len(req.Rakes))
	for i, in := range req.Rakes {
		rake, err := in.toRake()
		if err != nil {
			writeCodedError(w, r, ErrCodeValidation, fmt.Sprintf("rakes[%d]: %v", i, err))
			return
		}
		if seen[rake.ID] {
			writeCodedError(w, r, ErrCodeValidation, fmt.Sprintf("rakes[%d]: duplicate id %s", i, rake.ID))
			return
		}
		seen[rake.ID] = true
		rakes = append(rakes, rake)
	}

	weights := ranking.MergeCalibration(h.weights, toWeights(req.Weights))
	h.respond(w, r, format, rakes, weights, RankResponse{})
}

// Latest handles GET /api/rank/latest?source=NAME[&weights=...].
// It decodes the most recent batch stored for the source and ranks it;
// rows that fail to decode are skipped and listed in rowErrors.
func (h *RankHandlers) Latest(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	if h.store == nil {
		writeCodedError(w, r, ErrCodeStorageUnavailable, "No batch store configured")
		return
	}

	format, ok := h.format(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	source := query.Get("source")
	if err := ingest.ValidateSource(source); err != nil {
		writeCodedError(w, r, ErrCodeInvalidSource, err.Error())
		return
	}

	weights, err := ranking.ParseWeights(query.Get("weights"), h.weights)
	if err != nil {
		writeCodedError(w, r, ErrCodeInvalidWeights, err.Error())
		return
	}

	batch, err := h.store.Latest(r.Context(), source)
	if err != nil {
		if errors.Is(err, ingest.ErrBatchNotFound) {
			writeCodedError(w, r, ErrCodeNotFound, "No batch stored for source "+source)
			return
		}
		h.logger.ErrorContext(r.Context(), "failed to load latest batch", "source", source, "error", err)
		writeCodedError(w, r, ErrCodeInternal, "Failed to load batch")
		return
	}

	rakes, decodeErrs := fleet.Decode(batch.Headers, batch.Rows)
	var rowErrors []string
	for _, e := range decodeErrs {
		var rowErr *fleet.RowError
		if !errors.As(e, &rowErr) {
			writeCodedError(w, r, ErrCodeValidation, e.Error())
			return
		}
		rowErrors = append(rowErrors, e.Error())
	}

	h.respond(w, r, format, rakes, weights, RankResponse{
		BatchID:   batch.ID,
		Source:    batch.Source,
		RowErrors: rowErrors,
	})
}

// Rules handles GET /api/rules.
func (h *RankHandlers) Rules(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, r, http.StatusOK, RulesResponse{Rules: ranking.Rules(), Weights: h.weights.Clone()})
}

// format reads the optional ?format= parameter. JSON is the default.
func (h *RankHandlers) format(w http.ResponseWriter, r *http.Request) (report.Format, bool) {
	raw := r.URL.Query().Get("format")
	if raw == "" {
		return report.FormatJSON, true
	}
	f, err := report.ParseFormat(raw)
	if err != nil {
		writeCodedError(w, r, ErrCodeUnsupportedFormat, err.Error())
		return "", false
	}
	return f, true
}

// respond ranks rakes and writes either the JSON envelope or an export.
func (h *RankHandlers) respond(w http.ResponseWriter, r *http.Request, format report.Format, rakes []fleet.Rake, weights ranking.Weights, resp RankResponse) {
	start := time.Now()
	ranked, err := ranking.Rank(rakes, weights)
	if h.metrics != nil {
		h.metrics.ObserveRun(ranked, err, time.Since(start).Seconds())
	}
	if err != nil {
		writeCodedError(w, r, ErrCodeInvalidWeights, err.Error())
		return
	}

	h.logger.DebugContext(r.Context(), "ranked rakes",
		"rakes", len(ranked),
		"weights", weights.String(),
		"source", resp.Source)

	if format != report.FormatJSON {
		data, err := report.Export(ranked, format)
		if err != nil {
			h.logger.ErrorContext(r.Context(), "failed to export ranking", "format", format, "error", err)
			writeCodedError(w, r, ErrCodeInternal, "Failed to export ranking")
			return
		}
		w.Header().Set("Content-Type", format.ContentType())
		if format == report.FormatCSV {
			w.Header().Set("Content-Disposition", `attachment; filename="induction-ranking.csv"`)
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
		return
	}

	resp.Ranked = ranked
	resp.Summary = ranking.Summarize(ranked)
	resp.Weights = weights
	writeJSON(w, r, http.StatusOK, resp)
}

// toWeights converts wire weights, lowercasing criterion names.
// Unknown names are kept so that validation rejects them.
func toWeights(in map[string]int) ranking.Weights {
	if len(in) == 0 {
		return nil
	}
	out := make(ranking.Weights, len(in))
	for k, v := range in {
		out[scoring.Criterion(strings.ToLower(strings.TrimSpace(k)))] = v
	}
	return out
}
