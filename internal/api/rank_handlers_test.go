package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/kmrl/induction/internal/ingest"
	"github.com/kmrl/induction/internal/ranking"
)

// rankResult mirrors the parts of RankResponse the tests inspect.
type rankResult struct {
	Ranked []struct {
		Rake struct {
			ID string `json:"id"`
		} `json:"rake"`
		Composite int      `json:"composite"`
		Reasons   []string `json:"reasons"`
		HardBlock bool     `json:"hard_block"`
	} `json:"ranked"`
	Summary   ranking.Summary `json:"summary"`
	Weights   map[string]int  `json:"weights"`
	BatchID   string          `json:"batchId"`
	Source    string          `json:"source"`
	RowErrors []string        `json:"rowErrors"`
}

const twoRakes = `{"rakes":[
	{"id":"KM-002","fc_rs":true,"fc_sig":true,"fc_tel":false,"branding_shortfall":2,"mileage_km":1010,"stabling_penalty":15},
	{"id":"KM-001","fc_rs":true,"fc_sig":true,"fc_tel":true,"mileage_km":950}
]}`

func postRank(t *testing.T, h *RankHandlers, query, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/rank"+query, strings.NewReader(body))
	rr := httptest.NewRecorder()
	h.Rank(rr, req)
	return rr
}

func decodeRank(t *testing.T, rr *httptest.ResponseRecorder) rankResult {
	t.Helper()
	var res rankResult
	if err := json.NewDecoder(rr.Body).Decode(&res); err != nil {
		t.Fatalf("failed to decode rank response: %v", err)
	}
	return res
}

func TestRank_OrdersAndExplains(t *testing.T) {
	h := NewRankHandlers(RankHandlersConfig{})

	rr := postRank(t, h, "", twoRakes)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	res := decodeRank(t, rr)

	if len(res.Ranked) != 2 {
		t.Fatalf("expected 2 ranked rakes, got %d", len(res.Ranked))
	}
	first, second := res.Ranked[0], res.Ranked[1]
	if first.Rake.ID != "KM-001" || first.Composite != 100 || first.HardBlock {
		t.Errorf("unexpected first rake %+v", first)
	}
	if second.Rake.ID != "KM-002" || second.Composite != 78 || !second.HardBlock {
		t.Errorf("unexpected second rake %+v", second)
	}
	if len(first.Reasons) != 1 || first.Reasons[0] != ranking.NoIssues {
		t.Errorf("unexpected reasons for KM-001: %v", first.Reasons)
	}
	if second.Reasons[0] != "Telecom FC missing" {
		t.Errorf("unexpected reasons for KM-002: %v", second.Reasons)
	}
	if res.Summary != (ranking.Summary{Ready: 1, Blocked: 1}) {
		t.Errorf("unexpected summary %+v", res.Summary)
	}
	if res.Weights["readiness"] != 40 {
		t.Errorf("expected default weights in response, got %v", res.Weights)
	}
}

func TestRank_WeightOverride(t *testing.T) {
	h := NewRankHandlers(RankHandlersConfig{})

	body := `{"rakes":[{"id":"KM-001","fc_rs":true,"fc_sig":true,"fc_tel":true,"mileage_km":950}],
		"weights":{"Readiness":100,"branding":0,"mileage":0,"cleaning":0,"stabling":0}}`
	rr := postRank(t, h, "", body)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	res := decodeRank(t, rr)
	if res.Weights["readiness"] != 100 || res.Weights["branding"] != 0 {
		t.Errorf("expected overridden weights, got %v", res.Weights)
	}
}

func TestRank_Errors(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		body       string
		wantStatus int
		wantCode   string
	}{
		{name: "invalid json", body: "{", wantStatus: http.StatusBadRequest, wantCode: ErrCodeBadRequest},
		{name: "all zero weights", body: `{"rakes":[],"weights":{"readiness":0,"branding":0,"mileage":0,"cleaning":0,"stabling":0}}`, wantStatus: http.StatusBadRequest, wantCode: ErrCodeInvalidWeights},
		{name: "negative weight", body: `{"rakes":[],"weights":{"branding":-5}}`, wantStatus: http.StatusBadRequest, wantCode: ErrCodeInvalidWeights},
		{name: "unknown criterion", body: `{"rakes":[],"weights":{"comfort":10}}`, wantStatus: http.StatusBadRequest, wantCode: ErrCodeInvalidWeights},
		{name: "oversized weight", body: `{"rakes":[{"id":"KM-001"}],"weights":{"readiness":9223372036854775807,"branding":1}}`, wantStatus: http.StatusBadRequest, wantCode: ErrCodeInvalidWeights},
		{name: "missing id", body: `{"rakes":[{"fc_rs":true}]}`, wantStatus: http.StatusBadRequest, wantCode: ErrCodeValidation},
		{name: "negative jobs", body: `{"rakes":[{"id":"KM-001","open_jobs":-1}]}`, wantStatus: http.StatusBadRequest, wantCode: ErrCodeValidation},
		{name: "duplicate id", body: `{"rakes":[{"id":"KM-001"},{"id":" KM-001 "}]}`, wantStatus: http.StatusBadRequest, wantCode: ErrCodeValidation},
		{name: "unknown format", query: "?format=xml", body: twoRakes, wantStatus: http.StatusBadRequest, wantCode: ErrCodeUnsupportedFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := postRank(t, NewRankHandlers(RankHandlersConfig{}), tt.query, tt.body)
			if rr.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d: %s", tt.wantStatus, rr.Code, rr.Body.String())
			}
			if got := decodeError(t, rr).Code; got != tt.wantCode {
				t.Errorf("expected code %q, got %q", tt.wantCode, got)
			}
		})
	}
}

func TestRank_EmptyFleet(t *testing.T) {
	rr := postRank(t, NewRankHandlers(RankHandlersConfig{}), "", `{"rakes":[]}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"ranked":[]`) {
		t.Errorf("expected empty ranked array, got %s", rr.Body.String())
	}
}

func TestRank_CSVExport(t *testing.T) {
	rr := postRank(t, NewRankHandlers(RankHandlersConfig{}), "?format=csv", twoRakes)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "text/csv; charset=utf-8" {
		t.Errorf("unexpected content type %q", ct)
	}
	if cd := rr.Header().Get("Content-Disposition"); !strings.Contains(cd, "induction-ranking.csv") {
		t.Errorf("unexpected content disposition %q", cd)
	}
	lines := strings.Split(strings.TrimSpace(rr.Body.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header and 2 rows, got %d lines", len(lines))
	}
	if !strings.HasPrefix(lines[1], "1,KM-001,100,") {
		t.Errorf("unexpected first row %q", lines[1])
	}
}

func TestRank_Metrics(t *testing.T) {
	metrics := ranking.NewMetrics()
	if err := metrics.Register(prometheus.NewRegistry()); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	h := NewRankHandlers(RankHandlersConfig{Metrics: metrics})

	postRank(t, h, "", twoRakes)
	postRank(t, h, "", `{"rakes":[],"weights":{"readiness":-1}}`)

	var success, invalid dto.Metric
	collectors := metrics.Collectors()
	runs := collectors[0].(*prometheus.CounterVec)
	if err := runs.WithLabelValues("success").Write(&success); err != nil {
		t.Fatalf("failed to read counter: %v", err)
	}
	if err := runs.WithLabelValues("invalid_weights").Write(&invalid); err != nil {
		t.Fatalf("failed to read counter: %v", err)
	}
	if success.GetCounter().GetValue() != 1 || invalid.GetCounter().GetValue() != 1 {
		t.Errorf("expected one success and one rejection, got %v/%v",
			success.GetCounter().GetValue(), invalid.GetCounter().GetValue())
	}
}

func storeBatch(t *testing.T, store ingest.Store, id, text string) {
	t.Helper()
	svc := ingest.NewService(store, ingest.ServiceConfig{}, nil, nil)
	if _, err := svc.Ingest(context.Background(), ingest.Request{Source: "fleet", FileName: id, Text: text}); err != nil {
		t.Fatalf("ingest failed: %v", err)
	}
}

func getLatest(t *testing.T, h *RankHandlers, query string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/api/rank/latest"+query, nil)
	rr := httptest.NewRecorder()
	h.Latest(rr, req)
	return rr
}

func TestLatest_RanksStoredBatch(t *testing.T) {
	store := ingest.NewInMemoryStore()
	storeBatch(t, store, "tonight.csv", fleetCSV+"KM-009,maybe,yes,yes,0,0,950,no,0\n")

	h := NewRankHandlers(RankHandlersConfig{Store: store})
	rr := getLatest(t, h, "?source=fleet")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	res := decodeRank(t, rr)
	if res.BatchID == "" || res.Source != "fleet" {
		t.Errorf("expected batch metadata, got id=%q source=%q", res.BatchID, res.Source)
	}
	if len(res.Ranked) != 2 || res.Ranked[0].Rake.ID != "KM-001" {
		t.Errorf("unexpected ranking %+v", res.Ranked)
	}
	if len(res.RowErrors) != 1 || !strings.Contains(res.RowErrors[0], "row 2") {
		t.Errorf("expected one row error for row 2, got %v", res.RowErrors)
	}
}

func TestLatest_QueryWeights(t *testing.T) {
	store := ingest.NewInMemoryStore()
	storeBatch(t, store, "tonight.csv", fleetCSV)

	h := NewRankHandlers(RankHandlersConfig{Store: store})
	rr := getLatest(t, h, "?source=fleet&weights=readiness=0,branding=0,mileage=0,cleaning=0,stabling=0")
	if rr.Code != http.StatusBadRequest || decodeError(t, rr).Code != ErrCodeInvalidWeights {
		t.Errorf("expected invalid_weights, got %d", rr.Code)
	}

	rr = getLatest(t, h, "?source=fleet&weights=cleaning=50")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if res := decodeRank(t, rr); res.Weights["cleaning"] != 50 || res.Weights["readiness"] != 40 {
		t.Errorf("expected cleaning override on defaults, got %v", res.Weights)
	}
}

func TestLatest_Errors(t *testing.T) {
	noID := ingest.NewInMemoryStore()
	storeBatch(t, noID, "bad.csv", "name,open_jobs\nKM-001,0\n")

	tests := []struct {
		name       string
		store      ingest.Store
		query      string
		wantStatus int
		wantCode   string
	}{
		{name: "no store", query: "?source=fleet", wantStatus: http.StatusServiceUnavailable, wantCode: ErrCodeStorageUnavailable},
		{name: "missing source", store: ingest.NewInMemoryStore(), wantStatus: http.StatusBadRequest, wantCode: ErrCodeInvalidSource},
		{name: "nothing stored", store: ingest.NewInMemoryStore(), query: "?source=fleet", wantStatus: http.StatusNotFound, wantCode: ErrCodeNotFound},
		{name: "no id column", store: noID, query: "?source=fleet", wantStatus: http.StatusBadRequest, wantCode: ErrCodeValidation},
		{name: "backend down", store: unavailableStore{}, query: "?source=fleet", wantStatus: http.StatusInternalServerError, wantCode: ErrCodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := getLatest(t, NewRankHandlers(RankHandlersConfig{Store: tt.store}), tt.query)
			if rr.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d: %s", tt.wantStatus, rr.Code, rr.Body.String())
			}
			if got := decodeError(t, rr).Code; got != tt.wantCode {
				t.Errorf("expected code %q, got %q", tt.wantCode, got)
			}
		})
	}
}

func TestRules(t *testing.T) {
	weights := ranking.DefaultWeights()
	weights["stabling"] = 30
	h := NewRankHandlers(RankHandlersConfig{Weights: weights})

	rr := httptest.NewRecorder()
	h.Rules(rr, httptest.NewRequest(http.MethodGet, "/api/rules", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var res struct {
		Rules   []ranking.Rule `json:"rules"`
		Weights map[string]int `json:"weights"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&res); err != nil {
		t.Fatalf("failed to decode rules: %v", err)
	}
	if len(res.Rules) != len(ranking.Rules()) || !res.Rules[0].HardBlock {
		t.Errorf("unexpected rules %+v", res.Rules)
	}
	if res.Weights["stabling"] != 30 {
		t.Errorf("expected calibrated weights, got %v", res.Weights)
	}
}

func TestNewRankHandlers_CopiesWeights(t *testing.T) {
	weights := ranking.DefaultWeights()
	h := NewRankHandlers(RankHandlersConfig{Weights: weights})
	weights["readiness"] = 0

	if h.weights["readiness"] != 40 {
		t.Error("handler weights changed after caller mutated its map")
	}
}
