package ranking

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestNewMetrics(t *testing.T) {
	m := NewMetrics()
	if m == nil {
		t.Fatal("NewMetrics() returned nil")
	}
	if len(m.Collectors()) != 4 {
		t.Errorf("expected 4 collectors, got %d", len(m.Collectors()))
	}
}

func TestMetrics_Register(t *testing.T) {
	t.Run("successful registration", func(t *testing.T) {
		m := NewMetrics()
		reg := prometheus.NewRegistry()

		if err := m.Register(reg); err != nil {
			t.Fatalf("Register() returned error: %v", err)
		}

		// Vectors only appear once a label set has been observed.
		m.ObserveRun(nil, nil, 0.001)

		families, err := reg.Gather()
		if err != nil {
			t.Fatalf("Gather() returned error: %v", err)
		}

		expectedNames := map[string]bool{
			MetricRankRunsTotal:     false,
			MetricRankDuration:      false,
			MetricRankLastRakeCount: false,
			MetricRankLastBlocked:   false,
		}
		for _, family := range families {
			if _, ok := expectedNames[family.GetName()]; ok {
				expectedNames[family.GetName()] = true
			}
		}
		for name, found := range expectedNames {
			if !found {
				t.Errorf("metric %s not found in gathered metrics", name)
			}
		}
	})

	t.Run("duplicate registration fails", func(t *testing.T) {
		reg := prometheus.NewRegistry()
		if err := NewMetrics().Register(reg); err != nil {
			t.Fatalf("first Register() returned error: %v", err)
		}
		if err := NewMetrics().Register(reg); err == nil {
			t.Error("second Register() should have returned an error")
		}
	})
}

func getCounterValue(c prometheus.Counter) float64 {
	var m dto.Metric
	if err := c.(prometheus.Metric).Write(&m); err != nil {
		return -1
	}
	return m.GetCounter().GetValue()
}

func getGaugeValue(g prometheus.Gauge) float64 {
	var m dto.Metric
	if err := g.(prometheus.Metric).Write(&m); err != nil {
		return -1
	}
	return m.GetGauge().GetValue()
}

func TestMetrics_ObserveRun(t *testing.T) {
	m := NewMetrics()

	ranked, err := Rank(sampleFleet(), DefaultWeights())
	m.ObserveRun(ranked, err, 0.0002)

	_, err = Rank(sampleFleet(), Weights{})
	m.ObserveRun(nil, err, 0)

	if v := getCounterValue(m.runsTotal.WithLabelValues(outcomeSuccess)); v != 1 {
		t.Errorf("expected 1 successful run, got %v", v)
	}
	if v := getCounterValue(m.runsTotal.WithLabelValues(outcomeInvalidWeights)); v != 1 {
		t.Errorf("expected 1 rejected run, got %v", v)
	}
	if v := getGaugeValue(m.lastRakeCount); v != 5 {
		t.Errorf("expected last rake count 5, got %v", v)
	}
	if v := getGaugeValue(m.lastBlocked); v != 3 {
		t.Errorf("expected last blocked count 3, got %v", v)
	}
}
