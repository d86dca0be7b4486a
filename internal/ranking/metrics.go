package ranking

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics names as constants for consistency.
const (
	MetricRankRunsTotal     = "induction_rank_runs_total"
	MetricRankDuration      = "induction_rank_duration_seconds"
	MetricRankLastRakeCount = "induction_rank_last_rake_count"
	MetricRankLastBlocked   = "induction_rank_last_blocked_count"
)

const (
	outcomeSuccess        = "success"
	outcomeInvalidWeights = "invalid_weights"
)

// Metrics contains Prometheus metrics for ranking runs.
// All operations are thread-safe.
type Metrics struct {
	runsTotal     *prometheus.CounterVec
	duration      prometheus.Histogram
	lastRakeCount prometheus.Gauge
	lastBlocked   prometheus.Gauge
}

// NewMetrics creates and returns a new Metrics instance with all collectors initialized.
// The metrics are not registered; call Register to register them with a registry.
func NewMetrics() *Metrics {
	return &Metrics{
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricRankRunsTotal,
			Help: "Total number of ranking runs by outcome",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    MetricRankDuration,
			Help:    "Histogram of ranking run duration in seconds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		}),
		lastRakeCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: MetricRankLastRakeCount,
			Help: "Number of rakes ranked in the last successful run",
		}),
		lastBlocked: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: MetricRankLastBlocked,
			Help: "Number of hard-blocked rakes in the last successful run",
		}),
	}
}

// Register registers all metrics with the given registry.
// Returns an error if registration fails.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// ObserveRun records the outcome of one Rank call. A nil result with a
// non-nil error counts as a rejected weight vector.
func (m *Metrics) ObserveRun(ranked []ScoredRake, err error, seconds float64) {
	if err != nil {
		m.runsTotal.WithLabelValues(outcomeInvalidWeights).Inc()
		return
	}
	m.runsTotal.WithLabelValues(outcomeSuccess).Inc()
	m.duration.Observe(seconds)
	m.lastRakeCount.Set(float64(len(ranked)))
	m.lastBlocked.Set(float64(Summarize(ranked).Blocked))
}

// Collectors returns all Prometheus collectors for testing.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.runsTotal,
		m.duration,
		m.lastRakeCount,
		m.lastBlocked,
	}
}
