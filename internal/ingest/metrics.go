package ingest

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics names as constants for consistency.
const (
	MetricIngestBatchesTotal  = "induction_ingest_batches_total"
	MetricIngestRowsReceived  = "induction_ingest_rows_received_total"
	MetricIngestRowsTruncated = "induction_ingest_rows_truncated_total"
	MetricIngestStoreDuration = "induction_ingest_store_duration_seconds"
)

// Batch outcomes.
const (
	OutcomeStored  = "stored"
	OutcomePending = "pending"
	OutcomeLocal   = "local"
)

// Metrics contains Prometheus metrics for the ingestion gateway.
// All operations are thread-safe.
type Metrics struct {
	batchesTotal  *prometheus.CounterVec
	rowsReceived  prometheus.Counter
	rowsTruncated prometheus.Counter
	storeDuration prometheus.Histogram
}

// NewMetrics creates and returns a new Metrics instance with all collectors initialized.
// The metrics are not registered; call Register to register them with a registry.
func NewMetrics() *Metrics {
	return &Metrics{
		batchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricIngestBatchesTotal,
			Help: "Total number of ingested batches by source and outcome",
		}, []string{"source", "outcome"}),
		rowsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricIngestRowsReceived,
			Help: "Total number of data rows received before truncation",
		}),
		rowsTruncated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricIngestRowsTruncated,
			Help: "Total number of data rows dropped by the row limit",
		}),
		storeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    MetricIngestStoreDuration,
			Help:    "Histogram of batch store duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
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

// IncBatch counts one ingested batch.
func (m *Metrics) IncBatch(source, outcome string) {
	m.batchesTotal.WithLabelValues(source, outcome).Inc()
}

// AddRows records received and truncated row counts.
func (m *Metrics) AddRows(received, truncated int) {
	m.rowsReceived.Add(float64(received))
	m.rowsTruncated.Add(float64(truncated))
}

// ObserveStoreDuration records a store duration sample.
func (m *Metrics) ObserveStoreDuration(seconds float64) {
	m.storeDuration.Observe(seconds)
}

// Collectors returns all Prometheus collectors for testing.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.batchesTotal,
		m.rowsReceived,
		m.rowsTruncated,
		m.storeDuration,
	}
}
