package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metric names as constants for consistency.
const (
	MetricSamplesIngested  = "dispatch_samples_ingested_total"
	MetricIngestFailures   = "dispatch_ingest_failures_total"
	MetricFindings         = "dispatch_findings_total"
	MetricAlertsCreated    = "dispatch_alerts_created_total"
	MetricDeliveryFailures = "dispatch_delivery_failures_total"
	MetricIngestDuration   = "dispatch_ingest_duration_seconds"
)

// Metrics contains Prometheus metrics for the ingestion pipeline.
// All operations are thread-safe.
type Metrics struct {
	samplesIngested  prometheus.Counter
	ingestFailures   prometheus.Counter
	findings         *prometheus.CounterVec
	alertsCreated    *prometheus.CounterVec
	deliveryFailures prometheus.Counter
	ingestDuration   prometheus.Histogram
}

// NewMetrics creates a new Metrics instance with all collectors initialized.
// The metrics are not registered; call Register to register them with a registry.
func NewMetrics() *Metrics {
	return &Metrics{
		samplesIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricSamplesIngested,
			Help: "Total number of location samples ingested",
		}),
		ingestFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricIngestFailures,
			Help: "Total number of ingestion cycles aborted before persistence",
		}),
		findings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricFindings,
			Help: "Total number of risk findings, by detector kind",
		}, []string{"kind"}),
		alertsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricAlertsCreated,
			Help: "Total number of alerts created, by alert type",
		}, []string{"alert_type"}),
		deliveryFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricDeliveryFailures,
			Help: "Total number of failed channel deliveries",
		}),
		ingestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    MetricIngestDuration,
			Help:    "Histogram of full ingest cycle duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}),
	}
}

// Register registers all metrics with the given registry.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.samplesIngested,
		m.ingestFailures,
		m.findings,
		m.alertsCreated,
		m.deliveryFailures,
		m.ingestDuration,
	}

	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// IncSamplesIngested increments the ingested sample counter.
func (m *Metrics) IncSamplesIngested() {
	m.samplesIngested.Inc()
}

// IncIngestFailures increments the aborted cycle counter.
func (m *Metrics) IncIngestFailures() {
	m.ingestFailures.Inc()
}

// IncFindings increments the finding counter for a detector kind.
func (m *Metrics) IncFindings(kind string) {
	m.findings.WithLabelValues(kind).Inc()
}

// IncAlertsCreated increments the alert counter for an alert type.
func (m *Metrics) IncAlertsCreated(alertType string) {
	m.alertsCreated.WithLabelValues(alertType).Inc()
}

// IncDeliveryFailures increments the failed delivery counter.
func (m *Metrics) IncDeliveryFailures() {
	m.deliveryFailures.Inc()
}

// ObserveIngestDuration records one cycle's duration.
func (m *Metrics) ObserveIngestDuration(seconds float64) {
	m.ingestDuration.Observe(seconds)
}

// Collectors returns all Prometheus collectors for testing.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.samplesIngested,
		m.ingestFailures,
		m.findings,
		m.alertsCreated,
		m.deliveryFailures,
		m.ingestDuration,
	}
}
