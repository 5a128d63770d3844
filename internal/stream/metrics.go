package stream

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metric names as constants for consistency.
const (
	MetricEventsPublished   = "stream_events_published_total"
	MetricDeliveryFailures  = "stream_delivery_failures_total"
	MetricActiveConnections = "stream_active_connections"
)

// Metrics contains Prometheus metrics for event delivery.
// All operations are thread-safe.
type Metrics struct {
	eventsPublished   *prometheus.CounterVec
	deliveryFailures  prometheus.Counter
	activeConnections prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all collectors initialized.
// The metrics are not registered; call Register to register them with a registry.
func NewMetrics() *Metrics {
	return &Metrics{
		eventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricEventsPublished,
			Help: "Total number of events published, by event type",
		}, []string{"event_type"}),
		deliveryFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricDeliveryFailures,
			Help: "Total number of failed channel deliveries",
		}),
		activeConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: MetricActiveConnections,
			Help: "Number of currently connected WebSocket clients",
		}),
	}
}

// Register registers all metrics with the given registry.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.eventsPublished,
		m.deliveryFailures,
		m.activeConnections,
	}

	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// IncEventsPublished increments the published counter for an event type.
func (m *Metrics) IncEventsPublished(eventType string) {
	m.eventsPublished.WithLabelValues(eventType).Inc()
}

// IncDeliveryFailures increments the delivery failure counter.
func (m *Metrics) IncDeliveryFailures() {
	m.deliveryFailures.Inc()
}

// IncActiveConnections increments the connection gauge.
func (m *Metrics) IncActiveConnections() {
	m.activeConnections.Inc()
}

// DecActiveConnections decrements the connection gauge.
func (m *Metrics) DecActiveConnections() {
	m.activeConnections.Dec()
}

// Collectors returns all Prometheus collectors for testing.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.eventsPublished,
		m.deliveryFailures,
		m.activeConnections,
	}
}
