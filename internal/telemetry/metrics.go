// Package telemetry defines the bridge's Prometheus metrics and a small
// subscriber that keeps them in sync with internal/hub's lifecycle events.
package telemetry

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/mcpbridge/bridge/internal/hub"
)

const namespace = "mcpbridge"

// Metrics holds every metric the bridge exports. Construct with New,
// passing a prometheus.Registerer (the tests and the serve command each
// pass a dedicated *prometheus.Registry).
type Metrics struct {
	ClientsConnected  prometheus.Gauge
	ClientConnects    prometheus.Counter
	ClientDisconnects prometheus.Counter
	RequestsTotal     *prometheus.CounterVec
	RequestDuration   *prometheus.HistogramVec
	HandlerExecutions *prometheus.CounterVec
}

// New registers every metric against reg and returns the Metrics handle.
func New(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		ClientsConnected: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "clients_connected",
			Help:      "Number of editor clients currently connected.",
		}),
		ClientConnects: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "client_connects_total",
			Help:      "Total number of editor client connections accepted.",
		}),
		ClientDisconnects: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "client_disconnects_total",
			Help:      "Total number of editor client disconnections observed.",
		}),
		RequestsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Total number of requests routed to editor clients, by outcome.",
		}, []string{"outcome"}),
		RequestDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Latency of requests routed to editor clients.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"command"}),
		HandlerExecutions: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handler_executions_total",
			Help:      "Total number of handler executions, by handler name and outcome.",
		}, []string{"handler", "outcome"}),
	}
}

// ObserveRequest records the outcome and latency of one router.Send call.
func (m *Metrics) ObserveRequest(command, outcome string, seconds float64) {
	m.RequestsTotal.WithLabelValues(outcome).Inc()
	m.RequestDuration.WithLabelValues(command).Observe(seconds)
}

// ObserveHandler records the outcome of one handler execution.
func (m *Metrics) ObserveHandler(name, outcome string) {
	m.HandlerExecutions.WithLabelValues(name, outcome).Inc()
}

// SubscribeHub keeps ClientsConnected/ClientConnects/ClientDisconnects in
// sync with a hub's lifecycle events until ctx is canceled.
func (m *Metrics) SubscribeHub(ctx context.Context, h *hub.Hub) {
	events := h.Subscribe(ctx)
	go func() {
		connected := 0
		for ev := range events {
			switch ev.Kind {
			case hub.EventClientConnected:
				connected++
				m.ClientConnects.Inc()
				m.ClientsConnected.Set(float64(connected))
			case hub.EventClientDisconnected:
				connected--
				if connected < 0 {
					connected = 0
				}
				m.ClientDisconnects.Inc()
				m.ClientsConnected.Set(float64(connected))
			}
		}
	}()
}
