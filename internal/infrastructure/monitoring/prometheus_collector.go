package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type PrometheusCollector struct {
	connectionsActive prometheus.Gauge
	roomsActive       prometheus.Gauge
	connectionsTotal  prometheus.Counter

	eventsHandledTotal *prometheus.CounterVec
	errorsTotal        *prometheus.CounterVec

	connectionDuration prometheus.Histogram
}

func NewPrometheusCollector() *PrometheusCollector {
	return &PrometheusCollector{
		connectionsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "pairlink_connections_active",
			Help: "Number of live WebSocket connections",
		}),

		roomsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "pairlink_rooms_active",
			Help: "Number of active rooms",
		}),

		connectionsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "pairlink_connections_total",
			Help: "Total number of WebSocket connections accepted",
		}),

		eventsHandledTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pairlink_events_handled_total",
			Help: "Signaling events handled, by event type",
		}, []string{"event_type"}),

		errorsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pairlink_errors_total",
			Help: "Errors returned to clients, by error code",
		}, []string{"code"}),

		connectionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "pairlink_connection_duration_seconds",
			Help:    "Lifetime of WebSocket connections",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}),
	}
}

func (c *PrometheusCollector) ConnectionOpened() {
	c.connectionsTotal.Inc()
	c.connectionsActive.Inc()
}

func (c *PrometheusCollector) ConnectionClosed(duration time.Duration) {
	c.connectionsActive.Dec()
	c.connectionDuration.Observe(duration.Seconds())
}

func (c *PrometheusCollector) EventHandled(eventType string) {
	c.eventsHandledTotal.WithLabelValues(eventType).Inc()
}

func (c *PrometheusCollector) ErrorReturned(code string) {
	c.errorsTotal.WithLabelValues(code).Inc()
}

func (c *PrometheusCollector) SetRoomsActive(count int) {
	c.roomsActive.Set(float64(count))
}
