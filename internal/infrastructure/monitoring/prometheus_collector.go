package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusCollector implements the orchestrator's metrics surface plus the
// gateway-level connection counters.
type PrometheusCollector struct {
	roomsActive       prometheus.Gauge
	viewersConnected  prometheus.Gauge
	signalConnections prometheus.Gauge

	producersTotal        *prometheus.CounterVec
	consumersTotal        prometheus.Counter
	workersRespawnedTotal prometheus.Counter

	operationDuration *prometheus.HistogramVec
}

func NewPrometheusCollector() *PrometheusCollector {
	return newPrometheusCollector(prometheus.DefaultRegisterer)
}

func newPrometheusCollector(reg prometheus.Registerer) *PrometheusCollector {
	factory := promauto.With(reg)
	return &PrometheusCollector{
		roomsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "streamcast_rooms_active",
			Help: "Number of live rooms",
		}),

		viewersConnected: factory.NewGauge(prometheus.GaugeOpts{
			Name: "streamcast_viewers_connected",
			Help: "Number of viewers currently joined to any room",
		}),

		signalConnections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "streamcast_signal_connections",
			Help: "Number of open signaling channels",
		}),

		producersTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "streamcast_producers_created_total",
			Help: "Total producers created",
		}, []string{"kind"}),

		consumersTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "streamcast_consumers_created_total",
			Help: "Total consumers created",
		}),

		workersRespawnedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "streamcast_workers_respawned_total",
			Help: "Total media worker respawns after unexpected death",
		}),

		operationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "streamcast_operation_duration_seconds",
			Help:    "Latency of orchestrator operations",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		}, []string{"op"}),
	}
}

func (p *PrometheusCollector) RoomOpened() {
	p.roomsActive.Inc()
}

func (p *PrometheusCollector) RoomClosed() {
	p.roomsActive.Dec()
}

func (p *PrometheusCollector) ViewerJoined() {
	p.viewersConnected.Inc()
}

func (p *PrometheusCollector) ViewerLeft() {
	p.viewersConnected.Dec()
}

func (p *PrometheusCollector) ProducerCreated(kind string) {
	p.producersTotal.WithLabelValues(kind).Inc()
}

func (p *PrometheusCollector) ConsumerCreated() {
	p.consumersTotal.Inc()
}

func (p *PrometheusCollector) WorkerRespawned() {
	p.workersRespawnedTotal.Inc()
}

func (p *PrometheusCollector) OperationObserved(op string, d time.Duration) {
	p.operationDuration.WithLabelValues(op).Observe(d.Seconds())
}

func (p *PrometheusCollector) SignalConnected() {
	p.signalConnections.Inc()
}

func (p *PrometheusCollector) SignalDisconnected() {
	p.signalConnections.Dec()
}
