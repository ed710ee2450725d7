package metrics

import (
	"net/http"
	"strconv"

	"nest_dashboard/internal/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var modes = []models.AcquisitionMode{models.ModeLoading, models.ModeLive, models.ModeDemo}

// Metrics holds Prometheus counters and gauges for the nest dashboard.
// It doubles as the acquisition recorder.
type Metrics struct {
	registry        *prometheus.Registry
	requestsTotal   *prometheus.CounterVec
	errorsTotal     prometheus.Counter
	mode            *prometheus.GaugeVec
	feedConnected   prometheus.Gauge
	snapshotsTotal  prometheus.Counter
	transportErrors prometheus.Counter
	fallbacksTotal  *prometheus.CounterVec
	wsClients       prometheus.Gauge
}

// New creates and registers Prometheus metrics for the dashboard.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nest_http_requests_total",
			Help: "Total number of HTTP requests by status code",
		}, []string{"code"}),
		errorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nest_http_errors_total",
			Help: "Total number of HTTP responses with error status (4xx or 5xx)",
		}),
		mode: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "nest_acquisition_mode",
			Help: "1 for the current acquisition mode, 0 for the others",
		}, []string{"mode"}),
		feedConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "nest_feed_connected",
			Help: "1 when the feed transport reports connectivity",
		}),
		snapshotsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nest_snapshots_received_total",
			Help: "Total number of non-empty snapshots applied",
		}),
		transportErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nest_feed_errors_total",
			Help: "Total number of transport errors reported by the feed",
		}),
		fallbacksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nest_fallbacks_total",
			Help: "Total number of switches to demo data by reason",
		}, []string{"reason"}),
		wsClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "nest_ws_clients",
			Help: "Number of connected WebSocket clients",
		}),
	}

	registry.MustRegister(
		m.requestsTotal,
		m.errorsTotal,
		m.mode,
		m.feedConnected,
		m.snapshotsTotal,
		m.transportErrors,
		m.fallbacksTotal,
		m.wsClients,
	)
	m.ModeChanged(models.ModeLoading)
	return m
}

// ObserveRequest records one served request.
func (m *Metrics) ObserveRequest(status int) {
	m.requestsTotal.WithLabelValues(strconv.Itoa(status)).Inc()
	if status >= 400 {
		m.errorsTotal.Inc()
	}
}

// ModeChanged sets the mode gauge so that exactly one mode reads 1.
func (m *Metrics) ModeChanged(mode models.AcquisitionMode) {
	for _, md := range modes {
		v := 0.0
		if md == mode {
			v = 1
		}
		m.mode.WithLabelValues(string(md)).Set(v)
	}
}

func (m *Metrics) ConnectivityChanged(connected bool) {
	if connected {
		m.feedConnected.Set(1)
		return
	}
	m.feedConnected.Set(0)
}

func (m *Metrics) SnapshotReceived() {
	m.snapshotsTotal.Inc()
}

func (m *Metrics) TransportError() {
	m.transportErrors.Inc()
}

func (m *Metrics) FallbackActivated(reason string) {
	m.fallbacksTotal.WithLabelValues(reason).Inc()
}

// WSConnected and WSDisconnected track live stream clients.
func (m *Metrics) WSConnected() {
	m.wsClients.Inc()
}

func (m *Metrics) WSDisconnected() {
	m.wsClients.Dec()
}

// Handler returns an http.Handler that serves Prometheus metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
