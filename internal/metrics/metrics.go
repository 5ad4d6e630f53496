// Package metrics exposes panel and device metrics for Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "netpins_panel"

// Metrics holds the panel collectors on a private registry
type Metrics struct {
	registry *prometheus.Registry

	Commands        *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	RequestErrors   *prometheus.CounterVec
	DeviceOnline    prometheus.Gauge
	WSClients       prometheus.Gauge
	Discovered      prometheus.Gauge
}

// New creates and registers all collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "System commands sent to the device by command and result status.",
		}, []string{"command", "status"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "device_request_duration_seconds",
			Help:      "Duration of HTTP requests to the device.",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"endpoint"}),
		RequestErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "device_request_errors_total",
			Help:      "Failed HTTP requests to the device.",
		}, []string{"endpoint"}),
		DeviceOnline: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "device_online",
			Help:      "1 if the last state refresh reached the device.",
		}),
		WSClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "websocket_clients",
			Help:      "Connected notification websocket clients.",
		}),
		Discovered: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "discovered_devices",
			Help:      "Devices currently known from UDP heartbeats.",
		}),
	}

	m.registry.MustRegister(
		m.Commands,
		m.RequestDuration,
		m.RequestErrors,
		m.DeviceOnline,
		m.WSClients,
		m.Discovered,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveRequest records one device request. Its signature matches
// device.Observer.
func (m *Metrics) ObserveRequest(endpoint string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.RequestDuration.WithLabelValues(endpoint).Observe(d.Seconds())
	if err != nil {
		m.RequestErrors.WithLabelValues(endpoint).Inc()
	}
}

// CountCommand counts a dispatched command
func (m *Metrics) CountCommand(command, status string) {
	if m == nil {
		return
	}
	m.Commands.WithLabelValues(command, status).Inc()
}

// SetOnline sets the device_online gauge
func (m *Metrics) SetOnline(online bool) {
	if m == nil {
		return
	}
	if online {
		m.DeviceOnline.Set(1)
	} else {
		m.DeviceOnline.Set(0)
	}
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
