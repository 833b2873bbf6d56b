// Package metrics exposes Prometheus instrumentation for the trading
// core: tick throughput, session trades, and signal latency. The registry
// is served on the API mux at /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all instruments. A nil *Metrics disables collection at
// every call site.
type Metrics struct {
	registry *prometheus.Registry

	TicksTotal     prometheus.Counter
	TradesTotal    *prometheus.CounterVec
	SessionsActive prometheus.Gauge
	SignalLatency  prometheus.Histogram
	EquityGauge    *prometheus.GaugeVec
}

// New creates and registers all instruments on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		TicksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mmsim_ticks_total",
			Help: "Simulator ticks processed across all sessions.",
		}),
		TradesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mmsim_session_trades_total",
			Help: "Session trades executed, by origin (auto or manual).",
		}, []string{"origin"}),
		SessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mmsim_sessions_active",
			Help: "Currently registered sessions.",
		}),
		SignalLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "mmsim_signal_latency_seconds",
			Help:    "Strategy signal generation latency.",
			Buckets: prometheus.ExponentialBuckets(1e-7, 4, 10),
		}),
		EquityGauge: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "mmsim_session_equity",
			Help: "Latest equity per session.",
		}, []string{"session"}),
	}

	reg.MustRegister(m.TicksTotal, m.TradesTotal, m.SessionsActive, m.SignalLatency, m.EquityGauge)
	return m
}

// Handler returns the HTTP handler serving the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
