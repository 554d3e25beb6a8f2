package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsConfig controls the Prometheus metrics surface.
type MetricsConfig struct {
	Enabled       bool   `yaml:"enabled"`
	ListenAddress string `yaml:"listen_address" validate:"required_if=Enabled true,omitempty,hostname_port"`
}

// Metrics collects supervisory loop metrics on a private registry.
// A nil or disabled Metrics is safe to call; every method no-ops.
type Metrics struct {
	cyclesTotal      *prometheus.CounterVec
	cycleDuration    prometheus.Histogram
	cycleOverruns    prometheus.Counter
	emergencyStops   prometheus.Counter
	perceptionErrors prometheus.Counter
	healthLevel      prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics creates the metrics collector. When cfg.Enabled is false the
// returned instance records nothing.
func NewMetrics(cfg MetricsConfig) *Metrics {
	if !cfg.Enabled {
		return &Metrics{}
	}

	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		cyclesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "autoflux",
				Name:      "cycles_total",
				Help:      "Total number of supervision cycles by outcome",
			},
			[]string{"outcome"},
		),
		cycleDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "autoflux",
				Name:      "cycle_duration_seconds",
				Help:      "Wall time per supervision cycle",
				Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
			},
		),
		cycleOverruns: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "autoflux",
				Name:      "cycle_overruns_total",
				Help:      "Cycles whose wall time exceeded the update period",
			},
		),
		emergencyStops: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "autoflux",
				Name:      "emergency_stops_total",
				Help:      "Emergency stop escalations triggered by diagnostics",
			},
		),
		perceptionErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "autoflux",
				Name:      "perception_errors_total",
				Help:      "Perception calls that failed or timed out",
			},
		),
		healthLevel: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "autoflux",
				Name:      "health_level",
				Help:      "Aggregate health (0=healthy 1=warning 2=error 3=critical)",
			},
		),
	}

	registry.MustRegister(
		m.cyclesTotal,
		m.cycleDuration,
		m.cycleOverruns,
		m.emergencyStops,
		m.perceptionErrors,
		m.healthLevel,
	)
	return m
}

// RecordCycle records one completed cycle with its outcome label.
func (m *Metrics) RecordCycle(outcome string, elapsed time.Duration) {
	if m == nil || m.cyclesTotal == nil {
		return
	}
	m.cyclesTotal.WithLabelValues(outcome).Inc()
	m.cycleDuration.Observe(elapsed.Seconds())
}

// RecordOverrun records a cycle that exceeded the update period.
func (m *Metrics) RecordOverrun() {
	if m == nil || m.cycleOverruns == nil {
		return
	}
	m.cycleOverruns.Inc()
}

// RecordEmergencyStop records an emergency escalation.
func (m *Metrics) RecordEmergencyStop() {
	if m == nil || m.emergencyStops == nil {
		return
	}
	m.emergencyStops.Inc()
}

// RecordPerceptionError records a failed or timed-out perception call.
func (m *Metrics) RecordPerceptionError() {
	if m == nil || m.perceptionErrors == nil {
		return
	}
	m.perceptionErrors.Inc()
}

// SetHealthLevel publishes the aggregate health severity.
func (m *Metrics) SetHealthLevel(level float64) {
	if m == nil || m.healthLevel == nil {
		return
	}
	m.healthLevel.Set(level)
}

// Handler returns the /metrics HTTP handler, or a 404 handler when disabled.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve starts the metrics listener in the background. It returns the server
// so the caller can shut it down.
func (m *Metrics) Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		_ = srv.ListenAndServe()
	}()
	return srv
}
