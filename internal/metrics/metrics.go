package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "campaign_ops"

// Metrics owns a private registry so that tests can build as many as they
// like without clashing on the default one. All methods are nil-safe.
type Metrics struct {
	registry *prometheus.Registry

	generationTotal    *prometheus.CounterVec
	generationDuration *prometheus.HistogramVec
	scoutTotal         *prometheus.CounterVec
	inFlight           *prometheus.GaugeVec
	circuitOpen        prometheus.Gauge
	sessionsActive     prometheus.Gauge
	modeSwitches       *prometheus.CounterVec
	runsCanceled       *prometheus.CounterVec
	cacheLookups       *prometheus.CounterVec
	httpRequests       *prometheus.CounterVec
	httpDuration       *prometheus.HistogramVec
}

func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		generationTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "generation_requests_total",
				Help:      "Generative service calls by operation, provider and outcome.",
			},
			[]string{"operation", "provider", "outcome"},
		),
		generationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "generation_duration_seconds",
				Help:      "Latency of generative service calls.",
				Buckets:   prometheus.ExponentialBuckets(0.25, 2, 9), // 250ms to ~64s
			},
			[]string{"operation"},
		),
		scoutTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "scout_results_total",
				Help:      "Acquisition outcomes (simulated, cached, found, blocked, failed).",
			},
			[]string{"outcome"},
		),
		inFlight: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "operations_in_flight",
				Help:      "Pending operations per kind.",
			},
			[]string{"kind"},
		),
		circuitOpen: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "circuit_open",
				Help:      "1 while the generative service circuit breaker is open.",
			},
		),
		sessionsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "sessions_active",
				Help:      "Authenticated operator sessions.",
			},
		),
		modeSwitches: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "mode_switches_total",
				Help:      "Mode selections by target mode.",
			},
			[]string{"mode"},
		),
		runsCanceled: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_canceled_total",
				Help:      "Pipeline runs cancelled, by reason.",
			},
			[]string{"reason"},
		),
		cacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_lookups_total",
				Help:      "Scout cache lookups by result.",
			},
			[]string{"result"},
		),
		httpRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "API requests by route, method and status.",
			},
			[]string{"route", "method", "status"},
		),
		httpDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "API request latency by route.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"route"},
		),
	}
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObserveGeneration(operation, provider, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	if provider == "" {
		provider = "none"
	}
	m.generationTotal.WithLabelValues(operation, provider, outcome).Inc()
	m.generationDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

func (m *Metrics) ScoutOutcome(outcome string) {
	if m == nil {
		return
	}
	m.scoutTotal.WithLabelValues(outcome).Inc()
}

// AddInFlight moves the pending-operations gauge of kind by delta. Sessions
// each own a registry, so they report deltas rather than absolute counts.
func (m *Metrics) AddInFlight(kind string, delta int) {
	if m == nil || delta == 0 {
		return
	}
	m.inFlight.WithLabelValues(kind).Add(float64(delta))
}

func (m *Metrics) SetCircuitOpen(open bool) {
	if m == nil {
		return
	}
	if open {
		m.circuitOpen.Set(1)
		return
	}
	m.circuitOpen.Set(0)
}

func (m *Metrics) SetSessions(n int) {
	if m == nil {
		return
	}
	m.sessionsActive.Set(float64(n))
}

func (m *Metrics) ModeSwitched(mode string) {
	if m == nil {
		return
	}
	m.modeSwitches.WithLabelValues(mode).Inc()
}

func (m *Metrics) RunsCanceled(reason string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.runsCanceled.WithLabelValues(reason).Add(float64(n))
}

func (m *Metrics) CacheLookup(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.cacheLookups.WithLabelValues("hit").Inc()
		return
	}
	m.cacheLookups.WithLabelValues("miss").Inc()
}

// ObserveHTTP records one API request. route is the matched pattern, not the
// raw path.
func (m *Metrics) ObserveHTTP(route, method string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}
