package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds all Prometheus metrics
type Collector struct {
	// Request metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Origin metrics
	ActiveConnections *prometheus.GaugeVec
	OriginHealthy     *prometheus.GaugeVec
	HealthScore       *prometheus.GaugeVec
	CircuitState      *prometheus.GaugeVec

	// Health probe metrics
	ProbesTotal   *prometheus.CounterVec
	ProbeDuration *prometheus.HistogramVec

	// Selection and failover metrics
	SelectionsTotal      *prometheus.CounterVec
	FailoversTotal       *prometheus.CounterVec
	DegradedModeTotal    prometheus.Counter
	FailoverBudgetTokens prometheus.Gauge

	// Cache metrics
	CacheLookupsTotal *prometheus.CounterVec
	CacheStoresTotal  *prometheus.CounterVec
}

// NewCollector creates and registers all metrics
func NewCollector() *Collector {
	return &Collector{
		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "edgegate_requests_total",
				Help: "Total number of forwarded requests",
			},
			[]string{"origin", "method", "status"},
		),

		RequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "edgegate_request_duration_seconds",
				Help:    "Forwarded request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"origin", "method"},
		),

		ActiveConnections: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "edgegate_active_connections",
				Help: "Live connections per origin",
			},
			[]string{"origin"},
		),

		OriginHealthy: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "edgegate_origin_healthy",
				Help: "Origin health flag (1=healthy, 0=unhealthy)",
			},
			[]string{"origin"},
		),

		HealthScore: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "edgegate_origin_health_score",
				Help: "Composite origin health score (0-100)",
			},
			[]string{"origin"},
		),

		CircuitState: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "edgegate_circuit_breaker_state",
				Help: "Circuit breaker state (0=CLOSED, 1=OPEN, 2=HALF_OPEN)",
			},
			[]string{"origin"},
		),

		ProbesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "edgegate_health_probes_total",
				Help: "Total number of health probes",
			},
			[]string{"origin", "result"},
		),

		ProbeDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "edgegate_health_probe_duration_seconds",
				Help:    "Health probe duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"origin"},
		),

		SelectionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "edgegate_selections_total",
				Help: "Origin selections by algorithm",
			},
			[]string{"algorithm"},
		),

		FailoversTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "edgegate_failovers_total",
				Help: "Failover attempts by reason",
			},
			[]string{"reason"},
		),

		DegradedModeTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "edgegate_degraded_mode_total",
				Help: "Times the fail-open degraded mode was entered",
			},
		),

		FailoverBudgetTokens: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "edgegate_failover_budget_tokens",
				Help: "Available failover budget tokens",
			},
		),

		CacheLookupsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "edgegate_cache_lookups_total",
				Help: "Cache lookups by result (hit, stale, miss, expired, error)",
			},
			[]string{"result"},
		),

		CacheStoresTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "edgegate_cache_stores_total",
				Help: "Cache store attempts by result (stored, rejected, error)",
			},
			[]string{"result"},
		),
	}
}
