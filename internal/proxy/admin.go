package proxy

import (
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/edgegate-io/edgegate/internal/balancer"
	"github.com/edgegate-io/edgegate/internal/health"
	"github.com/edgegate-io/edgegate/internal/logging"
)

// Admin serves the operational introspection endpoints.
type Admin struct {
	engine  *balancer.Engine
	prober  *health.Prober
	handler *Handler
	logger  *logging.Logger
}

// NewAdmin creates the admin surface over the running components.
func NewAdmin(engine *balancer.Engine, prober *health.Prober, handler *Handler, logger *logging.Logger) *Admin {
	return &Admin{engine: engine, prober: prober, handler: handler, logger: logger}
}

// healthReport is the /edge-health response body.
type healthReport struct {
	Status          string                 `json:"status"`
	HealthyOrigins  int                    `json:"healthy_origins"`
	TotalOrigins    int                    `json:"total_origins"`
	Origins         []health.OriginSummary `json:"origins"`
	Recommendations []string               `json:"recommendations,omitempty"`
}

// HandleHealth serves /edge-health: per-origin summaries plus operator
// recommendations. Returns 503 when no origin is healthy so external
// monitors can alert on the edge itself.
func (a *Admin) HandleHealth(w http.ResponseWriter, r *http.Request) {
	summaries := a.prober.Summary()
	healthy := 0
	for _, s := range summaries {
		if s.Snapshot != nil && s.Snapshot.Healthy {
			healthy++
		}
	}

	report := healthReport{
		Status:          "ok",
		HealthyOrigins:  healthy,
		TotalOrigins:    len(summaries),
		Origins:         summaries,
		Recommendations: a.prober.Recommendations(),
	}

	code := http.StatusOK
	if healthy == 0 {
		report.Status = "degraded"
		code = http.StatusServiceUnavailable
	}
	a.writeJSON(w, code, report)
}

// statsReport is the /stats response body.
type statsReport struct {
	balancer.Stats
	CircuitStates map[string]string `json:"circuit_states"`
}

// HandleStats serves /stats: the engine snapshot plus circuit breaker states.
func (a *Admin) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats := a.engine.Stats()

	states := make(map[string]string, len(stats.Origins))
	if a.handler != nil {
		for _, o := range stats.Origins {
			host := o.URL
			if u := hostOf(o.URL); u != "" {
				host = u
			}
			states[host] = a.handler.BreakerState(host).String()
		}
	}

	a.writeJSON(w, http.StatusOK, statsReport{Stats: stats, CircuitStates: states})
}

// hostOf extracts the host:port from an origin URL, or "" when unparseable.
func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Host
}

func (a *Admin) writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.logger.Error("admin_encode_failed", "error", err.Error())
	}
}
