package balancer

import (
	"time"
)

// OriginStats is a read-only snapshot of one origin's balancing state.
type OriginStats struct {
	URL          string  `json:"url"`
	Weight       int     `json:"weight"`
	ActiveConns  int64   `json:"active_connections"`
	AvgLatencyMS float64 `json:"avg_latency_ms"`
	Healthy      bool    `json:"healthy"`
	HealthScore  float64 `json:"health_score"`
}

// Stats is a read-only snapshot of the engine for monitoring collaborators.
type Stats struct {
	Algorithm         string            `json:"algorithm"`
	FailOpen          bool              `json:"fail_open"`
	MaxHops           int               `json:"max_hops"`
	Origins           []OriginStats     `json:"origins"`
	ColoMappings      map[string]string `json:"colo_mappings"`
	ContinentMappings map[string]string `json:"continent_mappings"`
}

// Stats produces a structured snapshot of the engine state.
func (e *Engine) Stats() Stats {
	now := time.Now()

	stats := Stats{
		Algorithm:         e.Algorithm(),
		FailOpen:          e.failOpen,
		MaxHops:           e.maxHops,
		ColoMappings:      make(map[string]string),
		ContinentMappings: make(map[string]string),
	}

	for _, o := range e.registry.Origins() {
		avg, ok := o.AverageLatency(now)
		if !ok {
			avg = 0
		}
		stats.Origins = append(stats.Origins, OriginStats{
			URL:          o.URL().String(),
			Weight:       o.Weight(),
			ActiveConns:  o.ActiveConns(),
			AvgLatencyMS: avg,
			Healthy:      e.health.IsHealthy(o),
			HealthScore:  e.health.Score(o),
		})
	}

	e.mu.RLock()
	for colo, o := range e.coloMap {
		stats.ColoMappings[colo] = o.URL().String()
	}
	for cont, o := range e.continentMap {
		stats.ContinentMappings[cont] = o.URL().String()
	}
	e.mu.RUnlock()

	return stats
}
