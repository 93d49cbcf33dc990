package metrics

import (
	"context"
	"time"

	"github.com/edgegate-io/edgegate/internal/origin"
)

// HealthSource exposes the health view the exporter samples from.
type HealthSource interface {
	IsHealthy(o *origin.Origin) bool
	Score(o *origin.Origin) float64
}

// BudgetSource exposes the failover budget level.
type BudgetSource interface {
	Available() int64
}

// Exporter periodically updates gauge metrics from system state
type Exporter struct {
	collector *Collector
	registry  *origin.Registry
	health    HealthSource
	budget    BudgetSource
}

// NewExporter creates a new metrics exporter
func NewExporter(collector *Collector, registry *origin.Registry, health HealthSource, budget BudgetSource) *Exporter {
	return &Exporter{
		collector: collector,
		registry:  registry,
		health:    health,
		budget:    budget,
	}
}

// Start begins the metrics export loop
func (e *Exporter) Start(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.export()
		}
	}
}

// export updates all gauge metrics
func (e *Exporter) export() {
	for _, o := range e.registry.Origins() {
		host := o.Host()

		e.collector.ActiveConnections.WithLabelValues(host).Set(float64(o.ActiveConns()))

		if e.health != nil {
			healthy := 0.0
			if e.health.IsHealthy(o) {
				healthy = 1.0
			}
			e.collector.OriginHealthy.WithLabelValues(host).Set(healthy)
			e.collector.HealthScore.WithLabelValues(host).Set(e.health.Score(o))
		}
	}

	if e.budget != nil {
		e.collector.FailoverBudgetTokens.Set(float64(e.budget.Available()))
	}
}
