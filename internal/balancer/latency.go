package balancer

import (
	"time"

	"github.com/edgegate-io/edgegate/internal/edge"
	"github.com/edgegate-io/edgegate/internal/origin"
)

// penaltyLatencyMS is assumed for origins without recent latency samples so
// they are disfavored but never excluded.
const penaltyLatencyMS = 1000.0

// LatencyStrategy picks the origin with the lowest trailing average latency
// over the last 10 minutes of recorded samples.
type LatencyStrategy struct {
	now func() time.Time
}

// NewLatencyStrategy creates a new latency-based strategy
func NewLatencyStrategy(now func() time.Time) *LatencyStrategy {
	if now == nil {
		now = time.Now
	}
	return &LatencyStrategy{now: now}
}

// Select picks the origin with the lowest trailing average latency.
func (ls *LatencyStrategy) Select(candidates []*origin.Origin, _ *edge.Context) *origin.Origin {
	now := ls.now()

	var selected *origin.Origin
	best := 0.0
	for _, o := range candidates {
		avg, ok := o.AverageLatency(now)
		if !ok {
			avg = penaltyLatencyMS
		}
		if selected == nil || avg < best {
			best = avg
			selected = o
		}
	}
	return selected
}

// Name returns the strategy name
func (ls *LatencyStrategy) Name() string {
	return "latency"
}
