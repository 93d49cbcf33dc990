package balancer

import (
	"github.com/edgegate-io/edgegate/internal/edge"
	"github.com/edgegate-io/edgegate/internal/origin"
)

// WeightedRoundRobinStrategy draws a uniform random value in
// [0, totalWeight) and picks the origin whose cumulative weight interval
// contains it. Over many draws each origin's share approaches
// weight/totalWeight.
type WeightedRoundRobinStrategy struct {
	rng *lockedRand
}

// NewWeightedRoundRobinStrategy creates a new weighted round-robin strategy
func NewWeightedRoundRobinStrategy(rng *lockedRand) *WeightedRoundRobinStrategy {
	return &WeightedRoundRobinStrategy{rng: rng}
}

// Select picks an origin proportionally to its configured weight.
func (w *WeightedRoundRobinStrategy) Select(candidates []*origin.Origin, _ *edge.Context) *origin.Origin {
	var total int64
	for _, o := range candidates {
		total += int64(o.Weight())
	}
	if total <= 0 {
		return candidates[0]
	}

	draw := w.rng.Int63n(total)
	var cumulative int64
	for _, o := range candidates {
		cumulative += int64(o.Weight())
		if draw < cumulative {
			return o
		}
	}
	return candidates[len(candidates)-1]
}

// Name returns the strategy name
func (w *WeightedRoundRobinStrategy) Name() string {
	return "weighted-round-robin"
}
