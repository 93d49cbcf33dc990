package balancer

import (
	"github.com/edgegate-io/edgegate/internal/edge"
	"github.com/edgegate-io/edgegate/internal/origin"
)

// scoreBand keeps origins within 90% of the best score in the selection pool.
const scoreBand = 0.9

// HealthScoreStrategy picks uniformly at random among origins whose health
// score is within 90% of the best score. The randomized tie-break among
// near-equals keeps traffic from concentrating on a single "best" origin.
type HealthScoreStrategy struct {
	health HealthView
	rng    *lockedRand
}

// NewHealthScoreStrategy creates a new health-score strategy
func NewHealthScoreStrategy(health HealthView, rng *lockedRand) *HealthScoreStrategy {
	return &HealthScoreStrategy{health: health, rng: rng}
}

// Select picks a random origin from the top score band.
func (hs *HealthScoreStrategy) Select(candidates []*origin.Origin, _ *edge.Context) *origin.Origin {
	best := 0.0
	for _, o := range candidates {
		if score := hs.health.Score(o); score > best {
			best = score
		}
	}

	var band []*origin.Origin
	for _, o := range candidates {
		if hs.health.Score(o) >= scoreBand*best {
			band = append(band, o)
		}
	}
	if len(band) == 0 {
		return candidates[0]
	}
	return band[hs.rng.Intn(len(band))]
}

// Name returns the strategy name
func (hs *HealthScoreStrategy) Name() string {
	return "health-score"
}
