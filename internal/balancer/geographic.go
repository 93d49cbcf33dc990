package balancer

import (
	"github.com/edgegate-io/edgegate/internal/edge"
	"github.com/edgegate-io/edgegate/internal/origin"
)

// GeographicStrategy routes by the requesting edge location: an explicit
// colo mapping first, then a coarse continent heuristic derived from the
// client country, then the first healthy origin.
type GeographicStrategy struct {
	engine *Engine
}

// NewGeographicStrategy creates a new geographic strategy bound to the
// engine's mapping tables.
func NewGeographicStrategy(engine *Engine) *GeographicStrategy {
	return &GeographicStrategy{engine: engine}
}

// Select resolves the request's colo, then continent, to a healthy origin.
// Mappings to origins outside the healthy candidate set are skipped.
func (gs *GeographicStrategy) Select(candidates []*origin.Origin, rc *edge.Context) *origin.Origin {
	healthy := make(map[*origin.Origin]bool, len(candidates))
	for _, o := range candidates {
		healthy[o] = true
	}

	gs.engine.mu.RLock()
	coloOrigin := gs.engine.coloMap[rc.Colo]
	continentOrigin := gs.engine.continentMap[edge.ContinentFor(rc.Country)]
	gs.engine.mu.RUnlock()

	if coloOrigin != nil && healthy[coloOrigin] {
		return coloOrigin
	}
	if continentOrigin != nil && healthy[continentOrigin] {
		return continentOrigin
	}
	return candidates[0]
}

// Name returns the strategy name
func (gs *GeographicStrategy) Name() string {
	return "geographic"
}
