package balancer

import (
	"sync/atomic"

	"github.com/edgegate-io/edgegate/internal/edge"
	"github.com/edgegate-io/edgegate/internal/origin"
)

// RoundRobinStrategy distributes requests evenly across the healthy set.
// The cursor persists across calls and is not request-scoped.
type RoundRobinStrategy struct {
	counter uint64 // atomic monotonically increasing cursor
}

// NewRoundRobinStrategy creates a new round-robin strategy
func NewRoundRobinStrategy() *RoundRobinStrategy {
	return &RoundRobinStrategy{}
}

// Select picks the next origin in round-robin order over the current
// healthy set.
func (rr *RoundRobinStrategy) Select(candidates []*origin.Origin, _ *edge.Context) *origin.Origin {
	count := atomic.AddUint64(&rr.counter, 1)
	return candidates[int((count-1)%uint64(len(candidates)))]
}

// Name returns the strategy name
func (rr *RoundRobinStrategy) Name() string {
	return "round-robin"
}
