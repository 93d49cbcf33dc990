package balancer

import (
	"math"

	"github.com/edgegate-io/edgegate/internal/edge"
	"github.com/edgegate-io/edgegate/internal/origin"
)

// LeastConnectionsStrategy selects the origin with the fewest live
// connections. The engine increments the winner's count on selection; the
// caller must release the connection when the request finishes.
type LeastConnectionsStrategy struct{}

// NewLeastConnectionsStrategy creates a new least-connections strategy
func NewLeastConnectionsStrategy() *LeastConnectionsStrategy {
	return &LeastConnectionsStrategy{}
}

// Select picks the origin with minimum live connections.
func (lc *LeastConnectionsStrategy) Select(candidates []*origin.Origin, _ *edge.Context) *origin.Origin {
	var selected *origin.Origin
	minConns := int64(math.MaxInt64)

	for _, o := range candidates {
		conns := o.ActiveConns()
		if conns < minConns {
			minConns = conns
			selected = o
		}
	}
	return selected
}

// Name returns the strategy name
func (lc *LeastConnectionsStrategy) Name() string {
	return "least-connections"
}
