package balancer

import (
	"math/rand"
	"sync"

	"github.com/edgegate-io/edgegate/internal/edge"
	"github.com/edgegate-io/edgegate/internal/origin"
)

// HealthView is the engine's read-only window into origin health.
type HealthView interface {
	IsHealthy(o *origin.Origin) bool
	Score(o *origin.Origin) float64
}

// Strategy picks one origin from the healthy candidate set. The engine has
// already handled the empty and single-candidate cases.
type Strategy interface {
	// Select chooses an origin from candidates (always len >= 2).
	// Returns nil if the strategy cannot decide; the engine then falls
	// back to the first candidate.
	Select(candidates []*origin.Origin, rc *edge.Context) *origin.Origin

	// Name returns the strategy name used in configuration and metrics.
	Name() string
}

// lockedRand is a seeded random source safe for concurrent selection calls.
// Injecting the seed keeps randomized strategies reproducible under test.
type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

func newLockedRand(seed int64) *lockedRand {
	return &lockedRand{r: rand.New(rand.NewSource(seed))}
}

func (lr *lockedRand) Int63n(n int64) int64 {
	lr.mu.Lock()
	defer lr.mu.Unlock()
	return lr.r.Int63n(n)
}

func (lr *lockedRand) Intn(n int) int {
	lr.mu.Lock()
	defer lr.mu.Unlock()
	return lr.r.Intn(n)
}
