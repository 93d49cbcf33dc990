package balancer

import (
	"fmt"
	"sync"
	"time"

	"github.com/edgegate-io/edgegate/internal/edge"
	"github.com/edgegate-io/edgegate/internal/logging"
	"github.com/edgegate-io/edgegate/internal/metrics"
	"github.com/edgegate-io/edgegate/internal/origin"
)

// Options configures a new Engine.
type Options struct {
	Algorithm string // initial strategy name
	FailOpen  bool   // route to the first configured origin when none are healthy
	MaxHops   int    // failover hop limit per request
	Seed      int64  // seed for randomized strategies; 0 means time-based
}

// Engine selects a healthy origin for each request and drives failover when
// a chosen origin fails.
type Engine struct {
	registry  *origin.Registry
	health    HealthView
	logger    *logging.Logger
	collector *metrics.Collector
	failOpen  bool
	maxHops   int
	rng       *lockedRand

	mu           sync.RWMutex // guards strategy and the geographic tables
	strategy     Strategy
	strategies   map[string]Strategy
	coloMap      map[string]*origin.Origin
	continentMap map[string]*origin.Origin
}

// NewEngine creates an engine with the full strategy set registered.
func NewEngine(registry *origin.Registry, health HealthView, opts Options,
	collector *metrics.Collector, logger *logging.Logger) (*Engine, error) {
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	maxHops := opts.MaxHops
	if maxHops <= 0 {
		maxHops = 3
	}

	e := &Engine{
		registry:     registry,
		health:       health,
		logger:       logger,
		collector:    collector,
		failOpen:     opts.FailOpen,
		maxHops:      maxHops,
		rng:          newLockedRand(seed),
		coloMap:      make(map[string]*origin.Origin),
		continentMap: make(map[string]*origin.Origin),
	}

	e.strategies = make(map[string]Strategy)
	for _, s := range []Strategy{
		NewRoundRobinStrategy(),
		NewLeastConnectionsStrategy(),
		NewWeightedRoundRobinStrategy(e.rng),
		NewLatencyStrategy(nil),
		NewGeographicStrategy(e),
		NewHealthScoreStrategy(health, e.rng),
	} {
		e.strategies[s.Name()] = s
	}

	strategy, ok := e.strategies[opts.Algorithm]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, opts.Algorithm)
	}
	e.strategy = strategy

	return e, nil
}

// HealthyOrigins returns the subset of configured origins currently
// considered healthy, in configuration order.
func (e *Engine) HealthyOrigins() []*origin.Origin {
	var healthy []*origin.Origin
	for _, o := range e.registry.Origins() {
		if e.health.IsHealthy(o) {
			healthy = append(healthy, o)
		}
	}
	return healthy
}

// SelectOrigin picks a target for the request and acquires a connection on
// it. Callers must call ReleaseConn once the request completes.
//
// With no healthy origins the engine enters degraded mode: fail-open returns
// the first configured origin, fail-closed returns ErrNoHealthyOrigins.
func (e *Engine) SelectOrigin(rc *edge.Context) (*origin.Origin, error) {
	healthy := e.HealthyOrigins()
	if len(healthy) == 0 {
		return e.degraded(nil)
	}

	sel := healthy[0]
	if len(healthy) > 1 {
		e.mu.RLock()
		strategy := e.strategy
		e.mu.RUnlock()

		if picked := strategy.Select(healthy, rc); picked != nil {
			sel = picked
		}
	}

	sel.AcquireConn()
	if e.collector != nil {
		e.collector.SelectionsTotal.WithLabelValues(e.Algorithm()).Inc()
	}
	return sel, nil
}

// GetFailoverOrigin picks an alternative after failed was tried and failed.
// The context is tagged as a failover attempt and its hop count enforced:
// past the hop limit the request gives up with ErrFailoverExhausted.
func (e *Engine) GetFailoverOrigin(failed *origin.Origin, rc *edge.Context) (*origin.Origin, error) {
	if rc.Hops >= e.maxHops {
		e.logger.Warn("failover_exhausted",
			"failed_origin", failed.Host(),
			"hops", rc.Hops)
		return nil, ErrFailoverExhausted
	}
	rc.Failover = true
	rc.Hops++

	if e.collector != nil {
		e.collector.FailoversTotal.WithLabelValues("origin_failure").Inc()
	}

	var healthy []*origin.Origin
	for _, o := range e.HealthyOrigins() {
		if o != failed {
			healthy = append(healthy, o)
		}
	}

	if len(healthy) == 0 {
		// Last resort: the first configured origin that is not the one
		// that just failed.
		return e.degraded(failed)
	}

	sel := healthy[0]
	if len(healthy) > 1 {
		e.mu.RLock()
		strategy := e.strategy
		e.mu.RUnlock()

		if picked := strategy.Select(healthy, rc); picked != nil {
			sel = picked
		}
	}

	sel.AcquireConn()
	return sel, nil
}

// degraded resolves the no-healthy-origins case. This is a named policy, not
// an incidental default: fail-open keeps routing best-effort, fail-closed
// refuses. Either way the event is surfaced to monitoring.
func (e *Engine) degraded(exclude *origin.Origin) (*origin.Origin, error) {
	if e.collector != nil {
		e.collector.DegradedModeTotal.Inc()
	}
	e.logger.Warn("degraded_mode_entered",
		"fail_open", e.failOpen,
		"algorithm", e.Algorithm())

	if !e.failOpen {
		return nil, ErrNoHealthyOrigins
	}

	for _, o := range e.registry.Origins() {
		if o != exclude {
			o.AcquireConn()
			return o, nil
		}
	}
	return nil, ErrNoHealthyOrigins
}

// ReleaseConn releases the connection acquired by SelectOrigin or
// GetFailoverOrigin.
func (e *Engine) ReleaseConn(o *origin.Origin) {
	o.ReleaseConn()
}

// RecordLatency folds an observed request latency into the origin's
// trailing window.
func (e *Engine) RecordLatency(o *origin.Origin, ms float64) {
	o.RecordLatency(ms)
}

// Algorithm returns the name of the active strategy.
func (e *Engine) Algorithm() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.strategy.Name()
}

// SetAlgorithm switches the active strategy at runtime. Unknown names fail
// with ErrUnknownAlgorithm and leave the previous algorithm in effect.
func (e *Engine) SetAlgorithm(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	strategy, ok := e.strategies[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownAlgorithm, name)
	}
	e.strategy = strategy
	e.logger.Info("algorithm_changed", "algorithm", name)
	return nil
}

// SetWeight updates an origin's weight. The origin must be a member of the
// configured set and the weight strictly positive.
func (e *Engine) SetWeight(originURL string, weight int) error {
	if weight <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidWeight, weight)
	}
	o, ok := e.registry.Lookup(originURL)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownOrigin, originURL)
	}
	o.SetWeight(weight)
	return nil
}

// AddGeographicMapping maps an edge location id to an origin.
func (e *Engine) AddGeographicMapping(colo, originURL string) error {
	o, ok := e.registry.Lookup(originURL)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownOrigin, originURL)
	}

	e.mu.Lock()
	e.coloMap[colo] = o
	e.mu.Unlock()
	return nil
}

// AddContinentMapping maps a continent code to an origin for the geographic
// strategy's coarse fallback.
func (e *Engine) AddContinentMapping(continent, originURL string) error {
	o, ok := e.registry.Lookup(originURL)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownOrigin, originURL)
	}

	e.mu.Lock()
	e.continentMap[continent] = o
	e.mu.Unlock()
	return nil
}
