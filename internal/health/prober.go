package health

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/edgegate-io/edgegate/internal/config"
	"github.com/edgegate-io/edgegate/internal/logging"
	"github.com/edgegate-io/edgegate/internal/metrics"
	"github.com/edgegate-io/edgegate/internal/origin"
)

// Score weights: success rate, response time, recent-error recency.
const (
	successRateWeight  = 0.4
	responseTimeWeight = 0.3
	recentErrorWeight  = 0.3
	recentErrorPenalty = 20.0
)

// originState is the per-origin mutable probe state. Each origin carries its
// own lock so probe rounds and request-path reads never contend globally.
type originState struct {
	mu                sync.Mutex
	snapshot          *Snapshot
	totalChecks       int64
	successfulChecks  int64
	totalResponseTime time.Duration
	errors            []ErrorEvent
}

// Prober scores origin health from periodic probes. Results are cached per
// origin; the request path only ever reads the cache.
type Prober struct {
	registry  *origin.Registry
	client    ProbeClient
	cfg       config.HealthCheckConfig
	logger    *logging.Logger
	collector *metrics.Collector
	now       func() time.Time

	state map[string]*originState // keyed by origin URL, fixed at construction
}

// NewProber creates a prober over the registry's fixed origin set.
func NewProber(registry *origin.Registry, client ProbeClient, cfg config.HealthCheckConfig,
	collector *metrics.Collector, logger *logging.Logger) *Prober {
	state := make(map[string]*originState, registry.Size())
	for _, o := range registry.Origins() {
		state[o.URL().String()] = &originState{}
	}
	return &Prober{
		registry:  registry,
		client:    client,
		cfg:       cfg,
		logger:    logger,
		collector: collector,
		now:       time.Now,
		state:     state,
	}
}

func (p *Prober) interval() time.Duration {
	return time.Duration(p.cfg.Interval) * time.Second
}

func (p *Prober) checkTimeout() time.Duration {
	return time.Duration(p.cfg.Timeout) * time.Second
}

func (p *Prober) responseThreshold() time.Duration {
	return time.Duration(p.cfg.ResponseThresholdMS) * time.Millisecond
}

// Start runs the background probe loop until the context is canceled.
func (p *Prober) Start(ctx context.Context) {
	if !p.cfg.Enabled {
		p.logger.Info("health_probing_disabled")
		return
	}

	ticker := time.NewTicker(p.interval())
	defer ticker.Stop()

	p.logger.Info("health_prober_started",
		"interval_seconds", p.cfg.Interval,
		"timeout_seconds", p.cfg.Timeout)

	// Run initial round immediately
	p.CheckAllOrigins(ctx)

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("health_prober_stopped")
			return
		case <-ticker.C:
			p.CheckAllOrigins(ctx)
		}
	}
}

// CheckAllOrigins probes every origin in parallel and returns the snapshots
// keyed by origin URL.
func (p *Prober) CheckAllOrigins(ctx context.Context) map[string]Snapshot {
	origins := p.registry.Origins()

	var mu sync.Mutex
	out := make(map[string]Snapshot, len(origins))

	var wg sync.WaitGroup
	for _, o := range origins {
		wg.Add(1)
		go func(o *origin.Origin) {
			defer wg.Done()
			snap := p.CheckOrigin(ctx, o)
			mu.Lock()
			out[o.URL().String()] = snap
			mu.Unlock()
		}(o)
	}
	wg.Wait()
	return out
}

// CheckOrigin probes one origin, or returns the cached snapshot when it is
// younger than half the probe interval.
func (p *Prober) CheckOrigin(ctx context.Context, o *origin.Origin) Snapshot {
	st := p.state[o.URL().String()]
	now := p.now()

	st.mu.Lock()
	if st.snapshot != nil && now.Sub(st.snapshot.CheckedAt) < p.interval()/2 {
		snap := *st.snapshot
		st.mu.Unlock()
		return snap
	}
	st.mu.Unlock()

	snap := p.probeOrigin(ctx, o)

	if p.collector != nil {
		result := "failure"
		if snap.Healthy {
			result = "success"
		}
		p.collector.ProbesTotal.WithLabelValues(o.Host(), result).Inc()
	}
	if !snap.Healthy {
		p.logger.Warn("origin_unhealthy",
			"origin", o.Host(),
			"passed_checks", snap.PassedChecks(),
			"score", snap.Score,
			"status", string(snap.Status))
	}
	return snap
}

// probeOrigin runs the four sub-checks and recomputes the score. Each check
// is independent: a failing check records an error event and never aborts
// the others.
func (p *Prober) probeOrigin(ctx context.Context, o *origin.Origin) Snapshot {
	st := p.state[o.URL().String()]
	target := o.URL().String() + p.cfg.Path
	now := p.now()
	threshold := p.responseThreshold()

	var (
		snap    Snapshot
		failed  []ErrorEvent
		elapsed = p.checkTimeout() // pessimistic default when the probe errors
	)

	// Connectivity: any response at all.
	res, err := p.probe(ctx, target)
	if err == nil {
		snap.Connectivity = true
	} else {
		failed = append(failed, ErrorEvent{At: now, Check: "connectivity", Reason: err.Error()})
	}

	// Response time: a fresh probe must answer within the threshold.
	res, err = p.probe(ctx, target)
	if err == nil {
		elapsed = res.Elapsed
		if res.Elapsed <= threshold {
			snap.ResponseTime = true
		} else {
			failed = append(failed, ErrorEvent{
				At: now, Check: "response_time",
				Reason: fmt.Sprintf("elapsed %v over threshold %v", res.Elapsed, threshold),
			})
		}
	} else {
		failed = append(failed, ErrorEvent{At: now, Check: "response_time", Reason: err.Error()})
	}

	// Status code: 2xx and 3xx pass.
	res, err = p.probe(ctx, target)
	if err == nil && res.StatusCode >= 200 && res.StatusCode < 400 {
		snap.StatusCode = true
	} else {
		reason := "probe failed"
		if err != nil {
			reason = err.Error()
		} else {
			reason = fmt.Sprintf("status code %d", res.StatusCode)
		}
		failed = append(failed, ErrorEvent{At: now, Check: "status_code", Reason: reason})
	}

	// Certificate: skipped (pass) for non-secure origins.
	if o.URL().Scheme != "https" {
		snap.Certificate = true
	} else {
		res, err = p.probe(ctx, target)
		if err == nil && !res.CertExpiry.IsZero() && res.CertExpiry.After(now) {
			snap.Certificate = true
		} else {
			reason := "certificate expired or missing"
			if err != nil {
				reason = err.Error()
			}
			failed = append(failed, ErrorEvent{At: now, Check: "certificate", Reason: reason})
		}
	}

	snap.Healthy = snap.PassedChecks() >= 3
	snap.CheckedAt = now

	if p.collector != nil {
		p.collector.ProbeDuration.WithLabelValues(o.Host()).Observe(elapsed.Seconds())
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	st.totalChecks++
	if snap.Healthy {
		st.successfulChecks++
	}
	st.totalResponseTime += elapsed
	for _, ev := range failed {
		st.appendErrorLocked(ev)
	}

	snap.Score = p.scoreLocked(st, now)
	snap.Status = statusFor(snap.Score)
	st.snapshot = &snap

	return snap
}

// probe runs one sub-check probe bounded by the configured timeout.
func (p *Prober) probe(ctx context.Context, target string) (ProbeResult, error) {
	cctx, cancel := context.WithTimeout(ctx, p.checkTimeout())
	defer cancel()
	return p.client.Probe(cctx, target)
}

// scoreLocked computes the composite 0-100 score. Caller holds st.mu.
func (p *Prober) scoreLocked(st *originState, now time.Time) float64 {
	successRate := 0.0
	avgResponse := time.Duration(0)
	if st.totalChecks > 0 {
		successRate = float64(st.successfulChecks) / float64(st.totalChecks)
		avgResponse = st.totalResponseTime / time.Duration(st.totalChecks)
	}

	recentCutoff := now.Add(-5 * p.interval())
	recentErrors := 0
	for _, ev := range st.errors {
		if ev.At.After(recentCutoff) {
			recentErrors++
		}
	}

	rtScore := 100 * (1 - float64(avgResponse)/float64(p.responseThreshold()))
	if rtScore < 0 {
		rtScore = 0
	}
	errScore := 100 - recentErrorPenalty*float64(recentErrors)
	if errScore < 0 {
		errScore = 0
	}

	score := successRateWeight*100*successRate + responseTimeWeight*rtScore + recentErrorWeight*errScore
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score
}

// appendErrorLocked appends to the bounded rolling error log. Caller holds st.mu.
func (st *originState) appendErrorLocked(ev ErrorEvent) {
	st.errors = append(st.errors, ev)
	if len(st.errors) > errorLogSize {
		st.errors = st.errors[len(st.errors)-errorLogSize:]
	}
}

// IsHealthy reports the cached health flag. Snapshots older than twice the
// probe interval are treated as unhealthy: stale data fails safe.
func (p *Prober) IsHealthy(o *origin.Origin) bool {
	st, ok := p.state[o.URL().String()]
	if !ok {
		return false
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if st.snapshot == nil {
		return false
	}
	if p.now().Sub(st.snapshot.CheckedAt) > 2*p.interval() {
		return false
	}
	return st.snapshot.Healthy
}

// Score returns the last computed health score, or 0 when never probed.
func (p *Prober) Score(o *origin.Origin) float64 {
	st, ok := p.state[o.URL().String()]
	if !ok {
		return 0
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.snapshot == nil {
		return 0
	}
	return st.snapshot.Score
}

// Snapshot returns a copy of the cached snapshot for an origin.
func (p *Prober) Snapshot(o *origin.Origin) (Snapshot, bool) {
	st, ok := p.state[o.URL().String()]
	if !ok {
		return Snapshot{}, false
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.snapshot == nil {
		return Snapshot{}, false
	}
	return *st.snapshot, true
}

// RecordRequestFailure folds a request-path failure into the origin's error
// log so it weighs on the next score computation. Probe errors and request
// errors never propagate to callers.
func (p *Prober) RecordRequestFailure(o *origin.Origin, reason string) {
	st, ok := p.state[o.URL().String()]
	if !ok {
		return
	}
	st.mu.Lock()
	st.appendErrorLocked(ErrorEvent{At: p.now(), Check: "request", Reason: reason})
	st.mu.Unlock()

	p.logger.Warn("request_failure_recorded", "origin", o.Host(), "reason", reason)
}

// Errors returns a copy of the origin's rolling error log for diagnostics.
func (p *Prober) Errors(o *origin.Origin) []ErrorEvent {
	st, ok := p.state[o.URL().String()]
	if !ok {
		return nil
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	out := make([]ErrorEvent, len(st.errors))
	copy(out, st.errors)
	return out
}
