package health

import (
	"fmt"
	"sort"
	"time"
)

// OriginSummary is a structured snapshot of one origin's health for
// monitoring collaborators.
type OriginSummary struct {
	Origin            string       `json:"origin"`
	Snapshot          *Snapshot    `json:"snapshot,omitempty"`
	SuccessRate       float64      `json:"success_rate"`
	AvgResponseTimeMS float64      `json:"avg_response_time_ms"`
	RecentErrors      int          `json:"recent_errors"`
	Errors            []ErrorEvent `json:"errors,omitempty"`
}

// Summary produces per-origin health summaries sorted by origin URL.
func (p *Prober) Summary() []OriginSummary {
	now := p.now()
	recentCutoff := now.Add(-5 * p.interval())

	out := make([]OriginSummary, 0, p.registry.Size())
	for _, o := range p.registry.Origins() {
		st := p.state[o.URL().String()]

		st.mu.Lock()
		s := OriginSummary{Origin: o.URL().String()}
		if st.snapshot != nil {
			snap := *st.snapshot
			s.Snapshot = &snap
		}
		if st.totalChecks > 0 {
			s.SuccessRate = float64(st.successfulChecks) / float64(st.totalChecks)
			s.AvgResponseTimeMS = float64(st.totalResponseTime/time.Duration(st.totalChecks)) / float64(time.Millisecond)
		}
		for _, ev := range st.errors {
			if ev.At.After(recentCutoff) {
				s.RecentErrors++
			}
		}
		s.Errors = make([]ErrorEvent, len(st.errors))
		copy(s.Errors, st.errors)
		st.mu.Unlock()

		out = append(out, s)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Origin < out[j].Origin })
	return out
}

// Recommendations flags origins an operator should look at: poor or critical
// scores and origins whose health data has gone stale.
func (p *Prober) Recommendations() []string {
	now := p.now()
	var recs []string

	for _, s := range p.Summary() {
		switch {
		case s.Snapshot == nil:
			recs = append(recs, fmt.Sprintf("%s: never probed, health unknown", s.Origin))
		case now.Sub(s.Snapshot.CheckedAt) > 2*p.interval():
			recs = append(recs, fmt.Sprintf("%s: health data stale since %s, treated as unhealthy", s.Origin, s.Snapshot.CheckedAt.Format(time.RFC3339)))
		case s.Snapshot.Status == StatusCritical || s.Snapshot.Status == StatusPoor:
			recs = append(recs, fmt.Sprintf("%s: health %s (score %.0f), consider draining traffic", s.Origin, s.Snapshot.Status, s.Snapshot.Score))
		}
	}
	return recs
}
