package origin

import (
	"net/url"
	"sync"
	"sync/atomic"
	"time"
)

const (
	// latencyRingSize bounds the number of retained latency samples per origin.
	latencyRingSize = 64

	// LatencyWindow is how far back latency samples count toward the
	// trailing average.
	LatencyWindow = 10 * time.Minute
)

type latencySample struct {
	at time.Time
	ms float64
}

// Origin represents a single configured upstream the edge may route to.
// Membership is fixed at startup; only counters and weight mutate afterwards.
type Origin struct {
	url    *url.URL
	weight int64 // atomic, always > 0

	active int64 // atomic live connection count, never below 0

	mu      sync.Mutex
	samples [latencyRingSize]latencySample
	head    int // next write position
	count   int // filled slots, <= latencyRingSize
}

// New creates an origin with the given base URL and weight. Non-positive
// weights are normalized to 1.
func New(u *url.URL, weight int) *Origin {
	if weight < 1 {
		weight = 1
	}
	return &Origin{url: u, weight: int64(weight)}
}

// URL returns the origin's base URL.
func (o *Origin) URL() *url.URL {
	return o.url
}

// Host returns the host:port identity used in logs and metric labels.
func (o *Origin) Host() string {
	return o.url.Host
}

// Weight returns the configured weight.
func (o *Origin) Weight() int {
	return int(atomic.LoadInt64(&o.weight))
}

// SetWeight replaces the configured weight. Values below 1 are ignored;
// validation with an error belongs to the balancer's admin surface.
func (o *Origin) SetWeight(weight int) {
	if weight < 1 {
		return
	}
	atomic.StoreInt64(&o.weight, int64(weight))
}

// AcquireConn atomically increments the live connection count.
func (o *Origin) AcquireConn() {
	atomic.AddInt64(&o.active, 1)
}

// ReleaseConn atomically decrements the live connection count, flooring at 0.
func (o *Origin) ReleaseConn() {
	if atomic.AddInt64(&o.active, -1) < 0 {
		atomic.StoreInt64(&o.active, 0)
	}
}

// ActiveConns returns the current live connection count.
func (o *Origin) ActiveConns() int64 {
	return atomic.LoadInt64(&o.active)
}

// RecordLatency appends a latency sample observed now.
func (o *Origin) RecordLatency(ms float64) {
	o.RecordLatencyAt(ms, time.Now())
}

// RecordLatencyAt appends a latency sample with an explicit timestamp.
func (o *Origin) RecordLatencyAt(ms float64, at time.Time) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.samples[o.head] = latencySample{at: at, ms: ms}
	o.head = (o.head + 1) % latencyRingSize
	if o.count < latencyRingSize {
		o.count++
	}
}

// AverageLatency returns the mean of samples recorded within LatencyWindow
// of now. The second return is false when no recent samples exist.
func (o *Origin) AverageLatency(now time.Time) (float64, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	cutoff := now.Add(-LatencyWindow)
	var sum float64
	var n int
	for i := 0; i < o.count; i++ {
		s := o.samples[i]
		if s.at.After(cutoff) {
			sum += s.ms
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}
