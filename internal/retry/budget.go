package retry

import (
	"sync/atomic"
	"time"
)

// Budget caps global failover volume with a token bucket that adapts its
// refill rate to the observed request rate.
type Budget struct {
	tokens         int64
	maxTokens      int64
	percent        int
	refillRate     int64 // tokens added per second
	lastRefill     int64 // unix seconds
	requestCounter int64
}

// NewBudget creates a budget allowing percent% of requests to be failovers.
// percent is clamped to [1, 100].
func NewBudget(percent int) *Budget {
	if percent < 1 {
		percent = 1
	}
	if percent > 100 {
		percent = 100
	}

	// Baseline of 1000 req/s until real traffic calibrates the rate.
	maxTokens := int64(1000 * percent / 100)

	return &Budget{
		tokens:     maxTokens,
		maxTokens:  maxTokens,
		percent:    percent,
		refillRate: maxTokens,
		lastRefill: time.Now().Unix(),
	}
}

// TryConsume takes one token, reporting false when the budget is exhausted.
func (b *Budget) TryConsume() bool {
	b.refill()

	for {
		current := atomic.LoadInt64(&b.tokens)
		if current <= 0 {
			return false
		}
		if atomic.CompareAndSwapInt64(&b.tokens, current, current-1) {
			return true
		}
	}
}

// TrackRequest counts a live request toward the adaptive rate.
func (b *Budget) TrackRequest() {
	atomic.AddInt64(&b.requestCounter, 1)
}

// refill adds tokens for elapsed time, recalibrating the rate from the
// requests seen since the last refill.
func (b *Budget) refill() {
	now := time.Now().Unix()
	last := atomic.LoadInt64(&b.lastRefill)

	if now <= last {
		return
	}
	if !atomic.CompareAndSwapInt64(&b.lastRefill, last, now) {
		return // another goroutine is refilling
	}

	actualRate := atomic.SwapInt64(&b.requestCounter, 0)
	if actualRate > 0 {
		rate := actualRate * int64(b.percent) / 100
		if rate < 1 {
			rate = 1
		}
		b.refillRate = rate
		atomic.StoreInt64(&b.maxTokens, rate)
	}

	added := (now - last) * b.refillRate
	for {
		current := atomic.LoadInt64(&b.tokens)
		next := current + added
		if max := atomic.LoadInt64(&b.maxTokens); next > max {
			next = max
		}
		if atomic.CompareAndSwapInt64(&b.tokens, current, next) {
			return
		}
	}
}

// Available returns the current token count.
func (b *Budget) Available() int64 {
	b.refill()
	return atomic.LoadInt64(&b.tokens)
}
