package health

import (
	"sync"
	"time"

	"github.com/edgegate-io/edgegate/internal/logging"
)

// CircuitState represents the circuit breaker state
type CircuitState int

const (
	// StateClosed means the origin is taking traffic normally
	StateClosed CircuitState = iota

	// StateOpen means forwards to the origin fail fast
	StateOpen

	// StateHalfOpen means the breaker is testing if the origin recovered
	StateHalfOpen
)

func (cs CircuitState) String() string {
	switch cs {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// CircuitBreaker gates forward attempts to a single origin using a sliding
// window of recent failures. An open circuit turns a doomed forward into an
// immediate failover.
type CircuitBreaker struct {
	name           string
	logger         *logging.Logger
	state          CircuitState
	successes      int64
	lastFailTime   time.Time
	recentFailures []time.Time
	mux            sync.Mutex

	failureThreshold int           // failures within the window before opening
	successThreshold int           // successes to close from half-open
	timeout          time.Duration // time before trying half-open
	windowSize       time.Duration // rolling failure window
}

// NewCircuitBreaker creates a breaker for one origin.
func NewCircuitBreaker(name string, logger *logging.Logger) *CircuitBreaker {
	return &CircuitBreaker{
		name:             name,
		logger:           logger,
		state:            StateClosed,
		failureThreshold: 5,
		successThreshold: 2,
		timeout:          30 * time.Second,
		windowSize:       10 * time.Second,
	}
}

// AllowRequest returns true if a forward attempt may go through.
func (cb *CircuitBreaker) AllowRequest() bool {
	cb.mux.Lock()
	defer cb.mux.Unlock()

	switch cb.state {
	case StateClosed:
		return true

	case StateOpen:
		if time.Since(cb.lastFailTime) >= cb.timeout {
			cb.logger.Info("circuit_half_open", "origin", cb.name)
			cb.state = StateHalfOpen
			cb.successes = 0
			return true
		}
		return false

	case StateHalfOpen:
		return true // allow the test request

	default:
		return false
	}
}

// RecordSuccess records a successful forward.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mux.Lock()
	defer cb.mux.Unlock()

	cb.successes++

	if cb.state == StateHalfOpen {
		if cb.successes >= int64(cb.successThreshold) {
			cb.logger.Info("circuit_closed", "origin", cb.name, "successes", cb.successes)
			cb.state = StateClosed
			cb.recentFailures = nil
			cb.successes = 0
		}
	} else if cb.state == StateClosed {
		cb.pruneOldFailures()
	}
}

// RecordFailure records a failed forward.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mux.Lock()
	defer cb.mux.Unlock()

	now := time.Now()
	cb.recentFailures = append(cb.recentFailures, now)
	cb.lastFailTime = now
	cb.pruneOldFailures()

	if cb.state == StateHalfOpen {
		cb.logger.Warn("circuit_reopened", "origin", cb.name)
		cb.state = StateOpen
		cb.successes = 0
	} else if cb.state == StateClosed {
		if len(cb.recentFailures) >= cb.failureThreshold {
			cb.logger.Warn("circuit_opened",
				"origin", cb.name,
				"failures", len(cb.recentFailures),
				"window", cb.windowSize.String())
			cb.state = StateOpen
		}
	}
}

// pruneOldFailures drops failures outside the sliding window. Caller holds mux.
func (cb *CircuitBreaker) pruneOldFailures() {
	cutoff := time.Now().Add(-cb.windowSize)
	kept := cb.recentFailures[:0]
	for _, t := range cb.recentFailures {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	cb.recentFailures = kept
}

// GetState returns the current circuit state.
func (cb *CircuitBreaker) GetState() CircuitState {
	cb.mux.Lock()
	defer cb.mux.Unlock()
	return cb.state
}
