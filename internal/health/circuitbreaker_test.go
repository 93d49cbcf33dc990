package health

import (
	"sync"
	"testing"

	"github.com/edgegate-io/edgegate/internal/logging"
)

// TestCircuitBreakerInitialState tests circuit breaker starts CLOSED
func TestCircuitBreakerInitialState(t *testing.T) {
	cb := NewCircuitBreaker("origin-a:8080", logging.NewNop())
	if cb.GetState() != StateClosed {
		t.Errorf("Initial state should be StateClosed, got %v", cb.GetState())
	}
	if !cb.AllowRequest() {
		t.Error("StateClosed circuit breaker should allow requests")
	}
}

// TestCircuitBreakerThreshold tests opening circuit at failure threshold
func TestCircuitBreakerThreshold(t *testing.T) {
	cb := NewCircuitBreaker("origin-a:8080", logging.NewNop())

	for i := 0; i < 5; i++ {
		cb.RecordFailure()
	}

	if cb.GetState() != StateOpen {
		t.Errorf("Circuit should be StateOpen after 5 failures, got %v", cb.GetState())
	}
	if cb.AllowRequest() {
		t.Error("StateOpen circuit breaker should not allow requests")
	}
}

// TestCircuitBreakerBelowThreshold tests circuit stays closed under the threshold
func TestCircuitBreakerBelowThreshold(t *testing.T) {
	cb := NewCircuitBreaker("origin-a:8080", logging.NewNop())

	for i := 0; i < 4; i++ {
		cb.RecordFailure()
	}
	if cb.GetState() != StateClosed {
		t.Error("Circuit should still be StateClosed at 4 failures (threshold is 5)")
	}

	cb.RecordFailure()
	if cb.GetState() != StateOpen {
		t.Error("Circuit should be StateOpen at 5 failures")
	}
}

// TestCircuitBreakerConcurrency tests thread-safety
func TestCircuitBreakerConcurrency(t *testing.T) {
	cb := NewCircuitBreaker("origin-a:8080", logging.NewNop())

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cb.RecordFailure()
			cb.AllowRequest()
		}()
	}
	wg.Wait()

	if cb.GetState() != StateOpen {
		t.Errorf("Circuit should be StateOpen after 100 failures, got %v", cb.GetState())
	}
}
