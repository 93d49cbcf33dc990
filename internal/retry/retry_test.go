package retry

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"testing"

	"github.com/edgegate-io/edgegate/internal/logging"
)

func newTestPolicy(maxHops, percent int) *Policy {
	return NewPolicy(maxHops, percent, logging.NewNop())
}

func TestBufferAndRestoreRequestBody(t *testing.T) {
	body := "request payload"
	req, err := http.NewRequest("PUT", "http://localhost:8080", bytes.NewBufferString(body))
	if err != nil {
		t.Fatal(err)
	}

	buffered, err := BufferRequestBody(req)
	if err != nil {
		t.Fatalf("buffer failed: %v", err)
	}
	if string(buffered) != body {
		t.Errorf("buffered %q, want %q", buffered, body)
	}

	RestoreRequestBody(req, buffered)
	restored, _ := io.ReadAll(req.Body)
	if string(restored) != body {
		t.Errorf("restored %q, want %q", restored, body)
	}
}

func TestBufferNilBody(t *testing.T) {
	req, _ := http.NewRequest("GET", "http://localhost:8080", nil)
	buffered, err := BufferRequestBody(req)
	if err != nil || buffered != nil {
		t.Errorf("nil body: got (%v, %v), want (nil, nil)", buffered, err)
	}
}

func TestIsIdempotent(t *testing.T) {
	for _, method := range []string{"GET", "HEAD", "OPTIONS", "PUT", "DELETE"} {
		if !isIdempotent(method) {
			t.Errorf("%s should be idempotent", method)
		}
	}
	for _, method := range []string{"POST", "PATCH", "CONNECT"} {
		if isIdempotent(method) {
			t.Errorf("%s should not be idempotent", method)
		}
	}
}

func TestIsRetryableError(t *testing.T) {
	retryable := []error{
		errors.New("dial tcp: connection refused"),
		errors.New("read: connection reset by peer"),
		errors.New("unexpected EOF"),
		errors.New("context deadline exceeded"),
		errors.New("origin returned status 503"),
	}
	for _, err := range retryable {
		if !isRetryableError(err) {
			t.Errorf("%v should be retryable", err)
		}
	}

	if isRetryableError(nil) {
		t.Error("nil error should not be retryable")
	}
	if isRetryableError(errors.New("origin returned status 404")) {
		t.Error("4xx should not be retryable")
	}
}

func TestShouldFailoverMethodGate(t *testing.T) {
	policy := newTestPolicy(3, 50)
	err := errors.New("connection refused")

	post, _ := http.NewRequest("POST", "http://localhost:8080", bytes.NewBufferString("body"))
	if policy.ShouldFailover(post, err, 0) {
		t.Error("POST must not fail over")
	}

	get, _ := http.NewRequest("GET", "http://localhost:8080", nil)
	if !policy.ShouldFailover(get, err, 0) {
		t.Error("GET with a retryable error should fail over")
	}
}

func TestShouldFailoverHopLimit(t *testing.T) {
	policy := newTestPolicy(3, 50)
	err := errors.New("connection refused")
	req, _ := http.NewRequest("GET", "http://localhost:8080", nil)

	if policy.ShouldFailover(req, err, 3) {
		t.Error("should not fail over at the hop limit")
	}
	if policy.ShouldFailover(req, err, 4) {
		t.Error("should not fail over beyond the hop limit")
	}
}

func TestShouldFailoverCanceledContext(t *testing.T) {
	policy := newTestPolicy(3, 50)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	req, _ := http.NewRequestWithContext(ctx, "GET", "http://localhost:8080", nil)
	if policy.ShouldFailover(req, errors.New("connection refused"), 0) {
		t.Error("should not fail over after the client canceled")
	}
}

func TestShouldFailoverNilError(t *testing.T) {
	policy := newTestPolicy(3, 50)
	req, _ := http.NewRequest("GET", "http://localhost:8080", nil)
	if policy.ShouldFailover(req, nil, 0) {
		t.Error("nil error should not fail over")
	}
}

func TestBudgetConsumesTokens(t *testing.T) {
	budget := NewBudget(10)

	available := budget.Available()
	if available != 100 {
		t.Fatalf("baseline budget = %d, want 100", available)
	}

	for i := int64(0); i < available; i++ {
		if !budget.TryConsume() {
			t.Fatalf("token %d should have been available", i)
		}
	}
	if budget.TryConsume() {
		t.Error("budget should be exhausted")
	}
}

func TestBudgetPercentClamped(t *testing.T) {
	if got := NewBudget(0).Available(); got != 10 {
		t.Errorf("clamped low budget = %d, want 10", got)
	}
	if got := NewBudget(500).Available(); got != 1000 {
		t.Errorf("clamped high budget = %d, want 1000", got)
	}
}
