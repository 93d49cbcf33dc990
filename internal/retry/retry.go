package retry

import (
	"bytes"
	"io"
	"net/http"
	"strings"

	"github.com/edgegate-io/edgegate/internal/logging"
)

// Policy decides whether a failed request may fail over to another origin.
type Policy struct {
	maxHops int
	budget  *Budget
	logger  *logging.Logger
}

// NewPolicy creates a failover policy with a hop limit and an adaptive
// budget sized as a percentage of live traffic.
func NewPolicy(maxHops, budgetPercent int, logger *logging.Logger) *Policy {
	return &Policy{
		maxHops: maxHops,
		budget:  NewBudget(budgetPercent),
		logger:  logger,
	}
}

// ShouldFailover reports whether the request may be re-routed after a failed
// origin. hop is the number of re-routes already taken.
func (p *Policy) ShouldFailover(req *http.Request, err error, hop int) bool {
	if req.Context().Err() != nil {
		return false
	}

	if hop >= p.maxHops {
		p.logger.Warn("failover_hop_limit_reached", "max_hops", p.maxHops)
		return false
	}

	if !isIdempotent(req.Method) {
		return false
	}

	if err == nil || !isRetryableError(err) {
		return false
	}

	p.budget.TrackRequest()
	if !p.budget.TryConsume() {
		p.logger.Warn("failover_budget_exhausted", "available", p.budget.Available())
		return false
	}

	return true
}

// Budget returns the underlying budget for metrics export.
func (p *Policy) Budget() *Budget {
	return p.budget
}

// isIdempotent reports whether the HTTP method is safe to re-route. POST and
// PATCH may have already mutated origin state on the failed attempt.
func isIdempotent(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodPut, http.MethodDelete:
		return true
	default:
		return false
	}
}

// isRetryableError reports whether the error indicates an origin-side failure
// that another origin might not share.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	msg := strings.ToLower(err.Error())
	for _, hint := range []string{
		"connection refused",
		"connection reset",
		"broken pipe",
		"no route to host",
		"i/o timeout",
		"eof",
		"deadline exceeded",
		"status 5", // 5xx surfaced as errors by the forwarder
	} {
		if strings.Contains(msg, hint) {
			return true
		}
	}
	return false
}

// BufferRequestBody drains and returns the request body so it can be replayed
// on failover.
func BufferRequestBody(req *http.Request) ([]byte, error) {
	if req.Body == nil {
		return nil, nil
	}
	body, err := io.ReadAll(req.Body)
	if err != nil {
		return nil, err
	}
	req.Body.Close()
	return body, nil
}

// RestoreRequestBody reattaches a buffered body before re-sending.
func RestoreRequestBody(req *http.Request, body []byte) {
	if body != nil {
		req.Body = io.NopCloser(bytes.NewBuffer(body))
	}
}
