package balancer

import "errors"

var (
	// ErrUnknownAlgorithm is returned by SetAlgorithm for names outside the
	// closed strategy set. The previous algorithm stays in effect.
	ErrUnknownAlgorithm = errors.New("unknown load balancing algorithm")

	// ErrUnknownOrigin is returned when a setter references an origin that
	// is not part of the configured set.
	ErrUnknownOrigin = errors.New("origin not in configured set")

	// ErrInvalidWeight is returned for non-positive weights.
	ErrInvalidWeight = errors.New("weight must be positive")

	// ErrNoHealthyOrigins is returned in fail-closed mode when no origin is
	// confirmed healthy.
	ErrNoHealthyOrigins = errors.New("no healthy origins available")

	// ErrFailoverExhausted is returned once a request has used up its
	// failover hop budget.
	ErrFailoverExhausted = errors.New("failover hop limit reached")
)
