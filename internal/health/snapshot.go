package health

import (
	"time"
)

// Status buckets a health score into an operator-facing label.
type Status string

const (
	StatusExcellent Status = "excellent" // score >= 90
	StatusGood      Status = "good"      // score >= 75
	StatusFair      Status = "fair"      // score >= 50
	StatusPoor      Status = "poor"      // score >= 25
	StatusCritical  Status = "critical"  // score < 25
)

// statusFor maps a 0-100 score onto its bucket.
func statusFor(score float64) Status {
	switch {
	case score >= 90:
		return StatusExcellent
	case score >= 75:
		return StatusGood
	case score >= 50:
		return StatusFair
	case score >= 25:
		return StatusPoor
	default:
		return StatusCritical
	}
}

// Snapshot is the result of one probe round against a single origin.
type Snapshot struct {
	Connectivity bool      `json:"connectivity"`
	ResponseTime bool      `json:"response_time"`
	StatusCode   bool      `json:"status_code"`
	Certificate  bool      `json:"certificate"`
	Healthy      bool      `json:"healthy"` // true iff >= 3 of 4 checks pass
	Score        float64   `json:"score"`
	Status       Status    `json:"status"`
	CheckedAt    time.Time `json:"checked_at"`
}

// PassedChecks counts how many of the four sub-checks passed.
func (s Snapshot) PassedChecks() int {
	n := 0
	for _, ok := range []bool{s.Connectivity, s.ResponseTime, s.StatusCode, s.Certificate} {
		if ok {
			n++
		}
	}
	return n
}

// ErrorEvent is one entry in an origin's bounded rolling error log.
type ErrorEvent struct {
	At     time.Time `json:"at"`
	Check  string    `json:"check"`
	Reason string    `json:"reason"`
}

// errorLogSize bounds the per-origin rolling error log.
const errorLogSize = 10
