package breaker

import (
	"fmt"
	"time"

	"github.com/angeloszaimis/exit-failover/internal/fleet"
)

// minorDegradationFailures is the fixed failure run length after which a
// node is marked DEGRADED, independent of the group's configured
// failure threshold.
const minorDegradationFailures = 3

const failureReason = "health check failed (no response)"

// Thresholds are the per-group knobs the state machine evaluates against.
type Thresholds struct {
	DegradedLatencyMs int64
	FailureThreshold  int
	RecoveryThreshold int
}

// Outcome is the result of one probe against a node.
type Outcome struct {
	Reachable bool
	Latency   time.Duration
	At        time.Time
}

// Evaluate applies one probe outcome to a node's health record and
// returns the updated record. The input is not modified.
func Evaluate(current fleet.NodeHealth, outcome Outcome, t Thresholds) fleet.NodeHealth {
	next := current
	at := outcome.At
	if at.IsZero() {
		at = time.Now()
	}
	next.LastCheckAt = at

	if outcome.Reachable {
		return evaluateSuccess(next, outcome, t, at)
	}
	return evaluateFailure(next, t, at)
}

func evaluateSuccess(next fleet.NodeHealth, outcome Outcome, t Thresholds, at time.Time) fleet.NodeHealth {
	next.ConsecutiveFailures = 0
	next.ConsecutiveSuccesses++
	next.LastSuccessAt = &at

	latencyMs := float64(outcome.Latency) / float64(time.Millisecond)
	next.LatencyMs = &latencyMs

	switch {
	case latencyMs > float64(t.DegradedLatencyMs):
		// Latency demotion overrides hysteresis: one slow success is enough.
		next.Status = fleet.StatusDegraded
		reason := fmt.Sprintf("high latency: %.0fms", latencyMs)
		next.FailureReason = &reason

	case (next.Status == fleet.StatusFailed || next.Status == fleet.StatusDegraded) &&
		next.ConsecutiveSuccesses >= t.RecoveryThreshold:
		next.Status = fleet.StatusHealthy
		next.FailureReason = nil

	default:
		// A FAILED node recovers at most one level per success.
		if next.Status == fleet.StatusFailed {
			next.Status = fleet.StatusDegraded
		}
		next.FailureReason = nil
	}

	return next
}

func evaluateFailure(next fleet.NodeHealth, t Thresholds, at time.Time) fleet.NodeHealth {
	next.ConsecutiveSuccesses = 0
	next.ConsecutiveFailures++
	next.LastFailureAt = &at
	next.LatencyMs = nil

	switch {
	case next.ConsecutiveFailures >= t.FailureThreshold:
		next.Status = fleet.StatusFailed
	case next.ConsecutiveFailures >= minorDegradationFailures:
		next.Status = fleet.StatusDegraded
	}

	reason := failureReason
	next.FailureReason = &reason
	return next
}
