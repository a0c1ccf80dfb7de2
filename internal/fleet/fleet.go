package fleet

import (
	"fmt"
	"time"
)

// HealthStatus is the circuit-breaker judgment for one exit node.
type HealthStatus string

const (
	StatusHealthy  HealthStatus = "healthy"
	StatusDegraded HealthStatus = "degraded"
	StatusFailed   HealthStatus = "failed"
)

// HealthStatusFromString parses a stored status value.
func HealthStatusFromString(s string) (HealthStatus, error) {
	switch s {
	case string(StatusHealthy):
		return StatusHealthy, nil
	case string(StatusDegraded):
		return StatusDegraded, nil
	case string(StatusFailed):
		return StatusFailed, nil
	default:
		return "", fmt.Errorf("unknown health status %q", s)
	}
}

// Strategy selects how a group picks its active exit among healthy members.
type Strategy string

const (
	StrategyPriority   Strategy = "priority"
	StrategyRoundRobin Strategy = "round_robin"
	StrategyLatency    Strategy = "latency"
)

// StrategyFromString parses a stored strategy value.
func StrategyFromString(s string) (Strategy, error) {
	switch s {
	case string(StrategyPriority):
		return StrategyPriority, nil
	case string(StrategyRoundRobin):
		return StrategyRoundRobin, nil
	case string(StrategyLatency):
		return StrategyLatency, nil
	default:
		return "", fmt.Errorf("unknown strategy %q", s)
	}
}

// TriggerReason states why a failover event was recorded.
type TriggerReason string

const (
	TriggerInitialAssignment TriggerReason = "initial_assignment"
	TriggerHealthCheckFailed TriggerReason = "health_check_failed"
)

// ExitNode is a network egress point clients route traffic through.
// Address is the host:port the health probe targets.
type ExitNode struct {
	ID        int64
	Name      string
	Address   string
	CreatedAt time.Time
}

// FailoverGroup is a named pool of interchangeable exit nodes sharing a
// selection strategy and health thresholds.
type FailoverGroup struct {
	ID                  int64
	Name                string
	Strategy            Strategy
	HealthCheckInterval time.Duration
	HealthCheckTimeout  time.Duration
	DegradedThresholdMs int64
	FailureThreshold    int
	RecoveryThreshold   int
}

// GroupMembership binds an exit node to a failover group. Lower
// StaticPriority is more preferred. Weight is reserved for future
// weighted selection. Disabled members are skipped by selection but
// keep their history.
type GroupMembership struct {
	GroupID        int64
	NodeID         int64
	StaticPriority int
	Weight         int
	Enabled        bool
}

// NodeHealth is the single health record per exit node, independent of
// how many groups reference the node. It is written only by the
// health-check cycle.
type NodeHealth struct {
	NodeID               int64
	Status               HealthStatus
	LatencyMs            *float64
	LastCheckAt          time.Time
	ConsecutiveFailures  int
	ConsecutiveSuccesses int
	LastSuccessAt        *time.Time
	LastFailureAt        *time.Time
	FailureReason        *string
}

// NewNodeHealth is the state a node starts in when it first joins any group.
func NewNodeHealth(nodeID int64) NodeHealth {
	return NodeHealth{
		NodeID: nodeID,
		Status: StatusHealthy,
	}
}

// Assignment binds a client peer to a failover group and its currently
// active exit node. Both references are nullable: a client may be
// unassigned, or assigned to a group with no exit chosen yet. Written
// only by the failover coordinator.
type Assignment struct {
	ClientID     string
	ExitGroupID  *int64
	ActiveExitID *int64
}

// FailoverEvent is one immutable entry in the transition history.
// FromExitID is nil for a client's initial assignment.
type FailoverEvent struct {
	ID           int64
	ClientID     string
	GroupID      int64
	FromExitID   *int64
	ToExitID     int64
	Reason       TriggerReason
	TriggeredAt  time.Time
	Success      bool
	ErrorMessage *string
}
