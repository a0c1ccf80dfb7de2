package selector

import (
	"time"

	"github.com/angeloszaimis/exit-failover/internal/fleet"
)

// Candidate is one healthy, enabled group member offered to a strategy.
// LatencyMs is nil when the node has no measured latency yet;
// LastSelected is nil when the node has never been a failover target in
// this group.
type Candidate struct {
	NodeID       int64
	Priority     int
	Weight       int
	LatencyMs    *float64
	LastSelected *time.Time
}

// Selector picks the single best exit among the candidates, or reports
// ok=false when there are none.
type Selector interface {
	SelectExit(candidates []Candidate) (nodeID int64, ok bool)
}

// ForStrategy returns the selector implementing a group's strategy.
func ForStrategy(s fleet.Strategy) Selector {
	switch s {
	case fleet.StrategyLatency:
		return NewLatencySelector()
	case fleet.StrategyRoundRobin:
		return NewRoundRobinSelector()
	default:
		return NewPrioritySelector()
	}
}
