package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/angeloszaimis/exit-failover/internal/breaker"
	"github.com/angeloszaimis/exit-failover/internal/fleet"
	"github.com/angeloszaimis/exit-failover/internal/metrics"
	"github.com/angeloszaimis/exit-failover/internal/probe"
	"github.com/angeloszaimis/exit-failover/internal/selector"
	"github.com/angeloszaimis/exit-failover/internal/store"
)

// Coordinator runs the health-check and failover cycles against the
// store, using the injected probe for reachability measurements.
type Coordinator struct {
	store *store.Store
	probe probe.Func
	log   *slog.Logger

	// failoverMu serializes ProcessFailovers invocations end to end.
	failoverMu sync.Mutex
}

// New constructs a coordinator.
func New(s *store.Store, p probe.Func, log *slog.Logger) *Coordinator {
	return &Coordinator{
		store: s,
		probe: p,
		log:   log,
	}
}

// RunHealthChecks probes every enabled membership across every group
// and persists the updated health records, which are returned. A node
// in several groups is probed once per membership; each probe
// independently updates the node's single health record, so the
// effective thresholds are those of whichever membership probed last.
// A store error aborts the remaining memberships; records already
// persisted stand.
func (c *Coordinator) RunHealthChecks(ctx context.Context) ([]fleet.NodeHealth, error) {
	start := time.Now()
	defer func() {
		metrics.CycleDuration.WithLabelValues("health_check").Observe(time.Since(start).Seconds())
	}()

	groups, err := c.store.ListGroups(ctx)
	if err != nil {
		return nil, err
	}

	var updated []fleet.NodeHealth
	for _, group := range groups {
		members, err := c.store.ListMemberships(ctx, group.ID, true)
		if err != nil {
			return updated, err
		}

		for _, m := range members {
			h, err := c.checkMember(ctx, group, m)
			if err != nil {
				return updated, err
			}
			updated = append(updated, h)
		}
	}

	return updated, nil
}

func (c *Coordinator) checkMember(ctx context.Context, group fleet.FailoverGroup, m fleet.GroupMembership) (fleet.NodeHealth, error) {
	node, err := c.store.GetNode(ctx, m.NodeID)
	if err != nil {
		return fleet.NodeHealth{}, fmt.Errorf("resolve probe target for node %d: %w", m.NodeID, err)
	}

	reachable, latency := c.probe(ctx, node.Address, group.HealthCheckTimeout)
	if reachable {
		metrics.Probes.WithLabelValues("success").Inc()
	} else {
		metrics.Probes.WithLabelValues("failure").Inc()
	}

	current, err := c.store.GetNodeHealth(ctx, m.NodeID)
	if errors.Is(err, store.ErrNotFound) {
		current = fleet.NewNodeHealth(m.NodeID)
	} else if err != nil {
		return fleet.NodeHealth{}, err
	}

	next := breaker.Evaluate(current, breaker.Outcome{
		Reachable: reachable,
		Latency:   latency,
		At:        time.Now().UTC(),
	}, breaker.Thresholds{
		DegradedLatencyMs: group.DegradedThresholdMs,
		FailureThreshold:  group.FailureThreshold,
		RecoveryThreshold: group.RecoveryThreshold,
	})

	if err := c.store.UpsertNodeHealth(ctx, next); err != nil {
		return fleet.NodeHealth{}, err
	}

	metrics.NodeStatus.WithLabelValues(node.Name).Set(statusValue(next.Status))
	if next.Status != current.Status {
		c.log.Info("node health changed",
			slog.String("node", node.Name),
			slog.String("group", group.Name),
			slog.String("from", string(current.Status)),
			slog.String("to", string(next.Status)))
	}

	return next, nil
}

// ProcessFailovers reassigns every client whose active exit is missing
// or failed, appending one event per reassignment. Clients in groups
// with no healthy candidate are skipped, never forced off their current
// exit. The returned slice holds the events created by this invocation;
// empty is the common steady-state result. A store error aborts the
// remaining clients; events already committed stand.
func (c *Coordinator) ProcessFailovers(ctx context.Context) ([]fleet.FailoverEvent, error) {
	c.failoverMu.Lock()
	defer c.failoverMu.Unlock()

	start := time.Now()
	defer func() {
		metrics.CycleDuration.WithLabelValues("failover").Observe(time.Since(start).Seconds())
	}()

	assignments, err := c.store.AssignmentsNeedingFailover(ctx)
	if err != nil {
		return nil, err
	}

	var events []fleet.FailoverEvent
	for _, a := range assignments {
		event, moved, err := c.failOver(ctx, a)
		if err != nil {
			return events, err
		}
		if moved {
			events = append(events, event)
		}
	}

	return events, nil
}

func (c *Coordinator) failOver(ctx context.Context, a fleet.Assignment) (fleet.FailoverEvent, bool, error) {
	group, err := c.store.GetGroup(ctx, *a.ExitGroupID)
	if err != nil {
		return fleet.FailoverEvent{}, false, fmt.Errorf("client %q: %w", a.ClientID, err)
	}

	candidates, err := c.healthyCandidates(ctx, group)
	if err != nil {
		return fleet.FailoverEvent{}, false, err
	}

	target, ok := selector.ForStrategy(group.Strategy).SelectExit(candidates)
	if !ok {
		metrics.SkippedNoCandidate.Inc()
		c.log.Warn("no healthy exit available",
			slog.String("client", a.ClientID),
			slog.String("group", group.Name))
		return fleet.FailoverEvent{}, false, nil
	}

	if a.ActiveExitID != nil && *a.ActiveExitID == target {
		return fleet.FailoverEvent{}, false, nil
	}

	reason := fleet.TriggerHealthCheckFailed
	if a.ActiveExitID == nil {
		reason = fleet.TriggerInitialAssignment
	}

	event, err := c.store.RecordFailover(ctx, fleet.FailoverEvent{
		ClientID:    a.ClientID,
		GroupID:     group.ID,
		FromExitID:  a.ActiveExitID,
		ToExitID:    target,
		Reason:      reason,
		TriggeredAt: time.Now().UTC(),
		Success:     true,
	})
	if err != nil {
		return fleet.FailoverEvent{}, false, err
	}

	metrics.FailoverEvents.WithLabelValues(string(reason)).Inc()
	c.log.Info("client reassigned",
		slog.String("client", a.ClientID),
		slog.String("group", group.Name),
		slog.Any("from", a.ActiveExitID),
		slog.Int64("to", target),
		slog.String("reason", string(reason)))

	return event, true, nil
}

// healthyCandidates assembles the healthy, enabled membership of a
// group as selector candidates, with measured latency and the group's
// last-selection timestamps attached.
func (c *Coordinator) healthyCandidates(ctx context.Context, group fleet.FailoverGroup) ([]selector.Candidate, error) {
	members, err := c.store.ListMemberships(ctx, group.ID, true)
	if err != nil {
		return nil, err
	}

	lastSelected, err := c.store.LastSelections(ctx, group.ID)
	if err != nil {
		return nil, err
	}

	var candidates []selector.Candidate
	for _, m := range members {
		h, err := c.store.GetNodeHealth(ctx, m.NodeID)
		if errors.Is(err, store.ErrNotFound) {
			h = fleet.NewNodeHealth(m.NodeID)
		} else if err != nil {
			return nil, err
		}

		if h.Status != fleet.StatusHealthy {
			continue
		}

		cand := selector.Candidate{
			NodeID:    m.NodeID,
			Priority:  m.StaticPriority,
			Weight:    m.Weight,
			LatencyMs: h.LatencyMs,
		}
		if at, ok := lastSelected[m.NodeID]; ok {
			t := at
			cand.LastSelected = &t
		}
		candidates = append(candidates, cand)
	}

	return candidates, nil
}

// HealthSnapshot returns the current health record of every node that
// has ever joined a group.
func (c *Coordinator) HealthSnapshot(ctx context.Context) ([]fleet.NodeHealth, error) {
	return c.store.ListNodeHealth(ctx)
}

// History returns failover events, newest first, optionally filtered
// by group or client with a result limit.
func (c *Coordinator) History(ctx context.Context, f store.EventFilter) ([]fleet.FailoverEvent, error) {
	return c.store.Events(ctx, f)
}

func statusValue(s fleet.HealthStatus) float64 {
	switch s {
	case fleet.StatusDegraded:
		return 1
	case fleet.StatusFailed:
		return 2
	default:
		return 0
	}
}
