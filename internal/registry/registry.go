package registry

import (
	"context"
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/angeloszaimis/exit-failover/internal/fleet"
	"github.com/angeloszaimis/exit-failover/internal/store"
)

// Registry performs validated administrative operations against the store.
type Registry struct {
	store *store.Store
}

// New returns a registry over the given store.
func New(s *store.Store) *Registry {
	return &Registry{store: s}
}

// GroupParams are the inputs for creating or tuning a failover group.
type GroupParams struct {
	Name                string
	Strategy            fleet.Strategy
	HealthCheckInterval time.Duration
	HealthCheckTimeout  time.Duration
	DegradedThresholdMs int64
	FailureThreshold    int
	RecoveryThreshold   int
}

// Validate checks group parameters without touching the store.
func (p GroupParams) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Name, validation.Required, validation.Length(1, 128)),
		validation.Field(&p.Strategy, validation.Required,
			validation.In(fleet.StrategyPriority, fleet.StrategyRoundRobin, fleet.StrategyLatency)),
		validation.Field(&p.HealthCheckInterval, validation.Required,
			validation.Min(time.Second)),
		validation.Field(&p.HealthCheckTimeout, validation.Required,
			validation.Min(time.Second)),
		validation.Field(&p.DegradedThresholdMs, validation.Required, validation.Min(int64(1))),
		validation.Field(&p.FailureThreshold, validation.Required, validation.Min(1)),
		validation.Field(&p.RecoveryThreshold, validation.Required, validation.Min(1)),
	)
}

func (p GroupParams) group() fleet.FailoverGroup {
	return fleet.FailoverGroup{
		Name:                p.Name,
		Strategy:            p.Strategy,
		HealthCheckInterval: p.HealthCheckInterval,
		HealthCheckTimeout:  p.HealthCheckTimeout,
		DegradedThresholdMs: p.DegradedThresholdMs,
		FailureThreshold:    p.FailureThreshold,
		RecoveryThreshold:   p.RecoveryThreshold,
	}
}

// CreateGroup validates and creates a failover group.
func (r *Registry) CreateGroup(ctx context.Context, p GroupParams) (fleet.FailoverGroup, error) {
	if err := p.Validate(); err != nil {
		return fleet.FailoverGroup{}, fmt.Errorf("invalid group: %w", err)
	}
	return r.store.CreateGroup(ctx, p.group())
}

// UpdateGroupThresholds validates and applies new tunables to an
// existing group. The group's name cannot change through this path.
func (r *Registry) UpdateGroupThresholds(ctx context.Context, groupID int64, p GroupParams) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("invalid group: %w", err)
	}

	g, err := r.store.GetGroup(ctx, groupID)
	if err != nil {
		return err
	}

	updated := p.group()
	updated.ID = g.ID
	updated.Name = g.Name
	return r.store.UpdateGroupThresholds(ctx, updated)
}

// DeleteGroup removes a group and, by cascade, its memberships.
func (r *Registry) DeleteGroup(ctx context.Context, groupID int64) error {
	return r.store.DeleteGroup(ctx, groupID)
}

// AddNode registers an exit node in the fleet.
func (r *Registry) AddNode(ctx context.Context, name, address string) (fleet.ExitNode, error) {
	err := validation.Errors{
		"name":    validation.Validate(name, validation.Required, validation.Length(1, 128)),
		"address": validation.Validate(address, validation.Required),
	}.Filter()
	if err != nil {
		return fleet.ExitNode{}, fmt.Errorf("invalid node: %w", err)
	}
	return r.store.CreateNode(ctx, name, address)
}

// MemberParams are the inputs for joining a node to a group.
type MemberParams struct {
	GroupID        int64
	NodeID         int64
	StaticPriority int
	Weight         int
}

// Validate checks membership parameters without touching the store.
func (p MemberParams) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.GroupID, validation.Required),
		validation.Field(&p.NodeID, validation.Required),
		validation.Field(&p.Weight, validation.Required, validation.Min(1)),
	)
}

// AddMember joins a node to a group, initializing the node's health
// record on its first membership anywhere. The group and node must exist.
func (r *Registry) AddMember(ctx context.Context, p MemberParams) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("invalid membership: %w", err)
	}
	if _, err := r.store.GetGroup(ctx, p.GroupID); err != nil {
		return fmt.Errorf("group %d: %w", p.GroupID, err)
	}
	if _, err := r.store.GetNode(ctx, p.NodeID); err != nil {
		return fmt.Errorf("node %d: %w", p.NodeID, err)
	}

	return r.store.AddMembership(ctx, fleet.GroupMembership{
		GroupID:        p.GroupID,
		NodeID:         p.NodeID,
		StaticPriority: p.StaticPriority,
		Weight:         p.Weight,
		Enabled:        true,
	})
}

// RemoveMember deletes a node's membership in a group.
func (r *Registry) RemoveMember(ctx context.Context, groupID, nodeID int64) error {
	return r.store.RemoveMembership(ctx, groupID, nodeID)
}

// SetMemberEnabled toggles a member in or out of selection.
func (r *Registry) SetMemberEnabled(ctx context.Context, groupID, nodeID int64, enabled bool) error {
	return r.store.SetMembershipEnabled(ctx, groupID, nodeID, enabled)
}

// AssignClient binds a client peer to a failover group. The active exit
// is cleared; the next failover cycle performs the initial assignment.
func (r *Registry) AssignClient(ctx context.Context, clientID string, groupID int64) error {
	if err := validation.Validate(clientID, validation.Required); err != nil {
		return fmt.Errorf("invalid client id: %w", err)
	}
	if _, err := r.store.GetGroup(ctx, groupID); err != nil {
		return fmt.Errorf("group %d: %w", groupID, err)
	}

	return r.store.UpsertAssignment(ctx, fleet.Assignment{
		ClientID:    clientID,
		ExitGroupID: &groupID,
	})
}
