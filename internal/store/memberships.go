package store

import (
	"context"
	"fmt"

	"github.com/angeloszaimis/exit-failover/internal/fleet"
)

// AddMembership joins a node to a group. The node's health record is
// initialized to healthy with zero counters the first time the node
// joins any group; both writes commit together.
func (s *Store) AddMembership(ctx context.Context, m fleet.GroupMembership) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("add membership: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO group_memberships (group_id, node_id, static_priority, weight, enabled)
		VALUES (?, ?, ?, ?, ?)`,
		m.GroupID, m.NodeID, m.StaticPriority, m.Weight, m.Enabled)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateMembership
		}
		return fmt.Errorf("add membership: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO node_health (node_id) VALUES (?)`, m.NodeID)
	if err != nil {
		return fmt.Errorf("init node health: %w", err)
	}

	return tx.Commit()
}

// RemoveMembership deletes a node's membership in a group. Health and
// event history are untouched.
func (s *Store) RemoveMembership(ctx context.Context, groupID, nodeID int64) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM group_memberships WHERE group_id = ? AND node_id = ?`, groupID, nodeID)
	if err != nil {
		return fmt.Errorf("remove membership: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("remove membership: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetMembershipEnabled toggles a member in or out of selection without
// deleting its history.
func (s *Store) SetMembershipEnabled(ctx context.Context, groupID, nodeID int64, enabled bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE group_memberships SET enabled = ? WHERE group_id = ? AND node_id = ?`,
		enabled, groupID, nodeID)
	if err != nil {
		return fmt.Errorf("set membership enabled: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set membership enabled: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListMemberships returns a group's memberships ordered by node id.
// With enabledOnly set, disabled members are filtered out.
func (s *Store) ListMemberships(ctx context.Context, groupID int64, enabledOnly bool) ([]fleet.GroupMembership, error) {
	query := `
		SELECT group_id, node_id, static_priority, weight, enabled
		FROM group_memberships WHERE group_id = ?`
	if enabledOnly {
		query += ` AND enabled = 1`
	}
	query += ` ORDER BY node_id`

	rows, err := s.db.QueryContext(ctx, query, groupID)
	if err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}
	defer rows.Close()

	var members []fleet.GroupMembership
	for rows.Next() {
		var m fleet.GroupMembership
		if err := rows.Scan(&m.GroupID, &m.NodeID, &m.StaticPriority, &m.Weight, &m.Enabled); err != nil {
			return nil, fmt.Errorf("list memberships: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}
