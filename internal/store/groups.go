package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/angeloszaimis/exit-failover/internal/fleet"
)

// CreateNode registers an exit node. Names are unique.
func (s *Store) CreateNode(ctx context.Context, name, address string) (fleet.ExitNode, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO exit_nodes (name, address) VALUES (?, ?)`, name, address)
	if err != nil {
		if isUniqueViolation(err) {
			return fleet.ExitNode{}, ErrDuplicateNodeName
		}
		return fleet.ExitNode{}, fmt.Errorf("create node: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fleet.ExitNode{}, fmt.Errorf("create node: %w", err)
	}

	return s.GetNode(ctx, id)
}

// GetNode fetches one exit node by id.
func (s *Store) GetNode(ctx context.Context, id int64) (fleet.ExitNode, error) {
	var n fleet.ExitNode
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, address, created_at FROM exit_nodes WHERE id = ?`, id).
		Scan(&n.ID, &n.Name, &n.Address, &n.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return fleet.ExitNode{}, ErrNotFound
	}
	if err != nil {
		return fleet.ExitNode{}, fmt.Errorf("get node %d: %w", id, err)
	}
	return n, nil
}

// ListNodes returns all registered exit nodes ordered by id.
func (s *Store) ListNodes(ctx context.Context) ([]fleet.ExitNode, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, address, created_at FROM exit_nodes ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list nodes: %w", err)
	}
	defer rows.Close()

	var nodes []fleet.ExitNode
	for rows.Next() {
		var n fleet.ExitNode
		if err := rows.Scan(&n.ID, &n.Name, &n.Address, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("list nodes: %w", err)
		}
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}

// CreateGroup inserts a failover group. The group's ID field is
// ignored on input; the stored group is returned.
func (s *Store) CreateGroup(ctx context.Context, g fleet.FailoverGroup) (fleet.FailoverGroup, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO failover_groups
			(name, strategy, health_check_interval_s, health_check_timeout_s,
			 degraded_threshold_ms, failure_threshold, recovery_threshold)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		g.Name, string(g.Strategy),
		int64(g.HealthCheckInterval/time.Second), int64(g.HealthCheckTimeout/time.Second),
		g.DegradedThresholdMs, g.FailureThreshold, g.RecoveryThreshold)
	if err != nil {
		if isUniqueViolation(err) {
			return fleet.FailoverGroup{}, ErrDuplicateGroupName
		}
		return fleet.FailoverGroup{}, fmt.Errorf("create group: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fleet.FailoverGroup{}, fmt.Errorf("create group: %w", err)
	}

	return s.GetGroup(ctx, id)
}

// UpdateGroupThresholds updates the tunable fields of a group. Identity
// (id, name) is stable.
func (s *Store) UpdateGroupThresholds(ctx context.Context, g fleet.FailoverGroup) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE failover_groups
		SET strategy = ?, health_check_interval_s = ?, health_check_timeout_s = ?,
		    degraded_threshold_ms = ?, failure_threshold = ?, recovery_threshold = ?
		WHERE id = ?`,
		string(g.Strategy),
		int64(g.HealthCheckInterval/time.Second), int64(g.HealthCheckTimeout/time.Second),
		g.DegradedThresholdMs, g.FailureThreshold, g.RecoveryThreshold, g.ID)
	if err != nil {
		return fmt.Errorf("update group %d: %w", g.ID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update group %d: %w", g.ID, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteGroup removes a group; memberships cascade.
func (s *Store) DeleteGroup(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM failover_groups WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete group %d: %w", id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete group %d: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

const groupColumns = `id, name, strategy, health_check_interval_s, health_check_timeout_s,
	degraded_threshold_ms, failure_threshold, recovery_threshold`

func scanGroup(row interface{ Scan(...any) error }) (fleet.FailoverGroup, error) {
	var (
		g         fleet.FailoverGroup
		strategy  string
		intervalS int64
		timeoutS  int64
	)
	err := row.Scan(&g.ID, &g.Name, &strategy, &intervalS, &timeoutS,
		&g.DegradedThresholdMs, &g.FailureThreshold, &g.RecoveryThreshold)
	if err != nil {
		return fleet.FailoverGroup{}, err
	}

	g.Strategy, err = fleet.StrategyFromString(strategy)
	if err != nil {
		return fleet.FailoverGroup{}, err
	}
	g.HealthCheckInterval = time.Duration(intervalS) * time.Second
	g.HealthCheckTimeout = time.Duration(timeoutS) * time.Second
	return g, nil
}

// GetGroup fetches one group by id.
func (s *Store) GetGroup(ctx context.Context, id int64) (fleet.FailoverGroup, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+groupColumns+` FROM failover_groups WHERE id = ?`, id)

	g, err := scanGroup(row)
	if errors.Is(err, sql.ErrNoRows) {
		return fleet.FailoverGroup{}, ErrNotFound
	}
	if err != nil {
		return fleet.FailoverGroup{}, fmt.Errorf("get group %d: %w", id, err)
	}
	return g, nil
}

// GetGroupByName fetches one group by its unique name.
func (s *Store) GetGroupByName(ctx context.Context, name string) (fleet.FailoverGroup, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+groupColumns+` FROM failover_groups WHERE name = ?`, name)

	g, err := scanGroup(row)
	if errors.Is(err, sql.ErrNoRows) {
		return fleet.FailoverGroup{}, ErrNotFound
	}
	if err != nil {
		return fleet.FailoverGroup{}, fmt.Errorf("get group %q: %w", name, err)
	}
	return g, nil
}

// ListGroups returns all failover groups ordered by id.
func (s *Store) ListGroups(ctx context.Context) ([]fleet.FailoverGroup, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+groupColumns+` FROM failover_groups ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	defer rows.Close()

	var groups []fleet.FailoverGroup
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, fmt.Errorf("list groups: %w", err)
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}
