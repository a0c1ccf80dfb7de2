package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/angeloszaimis/exit-failover/internal/fleet"
)

// UpsertNodeHealth writes a node's health record, keyed by node id.
func (s *Store) UpsertNodeHealth(ctx context.Context, h fleet.NodeHealth) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO node_health
			(node_id, status, latency_ms, last_check_at, consecutive_failures,
			 consecutive_successes, last_success_at, last_failure_at, failure_reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(node_id) DO UPDATE SET
			status = excluded.status,
			latency_ms = excluded.latency_ms,
			last_check_at = excluded.last_check_at,
			consecutive_failures = excluded.consecutive_failures,
			consecutive_successes = excluded.consecutive_successes,
			last_success_at = excluded.last_success_at,
			last_failure_at = excluded.last_failure_at,
			failure_reason = excluded.failure_reason`,
		h.NodeID, string(h.Status), nullFloat(h.LatencyMs), nullTime(&h.LastCheckAt),
		h.ConsecutiveFailures, h.ConsecutiveSuccesses,
		nullTime(h.LastSuccessAt), nullTime(h.LastFailureAt), nullString(h.FailureReason))
	if err != nil {
		return fmt.Errorf("upsert node health %d: %w", h.NodeID, err)
	}
	return nil
}

func scanNodeHealth(row interface{ Scan(...any) error }) (fleet.NodeHealth, error) {
	var (
		h           fleet.NodeHealth
		status      string
		latency     sql.NullFloat64
		lastCheck   sql.NullTime
		lastSuccess sql.NullTime
		lastFailure sql.NullTime
		reason      sql.NullString
	)
	err := row.Scan(&h.NodeID, &status, &latency, &lastCheck,
		&h.ConsecutiveFailures, &h.ConsecutiveSuccesses,
		&lastSuccess, &lastFailure, &reason)
	if err != nil {
		return fleet.NodeHealth{}, err
	}

	h.Status, err = fleet.HealthStatusFromString(status)
	if err != nil {
		return fleet.NodeHealth{}, err
	}
	if latency.Valid {
		h.LatencyMs = &latency.Float64
	}
	if lastCheck.Valid {
		h.LastCheckAt = lastCheck.Time
	}
	if lastSuccess.Valid {
		h.LastSuccessAt = &lastSuccess.Time
	}
	if lastFailure.Valid {
		h.LastFailureAt = &lastFailure.Time
	}
	if reason.Valid {
		h.FailureReason = &reason.String
	}
	return h, nil
}

const healthColumns = `node_id, status, latency_ms, last_check_at, consecutive_failures,
	consecutive_successes, last_success_at, last_failure_at, failure_reason`

// GetNodeHealth fetches one node's health record.
func (s *Store) GetNodeHealth(ctx context.Context, nodeID int64) (fleet.NodeHealth, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+healthColumns+` FROM node_health WHERE node_id = ?`, nodeID)

	h, err := scanNodeHealth(row)
	if errors.Is(err, sql.ErrNoRows) {
		return fleet.NodeHealth{}, ErrNotFound
	}
	if err != nil {
		return fleet.NodeHealth{}, fmt.Errorf("get node health %d: %w", nodeID, err)
	}
	return h, nil
}

// ListNodeHealth returns all health records ordered by node id.
func (s *Store) ListNodeHealth(ctx context.Context) ([]fleet.NodeHealth, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+healthColumns+` FROM node_health ORDER BY node_id`)
	if err != nil {
		return nil, fmt.Errorf("list node health: %w", err)
	}
	defer rows.Close()

	var records []fleet.NodeHealth
	for rows.Next() {
		h, err := scanNodeHealth(rows)
		if err != nil {
			return nil, fmt.Errorf("list node health: %w", err)
		}
		records = append(records, h)
	}
	return records, rows.Err()
}

func nullFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullString(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullTime(v *time.Time) any {
	if v == nil || v.IsZero() {
		return nil
	}
	return *v
}
