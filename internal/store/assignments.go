package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/angeloszaimis/exit-failover/internal/fleet"
)

// UpsertAssignment writes a client's group binding. Assigning to a new
// group clears the active exit so the next failover cycle performs the
// initial assignment.
func (s *Store) UpsertAssignment(ctx context.Context, a fleet.Assignment) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO assignments (client_id, exit_group_id, active_exit_id)
		VALUES (?, ?, ?)
		ON CONFLICT(client_id) DO UPDATE SET
			exit_group_id = excluded.exit_group_id,
			active_exit_id = excluded.active_exit_id`,
		a.ClientID, nullID(a.ExitGroupID), nullID(a.ActiveExitID))
	if err != nil {
		return fmt.Errorf("upsert assignment %q: %w", a.ClientID, err)
	}
	return nil
}

func scanAssignment(row interface{ Scan(...any) error }) (fleet.Assignment, error) {
	var (
		a      fleet.Assignment
		group  sql.NullInt64
		active sql.NullInt64
	)
	if err := row.Scan(&a.ClientID, &group, &active); err != nil {
		return fleet.Assignment{}, err
	}
	if group.Valid {
		a.ExitGroupID = &group.Int64
	}
	if active.Valid {
		a.ActiveExitID = &active.Int64
	}
	return a, nil
}

// GetAssignment fetches one client's assignment.
func (s *Store) GetAssignment(ctx context.Context, clientID string) (fleet.Assignment, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT client_id, exit_group_id, active_exit_id FROM assignments WHERE client_id = ?`,
		clientID)

	a, err := scanAssignment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return fleet.Assignment{}, ErrNotFound
	}
	if err != nil {
		return fleet.Assignment{}, fmt.Errorf("get assignment %q: %w", clientID, err)
	}
	return a, nil
}

// AssignmentsNeedingFailover returns every assignment bound to a group
// whose active exit is missing or currently failed, ordered by client id.
func (s *Store) AssignmentsNeedingFailover(ctx context.Context) ([]fleet.Assignment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT a.client_id, a.exit_group_id, a.active_exit_id
		FROM assignments a
		LEFT JOIN node_health h ON h.node_id = a.active_exit_id
		WHERE a.exit_group_id IS NOT NULL
		  AND (a.active_exit_id IS NULL OR h.status = 'failed')
		ORDER BY a.client_id`)
	if err != nil {
		return nil, fmt.Errorf("assignments needing failover: %w", err)
	}
	defer rows.Close()

	var assignments []fleet.Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, fmt.Errorf("assignments needing failover: %w", err)
		}
		assignments = append(assignments, a)
	}
	return assignments, rows.Err()
}

func nullID(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}
