package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/angeloszaimis/exit-failover/internal/fleet"
)

// RecordFailover commits the one hard transactional pair in the engine:
// the client's assignment flips to the new exit and the failover event
// lands in the history, together or not at all. The stored event (with
// its assigned id) is returned.
func (s *Store) RecordFailover(ctx context.Context, e fleet.FailoverEvent) (fleet.FailoverEvent, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fleet.FailoverEvent{}, fmt.Errorf("record failover: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE assignments SET active_exit_id = ? WHERE client_id = ?`,
		e.ToExitID, e.ClientID)
	if err != nil {
		return fleet.FailoverEvent{}, fmt.Errorf("record failover: update assignment: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fleet.FailoverEvent{}, fmt.Errorf("record failover: %w", err)
	}
	if n == 0 {
		return fleet.FailoverEvent{}, ErrNotFound
	}

	if e.TriggeredAt.IsZero() {
		e.TriggeredAt = time.Now().UTC()
	}

	ins, err := tx.ExecContext(ctx, `
		INSERT INTO failover_events
			(client_id, group_id, from_exit_id, to_exit_id, trigger_reason,
			 triggered_at, success, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ClientID, e.GroupID, nullID(e.FromExitID), e.ToExitID,
		string(e.Reason), e.TriggeredAt, e.Success, nullString(e.ErrorMessage))
	if err != nil {
		return fleet.FailoverEvent{}, fmt.Errorf("record failover: insert event: %w", err)
	}

	e.ID, err = ins.LastInsertId()
	if err != nil {
		return fleet.FailoverEvent{}, fmt.Errorf("record failover: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fleet.FailoverEvent{}, fmt.Errorf("record failover: commit: %w", err)
	}
	return e, nil
}

// LastSelections returns, for one group, the most recent time each node
// was the target of a failover event. Nodes never selected are absent.
// Round-robin selection is driven by this query.
func (s *Store) LastSelections(ctx context.Context, groupID int64) (map[int64]time.Time, error) {
	// The max is folded here rather than with MAX() in SQL: aggregate
	// results lose the column's declared type, which the driver needs
	// to yield time.Time.
	rows, err := s.db.QueryContext(ctx, `
		SELECT to_exit_id, triggered_at
		FROM failover_events
		WHERE group_id = ?`, groupID)
	if err != nil {
		return nil, fmt.Errorf("last selections: %w", err)
	}
	defer rows.Close()

	last := make(map[int64]time.Time)
	for rows.Next() {
		var (
			nodeID int64
			at     time.Time
		)
		if err := rows.Scan(&nodeID, &at); err != nil {
			return nil, fmt.Errorf("last selections: %w", err)
		}
		if at.After(last[nodeID]) {
			last[nodeID] = at
		}
	}
	return last, rows.Err()
}

// EventFilter narrows an event history query. Zero values match everything.
type EventFilter struct {
	GroupID  int64
	ClientID string
	Limit    int
}

// Events returns failover history, newest first.
func (s *Store) Events(ctx context.Context, f EventFilter) ([]fleet.FailoverEvent, error) {
	query := `
		SELECT id, client_id, group_id, from_exit_id, to_exit_id, trigger_reason,
		       triggered_at, success, error_message
		FROM failover_events WHERE 1=1`
	var args []any

	if f.GroupID != 0 {
		query += ` AND group_id = ?`
		args = append(args, f.GroupID)
	}
	if f.ClientID != "" {
		query += ` AND client_id = ?`
		args = append(args, f.ClientID)
	}
	query += ` ORDER BY triggered_at DESC, id DESC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []fleet.FailoverEvent
	for rows.Next() {
		var (
			e      fleet.FailoverEvent
			from   sql.NullInt64
			reason string
			errMsg sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.ClientID, &e.GroupID, &from, &e.ToExitID,
			&reason, &e.TriggeredAt, &e.Success, &errMsg); err != nil {
			return nil, fmt.Errorf("query events: %w", err)
		}
		if from.Valid {
			e.FromExitID = &from.Int64
		}
		e.Reason = fleet.TriggerReason(reason)
		if errMsg.Valid {
			e.ErrorMessage = &errMsg.String
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
