package store

import "fmt"

// migrations are applied in order, once each, tracked in
// schema_migrations. Never edit an entry after release; append a new one.
var migrations = []string{
	// 1: initial schema
	`
	CREATE TABLE exit_nodes (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		name       TEXT NOT NULL UNIQUE,
		address    TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE failover_groups (
		id                      INTEGER PRIMARY KEY AUTOINCREMENT,
		name                    TEXT NOT NULL UNIQUE,
		strategy                TEXT NOT NULL,
		health_check_interval_s INTEGER NOT NULL,
		health_check_timeout_s  INTEGER NOT NULL,
		degraded_threshold_ms   INTEGER NOT NULL,
		failure_threshold       INTEGER NOT NULL,
		recovery_threshold      INTEGER NOT NULL
	);

	CREATE TABLE group_memberships (
		group_id        INTEGER NOT NULL REFERENCES failover_groups(id) ON DELETE CASCADE,
		node_id         INTEGER NOT NULL REFERENCES exit_nodes(id),
		static_priority INTEGER NOT NULL DEFAULT 100,
		weight          INTEGER NOT NULL DEFAULT 1,
		enabled         INTEGER NOT NULL DEFAULT 1,
		PRIMARY KEY (group_id, node_id)
	);

	CREATE TABLE node_health (
		node_id               INTEGER PRIMARY KEY REFERENCES exit_nodes(id),
		status                TEXT NOT NULL DEFAULT 'healthy',
		latency_ms            REAL,
		last_check_at         TIMESTAMP,
		consecutive_failures  INTEGER NOT NULL DEFAULT 0,
		consecutive_successes INTEGER NOT NULL DEFAULT 0,
		last_success_at       TIMESTAMP,
		last_failure_at       TIMESTAMP,
		failure_reason        TEXT
	);

	CREATE TABLE assignments (
		client_id      TEXT PRIMARY KEY,
		exit_group_id  INTEGER REFERENCES failover_groups(id) ON DELETE SET NULL,
		active_exit_id INTEGER REFERENCES exit_nodes(id)
	);

	CREATE TABLE failover_events (
		id             INTEGER PRIMARY KEY AUTOINCREMENT,
		client_id      TEXT NOT NULL,
		group_id       INTEGER NOT NULL,
		from_exit_id   INTEGER,
		to_exit_id     INTEGER NOT NULL,
		trigger_reason TEXT NOT NULL,
		triggered_at   TIMESTAMP NOT NULL,
		success        INTEGER NOT NULL,
		error_message  TEXT
	);

	CREATE INDEX idx_failover_events_group ON failover_events(group_id, triggered_at);
	CREATE INDEX idx_failover_events_client ON failover_events(client_id, triggered_at);
	`,
}

func (s *Store) migrate() error {
	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    INTEGER PRIMARY KEY,
			applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	var current int
	if err := s.db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&current); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	for i := current; i < len(migrations); i++ {
		version := i + 1

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", version, err)
		}

		if _, err := tx.Exec(migrations[i]); err != nil {
			tx.Rollback()
			return fmt.Errorf("apply migration %d: %w", version, err)
		}
		if _, err := tx.Exec(`INSERT INTO schema_migrations (version) VALUES (?)`, version); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", version, err)
		}
	}

	return nil
}
