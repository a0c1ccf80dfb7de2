package store

import (
	"database/sql"
	"errors"
	"fmt"

	sqlite3 "github.com/mattn/go-sqlite3"
)

var (
	// ErrDuplicateGroupName is returned when creating a group whose
	// name is already taken.
	ErrDuplicateGroupName = errors.New("duplicate group name")

	// ErrDuplicateNodeName is returned when registering a node whose
	// name is already taken.
	ErrDuplicateNodeName = errors.New("duplicate node name")

	// ErrDuplicateMembership is returned when a node is added to a
	// group it already belongs to.
	ErrDuplicateMembership = errors.New("duplicate membership")

	// ErrNotFound is returned when a referenced group, node, or
	// assignment does not exist.
	ErrNotFound = errors.New("not found")
)

// Store wraps the SQLite database holding groups, memberships, node
// health, assignments, and the failover event history.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the SQLite database at path and
// applies any pending migrations. Foreign keys are enabled so group
// deletion cascades to memberships.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", "file:"+path+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite handles one writer at a time; a single connection avoids
	// SQLITE_BUSY under concurrent cycles.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// isUniqueViolation reports whether err is a SQLite unique-constraint
// failure, used to map driver errors onto the typed sentinels above.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}
