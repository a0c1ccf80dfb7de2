// Package store persists the failover engine's state in SQLite.
//
// It owns the schema (applied through explicit, versioned migrations at
// startup), the typed errors mutating operations surface for constraint
// violations, and the one hard transactional guarantee the engine
// needs: an assignment update and its failover event commit together or
// not at all.
package store
