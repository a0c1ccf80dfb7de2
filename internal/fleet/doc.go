// Package fleet defines the entities shared by the failover engine:
// exit nodes, failover groups and their memberships, per-node health
// records, client assignments, and the append-only failover event log.
//
// The enum-like types (HealthStatus, Strategy, TriggerReason) carry
// their wire representation and a parse function each, so callers never
// compare raw strings.
package fleet
