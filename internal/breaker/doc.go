// Package breaker implements the hysteresis-based health state machine
// for exit nodes.
//
// A node moves between three states based on probe outcomes:
//
//   - HEALTHY: probes succeed within the latency budget
//   - DEGRADED: slow responses or a short run of failures
//   - FAILED: consecutive failures reached the group's threshold
//
// Evaluate is a pure function of (current record, probe outcome, group
// thresholds); persisting the returned record is the caller's job. Two
// asymmetries are deliberate: a single success whose latency exceeds the
// degraded threshold demotes even a HEALTHY node immediately, and a
// FAILED node is stepped down at most one level per successful probe, so
// it can never stay FAILED after any success.
package breaker
