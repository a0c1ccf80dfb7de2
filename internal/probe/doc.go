// Package probe defines the reachability-probe contract the failover
// engine depends on, plus the two built-in implementations:
//
//   - TCP: dials the node's address and measures connect time
//   - HTTP: sends GET /health and accepts any 2xx response
//
// A probe reports (reachable, latency); ordinary network failure is a
// normal unreachable outcome, never an error. The engine treats a probe
// that exceeds its deadline the same as an unreachable node.
package probe
