// Package selector implements the exit-selection strategies a failover
// group can run:
//
//   - Priority: smallest static priority value wins
//   - Latency: smallest measured latency wins; unmeasured nodes sort last
//   - Round Robin: least recently selected node wins
//
// All strategies operate on the healthy, enabled membership the caller
// has already filtered, and break ties by smallest node id so selection
// is deterministic.
package selector
