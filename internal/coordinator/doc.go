// Package coordinator orchestrates the two cycles of the failover
// engine. The health-check cycle probes every enabled group member and
// persists the circuit breaker's judgment; the failover cycle moves
// clients whose active exit is missing or failed onto the exit their
// group's strategy picks, recording each move in the event history.
//
// ProcessFailovers is serialized by a process-wide mutex held from the
// first read to the last committed write, so concurrent invocations
// behave like a strict serial execution. RunHealthChecks deliberately
// does not share that lock; the cycles are idempotent and convergent
// over repeated ticks, and a failover cycle reading health mid-update
// only ever sees a record the health cycle committed.
package coordinator
