// Package metrics exposes the failover engine's Prometheus
// instrumentation: probe outcomes, health-status transitions, failover
// events, and cycle durations. Register installs the collectors on the
// default registry exactly once.
package metrics
