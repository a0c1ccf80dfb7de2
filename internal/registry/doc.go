// Package registry is the administrative surface over the failover
// store: creating groups, managing membership, registering nodes, and
// binding clients to groups. Every mutating operation validates its
// input first and has no effect when validation fails.
package registry
