// Package httpserver wraps http.Server with address validation and
// graceful shutdown. The serve command uses it to expose the
// Prometheus metrics endpoint.
package httpserver
