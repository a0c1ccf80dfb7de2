// Package logger provides structured logging via slog, with JSON output
// in production and human-readable text output otherwise.
package logger
