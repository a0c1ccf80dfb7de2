// Package config handles loading and parsing of configuration from YAML files
// and environment variables. It defines the application configuration structure
// including the metrics server address, database path, probe kind, scheduler
// tick intervals, and logging level.
package config
