package config

import "time"

// Default values for configuration.
const (
	// Server defaults
	DefaultServerHost      = "0.0.0.0"
	DefaultServerPort      = 8080
	DefaultReadTimeout     = 10 * time.Second
	DefaultWriteTimeout    = 10 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 15 * time.Second
	DefaultMaxSnapshotMB   = 10
	DefaultCleanupInterval = 1 * time.Hour

	// Export defaults
	DefaultMediaPoolSize = 4
	DefaultMediaTimeout  = 30 * time.Second
	DefaultTaskTimeout   = 600 * time.Second
	DefaultTaskTTL       = 24 * time.Hour
	DefaultCacheTTL      = 60 * time.Minute

	// Backend defaults
	DefaultBackendTimeout = 30 * time.Second

	// Logging defaults
	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)
