// Package core provides shared constants and helpers for the HomeIQ offline layer.
package core

import (
	"os"
	"path/filepath"
	"time"
)

// Storage layout
const (
	CachePrefix = "cache:"
	QueueKey    = "offline_queue"
)

// Cache defaults
const (
	DefaultCacheExpiry = 15 * time.Minute
)

// Queue limits
const (
	MaxQueueSize = 100
	MaxRetries   = 3
)

// Environment
const (
	EnvPrefix  = "HOMEIQ"
	UserEnvVar = "HOMEIQ_USER_ID"
)

// TimestampFmt is the ISO-8601 layout used for queue item timestamps.
const TimestampFmt = "2006-01-02T15:04:05.000Z07:00"

// DataRoot returns the default directory for on-disk stores.
func DataRoot() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "homeiq")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".homeiq")
}

// Version is the current CLI version.
const Version = "0.3.0"
