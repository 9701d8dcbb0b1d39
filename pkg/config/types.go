// Package config provides configuration management for fswatch.
//
// Configuration is loaded from multiple sources with the following precedence:
// 1. Environment variables (highest priority)
// 2. Configuration file
// 3. Default values (lowest priority)
//
// Example usage:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("mount point: %s\n", cfg.MountPoint)
package config

import (
	"time"

	"github.com/0xmhha/fswatch/pkg/watchkey"
)

// Config represents the complete application configuration.
//
// Invariants:
// - MountPoint must be non-empty
// - PollTimeout must be > 0
// - EventBufferSize must be > 0
// - Kinds must parse to a non-empty kind set
// - Server.Addr must be non-empty.
type Config struct {
	// Mount point of the event monitoring filesystem
	MountPoint string `yaml:"mount_point"`

	// Watch settings
	Watch WatchConfig `yaml:"watch"`

	// Streaming server settings
	Server ServerConfig `yaml:"server"`

	// Storage settings
	Storage StorageConfig `yaml:"storage"`

	// Logging settings
	Logging LoggingConfig `yaml:"logging"`
}

// WatchConfig contains poller settings.
type WatchConfig struct {
	// How long each native poll blocks waiting for events
	PollTimeout time.Duration `yaml:"poll_timeout"`

	// Size of the raw event buffer in bytes
	EventBufferSize int `yaml:"event_buffer_size"`

	// Default event kinds for registrations that do not specify any
	// (comma-separated: create, delete, modify, overflow)
	Kinds string `yaml:"kinds"`
}

// ServerConfig contains streaming server settings.
type ServerConfig struct {
	// Listen address for the event streaming server
	Addr string `yaml:"addr"`

	// Per-client outbound queue length
	SendBufferSize int `yaml:"send_buffer_size"`

	// Bound on each WebSocket write
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// StorageConfig contains storage-related settings.
type StorageConfig struct {
	// Path to the BoltDB registration journal
	DBPath string `yaml:"db_path"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	// Log level (debug, info, warn, error)
	Level string `yaml:"level"`

	// Log output destination (stdout, stderr, discard, file path)
	Output string `yaml:"output"`

	// Log format (text, json)
	Format string `yaml:"format"`
}

// DefaultKinds parses the configured default kind set.
func (c *Config) DefaultKinds() (watchkey.Kind, error) {
	return watchkey.ParseKinds(c.Watch.Kinds)
}

// Validate checks if the configuration satisfies all invariants.
//
// Thread-safety: This method is read-only and thread-safe.
func (c *Config) Validate() error {
	if c.MountPoint == "" {
		return ErrNoMountPoint
	}

	if c.Watch.PollTimeout <= 0 {
		return ErrInvalidPollTimeout
	}
	if c.Watch.EventBufferSize <= 0 {
		return ErrInvalidEventBufferSize
	}
	if _, err := watchkey.ParseKinds(c.Watch.Kinds); err != nil {
		return ErrInvalidKinds
	}

	if c.Server.Addr == "" {
		return ErrNoServerAddr
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[c.Logging.Level] {
		return ErrInvalidLogLevel
	}

	validFormats := map[string]bool{
		"text": true,
		"json": true,
	}
	if !validFormats[c.Logging.Format] {
		return ErrInvalidLogFormat
	}

	return nil
}
