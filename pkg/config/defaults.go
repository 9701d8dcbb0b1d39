package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/0xmhha/fswatch/pkg/ahafs"
)

// Default returns a configuration with sensible default values.
func Default() *Config {
	return &Config{
		MountPoint: ahafs.DefaultMountPoint,
		Watch: WatchConfig{
			PollTimeout:     ahafs.DefaultPollTimeout,
			EventBufferSize: ahafs.EventBufferSize,
			Kinds:           "create,delete,modify",
		},
		Server: ServerConfig{
			Addr:           ":8420",
			SendBufferSize: 64,
			WriteTimeout:   10 * time.Second,
		},
		Storage: StorageConfig{
			DBPath: defaultDBPath(),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: "stderr",
			Format: "text",
		},
	}
}

// defaultDBPath returns the default registration journal path.
//
// Returns: ~/.config/fswatch/registrations.db.
func defaultDBPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./registrations.db"
	}

	return filepath.Join(homeDir, ".config", "fswatch", "registrations.db")
}

// defaultConfigPath returns the default configuration file path.
//
// Returns: ~/.config/fswatch/config.yaml.
func defaultConfigPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./config.yaml"
	}

	return filepath.Join(homeDir, ".config", "fswatch", "config.yaml")
}
