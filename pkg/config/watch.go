package config

import (
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/0xmhha/fswatch/pkg/logger"
)

// WatchFile reloads the configuration file whenever it changes and calls
// onChange with each successfully loaded configuration. Reload failures
// are logged and the previous configuration stays in effect.
//
// The parent directory is watched rather than the file itself so that
// editors which replace the file (rename over it) still trigger a reload.
//
// Returns a stop function that releases the underlying watcher.
func WatchFile(path string, log logger.Logger, onChange func(*Config)) (func(), error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path: %w", err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create config watcher: %w", err)
	}

	if err := fw.Add(filepath.Dir(abs)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to watch config directory: %w", err)
	}

	go func() {
		for {
			select {
			case ev, ok := <-fw.Events:
				if !ok {
					return
				}
				if ev.Name != abs {
					continue
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
					continue
				}

				cfg, err := LoadFromFile(abs)
				if err != nil {
					log.Warn("config reload failed", "path", abs, "error", err)
					continue
				}
				log.Info("config reloaded", "path", abs)
				onChange(cfg)

			case err, ok := <-fw.Errors:
				if !ok {
					return
				}
				log.Warn("config watcher error", "error", err)
			}
		}
	}()

	return func() { fw.Close() }, nil
}
