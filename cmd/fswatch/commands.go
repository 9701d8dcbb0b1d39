package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	bolt "go.etcd.io/bbolt"
	"golang.org/x/term"

	"github.com/0xmhha/fswatch/pkg/config"
	"github.com/0xmhha/fswatch/pkg/logger"
	"github.com/0xmhha/fswatch/pkg/store"
	"github.com/0xmhha/fswatch/pkg/watcher"
	"github.com/0xmhha/fswatch/pkg/watchkey"
)

// loadConfig loads configuration, honoring an explicit config path.
func loadConfig(configPath string) (*config.Config, error) {
	cfg, err := config.NewLoader(configPath).Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// newLogger creates a logger from the configured logging settings.
func newLogger(cfg *config.Config) logger.Logger {
	return logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
}

// openJournal opens the BoltDB registration journal.
func openJournal(cfg *config.Config) (*bolt.DB, store.RegistrationStore, error) {
	db, err := bolt.Open(cfg.Storage.DBPath, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open journal %s: %w", cfg.Storage.DBPath, err)
	}

	st, err := store.NewBoltStore(db)
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to initialize journal: %w", err)
	}

	return db, st, nil
}

// watchCommand watches directories and prints events to the terminal.
type watchCommand struct {
	paths      []string
	kinds      string
	journal    bool
	configPath string
}

// Execute runs the watch command.
func (c *watchCommand) Execute() error {
	cfg, err := loadConfig(c.configPath)
	if err != nil {
		return err
	}

	log := newLogger(cfg)

	kinds, err := c.resolveKinds(cfg)
	if err != nil {
		return err
	}

	svc, err := watcher.New(watcher.Config{
		MountPoint:      cfg.MountPoint,
		PollTimeout:     cfg.Watch.PollTimeout,
		EventBufferSize: cfg.Watch.EventBufferSize,
	}, log)
	if err != nil {
		return fmt.Errorf("failed to create watch service: %w", err)
	}
	defer func() {
		if err := svc.Close(); err != nil {
			log.Error("failed to close watch service", "error", err)
		}
	}()

	var journal store.RegistrationStore
	if c.journal {
		db, st, err := openJournal(cfg)
		if err != nil {
			return err
		}
		defer func() {
			if err := db.Close(); err != nil {
				log.Error("failed to close journal", "error", err)
			}
		}()
		journal = st
	}

	for _, path := range c.paths {
		key, err := svc.Register(path, kinds)
		if err != nil {
			return fmt.Errorf("failed to register %s: %w", path, err)
		}
		if journal != nil {
			if err := journal.Save(key.Watchable(), kinds); err != nil {
				return fmt.Errorf("failed to journal %s: %w", path, err)
			}
		}
	}

	interactive := term.IsTerminal(int(os.Stdout.Fd()))
	if interactive {
		fmt.Printf("Watching %d directorie(s) for %s - Press Ctrl+C to stop\n",
			len(c.paths), kinds)
		fmt.Println(strings.Repeat("-", 60))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	for {
		key, err := svc.Take(ctx)
		if err != nil {
			if ctx.Err() != nil || err == watchkey.ErrQueueClosed {
				if interactive {
					fmt.Println("\nStopping watch...")
				}
				return nil
			}
			return fmt.Errorf("failed to take events: %w", err)
		}

		now := time.Now().Format("15:04:05")
		for _, ev := range key.Events() {
			if ev.Name != "" {
				fmt.Printf("%s  %-8s  %s  %s\n", now, ev.Kind, key.Watchable(), ev.Name)
			} else {
				fmt.Printf("%s  %-8s  %s\n", now, ev.Kind, key.Watchable())
			}
		}
		key.Reset()
	}
}

// resolveKinds parses the -kinds flag, falling back to the configured
// default kind set.
func (c *watchCommand) resolveKinds(cfg *config.Config) (watchkey.Kind, error) {
	if c.kinds == "" {
		return cfg.DefaultKinds()
	}

	kinds, err := watchkey.ParseKinds(c.kinds)
	if err != nil {
		return 0, fmt.Errorf("invalid -kinds value %q: %w", c.kinds, err)
	}
	return kinds, nil
}

// pathsCommand lists persisted watch registrations.
type pathsCommand struct {
	configPath string
}

// Execute runs the paths command.
func (c *pathsCommand) Execute() error {
	cfg, err := loadConfig(c.configPath)
	if err != nil {
		return err
	}

	log := newLogger(cfg)

	db, journal, err := openJournal(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("failed to close journal", "error", err)
		}
	}()

	regs, err := journal.All()
	if err != nil {
		return fmt.Errorf("failed to read journal: %w", err)
	}

	if len(regs) == 0 {
		fmt.Println("No persisted registrations")
		return nil
	}

	fmt.Printf("Found %d registration(s):\n\n", len(regs))
	for _, reg := range regs {
		fmt.Printf("  %s\n", reg.Path)
		fmt.Printf("    Kinds: %s\n", reg.Kinds)
		fmt.Println()
	}

	return nil
}
