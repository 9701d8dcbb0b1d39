// Package main provides the fswatch CLI application.
//
// fswatch monitors directories through the AHA event facility and reports
// create, delete and modify events, either on the terminal or streamed to
// WebSocket subscribers.
package main

import (
	"flag"
	"fmt"
	"os"
)

// version is set during build time.
var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run executes the main application logic.
func run() error {
	// Define global flags.
	configPath := flag.String("config", "", "path to configuration file")
	showVersion := flag.Bool("version", false, "show version information")

	// Parse command.
	flag.Parse()

	// Handle version flag.
	if *showVersion {
		fmt.Printf("fswatch %s\n", version)
		return nil
	}

	// Get command.
	args := flag.Args()
	if len(args) == 0 {
		return showUsage()
	}

	command := args[0]

	switch command {
	case "watch":
		return runWatchCommand(*configPath, args[1:])
	case "serve":
		return runServeCommand(*configPath, args[1:])
	case "paths":
		return runPathsCommand(*configPath)
	case "config":
		return runConfigCommand(*configPath, args[1:])
	case "version":
		fmt.Printf("fswatch %s\n", version)
		return nil
	case "help":
		return showUsage()
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

// runWatchCommand runs the watch command.
func runWatchCommand(configPath string, args []string) error {
	// Define watch-specific flags.
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	kinds := fs.String("kinds", "", "event kinds to watch (comma-separated: create,delete,modify,overflow)")
	journal := fs.Bool("journal", false, "persist registrations to the journal for serve to restore")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if fs.NArg() == 0 {
		return fmt.Errorf("watch requires at least one directory")
	}

	cmd := &watchCommand{
		paths:      fs.Args(),
		kinds:      *kinds,
		journal:    *journal,
		configPath: configPath,
	}

	return cmd.Execute()
}

// runServeCommand runs the serve command.
func runServeCommand(configPath string, args []string) error {
	// Define serve-specific flags.
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	addr := fs.String("addr", "", "listen address (overrides configuration)")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cmd := &serveCommand{
		addr:       *addr,
		configPath: configPath,
	}

	return cmd.Execute()
}

// runPathsCommand runs the paths command.
func runPathsCommand(configPath string) error {
	cmd := &pathsCommand{
		configPath: configPath,
	}
	return cmd.Execute()
}

// runConfigCommand runs the config command.
func runConfigCommand(configPath string, args []string) error {
	cmd := &configCommand{
		configPath: configPath,
	}
	return cmd.Execute(args)
}

// showUsage displays usage information.
func showUsage() error {
	usage := `fswatch - filesystem event monitoring through the AHA event facility

Usage:
  fswatch [flags] <command> [command flags]

Commands:
  watch       Watch directories and print events to the terminal
  serve       Run the event streaming daemon
  paths       List persisted watch registrations
  config      Configuration management (show, path, init)
  version     Show version information
  help        Show this help message

Global Flags:
  -config     Path to configuration file
  -version    Show version information

Watch Command Flags:
  -kinds      Event kinds to watch (comma-separated: create,delete,modify,overflow)
  -journal    Persist registrations to the journal for serve to restore

Serve Command Flags:
  -addr       Listen address (overrides configuration)

Examples:
  # Watch a directory for creates and deletes
  fswatch watch -kinds create,delete /var/spool/input

  # Watch several directories with the configured default kinds
  fswatch watch /var/spool/input /var/log/jobs

  # Watch and remember the registration across daemon restarts
  fswatch watch -journal /var/spool/input

  # Run the streaming daemon
  fswatch serve

  # Run the daemon on a specific address
  fswatch serve -addr :9000

  # List persisted registrations
  fswatch paths

  # Configuration management
  fswatch config show
  fswatch config path
  fswatch config init

Version: %s
`

	fmt.Printf(usage, version)
	return nil
}
