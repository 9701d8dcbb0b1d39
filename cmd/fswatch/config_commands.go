package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/0xmhha/fswatch/pkg/config"
)

// configCommand handles configuration management subcommands.
type configCommand struct {
	configPath string
}

// Execute runs the config command with given arguments.
func (c *configCommand) Execute(args []string) error {
	if len(args) == 0 {
		return c.showHelp()
	}

	subcommand := args[0]
	subargs := args[1:]

	switch subcommand {
	case "show":
		return c.runShow(subargs)
	case "path":
		return c.runPath()
	case "init":
		return c.runInit(subargs)
	case "help":
		return c.showHelp()
	default:
		return fmt.Errorf("unknown config subcommand: %s", subcommand)
	}
}

// runShow displays the current configuration.
func (c *configCommand) runShow(args []string) error {
	fs := flag.NewFlagSet("config show", flag.ExitOnError)
	format := fs.String("format", "yaml", "output format (yaml, json)")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(c.configPath)
	if err != nil {
		return err
	}

	switch *format {
	case "json":
		return c.showJSON(cfg)
	default:
		return c.showYAML(cfg)
	}
}

// showYAML displays configuration in YAML format.
func (c *configCommand) showYAML(cfg *config.Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	fmt.Println("# Current Configuration")
	fmt.Println("# Source: ", c.getConfigSource())
	fmt.Println()
	fmt.Print(string(data))
	return nil
}

// showJSON displays configuration in JSON format.
func (c *configCommand) showJSON(cfg *config.Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	fmt.Println(string(data))
	return nil
}

// runPath shows the configuration file search paths.
func (c *configCommand) runPath() error {
	fmt.Println("Configuration file search paths (in order of precedence):")
	fmt.Println()

	for i, p := range c.searchPaths() {
		exists := "not found"
		if _, err := os.Stat(p); err == nil {
			exists = "found"
		}
		fmt.Printf("  %d. %s [%s]\n", i+1, p, exists)
	}

	fmt.Println()
	fmt.Println("Active configuration:", c.getConfigSource())
	return nil
}

// runInit writes a default configuration file.
func (c *configCommand) runInit(args []string) error {
	fs := flag.NewFlagSet("config init", flag.ExitOnError)
	force := fs.Bool("force", false, "overwrite an existing config file")
	output := fs.String("output", "", "output path for config file (default: ~/.config/fswatch/config.yaml)")

	if err := fs.Parse(args); err != nil {
		return err
	}

	outputPath := *output
	if outputPath == "" {
		outputPath = filepath.Join(os.Getenv("HOME"), ".config", "fswatch", "config.yaml")
	}

	if _, err := os.Stat(outputPath); err == nil && !*force {
		return fmt.Errorf("config file already exists at %s (use -force to overwrite)", outputPath)
	}

	if err := config.Save(config.Default(), outputPath); err != nil {
		return err
	}

	fmt.Printf("Wrote default configuration to: %s\n", outputPath)
	return nil
}

// searchPaths returns the config file locations in precedence order.
func (c *configCommand) searchPaths() []string {
	if c.configPath != "" {
		return []string{c.configPath}
	}
	return []string{
		"./config.yaml",
		filepath.Join(os.Getenv("HOME"), ".config", "fswatch", "config.yaml"),
	}
}

// getConfigSource returns the path of the active configuration file.
func (c *configCommand) getConfigSource() string {
	for _, p := range c.searchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return "defaults (no config file found)"
}

// showHelp displays help for config command.
func (c *configCommand) showHelp() error {
	help := `Config - Configuration management

Usage:
  fswatch config <subcommand> [flags]

Subcommands:
  show      Display current configuration
  path      Show configuration file paths
  init      Write a default configuration file

Show Flags:
  -format   Output format (yaml, json) (default: yaml)

Init Flags:
  -force    Overwrite an existing config file
  -output   Output path for config file

Examples:
  # Show current configuration
  fswatch config show

  # Show configuration in JSON format
  fswatch config show -format json

  # Show configuration file paths
  fswatch config path

  # Write a default configuration file
  fswatch config init

  # Overwrite an existing one
  fswatch config init -force
`
	fmt.Print(help)
	return nil
}
