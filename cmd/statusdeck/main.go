// Package main is the entry point for the statusdeck CLI.
//
// Statusdeck can be run either as a library (SDK) or as a standalone binary
// with YAML configuration. This CLI provides the standalone binary approach.
//
// Usage:
//
//	statusdeck serve -c config.yaml    # Start polling the configured widgets
//	statusdeck validate -c config.yaml # Validate configuration
//	statusdeck version                 # Show version info
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information - set by GoReleaser at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCmd is the base command when called without subcommands.
// It just displays help - actual functionality is in subcommands.
var rootCmd = &cobra.Command{
	Use:   "statusdeck",
	Short: "A polling lifecycle manager for status widgets",
	Long: `Statusdeck polls project-management and CI APIs on behalf of
configured status widgets, with retry, connection pooling, and failure
classification built in.

It exposes the widgets' current render states over a small HTTP API with
Server-Sent Events for live updates.

Quick start:
  1. Create a config file (statusdeck.yaml)
  2. Run: statusdeck serve -c statusdeck.yaml
  3. GET http://localhost:8080/api/widgets

Example config:
  port: 8080
  poll_interval: 60s
  widgets:
    - id: build
      endpoint: https://ci.example.com
      credential: ${CI_TOKEN}
      entity: pipeline-42`,
	// No Run/RunE means this just shows help when called without subcommands
}

// Execute runs the root command.
// This is the main entry point called from main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		// Cobra already prints the error, just exit with code 1
		os.Exit(1)
	}
}

func main() {
	Execute()
}

// versionCmd prints version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print the version, commit hash, and build date of this statusdeck binary.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("statusdeck %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", date)
	},
}

func init() {
	// Register subcommands with root
	rootCmd.AddCommand(versionCmd)
}
