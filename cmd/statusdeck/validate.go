package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/statusdeck/statusdeck/config"
)

// validateCmd validates a config file without starting the manager.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a config file",
	Long: `Validate a statusdeck configuration file without starting the manager.

This command parses the YAML, expands environment variables, and validates
all fields. It's useful for CI/CD pipelines or pre-deployment checks.

Exit codes:
  0 - Config is valid
  1 - Config is invalid (error details printed to stderr)

Example:
  statusdeck validate -c config.yaml
  statusdeck validate --config /etc/statusdeck/config.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = validateCmd.MarkFlagRequired("config")
}

func runValidate(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	profiled := 0
	for _, w := range cfg.Widgets {
		if w.Profile != "" {
			profiled++
		}
	}

	fmt.Printf("Config is valid!\n")
	fmt.Printf("  Port:          %d\n", cfg.Port)
	fmt.Printf("  Poll interval: %s\n", cfg.PollInterval.Duration())
	fmt.Printf("  Profiles:      %d\n", len(cfg.Profiles))
	fmt.Printf("  Widgets:       %d (%d on profiles, %d inline)\n",
		len(cfg.Widgets), profiled, len(cfg.Widgets)-profiled)

	return nil
}
