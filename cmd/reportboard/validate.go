package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// validateCmd validates a config file without starting the server.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a config file",
	Long: `Validate a ReportBoard configuration file without starting the server.

This command parses the YAML, expands environment variables, checks every
field and expands grids into widgets. It's useful for CI/CD pipelines or
pre-deployment checks.

Exit codes:
  0 - Config is valid
  1 - Config is invalid (error details printed to stderr)

Example:
  reportboard validate -c config.yaml
  reportboard validate -c config.yaml --env-file .env.local`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
	addConfigFlags(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, widgets, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	direct := len(cfg.Widgets)
	fromGrids := len(widgets) - direct

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Config is valid!\n")
	fmt.Fprintf(out, "  Port:            %d\n", cfg.Port)
	fmt.Fprintf(out, "  Poll delay:      %s\n", cfg.PollDelay.Duration())
	fmt.Fprintf(out, "  Max concurrency: %d\n", cfg.MaxConcurrency)
	fmt.Fprintf(out, "  Widgets:         %d direct + %d from grids = %d total\n",
		direct, fromGrids, len(widgets))

	return nil
}
