// Package main is the entry point for the reportboard CLI.
//
// ReportBoard can be used as a library (SDK) or as a standalone binary with
// YAML configuration. This CLI provides the standalone binary approach.
//
// Usage:
//
//	reportboard serve -c config.yaml    # Start the dashboard
//	reportboard run -c config.yaml      # Poll every widget once and print results
//	reportboard validate -c config.yaml # Validate configuration
//	reportboard version                 # Show version info
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Version information - set at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCmd is the base command when called without subcommands.
var rootCmd = &cobra.Command{
	Use:   "reportboard",
	Short: "A dashboard of asynchronous report widgets",
	Long: `ReportBoard renders report widgets backed by asynchronous jobs.

Each widget submits its criteria to a report backend, polls the returned job
until it completes, and renders the result as HTML, a table, a chart or a map.
Progress and results stream to the browser with Server-Sent Events.

Quick start:
  1. Create a config file (reportboard.yaml)
  2. Run: reportboard serve -c reportboard.yaml
  3. Open http://localhost:8080 in your browser

Example config:
  port: 8080
  poll_delay: 1s
  widgets:
    - id: top-hosts
      title: Top Hosts
      url: http://localhost:9000/reports/hosts/start
      renderer: table`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		// cobra already printed the error
		os.Exit(1)
	}
}

func main() {
	Execute()
}

// newLogger creates a JSON logger for CLI use.
func newLogger(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// versionCmd prints version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print the version, commit hash, and build date of this reportboard binary.`,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "reportboard %s\n", version)
		fmt.Fprintf(out, "  commit: %s\n", commit)
		fmt.Fprintf(out, "  built:  %s\n", date)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)

	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")
}
