package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/reportboard"
	"github.com/jpalmerr/reportboard/config"
)

// addConfigFlags registers the flags shared by every command that reads a
// config file.
func addConfigFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("config", "c", "", "path to config file (required)")
	cmd.Flags().String("env-file", "", "dotenv file loaded before the config is parsed")
	_ = cmd.MarkFlagRequired("config")
}

// loadConfig loads the optional env file, then parses and builds the config.
func loadConfig(cmd *cobra.Command) (*config.Config, []reportboard.Widget, error) {
	if envFile, _ := cmd.Flags().GetString("env-file"); envFile != "" {
		if err := config.LoadEnvFile(envFile); err != nil {
			return nil, nil, err
		}
	}

	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}

	widgets, err := config.BuildWidgets(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build widgets: %w", err)
	}
	if len(widgets) == 0 {
		return nil, nil, fmt.Errorf("no widgets configured")
	}

	return cfg, widgets, nil
}
