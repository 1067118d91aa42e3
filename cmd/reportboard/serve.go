package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/reportboard"
)

const (
	shutdownTimeout = 10 * time.Second
)

// serveCmd starts the ReportBoard dashboard server.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the dashboard server",
	Long: `Start the ReportBoard dashboard server.

The server will:
  - Load configuration from the specified YAML file
  - Submit and poll every configured widget
  - Serve the dashboard UI on the configured port

The server runs until interrupted (Ctrl+C) or receives SIGTERM.

Example:
  reportboard serve -c config.yaml
  reportboard serve -c config.yaml --env-file .env.local`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	addConfigFlags(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	debug, _ := cmd.Flags().GetBool("debug")
	logger := newLogger(debug)

	cfg, widgets, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger.Info("config loaded",
		"widgets", len(cfg.Widgets),
		"grids", len(cfg.Grids),
		"total", len(widgets),
	)
	logger.Info("starting server",
		"port", cfg.Port,
		"max_concurrency", cfg.MaxConcurrency,
	)

	opts := []reportboard.Option{
		reportboard.WithWidgets(widgets...),
		reportboard.WithPort(cfg.Port),
		reportboard.WithMaxConcurrency(cfg.MaxConcurrency),
		reportboard.WithLogger(logger),
	}
	if cfg.Title != "" {
		opts = append(opts, reportboard.WithTitle(cfg.Title))
	}

	board, err := reportboard.New(opts...)
	if err != nil {
		return fmt.Errorf("failed to create board: %w", err)
	}

	// cancel on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(contextOrBackground(cmd), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errChan := make(chan error, 1)
	go func() {
		errChan <- board.Start(ctx)
	}()

	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		logger.Info("shutdown complete")
		return nil

	case <-ctx.Done():
		select {
		case err := <-errChan:
			if err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			logger.Info("shutdown complete")
			return nil
		case <-time.After(shutdownTimeout):
			logger.Warn("shutdown timed out",
				"timeout", shutdownTimeout.String(),
				"action", "forcing exit",
			)
			return nil
		}
	}
}

// contextOrBackground guards commands executed without ExecuteContext.
func contextOrBackground(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
