package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/reportboard"
)

// runCmd polls every widget once without serving the dashboard.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Poll every widget once and print the results",
	Long: `Submit and poll every configured widget until each job is finished,
then print one line per widget with its final state.

Use --html to also print the rendered markup. The command fails when any
widget ends in error or timeout, which makes it usable as a smoke test for
report backends.

Example:
  reportboard run -c config.yaml
  reportboard run -c config.yaml --timeout 2m --html`,
	RunE: runOnce,
}

func init() {
	rootCmd.AddCommand(runCmd)
	addConfigFlags(runCmd)

	runCmd.Flags().Duration("timeout", 0, "overall deadline (0 waits for every job)")
	runCmd.Flags().Bool("html", false, "print rendered HTML below each result")
}

func runOnce(cmd *cobra.Command, args []string) error {
	debug, _ := cmd.Flags().GetBool("debug")
	logger := newLogger(debug)

	cfg, widgets, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	board, err := reportboard.New(
		reportboard.WithWidgets(widgets...),
		reportboard.WithMaxConcurrency(cfg.MaxConcurrency),
		reportboard.WithLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("failed to create board: %w", err)
	}

	ctx, stop := signal.NotifyContext(contextOrBackground(cmd), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if timeout, _ := cmd.Flags().GetDuration("timeout"); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	results, runErr := board.RunOnce(ctx)

	showHTML, _ := cmd.Flags().GetBool("html")
	failed := printResults(cmd.OutOrStdout(), results, showHTML)

	if runErr != nil {
		return runErr
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d widgets failed", failed, len(results))
	}
	return nil
}

// printResults writes a result table and returns how many widgets failed.
func printResults(w io.Writer, results []reportboard.WidgetResult, showHTML bool) int {
	failed := 0
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "WIDGET\tSTATE\tPOLLS\tDETAIL")
	for _, r := range results {
		detail := ""
		switch r.State {
		case reportboard.StateError, reportboard.StateTimeout:
			failed++
			if r.Err != nil {
				detail = r.Err.Error()
			}
		case reportboard.StateComplete:
			detail = fmt.Sprintf("%d bytes", len(r.HTML))
		default:
			detail = fmt.Sprintf("%d%%", r.Progress)
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", r.WidgetID, r.State, r.Polls, detail)
	}
	_ = tw.Flush()

	if showHTML {
		for _, r := range results {
			if r.HTML == "" {
				continue
			}
			fmt.Fprintf(w, "\n--- %s ---\n%s\n", r.WidgetID, strings.TrimSpace(r.HTML))
		}
	}
	return failed
}
