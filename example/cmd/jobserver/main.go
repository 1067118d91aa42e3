// Standalone demo report backend for trying the CLI.
//
// Usage:
//
//	go run ./example/cmd/jobserver
//
// Then in another terminal:
//
//	go run ./cmd/reportboard serve -c example/reportboard.yaml
package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/jpalmerr/reportboard/internal/mockjobs"
)

var rootCmd = &cobra.Command{
	Use:   "jobserver",
	Short: "Serve the demo report backend",
	RunE:  run,
}

func init() {
	rootCmd.Flags().String("addr", ":9000", "listen address")
	rootCmd.Flags().Bool("legacy", false, "use legacy status codes (2 complete, 3 error)")
	rootCmd.Flags().StringSlice("cors-origin", nil, "allowed CORS origins (default: any)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	addr, _ := cmd.Flags().GetString("addr")
	legacy, _ := cmd.Flags().GetBool("legacy")
	origins, _ := cmd.Flags().GetStringSlice("cors-origin")

	gin.SetMode(gin.ReleaseMode)

	codes := mockjobs.PortalCodes
	if legacy {
		codes = mockjobs.LegacyCodes
	}
	backend := mockjobs.New(codes, mockjobs.WithCORS(origins...))
	backend.RegisterDemo()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	logger.Info("demo report backend starting",
		"addr", addr,
		"legacy", legacy,
		"reports", []string{"traffic", "hosts", "protocols", "sites", "summary", "broken"},
	)
	fmt.Fprintln(cmd.OutOrStdout(), "Submit: POST /reports/<name>/start  Poll: GET /reports/jobs/<id>")

	srv := &http.Server{
		Addr:              addr,
		Handler:           backend.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return srv.ListenAndServe()
}
