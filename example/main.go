package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jpalmerr/reportboard"
	"github.com/jpalmerr/reportboard/internal/mockjobs"
	"github.com/jpalmerr/reportboard/render"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	// two demo backends: a portal (3 complete, 4 error) and a legacy one
	// (2 complete, 3 error) that is polled directly
	portal := mockjobs.New(mockjobs.PortalCodes)
	portal.RegisterDemo()
	legacy := mockjobs.New(mockjobs.LegacyCodes)
	legacy.RegisterDemo()

	go serve(logger, ":9000", portal.Handler())
	go serve(logger, ":9001", legacy.Handler())
	time.Sleep(100 * time.Millisecond)

	const base = "http://localhost:9000/reports"

	// grid API: one traffic chart per site from one declaration
	widgets, err := reportboard.NewWidgetGrid("traffic",
		reportboard.WithURLTemplate(base+"/traffic/start"),
		reportboard.WithDimensions(map[string][]string{
			"site": {"bos", "sfo"},
		}),
		reportboard.WithGridTitle("Traffic"),
		reportboard.WithGridCriteria(map[string]any{"limit": 24}),
		reportboard.WithGridWidgetOptions(
			reportboard.WithRenderer(render.TimeSeries()),
			reportboard.WithWidth(900),
		),
	)
	if err != nil {
		logger.Error("failed to create widget grid", "error", err)
		os.Exit(1)
	}

	hosts, _ := reportboard.NewWidget("hosts", base+"/hosts/start",
		reportboard.WithWidgetTitle("Top Hosts"),
		reportboard.WithCriteria(map[string]any{"limit": 10}),
		reportboard.WithRenderer(render.Table{}),
	)
	protocols, _ := reportboard.NewWidget("protocols", base+"/protocols/start",
		reportboard.WithRenderer(render.Pie()),
	)
	sites, _ := reportboard.NewWidget("sites", base+"/sites/start",
		reportboard.WithRenderer(render.Map{}),
		reportboard.WithHeight(400),
	)
	summary, _ := reportboard.NewWidget("summary", base+"/summary/start",
		reportboard.WithWidgetParam("summary"),
	)
	broken, _ := reportboard.NewWidget("broken", base+"/broken/start")

	// legacy backend: no submit, the data URL is polled with a ts cursor
	direct, _ := reportboard.NewWidget("legacy-hosts", "http://localhost:9001/reports/hosts/data?limit=5",
		reportboard.WithWidgetTitle("Legacy Hosts"),
		reportboard.WithDirectPoll(),
		reportboard.WithStatusCodes(reportboard.LegacyStatusCodes),
		reportboard.WithRenderer(render.Table{}),
		reportboard.WithMaxWait(30*time.Second),
	)

	widgets = append(widgets, hosts, protocols, sites, summary, broken, direct)

	board, err := reportboard.New(
		reportboard.WithWidgets(widgets...),
		reportboard.WithPort(8080),
		reportboard.WithTitle("ReportBoard Demo"),
		reportboard.WithLogger(logger),
		reportboard.WithStatusCallback(func(r reportboard.WidgetResult) {
			if r.State.Terminal() {
				logger.Info("widget finished", "widget", r.WidgetID, "state", r.State, "polls", r.Polls)
			}
		}),
	)
	if err != nil {
		logger.Error("failed to create board", "error", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println("  ReportBoard Demo")
	fmt.Println()
	fmt.Println("  Open http://localhost:8080 in your browser")
	fmt.Printf("  %d widgets: 2 traffic charts via grid, table, pie, map, html,\n", len(widgets))
	fmt.Println("  one failing report and one direct-polled legacy table")
	fmt.Println()
	fmt.Println("  Press Ctrl+C to stop")
	fmt.Println()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := board.Start(ctx); err != nil {
		logger.Error("board error", "error", err)
		os.Exit(1)
	}
}

func serve(logger *slog.Logger, addr string, h http.Handler) {
	srv := &http.Server{Addr: addr, Handler: h, ReadHeaderTimeout: 5 * time.Second}
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("demo backend stopped", "addr", addr, "error", err)
	}
}
