// Package reportboard runs asynchronous report widgets and serves them on a
// live dashboard.
//
// A widget submits its criteria to a report endpoint, polls the returned job
// URL until the server reports completion, and renders the payload into its
// container with a pluggable [render.Renderer]. While the job runs, the
// container shows a loading indicator with the last reported progress.
// Failures of any kind end the widget with an escaped error message in its
// container; one widget failing never affects another.
//
// # Quick Start
//
//	w, _ := reportboard.NewWidget("top-hosts", "https://reports.example.com/hosts/start",
//	    reportboard.WithCriteria(map[string]any{"limit": 10}),
//	    reportboard.WithRenderer(render.Table{}),
//	)
//	board, _ := reportboard.New(reportboard.WithWidget(w))
//
//	// Set up graceful shutdown on SIGINT/SIGTERM
//	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer stop()
//
//	board.Start(ctx) // blocks until context is cancelled
//
// # Wire Protocol
//
// In [ModeSubmit] (the default) the widget POSTs a form with criteria=<json>
// (plus widget_id when [WithWidgetParam] is set) and expects
// {"joburl": "..."}. Relative job URLs resolve against the widget URL. In
// [ModeDirect] the widget URL itself is polled with ts=<unix millis>, fixed
// for the lifetime of the widget.
//
// Every poll reply is {"status": int, "progress": int, "data": any,
// "message": string}. Which integers mean complete and error depends on the
// backend family; see [PortalStatusCodes] and [LegacyStatusCodes].
//
// # Lifecycle
//
// Each widget moves through [StateConstructing], [StateSubmitting] and
// [StatePolling], then ends in [StateComplete], [StateError] or, when
// [WithMaxWait] is set, [StateTimeout]. [Board.Dispose] cancels a widget at
// any point; nothing further is reported for it. [Board.Resize] redraws
// completed widgets at the new viewport size without polling again.
//
// # Architecture
//
//   - render: render backends (HTML, tables, charts, maps)
//   - format: number, byte, percentage and time formatters
//   - internal/poller: HTTP client, wire decoding and per-widget job state machine
//   - internal/layout: container sizes and redraws
//   - internal/store: widget views with pub/sub for real-time updates
//   - internal/server: HTTP server with REST API and Server-Sent Events
//   - dashboard: embedded host page
//   - config: YAML configuration for the reportboard binary
//
// # Standalone Binary
//
// The reportboard command runs a board from a YAML file:
//
//	reportboard validate -c reportboard.yaml
//	reportboard serve -c reportboard.yaml --env-file .env.local
//	reportboard run -c reportboard.yaml --timeout 2m
//
// The internal packages are not part of the public API and may change
// without notice.
package reportboard
