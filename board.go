package reportboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/uber-go/tally/v4"

	"github.com/jpalmerr/reportboard/dashboard"
	"github.com/jpalmerr/reportboard/internal/layout"
	"github.com/jpalmerr/reportboard/internal/poller"
	"github.com/jpalmerr/reportboard/internal/server"
	"github.com/jpalmerr/reportboard/internal/store"
)

const (
	defaultPort           = 8080
	defaultMaxConcurrency = 10
)

// ErrBoardUsed is returned when Start or RunOnce is called a second time.
var ErrBoardUsed = errors.New("board already started")

// Board runs the jobs of a set of widgets and serves them on a dashboard.
//
// A Board is created with [New] and run once, either with [Board.Start]
// (serve the dashboard until the context is cancelled) or [Board.RunOnce]
// (headless: wait for every widget to finish).
//
//	board, err := reportboard.New(reportboard.WithWidgets(widgets...))
//	if err != nil {
//	    slog.Error("failed to create board", "error", err)
//	    os.Exit(1)
//	}
//
//	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer cancel()
//
//	board.Start(ctx) // blocks until context cancelled
type Board struct {
	title           string
	widgets         []Widget
	byID            map[string]Widget
	port            int
	maxConcurrency  int
	logger          *slog.Logger
	scope           tally.Scope
	statusCallbacks []func(WidgetResult)

	views  *store.MemoryStore
	layout *layout.Registry
	runner *poller.Runner

	mu       sync.Mutex
	used     bool
	disposed map[string]bool
}

// New creates a [Board] with the given options.
//
// At least one widget is required and widget ids must be unique.
// Defaults: port 8080, max concurrency 10, [slog.Default], [tally.NoopScope].
func New(opts ...Option) (*Board, error) {
	cfg := &boardConfig{
		port:           defaultPort,
		maxConcurrency: defaultMaxConcurrency,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if len(cfg.widgets) == 0 {
		return nil, errors.New("at least one widget is required")
	}

	byID := make(map[string]Widget, len(cfg.widgets))
	for _, w := range cfg.widgets {
		if w.id == "" {
			return nil, errors.New("widget must be created with NewWidget")
		}
		if _, dup := byID[w.id]; dup {
			return nil, fmt.Errorf("duplicate widget id: %q", w.id)
		}
		byID[w.id] = w
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}
	scope := cfg.scope
	if scope == nil {
		scope = tally.NoopScope
	}

	b := &Board{
		title:           cfg.title,
		widgets:         cfg.widgets,
		byID:            byID,
		port:            cfg.port,
		maxConcurrency:  cfg.maxConcurrency,
		logger:          logger,
		scope:           scope,
		statusCallbacks: cfg.statusCallbacks,
		views:           store.NewMemoryStore(),
		layout:          layout.NewRegistry(),
		disposed:        make(map[string]bool),
	}

	now := time.Now()
	for i, w := range b.widgets {
		c := b.layout.Track(w.id, w.width, w.height, w.minHeight)
		b.views.Update(store.WidgetView{
			ID:        w.id,
			Order:     i,
			Title:     w.title,
			URL:       w.url,
			Labels:    copyMap(w.labels),
			State:     string(StateConstructing),
			Width:     c.Width,
			Height:    c.Height,
			UpdatedAt: now,
		})
	}

	b.runner = poller.NewRunner(b.toWidgetInfos(), poller.RunnerOptions{
		MaxConcurrency: b.maxConcurrency,
		Logger:         b.logger,
		Scope:          b.scope,
		Containers:     b.layout.Container,
	})
	return b, nil
}

// Start runs every widget and serves the dashboard.
//
// Start blocks until ctx is cancelled, then stops all jobs and shuts the
// HTTP server down. It returns nil on graceful shutdown and an error if the
// server cannot bind its port.
func (b *Board) Start(ctx context.Context) error {
	if !b.begin() {
		return ErrBoardUsed
	}

	b.logger.Info("reportboard starting", "widget_count", len(b.widgets))
	b.logger.Info("dashboard available", "url", fmt.Sprintf("http://localhost:%d", b.port))

	if ctx.Err() != nil {
		return nil
	}

	b.runner.Start(ctx)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for ev := range b.runner.Results() {
			b.handle(ev)
		}
	}()

	cleanup := func() {
		b.runner.Stop()
		wg.Wait()
	}

	httpServer := server.NewServer(b.views, b, b.port, dashboard.Assets, b.title, b.logger)
	if err := httpServer.Start(ctx); err != nil {
		cleanup()
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	<-ctx.Done()
	cleanup()
	b.logger.Info("reportboard stopped")
	return nil
}

// RunOnce runs every widget to a terminal state without serving the
// dashboard and returns the final result of each widget in board order.
// Disposed widgets are omitted.
//
// If ctx ends first, the results gathered so far are returned with the
// context error.
func (b *Board) RunOnce(ctx context.Context) ([]WidgetResult, error) {
	if !b.begin() {
		return nil, ErrBoardUsed
	}

	b.runner.Start(ctx)
	final := make(map[string]WidgetResult, len(b.widgets))
	for ev := range b.runner.Results() {
		if r, ok := b.handle(ev); ok {
			final[r.WidgetID] = r
		}
	}
	b.runner.Stop()

	b.mu.Lock()
	defer b.mu.Unlock()
	results := make([]WidgetResult, 0, len(final))
	var unfinished int
	for _, w := range b.widgets {
		if b.disposed[w.id] {
			continue
		}
		r, ok := final[w.id]
		if !ok || !r.State.Terminal() {
			unfinished++
		}
		if ok {
			results = append(results, r)
		}
	}

	if unfinished > 0 {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		return results, fmt.Errorf("%d widgets did not finish", unfinished)
	}
	return results, nil
}

// Dispose cancels the widget's job, stops its timers and removes its
// container. No event of the widget is applied or reported once Dispose
// returns; a status callback already running for it may finish. Dispose may
// be called from a status callback. It returns false for unknown or already
// disposed widgets.
func (b *Board) Dispose(id string) bool {
	b.mu.Lock()
	_, known := b.byID[id]
	if !known || b.disposed[id] {
		b.mu.Unlock()
		return false
	}
	b.disposed[id] = true
	b.layout.Forget(id)
	b.views.Remove(id)
	b.mu.Unlock()

	b.runner.Dispose(id)
	return true
}

// Resize fits every container to a viewport of the given size and redraws
// completed widgets from their stored payloads.
func (b *Board) Resize(width, height int) error {
	redraws, err := b.layout.Resize(width, height)
	if err != nil {
		return err
	}
	drawn := make(map[string]layout.Redraw, len(redraws))
	for _, rd := range redraws {
		drawn[rd.ID] = rd
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, w := range b.widgets {
		if b.disposed[w.id] {
			continue
		}
		c, ok := b.layout.Container(w.id)
		if !ok {
			continue
		}
		view, ok := b.views.Get(w.id)
		if !ok {
			continue
		}
		view.Width, view.Height = c.Width, c.Height
		if rd, ok := drawn[w.id]; ok {
			if rd.Err != nil {
				b.logger.Warn("redraw failed", "widget", w.id, "error", rd.Err)
				view.HTML = poller.ErrorHTML(rd.Err)
				msg := rd.Err.Error()
				view.Error = &msg
			} else {
				view.HTML = rd.HTML
			}
		}
		view.UpdatedAt = time.Now()
		b.views.Update(view)
	}
	return nil
}

// Widgets returns a copy of the configured widgets.
func (b *Board) Widgets() []Widget {
	cp := make([]Widget, len(b.widgets))
	copy(cp, b.widgets)
	return cp
}

// Port returns the configured HTTP port for the dashboard server.
func (b *Board) Port() int {
	return b.port
}

func (b *Board) begin() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.used {
		return false
	}
	b.used = true
	return true
}

// handle applies one job event to the board: view first, then callbacks.
// Events of disposed widgets are dropped. No lock is held while callbacks
// run so they may call back into the board.
func (b *Board) handle(ev poller.Event) (WidgetResult, bool) {
	b.mu.Lock()
	if b.disposed[ev.WidgetID] {
		b.mu.Unlock()
		return WidgetResult{}, false
	}
	w := b.byID[ev.WidgetID]
	if ev.State == poller.StateComplete {
		b.layout.Remember(w.id, w.renderer, ev.Payload)
	}
	b.views.Update(b.toView(ev))
	b.mu.Unlock()

	for _, cb := range b.statusCallbacks {
		if b.isDisposed(ev.WidgetID) {
			return WidgetResult{}, false
		}
		invokeCallbackSafe(cb, eventToResult(ev), b.logger)
	}

	logAttrs := []any{
		"widget", ev.WidgetID,
		"state", ev.State,
		"progress", ev.Progress,
		"polls", ev.Polls,
	}
	switch {
	case ev.Err != nil:
		b.logger.Warn("widget failed", append(logAttrs, "error", ev.Err.Error())...)
	case ev.State == poller.StateComplete:
		b.logger.Info("widget complete", logAttrs...)
	default:
		b.logger.Debug("widget update", logAttrs...)
	}
	return eventToResult(ev), true
}

func (b *Board) isDisposed(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.disposed[id]
}

// toView converts an event to the stored view. Caller holds b.mu.
func (b *Board) toView(ev poller.Event) store.WidgetView {
	view, _ := b.views.Get(ev.WidgetID)
	view.ID = ev.WidgetID
	view.Title = ev.Title
	view.URL = ev.URL
	view.Labels = copyMap(ev.Labels)
	view.State = string(ev.State)
	view.Loading = ev.Loading
	view.Progress = ev.Progress
	view.HTML = ev.HTML
	view.Polls = ev.Polls
	view.UpdatedAt = ev.At
	view.Error = nil
	if ev.Err != nil {
		msg := ev.Err.Error()
		view.Error = &msg
	}
	if c, ok := b.layout.Container(ev.WidgetID); ok {
		view.Width, view.Height = c.Width, c.Height
	}
	return view
}

// toWidgetInfos converts widgets to the poller representation.
func (b *Board) toWidgetInfos() []poller.WidgetInfo {
	infos := make([]poller.WidgetInfo, len(b.widgets))
	for i, w := range b.widgets {
		mode := poller.ModeSubmit
		if w.mode == ModeDirect {
			mode = poller.ModeDirect
		}
		infos[i] = poller.WidgetInfo{
			ID:          w.id,
			Title:       w.title,
			URL:         w.url,
			Mode:        mode,
			Criteria:    w.Criteria(),
			WidgetParam: w.widgetParam,
			Renderer:    w.renderer,
			Codes:       w.codes.toPoller(),
			PollDelay:   w.pollDelay,
			Timeout:     w.timeout,
			MaxWait:     w.maxWait,
			Headers:     copyMap(w.headers),
			Labels:      copyMap(w.labels),
		}
		if c, ok := b.layout.Container(w.id); ok {
			infos[i].Width, infos[i].Height = c.Width, c.Height
		}
	}
	return infos
}

// eventToResult converts an internal event to the public type, copying
// mutable fields.
func eventToResult(ev poller.Event) WidgetResult {
	return WidgetResult{
		WidgetID: ev.WidgetID,
		Title:    ev.Title,
		URL:      ev.URL,
		JobURL:   ev.JobURL,
		Labels:   copyMap(ev.Labels),
		State:    State(ev.State),
		Progress: ev.Progress,
		HTML:     ev.HTML,
		Payload:  copyPayload(ev.Payload),
		Err:      ev.Err,
		Polls:    ev.Polls,
		At:       ev.At,
	}
}

func copyPayload(p json.RawMessage) json.RawMessage {
	if p == nil {
		return nil
	}
	return append(json.RawMessage(nil), p...)
}

// invokeCallbackSafe calls a status callback with panic recovery.
// Panics are logged but do not propagate.
func invokeCallbackSafe(cb func(WidgetResult), result WidgetResult, logger *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("status callback panicked",
				"panic", r,
				"widget", result.WidgetID,
			)
		}
	}()
	cb(result)
}

var _ server.Controller = (*Board)(nil)
