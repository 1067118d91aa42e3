package poller

import (
	"context"
	"log/slog"
	"sync"

	"github.com/uber-go/tally/v4"

	"github.com/jpalmerr/reportboard/render"
)

// ContainerFunc returns the current container for a widget id. ok is false
// when the widget is unknown, in which case the widget's own size is used.
type ContainerFunc func(id string) (c render.Container, ok bool)

// RunnerOptions configures a [Runner].
type RunnerOptions struct {
	// MaxConcurrency caps in-flight HTTP requests across all widgets.
	// Zero or negative means no cap.
	MaxConcurrency int

	Logger *slog.Logger

	// Scope receives job metrics. Nil means tally.NoopScope.
	Scope tally.Scope

	// Containers, when set, supplies render containers at completion time.
	Containers ContainerFunc
}

// Runner supervises the jobs of a set of widgets.
//
// Each widget runs on its own goroutine; events from all widgets are
// delivered on [Runner.Results]. All lifecycle methods are safe for
// concurrent use.
type Runner struct {
	widgets    []WidgetInfo
	client     *Client
	limiter    chan struct{}
	results    chan Event
	logger     *slog.Logger
	scope      tally.Scope
	containers ContainerFunc
	wg         sync.WaitGroup

	mu        sync.Mutex
	ctx       context.Context
	cancel    context.CancelFunc
	started   bool
	stopped   bool
	closeOnce sync.Once
	running   map[string]*runningJob
	disposed  map[string]bool
}

type runningJob struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// resultsPerWidget sizes the results buffer; a widget emits a handful of
// transitions plus one event per pending reply.
const resultsPerWidget = 8

// NewRunner creates a [Runner] for widgets. Start it with [Runner.Start].
func NewRunner(widgets []WidgetInfo, opts RunnerOptions) *Runner {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	scope := opts.Scope
	if scope == nil {
		scope = tally.NoopScope
	}

	var limiter chan struct{}
	if opts.MaxConcurrency > 0 {
		limiter = make(chan struct{}, opts.MaxConcurrency)
	}

	return &Runner{
		widgets:    widgets,
		client:     NewClient(),
		limiter:    limiter,
		results:    make(chan Event, max(len(widgets), 1)*resultsPerWidget),
		logger:     logger,
		scope:      scope,
		containers: opts.Containers,
		running:    make(map[string]*runningJob, len(widgets)),
		disposed:   make(map[string]bool),
	}
}

// Results returns the channel of widget events. It is closed once every job
// has exited after [Runner.Stop], or when all jobs finish on their own.
func (r *Runner) Results() <-chan Event {
	return r.results
}

// Start launches one job per widget.
//
// If ctx is nil, context.Background() is used. Start is idempotent; calling
// it after Stop is a no-op.
func (r *Runner) Start(ctx context.Context) {
	r.mu.Lock()
	if r.started || r.stopped {
		r.mu.Unlock()
		return
	}
	r.started = true
	if ctx == nil {
		ctx = context.Background()
	}
	r.ctx, r.cancel = context.WithCancel(ctx)

	for _, w := range r.widgets {
		if r.disposed[w.ID] {
			continue
		}
		r.launch(w)
	}
	r.mu.Unlock()

	go func() {
		r.wg.Wait()
		r.closeOnce.Do(func() { close(r.results) })
	}()
}

// launch starts w's goroutine. Caller holds r.mu.
func (r *Runner) launch(w WidgetInfo) {
	jobCtx, cancel := context.WithCancel(r.ctx)
	rj := &runningJob{cancel: cancel, done: make(chan struct{})}
	r.running[w.ID] = rj

	opts := []JobOption{WithLimiter(r.limiter), WithScope(r.scope)}
	if r.containers != nil {
		id, fallback := w.ID, w.Container()
		opts = append(opts, WithContainer(func() render.Container {
			if c, ok := r.containers(id); ok {
				return c
			}
			return fallback
		}))
	}
	job := NewJob(w, r.client, func(ev Event) { r.emit(jobCtx, ev) }, r.logger, opts...)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer close(rj.done)
		defer cancel()
		job.Run(jobCtx)
	}()
}

// emit delivers ev unless the widget was disposed or the runner stopped.
// ctx is the job's context.
func (r *Runner) emit(ctx context.Context, ev Event) {
	if ctx.Err() != nil {
		return
	}
	r.mu.Lock()
	dropped := r.disposed[ev.WidgetID]
	r.mu.Unlock()
	if dropped {
		return
	}

	select {
	case r.results <- ev:
	case <-ctx.Done():
	}
}

// Dispose cancels the widget's pending timer or request and waits for its
// job to exit. The job emits nothing once Dispose returns, though an event
// queued just before may still be buffered in Results. Unknown ids return
// false.
func (r *Runner) Dispose(id string) bool {
	r.mu.Lock()
	if r.disposed[id] {
		r.mu.Unlock()
		return false
	}
	known := false
	for _, w := range r.widgets {
		if w.ID == id {
			known = true
			break
		}
	}
	if !known {
		r.mu.Unlock()
		return false
	}
	r.disposed[id] = true
	rj := r.running[id]
	delete(r.running, id)
	r.mu.Unlock()

	if rj != nil {
		rj.cancel()
		<-rj.done
	}
	r.scope.Counter("disposed").Inc(1)
	r.logger.Info("widget disposed", "widget", id)
	return true
}

// Stop cancels every job, waits for them to exit and closes the results
// channel. Stop is idempotent and safe to call before Start.
func (r *Runner) Stop() {
	r.mu.Lock()
	if !r.stopped {
		r.stopped = true
		if r.cancel != nil {
			r.cancel()
		}
	}
	r.mu.Unlock()

	r.wg.Wait()

	if r.client != nil {
		r.client.Close()
	}
	r.closeOnce.Do(func() { close(r.results) })
}
