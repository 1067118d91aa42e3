package poller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/uber-go/tally/v4"

	"github.com/jpalmerr/reportboard/render"
)

// Mode selects how a widget obtains its poll target.
type Mode int

const (
	// ModeSubmit posts the criteria to the endpoint and polls the returned job URL.
	ModeSubmit Mode = iota
	// ModeDirect polls the endpoint itself with a ts cursor.
	ModeDirect
)

func (m Mode) String() string {
	if m == ModeDirect {
		return "direct"
	}
	return "submit"
}

// State is the lifecycle state of one widget instance.
type State string

const (
	StateConstructing State = "constructing"
	StateSubmitting   State = "submitting"
	StatePolling      State = "polling"
	StateComplete     State = "complete"
	StateError        State = "error"
	StateTimeout      State = "timeout"
)

// Terminal reports whether no transition can leave s.
func (s State) Terminal() bool {
	return s == StateComplete || s == StateError || s == StateTimeout
}

// WidgetInfo contains everything needed to run one widget's job.
//
// This is the poller-internal representation of a widget, decoupled from the
// public reportboard.Widget type.
type WidgetInfo struct {
	// ID is the container element id. Unique per runner.
	ID string

	// Title is a display name carried on events.
	Title string

	// URL is the submit endpoint (ModeSubmit) or data endpoint (ModeDirect).
	URL string

	Mode Mode

	// Criteria is posted as the criteria form field in ModeSubmit.
	Criteria json.RawMessage

	// WidgetParam, when set, is posted as the widget_id form field.
	WidgetParam string

	Renderer render.Renderer
	Codes    StatusCodes

	// PollDelay is the wait between a non-terminal reply and the next poll.
	PollDelay time.Duration

	// Timeout bounds each HTTP request.
	Timeout time.Duration

	// MaxWait bounds the whole job. Zero polls until a terminal status.
	MaxWait time.Duration

	Headers map[string]string
	Labels  map[string]string

	// Width and Height size the container. Zero means the render defaults.
	Width  int
	Height int
}

// Container returns the render container described by w.
func (w WidgetInfo) Container() render.Container {
	return render.Container{ID: w.ID, Width: w.Width, Height: w.Height}
}

// Event is one observable transition of a widget.
type Event struct {
	WidgetID string
	Title    string
	URL      string
	JobURL   string
	Labels   map[string]string

	State    State
	Progress int

	// Loading is true while the loading indicator should be shown.
	Loading bool

	// HTML is the rendered content on COMPLETE, or the escaped error markup
	// on ERROR and TIMEOUT.
	HTML string

	// Payload is the completed job's data.
	Payload json.RawMessage

	Err   error
	Polls int
	At    time.Time
}

// Job runs the submit/poll state machine for one widget.
//
// All transitions happen on the goroutine calling [Job.Run], so at most one
// request is in flight for the widget at any time.
type Job struct {
	info      WidgetInfo
	client    *Client
	emit      func(Event)
	logger    *slog.Logger
	scope     tally.Scope
	limiter   chan struct{}
	container func() render.Container
	now       func() time.Time

	// mutated only by Run
	state    State
	progress int
	polls    int
	jobURL   string
}

// JobOption configures a [Job].
type JobOption func(*Job)

// WithLimiter shares a concurrency limit on in-flight requests with other jobs.
func WithLimiter(limiter chan struct{}) JobOption {
	return func(j *Job) { j.limiter = limiter }
}

// WithScope sets the metrics scope.
func WithScope(scope tally.Scope) JobOption {
	return func(j *Job) {
		if scope != nil {
			j.scope = scope
		}
	}
}

// WithContainer overrides the container handed to the renderer, so a resized
// layout is honored by widgets that complete later.
func WithContainer(f func() render.Container) JobOption {
	return func(j *Job) {
		if f != nil {
			j.container = f
		}
	}
}

// NewJob creates a job for info. emit receives every transition; it may be nil.
func NewJob(info WidgetInfo, client *Client, emit func(Event), logger *slog.Logger, opts ...JobOption) *Job {
	if logger == nil {
		logger = slog.Default()
	}
	if emit == nil {
		emit = func(Event) {}
	}
	if client == nil {
		client = NewClient()
	}
	if info.Renderer == nil {
		info.Renderer = render.HTML{}
	}
	if len(info.Criteria) == 0 {
		info.Criteria = json.RawMessage("{}")
	}
	j := &Job{
		info:      info,
		client:    client,
		emit:      emit,
		logger:    logger.With("widget", info.ID),
		scope:     tally.NoopScope,
		container: info.Container,
		now:       time.Now,
		state:     StateConstructing,
	}
	for _, opt := range opts {
		opt(j)
	}
	j.scope = j.scope.Tagged(map[string]string{"mode": info.Mode.String()})
	return j
}

// Run drives the job to a terminal state and returns the final event.
//
// When ctx is cancelled (disposal or shutdown) Run returns without emitting
// anything further; the returned event then carries ctx's error and a
// non-terminal state. When the max wait elapses the job ends in TIMEOUT.
func (j *Job) Run(ctx context.Context) Event {
	if j.info.MaxWait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeoutCause(ctx, j.info.MaxWait, ErrMaxWaitExceeded)
		defer cancel()
	}

	target := j.info.URL
	delay := j.info.PollDelay

	switch j.info.Mode {
	case ModeDirect:
		cursor, err := withCursor(j.info.URL, j.now().UnixMilli())
		if err != nil {
			return j.fail(ctx, &ProtocolError{Op: "poll", URL: j.info.URL, Err: err})
		}
		target = cursor
		delay = 0
	default:
		j.transition(StateSubmitting)
		jobURL, err := j.submit(ctx)
		if err != nil {
			return j.fail(ctx, err)
		}
		target = jobURL
		j.jobURL = jobURL
	}

	j.transition(StatePolling)

	for {
		if delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return j.fail(ctx, ctx.Err())
			case <-timer.C:
			}
		}
		delay = j.info.PollDelay

		resp, err := j.poll(ctx, target)
		if err != nil {
			return j.fail(ctx, err)
		}

		switch resp.Status {
		case StatusComplete:
			return j.complete(ctx, resp.Data)
		case StatusError:
			return j.fail(ctx, &ServerReportedError{Code: resp.Code, Message: resp.Message})
		default:
			if resp.Progress > 0 {
				j.progress = resp.Progress
			}
			j.logger.Debug("job pending", "status", resp.Status.String(), "progress", j.progress, "polls", j.polls)
			j.emit(j.event(StatePolling))
		}
	}
}

func (j *Job) submit(ctx context.Context) (string, error) {
	form := url.Values{"criteria": {string(j.info.Criteria)}}
	if j.info.WidgetParam != "" {
		form.Set("widget_id", j.info.WidgetParam)
	}

	j.scope.Counter("submits").Inc(1)
	resp, err := j.fetch(ctx, Request{
		Method:  http.MethodPost,
		URL:     j.info.URL,
		Headers: j.info.Headers,
		Form:    form,
		Timeout: j.info.Timeout,
	}, "submit")
	if err != nil {
		return "", err
	}

	jobURL, err := DecodeSubmitResponse(resp.Body, j.info.URL)
	if err != nil {
		return "", &ProtocolError{Op: "submit", URL: j.info.URL, Err: err}
	}
	j.logger.Debug("job submitted", "job_url", jobURL)
	return jobURL, nil
}

func (j *Job) poll(ctx context.Context, target string) (PollResponse, error) {
	j.polls++
	j.scope.Counter("polls").Inc(1)

	resp, err := j.fetch(ctx, Request{
		Method:  http.MethodGet,
		URL:     target,
		Headers: j.info.Headers,
		Timeout: j.info.Timeout,
	}, "poll")
	if err != nil {
		return PollResponse{}, err
	}
	j.scope.Timer("poll_latency").Record(resp.Latency)

	decoded, err := DecodePollResponse(resp.Body, j.info.Codes)
	if err != nil {
		return PollResponse{}, &ProtocolError{Op: "poll", URL: target, Err: err}
	}
	return decoded, nil
}

// fetch performs req under the shared limiter and maps failures and non-2xx
// replies to a TransportError.
func (j *Job) fetch(ctx context.Context, req Request, op string) (Response, error) {
	if j.limiter != nil {
		select {
		case j.limiter <- struct{}{}:
			defer func() { <-j.limiter }()
		case <-ctx.Done():
			return Response{}, ctx.Err()
		}
	}

	resp := j.client.Fetch(ctx, req)
	if resp.Error != nil {
		if ctx.Err() != nil {
			return resp, ctx.Err()
		}
		return resp, &TransportError{Op: op, URL: req.URL, Err: resp.Error}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp, &TransportError{Op: op, URL: req.URL, StatusCode: resp.StatusCode}
	}
	return resp, nil
}

func (j *Job) complete(ctx context.Context, data json.RawMessage) Event {
	markup, err := j.safeRender(data)
	if err != nil {
		return j.fail(ctx, err)
	}

	j.state = StateComplete
	j.scope.Counter("completed").Inc(1)
	j.logger.Info("job complete", "polls", j.polls)

	ev := j.event(StateComplete)
	ev.HTML = markup
	ev.Payload = data
	j.emit(ev)
	return ev
}

// fail ends the job. Errors caused by cancellation end silently unless the
// cause is the max wait, which produces TIMEOUT.
func (j *Job) fail(ctx context.Context, err error) Event {
	if ctx.Err() != nil {
		if errors.Is(context.Cause(ctx), ErrMaxWaitExceeded) {
			j.state = StateTimeout
			j.scope.Counter("timeouts").Inc(1)
			j.logger.Warn("job timed out", "max_wait", j.info.MaxWait, "polls", j.polls)

			ev := j.event(StateTimeout)
			ev.Err = fmt.Errorf("%w after %s", ErrMaxWaitExceeded, j.info.MaxWait)
			ev.HTML = ErrorHTML(ev.Err)
			j.emit(ev)
			return ev
		}
		ev := j.event(j.state)
		ev.Err = ctx.Err()
		return ev
	}

	j.state = StateError
	j.scope.Counter("errored").Inc(1)
	j.logger.Warn("job failed", "error", err, "polls", j.polls)

	ev := j.event(StateError)
	ev.Err = err
	ev.HTML = ErrorHTML(err)
	j.emit(ev)
	return ev
}

func (j *Job) transition(s State) {
	j.state = s
	j.emit(j.event(s))
}

func (j *Job) event(s State) Event {
	return Event{
		WidgetID: j.info.ID,
		Title:    j.info.Title,
		URL:      j.info.URL,
		JobURL:   j.jobURL,
		Labels:   j.info.Labels,
		State:    s,
		Progress: j.progress,
		Loading:  !s.Terminal(),
		Polls:    j.polls,
		At:       j.now(),
	}
}

// safeRender calls the renderer with panic recovery.
// A panic is logged with its stack under a correlation id that is also
// placed in the returned error.
func (j *Job) safeRender(data json.RawMessage) (markup string, err error) {
	defer func() {
		if r := recover(); r != nil {
			correlationID := uuid.NewString()
			j.logger.Error("renderer panic",
				"correlation_id", correlationID,
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			)
			markup = ""
			err = &RenderError{CorrelationID: correlationID, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	markup, err = j.info.Renderer.Render(j.container(), data)
	if err != nil {
		return "", &RenderError{Err: err}
	}
	return markup, nil
}
