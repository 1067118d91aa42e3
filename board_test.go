package reportboard

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"github.com/uber-go/tally/v4"

	"github.com/jpalmerr/reportboard/internal/mockjobs"
	"github.com/jpalmerr/reportboard/render"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newBackend(t *testing.T, codes mockjobs.Codes) (*mockjobs.Backend, *httptest.Server) {
	t.Helper()
	backend := mockjobs.New(codes)
	backend.RegisterDemo()
	srv := httptest.NewServer(backend.Handler())
	t.Cleanup(srv.Close)
	return backend, srv
}

func fastWidget(t *testing.T, id, rawURL string, opts ...WidgetOption) Widget {
	t.Helper()
	w, err := NewWidget(id, rawURL, append([]WidgetOption{WithPollDelay(10 * time.Millisecond)}, opts...)...)
	require.NoError(t, err)
	return w
}

// recorder collects callback results per widget.
type recorder struct {
	mu      sync.Mutex
	results map[string][]WidgetResult
}

func newRecorder() *recorder {
	return &recorder{results: make(map[string][]WidgetResult)}
}

func (r *recorder) record(res WidgetResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results[res.WidgetID] = append(r.results[res.WidgetID], res)
}

func (r *recorder) states(id string) []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	var states []State
	for _, res := range r.results[id] {
		if len(states) == 0 || states[len(states)-1] != res.State {
			states = append(states, res.State)
		}
	}
	return states
}

func TestBoard_RunOnce_SubmitThenPoll(t *testing.T) {
	backend, srv := newBackend(t, mockjobs.PortalCodes)
	rec := newRecorder()
	scope := tally.NewTestScope("", nil)

	hosts := fastWidget(t, "hosts", srv.URL+"/reports/hosts/start",
		WithCriteria(map[string]any{"limit": 2}),
		WithRenderer(render.Table{}),
		WithWidgetParam("hosts"),
		WithLabels("team", "net"),
	)
	broken := fastWidget(t, "broken", srv.URL+"/reports/broken/start")

	board, err := New(
		WithWidgets(hosts, broken),
		WithLogger(testLogger()),
		WithMetricsScope(scope),
		WithStatusCallback(rec.record),
	)
	require.NoError(t, err)

	results, err := board.RunOnce(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 2)

	got := results[0]
	require.Equal(t, "hosts", got.WidgetID)
	require.Equal(t, StateComplete, got.State)
	require.Contains(t, got.HTML, `<td>10.0.0.1</td>`)
	require.Contains(t, got.HTML, `width:578px;height:258px`)
	require.Equal(t, 3, got.Polls)
	require.Equal(t, "net", got.Labels["team"])
	require.NoError(t, got.Err)
	require.Contains(t, string(got.Payload), `"chartTitle":"Top Hosts"`)

	failed := results[1]
	require.Equal(t, StateError, failed.State)
	require.Equal(t, `<p>Server error: <pre>report database unavailable</pre></p>`, failed.HTML)
	var serverErr *ServerReportedError
	require.ErrorAs(t, failed.Err, &serverErr)
	require.Equal(t, 4, serverErr.Code)

	require.Equal(t, []State{StateSubmitting, StatePolling, StateComplete}, rec.states("hosts"))
	require.Equal(t, []State{StateSubmitting, StatePolling, StateError}, rec.states("broken"))
	require.Equal(t, 2, backend.Submits())

	view, ok := board.views.Get("hosts")
	require.True(t, ok)
	require.Equal(t, "complete", view.State)
	require.False(t, view.Loading)
	require.Equal(t, got.HTML, view.HTML)
	require.Nil(t, view.Error)

	view, ok = board.views.Get("broken")
	require.True(t, ok)
	require.False(t, view.Loading)
	require.NotNil(t, view.Error)
}

func TestBoard_RunOnce_ProgressShownWhilePolling(t *testing.T) {
	_, srv := newBackend(t, mockjobs.PortalCodes)
	rec := newRecorder()

	board, err := New(
		WithWidget(fastWidget(t, "traffic", srv.URL+"/reports/traffic/start", WithRenderer(render.TimeSeries()))),
		WithLogger(testLogger()),
		WithStatusCallback(rec.record),
	)
	require.NoError(t, err)

	_, err = board.RunOnce(context.Background())
	require.NoError(t, err)

	var progress []int
	rec.mu.Lock()
	for _, res := range rec.results["traffic"] {
		if res.State == StatePolling && res.Polls > 0 {
			progress = append(progress, res.Progress)
		}
	}
	rec.mu.Unlock()
	// three running replies at 25, 50 and 75 percent
	require.Equal(t, []int{25, 50, 75}, progress)
}

func TestBoard_RunOnce_DirectPollLegacyCodes(t *testing.T) {
	backend, srv := newBackend(t, mockjobs.LegacyCodes)
	backend.Register("status", mockjobs.Report{Steps: 1, Build: func(map[string]any) (any, error) {
		return "<b>ok</b>", nil
	}})

	board, err := New(
		WithWidget(fastWidget(t, "status", srv.URL+"/reports/status/data",
			WithDirectPoll(),
			WithStatusCodes(LegacyStatusCodes),
		)),
		WithLogger(testLogger()),
	)
	require.NoError(t, err)

	results, err := board.RunOnce(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, StateComplete, results[0].State)
	require.Equal(t, "<b>ok</b>", results[0].HTML)
	require.Equal(t, 2, results[0].Polls)
	require.Equal(t, 0, backend.Submits())
}

func TestBoard_RunOnce_MaxWait(t *testing.T) {
	backend, srv := newBackend(t, mockjobs.PortalCodes)
	backend.Register("slow", mockjobs.Report{Steps: 1 << 20})

	board, err := New(
		WithWidget(fastWidget(t, "slow", srv.URL+"/reports/slow/start", WithMaxWait(80*time.Millisecond))),
		WithLogger(testLogger()),
	)
	require.NoError(t, err)

	results, err := board.RunOnce(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, StateTimeout, results[0].State)
	require.ErrorIs(t, results[0].Err, ErrMaxWaitExceeded)
	require.Contains(t, results[0].HTML, "Server error")
}

func TestBoard_RunOnce_ContextCancelled(t *testing.T) {
	backend, srv := newBackend(t, mockjobs.PortalCodes)
	backend.Register("slow", mockjobs.Report{Steps: 1 << 20})

	board, err := New(
		WithWidget(fastWidget(t, "slow", srv.URL+"/reports/slow/start")),
		WithLogger(testLogger()),
	)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 80*time.Millisecond)
	defer cancel()

	results, err := board.RunOnce(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Len(t, results, 1)
	require.Equal(t, StatePolling, results[0].State)
}

func TestBoard_UsedOnce(t *testing.T) {
	_, srv := newBackend(t, mockjobs.PortalCodes)
	board, err := New(
		WithWidget(fastWidget(t, "summary", srv.URL+"/reports/summary/start")),
		WithLogger(testLogger()),
	)
	require.NoError(t, err)

	_, err = board.RunOnce(context.Background())
	require.NoError(t, err)

	_, err = board.RunOnce(context.Background())
	require.ErrorIs(t, err, ErrBoardUsed)
	require.ErrorIs(t, board.Start(context.Background()), ErrBoardUsed)
}

func TestBoard_Dispose(t *testing.T) {
	backend, srv := newBackend(t, mockjobs.PortalCodes)
	backend.Register("slow", mockjobs.Report{Steps: 1 << 20})
	backend.Register("quick", mockjobs.Report{Steps: 5})

	polling := make(chan struct{})
	var once sync.Once
	rec := newRecorder()
	scope := tally.NewTestScope("", nil)

	board, err := New(
		WithWidgets(
			fastWidget(t, "drop", srv.URL+"/reports/slow/start"),
			fastWidget(t, "keep", srv.URL+"/reports/quick/start"),
		),
		WithLogger(testLogger()),
		WithMetricsScope(scope),
		WithStatusCallback(func(r WidgetResult) {
			if r.WidgetID == "drop" && r.Polls > 0 {
				once.Do(func() { close(polling) })
			}
		}),
		WithStatusCallback(rec.record),
	)
	require.NoError(t, err)

	type outcome struct {
		results []WidgetResult
		err     error
	}
	done := make(chan outcome, 1)
	go func() {
		results, err := board.RunOnce(context.Background())
		done <- outcome{results, err}
	}()

	select {
	case <-polling:
	case <-time.After(5 * time.Second):
		t.Fatal("drop never polled")
	}

	require.True(t, board.Dispose("drop"))
	require.False(t, board.Dispose("drop"))
	require.False(t, board.Dispose("missing"))

	_, ok := board.views.Get("drop")
	require.False(t, ok, "disposed widget still has a view")
	require.Equal(t, 1, board.layout.Len())

	rec.mu.Lock()
	seen := len(rec.results["drop"])
	rec.mu.Unlock()

	var out outcome
	select {
	case out = <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("RunOnce did not return after dispose")
	}
	require.NoError(t, out.err)
	require.Len(t, out.results, 1)
	require.Equal(t, "keep", out.results[0].WidgetID)
	require.Equal(t, StateComplete, out.results[0].State)

	// a delivery already under way when Dispose ran may finish
	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.LessOrEqual(t, len(rec.results["drop"]), seen+1, "results reported after dispose")
}

func TestBoard_DisposeFromCallback(t *testing.T) {
	backend, srv := newBackend(t, mockjobs.PortalCodes)
	backend.Register("slow", mockjobs.Report{Steps: 1 << 20})

	rec := newRecorder()
	var board *Board
	board, err := New(
		WithWidgets(
			fastWidget(t, "drop", srv.URL+"/reports/slow/start"),
			fastWidget(t, "hosts", srv.URL+"/reports/hosts/start"),
		),
		WithLogger(testLogger()),
		WithStatusCallback(func(r WidgetResult) {
			if r.WidgetID == "drop" && r.State == StatePolling {
				board.Dispose(r.WidgetID)
			}
		}),
		WithStatusCallback(rec.record),
	)
	require.NoError(t, err)

	type outcome struct {
		results []WidgetResult
		err     error
	}
	done := make(chan outcome, 1)
	go func() {
		results, err := board.RunOnce(context.Background())
		done <- outcome{results, err}
	}()

	var out outcome
	select {
	case out = <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("RunOnce did not return after a callback disposed a widget")
	}
	require.NoError(t, out.err)
	require.Len(t, out.results, 1)
	require.Equal(t, "hosts", out.results[0].WidgetID)
	require.Equal(t, StateComplete, out.results[0].State)

	_, ok := board.views.Get("drop")
	require.False(t, ok, "disposed widget still has a view")
	require.False(t, board.Dispose("drop"))

	// the disposing callback runs first, so the recorder never sees polling
	require.Equal(t, []State{StateSubmitting}, rec.states("drop"))
}

func TestBoard_Resize(t *testing.T) {
	_, srv := newBackend(t, mockjobs.PortalCodes)
	board, err := New(
		WithWidgets(
			fastWidget(t, "hosts", srv.URL+"/reports/hosts/start", WithRenderer(render.Table{})),
			fastWidget(t, "broken", srv.URL+"/reports/broken/start", WithWidth(300), WithHeight(200)),
		),
		WithLogger(testLogger()),
	)
	require.NoError(t, err)

	_, err = board.RunOnce(context.Background())
	require.NoError(t, err)

	require.NoError(t, board.Resize(400, 300))

	view, ok := board.views.Get("hosts")
	require.True(t, ok)
	require.Equal(t, 368, view.Width)
	require.Contains(t, view.HTML, "width:346px;height:258px")
	require.Contains(t, view.HTML, `<td>10.0.0.1</td>`)

	// failed widgets are resized but keep their error markup
	view, ok = board.views.Get("broken")
	require.True(t, ok)
	require.Equal(t, 300, view.Width)
	require.Equal(t, 200, view.Height)
	require.Contains(t, view.HTML, "report database unavailable")

	require.Error(t, board.Resize(0, 300))
	require.Error(t, board.Resize(400, -1))
}

func TestBoard_CallbackPanicRecovered(t *testing.T) {
	_, srv := newBackend(t, mockjobs.PortalCodes)
	rec := newRecorder()

	board, err := New(
		WithWidget(fastWidget(t, "summary", srv.URL+"/reports/summary/start", WithWidgetParam("summary"))),
		WithLogger(testLogger()),
		WithStatusCallback(func(WidgetResult) { panic("boom") }),
		WithStatusCallback(rec.record),
	)
	require.NoError(t, err)

	results, err := board.RunOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, StateComplete, results[0].State)
	require.Equal(t, `<p>Summary for <b>summary</b>: all collectors reporting.</p>`, results[0].HTML)
	require.Equal(t, []State{StateSubmitting, StatePolling, StateComplete}, rec.states("summary"))
}

func TestBoard_CallbackPayloadIsCopy(t *testing.T) {
	_, srv := newBackend(t, mockjobs.PortalCodes)

	var mu sync.Mutex
	var first WidgetResult
	board, err := New(
		WithWidget(fastWidget(t, "summary", srv.URL+"/reports/summary/start", WithLabels("env", "test"))),
		WithLogger(testLogger()),
		WithStatusCallback(func(r WidgetResult) {
			mu.Lock()
			defer mu.Unlock()
			if r.State == StateComplete {
				first = r
				r.Labels["env"] = "mutated"
				r.Payload[0] = 'X'
			}
		}),
	)
	require.NoError(t, err)

	results, err := board.RunOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, "test", results[0].Labels["env"])
	require.NotEqual(t, byte('X'), results[0].Payload[0])

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, StateComplete, first.State)
}

func TestBoard_StartServesUntilCancelled(t *testing.T) {
	_, srv := newBackend(t, mockjobs.PortalCodes)
	board, err := New(
		WithWidget(fastWidget(t, "summary", srv.URL+"/reports/summary/start")),
		WithLogger(testLogger()),
		WithPort(19301),
	)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- board.Start(ctx) }()

	require.Eventually(t, func() bool {
		view, ok := board.views.Get("summary")
		return ok && view.State == "complete"
	}, 5*time.Second, 10*time.Millisecond)

	select {
	case err := <-done:
		t.Fatalf("Start() returned early: %v", err)
	default:
	}

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Start() did not return after cancel")
	}
}

func TestBoard_StartPortInUse(t *testing.T) {
	ln, err := net.Listen("tcp", ":0")
	require.NoError(t, err)
	defer ln.Close()

	_, srv := newBackend(t, mockjobs.PortalCodes)
	board, err := New(
		WithWidget(fastWidget(t, "summary", srv.URL+"/reports/summary/start")),
		WithLogger(testLogger()),
		WithPort(ln.Addr().(*net.TCPAddr).Port),
	)
	require.NoError(t, err)

	err = board.Start(context.Background())
	require.ErrorContains(t, err, "failed to start HTTP server")
}
