package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/jpalmerr/reportboard/internal/store"
)

const (
	// sseWriteTimeout bounds a single SSE write so slow or disconnected
	// clients cannot pin a handler goroutine. Must be <= shutdown timeout.
	sseWriteTimeout = 5 * time.Second

	shutdownTimeout = 5 * time.Second

	defaultTitle     = "ReportBoard"
	titlePlaceholder = "{{.Title}}"

	maxResizeBody = 1 << 10
)

// Controller is the part of the board the API can act on.
type Controller interface {
	// Dispose cancels a widget and removes its container.
	// It returns false for unknown widgets.
	Dispose(id string) bool

	// Resize changes the viewport size and redraws completed widgets.
	Resize(width, height int) error
}

// Server handles HTTP requests for the dashboard and its API.
//
// Routes:
//   - GET /: embedded dashboard page
//   - GET /api/widgets: all widget views as JSON
//   - GET /api/widgets/{id}: one widget view
//   - DELETE /api/widgets/{id}: dispose a widget
//   - POST /api/resize: {"width": W, "height": H} viewport change
//   - GET /api/sse: Server-Sent Events stream of view changes
type Server struct {
	store      store.Store
	controller Controller
	port       int
	httpServer *http.Server
	assets     fs.FS
	title      string
	logger     *slog.Logger
}

// NewServer creates a new HTTP [Server].
//
// controller and assets may be nil; the routes that need them then answer
// with an error. The server is not started until [Server.Start] is called.
func NewServer(st store.Store, controller Controller, port int, assets fs.FS, title string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		store:      st,
		controller: controller,
		port:       port,
		assets:     assets,
		title:      title,
		logger:     logger,
	}
}

// Handler returns the routed handler. Exposed for tests and embedding.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/widgets", s.handleWidgets)
	mux.HandleFunc("GET /api/widgets/{id}", s.handleWidget)
	mux.HandleFunc("DELETE /api/widgets/{id}", s.handleDispose)
	mux.HandleFunc("POST /api/resize", s.handleResize)
	mux.HandleFunc("GET /api/sse", s.handleSSE)
	mux.HandleFunc("GET /{$}", s.handleDashboard)
	return mux
}

// Start begins serving in a background goroutine and returns once the port
// is bound. Cancelling ctx shuts the server down gracefully.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.port))
	if err != nil {
		return fmt.Errorf("failed to bind to port %d: %w", s.port, err)
	}

	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		// request contexts derive from ctx so SSE handlers exit on shutdown
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server error", "error", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("http server shutdown error", "error", err)
		}
	}()

	s.logger.Info("dashboard listening", "addr", ln.Addr().String())
	return nil
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if s.assets == nil {
		http.Error(w, "Dashboard not found", http.StatusInternalServerError)
		return
	}

	content, err := fs.ReadFile(s.assets, "assets/index.html")
	if err != nil {
		http.Error(w, "Dashboard not found", http.StatusInternalServerError)
		return
	}

	title := s.title
	if title == "" {
		title = defaultTitle
	}
	rendered := strings.ReplaceAll(string(content), titlePlaceholder, html.EscapeString(title))

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err = w.Write([]byte(rendered)); err != nil {
		s.logger.Error("failed to write dashboard response", "error", err)
	}
}

func (s *Server) handleWidgets(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.store.GetAll())
}

func (s *Server) handleWidget(w http.ResponseWriter, r *http.Request) {
	view, ok := s.store.Get(r.PathValue("id"))
	if !ok {
		http.Error(w, "widget not found", http.StatusNotFound)
		return
	}
	s.writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleDispose(w http.ResponseWriter, r *http.Request) {
	if s.controller == nil {
		http.Error(w, "disposal not supported", http.StatusNotImplemented)
		return
	}
	id := r.PathValue("id")
	if !s.controller.Dispose(id) {
		http.Error(w, "widget not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type resizeRequest struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (s *Server) handleResize(w http.ResponseWriter, r *http.Request) {
	if s.controller == nil {
		http.Error(w, "resize not supported", http.StatusNotImplemented)
		return
	}

	var req resizeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxResizeBody)).Decode(&req); err != nil {
		http.Error(w, "invalid resize request", http.StatusBadRequest)
		return
	}
	if err := s.controller.Resize(req.Width, req.Height); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

// handleSSE streams widget view changes.
//
// Each write carries a deadline so a stalled client cannot block the handler
// from noticing cancellation or unsubscription.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	if _, ok := w.(http.Flusher); !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	rc := http.NewResponseController(w)
	deadlinesSupported := true

	writeAndFlush := func(data []byte) error {
		if deadlinesSupported {
			if err := rc.SetWriteDeadline(time.Now().Add(sseWriteTimeout)); err != nil {
				s.logger.Warn("sse write deadlines not supported", "error", err)
				deadlinesSupported = false
			}
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return err
		}
		return rc.Flush()
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := s.store.Subscribe()
	defer s.store.Unsubscribe(ch)

	for _, view := range s.store.GetAll() {
		data, err := json.Marshal(view)
		if err != nil {
			continue
		}
		if err := writeAndFlush(data); err != nil {
			return
		}
	}

	for {
		select {
		case view, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(view)
			if err != nil {
				continue
			}
			if err := writeAndFlush(data); err != nil {
				return
			}
		case <-r.Context().Done():
			// fires on client disconnect and on server shutdown
			return
		}
	}
}
